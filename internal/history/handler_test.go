package history

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestServer(store Store) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	handler := NewHandler(store, zap.NewNop())
	router.GET("/polls/history", handler.ListByCreator)
	return router
}

func TestListByCreatorReturnsRecords(t *testing.T) {
	store := NewMemoryStore()
	_, err := store.Append(context.Background(), record("Pick a color", "teacher-1", time.Now()))
	require.NoError(t, err)
	router := newTestServer(store)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/polls/history?creatorId=teacher-1", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Success bool     `json:"success"`
		Data    []Record `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Success)
	require.Len(t, body.Data, 1)
	assert.Equal(t, "Pick a color", body.Data[0].Question)
}

func TestListByCreatorRequiresCreatorID(t *testing.T) {
	router := newTestServer(NewMemoryStore())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/polls/history", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListByCreatorRejectsBadLimit(t *testing.T) {
	router := newTestServer(NewMemoryStore())

	for _, limit := range []string{"0", "-3", "abc"} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/polls/history?creatorId=teacher-1&limit="+limit, nil)
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code, "limit=%s", limit)
	}
}

func TestListByCreatorEmptyIsOkWithEmptyList(t *testing.T) {
	router := newTestServer(NewMemoryStore())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/polls/history?creatorId=nobody", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"data":[]`)
}
