package history

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/classpulse/backend/pkg/response"
)

const defaultQueryLimit = 20

// Handler exposes a read-only REST view of closed polls, for dashboards and
// exports that do not hold a live WebSocket connection.
type Handler struct {
	store  Store
	logger *zap.Logger
}

// NewHandler creates a history handler.
func NewHandler(store Store, logger *zap.Logger) *Handler {
	return &Handler{store: store, logger: logger}
}

// ListByCreator handles GET /polls/history?creatorId=...&limit=N.
func (h *Handler) ListByCreator(c *gin.Context) {
	creatorID := c.Query("creatorId")
	if creatorID == "" {
		response.BadRequest(c, "creatorId is required")
		return
	}
	limit := defaultQueryLimit
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			response.BadRequest(c, "limit must be a positive integer")
			return
		}
		limit = n
	}

	records, err := h.store.QueryByCreator(c.Request.Context(), creatorID, limit)
	if err != nil {
		h.logger.Error("history query failed", zap.String("creator_id", creatorID), zap.Error(err))
		response.Internal(c, "failed to fetch past polls")
		return
	}
	if records == nil {
		records = []Record{}
	}
	response.OK(c, records)
}
