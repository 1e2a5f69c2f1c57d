package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// CORS returns a middleware that sets CORS headers for the classroom
// frontend. allowedOrigins is "*" or a comma-separated origin list
// (e.g. "http://localhost:3000,http://localhost:5174").
func CORS(allowedOrigins string) gin.HandlerFunc {
	origins, wildcard := parseOrigins(allowedOrigins)
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		allow := ""
		switch {
		case wildcard:
			allow = "*"
		case origin != "" && origins[origin]:
			allow = origin
		}
		if allow != "" {
			c.Header("Access-Control-Allow-Origin", allow)
			c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Content-Type")
			c.Header("Access-Control-Max-Age", "86400")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func parseOrigins(s string) (map[string]bool, bool) {
	m := make(map[string]bool)
	wildcard := false
	for _, o := range strings.Split(s, ",") {
		o = strings.TrimSpace(o)
		switch {
		case o == "*":
			wildcard = true
		case o != "":
			m[o] = true
		}
	}
	if len(m) == 0 && !wildcard {
		wildcard = true
	}
	return m, wildcard
}
