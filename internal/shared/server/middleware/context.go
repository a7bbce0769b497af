package middleware

import "github.com/gin-gonic/gin"

// Context keys handlers set so the request log can report workflow progress.
const (
	CaseIDKey     = "caseId"
	TransitionKey = "statusTransition"
)

// CaseIDFromContext returns the case a handler worked on, if any.
func CaseIDFromContext(c *gin.Context) string {
	return stringFromContext(c, CaseIDKey)
}

func stringFromContext(c *gin.Context, key string) string {
	if c == nil {
		return ""
	}
	val, _ := c.Get(key)
	if s, ok := val.(string); ok {
		return s
	}
	return ""
}
