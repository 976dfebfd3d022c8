package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"dairyops/internal/core/apperror"
	appctx "dairyops/internal/core/context"
)

const (
	HeaderOperatorID   = "X-Operator-ID"
	HeaderOperatorRole = "X-Operator-Role"
)

// Operator records the staff member named by the X-Operator-ID header as the
// actor of the request. Identity is established upstream of this service.
func Operator() gin.HandlerFunc {
	return func(c *gin.Context) {
		operatorID := strings.TrimSpace(c.GetHeader(HeaderOperatorID))
		if operatorID == "" {
			_ = c.Error(apperror.NewValidation("X-Operator-ID header is required").
				WithDetail("header", HeaderOperatorID))
			c.Abort()
			return
		}

		ctx := appctx.WithOperator(c.Request.Context(), &appctx.OperatorContext{
			OperatorID: operatorID,
			Role:       c.GetHeader(HeaderOperatorRole),
		})
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
