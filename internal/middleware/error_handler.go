package middleware

import (
	"github.com/gin-gonic/gin"

	"community_chat/pkg/errors"
)

func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 {
			err := c.Errors.Last()
			statusCode := errors.HTTPStatusFromError(err.Err)

			c.JSON(statusCode, gin.H{
				"success": false,
				"error":   err.Error(),
			})
		}
	}
}
