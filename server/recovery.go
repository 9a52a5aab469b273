package server

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// recovery logs panics from handlers and responds with a 500 in the usual error shape
func recovery(logger *zap.Logger, stack bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			panicValue := recover()
			if panicValue == nil {
				return
			}
			if ce := logger.Check(zap.ErrorLevel, "[Recovery]"); ce != nil {
				fields := []zap.Field{zap.Any("error", panicValue), zap.String("path", c.Request.URL.Path)}
				if stack && ce.Entry.Stack == "" {
					fields = append(fields, zap.Stack("stacktrace"))
				} else if !stack {
					ce.Entry.Stack = ""
				}
				ce.Write(fields...)
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, map[string]string{
				"Error": fmt.Sprintf("Internal server error: %v", panicValue),
			})
		}()
		c.Next()
	}
}
