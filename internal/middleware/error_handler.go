package middleware

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/gatehouse/gatehouse/internal/auth"
	"github.com/gatehouse/gatehouse/internal/models"
)

// ErrorHandler converts errors attached to the gin context into the shared
// structured error body. Handlers call c.Error and return; this middleware
// owns the response shape.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		err := c.Errors.Last().Err

		statusCode := http.StatusInternalServerError
		code := "internal_error"

		var authErr *auth.Error
		switch {
		case errors.As(err, &authErr):
			statusCode = statusForKind(authErr.Kind)
			code = authErr.Code
		default:
			switch err.(type) {
			case *ValidationError:
				statusCode = http.StatusBadRequest
				code = "validation_error"
			case *NotFoundError:
				statusCode = http.StatusNotFound
				code = "not_found"
			}
		}

		c.JSON(statusCode, models.SecurityError{
			Error:            code,
			ErrorDescription: err.Error(),
			ErrorCode:        strconv.Itoa(statusCode),
			Timestamp:        time.Now().UTC(),
			RequestID:        c.GetString(RequestIDKey),
		})
	}
}

// Custom error types for different error scenarios
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string {
	return e.Message
}
