package middleware

import (
	"bytes"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// maxLoggedBody caps how much of a request or response body lands in the
// access log.
const maxLoggedBody = 1024

// sensitivePathPrefixes lists route prefixes whose bodies carry secrets
// (raw API keys, JWTs, refresh tokens) and must never reach the access log.
var sensitivePathPrefixes = []string{"/auth"}

func bodiesLoggable(path string) bool {
	for _, prefix := range sensitivePathPrefixes {
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return false
		}
	}
	return true
}

type bodyCapturingWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *bodyCapturingWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// Logger returns a middleware that writes one logrus entry per request.
// Small request and response bodies are included for debuggability, except
// on credential-bearing routes where only status and size are recorded.
func Logger(log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		capture := bodiesLoggable(c.Request.URL.Path)

		var requestBody []byte
		if capture && c.Request.Body != nil {
			requestBody, _ = io.ReadAll(c.Request.Body)
			c.Request.Body = io.NopCloser(bytes.NewBuffer(requestBody))
		}

		var cw *bodyCapturingWriter
		if capture {
			cw = &bodyCapturingWriter{ResponseWriter: c.Writer, body: &bytes.Buffer{}}
			c.Writer = cw
		}

		c.Next()

		fields := logrus.Fields{
			"status":     strconv.Itoa(c.Writer.Status()),
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"ip":         c.ClientIP(),
			"duration":   time.Since(start).String(),
			"size":       c.Writer.Size(),
			"user_agent": c.Request.UserAgent(),
		}

		if requestID := c.GetString(RequestIDKey); requestID != "" {
			fields["request_id"] = requestID
		}

		if capture {
			if len(requestBody) > 0 && len(requestBody) < maxLoggedBody {
				fields["request_body"] = string(requestBody)
			}
			if cw.body.Len() > 0 && cw.body.Len() < maxLoggedBody {
				fields["response_body"] = cw.body.String()
			}
		}

		if len(c.Errors) > 0 {
			fields["errors"] = c.Errors.String()
		}

		entry := log.WithFields(fields)
		switch status := c.Writer.Status(); {
		case status >= 500:
			entry.Error("Server error")
		case status >= 400:
			entry.Warn("Client error")
		case status >= 300:
			entry.Info("Redirection")
		default:
			entry.Info("Success")
		}
	}
}
