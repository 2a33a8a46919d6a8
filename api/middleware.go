package api

import (
	"bytes"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/vocdoni/davinci-pool/log"
)

// DisabledLogging is a global flag to disable logging middleware
var DisabledLogging = false

// LoggingConfig holds configuration for the logging middleware
type LoggingConfig struct {
	MaxBodyLog       int
	ExcludedPrefixes []string // URL path prefixes to exclude from logging
}

// shouldSkipLogging checks if the request should be skipped from logging
func (lc LoggingConfig) shouldSkipLogging(r *http.Request) bool {
	if DisabledLogging || log.Level() != log.LogLevelDebug {
		return true
	}
	for _, prefix := range lc.ExcludedPrefixes {
		if strings.HasPrefix(r.URL.Path, prefix) {
			return true
		}
	}
	return false
}

// bodySnippet returns a printable, truncated copy of a JSON body. Non JSON
// bodies are not logged.
func (lc LoggingConfig) bodySnippet(body []byte) string {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || (trimmed[0] != '{' && trimmed[0] != '[') {
		return ""
	}
	s := string(trimmed)
	if len(s) > lc.MaxBodyLog {
		s = s[:lc.MaxBodyLog] + "..."
	}
	return strings.ReplaceAll(s, "\"", "")
}

// responseWriter wraps http.ResponseWriter to capture the status code and
// the number of bytes written.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    int
}

func (rw *responseWriter) WriteHeader(code int) {
	if rw.statusCode == 0 {
		rw.statusCode = code
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if rw.statusCode == 0 {
		rw.statusCode = http.StatusOK
	}
	n, err := rw.ResponseWriter.Write(b)
	rw.written += n
	return n, err
}

// loggingMiddleware logs every request and its response at debug level.
func loggingMiddleware(maxBodyLog int) func(http.Handler) http.Handler {
	return loggingMiddlewareWithConfig(LoggingConfig{
		MaxBodyLog:       maxBodyLog,
		ExcludedPrefixes: LogExcludedPrefixes,
	})
}

func loggingMiddlewareWithConfig(config LoggingConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if config.shouldSkipLogging(r) {
				next.ServeHTTP(w, r)
				return
			}
			start := time.Now()

			var body string
			if r.Body != nil && r.ContentLength > 0 {
				raw, err := io.ReadAll(r.Body)
				if err != nil {
					ErrMalformedBody.WithErr(err).Write(w)
					return
				}
				// restore the body for the handler
				r.Body = io.NopCloser(bytes.NewReader(raw))
				body = config.bodySnippet(raw)
			}

			wrapped := &responseWriter{ResponseWriter: w}
			log.Debugw("api request",
				"method", r.Method,
				"url", r.URL.String(),
				"body", body,
			)

			next.ServeHTTP(wrapped, r)

			log.Debugw("api response",
				"method", r.Method,
				"url", r.URL.String(),
				"status", wrapped.statusCode,
				"bytes", wrapped.written,
				"took", time.Since(start).String(),
			)
		})
	}
}
