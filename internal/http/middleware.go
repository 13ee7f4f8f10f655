package httpx

import (
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"time"
)

// Logging returns a middleware that logs HTTP requests and responses.
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &respWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)

			level := slog.LevelInfo
			if ww.status >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			logger.LogAttrs(r.Context(), level, "http",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.status),
				slog.Int("bytes", ww.written),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}

type respWriter struct {
	http.ResponseWriter
	status  int
	written int
}

func (w *respWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *respWriter) Write(b []byte) (int, error) {
	n, err := w.ResponseWriter.Write(b)
	w.written += n
	return n, err
}

// Recover returns a middleware that recovers from panics and logs them.
func Recover(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.ErrorContext(r.Context(), "panic",
						slog.Any("error", err),
						slog.String("path", r.URL.Path),
						slog.String("method", r.Method),
						slog.String("stack", string(debug.Stack())))
					WriteError(w, ErrorParams{
						Code:    http.StatusInternalServerError,
						ErrCode: "internal",
						Err:     errors.New("internal server error"),
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// LimitBody caps request bodies at maxBytes.
func LimitBody(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if maxBytes <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// CallbackAuthConfig configures RequireCallbackSecret.
type CallbackAuthConfig struct {
	// Secret is the expected value. An empty secret rejects every request.
	Secret string
	// Header names the request header carrying the secret.
	Header string
	Logger *slog.Logger
}

// RequireCallbackSecret rejects requests whose secret header does not exactly match the
// configured secret with 403, before the body is read.
func RequireCallbackSecret(cfg CallbackAuthConfig) func(http.Handler) http.Handler {
	header := strings.TrimSpace(cfg.Header)
	if header == "" {
		header = "X-Callback-Secret"
	}
	expected := []byte(cfg.Secret)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !secretMatches(expected, r.Header.Get(header)) {
				if cfg.Logger != nil {
					cfg.Logger.WarnContext(r.Context(), "callback rejected",
						"path", r.URL.Path,
						"remote_addr", r.RemoteAddr,
						"secret_present", r.Header.Get(header) != "",
					)
				}
				writeForbidden(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func secretMatches(expected []byte, presented string) bool {
	if len(expected) == 0 || presented == "" {
		return false
	}
	return subtle.ConstantTimeCompare(expected, []byte(presented)) == 1
}
