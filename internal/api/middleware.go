package api

import (
	"context"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/wsmaster/internal/telemetry"
)

// HeaderRequestID — заголовок корреляции запроса.
const HeaderRequestID = "X-Request-ID"

type requestIDKey struct{}

// Middleware — функция-обёртка для http.Handler.
type Middleware func(http.Handler) http.Handler

// Chain применяет middleware в порядке слева направо.
// Chain(m1, m2)(handler) = m1(m2(handler))
func Chain(middlewares ...Middleware) Middleware {
	return func(next http.Handler) http.Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}

// RequestID берёт X-Request-ID клиента или выдаёт новый и возвращает его в ответе.
func RequestID() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(HeaderRequestID)
			if id == "" || len(id) > 128 {
				id = uuid.New().String()
			}
			w.Header().Set(HeaderRequestID, id)
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
		})
	}
}

// RequestIDFromContext возвращает ID запроса, выданный RequestID.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// Logging кладёт в контекст логгер запроса (request_id, workspace_id, machine_id)
// и пишет строку доступа после ответа. Уровень зависит от статуса.
func Logging(logger *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			reqLogger := logger
			if id := RequestIDFromContext(r.Context()); id != "" {
				reqLogger = reqLogger.With("request_id", id)
			}
			if wsID := r.PathValue("id"); wsID != "" {
				reqLogger = telemetry.WithWorkspaceID(reqLogger, wsID)
			}
			if machineID := r.PathValue("mid"); machineID != "" {
				reqLogger = telemetry.WithMachineID(reqLogger, machineID)
			}

			rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rw, r.WithContext(telemetry.WithLogger(r.Context(), reqLogger)))

			level := slog.LevelInfo
			switch {
			case rw.status >= http.StatusInternalServerError:
				level = slog.LevelError
			case rw.status >= http.StatusBadRequest:
				level = slog.LevelWarn
			}
			reqLogger.Log(r.Context(), level, "http request",
				"method", r.Method,
				"route", r.Pattern,
				"status", rw.status,
				"bytes", rw.written,
				"duration", time.Since(start),
			)
		})
	}
}

// Recovery превращает панику обработчика в 500.
// Стоит внутри Logging, чтобы паника попала в лог с request_id.
func Recovery(fallback *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger := requestLogger(r, fallback)
					logger.Error("panic recovered",
						"error", err,
						"stack", string(debug.Stack()),
					)
					InternalError(w, logger, nil)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// requestLogger возвращает логгер из контекста запроса или fallback.
func requestLogger(r *http.Request, fallback *slog.Logger) *slog.Logger {
	if logger, ok := r.Context().Value(telemetry.CtxLogger).(*slog.Logger); ok {
		return logger
	}
	return fallback
}

// responseWriter запоминает статус и размер ответа.
type responseWriter struct {
	http.ResponseWriter
	status  int
	written int64
}

func (rw *responseWriter) WriteHeader(status int) {
	rw.status = status
	rw.ResponseWriter.WriteHeader(status)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.written += int64(n)
	return n, err
}

// Unwrap даёт http.ResponseController доступ к исходному writer.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}
