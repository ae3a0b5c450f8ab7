package shared

import (
	"context"
	"log/slog"
	"net/http"
)

// commitWriter persists the session right before the response header is
// written, so Set-Cookie reaches the client.
type commitWriter struct {
	http.ResponseWriter
	ctx           context.Context
	sess          *Session
	manager       *SessionManager
	logger        *slog.Logger
	headerWritten bool
}

func (w *commitWriter) WriteHeader(statusCode int) {
	if !w.headerWritten {
		w.headerWritten = true
		if err := w.manager.Commit(w.ctx, w.ResponseWriter, w.sess); err != nil && w.logger != nil {
			w.logger.ErrorContext(w.ctx, "commit session", slog.Any("error", err))
		}
	}
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *commitWriter) Write(data []byte) (int, error) {
	if !w.headerWritten {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(data)
}

func (w *commitWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

// SessionMiddleware loads the session into the request context and commits
// it with the response.
func SessionMiddleware(manager *SessionManager, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			sess, err := manager.Load(ctx, r)
			if err != nil {
				if logger != nil {
					logger.ErrorContext(ctx, "failed to load session", slog.Any("error", err))
				}
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
			ctx = ContextWithSession(ctx, sess)
			cw := &commitWriter{ResponseWriter: w, ctx: ctx, sess: sess, manager: manager, logger: logger}
			next.ServeHTTP(cw, r.WithContext(ctx))
			if !cw.headerWritten {
				cw.WriteHeader(http.StatusOK)
			}
		})
	}
}
