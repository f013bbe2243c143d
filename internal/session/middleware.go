package session

import (
	"context"
	"log/slog"
	"net/http"
)

type responseWriterWithCommit struct {
	http.ResponseWriter
	handle        *Handle
	manager       *Manager
	ctx           context.Context
	headerWritten bool
}

func (w *responseWriterWithCommit) WriteHeader(statusCode int) {
	if !w.headerWritten {
		w.headerWritten = true
		if err := w.manager.Commit(w.ctx, w.ResponseWriter, w.handle); err != nil {
			w.manager.logger.WarnContext(w.ctx, "commit session", slog.Any("error", err))
		}
	}
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *responseWriterWithCommit) Write(data []byte) (int, error) {
	if !w.headerWritten {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(data)
}

func (w *responseWriterWithCommit) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// Middleware loads the session for every request and writes the cookie before
// the response header goes out.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		handle, err := m.Load(ctx, r)
		if err != nil {
			m.logger.ErrorContext(ctx, "failed to load session", slog.Any("error", err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		ctx = ContextWithHandle(ctx, handle)
		wrapped := &responseWriterWithCommit{
			ResponseWriter: w,
			handle:         handle,
			manager:        m,
			ctx:            ctx,
		}
		next.ServeHTTP(wrapped, r.WithContext(ctx))
		if !wrapped.headerWritten {
			wrapped.WriteHeader(http.StatusOK)
		}
	})
}
