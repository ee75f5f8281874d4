package session

import (
	"net/http"
	"sync"

	"github.com/dmitrymomot/consolekit/pkg/loginstate"
)

// Middleware loads the session, binds its login state to the request
// context and commits it before the first byte of the response.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rs := m.load(r)

		ctx := loginstate.WithBinding(r.Context(), rs.binding)
		ctx = withRequestSession(ctx, rs)
		r = r.WithContext(ctx)

		cw := &commitWriter{ResponseWriter: w}
		cw.commit = func() { m.commit(ctx, w, rs) }

		next.ServeHTTP(cw, r)
		cw.once.Do(cw.commit)
	})
}

// commitWriter runs commit once, before headers are sent.
type commitWriter struct {
	http.ResponseWriter
	once   sync.Once
	commit func()
}

func (w *commitWriter) WriteHeader(code int) {
	w.once.Do(w.commit)
	w.ResponseWriter.WriteHeader(code)
}

func (w *commitWriter) Write(b []byte) (int, error) {
	w.once.Do(w.commit)
	return w.ResponseWriter.Write(b)
}

func (w *commitWriter) Flush() {
	w.once.Do(w.commit)
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *commitWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
