package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"
)

// StreamingTimeout bounds routes that stream large bodies, such as the ledger
// CSV export, without buffering them like http.TimeoutHandler does.
// maxDuration caps the whole response; idleTimeout caps the gap between
// writes. Either one expiring cancels the request context.
func StreamingTimeout(maxDuration, idleTimeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), maxDuration)
			defer cancel()

			rc := http.NewResponseController(w)
			_ = rc.SetWriteDeadline(time.Now().Add(maxDuration))

			sw := &idleWriter{ResponseWriter: w, rc: rc, idle: idleTimeout, cancel: cancel}
			sw.touch()
			defer sw.stop()

			next.ServeHTTP(sw, r.WithContext(ctx))
		})
	}
}

type idleWriter struct {
	http.ResponseWriter
	rc     *http.ResponseController
	idle   time.Duration
	cancel context.CancelFunc

	mu    sync.Mutex
	timer *time.Timer
}

func (w *idleWriter) touch() {
	if w.idle <= 0 {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Reset(w.idle)
		return
	}
	w.timer = time.AfterFunc(w.idle, func() {
		_ = w.rc.SetWriteDeadline(time.Now())
		w.cancel()
	})
}

func (w *idleWriter) stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
}

func (w *idleWriter) Write(b []byte) (int, error) {
	w.touch()
	return w.ResponseWriter.Write(b)
}

func (w *idleWriter) Flush() {
	_ = w.rc.Flush()
}

func (w *idleWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
