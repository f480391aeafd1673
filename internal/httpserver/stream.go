package httpserver

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/igm/sockjs-go/sockjs"

	"github.com/Skotchmaster/bookstore/internal/session"
)

const streamPrefix = "/api/session/stream"

type SnapshotStream interface {
	Subscribe() (<-chan session.Snapshot, func())
}

// SessionStream pushes the session view to connected browsers after every
// state change, starting with the current one.
func SessionStream(src SnapshotStream, l *slog.Logger) http.Handler {
	return sockjs.NewHandler(streamPrefix, sockjs.DefaultOptions, func(sess sockjs.Session) {
		updates, unsubscribe := src.Subscribe()
		defer unsubscribe()

		gone := make(chan struct{})
		go func() {
			defer close(gone)
			for {
				if _, err := sess.Recv(); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case <-gone:
				return
			case snap, ok := <-updates:
				if !ok {
					_ = sess.Close(1000, "session store closed")
					return
				}
				msg, err := json.Marshal(viewOf(snap))
				if err != nil {
					l.Error("session_stream_marshal_error", "error", err)
					continue
				}
				if err := sess.Send(string(msg)); err != nil {
					return
				}
			}
		}
	})
}
