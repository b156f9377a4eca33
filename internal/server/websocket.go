package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"nhooyr.io/websocket"
)

// handleBatchStream upgrades to a websocket and relays every progress frame
// for batchId until the sweep finishes or the client disconnects. The
// current status is sent immediately so a late subscriber isn't left
// waiting for the next tick.
func (s *Server) handleBatchStream(w http.ResponseWriter, r *http.Request) {
	batchID := chi.URLParam(r, "batchId")

	status, ok := s.jobs.status(batchID)
	if !ok {
		http.Error(w, "unknown batch id", http.StatusNotFound)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: []string{"*"}})
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket accept failed")
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	ctx := r.Context()

	if err := writeStatus(ctx, conn, status); err != nil {
		return
	}
	if status.Done {
		return
	}

	ch, unsubscribe, ok := s.jobs.subscribe(batchID)
	if !ok {
		return
	}
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, open := <-ch:
			if !open {
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := conn.Write(writeCtx, websocket.MessageText, msg)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

func writeStatus(ctx context.Context, conn *websocket.Conn, status batchJobStatus) error {
	writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	data, err := json.Marshal(status)
	if err != nil {
		return err
	}
	return conn.Write(writeCtx, websocket.MessageText, data)
}
