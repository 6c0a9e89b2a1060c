package webchat

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
)

// eventStream writes server-sent events, flushing after each frame.
type eventStream struct {
	mu    sync.Mutex
	w     io.Writer
	flush func()
}

func newEventStream(w http.ResponseWriter) *eventStream {
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	s := &eventStream{w: w}
	if f, ok := w.(http.Flusher); ok {
		s.flush = f.Flush
	}
	return s
}

func (s *eventStream) send(event string, data any) error {
	body, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("webchat: marshal %s event: %w", event, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event, body); err != nil {
		return err
	}
	if s.flush != nil {
		s.flush()
	}
	return nil
}
