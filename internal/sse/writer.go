package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// Writer emits text/event-stream frames in the wire form the Decoder reads
// back: `data: <json>` blocks separated by blank lines, closed by [DONE].
type Writer struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewWriter prepares w for event streaming and returns a Writer. Streaming
// headers are set here, so it must be called before any body write.
func NewWriter(w http.ResponseWriter) *Writer {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, _ := w.(http.Flusher)
	return &Writer{w: w, flusher: flusher}
}

// WriteChunk marshals chunk and writes it as one data frame.
func (s *Writer) WriteChunk(chunk Chunk) error {
	data, err := json.Marshal(chunk)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", data); err != nil {
		return err
	}
	s.flush()
	return nil
}

// WriteDone terminates the stream with the [DONE] sentinel.
func (s *Writer) WriteDone() error {
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", doneSentinel); err != nil {
		return err
	}
	s.flush()
	return nil
}

func (s *Writer) flush() {
	if s.flusher != nil {
		s.flusher.Flush()
	}
}
