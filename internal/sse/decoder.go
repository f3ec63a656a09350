package sse

import (
	"encoding/json"
	"io"
	"regexp"
	"strings"

	"github.com/apex/log"
)

// Frame is one decoded unit of the streaming protocol: either a text delta
// or the [DONE] termination sentinel.
type Frame struct {
	Done bool
	Text string
}

// Chunk is the JSON payload carried inside a data frame. The relay emits
// either a text delta or an error description, never both.
type Chunk struct {
	Text  string `json:"text,omitempty"`
	Error string `json:"error,omitempty"`
}

const dataPrefix = "data: "

const doneSentinel = "[DONE]"

// Events are separated by a blank line; carriage returns are optional on
// either side so both \n\n and \r\n\r\n endpoints decode the same way.
var frameDelim = regexp.MustCompile(`\r?\n\r?\n`)

// Decoder incrementally parses a text/event-stream body into Frames.
// It buffers raw bytes between reads, so chunk boundaries may fall anywhere,
// including inside a multi-byte character or the blank-line delimiter.
// A Decoder is single-use: once the underlying reader is drained it only
// returns io.EOF.
type Decoder struct {
	r         io.Reader
	buf       []byte
	read      []byte
	pending   []Frame
	eof       bool
	err       error
	parseErrs int
}

func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{
		r:    r,
		read: make([]byte, 4096),
	}
}

// Next returns the next frame from the stream. It returns io.EOF when the
// underlying byte stream ends, or the transport error that interrupted it.
func (d *Decoder) Next() (Frame, error) {
	for {
		if len(d.pending) > 0 {
			frame := d.pending[0]
			d.pending = d.pending[1:]
			return frame, nil
		}
		if d.err != nil {
			return Frame{}, d.err
		}
		if d.eof {
			return Frame{}, io.EOF
		}

		n, err := d.r.Read(d.read)
		if n > 0 {
			d.buf = append(d.buf, d.read[:n]...)
			d.split()
		}
		if err == io.EOF {
			// A trailing segment with no closing delimiter is a truncated
			// frame and is dropped.
			d.eof = true
			continue
		}
		if err != nil {
			// Frames already delimited in this read are delivered first;
			// the transport error surfaces once the queue is empty.
			d.err = err
		}
	}
}

// ParseErrors reports how many data frames carried unparseable payloads.
func (d *Decoder) ParseErrors() int {
	return d.parseErrs
}

// split consumes every fully-delimited segment from the buffer, keeping the
// final (possibly incomplete) segment for the next read.
func (d *Decoder) split() {
	parts := frameDelim.Split(string(d.buf), -1)
	d.buf = append(d.buf[:0], parts[len(parts)-1]...)
	for _, seg := range parts[:len(parts)-1] {
		d.decodeSegment(seg)
	}
}

func (d *Decoder) decodeSegment(seg string) {
	seg = strings.TrimSpace(seg)
	if seg == "" {
		return
	}
	// Comments, keepalives and event-type lines are expected noise.
	if !strings.HasPrefix(seg, dataPrefix) {
		return
	}

	payload := seg[len(dataPrefix):]
	if payload == doneSentinel {
		d.pending = append(d.pending, Frame{Done: true})
		return
	}

	var chunk Chunk
	if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
		d.parseErrs++
		log.WithError(err).WithField("payload", payload).Warn("sse: unparseable data frame")
		d.pending = append(d.pending, Frame{})
		return
	}
	if chunk.Error != "" {
		log.WithField("error", chunk.Error).Warn("sse: upstream error frame")
	}
	d.pending = append(d.pending, Frame{Text: chunk.Text})
}
