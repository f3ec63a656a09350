package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/apex/log"
	"github.com/google/uuid"

	"github.com/mlpierce22/triplechat/internal/sse"
)

// DefaultCharLimit bounds the cumulative content length of the history sent
// with one request.
const DefaultCharLimit = 12000

// RequestFailedError reports a non-success response status from the relay.
// No assistant content has been added when it is returned.
type RequestFailedError struct {
	Endpoint string
	Status   int
}

func (e *RequestFailedError) Error() string {
	return fmt.Sprintf("request to %s failed with status %d", e.Endpoint, e.Status)
}

// StreamAbortedError reports a transport failure before or during the stream
// pump. Deltas applied before the failure remain in the conversation.
type StreamAbortedError struct {
	Endpoint string
	Err      error
}

func (e *StreamAbortedError) Error() string {
	return fmt.Sprintf("stream from %s aborted: %v", e.Endpoint, e.Err)
}

func (e *StreamAbortedError) Unwrap() error {
	return e.Err
}

// chatRequest is the JSON body sent to a relay endpoint.
type chatRequest struct {
	Messages []Message `json:"messages"`
}

// Session drives one streaming request against one relay endpoint and applies
// the resulting deltas to its Conversation. A Session may be reused for
// consecutive sends, but never concurrently.
type Session struct {
	Endpoint  string
	Conv      *Conversation
	Client    *http.Client
	CharLimit int
}

// NewSession binds an endpoint URL to a conversation.
func NewSession(endpoint string, conv *Conversation) *Session {
	return &Session{
		Endpoint:  endpoint,
		Conv:      conv,
		Client:    http.DefaultClient,
		CharLimit: DefaultCharLimit,
	}
}

// Send appends msg to the conversation and streams the reply into it.
func (s *Session) Send(ctx context.Context, msg Message) error {
	return s.send(ctx, msg, false)
}

// SendAppended behaves like Send for a message the caller already appended.
// The fan-out path uses it to avoid double insertion.
func (s *Session) SendAppended(ctx context.Context, msg Message) error {
	return s.send(ctx, msg, true)
}

func (s *Session) send(ctx context.Context, msg Message, appended bool) error {
	entry := log.WithField("endpoint", s.Endpoint).WithField("request_id", uuid.NewString())

	if !appended {
		s.Conv.Append(msg)
	}
	s.Conv.SetLoading(true)

	history := TrimHistory(s.Conv.Messages(), s.charLimit())
	body, err := json.Marshal(chatRequest{Messages: history})
	if err != nil {
		s.Conv.SetLoading(false)
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.Endpoint, bytes.NewReader(body))
	if err != nil {
		s.Conv.SetLoading(false)
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := s.client().Do(req)
	if err != nil {
		s.Conv.SetLoading(false)
		entry.WithError(err).Error("chat: request transport failure")
		return &StreamAbortedError{Endpoint: s.Endpoint, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		s.Conv.SetLoading(false)
		entry.WithField("status", resp.StatusCode).Error("chat: request failed")
		return &RequestFailedError{Endpoint: s.Endpoint, Status: resp.StatusCode}
	}

	s.Conv.BeginAssistantTurn()

	dec := sse.NewDecoder(resp.Body)
	for {
		frame, err := dec.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			s.Conv.SetLoading(false)
			entry.WithError(err).Error("chat: stream aborted")
			return &StreamAbortedError{Endpoint: s.Endpoint, Err: err}
		}
		if frame.Done {
			break
		}
		if frame.Text != "" {
			s.Conv.ApplyDelta(frame.Text)
		}
	}
	if n := dec.ParseErrors(); n > 0 {
		entry.WithField("count", n).Warn("chat: frames skipped due to parse errors")
	}

	// Finalizes the turn and fires the scroll trigger.
	s.Conv.SetLoading(false)
	return nil
}

func (s *Session) client() *http.Client {
	if s.Client != nil {
		return s.Client
	}
	return http.DefaultClient
}

func (s *Session) charLimit() int {
	if s.CharLimit > 0 {
		return s.CharLimit
	}
	return DefaultCharLimit
}

// TrimHistory takes messages from the start of the history while the running
// content length stays within limit. The first message that would cross the
// limit, and everything after it, is omitted.
func TrimHistory(messages []Message, limit int) []Message {
	var total int
	out := make([]Message, 0, len(messages))
	for _, msg := range messages {
		if total+len(msg.Content) > limit {
			break
		}
		total += len(msg.Content)
		out = append(out, msg)
	}
	return out
}
