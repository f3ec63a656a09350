package chat

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mlpierce22/triplechat/internal/sse"
)

// sseServer responds to every POST with the given chunks followed by [DONE].
// It records the request bodies it receives.
func sseServer(t *testing.T, chunks ...sse.Chunk) (*httptest.Server, *[]chatRequest) {
	t.Helper()
	var seen []chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		seen = append(seen, req)

		sw := sse.NewWriter(w)
		for _, c := range chunks {
			if err := sw.WriteChunk(c); err != nil {
				t.Errorf("write chunk: %v", err)
			}
		}
		if err := sw.WriteDone(); err != nil {
			t.Errorf("write done: %v", err)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &seen
}

func TestSessionSendStreamsReply(t *testing.T) {
	srv, seen := sseServer(t,
		sse.Chunk{Text: "Hel"},
		sse.Chunk{Text: "lo"},
		sse.Chunk{Text: " there"},
	)

	conv := NewConversation(NewAssistantMessage("hi"))
	sess := NewSession(srv.URL, conv)

	if err := sess.Send(t.Context(), NewUserMessage("say hello")); err != nil {
		t.Fatalf("Send: %v", err)
	}

	msgs := conv.Messages()
	if len(msgs) != 3 {
		t.Fatalf("len(messages) = %d, want 3", len(msgs))
	}
	if msgs[1].Role != RoleUser || msgs[1].Content != "say hello" {
		t.Errorf("user message = %+v", msgs[1])
	}
	if msgs[2].Role != RoleAssistant || msgs[2].Content != "Hello there" {
		t.Errorf("assistant message = %+v", msgs[2])
	}
	if conv.Loading() {
		t.Error("loading should be false after the stream ends")
	}

	if len(*seen) != 1 {
		t.Fatalf("server saw %d requests, want 1", len(*seen))
	}
	got := (*seen)[0].Messages
	if len(got) != 2 || got[1].Content != "say hello" {
		t.Errorf("request history = %+v", got)
	}
}

func TestSessionNonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	conv := NewConversation(NewAssistantMessage("hi"))
	sess := NewSession(srv.URL, conv)

	err := sess.Send(t.Context(), NewUserMessage("q"))
	var reqErr *RequestFailedError
	if !errors.As(err, &reqErr) {
		t.Fatalf("err = %v, want *RequestFailedError", err)
	}
	if reqErr.Status != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", reqErr.Status)
	}

	// The user message stays, but no assistant turn was opened.
	msgs := conv.Messages()
	if len(msgs) != 2 || msgs[1].Role != RoleUser {
		t.Errorf("messages = %+v, want greeting + user only", msgs)
	}
	if conv.Loading() {
		t.Error("loading should settle after a failed request")
	}
}

func TestSessionDoneOnlyStream(t *testing.T) {
	srv, _ := sseServer(t)

	conv := NewConversation(NewAssistantMessage("hi"))
	sess := NewSession(srv.URL, conv)

	if err := sess.Send(t.Context(), NewUserMessage("q")); err != nil {
		t.Fatalf("Send: %v", err)
	}
	msgs := conv.Messages()
	last := msgs[len(msgs)-1]
	if last.Role != RoleAssistant || last.Content != "" {
		t.Errorf("last message = %+v, want empty assistant turn", last)
	}
}

func TestSessionToleratesMalformedFrame(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"text\": \"ok\"}\n\ndata: {not json}\n\ndata: {\"text\": \"!\"}\n\ndata: [DONE]\n\n")
	}))
	defer srv.Close()

	conv := NewConversation(NewAssistantMessage("hi"))
	sess := NewSession(srv.URL, conv)

	if err := sess.Send(t.Context(), NewUserMessage("q")); err != nil {
		t.Fatalf("Send: %v", err)
	}
	msgs := conv.Messages()
	if got := msgs[len(msgs)-1].Content; got != "ok!" {
		t.Errorf("content = %q, want %q", got, "ok!")
	}
}

func TestSessionTransportAbortKeepsPartial(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Promise more bytes than are written so the client sees an
		// unexpected EOF mid stream.
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Content-Length", "4096")
		io.WriteString(w, "data: {\"text\": \"partial\"}\n\n")
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
	}))
	defer srv.Close()

	conv := NewConversation(NewAssistantMessage("hi"))
	sess := NewSession(srv.URL, conv)

	err := sess.Send(t.Context(), NewUserMessage("q"))
	var abortErr *StreamAbortedError
	if !errors.As(err, &abortErr) {
		t.Fatalf("err = %v, want *StreamAbortedError", err)
	}

	msgs := conv.Messages()
	if got := msgs[len(msgs)-1].Content; got != "partial" {
		t.Errorf("content = %q, want the partial text preserved", got)
	}
	if conv.Loading() {
		t.Error("loading should settle after an aborted stream")
	}
}

func TestSessionSendAppendedSkipsInsert(t *testing.T) {
	srv, _ := sseServer(t, sse.Chunk{Text: "reply"})

	conv := NewConversation(NewAssistantMessage("hi"))
	sess := NewSession(srv.URL, conv)

	msg := NewUserMessage("q")
	conv.Append(msg)
	if err := sess.SendAppended(t.Context(), msg); err != nil {
		t.Fatalf("SendAppended: %v", err)
	}

	msgs := conv.Messages()
	if len(msgs) != 3 {
		t.Fatalf("len(messages) = %d, want 3 (no double insert)", len(msgs))
	}
}

func TestSessionTrimsHistoryBeforeSend(t *testing.T) {
	srv, seen := sseServer(t, sse.Chunk{Text: "ok"})

	conv := NewConversation(NewAssistantMessage(strings.Repeat("a", 30)))
	conv.Append(NewUserMessage(strings.Repeat("b", 80)))
	sess := NewSession(srv.URL, conv)
	sess.CharLimit = 40

	if err := sess.Send(t.Context(), NewUserMessage("q")); err != nil {
		t.Fatalf("Send: %v", err)
	}
	got := (*seen)[0].Messages
	if len(got) != 1 || got[0].Content != strings.Repeat("a", 30) {
		t.Errorf("sent history = %+v, want only the first message", got)
	}
}

func TestTrimHistory(t *testing.T) {
	msgs := []Message{
		NewUserMessage("aaaa"),
		NewAssistantMessage("bbbb"),
		NewUserMessage("cccc"),
	}
	cases := []struct {
		name  string
		limit int
		want  int
	}{
		{"all fit", 12, 3},
		{"exact boundary", 8, 2},
		{"one over", 7, 1},
		{"nothing fits", 3, 0},
		{"zero limit", 0, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := TrimHistory(msgs, tc.limit)
			if len(got) != tc.want {
				t.Errorf("len = %d, want %d", len(got), tc.want)
			}
			for i := range got {
				if got[i] != msgs[i] {
					t.Errorf("message %d = %+v, want %+v", i, got[i], msgs[i])
				}
			}
		})
	}
}
