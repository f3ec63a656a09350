package chat

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mlpierce22/triplechat/internal/sse"
)

func newFanoutUnderTest(t *testing.T, urls ...string) *Fanout {
	t.Helper()
	sessions := make([]*Session, len(urls))
	for i, u := range urls {
		sessions[i] = NewSession(u, NewConversation(NewAssistantMessage("hi")))
	}
	return NewFanout(sessions...)
}

func TestBroadcastAppendsOncePerConversation(t *testing.T) {
	srv, _ := sseServer(t, sse.Chunk{Text: "reply"})
	f := newFanoutUnderTest(t, srv.URL, srv.URL, srv.URL)

	errs := f.Broadcast(t.Context(), NewUserMessage("q"))
	for i, err := range errs {
		if err != nil {
			t.Errorf("session %d: %v", i, err)
		}
	}

	for i, conv := range f.Conversations() {
		msgs := conv.Messages()
		if len(msgs) != 3 {
			t.Errorf("conversation %d has %d messages, want 3", i, len(msgs))
			continue
		}
		if msgs[1].Content != "q" || msgs[2].Content != "reply" {
			t.Errorf("conversation %d = %+v", i, msgs)
		}
	}
	if f.Loading() {
		t.Error("loading should be false once every session settled")
	}
}

func TestBroadcastIsolatesFailures(t *testing.T) {
	good, _ := sseServer(t, sse.Chunk{Text: "ok"})
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer bad.Close()

	f := newFanoutUnderTest(t, good.URL, bad.URL, good.URL)
	errs := f.Broadcast(t.Context(), NewUserMessage("q"))

	if errs[0] != nil || errs[2] != nil {
		t.Errorf("healthy sessions errored: %v, %v", errs[0], errs[2])
	}
	var reqErr *RequestFailedError
	if !errors.As(errs[1], &reqErr) {
		t.Fatalf("errs[1] = %v, want *RequestFailedError", errs[1])
	}

	convs := f.Conversations()
	if got := convs[0].Messages()[2].Content; got != "ok" {
		t.Errorf("healthy conversation content = %q, want %q", got, "ok")
	}
	// The failed pane keeps the user message but gains no assistant turn.
	if got := convs[1].Messages(); len(got) != 2 {
		t.Errorf("failed conversation has %d messages, want 2", len(got))
	}
}

func TestBroadcastLoadingUntilSlowestFinishes(t *testing.T) {
	release := make(chan struct{})
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		sw := sse.NewWriter(w)
		sw.WriteChunk(sse.Chunk{Text: "late"})
		sw.WriteDone()
	}))
	defer slow.Close()
	fast, _ := sseServer(t, sse.Chunk{Text: "early"})

	f := newFanoutUnderTest(t, fast.URL, slow.URL)

	done := make(chan []error, 1)
	go func() { done <- f.Broadcast(t.Context(), NewUserMessage("q")) }()

	// The fast session finishes but the combined indicator must stay up
	// while the slow one is in flight.
	deadline := time.After(2 * time.Second)
	for {
		convs := f.Conversations()
		if !convs[0].Loading() && len(convs[0].Messages()) == 3 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("fast session never settled")
		case <-time.After(5 * time.Millisecond):
		}
	}
	if !f.Loading() {
		t.Error("combined loading dropped before the slow session finished")
	}

	close(release)
	errs := <-done
	for i, err := range errs {
		if err != nil {
			t.Errorf("session %d: %v", i, err)
		}
	}
	if f.Loading() {
		t.Error("loading should be false after Broadcast returns")
	}
}
