package llm

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/mlpierce22/triplechat/internal/chat"
)

// drain collects text deltas until the stream reports done, EOF, or an error
// event.
func drain(t *testing.T, s Stream) (string, error) {
	t.Helper()
	defer s.Close()
	var b strings.Builder
	for {
		event, err := s.Recv()
		if err == io.EOF {
			return b.String(), nil
		}
		if err != nil {
			return b.String(), err
		}
		switch event.Type {
		case EventTextDelta:
			b.WriteString(event.Text)
		case EventError:
			return b.String(), event.Err
		case EventDone:
			return b.String(), nil
		}
	}
}

func TestMockProviderStreamsInChunks(t *testing.T) {
	mock := NewMockProvider("test").AddTurn(MockTurn{Text: "Hello world", ChunkSize: 3})

	stream, err := mock.Stream(t.Context(), Request{Model: "m"})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}

	var deltas []string
	for {
		event, recvErr := stream.Recv()
		if recvErr == io.EOF || event.Type == EventDone {
			break
		}
		if recvErr != nil {
			t.Fatalf("Recv: %v", recvErr)
		}
		if event.Type == EventTextDelta {
			deltas = append(deltas, event.Text)
		}
	}
	stream.Close()

	if got := strings.Join(deltas, ""); got != "Hello world" {
		t.Errorf("joined deltas = %q, want %q", got, "Hello world")
	}
	if len(deltas) < 2 {
		t.Errorf("got %d deltas, want the text chunked", len(deltas))
	}
}

func TestMockProviderErrorTurn(t *testing.T) {
	scripted := errors.New("upstream refused")
	mock := NewMockProvider("test").AddError(scripted)

	stream, err := mock.Stream(t.Context(), Request{Model: "m"})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	_, err = drain(t, stream)
	if !errors.Is(err, scripted) {
		t.Errorf("err = %v, want the scripted error", err)
	}
}

func TestMockProviderUnscriptedRequest(t *testing.T) {
	mock := NewMockProvider("test")
	if _, err := mock.Stream(t.Context(), Request{Model: "m"}); err == nil {
		t.Error("expected an error for an unscripted request")
	}
}

func TestMockProviderRecordsRequests(t *testing.T) {
	mock := NewMockProvider("test").AddTextResponse("a").AddTextResponse("b")

	req := Request{
		Messages: []chat.Message{chat.NewUserMessage("q")},
		Model:    "test-model",
	}
	for i := 0; i < 2; i++ {
		stream, err := mock.Stream(t.Context(), req)
		if err != nil {
			t.Fatalf("Stream %d: %v", i, err)
		}
		if _, err := drain(t, stream); err != nil {
			t.Fatalf("drain %d: %v", i, err)
		}
	}

	if len(mock.Requests) != 2 {
		t.Fatalf("recorded %d requests, want 2", len(mock.Requests))
	}
	if mock.Requests[0].Model != "test-model" {
		t.Errorf("model = %q", mock.Requests[0].Model)
	}

	mock.Reset()
	if len(mock.Requests) != 0 {
		t.Error("Reset should clear recorded requests")
	}
}

func TestStreamCancelation(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	mock := NewMockProvider("test").AddTurn(MockTurn{Text: strings.Repeat("x", 4096), ChunkSize: 1})

	stream, err := mock.Stream(ctx, Request{Model: "m"})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if _, err := stream.Recv(); err != nil {
		t.Fatalf("first Recv: %v", err)
	}
	cancel()

	// The producer stops once the context is gone; Recv eventually surfaces
	// the cancelation or the stream end.
	for i := 0; i < 5000; i++ {
		if _, err := stream.Recv(); err != nil {
			if !errors.Is(err, context.Canceled) && err != io.EOF {
				t.Fatalf("Recv after cancel: %v", err)
			}
			return
		}
	}
	t.Error("stream never terminated after cancel")
}

func TestRequestSetDefaults(t *testing.T) {
	var req Request
	req.SetDefaults()
	if req.SystemPrompt != DefaultSystemPrompt {
		t.Errorf("system prompt = %q", req.SystemPrompt)
	}
	if req.MaxTokens != DefaultMaxTokens {
		t.Errorf("max tokens = %d", req.MaxTokens)
	}

	custom := Request{SystemPrompt: "stay terse", MaxTokens: 5}
	custom.SetDefaults()
	if custom.SystemPrompt != "stay terse" || custom.MaxTokens != 5 {
		t.Errorf("defaults overwrote explicit values: %+v", custom)
	}
}
