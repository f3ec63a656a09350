package llm

import (
	"context"
	"io"
)

// pipe adapts a producer goroutine to the Stream interface. Producers push
// text deltas only; the pipe appends the terminal event itself, EventDone
// when the producer returns nil and EventError when it returns an error.
// After the terminal event has been received Recv only reports io.EOF.
type pipe struct {
	ctx      context.Context
	cancel   context.CancelFunc
	events   chan Event
	finished bool
}

// startStream launches produce on its own goroutine and returns the stream
// it feeds. Closing the stream cancels the producer's context.
func startStream(ctx context.Context, produce func(context.Context, chan<- Event) error) Stream {
	ctx, cancel := context.WithCancel(ctx)
	p := &pipe{ctx: ctx, cancel: cancel, events: make(chan Event, 16)}
	go func() {
		defer close(p.events)
		terminal := Event{Type: EventDone}
		if err := produce(ctx, p.events); err != nil {
			terminal = Event{Type: EventError, Err: err}
		}
		select {
		case p.events <- terminal:
		case <-ctx.Done():
		}
	}()
	return p
}

func (p *pipe) Recv() (Event, error) {
	if p.finished {
		return Event{}, io.EOF
	}
	// Buffered events win over cancellation so deltas produced before a
	// cancel are not dropped.
	select {
	case event, ok := <-p.events:
		return p.deliver(event, ok)
	default:
	}

	select {
	case <-p.ctx.Done():
		return Event{}, p.ctx.Err()
	case event, ok := <-p.events:
		return p.deliver(event, ok)
	}
}

func (p *pipe) deliver(event Event, ok bool) (Event, error) {
	if !ok {
		p.finished = true
		return Event{}, io.EOF
	}
	if event.Type == EventDone || event.Type == EventError {
		p.finished = true
	}
	return event, nil
}

func (p *pipe) Close() error {
	p.cancel()
	return nil
}
