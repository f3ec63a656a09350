package chat

import (
	"context"
	"sync"
)

// Fanout broadcasts one user message to several sessions as a single logical
// action. Sessions are independent: one failing does not cancel or roll back
// the others.
type Fanout struct {
	Sessions []*Session
}

func NewFanout(sessions ...*Session) *Fanout {
	return &Fanout{Sessions: sessions}
}

// Broadcast appends msg exactly once to every conversation, marks them all
// loading, then runs every session concurrently. It blocks until every
// session has settled and returns the per-session results, indexed like
// Sessions (nil for success).
//
// The combined loading indicator is not tracked here; callers derive it with
// AnyLoading over the conversations.
func (f *Fanout) Broadcast(ctx context.Context, msg Message) []error {
	// Appends and loading flags are set synchronously before any network
	// activity so the combined indicator is already true when Broadcast
	// returns control to the scheduler.
	for _, sess := range f.Sessions {
		sess.Conv.Append(msg)
		sess.Conv.SetLoading(true)
	}

	errs := make([]error, len(f.Sessions))
	var wg sync.WaitGroup
	for i, sess := range f.Sessions {
		wg.Add(1)
		go func(i int, sess *Session) {
			defer wg.Done()
			errs[i] = sess.SendAppended(ctx, msg)
		}(i, sess)
	}
	wg.Wait()
	return errs
}

// Conversations returns the conversations targeted by this fan-out, in
// session order.
func (f *Fanout) Conversations() []*Conversation {
	out := make([]*Conversation, len(f.Sessions))
	for i, sess := range f.Sessions {
		out[i] = sess.Conv
	}
	return out
}

// Loading reports whether any targeted session is still streaming.
func (f *Fanout) Loading() bool {
	return AnyLoading(f.Conversations()...)
}
