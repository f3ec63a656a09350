package chat

import (
	"sync"

	"github.com/apex/log"
)

// Conversation owns the ordered message list and loading flag for one model
// pane. While loading is true at most one trailing assistant message is open
// and its content grows via ApplyDelta; once loading drops to false that
// message is final.
//
// Exactly one Session writes to a Conversation at a time, but the UI reads
// concurrently, so all state is mutex-guarded and Messages returns a snapshot.
type Conversation struct {
	mu       sync.Mutex
	messages []Message
	loading  bool
	openTurn bool
	notify   func()
}

// NewConversation creates a conversation seeded with a greeting message.
func NewConversation(seed Message) *Conversation {
	return &Conversation{messages: []Message{seed}}
}

// OnChange registers a hook invoked after every mutation. The UI uses it as
// its scroll-to-latest trigger. The hook runs outside the lock and must not
// block.
func (c *Conversation) OnChange(fn func()) {
	c.mu.Lock()
	c.notify = fn
	c.mu.Unlock()
}

// Append adds a message to the end of the conversation.
func (c *Conversation) Append(msg Message) {
	c.mu.Lock()
	c.messages = append(c.messages, msg)
	c.mu.Unlock()
	c.changed()
}

// BeginAssistantTurn opens a new empty assistant message for streaming.
// Call it exactly once per streaming request, before any delta.
func (c *Conversation) BeginAssistantTurn() {
	c.mu.Lock()
	c.messages = append(c.messages, Message{Role: RoleAssistant})
	c.openTurn = true
	c.mu.Unlock()
	c.changed()
}

// ApplyDelta extends the content of the open assistant turn.
func (c *Conversation) ApplyDelta(text string) {
	c.mu.Lock()
	if !c.openTurn || len(c.messages) == 0 {
		c.mu.Unlock()
		log.Warn("chat: delta with no open assistant turn dropped")
		return
	}
	c.messages[len(c.messages)-1].Content += text
	c.mu.Unlock()
	c.changed()
}

// SetLoading flips the loading flag. Dropping it to false finalizes the open
// assistant turn.
func (c *Conversation) SetLoading(v bool) {
	c.mu.Lock()
	c.loading = v
	if !v {
		c.openTurn = false
	}
	c.mu.Unlock()
	c.changed()
}

// Loading reports whether a stream is in flight for this conversation.
func (c *Conversation) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

// Messages returns a snapshot of the conversation.
func (c *Conversation) Messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Len returns the number of messages.
func (c *Conversation) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.messages)
}

// Reset replaces the conversation with a single seed message and clears the
// loading flag.
func (c *Conversation) Reset(seed Message) {
	c.mu.Lock()
	c.messages = []Message{seed}
	c.loading = false
	c.openTurn = false
	c.mu.Unlock()
	c.changed()
}

func (c *Conversation) changed() {
	c.mu.Lock()
	fn := c.notify
	c.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// AnyLoading folds the loading flags of several conversations into the
// combined indicator shown next to the broadcast input. The combined state is
// always derived, never stored.
func AnyLoading(convs ...*Conversation) bool {
	for _, c := range convs {
		if c.Loading() {
			return true
		}
	}
	return false
}
