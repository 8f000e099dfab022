package mailer

import (
	"context"
	"fmt"
	"sync"

	"github.com/cadencehq/cadence/pkg/protocol"
)

// Sandbox records messages instead of delivering them. Used in tests and
// local development.
type Sandbox struct {
	mu       sync.Mutex
	messages []protocol.EmailMessage
}

func NewSandbox() *Sandbox {
	return &Sandbox{}
}

func (s *Sandbox) Send(_ context.Context, message protocol.EmailMessage) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages = append(s.messages, message)

	return fmt.Sprintf("sandbox-%d", len(s.messages)), nil
}

// Messages returns a copy of everything sent so far.
func (s *Sandbox) Messages() []protocol.EmailMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]protocol.EmailMessage, len(s.messages))
	copy(out, s.messages)

	return out
}
