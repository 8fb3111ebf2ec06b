package messaging

import (
	"sync"

	"github.com/compose-network/token-bridge/internal/felt"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Outbox queues L2 -> L1 messages until a relay moves them to the core.
type Outbox struct {
	mu       sync.Mutex
	messages []MessageToL1
}

func NewOutbox() *Outbox {
	return &Outbox{}
}

func (o *Outbox) SendMessageToL1(from *uint256.Int, to common.Address, payload []*uint256.Int) (MessageToL1, error) {
	msg := MessageToL1{FromAddress: new(uint256.Int).Set(from), ToAddress: to, Payload: felt.Clone(payload)}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.messages = append(o.messages, msg)
	return msg.Clone(), nil
}

func (o *Outbox) Pending() []MessageToL1 {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]MessageToL1, len(o.messages))
	for i, m := range o.messages {
		out[i] = m.Clone()
	}
	return out
}

// Take empties the queue.
func (o *Outbox) Take() []MessageToL1 {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := o.messages
	o.messages = nil
	return out
}

// Postman delivers queued messages in both directions synchronously.
type Postman struct {
	core   *Core
	outbox *Outbox
	l2     L2Handler
}

func NewPostman(core *Core, outbox *Outbox, l2 L2Handler) *Postman {
	return &Postman{core: core, outbox: outbox, l2: l2}
}

// Flush delivers every pending L1 -> L2 message and registers every queued
// L2 -> L1 message. Messages that fail to deliver (cancelled, rejected by the
// handler) are returned with their errors and dropped from the queue.
func (p *Postman) Flush() []DeliveryError {
	var failed []DeliveryError
	for _, msg := range p.core.TakePending() {
		if err := p.core.DeliverMessageToL2(msg, p.l2); err != nil {
			failed = append(failed, DeliveryError{Message: msg, Err: err})
		}
	}
	if p.outbox != nil {
		for _, msg := range p.outbox.Take() {
			p.core.SendMessageFromL2(msg)
		}
	}
	return failed
}

type DeliveryError struct {
	Message MessageToL2
	Err     error
}

func (e DeliveryError) Error() string {
	return "failed to deliver message " + e.Message.Hash().Hex() + ": " + e.Err.Error()
}

func (e DeliveryError) Unwrap() error { return e.Err }
