package relay

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/compose-network/token-bridge/internal/messaging"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/holiman/uint256"
)

type Direction string

const (
	ToL2 Direction = "l1_to_l2"
	ToL1 Direction = "l2_to_l1"
)

var ErrMalformedEnvelope = errors.New("malformed envelope")

// Envelope carries one message across a transport. Its ID is what the
// receiving side de-duplicates on.
type Envelope struct {
	ID        string
	Direction Direction
	ToL2      *messaging.MessageToL2
	ToL1      *messaging.MessageToL1
}

func NewL2Envelope(msg messaging.MessageToL2) Envelope {
	m := msg.Clone()
	return Envelope{ID: uuid.NewString(), Direction: ToL2, ToL2: &m}
}

func NewL1Envelope(msg messaging.MessageToL1) Envelope {
	m := msg.Clone()
	return Envelope{ID: uuid.NewString(), Direction: ToL1, ToL1: &m}
}

// Felts travel as decimal strings.
type wireEnvelope struct {
	ID        string    `json:"id"`
	Direction Direction `json:"direction"`
	ToL2      *wireToL2 `json:"to_l2,omitempty"`
	ToL1      *wireToL1 `json:"to_l1,omitempty"`
}

type wireToL2 struct {
	From     common.Address `json:"from"`
	To       string         `json:"to"`
	Selector string         `json:"selector"`
	Payload  []string       `json:"payload"`
	Nonce    uint64         `json:"nonce"`
}

type wireToL1 struct {
	From    string         `json:"from"`
	To      common.Address `json:"to"`
	Payload []string       `json:"payload"`
}

func (e Envelope) MarshalJSON() ([]byte, error) {
	w := wireEnvelope{ID: e.ID, Direction: e.Direction}
	if e.ToL2 != nil {
		w.ToL2 = &wireToL2{From: e.ToL2.FromAddress, To: e.ToL2.ToAddress.Dec(), Selector: e.ToL2.Selector.Dec(),
			Payload: decimals(e.ToL2.Payload), Nonce: e.ToL2.Nonce}
	}
	if e.ToL1 != nil {
		w.ToL1 = &wireToL1{From: e.ToL1.FromAddress.Dec(), To: e.ToL1.ToAddress, Payload: decimals(e.ToL1.Payload)}
	}
	return json.Marshal(w)
}

func (e *Envelope) UnmarshalJSON(data []byte) error {
	var w wireEnvelope
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if w.ID == "" {
		return fmt.Errorf("%w: missing id", ErrMalformedEnvelope)
	}
	out := Envelope{ID: w.ID, Direction: w.Direction}
	switch w.Direction {
	case ToL2:
		if w.ToL2 == nil {
			return fmt.Errorf("%w: missing l1 -> l2 message", ErrMalformedEnvelope)
		}
		to, err := uint256.FromDecimal(w.ToL2.To)
		if err != nil {
			return fmt.Errorf("%w: to: %w", ErrMalformedEnvelope, err)
		}
		selector, err := uint256.FromDecimal(w.ToL2.Selector)
		if err != nil {
			return fmt.Errorf("%w: selector: %w", ErrMalformedEnvelope, err)
		}
		payload, err := felts(w.ToL2.Payload)
		if err != nil {
			return err
		}
		out.ToL2 = &messaging.MessageToL2{FromAddress: w.ToL2.From, ToAddress: to, Selector: selector, Payload: payload, Nonce: w.ToL2.Nonce}
	case ToL1:
		if w.ToL1 == nil {
			return fmt.Errorf("%w: missing l2 -> l1 message", ErrMalformedEnvelope)
		}
		from, err := uint256.FromDecimal(w.ToL1.From)
		if err != nil {
			return fmt.Errorf("%w: from: %w", ErrMalformedEnvelope, err)
		}
		payload, err := felts(w.ToL1.Payload)
		if err != nil {
			return err
		}
		out.ToL1 = &messaging.MessageToL1{FromAddress: from, ToAddress: w.ToL1.To, Payload: payload}
	default:
		return fmt.Errorf("%w: unknown direction %q", ErrMalformedEnvelope, w.Direction)
	}
	*e = out
	return nil
}

func decimals(vs []*uint256.Int) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = v.Dec()
	}
	return out
}

func felts(vs []string) ([]*uint256.Int, error) {
	out := make([]*uint256.Int, len(vs))
	for i, s := range vs {
		v, err := uint256.FromDecimal(s)
		if err != nil {
			return nil, fmt.Errorf("%w: payload[%d]: %w", ErrMalformedEnvelope, i, err)
		}
		out[i] = v
	}
	return out, nil
}
