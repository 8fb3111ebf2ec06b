package inspect

import (
	"fmt"
	"sort"
	"strings"

	"github.com/compose-network/token-bridge/internal/felt"
	"github.com/compose-network/token-bridge/internal/messaging"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

type (
	L1ToL2Args struct {
		From     string
		To       string
		Selector string
		Nonce    uint64
		Payload  []string
	}

	L2ToL1Args struct {
		From    string
		To      string
		Payload []string
	}

	NamedSelector struct {
		Name  string
		Value *uint256.Int
	}
)

// HashL1ToL2 computes the core's key for an L1 -> L2 message.
func HashL1ToL2(a L1ToL2Args) (common.Hash, error) {
	if !common.IsHexAddress(a.From) {
		return common.Hash{}, fmt.Errorf("invalid l1 address %q", a.From)
	}
	to, err := parseFelt(a.To)
	if err != nil {
		return common.Hash{}, err
	}
	selector, err := parseSelector(a.Selector)
	if err != nil {
		return common.Hash{}, err
	}
	payload, err := parseFelts(a.Payload)
	if err != nil {
		return common.Hash{}, err
	}
	return messaging.MessageToL2{
		FromAddress: common.HexToAddress(a.From),
		ToAddress:   to,
		Selector:    selector,
		Payload:     payload,
		Nonce:       a.Nonce,
	}.Hash(), nil
}

// HashL2ToL1 computes the core's key for an L2 -> L1 message.
func HashL2ToL1(a L2ToL1Args) (common.Hash, error) {
	from, err := parseFelt(a.From)
	if err != nil {
		return common.Hash{}, err
	}
	if !common.IsHexAddress(a.To) {
		return common.Hash{}, fmt.Errorf("invalid l1 address %q", a.To)
	}
	payload, err := parseFelts(a.Payload)
	if err != nil {
		return common.Hash{}, err
	}
	return messaging.MessageToL1{FromAddress: from, ToAddress: common.HexToAddress(a.To), Payload: payload}.Hash(), nil
}

// Selectors returns the bridge's L2 entry points sorted by name.
func Selectors() []NamedSelector {
	out := make([]NamedSelector, 0, len(messaging.Selectors()))
	for name, v := range messaging.Selectors() {
		out = append(out, NamedSelector{Name: name, Value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Split returns the low and high 128-bit limbs an amount travels as.
func Split(amount string) (low, high *uint256.Int, err error) {
	v, err := parseFelt(amount)
	if err != nil {
		return nil, nil, err
	}
	low, high = felt.SplitUint256(v)
	return low, high, nil
}

// Withdrawal decodes an L2 -> L1 withdrawal payload. The shape is picked by
// length.
func Withdrawal(payload []string) (messaging.WithdrawalPayload, error) {
	felts, err := parseFelts(payload)
	if err != nil {
		return messaging.WithdrawalPayload{}, err
	}
	w, err := messaging.DecodeWithdrawal(felts)
	if err != nil {
		return messaging.WithdrawalPayload{}, fmt.Errorf("failed to decode withdrawal: %w", err)
	}
	return w, nil
}

// parseSelector accepts an entry point name or a raw felt.
func parseSelector(s string) (*uint256.Int, error) {
	if v, ok := messaging.Selectors()[s]; ok {
		return v, nil
	}
	v, err := parseFelt(s)
	if err != nil {
		return nil, fmt.Errorf("unknown selector %q", s)
	}
	return v, nil
}

func parseFelts(ss []string) ([]*uint256.Int, error) {
	out := make([]*uint256.Int, len(ss))
	for i, s := range ss {
		v, err := parseFelt(s)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func parseFelt(s string) (*uint256.Int, error) {
	s = strings.TrimSpace(s)
	var (
		v   *uint256.Int
		err error
	)
	if strings.HasPrefix(s, "0x") {
		v, err = uint256.FromHex(s)
	} else {
		v, err = uint256.FromDecimal(s)
	}
	if err != nil {
		return nil, fmt.Errorf("invalid felt %q: %w", s, err)
	}
	return v, nil
}
