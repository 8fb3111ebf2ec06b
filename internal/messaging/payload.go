package messaging

import (
	"errors"
	"fmt"

	"github.com/compose-network/token-bridge/internal/felt"
	"github.com/compose-network/token-bridge/internal/token"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// WithdrawTag opens every withdrawal payload.
const WithdrawTag = 0

const (
	legacyWithdrawalLen = 4
	tokenWithdrawalLen  = 5
)

var (
	SelectorHandleDeposit                 = felt.Selector("handle_deposit")
	SelectorHandleDepositWithMessage      = felt.Selector("handle_deposit_with_message")
	SelectorHandleTokenDeposit            = felt.Selector("handle_token_deposit")
	SelectorHandleTokenDepositWithMessage = felt.Selector("handle_token_deposit_with_message")
	SelectorHandleTokenDeployment         = felt.Selector("handle_token_deployment")
)

var (
	ErrMalformedPayload   = errors.New("malformed payload")
	ErrInvalidWithdrawTag = errors.New("INVALID_WITHDRAW_TAG")
)

// Selectors lists the L2 entry points by name.
func Selectors() map[string]*uint256.Int {
	return map[string]*uint256.Int{
		"handle_deposit":                    SelectorHandleDeposit,
		"handle_deposit_with_message":       SelectorHandleDepositWithMessage,
		"handle_token_deposit":              SelectorHandleTokenDeposit,
		"handle_token_deposit_with_message": SelectorHandleTokenDepositWithMessage,
		"handle_token_deployment":           SelectorHandleTokenDeployment,
	}
}

// DepositPayload is the body of a deposit message. Token is nil for legacy
// single-token bridges; Sender and Message only travel with a message.
type DepositPayload struct {
	Token       *common.Address
	Recipient   *uint256.Int
	Amount      *uint256.Int
	WithMessage bool
	Sender      common.Address
	Message     []*uint256.Int
}

// Selector picks the L2 handler for the payload shape.
func (d DepositPayload) Selector() *uint256.Int {
	switch {
	case d.Token == nil && !d.WithMessage:
		return SelectorHandleDeposit
	case d.Token == nil:
		return SelectorHandleDepositWithMessage
	case !d.WithMessage:
		return SelectorHandleTokenDeposit
	default:
		return SelectorHandleTokenDepositWithMessage
	}
}

// Encode renders [token?, recipient, low, high] or, with a message,
// [token?, recipient, low, high, sender, len, ...message].
func (d DepositPayload) Encode() []*uint256.Int {
	var out []*uint256.Int
	if d.Token != nil {
		out = append(out, felt.AddressToFelt(*d.Token))
	}
	low, high := felt.SplitUint256(d.Amount)
	out = append(out, new(uint256.Int).Set(d.Recipient), low, high)
	if d.WithMessage {
		out = append(out, felt.AddressToFelt(d.Sender), uint256.NewInt(uint64(len(d.Message))))
		out = append(out, felt.Clone(d.Message)...)
	}
	return out
}

// DecodeDeposit parses a deposit payload of the shape selector names.
func DecodeDeposit(selector *uint256.Int, payload []*uint256.Int) (DepositPayload, error) {
	var d DepositPayload
	switch {
	case selector.Eq(SelectorHandleDeposit):
	case selector.Eq(SelectorHandleDepositWithMessage):
		d.WithMessage = true
	case selector.Eq(SelectorHandleTokenDeposit):
		d.Token = new(common.Address)
	case selector.Eq(SelectorHandleTokenDepositWithMessage):
		d.Token = new(common.Address)
		d.WithMessage = true
	default:
		return d, fmt.Errorf("%w: unknown deposit selector %s", ErrMalformedPayload, selector.Hex())
	}

	rest := payload
	if d.Token != nil {
		if len(rest) == 0 || !felt.IsValidL1Address(rest[0]) {
			return d, fmt.Errorf("%w: missing token", ErrMalformedPayload)
		}
		*d.Token = felt.FeltToAddress(rest[0])
		rest = rest[1:]
	}
	if len(rest) < 3 {
		return d, fmt.Errorf("%w: deposit needs 3 words, got %d", ErrMalformedPayload, len(rest))
	}
	amount, err := felt.JoinUint256(rest[1], rest[2])
	if err != nil {
		return d, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}
	d.Recipient = new(uint256.Int).Set(rest[0])
	d.Amount = amount
	rest = rest[3:]

	if !d.WithMessage {
		if len(rest) != 0 {
			return d, fmt.Errorf("%w: %d trailing words", ErrMalformedPayload, len(rest))
		}
		return d, nil
	}
	if len(rest) < 2 || !felt.IsValidL1Address(rest[0]) {
		return d, fmt.Errorf("%w: missing message header", ErrMalformedPayload)
	}
	d.Sender = felt.FeltToAddress(rest[0])
	n := rest[1]
	if !n.IsUint64() || n.Uint64() != uint64(len(rest)-2) {
		return d, fmt.Errorf("%w: message length %s does not match %d words", ErrMalformedPayload, n.Dec(), len(rest)-2)
	}
	d.Message = felt.Clone(rest[2:])
	return d, nil
}

// DeploymentPayload announces a newly enrolled token to L2.
type DeploymentPayload struct {
	Token    common.Address
	Metadata token.Metadata
}

func (d DeploymentPayload) Encode() ([]*uint256.Int, error) {
	name, err := felt.StrToFelt(d.Metadata.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to encode token name: %w", err)
	}
	symbol, err := felt.StrToFelt(d.Metadata.Symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to encode token symbol: %w", err)
	}
	return []*uint256.Int{felt.AddressToFelt(d.Token), name, symbol, uint256.NewInt(uint64(d.Metadata.Decimals))}, nil
}

func DecodeDeployment(payload []*uint256.Int) (DeploymentPayload, error) {
	if len(payload) != 4 {
		return DeploymentPayload{}, fmt.Errorf("%w: deployment needs 4 words, got %d", ErrMalformedPayload, len(payload))
	}
	if !felt.IsValidL1Address(payload[0]) {
		return DeploymentPayload{}, fmt.Errorf("%w: token out of range", ErrMalformedPayload)
	}
	if !payload[3].IsUint64() || payload[3].Uint64() > 255 {
		return DeploymentPayload{}, fmt.Errorf("%w: decimals out of range", ErrMalformedPayload)
	}
	return DeploymentPayload{
		Token: felt.FeltToAddress(payload[0]),
		Metadata: token.Metadata{
			Name:     felt.FeltToStr(payload[1]),
			Symbol:   felt.FeltToStr(payload[2]),
			Decimals: uint8(payload[3].Uint64()),
		},
	}, nil
}

// WithdrawalPayload is the body of an L2 -> L1 withdrawal. Token is nil in the
// legacy shape.
type WithdrawalPayload struct {
	Recipient common.Address
	Token     *common.Address
	Amount    *uint256.Int
}

// Encode renders [0, recipient, low, high] or [0, recipient, token, low, high].
func (w WithdrawalPayload) Encode() []*uint256.Int {
	low, high := felt.SplitUint256(w.Amount)
	out := []*uint256.Int{uint256.NewInt(WithdrawTag), felt.AddressToFelt(w.Recipient)}
	if w.Token != nil {
		out = append(out, felt.AddressToFelt(*w.Token))
	}
	return append(out, low, high)
}

// DecodeWithdrawal tells the two withdrawal shapes apart by length alone.
func DecodeWithdrawal(payload []*uint256.Int) (WithdrawalPayload, error) {
	var w WithdrawalPayload
	switch len(payload) {
	case legacyWithdrawalLen, tokenWithdrawalLen:
	default:
		return w, fmt.Errorf("%w: withdrawal has %d words", ErrMalformedPayload, len(payload))
	}
	if !payload[0].IsZero() {
		return w, ErrInvalidWithdrawTag
	}
	if !felt.IsValidL1Address(payload[1]) {
		return w, fmt.Errorf("%w: recipient out of range", ErrMalformedPayload)
	}
	w.Recipient = felt.FeltToAddress(payload[1])

	limbs := payload[2:]
	if len(payload) == tokenWithdrawalLen {
		if !felt.IsValidL1Address(payload[2]) {
			return w, fmt.Errorf("%w: token out of range", ErrMalformedPayload)
		}
		t := felt.FeltToAddress(payload[2])
		w.Token = &t
		limbs = payload[3:]
	}
	amount, err := felt.JoinUint256(limbs[0], limbs[1])
	if err != nil {
		return w, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}
	w.Amount = amount
	return w, nil
}
