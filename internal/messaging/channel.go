package messaging

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

var (
	ErrInvalidMessageToConsume   = errors.New("INVALID_MESSAGE_TO_CONSUME")
	ErrNoMessageToCancel         = errors.New("NO_MESSAGE_TO_CANCEL")
	ErrCancellationNotRequested  = errors.New("MESSAGE_CANCELLATION_NOT_REQUESTED")
	ErrCancellationNotAllowedYet = errors.New("MESSAGE_CANCELLATION_NOT_ALLOWED_YET")
	ErrFeeMustBePositive         = errors.New("L1_MSG_FEE_MUST_BE_GREATER_THAN_0")
	ErrMaxFeeExceeded            = errors.New("MAX_L1_MSG_FEE_EXCEEDED")
)

// L1Channel is the view L1 contracts have of the messaging core. The caller
// argument is always the contract invoking the core.
type L1Channel interface {
	// SendMessageToL2 registers a message, escrowing fee from caller. It returns the
	// message hash and the nonce assigned to it.
	SendMessageToL2(caller common.Address, to, selector *uint256.Int, payload []*uint256.Int, fee *uint256.Int) (common.Hash, uint64, error)
	// ConsumeMessageFromL2 consumes one copy of an L2 -> L1 message addressed to caller.
	ConsumeMessageFromL2(caller common.Address, from *uint256.Int, payload []*uint256.Int) (common.Hash, error)
	StartL1ToL2MessageCancellation(caller common.Address, to, selector *uint256.Int, payload []*uint256.Int, nonce uint64) (common.Hash, error)
	// CancelL1ToL2Message cancels a message whose cancellation delay elapsed and
	// refunds the escrowed fee to caller.
	CancelL1ToL2Message(caller common.Address, to, selector *uint256.Int, payload []*uint256.Int, nonce uint64) (common.Hash, *uint256.Int, error)

	// L1ToL2Messages returns fee+1 for a consumable message, 0 otherwise.
	L1ToL2Messages(hash common.Hash) *uint256.Int
	L2ToL1Messages(hash common.Hash) uint64
	CancellationDelay() uint64
	NextNonce() uint64
	MaxFee() *uint256.Int
}

// L2Channel is the view L2 contracts have of the messaging layer.
type L2Channel interface {
	SendMessageToL1(from *uint256.Int, to common.Address, payload []*uint256.Int) (MessageToL1, error)
}

// L2Handler receives L1 -> L2 messages on the L2 side.
type L2Handler interface {
	Handle(msg MessageToL2) error
}

type L2HandlerFunc func(msg MessageToL2) error

func (f L2HandlerFunc) Handle(msg MessageToL2) error { return f(msg) }
