package l1bridge

import (
	"errors"
	"fmt"

	"github.com/compose-network/token-bridge/internal/events"
	"github.com/compose-network/token-bridge/internal/limiter"
	"github.com/compose-network/token-bridge/internal/messaging"
	"github.com/compose-network/token-bridge/internal/token"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// withdrawalPayloads lists the payload shapes a withdrawal of t may arrive in,
// token-aware first.
func (b *TokenBridge) withdrawalPayloads(t, recipient common.Address, amount *uint256.Int) [][]*uint256.Int {
	legacy := messaging.WithdrawalPayload{Recipient: recipient, Amount: amount}.Encode()
	if b.cfg.Mode == Legacy {
		return [][]*uint256.Int{legacy}
	}
	aware := messaging.WithdrawalPayload{Recipient: recipient, Token: &t, Amount: amount}.Encode()
	if t == b.cfg.LegacyToken {
		return [][]*uint256.Int{aware, legacy}
	}
	return [][]*uint256.Int{aware}
}

// Withdraw releases amount of t to recipient against a withdrawal message from
// L2. The message is the only authorization; anyone may submit it. A zero
// recipient means the caller.
func (b *TokenBridge) Withdraw(caller, t common.Address, amount *uint256.Int, recipient common.Address) error {
	if recipient == (common.Address{}) {
		recipient = caller
	}
	if recipient == (common.Address{}) {
		return ErrInvalidRecipient
	}
	if amount == nil {
		return messaging.ErrInvalidMessageToConsume
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.checkLegacyToken(t); err != nil {
		return err
	}
	if b.l2Bridge == nil {
		return ErrNotActiveYet
	}

	var payload []*uint256.Int
	for _, p := range b.withdrawalPayloads(t, recipient, amount) {
		msg := messaging.MessageToL1{FromAddress: b.l2Bridge, ToAddress: b.cfg.Address, Payload: p}
		if b.deps.Channel.L2ToL1Messages(msg.Hash()) > 0 {
			payload = p
			break
		}
	}
	if payload == nil {
		return messaging.ErrInvalidMessageToConsume
	}

	balance := b.deps.Custody.Balance(t)
	if balance.Lt(amount) {
		return fmt.Errorf("%w: bridge balance %s, withdrawal %s", token.ErrInsufficientBalance, balance.Dec(), amount.Dec())
	}
	if b.deps.Limiter != nil {
		if err := b.deps.Limiter.Consume(t, amount, balance); err != nil {
			if errors.Is(err, limiter.ErrExceedsWithdrawLimit) {
				b.deps.Metrics.RecordLimiterRejection(t)
			}
			return err
		}
	}

	if _, err := b.deps.Channel.ConsumeMessageFromL2(b.cfg.Address, b.l2Bridge, payload); err != nil {
		b.refundAllowance(t, amount)
		return err
	}
	if err := b.deps.Custody.Push(t, recipient, amount); err != nil {
		b.logger.With("token", t.Hex()).With("recipient", recipient.Hex()).With("err", err).Error("failed to release withdrawal")
		return fmt.Errorf("failed to release withdrawal: %w", err)
	}
	if b.cfg.Mode == MultiToken {
		b.checkDeploymentStatus(t)
	}

	b.emit(events.Withdrawal{Recipient: recipient, Token: b.tokenRef(t), Amount: new(uint256.Int).Set(amount)})
	b.deps.Metrics.RecordWithdrawal(t, amount, b.deps.Custody.Balance(t))
	b.logger.With("token", t.Hex()).With("recipient", recipient.Hex()).With("amount", amount.Dec()).Debug("withdrawal released")
	return nil
}

func (b *TokenBridge) refundAllowance(t common.Address, amount *uint256.Int) {
	if b.deps.Limiter != nil {
		b.deps.Limiter.Refund(t, amount)
	}
}
