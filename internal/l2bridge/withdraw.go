package l2bridge

import (
	"fmt"

	"github.com/compose-network/token-bridge/internal/events"
	"github.com/compose-network/token-bridge/internal/felt"
	"github.com/compose-network/token-bridge/internal/messaging"
	"github.com/compose-network/token-bridge/internal/token"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// InitiateWithdraw burns amount of the legacy token from caller and sends the
// withdrawal to L1 in the legacy payload shape.
func (b *Bridge) InitiateWithdraw(caller, l1Recipient, amount *uint256.Int) (messaging.MessageToL1, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.withdraw(caller, b.legacyToken, l1Recipient, amount, b.cfg.Legacy)
}

// InitiateTokenWithdraw burns amount of the token wrapping l1Token. Multi-token
// bridges send the token-aware payload.
func (b *Bridge) InitiateTokenWithdraw(caller *uint256.Int, l1Token common.Address, l1Recipient, amount *uint256.Int) (messaging.MessageToL1, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.withdraw(caller, l1Token, l1Recipient, amount, b.cfg.Legacy)
}

func (b *Bridge) withdraw(caller *uint256.Int, l1Token common.Address, l1Recipient, amount *uint256.Int, legacyShape bool) (messaging.MessageToL1, error) {
	if !felt.IsValidL1Address(l1Recipient) {
		return messaging.MessageToL1{}, ErrInvalidL1Recipient
	}
	if caller == nil || caller.IsZero() {
		return messaging.MessageToL1{}, token.ErrZeroAccount
	}
	if amount == nil {
		amount = new(uint256.Int)
	}
	if b.l1Bridge == (common.Address{}) {
		return messaging.MessageToL1{}, ErrL1BridgeNotSet
	}
	l2, err := b.token(l1Token)
	if err != nil {
		return messaging.MessageToL1{}, err
	}

	recipient := felt.FeltToAddress(l1Recipient)
	p := messaging.WithdrawalPayload{Recipient: recipient, Amount: new(uint256.Int).Set(amount)}
	if !legacyShape {
		p.Token = &l1Token
	}

	if err := l2.Burn(b.cfg.Address, caller, amount); err != nil {
		return messaging.MessageToL1{}, err
	}
	msg, err := b.channel.SendMessageToL1(b.cfg.Address, b.l1Bridge, p.Encode())
	if err != nil {
		if merr := l2.Mint(b.cfg.Address, caller, amount); merr != nil {
			b.logger.With("caller", caller.Hex()).With("err", merr).Error("failed to restore burned withdrawal")
		}
		return messaging.MessageToL1{}, fmt.Errorf("failed to send withdrawal message: %w", err)
	}

	b.emit(events.WithdrawInitiated{L1Recipient: recipient, Amount: new(uint256.Int).Set(amount), CallerAddress: new(uint256.Int).Set(caller)})
	b.logger.With("token", l1Token.Hex()).With("caller", caller.Hex()).With("l1_recipient", recipient.Hex()).
		With("amount", amount.Dec()).Debug("withdraw initiated")
	return msg, nil
}
