package l1bridge

import (
	"errors"
	"fmt"

	"github.com/compose-network/token-bridge/internal/events"
	"github.com/compose-network/token-bridge/internal/felt"
	"github.com/compose-network/token-bridge/internal/messaging"
	"github.com/compose-network/token-bridge/internal/token"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

type depositRequest struct {
	sender      common.Address
	token       common.Address
	amount      *uint256.Int
	l2Recipient *uint256.Int
	withMessage bool
	message     []*uint256.Int
}

func (b *TokenBridge) payload(r depositRequest) messaging.DepositPayload {
	return messaging.DepositPayload{
		Token:       b.tokenRef(r.token),
		Recipient:   r.l2Recipient,
		Amount:      r.amount,
		WithMessage: r.withMessage,
		Sender:      r.sender,
		Message:     r.message,
	}
}

func (b *TokenBridge) Deposit(sender, t common.Address, amount, l2Recipient, fee *uint256.Int) (Receipt, error) {
	return b.deposit(depositRequest{sender: sender, token: t, amount: amount, l2Recipient: l2Recipient}, fee)
}

func (b *TokenBridge) DepositWithMessage(sender, t common.Address, amount, l2Recipient *uint256.Int, message []*uint256.Int, fee *uint256.Int) (Receipt, error) {
	return b.deposit(depositRequest{sender: sender, token: t, amount: amount, l2Recipient: l2Recipient,
		withMessage: true, message: felt.Clone(message)}, fee)
}

// acceptDeposits fails unless t takes deposits. A PENDING token whose
// enrollment window passed is refused but left in place; the deployment check
// only commits once the deposit has gone through.
func (b *TokenBridge) acceptDeposits(t common.Address) error {
	if b.l2Bridge == nil {
		return ErrNotActiveYet
	}
	if b.cfg.Mode == Legacy {
		if t != b.cfg.LegacyToken {
			return fmt.Errorf("%w: %s", ErrTokenNotServiced, t.Hex())
		}
		return nil
	}
	if _, expired := b.deploymentOutcome(t); expired {
		return fmt.Errorf("%w: %s enrollment expired", ErrTokenNotServiced, t.Hex())
	}
	if !b.status(t).Servicing() {
		return fmt.Errorf("%w: %s", ErrTokenNotServiced, t.Hex())
	}
	return nil
}

func (b *TokenBridge) deposit(r depositRequest, fee *uint256.Int) (Receipt, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.acceptDeposits(r.token); err != nil {
		return Receipt{}, err
	}
	if r.amount == nil || r.amount.IsZero() {
		return Receipt{}, ErrZeroDeposit
	}
	if !felt.IsValidL2Address(r.l2Recipient) {
		return Receipt{}, ErrL2AddressOutOfRange
	}
	if err := b.checkFee(fee); err != nil {
		return Receipt{}, err
	}
	s := b.settings[r.token]
	if s.maxDeposit != nil && r.amount.Gt(s.maxDeposit) {
		return Receipt{}, ErrMaxDepositExceeded
	}
	after, overflow := new(uint256.Int).AddOverflow(b.deps.Custody.Balance(r.token), r.amount)
	if overflow {
		return Receipt{}, token.ErrOverflow
	}
	if s.maxTotalBalance != nil && after.Gt(s.maxTotalBalance) {
		return Receipt{}, ErrMaxBalanceExceeded
	}

	if err := b.deps.Custody.Pull(r.token, r.sender, r.amount); err != nil {
		return Receipt{}, fmt.Errorf("failed to pull deposit: %w", err)
	}
	if err := b.deps.Ether.Transfer(r.sender, b.cfg.Address, fee); err != nil {
		b.refundToken(r.token, r.sender, r.amount)
		return Receipt{}, fmt.Errorf("failed to collect message fee: %w", err)
	}
	p := b.payload(r)
	hash, nonce, err := b.deps.Channel.SendMessageToL2(b.cfg.Address, b.l2Bridge, p.Selector(), p.Encode(), fee)
	if err != nil {
		b.refundEther(r.sender, fee)
		b.refundToken(r.token, r.sender, r.amount)
		return Receipt{}, fmt.Errorf("failed to send deposit message: %w", err)
	}
	b.depositors[nonce] = r.sender
	if b.cfg.Mode == MultiToken {
		b.checkDeploymentStatus(r.token)
	}

	amount := new(uint256.Int).Set(r.amount)
	recipient := new(uint256.Int).Set(r.l2Recipient)
	if r.withMessage {
		b.emit(events.DepositWithMessage{Sender: r.sender, Token: b.tokenRef(r.token), Amount: amount,
			L2Recipient: recipient, Message: felt.Clone(r.message), Nonce: nonce, Fee: new(uint256.Int).Set(fee)})
	} else {
		b.emit(events.Deposit{Sender: r.sender, Token: b.tokenRef(r.token), Amount: amount,
			L2Recipient: recipient, Nonce: nonce, Fee: new(uint256.Int).Set(fee)})
	}
	b.deps.Metrics.RecordDeposit(r.token, amount, b.deps.Custody.Balance(r.token))
	b.logger.With("token", r.token.Hex()).With("amount", amount.Dec()).With("nonce", nonce).
		With("msg_hash", hash.Hex()).Debug("deposit sent")
	return Receipt{Nonce: nonce, MsgHash: hash}, nil
}

// checkDepositor enforces that only the original depositor touches a deposit.
func (b *TokenBridge) checkDepositor(caller common.Address, nonce uint64) error {
	depositor, ok := b.depositors[nonce]
	if !ok {
		return ErrNoDepositToCancel
	}
	if depositor != caller {
		return ErrOnlyDepositor
	}
	return nil
}

func (b *TokenBridge) checkLegacyToken(t common.Address) error {
	if b.cfg.Mode == Legacy && t != b.cfg.LegacyToken {
		return fmt.Errorf("%w: %s", ErrTokenNotServiced, t.Hex())
	}
	return nil
}

func (b *TokenBridge) DepositCancelRequest(sender, t common.Address, amount, l2Recipient *uint256.Int, nonce uint64) error {
	return b.cancelRequest(depositRequest{sender: sender, token: t, amount: amount, l2Recipient: l2Recipient}, nonce)
}

func (b *TokenBridge) DepositWithMessageCancelRequest(sender, t common.Address, amount, l2Recipient *uint256.Int, message []*uint256.Int, nonce uint64) error {
	return b.cancelRequest(depositRequest{sender: sender, token: t, amount: amount, l2Recipient: l2Recipient,
		withMessage: true, message: message}, nonce)
}

// cancelRequest starts the cancellation timelock of a live deposit. Every
// field must match the original deposit.
func (b *TokenBridge) cancelRequest(r depositRequest, nonce uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.checkLegacyToken(r.token); err != nil {
		return err
	}
	if err := b.checkDepositor(r.sender, nonce); err != nil {
		return err
	}
	if b.l2Bridge == nil || r.amount == nil || r.l2Recipient == nil {
		return ErrNoDepositToCancel
	}

	p := b.payload(r)
	msg := messaging.MessageToL2{FromAddress: b.cfg.Address, ToAddress: b.l2Bridge, Selector: p.Selector(), Payload: p.Encode(), Nonce: nonce}
	if b.deps.Channel.L1ToL2Messages(msg.Hash()).IsZero() {
		return ErrNoDepositToCancel
	}
	if _, err := b.deps.Channel.StartL1ToL2MessageCancellation(b.cfg.Address, msg.ToAddress, msg.Selector, msg.Payload, nonce); err != nil {
		if errors.Is(err, messaging.ErrNoMessageToCancel) {
			return fmt.Errorf("%w: %w", ErrNoDepositToCancel, err)
		}
		return err
	}

	ref := events.DepositRef{Sender: r.sender, Token: b.tokenRef(r.token), Amount: new(uint256.Int).Set(r.amount),
		L2Recipient: new(uint256.Int).Set(r.l2Recipient), Nonce: nonce}
	if r.withMessage {
		b.emit(events.DepositWithMessageCancelRequest{DepositRef: ref, Message: felt.Clone(r.message)})
	} else {
		b.emit(events.DepositCancelRequest{DepositRef: ref})
	}
	b.deps.Metrics.RecordCancelRequest(r.token)
	b.logger.With("token", r.token.Hex()).With("nonce", nonce).Info("deposit cancel requested")
	return nil
}

func (b *TokenBridge) DepositReclaim(sender, t common.Address, amount, l2Recipient *uint256.Int, nonce uint64) error {
	return b.reclaim(depositRequest{sender: sender, token: t, amount: amount, l2Recipient: l2Recipient}, nonce)
}

func (b *TokenBridge) DepositWithMessageReclaim(sender, t common.Address, amount, l2Recipient *uint256.Int, message []*uint256.Int, nonce uint64) error {
	return b.reclaim(depositRequest{sender: sender, token: t, amount: amount, l2Recipient: l2Recipient,
		withMessage: true, message: message}, nonce)
}

// reclaim cancels the deposit message once its timelock elapsed and returns
// the deposit and its escrowed fee to the depositor.
func (b *TokenBridge) reclaim(r depositRequest, nonce uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.checkLegacyToken(r.token); err != nil {
		return err
	}
	if err := b.checkDepositor(r.sender, nonce); err != nil {
		return err
	}
	if b.l2Bridge == nil || r.amount == nil || r.l2Recipient == nil {
		return messaging.ErrNoMessageToCancel
	}
	if b.deps.Custody.Balance(r.token).Lt(r.amount) {
		return fmt.Errorf("%w: bridge holds less than the deposit", token.ErrInsufficientBalance)
	}

	p := b.payload(r)
	_, fee, err := b.deps.Channel.CancelL1ToL2Message(b.cfg.Address, b.l2Bridge, p.Selector(), p.Encode(), nonce)
	if err != nil {
		if errors.Is(err, messaging.ErrCancellationNotRequested) {
			return fmt.Errorf("%w: %w", messaging.ErrNoMessageToCancel, err)
		}
		return err
	}

	if err := b.deps.Custody.Push(r.token, r.sender, r.amount); err != nil {
		b.logger.With("token", r.token.Hex()).With("nonce", nonce).With("err", err).Error("failed to return reclaimed deposit")
		return fmt.Errorf("failed to return reclaimed deposit: %w", err)
	}
	if !fee.IsZero() {
		b.refundEther(r.sender, fee)
	}

	ref := events.DepositRef{Sender: r.sender, Token: b.tokenRef(r.token), Amount: new(uint256.Int).Set(r.amount),
		L2Recipient: new(uint256.Int).Set(r.l2Recipient), Nonce: nonce}
	if r.withMessage {
		b.emit(events.DepositWithMessageReclaimed{DepositRef: ref, Message: felt.Clone(r.message)})
	} else {
		b.emit(events.DepositReclaimed{DepositRef: ref})
	}
	b.deps.Metrics.RecordReclaim(r.token, b.deps.Custody.Balance(r.token))
	b.logger.With("token", r.token.Hex()).With("nonce", nonce).With("amount", r.amount.Dec()).Info("deposit reclaimed")
	return nil
}
