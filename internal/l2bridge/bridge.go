package l2bridge

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/compose-network/token-bridge/internal/events"
	"github.com/compose-network/token-bridge/internal/felt"
	"github.com/compose-network/token-bridge/internal/logger"
	"github.com/compose-network/token-bridge/internal/messaging"
	"github.com/compose-network/token-bridge/internal/token"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

var (
	ErrOnlyGovernor           = errors.New("ONLY_GOVERNOR")
	ErrAlreadySet             = errors.New("ALREADY_SET")
	ErrL1BridgeNotSet         = errors.New("L1_BRIDGE_NOT_SET")
	ErrExpectedFromBridgeOnly = errors.New("EXPECTED_FROM_BRIDGE_ONLY")
	ErrWrongDestination       = errors.New("MESSAGE_NOT_FOR_BRIDGE")
	ErrZeroRecipient          = errors.New("ZERO_RECIPIENT")
	ErrInvalidL1Recipient     = errors.New("INVALID_L1_RECIPIENT")
	ErrUnknownSelector        = errors.New("UNKNOWN_SELECTOR")
	ErrTokenNotDeployed       = errors.New("TOKEN_NOT_DEPLOYED")
	ErrTokenAlreadyDeployed   = errors.New("TOKEN_ALREADY_DEPLOYED")
	ErrDepositRejected        = errors.New("DEPOSIT_REJECTED")
)

// Receiver is implemented by L2 accounts that accept deposits with a message.
type Receiver interface {
	// OnReceive is called after the deposit is minted. Returning false undoes the deposit.
	OnReceive(l2Token, amount *uint256.Int, depositor common.Address, message []*uint256.Int) bool
}

type ReceiverFunc func(l2Token, amount *uint256.Int, depositor common.Address, message []*uint256.Int) bool

func (f ReceiverFunc) OnReceive(l2Token, amount *uint256.Int, depositor common.Address, message []*uint256.Int) bool {
	return f(l2Token, amount, depositor, message)
}

type Config struct {
	Address  *uint256.Int
	Governor *uint256.Int
	// Legacy bridges carry one pre-deployed token and speak the payloads without a token word.
	Legacy bool
}

// Bridge is the L2 side of the protocol. It mints on deposit messages and
// burns on withdrawals.
type Bridge struct {
	mu      sync.Mutex
	cfg     Config
	channel messaging.L2Channel
	log     *events.Log
	logger  *slog.Logger

	l1Bridge    common.Address
	legacyToken common.Address
	tokens      map[common.Address]*token.L2Token
	l1Tokens    map[uint256.Int]common.Address
	receivers   map[uint256.Int]Receiver
}

var _ messaging.L2Handler = (*Bridge)(nil)

func New(cfg Config, channel messaging.L2Channel, log *events.Log) (*Bridge, error) {
	if !felt.IsValidL2Address(cfg.Address) {
		return nil, errors.New("invalid l2 bridge address")
	}
	if cfg.Governor == nil || cfg.Governor.IsZero() {
		return nil, errors.New("l2 bridge needs a governor")
	}
	if channel == nil {
		return nil, errors.New("l2 bridge needs a message channel")
	}
	return &Bridge{
		cfg:       cfg,
		channel:   channel,
		log:       log,
		logger:    logger.Named("l2_bridge").With("bridge", cfg.Address.Hex()),
		tokens:    make(map[common.Address]*token.L2Token),
		l1Tokens:  make(map[uint256.Int]common.Address),
		receivers: make(map[uint256.Int]Receiver),
	}, nil
}

func (b *Bridge) Address() *uint256.Int { return new(uint256.Int).Set(b.cfg.Address) }

func (b *Bridge) emit(ev events.Event) {
	if b.log != nil {
		b.log.Emit(b.cfg.Address.Hex(), ev)
	}
}

func (b *Bridge) onlyGovernor(caller *uint256.Int) error {
	if caller == nil || !caller.Eq(b.cfg.Governor) {
		return ErrOnlyGovernor
	}
	return nil
}

// SetL1Bridge records the only L1 contract whose messages are accepted.
func (b *Bridge) SetL1Bridge(caller *uint256.Int, l1Bridge common.Address) error {
	if err := b.onlyGovernor(caller); err != nil {
		return err
	}
	if l1Bridge == (common.Address{}) {
		return ErrInvalidL1Recipient
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.l1Bridge != (common.Address{}) {
		return ErrAlreadySet
	}
	b.l1Bridge = l1Bridge
	b.emit(events.L1BridgeSet{Value: l1Bridge})
	b.logger.With("l1_bridge", l1Bridge.Hex()).Info("l1 bridge set")
	return nil
}

func (b *Bridge) L1Bridge() common.Address {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.l1Bridge
}

// SetL2Token installs the token of a legacy bridge, wrapping l1Token.
func (b *Bridge) SetL2Token(caller *uint256.Int, l1Token common.Address, l2 *token.L2Token) error {
	if err := b.onlyGovernor(caller); err != nil {
		return err
	}
	if !b.cfg.Legacy {
		return fmt.Errorf("%w: multi-token bridges deploy their tokens", ErrAlreadySet)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.tokens) != 0 {
		return ErrAlreadySet
	}
	b.install(l1Token, l2)
	b.legacyToken = l1Token
	b.emit(events.L2TokenSet{Value: l2.Address()})
	b.logger.With("l2_token", l2.Address().Hex()).Info("l2 token set")
	return nil
}

func (b *Bridge) install(l1Token common.Address, l2 *token.L2Token) {
	b.tokens[l1Token] = l2
	b.l1Tokens[*l2.Address()] = l1Token
}

// RegisterReceiver makes account accept deposits with a message.
func (b *Bridge) RegisterReceiver(account *uint256.Int, r Receiver) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.receivers[*account] = r
}

// Token returns the L2 token wrapping l1Token.
func (b *Bridge) Token(l1Token common.Address) (*token.L2Token, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.token(l1Token)
}

func (b *Bridge) token(l1Token common.Address) (*token.L2Token, error) {
	t, ok := b.tokens[l1Token]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTokenNotDeployed, l1Token.Hex())
	}
	return t, nil
}

// LegacyToken returns the L2 token of a legacy bridge.
func (b *Bridge) LegacyToken() (*token.L2Token, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.token(b.legacyToken)
}

// L1TokenOf maps an L2 token address back to the asset it wraps.
func (b *Bridge) L1TokenOf(l2Token *uint256.Int) (common.Address, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	a, ok := b.l1Tokens[*l2Token]
	return a, ok
}

// deployedAddress derives the address of the token wrapping l1Token.
func (b *Bridge) deployedAddress(l1Token common.Address) *uint256.Int {
	self := b.cfg.Address.Bytes32()
	return felt.Keccak250(self[:], l1Token.Bytes())
}

// Handle dispatches an L1 -> L2 message to its handler by selector.
func (b *Bridge) Handle(msg messaging.MessageToL2) error {
	if !msg.ToAddress.Eq(b.cfg.Address) {
		return fmt.Errorf("%w: addressed to %s", ErrWrongDestination, msg.ToAddress.Hex())
	}
	switch {
	case msg.Selector.Eq(messaging.SelectorHandleTokenDeployment):
		if b.cfg.Legacy {
			return fmt.Errorf("%w: %s", ErrUnknownSelector, msg.Selector.Hex())
		}
		d, err := messaging.DecodeDeployment(msg.Payload)
		if err != nil {
			return err
		}
		return b.handleTokenDeployment(msg.FromAddress, d)
	case msg.Selector.Eq(messaging.SelectorHandleTokenDeposit), msg.Selector.Eq(messaging.SelectorHandleTokenDepositWithMessage):
		if b.cfg.Legacy {
			return fmt.Errorf("%w: %s", ErrUnknownSelector, msg.Selector.Hex())
		}
		fallthrough
	case msg.Selector.Eq(messaging.SelectorHandleDeposit), msg.Selector.Eq(messaging.SelectorHandleDepositWithMessage):
		d, err := messaging.DecodeDeposit(msg.Selector, msg.Payload)
		if err != nil {
			return err
		}
		return b.handleDeposit(msg.FromAddress, d)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownSelector, msg.Selector.Hex())
	}
}

func (b *Bridge) HandleDeposit(from common.Address, recipient, low, high *uint256.Int) error {
	return b.handleLimbs(from, messaging.DepositPayload{Recipient: recipient}, low, high)
}

func (b *Bridge) HandleDepositWithMessage(from common.Address, recipient, low, high *uint256.Int, depositor common.Address, message []*uint256.Int) error {
	return b.handleLimbs(from, messaging.DepositPayload{Recipient: recipient, WithMessage: true, Sender: depositor, Message: message}, low, high)
}

func (b *Bridge) HandleTokenDeposit(from, l1Token common.Address, recipient, low, high *uint256.Int) error {
	return b.handleLimbs(from, messaging.DepositPayload{Token: &l1Token, Recipient: recipient}, low, high)
}

func (b *Bridge) HandleTokenDepositWithMessage(from, l1Token common.Address, recipient, low, high *uint256.Int, depositor common.Address, message []*uint256.Int) error {
	return b.handleLimbs(from, messaging.DepositPayload{Token: &l1Token, Recipient: recipient, WithMessage: true,
		Sender: depositor, Message: message}, low, high)
}

func (b *Bridge) handleLimbs(from common.Address, d messaging.DepositPayload, low, high *uint256.Int) error {
	amount, err := felt.JoinUint256(low, high)
	if err != nil {
		return err
	}
	d.Amount = amount
	return b.handleDeposit(from, d)
}

func (b *Bridge) HandleTokenDeployment(from, l1Token common.Address, name, symbol string, decimals uint8) error {
	return b.handleTokenDeployment(from, messaging.DeploymentPayload{Token: l1Token,
		Metadata: token.Metadata{Name: name, Symbol: symbol, Decimals: decimals}})
}

func (b *Bridge) checkFrom(from common.Address) error {
	if b.l1Bridge == (common.Address{}) {
		return ErrL1BridgeNotSet
	}
	if from != b.l1Bridge {
		return fmt.Errorf("%w: got %s", ErrExpectedFromBridgeOnly, from.Hex())
	}
	return nil
}

func (b *Bridge) handleDeposit(from common.Address, d messaging.DepositPayload) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.checkFrom(from); err != nil {
		return err
	}
	if d.Recipient == nil || d.Recipient.IsZero() {
		return ErrZeroRecipient
	}
	l1Token := b.legacyToken
	if d.Token != nil {
		l1Token = *d.Token
	}
	l2, err := b.token(l1Token)
	if err != nil {
		return err
	}

	var receiver Receiver
	if d.WithMessage {
		r, ok := b.receivers[*d.Recipient]
		if !ok {
			return fmt.Errorf("%w: %s does not accept messages", ErrDepositRejected, d.Recipient.Hex())
		}
		receiver = r
	}

	if err := l2.Mint(b.cfg.Address, d.Recipient, d.Amount); err != nil {
		return err
	}
	if receiver != nil && !receiver.OnReceive(l2.Address(), new(uint256.Int).Set(d.Amount), d.Sender, felt.Clone(d.Message)) {
		if err := l2.Burn(b.cfg.Address, d.Recipient, d.Amount); err != nil {
			b.logger.With("recipient", d.Recipient.Hex()).With("err", err).Error("failed to undo rejected deposit")
		}
		return fmt.Errorf("%w: %s refused the deposit", ErrDepositRejected, d.Recipient.Hex())
	}

	b.emit(events.DepositHandled{Account: new(uint256.Int).Set(d.Recipient), Amount: new(uint256.Int).Set(d.Amount)})
	b.logger.With("token", l1Token.Hex()).With("recipient", d.Recipient.Hex()).With("amount", d.Amount.Dec()).Debug("deposit handled")
	return nil
}

func (b *Bridge) handleTokenDeployment(from common.Address, d messaging.DeploymentPayload) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.checkFrom(from); err != nil {
		return err
	}
	if _, ok := b.tokens[d.Token]; ok {
		return fmt.Errorf("%w: %s", ErrTokenAlreadyDeployed, d.Token.Hex())
	}
	l2 := token.NewL2Token(b.deployedAddress(d.Token), b.cfg.Address, d.Metadata)
	b.install(d.Token, l2)

	b.emit(events.TokenDeployed{L1Token: d.Token, L2Token: l2.Address()})
	b.logger.With("l1_token", d.Token.Hex()).With("l2_token", l2.Address().Hex()).With("symbol", d.Metadata.Symbol).Info("token deployed")
	return nil
}
