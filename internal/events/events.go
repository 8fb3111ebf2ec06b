package events

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Field is one named event argument. Order is part of the indexer contract.
type Field struct {
	Name  string
	Value any
}

// Event is anything a contract emits.
type Event interface {
	Name() string
	Fields() []Field
}

// withToken inserts the token field after the first field. Bridges running in
// legacy single-token mode emit the Log* shape without it.
func withToken(token *common.Address, first Field, rest ...Field) []Field {
	out := []Field{first}
	if token != nil {
		out = append(out, Field{"token", *token})
	}
	return append(out, rest...)
}

func legacyName(token *common.Address, name string) string {
	if token == nil {
		return "Log" + name
	}
	return name
}

type Deposit struct {
	Sender      common.Address
	Token       *common.Address
	Amount      *uint256.Int
	L2Recipient *uint256.Int
	Nonce       uint64
	Fee         *uint256.Int
}

func (e Deposit) Name() string { return legacyName(e.Token, "Deposit") }
func (e Deposit) Fields() []Field {
	return withToken(e.Token, Field{"sender", e.Sender},
		Field{"amount", e.Amount}, Field{"l2Recipient", e.L2Recipient},
		Field{"nonce", e.Nonce}, Field{"fee", e.Fee})
}

type DepositWithMessage struct {
	Sender      common.Address
	Token       *common.Address
	Amount      *uint256.Int
	L2Recipient *uint256.Int
	Message     []*uint256.Int
	Nonce       uint64
	Fee         *uint256.Int
}

func (e DepositWithMessage) Name() string { return legacyName(e.Token, "DepositWithMessage") }
func (e DepositWithMessage) Fields() []Field {
	return withToken(e.Token, Field{"sender", e.Sender},
		Field{"amount", e.Amount}, Field{"l2Recipient", e.L2Recipient},
		Field{"message", e.Message}, Field{"nonce", e.Nonce}, Field{"fee", e.Fee})
}

// DepositRef identifies a deposit in cancel and reclaim events.
type DepositRef struct {
	Sender      common.Address
	Token       *common.Address
	Amount      *uint256.Int
	L2Recipient *uint256.Int
	Nonce       uint64
}

func (r DepositRef) fields(message []*uint256.Int, withMessage bool) []Field {
	rest := []Field{{"amount", r.Amount}, {"l2Recipient", r.L2Recipient}}
	if withMessage {
		rest = append(rest, Field{"message", message})
	}
	rest = append(rest, Field{"nonce", r.Nonce})
	return withToken(r.Token, Field{"sender", r.Sender}, rest...)
}

type DepositCancelRequest struct{ DepositRef }

func (e DepositCancelRequest) Name() string    { return legacyName(e.Token, "DepositCancelRequest") }
func (e DepositCancelRequest) Fields() []Field { return e.fields(nil, false) }

type DepositWithMessageCancelRequest struct {
	DepositRef
	Message []*uint256.Int
}

func (e DepositWithMessageCancelRequest) Name() string {
	return legacyName(e.Token, "DepositWithMessageCancelRequest")
}
func (e DepositWithMessageCancelRequest) Fields() []Field { return e.fields(e.Message, true) }

type DepositReclaimed struct{ DepositRef }

func (e DepositReclaimed) Name() string    { return legacyName(e.Token, "DepositReclaimed") }
func (e DepositReclaimed) Fields() []Field { return e.fields(nil, false) }

type DepositWithMessageReclaimed struct {
	DepositRef
	Message []*uint256.Int
}

func (e DepositWithMessageReclaimed) Name() string {
	return legacyName(e.Token, "DepositWithMessageReclaimed")
}
func (e DepositWithMessageReclaimed) Fields() []Field { return e.fields(e.Message, true) }

type Withdrawal struct {
	Recipient common.Address
	Token     *common.Address
	Amount    *uint256.Int
}

func (e Withdrawal) Name() string { return legacyName(e.Token, "Withdrawal") }
func (e Withdrawal) Fields() []Field {
	return withToken(e.Token, Field{"recipient", e.Recipient}, Field{"amount", e.Amount})
}

type SetL2TokenBridge struct {
	Legacy bool
	Value  *uint256.Int
}

func (e SetL2TokenBridge) Name() string {
	if e.Legacy {
		return "LogSetL2TokenBridge"
	}
	return "SetL2TokenBridge"
}
func (e SetL2TokenBridge) Fields() []Field { return []Field{{"value", e.Value}} }

// SetMaxTotalBalance omits the token in legacy mode.
type SetMaxTotalBalance struct {
	Token *common.Address
	Value *uint256.Int
}

func (e SetMaxTotalBalance) Name() string { return legacyName(e.Token, "SetMaxTotalBalance") }
func (e SetMaxTotalBalance) Fields() []Field {
	if e.Token == nil {
		return []Field{{"value", e.Value}}
	}
	return []Field{{"token", *e.Token}, {"value", e.Value}}
}

// LogSetMaxDeposit only exists on legacy single-token bridges.
type SetMaxDeposit struct {
	Value *uint256.Int
}

func (SetMaxDeposit) Name() string      { return "LogSetMaxDeposit" }
func (e SetMaxDeposit) Fields() []Field { return []Field{{"value", e.Value}} }

// Token lifecycle.

type TokenEnrollmentInitiated struct {
	Token             common.Address
	DeploymentMsgHash common.Hash
}

func (TokenEnrollmentInitiated) Name() string { return "TokenEnrollmentInitiated" }
func (e TokenEnrollmentInitiated) Fields() []Field {
	return []Field{{"token", e.Token}, {"deploymentMsgHash", e.DeploymentMsgHash}}
}

type TokenActivated struct{ Token common.Address }

func (TokenActivated) Name() string      { return "TokenActivated" }
func (e TokenActivated) Fields() []Field { return []Field{{"token", e.Token}} }

type TokenDeactivated struct{ Token common.Address }

func (TokenDeactivated) Name() string      { return "TokenDeactivated" }
func (e TokenDeactivated) Fields() []Field { return []Field{{"token", e.Token}} }

type TokenBlocked struct{ Token common.Address }

func (TokenBlocked) Name() string      { return "TokenBlocked" }
func (e TokenBlocked) Fields() []Field { return []Field{{"token", e.Token}} }

type TokenSelfRemoved struct{ Token common.Address }

func (TokenSelfRemoved) Name() string      { return "TokenSelfRemoved" }
func (e TokenSelfRemoved) Fields() []Field { return []Field{{"token", e.Token}} }

type TokenEnlisted struct {
	Token  common.Address
	Bridge common.Address
}

func (TokenEnlisted) Name() string { return "TokenEnlisted" }
func (e TokenEnlisted) Fields() []Field {
	return []Field{{"token", e.Token}, {"bridge", e.Bridge}}
}

type ExistingBridgeAdded struct {
	Token  common.Address
	Bridge common.Address
}

func (ExistingBridgeAdded) Name() string { return "ExistingBridgeAdded" }
func (e ExistingBridgeAdded) Fields() []Field {
	return []Field{{"token", e.Token}, {"bridge", e.Bridge}}
}

// Withdrawal limiter.

type WithdrawalLimitEnabled struct {
	Sender common.Address
	Token  common.Address
}

func (WithdrawalLimitEnabled) Name() string { return "WithdrawalLimitEnabled" }
func (e WithdrawalLimitEnabled) Fields() []Field {
	return []Field{{"sender", e.Sender}, {"token", e.Token}}
}

type WithdrawalLimitDisabled struct {
	Sender common.Address
	Token  common.Address
}

func (WithdrawalLimitDisabled) Name() string { return "WithdrawalLimitDisabled" }
func (e WithdrawalLimitDisabled) Fields() []Field {
	return []Field{{"sender", e.Sender}, {"token", e.Token}}
}

// Proxy.

type ImplementationAdded struct {
	Implementation common.Address
	EIC            common.Address
	InitData       []byte
	Finalize       bool
}

func (ImplementationAdded) Name() string { return "ImplementationAdded" }
func (e ImplementationAdded) Fields() []Field {
	return []Field{{"implementation", e.Implementation}, {"eic", e.EIC},
		{"initData", e.InitData}, {"finalize", e.Finalize}}
}

type ImplementationRemoved struct {
	Implementation common.Address
	EIC            common.Address
	InitData       []byte
	Finalize       bool
}

func (ImplementationRemoved) Name() string { return "ImplementationRemoved" }
func (e ImplementationRemoved) Fields() []Field {
	return []Field{{"implementation", e.Implementation}, {"eic", e.EIC},
		{"initData", e.InitData}, {"finalize", e.Finalize}}
}

type Upgraded struct{ Implementation common.Address }

func (Upgraded) Name() string      { return "Upgraded" }
func (e Upgraded) Fields() []Field { return []Field{{"implementation", e.Implementation}} }

type FinalizedImplementation struct{ Implementation common.Address }

func (FinalizedImplementation) Name() string { return "FinalizedImplementation" }
func (e FinalizedImplementation) Fields() []Field {
	return []Field{{"implementation", e.Implementation}}
}

type GovernorNominated struct {
	Nominee     common.Address
	NominatedBy common.Address
}

func (GovernorNominated) Name() string { return "LogNominatedGovernor" }
func (e GovernorNominated) Fields() []Field {
	return []Field{{"nominee", e.Nominee}, {"nominatedBy", e.NominatedBy}}
}

type NominationCancelled struct {
	Nominee     common.Address
	CancelledBy common.Address
}

func (NominationCancelled) Name() string { return "LogNominationCancelled" }
func (e NominationCancelled) Fields() []Field {
	return []Field{{"cancelledNominee", e.Nominee}, {"cancelledBy", e.CancelledBy}}
}

type GovernorRemoved struct {
	Governor  common.Address
	RemovedBy common.Address
}

func (GovernorRemoved) Name() string { return "LogRemovedGovernor" }
func (e GovernorRemoved) Fields() []Field {
	return []Field{{"removedGovernor", e.Governor}, {"removedBy", e.RemovedBy}}
}

type GovernanceAccepted struct{ Governor common.Address }

func (GovernanceAccepted) Name() string { return "LogNewGovernorAccepted" }
func (e GovernanceAccepted) Fields() []Field {
	return []Field{{"acceptedGovernor", e.Governor}}
}

// Messaging core.

type LogMessageToL2 struct {
	FromAddress common.Address
	ToAddress   *uint256.Int
	Selector    *uint256.Int
	Payload     []*uint256.Int
	Nonce       uint64
	Fee         *uint256.Int
}

func (LogMessageToL2) Name() string { return "LogMessageToL2" }
func (e LogMessageToL2) Fields() []Field {
	return []Field{{"fromAddress", e.FromAddress}, {"toAddress", e.ToAddress},
		{"selector", e.Selector}, {"payload", e.Payload}, {"nonce", e.Nonce}, {"fee", e.Fee}}
}

type MessageToL2CancellationStarted struct {
	FromAddress common.Address
	ToAddress   *uint256.Int
	Selector    *uint256.Int
	Payload     []*uint256.Int
	Nonce       uint64
}

func (MessageToL2CancellationStarted) Name() string { return "MessageToL2CancellationStarted" }
func (e MessageToL2CancellationStarted) Fields() []Field {
	return []Field{{"fromAddress", e.FromAddress}, {"toAddress", e.ToAddress},
		{"selector", e.Selector}, {"payload", e.Payload}, {"nonce", e.Nonce}}
}

type MessageToL2Canceled struct {
	FromAddress common.Address
	ToAddress   *uint256.Int
	Selector    *uint256.Int
	Payload     []*uint256.Int
	Nonce       uint64
}

func (MessageToL2Canceled) Name() string { return "MessageToL2Canceled" }
func (e MessageToL2Canceled) Fields() []Field {
	return []Field{{"fromAddress", e.FromAddress}, {"toAddress", e.ToAddress},
		{"selector", e.Selector}, {"payload", e.Payload}, {"nonce", e.Nonce}}
}

type ConsumedMessageToL1 struct {
	FromAddress *uint256.Int
	ToAddress   common.Address
	Payload     []*uint256.Int
}

func (ConsumedMessageToL1) Name() string { return "ConsumedMessageToL1" }
func (e ConsumedMessageToL1) Fields() []Field {
	return []Field{{"fromAddress", e.FromAddress}, {"toAddress", e.ToAddress}, {"payload", e.Payload}}
}

// L2 bridge. These use the L2 snake_case names.

type DepositHandled struct {
	Account *uint256.Int
	Amount  *uint256.Int
}

func (DepositHandled) Name() string { return "deposit_handled" }
func (e DepositHandled) Fields() []Field {
	return []Field{{"account", e.Account}, {"amount", e.Amount}}
}

type WithdrawInitiated struct {
	L1Recipient   common.Address
	Amount        *uint256.Int
	CallerAddress *uint256.Int
}

func (WithdrawInitiated) Name() string { return "withdraw_initiated" }
func (e WithdrawInitiated) Fields() []Field {
	return []Field{{"l1_recipient", e.L1Recipient}, {"amount", e.Amount}, {"caller_address", e.CallerAddress}}
}

type L1BridgeSet struct {
	Value common.Address
}

func (L1BridgeSet) Name() string { return "l1_bridge_set" }
func (e L1BridgeSet) Fields() []Field {
	return []Field{{"l1_bridge_address", e.Value}}
}

type L2TokenSet struct {
	Value *uint256.Int
}

func (L2TokenSet) Name() string { return "l2_token_set" }
func (e L2TokenSet) Fields() []Field {
	return []Field{{"l2_token_address", e.Value}}
}

type TokenDeployed struct {
	L1Token common.Address
	L2Token *uint256.Int
}

func (TokenDeployed) Name() string { return "token_deployed" }
func (e TokenDeployed) Fields() []Field {
	return []Field{{"l1_token", e.L1Token}, {"l2_token", e.L2Token}}
}
