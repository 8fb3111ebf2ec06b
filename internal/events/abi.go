package events

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"
)

var ErrNoABI = errors.New("event has no L1 abi")

type arg struct {
	name    string
	typ     string
	indexed bool
}

// l1Events lists the L1 event signatures indexers decode.
var l1Events = map[string][]arg{
	"Deposit": {{"sender", "address", true}, {"token", "address", true}, {"amount", "uint256", false},
		{"l2Recipient", "uint256", true}, {"nonce", "uint256", false}, {"fee", "uint256", false}},
	"DepositWithMessage": {{"sender", "address", true}, {"token", "address", true}, {"amount", "uint256", false},
		{"l2Recipient", "uint256", true}, {"message", "uint256[]", false}, {"nonce", "uint256", false}, {"fee", "uint256", false}},
	"DepositCancelRequest": {{"sender", "address", true}, {"token", "address", true}, {"amount", "uint256", false},
		{"l2Recipient", "uint256", true}, {"nonce", "uint256", false}},
	"DepositWithMessageCancelRequest": {{"sender", "address", true}, {"token", "address", true}, {"amount", "uint256", false},
		{"l2Recipient", "uint256", true}, {"message", "uint256[]", false}, {"nonce", "uint256", false}},
	"DepositReclaimed": {{"sender", "address", true}, {"token", "address", true}, {"amount", "uint256", false},
		{"l2Recipient", "uint256", true}, {"nonce", "uint256", false}},
	"DepositWithMessageReclaimed": {{"sender", "address", true}, {"token", "address", true}, {"amount", "uint256", false},
		{"l2Recipient", "uint256", true}, {"message", "uint256[]", false}, {"nonce", "uint256", false}},
	"Withdrawal":         {{"recipient", "address", true}, {"token", "address", true}, {"amount", "uint256", false}},
	"SetL2TokenBridge":   {{"value", "uint256", false}},
	"SetMaxTotalBalance": {{"token", "address", true}, {"value", "uint256", false}},

	"LogDeposit": {{"sender", "address", true}, {"amount", "uint256", false},
		{"l2Recipient", "uint256", true}, {"nonce", "uint256", false}, {"fee", "uint256", false}},
	"LogDepositWithMessage": {{"sender", "address", true}, {"amount", "uint256", false},
		{"l2Recipient", "uint256", true}, {"message", "uint256[]", false}, {"nonce", "uint256", false}, {"fee", "uint256", false}},
	"LogDepositCancelRequest": {{"sender", "address", true}, {"amount", "uint256", false},
		{"l2Recipient", "uint256", true}, {"nonce", "uint256", false}},
	"LogDepositWithMessageCancelRequest": {{"sender", "address", true}, {"amount", "uint256", false},
		{"l2Recipient", "uint256", true}, {"message", "uint256[]", false}, {"nonce", "uint256", false}},
	"LogDepositReclaimed": {{"sender", "address", true}, {"amount", "uint256", false},
		{"l2Recipient", "uint256", true}, {"nonce", "uint256", false}},
	"LogDepositWithMessageReclaimed": {{"sender", "address", true}, {"amount", "uint256", false},
		{"l2Recipient", "uint256", true}, {"message", "uint256[]", false}, {"nonce", "uint256", false}},
	"LogWithdrawal":         {{"recipient", "address", true}, {"amount", "uint256", false}},
	"LogSetL2TokenBridge":   {{"value", "uint256", false}},
	"LogSetMaxTotalBalance": {{"value", "uint256", false}},
	"LogSetMaxDeposit":      {{"value", "uint256", false}},

	"TokenEnrollmentInitiated": {{"token", "address", false}, {"deploymentMsgHash", "bytes32", false}},
	"TokenActivated":           {{"token", "address", false}},
	"TokenDeactivated":         {{"token", "address", false}},
	"TokenBlocked":             {{"token", "address", false}},
	"TokenSelfRemoved":         {{"token", "address", false}},
	"TokenEnlisted":            {{"token", "address", true}, {"bridge", "address", true}},
	"ExistingBridgeAdded":      {{"token", "address", true}, {"bridge", "address", true}},
	"WithdrawalLimitEnabled":   {{"sender", "address", true}, {"token", "address", true}},
	"WithdrawalLimitDisabled":  {{"sender", "address", true}, {"token", "address", true}},

	"ImplementationAdded": {{"implementation", "address", true}, {"eic", "address", false},
		{"initData", "bytes", false}, {"finalize", "bool", false}},
	"ImplementationRemoved": {{"implementation", "address", true}, {"eic", "address", false},
		{"initData", "bytes", false}, {"finalize", "bool", false}},
	"Upgraded":                {{"implementation", "address", true}},
	"FinalizedImplementation": {{"implementation", "address", true}},

	"LogMessageToL2": {{"fromAddress", "address", true}, {"toAddress", "uint256", true}, {"selector", "uint256", true},
		{"payload", "uint256[]", false}, {"nonce", "uint256", false}, {"fee", "uint256", false}},
	"MessageToL2CancellationStarted": {{"fromAddress", "address", true}, {"toAddress", "uint256", true},
		{"selector", "uint256", true}, {"payload", "uint256[]", false}, {"nonce", "uint256", false}},
	"MessageToL2Canceled": {{"fromAddress", "address", true}, {"toAddress", "uint256", true},
		{"selector", "uint256", true}, {"payload", "uint256[]", false}, {"nonce", "uint256", false}},
	"ConsumedMessageToL1": {{"fromAddress", "uint256", true}, {"toAddress", "address", true},
		{"payload", "uint256[]", false}},
}

var (
	abiOnce   sync.Once
	parsedABI abi.ABI
	abiErr    error
)

// ABI returns the L1 event ABI.
func ABI() (abi.ABI, error) {
	abiOnce.Do(func() {
		parsedABI = abi.ABI{Events: make(map[string]abi.Event, len(l1Events))}
		for name, args := range l1Events {
			inputs := make(abi.Arguments, 0, len(args))
			for _, a := range args {
				t, err := abi.NewType(a.typ, "", nil)
				if err != nil {
					abiErr = fmt.Errorf("failed to build abi type %s for %s: %w", a.typ, name, err)
					return
				}
				inputs = append(inputs, abi.Argument{Name: a.name, Type: t, Indexed: a.indexed})
			}
			parsedABI.Events[name] = abi.NewEvent(name, name, false, inputs)
		}
	})
	return parsedABI, abiErr
}

// EncodeLog renders ev as the log an L1 node would return for a contract at address.
func EncodeLog(address common.Address, ev Event) (types.Log, error) {
	contract, err := ABI()
	if err != nil {
		return types.Log{}, err
	}
	def, ok := contract.Events[ev.Name()]
	if !ok {
		return types.Log{}, fmt.Errorf("%w: %s", ErrNoABI, ev.Name())
	}

	fields := ev.Fields()
	if len(fields) != len(def.Inputs) {
		return types.Log{}, fmt.Errorf("event %s has %d fields, abi expects %d", ev.Name(), len(fields), len(def.Inputs))
	}

	topics := []common.Hash{def.ID}
	var data []any
	for i, in := range def.Inputs {
		v := toABI(fields[i].Value)
		if !in.Indexed {
			data = append(data, v)
			continue
		}
		t, err := abi.MakeTopics([]any{v})
		if err != nil {
			return types.Log{}, fmt.Errorf("failed to encode topic %s of %s: %w", in.Name, ev.Name(), err)
		}
		topics = append(topics, t[0][0])
	}

	packed, err := def.Inputs.NonIndexed().Pack(data...)
	if err != nil {
		return types.Log{}, fmt.Errorf("failed to pack %s: %w", ev.Name(), err)
	}
	return types.Log{Address: address, Topics: topics, Data: packed}, nil
}

// DecodeLog unpacks the non-indexed fields of a log emitted under name.
func DecodeLog(name string, log types.Log) (map[string]any, error) {
	contract, err := ABI()
	if err != nil {
		return nil, err
	}
	out := make(map[string]any)
	if err := contract.UnpackIntoMap(out, name, log.Data); err != nil {
		return nil, fmt.Errorf("failed to unpack %s: %w", name, err)
	}
	return out, nil
}

func toABI(v any) any {
	switch x := v.(type) {
	case *uint256.Int:
		if x == nil {
			return new(big.Int)
		}
		return x.ToBig()
	case []*uint256.Int:
		out := make([]*big.Int, len(x))
		for i, e := range x {
			out[i] = e.ToBig()
		}
		return out
	case uint64:
		return new(big.Int).SetUint64(x)
	default:
		return v
	}
}
