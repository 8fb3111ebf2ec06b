package simulate

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/compose-network/token-bridge/internal/deploy"
	"github.com/compose-network/token-bridge/internal/felt"
	"github.com/compose-network/token-bridge/internal/l1bridge"
	"github.com/compose-network/token-bridge/internal/logger"
	"github.com/compose-network/token-bridge/internal/report"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

var ErrBalanceMismatch = errors.New("balance mismatch")

type deposit struct {
	from      common.Address
	asset     common.Address
	amount    *uint256.Int
	recipient *uint256.Int
	message   []*uint256.Int
	nonce     uint64
}

// Runner plays a scenario against one stack.
type Runner struct {
	stack    *deploy.Stack
	accounts map[string]common.Address
	deposits map[string]deposit
	l2Seen   map[uint256.Int]bool
	logger   *slog.Logger
}

func NewRunner(stack *deploy.Stack) *Runner {
	return &Runner{
		stack:    stack,
		accounts: map[string]common.Address{GovernorAccount: stack.Config.Governor},
		deposits: make(map[string]deposit),
		l2Seen:   make(map[uint256.Int]bool),
		logger:   logger.Named("simulate"),
	}
}

// Apply adjusts a stack config to the scenario's mode and asset.
func Apply(sc Scenario, cfg *deploy.StackConfig) {
	switch sc.Mode {
	case "multi-token":
		cfg.Mode = l1bridge.MultiToken
	case "legacy":
		cfg.Mode = l1bridge.Legacy
	}
	if sc.Asset != "" {
		cfg.Asset = deploy.Asset(sc.Asset)
	}
}

// Run executes every step. Step failures are recorded in the report; the
// returned error covers setup problems only.
func (r *Runner) Run(sc Scenario) (report.Report, error) {
	s := r.stack
	out := report.Report{Scenario: sc.Name, Mode: modeName(s.Config.Mode)}

	for _, a := range sc.Accounts {
		addr := common.HexToAddress(a.Address)
		r.accounts[a.Name] = addr
		if a.Fund == "" {
			continue
		}
		amount, err := parseAmount(a.Fund)
		if err != nil {
			return out, err
		}
		if err := s.Fund(addr, amount); err != nil {
			return out, fmt.Errorf("failed to fund %s: %w", a.Name, err)
		}
	}

	for i, step := range sc.Steps {
		res := r.step(step)
		res.Index = i
		res.Action = string(step.Action)
		out.Steps = append(out.Steps, res)

		log := r.logger.With("index", i).With("action", step.Action)
		if res.OK {
			log.Debug("step passed")
		} else {
			log.With("err", res.Error).Warn("step failed")
		}
	}

	evs, err := report.FromEvents(s.Log.All())
	if err != nil {
		return out, err
	}
	out.Events = evs
	if out.Metrics, err = report.FromGatherer(s.Gatherer); err != nil {
		return out, err
	}
	out.Balances = r.balances()
	return out, nil
}

func (r *Runner) step(st Step) report.Step {
	res, err := r.exec(st)
	switch {
	case st.ExpectError == "" && err == nil:
		res.OK = true
	case st.ExpectError == "":
		res.Error = err.Error()
	case err == nil:
		res.Error = "expected " + st.ExpectError + ", step succeeded"
	default:
		res.Error = err.Error()
		res.OK = containsReason(err, st.ExpectError)
	}
	return res
}

func (r *Runner) exec(st Step) (report.Step, error) {
	var res report.Step
	s := r.stack
	asset := s.L1Asset()

	switch st.Action {
	case ActionDeposit:
		d, fee, err := r.depositArgs(st, asset)
		if err != nil {
			return res, err
		}
		var receipt l1bridge.Receipt
		if d.message != nil {
			receipt, err = s.L1.DepositWithMessage(d.from, d.asset, d.amount, d.recipient, d.message, fee)
		} else {
			receipt, err = s.L1.Deposit(d.from, d.asset, d.amount, d.recipient, fee)
		}
		if err != nil {
			return res, err
		}
		d.nonce = receipt.Nonce
		if st.ID != "" {
			r.deposits[st.ID] = d
		}
		res.MsgHash, res.Nonce = &receipt.MsgHash, &receipt.Nonce
		return res, nil

	case ActionCancelRequest, ActionReclaim:
		d := r.deposits[st.Deposit]
		if d.from == (common.Address{}) {
			return res, fmt.Errorf("deposit %q was never made", st.Deposit)
		}
		caller := r.accounts[st.From]
		switch {
		case st.Action == ActionCancelRequest && d.message != nil:
			return res, s.L1.DepositWithMessageCancelRequest(caller, d.asset, d.amount, d.recipient, d.message, d.nonce)
		case st.Action == ActionCancelRequest:
			return res, s.L1.DepositCancelRequest(caller, d.asset, d.amount, d.recipient, d.nonce)
		case d.message != nil:
			return res, s.L1.DepositWithMessageReclaim(caller, d.asset, d.amount, d.recipient, d.message, d.nonce)
		default:
			return res, s.L1.DepositReclaim(caller, d.asset, d.amount, d.recipient, d.nonce)
		}

	case ActionRelay:
		return res, s.Flush()

	case ActionAdvance:
		seconds := st.Seconds
		if seconds == 0 {
			seconds = s.Core.CancellationDelay()
		}
		s.Clock.Advance(seconds)
		return res, nil

	case ActionL2Transfer:
		from, to, amount, err := r.l2Args(st)
		if err != nil {
			return res, err
		}
		tok, err := s.L2Token(asset)
		if err != nil {
			return res, err
		}
		return res, tok.Transfer(from, to, amount)

	case ActionInitiateWithdraw:
		from, err := r.felt(st.From)
		if err != nil {
			return res, err
		}
		amount, err := parseAmount(st.Amount)
		if err != nil {
			return res, err
		}
		to := felt.AddressToFelt(r.accounts[st.To])
		if s.Config.Mode == l1bridge.Legacy {
			_, err = s.L2.InitiateWithdraw(from, to, amount)
		} else {
			_, err = s.L2.InitiateTokenWithdraw(from, asset, to, amount)
		}
		return res, err

	case ActionWithdraw:
		amount, err := parseAmount(st.Amount)
		if err != nil {
			return res, err
		}
		recipient := r.accounts[st.From]
		if st.To != "" {
			recipient = r.accounts[st.To]
		}
		return res, s.L1.Withdraw(r.accounts[st.From], asset, amount, recipient)

	case ActionEnroll:
		if s.Manager == nil {
			return res, l1bridge.ErrOnlyMultiTokenBridge
		}
		fee, err := optionalAmount(st.Fee)
		if err != nil {
			return res, err
		}
		hash, err := s.Manager.EnrollTokenBridge(r.accounts[st.From], asset, fee)
		if err != nil {
			return res, err
		}
		res.MsgHash = &hash
		return res, nil

	case ActionEnableLimit:
		return res, s.Limiter.Enable(s.Config.Governor, asset)

	case ActionExpectBalance:
		want, err := parseAmount(st.Amount)
		if err != nil {
			return res, err
		}
		got, err := r.balance(st)
		if err != nil {
			return res, err
		}
		if !got.Eq(want) {
			return res, fmt.Errorf("%w: %s on %s holds %s, want %s", ErrBalanceMismatch, st.To, st.Chain, got.Dec(), want.Dec())
		}
		return res, nil
	}
	return res, fmt.Errorf("unknown action %q", st.Action)
}

// containsReason reports whether err carries the revert reason anywhere in
// its chain of wrapped messages.
func containsReason(err error, reason string) bool {
	return strings.Contains(err.Error(), reason)
}

func (r *Runner) depositArgs(st Step, asset common.Address) (deposit, *uint256.Int, error) {
	amount, err := parseAmount(st.Amount)
	if err != nil {
		return deposit{}, nil, err
	}
	fee, err := optionalAmount(st.Fee)
	if err != nil {
		return deposit{}, nil, err
	}
	recipient, err := r.felt(st.To)
	if err != nil {
		return deposit{}, nil, err
	}
	d := deposit{from: r.accounts[st.From], asset: asset, amount: amount, recipient: recipient}
	if len(st.Message) > 0 {
		d.message = make([]*uint256.Int, len(st.Message))
		for i, m := range st.Message {
			if d.message[i], err = parseAmount(m); err != nil {
				return deposit{}, nil, err
			}
		}
	}
	return d, fee, nil
}

func (r *Runner) l2Args(st Step) (from, to, amount *uint256.Int, err error) {
	if from, err = r.felt(st.From); err != nil {
		return nil, nil, nil, err
	}
	if to, err = r.felt(st.To); err != nil {
		return nil, nil, nil, err
	}
	amount, err = parseAmount(st.Amount)
	return from, to, amount, err
}

// felt parses an L2 account and remembers it for the final balances.
func (r *Runner) felt(s string) (*uint256.Int, error) {
	v, err := parseAmount(s)
	if err != nil {
		return nil, err
	}
	r.l2Seen[*v] = true
	return v, nil
}

func (r *Runner) balance(st Step) (*uint256.Int, error) {
	s := r.stack
	if st.Chain == "l1" {
		addr, ok := r.accounts[st.To]
		if !ok {
			return nil, fmt.Errorf("unknown account %q", st.To)
		}
		if s.L1Asset() == l1bridge.L1TokenAddressOfETH {
			return s.Ether.BalanceOf(addr), nil
		}
		return s.Token.BalanceOf(addr), nil
	}
	account, err := r.felt(st.To)
	if err != nil {
		return nil, err
	}
	tok, err := s.L2Token(s.L1Asset())
	if err != nil {
		return nil, err
	}
	return tok.BalanceOf(account), nil
}

func (r *Runner) balances() []report.Balance {
	s := r.stack
	asset := s.L1Asset()
	var out []report.Balance

	names := make([]string, 0, len(r.accounts))
	for name := range r.accounts {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		addr := r.accounts[name]
		out = append(out,
			report.Balance{Chain: "l1", Asset: "ether", Account: name, Amount: s.Ether.BalanceOf(addr).Dec()},
			report.Balance{Chain: "l1", Asset: s.Token.Metadata().Symbol, Account: name, Amount: s.Token.BalanceOf(addr).Dec()})
	}
	out = append(out, report.Balance{Chain: "l1", Asset: asset.Hex(), Account: "bridge", Amount: s.L1.BridgeBalance(asset).Dec()})

	tok, err := s.L2Token(asset)
	if err != nil {
		return out
	}
	accounts := make([]uint256.Int, 0, len(r.l2Seen))
	for a := range r.l2Seen {
		accounts = append(accounts, a)
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].Lt(&accounts[j]) })
	for i := range accounts {
		out = append(out, report.Balance{Chain: "l2", Asset: tok.Address().Hex(), Account: accounts[i].Dec(),
			Amount: tok.BalanceOf(&accounts[i]).Dec()})
	}
	out = append(out, report.Balance{Chain: "l2", Asset: tok.Address().Hex(), Account: "total_supply", Amount: tok.TotalSupply().Dec()})
	return out
}

func modeName(m l1bridge.Mode) string {
	if m == l1bridge.MultiToken {
		return "multi-token"
	}
	return "legacy"
}
