package simulate

import (
	"embed"
	"errors"
	"fmt"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"gopkg.in/yaml.v3"
)

//go:embed scenarios/*.yaml
var builtin embed.FS

// GovernorAccount names the stack governor in scenarios.
const GovernorAccount = "governor"

type Action string

const (
	ActionDeposit          Action = "deposit"
	ActionCancelRequest    Action = "cancel_request"
	ActionReclaim          Action = "reclaim"
	ActionRelay            Action = "relay"
	ActionAdvance          Action = "advance"
	ActionL2Transfer       Action = "l2_transfer"
	ActionInitiateWithdraw Action = "initiate_withdraw"
	ActionWithdraw         Action = "withdraw"
	ActionEnroll           Action = "enroll"
	ActionEnableLimit      Action = "enable_limit"
	ActionExpectBalance    Action = "expect_balance"
)

var knownActions = map[Action]bool{
	ActionDeposit: true, ActionCancelRequest: true, ActionReclaim: true, ActionRelay: true,
	ActionAdvance: true, ActionL2Transfer: true, ActionInitiateWithdraw: true, ActionWithdraw: true,
	ActionEnroll: true, ActionEnableLimit: true, ActionExpectBalance: true,
}

type (
	Scenario struct {
		Name string `yaml:"name"`
		// Mode and Asset override the configured bridge when set.
		Mode     string    `yaml:"mode"`
		Asset    string    `yaml:"asset"`
		Accounts []Account `yaml:"accounts"`
		Steps    []Step    `yaml:"steps"`
	}

	Account struct {
		Name    string `yaml:"name"`
		Address string `yaml:"address"`
		// Fund is given in both ether and the stack token.
		Fund string `yaml:"fund"`
	}

	Step struct {
		ID     string `yaml:"id"`
		Action Action `yaml:"action"`
		// From and To are L1 account names or L2 felts depending on the action.
		From    string   `yaml:"from"`
		To      string   `yaml:"to"`
		Amount  string   `yaml:"amount"`
		Fee     string   `yaml:"fee"`
		Message []string `yaml:"message"`
		// Deposit refers to the id of an earlier deposit step.
		Deposit string `yaml:"deposit"`
		Seconds uint64 `yaml:"seconds"`
		Chain   string `yaml:"chain"`
		// ExpectError is a revert reason the step must fail with.
		ExpectError string `yaml:"expect_error"`
	}
)

// Load reads a scenario file.
func Load(file string) (Scenario, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return Scenario{}, fmt.Errorf("failed to read scenario: %w", err)
	}
	return Parse(data)
}

// Builtin returns the scenario shipped under name.
func Builtin(name string) (Scenario, error) {
	data, err := builtin.ReadFile(path.Join("scenarios", name+".yaml"))
	if err != nil {
		return Scenario{}, fmt.Errorf("unknown scenario %q (known: %s)", name, strings.Join(BuiltinNames(), ", "))
	}
	return Parse(data)
}

func BuiltinNames() []string {
	entries, _ := builtin.ReadDir("scenarios")
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), ".yaml"))
	}
	sort.Strings(names)
	return names
}

func Parse(data []byte) (Scenario, error) {
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return Scenario{}, fmt.Errorf("failed to decode scenario: %w", err)
	}
	if err := sc.Validate(); err != nil {
		return Scenario{}, err
	}
	return sc, nil
}

func (sc Scenario) Validate() error {
	var errs []error
	if sc.Name == "" {
		errs = append(errs, errors.New("scenario name is required"))
	}

	accounts := map[string]bool{GovernorAccount: true}
	for _, a := range sc.Accounts {
		if a.Name == "" || accounts[a.Name] {
			errs = append(errs, fmt.Errorf("account name %q is empty or reused", a.Name))
		}
		accounts[a.Name] = true
		if !common.IsHexAddress(a.Address) {
			errs = append(errs, fmt.Errorf("account %s: invalid address %q", a.Name, a.Address))
		}
		if a.Fund != "" {
			if _, err := parseAmount(a.Fund); err != nil {
				errs = append(errs, fmt.Errorf("account %s: %w", a.Name, err))
			}
		}
	}

	deposits := make(map[string]bool)
	for i, s := range sc.Steps {
		if !knownActions[s.Action] {
			errs = append(errs, fmt.Errorf("step %d: unknown action %q", i, s.Action))
			continue
		}
		switch s.Action {
		case ActionDeposit, ActionCancelRequest, ActionReclaim, ActionWithdraw, ActionEnroll:
			if !accounts[s.From] {
				errs = append(errs, fmt.Errorf("step %d: unknown account %q", i, s.From))
			}
		}
		switch s.Action {
		case ActionDeposit:
			if s.ID != "" {
				deposits[s.ID] = true
			}
		case ActionCancelRequest, ActionReclaim:
			if !deposits[s.Deposit] {
				errs = append(errs, fmt.Errorf("step %d: unknown deposit %q", i, s.Deposit))
			}
		case ActionInitiateWithdraw:
			if !accounts[s.To] {
				errs = append(errs, fmt.Errorf("step %d: unknown account %q", i, s.To))
			}
		case ActionExpectBalance:
			if s.Chain != "l1" && s.Chain != "l2" {
				errs = append(errs, fmt.Errorf("step %d: chain must be l1 or l2", i))
			}
		}
	}
	return errors.Join(errs...)
}

// optionalAmount is parseAmount with an empty string read as zero.
func optionalAmount(s string) (*uint256.Int, error) {
	if strings.TrimSpace(s) == "" {
		return new(uint256.Int), nil
	}
	return parseAmount(s)
}

// parseAmount reads a decimal or 0x-prefixed hex number.
func parseAmount(s string) (*uint256.Int, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "0x") {
		v, err := uint256.FromHex(s)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q: %w", s, err)
		}
		return v, nil
	}
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, fmt.Errorf("invalid number %q: %w", s, err)
	}
	return v, nil
}
