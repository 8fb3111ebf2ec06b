package simulate

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/compose-network/token-bridge/configs"
	"github.com/compose-network/token-bridge/internal/report"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, sc Scenario) report.Report {
	t.Helper()
	cfg, err := configs.DefaultConfig()
	require.NoError(t, err)
	r, err := RunConfig(cfg, sc)
	require.NoError(t, err)
	return r
}

func requirePassed(t *testing.T, r report.Report) {
	t.Helper()
	for _, s := range r.Steps {
		require.Truef(t, s.OK, "step %d (%s): %s", s.Index, s.Action, s.Error)
	}
	require.Zero(t, r.Failed())
}

func TestBuiltinScenarios(t *testing.T) {
	names := BuiltinNames()
	require.ElementsMatch(t, []string{"cancel_reclaim", "multi_token", "round_trip"}, names)

	for _, name := range names {
		t.Run(name, func(t *testing.T) {
			sc, err := Builtin(name)
			require.NoError(t, err)
			r := run(t, sc)
			requirePassed(t, r)
			require.NotEmpty(t, r.Events)
			require.NotEmpty(t, r.Balances)
		})
	}
}

func TestRoundTripReport(t *testing.T) {
	sc, err := Builtin("round_trip")
	require.NoError(t, err)
	r := run(t, sc)
	requirePassed(t, r)

	require.Equal(t, "legacy", r.Mode)
	require.NotNil(t, r.Steps[0].MsgHash)
	require.NotNil(t, r.Steps[0].Nonce)

	supply := r.Balances[len(r.Balances)-1]
	require.Equal(t, "total_supply", supply.Account)
	require.Equal(t, "0", supply.Amount)

	names := make(map[string]bool)
	for _, e := range r.Events {
		names[e.Name] = true
	}
	require.True(t, names["Deposit"])
	require.True(t, names["Withdrawal"])
}

func TestRejectedDepositWithMessageIsReclaimable(t *testing.T) {
	sc, err := Parse([]byte(`
name: rejected
accounts:
  - name: alice
    address: "0x00000000000000000000000000000000000a11ce"
    fund: "1000"
steps:
  - id: d1
    action: deposit
    from: alice
    to: "341"
    amount: "6"
    fee: "1"
    message: ["7", "0x8"]
  - action: relay
    expect_error: DEPOSIT_REJECTED
  - action: cancel_request
    from: alice
    deposit: d1
  - action: advance
  - action: reclaim
    from: alice
    deposit: d1
  - action: expect_balance
    chain: l1
    to: alice
    amount: "1000"
  - action: expect_balance
    chain: l2
    to: "341"
    amount: "0"
`))
	require.NoError(t, err)
	requirePassed(t, run(t, sc))
}

func TestUnexpectedOutcomesFail(t *testing.T) {
	sc, err := Parse([]byte(`
name: wrong
accounts:
  - name: alice
    address: "0x00000000000000000000000000000000000a11ce"
    fund: "10"
steps:
  - action: deposit
    from: alice
    to: "341"
    amount: "5"
    fee: "1"
    expect_error: ZERO_DEPOSIT
  - action: expect_balance
    chain: l1
    to: alice
    amount: "10"
  - action: withdraw
    from: alice
    amount: "5"
`))
	require.NoError(t, err)
	r := run(t, sc)

	require.Equal(t, 3, r.Failed())
	require.False(t, r.Steps[0].OK)
	require.Contains(t, r.Steps[0].Error, "step succeeded")
	require.False(t, r.Steps[1].OK)
	require.Contains(t, r.Steps[1].Error, ErrBalanceMismatch.Error())
	require.False(t, r.Steps[2].OK)
	require.Contains(t, r.Steps[2].Error, "INVALID_MESSAGE_TO_CONSUME")
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"bad yaml", "name: [", "failed to decode scenario"},
		{"no name", "steps: []", "scenario name is required"},
		{"bad address", "name: x\naccounts:\n  - name: a\n    address: nope", "invalid address"},
		{"reused account", "name: x\naccounts:\n  - name: governor\n    address: \"0x01\"", "empty or reused"},
		{"bad fund", "name: x\naccounts:\n  - name: a\n    address: \"0x01\"\n    fund: ten", "invalid number"},
		{"unknown action", "name: x\nsteps:\n  - action: fly", "unknown action"},
		{"unknown account", "name: x\nsteps:\n  - action: deposit\n    from: bob", "unknown account"},
		{"unknown deposit", "name: x\nsteps:\n  - action: reclaim\n    from: governor\n    deposit: d9", "unknown deposit"},
		{"bad chain", "name: x\nsteps:\n  - action: expect_balance\n    chain: l3", "chain must be l1 or l2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.ErrorContains(t, err, tt.want)
		})
	}
}

func TestResolve(t *testing.T) {
	_, err := resolve("no_such_scenario")
	require.ErrorContains(t, err, "round_trip")

	file := filepath.Join(t.TempDir(), "s.yaml")
	require.NoError(t, os.WriteFile(file, []byte("name: from_file\n"), 0o600))
	sc, err := resolve(file)
	require.NoError(t, err)
	require.Equal(t, "from_file", sc.Name)
}

func TestParseAmount(t *testing.T) {
	v, err := parseAmount("0x10")
	require.NoError(t, err)
	require.Equal(t, uint64(16), v.Uint64())

	v, err = optionalAmount(" ")
	require.NoError(t, err)
	require.True(t, v.IsZero())

	_, err = parseAmount("0x")
	require.Error(t, err)
}
