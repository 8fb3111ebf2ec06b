package proxy

import (
	"errors"
	"testing"

	"github.com/compose-network/token-bridge/internal/chain"
	"github.com/compose-network/token-bridge/internal/events"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

const delay = 600

var (
	gov       = common.HexToAddress("0x42")
	stranger  = common.HexToAddress("0x43")
	proxyAddr = common.HexToAddress("0xff")
	implA     = common.HexToAddress("0xa")
	implB     = common.HexToAddress("0xb")
	eicAddr   = common.HexToAddress("0xe1c")
)

type impl struct {
	name string
	init [][]byte
	fail bool
}

func (i *impl) Initialize(data []byte) error {
	if i.fail {
		return errors.New("ILLEGAL_INIT_SIZE")
	}
	i.init = append(i.init, data)
	return nil
}

func newProxy(t *testing.T) (*Proxy[*impl], *chain.ManualClock, *events.Log) {
	t.Helper()
	clock := chain.NewManualClock(1)
	log := events.NewLog()
	g, err := NewGovernance(gov, log, proxyAddr)
	require.NoError(t, err)
	return New[*impl](proxyAddr, g, clock, delay, log), clock, log
}

func TestUpgradeTo(t *testing.T) {
	p, clock, log := newProxy(t)
	a, b := &impl{name: "a"}, &impl{name: "b"}
	p.Deploy(implA, a)
	p.Deploy(implB, b)
	specA := Spec{Implementation: implA, InitData: []byte{5, 6}}
	specB := Spec{Implementation: implB, InitData: []byte{6, 10}}

	_, err := p.Current()
	require.ErrorIs(t, err, ErrNoImplementation)
	require.ErrorIs(t, p.AddImplementation(stranger, specA), ErrOnlyGovernor)
	require.NoError(t, p.AddImplementation(gov, specA))
	require.NoError(t, p.AddImplementation(gov, specB))

	require.ErrorIs(t, p.UpgradeTo(stranger, specA), ErrOnlyGovernor)
	// The first upgrade does not wait for the delay.
	require.NoError(t, p.UpgradeTo(gov, specA))
	require.Equal(t, implA, p.Implementation())
	require.Equal(t, [][]byte{{5, 6}}, a.init)

	require.ErrorIs(t, p.UpgradeTo(gov, specB), ErrNotEnabledYet)
	clock.Advance(delay)
	require.NoError(t, p.UpgradeTo(gov, specB))
	cur, err := p.Current()
	require.NoError(t, err)
	require.Same(t, b, cur)

	ev, ok := log.Last("Upgraded")
	require.True(t, ok)
	require.Equal(t, implB, ev.(events.Upgraded).Implementation)

	// Reverting to an enabled implementation is immediate.
	require.NoError(t, p.UpgradeTo(gov, specA))
	require.NoError(t, p.RemoveImplementation(gov, specB))
	require.ErrorIs(t, p.UpgradeTo(gov, specB), ErrUnknownImplementation)
	require.Equal(t, implA, p.Implementation())
}

func TestImplementationKey(t *testing.T) {
	p, _, _ := newProxy(t)
	implSpec := Spec{Implementation: implA, InitData: []byte{5, 6}}
	require.NoError(t, p.AddImplementation(gov, implSpec))

	for _, other := range []Spec{
		{Implementation: implA, InitData: []byte{5, 6}, Final: true},
		{Implementation: implA, InitData: []byte{5}},
		{Implementation: implA, EIC: eicAddr, InitData: []byte{5, 6}},
		{Implementation: implB, InitData: []byte{5, 6}},
	} {
		require.ErrorIs(t, p.UpgradeTo(gov, other), ErrUnknownImplementation)
	}
	require.NoError(t, p.UpgradeTo(gov, implSpec))
}

func TestFinalization(t *testing.T) {
	p, clock, log := newProxy(t)
	p.Deploy(implA, &impl{})
	notFinal := Spec{Implementation: implA}
	final := Spec{Implementation: implA, Final: true}

	require.NoError(t, p.AddImplementation(gov, notFinal))
	require.NoError(t, p.UpgradeTo(gov, notFinal))
	require.False(t, p.Finalized())

	require.NoError(t, p.AddImplementation(gov, final))
	clock.Advance(delay)
	require.NoError(t, p.UpgradeTo(gov, final))
	require.True(t, p.Finalized())
	require.Len(t, log.ByName("FinalizedImplementation"), 1)

	require.ErrorIs(t, p.UpgradeTo(gov, notFinal), ErrFinalized)
	require.ErrorIs(t, p.UpgradeTo(gov, final), ErrFinalized)
	require.ErrorIs(t, p.AddImplementation(gov, notFinal), ErrFinalized)
}

func TestExternalInitializer(t *testing.T) {
	p, _, _ := newProxy(t)
	a, eic := &impl{}, &impl{}
	p.Deploy(implA, a)
	implSpec := Spec{Implementation: implA, EIC: eicAddr, InitData: []byte{1}}
	require.NoError(t, p.AddImplementation(gov, implSpec))
	require.ErrorIs(t, p.UpgradeTo(gov, implSpec), ErrUnknownImplementation)

	p.DeployEIC(eicAddr, eic)
	require.NoError(t, p.UpgradeTo(gov, implSpec))
	require.Empty(t, a.init)
	require.Equal(t, [][]byte{{1}}, eic.init)
}

func TestFailedInitializationKeepsImplementation(t *testing.T) {
	p, clock, _ := newProxy(t)
	p.Deploy(implA, &impl{})
	p.Deploy(implB, &impl{fail: true})
	specA, specB := Spec{Implementation: implA}, Spec{Implementation: implB}
	require.NoError(t, p.AddImplementation(gov, specA))
	require.NoError(t, p.AddImplementation(gov, specB))
	require.NoError(t, p.UpgradeTo(gov, specA))

	clock.Advance(delay)
	require.Error(t, p.UpgradeTo(gov, specB))
	require.Equal(t, implA, p.Implementation())
}

func TestGovernance(t *testing.T) {
	log := events.NewLog()
	_, err := NewGovernance(common.Address{}, log, proxyAddr)
	require.ErrorIs(t, err, ErrZeroAddress)

	g, err := NewGovernance(gov, log, proxyAddr)
	require.NoError(t, err)
	nominee := common.HexToAddress("0x44")

	require.ErrorIs(t, g.Nominate(stranger, nominee), ErrOnlyGovernor)
	require.ErrorIs(t, g.Nominate(gov, common.Address{}), ErrZeroAddress)
	require.ErrorIs(t, g.Accept(nominee), ErrNotCandidate)

	require.NoError(t, g.CancelNomination(gov, nominee))
	require.Empty(t, log.ByName("LogNominationCancelled"))

	require.NoError(t, g.Nominate(gov, nominee))
	require.NoError(t, g.Accept(nominee))
	require.True(t, g.IsGovernor(nominee))
	require.ErrorIs(t, g.Accept(nominee), ErrNotCandidate)
	require.ErrorIs(t, g.Nominate(gov, nominee), ErrAlreadyGovernor)

	require.ErrorIs(t, g.Remove(gov, gov), ErrSelfRemove)
	require.NoError(t, g.Remove(nominee, gov))
	require.False(t, g.IsGovernor(gov))
	require.Len(t, log.ByName("LogRemovedGovernor"), 1)
}
