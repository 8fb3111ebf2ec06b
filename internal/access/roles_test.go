package access

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func TestRoles(t *testing.T) {
	governor := common.HexToAddress("0x01")
	admin := common.HexToAddress("0x02")
	stranger := common.HexToAddress("0x03")

	r := NewRoles(governor)
	require.True(t, r.Has(GovernanceAdmin, governor))
	require.ErrorIs(t, r.Require(TokenAdmin, admin), ErrOnlyTokenAdmin)

	require.ErrorIs(t, r.Grant(stranger, TokenAdmin, admin), ErrOnlyRoleAdmin)
	require.NoError(t, r.Grant(governor, TokenAdmin, admin))
	require.NoError(t, r.Require(TokenAdmin, admin))

	require.NoError(t, r.Grant(governor, SecurityAgent, admin))
	require.True(t, r.Has(SecurityAgent, admin))

	require.NoError(t, r.Revoke(governor, TokenAdmin, admin))
	require.False(t, r.Has(TokenAdmin, admin))
}
