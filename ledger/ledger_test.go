package ledger

import (
	"context"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

// TestMemoryLedger tests balance movements, the escrow invariant and the
// journal.
func TestMemoryLedger(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	l := NewMemoryLedger()

	l.Mint("A", "alice", uint256.NewInt(100))
	require.Equal(t, uint256.NewInt(100), l.Balance("A", "alice"))

	// Pulling more than the balance fails without mutation.
	err := l.Pull(ctx, "A", "alice", uint256.NewInt(150))
	var insufficient *ErrInsufficientFunds
	require.ErrorAs(t, err, &insufficient)
	require.Equal(t, uint256.NewInt(100), l.Balance("A", "alice"))
	require.True(t, l.Escrow("A").IsZero())

	require.NoError(t, l.Pull(ctx, "A", "alice", uint256.NewInt(60)))
	require.Equal(t, uint256.NewInt(40), l.Balance("A", "alice"))
	require.Equal(t, uint256.NewInt(60), l.Escrow("A"))

	// Pushing beyond the escrow fails.
	err = l.Push(ctx, "A", "bob", uint256.NewInt(70))
	require.ErrorAs(t, err, &insufficient)

	require.NoError(t, l.Push(ctx, "A", "bob", uint256.NewInt(60)))
	require.Equal(t, uint256.NewInt(60), l.Balance("A", "bob"))
	require.True(t, l.Escrow("A").IsZero())

	// Zero pushes are dropped and don't pollute the journal.
	require.NoError(t, l.Push(ctx, "A", "bob", uint256.NewInt(0)))

	journal := l.Journal()
	require.Len(t, journal, 2)
	require.Equal(t, DirectionPull, journal[0].Direction)
	require.Equal(t, DirectionPush, journal[1].Direction)
	require.Equal(t, uint256.NewInt(60), journal[0].Amount)
}
