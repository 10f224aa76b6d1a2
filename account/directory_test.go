package account

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestDirectoryRegistration tests ID allocation, idempotent lookups and
// resolution.
func TestDirectoryRegistration(t *testing.T) {
	t.Parallel()

	d := NewDirectory()
	require.EqualValues(t, 0, d.NumUsers())

	id, isNew, err := d.GetOrRegister("alice")
	require.NoError(t, err)
	require.True(t, isNew)
	require.EqualValues(t, 0, id)

	id, isNew, err = d.GetOrRegister("bob")
	require.NoError(t, err)
	require.True(t, isNew)
	require.EqualValues(t, 1, id)

	// A repeat lookup returns the same ID without registering.
	id, isNew, err = d.GetOrRegister("alice")
	require.NoError(t, err)
	require.False(t, isNew)
	require.EqualValues(t, 0, id)
	require.EqualValues(t, 2, d.NumUsers())

	addr, err := d.Resolve(1)
	require.NoError(t, err)
	require.Equal(t, Address("bob"), addr)

	_, err = d.Resolve(5)
	require.ErrorIs(t, err, ErrUnknownUser)

	// Explicit registration rejects known addresses.
	_, err = d.Register("alice")
	require.ErrorIs(t, err, ErrAlreadyRegistered)

	id, err = d.Register("carol")
	require.NoError(t, err)
	require.EqualValues(t, 2, id)
}

// TestDirectorySnapshotRoundTrip tests that the persisted form restores the
// full bijection.
func TestDirectorySnapshotRoundTrip(t *testing.T) {
	t.Parallel()

	d := NewDirectory()
	for _, addr := range []Address{"alice", "bob", "carol"} {
		_, _, err := d.GetOrRegister(addr)
		require.NoError(t, err)
	}

	restored, err := LoadDirectory(d.Snapshot())
	require.NoError(t, err)
	require.EqualValues(t, 3, restored.NumUsers())

	id, ok := restored.UserID("carol")
	require.True(t, ok)
	require.EqualValues(t, 2, id)

	// New registrations continue after the loaded IDs.
	id, _, err = restored.GetOrRegister("dave")
	require.NoError(t, err)
	require.EqualValues(t, 3, id)

	// A gap in the ID space is rejected.
	_, err = LoadDirectory(map[uint64]Address{0: "alice", 2: "carol"})
	require.Error(t, err)
}
