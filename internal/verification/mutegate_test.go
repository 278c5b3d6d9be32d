package verification_test

import (
	"context"
	"errors"
	"testing"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/snowflake/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/doorkeep/doorkeep/internal/verification"
)

const (
	testGuildID   = snowflake.ID(100)
	testMutedRole = snowflake.ID(500)
)

func member(userID snowflake.ID, roleIDs ...snowflake.ID) discord.Member {
	return discord.Member{
		User:    discord.User{ID: userID, Username: "tester"},
		RoleIDs: roleIDs,
	}
}

func TestMuteGateOnJoin(t *testing.T) {
	t.Parallel()

	platform := newFakePlatform()
	platform.addGuildRole(testMutedRole, "Muted")

	store := verification.NewMemorySnapshotStore()
	gate := verification.NewMuteGate(platform, store, testMutedRole, zap.NewNop())

	userID := snowflake.ID(1)
	platform.setMemberRoles(userID, 10, 20)

	err := gate.OnJoin(context.Background(), testGuildID, member(userID, 10, 20))
	require.NoError(t, err)

	// Snapshot holds the pre-join roles; effective roles are just the mute.
	snapshot, ok := store.Get(userID)
	require.True(t, ok)
	assert.Equal(t, []snowflake.ID{10, 20}, snapshot)
	assert.Equal(t, []snowflake.ID{testMutedRole}, platform.roles(userID))
}

func TestMuteGateOnJoinMissingMutedRole(t *testing.T) {
	t.Parallel()

	platform := newFakePlatform()
	// Muted role id configured but the guild has no such role.
	store := verification.NewMemorySnapshotStore()
	gate := verification.NewMuteGate(platform, store, testMutedRole, zap.NewNop())

	userID := snowflake.ID(2)
	platform.setMemberRoles(userID, 10)

	err := gate.OnJoin(context.Background(), testGuildID, member(userID, 10))
	require.NoError(t, err)

	// Degraded state: stripped but not muted.
	assert.Empty(t, platform.roles(userID))

	snapshot, ok := store.Get(userID)
	require.True(t, ok)
	assert.Equal(t, []snowflake.ID{10}, snapshot)
}

func TestMuteGateUnmuteAndRestore(t *testing.T) {
	t.Parallel()

	platform := newFakePlatform()
	platform.addGuildRole(testMutedRole, "Muted")

	store := verification.NewMemorySnapshotStore()
	gate := verification.NewMuteGate(platform, store, testMutedRole, zap.NewNop())

	userID := snowflake.ID(3)
	platform.setMemberRoles(userID, 10, 20)
	require.NoError(t, gate.OnJoin(context.Background(), testGuildID, member(userID, 10, 20)))

	require.NoError(t, gate.Unmute(context.Background(), testGuildID, userID))
	require.NoError(t, gate.Restore(context.Background(), testGuildID, userID))

	assert.ElementsMatch(t, []snowflake.ID{10, 20}, platform.roles(userID))

	_, ok := store.Get(userID)
	assert.False(t, ok, "snapshot must be consumed exactly once")
}

func TestMuteGateRestoreWithoutSnapshot(t *testing.T) {
	t.Parallel()

	platform := newFakePlatform()
	store := verification.NewMemorySnapshotStore()
	gate := verification.NewMuteGate(platform, store, testMutedRole, zap.NewNop())

	userID := snowflake.ID(4)

	// No snapshot: restoration is a no-op, not an error.
	require.NoError(t, gate.Restore(context.Background(), testGuildID, userID))
	assert.Empty(t, platform.roles(userID))
}

func TestMuteGateUnmutePermissionDenied(t *testing.T) {
	t.Parallel()

	platform := newFakePlatform()
	platform.removeRoleErr = verification.ErrPermissionDenied

	store := verification.NewMemorySnapshotStore()
	gate := verification.NewMuteGate(platform, store, testMutedRole, zap.NewNop())

	err := gate.Unmute(context.Background(), testGuildID, snowflake.ID(5))
	require.Error(t, err)
	assert.True(t, errors.Is(err, verification.ErrPermissionDenied))
}

func TestMuteGateRestoreStopsOnError(t *testing.T) {
	t.Parallel()

	platform := newFakePlatform()
	platform.addRoleErr = verification.ErrPermissionDenied

	store := verification.NewMemorySnapshotStore()
	store.Set(6, []snowflake.ID{10})

	gate := verification.NewMuteGate(platform, store, testMutedRole, zap.NewNop())

	err := gate.Restore(context.Background(), testGuildID, snowflake.ID(6))
	require.Error(t, err)

	// The snapshot survives a failed restore so the member can retry.
	_, ok := store.Get(6)
	assert.True(t, ok)
}

func TestIsGraduated(t *testing.T) {
	t.Parallel()

	graduated := []uint64{601, 602}

	tests := []struct {
		name    string
		roleIDs []snowflake.ID
		want    bool
	}{
		{"graduated and unmuted", []snowflake.ID{601}, true},
		{"second graduated role", []snowflake.ID{10, 602}, true},
		{"graduated but still muted", []snowflake.ID{601, testMutedRole}, false},
		{"muted before graduated", []snowflake.ID{testMutedRole, 601}, false},
		{"no graduated role", []snowflake.ID{10, 20}, false},
		{"no roles", nil, false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := verification.IsGraduated(tt.roleIDs, testMutedRole, graduated)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIsGraduatedZeroMutedRole(t *testing.T) {
	t.Parallel()

	// Without a configured muted role only the graduated roles matter.
	assert.True(t, verification.IsGraduated([]snowflake.ID{601}, 0, []uint64{601}))
	assert.False(t, verification.IsGraduated([]snowflake.ID{10}, 0, []uint64{601}))
}
