package verification

import (
	"context"
	"errors"
	"fmt"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/snowflake/v2"
	"go.uber.org/zap"
)

// MuteGate applies the muted role to new members and restores their original
// roles on booking confirmation. Snapshots are kept in the injected store.
type MuteGate struct {
	roles       RoleService
	store       SnapshotStore
	mutedRoleID snowflake.ID
	logger      *zap.Logger
}

// NewMuteGate creates a mute gate. A zero mutedRoleID is tolerated: joins then
// degrade to stripping roles without muting.
func NewMuteGate(roles RoleService, store SnapshotStore, mutedRoleID snowflake.ID, logger *zap.Logger) *MuteGate {
	return &MuteGate{
		roles:       roles,
		store:       store,
		mutedRoleID: mutedRoleID,
		logger:      logger,
	}
}

// OnJoin snapshots the member's roles and replaces them with the muted role.
// Member.RoleIDs never contains the @everyone role, so the snapshot already
// excludes it. If the muted role cannot be resolved the member is left merely
// stripped of roles; this is a degraded state, not a failure.
func (g *MuteGate) OnJoin(ctx context.Context, guildID snowflake.ID, member discord.Member) error {
	userID := member.User.ID
	g.store.Set(userID, member.RoleIDs)

	muted, err := g.resolveMutedRole(ctx, guildID)
	if err != nil {
		g.logger.Error("Muted role not found, stripping roles only",
			zap.Uint64("user_id", uint64(userID)),
			zap.Error(err))

		if err := g.roles.SetRoles(ctx, guildID, userID, nil); err != nil {
			return fmt.Errorf("failed to strip roles: %w", err)
		}

		return nil
	}

	if err := g.roles.SetRoles(ctx, guildID, userID, []snowflake.ID{muted.ID}); err != nil {
		return fmt.Errorf("failed to mute member: %w", err)
	}

	g.logger.Info("Muted new member",
		zap.Uint64("user_id", uint64(userID)),
		zap.String("username", member.User.Username),
		zap.Int("snapshot_roles", len(member.RoleIDs)))

	return nil
}

// Unmute removes the muted role from a member.
func (g *MuteGate) Unmute(ctx context.Context, guildID, userID snowflake.ID) error {
	if err := g.roles.RemoveRole(ctx, guildID, userID, g.mutedRoleID); err != nil {
		return fmt.Errorf("failed to remove muted role: %w", err)
	}

	g.logger.Info("Removed muted role", zap.Uint64("user_id", uint64(userID)))

	return nil
}

// Restore re-adds every role from the member's snapshot and deletes the
// snapshot. A member without a snapshot keeps only the default role; that is
// an accepted edge case, not an error.
func (g *MuteGate) Restore(ctx context.Context, guildID, userID snowflake.ID) error {
	roleIDs, ok := g.store.Get(userID)
	if !ok {
		g.logger.Info("No role snapshot to restore", zap.Uint64("user_id", uint64(userID)))
		return nil
	}

	for _, roleID := range roleIDs {
		if err := g.roles.AddRole(ctx, guildID, userID, roleID); err != nil {
			return fmt.Errorf("failed to restore role %d: %w", roleID, err)
		}
	}

	g.store.Delete(userID)

	g.logger.Info("Restored member roles",
		zap.Uint64("user_id", uint64(userID)),
		zap.Int("role_count", len(roleIDs)))

	return nil
}

// MutedRoleID returns the configured muted role id.
func (g *MuteGate) MutedRoleID() snowflake.ID {
	return g.mutedRoleID
}

// IsGraduated reports whether a member with the given roles has already
// completed verification: they hold at least one graduated role and are not
// muted. The muted role wins regardless of position in the slice.
func IsGraduated(roleIDs []snowflake.ID, mutedRoleID snowflake.ID, graduatedRoleIDs []uint64) bool {
	graduated := false

	for _, roleID := range roleIDs {
		if mutedRoleID != 0 && roleID == mutedRoleID {
			return false
		}

		for _, graduatedID := range graduatedRoleIDs {
			if uint64(roleID) == graduatedID {
				graduated = true
			}
		}
	}

	return graduated
}

// resolveMutedRole validates the configured muted role against the guild.
func (g *MuteGate) resolveMutedRole(ctx context.Context, guildID snowflake.ID) (*discord.Role, error) {
	if g.mutedRoleID == 0 {
		return nil, fmt.Errorf("%w: muted role id", ErrConfigMissing)
	}

	role, err := g.roles.GetRole(ctx, guildID, g.mutedRoleID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("muted role %d: %w", g.mutedRoleID, err)
		}

		return nil, err
	}

	return role, nil
}
