package verification_test

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/snowflake/v2"

	"github.com/doorkeep/doorkeep/internal/verification"
)

// fakePlatform is an in-memory stand-in for the Discord REST adapter.
type fakePlatform struct {
	mu sync.Mutex

	memberRoles map[snowflake.ID][]snowflake.ID
	guildRoles  map[snowflake.ID]discord.Role
	channels    map[snowflake.ID]string
	messages    map[snowflake.ID][]discord.Message
	overwrites  map[snowflake.ID]map[snowflake.ID][2]discord.Permissions
	nextID      uint64
	selfID      snowflake.ID

	deleteChannelCalls int
	// deleteDelay makes DeleteChannel slow, for shutdown-ordering tests.
	// Set before any scheduling, never concurrently with calls.
	deleteDelay time.Duration

	addRoleErr       error
	removeRoleErr    error
	setRolesErr      error
	createMessageErr error
	getMessagesErr   error
}

var (
	_ verification.RoleService    = (*fakePlatform)(nil)
	_ verification.ChannelService = (*fakePlatform)(nil)
	_ verification.MessageService = (*fakePlatform)(nil)
)

func newFakePlatform() *fakePlatform {
	return &fakePlatform{
		memberRoles: make(map[snowflake.ID][]snowflake.ID),
		guildRoles:  make(map[snowflake.ID]discord.Role),
		channels:    make(map[snowflake.ID]string),
		messages:    make(map[snowflake.ID][]discord.Message),
		overwrites:  make(map[snowflake.ID]map[snowflake.ID][2]discord.Permissions),
		nextID:      1000,
	}
}

func (f *fakePlatform) allocID() snowflake.ID {
	f.nextID++
	return snowflake.ID(f.nextID)
}

func (f *fakePlatform) AddRole(_ context.Context, _, userID, roleID snowflake.ID) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.addRoleErr != nil {
		return f.addRoleErr
	}

	f.memberRoles[userID] = append(f.memberRoles[userID], roleID)

	return nil
}

func (f *fakePlatform) RemoveRole(_ context.Context, _, userID, roleID snowflake.ID) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.removeRoleErr != nil {
		return f.removeRoleErr
	}

	kept := f.memberRoles[userID][:0]
	for _, id := range f.memberRoles[userID] {
		if id != roleID {
			kept = append(kept, id)
		}
	}
	f.memberRoles[userID] = kept

	return nil
}

func (f *fakePlatform) SetRoles(_ context.Context, _, userID snowflake.ID, roleIDs []snowflake.ID) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.setRolesErr != nil {
		return f.setRolesErr
	}

	f.memberRoles[userID] = append([]snowflake.ID(nil), roleIDs...)

	return nil
}

func (f *fakePlatform) GetRole(_ context.Context, _, roleID snowflake.ID) (*discord.Role, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	role, ok := f.guildRoles[roleID]
	if !ok {
		return nil, fmt.Errorf("role %d: %w", roleID, verification.ErrNotFound)
	}

	return &role, nil
}

func (f *fakePlatform) CreateTextChannel(
	_ context.Context, _ snowflake.ID, create discord.GuildTextChannelCreate,
) (snowflake.ID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := f.allocID()
	f.channels[id] = create.Name

	return id, nil
}

func (f *fakePlatform) DeleteChannel(_ context.Context, channelID snowflake.ID) error {
	if f.deleteDelay > 0 {
		time.Sleep(f.deleteDelay)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.deleteChannelCalls++

	if _, ok := f.channels[channelID]; !ok {
		return fmt.Errorf("channel %d: %w", channelID, verification.ErrNotFound)
	}

	delete(f.channels, channelID)

	return nil
}

func (f *fakePlatform) FindChannelByName(
	_ context.Context, _ snowflake.ID, name string,
) (snowflake.ID, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for id, channelName := range f.channels {
		if channelName == name {
			return id, true, nil
		}
	}

	return 0, false, nil
}

func (f *fakePlatform) GetChannelParent(_ context.Context, _ snowflake.ID) (snowflake.ID, error) {
	return 0, nil
}

func (f *fakePlatform) ListChannels(_ context.Context, _ snowflake.ID) ([]verification.ChannelInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	infos := make([]verification.ChannelInfo, 0, len(f.channels))
	for id, name := range f.channels {
		infos = append(infos, verification.ChannelInfo{ID: id, Name: name})
	}

	return infos, nil
}

func (f *fakePlatform) SetRolePermission(
	_ context.Context, channelID, roleID snowflake.ID, allow, deny discord.Permissions,
) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.overwrites[channelID] == nil {
		f.overwrites[channelID] = make(map[snowflake.ID][2]discord.Permissions)
	}
	f.overwrites[channelID][roleID] = [2]discord.Permissions{allow, deny}

	return nil
}

func (f *fakePlatform) CreateMessage(
	_ context.Context, channelID snowflake.ID, message discord.MessageCreate,
) (snowflake.ID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.createMessageErr != nil {
		return 0, f.createMessageErr
	}

	id := f.allocID()
	f.messages[channelID] = append(f.messages[channelID], discord.Message{
		ID:        id,
		ChannelID: channelID,
		Author:    discord.User{ID: f.selfID},
		Content:   message.Content,
		Embeds:    message.Embeds,
	})

	return id, nil
}

func (f *fakePlatform) DeleteMessage(_ context.Context, channelID, messageID snowflake.ID) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	kept := f.messages[channelID][:0]
	found := false

	for _, message := range f.messages[channelID] {
		if message.ID == messageID {
			found = true
			continue
		}

		kept = append(kept, message)
	}
	f.messages[channelID] = kept

	if !found {
		return fmt.Errorf("message %d: %w", messageID, verification.ErrNotFound)
	}

	return nil
}

func (f *fakePlatform) GetMessages(
	_ context.Context, channelID snowflake.ID, limit int,
) ([]discord.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.getMessagesErr != nil {
		return nil, f.getMessagesErr
	}

	messages := f.messages[channelID]
	if len(messages) > limit {
		messages = messages[len(messages)-limit:]
	}

	return append([]discord.Message(nil), messages...), nil
}

// helpers used across tests

func (f *fakePlatform) setMemberRoles(userID snowflake.ID, roleIDs ...snowflake.ID) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.memberRoles[userID] = roleIDs
}

func (f *fakePlatform) roles(userID snowflake.ID) []snowflake.ID {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]snowflake.ID(nil), f.memberRoles[userID]...)
}

func (f *fakePlatform) addGuildRole(roleID snowflake.ID, name string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.guildRoles[roleID] = discord.Role{ID: roleID, Name: name}
}

func (f *fakePlatform) addChannel(channelID snowflake.ID, name string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.channels[channelID] = name
}

func (f *fakePlatform) removeChannel(channelID snowflake.ID) {
	f.mu.Lock()
	defer f.mu.Unlock()

	delete(f.channels, channelID)
}

func (f *fakePlatform) hasChannel(channelID snowflake.ID) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	_, ok := f.channels[channelID]

	return ok
}

func (f *fakePlatform) addMessage(channelID, messageID, authorID snowflake.ID) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.messages[channelID] = append(f.messages[channelID], discord.Message{
		ID:        messageID,
		ChannelID: channelID,
		Author:    discord.User{ID: authorID},
	})
}

func (f *fakePlatform) messageIDs(channelID snowflake.ID) []snowflake.ID {
	f.mu.Lock()
	defer f.mu.Unlock()

	ids := make([]snowflake.ID, 0, len(f.messages[channelID]))
	for _, message := range f.messages[channelID] {
		ids = append(ids, message.ID)
	}

	return ids
}

func (f *fakePlatform) deleteCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.deleteChannelCalls
}
