package verification_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/snowflake/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/doorkeep/doorkeep/internal/verification"
)

const (
	welcomeChannelID = snowflake.ID(700)
	botUserID        = snowflake.ID(999)
)

func newWelcomeManager(t *testing.T, platform *fakePlatform) (*verification.WelcomeManager, string) {
	t.Helper()

	stateFile := filepath.Join(t.TempDir(), "welcome_message.json")

	return verification.NewWelcomeManager(platform, stateFile, zap.NewNop()), stateFile
}

func TestWelcomePublishPostsPromptAndPointer(t *testing.T) {
	t.Parallel()

	platform := newFakePlatform()
	platform.selfID = botUserID
	manager, stateFile := newWelcomeManager(t, platform)

	messageID, err := manager.Publish(context.Background(), welcomeChannelID, botUserID, discord.MessageCreate{Content: "prompt"})
	require.NoError(t, err)
	assert.Equal(t, []snowflake.ID{messageID}, platform.messageIDs(welcomeChannelID))

	data, err := os.ReadFile(stateFile)
	require.NoError(t, err)

	var pointer verification.WelcomePointer
	require.NoError(t, sonic.Unmarshal(data, &pointer))
	assert.Equal(t, uint64(messageID), pointer.MessageID)
	assert.Equal(t, uint64(welcomeChannelID), pointer.ChannelID)
}

func TestWelcomePublishRemovesPreviousBotMessages(t *testing.T) {
	t.Parallel()

	platform := newFakePlatform()
	platform.selfID = botUserID
	manager, _ := newWelcomeManager(t, platform)

	// Previous bot prompts plus unrelated member chatter.
	platform.addMessage(welcomeChannelID, 1, botUserID)
	platform.addMessage(welcomeChannelID, 2, snowflake.ID(123))
	platform.addMessage(welcomeChannelID, 3, botUserID)

	messageID, err := manager.Publish(context.Background(), welcomeChannelID, botUserID, discord.MessageCreate{Content: "prompt"})
	require.NoError(t, err)

	assert.ElementsMatch(t, []snowflake.ID{2, messageID}, platform.messageIDs(welcomeChannelID))
}

func TestWelcomePublishReplacesOwnPriorPrompt(t *testing.T) {
	t.Parallel()

	platform := newFakePlatform()
	platform.selfID = botUserID
	manager, _ := newWelcomeManager(t, platform)

	first, err := manager.Publish(context.Background(), welcomeChannelID, botUserID, discord.MessageCreate{Content: "prompt"})
	require.NoError(t, err)

	second, err := manager.Publish(context.Background(), welcomeChannelID, botUserID, discord.MessageCreate{Content: "prompt"})
	require.NoError(t, err)

	// At most one live prompt after a restart-style republish.
	assert.NotEqual(t, first, second)
	assert.Equal(t, []snowflake.ID{second}, platform.messageIDs(welcomeChannelID))

	pointer, ok := manager.LoadPointer()
	require.True(t, ok)
	assert.Equal(t, uint64(second), pointer.MessageID)
}

func TestWelcomePublishSurvivesHistoryFetchError(t *testing.T) {
	t.Parallel()

	platform := newFakePlatform()
	platform.selfID = botUserID
	platform.getMessagesErr = verification.ErrPermissionDenied
	manager, _ := newWelcomeManager(t, platform)

	// Cleanup failures are logged only; the prompt still goes out.
	messageID, err := manager.Publish(context.Background(), welcomeChannelID, botUserID, discord.MessageCreate{Content: "prompt"})
	require.NoError(t, err)
	assert.NotZero(t, messageID)
}

func TestWelcomeLoadPointerMissingFile(t *testing.T) {
	t.Parallel()

	platform := newFakePlatform()
	manager, _ := newWelcomeManager(t, platform)

	_, ok := manager.LoadPointer()
	assert.False(t, ok)
}
