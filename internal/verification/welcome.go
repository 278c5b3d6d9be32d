package verification

import (
	"context"
	"fmt"
	"os"

	"github.com/bytedance/sonic"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/snowflake/v2"
	"go.uber.org/zap"
)

// welcomeHistoryLimit bounds the startup cleanup scan. Stale prompts older
// than the most recent 100 messages are a known limitation.
const welcomeHistoryLimit = 100

// WelcomePointer locates the live verification prompt so a restarted process
// can replace its own previous message.
type WelcomePointer struct {
	MessageID uint64 `json:"message_id"`
	ChannelID uint64 `json:"channel_id"`
}

// WelcomeManager owns the durable verification prompt in the welcome channel:
// exactly one bot-authored prompt exists there after Publish.
type WelcomeManager struct {
	messages  MessageService
	stateFile string
	logger    *zap.Logger
}

// NewWelcomeManager creates a welcome prompt manager persisting its pointer
// to stateFile.
func NewWelcomeManager(messages MessageService, stateFile string, logger *zap.Logger) *WelcomeManager {
	return &WelcomeManager{
		messages:  messages,
		stateFile: stateFile,
		logger:    logger,
	}
}

// Publish replaces the verification prompt in the welcome channel: the
// pointed-to previous prompt and any other bot-authored messages among the
// most recent 100 are deleted, then the new prompt is posted and its pointer
// persisted. Cleanup failures are logged, never surfaced, never retried.
func (m *WelcomeManager) Publish(
	ctx context.Context, channelID, botUserID snowflake.ID, prompt discord.MessageCreate,
) (snowflake.ID, error) {
	m.cleanup(ctx, channelID, botUserID)

	messageID, err := m.messages.CreateMessage(ctx, channelID, prompt)
	if err != nil {
		return 0, fmt.Errorf("failed to post welcome prompt: %w", err)
	}

	if err := m.savePointer(WelcomePointer{
		MessageID: uint64(messageID),
		ChannelID: uint64(channelID),
	}); err != nil {
		// The pointer is not load-bearing for verification correctness.
		m.logger.Warn("Failed to persist welcome message pointer", zap.Error(err))
	}

	m.logger.Info("Published welcome prompt",
		zap.Uint64("channel_id", uint64(channelID)),
		zap.Uint64("message_id", uint64(messageID)))

	return messageID, nil
}

// cleanup removes the bot's previous messages from the welcome channel.
func (m *WelcomeManager) cleanup(ctx context.Context, channelID, botUserID snowflake.ID) {
	// Delete the pointed-to prompt from a previous run first; it may be
	// deeper in history than the scan below reaches.
	if pointer, ok := m.LoadPointer(); ok && pointer.ChannelID == uint64(channelID) {
		err := m.messages.DeleteMessage(ctx, channelID, snowflake.ID(pointer.MessageID))
		if err != nil {
			m.logger.Debug("Could not delete pointed-to welcome prompt",
				zap.Uint64("message_id", pointer.MessageID),
				zap.Error(err))
		}
	}

	messages, err := m.messages.GetMessages(ctx, channelID, welcomeHistoryLimit)
	if err != nil {
		m.logger.Error("Error cleaning welcome channel", zap.Error(err))
		return
	}

	for _, message := range messages {
		if message.Author.ID != botUserID {
			continue
		}

		if err := m.messages.DeleteMessage(ctx, channelID, message.ID); err != nil {
			m.logger.Warn("Could not delete previous welcome message",
				zap.Uint64("message_id", uint64(message.ID)),
				zap.Error(err))
		}
	}
}

// LoadPointer reads the persisted prompt pointer from a previous run.
func (m *WelcomeManager) LoadPointer() (WelcomePointer, bool) {
	data, err := os.ReadFile(m.stateFile)
	if err != nil {
		return WelcomePointer{}, false
	}

	var pointer WelcomePointer
	if err := sonic.Unmarshal(data, &pointer); err != nil {
		m.logger.Warn("Invalid welcome message pointer file", zap.Error(err))
		return WelcomePointer{}, false
	}

	return pointer, true
}

func (m *WelcomeManager) savePointer(pointer WelcomePointer) error {
	data, err := sonic.Marshal(pointer)
	if err != nil {
		return fmt.Errorf("failed to marshal pointer: %w", err)
	}

	if err := os.WriteFile(m.stateFile, data, 0o644); err != nil {
		return fmt.Errorf("failed to write pointer file: %w", err)
	}

	return nil
}
