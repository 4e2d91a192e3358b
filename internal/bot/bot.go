package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/xaenox/trajectory-bot/internal/models"
	"github.com/xaenox/trajectory-bot/internal/pipeline"
	"github.com/xaenox/trajectory-bot/internal/storage"
	"go.uber.org/zap"
)

type Bot struct {
	api      *tgbotapi.BotAPI
	storage  storage.Storage
	pipeline *pipeline.Pipeline
	logger   *zap.Logger

	// running guards /run so only one batch is clustered at a time.
	running sync.Mutex
}

func New(token string, storage storage.Storage, pipeline *pipeline.Pipeline, logger *zap.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	logger.Info("Authorized on Telegram", zap.String("username", api.Self.UserName))

	return &Bot{
		api:      api,
		storage:  storage,
		pipeline: pipeline,
		logger:   logger,
	}, nil
}

// Start polls for updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	defer b.api.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil {
				continue
			}
			go b.handleMessage(ctx, update.Message)
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	if message.IsCommand() {
		b.handleCommand(ctx, message)
		return
	}

	b.sendMessage(message.Chat.ID, "I only understand commands. Use /help to see them.")
}

func (b *Bot) handleCommand(ctx context.Context, message *tgbotapi.Message) {
	switch message.Command() {
	case "start":
		b.handleStart(message)
	case "help":
		b.handleHelp(message)
	case "run":
		b.handleRun(ctx, message)
	case "clusters":
		b.handleClusters(ctx, message)
	case "cluster":
		b.handleCluster(ctx, message)
	case "trajectory":
		b.handleTrajectory(ctx, message)
	case "skips":
		b.handleSkips(ctx, message)
	default:
		b.sendMessage(message.Chat.ID, "Unknown command. Use /help to see available commands.")
	}
}

func (b *Bot) handleStart(message *tgbotapi.Message) {
	welcome := `Welcome to TrajectoryBot! 🧭
I map stored human-AI conversations into relational space and group them by the shape of their paths.

Use /run to cluster the stored conversations and /help to see all available commands.`

	b.sendMessage(message.Chat.ID, welcome)
}

func (b *Bot) handleHelp(message *tgbotapi.Message) {
	help := `Available commands:
/start - Start the bot
/help - Show this help message
/run - Annotate, simulate and cluster all stored conversations
/clusters - Show the clusters of the latest run
/cluster <id> - Show one cluster of the latest run
/trajectory <conversation id> - Show the path of one conversation
/skips - Show conversations the latest run left out`

	b.sendMessage(message.Chat.ID, help)
}

func (b *Bot) handleRun(ctx context.Context, message *tgbotapi.Message) {
	if !b.running.TryLock() {
		b.sendMessage(message.Chat.ID, "A run is already in progress.")
		return
	}
	defer b.running.Unlock()

	convs, err := b.storage.ListConversations(ctx)
	if err != nil {
		b.logger.Error("Failed to list conversations", zap.Error(err))
		b.sendErrorMessage(message.Chat.ID, "Sorry, I couldn't load the conversations.")
		return
	}

	b.sendMessage(message.Chat.ID, fmt.Sprintf("Processing %d conversations...", len(convs)))

	result, err := b.pipeline.Run(ctx, convs)
	if result != nil {
		for i := range result.Annotated {
			if saveErr := b.storage.SaveConversation(ctx, &result.Annotated[i]); saveErr != nil {
				b.logger.Error("Failed to save annotated conversation",
					zap.Error(saveErr),
					zap.String("conversation_id", result.Annotated[i].ID))
			}
		}
	}
	if err != nil {
		b.logger.Error("Pipeline run failed",
			zap.Error(err),
			zap.Int64("chat_id", message.Chat.ID))
		if errors.Is(err, pipeline.ErrEmptyInput) {
			b.sendErrorMessage(message.Chat.ID, "There are no stored conversations yet.")
			return
		}
		b.sendErrorMessage(message.Chat.ID, "Clustering failed: "+err.Error())
		return
	}

	run := result.ToRun()
	if err := b.storage.SaveRun(ctx, run); err != nil {
		b.logger.Error("Failed to save run", zap.Error(err))
		b.sendErrorMessage(message.Chat.ID, "Clustering finished but the run couldn't be saved.")
	}

	b.sendMarkdown(message.Chat.ID, formatRun(run, len(result.Issues)))
}

func (b *Bot) latestRun(ctx context.Context, chatID int64) (*models.ClusterRun, bool) {
	run, err := b.storage.GetLatestRun(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		b.sendMessage(chatID, "No clustering run yet. Use /run first.")
		return nil, false
	}
	if err != nil {
		b.logger.Error("Failed to get latest run", zap.Error(err))
		b.sendErrorMessage(chatID, "Sorry, I couldn't load the latest run.")
		return nil, false
	}
	return run, true
}

func (b *Bot) handleClusters(ctx context.Context, message *tgbotapi.Message) {
	run, ok := b.latestRun(ctx, message.Chat.ID)
	if !ok {
		return
	}
	b.sendMarkdown(message.Chat.ID, formatRun(run, -1))
}

func (b *Bot) handleCluster(ctx context.Context, message *tgbotapi.Message) {
	id, err := strconv.Atoi(strings.TrimSpace(message.CommandArguments()))
	if err != nil {
		b.sendMessage(message.Chat.ID, "Usage: /cluster <id>")
		return
	}

	run, ok := b.latestRun(ctx, message.Chat.ID)
	if !ok {
		return
	}

	for _, c := range run.Clusters {
		if c.ID == id {
			b.sendMarkdown(message.Chat.ID, formatCluster(c, run.FeatureNames))
			return
		}
	}
	b.sendMessage(message.Chat.ID, fmt.Sprintf("Cluster %d is not part of the latest run.", id))
}

func (b *Bot) handleTrajectory(ctx context.Context, message *tgbotapi.Message) {
	id := strings.TrimSpace(message.CommandArguments())
	if id == "" {
		b.sendMessage(message.Chat.ID, "Usage: /trajectory <conversation id>")
		return
	}

	conv, err := b.storage.GetConversation(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		b.sendMessage(message.Chat.ID, "No conversation with that id.")
		return
	}
	if err != nil {
		b.logger.Error("Failed to get conversation",
			zap.Error(err),
			zap.String("conversation_id", id))
		b.sendErrorMessage(message.Chat.ID, "Sorry, I couldn't load that conversation.")
		return
	}

	points, vector, err := b.pipeline.Trace(ctx, conv)
	if err != nil {
		b.logger.Warn("Failed to trace conversation",
			zap.Error(err),
			zap.String("conversation_id", id))
		b.sendErrorMessage(message.Chat.ID, "This conversation has no trajectory: "+err.Error())
		return
	}

	b.sendMarkdown(message.Chat.ID, formatTrajectory(id, points, vector))
}

func (b *Bot) handleSkips(ctx context.Context, message *tgbotapi.Message) {
	run, ok := b.latestRun(ctx, message.Chat.ID)
	if !ok {
		return
	}
	if len(run.Skipped) == 0 {
		b.sendMessage(message.Chat.ID, "The latest run skipped no conversations.")
		return
	}
	b.sendMarkdown(message.Chat.ID, formatSkips(run.Skipped))
}

// escapeMarkdown escapes every character MarkdownV2 reserves.
func escapeMarkdown(text string) string {
	specialChars := []string{"\\", "_", "*", "[", "]", "(", ")", "~", "`", ">", "#", "+", "-", "=", "|", "{", "}", ".", "!"}
	escaped := text
	for _, char := range specialChars {
		escaped = strings.ReplaceAll(escaped, char, "\\"+char)
	}
	return escaped
}

func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("Failed to send message",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
	}
}

func (b *Bot) sendMarkdown(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, truncate(text))
	msg.ParseMode = "MarkdownV2"
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("Failed to send markdown message",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
	}
}

func (b *Bot) sendErrorMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, "⚠️ "+text)
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("Failed to send error message",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
	}
}
