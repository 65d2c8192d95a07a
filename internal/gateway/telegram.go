package gateway

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rahul/sentinel/internal/agent"
	"github.com/rahul/sentinel/internal/observability"
)

const telegramLimit = 4096

// telegramBot is the subset of *tgbotapi.BotAPI the gateway uses.
type telegramBot interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

type TelegramGateway struct {
	Bot    telegramBot
	ChatID int64
	Runner GoalRunner
	Logger *observability.Logger
}

func NewTelegramGateway(token, chatID string, runner GoalRunner, logger *observability.Logger) (*TelegramGateway, error) {
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat ID: %s", chatID)
	}

	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = observability.NewNop()
	}
	logger.Info("telegram authorized", "account", bot.Self.UserName)

	return &TelegramGateway{Bot: bot, ChatID: id, Runner: runner, Logger: logger}, nil
}

func (tg *TelegramGateway) Name() string {
	return "telegram"
}

func (tg *TelegramGateway) Send(_ context.Context, text string) error {
	return tg.sendTo(tg.ChatID, text)
}

func (tg *TelegramGateway) sendTo(chatID int64, text string) error {
	for _, part := range splitMessage(text, telegramLimit) {
		if _, err := tg.Bot.Send(tgbotapi.NewMessage(chatID, part)); err != nil {
			return err
		}
	}
	return nil
}

// Start treats every message from the configured chat as a goal and replies
// with the run's final output. It returns when ctx is done.
func (tg *TelegramGateway) Start(ctx context.Context) error {
	if tg.Runner == nil {
		return fmt.Errorf("telegram: no goal runner configured")
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := tg.Bot.GetUpdatesChan(u)
	defer tg.Bot.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			tg.handle(ctx, update)
		}
	}
}

func (tg *TelegramGateway) handle(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.Chat == nil || strings.TrimSpace(msg.Text) == "" {
		return
	}
	if msg.Chat.ID != tg.ChatID {
		tg.Logger.Warn("ignoring message from unknown chat", "chat", msg.Chat.ID)
		return
	}

	tg.Logger.Info("goal received", "chat", msg.Chat.ID)
	_ = tg.sendTo(msg.Chat.ID, "Planning...")

	run, err := tg.Runner.Execute(ctx, msg.Text)
	reply := ""
	switch {
	case agent.KindOf(err) == agent.KindBusy:
		reply = "Another run is in progress, try again when it finishes."
	case err != nil:
		reply = fmt.Sprintf("Run failed: %v", err)
	case run.FinalOutput() == "":
		reply = "Run finished without output."
	default:
		reply = run.FinalOutput()
	}
	if err := tg.sendTo(msg.Chat.ID, reply); err != nil {
		tg.Logger.Warn("telegram reply failed", "err", err)
	}
}
