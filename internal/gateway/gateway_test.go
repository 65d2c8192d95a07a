package gateway

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rahul/sentinel/internal/agent"
	"github.com/rahul/sentinel/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBot struct {
	mu      sync.Mutex
	sent    []tgbotapi.MessageConfig
	updates chan tgbotapi.Update
	stopped bool
	err     error
}

func (f *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return tgbotapi.Message{}, f.err
	}
	f.sent = append(f.sent, c.(tgbotapi.MessageConfig))
	return tgbotapi.Message{}, nil
}

func (f *fakeBot) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return f.updates
}

func (f *fakeBot) StopReceivingUpdates() {
	f.mu.Lock()
	f.stopped = true
	f.mu.Unlock()
}

func (f *fakeBot) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.sent))
	for i, m := range f.sent {
		out[i] = m.Text
	}
	return out
}

type fakeRunner struct {
	goals []string
	err   error
}

func (f *fakeRunner) Execute(_ context.Context, goal string) (*agent.Run, error) {
	f.goals = append(f.goals, goal)
	if f.err != nil {
		return nil, f.err
	}
	return &agent.Run{Outputs: []agent.StepOutput{{Output: "first"}, {Output: "final answer"}}}, nil
}

type fakeDiscord struct {
	channel string
	sent    []string
}

func (f *fakeDiscord) ChannelMessageSend(channelID, content string, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.channel = channelID
	f.sent = append(f.sent, content)
	return &discordgo.Message{}, nil
}

type failingMessenger struct{}

func (failingMessenger) Name() string { return "broken" }
func (failingMessenger) Send(context.Context, string) error { return errors.New("offline") }

func TestSplitMessage(t *testing.T) {
	assert.Equal(t, []string{"short"}, splitMessage("short", 10))

	parts := splitMessage("line one\nline two\nline three", 12)
	assert.Equal(t, []string{"line one", "line two", "line three"}, parts)

	long := strings.Repeat("é", 10) // 2 bytes each
	parts = splitMessage(long, 5)
	for _, p := range parts {
		assert.True(t, utf8.ValidString(p))
		assert.LessOrEqual(t, len(p), 5)
	}
	assert.Equal(t, long, strings.Join(parts, ""))
}

func TestTelegramSendChunks(t *testing.T) {
	bot := &fakeBot{}
	tg := &TelegramGateway{Bot: bot, ChatID: 42, Logger: observability.NewNop()}

	require.NoError(t, tg.Send(context.Background(), strings.Repeat("a", telegramLimit+10)))
	require.Len(t, bot.sent, 2)
	assert.Equal(t, int64(42), bot.sent[0].ChatID)
	assert.Len(t, bot.sent[0].Text, telegramLimit)
}

func TestTelegramRunsGoalsFromConfiguredChat(t *testing.T) {
	bot := &fakeBot{updates: make(chan tgbotapi.Update, 2)}
	runner := &fakeRunner{}
	tg := &TelegramGateway{Bot: bot, ChatID: 42, Runner: runner, Logger: observability.NewNop()}

	bot.updates <- tgbotapi.Update{Message: &tgbotapi.Message{Text: "ignore me", Chat: &tgbotapi.Chat{ID: 7}}}
	bot.updates <- tgbotapi.Update{Message: &tgbotapi.Message{Text: "review the VPC", Chat: &tgbotapi.Chat{ID: 42}}}
	close(bot.updates)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, tg.Start(ctx))

	assert.Equal(t, []string{"review the VPC"}, runner.goals)
	assert.Equal(t, []string{"Planning...", "final answer"}, bot.texts())
	assert.True(t, bot.stopped)
}

func TestTelegramReportsRunFailure(t *testing.T) {
	bot := &fakeBot{}
	tg := &TelegramGateway{Bot: bot, ChatID: 42, Runner: &fakeRunner{err: errors.New("canceled")}, Logger: observability.NewNop()}

	tg.handle(context.Background(), tgbotapi.Update{Message: &tgbotapi.Message{Text: "goal", Chat: &tgbotapi.Chat{ID: 42}}})
	texts := bot.texts()
	require.Len(t, texts, 2)
	assert.Equal(t, "Run failed: canceled", texts[1])
}

func TestTelegramRefusesGoalWhileRunInProgress(t *testing.T) {
	gate := &agent.RunGate{}
	release, ok := gate.TryAcquire()
	require.True(t, ok)
	defer release()

	bot := &fakeBot{}
	runner := &fakeRunner{}
	tg := &TelegramGateway{Bot: bot, ChatID: 42, Runner: gate.Guard(runner), Logger: observability.NewNop()}

	tg.handle(context.Background(), tgbotapi.Update{Message: &tgbotapi.Message{Text: "goal", Chat: &tgbotapi.Chat{ID: 42}}})
	texts := bot.texts()
	require.Len(t, texts, 2)
	assert.Contains(t, texts[1], "Another run is in progress")
	assert.Empty(t, runner.goals)
}

func TestTelegramStartWithoutRunner(t *testing.T) {
	tg := &TelegramGateway{Bot: &fakeBot{}, ChatID: 1, Logger: observability.NewNop()}
	assert.Error(t, tg.Start(context.Background()))
}

func TestDiscordNotifier(t *testing.T) {
	fd := &fakeDiscord{}
	d := &DiscordNotifier{Session: fd, ChannelID: "chan-1"}

	require.NoError(t, d.Send(context.Background(), strings.Repeat("b", discordLimit*2)))
	assert.Equal(t, "chan-1", fd.channel)
	assert.Len(t, fd.sent, 2)

	_, err := NewDiscordNotifier("token", "")
	assert.Error(t, err)
}

func TestBroadcastJoinsErrors(t *testing.T) {
	fd := &fakeDiscord{}
	b := Broadcast{&DiscordNotifier{Session: fd, ChannelID: "c"}, failingMessenger{}}

	err := b.Notify(context.Background(), "review done")
	assert.ErrorContains(t, err, "broken: offline")
	assert.Equal(t, []string{"review done"}, fd.sent)

	assert.NoError(t, Broadcast{}.Notify(context.Background(), "x"))
}
