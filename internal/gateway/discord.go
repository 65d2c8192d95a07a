package gateway

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
)

const discordLimit = 2000

type discordSender interface {
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// DiscordNotifier posts notifications to one channel.
type DiscordNotifier struct {
	Session   discordSender
	ChannelID string
}

func NewDiscordNotifier(token, channelID string) (*DiscordNotifier, error) {
	if channelID == "" {
		return nil, fmt.Errorf("discord: channel_id is required")
	}
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, err
	}
	return &DiscordNotifier{Session: s, ChannelID: channelID}, nil
}

func (d *DiscordNotifier) Name() string {
	return "discord"
}

func (d *DiscordNotifier) Send(ctx context.Context, text string) error {
	for _, part := range splitMessage(text, discordLimit) {
		if _, err := d.Session.ChannelMessageSend(d.ChannelID, part, discordgo.WithContext(ctx)); err != nil {
			return err
		}
	}
	return nil
}
