package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/jensholdgaard/clubhub/internal/store"
)

// dmSender is the subset of *discordgo.Session used to send direct messages.
type dmSender interface {
	UserChannelCreate(recipientID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// DiscordSink delivers messages as Discord direct messages to users that
// have linked a Discord account.
type DiscordSink struct {
	users store.UserRepository
	dm    dmSender
}

// NewDiscordSink returns a sink sending through dm.
func NewDiscordSink(users store.UserRepository, dm dmSender) *DiscordSink {
	return &DiscordSink{users: users, dm: dm}
}

func (s *DiscordSink) Send(ctx context.Context, msg Message) error {
	u, err := s.users.GetByID(ctx, msg.UserID)
	if err != nil {
		return fmt.Errorf("looking up user: %w", err)
	}
	if u.DiscordID == nil || *u.DiscordID == "" {
		return nil
	}
	ch, err := s.dm.UserChannelCreate(*u.DiscordID, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("opening DM channel: %w", err)
	}
	if ch == nil {
		return errors.New("opening DM channel: no channel returned")
	}
	if _, err := s.dm.ChannelMessageSend(ch.ID, fmt.Sprintf("**%s**\n%s", msg.Title, msg.Body), discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("sending DM: %w", err)
	}
	return nil
}
