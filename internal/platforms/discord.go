package platforms

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/bwmarrin/discordgo"

	"newsreel/internal/assets"
	"newsreel/internal/config"
	"newsreel/internal/types"
)

const discordEmbedDescriptionLimit = 4096

// Discord posts an announcement embed to a configured channel.
type Discord struct {
	name      string
	channelID string
	session   *discordgo.Session
}

func NewDiscord(cfg config.DiscordConfig) (*Discord, error) {
	session, err := discordgo.New("Bot " + cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}

	// A rate-limited request must surface as an outcome, not block the pass
	// while discordgo waits out the bucket.
	session.ShouldRetryOnRateLimit = false

	return &Discord{
		name:      "discord",
		channelID: cfg.ChannelID,
		session:   session,
	}, nil
}

func (p *Discord) Name() string {
	return p.name
}

func (p *Discord) Publish(ctx context.Context, asset *assets.Asset) *types.Outcome {
	embed := &discordgo.MessageEmbed{
		Title:       asset.Title,
		Description: truncateRunes(asset.Caption, discordEmbedDescriptionLimit),
	}
	if asset.ImageURL != "" {
		embed.Image = &discordgo.MessageEmbedImage{URL: asset.ImageURL}
	}
	if asset.VideoURL != "" {
		embed.URL = asset.VideoURL
	}

	msg, err := p.session.ChannelMessageSendComplex(p.channelID, &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{embed},
	}, discordgo.WithContext(ctx))
	if err != nil {
		return classifyDiscordFailure(err)
	}

	return types.Success(msg.ID)
}

func classifyDiscordFailure(err error) *types.Outcome {
	if rl, ok := asError[*discordgo.RateLimitError](err); ok {
		return types.RateLimited(fmt.Sprintf("discord throttled: %s", rl.Message), rl.RetryAfter)
	}

	if rest, ok := asError[*discordgo.RESTError](err); ok {
		if rest.Response != nil && rest.Response.StatusCode >= http.StatusInternalServerError {
			return types.Transient(fmt.Sprintf("discord returned %d", rest.Response.StatusCode))
		}
		return types.Permanent(fmt.Sprintf("discord rejected message: %v", err))
	}

	return types.Transient(fmt.Sprintf("discord call failed: %v", err))
}

func asError[T error](err error) (T, bool) {
	var target T
	ok := errors.As(err, &target)
	return target, ok
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
