package platforms

import (
	"context"

	"newsreel/internal/assets"
	"newsreel/internal/config"
	"newsreel/internal/types"
)

// Publisher delivers one asset to one external platform. Every native
// failure mode is normalized into the Outcome taxonomy, and a publisher
// makes exactly one delivery attempt per call: retry belongs to a later
// scheduler cycle, never to the publisher itself.
type Publisher interface {
	Name() string
	Publish(ctx context.Context, asset *assets.Asset) *types.Outcome
}

// Disabled stands in for a platform that is switched off by configuration.
// Keeping it in the fanout makes the skip explicit in every attempt record.
type Disabled struct {
	name string
}

func NewDisabled(name string) *Disabled {
	return &Disabled{name: name}
}

func (d *Disabled) Name() string {
	return d.name
}

func (d *Disabled) Publish(ctx context.Context, asset *assets.Asset) *types.Outcome {
	return types.Skipped("platform disabled by configuration")
}

// Build constructs the closed set of configured publishers. Adding a
// platform means adding a variant here; the coordinator never changes.
func Build(cfg config.PlatformsConfig) ([]Publisher, error) {
	var publishers []Publisher

	if cfg.Instagram.Enabled {
		publishers = append(publishers, NewInstagram(cfg.Instagram))
	} else {
		publishers = append(publishers, NewDisabled("instagram"))
	}

	if cfg.YouTube.Enabled {
		publishers = append(publishers, NewYouTube(cfg.YouTube))
	} else {
		publishers = append(publishers, NewDisabled("youtube"))
	}

	if cfg.Discord.Enabled {
		discord, err := NewDiscord(cfg.Discord)
		if err != nil {
			return nil, err
		}
		publishers = append(publishers, discord)
	} else {
		publishers = append(publishers, NewDisabled("discord"))
	}

	return publishers, nil
}
