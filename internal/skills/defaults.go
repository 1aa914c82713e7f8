package skills

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"jarvis/internal/config"
	"jarvis/internal/logging"
)

// Deps are the collaborators the default capabilities are built from.
// Nil Memory or Reminders leave the corresponding capability out.
type Deps struct {
	Memory    MemoryGateway
	Reminders ReminderStore
	Images    ImageGenerator
	HTTP      *http.Client
	Now       func() time.Time
	Logger    *zap.Logger
}

// NewDefaultRouter registers the built-in capabilities in the order
// search, schedule, memory, file, image, weather, news, calculator.
// Capabilities switched off in cfg are not registered.
func NewDefaultRouter(ctx context.Context, cfg *config.Config, d Deps) (*Router, error) {
	logger := logging.OrNop(d.Logger)
	client := d.HTTP
	if client == nil {
		client = &http.Client{Timeout: cfg.RequestTimeout}
	}
	r := NewRouter(logger)

	var caps []Capability
	if cfg.EnableWebSearch {
		var providers []SearchProvider
		if cfg.PerplexityAPIKey != "" {
			providers = append(providers, NewPerplexityProvider(cfg.PerplexityAPIKey))
		}
		if cfg.GoogleAPIKey != "" && cfg.GoogleCSEID != "" {
			g, err := NewGoogleProvider(ctx, cfg.GoogleAPIKey, cfg.GoogleCSEID)
			if err != nil {
				logger.Warn("google search disabled", zap.Error(err))
			} else {
				providers = append(providers, g)
			}
		}
		caps = append(caps, NewSearchSkill(providers, NewDuckDuckGoProvider(client), logger))
	}
	if cfg.EnableScheduler && d.Reminders != nil {
		caps = append(caps, NewScheduleSkill(d.Reminders, d.Now))
	}
	if d.Memory != nil {
		caps = append(caps, NewMemorySkill(d.Memory))
	}
	caps = append(caps, NewFileSkill(cfg.FilesDir, d.Now))
	if cfg.EnableImageGen {
		caps = append(caps, NewImageSkill(d.Images, ImageOptions{
			Model:   cfg.ImageModel,
			Size:    cfg.ImageSize,
			Quality: cfg.ImageQuality,
			Dir:     cfg.FilesDir,
		}, client))
	}
	caps = append(caps,
		NewWeatherSkill(cfg.OpenWeatherAPIKey, cfg.DefaultLocation, client),
		NewNewsSkill(cfg.NewsAPIKey, client),
		NewCalculatorSkill(),
	)

	for _, c := range caps {
		if err := r.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}
