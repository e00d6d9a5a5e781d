package headlines

import (
	"github.com/rs/zerolog"

	"newslens/pkg/utils"
)

// FromConfig builds the upstream for cfg. It returns nil when neither a
// NewsAPI key nor any RSS feed is configured, and the single source directly
// when only one is.
func FromConfig(cfg utils.Config, logger zerolog.Logger) Source {
	var sources []Source
	if cfg.NewsAPI.HasKey() {
		sources = append(sources, NewNewsAPI(cfg.NewsAPI.BaseURL, cfg.NewsAPI.APIKey, cfg.NewsAPI.Timeout, cfg.NewsAPI.RequestsPerSecond))
	}
	if len(cfg.RSS.Feeds) > 0 {
		sources = append(sources, NewRSS(cfg.RSS.Feeds))
	}

	switch len(sources) {
	case 0:
		return nil
	case 1:
		return sources[0]
	}
	return NewMulti(logger, sources...)
}
