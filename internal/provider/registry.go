package provider

import (
	"fmt"

	"creatorpulse/internal/config"
)

// New builds the active adapter by name. Known families: "xapi" (X API v2
// naming) and "syndication" (legacy id_str/full_text naming).
func New(cfg config.ProviderConfig) (Adapter, error) {
	switch cfg.Name {
	case "", "xapi":
		return NewXAPI(cfg.BaseURL, cfg.BearerToken), nil
	case "syndication":
		return NewSyndication(cfg.BaseURL, cfg.BearerToken), nil
	default:
		return nil, fmt.Errorf("unknown provider %q (known: xapi, syndication)", cfg.Name)
	}
}
