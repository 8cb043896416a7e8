package views

import (
	"github.com/eringen/spacetraveling"
	"github.com/eringen/spacetraveling/format"
)

// Site carries the site-wide settings every component needs, so nothing
// is hardcoded in templates.
type Site struct {
	Name        string
	URL         string
	Description string
	Author      string
	HTMXSrc     string
	Locale      format.Locale
}

// NewSite derives the template settings from the app configuration.
func NewSite(cfg spacetraveling.SiteConfig) Site {
	cfg = cfg.WithDefaults()
	return Site{
		Name:        cfg.Name,
		URL:         cfg.URL,
		Description: cfg.Description,
		Author:      cfg.Author,
		HTMXSrc:     cfg.HTMXSrc,
		Locale:      cfg.Lang(),
	}
}
