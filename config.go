package spacetraveling

import (
	"net/http"
	"time"

	"github.com/eringen/spacetraveling/format"
)

// SiteConfig holds all configuration for a spacetraveling site.
type SiteConfig struct {
	Name        string // Site name (default "spacetraveling")
	URL         string // Canonical URL (default "http://localhost:3000")
	Description string // Site description for RSS and meta tags
	Author      string // Author name for JSON-LD
	Locale      string // "en" or "pt-BR" (default "en")

	Addr         string // Listen address (default ":3000")
	DatabasePath string // Generated page store path (default "data/pages.db")

	CMSEndpoint    string // Required: content API root, e.g. https://repo.cdn.prismic.io/api/v2
	CMSAccessToken string // Optional API access token
	DocumentType   string // Custom type of posts (default "posts")
	Orderings      string // Optional list ordering, e.g. "[document.first_publication_date desc]"
	PageSize       int    // Posts per list page (default 2)
	CMSLang        string // Optional document language, e.g. "pt-br" (default: the repository's master locale)

	Revalidate     time.Duration // Age after which generated pages are rebuilt (default 24h, negative disables)
	SkipGenerate   bool          // Do not prerender pages at startup
	BannerMaxWidth int           // Banner images are scaled down to this width (default 1200)

	RateLimit  int           // CMS-backed requests per client per window (default 30)
	RateWindow time.Duration // Window for RateLimit (default 1min)

	HTMXSrc string // htmx script URL (default unpkg htmx 2.0.4)
}

const defaultHTMXSrc = "https://unpkg.com/htmx.org@2.0.4/dist/htmx.min.js"

func (c *SiteConfig) setDefaults() {
	if c.Name == "" {
		c.Name = "spacetraveling"
	}
	if c.URL == "" {
		c.URL = "http://localhost:3000"
	}
	if c.Locale == "" {
		c.Locale = "en"
	}
	if c.Addr == "" {
		c.Addr = ":3000"
	}
	if c.DatabasePath == "" {
		c.DatabasePath = "data/pages.db"
	}
	if c.DocumentType == "" {
		c.DocumentType = "posts"
	}
	if c.PageSize <= 0 {
		c.PageSize = 2
	}
	if c.Revalidate == 0 {
		c.Revalidate = 24 * time.Hour
	}
	if c.BannerMaxWidth <= 0 {
		c.BannerMaxWidth = 1200
	}
	if c.RateLimit <= 0 {
		c.RateLimit = 30
	}
	if c.RateWindow <= 0 {
		c.RateWindow = time.Minute
	}
	if c.HTMXSrc == "" {
		c.HTMXSrc = defaultHTMXSrc
	}
}

// WithDefaults returns c with every unset field filled in.
func (c SiteConfig) WithDefaults() SiteConfig {
	c.setDefaults()
	return c
}

// Lang returns the display locale selected by Locale.
func (c SiteConfig) Lang() format.Locale {
	return format.LookupLocale(c.Locale)
}

// Option configures additional App behavior.
type Option func(*App)

// WithCustomRoutes registers additional routes on the Echo instance.
// The callback receives the App before the server starts.
func WithCustomRoutes(fn func(*App)) Option {
	return func(a *App) {
		a.customRoutes = append(a.customRoutes, fn)
	}
}

// WithContentSource replaces the CMS client built from CMSEndpoint.
func WithContentSource(src ContentSource) Option {
	return func(a *App) {
		a.CMS = src
	}
}

// WithHTTPClient sets the client used to download banner images.
func WithHTTPClient(hc *http.Client) Option {
	return func(a *App) {
		a.httpClient = hc
	}
}
