// Package spacetraveling is a blog frontend for a headless CMS, built with
// Go, Echo and templ. It prerenders the post list and post pages into a
// local page store, serves them, and falls back to on-demand generation for
// posts that were published after the last build.
//
// Users provide templ components via the ViewFuncs struct; the package
// handles content fetching, pagination, generation and HTTP plumbing.
package spacetraveling

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"time"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/eringen/spacetraveling/cms"
	"github.com/eringen/spacetraveling/format"
	"github.com/eringen/spacetraveling/paginate"
)

// ViewFuncs holds the templ components the App renders. Full pages and
// htmx fragments are separate entries.
type ViewFuncs struct {
	Home            func(posts []PostSummary, nextCursor string) templ.Component
	PostList        func(posts []PostSummary, nextCursor string) templ.Component
	LoadMoreError   func(cursor string) templ.Component
	Post            func(post Post) templ.Component
	PostArticle     func(post Post) templ.Component
	PostLoading     func(uid string) templ.Component
	PostNotFound    func(uid string) templ.Component
	PostUnavailable func(uid string) templ.Component
	NotFound        func() templ.Component
	ServerError     func() templ.Component
}

// ContentSource is the subset of the CMS client the App depends on.
type ContentSource interface {
	paginate.Fetcher
	Query(ctx context.Context, predicates []cms.Predicate, opts cms.QueryOptions) (cms.SearchResponse, error)
	GetByUID(ctx context.Context, docType, uid string, opts cms.QueryOptions) (cms.Document, error)
	OwnsCursor(cursor string) bool
}

// App is the central application. It wires together the CMS client, the
// generated page store, handlers, middleware and user-provided templates.
type App struct {
	Config SiteConfig
	Echo   *echo.Echo
	Store  *Store
	CMS    ContentSource
	Views  ViewFuncs

	locale       format.Locale
	limiter      *RequestLimiter
	httpClient   *http.Client
	customRoutes []func(*App)
	ready        bool
}

// New creates an App with the given configuration and view functions.
func New(cfg SiteConfig, views ViewFuncs, opts ...Option) *App {
	cfg.setDefaults()

	e := echo.New()
	e.HideBanner = true

	a := &App{
		Config:     cfg,
		Echo:       e,
		Views:      views,
		locale:     cfg.Lang(),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// Setup opens the page store, builds the CMS client and registers
// middleware and routes. Start calls it when needed.
func (a *App) Setup() error {
	if a.ready {
		return nil
	}
	if a.CMS == nil {
		if a.Config.CMSEndpoint == "" {
			return fmt.Errorf("spacetraveling: CMSEndpoint is required")
		}
		client, err := cms.New(a.Config.CMSEndpoint, a.Config.CMSAccessToken,
			cms.WithLogger(log.With().Str("component", "cms").Logger()))
		if err != nil {
			return fmt.Errorf("spacetraveling: init cms: %w", err)
		}
		log.Debug().Str("endpoint", client.Endpoint()).Str("lang", a.Config.CMSLang).Msg("cms client ready")
		a.CMS = client
	}

	store, err := NewStore(a.Config.DatabasePath)
	if err != nil {
		return fmt.Errorf("spacetraveling: init store: %w", err)
	}
	a.Store = store

	a.limiter = NewRequestLimiter(a.Config.RateLimit, a.Config.RateWindow)

	a.setupMiddleware()
	a.setupRoutes()
	for _, fn := range a.customRoutes {
		fn(a)
	}

	a.ready = true
	return nil
}

// Start sets the app up, prerenders pages unless SkipGenerate is set and
// serves HTTP until the server is shut down.
func (a *App) Start(ctx context.Context) error {
	if err := a.Setup(); err != nil {
		return err
	}

	if !a.Config.SkipGenerate {
		if err := a.Generate(ctx); err != nil {
			log.Error().Err(err).Msg("static generation failed; pages will be built on request")
		}
	}

	log.Info().Str("addr", a.Config.Addr).Msg("starting server")
	if err := a.Echo.Start(a.Config.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (a *App) setupRoutes() {
	e := a.Echo

	assets, _ := fs.Sub(EmbeddedAssets, "embedded")
	e.GET("/public/*", echo.WrapHandler(http.StripPrefix("/public/", http.FileServer(http.FS(assets)))))
	e.GET("/robots.txt", a.handleRobots)
	e.GET("/sitemap.xml", a.handleSitemap)
	e.GET("/feed.xml", a.handleFeed)

	e.GET("/", a.handleHome)
	e.GET("/posts/more/", a.handleLoadMore)
	e.GET("/post/", handlePostIndexRedirect)
	e.GET("/post/:uid/", a.handlePost)
	e.GET("/post/:uid/banner.jpg", a.handleBanner)
}

// Close cleans up resources. Call this when the app is shutting down.
func (a *App) Close() error {
	if a.limiter != nil {
		a.limiter.Stop()
	}
	if a.Store != nil {
		return a.Store.Close()
	}
	return nil
}

// EnvOr returns the value of the environment variable key, or fallback if empty.
func EnvOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// MustEnv returns the value of the environment variable key, or fatally exits if empty.
func MustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		log.Fatal().Str("key", key).Msg("required environment variable is not set")
	}
	return v
}
