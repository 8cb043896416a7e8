package spacetraveling

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/eringen/spacetraveling/cms"
	"github.com/eringen/spacetraveling/paginate"
)

// isPartial reports whether c is an htmx request for the named fragment.
func isPartial(c echo.Context, name string) bool {
	return c.Request().Header.Get("HX-Request") == "true" && c.QueryParam("partial") == name
}

// serveGenerated writes the stored page for route. Missing pages are built
// first; stale ones are rebuilt, falling back to the stale body when the
// rebuild fails.
func (a *App) serveGenerated(c echo.Context, route string, build func(context.Context) (Page, error)) error {
	ctx := c.Request().Context()
	page, err := a.Store.GetPage(route)
	switch {
	case errors.Is(err, ErrNotFound):
		page, err = build(ctx)
		if err != nil {
			return err
		}
	case err != nil:
		return err
	case page.Stale(a.Config.Revalidate, time.Now()):
		fresh, err := build(ctx)
		if err != nil {
			log.Warn().Err(err).Str("route", route).Msg("revalidation failed, serving stale page")
		} else {
			page = fresh
		}
	}
	return writePage(c, http.StatusOK, page)
}

func (a *App) handleHome(c echo.Context) error {
	return a.serveGenerated(c, routeHome, a.buildHome)
}

func (a *App) handleSitemap(c echo.Context) error {
	return a.serveGenerated(c, routeSitemap, a.buildSitemap)
}

func (a *App) handleFeed(c echo.Context) error {
	return a.serveGenerated(c, routeFeed, a.buildFeed)
}

// handleLoadMore follows the cursor the list view carries and returns the
// next posts plus a new load-more control as an htmx fragment.
func (a *App) handleLoadMore(c echo.Context) error {
	cursor := c.QueryParam("cursor")
	if cursor == "" || !a.CMS.OwnsCursor(cursor) {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid cursor")
	}
	if !a.limiter.Allow(c.RealIP()) {
		return c.String(http.StatusTooManyRequests, "Too many requests. Try again later.")
	}

	w := paginate.NewWalker[PostSummary](a.CMS, mapSummary, nil, cursor)
	if err := w.LoadNextPage(c.Request().Context()); err != nil {
		var le *paginate.LoadError
		if errors.As(err, &le) {
			log.Warn().Err(le.Err).Str("request_id", requestID(c)).Msg("load more failed")
			return RenderStatus(c, http.StatusBadGateway, a.Views.LoadMoreError(cursor))
		}
		return err
	}
	return Render(c, a.Views.PostList(w.Loaded, w.NextCursor))
}

// handlePost serves a generated post page. Posts that have not been
// generated get a loading placeholder which fetches the post as an htmx
// partial.
func (a *App) handlePost(c echo.Context) error {
	uid := c.Param("uid")
	if isPartial(c, "post") {
		return a.handlePostPartial(c, uid)
	}

	route := PostRoute(uid)
	page, err := a.Store.GetPage(route)
	if errors.Is(err, ErrNotFound) {
		return Render(c, a.Views.PostLoading(uid))
	}
	if err != nil {
		return err
	}

	if page.Stale(a.Config.Revalidate, time.Now()) {
		_, fresh, err := a.buildPost(c.Request().Context(), uid)
		var nf *cms.NotFoundError
		switch {
		case errors.As(err, &nf):
			a.forgetPost(uid)
			return RenderStatus(c, http.StatusNotFound, a.Views.NotFound())
		case err != nil:
			log.Warn().Err(err).Str("route", route).Msg("revalidation failed, serving stale page")
		default:
			page = fresh
		}
	}
	return writePage(c, http.StatusOK, page)
}

func (a *App) handlePostPartial(c echo.Context, uid string) error {
	if !a.limiter.Allow(c.RealIP()) {
		return c.String(http.StatusTooManyRequests, "Too many requests. Try again later.")
	}
	post, _, err := a.buildPost(c.Request().Context(), uid)
	if err != nil {
		var nf *cms.NotFoundError
		if errors.As(err, &nf) {
			return RenderStatus(c, http.StatusNotFound, a.Views.PostNotFound(uid))
		}
		// htmx only swaps 404 and 502 error fragments, so anything else
		// would leave the loading placeholder up.
		log.Error().Err(err).
			Str("uid", uid).
			Str("request_id", requestID(c)).
			Msg("post partial failed")
		return RenderStatus(c, http.StatusBadGateway, a.Views.PostUnavailable(uid))
	}
	return Render(c, a.Views.PostArticle(post))
}

// forgetPost drops the generated page and banner of a post the CMS no
// longer has.
func (a *App) forgetPost(uid string) {
	for _, route := range []string{PostRoute(uid), BannerRoute(uid)} {
		if err := a.Store.DeletePage(route); err != nil {
			log.Error().Err(err).Str("route", route).Msg("delete generated page")
		}
	}
}

// handleBanner serves the resized banner of a post. A stored banner is
// served as is while fresh, and also when the client is over its rate
// limit or the rebuild fails. Banners of posts that are gone or no longer
// have one are dropped from the store.
func (a *App) handleBanner(c echo.Context) error {
	uid := c.Param("uid")
	route := BannerRoute(uid)

	page, err := a.Store.GetPage(route)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	stored := err == nil
	if stored && !page.Stale(a.Config.Revalidate, time.Now()) {
		return writePage(c, http.StatusOK, page)
	}

	if !a.limiter.Allow(c.RealIP()) {
		if stored {
			return writePage(c, http.StatusOK, page)
		}
		return c.String(http.StatusTooManyRequests, "Too many requests. Try again later.")
	}
	fresh, err := a.buildBanner(c.Request().Context(), uid)
	if err != nil {
		var nf *cms.NotFoundError
		if errors.As(err, &nf) || errors.Is(err, errNoBanner) {
			if stored {
				if err := a.Store.DeletePage(route); err != nil {
					log.Error().Err(err).Str("route", route).Msg("delete generated page")
				}
			}
			return echo.ErrNotFound
		}
		if stored {
			log.Warn().Err(err).Str("route", route).Msg("banner rebuild failed, serving stale image")
			return writePage(c, http.StatusOK, page)
		}
		return err
	}
	return writePage(c, http.StatusOK, fresh)
}

func (a *App) handleRobots(c echo.Context) error {
	body := fmt.Sprintf("User-agent: *\nAllow: /\nDisallow: /posts/more/\n\nSitemap: %s\n", strings.TrimSuffix(a.Config.URL, "/")+routeSitemap)
	return c.String(http.StatusOK, body)
}

func handlePostIndexRedirect(c echo.Context) error {
	return c.Redirect(http.StatusMovedPermanently, "/")
}

func (a *App) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	var nf *cms.NotFoundError
	if errors.As(err, &nf) {
		_ = RenderStatus(c, http.StatusNotFound, a.Views.NotFound())
		return
	}
	var he *echo.HTTPError
	ok := errors.As(err, &he)
	if ok && he.Code == http.StatusNotFound {
		_ = RenderStatus(c, http.StatusNotFound, a.Views.NotFound())
		return
	}
	code := http.StatusInternalServerError
	if ok {
		code = he.Code
	}
	if code >= 500 {
		log.Error().Err(err).
			Str("request_id", requestID(c)).
			Str("uri", c.Request().RequestURI).
			Msg("server error")
		_ = RenderStatus(c, code, a.Views.ServerError())
		return
	}
	a.Echo.DefaultHTTPErrorHandler(err, c)
}
