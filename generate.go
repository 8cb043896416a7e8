package spacetraveling

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/eringen/spacetraveling/cms"
	"github.com/eringen/spacetraveling/paginate"
)

const (
	routeHome    = "/"
	routeSitemap = "/sitemap.xml"
	routeFeed    = "/feed.xml"
)

// PostRoute returns the path of the post page for uid.
func PostRoute(uid string) string {
	return "/post/" + url.PathEscape(uid) + "/"
}

// BannerRoute returns the path of the resized banner for uid.
func BannerRoute(uid string) string {
	return "/post/" + url.PathEscape(uid) + "/banner.jpg"
}

func (a *App) listQuery() ([]cms.Predicate, cms.QueryOptions) {
	t := a.Config.DocumentType
	return []cms.Predicate{cms.At("document.type", t)}, cms.QueryOptions{
		Fetch:     []string{t + ".title", t + ".subtitle", t + ".author"},
		PageSize:  a.Config.PageSize,
		Orderings: a.Config.Orderings,
		Lang:      a.Config.CMSLang,
	}
}

// firstPage runs the list query and returns a walker positioned after the
// first page.
func (a *App) firstPage(ctx context.Context) (*paginate.Walker[PostSummary], error) {
	preds, opts := a.listQuery()
	resp, err := a.CMS.Query(ctx, preds, opts)
	if err != nil {
		return nil, err
	}
	posts := make([]PostSummary, 0, len(resp.Results))
	for _, doc := range resp.Results {
		s, err := summaryFromDocument(doc)
		if err != nil {
			return nil, err
		}
		posts = append(posts, s)
	}
	return paginate.NewWalker(a.CMS, mapSummary, posts, resp.NextPage), nil
}

// allPosts walks every list page.
func (a *App) allPosts(ctx context.Context) ([]PostSummary, error) {
	w, err := a.firstPage(ctx)
	if err != nil {
		return nil, err
	}
	if err := w.LoadAll(ctx); err != nil {
		return nil, err
	}
	return w.Loaded, nil
}

// fetchPost loads a single post by UID.
func (a *App) fetchPost(ctx context.Context, uid string) (Post, error) {
	doc, err := a.CMS.GetByUID(ctx, a.Config.DocumentType, uid, cms.QueryOptions{Lang: a.Config.CMSLang})
	if err != nil {
		return Post{}, err
	}
	return postFromDocument(doc)
}

func (a *App) savePage(route, contentType string, body []byte) (Page, error) {
	p := Page{
		Route:       route,
		ContentType: contentType,
		Body:        body,
		GeneratedAt: time.Now().UTC(),
	}
	if err := a.Store.SavePage(p); err != nil {
		return Page{}, fmt.Errorf("save %s: %w", route, err)
	}
	return p, nil
}

func (a *App) buildHome(ctx context.Context) (Page, error) {
	w, err := a.firstPage(ctx)
	if err != nil {
		return Page{}, err
	}
	body, err := renderBytes(ctx, a.Views.Home(w.Loaded, w.NextCursor))
	if err != nil {
		return Page{}, err
	}
	return a.savePage(routeHome, echo.MIMETextHTMLCharsetUTF8, body)
}

func (a *App) buildPost(ctx context.Context, uid string) (Post, Page, error) {
	post, err := a.fetchPost(ctx, uid)
	if err != nil {
		return Post{}, Page{}, err
	}
	body, err := renderBytes(ctx, a.Views.Post(post))
	if err != nil {
		return Post{}, Page{}, err
	}
	page, err := a.savePage(PostRoute(uid), echo.MIMETextHTMLCharsetUTF8, body)
	if err != nil {
		return Post{}, Page{}, err
	}
	return post, page, nil
}

func (a *App) buildSitemap(ctx context.Context) (Page, error) {
	posts, err := a.allPosts(ctx)
	if err != nil {
		return Page{}, err
	}
	body, err := a.renderSitemap(posts)
	if err != nil {
		return Page{}, err
	}
	return a.savePage(routeSitemap, "application/xml; charset=utf-8", body)
}

func (a *App) buildFeed(ctx context.Context) (Page, error) {
	posts, err := a.allPosts(ctx)
	if err != nil {
		return Page{}, err
	}
	body, err := a.renderRSS(posts)
	if err != nil {
		return Page{}, err
	}
	return a.savePage(routeFeed, "application/rss+xml; charset=utf-8", body)
}

// Generate prerenders the list page, every known post, the sitemap and the
// feed into the store. Posts that disappear between listing and fetching
// are skipped, as are posts whose documents fail to decode.
func (a *App) Generate(ctx context.Context) error {
	start := time.Now()

	if _, err := a.buildHome(ctx); err != nil {
		return fmt.Errorf("generate home: %w", err)
	}

	posts, err := a.allPosts(ctx)
	if err != nil {
		return fmt.Errorf("generate: list posts: %w", err)
	}
	built, skipped := 0, 0
	keep := make(map[string]bool, 2*len(posts))
	for _, p := range posts {
		if _, _, err := a.buildPost(ctx, p.UID); err != nil {
			var nf *cms.NotFoundError
			var de *DecodeError
			switch {
			case errors.As(err, &nf):
				log.Warn().Str("uid", p.UID).Msg("post vanished during generation")
				continue
			case errors.As(err, &de):
				// The post is still listed, so a page stored by an earlier
				// build stays until the document decodes again.
				log.Error().Err(err).Str("uid", p.UID).Msg("skipping post that failed to decode")
				keep[PostRoute(p.UID)] = true
				keep[BannerRoute(p.UID)] = true
				skipped++
				continue
			}
			return fmt.Errorf("generate post %q: %w", p.UID, err)
		}
		keep[PostRoute(p.UID)] = true
		keep[BannerRoute(p.UID)] = true
		built++
	}
	if err := a.pruneRoutes(keep); err != nil {
		return fmt.Errorf("generate: prune: %w", err)
	}

	sitemap, err := a.renderSitemap(posts)
	if err != nil {
		return fmt.Errorf("generate sitemap: %w", err)
	}
	if _, err := a.savePage(routeSitemap, "application/xml; charset=utf-8", sitemap); err != nil {
		return err
	}
	feed, err := a.renderRSS(posts)
	if err != nil {
		return fmt.Errorf("generate feed: %w", err)
	}
	if _, err := a.savePage(routeFeed, "application/rss+xml; charset=utf-8", feed); err != nil {
		return err
	}

	log.Info().
		Int("posts", built).
		Int("skipped", skipped).
		Dur("took", time.Since(start)).
		Msg("static generation complete")
	return nil
}

// pruneRoutes deletes stored post pages and banners not in keep.
func (a *App) pruneRoutes(keep map[string]bool) error {
	routes, err := a.Store.ListRoutes("/post/")
	if err != nil {
		return err
	}
	for _, r := range routes {
		if keep[r] {
			continue
		}
		if err := a.Store.DeletePage(r); err != nil {
			return err
		}
		log.Info().Str("route", r).Msg("pruned page of removed post")
	}
	return nil
}
