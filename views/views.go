// Package views provides the default templates for a spacetraveling site.
package views

import (
	"github.com/a-h/templ"

	"github.com/eringen/spacetraveling"
)

// New returns the ViewFuncs for cfg.
func New(cfg spacetraveling.SiteConfig) spacetraveling.ViewFuncs {
	site := NewSite(cfg)
	return spacetraveling.ViewFuncs{
		Home: func(posts []spacetraveling.PostSummary, nextCursor string) templ.Component {
			return Home(site, posts, nextCursor)
		},
		PostList: func(posts []spacetraveling.PostSummary, nextCursor string) templ.Component {
			return PostList(site, posts, nextCursor)
		},
		LoadMoreError: func(cursor string) templ.Component {
			return LoadMoreError(site, cursor)
		},
		Post: func(post spacetraveling.Post) templ.Component {
			return Post(site, post)
		},
		PostArticle: func(post spacetraveling.Post) templ.Component {
			return PostArticle(site, post)
		},
		PostLoading: func(uid string) templ.Component {
			return PostLoading(site, uid)
		},
		PostNotFound:    PostNotFound,
		PostUnavailable: PostUnavailable,
		NotFound: func() templ.Component {
			return NotFound(site)
		},
		ServerError: func() templ.Component {
			return ServerError(site)
		},
	}
}
