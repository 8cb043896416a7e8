package views

import (
	"net/url"
	"strings"

	"github.com/eringen/spacetraveling"
	"github.com/eringen/spacetraveling/format"
)

// htmxConfig lets htmx swap the 404 and 502 fragments the server sends
// for missing posts and failed list pages.
const htmxConfig = `{"responseHandling":[{"code":"204","swap":false},{"code":"[23]..","swap":true},{"code":"404","swap":true,"error":false},{"code":"502","swap":true,"error":true},{"code":"[45]..","swap":false,"error":true}]}`

// PostInfo returns the date, author and reading-time labels shown under a
// post title. The date is omitted when the CMS did not report one.
func PostInfo(loc format.Locale, date, author string, sections []spacetraveling.Section, withReadingTime bool) []string {
	var info []string
	if d, err := format.DisplayDate(date, loc); err == nil {
		info = append(info, d)
	}
	if author != "" {
		info = append(info, author)
	}
	if withReadingTime {
		info = append(info, spacetraveling.ReadingTime(sections, loc))
	}
	return info
}

// LoadMoreURL is the fragment URL that continues the list at cursor.
func LoadMoreURL(cursor string) string {
	return "/posts/more/?cursor=" + url.QueryEscape(cursor)
}

func postPartialURL(uid string) string {
	return spacetraveling.PostRoute(uid) + "?partial=post"
}

func pageTitle(site Site, meta spacetraveling.PageMeta) string {
	if meta.Title != "" && meta.Title != site.Name {
		return meta.Title + " | " + site.Name
	}
	return site.Name
}

func pageDescription(site Site, meta spacetraveling.PageMeta) string {
	if meta.Description != "" {
		return meta.Description
	}
	return site.Description
}

func ogType(meta spacetraveling.PageMeta) string {
	if meta.OGType == "" {
		return "website"
	}
	return meta.OGType
}

func homeMeta(site Site) spacetraveling.PageMeta {
	return spacetraveling.PageMeta{
		Title:       site.Name,
		Description: site.Description,
		URL:         spacetraveling.BuildURL(site.URL),
		OGType:      "website",
	}
}

func postMeta(site Site, post spacetraveling.Post) spacetraveling.PageMeta {
	meta := spacetraveling.PageMeta{
		Title:       post.Title,
		Description: post.Subtitle,
		URL:         spacetraveling.BuildURL(site.URL, "post", post.UID),
		OGType:      "article",
	}
	if post.BannerURL != "" {
		meta.Image = absURL(site, spacetraveling.BannerRoute(post.UID))
	}
	return meta
}

func loadingMeta(site Site, uid string) spacetraveling.PageMeta {
	return spacetraveling.PageMeta{
		Title: site.Locale.Loading,
		URL:   spacetraveling.BuildURL(site.URL, "post", uid),
	}
}

func errorMeta(status string) spacetraveling.PageMeta {
	return spacetraveling.PageMeta{Title: status}
}

// WebsiteJsonLD produces a Schema.org WebSite JSON-LD object.
func WebsiteJsonLD(site Site) map[string]any {
	data := map[string]any{
		"@context": "https://schema.org",
		"@type":    "WebSite",
		"name":     site.Name,
		"url":      spacetraveling.BuildURL(site.URL),
	}
	if site.Description != "" {
		data["description"] = site.Description
	}
	if site.Author != "" {
		data["author"] = map[string]string{
			"@type": "Person",
			"name":  site.Author,
		}
	}
	return data
}

// BlogPostingJsonLD produces a Schema.org BlogPosting JSON-LD object for a post.
func BlogPostingJsonLD(site Site, post spacetraveling.Post) map[string]any {
	postURL := spacetraveling.BuildURL(site.URL, "post", post.UID)
	data := map[string]any{
		"@context": "https://schema.org",
		"@type":    "BlogPosting",
		"headline": post.Title,
		"url":      postURL,
		"publisher": map[string]string{
			"@type": "Organization",
			"name":  site.Name,
		},
		"mainEntityOfPage": map[string]string{
			"@type": "WebPage",
			"@id":   postURL,
		},
		"wordCount": spacetraveling.WordCount(post.Content),
	}
	if post.Subtitle != "" {
		data["description"] = post.Subtitle
	}
	if t, err := format.ParseTimestamp(post.FirstPublicationDate); err == nil {
		data["datePublished"] = t.UTC().Format("2006-01-02T15:04:05Z")
	}
	if post.Author != "" {
		data["author"] = map[string]string{
			"@type": "Person",
			"name":  post.Author,
		}
	}
	if post.BannerURL != "" {
		data["image"] = absURL(site, spacetraveling.BannerRoute(post.UID))
	}
	return data
}

// absURL resolves an absolute path against the site URL.
func absURL(site Site, path string) string {
	return strings.TrimSuffix(site.URL, "/") + path
}
