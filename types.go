package spacetraveling

import "github.com/eringen/spacetraveling/richtext"

// PostSummary is a post as shown in the list view.
type PostSummary struct {
	UID                  string
	FirstPublicationDate string // empty when the CMS reports null
	Title                string
	Subtitle             string
	Author               string
}

// Section is one headed part of a post body.
type Section struct {
	Heading string
	Body    richtext.Document
}

// Post is a full post as shown on its own page.
type Post struct {
	UID                  string
	FirstPublicationDate string
	Title                string
	Subtitle             string
	BannerURL            string // empty when the post has no banner
	Author               string
	Content              []Section
}

// Summary returns the list-view fields of p.
func (p Post) Summary() PostSummary {
	return PostSummary{
		UID:                  p.UID,
		FirstPublicationDate: p.FirstPublicationDate,
		Title:                p.Title,
		Subtitle:             p.Subtitle,
		Author:               p.Author,
	}
}

// PageMeta carries per-page OpenGraph and SEO metadata into the <head> template.
type PageMeta struct {
	Title       string
	Description string
	URL         string // canonical + og:url
	OGType      string // "website" or "article"
	Image       string
}
