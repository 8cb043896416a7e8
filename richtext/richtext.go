// Package richtext models the structured rich-text documents served by the
// content API and converts them to plain text and HTML.
//
// A Document is an ordered list of blocks drawn from a closed set of
// variants: Paragraph, Heading, Preformatted, ListItem, Image and Embed.
// Documents are decoded from the CMS JSON shape and are never mutated.
package richtext

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Block is one node of a Document. The set of implementations is closed.
type Block interface {
	blockType() string
}

// SpanType identifies the inline formatting a Span applies.
type SpanType string

const (
	SpanStrong    SpanType = "strong"
	SpanEm        SpanType = "em"
	SpanHyperlink SpanType = "hyperlink"
	SpanLabel     SpanType = "label"
)

// Span is inline formatting over Text[Start:End]. Offsets count UTF-16 code
// units, which is how the content API reports them.
type Span struct {
	Start  int
	End    int
	Type   SpanType
	URL    string // hyperlink only
	Target string // hyperlink only
	Label  string // label only
}

// Inline is text with formatting spans, shared by every text-bearing block.
type Inline struct {
	Text  string
	Spans []Span
}

type Paragraph struct{ Inline }

// Heading is a heading block with Level between 1 and 6.
type Heading struct {
	Inline
	Level int
}

type Preformatted struct{ Inline }

// ListItem is one bullet. Consecutive items with the same Ordered value
// form a single list when rendered.
type ListItem struct {
	Inline
	Ordered bool
}

type Image struct {
	URL       string
	Alt       string
	Copyright string
	Width     int
	Height    int
	LinkURL   string
}

// Embed is an oEmbed block. HTML is the provider markup as delivered by the CMS.
type Embed struct {
	Type     string
	URL      string
	HTML     string
	Title    string
	Provider string
}

func (Paragraph) blockType() string    { return "paragraph" }
func (h Heading) blockType() string    { return fmt.Sprintf("heading%d", h.Level) }
func (Preformatted) blockType() string { return "preformatted" }
func (l ListItem) blockType() string {
	if l.Ordered {
		return "o-list-item"
	}
	return "list-item"
}
func (Image) blockType() string { return "image" }
func (Embed) blockType() string { return "embed" }

// Document is an ordered sequence of blocks.
type Document []Block

// AsText returns the text of every text-bearing block joined by sep.
// Images and embeds contribute nothing.
func (d Document) AsText(sep string) string {
	parts := make([]string, 0, len(d))
	for _, b := range d {
		if in, ok := inlineOf(b); ok {
			parts = append(parts, in.Text)
		}
	}
	return strings.Join(parts, sep)
}

// PlainText is AsText with a single space separator.
func (d Document) PlainText() string {
	return d.AsText(" ")
}

func inlineOf(b Block) (Inline, bool) {
	switch v := b.(type) {
	case Paragraph:
		return v.Inline, true
	case Heading:
		return v.Inline, true
	case Preformatted:
		return v.Inline, true
	case ListItem:
		return v.Inline, true
	}
	return Inline{}, false
}

type rawSpan struct {
	Start int    `json:"start"`
	End   int    `json:"end"`
	Type  string `json:"type"`
	Data  struct {
		URL    string `json:"url"`
		Target string `json:"target"`
		Label  string `json:"label"`
	} `json:"data"`
}

type rawBlock struct {
	Type       string    `json:"type"`
	Text       string    `json:"text"`
	Spans      []rawSpan `json:"spans"`
	URL        string    `json:"url"`
	Alt        *string   `json:"alt"`
	Copyright  *string   `json:"copyright"`
	Dimensions struct {
		Width  int `json:"width"`
		Height int `json:"height"`
	} `json:"dimensions"`
	LinkTo *struct {
		URL string `json:"url"`
	} `json:"linkTo"`
	OEmbed *struct {
		Type         string `json:"type"`
		EmbedURL     string `json:"embed_url"`
		HTML         string `json:"html"`
		Title        string `json:"title"`
		ProviderName string `json:"provider_name"`
	} `json:"oembed"`
}

// UnmarshalJSON decodes the CMS block array. Unknown block or span types
// are rejected.
func (d *Document) UnmarshalJSON(data []byte) error {
	var raw []rawBlock
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	doc := make(Document, 0, len(raw))
	for i, rb := range raw {
		b, err := rb.block()
		if err != nil {
			return fmt.Errorf("richtext: block %d: %w", i, err)
		}
		doc = append(doc, b)
	}
	*d = doc
	return nil
}

func (rb rawBlock) inline() (Inline, error) {
	in := Inline{Text: rb.Text}
	for _, rs := range rb.Spans {
		s := Span{Start: rs.Start, End: rs.End, Type: SpanType(rs.Type)}
		switch s.Type {
		case SpanStrong, SpanEm:
		case SpanHyperlink:
			s.URL = rs.Data.URL
			s.Target = rs.Data.Target
		case SpanLabel:
			s.Label = rs.Data.Label
		default:
			return Inline{}, fmt.Errorf("unknown span type %q", rs.Type)
		}
		if s.Start < 0 || s.End < s.Start {
			return Inline{}, fmt.Errorf("invalid span range [%d,%d)", s.Start, s.End)
		}
		in.Spans = append(in.Spans, s)
	}
	return in, nil
}

func (rb rawBlock) block() (Block, error) {
	switch rb.Type {
	case "paragraph", "preformatted", "list-item", "o-list-item",
		"heading1", "heading2", "heading3", "heading4", "heading5", "heading6":
		in, err := rb.inline()
		if err != nil {
			return nil, err
		}
		switch rb.Type {
		case "paragraph":
			return Paragraph{in}, nil
		case "preformatted":
			return Preformatted{in}, nil
		case "list-item":
			return ListItem{Inline: in}, nil
		case "o-list-item":
			return ListItem{Inline: in, Ordered: true}, nil
		}
		return Heading{Inline: in, Level: int(rb.Type[len("heading")] - '0')}, nil
	case "image":
		img := Image{URL: rb.URL, Width: rb.Dimensions.Width, Height: rb.Dimensions.Height}
		if rb.Alt != nil {
			img.Alt = *rb.Alt
		}
		if rb.Copyright != nil {
			img.Copyright = *rb.Copyright
		}
		if rb.LinkTo != nil {
			img.LinkURL = rb.LinkTo.URL
		}
		return img, nil
	case "embed":
		if rb.OEmbed == nil {
			return nil, fmt.Errorf("embed block without oembed data")
		}
		return Embed{
			Type:     rb.OEmbed.Type,
			URL:      rb.OEmbed.EmbedURL,
			HTML:     rb.OEmbed.HTML,
			Title:    rb.OEmbed.Title,
			Provider: rb.OEmbed.ProviderName,
		}, nil
	}
	return nil, fmt.Errorf("unknown block type %q", rb.Type)
}
