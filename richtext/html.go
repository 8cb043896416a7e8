package richtext

import (
	"bytes"
	"context"
	"html"
	"io"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"unicode/utf16"

	"github.com/a-h/templ"
)

// Component returns a templ.Component that renders doc as HTML.
func Component(doc Document) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var buf bytes.Buffer
		RenderHTML(&buf, doc)
		_, err := w.Write(buf.Bytes())
		return err
	})
}

// AsHTML returns the HTML serialization of d.
func (d Document) AsHTML() string {
	var buf bytes.Buffer
	RenderHTML(&buf, d)
	return buf.String()
}

// RenderHTML writes the HTML representation of doc to buf. Runs of list
// items are grouped into a single <ul> or <ol>.
func RenderHTML(buf *bytes.Buffer, doc Document) {
	list := ""
	flushList := func() {
		if list != "" {
			buf.WriteString("</" + list + ">")
			list = ""
		}
	}

	for _, b := range doc {
		if li, ok := b.(ListItem); ok {
			tag := "ul"
			if li.Ordered {
				tag = "ol"
			}
			if list != tag {
				flushList()
				buf.WriteString("<" + tag + ">")
				list = tag
			}
			buf.WriteString("<li>")
			renderInline(buf, li.Inline)
			buf.WriteString("</li>")
			continue
		}
		flushList()

		switch v := b.(type) {
		case Paragraph:
			buf.WriteString("<p>")
			renderInline(buf, v.Inline)
			buf.WriteString("</p>")
		case Heading:
			level := v.Level
			if level < 1 || level > 6 {
				level = 2
			}
			tag := "h" + strconv.Itoa(level)
			buf.WriteString("<" + tag + ">")
			renderInline(buf, v.Inline)
			buf.WriteString("</" + tag + ">")
		case Preformatted:
			buf.WriteString("<pre>")
			renderInline(buf, v.Inline)
			buf.WriteString("</pre>")
		case Image:
			renderImage(buf, v)
		case Embed:
			buf.WriteString(`<div data-oembed="` + html.EscapeString(v.URL) +
				`" data-oembed-type="` + html.EscapeString(v.Type) +
				`" data-oembed-provider="` + html.EscapeString(v.Provider) + `">`)
			buf.WriteString(v.HTML)
			buf.WriteString("</div>")
		}
	}
	flushList()
}

func renderImage(buf *bytes.Buffer, img Image) {
	src := SafeURL(img.URL)
	if src == "" {
		return
	}
	tag := `<img src="` + src + `" alt="` + html.EscapeString(img.Alt) + `"`
	if img.Width > 0 && img.Height > 0 {
		tag += ` width="` + strconv.Itoa(img.Width) + `" height="` + strconv.Itoa(img.Height) + `"`
	}
	tag += ` loading="lazy" decoding="async"/>`

	buf.WriteString(`<p class="block-img">`)
	if href := SafeURL(img.LinkURL); href != "" {
		buf.WriteString(`<a href="` + href + `">` + tag + `</a>`)
	} else {
		buf.WriteString(tag)
	}
	buf.WriteString("</p>")
}

func spanTags(s Span) (string, string) {
	switch s.Type {
	case SpanStrong:
		return "<strong>", "</strong>"
	case SpanEm:
		return "<em>", "</em>"
	case SpanLabel:
		return `<span class="` + html.EscapeString(s.Label) + `">`, "</span>"
	case SpanHyperlink:
		href := SafeURL(s.URL)
		if href == "" {
			return "", ""
		}
		attrs := ""
		if s.Target == "_blank" {
			attrs = ` target="_blank" rel="noopener noreferrer"`
		}
		return `<a href="` + href + `"` + attrs + `>`, "</a>"
	}
	return "", ""
}

// renderInline writes in.Text with its spans applied. Overlapping spans
// that do not nest are closed and reopened so the output stays well formed.
func renderInline(buf *bytes.Buffer, in Inline) {
	units := utf16.Encode([]rune(in.Text))
	n := len(units)

	spans := make([]Span, 0, len(in.Spans))
	for _, s := range in.Spans {
		if s.Start >= n || s.End <= s.Start {
			continue
		}
		if s.End > n {
			s.End = n
		}
		spans = append(spans, s)
	}
	sort.SliceStable(spans, func(i, j int) bool {
		if spans[i].Start != spans[j].Start {
			return spans[i].Start < spans[j].Start
		}
		return spans[i].End > spans[j].End
	})

	var open []Span
	closeAt := func(pos int) {
		first := -1
		for i, s := range open {
			if s.End <= pos {
				first = i
				break
			}
		}
		if first < 0 {
			return
		}
		for i := len(open) - 1; i >= first; i-- {
			_, end := spanTags(open[i])
			buf.WriteString(end)
		}
		reopen := open[first:]
		open = open[:first]
		for _, s := range reopen {
			if s.End > pos {
				start, _ := spanTags(s)
				buf.WriteString(start)
				open = append(open, s)
			}
		}
	}

	next := 0
	pos := 0
	for pos < n {
		closeAt(pos)
		for next < len(spans) && spans[next].Start == pos {
			start, _ := spanTags(spans[next])
			buf.WriteString(start)
			open = append(open, spans[next])
			next++
		}
		end := n
		for _, s := range open {
			if s.End < end {
				end = s.End
			}
		}
		if next < len(spans) && spans[next].Start < end {
			end = spans[next].Start
		}
		writeText(buf, units[pos:end])
		pos = end
	}
	closeAt(n)
}

func writeText(buf *bytes.Buffer, units []uint16) {
	s := html.EscapeString(string(utf16.Decode(units)))
	buf.WriteString(strings.ReplaceAll(s, "\n", "<br />"))
}

// SafeURL validates and sanitizes a URL for use in HTML attributes.
// Relative paths, fragments and http(s), mailto and tel URLs pass;
// anything else yields "".
func SafeURL(raw string) string {
	val := strings.TrimSpace(raw)
	if val == "" {
		return ""
	}
	if strings.HasPrefix(val, "/") || strings.HasPrefix(val, "#") {
		if strings.HasPrefix(val, "//") {
			return ""
		}
		return html.EscapeString(val)
	}
	parsed, err := url.Parse(val)
	if err != nil || parsed.Scheme == "" {
		return ""
	}
	switch strings.ToLower(parsed.Scheme) {
	case "http", "https", "mailto", "tel":
		return html.EscapeString(val)
	default:
		return ""
	}
}
