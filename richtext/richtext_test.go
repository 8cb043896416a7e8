package richtext

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

const sampleBody = `[
	{"type":"heading2","text":"Intro","spans":[]},
	{"type":"paragraph","text":"Hello brave world","spans":[
		{"start":0,"end":5,"type":"strong"},
		{"start":6,"end":11,"type":"em"},
		{"start":12,"end":17,"type":"hyperlink","data":{"link_type":"Web","url":"https://example.com","target":"_blank"}}
	]},
	{"type":"list-item","text":"one","spans":[]},
	{"type":"list-item","text":"two","spans":[]},
	{"type":"o-list-item","text":"first","spans":[]},
	{"type":"image","url":"https://images.example.com/a.png","alt":"An image","copyright":null,"dimensions":{"width":800,"height":600}},
	{"type":"embed","oembed":{"type":"video","embed_url":"https://youtu.be/x","html":"<iframe src=\"https://youtube.com/embed/x\"></iframe>","provider_name":"YouTube"}},
	{"type":"preformatted","text":"a < b","spans":[]}
]`

func decode(t *testing.T, data string) Document {
	t.Helper()
	var doc Document
	if err := json.Unmarshal([]byte(data), &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return doc
}

func TestUnmarshalBlockVariants(t *testing.T) {
	doc := decode(t, sampleBody)
	if len(doc) != 8 {
		t.Fatalf("len(doc) = %d, want 8", len(doc))
	}
	if h, ok := doc[0].(Heading); !ok || h.Level != 2 || h.Text != "Intro" {
		t.Errorf("doc[0] = %#v, want level 2 heading", doc[0])
	}
	p, ok := doc[1].(Paragraph)
	if !ok {
		t.Fatalf("doc[1] = %T, want Paragraph", doc[1])
	}
	if len(p.Spans) != 3 || p.Spans[2].URL != "https://example.com" || p.Spans[2].Target != "_blank" {
		t.Errorf("paragraph spans = %#v", p.Spans)
	}
	if li, ok := doc[4].(ListItem); !ok || !li.Ordered {
		t.Errorf("doc[4] = %#v, want ordered list item", doc[4])
	}
	if img, ok := doc[5].(Image); !ok || img.Width != 800 || img.Alt != "An image" {
		t.Errorf("doc[5] = %#v", doc[5])
	}
	if em, ok := doc[6].(Embed); !ok || em.Provider != "YouTube" {
		t.Errorf("doc[6] = %#v", doc[6])
	}
}

func TestUnmarshalRejectsUnknownTypes(t *testing.T) {
	tests := []string{
		`[{"type":"table","text":"x"}]`,
		`[{"type":"paragraph","text":"x","spans":[{"start":0,"end":1,"type":"blink"}]}]`,
		`[{"type":"paragraph","text":"x","spans":[{"start":2,"end":1,"type":"em"}]}]`,
		`[{"type":"embed"}]`,
	}
	for _, input := range tests {
		var doc Document
		if err := json.Unmarshal([]byte(input), &doc); err == nil {
			t.Errorf("Unmarshal(%s) succeeded, want error", input)
		}
	}
}

func TestAsText(t *testing.T) {
	doc := decode(t, sampleBody)
	got := doc.PlainText()
	want := "Intro Hello brave world one two first a < b"
	if got != want {
		t.Errorf("PlainText() = %q, want %q", got, want)
	}
	if got := doc.AsText("\n"); !strings.Contains(got, "Intro\nHello") {
		t.Errorf("AsText(newline) = %q", got)
	}
	if got := Document(nil).PlainText(); got != "" {
		t.Errorf("empty PlainText() = %q", got)
	}
}

func TestAsHTMLBlocks(t *testing.T) {
	got := decode(t, sampleBody).AsHTML()
	wants := []string{
		"<h2>Intro</h2>",
		`<p><strong>Hello</strong> <em>brave</em> <a href="https://example.com" target="_blank" rel="noopener noreferrer">world</a></p>`,
		"<ul><li>one</li><li>two</li></ul><ol><li>first</li></ol>",
		`<p class="block-img"><img src="https://images.example.com/a.png" alt="An image" width="800" height="600"`,
		`<div data-oembed="https://youtu.be/x" data-oembed-type="video" data-oembed-provider="YouTube"><iframe`,
		"<pre>a &lt; b</pre>",
	}
	for _, w := range wants {
		if !strings.Contains(got, w) {
			t.Errorf("AsHTML() missing %q\n got: %s", w, got)
		}
	}
}

func TestRenderInlineSpans(t *testing.T) {
	tests := []struct {
		name string
		in   Inline
		want string
	}{
		{
			name: "nested",
			in: Inline{Text: "bold and italic", Spans: []Span{
				{Start: 0, End: 15, Type: SpanStrong},
				{Start: 9, End: 15, Type: SpanEm},
			}},
			want: "<strong>bold and <em>italic</em></strong>",
		},
		{
			name: "overlapping",
			in: Inline{Text: "abcdefgh", Spans: []Span{
				{Start: 0, End: 5, Type: SpanStrong},
				{Start: 3, End: 8, Type: SpanEm},
			}},
			want: "<strong>abc<em>de</em></strong><em>fgh</em>",
		},
		{
			name: "escapes text",
			in:   Inline{Text: "<script>"},
			want: "&lt;script&gt;",
		},
		{
			name: "newline",
			in:   Inline{Text: "a\nb"},
			want: "a<br />b",
		},
		{
			name: "unsafe link dropped",
			in: Inline{Text: "click", Spans: []Span{
				{Start: 0, End: 5, Type: SpanHyperlink, URL: "javascript:alert(1)"},
			}},
			want: "click",
		},
		{
			name: "label",
			in: Inline{Text: "code", Spans: []Span{
				{Start: 0, End: 4, Type: SpanLabel, Label: "codespan"},
			}},
			want: `<span class="codespan">code</span>`,
		},
		{
			name: "utf16 offsets",
			in: Inline{Text: "😀 ok", Spans: []Span{
				{Start: 3, End: 5, Type: SpanStrong},
			}},
			want: "😀 <strong>ok</strong>",
		},
		{
			name: "out of range span clamped",
			in: Inline{Text: "abc", Spans: []Span{
				{Start: 1, End: 99, Type: SpanEm},
			}},
			want: "a<em>bc</em>",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			renderInline(&buf, tt.in)
			if got := buf.String(); got != tt.want {
				t.Errorf("renderInline() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSafeURL(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"https://example.com", "https://example.com"},
		{"mailto:a@b.c", "mailto:a@b.c"},
		{"/post/x", "/post/x"},
		{"#top", "#top"},
		{"//evil.example.com", ""},
		{"javascript:alert(1)", ""},
		{"data:text/html,hi", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := SafeURL(tt.input); got != tt.expected {
			t.Errorf("SafeURL(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestComponentRendersHTML(t *testing.T) {
	doc := Document{Paragraph{Inline{Text: "hi"}}}
	var buf bytes.Buffer
	if err := Component(doc).Render(context.Background(), &buf); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if buf.String() != "<p>hi</p>" {
		t.Errorf("Component output = %q", buf.String())
	}
}
