package spacetraveling

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"
)

// fakeCMS serves a small content repository. Listings page through list two
// documents at a time; UID lookups read docs. When token is set, searches
// without it are rejected and next_page cursors carry it, as Prismic does.
type fakeCMS struct {
	srv   *httptest.Server
	list  []string
	docs  map[string]string
	token string
	fail  atomic.Bool
	lang  atomic.Value
}

var uidPattern = regexp.MustCompile(`my\.posts\.uid, "([^"]*)"`)

func newFakeCMS(t *testing.T, uids ...string) *fakeCMS {
	t.Helper()
	f := &fakeCMS{list: uids, docs: make(map[string]string)}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v2", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"refs":[{"id":"master","ref":"M1","isMasterRef":true}]}`)
	})
	mux.HandleFunc("/api/v2/documents/search", f.search)
	mux.HandleFunc("/banner.png", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_ = png.Encode(w, testImage(200, 100))
	})
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)

	for _, uid := range uids {
		f.docs[uid] = f.postDoc(uid, "")
	}
	return f
}

func (f *fakeCMS) endpoint() string {
	return f.srv.URL + "/api/v2"
}

func (f *fakeCMS) cursor(page int) string {
	return f.srv.URL + "/api/v2/documents/search?ref=M1&page=" + strconv.Itoa(page) + "&pageSize=2"
}

func (f *fakeCMS) postDoc(uid, bannerURL string) string {
	return `{"id":"id-` + uid + `","uid":"` + uid + `","type":"posts",` +
		`"first_publication_date":"2021-03-15T19:25:28+0000",` +
		`"data":{"title":"` + strings.ToUpper(uid) + `","subtitle":"about ` + uid + `","author":"Ana",` +
		`"banner":{"url":"` + bannerURL + `"},` +
		`"content":[{"heading":"Intro","body":[{"type":"paragraph","text":"hello world","spans":[]}]}]}}`
}

// brokenDoc is a post whose body holds a block type the renderer does not
// know.
func (f *fakeCMS) brokenDoc(uid string) string {
	return `{"id":"id-` + uid + `","uid":"` + uid + `","type":"posts",` +
		`"data":{"title":"` + strings.ToUpper(uid) + `",` +
		`"content":[{"heading":"Intro","body":[{"type":"group"}]}]}}`
}

func (f *fakeCMS) search(w http.ResponseWriter, r *http.Request) {
	if f.fail.Load() {
		http.Error(w, "unavailable", http.StatusInternalServerError)
		return
	}
	q := r.URL.Query()
	if q.Get("access_token") != f.token {
		http.Error(w, "bad token", http.StatusUnauthorized)
		return
	}
	f.lang.Store(q.Get("lang"))
	if m := uidPattern.FindStringSubmatch(q.Get("q")); m != nil {
		results := ""
		if doc, ok := f.docs[m[1]]; ok {
			results = doc
		}
		fmt.Fprintf(w, `{"page":1,"results":[%s],"next_page":null}`, results)
		return
	}

	page, _ := strconv.Atoi(q.Get("page"))
	if page < 1 {
		page = 1
	}
	start := (page - 1) * 2
	end := start + 2
	if start > len(f.list) {
		start = len(f.list)
	}
	if end > len(f.list) {
		end = len(f.list)
	}
	docs := make([]string, 0, end-start)
	for _, uid := range f.list[start:end] {
		docs = append(docs, f.postDoc(uid, ""))
	}
	next := "null"
	if end < len(f.list) {
		c := f.cursor(page + 1)
		if f.token != "" {
			c += "&access_token=" + f.token
		}
		next = strconv.Quote(c)
	}
	fmt.Fprintf(w, `{"page":%d,"results":[%s],"next_page":%s}`, page, strings.Join(docs, ","), next)
}

func testImage(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 200, A: 255})
		}
	}
	return img
}

func textView(s string) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		_, err := io.WriteString(w, s)
		return err
	})
}

func joinUIDs(posts []PostSummary) string {
	uids := make([]string, len(posts))
	for i, p := range posts {
		uids[i] = p.UID
	}
	return strings.Join(uids, ",")
}

var stubViews = ViewFuncs{
	Home: func(posts []PostSummary, next string) templ.Component {
		return textView("home:" + joinUIDs(posts) + "|" + next)
	},
	PostList: func(posts []PostSummary, next string) templ.Component {
		return textView("list:" + joinUIDs(posts) + "|" + next)
	},
	LoadMoreError:   func(cursor string) templ.Component { return textView("retry:" + cursor) },
	Post:            func(p Post) templ.Component { return textView("post:" + p.UID + ":" + p.Title) },
	PostArticle:     func(p Post) templ.Component { return textView("article:" + p.UID) },
	PostLoading:     func(uid string) templ.Component { return textView("loading:" + uid) },
	PostNotFound:    func(uid string) templ.Component { return textView("missing:" + uid) },
	PostUnavailable: func(uid string) templ.Component { return textView("unavailable:" + uid) },
	NotFound:        func() templ.Component { return textView("notfound") },
	ServerError:     func() templ.Component { return textView("error") },
}

func newTestApp(t *testing.T, f *fakeCMS, mutate func(*SiteConfig)) *App {
	t.Helper()
	cfg := SiteConfig{
		URL:            "https://blog.example.com",
		CMSEndpoint:    f.endpoint(),
		DatabasePath:   filepath.Join(t.TempDir(), "pages.db"),
		SkipGenerate:   true,
		BannerMaxWidth: 100,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	a := New(cfg, stubViews, WithHTTPClient(f.srv.Client()))
	if err := a.Setup(); err != nil {
		t.Fatalf("Setup: %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

func get(a *App, target string, htmx bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if htmx {
		req.Header.Set("HX-Request", "true")
	}
	rec := httptest.NewRecorder()
	a.Echo.ServeHTTP(rec, req)
	return rec
}

func loadMorePath(cursor string) string {
	return "/posts/more/?cursor=" + url.QueryEscape(cursor)
}

func assertResponse(t *testing.T, rec *httptest.ResponseRecorder, code int, body string) {
	t.Helper()
	if rec.Code != code {
		t.Fatalf("status = %d, want %d (body %q)", rec.Code, code, rec.Body.String())
	}
	if body != "" && rec.Body.String() != body {
		t.Errorf("body = %q, want %q", rec.Body.String(), body)
	}
}

func TestHomeListsFirstPageWithCursor(t *testing.T) {
	f := newFakeCMS(t, "a", "b", "c")
	a := newTestApp(t, f, nil)

	rec := get(a, "/", false)
	assertResponse(t, rec, http.StatusOK, "home:a,b|"+f.cursor(2))
	if rec.Header().Get(echo.HeaderXRequestID) == "" {
		t.Error("expected a request id header")
	}
	if _, err := a.Store.GetPage("/"); err != nil {
		t.Errorf("home page was not stored: %v", err)
	}
}

func TestLoadMoreAppendsLastPage(t *testing.T) {
	f := newFakeCMS(t, "a", "b", "c")
	a := newTestApp(t, f, nil)

	rec := get(a, loadMorePath(f.cursor(2)), true)
	assertResponse(t, rec, http.StatusOK, "list:c|")
	if got := rec.Header().Get("Cache-Control"); got != "no-store" {
		t.Errorf("Cache-Control = %q, want no-store", got)
	}
}

func TestCursorsHideAccessToken(t *testing.T) {
	f := newFakeCMS(t, "a", "b", "c")
	f.token = "secret"
	a := newTestApp(t, f, func(cfg *SiteConfig) { cfg.CMSAccessToken = "secret" })

	rec := get(a, "/", false)
	assertResponse(t, rec, http.StatusOK, "home:a,b|"+f.cursor(2))
	if strings.Contains(rec.Body.String(), "secret") {
		t.Fatalf("access token leaked into the page: %s", rec.Body.String())
	}
	assertResponse(t, get(a, loadMorePath(f.cursor(2)), true), http.StatusOK, "list:c|")
}

func TestCMSLangIsRequested(t *testing.T) {
	f := newFakeCMS(t, "a")
	a := newTestApp(t, f, func(cfg *SiteConfig) { cfg.CMSLang = "pt-br" })

	assertResponse(t, get(a, "/", false), http.StatusOK, "home:a|")
	if got := f.lang.Load(); got != "pt-br" {
		t.Errorf("list lang = %v, want pt-br", got)
	}
	f.lang.Store("")
	assertResponse(t, get(a, "/post/a/?partial=post", true), http.StatusOK, "article:a")
	if got := f.lang.Load(); got != "pt-br" {
		t.Errorf("post lang = %v, want pt-br", got)
	}
}

func TestLoadMoreRejectsForeignCursor(t *testing.T) {
	f := newFakeCMS(t, "a")
	a := newTestApp(t, f, nil)

	for _, cursor := range []string{"", "https://evil.example.com/api/v2/documents/search?page=2", "/api/v2/documents/search"} {
		rec := get(a, loadMorePath(cursor), true)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("cursor %q: status = %d, want 400", cursor, rec.Code)
		}
	}
}

func TestLoadMoreFailureOffersRetry(t *testing.T) {
	f := newFakeCMS(t, "a", "b", "c")
	a := newTestApp(t, f, nil)
	cursor := f.cursor(2)

	f.fail.Store(true)
	assertResponse(t, get(a, loadMorePath(cursor), true), http.StatusBadGateway, "retry:"+cursor)

	f.fail.Store(false)
	assertResponse(t, get(a, loadMorePath(cursor), true), http.StatusOK, "list:c|")
}

func TestLoadMoreIsRateLimited(t *testing.T) {
	f := newFakeCMS(t, "a", "b", "c")
	a := newTestApp(t, f, func(cfg *SiteConfig) { cfg.RateLimit = 1 })

	assertResponse(t, get(a, loadMorePath(f.cursor(2)), true), http.StatusOK, "")
	assertResponse(t, get(a, loadMorePath(f.cursor(2)), true), http.StatusTooManyRequests, "")
}

func TestPostFallbackThenGenerated(t *testing.T) {
	f := newFakeCMS(t, "a")
	a := newTestApp(t, f, nil)

	assertResponse(t, get(a, "/post/a/", false), http.StatusOK, "loading:a")
	assertResponse(t, get(a, "/post/a/?partial=post", true), http.StatusOK, "article:a")

	rec := get(a, "/post/a/", false)
	assertResponse(t, rec, http.StatusOK, "post:a:A")
	if rec.Header().Get("X-Generated-At") == "" {
		t.Error("expected X-Generated-At on a generated page")
	}
}

func TestPostPartialNotFound(t *testing.T) {
	f := newFakeCMS(t, "a")
	a := newTestApp(t, f, nil)

	assertResponse(t, get(a, "/post/zzz/", false), http.StatusOK, "loading:zzz")
	assertResponse(t, get(a, "/post/zzz/?partial=post", true), http.StatusNotFound, "missing:zzz")
	if _, err := a.Store.GetPage(PostRoute("zzz")); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing post should not be stored, err = %v", err)
	}
}

func TestPostPartialUndecodable(t *testing.T) {
	f := newFakeCMS(t, "a")
	f.docs["a"] = f.brokenDoc("a")
	a := newTestApp(t, f, nil)

	assertResponse(t, get(a, "/post/a/?partial=post", true), http.StatusBadGateway, "unavailable:a")
	if _, err := a.Store.GetPage(PostRoute("a")); !errors.Is(err, ErrNotFound) {
		t.Errorf("undecodable post should not be stored, err = %v", err)
	}
}

func TestPostPartialCMSDown(t *testing.T) {
	f := newFakeCMS(t, "a")
	a := newTestApp(t, f, nil)
	f.fail.Store(true)

	assertResponse(t, get(a, "/post/a/?partial=post", true), http.StatusBadGateway, "unavailable:a")

	f.fail.Store(false)
	assertResponse(t, get(a, "/post/a/?partial=post", true), http.StatusOK, "article:a")
}

func TestPostIndexRedirects(t *testing.T) {
	f := newFakeCMS(t)
	a := newTestApp(t, f, nil)

	rec := get(a, "/post/", false)
	if rec.Code != http.StatusMovedPermanently || rec.Header().Get("Location") != "/" {
		t.Errorf("GET /post/ = %d %q, want 301 to /", rec.Code, rec.Header().Get("Location"))
	}
}

func TestStalePagesAreRevalidated(t *testing.T) {
	f := newFakeCMS(t, "a", "b", "c")
	a := newTestApp(t, f, nil)
	old := time.Now().Add(-48 * time.Hour)

	if err := a.Store.SavePage(Page{Route: "/", ContentType: "text/plain", Body: []byte("old"), GeneratedAt: old}); err != nil {
		t.Fatal(err)
	}
	assertResponse(t, get(a, "/", false), http.StatusOK, "home:a,b|"+f.cursor(2))

	if err := a.Store.SavePage(Page{Route: PostRoute("a"), ContentType: "text/plain", Body: []byte("old post"), GeneratedAt: old}); err != nil {
		t.Fatal(err)
	}
	assertResponse(t, get(a, "/post/a/", false), http.StatusOK, "post:a:A")
}

func TestStalePageServedWhenCMSFails(t *testing.T) {
	f := newFakeCMS(t, "a")
	a := newTestApp(t, f, nil)
	old := time.Now().Add(-48 * time.Hour)

	if err := a.Store.SavePage(Page{Route: "/", ContentType: "text/plain", Body: []byte("old"), GeneratedAt: old}); err != nil {
		t.Fatal(err)
	}
	f.fail.Store(true)
	assertResponse(t, get(a, "/", false), http.StatusOK, "old")
}

func TestFreshPageIsNotRebuilt(t *testing.T) {
	f := newFakeCMS(t, "a")
	a := newTestApp(t, f, nil)

	if err := a.Store.SavePage(Page{Route: PostRoute("a"), ContentType: "text/plain", Body: []byte("cached")}); err != nil {
		t.Fatal(err)
	}
	f.fail.Store(true)
	assertResponse(t, get(a, "/post/a/", false), http.StatusOK, "cached")
}

func TestRevalidationDisabled(t *testing.T) {
	f := newFakeCMS(t, "a")
	a := newTestApp(t, f, func(cfg *SiteConfig) { cfg.Revalidate = -1 })

	old := time.Now().Add(-365 * 24 * time.Hour)
	if err := a.Store.SavePage(Page{Route: "/", ContentType: "text/plain", Body: []byte("ancient"), GeneratedAt: old}); err != nil {
		t.Fatal(err)
	}
	assertResponse(t, get(a, "/", false), http.StatusOK, "ancient")
}

func TestStalePostRemovedFromCMS(t *testing.T) {
	f := newFakeCMS(t, "a")
	a := newTestApp(t, f, nil)
	old := time.Now().Add(-48 * time.Hour)

	for _, r := range []string{PostRoute("gone"), BannerRoute("gone")} {
		if err := a.Store.SavePage(Page{Route: r, ContentType: "text/plain", Body: []byte("x"), GeneratedAt: old}); err != nil {
			t.Fatal(err)
		}
	}
	assertResponse(t, get(a, "/post/gone/", false), http.StatusNotFound, "notfound")
	for _, r := range []string{PostRoute("gone"), BannerRoute("gone")} {
		if _, err := a.Store.GetPage(r); !errors.Is(err, ErrNotFound) {
			t.Errorf("%s should have been deleted, err = %v", r, err)
		}
	}
}

func TestBannerIsResized(t *testing.T) {
	f := newFakeCMS(t, "a", "b")
	f.docs["a"] = f.postDoc("a", f.srv.URL+"/banner.png")
	a := newTestApp(t, f, nil)

	rec := get(a, "/post/a/banner.jpg", false)
	assertResponse(t, rec, http.StatusOK, "")
	if ct := rec.Header().Get(echo.HeaderContentType); ct != "image/jpeg" {
		t.Errorf("Content-Type = %q, want image/jpeg", ct)
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(rec.Body.Bytes()))
	if err != nil {
		t.Fatalf("decode banner: %v", err)
	}
	if format != "jpeg" || cfg.Width != 100 || cfg.Height != 50 {
		t.Errorf("banner = %s %dx%d, want jpeg 100x50", format, cfg.Width, cfg.Height)
	}

	assertResponse(t, get(a, "/post/b/banner.jpg", false), http.StatusNotFound, "notfound")
}

func TestStaleBannerServedWhenRateLimited(t *testing.T) {
	f := newFakeCMS(t, "a", "b")
	f.docs["a"] = f.postDoc("a", f.srv.URL+"/banner.png")
	a := newTestApp(t, f, func(cfg *SiteConfig) { cfg.RateLimit = 1 })

	old := time.Now().Add(-48 * time.Hour)
	if err := a.Store.SavePage(Page{Route: BannerRoute("a"), ContentType: "image/jpeg", Body: []byte("old banner"), GeneratedAt: old}); err != nil {
		t.Fatal(err)
	}
	assertResponse(t, get(a, "/post/b/banner.jpg", false), http.StatusNotFound, "notfound")
	assertResponse(t, get(a, "/post/a/banner.jpg", false), http.StatusOK, "old banner")
	assertResponse(t, get(a, "/post/b/banner.jpg", false), http.StatusTooManyRequests, "")
}

func TestStaleBannerDroppedWhenBannerRemoved(t *testing.T) {
	f := newFakeCMS(t, "a")
	a := newTestApp(t, f, nil)
	old := time.Now().Add(-48 * time.Hour)

	for _, uid := range []string{"a", "gone"} {
		route := BannerRoute(uid)
		if err := a.Store.SavePage(Page{Route: route, ContentType: "image/jpeg", Body: []byte("old banner"), GeneratedAt: old}); err != nil {
			t.Fatal(err)
		}
		assertResponse(t, get(a, route, false), http.StatusNotFound, "notfound")
		if _, err := a.Store.GetPage(route); !errors.Is(err, ErrNotFound) {
			t.Errorf("%s should have been deleted, err = %v", route, err)
		}
	}
}

func TestGenerateStoresEveryRoute(t *testing.T) {
	f := newFakeCMS(t, "a", "b", "ghost")
	delete(f.docs, "ghost")
	a := newTestApp(t, f, nil)

	if err := a.Store.SavePage(Page{Route: PostRoute("removed"), ContentType: "text/plain", Body: []byte("x")}); err != nil {
		t.Fatal(err)
	}
	if err := a.Generate(context.Background()); err != nil {
		t.Fatalf("Generate: %v", err)
	}

	for _, r := range []string{"/", "/sitemap.xml", "/feed.xml", PostRoute("a"), PostRoute("b")} {
		if _, err := a.Store.GetPage(r); err != nil {
			t.Errorf("%s not generated: %v", r, err)
		}
	}
	for _, r := range []string{PostRoute("ghost"), PostRoute("removed")} {
		if _, err := a.Store.GetPage(r); !errors.Is(err, ErrNotFound) {
			t.Errorf("%s should not be stored, err = %v", r, err)
		}
	}

	feed, _ := a.Store.GetPage("/feed.xml")
	if !strings.Contains(string(feed.Body), "<link>https://blog.example.com/post/a/</link>") {
		t.Errorf("feed missing post link: %s", feed.Body)
	}
}

func TestGenerateSkipsUndecodablePost(t *testing.T) {
	f := newFakeCMS(t, "a", "b", "c")
	f.docs["a"] = f.brokenDoc("a")
	a := newTestApp(t, f, nil)

	if err := a.Store.SavePage(Page{Route: PostRoute("a"), ContentType: "text/plain", Body: []byte("previous a")}); err != nil {
		t.Fatal(err)
	}
	if err := a.Generate(context.Background()); err != nil {
		t.Fatalf("Generate: %v", err)
	}

	for _, r := range []string{PostRoute("b"), PostRoute("c"), "/sitemap.xml", "/feed.xml"} {
		if _, err := a.Store.GetPage(r); err != nil {
			t.Errorf("%s not generated: %v", r, err)
		}
	}
	page, err := a.Store.GetPage(PostRoute("a"))
	if err != nil {
		t.Fatalf("previous page of a was pruned: %v", err)
	}
	if string(page.Body) != "previous a" {
		t.Errorf("page of a = %q, want the previous build", page.Body)
	}
}

func TestGenerateFailsWhenCMSIsDown(t *testing.T) {
	f := newFakeCMS(t, "a")
	a := newTestApp(t, f, nil)
	f.fail.Store(true)

	if err := a.Generate(context.Background()); err == nil {
		t.Fatal("expected Generate to fail")
	}
}

func TestRobotsAndUnknownRoutes(t *testing.T) {
	f := newFakeCMS(t)
	a := newTestApp(t, f, nil)

	rec := get(a, "/robots.txt", false)
	assertResponse(t, rec, http.StatusOK, "")
	if !strings.Contains(rec.Body.String(), "Sitemap: https://blog.example.com/sitemap.xml") {
		t.Errorf("robots.txt = %q", rec.Body.String())
	}

	assertResponse(t, get(a, "/nope/", false), http.StatusNotFound, "notfound")
}

func TestPublicAssetsServed(t *testing.T) {
	f := newFakeCMS(t)
	a := newTestApp(t, f, nil)

	rec := get(a, "/public/style.css", false)
	assertResponse(t, rec, http.StatusOK, "")
	if got := rec.Header().Get("Cache-Control"); !strings.Contains(got, "immutable") {
		t.Errorf("Cache-Control = %q", got)
	}
}

func TestSetupRequiresEndpoint(t *testing.T) {
	a := New(SiteConfig{DatabasePath: filepath.Join(t.TempDir(), "pages.db")}, stubViews)
	if err := a.Setup(); err == nil {
		t.Fatal("expected Setup to fail without a CMS endpoint")
	}
}
