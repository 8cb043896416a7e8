package spacetraveling

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"net/http"

	"github.com/eringen/spacetraveling/richtext"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const (
	jpegQuality   = 80
	maxBannerSize = 10 << 20 // 10MB
)

var errNoBanner = errors.New("post has no banner")

// processBanner decodes an image from src, scales it down to maxWidth when
// wider, and encodes it as JPEG.
func processBanner(src io.Reader, maxWidth int) ([]byte, error) {
	img, _, err := image.Decode(src)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	if w > maxWidth {
		newH := h * maxWidth / w
		dst := image.NewRGBA(image.Rect(0, 0, maxWidth, newH))
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
		img = dst
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

func (a *App) downloadImage(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	if richtext.SafeURL(rawURL) == "" {
		return nil, fmt.Errorf("unsafe banner url %q", rawURL)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("download banner: status %d", resp.StatusCode)
	}
	return resp.Body, nil
}

// buildBanner fetches the post's banner, resizes it and stores the result.
func (a *App) buildBanner(ctx context.Context, uid string) (Page, error) {
	post, err := a.fetchPost(ctx, uid)
	if err != nil {
		return Page{}, err
	}
	if post.BannerURL == "" {
		return Page{}, errNoBanner
	}

	body, err := a.downloadImage(ctx, post.BannerURL)
	if err != nil {
		return Page{}, err
	}
	defer body.Close()

	data, err := processBanner(io.LimitReader(body, maxBannerSize), a.Config.BannerMaxWidth)
	if err != nil {
		return Page{}, err
	}
	return a.savePage(BannerRoute(uid), "image/jpeg", data)
}
