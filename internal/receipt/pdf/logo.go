package pdf

import (
	"context"
	"fmt"
	"image"
	"io"
	"net/http"
	"time"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

const maxLogoBytes = 2 << 20

// LogoFetcher loads the header logo. Renderers treat every error as "no logo".
type LogoFetcher interface {
	Fetch(ctx context.Context, url string) (image.Image, error)
}

// HTTPLogoFetcher downloads and decodes PNG, JPEG, GIF and WebP logos.
type HTTPLogoFetcher struct {
	client  *http.Client
	timeout time.Duration
}

func NewHTTPLogoFetcher(client *http.Client, timeout time.Duration) *HTTPLogoFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPLogoFetcher{client: client, timeout: timeout}
}

func (f *HTTPLogoFetcher) Fetch(ctx context.Context, url string) (image.Image, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build logo request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch logo: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch logo: status %d", resp.StatusCode)
	}
	img, err := imaging.Decode(io.LimitReader(resp.Body, maxLogoBytes), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode logo: %w", err)
	}
	return img, nil
}
