package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

const userAgent = "HDAK-LibBot-Sync/1.0"

var ErrFetch = errors.New("catalog fetch failed")

// Fetcher returns the raw HTML of one page.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

type HTTPFetcher struct {
	client *resty.Client
}

func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	return &HTTPFetcher{
		client: resty.New().
			SetTimeout(timeout).
			SetHeader("User-Agent", userAgent).
			SetHeader("Accept", "text/html,application/xhtml+xml"),
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (string, error) {
	resp, err := f.client.R().SetContext(ctx).Get(url)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrFetch, err)
	}
	if !resp.IsSuccess() {
		return "", fmt.Errorf("%w: HTTP error! status: %d", ErrFetch, resp.StatusCode())
	}
	return resp.String(), nil
}
