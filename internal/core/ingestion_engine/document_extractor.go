package ingestion_engine

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"code.sajari.com/docconv"
	"golang.org/x/sync/errgroup"

	"github.com/markdave123-py/libassist/internal/core"
)

var _ core.DocumentExtractor = (*DocconvExtractor)(nil)

// DocconvExtractor implements core.DocumentExtractor using sajari/docconv.
type DocconvExtractor struct {
	useReadability bool
}

func NewDocconvExtractor(useReadability bool) *DocconvExtractor {
	return &DocconvExtractor{useReadability: useReadability}
}

// ExtractText converts data on g and streams its non-empty, trimmed lines.
func (e *DocconvExtractor) ExtractText(ctx context.Context, g *errgroup.Group, data []byte, contentType string) <-chan string {
	out := make(chan string, 32)

	g.Go(func() error {
		defer close(out)

		text, err := e.convert(data, contentType)
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		for _, line := range strings.Split(text, "\n") {
			if line = strings.TrimSpace(line); line == "" {
				continue
			}
			select {
			case out <- line:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})

	return out
}

func (e *DocconvExtractor) convert(data []byte, contentType string) (string, error) {
	// Plain text needs no conversion and docconv may not accept charset suffixes.
	if strings.HasPrefix(contentType, "text/plain") {
		return string(data), nil
	}
	res, err := docconv.Convert(bytes.NewReader(data), contentType, e.useReadability)
	if err != nil {
		return "", fmt.Errorf("docconv %s: %w", contentType, err)
	}
	return res.Body, nil
}
