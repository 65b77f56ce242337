package core

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// DocumentExtractor turns an uploaded file into plain-text fragments.
type DocumentExtractor interface {
	// ExtractText runs extraction on g and streams non-empty lines on the returned
	// channel. The channel is closed when extraction ends; failures surface from g.Wait.
	ExtractText(ctx context.Context, g *errgroup.Group, data []byte, contentType string) <-chan string
}
