package ingestion_engine

import "context"

// Ingestor is the background upload pipeline seen by the services layer.
type Ingestor interface {
	Start(ctx context.Context, numWorkers int)
	Enqueue(ctx context.Context, job Job) error
	ProcessOne(ctx context.Context, job Job) (Result, error)
	// Wait blocks until every worker has exited.
	Wait()
}

var _ Ingestor = (*DocumentIngestor)(nil)
