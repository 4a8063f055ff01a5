package media

import (
	"context"
	"log/slog"
	"time"
)

// Pipeline bundles the downloader and transformer behind a worker semaphore so
// concurrent attachment work stays capped. Each inbound event acquires a slot
// before running its pipeline and releases it when done.
type Pipeline struct {
	*Downloader
	*Transformer

	slots chan struct{}
}

// NewPipeline builds the pipeline. workers caps concurrent attachment
// pipelines; values below one are treated as one.
func NewPipeline(downloadTimeout time.Duration, workers int, ffmpegBin, ffprobeBin string, logger *slog.Logger) *Pipeline {
	if workers < 1 {
		workers = 1
	}
	return &Pipeline{
		Downloader:  NewDownloader(downloadTimeout, logger),
		Transformer: NewTransformer(ffmpegBin, ffprobeBin, logger),
		slots:       make(chan struct{}, workers),
	}
}

// Acquire blocks until a worker slot is free or ctx is canceled.
func (p *Pipeline) Acquire(ctx context.Context) error {
	select {
	case p.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release frees a slot taken by Acquire.
func (p *Pipeline) Release() {
	<-p.slots
}
