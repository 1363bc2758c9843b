package content

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// Index caches the chapter tree built from a Source. The source is
// enumerated on first use and again only when Refresh is called.
type Index struct {
	source  Source
	builder *Builder
	logger  *logrus.Entry

	mu       sync.RWMutex
	chapters []Chapter
	builtAt  time.Time
	built    bool

	flight singleflight.Group
}

// NewIndex creates an index over source.
func NewIndex(source Source, builder *Builder, logger *logrus.Entry) *Index {
	if builder == nil {
		builder = NewBuilder("", nil, logger)
	}
	if logger == nil {
		logger = builder.logger
	}
	return &Index{
		source:  source,
		builder: builder,
		logger:  logger.WithField("component", "content-index"),
	}
}

// Chapters returns the cached tree, building it on first call. The
// returned tree is shared and must be treated as read-only.
func (idx *Index) Chapters(ctx context.Context) ([]Chapter, error) {
	idx.mu.RLock()
	if idx.built {
		chapters := idx.chapters
		idx.mu.RUnlock()
		return chapters, nil
	}
	idx.mu.RUnlock()
	return idx.rebuild(ctx)
}

// Refresh re-enumerates the source and replaces the cached tree. On
// failure the previous tree stays in place.
func (idx *Index) Refresh(ctx context.Context) ([]Chapter, error) {
	return idx.rebuild(ctx)
}

// BuiltAt reports when the cached tree was last built.
func (idx *Index) BuiltAt() time.Time {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.builtAt
}

func (idx *Index) rebuild(ctx context.Context) ([]Chapter, error) {
	if idx.source == nil {
		return nil, ErrNoSource
	}
	// The shared build ignores caller cancellation; a cancelled caller
	// only stops waiting for it.
	buildCtx := context.WithoutCancel(ctx)
	ch := idx.flight.DoChan("build", func() (interface{}, error) {
		start := time.Now()
		records, err := idx.source.Records(buildCtx)
		if err != nil {
			return nil, fmt.Errorf("enumerate content: %w", err)
		}
		chapters := idx.builder.Build(records)

		idx.mu.Lock()
		idx.chapters = chapters
		idx.builtAt = time.Now()
		idx.built = true
		idx.mu.Unlock()

		idx.logger.WithFields(logrus.Fields{
			"records":  len(records),
			"chapters": len(chapters),
			"duration": time.Since(start),
		}).Debug("Built content index")
		return chapters, nil
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-ch:
	}
	if res.Err != nil {
		idx.logger.WithError(res.Err).Warn("Content index build failed")
		return nil, res.Err
	}
	if res.Shared {
		idx.logger.Debug("Joined in-flight content index build")
	}
	return res.Val.([]Chapter), nil
}
