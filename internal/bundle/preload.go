package bundle

import (
	"context"
	"sort"
	"sync"

	"assetd/pkg/types"
)

// PreloadCritical eagerly warms the cache with every preload-flagged or
// high-priority asset across the given bundles, ahead of any bundle load.
// Best-effort: individual failures are logged and skipped; the later bundle
// load re-attempts them with its full retry budget. Only context
// cancellation aborts the sweep.
func (m *Manager) PreloadCritical(ctx context.Context, bundles []types.AssetBundle) error {
	var critical []types.AssetDescriptor
	for _, b := range bundles {
		for _, d := range orderAssets(b) {
			if d.Preload || d.Priority == types.PriorityHigh {
				critical = append(critical, d)
			}
		}
	}
	// Preload-flagged assets go first regardless of which bundle they
	// came from.
	sort.SliceStable(critical, func(i, j int) bool {
		if critical[i].Preload != critical[j].Preload {
			return critical[i].Preload
		}
		return critical[i].Priority.Rank() < critical[j].Priority.Rank()
	})

	sem := make(chan struct{}, m.cfg.Parallelism)
	var wg sync.WaitGroup
	for _, d := range critical {
		if ctx.Err() != nil {
			break
		}
		sem <- struct{}{}
		wg.Add(1)
		go func(d types.AssetDescriptor) {
			defer wg.Done()
			defer func() { <-sem }()
			if _, err := m.loader.Load(ctx, d); err != nil {
				m.log.Warn().Str("asset", d.ID).Err(err).Msg("preload failed")
			}
		}(d)
	}
	wg.Wait()
	return ctx.Err()
}
