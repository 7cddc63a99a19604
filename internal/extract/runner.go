package extract

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Run executes the given extractors concurrently against the primary
// document, with all documents available as context. Extractors are
// read-only over the text and write disjoint keys, so fan-out is safe.
//
// A panicking extractor is absorbed into a zero-confidence, citation-free
// result for its key; Run itself never fails.
func Run(ctx context.Context, extractors []Extractor, primary Document, all []Document) map[string]Result {
	results := make(map[string]Result, len(extractors))
	var mu sync.Mutex

	g, _ := errgroup.WithContext(ctx)
	for _, ex := range extractors {
		g.Go(func() error {
			res := safeExtract(ex, primary, all)
			mu.Lock()
			results[ex.Key()] = res
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	return results
}

// safeExtract wraps one extractor invocation with panic absorption.
func safeExtract(ex Extractor, primary Document, all []Document) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("extractor panicked, recording empty result",
				"key", ex.Key(), "panic", fmt.Sprintf("%v", r))
			res = Result{Key: ex.Key(), Confidence: 0}
		}
	}()
	return ex.Extract(primary, all)
}
