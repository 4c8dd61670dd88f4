package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
)

const defaultMaxWorkers = 4

// BatchResult is the outcome for one document of ProcessAll.
type BatchResult struct {
	Path   string
	Result Result
	Err    error
}

// workerPool bounds the number of documents in flight.
type workerPool struct {
	semaphore chan struct{}
}

func newWorkerPool(maxWorkers int) *workerPool {
	if maxWorkers <= 0 {
		maxWorkers = defaultMaxWorkers
	}
	return &workerPool{semaphore: make(chan struct{}, maxWorkers)}
}

func (wp *workerPool) acquire(ctx context.Context) error {
	select {
	case wp.semaphore <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (wp *workerPool) release() {
	<-wp.semaphore
}

// ProcessAll runs Process for every path with at most workers documents in
// flight. Results keep the order of paths and a failure affects only its own
// document. Paths sharing a file stem would overwrite each other's processed
// text and are rejected up front.
func (p *Pipeline) ProcessAll(ctx context.Context, paths []string, workers int) ([]BatchResult, error) {
	seen := make(map[string]string, len(paths))
	for _, path := range paths {
		stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		if other, ok := seen[stem]; ok {
			return nil, fmt.Errorf("%s and %s would share the processed file %s.txt", other, path, stem)
		}
		seen[stem] = path
	}

	results := make([]BatchResult, len(paths))
	wp := newWorkerPool(workers)
	done := make(chan struct{}, len(paths))

	started := 0
	for i, path := range paths {
		results[i].Path = path
		if err := wp.acquire(ctx); err != nil {
			results[i].Err = err
			continue
		}
		started++
		go func(idx int, docPath string) {
			defer wp.release()
			res, err := p.Process(ctx, docPath)
			results[idx].Result = res
			results[idx].Err = err
			done <- struct{}{}
		}(i, path)
	}

	for range started {
		<-done
	}
	return results, nil
}
