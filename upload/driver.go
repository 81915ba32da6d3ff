// Copyright 2026 RetailNext, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package upload

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/retailnext/largefolder/cache"
	"github.com/retailnext/largefolder/digest"
	"github.com/retailnext/largefolder/hub"
	"github.com/retailnext/largefolder/metadata"
	"go.uber.org/zap"
)

type Options struct {
	// Folder is the local directory tree to upload.
	Folder  string
	Private bool
	Filter  Filter
	// NumWorkers defaults to NumCPU-2, floor 2.
	NumWorkers int
	// SerializeUploads keeps blob pre-uploads single-flight even when no
	// other stage has work.
	SerializeUploads bool
	ReportInterval   time.Duration
	CommitSummary    string

	// idleSleep overrides the scheduler's wait interval in tests.
	idleSleep time.Duration
}

func DefaultNumWorkers() int {
	n := runtime.NumCPU() - 2
	if n < 2 {
		n = 2
	}
	return n
}

func (o *Options) normalize() {
	if o.NumWorkers <= 0 {
		o.NumWorkers = DefaultNumWorkers()
	}
	if o.ReportInterval <= 0 {
		o.ReportInterval = time.Minute
	}
	if o.CommitSummary == "" {
		o.CommitSummary = "Upload folder using largefolder"
	}
	if o.idleSleep <= 0 {
		o.idleSleep = idleWait
	}
}

// Do uploads the folder: enumerate candidates, resume from sidecar
// metadata, run the worker pool until every file is committed or ignored.
// Only setup failures return before workers start; per-file errors are
// retried inside the pool until interrupted.
func Do(ctx context.Context, client hub.Client, opts Options) error {
	lgr := zap.S()
	opts.normalize()

	info, err := os.Stat(opts.Folder)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("upload: %q is not a directory", opts.Folder)
	}

	if err := client.EnsureRepo(ctx, opts.Private); err != nil {
		return fmt.Errorf("upload: ensuring repo: %w", err)
	}

	store, err := metadata.Open(opts.Folder)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			lgr.Errorw("metadata_close_error", "err", closeErr)
		}
	}()

	storage, err := cache.Open(store.CacheFile(), 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := storage.Close(); closeErr != nil {
			lgr.Errorw("cache_close_error", "err", closeErr)
		}
	}()

	tasks, err := scanFolder(opts.Folder, opts.Filter)
	if err != nil {
		return err
	}

	q := NewWorkQueueSet(opts.SerializeUploads)
	for _, task := range tasks {
		store.Load(task)
		q.Add(task)
	}
	initial := q.Snapshot()
	lgr.Infow("files_enumerated",
		"files", initial.Tracked,
		"already_done", initial.Done(),
		"total_bytes", initial.TotalBytes)

	runner := &stageRunner{
		client:  client,
		digests: digest.NewCache(storage),
		store:   store,
		summary: opts.CommitSummary,
	}

	var wg sync.WaitGroup
	errCh := make(chan error, opts.NumWorkers)
	for i := 0; i < opts.NumWorkers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			if workerErr := runWorker(ctx, id, q, runner, opts.idleSleep); workerErr != nil {
				errCh <- workerErr
			}
		}(i)
	}

	workersDone := make(chan struct{})
	go func() {
		wg.Wait()
		close(workersDone)
	}()

	ticker := time.NewTicker(opts.ReportInterval)
	defer ticker.Stop()
DRAINING:
	for {
		select {
		case <-workersDone:
			break DRAINING
		case <-ticker.C:
			fmt.Println(q.Snapshot().Render())
		}
	}

	final := q.Snapshot()
	fmt.Println(final.Render())
	lgr.Infow("upload_finished",
		"committed", final.Committed,
		"ignored", final.Ignored,
		"committed_bytes", final.CommittedBytes)

	select {
	case workerErr := <-errCh:
		return workerErr
	default:
	}
	return ctx.Err()
}
