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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/retailnext/largefolder/digest"
	"github.com/retailnext/largefolder/fingerprint"
	"github.com/retailnext/largefolder/hub"
	"github.com/retailnext/largefolder/metadata"
	"github.com/retailnext/largefolder/metrics"
	"go.uber.org/zap"
)

// stageRunner executes one claimed batch. A nil return means every task
// in the claim advanced (its fields changed and were persisted); a
// non-nil return means the tasks were left untouched so FinishClaim puts
// them back on their queue. Context errors pass through untouched so the
// worker loop can tell interruption from a recoverable failure.
type stageRunner struct {
	client  hub.Client
	digests *digest.Cache
	store   *metadata.Store
	summary string
}

func (r *stageRunner) run(ctx context.Context, claim *Claim) error {
	switch claim.Stage {
	case StageHash:
		if len(claim.Tasks) != 1 {
			panic("hash claims are single-file")
		}
		return r.hash(ctx, claim.Tasks[0])
	case StageClassify:
		return r.classify(ctx, claim.Tasks)
	case StagePreupload:
		if len(claim.Tasks) != 1 {
			panic("preupload claims are single-file")
		}
		return r.preupload(ctx, claim.Tasks[0])
	case StageCommit:
		return r.commit(ctx, claim.Tasks)
	}
	panic("invalid stage")
}

// persist saves a task's new state. A failed save is logged but does not
// fail the stage: the in-memory state is already correct and a crash
// before the next successful save only costs redone work.
func (r *stageRunner) persist(task *metadata.FileTask) {
	if err := r.store.Save(task); err != nil {
		zap.S().Warnw("sidecar_save_error", "path", task.PathInRepo, "err", err)
	}
}

func (r *stageRunner) hash(ctx context.Context, task *metadata.FileTask) error {
	file, err := fingerprint.NewFile(task.LocalPath)
	if err != nil {
		return err
	}
	forUpload, err := r.digests.Get(ctx, file)
	if err != nil {
		return err
	}

	task.SHA256 = forUpload.SHA256Hex()
	task.Sample = forUpload.Sample()
	r.persist(task)
	hashedFiles.Inc()
	hashedBytes.Add(float64(task.Size))
	return nil
}

func (r *stageRunner) classify(ctx context.Context, tasks []*metadata.FileTask) error {
	files := make([]hub.FileInfo, 0, len(tasks))
	for _, task := range tasks {
		if task.SHA256 == "" {
			panic(fmt.Sprintf("classify before hash: %q", task.PathInRepo))
		}
		files = append(files, hub.FileInfo{
			Path:   task.PathInRepo,
			Size:   task.Size,
			SHA256: task.SHA256,
			Sample: task.Sample,
		})
	}

	result, err := r.client.ClassifyUploadModes(ctx, files)
	if err != nil {
		return err
	}

	lgr := zap.S()
	for _, task := range tasks {
		if _, ignored := result.Ignored[task.PathInRepo]; ignored {
			task.ShouldIgnore = true
			r.persist(task)
			lgr.Infow("file_ignored", "path", task.PathInRepo)
			continue
		}
		mode, ok := result.Modes[task.PathInRepo]
		if !ok {
			// Server gave no verdict for this path; the task goes back
			// to the classify queue unchanged.
			lgr.Warnw("classify_no_verdict", "path", task.PathInRepo)
			continue
		}
		task.UploadMode = mode
		r.persist(task)
	}
	classifiedFiles.Add(float64(len(tasks)))
	return nil
}

func (r *stageRunner) preupload(ctx context.Context, task *metadata.FileTask) error {
	if task.SHA256 == "" || task.UploadMode != metadata.UploadModeLFS {
		panic(fmt.Sprintf("preupload for unclassified file: %q", task.PathInRepo))
	}
	file, err := fingerprint.NewFile(task.LocalPath)
	if err != nil {
		return err
	}
	if err := r.client.PreuploadFile(ctx, file, task.SHA256); err != nil {
		return err
	}

	task.IsUploaded = true
	r.persist(task)
	return nil
}

// commit registers the whole batch or nothing: tasks are only marked
// committed after the server accepted the full addition list.
func (r *stageRunner) commit(ctx context.Context, tasks []*metadata.FileTask) error {
	additions := make([]hub.CommitAddition, 0, len(tasks))
	for _, task := range tasks {
		if task.SHA256 == "" || task.UploadMode == "" {
			panic(fmt.Sprintf("commit for unready file: %q", task.PathInRepo))
		}
		addition := hub.CommitAddition{
			Path: task.PathInRepo,
			Size: task.Size,
		}
		switch task.UploadMode {
		case metadata.UploadModeLFS:
			if !task.IsUploaded {
				panic(fmt.Sprintf("commit for lfs file never uploaded: %q", task.PathInRepo))
			}
			addition.SHA256 = task.SHA256
		case metadata.UploadModeRegular:
			content, err := os.ReadFile(task.LocalPath)
			if err != nil {
				return err
			}
			addition.Content = content
		}
		additions = append(additions, addition)
	}

	if err := r.client.CreateCommit(ctx, r.summary, additions); err != nil {
		commitErrors.Inc()
		return err
	}

	for _, task := range tasks {
		task.IsCommitted = true
		r.persist(task)
		committedBytes.Add(float64(task.Size))
	}
	commitCalls.Inc()
	committedFiles.Add(float64(len(tasks)))
	return nil
}

var (
	hashedFiles = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: metrics.Namespace,
		Subsystem: "engine",
		Name:      "hashed_files_total",
		Help:      "Number of files hashed (including digest cache hits).",
	})
	hashedBytes = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: metrics.Namespace,
		Subsystem: "engine",
		Name:      "hashed_bytes_total",
		Help:      "Total size of files hashed (including digest cache hits).",
	})
	classifiedFiles = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: metrics.Namespace,
		Subsystem: "engine",
		Name:      "classified_files_total",
		Help:      "Number of files that received an upload mode verdict.",
	})
	committedFiles = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: metrics.Namespace,
		Subsystem: "engine",
		Name:      "committed_files_total",
		Help:      "Number of files included in successful commits.",
	})
	committedBytes = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: metrics.Namespace,
		Subsystem: "engine",
		Name:      "committed_bytes_total",
		Help:      "Total size of files included in successful commits.",
	})
	commitCalls = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: metrics.Namespace,
		Subsystem: "engine",
		Name:      "commit_calls_total",
		Help:      "Number of successful commit calls.",
	})
	commitErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: metrics.Namespace,
		Subsystem: "engine",
		Name:      "commit_errors_total",
		Help:      "Number of failed commit calls.",
	})
	stageRetries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metrics.Namespace,
		Subsystem: "engine",
		Name:      "stage_retries_total",
		Help:      "Number of claims requeued after a recoverable stage error.",
	}, []string{"stage"})
)

func init() {
	prometheus.MustRegister(hashedFiles)
	prometheus.MustRegister(hashedBytes)
	prometheus.MustRegister(classifiedFiles)
	prometheus.MustRegister(committedFiles)
	prometheus.MustRegister(committedBytes)
	prometheus.MustRegister(commitCalls)
	prometheus.MustRegister(commitErrors)
	prometheus.MustRegister(stageRetries)
}
