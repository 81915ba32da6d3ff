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
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/retailnext/largefolder/metrics"
	"go.uber.org/zap"
)

// runWorker is the scheduler loop; every worker in the pool runs it
// against the same WorkQueueSet until ClaimNext reports that all tasks
// are terminal. Recoverable stage errors only requeue the claimed batch
// (FinishClaim routes untouched tasks back where they came from, with no
// backoff beyond the idle sleep); interruption aborts the loop at once.
func runWorker(ctx context.Context, id int, q *WorkQueueSet, runner *stageRunner, sleep time.Duration) error {
	lgr := zap.S().With("worker", id)
	activeWorkers.Inc()
	defer activeWorkers.Dec()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		claim, done := q.ClaimNext()
		if done {
			lgr.Debugw("worker_done")
			return nil
		}
		if claim == nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(sleep):
			}
			continue
		}

		err := runner.run(ctx, claim)
		q.FinishClaim(claim)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			stageRetries.WithLabelValues(claim.Stage.String()).Inc()
			lgr.Warnw("stage_error", "stage", claim.Stage.String(), "files", len(claim.Tasks), "err", err)
		}
	}
}

var activeWorkers = prometheus.NewGauge(prometheus.GaugeOpts{
	Namespace: metrics.Namespace,
	Subsystem: "engine",
	Name:      "active_workers",
	Help:      "Number of workers currently running the scheduler loop.",
})

func init() {
	prometheus.MustRegister(activeWorkers)
}
