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

// Package upload is the resilient large-folder upload engine: it
// decomposes per-file work into hash, classify, pre-upload, and commit
// stages, runs them across a bounded worker pool, and persists per-file
// progress so a killed run resumes where it left off.
package upload

import (
	"sync"
	"time"

	"github.com/retailnext/largefolder/metadata"
)

type Stage int

const (
	StageHash Stage = iota
	StageClassify
	StagePreupload
	StageCommit
	numStages
)

func (s Stage) String() string {
	switch s {
	case StageHash:
		return "hash"
	case StageClassify:
		return "classify"
	case StagePreupload:
		return "preupload"
	case StageCommit:
		return "commit"
	}
	return "invalid"
}

const (
	commitBatchSize   = 25
	classifyBatchSize = 50
	classifyEagerMin  = 10
	commitStaleAfter  = 5 * time.Minute
	idleWait          = 10 * time.Second
)

// Claim is a batch of tasks a worker owns until it calls FinishClaim.
type Claim struct {
	Stage Stage
	Tasks []*metadata.FileTask
}

// WorkQueueSet is the shared state of the scheduler: four FIFO queues,
// per-stage active worker counts, and the last commit attempt time, all
// guarded by one mutex. A task is in at most one queue at a time; while a
// worker holds a claim the task is in no queue at all.
type WorkQueueSet struct {
	mu     sync.Mutex
	queues [numStages][]*metadata.FileTask
	active [numStages]int

	lastCommitAttempt time.Time

	// serializeUploads keeps pre-upload single-flight even in the
	// fallback rule, for transfer backends that already parallelize
	// internally.
	serializeUploads bool

	tracked        int
	remaining      int
	committed      int
	ignored        int
	totalBytes     int64
	committedBytes int64
}

func NewWorkQueueSet(serializeUploads bool) *WorkQueueSet {
	return &WorkQueueSet{
		serializeUploads: serializeUploads,
	}
}

// Add seeds a task into the queue its state calls for. Terminal tasks are
// only counted.
func (q *WorkQueueSet) Add(task *metadata.FileTask) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.tracked++
	q.totalBytes += task.Size
	if task.Terminal() {
		q.noteTerminal(task)
		return
	}
	q.remaining++
	q.enqueue(task)
}

// enqueue routes a non-terminal task per the queue membership invariants.
// Callers hold q.mu.
func (q *WorkQueueSet) enqueue(task *metadata.FileTask) {
	switch {
	case task.NeedsHash():
		q.queues[StageHash] = append(q.queues[StageHash], task)
	case task.NeedsClassify():
		q.queues[StageClassify] = append(q.queues[StageClassify], task)
	case task.NeedsPreupload():
		q.queues[StagePreupload] = append(q.queues[StagePreupload], task)
	case task.NeedsCommit():
		q.queues[StageCommit] = append(q.queues[StageCommit], task)
	default:
		panic("task fits no queue")
	}
}

func (q *WorkQueueSet) noteTerminal(task *metadata.FileTask) {
	if task.IsCommitted {
		q.committed++
		q.committedBytes += task.Size
	} else {
		q.ignored++
	}
}

// ClaimNext picks the next batch of work by the fixed priority list.
// It returns (nil, true) when every task is terminal and (nil, false)
// when there is work somewhere but nothing claimable right now; the
// caller should sleep idleWait and re-evaluate.
func (q *WorkQueueSet) ClaimNext() (*Claim, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	// 1. Commit, if it has been too long since the last commit attempt.
	if q.active[StageCommit] == 0 && len(q.queues[StageCommit]) > 0 &&
		time.Since(q.lastCommitAttempt) > commitStaleAfter {
		return q.claim(StageCommit, commitBatchSize), false
	}
	// 2. Commit, if a full batch is waiting.
	if q.active[StageCommit] == 0 && len(q.queues[StageCommit]) >= commitBatchSize {
		return q.claim(StageCommit, commitBatchSize), false
	}
	// 3. Classify, if enough items are waiting to make a call worthwhile.
	if len(q.queues[StageClassify]) >= classifyEagerMin {
		return q.claim(StageClassify, classifyBatchSize), false
	}
	// 4. Pre-upload, single-flight.
	if len(q.queues[StagePreupload]) > 0 && q.active[StagePreupload] == 0 {
		return q.claim(StagePreupload, 1), false
	}
	// 5. Hash, single-flight.
	if len(q.queues[StageHash]) > 0 && q.active[StageHash] == 0 {
		return q.claim(StageHash, 1), false
	}
	// 6. Classify, single-flight.
	if len(q.queues[StageClassify]) > 0 && q.active[StageClassify] == 0 {
		return q.claim(StageClassify, classifyBatchSize), false
	}
	// 7. Pre-upload fallback; concurrent transfers unless serialized.
	if len(q.queues[StagePreupload]) > 0 && (!q.serializeUploads || q.active[StagePreupload] == 0) {
		return q.claim(StagePreupload, 1), false
	}
	// 8. Hash fallback; concurrent hashing allowed.
	if len(q.queues[StageHash]) > 0 {
		return q.claim(StageHash, 1), false
	}
	// 9. Classify fallback.
	if len(q.queues[StageClassify]) > 0 {
		return q.claim(StageClassify, classifyBatchSize), false
	}
	// 10. Commit fallback, ignoring batch size and staleness thresholds.
	if len(q.queues[StageCommit]) > 0 && q.active[StageCommit] == 0 {
		return q.claim(StageCommit, commitBatchSize), false
	}
	// 11. Nothing queued and nothing held by a worker: all done.
	if q.remaining == 0 {
		return nil, true
	}
	// 12. Work exists but is not claimable right now.
	return nil, false
}

// claim dequeues up to max items and marks the stage active. Callers hold
// q.mu.
func (q *WorkQueueSet) claim(stage Stage, max int) *Claim {
	n := len(q.queues[stage])
	if n > max {
		n = max
	}
	if n == 0 {
		panic("claim on empty queue")
	}
	tasks := make([]*metadata.FileTask, n)
	copy(tasks, q.queues[stage][:n])
	q.queues[stage] = q.queues[stage][n:]
	q.active[stage]++
	if stage == StageCommit {
		q.lastCommitAttempt = time.Now()
	}
	return &Claim{Stage: stage, Tasks: tasks}
}

// FinishClaim releases a claim and routes every task onward: tasks whose
// state advanced go to their next queue, tasks a failed handler left
// untouched go back where they came from, and terminal tasks leave the
// scheduler for good.
func (q *WorkQueueSet) FinishClaim(claim *Claim) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.active[claim.Stage] <= 0 {
		panic("release without claim")
	}
	q.active[claim.Stage]--
	for _, task := range claim.Tasks {
		if task.Terminal() {
			q.remaining--
			q.noteTerminal(task)
			continue
		}
		q.enqueue(task)
	}
}

// IsDone reports whether every tracked task is terminal.
func (q *WorkQueueSet) IsDone() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.remaining == 0
}
