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
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// Snapshot is a consistent view of scheduler progress, taken under the
// queue mutex.
type Snapshot struct {
	Queued [numStages]int
	Active [numStages]int

	Tracked        int
	Committed      int
	Ignored        int
	TotalBytes     int64
	CommittedBytes int64
}

func (q *WorkQueueSet) Snapshot() Snapshot {
	q.mu.Lock()
	defer q.mu.Unlock()

	var s Snapshot
	for stage := StageHash; stage < numStages; stage++ {
		s.Queued[stage] = len(q.queues[stage])
		s.Active[stage] = q.active[stage]
	}
	s.Tracked = q.tracked
	s.Committed = q.committed
	s.Ignored = q.ignored
	s.TotalBytes = q.totalBytes
	s.CommittedBytes = q.committedBytes
	return s
}

func (s Snapshot) Done() int {
	return s.Committed + s.Ignored
}

// Render formats the snapshot as a human-readable progress table.
func (s Snapshot) Render() string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"stage", "queued", "in progress"})
	for stage := StageHash; stage < numStages; stage++ {
		tw.AppendRow(table.Row{stage.String(), s.Queued[stage], s.Active[stage]})
	}
	tw.AppendFooter(table.Row{
		fmt.Sprintf("%d/%d files done (%d ignored)", s.Done(), s.Tracked, s.Ignored),
		fmt.Sprintf("%s/%s", formatBytes(s.CommittedBytes), formatBytes(s.TotalBytes)),
		"",
	})
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
	})
	return tw.Render()
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
