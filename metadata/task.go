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

// Package metadata tracks per-file upload pipeline progress and persists
// it as sidecar records so an interrupted run can resume without redoing
// completed work.
package metadata

// UploadMode is the server's verdict on how a file's content reaches the
// repository.
type UploadMode string

const (
	// UploadModeRegular files travel inline in the commit payload.
	UploadModeRegular UploadMode = "regular"
	// UploadModeLFS files are pre-uploaded out of band and committed by
	// content address.
	UploadModeLFS UploadMode = "lfs"
)

// FileTask is the pipeline state for one candidate local file. A task is
// only ever mutated by the stage handler currently holding it.
type FileTask struct {
	// PathInRepo is the destination path, repo-relative, forward-slash
	// separated.
	PathInRepo string
	// LocalPath is the absolute source path on disk.
	LocalPath string
	// Size and MTimeNS are the stat identity captured when the file was
	// enumerated. A persisted record for a different identity is stale.
	Size    int64
	MTimeNS int64

	// SHA256 is the hex content address, empty until the hash stage ran.
	SHA256 string
	// Sample holds up to the first 512 bytes, captured with the hash.
	Sample []byte
	// UploadMode is empty until the classify stage ran.
	UploadMode UploadMode

	ShouldIgnore bool
	IsUploaded   bool
	IsCommitted  bool
}

// Terminal reports whether the task needs no further processing.
func (t *FileTask) Terminal() bool {
	return t.IsCommitted || t.ShouldIgnore
}

func (t *FileTask) NeedsHash() bool {
	return !t.Terminal() && t.SHA256 == ""
}

func (t *FileTask) NeedsClassify() bool {
	return !t.Terminal() && t.SHA256 != "" && t.UploadMode == ""
}

func (t *FileTask) NeedsPreupload() bool {
	return !t.Terminal() && t.UploadMode == UploadModeLFS && !t.IsUploaded
}

func (t *FileTask) NeedsCommit() bool {
	if t.Terminal() || t.SHA256 == "" || t.UploadMode == "" {
		return false
	}
	return t.UploadMode == UploadModeRegular || t.IsUploaded
}
