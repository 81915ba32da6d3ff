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

package metadata

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"github.com/gofrs/flock"
	"github.com/retailnext/writefile"
	"go.uber.org/zap"
)

// StateDirName is the hidden directory under the uploaded folder holding
// sidecar records, the digest cache, and the instance lock.
const StateDirName = ".largefolder"

const sidecarSuffix = ".meta.json"

var ErrLocked = fmt.Errorf("state directory is locked by another process")

type sidecarRecord struct {
	Size    int64  `json:"size"`
	MTimeNS int64  `json:"mtime_ns"`
	SHA256  string `json:"sha256,omitempty"`
	Sample  []byte `json:"sample,omitempty"`
	Mode    string `json:"upload_mode,omitempty"`
	Ignored bool   `json:"ignored,omitempty"`

	Uploaded  bool `json:"uploaded,omitempty"`
	Committed bool `json:"committed,omitempty"`
}

// Store persists one sidecar record per file under the folder's hidden
// state directory. An advisory flock taken at Open prevents two processes
// from working the same folder; the lock dies with the process, so a
// leftover lock file from a previous run is harmless.
//
// Save is safe to call concurrently for different files. A given task is
// only ever saved by the worker holding it, so per-file serialization is
// not needed here; writefile's temp+rename keeps a crash from leaving a
// half-written record.
type Store struct {
	folder string
	dir    string
	lock   *flock.Flock
	target writefile.Config
}

func Open(folder string) (*Store, error) {
	dir := filepath.Join(folder, StateDirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	lock := flock.New(filepath.Join(dir, "lock"))
	acquired, err := lock.TryLock()
	if err != nil {
		return nil, err
	}
	if !acquired {
		return nil, ErrLocked
	}
	return &Store{
		folder: folder,
		dir:    dir,
		lock:   lock,
		target: writefile.Config{
			Directory:     filepath.Join(dir, "files"),
			DirectoryMode: 0o755,
			FileMode:      0o644,
		},
	}, nil
}

func (s *Store) Close() error {
	return s.lock.Unlock()
}

// CacheFile is where the digest cache database lives for this folder.
func (s *Store) CacheFile() string {
	return filepath.Join(s.dir, "digests.db")
}

func (s *Store) sidecarName(pathInRepo string) string {
	return filepath.FromSlash(pathInRepo) + sidecarSuffix
}

// Load fills in any persisted pipeline progress for a task whose identity
// fields (PathInRepo, LocalPath, Size, MTimeNS) are already set. A missing,
// corrupt, or stale record leaves the task at the start of the pipeline.
func (s *Store) Load(task *FileTask) {
	lgr := zap.S()

	raw, err := os.ReadFile(filepath.Join(s.target.Directory, s.sidecarName(task.PathInRepo)))
	if err != nil {
		if !os.IsNotExist(err) {
			lgr.Warnw("sidecar_read_error", "path", task.PathInRepo, "err", err)
		}
		return
	}

	var record sidecarRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		lgr.Warnw("sidecar_corrupt", "path", task.PathInRepo, "err", err)
		return
	}
	if record.Size != task.Size || record.MTimeNS != task.MTimeNS {
		lgr.Debugw("sidecar_stale", "path", task.PathInRepo)
		return
	}

	task.SHA256 = record.SHA256
	task.Sample = record.Sample
	task.UploadMode = UploadMode(record.Mode)
	task.ShouldIgnore = record.Ignored
	task.IsUploaded = record.Uploaded
	task.IsCommitted = record.Committed
}

// Save persists the task's current state, replacing any previous record
// atomically.
func (s *Store) Save(task *FileTask) error {
	record := sidecarRecord{
		Size:      task.Size,
		MTimeNS:   task.MTimeNS,
		SHA256:    task.SHA256,
		Sample:    task.Sample,
		Mode:      string(task.UploadMode),
		Ignored:   task.ShouldIgnore,
		Uploaded:  task.IsUploaded,
		Committed: task.IsCommitted,
	}
	raw, err := json.Marshal(&record)
	if err != nil {
		panic(err)
	}
	name := s.sidecarName(task.PathInRepo)
	if dir := filepath.Dir(name); dir != "." {
		if err := os.MkdirAll(filepath.Join(s.target.Directory, dir), 0o755); err != nil {
			return err
		}
	}
	return s.target.WriteFile(name, func(file *os.File) error {
		_, writeErr := file.Write(raw)
		return writeErr
	})
}

// IsStatePath reports whether a repo-relative path is inside the state
// directory and must never be uploaded.
func IsStatePath(pathInRepo string) bool {
	return pathInRepo == StateDirName || strings.HasPrefix(pathInRepo, StateDirName+"/")
}
