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

// Package hub talks to the remote content-addressed repository host. The
// upload engine consumes the Client interface; the HTTP implementation
// lives alongside it. Retry, backoff, and rate limiting are deliberately
// absent: callers re-submit failed operations, and every operation here is
// idempotent on the server side.
package hub

import (
	"context"
	"fmt"

	"github.com/retailnext/largefolder/fingerprint"
	"github.com/retailnext/largefolder/metadata"
)

type RepoType string

const (
	RepoTypeModel   RepoType = "model"
	RepoTypeDataset RepoType = "dataset"
	RepoTypeSpace   RepoType = "space"
)

func ParseRepoType(s string) (RepoType, error) {
	switch RepoType(s) {
	case RepoTypeModel, RepoTypeDataset, RepoTypeSpace:
		return RepoType(s), nil
	}
	return "", fmt.Errorf("invalid repo type %q", s)
}

// FileInfo describes one candidate file in a classification request.
type FileInfo struct {
	Path   string
	Size   int64
	SHA256 string
	// Sample holds up to the first 512 bytes of content; the server uses
	// it to distinguish text from binary.
	Sample []byte
}

// ClassifyResult is the server's per-file verdict. A path present in
// Ignored is redundant on the server and must not be uploaded or
// committed; every other requested path appears in Modes.
type ClassifyResult struct {
	Modes   map[string]metadata.UploadMode
	Ignored map[string]struct{}
}

// CommitAddition is one file registered by a commit. Regular files carry
// inline Content; LFS files carry only the SHA256 content address of a
// blob that was pre-uploaded.
type CommitAddition struct {
	Path    string
	Size    int64
	SHA256  string
	Content []byte
}

// Client is the remote host boundary consumed by the upload engine.
type Client interface {
	// EnsureRepo creates the destination repository if missing.
	// "Already exists" is success.
	EnsureRepo(ctx context.Context, private bool) error

	// ClassifyUploadModes asks the server how each file should travel.
	// The server accepts at most 256 entries per call; the engine keeps
	// its batches well under that.
	ClassifyUploadModes(ctx context.Context, files []FileInfo) (ClassifyResult, error)

	// PreuploadFile pushes one large blob to out-of-band storage so a
	// later commit can reference it by content address. Re-uploading an
	// already-stored blob is a no-op on the server.
	PreuploadFile(ctx context.Context, file fingerprint.File, sha256Hex string) error

	// CreateCommit atomically registers all additions against the
	// configured revision. There are no partial commits: an error means
	// nothing was registered.
	CreateCommit(ctx context.Context, summary string, additions []CommitAddition) error
}
