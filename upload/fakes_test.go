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
	"strings"
	"sync"

	"github.com/retailnext/largefolder/fingerprint"
	"github.com/retailnext/largefolder/hub"
	"github.com/retailnext/largefolder/metadata"
)

// fakeClient classifies *.txt as regular and everything else as lfs, and
// records every call. Stages can be made to fail a set number of times.
type fakeClient struct {
	mu sync.Mutex

	ensureCalls    int
	classifyCalls  int
	preuploadCalls int
	commitCalls    int

	failClassify  int
	failPreupload int
	failCommit    int

	ignorePaths map[string]struct{}

	commitBatches [][]string
	preuploaded   []string

	commitsInFlight    int
	maxCommitsInFlight int
}

var _ hub.Client = (*fakeClient)(nil)

func (f *fakeClient) EnsureRepo(ctx context.Context, private bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ensureCalls++
	return nil
}

func (f *fakeClient) ClassifyUploadModes(ctx context.Context, files []hub.FileInfo) (hub.ClassifyResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.classifyCalls++
	if f.failClassify > 0 {
		f.failClassify--
		return hub.ClassifyResult{}, fmt.Errorf("fake classify failure")
	}

	result := hub.ClassifyResult{
		Modes:   make(map[string]metadata.UploadMode),
		Ignored: make(map[string]struct{}),
	}
	for _, file := range files {
		if _, ignored := f.ignorePaths[file.Path]; ignored {
			result.Ignored[file.Path] = struct{}{}
			continue
		}
		if strings.HasSuffix(file.Path, ".txt") {
			result.Modes[file.Path] = metadata.UploadModeRegular
		} else {
			result.Modes[file.Path] = metadata.UploadModeLFS
		}
	}
	return result, nil
}

func (f *fakeClient) PreuploadFile(ctx context.Context, file fingerprint.File, sha256Hex string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.preuploadCalls++
	if f.failPreupload > 0 {
		f.failPreupload--
		return fmt.Errorf("fake preupload failure")
	}
	f.preuploaded = append(f.preuploaded, sha256Hex)
	return nil
}

func (f *fakeClient) CreateCommit(ctx context.Context, summary string, additions []hub.CommitAddition) error {
	f.mu.Lock()
	f.commitCalls++
	f.commitsInFlight++
	if f.commitsInFlight > f.maxCommitsInFlight {
		f.maxCommitsInFlight = f.commitsInFlight
	}
	fail := false
	if f.failCommit > 0 {
		f.failCommit--
		fail = true
	}
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.commitsInFlight--
		f.mu.Unlock()
	}()

	if fail {
		return fmt.Errorf("fake commit failure")
	}

	var batch []string
	for _, addition := range additions {
		if addition.Content == nil && addition.SHA256 == "" {
			return fmt.Errorf("addition %q has no content and no sha256", addition.Path)
		}
		batch = append(batch, addition.Path)
	}
	f.mu.Lock()
	f.commitBatches = append(f.commitBatches, batch)
	f.mu.Unlock()
	return nil
}

func (f *fakeClient) stats() (classify, preupload, commit int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.classifyCalls, f.preuploadCalls, f.commitCalls
}
