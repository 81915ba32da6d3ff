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
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/retailnext/largefolder/metadata"
)

func testOptions(folder string) Options {
	return Options{
		Folder:         folder,
		NumWorkers:     3,
		ReportInterval: time.Hour,
		idleSleep:      10 * time.Millisecond,
	}
}

func TestUploadScenario(t *testing.T) {
	folder := t.TempDir()

	// a.bin and c.bin share content; b.txt is small and travels inline.
	blob := bytes.Repeat([]byte{0x42}, 1<<20)
	if err := os.WriteFile(filepath.Join(folder, "a.bin"), blob, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(folder, "b.txt"), []byte("hello\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(folder, "c.bin"), blob, 0o644); err != nil {
		t.Fatal(err)
	}

	client := &fakeClient{}
	if err := Do(context.Background(), client, testOptions(folder)); err != nil {
		t.Fatal(err)
	}

	if client.ensureCalls != 1 {
		t.Fatalf("ensure calls %d", client.ensureCalls)
	}
	if len(client.preuploaded) != 2 {
		t.Fatalf("preuploaded %v", client.preuploaded)
	}
	// Duplicate content hashes identically; dedup is the server's business.
	if client.preuploaded[0] != client.preuploaded[1] {
		t.Fatalf("sha mismatch for identical content: %v", client.preuploaded)
	}

	var committed int
	for _, batch := range client.commitBatches {
		committed += len(batch)
	}
	if committed != 3 {
		t.Fatalf("committed %d files in batches %v", committed, client.commitBatches)
	}
	if len(client.commitBatches) > 3 {
		t.Fatalf("too many commit calls: %v", client.commitBatches)
	}
	if client.maxCommitsInFlight > 1 {
		t.Fatalf("%d commits in flight", client.maxCommitsInFlight)
	}

	// Every task must be terminal on disk too.
	store, err := metadata.Open(folder)
	if err != nil {
		t.Fatal(err)
	}
	defer func() {
		_ = store.Close()
	}()
	for _, name := range []string{"a.bin", "b.txt", "c.bin"} {
		info, err := os.Stat(filepath.Join(folder, name))
		if err != nil {
			t.Fatal(err)
		}
		task := &metadata.FileTask{
			PathInRepo: name,
			LocalPath:  filepath.Join(folder, name),
			Size:       info.Size(),
			MTimeNS:    info.ModTime().UnixNano(),
		}
		store.Load(task)
		if !task.IsCommitted {
			t.Fatalf("%s not committed on disk: %+v", name, task)
		}
	}
}

func TestIdempotentResume(t *testing.T) {
	folder := t.TempDir()
	for i := 0; i < 8; i++ {
		name := filepath.Join(folder, "part", string(rune('a'+i))+".txt")
		if err := os.MkdirAll(filepath.Dir(name), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(name, []byte("content"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	first := &fakeClient{}
	if err := Do(context.Background(), first, testOptions(folder)); err != nil {
		t.Fatal(err)
	}
	classify, preupload, commit := first.stats()
	if classify == 0 || commit == 0 {
		t.Fatalf("first run made no calls: %d %d %d", classify, preupload, commit)
	}

	// A restarted run with the same sidecar metadata must touch the
	// network only to ensure the repo exists.
	second := &fakeClient{}
	if err := Do(context.Background(), second, testOptions(folder)); err != nil {
		t.Fatal(err)
	}
	classify, preupload, commit = second.stats()
	if classify != 0 || preupload != 0 || commit != 0 {
		t.Fatalf("resumed run made per-file calls: %d %d %d", classify, preupload, commit)
	}
}

func TestResumeAfterPartialRun(t *testing.T) {
	folder := t.TempDir()
	if err := os.WriteFile(filepath.Join(folder, "x.txt"), []byte("xxx"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(folder, "y.bin"), bytes.Repeat([]byte{7}, 2048), 0o644); err != nil {
		t.Fatal(err)
	}

	// Simulate a previous run that hashed and classified y.bin but was
	// killed before pre-uploading it.
	info, err := os.Stat(filepath.Join(folder, "y.bin"))
	if err != nil {
		t.Fatal(err)
	}
	store, err := metadata.Open(folder)
	if err != nil {
		t.Fatal(err)
	}
	task := &metadata.FileTask{
		PathInRepo: "y.bin",
		LocalPath:  filepath.Join(folder, "y.bin"),
		Size:       info.Size(),
		MTimeNS:    info.ModTime().UnixNano(),
		SHA256:     "9999999999999999999999999999999999999999999999999999999999999999",
		UploadMode: metadata.UploadModeLFS,
	}
	if err := store.Save(task); err != nil {
		t.Fatal(err)
	}
	if err := store.Close(); err != nil {
		t.Fatal(err)
	}

	client := &fakeClient{}
	if err := Do(context.Background(), client, testOptions(folder)); err != nil {
		t.Fatal(err)
	}

	// y.bin resumed at pre-upload with its persisted hash.
	found := false
	for _, sha := range client.preuploaded {
		if sha == task.SHA256 {
			found = true
		}
	}
	if !found {
		t.Fatalf("y.bin not preuploaded with persisted hash: %v", client.preuploaded)
	}
}

func TestSetupErrors(t *testing.T) {
	client := &fakeClient{}

	err := Do(context.Background(), client, testOptions(filepath.Join(t.TempDir(), "missing")))
	if err == nil {
		t.Fatal("expected error for missing folder")
	}

	file := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	err = Do(context.Background(), client, testOptions(file))
	if err == nil {
		t.Fatal("expected error for non-directory")
	}

	if client.ensureCalls != 0 {
		t.Fatalf("setup errors reached the network: %d", client.ensureCalls)
	}
}

func TestCancelledRun(t *testing.T) {
	folder := t.TempDir()
	if err := os.WriteFile(filepath.Join(folder, "a.txt"), []byte("a"), 0o644); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := &fakeClient{}
	err := Do(ctx, client, testOptions(folder))
	if err != context.Canceled {
		t.Fatalf("err = %v", err)
	}
}
