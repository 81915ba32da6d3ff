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

package digest

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/retailnext/largefolder/cache"
	"github.com/retailnext/largefolder/fingerprint"
)

func TestCacheRoundTrip(t *testing.T) {
	dir := t.TempDir()

	cachePath := filepath.Join(dir, "cache.db")
	testFilePath := filepath.Join(dir, "bigfile")

	storage, err := cache.Open(cachePath, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	defer func() {
		if closeErr := storage.Close(); closeErr != nil {
			panic(closeErr)
		}
	}()

	content := bytes.Repeat([]byte{0xa5}, 1024*1024)
	if err := os.WriteFile(testFilePath, content, 0o644); err != nil {
		panic(err)
	}
	expected := sha256.Sum256(content)

	c := NewCache(storage)

	safeFile, err := fingerprint.NewFile(testFilePath)
	if err != nil {
		t.Fatal(err)
	}
	if safeFile.Len() != int64(len(content)) {
		t.Fatalf("wrong len %d != %d", safeFile.Len(), len(content))
	}

	entry1, err := c.Get(context.Background(), safeFile)
	if err != nil {
		t.Fatal(err)
	}
	if entry1.SHA256Hex() != hex.EncodeToString(expected[:]) {
		t.Fatalf("wrong sha256 %s", entry1.SHA256Hex())
	}
	if entry1.Len() != int64(len(content)) {
		t.Fatalf("wrong entry len %d != %d", entry1.Len(), len(content))
	}
	if !bytes.Equal(entry1.Sample(), content[:SampleLen]) {
		t.Fatal("wrong sample")
	}

	if closeErr := storage.Close(); closeErr != nil {
		panic(closeErr)
	}

	storage, err = cache.Open(cachePath, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	c = NewCache(storage)

	entry2, err := c.Get(context.Background(), safeFile)
	if err != nil {
		t.Fatal(err)
	}
	if entry1.SHA256Hex() != entry2.SHA256Hex() || entry1.Len() != entry2.Len() {
		t.Fatalf("cache entry mismatch %+v %+v", entry1, entry2)
	}
	if !bytes.Equal(entry1.Sample(), entry2.Sample()) {
		t.Fatal("cache sample mismatch")
	}
}

func TestCacheStaleEntryInvalidated(t *testing.T) {
	dir := t.TempDir()

	cachePath := filepath.Join(dir, "cache.db")
	testFilePath := filepath.Join(dir, "smallfile")

	storage, err := cache.Open(cachePath, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	defer func() {
		if closeErr := storage.Close(); closeErr != nil {
			panic(closeErr)
		}
	}()
	c := NewCache(storage)

	if err := os.WriteFile(testFilePath, []byte("before"), 0o644); err != nil {
		panic(err)
	}
	fileBefore, err := fingerprint.NewFile(testFilePath)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.Get(context.Background(), fileBefore); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(testFilePath, []byte("after, and longer"), 0o644); err != nil {
		panic(err)
	}
	fileAfter, err := fingerprint.NewFile(testFilePath)
	if err != nil {
		t.Fatal(err)
	}
	entry, err := c.Get(context.Background(), fileAfter)
	if err != nil {
		t.Fatal(err)
	}
	expected := sha256.Sum256([]byte("after, and longer"))
	if entry.SHA256Hex() != hex.EncodeToString(expected[:]) {
		t.Fatalf("stale entry served: %s", entry.SHA256Hex())
	}
}
