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

package fingerprint

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestOpenDetectsModification(t *testing.T) {
	name := filepath.Join(t.TempDir(), "tracked")
	if err := os.WriteFile(name, []byte("original"), 0o644); err != nil {
		t.Fatal(err)
	}

	file, err := NewFile(name)
	if err != nil {
		t.Fatal(err)
	}
	if file.Len() != 8 {
		t.Fatalf("len %d", file.Len())
	}

	osFile, err := file.Open()
	if err != nil {
		t.Fatal(err)
	}
	if err := osFile.Close(); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(name, []byte("replaced content"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := file.Open(); !IsMismatch(err) {
		t.Fatalf("expected mismatch, got %v", err)
	}
	if err := file.Check(); !IsMismatch(err) {
		t.Fatalf("expected mismatch, got %v", err)
	}
}

func TestCacheEntryStaleness(t *testing.T) {
	name := filepath.Join(t.TempDir(), "cached")
	if err := os.WriteFile(name, []byte("payload source"), 0o644); err != nil {
		t.Fatal(err)
	}

	file, err := NewFile(name)
	if err != nil {
		t.Fatal(err)
	}

	entry := file.WrapCacheEntry([]byte("digest-bytes"))
	if got := file.UnwrapCacheEntry(file.CacheKey(), entry); string(got) != "digest-bytes" {
		t.Fatalf("unwrap: %q", got)
	}

	// Same inode, different mtime: the entry no longer applies.
	past := time.Now().Add(-time.Hour)
	if err := os.Chtimes(name, past, past); err != nil {
		t.Fatal(err)
	}
	current, err := NewFile(name)
	if err != nil {
		t.Fatal(err)
	}
	if got := current.UnwrapCacheEntry(current.CacheKey(), entry); got != nil {
		t.Fatalf("stale entry unwrapped: %q", got)
	}

	// A key from another file never matches.
	if got := file.UnwrapCacheEntry([]byte("wrong-key-0123456"), entry); got != nil {
		t.Fatalf("wrong key unwrapped: %q", got)
	}
}
