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
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/go-test/deep"
	"github.com/retailnext/largefolder/metadata"
)

func TestFilterMatch(t *testing.T) {
	cases := []struct {
		filter   Filter
		path     string
		expected bool
	}{
		{Filter{}, "anything/at/all.bin", true},
		{Filter{Include: []string{"*.bin"}}, "nested/model.bin", true},
		{Filter{Include: []string{"*.bin"}}, "nested/readme.md", false},
		{Filter{Include: []string{"data/*"}}, "data/rows.csv", true},
		{Filter{Exclude: []string{"*.log"}}, "run/output.log", false},
		{Filter{Include: []string{"*.csv"}, Exclude: []string{"data/*"}}, "data/rows.csv", false},
	}
	for _, c := range cases {
		if c.filter.Match(c.path) != c.expected {
			t.Fatalf("filter %+v path %q expected %v", c.filter, c.path, c.expected)
		}
	}
}

func TestScanFolder(t *testing.T) {
	folder := t.TempDir()

	files := map[string][]byte{
		"top.txt":               []byte("top"),
		"nested/deep/model.bin": []byte("weights"),
		"nested/other.txt":      []byte("other"),
	}
	for name, content := range files {
		full := filepath.Join(folder, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(full, content, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	// State from a previous run must never become a candidate.
	stateDir := filepath.Join(folder, metadata.StateDirName, "files")
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(stateDir, "top.txt.meta.json"), []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}

	tasks, err := scanFolder(folder, Filter{})
	if err != nil {
		t.Fatal(err)
	}

	var paths []string
	for _, task := range tasks {
		paths = append(paths, task.PathInRepo)
		if task.Size != int64(len(files[task.PathInRepo])) {
			t.Fatalf("bad size for %q", task.PathInRepo)
		}
		if task.MTimeNS == 0 {
			t.Fatalf("missing mtime for %q", task.PathInRepo)
		}
	}
	sort.Strings(paths)
	expected := []string{"nested/deep/model.bin", "nested/other.txt", "top.txt"}
	if diff := deep.Equal(paths, expected); diff != nil {
		t.Fatal(diff)
	}
}

func TestScanFolderWithFilter(t *testing.T) {
	folder := t.TempDir()
	for _, name := range []string{"keep.bin", "drop.txt"} {
		if err := os.WriteFile(filepath.Join(folder, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	tasks, err := scanFolder(folder, Filter{Include: []string{"*.bin"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(tasks) != 1 || tasks[0].PathInRepo != "keep.bin" {
		t.Fatalf("tasks: %+v", tasks)
	}
}
