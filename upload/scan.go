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
	"io/fs"
	"path"
	"path/filepath"

	"github.com/retailnext/largefolder/metadata"
	"go.uber.org/zap"
)

// Filter selects candidate files by repo-relative path. Patterns use
// path.Match syntax and are tried against both the full relative path and
// the base name, so "*.bin" matches nested files. Empty Include means
// everything.
type Filter struct {
	Include []string
	Exclude []string
}

func (f Filter) Match(pathInRepo string) bool {
	if matchAny(f.Exclude, pathInRepo) {
		return false
	}
	if len(f.Include) == 0 {
		return true
	}
	return matchAny(f.Include, pathInRepo)
}

func matchAny(patterns []string, pathInRepo string) bool {
	base := path.Base(pathInRepo)
	for _, pattern := range patterns {
		if ok, err := path.Match(pattern, pathInRepo); err == nil && ok {
			return true
		}
		if ok, err := path.Match(pattern, base); err == nil && ok {
			return true
		}
	}
	return false
}

// scanFolder enumerates candidate files under folder, applying the filter
// and always skipping the hidden state directory. Irregular files
// (symlinks, sockets) are logged and skipped.
func scanFolder(folder string, filter Filter) ([]*metadata.FileTask, error) {
	lgr := zap.S()

	var tasks []*metadata.FileTask
	walkErr := filepath.WalkDir(folder, func(fullPath string, entry fs.DirEntry, err error) error {
		if err != nil {
			lgr.Errorw("walk_error", "path", fullPath, "err", err)
			return err
		}

		relPath, relErr := filepath.Rel(folder, fullPath)
		if relErr != nil {
			panic(relErr)
		}
		pathInRepo := filepath.ToSlash(relPath)

		if entry.IsDir() {
			if metadata.IsStatePath(pathInRepo) {
				return filepath.SkipDir
			}
			return nil
		}
		if metadata.IsStatePath(pathInRepo) {
			return nil
		}
		if !entry.Type().IsRegular() {
			lgr.Debugw("skipping_irregular_file", "path", pathInRepo)
			return nil
		}
		if !filter.Match(pathInRepo) {
			return nil
		}

		info, infoErr := entry.Info()
		if infoErr != nil {
			return infoErr
		}
		tasks = append(tasks, &metadata.FileTask{
			PathInRepo: pathInRepo,
			LocalPath:  fullPath,
			Size:       info.Size(),
			MTimeNS:    info.ModTime().UnixNano(),
		})
		return nil
	})
	if walkErr != nil {
		return nil, walkErr
	}
	return tasks, nil
}
