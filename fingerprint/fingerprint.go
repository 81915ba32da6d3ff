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

// Package fingerprint identifies local files by their stat identity so
// that work done against a file can be invalidated if the file changes
// between observations.
package fingerprint

import (
	"os"
	"syscall"
)

type Fingerprint struct {
	device uint64
	inode  uint64
	size   int64
	mtime  syscall.Timespec
}

func (fp *Fingerprint) fromInfo(info os.FileInfo) {
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		panic("fingerprint: unsupported FileInfo.Sys()")
	}
	fp.device = uint64(stat.Dev)
	fp.inode = stat.Ino
	fp.size = stat.Size
	fp.mtime = stat.Mtim
}

func (fp Fingerprint) Size() int64 {
	return fp.size
}
