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

import "os"

func NewFileFromInfo(name string, info os.FileInfo) File {
	file := File{
		name: name,
	}
	file.fingerprint.fromInfo(info)
	return file
}

func NewFile(name string) (File, error) {
	info, err := os.Stat(name)
	if err != nil {
		return File{}, err
	}
	return NewFileFromInfo(name, info), nil
}

// File is a local file pinned to the stat identity it had when observed.
// Open and CheckFile fail with Mismatch if the file changed since.
type File struct {
	name        string
	fingerprint Fingerprint
}

func (f File) Name() string {
	return f.name
}

func (f File) Len() int64 {
	return f.fingerprint.size
}

func (f File) Check() error {
	info, err := os.Stat(f.name)
	if err != nil {
		return err
	}
	return f.check(info)
}

func (f File) CheckFile(file *os.File) error {
	info, err := file.Stat()
	if err != nil {
		return err
	}
	return f.check(info)
}

func (f File) check(info os.FileInfo) error {
	var current Fingerprint
	current.fromInfo(info)
	if f.fingerprint != current {
		return Mismatch{
			name:     f.name,
			expected: f.fingerprint,
			actual:   current,
		}
	}
	return nil
}

func (f File) Open() (*os.File, error) {
	file, err := os.Open(f.name)
	if err != nil {
		return nil, err
	}
	err = f.CheckFile(file)
	if err != nil {
		if closeErr := file.Close(); closeErr != nil {
			panic(closeErr)
		}
		return nil, err
	}
	return file, nil
}
