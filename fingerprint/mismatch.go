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

import "fmt"

type Mismatch struct {
	name     string
	expected Fingerprint
	actual   Fingerprint
}

func (e Mismatch) Error() string {
	return fmt.Sprintf("file modified: name=%q expected=%+v actual=%+v", e.name, e.expected, e.actual)
}

func IsMismatch(err error) bool {
	switch err.(type) {
	case *Mismatch:
		return true
	case Mismatch:
		return true
	default:
		return false
	}
}
