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
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// optionsFile supplies defaults for flags that were not set on the
// command line; explicit flags always win.
type optionsFile struct {
	Include          []string `yaml:"include"`
	Exclude          []string `yaml:"exclude"`
	NumWorkers       int      `yaml:"num_workers"`
	Revision         string   `yaml:"revision"`
	SerializeUploads bool     `yaml:"serialize_uploads"`
}

func loadOptionsFile(path string) (optionsFile, error) {
	var opts optionsFile
	if path == "" {
		return opts, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return opts, err
	}
	if err := yaml.Unmarshal(raw, &opts); err != nil {
		return opts, fmt.Errorf("options file %q: %w", path, err)
	}
	return opts, nil
}
