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
	"github.com/alecthomas/kingpin/v2"
	"github.com/retailnext/largefolder/hub"
)

var (
	Cmd = kingpin.Command("upload", "Upload a local folder to a repository, resumably.")

	repoIDArg = Cmd.Arg("repo-id", "Destination repository (namespace/name).").Required().String()
	folderArg = Cmd.Arg("path", "Local folder to upload.").Required().String()

	repoTypeFlag       = Cmd.Flag("repo-type", "Repository type. [model, dataset, or space]").Default("model").String()
	revisionFlag       = Cmd.Flag("revision", "Branch to commit to.").Default("main").String()
	privateFlag        = Cmd.Flag("private", "Create the repository as private if it does not exist.").Bool()
	includeFlag        = Cmd.Flag("include", "Only upload paths matching this glob. Repeatable.").Strings()
	excludeFlag        = Cmd.Flag("exclude", "Skip paths matching this glob. Repeatable.").Strings()
	numWorkersFlag     = Cmd.Flag("num-workers", "Worker threads. Defaults to NumCPU-2, minimum 2.").Int()
	serializeFlag      = Cmd.Flag("serialize-uploads", "Never run two blob pre-uploads concurrently.").Bool()
	commitSummaryFlag  = Cmd.Flag("commit-summary", "Summary line for created commits.").String()
	reportIntervalFlag = Cmd.Flag("report-interval", "How often to print a progress table.").Default("1m").Duration()
	optionsFileFlag    = Cmd.Flag("options-file", "YAML file providing defaults for upload flags.").String()

	endpointFlag = Cmd.Flag("endpoint", "Repository host base URL.").Envar("LARGEFOLDER_ENDPOINT").Required().String()
	tokenFlag    = Cmd.Flag("token", "Bearer token for the repository host.").Envar("LARGEFOLDER_TOKEN").String()
)

// FromFlags resolves the parsed command line (plus any options file) into
// driver options and a hub client config. Errors here are setup errors:
// the caller should exit non-zero without starting any work.
func FromFlags() (Options, hub.Config, error) {
	fileOpts, err := loadOptionsFile(*optionsFileFlag)
	if err != nil {
		return Options{}, hub.Config{}, err
	}

	repoType, err := hub.ParseRepoType(*repoTypeFlag)
	if err != nil {
		return Options{}, hub.Config{}, err
	}

	opts := Options{
		Folder:  *folderArg,
		Private: *privateFlag,
		Filter: Filter{
			Include: firstNonEmpty(*includeFlag, fileOpts.Include),
			Exclude: firstNonEmpty(*excludeFlag, fileOpts.Exclude),
		},
		NumWorkers:       *numWorkersFlag,
		SerializeUploads: *serializeFlag || fileOpts.SerializeUploads,
		ReportInterval:   *reportIntervalFlag,
		CommitSummary:    *commitSummaryFlag,
	}
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = fileOpts.NumWorkers
	}

	revision := *revisionFlag
	if revision == "main" && fileOpts.Revision != "" {
		revision = fileOpts.Revision
	}

	cfg := hub.Config{
		Endpoint: *endpointFlag,
		RepoID:   *repoIDArg,
		RepoType: repoType,
		Revision: revision,
		Token:    *tokenFlag,
	}
	return opts, cfg, nil
}

func firstNonEmpty(a, b []string) []string {
	if len(a) > 0 {
		return a
	}
	return b
}
