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

package hub

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/retailnext/largefolder/metadata"
)

const maxClassifyBatch = 256

type Config struct {
	// Endpoint is the host base URL, no trailing slash.
	Endpoint string
	// RepoID is "namespace/name".
	RepoID   string
	RepoType RepoType
	Revision string
	// Token, if set, is passed through as a bearer credential. Obtaining
	// and refreshing it is the caller's problem.
	Token string
}

func NewHTTPClient(cfg Config) *HTTPClient {
	return &HTTPClient{
		cfg:        cfg,
		httpClient: &http.Client{},
	}
}

type HTTPClient struct {
	cfg        Config
	httpClient *http.Client
}

var _ Client = (*HTTPClient)(nil)

// StatusError is a non-2xx response from the hub.
type StatusError struct {
	Status int
	Body   string
}

func (e StatusError) Error() string {
	return fmt.Sprintf("hub: unexpected status %d: %s", e.Status, e.Body)
}

func (c *HTTPClient) repoURL(suffix string) string {
	return fmt.Sprintf("%s/api/%ss/%s/%s/%s", c.cfg.Endpoint, c.cfg.RepoType, c.cfg.RepoID, suffix, c.cfg.Revision)
}

func (c *HTTPClient) postJSON(ctx context.Context, url string, reqBody, respBody interface{}) (int, error) {
	raw, err := json.Marshal(reqBody)
	if err != nil {
		panic(err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return resp.StatusCode, err
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 && respBody != nil {
		if err := json.Unmarshal(body, respBody); err != nil {
			return resp.StatusCode, fmt.Errorf("hub: malformed response: %w", err)
		}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, StatusError{Status: resp.StatusCode, Body: string(body)}
	}
	return resp.StatusCode, nil
}

type createRepoRequest struct {
	Type    string `json:"type"`
	Name    string `json:"name"`
	Private bool   `json:"private"`
}

func (c *HTTPClient) EnsureRepo(ctx context.Context, private bool) error {
	url := c.cfg.Endpoint + "/api/repos/create"
	status, err := c.postJSON(ctx, url, createRepoRequest{
		Type:    string(c.cfg.RepoType),
		Name:    c.cfg.RepoID,
		Private: private,
	}, nil)
	if status == http.StatusConflict {
		// Already exists.
		return nil
	}
	return err
}

type classifyRequestFile struct {
	Path   string `json:"path"`
	Size   int64  `json:"size"`
	SHA256 string `json:"sha256"`
	Sample []byte `json:"sample"`
}

type classifyRequest struct {
	Files []classifyRequestFile `json:"files"`
}

type classifyResponseFile struct {
	Path         string `json:"path"`
	UploadMode   string `json:"uploadMode"`
	ShouldIgnore bool   `json:"shouldIgnore"`
}

type classifyResponse struct {
	Files []classifyResponseFile `json:"files"`
}

func (c *HTTPClient) ClassifyUploadModes(ctx context.Context, files []FileInfo) (ClassifyResult, error) {
	if len(files) > maxClassifyBatch {
		return ClassifyResult{}, fmt.Errorf("hub: classify batch of %d exceeds server limit %d", len(files), maxClassifyBatch)
	}
	req := classifyRequest{Files: make([]classifyRequestFile, 0, len(files))}
	for _, f := range files {
		req.Files = append(req.Files, classifyRequestFile{
			Path:   f.Path,
			Size:   f.Size,
			SHA256: f.SHA256,
			Sample: f.Sample,
		})
	}

	var resp classifyResponse
	if _, err := c.postJSON(ctx, c.repoURL("preupload"), req, &resp); err != nil {
		return ClassifyResult{}, err
	}

	result := ClassifyResult{
		Modes:   make(map[string]metadata.UploadMode, len(resp.Files)),
		Ignored: make(map[string]struct{}),
	}
	for _, f := range resp.Files {
		if f.ShouldIgnore {
			result.Ignored[f.Path] = struct{}{}
			continue
		}
		switch metadata.UploadMode(f.UploadMode) {
		case metadata.UploadModeRegular, metadata.UploadModeLFS:
			result.Modes[f.Path] = metadata.UploadMode(f.UploadMode)
		default:
			return ClassifyResult{}, fmt.Errorf("hub: unknown upload mode %q for %q", f.UploadMode, f.Path)
		}
	}
	return result, nil
}

type commitRequestFile struct {
	Path     string `json:"path"`
	Size     int64  `json:"size"`
	Encoding string `json:"encoding,omitempty"`
	Content  []byte `json:"content,omitempty"`
	SHA256   string `json:"sha256,omitempty"`
}

type commitRequest struct {
	Summary string              `json:"summary"`
	Files   []commitRequestFile `json:"files"`
}

func (c *HTTPClient) CreateCommit(ctx context.Context, summary string, additions []CommitAddition) error {
	req := commitRequest{
		Summary: summary,
		Files:   make([]commitRequestFile, 0, len(additions)),
	}
	for _, a := range additions {
		file := commitRequestFile{
			Path: a.Path,
			Size: a.Size,
		}
		switch {
		case a.Content != nil:
			file.Encoding = "base64"
			file.Content = a.Content
		case a.SHA256 != "":
			file.SHA256 = a.SHA256
		default:
			panic(fmt.Sprintf("hub: addition for %q has neither content nor sha256", a.Path))
		}
		req.Files = append(req.Files, file)
	}
	_, err := c.postJSON(ctx, c.repoURL("commit"), req, nil)
	return err
}
