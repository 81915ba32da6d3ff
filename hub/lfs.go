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
	"os"
	"sort"
	"strconv"
	"sync"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/retailnext/largefolder/fingerprint"
	"github.com/retailnext/largefolder/metrics"
	"go.uber.org/zap"
)

// LFS batch response header keys that are not literal HTTP headers.
const (
	chunkSizeKey     = "chunk_size"
	completionURLKey = "completion_url"
)

const partUploadConcurrency = 4

type lfsBatchRequest struct {
	Operation string          `json:"operation"`
	Objects   []lfsObjectSpec `json:"objects"`
}

type lfsObjectSpec struct {
	OID  string `json:"oid"`
	Size int64  `json:"size"`
}

type lfsAction struct {
	Href   string            `json:"href"`
	Header map[string]string `json:"header"`
}

type lfsBatchObject struct {
	OID     string                `json:"oid"`
	Size    int64                 `json:"size"`
	Actions map[string]*lfsAction `json:"actions"`
}

type lfsBatchResponse struct {
	Objects []lfsBatchObject `json:"objects"`
}

// PreuploadFile pushes the file's bytes to the blob store named by the
// LFS batch endpoint. Files larger than the server's chunk size go up as
// concurrent parts followed by a completion call; blobs the server
// already has are skipped entirely.
func (c *HTTPClient) PreuploadFile(ctx context.Context, file fingerprint.File, sha256Hex string) error {
	lgr := zap.S()

	batchURL := fmt.Sprintf("%s/api/%ss/%s/lfs/batch", c.cfg.Endpoint, c.cfg.RepoType, c.cfg.RepoID)
	req := lfsBatchRequest{
		Operation: "upload",
		Objects:   []lfsObjectSpec{{OID: sha256Hex, Size: file.Len()}},
	}
	var resp lfsBatchResponse
	if _, err := c.postJSON(ctx, batchURL, req, &resp); err != nil {
		return err
	}
	if len(resp.Objects) != 1 || resp.Objects[0].OID != sha256Hex {
		return fmt.Errorf("hub: lfs batch response does not match request")
	}

	object := resp.Objects[0]
	upload := object.Actions["upload"]
	if upload == nil {
		// Server already has this content.
		lfsSkippedFiles.Inc()
		lfsSkippedBytes.Add(float64(file.Len()))
		lgr.Debugw("lfs_upload_skipped", "path", file.Name(), "oid", sha256Hex)
		return nil
	}

	transfer := lfsTransfer{
		httpClient: c.httpClient,
		file:       file,
		oid:        sha256Hex,
		action:     upload,
	}
	if err := transfer.run(ctx); err != nil {
		lfsErrors.Inc()
		return err
	}

	if verify := object.Actions["verify"]; verify != nil {
		if _, err := c.postJSON(ctx, verify.Href, lfsObjectSpec{OID: sha256Hex, Size: file.Len()}, nil); err != nil {
			lfsErrors.Inc()
			return err
		}
	}

	lfsUploadedFiles.Inc()
	lfsUploadedBytes.Add(float64(file.Len()))
	return nil
}

type lfsTransfer struct {
	httpClient *http.Client
	file       fingerprint.File
	oid        string
	action     *lfsAction

	osFile *os.File

	lock   sync.Mutex
	errors map[int64]error
	etags  map[int64]string
}

func (t *lfsTransfer) run(ctx context.Context) error {
	osFile, err := t.file.Open()
	if err != nil {
		return err
	}
	t.osFile = osFile
	defer func() {
		if closeErr := osFile.Close(); closeErr != nil {
			panic(closeErr)
		}
	}()

	chunkSize, partURLs, err := t.parseParts()
	if err != nil {
		return err
	}
	if partURLs == nil {
		return t.uploadSinglePart(ctx)
	}
	return t.uploadParts(ctx, chunkSize, partURLs)
}

// parseParts splits the action header into a chunk size and ordered part
// URLs. A response without chunk_size is a single-PUT upload and the
// header entries are literal HTTP headers.
func (t *lfsTransfer) parseParts() (int64, []string, error) {
	raw, ok := t.action.Header[chunkSizeKey]
	if !ok {
		return 0, nil, nil
	}
	chunkSize, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || chunkSize <= 0 {
		return 0, nil, fmt.Errorf("hub: bad lfs chunk size %q", raw)
	}

	var partNumbers []int
	urls := make(map[int]string)
	for key, value := range t.action.Header {
		n, err := strconv.Atoi(key)
		if err != nil {
			continue
		}
		partNumbers = append(partNumbers, n)
		urls[n] = value
	}
	sort.Ints(partNumbers)

	expected := (t.file.Len() + chunkSize - 1) / chunkSize
	if int64(len(partNumbers)) != expected {
		return 0, nil, fmt.Errorf("hub: lfs response has %d part urls, want %d", len(partNumbers), expected)
	}
	ordered := make([]string, 0, len(partNumbers))
	for i, n := range partNumbers {
		if n != i+1 {
			return 0, nil, fmt.Errorf("hub: lfs part numbers not contiguous")
		}
		ordered = append(ordered, urls[n])
	}
	return chunkSize, ordered, nil
}

func (t *lfsTransfer) uploadSinglePart(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, t.action.Href, t.osFile)
	if err != nil {
		return err
	}
	req.ContentLength = t.file.Len()
	for key, value := range t.action.Header {
		req.Header.Set(key, value)
	}
	resp, err := t.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return StatusError{Status: resp.StatusCode, Body: string(body)}
	}
	return nil
}

func (t *lfsTransfer) uploadParts(ctx context.Context, chunkSize int64, partURLs []string) error {
	partCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	t.errors = make(map[int64]error)
	t.etags = make(map[int64]string)

	var wg sync.WaitGroup
	limiter := make(chan struct{}, partUploadConcurrency)
	doneCh := partCtx.Done()
	for i, url := range partURLs {
		partNumber := int64(i + 1)
		select {
		case <-doneCh:
		case limiter <- struct{}{}:
			wg.Add(1)
			go t.uploadPart(partCtx, cancel, &wg, limiter, partNumber, chunkSize, url)
		}
	}
	wg.Wait()

	return t.tryToComplete(ctx, chunkSize, int64(len(partURLs)))
}

func (t *lfsTransfer) uploadPart(ctx context.Context, cancel context.CancelFunc, wg *sync.WaitGroup, limiter <-chan struct{}, partNumber, chunkSize int64, url string) {
	var err error
	defer func() {
		if err != nil {
			t.lock.Lock()
			t.errors[partNumber] = err
			t.lock.Unlock()
			cancel()
		}
		<-limiter
		wg.Done()
	}()

	offset := (partNumber - 1) * chunkSize
	length := chunkSize
	if remaining := t.file.Len() - offset; remaining < length {
		length = remaining
	}
	reader := io.NewSectionReader(t.osFile, offset, length)

	req, reqErr := http.NewRequestWithContext(ctx, http.MethodPut, url, reader)
	if reqErr != nil {
		err = reqErr
		return
	}
	req.ContentLength = length

	resp, doErr := t.httpClient.Do(req)
	if doErr != nil {
		err = doErr
		return
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		err = StatusError{Status: resp.StatusCode, Body: string(body)}
		return
	}

	t.lock.Lock()
	t.etags[partNumber] = resp.Header.Get("ETag")
	t.lock.Unlock()
}

type lfsCompletionPart struct {
	PartNumber int64  `json:"partNumber"`
	ETag       string `json:"etag"`
}

type lfsCompletionRequest struct {
	OID   string              `json:"oid"`
	Parts []lfsCompletionPart `json:"parts"`
}

func (t *lfsTransfer) tryToComplete(ctx context.Context, chunkSize, parts int64) error {
	t.lock.Lock()
	defer t.lock.Unlock()

	completion := lfsCompletionRequest{OID: t.oid}
	var partNumber int64
	for partNumber = 1; partNumber <= parts; partNumber++ {
		etag, etagOk := t.etags[partNumber]
		if !etagOk {
			if _, alreadyError := t.errors[partNumber]; !alreadyError {
				t.errors[partNumber] = fmt.Errorf("etag missing")
			}
			continue
		}
		completion.Parts = append(completion.Parts, lfsCompletionPart{
			PartNumber: partNumber,
			ETag:       etag,
		})
	}

	if len(t.errors) > 0 {
		return PartFailures(t.errors)
	}

	completionURL := t.action.Header[completionURLKey]
	if completionURL == "" {
		return fmt.Errorf("hub: multipart lfs response missing completion url")
	}

	raw, err := json.Marshal(&completion)
	if err != nil {
		panic(err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, completionURL, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := t.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return StatusError{Status: resp.StatusCode, Body: string(body)}
	}
	return nil
}

// PartFailures maps part numbers to the error that stopped them.
type PartFailures map[int64]error

func (f PartFailures) Error() string {
	return fmt.Sprintf("hub: %d part uploads failed", len(f))
}

var (
	lfsUploadedFiles = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: metrics.Namespace,
		Subsystem: "lfs",
		Name:      "upload_files_total",
		Help:      "Number of blobs uploaded to LFS storage.",
	})
	lfsUploadedBytes = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: metrics.Namespace,
		Subsystem: "lfs",
		Name:      "upload_bytes_total",
		Help:      "Total bytes uploaded to LFS storage.",
	})
	lfsSkippedFiles = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: metrics.Namespace,
		Subsystem: "lfs",
		Name:      "skipped_files_total",
		Help:      "Number of blobs not uploaded because the server already had the content.",
	})
	lfsSkippedBytes = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: metrics.Namespace,
		Subsystem: "lfs",
		Name:      "skipped_bytes_total",
		Help:      "Total bytes not uploaded because the server already had the content.",
	})
	lfsErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: metrics.Namespace,
		Subsystem: "lfs",
		Name:      "errors_total",
		Help:      "Number of failed blob uploads.",
	})
)

func init() {
	prometheus.MustRegister(lfsUploadedFiles)
	prometheus.MustRegister(lfsUploadedBytes)
	prometheus.MustRegister(lfsSkippedFiles)
	prometheus.MustRegister(lfsSkippedBytes)
	prometheus.MustRegister(lfsErrors)
}
