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

// Package digest computes and caches the per-file inputs the hub needs
// before a file can be classified or committed: the sha256 content
// address, the file length, and a short head sample.
package digest

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/retailnext/largefolder/fingerprint"
)

// SampleLen is the number of leading bytes retained for upload mode
// classification on the server.
const SampleLen = 512

const checkContextBytesInterval = 1024 * 1024 * 8

// ForUpload is the digest record for one local file.
type ForUpload struct {
	sha256 [sha256.Size]byte
	length int64
	sample []byte
}

func (u *ForUpload) SHA256Hex() string {
	return hex.EncodeToString(u.sha256[:])
}

func (u *ForUpload) Len() int64 {
	return u.length
}

// Sample returns the first SampleLen bytes of the file (less for shorter
// files).
func (u *ForUpload) Sample() []byte {
	return u.sample
}

func (u *ForUpload) populate(ctx context.Context, file fingerprint.File) error {
	osFile, err := file.Open()
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := osFile.Close(); closeErr != nil {
			panic(closeErr)
		}
	}()

	hasher := sha256.New()
	sample := make([]byte, 0, SampleLen)

	buf := make([]byte, 32*1024)
	var doneCh <-chan struct{}
	var lastCheckedDoneCh int64
	var size int64
	for {
		bytesRead, err := osFile.Read(buf)
		if err != nil && err != io.EOF {
			return err
		}
		if bytesRead > 0 {
			if n, writeErr := hasher.Write(buf[0:bytesRead]); writeErr != nil {
				panic(writeErr)
			} else if n != bytesRead {
				panic(io.ErrShortWrite)
			}
			if len(sample) < SampleLen {
				take := SampleLen - len(sample)
				if take > bytesRead {
					take = bytesRead
				}
				sample = append(sample, buf[0:take]...)
			}
		}
		size += int64(bytesRead)
		if err == io.EOF {
			break
		}

		if size-lastCheckedDoneCh > checkContextBytesInterval {
			if doneCh == nil {
				doneCh = ctx.Done()
			}

			select {
			case <-doneCh:
				return ctx.Err()
			default:
				lastCheckedDoneCh = size
			}
		}
	}

	if err := file.CheckFile(osFile); err != nil {
		return err
	}

	copy(u.sha256[:], hasher.Sum(nil))
	u.length = size
	u.sample = sample
	return nil
}

func (u *ForUpload) MarshalBinary() ([]byte, error) {
	result := make([]byte, sha256.Size+8+2+len(u.sample))
	if copy(result[0:], u.sha256[:]) != sha256.Size {
		panic("bad copy")
	}
	binary.BigEndian.PutUint64(result[sha256.Size:], uint64(u.length))
	binary.BigEndian.PutUint16(result[sha256.Size+8:], uint16(len(u.sample)))
	if copy(result[sha256.Size+10:], u.sample) != len(u.sample) {
		panic("bad copy")
	}
	return result, nil
}

func (u *ForUpload) UnmarshalBinary(data []byte) error {
	if len(data) < sha256.Size+10 {
		return fmt.Errorf("invalid data")
	}
	if copy(u.sha256[:], data) != sha256.Size {
		panic("bad copy")
	}
	u.length = int64(binary.BigEndian.Uint64(data[sha256.Size:]))
	sampleLen := int(binary.BigEndian.Uint16(data[sha256.Size+8:]))
	if len(data) != sha256.Size+10+sampleLen {
		return fmt.Errorf("invalid data")
	}
	u.sample = make([]byte, sampleLen)
	copy(u.sample, data[sha256.Size+10:])
	return nil
}
