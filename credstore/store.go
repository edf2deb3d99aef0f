// Copyright (c) 2024 anidb-go contributors
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

package credstore

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/anidb-go/anidb-core/common"
)

// fileName is fixed by spec §6.3: "credentials/store.enc" under the
// configured config directory.
const fileName = "credentials/store.enc"

// Store persists one Container under a config directory.
type Store struct {
	path string
}

// Open resolves the store's backing file under configDir, creating the
// "credentials" subdirectory if absent. It does not require the file to
// exist yet; Load reports ErrNotExist-equivalent behavior via a nil,nil
// return when no container has been written.
func Open(configDir string) (*Store, error) {
	path := filepath.Join(configDir, fileName)
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, common.WrapError(common.EErrorKind.Io(), "create credential store directory", err)
	}
	return &Store{path: path}, nil
}

// Save writes c to disk, enforcing owner-only POSIX permissions (spec
// §6.3). The file is written to a temporary sibling and renamed into place
// so a crash mid-write never leaves a truncated container (the same
// write-then-rename discipline spec §6.3 requires of the hash and
// identification caches).
func (s *Store) Save(c Container) error {
	raw, err := json.Marshal(c)
	if err != nil {
		return common.WrapError(common.EErrorKind.Unknown(), "encode credential container", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return common.WrapError(common.EErrorKind.Io(), "write credential store", err)
	}
	if err := enforceOwnerOnly(tmp); err != nil {
		return err
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return common.WrapError(common.EErrorKind.Io(), "install credential store", err)
	}
	return nil
}

// Load reads the container from disk. It returns (nil, nil) if no
// container has ever been saved.
func (s *Store) Load() (*Container, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, common.WrapError(common.EErrorKind.Io(), "read credential store", err)
	}
	var c Container
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, common.WrapError(common.EErrorKind.CacheCorrupt(), "decode credential store", err)
	}
	return &c, nil
}
