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

//go:build !windows

package credstore

import (
	"golang.org/x/sys/unix"

	"github.com/anidb-go/anidb-core/common"
)

// enforceOwnerOnly re-asserts 0600 on path via chmod, the same belt-and-
// suspenders the teacher applies around file creation in
// default_file_perm_unix.go: os.WriteFile applies its mode argument only
// when it creates the file, so a temporary file left over from an earlier
// run would otherwise keep whatever mode it already had.
func enforceOwnerOnly(path string) error {
	if err := unix.Chmod(path, 0o600); err != nil {
		return common.WrapError(common.EErrorKind.Io(), "set credential store permissions", err)
	}
	return nil
}
