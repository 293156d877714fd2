// Copyright (C) 2020 Markus L. Noga
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package internal

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogAlsoToFile(t *testing.T) {
	var stdout bytes.Buffer
	logStdout = &stdout
	defer func() { logStdout = os.Stdout }()

	fileName := filepath.Join(t.TempDir(), "run.log")
	require.NoError(t, LogAlsoToFile(fileName))
	LogPrintf("%d: Rectified %s\n", 3, "80x120")
	LogPrintln("done")
	LogSync()
	require.NoError(t, LogCloseFile())

	want := "3: Rectified 80x120\ndone\n"
	assert.Equal(t, want, stdout.String())
	b, err := os.ReadFile(fileName)
	require.NoError(t, err)
	assert.Equal(t, want, string(b))

	// after closing, only stdout
	LogPrint("more")
	assert.Equal(t, want+"more", stdout.String())
	b, _ = os.ReadFile(fileName)
	assert.Equal(t, want, string(b))
}

func TestLogAlsoToFileBadPath(t *testing.T) {
	err := LogAlsoToFile(filepath.Join(t.TempDir(), "missing", "dir", "run.log"))
	assert.Error(t, err)
	LogSync()
}
