/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakePasswords struct {
	terminal bool
	answers  []string
	calls    int
}

func (f *fakePasswords) IsTerminal() bool { return f.terminal }

func (f *fakePasswords) ReadPassword(prompt string, output io.Writer) ([]byte, error) {
	fmt.Fprint(output, prompt)
	if f.calls >= len(f.answers) {
		return nil, io.EOF
	}
	p := []byte(f.answers[f.calls])
	f.calls++
	return p, nil
}

// run executes the command line args and returns what it printed.
func run(t *testing.T, passwords PasswordReader, args ...string) (string, string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	a := newApp(&stdout, &stderr, passwords)
	root := newRootCommand(a)
	root.SetArgs(args)

	err := root.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func onlyEntry(t *testing.T, dir string) string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	return filepath.Join(dir, entries[0].Name())
}
