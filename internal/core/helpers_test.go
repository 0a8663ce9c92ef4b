/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

package core

import (
	"bytes"
	"context"
	"crypto/rand"
	"os"
	"testing"

	"github.com/gitrgoliveira/go-filetransformer/secure"
)

func testKey(t testing.TB) []byte {
	t.Helper()
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { secure.Zero(key) })
	return key
}

func randomData(t testing.TB, n int) []byte {
	t.Helper()
	data := make([]byte, n)
	if _, err := rand.Read(data); err != nil {
		t.Fatal(err)
	}
	return data
}

func newTestTransformer(t testing.TB, key []byte, opts ...Option) *Transformer {
	t.Helper()
	tr, err := NewTransformer(key, opts...)
	if err != nil {
		t.Fatalf("NewTransformer failed: %v", err)
	}
	t.Cleanup(tr.Destroy)
	return tr
}

func seal(t testing.TB, tr *Transformer, name string, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := tr.TransformStream(context.Background(), bytes.NewReader(data), &buf, name, int64(len(data))); err != nil {
		t.Fatalf("TransformStream failed: %v", err)
	}
	return buf.Bytes()
}

func dirEntries(t testing.TB, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}
