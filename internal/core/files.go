/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

// files.go: File-level transform and restore with staged output
package core

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"hash"
	"io/fs"
	"path/filepath"
	"strings"

	crypto "github.com/gitrgoliveira/go-filetransformer/internal/crypto"
	"github.com/gitrgoliveira/go-filetransformer/internal/fileutil"
)

// nameAttempts bounds retries when a generated container name is taken.
const nameAttempts = 3

// TransformFile writes filePath as a container under a random name inside
// saveDir, suffixed with "."+extension when extension is not empty. On any
// failure, cancellation included, nothing is left in saveDir.
func (t *Transformer) TransformFile(ctx context.Context, filePath, saveDir, extension string) (res *Result, err error) {
	r := t.newRun("transform", filePath)
	defer r.finish(&err)

	ext, err := normalizeExtension(extension)
	if err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, crypto.Canceled(ctx)
	}

	src, err := fileutil.OpenReadLocked(filePath)
	if err != nil {
		return nil, r.ioError("open source file", err)
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return nil, r.ioError("stat source file", err)
	}
	if info.IsDir() {
		return nil, r.ioError("open source file", fmt.Errorf("%s is a directory", filePath))
	}

	out, err := fileutil.CreateOutput(saveDir)
	if err != nil {
		return nil, r.ioError("create output file", err)
	}
	r.staging(out.TempName())
	defer func() {
		if err != nil {
			_ = out.Discard()
		}
	}()

	w, sum := checksumWriter(out.File(), t.checksum)
	cw := &countingWriter{w: w}

	cr := &countingReader{r: src}
	name := filepath.Base(filePath)
	if err := t.transform(ctx, r, bufio.NewReaderSize(cr, peekBufferSize), cw, name, info.Size()); err != nil {
		return nil, err
	}

	var path string
	for attempt := 0; ; attempt++ {
		path = filepath.Join(saveDir, fileutil.RandomName(ext))
		err = out.Commit(path, false)
		if err == nil {
			break
		}
		if !errors.Is(err, fs.ErrExist) || attempt+1 == nameAttempts {
			return nil, r.ioError("commit output file", err)
		}
	}

	return &Result{Path: path, Name: name, Size: cw.n, SourceSize: cr.n, Checksum: sumBytes(sum)}, nil
}

// RestoreFile restores the container at filePath into saveDir under its
// embedded original name. The output only appears once every record has
// authenticated; an existing file of that name is kept unless the
// Transformer was built WithOverwrite.
//
// The container is opened with a shared advisory lock, not an exclusive one:
// writers that take the lock are kept out, while other readers may restore
// the same container concurrently. Where the platform has no file locks the
// container is read unlocked.
func (t *Transformer) RestoreFile(ctx context.Context, filePath, saveDir string) (res *Result, err error) {
	r := t.newRun("restore", filePath)
	defer r.finish(&err)

	if ctx.Err() != nil {
		return nil, crypto.Canceled(ctx)
	}

	src, err := fileutil.OpenReadLocked(filePath)
	if err != nil {
		return nil, r.ioError("open source file", err)
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return nil, r.ioError("stat source file", err)
	}
	if info.IsDir() {
		return nil, r.ioError("open source file", fmt.Errorf("%s is a directory", filePath))
	}

	c, err := t.newCipher()
	if err != nil {
		return nil, err
	}

	cr := &countingReader{r: src}
	br := bufio.NewReaderSize(cr, peekBufferSize)
	meter := newProgressMeter(t.progress, info.Size())

	hdr, err := t.readHeader(r, c, br, meter)
	if err != nil {
		return nil, err
	}

	name, err := safeName(hdr.FileName)
	if err != nil {
		return nil, err
	}

	out, err := fileutil.CreateOutput(saveDir)
	if err != nil {
		return nil, r.ioError("create output file", err)
	}
	r.staging(out.TempName())
	defer func() {
		if err != nil {
			_ = out.Discard()
		}
	}()

	w, sum := checksumWriter(out.File(), t.checksum)
	cw := &countingWriter{w: w}

	if err := t.restoreBody(ctx, r, c, hdr, br, cw, meter); err != nil {
		return nil, err
	}

	path := filepath.Join(saveDir, name)
	if err := out.Commit(path, t.overwrite); err != nil {
		return nil, r.ioError("commit output file", err)
	}

	return &Result{Path: path, Name: name, Size: cw.n, SourceSize: cr.n, Checksum: sumBytes(sum)}, nil
}

// safeName accepts only a plain file name that stays inside the save directory.
func safeName(name string) (string, error) {
	if name == "" || name == "." || filepath.Base(name) != name || !filepath.IsLocal(name) || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("%w: %q", crypto.ErrUnsafeName, name)
	}
	return name, nil
}

func normalizeExtension(ext string) (string, error) {
	ext = strings.TrimPrefix(ext, ".")
	if strings.ContainsAny(ext, `/\`+"\x00") || strings.HasPrefix(ext, ".") {
		return "", crypto.ConfigError(crypto.ErrExtension, "%q", ext)
	}
	return ext, nil
}

func sumBytes(h hash.Hash) []byte {
	if h == nil {
		return nil
	}
	return h.Sum(nil)
}
