/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

package core

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"errors"
	"io"
	"strings"
	"testing"

	crypto "github.com/gitrgoliveira/go-filetransformer/internal/crypto"
	"github.com/gitrgoliveira/go-filetransformer/internal/testlog"
)

func roundTrip(t *testing.T, chunkSize int, data []byte) {
	t.Helper()
	key := testKey(t)
	tr := newTestTransformer(t, key, WithChunkSize(chunkSize))

	container := seal(t, tr, "data.bin", data)

	var out bytes.Buffer
	hdr, err := tr.RestoreStream(context.Background(), bytes.NewReader(container), &out)
	if err != nil {
		t.Fatalf("RestoreStream failed: %v", err)
	}
	if !bytes.Equal(out.Bytes(), data) {
		t.Fatalf("restored %d bytes, want %d", out.Len(), len(data))
	}
	if hdr.FileName != "data.bin" || hdr.ChunkSize != chunkSize {
		t.Fatalf("header = %+v", hdr)
	}
}

func TestRoundTripSizes(t *testing.T) {
	const chunk = 48
	sizes := map[string]int{
		"empty":               0,
		"one byte":            1,
		"under one chunk":     chunk - 1,
		"exactly one chunk":   chunk,
		"one chunk plus one":  chunk + 1,
		"exactly four chunks": 4 * chunk,
		"many chunks":         37*chunk + 11,
	}
	for name, n := range sizes {
		t.Run(name, func(t *testing.T) {
			roundTrip(t, chunk, randomData(t, n))
		})
	}
}

func TestRoundTripChunkSizes(t *testing.T) {
	for _, chunk := range []int{3, 6, 300, DefaultChunkSize} {
		roundTrip(t, chunk, randomData(t, 4000))
	}
}

func TestContainerLength(t *testing.T) {
	tr := newTestTransformer(t, testKey(t), WithChunkSize(3))

	tests := []struct {
		size int
		want int
	}{
		// header + empty remainder (tag only)
		{0, 372 + 16},
		// header + remainder of 2 bytes
		{2, 372 + 4 + 16},
		// header + one full chunk + empty remainder
		{3, 372 + 20 + 16},
		// header + one full chunk + 1-byte remainder
		{4, 372 + 20 + 20},
		{6, 372 + 20 + 20 + 16},
	}
	for _, tt := range tests {
		got := len(seal(t, tr, "n", randomData(t, tt.size)))
		if got != tt.want {
			t.Errorf("%d bytes of input: container is %d bytes, want %d", tt.size, got, tt.want)
		}
	}
}

func TestContainerIsPrintable(t *testing.T) {
	tr := newTestTransformer(t, testKey(t), WithChunkSize(30))
	container := seal(t, tr, "n", randomData(t, 1000))

	for i, b := range container {
		if !strings.ContainsRune("ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/=", rune(b)) {
			t.Fatalf("byte %d (%q) is outside the framing alphabet", i, b)
		}
	}
}

// buildContainer lays out a container without the package's writer.
func buildContainer(t *testing.T, key []byte, name string, chunkSize int, data []byte) []byte {
	t.Helper()
	block, err := aes.NewCipher(key)
	if err != nil {
		t.Fatal(err)
	}
	gcm, err := cipher.NewGCMWithTagSize(block, 12)
	if err != nil {
		t.Fatal(err)
	}

	var out []byte
	record := func(plain []byte, counter uint32) {
		nonce, _ := DeriveNonce(counter, 12)
		sealed := gcm.Seal(nil, nonce, plain, nil)
		split := len(sealed) - 12
		out = base64.StdEncoding.AppendEncode(out, sealed[:split])
		out = base64.StdEncoding.AppendEncode(out, sealed[split:])
	}

	hdr := make([]byte, 267)
	copy(hdr, []byte{0x70, 0x84, 0x00})
	copy(hdr[3:263], name)
	hdr[263] = byte(chunkSize)
	hdr[264] = byte(chunkSize >> 8)
	hdr[265] = byte(chunkSize >> 16)
	hdr[266] = byte(chunkSize >> 24)
	record(hdr, 0)

	counter := uint32(1)
	for len(data) >= chunkSize {
		record(data[:chunkSize], counter)
		data = data[chunkSize:]
		counter++
	}
	record(data, counter)
	return out
}

func TestMatchesIndependentLayout(t *testing.T) {
	key := testKey(t)
	data := randomData(t, 100)
	want := buildContainer(t, key, "notes.txt", 9, data)

	tr := newTestTransformer(t, key, WithChunkSize(9))
	got := seal(t, tr, "notes.txt", data)
	if !bytes.Equal(got, want) {
		t.Fatal("container differs from the documented layout")
	}

	var out bytes.Buffer
	hdr, err := tr.RestoreStream(context.Background(), bytes.NewReader(want), &out)
	if err != nil {
		t.Fatal(err)
	}
	if hdr.FileName != "notes.txt" || !bytes.Equal(out.Bytes(), data) {
		t.Fatal("restore of an independently built container mismatched")
	}
}

func TestDeterministicOutput(t *testing.T) {
	key := testKey(t)
	tr := newTestTransformer(t, key, WithChunkSize(30))
	data := randomData(t, 200)

	if !bytes.Equal(seal(t, tr, "a", data), seal(t, tr, "a", data)) {
		t.Error("same key, name and content produced different containers")
	}
}

func TestRestoreWrongKey(t *testing.T) {
	container := seal(t, newTestTransformer(t, testKey(t)), "f", []byte("secret"))

	var out bytes.Buffer
	_, err := newTestTransformer(t, testKey(t)).RestoreStream(context.Background(), bytes.NewReader(container), &out)
	if !errors.Is(err, crypto.ErrInvalidContainer) {
		t.Fatalf("error = %v, want ErrInvalidContainer", err)
	}
	if out.Len() != 0 {
		t.Error("plaintext written under the wrong key")
	}
}

func TestRestoreErrorsAreIndistinguishable(t *testing.T) {
	key := testKey(t)
	tr := newTestTransformer(t, key, WithChunkSize(6))
	container := seal(t, tr, "f", randomData(t, 20))

	restore := func(tr *Transformer, b []byte) error {
		_, err := tr.RestoreStream(context.Background(), bytes.NewReader(b), io.Discard)
		return err
	}

	wrongKey := restore(newTestTransformer(t, testKey(t), WithChunkSize(6)), container)

	body := append([]byte(nil), container...)
	body[FramedHeaderSize+1] ^= 0x01
	corrupt := restore(tr, body)

	truncated := restore(tr, container[:len(container)-5])

	if wrongKey == nil || corrupt == nil || truncated == nil {
		t.Fatal("expected failures")
	}
	if wrongKey.Error() != corrupt.Error() || corrupt.Error() != truncated.Error() {
		t.Errorf("error texts differ:\n%v\n%v\n%v", wrongKey, corrupt, truncated)
	}
}

func TestRestoreDetectsEverySingleByteChange(t *testing.T) {
	key := testKey(t)
	tr := newTestTransformer(t, key, WithChunkSize(6))
	container := seal(t, tr, "f", []byte("0123456789abcdef"))

	for i := range container {
		tampered := append([]byte(nil), container...)
		if tampered[i] == 'A' {
			tampered[i] = 'B'
		} else {
			tampered[i] = 'A'
		}

		_, err := tr.RestoreStream(context.Background(), bytes.NewReader(tampered), io.Discard)
		if !errors.Is(err, crypto.ErrInvalidContainer) {
			t.Fatalf("change at offset %d: error = %v", i, err)
		}
	}
}

func TestRestoreDetectsTruncation(t *testing.T) {
	key := testKey(t)
	tr := newTestTransformer(t, key, WithChunkSize(3))
	container := seal(t, tr, "f", []byte("abcdefgh"))

	for n := 0; n < len(container); n++ {
		_, err := tr.RestoreStream(context.Background(), bytes.NewReader(container[:n]), io.Discard)
		if !errors.Is(err, crypto.ErrInvalidContainer) {
			t.Fatalf("truncated to %d bytes: error = %v", n, err)
		}
	}
}

func TestRestoreRejectsMissingRemainder(t *testing.T) {
	key := testKey(t)
	tr := newTestTransformer(t, key, WithChunkSize(3))

	// 6 bytes: header, two full records, empty remainder.
	container := seal(t, tr, "f", []byte("abcdef"))
	withoutRemainder := container[:len(container)-FramedTagSize]

	_, err := tr.RestoreStream(context.Background(), bytes.NewReader(withoutRemainder), io.Discard)
	if !errors.Is(err, crypto.ErrInvalidContainer) {
		t.Fatalf("error = %v", err)
	}
}

func TestRestoreRejectsTrailingData(t *testing.T) {
	tr := newTestTransformer(t, testKey(t), WithChunkSize(3))
	container := seal(t, tr, "f", []byte("abcd"))

	for _, extra := range []string{"A", "AAAA", "\n"} {
		_, err := tr.RestoreStream(context.Background(), strings.NewReader(string(container)+extra), io.Discard)
		if !errors.Is(err, crypto.ErrInvalidContainer) {
			t.Errorf("trailing %q: error = %v", extra, err)
		}
	}
}

func TestRestoreRejectsReorderedRecords(t *testing.T) {
	tr := newTestTransformer(t, testKey(t), WithChunkSize(3))
	container := seal(t, tr, "f", []byte("abcdef"))

	rec := FramedRecordSize(3)
	first := container[FramedHeaderSize : FramedHeaderSize+rec]
	second := container[FramedHeaderSize+rec : FramedHeaderSize+2*rec]

	var swapped []byte
	swapped = append(swapped, container[:FramedHeaderSize]...)
	swapped = append(swapped, second...)
	swapped = append(swapped, first...)
	swapped = append(swapped, container[FramedHeaderSize+2*rec:]...)

	_, err := tr.RestoreStream(context.Background(), bytes.NewReader(swapped), io.Discard)
	if !errors.Is(err, crypto.ErrInvalidContainer) {
		t.Fatalf("error = %v", err)
	}
}

func TestRestoreUsesContainerChunkSize(t *testing.T) {
	key := testKey(t)
	data := randomData(t, 500)
	container := seal(t, newTestTransformer(t, key, WithChunkSize(12)), "f", data)

	var out bytes.Buffer
	hdr, err := newTestTransformer(t, key).RestoreStream(context.Background(), bytes.NewReader(container), &out)
	if err != nil {
		t.Fatal(err)
	}
	if hdr.ChunkSize != 12 || !bytes.Equal(out.Bytes(), data) {
		t.Fatalf("header %+v, %d bytes restored", hdr, out.Len())
	}
}

func TestStreamNames(t *testing.T) {
	key := testKey(t)
	tr := newTestTransformer(t, key)

	long := strings.Repeat("L", 300)
	for name, want := range map[string]string{
		"plain.txt": "plain.txt",
		"":          "",
		long:        long[:FileNameFieldSize],
	} {
		container := seal(t, tr, name, []byte("x"))
		hdr, err := tr.RestoreStream(context.Background(), bytes.NewReader(container), io.Discard)
		if err != nil {
			t.Fatal(err)
		}
		if hdr.FileName != want {
			t.Errorf("name %q restored as %q", name, hdr.FileName)
		}
	}
}

func TestStreamNilArguments(t *testing.T) {
	tr := newTestTransformer(t, testKey(t))
	if err := tr.TransformStream(context.Background(), nil, io.Discard, "f"); err == nil {
		t.Error("nil source accepted")
	}
	if _, err := tr.RestoreStream(context.Background(), strings.NewReader(""), nil); err == nil {
		t.Error("nil destination accepted")
	}
}

func TestTransformCanceledBeforeStart(t *testing.T) {
	tr := newTestTransformer(t, testKey(t))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	err := tr.TransformStream(ctx, strings.NewReader("data"), &out, "f")
	if !errors.Is(err, crypto.ErrCanceled) || !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v", err)
	}
	if out.Len() != 0 {
		t.Error("output written after cancellation")
	}

	_, err = tr.RestoreStream(ctx, strings.NewReader("data"), &out)
	if !errors.Is(err, crypto.ErrCanceled) {
		t.Fatalf("restore error = %v", err)
	}
}

func TestTransformCanceledMidStream(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	calls := 0
	tr := newTestTransformer(t, testKey(t), WithChunkSize(300), WithProgress(func(int) {
		calls++
		cancel()
	}))

	data := randomData(t, 300*10)
	var out bytes.Buffer
	err := tr.TransformStream(ctx, bytes.NewReader(data), &out, "f", int64(len(data)))
	if !errors.Is(err, crypto.ErrCanceled) {
		t.Fatalf("error = %v", err)
	}
	if calls != 1 {
		t.Errorf("progress called %d times after cancel", calls)
	}
	// Header and first record only.
	if out.Len() != FramedHeaderSize+FramedRecordSize(300) {
		t.Errorf("%d bytes written before cancellation took effect", out.Len())
	}
}

func TestRestoreCanceledMidStream(t *testing.T) {
	key := testKey(t)
	data := randomData(t, 3000)
	container := seal(t, newTestTransformer(t, key, WithChunkSize(300)), "f", data)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	tr := newTestTransformer(t, key, WithProgress(func(int) { cancel() }))

	var out bytes.Buffer
	_, err := tr.RestoreStream(ctx, bytes.NewReader(container), &out, int64(len(container)))
	if !errors.Is(err, crypto.ErrCanceled) {
		t.Fatalf("error = %v", err)
	}
	if out.Len() != 0 {
		t.Errorf("%d bytes restored after cancel during the header", out.Len())
	}
}

func TestProgressReporting(t *testing.T) {
	var seen []int
	key := testKey(t)
	tr := newTestTransformer(t, key, WithChunkSize(30), WithProgress(func(p int) {
		seen = append(seen, p)
	}))

	data := randomData(t, 30*50+7)
	container := seal(t, tr, "f", data)

	checkProgress := func(label string) {
		t.Helper()
		if len(seen) == 0 || seen[len(seen)-1] != 100 {
			t.Fatalf("%s: progress %v does not end at 100", label, seen)
		}
		for i := 1; i < len(seen); i++ {
			if seen[i] <= seen[i-1] {
				t.Fatalf("%s: progress not strictly increasing: %v", label, seen)
			}
		}
		if seen[0] < 0 {
			t.Fatalf("%s: negative progress %v", label, seen)
		}
	}
	checkProgress("transform")

	seen = nil
	if _, err := tr.RestoreStream(context.Background(), bytes.NewReader(container), io.Discard, int64(len(container))); err != nil {
		t.Fatal(err)
	}
	checkProgress("restore")

	// Empty input still completes.
	seen = nil
	seal(t, tr, "empty", nil)
	if len(seen) != 1 || seen[0] != 100 {
		t.Errorf("empty input progress = %v", seen)
	}
}

func TestWithNonceDeriver(t *testing.T) {
	key := testKey(t)
	keyed, err := NewKeyedNonceDeriver([]byte("nonce secret"))
	if err != nil {
		t.Fatal(err)
	}

	data := randomData(t, 100)
	tr := newTestTransformer(t, key, WithChunkSize(30), WithNonceDeriver(keyed))
	container := seal(t, tr, "f", data)

	if bytes.Equal(container, seal(t, newTestTransformer(t, key, WithChunkSize(30)), "f", data)) {
		t.Fatal("keyed deriver produced the default container")
	}

	var out bytes.Buffer
	if _, err := tr.RestoreStream(context.Background(), bytes.NewReader(container), &out); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out.Bytes(), data) {
		t.Fatal("round trip with keyed nonces mismatched")
	}

	_, err = newTestTransformer(t, key).RestoreStream(context.Background(), bytes.NewReader(container), io.Discard)
	if !errors.Is(err, crypto.ErrInvalidContainer) {
		t.Errorf("default deriver restored a keyed container: %v", err)
	}
}

func TestDestroyedTransformer(t *testing.T) {
	tr, err := NewTransformer(testKey(t))
	if err != nil {
		t.Fatal(err)
	}
	tr.Destroy()
	tr.Destroy()

	err = tr.TransformStream(context.Background(), strings.NewReader("x"), io.Discard, "f")
	if !errors.Is(err, crypto.ErrInvalidKey) {
		t.Fatalf("error = %v", err)
	}
}

type failingWriter struct{ after int }

func (w *failingWriter) Write(p []byte) (int, error) {
	if w.after <= 0 {
		return 0, errors.New("disk full")
	}
	w.after--
	return len(p), nil
}

func TestTransformWriteErrorCarriesPhase(t *testing.T) {
	tr := newTestTransformer(t, testKey(t), WithChunkSize(3))

	err := tr.TransformStream(context.Background(), strings.NewReader("abcdefg"), &failingWriter{after: 2}, "f")
	var opErr *crypto.OpError
	if !errors.As(err, &opErr) {
		t.Fatalf("error %v is not an OpError", err)
	}
	if opErr.Phase != crypto.PhaseBody || opErr.Chunk != 1 {
		t.Errorf("failure reported at %s chunk %d", opErr.Phase, opErr.Chunk)
	}
	if errors.Is(err, crypto.ErrInvalidContainer) {
		t.Error("I/O failure reported as an invalid container")
	}
}

func TestPhaseTransitionsLogged(t *testing.T) {
	var rec testlog.Records
	logger := testlog.New(t, testlog.WithRecords(&rec))
	tr := newTestTransformer(t, testKey(t), WithChunkSize(3), WithLogger(logger))

	seal(t, tr, "f", []byte("abcd"))

	want := []string{"opening", "header", "body", "remainder", "closed"}
	got := rec.Values("phase")
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("phases = %v, want %v", got, want)
	}

	var rec2 testlog.Records
	tr = newTestTransformer(t, testKey(t), WithLogger(testlog.New(t, testlog.WithRecords(&rec2))))
	_, _ = tr.RestoreStream(context.Background(), strings.NewReader("nope"), io.Discard)
	got = rec2.Values("phase")
	if len(got) == 0 || got[len(got)-1] != "failed" {
		t.Errorf("failed restore phases = %v", got)
	}
}

func TestRunFinishIsFinal(t *testing.T) {
	var rec testlog.Records
	tr := newTestTransformer(t, testKey(t), WithLogger(testlog.New(t, testlog.WithRecords(&rec))))

	r := tr.newRun("restore", "x")
	failure := errors.New("read failed")
	r.finish(&failure)

	var ok error
	r.finish(&ok)

	if r.phase != crypto.PhaseFailed {
		t.Errorf("phase = %s after a second finish, want failed", r.phase)
	}
	want := []string{"opening", "failed"}
	if got := rec.Values("phase"); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("phases = %v, want %v", got, want)
	}
}
