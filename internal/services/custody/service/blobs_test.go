package service

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"strings"
	"testing"

	perr "custodian/internal/platform/errors"
)

func TestBlobWriteVerifyRoundTrip(t *testing.T) {
	fs, err := newBlobFS(t.TempDir())
	if err != nil {
		t.Fatalf("blob root failed: %v", err)
	}

	payload := []byte("bodycam footage bytes")
	digest, size, err := fs.write(bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if size != int64(len(payload)) {
		t.Fatalf("expected size %d got %d", len(payload), size)
	}

	want := sha256.Sum256(payload)
	if digest != hex.EncodeToString(want[:]) {
		t.Fatalf("digest mismatch: got %s", digest)
	}

	ok, err := fs.verify(digest)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if !ok {
		t.Fatalf("fresh blob must verify clean")
	}
}

func TestBlobOpenReturnsStoredBytes(t *testing.T) {
	fs, err := newBlobFS(t.TempDir())
	if err != nil {
		t.Fatalf("blob root failed: %v", err)
	}
	digest, _, err := fs.write(strings.NewReader("line one\nline two\n"))
	if err != nil {
		t.Fatalf("write failed: %v", err)
	}

	rc, err := fs.open(digest)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer rc.Close()
	got, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if string(got) != "line one\nline two\n" {
		t.Fatalf("stored bytes differ: %q", got)
	}
}

func TestBlobVerifyDetectsTampering(t *testing.T) {
	fs, err := newBlobFS(t.TempDir())
	if err != nil {
		t.Fatalf("blob root failed: %v", err)
	}
	digest, _, err := fs.write(strings.NewReader("original evidence"))
	if err != nil {
		t.Fatalf("write failed: %v", err)
	}

	if err := os.WriteFile(fs.pathFor(digest), []byte("tampered"), 0o640); err != nil {
		t.Fatalf("tamper failed: %v", err)
	}

	ok, err := fs.verify(digest)
	if err != nil {
		t.Fatalf("verify errored: %v", err)
	}
	if ok {
		t.Fatalf("tampered blob must fail verification")
	}
}

func TestBlobMissingIsIntegrityError(t *testing.T) {
	fs, err := newBlobFS(t.TempDir())
	if err != nil {
		t.Fatalf("blob root failed: %v", err)
	}
	missing := strings.Repeat("ab", 32)

	if _, err := fs.verify(missing); !perr.IsCode(err, perr.ErrorCodeIntegrity) {
		t.Fatalf("expected integrity error for missing blob got %v", err)
	}
	if _, err := fs.open(missing); !perr.IsCode(err, perr.ErrorCodeIntegrity) {
		t.Fatalf("expected integrity error on open got %v", err)
	}
}

func TestBlobDuplicateWriteKeepsExisting(t *testing.T) {
	fs, err := newBlobFS(t.TempDir())
	if err != nil {
		t.Fatalf("blob root failed: %v", err)
	}

	first, _, err := fs.write(strings.NewReader("same content"))
	if err != nil {
		t.Fatalf("first write failed: %v", err)
	}
	second, _, err := fs.write(strings.NewReader("same content"))
	if err != nil {
		t.Fatalf("second write failed: %v", err)
	}
	if first != second {
		t.Fatalf("identical content must address the same blob: %s vs %s", first, second)
	}

	ok, err := fs.verify(first)
	if err != nil || !ok {
		t.Fatalf("blob must stay intact after duplicate write: ok=%v err=%v", ok, err)
	}
}

func TestBlobRemove(t *testing.T) {
	fs, err := newBlobFS(t.TempDir())
	if err != nil {
		t.Fatalf("blob root failed: %v", err)
	}
	digest, _, err := fs.write(strings.NewReader("expiring evidence"))
	if err != nil {
		t.Fatalf("write failed: %v", err)
	}

	if err := fs.remove(digest); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if _, err := fs.open(digest); !perr.IsCode(err, perr.ErrorCodeIntegrity) {
		t.Fatalf("expected integrity error after removal got %v", err)
	}
	// removing again is a no-op
	if err := fs.remove(digest); err != nil {
		t.Fatalf("second remove should be silent: %v", err)
	}
}
