package service

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	perr "custodian/internal/platform/errors"
)

// blobFS is a content-addressed blob root: bytes live at aa/bb/<digest>
type blobFS struct {
	root string
}

func newBlobFS(root string) (*blobFS, error) {
	if root == "" {
		return nil, perr.InvalidArgf("blob root is required")
	}
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeUnknown, "create blob root")
	}
	return &blobFS{root: root}, nil
}

func (b *blobFS) pathFor(digest string) string {
	return filepath.Join(b.root, digest[0:2], digest[2:4], digest)
}

// write streams r to a temp file while hashing, then links the blob into its
// content-addressed home. Short writes abort and remove the partial file
func (b *blobFS) write(r io.Reader) (digest string, size int64, err error) {
	tmp, err := os.CreateTemp(b.root, ".admit-*")
	if err != nil {
		return "", 0, perr.Wrap(err, perr.ErrorCodeUnknown, "create temp blob")
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	h := sha256.New()
	size, err = io.Copy(io.MultiWriter(tmp, h), r)
	if err != nil {
		return "", 0, perr.Integrityf("short write during admit: %v", err)
	}
	if err = tmp.Sync(); err != nil {
		return "", 0, perr.Wrap(err, perr.ErrorCodeUnknown, "sync blob")
	}
	if err = tmp.Close(); err != nil {
		return "", 0, perr.Wrap(err, perr.ErrorCodeUnknown, "close blob")
	}

	digest = hex.EncodeToString(h.Sum(nil))
	dest := b.pathFor(digest)
	if err = os.MkdirAll(filepath.Dir(dest), 0o750); err != nil {
		return "", 0, perr.Wrap(err, perr.ErrorCodeUnknown, "create blob dir")
	}
	if err = os.Rename(tmpName, dest); err != nil {
		// a blob with this digest may already exist; same content, keep it
		if _, statErr := os.Stat(dest); statErr == nil {
			_ = os.Remove(tmpName)
			err = nil
			return digest, size, nil
		}
		return "", 0, perr.Wrap(err, perr.ErrorCodeUnknown, "place blob")
	}
	return digest, size, nil
}

// verify recomputes the digest of the stored blob, read-only
func (b *blobFS) verify(digest string) (bool, error) {
	f, err := os.Open(b.pathFor(digest))
	if err != nil {
		if os.IsNotExist(err) {
			return false, perr.Integrityf("blob %s missing from store", digest)
		}
		return false, perr.Wrap(err, perr.ErrorCodeUnknown, "open blob")
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return false, perr.Wrap(err, perr.ErrorCodeUnknown, "read blob")
	}
	return hex.EncodeToString(h.Sum(nil)) == digest, nil
}

// open returns the stored bytes for streaming reads
func (b *blobFS) open(digest string) (io.ReadCloser, error) {
	f, err := os.Open(b.pathFor(digest))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, perr.Integrityf("blob %s missing from store", digest)
		}
		return nil, perr.Wrap(err, perr.ErrorCodeUnknown, "open blob")
	}
	return f, nil
}

// remove deletes blob bytes; used only by the retention sweep
func (b *blobFS) remove(digest string) error {
	err := os.Remove(b.pathFor(digest))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove blob %s: %w", digest, err)
	}
	return nil
}
