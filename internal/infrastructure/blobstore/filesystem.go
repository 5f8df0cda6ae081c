package blobstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"gamepub/internal/bootstrap/logging"
	"gamepub/internal/errs"
	"gamepub/internal/ports"
)

// FilesystemStore keeps archives under root as <gameId>/<version>/<attempt>/<file>.
// Storage paths returned to callers are slash-separated and relative to root.
// An existing attempt directory is never written to again.
type FilesystemStore struct {
	root string
}

var _ ports.BlobStore = (*FilesystemStore)(nil)

func NewFilesystemStore(root string) (*FilesystemStore, error) {
	trimmed := strings.TrimSpace(root)
	if trimmed == "" {
		return nil, errors.New("storage root is required")
	}
	if err := os.MkdirAll(trimmed, 0o755); err != nil {
		return nil, errs.Wrapf(err, "create storage root %q", trimmed)
	}
	return &FilesystemStore{root: trimmed}, nil
}

func (s *FilesystemStore) Put(ctx context.Context, input ports.BlobPut) (ports.BlobReceipt, error) {
	if ctx == nil {
		return ports.BlobReceipt{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return ports.BlobReceipt{}, errs.Wrap(err, "check context")
	}
	if input.Body == nil {
		return ports.BlobReceipt{}, errors.New("blob body is required")
	}

	gameID := strings.ToLower(strings.TrimSpace(input.GameID))
	versionNumber := strings.TrimSpace(input.Version)
	attempt := strings.TrimSpace(input.Attempt)
	fileName := filepath.Base(strings.TrimSpace(input.FileName))
	for _, part := range []string{gameID, versionNumber, attempt, fileName} {
		if !safeSegment(part) {
			return ports.BlobReceipt{}, fmt.Errorf("invalid storage path segment %q", part)
		}
	}

	rel := path.Join(gameID, versionNumber, attempt, fileName)
	parent := filepath.Join(s.root, gameID, versionNumber)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return ports.BlobReceipt{}, errs.Wrapf(err, "create blob directory %q", parent)
	}
	dir := filepath.Join(parent, attempt)
	if err := os.Mkdir(dir, 0o755); err != nil {
		if errors.Is(err, os.ErrExist) {
			return ports.BlobReceipt{}, errs.WithKind(fmt.Errorf("attempt %q already stored for %s %s", attempt, gameID, versionNumber), errs.KindConflict)
		}
		return ports.BlobReceipt{}, errs.Wrapf(err, "create blob directory %q", dir)
	}
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(dir)
		}
	}()

	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return ports.BlobReceipt{}, errs.Wrap(err, "create temp blob")
	}
	tmpName := tmp.Name()
	defer func() {
		_ = os.Remove(tmpName)
	}()

	hash := sha256.New()
	written, err := io.Copy(io.MultiWriter(tmp, hash), &contextReader{ctx: ctx, r: input.Body})
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return ports.BlobReceipt{}, errs.Wrap(err, "write blob")
	}
	if input.Size > 0 && written != input.Size {
		return ports.BlobReceipt{}, fmt.Errorf("blob size mismatch: wrote %d of %d bytes", written, input.Size)
	}

	if err := os.Rename(tmpName, filepath.Join(dir, fileName)); err != nil {
		return ports.BlobReceipt{}, errs.Wrap(err, "commit blob")
	}
	committed = true

	logging.Info(
		logging.WithAttrs(ctx, slog.String("component", "blobstore.filesystem")),
		"blob stored",
		slog.String("storage_path", rel),
		slog.Int64("size", written),
	)

	return ports.BlobReceipt{
		GameID:      gameID,
		StoragePath: rel,
		Size:        written,
		SHA256:      hex.EncodeToString(hash.Sum(nil)),
	}, nil
}

func (s *FilesystemStore) Delete(ctx context.Context, storagePath string) error {
	if ctx == nil {
		return errors.New("context is required")
	}

	clean := path.Clean("/" + strings.TrimSpace(storagePath))
	if clean == "/" {
		return errors.New("storage path is required")
	}
	if err := os.Remove(filepath.Join(s.root, filepath.FromSlash(clean))); err != nil && !errors.Is(err, os.ErrNotExist) {
		return errs.Wrapf(err, "delete blob %q", storagePath)
	}
	return nil
}

// Open returns a reader for a stored blob.
func (s *FilesystemStore) Open(storagePath string) (*os.File, error) {
	clean := path.Clean("/" + strings.TrimSpace(storagePath))
	return os.Open(filepath.Join(s.root, filepath.FromSlash(clean)))
}

func safeSegment(s string) bool {
	if s == "" || s == "." || s == ".." {
		return false
	}
	return !strings.ContainsAny(s, `/\`)
}

type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
