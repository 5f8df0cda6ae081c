package blobstore

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gamepub/internal/errs"
	"gamepub/internal/ports"
)

func TestFilesystemStorePutAndDelete(t *testing.T) {
	root := t.TempDir()
	store, err := NewFilesystemStore(root)
	if err != nil {
		t.Fatalf("NewFilesystemStore() error = %v", err)
	}
	ctx := context.Background()

	receipt, err := store.Put(ctx, ports.BlobPut{
		GameID:   " Com.X.Y ",
		Version:  "1.0.0",
		Attempt:  "a1",
		FileName: "../../game.zip",
		Size:     5,
		Body:     strings.NewReader("hello"),
	})
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if receipt.GameID != "com.x.y" || receipt.StoragePath != "com.x.y/1.0.0/a1/game.zip" || receipt.Size != 5 {
		t.Fatalf("Put() receipt = %#v", receipt)
	}
	if receipt.SHA256 != "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824" {
		t.Fatalf("Put() sha256 = %s", receipt.SHA256)
	}

	f, err := store.Open(receipt.StoragePath)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	body, _ := io.ReadAll(f)
	_ = f.Close()
	if string(body) != "hello" {
		t.Fatalf("stored body = %q", body)
	}

	if err := store.Delete(ctx, receipt.StoragePath); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "com.x.y", "1.0.0", "a1", "game.zip")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("blob still present: %v", err)
	}
	if err := store.Delete(ctx, receipt.StoragePath); err != nil {
		t.Fatalf("Delete(again) error = %v", err)
	}
}

func TestFilesystemStoreRejectsSizeMismatchAndBadSegments(t *testing.T) {
	store, err := NewFilesystemStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFilesystemStore() error = %v", err)
	}
	ctx := context.Background()

	if _, err := store.Put(ctx, ports.BlobPut{GameID: "com.x.y", Version: "1.0.0", Attempt: "a1", FileName: "g.zip", Size: 10, Body: strings.NewReader("short")}); err == nil {
		t.Fatalf("Put(size mismatch) expected error")
	}
	if _, err := store.Put(ctx, ports.BlobPut{GameID: "..", Version: "1.0.0", Attempt: "a1", FileName: "g.zip", Body: strings.NewReader("x")}); err == nil {
		t.Fatalf("Put(bad game id) expected error")
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := store.Put(cancelled, ports.BlobPut{GameID: "com.x.y", Version: "1.0.0", Attempt: "a2", FileName: "g.zip", Body: strings.NewReader("x")}); !errors.Is(err, context.Canceled) {
		t.Fatalf("Put(cancelled) error = %v", err)
	}
}

func TestFilesystemStoreKeepsAttemptsApart(t *testing.T) {
	root := t.TempDir()
	store, err := NewFilesystemStore(root)
	if err != nil {
		t.Fatalf("NewFilesystemStore() error = %v", err)
	}
	ctx := context.Background()
	put := func(attempt string, body string) (ports.BlobReceipt, error) {
		return store.Put(ctx, ports.BlobPut{GameID: "com.x.y", Version: "1.0.0", Attempt: attempt, FileName: "game.zip", Body: strings.NewReader(body)})
	}

	first, err := put("a1", "first")
	if err != nil {
		t.Fatalf("Put(a1) error = %v", err)
	}
	second, err := put("a2", "second")
	if err != nil {
		t.Fatalf("Put(a2) error = %v", err)
	}
	if first.StoragePath == second.StoragePath {
		t.Fatalf("attempts share storage path %s", first.StoragePath)
	}
	if _, err := put("a1", "clobber"); errs.KindOf(err) != errs.KindConflict {
		t.Fatalf("Put(a1 again) error = %v", err)
	}
	if _, err := put("", "x"); err == nil {
		t.Fatalf("Put(no attempt) expected error")
	}

	body, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(first.StoragePath)))
	if err != nil || string(body) != "first" {
		t.Fatalf("first blob = %q, %v", body, err)
	}

	if _, err := store.Put(ctx, ports.BlobPut{GameID: "com.x.y", Version: "1.0.0", Attempt: "a3", FileName: "g.zip", Size: 10, Body: strings.NewReader("short")}); err == nil {
		t.Fatalf("Put(size mismatch) expected error")
	}
	if _, err := os.Stat(filepath.Join(root, "com.x.y", "1.0.0", "a3")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("failed attempt directory left behind: %v", err)
	}
}
