package ports

import (
	"context"
	"io"
)

// BlobPut describes one archive transfer.
type BlobPut struct {
	GameID   string
	Version  string
	// Attempt separates transfers of the same version; stores must not let two
	// attempts share a storage path.
	Attempt  string
	FileName string
	Size     int64
	Body     io.Reader
}

// BlobReceipt is returned by the store after a successful transfer. GameID is the
// store-assigned identifier and may differ in form from the requested one.
type BlobReceipt struct {
	GameID      string `json:"gameId"`
	StoragePath string `json:"storagePath"`
	Size        int64  `json:"size"`
	SHA256      string `json:"sha256"`
}

// BlobStore holds uploaded game archives.
type BlobStore interface {
	Put(ctx context.Context, input BlobPut) (BlobReceipt, error)
	Delete(ctx context.Context, storagePath string) error
}
