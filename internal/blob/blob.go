// Package blob stores document files off-ledger and addresses them by
// content hash. The ledger only ever sees the returned hash string.
package blob

import (
	"context"
	"io"
)

// Object is a downloaded file stream with its metadata.
type Object struct {
	Body        io.ReadCloser
	ContentType string
	Size        int64
}

// Store uploads document payloads and retrieves them by their content hash.
type Store interface {
	Upload(ctx context.Context, filename, contentType string, r io.Reader, size int64) (cid string, err error)
	Download(ctx context.Context, cid string) (*Object, error)
}
