package object

import (
	"context"
	"io"
)

// ObjectStore defines the contract for retaining uploaded evidence.
// Objects are grouped under a namespace, which is the case id.
type ObjectStore interface {
	Save(ctx context.Context, namespace string, fileName string, r io.Reader) (storageKey string, sizeBytes int64, mimeType string, err error)
	Open(ctx context.Context, storageKey string) (io.ReadCloser, error)
}
