// Package archive stores opaque blobs such as the trade journal and scan
// reports on local disk or an S3-compatible bucket.
package archive

import (
	"context"
	"fmt"
)

// Store is a flat key/blob store.
type Store interface {
	Write(ctx context.Context, key string, data []byte) error
	Read(ctx context.Context, key string) ([]byte, error)
	// Append adds data at the end of key, creating it when absent.
	Append(ctx context.Context, key string, data []byte) error
	List(ctx context.Context, prefix string) ([]string, error)
	Exists(ctx context.Context, key string) (bool, error)
}

// Options selects and configures a backend.
type Options struct {
	Type string // localfs or s3
	Path string
	S3   S3Config
}

// New builds the backend named by opts.Type.
func New(opts Options) (Store, error) {
	switch opts.Type {
	case "", "localfs":
		return NewLocalFS(opts.Path)
	case "s3":
		return NewS3(opts.S3)
	default:
		return nil, fmt.Errorf("unknown archive type %q", opts.Type)
	}
}
