package drivers

import (
	"context"
	"io"
)

// Driver is the common interface all blob store drivers implement.
// Keys are flat strings; the artifact store layers its own naming
// convention on top.
type Driver interface {
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Put(ctx context.Context, key string, data io.Reader) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) ([]string, error)
	Exists(ctx context.Context, key string) (bool, error)
}
