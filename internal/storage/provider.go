package storage

import (
	"context"
	"io"
)

type Object struct {
	Name string
	Size int64
}

// ProbeResult distinguishes a missing object from a failed lookup so callers
// never branch on a transport error.
type ProbeResult int

const (
	ProbeFailed ProbeResult = iota
	ObjectExists
	ObjectAbsent
)

func (r ProbeResult) String() string {
	switch r {
	case ObjectExists:
		return "exists"
	case ObjectAbsent:
		return "absent"
	default:
		return "failed"
	}
}

type Provider interface {
	CreateBucket(ctx context.Context, bucket string) error

	GetObject(ctx context.Context, bucket, key string) ([]byte, error)

	DownloadObject(ctx context.Context, bucket, key, filename string) error

	PutObject(ctx context.Context, bucket, key string, data io.Reader) error

	ListObjects(ctx context.Context, bucket, prefix string) ([]Object, error)

	ProbeObject(ctx context.Context, bucket, key string) (ProbeResult, error)
}
