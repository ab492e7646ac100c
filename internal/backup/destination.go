package backup

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/dmitrijs2005/ballotkeeper/internal/common"
	"github.com/dmitrijs2005/ballotkeeper/internal/filex"
	"github.com/dmitrijs2005/ballotkeeper/internal/netx"
)

// Destination is where a backup is written to or read from.
type Destination interface {
	Write(ctx context.Context, data []byte) error
	Read(ctx context.Context) ([]byte, error)
	String() string
}

// ParseLocation picks a destination from a location string:
//
//	/path/to/backup.json      local file
//	s3://bucket/key           S3 object (bucket may be empty to use cfg.Bucket)
//	https://...               presigned URL
func ParseLocation(loc string, cfg S3Config) (Destination, error) {
	loc = strings.TrimSpace(loc)
	switch {
	case loc == "":
		return nil, common.Validationf("backup location is empty")
	case strings.HasPrefix(loc, "s3://"):
		u, err := url.Parse(loc)
		if err != nil {
			return nil, common.Validationf("parse %q: %v", loc, err)
		}
		bucket := u.Host
		if bucket == "" {
			bucket = cfg.Bucket
		}
		key := strings.TrimPrefix(u.Path, "/")
		if bucket == "" || key == "" {
			return nil, common.Validationf("s3 location %q needs a bucket and a key", loc)
		}
		return &S3Destination{cfg: cfg, Bucket: bucket, Key: key}, nil
	case strings.HasPrefix(loc, "http://"), strings.HasPrefix(loc, "https://"):
		return URLDestination(loc), nil
	}
	return FileDestination(loc), nil
}

// FileDestination is a local file path.
type FileDestination string

func (f FileDestination) Write(_ context.Context, data []byte) error {
	if err := filex.WriteFileAtomic(string(f), data, 0o600); err != nil {
		return common.Storagef(err, "write backup")
	}
	return nil
}

func (f FileDestination) Read(_ context.Context) ([]byte, error) {
	data, err := os.ReadFile(string(f))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: backup file %s", common.ErrNotFound, string(f))
		}
		return nil, common.Storagef(err, "read backup")
	}
	return data, nil
}

func (f FileDestination) String() string { return string(f) }

// URLDestination is a presigned HTTP(S) URL.
type URLDestination string

func (u URLDestination) Write(ctx context.Context, data []byte) error {
	if err := netx.Upload(ctx, string(u), data); err != nil {
		return common.Storagef(err, "upload backup")
	}
	return nil
}

func (u URLDestination) Read(ctx context.Context) ([]byte, error) {
	data, err := netx.Download(ctx, string(u))
	if err != nil {
		return nil, common.Storagef(err, "download backup")
	}
	return data, nil
}

// String hides the query string, which carries the signature.
func (u URLDestination) String() string {
	s, _, _ := strings.Cut(string(u), "?")
	return s
}
