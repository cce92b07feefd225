package artifacts

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// DefaultTarget keeps exports in ./exports.
const DefaultTarget = "file://exports"

// S3Options are the S3 settings that do not fit in the target URL.
type S3Options struct {
	Endpoint string
	Region   string
}

// Open resolves an export target URL:
//
//	file://<dir>          local directory (relative paths allowed)
//	s3://<bucket>/<pfx>   S3 or an S3-compatible endpoint
//	gs://<bucket>/<pfx>   GCS (requires -tags gcp)
func Open(ctx context.Context, target string, s3opts S3Options) (Store, error) {
	if target == "" {
		target = DefaultTarget
	}
	scheme, rest, ok := strings.Cut(target, "://")
	if !ok {
		return NewFileStore(target)
	}

	switch scheme {
	case "file":
		if rest == "" {
			return nil, fmt.Errorf("export target %q has no directory", target)
		}
		return NewFileStore(rest)
	case "s3", "gs":
		u, err := url.Parse(target)
		if err != nil {
			return nil, fmt.Errorf("invalid export target %q: %w", target, err)
		}
		if u.Host == "" {
			return nil, fmt.Errorf("export target %q has no bucket", target)
		}
		prefix := strings.TrimPrefix(u.Path, "/")
		if prefix != "" && !strings.HasSuffix(prefix, "/") {
			prefix += "/"
		}
		if scheme == "gs" {
			return openGCS(ctx, u.Host, prefix)
		}
		return NewS3Store(ctx, S3StoreConfig{
			Bucket:   u.Host,
			Prefix:   prefix,
			Region:   s3opts.Region,
			Endpoint: s3opts.Endpoint,
		})
	default:
		return nil, fmt.Errorf("unsupported export target scheme %q", scheme)
	}
}
