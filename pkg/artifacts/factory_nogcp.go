//go:build !gcp

package artifacts

import (
	"context"
	"errors"
)

func openGCS(context.Context, string, string) (Store, error) {
	return nil, errors.New("GCS export is not enabled in this build (use -tags gcp)")
}
