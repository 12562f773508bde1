//go:build !gcp

package audit

import (
	"context"

	xerrors "QVeritas/internal/errors"
)

func newGCSSink(context.Context, string, string) (Sink, error) {
	return nil, xerrors.New(xerrors.CodeConfiguration, "GCS audit sink is not enabled in this build (use -tags gcp)")
}
