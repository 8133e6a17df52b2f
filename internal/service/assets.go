package service

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/DukeRupert/turnover/internal/domain"
	"github.com/DukeRupert/turnover/internal/filestore"
)

// errNoReference marks a room without a remote file reference.
var errNoReference = errors.New("no file reference")

// resolveAssets looks up every named file concurrently. Results and errors
// are attributed by index. An empty name yields errNoReference without a
// lookup, and a file that is not ready is an error.
func resolveAssets(ctx context.Context, files filestore.Store, names []string) ([]domain.RemoteAsset, []error) {
	assets := make([]domain.RemoteAsset, len(names))
	errs := make([]error, len(names))

	var g errgroup.Group
	for i, name := range names {
		if name == "" {
			errs[i] = errNoReference
			continue
		}
		g.Go(func() error {
			asset, err := files.Get(ctx, name)
			switch {
			case err != nil:
				errs[i] = err
			case !asset.IsReady():
				errs[i] = fmt.Errorf("file %s is %s", name, asset.State)
			default:
				assets[i] = asset
			}
			return nil
		})
	}
	_ = g.Wait()

	return assets, errs
}
