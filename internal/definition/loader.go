package definition

import (
	"context"
	"errors"
	"fmt"

	"github.com/vk/accgraph/internal/ctxlog"
	"github.com/vk/accgraph/internal/fsutil"
)

// Loader is a format-specific definition file reader.
type Loader interface {
	// Extensions lists the file suffixes the loader reads, e.g. ".hcl".
	Extensions() []string
	// LoadFile parses one file into a model.
	LoadFile(ctx context.Context, path string) (*Model, error)
}

// Load finds every definition file under paths, hands each to the loader
// registered for its extension and merges the results. Errors from all files
// are reported together.
func Load(ctx context.Context, loaders []Loader, paths ...string) (*Model, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Definition loader started.", "path_count", len(paths), "loaders", len(loaders))

	var exts []string
	for _, l := range loaders {
		exts = append(exts, l.Extensions()...)
	}
	if len(exts) == 0 {
		return nil, errors.New("no definition loaders configured")
	}

	files, err := fsutil.FindFiles(paths, exts...)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no definition files %v found in %v", exts, paths)
	}
	logger.Debug("Discovered definition files.", "count", len(files))

	model := &Model{}
	var errs []error
	for _, file := range files {
		l := loaderFor(loaders, file)
		m, err := l.LoadFile(ctx, file)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		for _, p := range m.Pipelines {
			if p.File == "" {
				p.File = file
			}
		}
		model.Pipelines = append(model.Pipelines, m.Pipelines...)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	if err := model.Validate(); err != nil {
		return nil, err
	}

	logger.Debug("Definition loading complete.", "files", len(files), "pipelines", len(model.Pipelines))
	return model, nil
}

func loaderFor(loaders []Loader, file string) Loader {
	for _, l := range loaders {
		if fsutil.HasExtension(file, l.Extensions()...) {
			return l
		}
	}
	// FindFiles only returns files with a registered extension.
	panic("no loader for " + file)
}
