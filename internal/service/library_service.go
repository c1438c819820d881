package service

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync/atomic"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/polymath/internal/filestore"
	"github.com/xxxsen/polymath/internal/library"
	appErr "github.com/xxxsen/polymath/internal/pkg/errors"
)

const libraryFileSuffix = ".json"

// LibrarySource is one store of library documents. Every loaded chunk is
// stamped with AccessTag when it is set.
type LibrarySource struct {
	Name      string
	Store     filestore.Store
	Prefix    string
	AccessTag string
}

// LibraryService serves the merged library of all sources. Readers always
// see a complete library; Reload swaps in a new one only when every source
// loaded.
type LibraryService struct {
	sources []LibrarySource
	current atomic.Pointer[library.Library]
}

func NewLibraryService(sources ...LibrarySource) *LibraryService {
	return &LibraryService{sources: sources}
}

// Current returns the served library. It is never modified after being
// published and must not be modified by callers.
func (s *LibraryService) Current() *library.Library {
	if lib := s.current.Load(); lib != nil {
		return lib
	}
	return library.New(library.OmitNothing())
}

func (s *LibraryService) Reload(ctx context.Context) error {
	logger := logutil.GetLogger(ctx)
	merged := library.New(library.OmitNothing())
	documents := 0
	for _, src := range s.sources {
		n, err := s.loadSource(ctx, src, merged)
		if err != nil {
			logger.Error("load library source failed, keeping previous library", zap.String("source", src.Name), zap.Error(err))
			return fmt.Errorf("library source %s: %w", src.Name, err)
		}
		documents += n
	}
	if documents == 0 {
		return fmt.Errorf("%w: no library documents found", appErr.ErrNotFound)
	}
	s.current.Store(merged)
	logger.Info("library reloaded", zap.Int("documents", documents), zap.Int("chunks", merged.Len()))
	return nil
}

func (s *LibraryService) loadSource(ctx context.Context, src LibrarySource, into *library.Library) (int, error) {
	keys, err := src.Store.List(ctx, libraryFileSuffix)
	if err != nil {
		return 0, err
	}
	prefix := strings.Trim(src.Prefix, "/")
	count := 0
	for _, key := range keys {
		if prefix != "" && !strings.HasPrefix(key, prefix+"/") {
			continue
		}
		lib, err := loadFromStore(ctx, src.Store, key, src.AccessTag)
		if err != nil {
			return 0, err
		}
		if err := into.Extend(lib); err != nil {
			return 0, fmt.Errorf("merge %s: %w", key, err)
		}
		count++
		logutil.GetLogger(ctx).Debug("library document loaded",
			zap.String("source", src.Name), zap.String("key", key), zap.Int("chunks", lib.Len()))
	}
	return count, nil
}

func loadFromStore(ctx context.Context, store filestore.Store, key, accessTag string) (*library.Library, error) {
	rc, err := store.Open(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	var opts []library.LoadOption
	if accessTag != "" {
		opts = append(opts, library.WithAccessTag(accessTag))
	}
	lib, err := library.Load(data, opts...)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", key, err)
	}
	return lib, nil
}

// LoadLibraryFiles merges the given library files, later files winning on
// id collisions.
func LoadLibraryFiles(paths ...string) (*library.Library, error) {
	merged := library.New(library.OmitNothing())
	for _, path := range paths {
		lib, err := library.LoadFile(path)
		if err != nil {
			return nil, err
		}
		if err := merged.Extend(lib); err != nil {
			return nil, fmt.Errorf("merge %s: %w", path, err)
		}
	}
	return merged, nil
}
