package sampletree

import (
	"errors"
	"fmt"
	"strings"

	"github.com/himanishpuri/SampleTree/pkg/sampletree/storage"
)

// OpenStore opens the backend named by uri:
//
//	sqlite://relative/path.db, sqlite:///absolute/path.db
//	redis://[user:pass@]host:port/db, rediss://...
func OpenStore(uri string, opts ...storage.Option) (Backend, error) {
	uri = strings.TrimSpace(uri)
	if uri == "" {
		return nil, errors.New("store URI is required")
	}

	scheme, rest, ok := strings.Cut(uri, "://")
	if !ok {
		return nil, fmt.Errorf("store URI %q has no scheme", uri)
	}

	switch strings.ToLower(scheme) {
	case "sqlite", "sqlite3":
		if rest == "" {
			return nil, fmt.Errorf("store URI %q has no database path", uri)
		}
		s, err := storage.NewSQLiteStore(rest, opts...)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "redis", "rediss":
		s, err := storage.NewRedisStore(uri, opts...)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unsupported store scheme %q (want sqlite:// or redis://)", scheme)
	}
}
