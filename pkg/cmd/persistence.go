package cmd

import (
	"context"
	"log/slog"
	"strings"

	"github.com/chutney-testing/chutney-suite/pkg/persistence"
	"github.com/chutney-testing/chutney-suite/pkg/persistence/file"
	"github.com/chutney-testing/chutney-suite/pkg/persistence/postgresql"
)

// NewPersistence picks the store from the URL scheme. URLs without a known
// scheme are file directories.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, error) {
	switch parsePersistenceProvider(databaseURL) {
	case "postgresql":
		store, err := postgresql.NewPersistence(ctx, logger, databaseURL)
		if err != nil {
			return nil, err
		}

		return store, nil
	default:
		return file.NewPersistence(databaseURL), nil
	}
}

func parsePersistenceProvider(databaseURL string) string {
	provider, _, found := strings.Cut(databaseURL, "://")
	if !found {
		return "file"
	}

	switch provider {
	case "postgres", "postgresql":
		return "postgresql"
	default:
		return "file"
	}
}
