// Package sqlitepath resolves where the SQLite databases live.
package sqlitepath

import (
	"os"
	"strings"

	"github.com/papercomputeco/insurag/pkg/dotdir"
)

// Default database file names inside the .insurag/ directory.
const (
	RecordsDB = "insurag.sqlite"
	VectorsDB = "vectors.sqlite"
)

// EnvSQLite overrides the records database path.
const EnvSQLite = "INSURAG_SQLITE"

// ResolveSQLitePath returns override when set, then $INSURAG_SQLITE for the
// records database, and finally name inside the resolved .insurag/ directory.
func ResolveSQLitePath(override, configDir, name string) (string, error) {
	if strings.TrimSpace(override) != "" {
		return override, nil
	}

	if name == RecordsDB {
		if envPath := strings.TrimSpace(os.Getenv(EnvSQLite)); envPath != "" {
			return envPath, nil
		}
	}

	return dotdir.NewManager().Path(configDir, name)
}
