package sqlstore

import (
	"strings"

	"github.com/dmitrijs2005/ballotkeeper/internal/common"
	"github.com/dmitrijs2005/ballotkeeper/internal/dbx"
)

// Dialect describes how to reach one SQL database flavour.
type Dialect struct {
	// Name is the engine setting that selects the dialect.
	Name string
	// Driver is the database/sql driver name.
	Driver string
	// Goose is the goose dialect name.
	Goose string
	// Dir is the migration directory inside migrations.FS.
	Dir         string
	Placeholder dbx.Placeholder
	// MaxOpenConns caps the pool; 0 leaves the driver default.
	MaxOpenConns int
}

var (
	// SQLite is the embedded default (modernc.org/sqlite, no cgo). A single
	// connection keeps ":memory:" databases coherent and serializes writers.
	SQLite = Dialect{
		Name:         "sqlite",
		Driver:       "sqlite",
		Goose:        "sqlite3",
		Dir:          "sqlite",
		Placeholder:  dbx.Question,
		MaxOpenConns: 1,
	}

	// Postgres uses the pgx stdlib driver.
	Postgres = Dialect{
		Name:        "postgres",
		Driver:      "pgx",
		Goose:       "postgres",
		Dir:         "postgres",
		Placeholder: dbx.Dollar,
	}
)

// DialectFor returns the dialect named by an engine setting.
func DialectFor(name string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "sqlite", "sqlite3", "":
		return SQLite, nil
	case "postgres", "postgresql", "pgx":
		return Postgres, nil
	}
	return Dialect{}, common.Validationf("unknown sql engine %q", name)
}
