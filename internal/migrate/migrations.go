package migrate

import (
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"strings"
)

//go:embed sql/*.sql
var schemaFS embed.FS

// step is one embedded schema file, named NNNN_description.sql.
type step struct {
	version int
	name    string
	ddl     string
}

func schemaSteps() ([]step, error) {
	paths, err := fs.Glob(schemaFS, "sql/*.sql")
	if err != nil {
		return nil, err
	}
	steps := make([]step, 0, len(paths))
	for _, p := range paths {
		name := strings.TrimPrefix(p, "sql/")
		sep := strings.Index(name, "_")
		if sep < 1 {
			return nil, fmt.Errorf("schema file %s: name must start with a version prefix", name)
		}
		version, err := strconv.Atoi(name[:sep])
		if err != nil {
			return nil, fmt.Errorf("schema file %s: %w", name, err)
		}
		ddl, err := fs.ReadFile(schemaFS, p)
		if err != nil {
			return nil, err
		}
		steps = append(steps, step{version: version, name: name, ddl: string(ddl)})
	}
	sort.Slice(steps, func(i, j int) bool { return steps[i].version < steps[j].version })
	return steps, nil
}

// Migrate brings the database up to the current schema. Applied versions are
// tracked in sqlite's user_version pragma; each step runs in its own
// transaction so a failed step leaves the version pointing at the last one
// that completed.
func Migrate(db *sql.DB) error {
	steps, err := schemaSteps()
	if err != nil {
		return err
	}
	var current int
	if err := db.QueryRow(`PRAGMA user_version`).Scan(&current); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	for _, s := range steps {
		if s.version <= current {
			continue
		}
		if err := applyStep(db, s); err != nil {
			return fmt.Errorf("schema step %s: %w", s.name, err)
		}
		current = s.version
	}
	return nil
}

func applyStep(db *sql.DB, s step) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.Exec(s.ddl); err != nil {
		return err
	}
	// pragma arguments cannot be bound
	if _, err := tx.Exec(fmt.Sprintf(`PRAGMA user_version = %d`, s.version)); err != nil {
		return err
	}
	return tx.Commit()
}
