package store

import (
	"context"
	"database/sql"
	"strconv"
	"strings"

	"github.com/elasticdoctor/webapp/config"
)

// dialect hides the differences between MySQL and Postgres. Queries are
// written with '?' placeholders.
type dialect struct {
	driver string
}

func newDialect(driver string) dialect {
	return dialect{driver: driver}
}

func (d dialect) rebind(query string) string {
	if d.driver != config.DriverPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// insert runs an INSERT and returns the generated id.
func (d dialect) insert(ctx context.Context, db *sql.DB, query string, args ...any) (int64, error) {
	if d.driver == config.DriverPostgres {
		var id int64
		err := db.QueryRowContext(ctx, d.rebind(query)+" RETURNING id", args...).Scan(&id)
		return id, err
	}
	result, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}
