package store

import (
	"errors"
	"fmt"
	"testing"

	"github.com/elasticdoctor/webapp/config"
	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"
)

func TestRebind(t *testing.T) {
	query := `SELECT id FROM users WHERE email = ? AND google_id = ?`

	require.Equal(t, query, newDialect(config.DriverMySQL).rebind(query))
	require.Equal(t,
		`SELECT id FROM users WHERE email = $1 AND google_id = $2`,
		newDialect(config.DriverPostgres).rebind(query),
	)
}

func TestIsUniqueViolation(t *testing.T) {
	require.True(t, isUniqueViolation(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}))
	require.True(t, isUniqueViolation(fmt.Errorf("insert: %w", &pq.Error{Code: "23505"})))
	require.False(t, isUniqueViolation(&mysql.MySQLError{Number: 1452}))
	require.False(t, isUniqueViolation(&pq.Error{Code: "23503"}))
	require.False(t, isUniqueViolation(errors.New("boom")))
}
