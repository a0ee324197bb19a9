package repository

import (
	"database/sql"
	"errors"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

const pgUniqueViolation pq.ErrorCode = "23505"

// dialect holds the SQL differences between the supported drivers.
type dialect struct {
	// containsExpr is a literal, case-sensitive substring test on the text column.
	containsExpr string
	// snapshot are the options for read transactions that must see one consistent state.
	snapshot *sql.TxOptions
}

func dialectFor(driverName string) dialect {
	switch driverName {
	case "postgres":
		return dialect{
			containsExpr: "strpos(text, ?) > 0",
			snapshot:     &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true},
		}
	default:
		// A deferred SQLite transaction reads from a single WAL snapshot once started.
		return dialect{
			containsExpr: "instr(text, ?) > 0",
			snapshot:     &sql.TxOptions{},
		}
	}
}

// isUniqueViolation reports whether err is a primary key or unique constraint violation.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == pgUniqueViolation
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
			liteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}

	return false
}
