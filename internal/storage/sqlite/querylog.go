package sqlite

import (
	"database/sql"
	"log"
	"time"
)

const slowQueryThreshold = 100 * time.Millisecond

// dbHandle is satisfied by *sql.DB and by loggedDB; Store methods go
// through it so timing instrumentation stays out of their way.
type dbHandle interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
	Begin() (*sql.Tx, error)
	Close() error
}

// loggedDB reports statements that cross slowQueryThreshold.
type loggedDB struct {
	inner *sql.DB
}

func (l *loggedDB) Exec(query string, args ...any) (sql.Result, error) {
	start := time.Now()
	res, err := l.inner.Exec(query, args...)
	logSlow(query, time.Since(start))
	return res, err
}

func (l *loggedDB) Query(query string, args ...any) (*sql.Rows, error) {
	start := time.Now()
	rows, err := l.inner.Query(query, args...)
	logSlow(query, time.Since(start))
	return rows, err
}

func (l *loggedDB) QueryRow(query string, args ...any) *sql.Row {
	start := time.Now()
	row := l.inner.QueryRow(query, args...)
	logSlow(query, time.Since(start))
	return row
}

func (l *loggedDB) Begin() (*sql.Tx, error) {
	return l.inner.Begin()
}

func (l *loggedDB) Close() error {
	return l.inner.Close()
}

func logSlow(query string, d time.Duration) {
	if d < slowQueryThreshold {
		return
	}
	if len(query) > 200 {
		query = query[:200] + "..."
	}
	log.Printf("sqlite: slow query (%s): %s", d.Round(time.Millisecond), query)
}
