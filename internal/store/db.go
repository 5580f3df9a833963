package store

import (
	"database/sql"
	"fmt"

	"github.com/matheus3301/jobboard/internal/bus"
	_ "github.com/mattn/go-sqlite3"
)

// DB wraps the profile's SQLite database, jobboard.db. It is the durable
// source of truth for everything the daemon serves.
type DB struct {
	*sql.DB
	bus *bus.Bus
}

// Open creates a new SQLite connection with WAL mode and recommended pragmas.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// Verify connection.
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return &DB{DB: db}, nil
}

// Attach makes every later mutation publish a store change event on b.
func (db *DB) Attach(b *bus.Bus) {
	db.bus = b
}

// changed publishes a change event for table unless nothing was touched.
func (db *DB) changed(table, op string, key int64, res sql.Result) {
	if db.bus == nil {
		return
	}
	if res != nil {
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return
		}
	}
	db.bus.Emit(bus.StoreChanged(table), bus.Change{Table: table, Op: op, Key: key})
}

// likeContains escapes s for use as a LIKE substring pattern with ESCAPE '\'.
func likeContains(s string) string {
	return "%" + escapeLike(s) + "%"
}

func escapeLike(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\', '%', '_':
			out = append(out, '\\')
		}
		out = append(out, s[i])
	}
	return string(out)
}
