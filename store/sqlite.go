package store

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS fired_days (
	key TEXT PRIMARY KEY,
	day TEXT NOT NULL
);
`

// SQLite is a file-backed FiredStore. The breaker latch lands here so a
// restart on a halted day cannot re-arm trading.
type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLite{db: db}, nil
}

func (s *SQLite) LoadDay(key string) (string, error) {
	var day string
	err := s.db.QueryRow(`SELECT day FROM fired_days WHERE key = ?`, key).Scan(&day)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return day, nil
}

func (s *SQLite) SaveDay(key, day string) error {
	_, err := s.db.Exec(`
		INSERT INTO fired_days (key, day) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET day = excluded.day`,
		key, day,
	)
	return err
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
