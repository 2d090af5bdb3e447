package database

import (
	"database/sql"
)

type PgPokerRepository struct {
	conn *sql.DB
}

func NewPgPokerRepository(dsn string) (*PgPokerRepository, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	return &PgPokerRepository{conn: db}, nil
}

func (db *PgPokerRepository) Ping() error {
	return db.conn.Ping()
}

func (db *PgPokerRepository) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}
