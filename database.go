package main

import (
	"database/sql"
	"time"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

// DB wraps the SQLite database connection
type DB struct {
	conn *sql.DB
}

// PlayerRow represents a player account
type PlayerRow struct {
	ID        int64
	Username  string
	PassHash  string
	CreatedAt time.Time
}

// RatingRow represents a player's standing on the leaderboard
type RatingRow struct {
	PlayerID int64  `json:"playerId"`
	Username string `json:"username"`
	Wins     int    `json:"wins"`
	Losses   int    `json:"losses"`
	Points   int    `json:"points"`
}

// OpenDB opens (or creates) the SQLite database
func OpenDB(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, err
	}
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates tables if they don't exist
func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS players (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		pass_hash TEXT NOT NULL DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		last_seen DATETIME
	);

	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS matches (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		room_name TEXT NOT NULL,
		winner_id INTEGER NOT NULL REFERENCES players(id),
		loser_id INTEGER NOT NULL REFERENCES players(id),
		winner_score INTEGER NOT NULL,
		loser_score INTEGER NOT NULL,
		duration REAL NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS ratings (
		player_id INTEGER PRIMARY KEY REFERENCES players(id),
		wins INTEGER NOT NULL DEFAULT 0,
		losses INTEGER NOT NULL DEFAULT 0,
		points INTEGER NOT NULL DEFAULT 0
	);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// CreatePlayer inserts an account with an empty rating row
func (db *DB) CreatePlayer(username, passHash string) (int64, error) {
	res, err := db.conn.Exec(
		"INSERT INTO players (username, pass_hash) VALUES (?, ?)",
		username, passHash,
	)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	_, err = db.conn.Exec("INSERT INTO ratings (player_id) VALUES (?)", id)
	return id, err
}

// GetPlayerByUsername returns the account or nil
func (db *DB) GetPlayerByUsername(username string) (*PlayerRow, error) {
	row := db.conn.QueryRow(
		"SELECT id, username, pass_hash FROM players WHERE username = ?",
		username,
	)
	var p PlayerRow
	if err := row.Scan(&p.ID, &p.Username, &p.PassHash); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

// UsernameExists checks for a taken username
func (db *DB) UsernameExists(username string) (bool, error) {
	var n int
	err := db.conn.QueryRow("SELECT COUNT(*) FROM players WHERE username = ?", username).Scan(&n)
	return n > 0, err
}

// TouchLastSeen records presence activity for an identity
func (db *DB) TouchLastSeen(playerID int64) error {
	_, err := db.conn.Exec("UPDATE players SET last_seen = CURRENT_TIMESTAMP WHERE id = ?", playerID)
	return err
}

// GetSetting returns a settings value, or ""
func (db *DB) GetSetting(key string) string {
	var v string
	if err := db.conn.QueryRow("SELECT value FROM settings WHERE key = ?", key).Scan(&v); err != nil {
		return ""
	}
	return v
}

// SetSetting upserts a settings value
func (db *DB) SetSetting(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value,
	)
	return err
}

// RecordMatch persists a finished match and bumps both ratings.
// Implements ResultSink.
func (db *DB) RecordMatch(roomName string, winner, loser Member, winnerScore, loserScore int, duration time.Duration) {
	tx, err := db.conn.Begin()
	if err != nil {
		logrus.WithError(err).Error("record match: begin")
		return
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO matches (room_name, winner_id, loser_id, winner_score, loser_score, duration)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		roomName, winner.ID, loser.ID, winnerScore, loserScore, duration.Seconds(),
	)
	if err != nil {
		logrus.WithError(err).Error("record match: insert")
		return
	}
	if _, err = tx.Exec(
		"UPDATE ratings SET wins = wins + 1, points = points + ? WHERE player_id = ?",
		winnerScore, winner.ID,
	); err != nil {
		logrus.WithError(err).Error("record match: winner rating")
		return
	}
	if _, err = tx.Exec(
		"UPDATE ratings SET losses = losses + 1, points = points + ? WHERE player_id = ?",
		loserScore, loser.ID,
	); err != nil {
		logrus.WithError(err).Error("record match: loser rating")
		return
	}
	if err = tx.Commit(); err != nil {
		logrus.WithError(err).Error("record match: commit")
	}
}

// Leaderboard returns the top rated players
func (db *DB) Leaderboard(limit int) ([]RatingRow, error) {
	rows, err := db.conn.Query(
		`SELECT r.player_id, p.username, r.wins, r.losses, r.points
		 FROM ratings r JOIN players p ON p.id = r.player_id
		 ORDER BY r.points DESC, r.wins DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RatingRow
	for rows.Next() {
		var r RatingRow
		if err := rows.Scan(&r.PlayerID, &r.Username, &r.Wins, &r.Losses, &r.Points); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
