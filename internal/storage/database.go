package storage

import (
	"database/sql"
	"fmt"
	"strings"

	"meetrecap/internal/config"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"
)

// Open connects to the database selected by driver using the matching
// entry in cfg.Databases.
func Open(driver string, cfg *config.Config) (*sql.DB, error) {
	dbCfg, ok := cfg.Databases[driver]
	if !ok {
		return nil, fmt.Errorf("database config for %s not found", driver)
	}

	var (
		db  *sql.DB
		err error
	)

	switch strings.ToLower(driver) {
	case "sqlite", "sqlite3":
		if dbCfg.DSN == "" {
			return nil, fmt.Errorf("sqlite dsn must be provided")
		}
		db, err = sql.Open("sqlite3", dbCfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("open sqlite database: %w", err)
		}
		if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable sqlite foreign keys: %w", err)
		}
	case "mysql":
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?%s",
			dbCfg.Username,
			dbCfg.Password,
			dbCfg.Host,
			dbCfg.Port,
			dbCfg.DBName,
			dbCfg.Params,
		)
		db, err = sql.Open("mysql", dsn)
		if err != nil {
			return nil, fmt.Errorf("open mysql database: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported driver: %s", driver)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// Migrate ensures the required tables are present.
func Migrate(db *sql.DB, driver string) error {
	var stmts []string
	switch strings.ToLower(driver) {
	case "sqlite", "sqlite3":
		stmts = []string{
			`CREATE TABLE IF NOT EXISTS users (
				id TEXT PRIMARY KEY,
				email TEXT NOT NULL UNIQUE,
				name TEXT NOT NULL DEFAULT '',
				created_at DATETIME NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS oauth_tokens (
				user_id TEXT NOT NULL,
				provider TEXT NOT NULL,
				access_token TEXT NOT NULL,
				refresh_token TEXT NOT NULL DEFAULT '',
				expires_at DATETIME,
				updated_at DATETIME NOT NULL,
				PRIMARY KEY (user_id, provider),
				FOREIGN KEY(user_id) REFERENCES users(id) ON DELETE CASCADE
			)`,
			`CREATE TABLE IF NOT EXISTS meetings (
				id TEXT PRIMARY KEY,
				provider TEXT NOT NULL,
				provider_event_id TEXT NOT NULL DEFAULT '',
				title TEXT NOT NULL DEFAULT '',
				start_time DATETIME,
				end_time DATETIME,
				timezone TEXT NOT NULL DEFAULT '',
				organizer_name TEXT NOT NULL DEFAULT '',
				organizer_email TEXT NOT NULL DEFAULT '',
				attendees TEXT NOT NULL DEFAULT '[]'
			)`,
			`CREATE TABLE IF NOT EXISTS recordings (
				id TEXT PRIMARY KEY,
				meeting_id TEXT NOT NULL,
				provider TEXT NOT NULL,
				provider_recording_id TEXT NOT NULL DEFAULT '',
				download_url TEXT NOT NULL DEFAULT '',
				file_extension TEXT NOT NULL DEFAULT '',
				file_mime TEXT NOT NULL DEFAULT '',
				file_path TEXT NOT NULL DEFAULT '',
				duration_seconds INTEGER NOT NULL DEFAULT 0,
				status TEXT NOT NULL DEFAULT 'pending',
				created_at DATETIME NOT NULL,
				updated_at DATETIME NOT NULL,
				FOREIGN KEY(meeting_id) REFERENCES meetings(id) ON DELETE CASCADE
			)`,
			`CREATE INDEX IF NOT EXISTS idx_recordings_meeting ON recordings(meeting_id)`,
			`CREATE INDEX IF NOT EXISTS idx_recordings_status ON recordings(status)`,
			`CREATE TABLE IF NOT EXISTS transcripts (
				recording_id TEXT PRIMARY KEY,
				provider TEXT NOT NULL,
				content_json TEXT NOT NULL DEFAULT '[]',
				content_text TEXT NOT NULL DEFAULT '',
				created_at DATETIME NOT NULL,
				FOREIGN KEY(recording_id) REFERENCES recordings(id) ON DELETE CASCADE
			)`,
			`CREATE TABLE IF NOT EXISTS artifacts (
				meeting_id TEXT PRIMARY KEY,
				decisions TEXT NOT NULL DEFAULT '[]',
				action_items TEXT NOT NULL DEFAULT '[]',
				followups TEXT NOT NULL DEFAULT '[]',
				internal_notes TEXT NOT NULL DEFAULT '{}',
				created_at DATETIME NOT NULL,
				FOREIGN KEY(meeting_id) REFERENCES meetings(id) ON DELETE CASCADE
			)`,
		}
	case "mysql":
		stmts = []string{
			`CREATE TABLE IF NOT EXISTS users (
				id VARCHAR(36) NOT NULL,
				email VARCHAR(255) NOT NULL UNIQUE,
				name VARCHAR(255) NOT NULL DEFAULT '',
				created_at DATETIME NOT NULL,
				PRIMARY KEY (id)
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
			`CREATE TABLE IF NOT EXISTS oauth_tokens (
				user_id VARCHAR(36) NOT NULL,
				provider VARCHAR(50) NOT NULL,
				access_token TEXT NOT NULL,
				refresh_token TEXT,
				expires_at DATETIME,
				updated_at DATETIME NOT NULL,
				PRIMARY KEY (user_id, provider),
				CONSTRAINT fk_oauth_tokens_user FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
			`CREATE TABLE IF NOT EXISTS meetings (
				id VARCHAR(36) NOT NULL,
				provider VARCHAR(50) NOT NULL,
				provider_event_id VARCHAR(255) NOT NULL DEFAULT '',
				title VARCHAR(512) NOT NULL DEFAULT '',
				start_time DATETIME NULL,
				end_time DATETIME NULL,
				timezone VARCHAR(100) NOT NULL DEFAULT '',
				organizer_name VARCHAR(255) NOT NULL DEFAULT '',
				organizer_email VARCHAR(255) NOT NULL DEFAULT '',
				attendees MEDIUMTEXT NOT NULL,
				PRIMARY KEY (id)
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
			`CREATE TABLE IF NOT EXISTS recordings (
				id VARCHAR(36) NOT NULL,
				meeting_id VARCHAR(36) NOT NULL,
				provider VARCHAR(50) NOT NULL,
				provider_recording_id VARCHAR(255) NOT NULL DEFAULT '',
				download_url TEXT,
				file_extension VARCHAR(20) NOT NULL DEFAULT '',
				file_mime VARCHAR(100) NOT NULL DEFAULT '',
				file_path TEXT,
				duration_seconds INT NOT NULL DEFAULT 0,
				status VARCHAR(20) NOT NULL DEFAULT 'pending',
				created_at DATETIME NOT NULL,
				updated_at DATETIME NOT NULL,
				PRIMARY KEY (id),
				INDEX idx_recordings_meeting (meeting_id),
				INDEX idx_recordings_status (status),
				CONSTRAINT fk_recordings_meeting FOREIGN KEY (meeting_id) REFERENCES meetings(id) ON DELETE CASCADE
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
			`CREATE TABLE IF NOT EXISTS transcripts (
				recording_id VARCHAR(36) NOT NULL,
				provider VARCHAR(50) NOT NULL,
				content_json MEDIUMTEXT NOT NULL,
				content_text MEDIUMTEXT NOT NULL,
				created_at DATETIME NOT NULL,
				PRIMARY KEY (recording_id),
				CONSTRAINT fk_transcripts_recording FOREIGN KEY (recording_id) REFERENCES recordings(id) ON DELETE CASCADE
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
			`CREATE TABLE IF NOT EXISTS artifacts (
				meeting_id VARCHAR(36) NOT NULL,
				decisions MEDIUMTEXT NOT NULL,
				action_items MEDIUMTEXT NOT NULL,
				followups MEDIUMTEXT NOT NULL,
				internal_notes MEDIUMTEXT NOT NULL,
				created_at DATETIME NOT NULL,
				PRIMARY KEY (meeting_id),
				CONSTRAINT fk_artifacts_meeting FOREIGN KEY (meeting_id) REFERENCES meetings(id) ON DELETE CASCADE
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
		}
	default:
		return fmt.Errorf("unsupported driver for migration: %s", driver)
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate (%s): %w", driver, err)
		}
	}
	return nil
}
