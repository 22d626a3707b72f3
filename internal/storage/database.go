package storage

import (
	"database/sql"
	"fmt"
	"strings"

	"coursehub/internal/config"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"
)

const defaultMySQLParams = "parseTime=true&charset=utf8mb4&loc=UTC"

// Open connects to the configured database for the given driver.
func Open(dbType string, cfg *config.Config) (*sql.DB, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config required")
	}
	dbCfg, ok := cfg.Databases[dbType]
	if !ok {
		return nil, fmt.Errorf("database config for %s not found", dbType)
	}

	var (
		db  *sql.DB
		err error
	)

	switch strings.ToLower(dbType) {
	case "sqlite", "sqlite3":
		if dbCfg.DSN == "" {
			return nil, fmt.Errorf("sqlite dsn must be provided")
		}
		db, err = sql.Open("sqlite3", sqliteDSN(dbCfg.DSN))
		if err != nil {
			return nil, fmt.Errorf("open sqlite database: %w", err)
		}
		if strings.Contains(dbCfg.DSN, ":memory:") {
			// every pooled connection would otherwise get its own empty database
			db.SetMaxOpenConns(1)
		}
		var fk int
		if err := db.QueryRow("PRAGMA foreign_keys").Scan(&fk); err != nil {
			db.Close()
			return nil, fmt.Errorf("check sqlite foreign keys: %w", err)
		}
		if fk != 1 {
			db.Close()
			return nil, fmt.Errorf("sqlite foreign keys are disabled")
		}
	case "mysql":
		params := dbCfg.Params
		if params == "" {
			params = defaultMySQLParams
		}
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?%s",
			dbCfg.Username,
			dbCfg.Password,
			dbCfg.Host,
			dbCfg.Port,
			dbCfg.DBName,
			params,
		)
		db, err = sql.Open("mysql", dsn)
		if err != nil {
			return nil, fmt.Errorf("open mysql database: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported driver: %s", dbType)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// sqliteDSN turns on foreign keys for every connection the pool opens.
// The pragma is per-connection, so it has to travel in the DSN.
func sqliteDSN(dsn string) string {
	if strings.Contains(dsn, "_foreign_keys=") || strings.Contains(dsn, "_fk=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_foreign_keys=on"
}

// Migrate ensures the required tables are present.
func Migrate(db *sql.DB, driver string) error {
	var stmts []string
	switch strings.ToLower(driver) {
	case "sqlite", "sqlite3":
		stmts = []string{
			`CREATE TABLE IF NOT EXISTS users (
				id TEXT PRIMARY KEY,
				username TEXT NOT NULL UNIQUE,
				email TEXT NOT NULL UNIQUE,
				password_hash TEXT NOT NULL,
				first_name TEXT NOT NULL,
				last_name TEXT NOT NULL,
				role TEXT NOT NULL,
				profile_image TEXT NOT NULL DEFAULT '',
				created_at DATETIME NOT NULL,
				updated_at DATETIME NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS user_tokens (
				token TEXT PRIMARY KEY,
				user_id TEXT NOT NULL,
				created_at DATETIME NOT NULL,
				expires_at DATETIME NOT NULL,
				FOREIGN KEY(user_id) REFERENCES users(id) ON DELETE CASCADE
			)`,
			`CREATE INDEX IF NOT EXISTS idx_user_tokens_user ON user_tokens(user_id)`,
			`CREATE INDEX IF NOT EXISTS idx_user_tokens_expiry ON user_tokens(expires_at)`,
			`CREATE TABLE IF NOT EXISTS courses (
				id TEXT PRIMARY KEY,
				title TEXT NOT NULL,
				description TEXT NOT NULL,
				category TEXT NOT NULL,
				difficulty TEXT NOT NULL,
				instructor_id TEXT NOT NULL,
				price REAL NOT NULL DEFAULT 0,
				rating REAL NOT NULL DEFAULT 0,
				total_enrolled INTEGER NOT NULL DEFAULT 0,
				duration REAL NOT NULL DEFAULT 0,
				image TEXT NOT NULL DEFAULT '',
				is_featured BOOLEAN NOT NULL DEFAULT 0,
				created_at DATETIME NOT NULL,
				updated_at DATETIME NOT NULL,
				FOREIGN KEY(instructor_id) REFERENCES users(id) ON DELETE CASCADE
			)`,
			`CREATE INDEX IF NOT EXISTS idx_courses_created_at ON courses(created_at)`,
			`CREATE TABLE IF NOT EXISTS lessons (
				id TEXT PRIMARY KEY,
				course_id TEXT NOT NULL,
				title TEXT NOT NULL,
				description TEXT NOT NULL,
				duration INTEGER NOT NULL DEFAULT 0,
				position INTEGER NOT NULL,
				video_url TEXT NOT NULL DEFAULT '',
				materials TEXT NOT NULL DEFAULT '[]',
				FOREIGN KEY(course_id) REFERENCES courses(id) ON DELETE CASCADE
			)`,
			`CREATE INDEX IF NOT EXISTS idx_lessons_course ON lessons(course_id, position)`,
			`CREATE TABLE IF NOT EXISTS enrollments (
				id TEXT PRIMARY KEY,
				student_id TEXT NOT NULL,
				course_id TEXT NOT NULL,
				enrolled_at DATETIME NOT NULL,
				completed_at DATETIME,
				progress REAL NOT NULL DEFAULT 0,
				status TEXT NOT NULL DEFAULT 'active',
				certificate_url TEXT NOT NULL DEFAULT '',
				last_accessed_at DATETIME NOT NULL,
				UNIQUE(student_id, course_id),
				FOREIGN KEY(student_id) REFERENCES users(id) ON DELETE CASCADE,
				FOREIGN KEY(course_id) REFERENCES courses(id) ON DELETE CASCADE
			)`,
			`CREATE INDEX IF NOT EXISTS idx_enrollments_course ON enrollments(course_id)`,
			`CREATE TABLE IF NOT EXISTS lesson_progress (
				enrollment_id TEXT NOT NULL,
				lesson_id TEXT NOT NULL,
				completed_at DATETIME NOT NULL,
				PRIMARY KEY(enrollment_id, lesson_id),
				FOREIGN KEY(enrollment_id) REFERENCES enrollments(id) ON DELETE CASCADE,
				FOREIGN KEY(lesson_id) REFERENCES lessons(id) ON DELETE CASCADE
			)`,
		}
	case "mysql":
		stmts = []string{
			`CREATE TABLE IF NOT EXISTS users (
				id CHAR(36) NOT NULL,
				username VARCHAR(255) NOT NULL UNIQUE,
				email VARCHAR(255) NOT NULL UNIQUE,
				password_hash VARCHAR(255) NOT NULL,
				first_name VARCHAR(255) NOT NULL,
				last_name VARCHAR(255) NOT NULL,
				role VARCHAR(50) NOT NULL,
				profile_image TEXT NOT NULL,
				created_at DATETIME(6) NOT NULL,
				updated_at DATETIME(6) NOT NULL,
				PRIMARY KEY (id)
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
			`CREATE TABLE IF NOT EXISTS user_tokens (
				token VARCHAR(255) NOT NULL PRIMARY KEY,
				user_id CHAR(36) NOT NULL,
				created_at DATETIME(6) NOT NULL,
				expires_at DATETIME(6) NOT NULL,
				INDEX idx_user_tokens_user (user_id),
				INDEX idx_user_tokens_expiry (expires_at),
				CONSTRAINT fk_user_tokens_user FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
			`CREATE TABLE IF NOT EXISTS courses (
				id CHAR(36) NOT NULL,
				title VARCHAR(255) NOT NULL,
				description TEXT NOT NULL,
				category VARCHAR(255) NOT NULL,
				difficulty VARCHAR(50) NOT NULL,
				instructor_id CHAR(36) NOT NULL,
				price DOUBLE NOT NULL DEFAULT 0,
				rating DOUBLE NOT NULL DEFAULT 0,
				total_enrolled INT NOT NULL DEFAULT 0,
				duration DOUBLE NOT NULL DEFAULT 0,
				image TEXT NOT NULL,
				is_featured BOOLEAN NOT NULL DEFAULT FALSE,
				created_at DATETIME(6) NOT NULL,
				updated_at DATETIME(6) NOT NULL,
				PRIMARY KEY (id),
				INDEX idx_courses_created_at (created_at),
				CONSTRAINT fk_courses_instructor FOREIGN KEY (instructor_id) REFERENCES users(id) ON DELETE CASCADE
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
			`CREATE TABLE IF NOT EXISTS lessons (
				id CHAR(36) NOT NULL,
				course_id CHAR(36) NOT NULL,
				title VARCHAR(255) NOT NULL,
				description TEXT NOT NULL,
				duration INT NOT NULL DEFAULT 0,
				position INT NOT NULL,
				video_url TEXT NOT NULL,
				materials MEDIUMTEXT NOT NULL,
				PRIMARY KEY (id),
				INDEX idx_lessons_course (course_id, position),
				CONSTRAINT fk_lessons_course FOREIGN KEY (course_id) REFERENCES courses(id) ON DELETE CASCADE
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
			`CREATE TABLE IF NOT EXISTS enrollments (
				id CHAR(36) NOT NULL,
				student_id CHAR(36) NOT NULL,
				course_id CHAR(36) NOT NULL,
				enrolled_at DATETIME(6) NOT NULL,
				completed_at DATETIME(6) NULL,
				progress DOUBLE NOT NULL DEFAULT 0,
				status VARCHAR(50) NOT NULL DEFAULT 'active',
				certificate_url TEXT NOT NULL,
				last_accessed_at DATETIME(6) NOT NULL,
				PRIMARY KEY (id),
				UNIQUE KEY uniq_student_course (student_id, course_id),
				INDEX idx_enrollments_course (course_id),
				CONSTRAINT fk_enrollments_student FOREIGN KEY (student_id) REFERENCES users(id) ON DELETE CASCADE,
				CONSTRAINT fk_enrollments_course FOREIGN KEY (course_id) REFERENCES courses(id) ON DELETE CASCADE
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
			`CREATE TABLE IF NOT EXISTS lesson_progress (
				enrollment_id CHAR(36) NOT NULL,
				lesson_id CHAR(36) NOT NULL,
				completed_at DATETIME(6) NOT NULL,
				PRIMARY KEY (enrollment_id, lesson_id),
				CONSTRAINT fk_progress_enrollment FOREIGN KEY (enrollment_id) REFERENCES enrollments(id) ON DELETE CASCADE,
				CONSTRAINT fk_progress_lesson FOREIGN KEY (lesson_id) REFERENCES lessons(id) ON DELETE CASCADE
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
