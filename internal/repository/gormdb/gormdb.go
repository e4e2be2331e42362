// Package gormdb implements the repository interfaces on top of GORM.
//
// SQLite (pure Go, via glebarez/sqlite) is the default backend; postgres and
// mysql are selected with database.type. The package hides dialect
// differences behind a few SQL fragments (see contains and equals).
//
// TRANSACTIONS:
// Every repository holds a *gorm.DB. Outside a transaction that is the pool;
// inside WithinTx it is the transaction handle, so code written against
// repository.Store runs unchanged in both cases. Never reach for the outer
// DB from inside fn: with SQLite the pool has a single connection and the
// call would block on the transaction that owns it.
package gormdb

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/sakif/mindflow/internal/config"
	"github.com/sakif/mindflow/internal/model"
	"github.com/sakif/mindflow/internal/repository"
)

const (
	dialectSQLite   = "sqlite"
	dialectPostgres = "postgres"
	dialectMySQL    = "mysql"
)

// compile-time check that *DB implements repository.Store
var _ repository.Store = (*DB)(nil)

// DB is the GORM-backed store. The zero value is not usable; call New.
type DB struct {
	conn    *gorm.DB
	dialect string
}

// New opens the configured database and migrates the schema.
func New(cfg config.DatabaseConfig, log *slog.Logger) (*DB, error) {
	dialector, err := openDialector(cfg)
	if err != nil {
		return nil, err
	}

	conn, err := gorm.Open(dialector, &gorm.Config{
		Logger:         newGormLogger(log),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("gormdb: opening %s database: %w", cfg.Type, err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("gormdb: getting connection pool: %w", err)
	}
	if cfg.Type == dialectSQLite {
		// SQLite allows one writer; a single connection serialises writes
		// instead of surfacing SQLITE_BUSY to callers.
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	db := &DB{conn: conn, dialect: cfg.Type}
	if err := db.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("gormdb: running migrations: %w", err)
	}
	return db, nil
}

func openDialector(cfg config.DatabaseConfig) (gorm.Dialector, error) {
	switch cfg.Type {
	case dialectSQLite:
		if dir := filepath.Dir(cfg.Path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("gormdb: creating data directory: %w", err)
			}
		}
		dsn := cfg.Path + "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
		return sqlite.Open(dsn), nil
	case dialectPostgres:
		return postgres.Open(cfg.DSN), nil
	case dialectMySQL:
		return mysql.Open(cfg.DSN), nil
	default:
		return nil, fmt.Errorf("gormdb: unsupported database type %q", cfg.Type)
	}
}

// newGormLogger routes GORM's own logging into slog. SQL traces only show
// up when the application logger is at debug level.
func newGormLogger(log *slog.Logger) logger.Interface {
	level := logger.Silent
	if log.Enabled(context.Background(), slog.LevelDebug) {
		level = logger.Info
	} else if log.Enabled(context.Background(), slog.LevelWarn) {
		level = logger.Warn
	}
	return logger.New(
		slog.NewLogLogger(log.With(slog.String("component", "gorm")).Handler(), slog.LevelDebug),
		logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
		},
	)
}

func (db *DB) migrate() error {
	return db.conn.AutoMigrate(&model.User{}, &model.Note{}, &model.Tag{}, &model.Link{})
}

// Close closes the underlying connection pool.
func (db *DB) Close() error {
	sqlDB, err := db.conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping checks that the database answers.
func (db *DB) Ping(ctx context.Context) error {
	sqlDB, err := db.conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (db *DB) Users() repository.UserRepository { return &UserDB{conn: db.conn} }
func (db *DB) Notes() repository.NoteRepository { return &NoteDB{conn: db.conn, dialect: db.dialect} }
func (db *DB) Tags() repository.TagRepository   { return &TagDB{conn: db.conn} }
func (db *DB) Links() repository.LinkRepository { return &LinkDB{conn: db.conn} }

// WithinTx runs fn inside a transaction. Nested calls become savepoints.
func (db *DB) WithinTx(ctx context.Context, fn func(tx repository.Store) error) error {
	return db.conn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&DB{conn: tx, dialect: db.dialect})
	})
}

// contains returns a case-sensitive "column contains ?" predicate. LIKE is
// case-insensitive on SQLite and MySQL, so each dialect gets a positional
// string function instead.
func contains(dialect, column string) string {
	switch dialect {
	case dialectPostgres:
		return "STRPOS(" + column + ", ?) > 0"
	case dialectMySQL:
		return "LOCATE(BINARY ?, " + column + ") > 0"
	default:
		return "INSTR(" + column + ", ?) > 0"
	}
}

// equals returns a case-sensitive equality predicate.
func equals(dialect, column string) string {
	if dialect == dialectMySQL {
		return "BINARY " + column + " = ?"
	}
	return column + " = ?"
}
