package storage

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrations embed.FS

// MigrationsTable no choca con la tabla por defecto de goose si la base se
// comparte con el backend.
const MigrationsTable = "bot_schema_migrations"

// Open abre la conexión (pgx stdlib) y verifica health. El bot solo guarda
// paneles y rank-ups, con un pool chico alcanza.
func Open(ctx context.Context, url string) (*sql.DB, error) {
	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxIdleTime(10 * time.Minute)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

// Migrate aplica las migraciones embebidas y loguea la versión resultante.
func Migrate(ctx context.Context, db *sql.DB, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}
	goose.SetBaseFS(migrations)
	goose.SetTableName(MigrationsTable)
	goose.SetLogger(gooseLogger{log.Named("migrate").Sugar()})
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("migrate up: %w", err)
	}
	v, err := goose.GetDBVersionContext(ctx, db)
	if err != nil {
		return fmt.Errorf("migrate version: %w", err)
	}
	log.Info("schema ready", zap.String("table", MigrationsTable), zap.Int64("version", v))
	return nil
}

// gooseLogger manda la salida de goose a zap en vez de stdout.
type gooseLogger struct {
	*zap.SugaredLogger
}

func (l gooseLogger) Printf(format string, v ...any) {
	l.Infof(strings.TrimSpace(format), v...)
}
