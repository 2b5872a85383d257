// Package migrations 管理對戰結果資料庫的 schema
//
// 遷移檔案嵌入在二進位檔中，啟動時升級到這個版本的程式所需的 schema。
// 資料庫版本比程式新（舊版本程式連到新資料庫）時拒絕啟動，
// 髒狀態需要人工確認後 Force，不自動修復。
package migrations

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed all:migrations
var migrationsFS embed.FS

var (
	// ErrDirty 上次遷移中途失敗
	ErrDirty = errors.New("schema is dirty")
	// ErrSchemaAhead 資料庫版本比程式新
	ErrSchemaAhead = errors.New("schema is newer than this build")
)

// SchemaVersion 嵌入遷移中的最新版本
func SchemaVersion() (uint, error) {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return 0, fmt.Errorf("open migration source: %w", err)
	}
	defer src.Close()

	return lastVersion(src)
}

// lastVersion 沿著 source 走到最後一個版本
func lastVersion(src source.Driver) (uint, error) {
	version, err := src.First()
	if err != nil {
		return 0, fmt.Errorf("read first migration: %w", err)
	}
	for {
		next, err := src.Next(version)
		if errors.Is(err, fs.ErrNotExist) {
			return version, nil
		}
		if err != nil {
			return 0, fmt.Errorf("read migration after %d: %w", version, err)
		}
		version = next
	}
}

// Migrator 對戰結果資料庫的 schema 管理
type Migrator struct {
	migrate *migrate.Migrate
	target  uint
	logger  *slog.Logger
}

// New 建立 Migrator，databaseURL 使用 postgres:// 格式
func New(databaseURL string, logger *slog.Logger) (*Migrator, error) {
	target, err := SchemaVersion()
	if err != nil {
		return nil, err
	}

	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("open migration source: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect migration database: %w", err)
	}

	return &Migrator{
		migrate: m,
		target:  target,
		logger:  logger.With("target_version", target),
	}, nil
}

// Ensure 升級到最新 schema 後關閉連線，啟動流程使用
func Ensure(ctx context.Context, databaseURL string, logger *slog.Logger) error {
	m, err := New(databaseURL, logger)
	if err != nil {
		return err
	}

	upErr := m.Up(ctx)
	if err := m.Close(); err != nil {
		logger.Warn("關閉遷移連線失敗", "error", err)
	}
	return upErr
}

// Up 升級到嵌入的最新版本
//
// ctx 取消時在當前遷移完成後停止。
func (m *Migrator) Up(ctx context.Context) error {
	current, dirty, err := m.Version()
	if err != nil {
		return err
	}
	if dirty {
		return fmt.Errorf("%w: version %d, fix manually then Force", ErrDirty, current)
	}
	if current > m.target {
		return fmt.Errorf("%w: database at %d, build expects %d", ErrSchemaAhead, current, m.target)
	}
	if current == m.target {
		m.logger.Info("資料庫 schema 已是最新", "version", current)
		return nil
	}

	stop := context.AfterFunc(ctx, func() {
		select {
		case m.migrate.GracefulStop <- true:
		default:
		}
	})
	defer stop()

	m.logger.Info("升級資料庫 schema", "from_version", current)
	if err := m.migrate.Migrate(m.target); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate to %d: %w", m.target, err)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("migration interrupted: %w", err)
	}

	m.logger.Info("資料庫 schema 升級完成")
	return nil
}

// Rollback 回滾一個版本，已在初始狀態時不做任何事
func (m *Migrator) Rollback() error {
	current, _, err := m.Version()
	if err != nil {
		return err
	}
	if current == 0 {
		return nil
	}

	if err := m.migrate.Steps(-1); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("rollback from %d: %w", current, err)
	}

	version, _, _ := m.Version()
	m.logger.Info("資料庫 schema 已回滾", "version", version)
	return nil
}

// Force 人工修復髒狀態後標記版本
func (m *Migrator) Force(version uint) error {
	if err := m.migrate.Force(int(version)); err != nil {
		return fmt.Errorf("force version %d: %w", version, err)
	}
	return nil
}

// Version 當前版本，尚未遷移時為 0
func (m *Migrator) Version() (uint, bool, error) {
	version, dirty, err := m.migrate.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("read schema version: %w", err)
	}
	return version, dirty, nil
}

// Close 關閉 source 與資料庫連線
func (m *Migrator) Close() error {
	sourceErr, dbErr := m.migrate.Close()
	return errors.Join(sourceErr, dbErr)
}
