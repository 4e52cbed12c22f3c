package visitor

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	. "github.com/akorchagin/privratnik/internal/logging"
)

var (
	// ErrNotFound is returned when no row exists for the chat id.
	ErrNotFound = errors.New("visitor not found")
	// ErrExists is returned by Create when the chat id is already registered.
	ErrExists = errors.New("visitor already exists")
)

// Store is the persistence contract the gate and handlers depend on.
// Every operation runs in its own transaction; single-row atomicity only.
type Store interface {
	Get(ctx context.Context, chatID int64) (*Visitor, error)
	Create(ctx context.Context, v *Visitor) error
	UpdateStatus(ctx context.Context, chatID int64, status Status) error
	UpdateModel(ctx context.Context, chatID int64, model string) error
	ListAll(ctx context.Context) ([]Visitor, error)
	ListAdmins(ctx context.Context) ([]Visitor, error)
}

// GormStore implements Store on gorm.
type GormStore struct {
	db *gorm.DB
}

// Open connects to the visitor database and runs migrations.
// A non-empty Postgres DSN wins; otherwise path names a SQLite file.
func Open(dsn, path string) (*GormStore, error) {
	var dialector gorm.Dialector
	if dsn != "" {
		dialector = postgres.Open(dsn)
		L_debug("visitor: opening postgres store")
	} else {
		dialector = sqlite.Open(path)
		L_debug("visitor: opening sqlite store", "path", path)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect visitor database: %w", err)
	}

	store := &GormStore{db: db}
	if err := store.Migrate(); err != nil {
		return nil, err
	}
	return store, nil
}

// NewGormStore wraps a pre-configured *gorm.DB (used by tests).
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Migrate creates or extends the visitor table. Additive columns only.
func (s *GormStore) Migrate() error {
	if err := s.db.AutoMigrate(&Visitor{}); err != nil {
		return fmt.Errorf("visitor migration failed: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *GormStore) Get(ctx context.Context, chatID int64) (*Visitor, error) {
	var v Visitor
	err := s.db.WithContext(ctx).First(&v, "chat_id = ?", chatID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load visitor %d: %w", chatID, err)
	}
	return &v, nil
}

func (s *GormStore) Create(ctx context.Context, v *Visitor) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&Visitor{}).Where("chat_id = ?", v.ChatID).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check visitor %d: %w", v.ChatID, err)
	}
	if count > 0 {
		return ErrExists
	}

	if err := s.db.WithContext(ctx).Create(v).Error; err != nil {
		// Concurrent first contact can slip past the pre-check; surface the
		// primary-key violation as the same conflict.
		var existing Visitor
		if s.db.WithContext(ctx).First(&existing, "chat_id = ?", v.ChatID).Error == nil {
			return ErrExists
		}
		return fmt.Errorf("failed to create visitor %d: %w", v.ChatID, err)
	}
	L_info("visitor: created", "chatID", v.ChatID, "username", v.Username, "status", v.Status.String(), "isAdmin", v.IsAdmin)
	return nil
}

func (s *GormStore) UpdateStatus(ctx context.Context, chatID int64, status Status) error {
	result := s.db.WithContext(ctx).Model(&Visitor{}).Where("chat_id = ?", chatID).Update("status", status)
	if result.Error != nil {
		return fmt.Errorf("failed to update status for %d: %w", chatID, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	L_info("visitor: status changed", "chatID", chatID, "status", status.String())
	return nil
}

func (s *GormStore) UpdateModel(ctx context.Context, chatID int64, model string) error {
	result := s.db.WithContext(ctx).Model(&Visitor{}).Where("chat_id = ?", chatID).Update("model", model)
	if result.Error != nil {
		return fmt.Errorf("failed to update model for %d: %w", chatID, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	L_info("visitor: model changed", "chatID", chatID, "model", model)
	return nil
}

func (s *GormStore) ListAll(ctx context.Context) ([]Visitor, error) {
	var visitors []Visitor
	if err := s.db.WithContext(ctx).Order("created_at").Find(&visitors).Error; err != nil {
		return nil, fmt.Errorf("failed to list visitors: %w", err)
	}
	return visitors, nil
}

func (s *GormStore) ListAdmins(ctx context.Context) ([]Visitor, error) {
	var admins []Visitor
	if err := s.db.WithContext(ctx).Where("is_admin = ?", true).Order("created_at").Find(&admins).Error; err != nil {
		return nil, fmt.Errorf("failed to list admins: %w", err)
	}
	return admins, nil
}
