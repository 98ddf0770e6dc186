package archive

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	gorm_mysql "gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DefaultListLimit caps List when no limit is given
const DefaultListLimit = 50

// ErrNotFound is returned when a record does not exist
var ErrNotFound = errors.New("record not found")

// Store persists finished sessions
type Store interface {
	Save(ctx context.Context, record *Record) error
	Get(ctx context.Context, id uuid.UUID) (*Record, error)
	List(ctx context.Context, limit int) ([]*Record, error)
	Search(ctx context.Context, query string) ([]*Record, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Close() error
}

// DatabaseConfig holds MySQL connection settings
type DatabaseConfig struct {
	Username string `json:"username" yaml:"username"`
	Password string `json:"-" yaml:"password"`
	Host     string `json:"host" yaml:"host"`
	Port     string `json:"port" yaml:"port"`
	Database string `json:"database" yaml:"database"`
}

// Enabled reports whether a database was configured
func (c DatabaseConfig) Enabled() bool {
	return c.Database != ""
}

// DSN formats the config as a go-sql-driver data source name
func (c DatabaseConfig) DSN() string {
	port := c.Port
	if port == "" {
		port = "3306"
	}

	cfg := mysql.NewConfig()
	cfg.User = c.Username
	cfg.Passwd = c.Password
	cfg.Net = "tcp"
	cfg.Addr = fmt.Sprintf("%s:%s", c.Host, port)
	cfg.DBName = c.Database
	cfg.ParseTime = true
	return cfg.FormatDSN()
}

// MySqlStore handles record persistence using GORM
type MySqlStore struct {
	db *gorm.DB
}

// NewMySqlStore opens the database and migrates the records table
func NewMySqlStore(dsn string) (*MySqlStore, error) {
	db, err := gorm.Open(gorm_mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Auto-migrate tables
	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, fmt.Errorf("failed to migrate tables: %w", err)
	}

	return &MySqlStore{db: db}, nil
}

// Save inserts the record, generating an id when missing
func (s *MySqlStore) Save(ctx context.Context, record *Record) error {
	if record == nil {
		return fmt.Errorf("record cannot be nil")
	}
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}

	if err := s.db.WithContext(ctx).Create(record).Error; err != nil {
		return fmt.Errorf("failed to save record: %w", err)
	}
	return nil
}

// Get retrieves a record by id
func (s *MySqlStore) Get(ctx context.Context, id uuid.UUID) (*Record, error) {
	var record Record
	result := s.db.WithContext(ctx).First(&record, "id = ?", id)

	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get record: %w", result.Error)
	}

	return &record, nil
}

// List returns the most recent records first
func (s *MySqlStore) List(ctx context.Context, limit int) ([]*Record, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	var records []*Record
	result := s.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&records)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list records: %w", result.Error)
	}

	return records, nil
}

// Search returns records whose room or transcript contains the query
func (s *MySqlStore) Search(ctx context.Context, query string) ([]*Record, error) {
	pattern := likePattern(query)

	var records []*Record
	result := s.db.WithContext(ctx).
		Where(`room LIKE ? ESCAPE '\\' OR transcript LIKE ? ESCAPE '\\'`, pattern, pattern).
		Order("created_at DESC").Limit(DefaultListLimit).Find(&records)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to search records: %w", result.Error)
	}

	return records, nil
}

// likeEscaper escapes LIKE wildcards so a query matches literally
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likePattern wraps query as a substring pattern, with '\' as the escape character
func likePattern(query string) string {
	return "%" + likeEscaper.Replace(query) + "%"
}

// Delete removes a record
func (s *MySqlStore) Delete(ctx context.Context, id uuid.UUID) error {
	result := s.db.WithContext(ctx).Where("id = ?", id).Delete(&Record{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete record: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Close closes the database connection
func (s *MySqlStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB from gorm.DB: %w", err)
	}
	return sqlDB.Close()
}
