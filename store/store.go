// Package store persists pipeline runs with gorm. The schema is managed
// with AutoMigrate on boot; sqlite (pure Go), postgres and mysql drivers
// are supported.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/BaSui01/qaflow/types"
)

// Run is the persisted record of one pipeline execution.
type Run struct {
	ID       string `gorm:"primaryKey;size:36" json:"id"`
	Status   string `gorm:"size:16;index" json:"status"`
	Title    string `gorm:"size:255" json:"title"`
	TestCase string `gorm:"type:text" json:"test_case"`

	ScriptSource string `gorm:"type:text" json:"script_source"`
	ScriptPath   string `gorm:"size:512" json:"script_path"`
	ScriptCached bool   `json:"script_cached"`

	Stdout   string `gorm:"type:text" json:"stdout"`
	Stderr   string `gorm:"type:text" json:"stderr"`
	ExitCode int    `json:"exit_code"`
	TimedOut bool   `json:"timed_out"`

	Verdict   string `gorm:"size:8;index" json:"verdict"`
	Reason    string `gorm:"type:text" json:"reason"`
	ReportRaw string `gorm:"type:text" json:"report_raw"`

	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`

	WriterDuration    time.Duration `json:"writer_duration"`
	RunnerDuration    time.Duration `json:"runner_duration"`
	ValidatorDuration time.Duration `json:"validator_duration"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName keeps the table name stable across gorm naming strategies.
func (Run) TableName() string { return "runs" }

// Open connects to the configured database.
func Open(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "sqlite":
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	case "mysql":
		dialector = mysql.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s (supported: sqlite, postgres, mysql)", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}
	return db, nil
}

// Store provides run persistence.
type Store struct {
	db     *gorm.DB
	logger *zap.Logger
}

// New migrates the schema and returns a Store.
func New(db *gorm.DB, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := db.AutoMigrate(&Run{}); err != nil {
		return nil, fmt.Errorf("failed to auto migrate: %w", err)
	}
	return &Store{
		db:     db,
		logger: logger.With(zap.String("component", "store")),
	}, nil
}

// Create inserts a new run record.
func (s *Store) Create(ctx context.Context, run *Run) error {
	if err := s.db.WithContext(ctx).Create(run).Error; err != nil {
		return types.NewError(types.ErrInternalError, "failed to create run").WithCause(err)
	}
	return nil
}

// Update saves all fields of an existing run record.
func (s *Store) Update(ctx context.Context, run *Run) error {
	if err := s.db.WithContext(ctx).Save(run).Error; err != nil {
		return types.NewError(types.ErrInternalError, "failed to update run").WithCause(err)
	}
	return nil
}

// Get returns the run with the given id.
func (s *Store) Get(ctx context.Context, id string) (*Run, error) {
	var run Run
	err := s.db.WithContext(ctx).First(&run, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, types.NewError(types.ErrRunNotFound, fmt.Sprintf("run %s not found", id)).WithHTTPStatus(404)
	}
	if err != nil {
		return nil, types.NewError(types.ErrInternalError, "failed to load run").WithCause(err)
	}
	return &run, nil
}

// List returns runs ordered newest first, with the total count.
func (s *Store) List(ctx context.Context, limit, offset int) ([]Run, int64, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	var total int64
	if err := s.db.WithContext(ctx).Model(&Run{}).Count(&total).Error; err != nil {
		return nil, 0, types.NewError(types.ErrInternalError, "failed to count runs").WithCause(err)
	}

	var runs []Run
	err := s.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&runs).Error
	if err != nil {
		return nil, 0, types.NewError(types.ErrInternalError, "failed to list runs").WithCause(err)
	}
	return runs, total, nil
}
