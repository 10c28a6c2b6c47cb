package sqlite

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	domain "github.com/ethica-ai/ethica-relay/internal/domain/analysis"
)

// record is the gorm model behind domain.Record.
type record struct {
	ID           string    `gorm:"primaryKey;size:36"`
	ScenarioID   string    `gorm:"size:64;not null"`
	Source       string    `gorm:"size:16;not null"`
	Reason       string    `gorm:"size:16"`
	ErrorMessage string    `gorm:"type:text"`
	ApprovalType string    `gorm:"size:16"`
	Client       string    `gorm:"size:128"`
	RequestBody  string    `gorm:"type:text"`
	ResultJSON   string    `gorm:"type:text"`
	ObjectURL    string    `gorm:"size:512"`
	CreatedAt    time.Time `gorm:"index"`
}

func (record) TableName() string { return "ethica_analyses" }

// RecordRepository keeps the relay archive in a local SQLite file.
type RecordRepository struct {
	gorm *gorm.DB
}

// Open initializes the SQLite-backed archive at path (":memory:" works for tests).
func Open(path string, silent bool) (*RecordRepository, error) {
	cfg := &gorm.Config{}
	if silent {
		cfg.Logger = logger.Default.LogMode(logger.Silent)
	}
	db, err := gorm.Open(sqlite.Open(path), cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.AutoMigrate(&record{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	if err := db.Exec("PRAGMA journal_mode=WAL").Error; err != nil {
		logrus.WithError(err).Warn("enable WAL mode")
	}
	if sqlDB, err := db.DB(); err == nil {
		// one writer keeps ":memory:" databases on a single connection
		sqlDB.SetMaxOpenConns(1)
	}
	return &RecordRepository{gorm: db}, nil
}

// Close closes the underlying database connection.
func (r *RecordRepository) Close() error {
	if r == nil {
		return nil
	}
	sqlDB, err := r.gorm.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (r *RecordRepository) Save(ctx context.Context, rec *domain.Record) error {
	row := record{
		ID:           string(rec.ID),
		ScenarioID:   rec.ScenarioID,
		Source:       string(rec.Source),
		Reason:       string(rec.Reason),
		ErrorMessage: rec.Error,
		ApprovalType: string(rec.ApprovalType),
		Client:       rec.Client,
		RequestBody:  rec.Request,
		ResultJSON:   rec.Result,
		ObjectURL:    rec.ObjectURL,
		CreatedAt:    rec.CreatedAt,
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now()
	}
	return r.gorm.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"result_json", "object_url"}),
	}).Create(&row).Error
}

func (r *RecordRepository) Get(ctx context.Context, id domain.RecordID) (*domain.Record, error) {
	var row record
	err := r.gorm.WithContext(ctx).Where("id = ?", string(id)).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return row.toDomain(), nil
}

func (r *RecordRepository) Paginate(ctx context.Context, page, pageSize int) ([]*domain.Record, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	var rows []record
	err := r.gorm.WithContext(ctx).
		Order("created_at DESC").Order("id DESC").
		Limit(pageSize).Offset((page - 1) * pageSize).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Record, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toDomain())
	}
	return out, nil
}

func (r *RecordRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.gorm.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (row record) toDomain() *domain.Record {
	return &domain.Record{
		ID:           domain.RecordID(row.ID),
		ScenarioID:   row.ScenarioID,
		Source:       domain.Source(row.Source),
		Reason:       domain.Reason(row.Reason),
		Error:        row.ErrorMessage,
		ApprovalType: domain.ApprovalType(row.ApprovalType),
		Client:       row.Client,
		Request:      row.RequestBody,
		Result:       row.ResultJSON,
		ObjectURL:    row.ObjectURL,
		CreatedAt:    row.CreatedAt,
	}
}
