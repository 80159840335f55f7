// Package store keeps an audit log of remote action calls in a SQL
// database through gorm.
package store

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/open-teleop/vrteleop/pkg/config"
	customlog "github.com/open-teleop/vrteleop/pkg/log"
	"github.com/open-teleop/vrteleop/pkg/processing"
)

// Action call statuses
const (
	StatusPending    = "pending"
	StatusSucceeded  = "succeeded"
	StatusFailed     = "failed"
	StatusSendFailed = "send_failed"
)

// DefaultRecentLimit is used when no limit is given
const DefaultRecentLimit = 50

// ErrUnexpectedData is returned for action events without an ActionEvent payload
var ErrUnexpectedData = errors.New("unexpected event data")

// ActionRecord is one remote action call
type ActionRecord struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	CallID      string     `gorm:"size:64;uniqueIndex" json:"call_id"`
	Action      string     `gorm:"size:32;index" json:"action"`
	Service     string     `gorm:"size:128" json:"service"`
	Status      string     `gorm:"size:16" json:"status"`
	Success     bool       `json:"success"`
	Message     string     `gorm:"type:text" json:"message,omitempty"`
	Error       string     `gorm:"type:text" json:"error,omitempty"`
	RequestedAt time.Time  `gorm:"index" json:"requested_at"`
	RespondedAt *time.Time `json:"responded_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// ActionLog writes action events to the database
type ActionLog struct {
	db     *gorm.DB
	logger customlog.Logger
}

// Open connects with the configured driver and migrates the schema
func Open(cfg config.StoreConfig, logger customlog.Logger) (*ActionLog, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case config.DriverMySQL:
		dialector = mysql.Open(cfg.DSN)
	case config.DriverSQLite:
		dialector = sqlite.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", cfg.Driver, err)
	}

	l, err := New(db, logger)
	if err != nil {
		return nil, err
	}
	logger.Infof("Action log ready (%s)", cfg.Driver)
	return l, nil
}

// New wraps an open gorm connection and migrates the schema
func New(db *gorm.DB, logger customlog.Logger) (*ActionLog, error) {
	if err := db.AutoMigrate(&ActionRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate action log: %w", err)
	}
	return &ActionLog{db: db, logger: logger}, nil
}

// Record stores an action event. Other event kinds are ignored. A result
// that arrives before its request still creates the row.
func (l *ActionLog) Record(ev processing.Event) error {
	switch ev.Kind {
	case processing.EventActionRequested:
		ae, err := actionEvent(ev)
		if err != nil {
			return err
		}
		rec := ActionRecord{
			CallID:      ae.CallID,
			Action:      ae.Action,
			Service:     ae.Service,
			Status:      StatusPending,
			Error:       ae.Error,
			RequestedAt: ae.RequestedAt,
		}
		if ae.Error != "" {
			rec.Status = StatusSendFailed
		}
		return l.db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "call_id"}},
			DoNothing: true,
		}).Create(&rec).Error

	case processing.EventActionResult:
		ae, err := actionEvent(ev)
		if err != nil {
			return err
		}
		responded := ae.RespondedAt
		rec := ActionRecord{
			CallID:      ae.CallID,
			Action:      ae.Action,
			Service:     ae.Service,
			Status:      StatusFailed,
			Success:     ae.Success,
			Message:     ae.Message,
			Error:       ae.Error,
			RequestedAt: ae.RequestedAt,
			RespondedAt: &responded,
		}
		if ae.Success {
			rec.Status = StatusSucceeded
		}
		return l.db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "call_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"status", "success", "message", "error", "responded_at", "updated_at"}),
		}).Create(&rec).Error
	}
	return nil
}

// Consume makes the log a processing.Sink
func (l *ActionLog) Consume(ev processing.Event) error {
	return l.Record(ev)
}

// Recent returns the latest calls, newest first
func (l *ActionLog) Recent(limit int) ([]ActionRecord, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	var records []ActionRecord
	err := l.db.Order("requested_at DESC").Order("id DESC").Limit(limit).Find(&records).Error
	return records, err
}

// RecentHandler serves Recent, taking an optional ?limit=
func (l *ActionLog) RecentHandler(c *fiber.Ctx) error {
	limit := DefaultRecentLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "limit must be a positive integer",
			})
		}
		limit = n
	}

	records, err := l.Recent(limit)
	if err != nil {
		l.logger.Errorf("Failed to read action log: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(records)
}

// Close closes the underlying connection pool
func (l *ActionLog) Close() error {
	sqlDB, err := l.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func actionEvent(ev processing.Event) (processing.ActionEvent, error) {
	switch data := ev.Data.(type) {
	case processing.ActionEvent:
		return data, nil
	case *processing.ActionEvent:
		if data != nil {
			return *data, nil
		}
	}
	return processing.ActionEvent{}, fmt.Errorf("%w for %s: %T", ErrUnexpectedData, ev.Kind, ev.Data)
}
