package telemetry

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"keel/internal/logger"
)

// Journal appends events to a sqlite table. It is an audit trail, not a
// recovery store: nothing reads it back at startup.
type Journal struct {
	db *gorm.DB
}

type eventModel struct {
	ID        int64     `gorm:"column:id;primaryKey"`
	Kind      string    `gorm:"column:kind;index"`
	GroupID   string    `gorm:"column:group_id"`
	AdvisorID string    `gorm:"column:advisor_id"`
	VenueID   string    `gorm:"column:venue_id"`
	Symbol    string    `gorm:"column:symbol"`
	ClientID  string    `gorm:"column:client_id;index"`
	Status    string    `gorm:"column:status"`
	Reason    string    `gorm:"column:reason"`
	Stack     string    `gorm:"column:stack"`
	At        time.Time `gorm:"column:at"`
}

func (eventModel) TableName() string {
	return "telemetry_events"
}

func NewJournal(path string) (*Journal, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("journal path cannot be empty")
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&eventModel{}); err != nil {
		return nil, err
	}
	return &Journal{db: db}, nil
}

func (j *Journal) Record(e Event) {
	e = Stamp(e)
	row := eventModel{
		Kind:      string(e.Kind),
		GroupID:   e.GroupID,
		AdvisorID: e.AdvisorID,
		VenueID:   e.VenueID,
		Symbol:    e.Symbol,
		ClientID:  e.ClientID,
		Status:    e.Status,
		Reason:    e.Reason,
		Stack:     e.Stack,
		At:        e.At,
	}
	if err := j.db.Create(&row).Error; err != nil {
		logger.Warnf("telemetry: journal append failed: %v", err)
	}
}

func (j *Journal) Close() error {
	sqlDB, err := j.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
