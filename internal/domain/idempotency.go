package domain

import "time"

// Idempotency records the response produced for a create request carrying an
// Idempotency-Key, so a retry with the same key replays it instead of
// creating a second budget.
type Idempotency struct {
	Key       string    `gorm:"type:TEXT NOT NULL;primaryKey"`
	BudgetID  int64     `gorm:"type:INTEGER NOT NULL"`
	Status    int       `gorm:"type:INTEGER NOT NULL"`
	Body      string    `gorm:"type:TEXT NOT NULL"`
	CreatedAt time.Time `gorm:"type:DATETIME NOT NULL;autoCreateTime"`
	ExpiresAt time.Time `gorm:"type:DATETIME NOT NULL;index"`
}

// TableName implements the GORM tabler interface.
func (Idempotency) TableName() string { return "idempotency" }

// Expired reports whether the record is no longer replayable at now.
func (i Idempotency) Expired(now time.Time) bool {
	return !now.Before(i.ExpiresAt)
}
