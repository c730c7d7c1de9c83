package model

import "time"

// Audit holds the bookkeeping columns shared by every entity. The identity
// columns are accepted from the service only, never from callers, and are
// excluded from JSON output; the timestamp columns are returned to callers.
type Audit struct {
	InsertedBy          string    `json:"-" gorm:"column:inserted_by;type:varchar(100)"`
	InsertedDatetime    time.Time `json:"inserted_datetime" gorm:"column:inserted_datetime"`
	LastUpdatedBy       string    `json:"-" gorm:"column:last_updated_by;type:varchar(100)"`
	LastUpdatedDatetime time.Time `json:"last_updated_datetime" gorm:"column:last_updated_datetime"`
}

// StampCreate sets all four audit columns. Called exactly once, at creation.
func (a *Audit) StampCreate(identity string, now time.Time) {
	a.InsertedBy = identity
	a.InsertedDatetime = now
	a.LastUpdatedBy = identity
	a.LastUpdatedDatetime = now
}

// StampUpdate advances the last-updated pair. The inserted pair is immutable.
func (a *Audit) StampUpdate(identity string, now time.Time) {
	a.LastUpdatedBy = identity
	a.LastUpdatedDatetime = now
}

// AuditRef exposes the embedded audit block; promoted onto every entity.
func (a *Audit) AuditRef() *Audit {
	return a
}
