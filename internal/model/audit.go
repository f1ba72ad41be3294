package model

import "time"

// AuditLogEntry is the per-request transaction record. Fields are filled as
// the request progresses; Status is always set before the entry is written.
type AuditLogEntry struct {
	RequestID string
	Timestamp time.Time
	SessionID string
	URI       string
	Request   string
	Response  string
	Status    int
}
