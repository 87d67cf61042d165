// Package domain defines the audit log entry.
package domain

import "time"

// AuditLog records one action taken by a user or the node service on a company's data.
type AuditLog struct {
	ID        string
	CompanyID string
	UserID    string
	Action    string
	Resource  string
	IP        string
	Metadata  string
	CreatedAt time.Time
}
