// Package domain defines company authorization policies.
package domain

import "time"

// Policy is a company-level Rego module for package callflow.authz. Enabled policies of a
// company replace the built-in role -> scope policy.
type Policy struct {
	ID        string
	CompanyID string
	Rules     string
	Enabled   bool
	CreatedAt time.Time
}
