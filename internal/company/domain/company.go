package domain

import (
	"errors"
	"time"
)

// Company is the tenant that owns segments, leads and agents. WorkflowAccountID links it
// to the engine user whose workflows run on its behalf.
type Company struct {
	ID                string
	Name              string
	WorkflowAccountID string
	RetellAPIKey      string
	ZohoRefreshToken  string
	IsActive          bool
	CreatedAt         time.Time
}

var (
	// ErrCompanyNotFound is returned when the executing user has no company.
	ErrCompanyNotFound = errors.New("Company not found")
	// ErrRetellKeyMissing is returned when the company has no voice provider key.
	ErrRetellKeyMissing = errors.New("Retell API key not found.")
	// ErrZohoNotConnected is returned when the company has no CRM refresh token.
	ErrZohoNotConnected = errors.New("Zoho CRM is not connected for this company")
)

// Validate validates the company for persistence. Returns an error describing the first validation failure.
func (c *Company) Validate() error {
	if c.ID == "" {
		return errors.New("id is required")
	}
	if c.Name == "" {
		return errors.New("name is required")
	}
	return nil
}

// RetellKey returns the voice provider API key or ErrRetellKeyMissing.
func (c *Company) RetellKey() (string, error) {
	if c == nil || c.RetellAPIKey == "" {
		return "", ErrRetellKeyMissing
	}
	return c.RetellAPIKey, nil
}
