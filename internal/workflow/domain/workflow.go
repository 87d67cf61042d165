package domain

import "time"

const DefaultTimezone = "UTC"

// Workflow is the engine's playbook record. Only the fields nodes read are mapped.
type Workflow struct {
	ID        string
	Name      string
	UserID    string
	Active    bool
	Settings  Settings
	UpdatedAt time.Time
}

// Settings is the subset of workflow settings used here.
type Settings struct {
	Timezone string `json:"timezone,omitempty"`
}

// Timezone returns the configured IANA zone name, or UTC.
func (w *Workflow) Timezone() string {
	if w == nil || w.Settings.Timezone == "" {
		return DefaultTimezone
	}
	return w.Settings.Timezone
}

// Location loads Timezone; unknown zones fall back to UTC.
func (w *Workflow) Location() *time.Location {
	loc, err := time.LoadLocation(w.Timezone())
	if err != nil {
		return time.UTC
	}
	return loc
}
