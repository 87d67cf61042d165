package domain

import (
	"errors"
	"time"
)

var (
	// ErrNoActiveAgent is returned when no active agent matches the node parameters.
	ErrNoActiveAgent = errors.New("No active SDR agent found.")
	// ErrNoCallAgent is returned by CallAgent when no agent id is configured.
	ErrNoCallAgent = errors.New("No active Call agent found.")
)

const StatusActive = "active"

// VariableType distinguishes lead-bound template variables from constants.
type VariableType string

const (
	VariableConstant VariableType = "constant"
	VariableDynamic  VariableType = "variable"
)

// Variable is one entry of an agent's custom_variables script configuration.
type Variable struct {
	Name        string       `json:"name"`
	Slug        string       `json:"slug"`
	Placeholder string       `json:"placeholder,omitempty"`
	Tooltip     string       `json:"tooltip,omitempty"`
	Value       string       `json:"value"`
	Type        VariableType `json:"type"`
}

// Agent is an automated SDR calling profile.
type Agent struct {
	ID              string
	CompanyID       string
	IdentifierName  string
	PhoneNumber     string
	Voice           string
	LLMModel        string
	CompanyName     string
	CustomVariables []Variable
	Status          string
	CreatedAt       time.Time

	// Availability is set when the agent was loaded together with its playbook schedule.
	Availability *Availability
}

// Availability is the agent's scheduling row joined with its timezone.
type Availability struct {
	SchedulingHours []byte
	UTCOffset       string
	IANATimezone    string
	StartDate       *time.Time
}

// IsActive reports whether the agent may place calls.
func (a *Agent) IsActive() bool {
	return a != nil && a.Status == StatusActive
}

// UTCOffset returns the schedule offset, or "+00:00" when the agent has no schedule.
func (a *Agent) UTCOffset() string {
	if a == nil || a.Availability == nil || a.Availability.UTCOffset == "" {
		return "+00:00"
	}
	return a.Availability.UTCOffset
}
