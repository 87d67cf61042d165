// Package logging builds the service slog logger and shared attribute helpers.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// New constructs a JSON slog.Logger writing to stdout at the given level name.
func New(service, env, version, level string) *slog.Logger {
	return NewWithWriter(os.Stdout, service, env, version, ParseLevel(level))
}

// NewWithWriter constructs a JSON slog.Logger writing to w.
func NewWithWriter(w io.Writer, service, env, version string, lvl slog.Level) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: lvl,
	})

	return slog.New(handler).With(
		slog.String("service", service),
		slog.String("env", env),
		slog.String("version", version))
}

// ParseLevel maps debug/info/warn/error to a slog.Level; unknown names are info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func Error(err error) slog.Attr {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return slog.String("error", msg)
}

func NodeType(t string) slog.Attr {
	return slog.String("node_type", t)
}

func CompanyID(id string) slog.Attr {
	return slog.String("company_id", id)
}

func LeadID(id string) slog.Attr {
	return slog.String("lead_id", id)
}

func AgentID(id string) slog.Attr {
	return slog.String("agent_id", id)
}

func WorkflowID(id string) slog.Attr {
	return slog.String("workflow_id", id)
}

func CallID(id string) slog.Attr {
	return slog.String("call_id", id)
}
