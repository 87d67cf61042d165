package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"callflow/backend/internal/audit/domain"
	auditrepo "callflow/backend/internal/audit/repository"
	"callflow/backend/internal/logging"
)

// SentinelCompanyID is the company_id used for audit events with no company (e.g. a token revoked
// by a user without one).
const SentinelCompanyID = "_system"

// IPExtractor returns the client IP from the request context.
type IPExtractor func(context.Context) string

// AuditLogger writes a single audit event with explicit action/resource.
// LogEvent is best-effort: failures are logged and do not affect the caller.
type AuditLogger interface {
	LogEvent(ctx context.Context, companyID, userID, action, resource, metadata string)
}

// Logger implements AuditLogger using the audit repository and an optional IP extractor.
type Logger struct {
	repo        auditrepo.Repository
	ipExtractor IPExtractor
	now         func() time.Time
}

// NewLogger returns an AuditLogger that persists to repo and uses ipExtractor for client IP.
// ipExtractor may be nil; then IP is recorded as "unknown".
func NewLogger(repo auditrepo.Repository, ipExtractor IPExtractor) *Logger {
	return &Logger{repo: repo, ipExtractor: ipExtractor, now: time.Now}
}

// LogEvent writes one audit log entry.
func (l *Logger) LogEvent(ctx context.Context, companyID, userID, action, resource, metadata string) {
	if l == nil || l.repo == nil {
		return
	}
	ip := "unknown"
	if l.ipExtractor != nil {
		ip = l.ipExtractor(ctx)
	}
	if companyID == "" {
		companyID = SentinelCompanyID
	}
	entry := &domain.AuditLog{
		ID:        uuid.NewString(),
		CompanyID: companyID,
		UserID:    userID,
		Action:    action,
		Resource:  resource,
		IP:        ip,
		Metadata:  metadata,
		CreatedAt: l.now().UTC(),
	}
	if err := l.repo.Create(ctx, entry); err != nil {
		slog.WarnContext(ctx, "audit: failed to log event",
			slog.String("action", action), slog.String("resource", resource), logging.Error(err))
	}
}
