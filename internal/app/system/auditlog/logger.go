// internal/app/system/auditlog/logger.go

// Package auditlog provides convenience methods for recording audit
// events to both MongoDB and the structured log.
package auditlog

import (
	"context"
	"net/http"
	"strconv"

	"github.com/branchrate/branchrate/internal/app/store/audit"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Config controls per-category audit destinations.
// Values: "all" (MongoDB + zap), "db", "log", "off".
type Config struct {
	Auth   string
	Admin  string
	Export string
}

// Logger wraps the audit store with typed event helpers. A nil *Logger
// is a no-op so tests can skip audit wiring.
type Logger struct {
	store  *audit.Store
	zapLog *zap.Logger
	config Config
}

func New(store *audit.Store, zapLog *zap.Logger, config Config) *Logger {
	return &Logger{store: store, zapLog: zapLog, config: config}
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return xff
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}

func (l *Logger) logToZap(event audit.Event) {
	fields := []zap.Field{
		zap.Bool("audit", true),
		zap.String("category", event.Category),
		zap.String("event_type", event.EventType),
		zap.Bool("success", event.Success),
		zap.String("ip", event.IP),
	}
	if event.AdminID != nil {
		fields = append(fields, zap.String("admin_id", event.AdminID.Hex()))
	}
	if event.ActorID != nil {
		fields = append(fields, zap.String("actor_id", event.ActorID.Hex()))
	}
	if event.BranchID != nil {
		fields = append(fields, zap.String("branch_id", event.BranchID.Hex()))
	}
	if event.FailureReason != "" {
		fields = append(fields, zap.String("failure_reason", event.FailureReason))
	}
	for k, v := range event.Details {
		fields = append(fields, zap.String("detail_"+k, v))
	}

	if event.Success {
		l.zapLog.Info("audit event", fields...)
	} else {
		l.zapLog.Warn("audit event", fields...)
	}
}

// Log records an event per the category's configured destination.
func (l *Logger) Log(ctx context.Context, event audit.Event) {
	if l == nil {
		return
	}

	var setting string
	switch event.Category {
	case audit.CategoryAuth:
		setting = l.config.Auth
	case audit.CategoryAdmin:
		setting = l.config.Admin
	case audit.CategoryExport:
		setting = l.config.Export
	default:
		setting = "all"
	}
	if setting == "off" {
		return
	}

	if setting == "all" || setting == "log" {
		l.logToZap(event)
	}
	if setting == "all" || setting == "db" {
		if err := l.store.Log(ctx, event); err != nil {
			l.zapLog.Error("failed to store audit event",
				zap.Error(err),
				zap.String("event_type", event.EventType))
		}
	}
}

/*── authentication ─────────────────────────────────────────────────*/

func (l *Logger) LoginSuccess(ctx context.Context, r *http.Request, adminID primitive.ObjectID, email string) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAuth,
		EventType: audit.EventLoginSuccess,
		AdminID:   &adminID,
		IP:        clientIP(r),
		UserAgent: r.UserAgent(),
		Success:   true,
		Details:   map[string]string{"email": email},
	})
}

func (l *Logger) LoginFailedUserNotFound(ctx context.Context, r *http.Request, attemptedEmail string) {
	l.Log(ctx, audit.Event{
		Category:      audit.CategoryAuth,
		EventType:     audit.EventLoginFailedUserNotFound,
		IP:            clientIP(r),
		UserAgent:     r.UserAgent(),
		Success:       false,
		FailureReason: "user not found",
		Details:       map[string]string{"attempted_email": attemptedEmail},
	})
}

func (l *Logger) LoginFailedWrongPassword(ctx context.Context, r *http.Request, adminID primitive.ObjectID, email string) {
	l.Log(ctx, audit.Event{
		Category:      audit.CategoryAuth,
		EventType:     audit.EventLoginFailedWrongPassword,
		AdminID:       &adminID,
		IP:            clientIP(r),
		UserAgent:     r.UserAgent(),
		Success:       false,
		FailureReason: "wrong password",
		Details:       map[string]string{"email": email},
	})
}

func (l *Logger) Logout(ctx context.Context, r *http.Request, adminIDStr string) {
	var adminID *primitive.ObjectID
	if oid, err := primitive.ObjectIDFromHex(adminIDStr); err == nil {
		adminID = &oid
	}
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAuth,
		EventType: audit.EventLogout,
		AdminID:   adminID,
		IP:        clientIP(r),
		UserAgent: r.UserAgent(),
		Success:   true,
	})
}

func (l *Logger) OAuthLogin(ctx context.Context, r *http.Request, adminID *primitive.ObjectID, email string, success bool, reason string) {
	eventType := audit.EventOAuthLoginSuccess
	if !success {
		eventType = audit.EventOAuthLoginFailed
	}
	l.Log(ctx, audit.Event{
		Category:      audit.CategoryAuth,
		EventType:     eventType,
		AdminID:       adminID,
		IP:            clientIP(r),
		UserAgent:     r.UserAgent(),
		Success:       success,
		FailureReason: reason,
		Details:       map[string]string{"email": email},
	})
}

/*── administration ─────────────────────────────────────────────────*/

func (l *Logger) AdminEvent(ctx context.Context, r *http.Request, eventType string, actorID primitive.ObjectID, targetID *primitive.ObjectID, details map[string]string) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAdmin,
		EventType: eventType,
		ActorID:   &actorID,
		AdminID:   targetID,
		IP:        clientIP(r),
		UserAgent: r.UserAgent(),
		Success:   true,
		Details:   details,
	})
}

func (l *Logger) BranchEvent(ctx context.Context, r *http.Request, eventType string, actorID, branchID primitive.ObjectID, details map[string]string) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAdmin,
		EventType: eventType,
		ActorID:   &actorID,
		BranchID:  &branchID,
		IP:        clientIP(r),
		UserAgent: r.UserAgent(),
		Success:   true,
		Details:   details,
	})
}

/*── exports ────────────────────────────────────────────────────────*/

func (l *Logger) ReportExported(ctx context.Context, r *http.Request, actorID primitive.ObjectID, kind, filename string, rows int) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryExport,
		EventType: audit.EventReportExported,
		ActorID:   &actorID,
		IP:        clientIP(r),
		UserAgent: r.UserAgent(),
		Success:   true,
		Details: map[string]string{
			"kind":     kind,
			"filename": filename,
			"rows":     strconv.Itoa(rows),
		},
	})
}
