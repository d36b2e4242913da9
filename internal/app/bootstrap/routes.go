// internal/app/bootstrap/routes.go
package bootstrap

import (
	"net/http"
	"time"

	adminsfeature "github.com/branchrate/branchrate/internal/app/features/admins"
	auditlogfeature "github.com/branchrate/branchrate/internal/app/features/auditlog"
	authgooglefeature "github.com/branchrate/branchrate/internal/app/features/authgoogle"
	branchesfeature "github.com/branchrate/branchrate/internal/app/features/branches"
	customersfeature "github.com/branchrate/branchrate/internal/app/features/customers"
	dashboardfeature "github.com/branchrate/branchrate/internal/app/features/dashboard"
	errorsfeature "github.com/branchrate/branchrate/internal/app/features/errors"
	exportfeature "github.com/branchrate/branchrate/internal/app/features/export"
	feedbackfeature "github.com/branchrate/branchrate/internal/app/features/feedback"
	healthfeature "github.com/branchrate/branchrate/internal/app/features/health"
	loginfeature "github.com/branchrate/branchrate/internal/app/features/login"
	logoutfeature "github.com/branchrate/branchrate/internal/app/features/logout"
	reviewsfeature "github.com/branchrate/branchrate/internal/app/features/reviews"
	adminstore "github.com/branchrate/branchrate/internal/app/store/admins"
	"github.com/branchrate/branchrate/internal/app/store/audit"
	branchstore "github.com/branchrate/branchrate/internal/app/store/branches"
	"github.com/branchrate/branchrate/internal/app/store/oauthstate"
	reviewstore "github.com/branchrate/branchrate/internal/app/store/reviews"
	"github.com/branchrate/branchrate/internal/app/system/auditlog"
	"github.com/branchrate/branchrate/internal/app/system/auth"
	"github.com/branchrate/branchrate/internal/app/system/metrics"
	"github.com/dalemusser/waffle/config"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler (router) for this
// WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup,
// and any Startup hooks have completed. The surface splits three ways:
//
//   - /api/feedback: the public review form, no session required
//   - /api/auth: sign-in, sign-out and Google OAuth
//   - /api/admin: the dashboard API, session plus authorization record
//
// plus /health and /metrics for operations.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	db := deps.MongoDatabase

	// Secure cookies are enabled in production mode.
	secure := coreCfg.Env == "prod"
	sessionMgr, err := auth.NewSessionManager(appCfg.SessionKey, appCfg.SessionName, appCfg.SessionDomain, secure, logger)
	if err != nil {
		logger.Error("session manager init failed", zap.Error(err))
		return nil, err
	}

	adminStore := adminstore.New(db)
	branchStore := branchstore.New(db)
	reviewStore := reviewstore.New(db)

	// Role and branch scope are re-resolved on every request so
	// authorization edits take effect immediately.
	sessionMgr.SetAccountResolver(adminStore)

	auditLog := auditlog.New(audit.New(db), logger, auditlog.Config{
		Auth:   appCfg.AuditLogAuth,
		Admin:  appCfg.AuditLogAdmin,
		Export: appCfg.AuditLogExport,
	})

	m := metrics.New()
	errLog := errorsfeature.NewErrorLogger(logger)

	r := chi.NewRouter()
	r.Use(requestMetrics(m))

	// Operational endpoints
	healthHandler := &healthfeature.Handler{Client: deps.MongoClient, Log: logger}
	r.Mount("/health", healthfeature.Routes(healthHandler))
	r.Method(http.MethodGet, "/metrics",
		promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}))

	// Public feedback surface: customers submit reviews anonymously.
	feedbackHandler := &feedbackfeature.Handler{
		Reviews:  reviewStore,
		Branches: branchStore,
		Metrics:  m,
		ErrLog:   errLog,
		Log:      logger,
	}
	r.Mount("/api/feedback", feedbackfeature.Routes(feedbackHandler))

	// Authentication
	loginHandler := &loginfeature.Handler{
		Admins:     adminStore,
		SessionMgr: sessionMgr,
		AuditLog:   auditLog,
		ErrLog:     errLog,
		Log:        logger,
	}
	logoutHandler := &logoutfeature.Handler{
		SessionMgr: sessionMgr,
		AuditLog:   auditLog,
		Log:        logger,
	}
	googleHandler := &authgooglefeature.Handler{
		Admins:       adminStore,
		SessionMgr:   sessionMgr,
		StateStore:   oauthstate.New(db),
		AuditLog:     auditLog,
		Log:          logger,
		ClientID:     appCfg.GoogleClientID,
		ClientSecret: appCfg.GoogleClientSecret,
		RedirectURL:  appCfg.BaseURL + "/api/auth/google/callback",
	}

	r.Group(func(r chi.Router) {
		r.Use(sessionMgr.LoadSessionUser)

		authRouter := chi.NewRouter()
		authRouter.Mount("/google", authgooglefeature.Routes(googleHandler))
		authRouter.Mount("/logout", logoutfeature.Routes(logoutHandler))
		authRouter.Mount("/", loginfeature.Routes(loginHandler, sessionMgr))
		r.Mount("/api/auth", authRouter)
	})

	// Admin dashboard API: every route requires a session identity and
	// an authorization record. Finer-grained permissions (manage_admins,
	// manage_branches, export_reports) are enforced per feature.
	r.Group(func(r chi.Router) {
		r.Use(sessionMgr.LoadSessionUser)
		r.Use(sessionMgr.RequireAuthorized)

		reviewsHandler := &reviewsfeature.Handler{
			Reviews:  reviewStore,
			Branches: branchStore,
			Metrics:  m,
			ErrLog:   errLog,
			Log:      logger,
		}
		r.Mount("/api/admin/reviews", reviewsfeature.Routes(reviewsHandler))

		dashboardHandler := &dashboardfeature.Handler{
			DB:       db,
			Branches: branchStore,
			Metrics:  m,
			ErrLog:   errLog,
			Log:      logger,
		}
		r.Mount("/api/admin/dashboard", dashboardfeature.Routes(dashboardHandler))

		customersHandler := &customersfeature.Handler{
			DB:      db,
			Metrics: m,
			ErrLog:  errLog,
			Log:     logger,
		}
		r.Mount("/api/admin/customers", customersfeature.Routes(customersHandler))

		branchesHandler := &branchesfeature.Handler{
			Branches: branchStore,
			AuditLog: auditLog,
			Metrics:  m,
			ErrLog:   errLog,
			Log:      logger,
		}
		r.Mount("/api/admin/branches", branchesfeature.Routes(branchesHandler, sessionMgr))

		adminsHandler := &adminsfeature.Handler{
			Admins:   adminStore,
			AuditLog: auditLog,
			Metrics:  m,
			ErrLog:   errLog,
			Log:      logger,
		}
		r.Mount("/api/admin/admins", adminsfeature.Routes(adminsHandler, sessionMgr))

		auditHandler := &auditlogfeature.Handler{
			DB:      db,
			Audit:   audit.New(db),
			Metrics: m,
			ErrLog:  errLog,
			Log:     logger,
		}
		r.Mount("/api/admin/audit", auditlogfeature.Routes(auditHandler, sessionMgr))

		exportHandler := &exportfeature.Handler{
			DB:       db,
			Branches: branchStore,
			AuditLog: auditLog,
			Metrics:  m,
			ErrLog:   errLog,
			Log:      logger,
		}
		r.Mount("/api/admin/export", exportfeature.Routes(exportHandler))
	})

	return r, nil
}

// requestMetrics records per-route request durations under the chi
// route pattern, so /api/admin/branches/{branchID} counts as one
// series rather than one per branch.
func requestMetrics(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			route := chi.RouteContext(r.Context()).RoutePattern()
			if route == "" {
				route = "unmatched"
			}
			m.ObserveRequest(route, time.Since(start))
		})
	}
}
