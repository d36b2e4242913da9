// internal/app/bootstrap/appconfig.go
package bootstrap

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// WAFFLE's CoreConfig handles framework-level settings (HTTP ports,
// TLS, logging level, request limits). AppConfig is everything
// specific to BranchRate: the MongoDB connection, session cookies,
// audit log routing, Google sign-in credentials, and the bootstrap
// owner account.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI         string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase    string // Database name within MongoDB
	MongoMaxPoolSize uint64
	MongoMinPoolSize uint64

	// Session management configuration
	SessionKey    string // Secret key for signing session cookies (must be strong in production)
	SessionName   string // Cookie name for sessions (default: branchrate-session)
	SessionDomain string // Cookie domain (blank means current host)

	// Audit logging destinations: "all" (db+log), "db", "log", or "off"
	AuditLogAuth   string
	AuditLogAdmin  string
	AuditLogExport string

	// Google OAuth configuration (blank disables Google sign-in)
	GoogleClientID     string
	GoogleClientSecret string

	// Base URL for OAuth callbacks (e.g., "https://branchrate.example")
	BaseURL string

	// Bootstrap owner account, created on startup when no owner exists.
	OwnerEmail    string
	OwnerPassword string
}
