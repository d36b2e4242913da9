// internal/app/system/limits/limits.go
package limits

// Caps applied to request handling and bulk scans.
const (
	// MaxReviewBodySize bounds the JSON body of a public review
	// submission.
	MaxReviewBodySize = 64 << 10 // 64 KB

	// MaxAdminBodySize bounds admin API request bodies (branch and
	// admin-account writes).
	MaxAdminBodySize = 256 << 10 // 256 KB

	// StatsScanCap bounds how many reviews a statistics or export query
	// will pull into memory. Aggregation is a client-side full scan, so
	// past this cap the scan stops and the response carries a truncation
	// flag instead of silently dropping data.
	StatsScanCap = 100_000

	// MaxPageSize is the largest page a caller may request from the
	// review list endpoint.
	MaxPageSize = 100

	// DefaultPageSize is used when the caller does not specify one.
	DefaultPageSize = 20

	// DefaultMinReviews is the customer-frequency threshold when the
	// caller does not specify one.
	DefaultMinReviews = 2
)
