// internal/app/features/feedback/routes.go
package feedback

import "github.com/go-chi/chi/v5"

// Routes returns the public feedback subrouter, mounted under
// /api/feedback.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/branches", h.ListBranches)
	r.Post("/reviews", h.SubmitReview)
	return r
}
