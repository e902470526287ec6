package user

import (
	"encoding/json"
	"net/http"

	myMiddleware "school-chat/internal/middleware"
)

type Handler struct {
	repo *Repository
}

func NewHandler(repo *Repository) *Handler {
	return &Handler{repo: repo}
}

// Search handles GET /api/users/search?q=... scoped to the caller's
// institution.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	identity, ok := myMiddleware.IdentityFrom(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	query := r.URL.Query().Get("q")
	if query == "" {
		http.Error(w, "query parameter 'q' is required", http.StatusBadRequest)
		return
	}

	users, err := h.repo.SearchInInstitution(r.Context(), identity.InstitutionID, query)
	if err != nil {
		http.Error(w, "search failed", http.StatusInternalServerError)
		return
	}
	if users == nil {
		users = []User{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(users)
}
