package httpapi

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/avolkov/authgate/internal/common"
	"github.com/avolkov/authgate/internal/server/models"
)

// pageFilterFromQuery parses the listing parameters; anything out of range is
// left for PageFilter.Normalized to correct.
func pageFilterFromQuery(r *http.Request) models.PageFilter {
	q := r.URL.Query()

	page, _ := strconv.Atoi(q.Get("page"))
	size, _ := strconv.Atoi(q.Get("size"))

	return models.PageFilter{
		Page:      page,
		Size:      size,
		OrderBy:   q.Get("order_by"),
		Direction: q.Get("direction"),
		Email:     q.Get("email"),
	}
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	page, err := s.admin.ListUsers(r.Context(), pageFilterFromQuery(r))
	if err != nil {
		respondError(w, err)
		return
	}

	views := make([]userView, 0, len(page.Items))
	for i := range page.Items {
		views = append(views, newUserView(&page.Items[i]))
	}

	writeJSON(w, http.StatusOK, models.Page[userView]{
		Items: views,
		Total: page.Total,
		Page:  page.Page,
		Size:  page.Size,
		Pages: page.Pages,
	})
}

func (s *Server) handleUpdateRole(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil || userID < 1 {
		respondError(w, fmt.Errorf("%w: invalid user id", common.ErrValidation))
		return
	}

	var req updateRoleRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}
	if err := req.Validate(); err != nil {
		respondValidation(w, err)
		return
	}

	user, err := s.admin.UpdateRole(r.Context(), userID, req.Role)
	if err != nil {
		respondError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, newUserView(user))
}
