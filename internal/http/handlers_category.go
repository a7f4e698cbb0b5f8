package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"outlay/internal/core"
	"outlay/internal/storage"
)

type categoryRequest struct {
	Name string `json:"name"`
}

// parseID reads the {id} path segment. Non-numeric ids behave like ids
// that match no record.
func parseID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	return id, err == nil
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := s.store.ListCategories(r.Context())
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, categories)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		respondDomainError(w, r, core.Validation("Category name is required."))
		return
	}

	// Check-then-insert: the unique index backstops racing writers.
	existing, err := s.store.GetCategoryByName(r.Context(), req.Name)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	if existing != nil {
		respondDomainError(w, r, core.Conflict("Category with this name already exists."))
		return
	}

	category, err := s.store.CreateCategory(r.Context(), req.Name)
	if err != nil {
		if errors.Is(err, storage.ErrDuplicateName) {
			respondDomainError(w, r, core.Conflict("Category with this name already exists."))
			return
		}
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, category)
}

func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		respondDomainError(w, r, core.Validation("Category name is required."))
		return
	}

	id, ok := parseID(r)
	if ok {
		existing, err := s.store.GetCategory(r.Context(), id)
		if err != nil {
			respondDomainError(w, r, err)
			return
		}
		ok = existing != nil
	}
	if !ok {
		respondDomainError(w, r, core.NotFound("Category not found."))
		return
	}

	category, err := s.store.UpdateCategory(r.Context(), id, req.Name)
	if err != nil {
		if errors.Is(err, storage.ErrDuplicateName) {
			respondDomainError(w, r, core.Conflict("Category with this name already exists."))
			return
		}
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, category)
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r)
	if ok {
		existing, err := s.store.GetCategory(r.Context(), id)
		if err != nil {
			respondDomainError(w, r, err)
			return
		}
		ok = existing != nil
	}
	if !ok {
		respondDomainError(w, r, core.NotFound("Category not found."))
		return
	}

	// Referential guard: a category with expenses cannot be removed.
	count, err := s.store.CountExpensesByCategory(r.Context(), id)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	if count > 0 {
		respondDomainError(w, r, core.Conflict("Category has associated expenses. Deletion declined."))
		return
	}

	if err := s.store.DeleteCategory(r.Context(), id); err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondMessage(w, "Category deleted successfully.")
}
