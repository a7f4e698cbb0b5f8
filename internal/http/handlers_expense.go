package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"outlay/internal/core"
)

// expenseRequest uses pointer fields so "field omitted" is distinguishable
// from "field explicitly zero". Both retain the stored value on update.
type expenseRequest struct {
	Amount      *float64 `json:"amount"`
	Description *string  `json:"description"`
	CategoryID  *int64   `json:"categoryId"`
	Date        *string  `json:"date"`
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	expenses, err := s.store.ListExpenses(r.Context())
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, expenses)
}

func (s *Server) handleGetExpense(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r)
	if !ok {
		respondDomainError(w, r, core.NotFound("Expense not found."))
		return
	}
	expense, err := s.store.GetExpense(r.Context(), id)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	if expense == nil {
		respondDomainError(w, r, core.NotFound("Expense not found."))
		return
	}
	respondJSON(w, http.StatusOK, expense)
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	var req expenseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	// Amount and description are deliberately not required; missing values
	// persist as zero and empty string.
	expense := core.Expense{Date: core.Today()}
	if req.Amount != nil {
		expense.Amount = *req.Amount
	}
	if req.Description != nil {
		expense.Description = *req.Description
	}
	if req.CategoryID != nil {
		expense.CategoryID = *req.CategoryID
	}
	if req.Date != nil && *req.Date != "" {
		date, err := core.ParseDate(*req.Date)
		if err != nil {
			respondDomainError(w, r, core.Validation("Invalid date format. Use YYYY-MM-DD."))
			return
		}
		expense.Date = date
	}

	// The owning category must exist at the time of the write. An omitted
	// categoryId resolves to id 0, which never matches a record.
	category, err := s.store.GetCategory(r.Context(), expense.CategoryID)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	if category == nil {
		respondDomainError(w, r, core.Validation("Category not found."))
		return
	}

	created, err := s.store.CreateExpense(r.Context(), expense)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	s.publishExpenseCreated(r, created.ID)
	respondJSON(w, http.StatusCreated, created)
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r)
	if !ok {
		respondDomainError(w, r, core.NotFound("Expense not found."))
		return
	}

	var req expenseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	expense, err := s.store.GetExpense(r.Context(), id)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	if expense == nil {
		respondDomainError(w, r, core.NotFound("Expense not found."))
		return
	}

	// Truthy-replace policy: a supplied zero amount, empty description,
	// zero categoryId or empty date keeps the stored value.
	if req.Amount != nil && *req.Amount != 0 {
		expense.Amount = *req.Amount
	}
	if req.Description != nil && *req.Description != "" {
		expense.Description = *req.Description
	}
	if req.CategoryID != nil && *req.CategoryID != 0 {
		category, err := s.store.GetCategory(r.Context(), *req.CategoryID)
		if err != nil {
			respondDomainError(w, r, err)
			return
		}
		if category == nil {
			respondDomainError(w, r, core.Validation("Category not found."))
			return
		}
		expense.CategoryID = *req.CategoryID
	}
	if req.Date != nil && *req.Date != "" {
		date, err := core.ParseDate(*req.Date)
		if err != nil {
			respondDomainError(w, r, core.Validation("Invalid date format. Use YYYY-MM-DD."))
			return
		}
		expense.Date = date
	}

	if err := s.store.UpdateExpense(r.Context(), *expense); err != nil {
		respondDomainError(w, r, err)
		return
	}

	updated, err := s.store.GetExpense(r.Context(), id)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r)
	if ok {
		existing, err := s.store.GetExpense(r.Context(), id)
		if err != nil {
			respondDomainError(w, r, err)
			return
		}
		ok = existing != nil
	}
	if !ok {
		respondDomainError(w, r, core.NotFound("Expense not found."))
		return
	}

	// No referential guard here: expenses are leaves.
	if err := s.store.DeleteExpense(r.Context(), id); err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondMessage(w, "Expense deleted successfully.")
}

// publishExpenseCreated hands the new expense to the export pipeline.
// Failures are logged, never surfaced: the record is already persisted.
func (s *Server) publishExpenseCreated(r *http.Request, id int64) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishExpenseCreated(r.Context(), id); err != nil {
		slog.ErrorContext(r.Context(), "Failed to publish expense created event",
			"id", id, "error", err)
	}
}
