package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"etracker/internal/auth"
	applog "etracker/internal/log"
	"etracker/internal/storage"
)

type categoryRequest struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

type categoryResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Color     string `json:"color"`
	CreatedAt string `json:"created_at"`
}

func toCategoryResponse(c storage.Category) categoryResponse {
	return categoryResponse{
		ID:        c.ID.String(),
		Name:      c.Name,
		Color:     c.Color,
		CreatedAt: c.CreatedAt.Format(time.RFC3339),
	}
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())

	categories, err := s.repo.ListCategories(r.Context(), user.ID)
	if err != nil {
		s.logger.Error("list categories failed", applog.FieldOperation, applog.OpList,
			applog.FieldUserID, user.ID.String(), applog.FieldError, err)
		respondError(w, http.StatusInternalServerError, "Failed to get categories")
		return
	}

	response := make([]categoryResponse, 0, len(categories))
	for _, c := range categories {
		response = append(response, toCategoryResponse(c))
	}
	respondJSON(w, http.StatusOK, response)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())

	var req categoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		respondError(w, http.StatusBadRequest, "Category name is required")
		return
	}

	category, err := s.repo.CreateCategory(r.Context(), user.ID, name, req.Color)
	if err != nil {
		s.logger.Error("create category failed", applog.FieldOperation, applog.OpCreate,
			applog.FieldUserID, user.ID.String(), applog.FieldError, err)
		respondError(w, http.StatusInternalServerError, "Failed to create category")
		return
	}

	s.logger.Info("category created",
		applog.FieldCategoryID, category.ID.String(),
		applog.FieldUserID, user.ID.String())
	respondJSON(w, http.StatusCreated, toCategoryResponse(category))
}

func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())

	categoryID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid category ID")
		return
	}

	var req categoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		respondError(w, http.StatusBadRequest, "Category name is required")
		return
	}

	category, err := s.repo.UpdateCategory(r.Context(), categoryID, user.ID, name, req.Color)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respondError(w, http.StatusNotFound, "Category not found")
			return
		}
		s.logger.Error("update category failed", applog.FieldOperation, applog.OpUpdate,
			applog.FieldCategoryID, categoryID.String(),
			applog.FieldUserID, user.ID.String(), applog.FieldError, err)
		respondError(w, http.StatusInternalServerError, "Failed to update category")
		return
	}

	respondJSON(w, http.StatusOK, toCategoryResponse(category))
}

// handleDeleteCategory deletes the category. Expenses that pointed at it
// keep existing, uncategorized.
func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())

	categoryID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid category ID")
		return
	}

	if err := s.repo.DeleteCategory(r.Context(), categoryID, user.ID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respondError(w, http.StatusNotFound, "Category not found")
			return
		}
		s.logger.Error("delete category failed", applog.FieldOperation, applog.OpDelete,
			applog.FieldCategoryID, categoryID.String(),
			applog.FieldUserID, user.ID.String(), applog.FieldError, err)
		respondError(w, http.StatusInternalServerError, "Failed to delete category")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "Category deleted successfully"})
}
