package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"aeriegateway/internal/view/model"
	"aeriegateway/internal/view/repository"
	"aeriegateway/internal/view/service"
	"aeriegateway/middleware"
	"aeriegateway/pkg/logger"
)

const maxViewBodyBytes = 10 << 20

type ViewHandler struct {
	Service *service.ViewService
}

func NewViewHandler(service *service.ViewService) *ViewHandler {
	return &ViewHandler{Service: service}
}

func (h *ViewHandler) ListViews(w http.ResponseWriter, r *http.Request) {
	views, err := h.Service.ListViews(r.Context())
	if err != nil {
		logger.Sugar.Errorf("Handler: Failed to list views: %v", err)
		writeJSON(w, http.StatusInternalServerError, model.ViewResponse{Message: "Unable to list views"})
		return
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *ViewHandler) LatestView(w http.ResponseWriter, r *http.Request) {
	username, ok := usernameOrUnauthorized(w, r)
	if !ok {
		return
	}

	view, err := h.Service.LatestView(r.Context(), username)
	if err != nil {
		logger.Sugar.Errorf("Handler: Failed to resolve latest view for %s: %v", username, err)
		writeJSON(w, http.StatusInternalServerError, model.ViewResponse{Message: "Unable to resolve latest view"})
		return
	}
	writeJSON(w, http.StatusOK, model.ViewResponse{Message: "Latest view", Success: true, View: view})
}

func (h *ViewHandler) GetView(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	view, err := h.Service.GetView(r.Context(), id)
	switch {
	case errors.Is(err, repository.ErrViewNotFound):
		writeJSON(w, http.StatusOK, model.ViewResponse{Message: "View not found"})
	case err != nil:
		logger.Sugar.Errorf("Handler: Failed to get view %s: %v", id, err)
		writeJSON(w, http.StatusInternalServerError, model.ViewResponse{Message: "Unable to load view"})
	default:
		writeJSON(w, http.StatusOK, model.ViewResponse{Message: "View found", Success: true, View: view})
	}
}

func (h *ViewHandler) CreateView(w http.ResponseWriter, r *http.Request) {
	username, ok := usernameOrUnauthorized(w, r)
	if !ok {
		return
	}

	var req model.CreateViewRequest
	if !decodeBody(w, r, &req) {
		return
	}

	view, err := h.Service.CreateView(r.Context(), username, req.Name, req.View)
	switch {
	case errors.Is(err, repository.ErrViewNotCreated):
		writeJSON(w, http.StatusOK, model.ViewResponse{Message: fmt.Sprintf("%s not created", view.ID)})
	case err != nil:
		logger.Sugar.Errorf("Handler: Failed to create view for %s: %v", username, err)
		writeJSON(w, http.StatusInternalServerError, model.ViewResponse{Message: "Unable to create view"})
	default:
		writeJSON(w, http.StatusOK, model.ViewResponse{Message: fmt.Sprintf("%s created", view.ID), Success: true, View: view})
	}
}

func (h *ViewHandler) UpdateView(w http.ResponseWriter, r *http.Request) {
	username, ok := usernameOrUnauthorized(w, r)
	if !ok {
		return
	}
	id := r.PathValue("id")

	var req model.UpdateViewRequest
	if !decodeBody(w, r, &req) {
		return
	}

	view, err := h.Service.UpdateView(r.Context(), username, id, req.View)
	switch {
	case errors.Is(err, repository.ErrViewNotFound):
		writeJSON(w, http.StatusOK, model.ViewResponse{Message: fmt.Sprintf("%s not updated", id)})
	case err != nil:
		logger.Sugar.Errorf("Handler: Failed to update view %s: %v", id, err)
		writeJSON(w, http.StatusInternalServerError, model.ViewResponse{Message: fmt.Sprintf("Unable to update view with ID: %s", id)})
	default:
		writeJSON(w, http.StatusOK, model.ViewResponse{Message: fmt.Sprintf("%s updated", id), Success: true, View: view})
	}
}

func (h *ViewHandler) DeleteView(w http.ResponseWriter, r *http.Request) {
	username, ok := usernameOrUnauthorized(w, r)
	if !ok {
		return
	}
	id := r.PathValue("id")

	next, err := h.Service.DeleteView(r.Context(), username, id)
	switch {
	case errors.Is(err, repository.ErrViewNotFound):
		writeJSON(w, http.StatusOK, model.DeleteViewResponse{Message: fmt.Sprintf("Unable to delete view with ID: %s", id)})
	case err != nil:
		logger.Sugar.Errorf("Handler: Failed to delete view %s: %v", id, err)
		writeJSON(w, http.StatusInternalServerError, model.DeleteViewResponse{Message: fmt.Sprintf("Unable to delete view with ID: %s", id)})
	default:
		writeJSON(w, http.StatusOK, model.DeleteViewResponse{Message: "View deleted successfully", NextView: next, Success: true})
	}
}

func usernameOrUnauthorized(w http.ResponseWriter, r *http.Request) (string, bool) {
	username, ok := middleware.UsernameFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
	}
	return username, ok
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxViewBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Sugar.Errorf("Handler: Failed to encode response: %v", err)
	}
}
