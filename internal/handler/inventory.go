package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jcr-pos/api/internal/database"
	"github.com/jcr-pos/api/internal/service"
)

// InventoryServicer defines the service methods needed by inventory handlers.
// Satisfied by *service.InventoryService.
type InventoryServicer interface {
	List(ctx context.Context, catalog string) ([]database.InventoryItem, error)
	ListArchived(ctx context.Context, catalog string) ([]database.InventoryItem, error)
	Create(ctx context.Context, req service.CreateItemRequest) (database.InventoryItem, error)
	AdjustStock(ctx context.Context, catalog string, id uuid.UUID, delta int32) (database.InventoryItem, error)
	SetStock(ctx context.Context, catalog string, id uuid.UUID, stock int32) (database.InventoryItem, error)
	SetVisibility(ctx context.Context, catalog string, id uuid.UUID, show bool) (database.InventoryItem, error)
	Archive(ctx context.Context, catalog string, id uuid.UUID) (database.InventoryItem, error)
	Unarchive(ctx context.Context, catalog string, id uuid.UUID) (database.InventoryItem, error)
}

// InventoryHandler handles catalog management endpoints. Admin only.
type InventoryHandler struct {
	svc InventoryServicer
}

// NewInventoryHandler creates a new InventoryHandler.
func NewInventoryHandler(svc InventoryServicer) *InventoryHandler {
	return &InventoryHandler{svc: svc}
}

// RegisterRoutes registers inventory endpoints on the given Chi router.
// Expected to be mounted behind the admin guard at /inventory/{catalog}.
func (h *InventoryHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/archived", h.ListArchived)
	r.Post("/", h.Create)
	r.Post("/{id}/adjust", h.AdjustStock)
	r.Put("/{id}/stock", h.SetStock)
	r.Put("/{id}/visibility", h.SetVisibility)
	r.Post("/{id}/archive", h.Archive)
	r.Post("/{id}/unarchive", h.Unarchive)
}

// --- Request types ---

type createItemRequest struct {
	Name       string            `json:"name"`
	Category   string            `json:"category"`
	Price      string            `json:"price"`
	Sizes      map[string]string `json:"sizes"`
	Stock      int32             `json:"stock"`
	ShowInMenu bool              `json:"show_in_menu"`
}

type adjustStockRequest struct {
	Delta int32 `json:"delta"`
}

type setStockRequest struct {
	Stock int32 `json:"stock"`
}

type setVisibilityRequest struct {
	ShowInMenu bool `json:"show_in_menu"`
}

// --- Handlers ---

// List handles GET /inventory/{catalog}.
func (h *InventoryHandler) List(w http.ResponseWriter, r *http.Request) {
	catalog := chi.URLParam(r, "catalog")
	items, err := h.svc.List(r.Context(), catalog)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toInventoryViews(items, catalog))
}

// ListArchived handles GET /inventory/{catalog}/archived.
func (h *InventoryHandler) ListArchived(w http.ResponseWriter, r *http.Request) {
	catalog := chi.URLParam(r, "catalog")
	items, err := h.svc.ListArchived(r.Context(), catalog)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toInventoryViews(items, catalog))
}

// Create handles POST /inventory/{catalog}.
func (h *InventoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	catalog := chi.URLParam(r, "catalog")

	var req createItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	item, err := h.svc.Create(r.Context(), service.CreateItemRequest{
		Catalog:    catalog,
		Name:       req.Name,
		Category:   req.Category,
		Price:      req.Price,
		Sizes:      req.Sizes,
		Stock:      req.Stock,
		ShowInMenu: req.ShowInMenu,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, service.NewInventoryView(item, catalog))
}

// AdjustStock handles POST /inventory/{catalog}/{id}/adjust.
func (h *InventoryHandler) AdjustStock(w http.ResponseWriter, r *http.Request) {
	catalog, id, ok := h.params(w, r)
	if !ok {
		return
	}

	var req adjustStockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	item, err := h.svc.AdjustStock(r.Context(), catalog, id, req.Delta)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, service.NewInventoryView(item, catalog))
}

// SetStock handles PUT /inventory/{catalog}/{id}/stock.
func (h *InventoryHandler) SetStock(w http.ResponseWriter, r *http.Request) {
	catalog, id, ok := h.params(w, r)
	if !ok {
		return
	}

	var req setStockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	item, err := h.svc.SetStock(r.Context(), catalog, id, req.Stock)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, service.NewInventoryView(item, catalog))
}

// SetVisibility handles PUT /inventory/{catalog}/{id}/visibility.
func (h *InventoryHandler) SetVisibility(w http.ResponseWriter, r *http.Request) {
	catalog, id, ok := h.params(w, r)
	if !ok {
		return
	}

	var req setVisibilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	item, err := h.svc.SetVisibility(r.Context(), catalog, id, req.ShowInMenu)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, service.NewInventoryView(item, catalog))
}

// Archive handles POST /inventory/{catalog}/{id}/archive.
func (h *InventoryHandler) Archive(w http.ResponseWriter, r *http.Request) {
	catalog, id, ok := h.params(w, r)
	if !ok {
		return
	}

	item, err := h.svc.Archive(r.Context(), catalog, id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, service.NewInventoryView(item, catalog))
}

// Unarchive handles POST /inventory/{catalog}/{id}/unarchive.
func (h *InventoryHandler) Unarchive(w http.ResponseWriter, r *http.Request) {
	catalog, id, ok := h.params(w, r)
	if !ok {
		return
	}

	item, err := h.svc.Unarchive(r.Context(), catalog, id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, service.NewInventoryView(item, catalog))
}

func (h *InventoryHandler) params(w http.ResponseWriter, r *http.Request) (string, uuid.UUID, bool) {
	catalog := chi.URLParam(r, "catalog")
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid item ID"})
		return "", uuid.Nil, false
	}
	return catalog, id, true
}
