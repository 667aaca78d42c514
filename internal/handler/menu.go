package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jcr-pos/api/internal/database"
	"github.com/jcr-pos/api/internal/enum"
	"github.com/jcr-pos/api/internal/service"
)

// MenuServicer defines the service methods needed by menu handlers.
// Satisfied by *service.InventoryService.
type MenuServicer interface {
	ListMenu(ctx context.Context, catalog string) ([]database.InventoryItem, error)
}

// TableStore defines the database methods needed by table handlers.
// Satisfied by *database.Queries.
type TableStore interface {
	GetTableByNumber(ctx context.Context, tableNumber int32) (database.Table, error)
	ListTables(ctx context.Context) ([]database.Table, error)
}

// MenuHandler serves the customer-facing catalog and table endpoints.
type MenuHandler struct {
	svc    MenuServicer
	tables TableStore
}

// NewMenuHandler creates a new MenuHandler.
func NewMenuHandler(svc MenuServicer, tables TableStore) *MenuHandler {
	return &MenuHandler{svc: svc, tables: tables}
}

// RegisterRoutes registers the public menu endpoints.
func (h *MenuHandler) RegisterRoutes(r chi.Router) {
	r.Get("/menu", h.Menu)
	r.Get("/tables", h.ListTables)
	r.Get("/tables/{number}", h.GetTable)
}

type menuResponse struct {
	Regular []service.InventoryView `json:"regular"`
	Cafe    []service.InventoryView `json:"cafe"`
}

type tableResponse struct {
	TableNumber int32 `json:"table_number"`
}

// Menu handles GET /menu: both catalogs, filtered to orderable items.
func (h *MenuHandler) Menu(w http.ResponseWriter, r *http.Request) {
	regular, err := h.svc.ListMenu(r.Context(), enum.CatalogRegular)
	if err != nil {
		log.Printf("ERROR: list regular menu: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	cafe, err := h.svc.ListMenu(r.Context(), enum.CatalogCafe)
	if err != nil {
		log.Printf("ERROR: list cafe menu: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, menuResponse{
		Regular: toInventoryViews(regular, enum.CatalogRegular),
		Cafe:    toInventoryViews(cafe, enum.CatalogCafe),
	})
}

// ListTables handles GET /tables.
func (h *MenuHandler) ListTables(w http.ResponseWriter, r *http.Request) {
	tables, err := h.tables.ListTables(r.Context())
	if err != nil {
		log.Printf("ERROR: list tables: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]tableResponse, len(tables))
	for i, t := range tables {
		resp[i] = tableResponse{TableNumber: t.TableNumber}
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetTable handles GET /tables/{number}, used by kiosks to validate their
// configured table before accepting orders.
func (h *MenuHandler) GetTable(w http.ResponseWriter, r *http.Request) {
	number, err := strconv.ParseInt(chi.URLParam(r, "number"), 10, 32)
	if err != nil || number < 1 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid table number"})
		return
	}

	table, err := h.tables.GetTableByNumber(r.Context(), int32(number))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "table not found"})
			return
		}
		log.Printf("ERROR: get table: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, tableResponse{TableNumber: table.TableNumber})
}

func toInventoryViews(items []database.InventoryItem, catalog string) []service.InventoryView {
	views := make([]service.InventoryView, len(items))
	for i, it := range items {
		views[i] = service.NewInventoryView(it, catalog)
	}
	return views
}
