package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jcr-pos/api/internal/database"
	"github.com/jcr-pos/api/internal/enum"
	"github.com/shopspring/decimal"
)

// Errors returned by the inventory service.
var (
	ErrItemNameRequired = errors.New("name is required")
	ErrPriceOrSizes     = errors.New("exactly one of price and sizes is required")
	ErrInvalidPrice     = errors.New("invalid price")
	ErrNegativeStock    = errors.New("stock must be >= 0")
)

// InventoryStore defines the DB methods needed by the inventory service.
// Satisfied by *database.Queries.
type InventoryStore interface {
	GetItem(ctx context.Context, arg database.GetItemParams) (database.InventoryItem, error)
	ListItems(ctx context.Context, catalog string) ([]database.InventoryItem, error)
	ListMenuItems(ctx context.Context, catalog string) ([]database.InventoryItem, error)
	ListArchivedItems(ctx context.Context, catalog string) ([]database.InventoryItem, error)
	CreateItem(ctx context.Context, arg database.CreateItemParams) (database.InventoryItem, error)
	AdjustStock(ctx context.Context, arg database.AdjustStockParams) (database.InventoryItem, error)
	SetStock(ctx context.Context, arg database.SetStockParams) (database.InventoryItem, error)
	SetShowInMenu(ctx context.Context, arg database.SetShowInMenuParams) (database.InventoryItem, error)
	ArchiveItem(ctx context.Context, arg database.MoveItemParams) (database.InventoryItem, error)
	UnarchiveItem(ctx context.Context, arg database.MoveItemParams) (database.InventoryItem, error)
}

// CreateItemRequest is the validated input for a new catalog item. Price and
// Sizes are mutually exclusive: regular items take Price, cafe items Sizes.
type CreateItemRequest struct {
	Catalog    string
	Name       string
	Category   string
	Price      string
	Sizes      map[string]string
	Stock      int32
	ShowInMenu bool
}

// InventoryService manages the two catalogs and their archives. All stock
// mutations go through the atomic SQL primitives, so concurrent orders and
// manual adjustments cannot lose updates.
type InventoryService struct {
	store InventoryStore
	hub   Broadcaster
}

// NewInventoryService creates a new InventoryService.
func NewInventoryService(store InventoryStore, hub Broadcaster) *InventoryService {
	return &InventoryService{store: store, hub: hub}
}

// List returns every live item in a catalog.
func (s *InventoryService) List(ctx context.Context, catalog string) ([]database.InventoryItem, error) {
	if !enum.IsValidCatalog(catalog) {
		return nil, ErrInvalidCatalog
	}
	return s.store.ListItems(ctx, catalog)
}

// ListMenu returns the customer-facing projection of a catalog: visible,
// available, and in stock.
func (s *InventoryService) ListMenu(ctx context.Context, catalog string) ([]database.InventoryItem, error) {
	if !enum.IsValidCatalog(catalog) {
		return nil, ErrInvalidCatalog
	}
	return s.store.ListMenuItems(ctx, catalog)
}

// ListArchived returns a catalog's archived items.
func (s *InventoryService) ListArchived(ctx context.Context, catalog string) ([]database.InventoryItem, error) {
	if !enum.IsValidCatalog(catalog) {
		return nil, ErrInvalidCatalog
	}
	return s.store.ListArchivedItems(ctx, catalog)
}

// Create adds a new item to a catalog.
func (s *InventoryService) Create(ctx context.Context, req CreateItemRequest) (database.InventoryItem, error) {
	if !enum.IsValidCatalog(req.Catalog) {
		return database.InventoryItem{}, ErrInvalidCatalog
	}
	if req.Name == "" {
		return database.InventoryItem{}, ErrItemNameRequired
	}
	if req.Stock < 0 {
		return database.InventoryItem{}, ErrNegativeStock
	}
	if (req.Price == "") == (len(req.Sizes) == 0) {
		return database.InventoryItem{}, ErrPriceOrSizes
	}

	params := database.CreateItemParams{
		Catalog:    req.Catalog,
		Name:       req.Name,
		Category:   req.Category,
		Stock:      req.Stock,
		ShowInMenu: req.ShowInMenu,
	}

	if req.Price != "" {
		price, err := decimal.NewFromString(req.Price)
		if err != nil || price.IsNegative() {
			return database.InventoryItem{}, ErrInvalidPrice
		}
		params.Price = decimalToNumeric(price)
	} else {
		sizes := make(map[string]decimal.Decimal, len(req.Sizes))
		for size, raw := range req.Sizes {
			price, err := decimal.NewFromString(raw)
			if err != nil || price.IsNegative() {
				return database.InventoryItem{}, fmt.Errorf("size %s: %w", size, ErrInvalidPrice)
			}
			sizes[size] = price
		}
		params.Sizes = sizes
	}

	item, err := s.store.CreateItem(ctx, params)
	if err != nil {
		return database.InventoryItem{}, fmt.Errorf("create item: %w", err)
	}

	broadcastInventory(s.hub, req.Catalog, item)
	return item, nil
}

// AdjustStock applies a signed delta to an item's stock, clamped at zero.
func (s *InventoryService) AdjustStock(ctx context.Context, catalog string, id uuid.UUID, delta int32) (database.InventoryItem, error) {
	if !enum.IsValidCatalog(catalog) {
		return database.InventoryItem{}, ErrInvalidCatalog
	}
	item, err := s.store.AdjustStock(ctx, database.AdjustStockParams{
		ID:      id,
		Catalog: catalog,
		Delta:   delta,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.InventoryItem{}, ErrItemNotFound
		}
		return database.InventoryItem{}, fmt.Errorf("adjust stock: %w", err)
	}

	broadcastInventory(s.hub, catalog, item)
	return item, nil
}

// SetStock overwrites an item's stock count, for physical recounts.
func (s *InventoryService) SetStock(ctx context.Context, catalog string, id uuid.UUID, stock int32) (database.InventoryItem, error) {
	if !enum.IsValidCatalog(catalog) {
		return database.InventoryItem{}, ErrInvalidCatalog
	}
	if stock < 0 {
		return database.InventoryItem{}, ErrNegativeStock
	}
	item, err := s.store.SetStock(ctx, database.SetStockParams{
		ID:      id,
		Catalog: catalog,
		Stock:   stock,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.InventoryItem{}, ErrItemNotFound
		}
		return database.InventoryItem{}, fmt.Errorf("set stock: %w", err)
	}

	broadcastInventory(s.hub, catalog, item)
	return item, nil
}

// SetVisibility toggles whether an item appears on the customer menu.
func (s *InventoryService) SetVisibility(ctx context.Context, catalog string, id uuid.UUID, show bool) (database.InventoryItem, error) {
	if !enum.IsValidCatalog(catalog) {
		return database.InventoryItem{}, ErrInvalidCatalog
	}
	item, err := s.store.SetShowInMenu(ctx, database.SetShowInMenuParams{
		ID:         id,
		Catalog:    catalog,
		ShowInMenu: show,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.InventoryItem{}, ErrItemNotFound
		}
		return database.InventoryItem{}, fmt.Errorf("set visibility: %w", err)
	}

	broadcastInventory(s.hub, catalog, item)
	return item, nil
}

// Archive moves an item out of its live catalog. Orders already holding the
// item keep their denormalized lines; the id survives the move so the item
// can be restored.
func (s *InventoryService) Archive(ctx context.Context, catalog string, id uuid.UUID) (database.InventoryItem, error) {
	if !enum.IsValidCatalog(catalog) {
		return database.InventoryItem{}, ErrInvalidCatalog
	}
	item, err := s.store.ArchiveItem(ctx, database.MoveItemParams{ID: id, Catalog: catalog})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.InventoryItem{}, ErrItemNotFound
		}
		return database.InventoryItem{}, fmt.Errorf("archive item: %w", err)
	}

	broadcastInventory(s.hub, catalog, item)
	return item, nil
}

// Unarchive moves an archived item back into its live catalog.
func (s *InventoryService) Unarchive(ctx context.Context, catalog string, id uuid.UUID) (database.InventoryItem, error) {
	if !enum.IsValidCatalog(catalog) {
		return database.InventoryItem{}, ErrInvalidCatalog
	}
	item, err := s.store.UnarchiveItem(ctx, database.MoveItemParams{ID: id, Catalog: catalog})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.InventoryItem{}, ErrItemNotFound
		}
		return database.InventoryItem{}, fmt.Errorf("unarchive item: %w", err)
	}

	broadcastInventory(s.hub, catalog, item)
	return item, nil
}
