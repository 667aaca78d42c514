package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jcr-pos/api/internal/database"
	"github.com/jcr-pos/api/internal/enum"
	"github.com/jcr-pos/api/internal/ws"
)

// fakeStore methods completing the InventoryStore interface. The shared
// fake lives in order_test.go.

func (f *fakeStore) ListItems(ctx context.Context, catalog string) ([]database.InventoryItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []database.InventoryItem
	for id, item := range f.items {
		if f.catalogs[id] == catalog {
			out = append(out, *item)
		}
	}
	return out, nil
}

func (f *fakeStore) ListMenuItems(ctx context.Context, catalog string) ([]database.InventoryItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []database.InventoryItem
	for id, item := range f.items {
		if f.catalogs[id] == catalog && item.ShowInMenu &&
			item.Status == enum.ItemAvailable && item.Stock > 0 {
			out = append(out, *item)
		}
	}
	return out, nil
}

func (f *fakeStore) ListArchivedItems(ctx context.Context, catalog string) ([]database.InventoryItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []database.InventoryItem
	for id, item := range f.archived {
		if f.catalogs[id] == catalog {
			out = append(out, *item)
		}
	}
	return out, nil
}

func (f *fakeStore) CreateItem(ctx context.Context, arg database.CreateItemParams) (database.InventoryItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	status := enum.ItemAvailable
	if arg.Stock <= 0 {
		status = enum.ItemUnavailable
	}
	item := &database.InventoryItem{
		ID:         uuid.New(),
		Name:       arg.Name,
		Category:   arg.Category,
		Price:      arg.Price,
		Sizes:      arg.Sizes,
		Stock:      arg.Stock,
		Status:     status,
		ShowInMenu: arg.ShowInMenu,
		CreatedAt:  time.Now(),
	}
	f.items[item.ID] = item
	f.catalogs[item.ID] = arg.Catalog
	return *item, nil
}

func (f *fakeStore) SetStock(ctx context.Context, arg database.SetStockParams) (database.InventoryItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.items[arg.ID]
	if !ok || f.catalogs[arg.ID] != arg.Catalog {
		return database.InventoryItem{}, pgx.ErrNoRows
	}
	item.Stock = arg.Stock
	f.refreshStatus(item)
	return *item, nil
}

func (f *fakeStore) SetShowInMenu(ctx context.Context, arg database.SetShowInMenuParams) (database.InventoryItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.items[arg.ID]
	if !ok || f.catalogs[arg.ID] != arg.Catalog {
		return database.InventoryItem{}, pgx.ErrNoRows
	}
	item.ShowInMenu = arg.ShowInMenu
	return *item, nil
}

func (f *fakeStore) ArchiveItem(ctx context.Context, arg database.MoveItemParams) (database.InventoryItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.items[arg.ID]
	if !ok || f.catalogs[arg.ID] != arg.Catalog {
		return database.InventoryItem{}, pgx.ErrNoRows
	}
	delete(f.items, arg.ID)
	f.archived[arg.ID] = item
	return *item, nil
}

func (f *fakeStore) UnarchiveItem(ctx context.Context, arg database.MoveItemParams) (database.InventoryItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.archived[arg.ID]
	if !ok || f.catalogs[arg.ID] != arg.Catalog {
		return database.InventoryItem{}, pgx.ErrNoRows
	}
	delete(f.archived, arg.ID)
	f.items[arg.ID] = item
	return *item, nil
}

func newTestInventoryService(store *fakeStore) (*InventoryService, *mockHub) {
	hub := &mockHub{}
	return NewInventoryService(store, hub), hub
}

func TestInventoryCreate_PriceAndSizesExclusive(t *testing.T) {
	store := newFakeStore()
	svc, _ := newTestInventoryService(store)

	_, err := svc.Create(context.Background(), CreateItemRequest{
		Catalog: enum.CatalogRegular,
		Name:    "Sisig",
	})
	if !errors.Is(err, ErrPriceOrSizes) {
		t.Fatalf("expected ErrPriceOrSizes with neither, got: %v", err)
	}

	_, err = svc.Create(context.Background(), CreateItemRequest{
		Catalog: enum.CatalogRegular,
		Name:    "Sisig",
		Price:   "120.00",
		Sizes:   map[string]string{"small": "95.00"},
	})
	if !errors.Is(err, ErrPriceOrSizes) {
		t.Fatalf("expected ErrPriceOrSizes with both, got: %v", err)
	}
}

func TestInventoryCreate_Regular(t *testing.T) {
	store := newFakeStore()
	svc, hub := newTestInventoryService(store)

	item, err := svc.Create(context.Background(), CreateItemRequest{
		Catalog:    enum.CatalogRegular,
		Name:       "Sisig",
		Category:   "food",
		Price:      "120.00",
		Stock:      5,
		ShowInMenu: true,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if item.Status != enum.ItemAvailable {
		t.Errorf("expected available, got %s", item.Status)
	}

	events := hub.eventsOn(ws.TopicOrders)
	if len(events) != 1 || events[0].Type != EventInventoryUpdated {
		t.Fatalf("expected one inventory.updated event, got %+v", events)
	}
}

func TestInventoryCreate_ZeroStockUnavailable(t *testing.T) {
	store := newFakeStore()
	svc, _ := newTestInventoryService(store)

	item, err := svc.Create(context.Background(), CreateItemRequest{
		Catalog: enum.CatalogCafe,
		Name:    "Latte",
		Sizes:   map[string]string{"small": "95.00", "large": "125.00"},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if item.Status != enum.ItemUnavailable {
		t.Errorf("zero stock item should be unavailable, got %s", item.Status)
	}
}

func TestInventoryAdjustStock_ClampsAtZero(t *testing.T) {
	store := newFakeStore()
	itemID := store.addItem(enum.CatalogRegular, "Sisig", "120.00", 3)
	svc, _ := newTestInventoryService(store)

	item, err := svc.AdjustStock(context.Background(), enum.CatalogRegular, itemID, -10)
	if err != nil {
		t.Fatalf("AdjustStock: %v", err)
	}
	if item.Stock != 0 {
		t.Errorf("expected clamp at 0, got %d", item.Stock)
	}
	if item.Status != enum.ItemUnavailable {
		t.Errorf("expected unavailable at zero stock, got %s", item.Status)
	}
}

func TestInventoryAdjustStock_RestoresAvailability(t *testing.T) {
	store := newFakeStore()
	itemID := store.addItem(enum.CatalogRegular, "Sisig", "120.00", 0)
	svc, _ := newTestInventoryService(store)

	item, err := svc.AdjustStock(context.Background(), enum.CatalogRegular, itemID, 4)
	if err != nil {
		t.Fatalf("AdjustStock: %v", err)
	}
	if item.Stock != 4 || item.Status != enum.ItemAvailable {
		t.Errorf("expected stock 4 available, got %d %s", item.Stock, item.Status)
	}
}

func TestInventorySetStock_RejectsNegative(t *testing.T) {
	store := newFakeStore()
	itemID := store.addItem(enum.CatalogRegular, "Sisig", "120.00", 3)
	svc, _ := newTestInventoryService(store)

	_, err := svc.SetStock(context.Background(), enum.CatalogRegular, itemID, -1)
	if !errors.Is(err, ErrNegativeStock) {
		t.Fatalf("expected ErrNegativeStock, got: %v", err)
	}
}

func TestInventoryArchiveRoundTrip(t *testing.T) {
	store := newFakeStore()
	itemID := store.addItem(enum.CatalogRegular, "Sisig", "120.00", 3)
	svc, _ := newTestInventoryService(store)

	if _, err := svc.Archive(context.Background(), enum.CatalogRegular, itemID); err != nil {
		t.Fatalf("Archive: %v", err)
	}

	live, _ := svc.List(context.Background(), enum.CatalogRegular)
	if len(live) != 0 {
		t.Fatalf("expected empty live catalog, got %d items", len(live))
	}
	archived, _ := svc.ListArchived(context.Background(), enum.CatalogRegular)
	if len(archived) != 1 || archived[0].ID != itemID {
		t.Fatalf("expected archived item, got %+v", archived)
	}

	if _, err := svc.Unarchive(context.Background(), enum.CatalogRegular, itemID); err != nil {
		t.Fatalf("Unarchive: %v", err)
	}
	live, _ = svc.List(context.Background(), enum.CatalogRegular)
	if len(live) != 1 || live[0].ID != itemID {
		t.Fatalf("expected restored item, got %+v", live)
	}
}

func TestInventoryListMenu_FiltersHiddenAndEmpty(t *testing.T) {
	store := newFakeStore()
	visible := store.addItem(enum.CatalogRegular, "Sisig", "120.00", 5)
	store.addItem(enum.CatalogRegular, "Lechon", "300.00", 0)
	hidden := store.addItem(enum.CatalogRegular, "Staff Meal", "50.00", 5)
	store.items[hidden].ShowInMenu = false
	svc, _ := newTestInventoryService(store)

	menu, err := svc.ListMenu(context.Background(), enum.CatalogRegular)
	if err != nil {
		t.Fatalf("ListMenu: %v", err)
	}
	if len(menu) != 1 || menu[0].ID != visible {
		t.Fatalf("expected only the visible in-stock item, got %+v", menu)
	}
}
