package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// The two catalogs live in separate tables with identical shapes; archiving
// moves rows to the matching archived_* table. Table names are resolved from
// the validated catalog enum only, never from request input directly.

func tableFor(catalog string) (string, error) {
	switch catalog {
	case "regular":
		return "inventory", nil
	case "cafe":
		return "cafe_inventory", nil
	}
	return "", fmt.Errorf("unknown catalog %q", catalog)
}

func archiveTableFor(catalog string) (string, error) {
	switch catalog {
	case "regular":
		return "archived_inventory", nil
	case "cafe":
		return "archived_cafe_inventory", nil
	}
	return "", fmt.Errorf("unknown catalog %q", catalog)
}

const itemColumns = `id, name, category, price, sizes, stock, status, show_in_menu, created_at`

func scanItem(row rowScanner) (InventoryItem, error) {
	var it InventoryItem
	var sizes []byte
	err := row.Scan(&it.ID, &it.Name, &it.Category, &it.Price, &sizes,
		&it.Stock, &it.Status, &it.ShowInMenu, &it.CreatedAt)
	if err != nil {
		return InventoryItem{}, err
	}
	if sizes != nil {
		if err := json.Unmarshal(sizes, &it.Sizes); err != nil {
			return InventoryItem{}, fmt.Errorf("unmarshal sizes: %w", err)
		}
	}
	return it, nil
}

type GetItemParams struct {
	ID      uuid.UUID
	Catalog string
}

func (q *Queries) GetItem(ctx context.Context, arg GetItemParams) (InventoryItem, error) {
	table, err := tableFor(arg.Catalog)
	if err != nil {
		return InventoryItem{}, err
	}
	row := q.db.QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, itemColumns, table), arg.ID)
	return scanItem(row)
}

func (q *Queries) ListItems(ctx context.Context, catalog string) ([]InventoryItem, error) {
	table, err := tableFor(catalog)
	if err != nil {
		return nil, err
	}
	return q.listItemsFrom(ctx, table, `ORDER BY name`)
}

// ListMenuItems returns the ordering-surface projection: visible, available
// and in stock.
func (q *Queries) ListMenuItems(ctx context.Context, catalog string) ([]InventoryItem, error) {
	table, err := tableFor(catalog)
	if err != nil {
		return nil, err
	}
	return q.listItemsFrom(ctx, table,
		`WHERE show_in_menu AND status = 'available' AND stock > 0 ORDER BY name`)
}

func (q *Queries) ListArchivedItems(ctx context.Context, catalog string) ([]InventoryItem, error) {
	table, err := archiveTableFor(catalog)
	if err != nil {
		return nil, err
	}
	return q.listItemsFrom(ctx, table, `ORDER BY name`)
}

func (q *Queries) listItemsFrom(ctx context.Context, table, tail string) ([]InventoryItem, error) {
	rows, err := q.db.Query(ctx,
		fmt.Sprintf(`SELECT %s FROM %s %s`, itemColumns, table, tail))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []InventoryItem
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

type CreateItemParams struct {
	Catalog    string
	Name       string
	Category   string
	Price      pgtype.Numeric
	Sizes      map[string]decimal.Decimal
	Stock      int32
	ShowInMenu bool
}

func (q *Queries) CreateItem(ctx context.Context, arg CreateItemParams) (InventoryItem, error) {
	table, err := tableFor(arg.Catalog)
	if err != nil {
		return InventoryItem{}, err
	}
	var sizes []byte
	if arg.Sizes != nil {
		sizes, err = json.Marshal(arg.Sizes)
		if err != nil {
			return InventoryItem{}, fmt.Errorf("marshal sizes: %w", err)
		}
	}
	row := q.db.QueryRow(ctx, fmt.Sprintf(`
		INSERT INTO %s (name, category, price, sizes, stock, status, show_in_menu)
		VALUES ($1, $2, $3, $4, $5,
			CASE WHEN $5 > 0 THEN 'available' ELSE 'unavailable' END, $6)
		RETURNING %s`, table, itemColumns),
		arg.Name, arg.Category, arg.Price, sizes, arg.Stock, arg.ShowInMenu,
	)
	return scanItem(row)
}

type AdjustStockParams struct {
	ID      uuid.UUID
	Catalog string
	Delta   int32
}

// AdjustStock applies a clamped delta and recomputes availability in one
// statement. This is the only unguarded stock mutation primitive; callers
// never read-then-write stock.
func (q *Queries) AdjustStock(ctx context.Context, arg AdjustStockParams) (InventoryItem, error) {
	table, err := tableFor(arg.Catalog)
	if err != nil {
		return InventoryItem{}, err
	}
	row := q.db.QueryRow(ctx, fmt.Sprintf(`
		UPDATE %s SET
			stock = GREATEST(stock + $2, 0),
			status = CASE WHEN GREATEST(stock + $2, 0) > 0 THEN 'available' ELSE 'unavailable' END
		WHERE id = $1
		RETURNING %s`, table, itemColumns),
		arg.ID, arg.Delta,
	)
	return scanItem(row)
}

type DecrementStockParams struct {
	ID       uuid.UUID
	Catalog  string
	Quantity int32
}

// DecrementStock reserves stock for an order line. The predicate makes the
// check-and-decrement atomic: pgx.ErrNoRows means the item is gone or stock
// ran out under a concurrent submission.
func (q *Queries) DecrementStock(ctx context.Context, arg DecrementStockParams) (InventoryItem, error) {
	table, err := tableFor(arg.Catalog)
	if err != nil {
		return InventoryItem{}, err
	}
	row := q.db.QueryRow(ctx, fmt.Sprintf(`
		UPDATE %s SET
			stock = stock - $2,
			status = CASE WHEN stock - $2 > 0 THEN 'available' ELSE 'unavailable' END
		WHERE id = $1 AND stock >= $2
		RETURNING %s`, table, itemColumns),
		arg.ID, arg.Quantity,
	)
	return scanItem(row)
}

type SetStockParams struct {
	ID      uuid.UUID
	Catalog string
	Stock   int32
}

func (q *Queries) SetStock(ctx context.Context, arg SetStockParams) (InventoryItem, error) {
	table, err := tableFor(arg.Catalog)
	if err != nil {
		return InventoryItem{}, err
	}
	row := q.db.QueryRow(ctx, fmt.Sprintf(`
		UPDATE %s SET
			stock = $2,
			status = CASE WHEN $2 > 0 THEN 'available' ELSE 'unavailable' END
		WHERE id = $1
		RETURNING %s`, table, itemColumns),
		arg.ID, arg.Stock,
	)
	return scanItem(row)
}

type SetShowInMenuParams struct {
	ID         uuid.UUID
	Catalog    string
	ShowInMenu bool
}

func (q *Queries) SetShowInMenu(ctx context.Context, arg SetShowInMenuParams) (InventoryItem, error) {
	table, err := tableFor(arg.Catalog)
	if err != nil {
		return InventoryItem{}, err
	}
	row := q.db.QueryRow(ctx, fmt.Sprintf(`
		UPDATE %s SET show_in_menu = $2 WHERE id = $1 RETURNING %s`, table, itemColumns),
		arg.ID, arg.ShowInMenu,
	)
	return scanItem(row)
}

type MoveItemParams struct {
	ID      uuid.UUID
	Catalog string
}

// ArchiveItem moves a row to the catalog's archive table in one atomic
// statement, keeping the same id so it can be restored later.
func (q *Queries) ArchiveItem(ctx context.Context, arg MoveItemParams) (InventoryItem, error) {
	table, err := tableFor(arg.Catalog)
	if err != nil {
		return InventoryItem{}, err
	}
	archive, err := archiveTableFor(arg.Catalog)
	if err != nil {
		return InventoryItem{}, err
	}
	row := q.db.QueryRow(ctx, fmt.Sprintf(`
		WITH moved AS (
			DELETE FROM %s WHERE id = $1 RETURNING %s
		)
		INSERT INTO %s SELECT * FROM moved RETURNING %s`,
		table, itemColumns, archive, itemColumns),
		arg.ID,
	)
	return scanItem(row)
}

// UnarchiveItem moves an archived row back into its live catalog table.
func (q *Queries) UnarchiveItem(ctx context.Context, arg MoveItemParams) (InventoryItem, error) {
	table, err := tableFor(arg.Catalog)
	if err != nil {
		return InventoryItem{}, err
	}
	archive, err := archiveTableFor(arg.Catalog)
	if err != nil {
		return InventoryItem{}, err
	}
	row := q.db.QueryRow(ctx, fmt.Sprintf(`
		WITH moved AS (
			DELETE FROM %s WHERE id = $1 RETURNING %s
		)
		INSERT INTO %s SELECT * FROM moved RETURNING %s`,
		archive, itemColumns, table, itemColumns),
		arg.ID,
	)
	return scanItem(row)
}
