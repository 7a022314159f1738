package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// EnrichedProduct is a stored enriched listing. The same item_id may appear
// more than once; ids autoincrement.
type EnrichedProduct struct {
	ID                  int64     `json:"id"`
	ItemID              string    `json:"item_id"`
	OriginalDescription string    `json:"original_description"`
	EnrichedDescription string    `json:"enriched_description"`
	CreatedAt           time.Time `json:"created_at"`
}

// EnrichedProductFilters holds optional filters for searching enriched
// products.
type EnrichedProductFilters struct {
	Query       string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Limit       int
	Offset      int
}

// InsertEnrichedProducts bulk-inserts a batch of enriched products in a
// single round trip.
func (db *DB) InsertEnrichedProducts(ctx context.Context, products []EnrichedProduct) error {
	if len(products) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, p := range products {
		createdAt := p.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		batch.Queue(
			`INSERT INTO enriched_products (item_id, original_description, enriched_description, created_at)
			 VALUES ($1, $2, $3, $4)`,
			p.ItemID, p.OriginalDescription, p.EnrichedDescription, createdAt,
		)
	}

	results := db.pool.SendBatch(ctx, batch)
	defer func() { _ = results.Close() }()

	for range products {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to insert enriched products: %w", err)
		}
	}
	return nil
}

// GetEnrichedProduct retrieves the most recent enriched product for an item.
func (db *DB) GetEnrichedProduct(ctx context.Context, itemID string) (*EnrichedProduct, error) {
	var p EnrichedProduct
	err := db.pool.QueryRow(ctx,
		`SELECT id, item_id, original_description, enriched_description, created_at
		 FROM enriched_products
		 WHERE item_id = $1
		 ORDER BY created_at DESC
		 LIMIT 1`,
		itemID,
	).Scan(&p.ID, &p.ItemID, &p.OriginalDescription, &p.EnrichedDescription, &p.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get enriched product: %w", err)
	}
	return &p, nil
}

// SearchEnrichedProducts retrieves enriched products matching the filters,
// newest first, along with the total match count for pagination.
func (db *DB) SearchEnrichedProducts(ctx context.Context, filters EnrichedProductFilters) ([]EnrichedProduct, int, error) {
	if filters.Limit == 0 {
		filters.Limit = 50
	}

	where := ""
	args := []any{}
	argNum := 1

	addCondition := func(cond string, value any) {
		if where == "" {
			where = " WHERE "
		} else {
			where += " AND "
		}
		where += fmt.Sprintf(cond, argNum)
		args = append(args, value)
		argNum++
	}

	if filters.Query != "" {
		addCondition("(original_description ILIKE $%[1]d OR enriched_description ILIKE $%[1]d)", "%"+filters.Query+"%")
	}
	if filters.CreatedFrom != nil {
		addCondition("created_at >= $%d", *filters.CreatedFrom)
	}
	if filters.CreatedTo != nil {
		addCondition("created_at <= $%d", *filters.CreatedTo)
	}

	countQuery := "SELECT COUNT(1) FROM enriched_products" + where
	var total int
	if err := db.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count enriched products: %w", err)
	}

	query := fmt.Sprintf(
		`SELECT id, item_id, original_description, enriched_description, created_at
		 FROM enriched_products%s
		 ORDER BY created_at DESC
		 LIMIT $%d OFFSET $%d`,
		where, argNum, argNum+1,
	)
	args = append(args, filters.Limit, filters.Offset)

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to search enriched products: %w", err)
	}
	defer rows.Close()

	var products []EnrichedProduct
	for rows.Next() {
		var p EnrichedProduct
		if err := rows.Scan(&p.ID, &p.ItemID, &p.OriginalDescription, &p.EnrichedDescription, &p.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("failed to scan enriched product: %w", err)
		}
		products = append(products, p)
	}
	return products, total, nil
}
