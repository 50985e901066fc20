package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"tokoerp/backend/internal/domain"
	"tokoerp/backend/internal/store"
	"tokoerp/backend/internal/xid"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, price_cents, stock, in_stock, active
		FROM products
		WHERE active = true
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 128)
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.PriceCents, &p.Stock, &p.InStock, &p.Active); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.ID == "" || product.Name == "" || product.PriceCents < 1 {
		return nil, store.ErrInvalid
	}

	product.Active = true
	product.InStock = product.Stock > 0
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, name, price_cents, stock, in_stock, active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,now(),now())
	`, product.ID, product.Name, product.PriceCents, product.Stock, product.InStock, product.Active)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrInvalid
		}
		return nil, err
	}

	created := product
	return &created, nil
}

func (s *Store) GetProductByID(ctx context.Context, id string) (*domain.Product, error) {
	var p domain.Product
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, price_cents, stock, in_stock, active
		FROM products
		WHERE id = $1
	`, id).Scan(&p.ID, &p.Name, &p.PriceCents, &p.Stock, &p.InStock, &p.Active)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (s *Store) UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.ID == "" || product.Name == "" || product.PriceCents < 1 {
		return nil, store.ErrInvalid
	}

	product.InStock = product.Stock > 0
	res, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET name = $2, price_cents = $3, stock = $4, in_stock = $5, active = $6, updated_at = now()
		WHERE id = $1
	`, product.ID, product.Name, product.PriceCents, product.Stock, product.InStock, product.Active)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}

	updated := product
	return &updated, nil
}

func (s *Store) CreateInventoryRecord(ctx context.Context, rec domain.InventoryRecord) (*domain.InventoryRecord, error) {
	if rec.ProductID == "" || rec.Size == "" || rec.StockID == "" {
		return nil, store.ErrInvalid
	}
	if rec.ID == "" {
		rec.ID = xid.New("inv")
	}

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO inventory_records (id, product_id, variant_id, size, stock_id, qty, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,now())
		ON CONFLICT (product_id, variant_id, size, stock_id)
		DO UPDATE SET qty = inventory_records.qty + EXCLUDED.qty, updated_at = now()
		RETURNING id, qty, updated_at
	`, rec.ID, rec.ProductID, rec.VariantID, rec.Size, rec.StockID, rec.Qty).
		Scan(&rec.ID, &rec.Qty, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}
	rec.UpdatedAt = rec.UpdatedAt.UTC()
	created := rec
	return &created, nil
}

func (s *Store) GetInventoryRecord(ctx context.Context, productID, variantID, size, stockID string) (*domain.InventoryRecord, error) {
	var rec domain.InventoryRecord
	err := s.db.QueryRowContext(ctx, `
		SELECT id, product_id, variant_id, size, stock_id, qty, updated_at
		FROM inventory_records
		WHERE product_id = $1 AND variant_id = $2 AND size = $3 AND stock_id = $4
	`, productID, variantID, size, stockID).
		Scan(&rec.ID, &rec.ProductID, &rec.VariantID, &rec.Size, &rec.StockID, &rec.Qty, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	rec.UpdatedAt = rec.UpdatedAt.UTC()
	return &rec, nil
}

func (s *Store) ListInventoryRecords(ctx context.Context, filter domain.InventoryFilter) (*domain.InventoryPage, error) {
	page := filter.Page
	if page < 1 {
		page = 1
	}
	limit := filter.Limit
	if limit < 1 {
		limit = 50
	}

	where := make([]string, 0, 4)
	args := make([]any, 0, 6)
	add := func(column, value string) {
		if value == "" {
			return
		}
		args = append(args, value)
		where = append(where, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	add("product_id", filter.ProductID)
	add("variant_id", filter.VariantID)
	add("size", filter.Size)
	add("stock_id", filter.StockID)

	clause := ""
	if len(where) > 0 {
		clause = "WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := s.db.QueryRowContext(ctx,
		"SELECT count(*) FROM inventory_records "+clause, args...).Scan(&total); err != nil {
		return nil, err
	}

	args = append(args, limit, (page-1)*limit)
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, product_id, variant_id, size, stock_id, qty, updated_at
		FROM inventory_records
		%s
		ORDER BY product_id, stock_id, size
		LIMIT $%d OFFSET $%d
	`, clause, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]domain.InventoryRecord, 0, limit)
	for rows.Next() {
		var rec domain.InventoryRecord
		if err := rows.Scan(&rec.ID, &rec.ProductID, &rec.VariantID, &rec.Size, &rec.StockID, &rec.Qty, &rec.UpdatedAt); err != nil {
			return nil, err
		}
		rec.UpdatedAt = rec.UpdatedAt.UTC()
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &domain.InventoryPage{Records: records, Total: total, Page: page, Limit: limit}, nil
}

// CommitOrder runs the whole order commit inside one serializable
// transaction: every inventory tuple is locked and validated before any
// write, web orders additionally mutate the product aggregate, and the
// order rows go in last. Any failure rolls the whole thing back.
func (s *Store) CommitOrder(ctx context.Context, order domain.Order, policy store.CommitPolicy) (*domain.Order, error) {
	if len(order.Items) == 0 {
		return nil, store.ErrInvalid
	}

	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	if order.Channel == domain.ChannelWebsite {
		seen := make(map[string]bool)
		for _, item := range order.Items {
			if seen[item.ProductID] {
				continue
			}
			seen[item.ProductID] = true
			var exists bool
			err := pgTx.QueryRowContext(ctx, `
				SELECT true FROM products WHERE id = $1 FOR UPDATE
			`, item.ProductID).Scan(&exists)
			if err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return nil, fmt.Errorf("product %s: %w", item.ProductID, store.ErrNotFound)
				}
				return nil, err
			}
		}
	}

	// Lock and validate every tuple before the first write. Skipped lines
	// never touch the aggregate, so deltas accumulate only once a line has
	// matched a tuple.
	pendingQty := make(map[string]int)
	writeOrder := make([]string, 0, len(order.Items))
	productDeltas := make(map[string]int)
	skipped := 0
	for _, item := range order.Items {
		var recID string
		var qty int
		err := pgTx.QueryRowContext(ctx, `
			SELECT id, qty
			FROM inventory_records
			WHERE product_id = $1 AND variant_id = $2 AND size = $3 AND stock_id = $4
			FOR UPDATE
		`, item.ProductID, item.VariantID, item.Size, order.StockID).Scan(&recID, &qty)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				if policy.SkipUnmatchedLines {
					log.Printf("[postgres-store] WARN: skipping unmatched inventory line product=%s variant=%s size=%s stock=%s", item.ProductID, item.VariantID, item.Size, order.StockID)
					skipped++
					continue
				}
				return nil, fmt.Errorf("inventory %s/%s/%s@%s: %w", item.ProductID, item.VariantID, item.Size, order.StockID, store.ErrNotFound)
			}
			return nil, err
		}

		if prior, ok := pendingQty[recID]; ok {
			qty = prior
		} else {
			writeOrder = append(writeOrder, recID)
		}
		newQty, err := store.ApplyStockDelta(qty, -item.Qty, policy.AllowNegativeStock)
		if err != nil {
			return nil, fmt.Errorf("product %s size %s: %w", item.ProductID, item.Size, err)
		}
		pendingQty[recID] = newQty
		if order.Channel == domain.ChannelWebsite {
			productDeltas[item.ProductID] += item.Qty
		}
	}
	if len(writeOrder) == 0 {
		return nil, fmt.Errorf("all lines unmatched: %w", store.ErrInvalid)
	}

	for _, recID := range writeOrder {
		if _, err := pgTx.ExecContext(ctx, `
			UPDATE inventory_records SET qty = $2, updated_at = now() WHERE id = $1
		`, recID, pendingQty[recID]); err != nil {
			return nil, err
		}
	}

	for productID, qty := range productDeltas {
		if _, err := pgTx.ExecContext(ctx, `
			UPDATE products
			SET stock = stock - $2, in_stock = (stock - $2) > 0, updated_at = now()
			WHERE id = $1
		`, productID, qty); err != nil {
			return nil, err
		}
	}

	order.SkippedLines = skipped
	customerJSON, err := marshalCustomer(order.Customer)
	if err != nil {
		return nil, err
	}
	_, err = pgTx.ExecContext(ctx, `
		INSERT INTO orders (
			id, channel, stock_id, terminal_id, payment_status, fulfillment_status,
			discount_cents, fee_cents, shipping_fee_cents, transaction_fee_cents,
			grand_total_cents, customer, skipped_lines, created_at, updated_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
	`, order.ID, order.Channel, order.StockID, nullIfEmpty(order.TerminalID),
		order.PaymentStatus, order.FulfillmentStatus,
		order.DiscountCents, order.FeeCents, order.ShippingFeeCents, order.TransactionFeeCents,
		order.GrandTotalCents, customerJSON, order.SkippedLines, order.CreatedAt, order.UpdatedAt)
	if err != nil {
		return nil, err
	}

	for _, item := range order.Items {
		if _, err := pgTx.ExecContext(ctx, `
			INSERT INTO order_items (order_id, product_id, variant_id, size, qty, unit_price_cents, unit_discount_cents)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
		`, order.ID, item.ProductID, item.VariantID, item.Size, item.Qty, item.UnitPriceCents, item.UnitDiscountCents); err != nil {
			return nil, err
		}
	}

	if err := pgTx.Commit(); err != nil {
		return nil, err
	}

	created := order
	return &created, nil
}

func (s *Store) GetOrderByID(ctx context.Context, id string) (*domain.Order, error) {
	var order domain.Order
	var terminalID sql.NullString
	var customerJSON []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT id, channel, stock_id, terminal_id, payment_status, fulfillment_status,
			discount_cents, fee_cents, shipping_fee_cents, transaction_fee_cents,
			grand_total_cents, customer, skipped_lines, created_at, updated_at
		FROM orders
		WHERE id = $1
	`, id).Scan(&order.ID, &order.Channel, &order.StockID, &terminalID,
		&order.PaymentStatus, &order.FulfillmentStatus,
		&order.DiscountCents, &order.FeeCents, &order.ShippingFeeCents, &order.TransactionFeeCents,
		&order.GrandTotalCents, &customerJSON, &order.SkippedLines, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	order.TerminalID = terminalID.String
	order.Customer, err = unmarshalCustomer(customerJSON)
	if err != nil {
		return nil, err
	}
	order.CreatedAt = order.CreatedAt.UTC()
	order.UpdatedAt = order.UpdatedAt.UTC()

	items, err := s.orderItems(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	order.Items = items
	return &order, nil
}

func (s *Store) orderItems(ctx context.Context, orderID string) ([]domain.OrderItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT product_id, variant_id, size, qty, unit_price_cents, unit_discount_cents
		FROM order_items
		WHERE order_id = $1
		ORDER BY product_id, variant_id, size
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.OrderItem, 0, 8)
	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(&item.ProductID, &item.VariantID, &item.Size, &item.Qty, &item.UnitPriceCents, &item.UnitDiscountCents); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *Store) ListOrders(ctx context.Context, limit int) ([]domain.Order, error) {
	if limit < 1 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id FROM orders ORDER BY created_at DESC LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, limit)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			_ = rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()

	orders := make([]domain.Order, 0, len(ids))
	for _, id := range ids {
		order, err := s.GetOrderByID(ctx, id)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *order)
	}
	return orders, nil
}

// UpdateOrder rewrites the mutable order fields. Items are immutable
// after commit and are deliberately not touched here.
func (s *Store) UpdateOrder(ctx context.Context, order domain.Order) (*domain.Order, error) {
	customerJSON, err := marshalCustomer(order.Customer)
	if err != nil {
		return nil, err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE orders
		SET payment_status = $2, fulfillment_status = $3, customer = $4, updated_at = $5
		WHERE id = $1
	`, order.ID, order.PaymentStatus, order.FulfillmentStatus, customerJSON, order.UpdatedAt)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}
	updated := order
	return &updated, nil
}

// NextAdjustmentNumber bumps the per-month counter row and returns the
// new sequence. The upsert is atomic, so concurrent adjustments never
// share a number.
func (s *Store) NextAdjustmentNumber(ctx context.Context, yearMonth string) (int, error) {
	var seq int
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO adjustment_counters (year_month, seq)
		VALUES ($1, 1)
		ON CONFLICT (year_month) DO UPDATE SET seq = adjustment_counters.seq + 1
		RETURNING seq
	`, yearMonth).Scan(&seq)
	if err != nil {
		return 0, err
	}
	return seq, nil
}

// ApplyAdjustment persists the adjustment record and applies every item
// delta in the same serializable transaction. Transfer source and
// destination move together or not at all.
func (s *Store) ApplyAdjustment(ctx context.Context, adj domain.InventoryAdjustment) (*domain.InventoryAdjustment, error) {
	if adj.Number == "" || len(adj.Items) == 0 {
		return nil, store.ErrInvalid
	}
	for _, item := range adj.Items {
		if item.Qty <= 0 {
			return nil, fmt.Errorf("qty must be positive: %w", store.ErrInvalid)
		}
		if adj.Kind == domain.AdjustmentTransfer && item.DestStockID == "" {
			return nil, fmt.Errorf("transfer requires dest_stock_id: %w", store.ErrInvalid)
		}
	}

	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	_, err = pgTx.ExecContext(ctx, `
		INSERT INTO inventory_adjustments (id, number, kind, reason, notes, created_by, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, adj.ID, adj.Number, adj.Kind, adj.Reason, nullIfEmpty(adj.Notes), adj.CreatedBy, adj.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrStateConflict
		}
		return nil, err
	}

	for _, item := range adj.Items {
		if _, err := pgTx.ExecContext(ctx, `
			INSERT INTO adjustment_items (adjustment_id, product_id, variant_id, size, stock_id, dest_stock_id, qty)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
		`, adj.ID, item.ProductID, item.VariantID, item.Size, item.StockID, nullIfEmpty(item.DestStockID), item.Qty); err != nil {
			return nil, err
		}

		qty, err := lockOrCreateRecord(ctx, pgTx, item.ProductID, item.VariantID, item.Size, item.StockID)
		if err != nil {
			return nil, err
		}
		switch adj.Kind {
		case domain.AdjustmentAdd, domain.AdjustmentReturn:
			qty += item.Qty
		case domain.AdjustmentRemove, domain.AdjustmentDamage:
			qty = store.ClampStockDelta(qty, -item.Qty)
		case domain.AdjustmentTransfer:
			qty = store.ClampStockDelta(qty, -item.Qty)
			dstQty, err := lockOrCreateRecord(ctx, pgTx, item.ProductID, item.VariantID, item.Size, item.DestStockID)
			if err != nil {
				return nil, err
			}
			if err := setRecordQty(ctx, pgTx, item.ProductID, item.VariantID, item.Size, item.DestStockID, dstQty+item.Qty); err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("unknown kind %q: %w", adj.Kind, store.ErrInvalid)
		}
		if err := setRecordQty(ctx, pgTx, item.ProductID, item.VariantID, item.Size, item.StockID, qty); err != nil {
			return nil, err
		}
	}

	if err := pgTx.Commit(); err != nil {
		return nil, err
	}

	created := adj
	return &created, nil
}

func lockOrCreateRecord(ctx context.Context, tx *sql.Tx, productID, variantID, size, stockID string) (int, error) {
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO inventory_records (id, product_id, variant_id, size, stock_id, qty, updated_at)
		VALUES ($1,$2,$3,$4,$5,0,now())
		ON CONFLICT (product_id, variant_id, size, stock_id) DO NOTHING
	`, xid.New("inv"), productID, variantID, size, stockID); err != nil {
		return 0, err
	}
	var qty int
	err := tx.QueryRowContext(ctx, `
		SELECT qty FROM inventory_records
		WHERE product_id = $1 AND variant_id = $2 AND size = $3 AND stock_id = $4
		FOR UPDATE
	`, productID, variantID, size, stockID).Scan(&qty)
	return qty, err
}

func setRecordQty(ctx context.Context, tx *sql.Tx, productID, variantID, size, stockID string, qty int) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE inventory_records
		SET qty = $5, updated_at = now()
		WHERE product_id = $1 AND variant_id = $2 AND size = $3 AND stock_id = $4
	`, productID, variantID, size, stockID, qty)
	return err
}

func (s *Store) ListAdjustments(ctx context.Context, limit int) ([]domain.InventoryAdjustment, error) {
	if limit < 1 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, number, kind, reason, COALESCE(notes, ''), created_by, created_at
		FROM inventory_adjustments
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.InventoryAdjustment, 0, limit)
	for rows.Next() {
		var adj domain.InventoryAdjustment
		if err := rows.Scan(&adj.ID, &adj.Number, &adj.Kind, &adj.Reason, &adj.Notes, &adj.CreatedBy, &adj.CreatedAt); err != nil {
			return nil, err
		}
		adj.CreatedAt = adj.CreatedAt.UTC()
		out = append(out, adj)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		items, err := s.adjustmentItems(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Items = items
	}
	return out, nil
}

func (s *Store) GetAdjustmentByNumber(ctx context.Context, number string) (*domain.InventoryAdjustment, error) {
	var adj domain.InventoryAdjustment
	err := s.db.QueryRowContext(ctx, `
		SELECT id, number, kind, reason, COALESCE(notes, ''), created_by, created_at
		FROM inventory_adjustments
		WHERE number = $1
	`, number).Scan(&adj.ID, &adj.Number, &adj.Kind, &adj.Reason, &adj.Notes, &adj.CreatedBy, &adj.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	adj.CreatedAt = adj.CreatedAt.UTC()
	items, err := s.adjustmentItems(ctx, adj.ID)
	if err != nil {
		return nil, err
	}
	adj.Items = items
	return &adj, nil
}

func (s *Store) adjustmentItems(ctx context.Context, adjustmentID string) ([]domain.AdjustmentItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT product_id, variant_id, size, stock_id, COALESCE(dest_stock_id, ''), qty
		FROM adjustment_items
		WHERE adjustment_id = $1
		ORDER BY product_id, size
	`, adjustmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.AdjustmentItem, 0, 8)
	for rows.Next() {
		var item domain.AdjustmentItem
		if err := rows.Scan(&item.ProductID, &item.VariantID, &item.Size, &item.StockID, &item.DestStockID, &item.Qty); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *Store) UpsertLedgerEntry(ctx context.Context, entry domain.LedgerEntry) error {
	if entry.OrderID == "" || entry.Hash == "" {
		return store.ErrInvalid
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO order_ledger (order_id, hash, prev_hash, computed_at)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (order_id) DO UPDATE SET hash = EXCLUDED.hash, prev_hash = EXCLUDED.prev_hash, computed_at = EXCLUDED.computed_at
	`, entry.OrderID, entry.Hash, nullIfEmpty(entry.PrevHash), entry.ComputedAt)
	return err
}

func (s *Store) GetLedgerEntry(ctx context.Context, orderID string) (*domain.LedgerEntry, error) {
	var entry domain.LedgerEntry
	var prev sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT order_id, hash, prev_hash, computed_at
		FROM order_ledger
		WHERE order_id = $1
	`, orderID).Scan(&entry.OrderID, &entry.Hash, &prev, &entry.ComputedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	entry.PrevHash = prev.String
	entry.ComputedAt = entry.ComputedAt.UTC()
	return &entry, nil
}

func (s *Store) LatestLedgerEntry(ctx context.Context) (*domain.LedgerEntry, error) {
	var entry domain.LedgerEntry
	var prev sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT order_id, hash, prev_hash, computed_at
		FROM order_ledger
		ORDER BY computed_at DESC
		LIMIT 1
	`).Scan(&entry.OrderID, &entry.Hash, &prev, &entry.ComputedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	entry.PrevHash = prev.String
	entry.ComputedAt = entry.ComputedAt.UTC()
	return &entry, nil
}

func (s *Store) CreatePettyCash(ctx context.Context, entry domain.PettyCashEntry) (*domain.PettyCashEntry, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT true FROM bank_accounts WHERE id = $1
	`, entry.BankAccountID).Scan(&exists)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("bank account %s: %w", entry.BankAccountID, store.ErrNotFound)
		}
		return nil, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO petty_cash (id, bank_account_id, amount_cents, purpose, status, created_by, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$7)
	`, entry.ID, entry.BankAccountID, entry.AmountCents, entry.Purpose, entry.Status, entry.CreatedBy, entry.CreatedAt)
	if err != nil {
		return nil, err
	}
	created := entry
	return &created, nil
}

func (s *Store) GetPettyCashByID(ctx context.Context, id string) (*domain.PettyCashEntry, error) {
	return scanPettyCash(s.db.QueryRowContext(ctx, `
		SELECT id, bank_account_id, amount_cents, purpose, status, reviewed_by, reviewed_at, created_by, created_at, updated_at
		FROM petty_cash
		WHERE id = $1
	`, id))
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPettyCash(row rowScanner) (*domain.PettyCashEntry, error) {
	var entry domain.PettyCashEntry
	var reviewedBy sql.NullString
	var reviewedAt sql.NullTime
	err := row.Scan(&entry.ID, &entry.BankAccountID, &entry.AmountCents, &entry.Purpose,
		&entry.Status, &reviewedBy, &reviewedAt, &entry.CreatedBy, &entry.CreatedAt, &entry.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	entry.ReviewedBy = reviewedBy.String
	if reviewedAt.Valid {
		t := reviewedAt.Time.UTC()
		entry.ReviewedAt = &t
	}
	entry.CreatedAt = entry.CreatedAt.UTC()
	entry.UpdatedAt = entry.UpdatedAt.UTC()
	return &entry, nil
}

func (s *Store) ListPettyCash(ctx context.Context, status string, limit int) ([]domain.PettyCashEntry, error) {
	if limit < 1 {
		limit = 50
	}
	query := `
		SELECT id, bank_account_id, amount_cents, purpose, status, reviewed_by, reviewed_at, created_by, created_at, updated_at
		FROM petty_cash
	`
	args := []any{limit}
	if status != "" {
		query += " WHERE status = $2"
		args = append(args, status)
	}
	query += " ORDER BY created_at DESC LIMIT $1"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.PettyCashEntry, 0, limit)
	for rows.Next() {
		entry, err := scanPettyCash(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *entry)
	}
	return out, rows.Err()
}

func (s *Store) UpdatePettyCash(ctx context.Context, entry domain.PettyCashEntry) (*domain.PettyCashEntry, error) {
	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	var status string
	err = pgTx.QueryRowContext(ctx, `
		SELECT status FROM petty_cash WHERE id = $1 FOR UPDATE
	`, entry.ID).Scan(&status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	if status != domain.PettyCashPending {
		return nil, fmt.Errorf("petty cash %s is %s: %w", entry.ID, status, store.ErrStateConflict)
	}

	if _, err := pgTx.ExecContext(ctx, `
		UPDATE petty_cash
		SET amount_cents = $2, purpose = $3, updated_at = now()
		WHERE id = $1
	`, entry.ID, entry.AmountCents, entry.Purpose); err != nil {
		return nil, err
	}

	if err := pgTx.Commit(); err != nil {
		return nil, err
	}
	return s.GetPettyCashByID(ctx, entry.ID)
}

// ReviewPettyCash flips a PENDING entry to APPROVED or REJECTED. The
// bank debit on approval happens in the same transaction as the status
// change.
func (s *Store) ReviewPettyCash(ctx context.Context, id, status, reviewer string, at time.Time) (*domain.PettyCashEntry, error) {
	if status != domain.PettyCashApproved && status != domain.PettyCashRejected {
		return nil, fmt.Errorf("status %q: %w", status, store.ErrInvalid)
	}

	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	var current string
	var bankAccountID string
	var amountCents int64
	err = pgTx.QueryRowContext(ctx, `
		SELECT status, bank_account_id, amount_cents
		FROM petty_cash
		WHERE id = $1
		FOR UPDATE
	`, id).Scan(&current, &bankAccountID, &amountCents)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	if current != domain.PettyCashPending {
		return nil, fmt.Errorf("petty cash %s is %s: %w", id, current, store.ErrStateConflict)
	}

	if status == domain.PettyCashApproved {
		res, err := pgTx.ExecContext(ctx, `
			UPDATE bank_accounts SET balance_cents = balance_cents - $2 WHERE id = $1
		`, bankAccountID, amountCents)
		if err != nil {
			return nil, err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, err
		}
		if affected == 0 {
			return nil, fmt.Errorf("bank account %s: %w", bankAccountID, store.ErrNotFound)
		}
	}

	if _, err := pgTx.ExecContext(ctx, `
		UPDATE petty_cash
		SET status = $2, reviewed_by = $3, reviewed_at = $4, updated_at = $4
		WHERE id = $1
	`, id, status, reviewer, at); err != nil {
		return nil, err
	}

	if err := pgTx.Commit(); err != nil {
		return nil, err
	}
	return s.GetPettyCashByID(ctx, id)
}

func (s *Store) CreateBankAccount(ctx context.Context, account domain.BankAccount) (*domain.BankAccount, error) {
	if account.Name == "" {
		return nil, store.ErrInvalid
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO bank_accounts (id, name, balance_cents, created_at)
		VALUES ($1,$2,$3,$4)
	`, account.ID, account.Name, account.BalanceCents, account.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrStateConflict
		}
		return nil, err
	}
	created := account
	return &created, nil
}

func (s *Store) GetBankAccountByID(ctx context.Context, id string) (*domain.BankAccount, error) {
	var account domain.BankAccount
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, balance_cents, created_at
		FROM bank_accounts
		WHERE id = $1
	`, id).Scan(&account.ID, &account.Name, &account.BalanceCents, &account.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	account.CreatedAt = account.CreatedAt.UTC()
	return &account, nil
}

func (s *Store) ListBankAccounts(ctx context.Context) ([]domain.BankAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, balance_cents, created_at
		FROM bank_accounts
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.BankAccount, 0, 16)
	for rows.Next() {
		var account domain.BankAccount
		if err := rows.Scan(&account.ID, &account.Name, &account.BalanceCents, &account.CreatedAt); err != nil {
			return nil, err
		}
		account.CreatedAt = account.CreatedAt.UTC()
		out = append(out, account)
	}
	return out, rows.Err()
}

func (s *Store) CreateExpenseCategory(ctx context.Context, category domain.ExpenseCategory) (*domain.ExpenseCategory, error) {
	if category.Name == "" {
		return nil, store.ErrInvalid
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO expense_categories (id, name, created_at)
		VALUES ($1,$2,$3)
	`, category.ID, category.Name, category.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrStateConflict
		}
		return nil, err
	}
	created := category
	return &created, nil
}

func (s *Store) ListExpenseCategories(ctx context.Context) ([]domain.ExpenseCategory, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, created_at
		FROM expense_categories
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.ExpenseCategory, 0, 16)
	for rows.Next() {
		var category domain.ExpenseCategory
		if err := rows.Scan(&category.ID, &category.Name, &category.CreatedAt); err != nil {
			return nil, err
		}
		category.CreatedAt = category.CreatedAt.UTC()
		out = append(out, category)
	}
	return out, rows.Err()
}

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, action, entity_type, entity_id, actor, detail, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, entry.ID, entry.Action, entry.EntityType, entry.EntityID, entry.Actor, nullIfEmpty(entry.Detail), entry.CreatedAt)
	return err
}

func (s *Store) ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, action, entity_type, entity_id, actor, COALESCE(detail, ''), created_at
		FROM audit_logs
		WHERE ($1::timestamptz IS NULL OR created_at >= $1)
			AND ($2::timestamptz IS NULL OR created_at <= $2)
		ORDER BY created_at DESC
		LIMIT $3
	`, nullTimeValue(from), nullTimeValue(to), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.AuditLog, 0, limit)
	for rows.Next() {
		var entry domain.AuditLog
		if err := rows.Scan(&entry.ID, &entry.Action, &entry.EntityType, &entry.EntityID, &entry.Actor, &entry.Detail, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.CreatedAt = entry.CreatedAt.UTC()
		out = append(out, entry)
	}
	return out, rows.Err()
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalid
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_users (username, password, role, active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,now(),now())
	`, username, user.Password, user.Role, user.Active)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrStateConflict
		}
		return err
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password, role, active, created_at
		FROM app_users
		ORDER BY username
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.UserAccount, 0, 16)
	for rows.Next() {
		var u domain.UserAccount
		if err := rows.Scan(&u.Username, &u.Password, &u.Role, &u.Active, &u.CreatedAt); err != nil {
			return nil, err
		}
		u.CreatedAt = u.CreatedAt.UTC()
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrInvalid
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE app_users
		SET password = $2, updated_at = now()
		WHERE username = $1
	`, username, password)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func marshalCustomer(c *domain.Customer) (any, error) {
	if c == nil {
		return nil, nil
	}
	raw, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	return raw, nil
}

func unmarshalCustomer(raw []byte) (*domain.Customer, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var c domain.Customer
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func nullIfEmpty(val string) any {
	if val == "" {
		return nil
	}
	return val
}

func nullTimeValue(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
