package postgres

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"tokoerp/backend/internal/domain"
	"tokoerp/backend/internal/store"
)

func TestCommitOrderDecrementsInventoryAndAggregate(t *testing.T) {
	databaseURL := os.Getenv("TOKOERP_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set TOKOERP_TEST_DATABASE_URL to run postgres integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, databaseURL)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})

	stamp := time.Now().UnixNano()
	productID := fmt.Sprintf("prd-commit-it-%d", stamp)
	orderID := fmt.Sprintf("ord-commit-it-%d", stamp)
	stockID := "wh-main"

	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM order_items WHERE order_id = $1`, orderID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM orders WHERE id = $1`, orderID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM inventory_records WHERE product_id = $1`, productID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, productID)
	})

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, name, price_cents, stock, in_stock, active, created_at, updated_at)
		VALUES ($1, 'Kaos Commit IT', 9900, 10, true, true, now(), now())
	`, productID); err != nil {
		t.Fatalf("insert product: %v", err)
	}

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO inventory_records (id, product_id, variant_id, size, stock_id, qty, updated_at)
		VALUES ($1, $2, '', 'M', $3, 10, now())
		ON CONFLICT (product_id, variant_id, size, stock_id)
		DO UPDATE SET qty = 10, updated_at = now()
	`, fmt.Sprintf("inv-commit-it-%d", stamp), productID, stockID); err != nil {
		t.Fatalf("seed inventory: %v", err)
	}

	now := time.Now().UTC()
	order := domain.Order{
		ID:                orderID,
		Channel:           domain.ChannelWebsite,
		StockID:           stockID,
		PaymentStatus:     domain.PaymentPaid,
		FulfillmentStatus: domain.FulfillmentUnfulfilled,
		GrandTotalCents:   29700,
		Items: []domain.OrderItem{
			{ProductID: productID, Size: "M", Qty: 3, UnitPriceCents: 9900},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if _, err := s.CommitOrder(ctx, order, store.CommitPolicy{}); err != nil {
		t.Fatalf("commit order: %v", err)
	}

	var qty int
	if err := s.db.QueryRowContext(ctx, `
		SELECT qty
		FROM inventory_records
		WHERE product_id = $1 AND variant_id = '' AND size = 'M' AND stock_id = $2
	`, productID, stockID).Scan(&qty); err != nil {
		t.Fatalf("query inventory: %v", err)
	}
	if qty != 7 {
		t.Fatalf("expected inventory qty 7 after commit, got %d", qty)
	}

	var stock int
	if err := s.db.QueryRowContext(ctx, `
		SELECT stock FROM products WHERE id = $1
	`, productID).Scan(&stock); err != nil {
		t.Fatalf("query product stock: %v", err)
	}
	if stock != 7 {
		t.Fatalf("expected product aggregate 7 after web commit, got %d", stock)
	}

	var oversell domain.Order
	oversell = order
	oversell.ID = orderID + "-over"
	oversell.Items = []domain.OrderItem{
		{ProductID: productID, Size: "M", Qty: 8, UnitPriceCents: 9900},
	}
	if _, err := s.CommitOrder(ctx, oversell, store.CommitPolicy{}); err == nil {
		t.Fatalf("expected oversell to fail")
	}

	if err := s.db.QueryRowContext(ctx, `
		SELECT qty
		FROM inventory_records
		WHERE product_id = $1 AND variant_id = '' AND size = 'M' AND stock_id = $2
	`, productID, stockID).Scan(&qty); err != nil {
		t.Fatalf("query inventory after failed commit: %v", err)
	}
	if qty != 7 {
		t.Fatalf("expected inventory unchanged after failed commit, got %d", qty)
	}
}
