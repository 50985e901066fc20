package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"tokoerp/backend/internal/cart"
	"tokoerp/backend/internal/domain"
	"tokoerp/backend/internal/store"
	"tokoerp/backend/internal/store/memory"
)

func newTestService(policy store.CommitPolicy) (*Service, *memory.Store) {
	repo := memory.NewSeeded()
	return New(repo, cart.NewMemoryStore(), "wh-main", 5*time.Minute, policy), repo
}

func adminContext() context.Context {
	return WithActor(context.Background(), domain.Actor{
		Username: "admin",
		Role:     "admin",
	})
}

func TestPlaceOrderWebDecrementsTupleAndAggregate(t *testing.T) {
	svc, repo := newTestService(store.CommitPolicy{})
	ctx := adminContext()

	order, err := svc.PlaceOrder(ctx, domain.OrderCreateRequest{
		Channel: "website",
		StockID: "wh-main",
		Items: []domain.OrderItem{
			{ProductID: "prd-kaos-basic", Size: "M", Qty: 3, UnitPriceCents: 8900000},
		},
	})
	if err != nil {
		t.Fatalf("place order failed: %v", err)
	}
	if order.GrandTotalCents != 3*8900000 {
		t.Fatalf("unexpected grand total %d", order.GrandTotalCents)
	}
	if !order.Integrity {
		t.Fatalf("expected fresh order to verify")
	}

	rec, err := repo.GetInventoryRecord(ctx, "prd-kaos-basic", "", "M", "wh-main")
	if err != nil {
		t.Fatalf("get inventory failed: %v", err)
	}
	if rec.Qty != 17 {
		t.Fatalf("expected tuple qty 17, got %d", rec.Qty)
	}

	product, err := repo.GetProductByID(ctx, "prd-kaos-basic")
	if err != nil {
		t.Fatalf("get product failed: %v", err)
	}
	if product.Stock != 57 {
		t.Fatalf("expected aggregate 57 after web order, got %d", product.Stock)
	}
}

func TestPlaceOrderStoreChannelLeavesAggregate(t *testing.T) {
	svc, repo := newTestService(store.CommitPolicy{})
	ctx := adminContext()

	_, err := svc.PlaceOrder(ctx, domain.OrderCreateRequest{
		Channel: "store",
		StockID: "wh-main",
		Items: []domain.OrderItem{
			{ProductID: "prd-kaos-basic", Size: "L", Qty: 2, UnitPriceCents: 8900000},
		},
	})
	if err != nil {
		t.Fatalf("place order failed: %v", err)
	}

	rec, err := repo.GetInventoryRecord(ctx, "prd-kaos-basic", "", "L", "wh-main")
	if err != nil {
		t.Fatalf("get inventory failed: %v", err)
	}
	if rec.Qty != 18 {
		t.Fatalf("expected tuple qty 18, got %d", rec.Qty)
	}

	product, err := repo.GetProductByID(ctx, "prd-kaos-basic")
	if err != nil {
		t.Fatalf("get product failed: %v", err)
	}
	if product.Stock != 60 {
		t.Fatalf("expected aggregate untouched by store order, got %d", product.Stock)
	}
}

func TestPlaceOrderRejectsOversellAndRollsBack(t *testing.T) {
	svc, repo := newTestService(store.CommitPolicy{})
	ctx := adminContext()

	_, err := svc.PlaceOrder(ctx, domain.OrderCreateRequest{
		Channel: "website",
		StockID: "wh-main",
		Items: []domain.OrderItem{
			{ProductID: "prd-kaos-basic", Size: "M", Qty: 5, UnitPriceCents: 8900000},
			{ProductID: "prd-kaos-basic", Size: "L", Qty: 25, UnitPriceCents: 8900000},
		},
	})
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}

	recM, err := repo.GetInventoryRecord(ctx, "prd-kaos-basic", "", "M", "wh-main")
	if err != nil {
		t.Fatalf("get inventory failed: %v", err)
	}
	if recM.Qty != 20 {
		t.Fatalf("expected M untouched after failed commit, got %d", recM.Qty)
	}

	product, err := repo.GetProductByID(ctx, "prd-kaos-basic")
	if err != nil {
		t.Fatalf("get product failed: %v", err)
	}
	if product.Stock != 60 {
		t.Fatalf("expected aggregate untouched after failed commit, got %d", product.Stock)
	}
}

func TestPlaceOrderAllowsNegativeStockWhenConfigured(t *testing.T) {
	svc, repo := newTestService(store.CommitPolicy{AllowNegativeStock: true})
	ctx := adminContext()

	_, err := svc.PlaceOrder(ctx, domain.OrderCreateRequest{
		Channel: "store",
		StockID: "wh-main",
		Items: []domain.OrderItem{
			{ProductID: "prd-kaos-basic", Size: "M", Qty: 25, UnitPriceCents: 8900000},
		},
	})
	if err != nil {
		t.Fatalf("expected negative-stock order to commit: %v", err)
	}

	rec, err := repo.GetInventoryRecord(ctx, "prd-kaos-basic", "", "M", "wh-main")
	if err != nil {
		t.Fatalf("get inventory failed: %v", err)
	}
	if rec.Qty != -5 {
		t.Fatalf("expected tuple qty -5, got %d", rec.Qty)
	}
}

func TestPlaceOrderSkipsUnmatchedLinesWhenConfigured(t *testing.T) {
	svc, repo := newTestService(store.CommitPolicy{SkipUnmatchedLines: true})
	ctx := adminContext()

	order, err := svc.PlaceOrder(ctx, domain.OrderCreateRequest{
		Channel: "store",
		StockID: "wh-main",
		Items: []domain.OrderItem{
			{ProductID: "prd-kaos-basic", Size: "M", Qty: 1, UnitPriceCents: 8900000},
			{ProductID: "prd-tidak-ada", Size: "M", Qty: 1, UnitPriceCents: 1000},
		},
	})
	if err != nil {
		t.Fatalf("place order failed: %v", err)
	}
	if order.SkippedLines != 1 {
		t.Fatalf("expected 1 skipped line, got %d", order.SkippedLines)
	}

	rec, err := repo.GetInventoryRecord(ctx, "prd-kaos-basic", "", "M", "wh-main")
	if err != nil {
		t.Fatalf("get inventory failed: %v", err)
	}
	if rec.Qty != 19 {
		t.Fatalf("expected matched line applied, got qty %d", rec.Qty)
	}
}

func TestPlaceOrderSkippedLinesLeaveAggregateUntouched(t *testing.T) {
	svc, repo := newTestService(store.CommitPolicy{SkipUnmatchedLines: true})
	ctx := adminContext()

	order, err := svc.PlaceOrder(ctx, domain.OrderCreateRequest{
		Channel: "website",
		StockID: "wh-main",
		Items: []domain.OrderItem{
			{ProductID: "prd-kaos-basic", Size: "M", Qty: 1, UnitPriceCents: 8900000},
			{ProductID: "prd-kaos-basic", Size: "XXL", Qty: 5, UnitPriceCents: 8900000},
		},
	})
	if err != nil {
		t.Fatalf("place order failed: %v", err)
	}
	if order.SkippedLines != 1 {
		t.Fatalf("expected 1 skipped line, got %d", order.SkippedLines)
	}

	rec, err := repo.GetInventoryRecord(ctx, "prd-kaos-basic", "", "M", "wh-main")
	if err != nil {
		t.Fatalf("get inventory failed: %v", err)
	}
	if rec.Qty != 19 {
		t.Fatalf("expected matched tuple decremented to 19, got %d", rec.Qty)
	}

	p, err := repo.GetProductByID(ctx, "prd-kaos-basic")
	if err != nil {
		t.Fatalf("get product failed: %v", err)
	}
	if p.Stock != 59 {
		t.Fatalf("expected aggregate to reflect only the matched line (59), got %d", p.Stock)
	}
}

func TestPlaceOrderRejectsFullyUnmatchedOrder(t *testing.T) {
	svc, _ := newTestService(store.CommitPolicy{SkipUnmatchedLines: true})
	ctx := adminContext()

	_, err := svc.PlaceOrder(ctx, domain.OrderCreateRequest{
		Channel: "store",
		StockID: "wh-main",
		Items: []domain.OrderItem{
			{ProductID: "prd-tidak-ada", Size: "M", Qty: 1, UnitPriceCents: 1000},
		},
	})
	if !errors.Is(err, store.ErrInvalid) {
		t.Fatalf("expected ErrInvalid when every line is unmatched, got %v", err)
	}
}

func TestPlaceOrderRejectsUnmatchedLineWithoutSkipFlag(t *testing.T) {
	svc, _ := newTestService(store.CommitPolicy{})
	ctx := adminContext()

	_, err := svc.PlaceOrder(ctx, domain.OrderCreateRequest{
		Channel: "store",
		StockID: "wh-main",
		Items: []domain.OrderItem{
			{ProductID: "prd-tidak-ada", Size: "M", Qty: 1, UnitPriceCents: 1000},
		},
	})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unmatched line, got %v", err)
	}
}

func TestOrderVerifyDetectsTamper(t *testing.T) {
	svc, repo := newTestService(store.CommitPolicy{})
	ctx := adminContext()

	placed, err := svc.PlaceOrder(ctx, domain.OrderCreateRequest{
		Channel: "website",
		StockID: "wh-main",
		Items: []domain.OrderItem{
			{ProductID: "prd-kaos-basic", Size: "M", Qty: 1, UnitPriceCents: 8900000},
		},
	})
	if err != nil {
		t.Fatalf("place order failed: %v", err)
	}

	verify, err := svc.VerifyOrder(ctx, placed.ID)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if !verify.Integrity {
		t.Fatalf("expected untouched order to verify")
	}

	// Mutate the stored row without going through the service, so the
	// ledger entry is never recomputed.
	tampered, err := repo.GetOrderByID(ctx, placed.ID)
	if err != nil {
		t.Fatalf("get order failed: %v", err)
	}
	tampered.GrandTotalCents = 1
	if _, err := repo.UpdateOrder(ctx, *tampered); err != nil {
		t.Fatalf("tamper update failed: %v", err)
	}

	verify, err = svc.VerifyOrder(ctx, placed.ID)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if verify.Integrity {
		t.Fatalf("expected tampered order to fail verification")
	}

	fetched, err := svc.GetOrder(ctx, placed.ID)
	if err != nil {
		t.Fatalf("get order failed: %v", err)
	}
	if fetched.Integrity {
		t.Fatalf("expected integrity flag false on tampered order")
	}
}

func TestUpdateOrderStatusKeepsIntegrity(t *testing.T) {
	svc, _ := newTestService(store.CommitPolicy{})
	ctx := adminContext()

	placed, err := svc.PlaceOrder(ctx, domain.OrderCreateRequest{
		Channel: "website",
		StockID: "wh-main",
		Items: []domain.OrderItem{
			{ProductID: "prd-kaos-basic", Size: "M", Qty: 1, UnitPriceCents: 8900000},
		},
	})
	if err != nil {
		t.Fatalf("place order failed: %v", err)
	}

	paid := domain.PaymentPaid
	shipped := domain.FulfillmentShipped
	updated, err := svc.UpdateOrderStatus(ctx, placed.ID, domain.OrderStatusUpdateRequest{
		PaymentStatus:     &paid,
		FulfillmentStatus: &shipped,
	})
	if err != nil {
		t.Fatalf("status update failed: %v", err)
	}
	if updated.PaymentStatus != domain.PaymentPaid || updated.FulfillmentStatus != domain.FulfillmentShipped {
		t.Fatalf("unexpected statuses %s/%s", updated.PaymentStatus, updated.FulfillmentStatus)
	}

	verify, err := svc.VerifyOrder(ctx, placed.ID)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if !verify.Integrity {
		t.Fatalf("expected order to verify after legitimate update")
	}
}

func TestUpdateOrderStatusRejectsRefundedOrder(t *testing.T) {
	svc, _ := newTestService(store.CommitPolicy{})
	ctx := adminContext()

	placed, err := svc.PlaceOrder(ctx, domain.OrderCreateRequest{
		Channel: "store",
		StockID: "wh-main",
		Items: []domain.OrderItem{
			{ProductID: "prd-kaos-basic", Size: "M", Qty: 1, UnitPriceCents: 8900000},
		},
	})
	if err != nil {
		t.Fatalf("place order failed: %v", err)
	}

	refunded := domain.PaymentRefunded
	if _, err := svc.UpdateOrderStatus(ctx, placed.ID, domain.OrderStatusUpdateRequest{PaymentStatus: &refunded}); err != nil {
		t.Fatalf("refund update failed: %v", err)
	}

	pending := domain.PaymentPending
	_, err = svc.UpdateOrderStatus(ctx, placed.ID, domain.OrderStatusUpdateRequest{PaymentStatus: &pending})
	if !errors.Is(err, store.ErrStateConflict) {
		t.Fatalf("expected ErrStateConflict for refunded order, got %v", err)
	}
}

func TestAdjustmentTransferMovesStockAtomically(t *testing.T) {
	svc, repo := newTestService(store.CommitPolicy{})
	ctx := adminContext()

	adj, err := svc.CreateAdjustment(ctx, domain.AdjustmentCreateRequest{
		Kind:   "transfer",
		Reason: "restock toko pusat",
		Items: []domain.AdjustmentItem{
			{ProductID: "prd-celana-chino", Size: "32", StockID: "wh-main", DestStockID: "store-pusat", Qty: 5},
		},
	})
	if err != nil {
		t.Fatalf("transfer failed: %v", err)
	}
	if adj.Kind != domain.AdjustmentTransfer {
		t.Fatalf("unexpected kind %s", adj.Kind)
	}

	src, err := repo.GetInventoryRecord(ctx, "prd-celana-chino", "", "32", "wh-main")
	if err != nil {
		t.Fatalf("get source failed: %v", err)
	}
	if src.Qty != 10 {
		t.Fatalf("expected source qty 10, got %d", src.Qty)
	}

	dst, err := repo.GetInventoryRecord(ctx, "prd-celana-chino", "", "32", "store-pusat")
	if err != nil {
		t.Fatalf("expected destination record to be created: %v", err)
	}
	if dst.Qty != 5 {
		t.Fatalf("expected destination qty 5, got %d", dst.Qty)
	}
}

func TestAdjustmentRemoveClampsAtZero(t *testing.T) {
	svc, repo := newTestService(store.CommitPolicy{})
	ctx := adminContext()

	_, err := svc.CreateAdjustment(ctx, domain.AdjustmentCreateRequest{
		Kind:   "remove",
		Reason: "stok hilang",
		Items: []domain.AdjustmentItem{
			{ProductID: "prd-topi-baseball", Size: "all", StockID: "store-pusat", Qty: 100},
		},
	})
	if err != nil {
		t.Fatalf("remove failed: %v", err)
	}

	rec, err := repo.GetInventoryRecord(ctx, "prd-topi-baseball", "", "all", "store-pusat")
	if err != nil {
		t.Fatalf("get inventory failed: %v", err)
	}
	if rec.Qty != 0 {
		t.Fatalf("expected remove to clamp at zero, got %d", rec.Qty)
	}
}

func TestAdjustmentNumbersAreSequentialPerMonth(t *testing.T) {
	svc, _ := newTestService(store.CommitPolicy{})
	ctx := adminContext()

	yearMonth := time.Now().UTC().Format("200601")
	for i := 1; i <= 2; i++ {
		adj, err := svc.CreateAdjustment(ctx, domain.AdjustmentCreateRequest{
			Kind:   "add",
			Reason: "penerimaan barang",
			Items: []domain.AdjustmentItem{
				{ProductID: "prd-kaos-basic", Size: "M", StockID: "wh-main", Qty: 1},
			},
		})
		if err != nil {
			t.Fatalf("adjustment #%d failed: %v", i, err)
		}
		want := fmt.Sprintf("ADJ-%s-%04d", yearMonth, i)
		if adj.Number != want {
			t.Fatalf("expected number %s, got %s", want, adj.Number)
		}
	}
}

func TestAdjustmentRejectsSameSourceAndDestination(t *testing.T) {
	svc, _ := newTestService(store.CommitPolicy{})
	ctx := adminContext()

	_, err := svc.CreateAdjustment(ctx, domain.AdjustmentCreateRequest{
		Kind:   "transfer",
		Reason: "transfer salah",
		Items: []domain.AdjustmentItem{
			{ProductID: "prd-kaos-basic", Size: "M", StockID: "wh-main", DestStockID: "wh-main", Qty: 1},
		},
	})
	if !errors.Is(err, store.ErrInvalid) {
		t.Fatalf("expected ErrInvalid for same-stock transfer, got %v", err)
	}
}

func TestAdjustmentRequiresManagerRole(t *testing.T) {
	svc, _ := newTestService(store.CommitPolicy{})
	ctx := WithActor(context.Background(), domain.Actor{Username: "staff", Role: "staff"})

	_, err := svc.CreateAdjustment(ctx, domain.AdjustmentCreateRequest{
		Kind:   "add",
		Reason: "restock",
		Items: []domain.AdjustmentItem{
			{ProductID: "prd-kaos-basic", Size: "M", StockID: "wh-main", Qty: 1},
		},
	})
	if err == nil || !strings.Contains(err.Error(), "admin or owner role required") {
		t.Fatalf("expected manager role error, got %v", err)
	}
}

func TestPettyCashApprovalDebitsBankOnce(t *testing.T) {
	svc, repo := newTestService(store.CommitPolicy{})
	ctx := adminContext()

	entry, err := svc.CreatePettyCash(ctx, domain.PettyCashCreateRequest{
		BankAccountID: "ba-operasional",
		AmountCents:   2500000,
		Purpose:       "beli ATK",
	})
	if err != nil {
		t.Fatalf("create petty cash failed: %v", err)
	}
	if entry.Status != domain.PettyCashPending {
		t.Fatalf("expected PENDING, got %s", entry.Status)
	}

	reviewed, err := svc.ReviewPettyCash(ctx, entry.ID, domain.PettyCashReviewRequest{Status: "approved"})
	if err != nil {
		t.Fatalf("review failed: %v", err)
	}
	if reviewed.Status != domain.PettyCashApproved {
		t.Fatalf("expected APPROVED, got %s", reviewed.Status)
	}
	if reviewed.ReviewedBy != "admin" || reviewed.ReviewedAt == nil {
		t.Fatalf("expected reviewer fields to be set")
	}

	account, err := repo.GetBankAccountByID(ctx, "ba-operasional")
	if err != nil {
		t.Fatalf("get bank account failed: %v", err)
	}
	if account.BalanceCents != 500000000-2500000 {
		t.Fatalf("expected balance debited once, got %d", account.BalanceCents)
	}

	_, err = svc.ReviewPettyCash(ctx, entry.ID, domain.PettyCashReviewRequest{Status: "approved"})
	if !errors.Is(err, store.ErrStateConflict) {
		t.Fatalf("expected second review to conflict, got %v", err)
	}

	account, err = repo.GetBankAccountByID(ctx, "ba-operasional")
	if err != nil {
		t.Fatalf("get bank account failed: %v", err)
	}
	if account.BalanceCents != 500000000-2500000 {
		t.Fatalf("expected balance unchanged after rejected re-review, got %d", account.BalanceCents)
	}
}

func TestPettyCashRejectionLeavesBalance(t *testing.T) {
	svc, repo := newTestService(store.CommitPolicy{})
	ctx := adminContext()

	entry, err := svc.CreatePettyCash(ctx, domain.PettyCashCreateRequest{
		BankAccountID: "ba-operasional",
		AmountCents:   1000000,
		Purpose:       "permintaan ditolak",
	})
	if err != nil {
		t.Fatalf("create petty cash failed: %v", err)
	}

	reviewed, err := svc.ReviewPettyCash(ctx, entry.ID, domain.PettyCashReviewRequest{Status: "rejected"})
	if err != nil {
		t.Fatalf("review failed: %v", err)
	}
	if reviewed.Status != domain.PettyCashRejected {
		t.Fatalf("expected REJECTED, got %s", reviewed.Status)
	}

	account, err := repo.GetBankAccountByID(ctx, "ba-operasional")
	if err != nil {
		t.Fatalf("get bank account failed: %v", err)
	}
	if account.BalanceCents != 500000000 {
		t.Fatalf("expected balance untouched on rejection, got %d", account.BalanceCents)
	}
}

func TestPettyCashUpdateRejectedAfterReview(t *testing.T) {
	svc, _ := newTestService(store.CommitPolicy{})
	ctx := adminContext()

	entry, err := svc.CreatePettyCash(ctx, domain.PettyCashCreateRequest{
		BankAccountID: "ba-operasional",
		AmountCents:   500000,
		Purpose:       "konsumsi rapat",
	})
	if err != nil {
		t.Fatalf("create petty cash failed: %v", err)
	}
	if _, err := svc.ReviewPettyCash(ctx, entry.ID, domain.PettyCashReviewRequest{Status: "approved"}); err != nil {
		t.Fatalf("review failed: %v", err)
	}

	amount := int64(750000)
	_, err = svc.UpdatePettyCash(ctx, entry.ID, domain.PettyCashUpdateRequest{AmountCents: &amount})
	if !errors.Is(err, store.ErrStateConflict) {
		t.Fatalf("expected update after approval to conflict, got %v", err)
	}
}

func TestCreateInventoryMergesSameTuple(t *testing.T) {
	svc, _ := newTestService(store.CommitPolicy{})
	ctx := adminContext()

	rec, err := svc.CreateInventoryRecord(ctx, domain.InventoryCreateRequest{
		ProductID: "prd-kaos-basic",
		Size:      "M",
		Qty:       5,
	})
	if err != nil {
		t.Fatalf("create inventory failed: %v", err)
	}
	if rec.StockID != "wh-main" {
		t.Fatalf("expected default stock id, got %s", rec.StockID)
	}
	if rec.Qty != 25 {
		t.Fatalf("expected merged qty 25, got %d", rec.Qty)
	}
}

func TestCartClearedAfterOrderCommit(t *testing.T) {
	svc, _ := newTestService(store.CommitPolicy{})
	ctx := adminContext()

	_, err := svc.PutCart(ctx, domain.Cart{
		StockID:    "wh-main",
		TerminalID: "kasir-1",
		Items: []domain.CartItem{
			{ProductID: "prd-kaos-basic", Size: "M", Qty: 2},
		},
	})
	if err != nil {
		t.Fatalf("put cart failed: %v", err)
	}

	_, err = svc.PlaceOrder(ctx, domain.OrderCreateRequest{
		Channel:    "store",
		StockID:    "wh-main",
		TerminalID: "kasir-1",
		Items: []domain.OrderItem{
			{ProductID: "prd-kaos-basic", Size: "M", Qty: 2, UnitPriceCents: 8900000},
		},
	})
	if err != nil {
		t.Fatalf("place order failed: %v", err)
	}

	c, err := svc.GetCart(ctx, "wh-main", "kasir-1")
	if err != nil {
		t.Fatalf("get cart failed: %v", err)
	}
	if len(c.Items) != 0 {
		t.Fatalf("expected cart cleared after commit, got %d items", len(c.Items))
	}
}

func TestPlaceOrderGrandTotalIncludesFeesAndDiscount(t *testing.T) {
	svc, _ := newTestService(store.CommitPolicy{})
	ctx := adminContext()

	order, err := svc.PlaceOrder(ctx, domain.OrderCreateRequest{
		Channel:             "website",
		StockID:             "wh-main",
		DiscountCents:       500000,
		FeeCents:            100000,
		ShippingFeeCents:    200000,
		TransactionFeeCents: 50000,
		Items: []domain.OrderItem{
			{ProductID: "prd-kaos-basic", Size: "M", Qty: 2, UnitPriceCents: 8900000, UnitDiscountCents: 400000},
		},
	})
	if err != nil {
		t.Fatalf("place order failed: %v", err)
	}

	subtotal := int64(2) * (8900000 - 400000)
	want := subtotal - 500000 + 100000 + 200000 + 50000
	if order.GrandTotalCents != want {
		t.Fatalf("expected grand total %d, got %d", want, order.GrandTotalCents)
	}
}
