package ledger

import (
	"testing"
	"time"

	"tokoerp/backend/internal/domain"
)

func sampleOrder() domain.Order {
	return domain.Order{
		ID:                "ord-1",
		Channel:           domain.ChannelWebsite,
		StockID:           "wh-main",
		PaymentStatus:     domain.PaymentPaid,
		FulfillmentStatus: domain.FulfillmentUnfulfilled,
		GrandTotalCents:   17800000,
		Items: []domain.OrderItem{
			{ProductID: "prd-b", Size: "M", Qty: 1, UnitPriceCents: 8900000},
			{ProductID: "prd-a", Size: "L", Qty: 1, UnitPriceCents: 8900000},
		},
		UpdatedAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestHashIsDeterministic(t *testing.T) {
	order := sampleOrder()
	if Hash(order, "") != Hash(order, "") {
		t.Fatalf("expected identical hashes for identical input")
	}
}

func TestHashIgnoresItemOrder(t *testing.T) {
	order := sampleOrder()
	shuffled := sampleOrder()
	shuffled.Items[0], shuffled.Items[1] = shuffled.Items[1], shuffled.Items[0]

	if Hash(order, "") != Hash(shuffled, "") {
		t.Fatalf("expected item order not to affect the hash")
	}
}

func TestHashChangesWithContentAndChain(t *testing.T) {
	order := sampleOrder()
	base := Hash(order, "")

	mutated := sampleOrder()
	mutated.GrandTotalCents = 1
	if Hash(mutated, "") == base {
		t.Fatalf("expected total change to change the hash")
	}

	if Hash(order, "some-prev-hash") == base {
		t.Fatalf("expected chain position to change the hash")
	}
}

func TestVerify(t *testing.T) {
	order := sampleOrder()
	entry := &domain.LedgerEntry{
		OrderID:  order.ID,
		PrevHash: "prev",
		Hash:     Hash(order, "prev"),
	}

	if !Verify(order, entry) {
		t.Fatalf("expected untouched order to verify")
	}

	tampered := sampleOrder()
	tampered.PaymentStatus = domain.PaymentRefunded
	if Verify(tampered, entry) {
		t.Fatalf("expected tampered order to fail verification")
	}

	if Verify(order, nil) {
		t.Fatalf("expected nil entry to fail verification")
	}
	if Verify(order, &domain.LedgerEntry{}) {
		t.Fatalf("expected empty hash to fail verification")
	}
}
