// Package ledger computes tamper-evident hashes over committed orders.
// Each entry chains to the previous one so a single out-of-band edit
// invalidates the order it touched without disturbing the rest.
package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"tokoerp/backend/internal/domain"
)

// Hash returns the hex SHA-256 over the canonical serialization of the
// order plus the previous chain hash. Items are sorted so input order
// never changes the digest. The derived integrity flag and timestamps
// that the store rewrites are excluded.
func Hash(order domain.Order, prevHash string) string {
	items := make([]domain.OrderItem, len(order.Items))
	copy(items, order.Items)
	sort.Slice(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.ProductID != b.ProductID {
			return a.ProductID < b.ProductID
		}
		if a.VariantID != b.VariantID {
			return a.VariantID < b.VariantID
		}
		return a.Size < b.Size
	})

	var sb strings.Builder
	sb.WriteString(order.ID)
	sb.WriteByte('|')
	sb.WriteString(order.Channel)
	sb.WriteByte('|')
	sb.WriteString(order.StockID)
	sb.WriteByte('|')
	sb.WriteString(order.PaymentStatus)
	sb.WriteByte('|')
	sb.WriteString(order.FulfillmentStatus)
	fmt.Fprintf(&sb, "|%d|%d|%d|%d|%d",
		order.DiscountCents, order.FeeCents, order.ShippingFeeCents,
		order.TransactionFeeCents, order.GrandTotalCents)
	if order.Customer != nil {
		fmt.Fprintf(&sb, "|c:%s,%s,%s,%s",
			order.Customer.Name, order.Customer.Phone,
			order.Customer.Email, order.Customer.Address)
	}
	for _, it := range items {
		fmt.Fprintf(&sb, "|i:%s,%s,%s,%d,%d,%d",
			it.ProductID, it.VariantID, it.Size,
			it.Qty, it.UnitPriceCents, it.UnitDiscountCents)
	}
	fmt.Fprintf(&sb, "|u:%d", order.UpdatedAt.UTC().Unix())
	sb.WriteByte('|')
	sb.WriteString(prevHash)

	sum := sha256.Sum256([]byte(sb.String()))
	return hex.EncodeToString(sum[:])
}

// Verify reports whether the stored entry still matches the order's
// current content. A nil entry means the order was never hashed and
// counts as failed.
func Verify(order domain.Order, entry *domain.LedgerEntry) bool {
	if entry == nil || entry.Hash == "" {
		return false
	}
	return Hash(order, entry.PrevHash) == entry.Hash
}
