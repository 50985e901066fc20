package memory

import (
	"context"
	"fmt"
	"log"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"tokoerp/backend/internal/domain"
	"tokoerp/backend/internal/store"
	"tokoerp/backend/internal/xid"
)

type Store struct {
	mu              sync.RWMutex
	products        map[string]domain.Product
	inventory       map[string]domain.InventoryRecord
	ordersByID      map[string]domain.Order
	orderIDs        []string
	adjustments     map[string]domain.InventoryAdjustment
	adjustmentSeq   []string
	counters        map[string]int
	ledger          map[string]domain.LedgerEntry
	ledgerTip       string
	pettyCashByID   map[string]domain.PettyCashEntry
	pettyCashSeq    []string
	bankAccounts    map[string]domain.BankAccount
	expenseCats     map[string]domain.ExpenseCategory
	auditLogs       []domain.AuditLog
	usersByUsername map[string]domain.UserAccount
}

// seedUsers builds the initial in-memory user accounts for dev/demo mode.
// Credentials come from SEED_ADMIN_PASSWORD, SEED_OWNER_PASSWORD and
// SEED_STAFF_PASSWORD. If unset, hardcoded dev defaults are used with a
// warning. These credentials are never used in production (the backend
// uses PostgreSQL when DATABASE_URL is set).
func seedUsers() map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	ownerPwd := envOr("SEED_OWNER_PASSWORD", "owner123")
	staffPwd := envOr("SEED_STAFF_PASSWORD", "staff123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_OWNER_PASSWORD") == "" || os.Getenv("SEED_STAFF_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD, SEED_OWNER_PASSWORD and SEED_STAFF_PASSWORD to override.")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, "admin"},
		{"owner", ownerPwd, "owner"},
		{"staff", staffPwd, "staff"},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func New() *Store {
	return &Store{
		products:        make(map[string]domain.Product),
		inventory:       make(map[string]domain.InventoryRecord),
		ordersByID:      make(map[string]domain.Order),
		adjustments:     make(map[string]domain.InventoryAdjustment),
		counters:        make(map[string]int),
		ledger:          make(map[string]domain.LedgerEntry),
		pettyCashByID:   make(map[string]domain.PettyCashEntry),
		bankAccounts:    make(map[string]domain.BankAccount),
		expenseCats:     make(map[string]domain.ExpenseCategory),
		auditLogs:       make([]domain.AuditLog, 0, 128),
		usersByUsername: seedUsers(),
	}
}

func NewSeeded() *Store {
	s := New()
	now := time.Now().UTC()

	products := []domain.Product{
		{ID: "prd-kaos-basic", Name: "Kaos Basic", PriceCents: 8900000, Stock: 60, InStock: true, Active: true},
		{ID: "prd-kemeja-flanel", Name: "Kemeja Flanel", PriceCents: 18500000, Stock: 40, InStock: true, Active: true},
		{ID: "prd-celana-chino", Name: "Celana Chino", PriceCents: 21000000, Stock: 30, InStock: true, Active: true},
		{ID: "prd-topi-baseball", Name: "Topi Baseball", PriceCents: 5500000, Stock: 25, InStock: true, Active: true},
	}
	for _, p := range products {
		s.products[p.ID] = p
	}

	records := []domain.InventoryRecord{
		{ProductID: "prd-kaos-basic", Size: "M", StockID: "wh-main", Qty: 20},
		{ProductID: "prd-kaos-basic", Size: "L", StockID: "wh-main", Qty: 20},
		{ProductID: "prd-kaos-basic", Size: "XL", StockID: "wh-main", Qty: 20},
		{ProductID: "prd-kemeja-flanel", VariantID: "var-merah", Size: "M", StockID: "wh-main", Qty: 20},
		{ProductID: "prd-kemeja-flanel", VariantID: "var-biru", Size: "L", StockID: "wh-main", Qty: 20},
		{ProductID: "prd-celana-chino", Size: "32", StockID: "wh-main", Qty: 15},
		{ProductID: "prd-celana-chino", Size: "34", StockID: "store-pusat", Qty: 15},
		{ProductID: "prd-topi-baseball", Size: "all", StockID: "store-pusat", Qty: 25},
	}
	for _, r := range records {
		r.ID = xid.New("inv")
		r.UpdatedAt = now
		s.inventory[tupleKey(r.ProductID, r.VariantID, r.Size, r.StockID)] = r
	}

	s.bankAccounts["ba-operasional"] = domain.BankAccount{
		ID: "ba-operasional", Name: "Kas Operasional", BalanceCents: 500000000, CreatedAt: now,
	}
	s.expenseCats["ec-umum"] = domain.ExpenseCategory{ID: "ec-umum", Name: "Umum", CreatedAt: now}
	return s
}

func tupleKey(productID, variantID, size, stockID string) string {
	return productID + "|" + variantID + "|" + size + "|" + stockID
}

func cmpString(a, b string) int {
	return strings.Compare(a, b)
}

func (s *Store) ListProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		if !p.Active {
			continue
		}
		products = append(products, p)
	}
	slices.SortFunc(products, func(a, b domain.Product) int {
		return cmpString(a.Name, b.Name)
	})
	return products, nil
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if product.ID == "" || product.Name == "" || product.PriceCents < 1 {
		return nil, store.ErrInvalid
	}
	if _, exists := s.products[product.ID]; exists {
		return nil, store.ErrInvalid
	}
	product.Active = true
	product.InStock = product.Stock > 0
	s.products[product.ID] = product
	created := product
	return &created, nil
}

func (s *Store) GetProductByID(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	found := p
	return &found, nil
}

func (s *Store) UpdateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[product.ID]; !ok {
		return nil, store.ErrNotFound
	}
	product.InStock = product.Stock > 0
	s.products[product.ID] = product
	updated := product
	return &updated, nil
}

func (s *Store) CreateInventoryRecord(_ context.Context, rec domain.InventoryRecord) (*domain.InventoryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upsertRecordLocked(rec)
}

func (s *Store) upsertRecordLocked(rec domain.InventoryRecord) (*domain.InventoryRecord, error) {
	if rec.ProductID == "" || rec.Size == "" || rec.StockID == "" {
		return nil, store.ErrInvalid
	}
	key := tupleKey(rec.ProductID, rec.VariantID, rec.Size, rec.StockID)
	if existing, ok := s.inventory[key]; ok {
		existing.Qty += rec.Qty
		existing.UpdatedAt = time.Now().UTC()
		s.inventory[key] = existing
		created := existing
		return &created, nil
	}
	rec.ID = xid.New("inv")
	rec.UpdatedAt = time.Now().UTC()
	s.inventory[key] = rec
	created := rec
	return &created, nil
}

func (s *Store) GetInventoryRecord(_ context.Context, productID, variantID, size, stockID string) (*domain.InventoryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.inventory[tupleKey(productID, variantID, size, stockID)]
	if !ok {
		return nil, store.ErrNotFound
	}
	found := rec
	return &found, nil
}

func (s *Store) ListInventoryRecords(_ context.Context, filter domain.InventoryFilter) (*domain.InventoryPage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]domain.InventoryRecord, 0, len(s.inventory))
	for _, rec := range s.inventory {
		if filter.ProductID != "" && rec.ProductID != filter.ProductID {
			continue
		}
		if filter.VariantID != "" && rec.VariantID != filter.VariantID {
			continue
		}
		if filter.Size != "" && rec.Size != filter.Size {
			continue
		}
		if filter.StockID != "" && rec.StockID != filter.StockID {
			continue
		}
		matched = append(matched, rec)
	}
	slices.SortFunc(matched, func(a, b domain.InventoryRecord) int {
		if a.ProductID != b.ProductID {
			return cmpString(a.ProductID, b.ProductID)
		}
		if a.StockID != b.StockID {
			return cmpString(a.StockID, b.StockID)
		}
		return cmpString(a.Size, b.Size)
	})

	page := filter.Page
	if page < 1 {
		page = 1
	}
	limit := filter.Limit
	if limit < 1 {
		limit = 50
	}
	total := len(matched)
	start := (page - 1) * limit
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}
	return &domain.InventoryPage{
		Records: matched[start:end],
		Total:   total,
		Page:    page,
		Limit:   limit,
	}, nil
}

// CommitOrder validates and applies every stock mutation and persists the
// order under one lock, so a failing line leaves nothing behind.
func (s *Store) CommitOrder(_ context.Context, order domain.Order, policy store.CommitPolicy) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(order.Items) == 0 {
		return nil, store.ErrInvalid
	}

	// Web orders also mutate the product aggregate, so every referenced
	// product must exist before anything is written.
	if order.Channel == domain.ChannelWebsite {
		for _, item := range order.Items {
			if _, ok := s.products[item.ProductID]; !ok {
				return nil, fmt.Errorf("product %s: %w", item.ProductID, store.ErrNotFound)
			}
		}
	}

	// Skipped lines never touch the aggregate, so deltas accumulate only
	// once a line has matched a tuple. Repeated lines for the same tuple
	// compose through the pending copy.
	pending := make(map[string]domain.InventoryRecord)
	productDeltas := make(map[string]int)
	skipped := 0
	applied := 0
	for _, item := range order.Items {
		key := tupleKey(item.ProductID, item.VariantID, item.Size, order.StockID)
		rec, ok := pending[key]
		if !ok {
			rec, ok = s.inventory[key]
		}
		if !ok {
			if policy.SkipUnmatchedLines {
				log.Printf("[memory-store] WARN: skipping unmatched inventory line product=%s variant=%s size=%s stock=%s", item.ProductID, item.VariantID, item.Size, order.StockID)
				skipped++
				continue
			}
			return nil, fmt.Errorf("inventory %s/%s/%s@%s: %w", item.ProductID, item.VariantID, item.Size, order.StockID, store.ErrNotFound)
		}
		newQty, err := store.ApplyStockDelta(rec.Qty, -item.Qty, policy.AllowNegativeStock)
		if err != nil {
			return nil, fmt.Errorf("product %s size %s: %w", item.ProductID, item.Size, err)
		}
		rec.Qty = newQty
		rec.UpdatedAt = time.Now().UTC()
		pending[key] = rec
		applied++
		if order.Channel == domain.ChannelWebsite {
			productDeltas[item.ProductID] += item.Qty
		}
	}
	if applied == 0 {
		return nil, fmt.Errorf("all lines unmatched: %w", store.ErrInvalid)
	}

	for key, rec := range pending {
		s.inventory[key] = rec
	}
	for id, qty := range productDeltas {
		p := s.products[id]
		p.Stock -= qty
		p.InStock = p.Stock > 0
		s.products[id] = p
	}

	order.SkippedLines = skipped
	s.ordersByID[order.ID] = cloneOrder(order)
	s.orderIDs = append(s.orderIDs, order.ID)
	created := cloneOrder(order)
	return &created, nil
}

func (s *Store) GetOrderByID(_ context.Context, id string) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.ordersByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	found := cloneOrder(o)
	return &found, nil
}

func (s *Store) ListOrders(_ context.Context, limit int) ([]domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit < 1 || limit > len(s.orderIDs) {
		limit = len(s.orderIDs)
	}
	orders := make([]domain.Order, 0, limit)
	for i := len(s.orderIDs) - 1; i >= 0 && len(orders) < limit; i-- {
		orders = append(orders, cloneOrder(s.ordersByID[s.orderIDs[i]]))
	}
	return orders, nil
}

func (s *Store) UpdateOrder(_ context.Context, order domain.Order) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.ordersByID[order.ID]; !ok {
		return nil, store.ErrNotFound
	}
	s.ordersByID[order.ID] = cloneOrder(order)
	updated := cloneOrder(order)
	return &updated, nil
}

func cloneOrder(o domain.Order) domain.Order {
	c := o
	c.Items = slices.Clone(o.Items)
	if o.Customer != nil {
		cust := *o.Customer
		c.Customer = &cust
	}
	return c
}

func (s *Store) NextAdjustmentNumber(_ context.Context, yearMonth string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.counters[yearMonth]++
	return s.counters[yearMonth], nil
}

// ApplyAdjustment records the adjustment and applies every item delta
// under one lock. Source and destination of a transfer move together.
func (s *Store) ApplyAdjustment(_ context.Context, adj domain.InventoryAdjustment) (*domain.InventoryAdjustment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if adj.Number == "" || len(adj.Items) == 0 {
		return nil, store.ErrInvalid
	}
	if _, exists := s.adjustments[adj.Number]; exists {
		return nil, store.ErrStateConflict
	}
	for _, item := range adj.Items {
		if item.Qty <= 0 {
			return nil, fmt.Errorf("qty must be positive: %w", store.ErrInvalid)
		}
		if adj.Kind == domain.AdjustmentTransfer && item.DestStockID == "" {
			return nil, fmt.Errorf("transfer requires dest_stock_id: %w", store.ErrInvalid)
		}
	}

	for _, item := range adj.Items {
		src, err := s.recordForAdjustmentLocked(item.ProductID, item.VariantID, item.Size, item.StockID)
		if err != nil {
			return nil, err
		}
		switch adj.Kind {
		case domain.AdjustmentAdd, domain.AdjustmentReturn:
			src.Qty += item.Qty
		case domain.AdjustmentRemove, domain.AdjustmentDamage:
			src.Qty = store.ClampStockDelta(src.Qty, -item.Qty)
		case domain.AdjustmentTransfer:
			src.Qty = store.ClampStockDelta(src.Qty, -item.Qty)
			dst, err := s.recordForAdjustmentLocked(item.ProductID, item.VariantID, item.Size, item.DestStockID)
			if err != nil {
				return nil, err
			}
			dst.Qty += item.Qty
			dst.UpdatedAt = time.Now().UTC()
			s.inventory[tupleKey(item.ProductID, item.VariantID, item.Size, item.DestStockID)] = *dst
		default:
			return nil, fmt.Errorf("unknown kind %q: %w", adj.Kind, store.ErrInvalid)
		}
		src.UpdatedAt = time.Now().UTC()
		s.inventory[tupleKey(item.ProductID, item.VariantID, item.Size, item.StockID)] = *src
	}

	s.adjustments[adj.Number] = adj
	s.adjustmentSeq = append(s.adjustmentSeq, adj.Number)
	created := adj
	return &created, nil
}

func (s *Store) recordForAdjustmentLocked(productID, variantID, size, stockID string) (*domain.InventoryRecord, error) {
	key := tupleKey(productID, variantID, size, stockID)
	if rec, ok := s.inventory[key]; ok {
		return &rec, nil
	}
	rec := domain.InventoryRecord{
		ID:        xid.New("inv"),
		ProductID: productID,
		VariantID: variantID,
		Size:      size,
		StockID:   stockID,
		Qty:       0,
		UpdatedAt: time.Now().UTC(),
	}
	s.inventory[key] = rec
	return &rec, nil
}

func (s *Store) ListAdjustments(_ context.Context, limit int) ([]domain.InventoryAdjustment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit < 1 || limit > len(s.adjustmentSeq) {
		limit = len(s.adjustmentSeq)
	}
	out := make([]domain.InventoryAdjustment, 0, limit)
	for i := len(s.adjustmentSeq) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.adjustments[s.adjustmentSeq[i]])
	}
	return out, nil
}

func (s *Store) GetAdjustmentByNumber(_ context.Context, number string) (*domain.InventoryAdjustment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	adj, ok := s.adjustments[number]
	if !ok {
		return nil, store.ErrNotFound
	}
	found := adj
	return &found, nil
}

func (s *Store) UpsertLedgerEntry(_ context.Context, entry domain.LedgerEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.OrderID == "" || entry.Hash == "" {
		return store.ErrInvalid
	}
	s.ledger[entry.OrderID] = entry
	s.ledgerTip = entry.Hash
	return nil
}

func (s *Store) GetLedgerEntry(_ context.Context, orderID string) (*domain.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.ledger[orderID]
	if !ok {
		return nil, store.ErrNotFound
	}
	found := entry
	return &found, nil
}

func (s *Store) LatestLedgerEntry(_ context.Context) (*domain.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.ledgerTip == "" {
		return nil, store.ErrNotFound
	}
	for _, entry := range s.ledger {
		if entry.Hash == s.ledgerTip {
			found := entry
			return &found, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) CreatePettyCash(_ context.Context, entry domain.PettyCashEntry) (*domain.PettyCashEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.bankAccounts[entry.BankAccountID]; !ok {
		return nil, fmt.Errorf("bank account %s: %w", entry.BankAccountID, store.ErrNotFound)
	}
	s.pettyCashByID[entry.ID] = entry
	s.pettyCashSeq = append(s.pettyCashSeq, entry.ID)
	created := entry
	return &created, nil
}

func (s *Store) GetPettyCashByID(_ context.Context, id string) (*domain.PettyCashEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.pettyCashByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	found := entry
	return &found, nil
}

func (s *Store) ListPettyCash(_ context.Context, status string, limit int) ([]domain.PettyCashEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.PettyCashEntry, 0, len(s.pettyCashSeq))
	for i := len(s.pettyCashSeq) - 1; i >= 0; i-- {
		entry := s.pettyCashByID[s.pettyCashSeq[i]]
		if status != "" && entry.Status != status {
			continue
		}
		out = append(out, entry)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *Store) UpdatePettyCash(_ context.Context, entry domain.PettyCashEntry) (*domain.PettyCashEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.pettyCashByID[entry.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if existing.Status != domain.PettyCashPending {
		return nil, fmt.Errorf("petty cash %s is %s: %w", entry.ID, existing.Status, store.ErrStateConflict)
	}
	s.pettyCashByID[entry.ID] = entry
	updated := entry
	return &updated, nil
}

// ReviewPettyCash flips a PENDING entry to its final status. Approval
// debits the linked bank account in the same critical section.
func (s *Store) ReviewPettyCash(_ context.Context, id, status, reviewer string, at time.Time) (*domain.PettyCashEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.pettyCashByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if entry.Status != domain.PettyCashPending {
		return nil, fmt.Errorf("petty cash %s is %s: %w", id, entry.Status, store.ErrStateConflict)
	}
	if status != domain.PettyCashApproved && status != domain.PettyCashRejected {
		return nil, fmt.Errorf("status %q: %w", status, store.ErrInvalid)
	}

	if status == domain.PettyCashApproved {
		account, ok := s.bankAccounts[entry.BankAccountID]
		if !ok {
			return nil, fmt.Errorf("bank account %s: %w", entry.BankAccountID, store.ErrNotFound)
		}
		account.BalanceCents -= entry.AmountCents
		s.bankAccounts[entry.BankAccountID] = account
	}

	entry.Status = status
	entry.ReviewedBy = reviewer
	entry.ReviewedAt = &at
	entry.UpdatedAt = at
	s.pettyCashByID[id] = entry
	reviewed := entry
	return &reviewed, nil
}

func (s *Store) CreateBankAccount(_ context.Context, account domain.BankAccount) (*domain.BankAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if account.Name == "" {
		return nil, store.ErrInvalid
	}
	s.bankAccounts[account.ID] = account
	created := account
	return &created, nil
}

func (s *Store) GetBankAccountByID(_ context.Context, id string) (*domain.BankAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	account, ok := s.bankAccounts[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	found := account
	return &found, nil
}

func (s *Store) ListBankAccounts(_ context.Context) ([]domain.BankAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.BankAccount, 0, len(s.bankAccounts))
	for _, account := range s.bankAccounts {
		out = append(out, account)
	}
	slices.SortFunc(out, func(a, b domain.BankAccount) int {
		return cmpString(a.Name, b.Name)
	})
	return out, nil
}

func (s *Store) CreateExpenseCategory(_ context.Context, category domain.ExpenseCategory) (*domain.ExpenseCategory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if category.Name == "" {
		return nil, store.ErrInvalid
	}
	s.expenseCats[category.ID] = category
	created := category
	return &created, nil
}

func (s *Store) ListExpenseCategories(_ context.Context) ([]domain.ExpenseCategory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.ExpenseCategory, 0, len(s.expenseCats))
	for _, category := range s.expenseCats {
		out = append(out, category)
	}
	slices.SortFunc(out, func(a, b domain.ExpenseCategory) int {
		return cmpString(a.Name, b.Name)
	})
	return out, nil
}

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.AuditLog, 0, limit)
	for i := len(s.auditLogs) - 1; i >= 0; i-- {
		entry := s.auditLogs[i]
		if !from.IsZero() && entry.CreatedAt.Before(from) {
			continue
		}
		if !to.IsZero() && entry.CreatedAt.After(to) {
			continue
		}
		out = append(out, entry)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if user.Username == "" || user.Password == "" {
		return store.ErrInvalid
	}
	if _, exists := s.usersByUsername[user.Username]; exists {
		return store.ErrStateConflict
	}
	s.usersByUsername[user.Username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, u := range s.usersByUsername {
		out = append(out, u)
	}
	slices.SortFunc(out, func(a, b domain.UserAccount) int {
		return cmpString(a.Username, b.Username)
	})
	return out, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.usersByUsername[username]
	if !ok {
		return store.ErrNotFound
	}
	u.Password = password
	s.usersByUsername[username] = u
	return nil
}
