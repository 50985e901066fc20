package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"tokoerp/backend/internal/cart"
	"tokoerp/backend/internal/domain"
	"tokoerp/backend/internal/ledger"
	"tokoerp/backend/internal/store"
	"tokoerp/backend/internal/xid"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Service struct {
	repo           store.Repository
	carts          cart.Store
	defaultStockID string
	cartTTL        time.Duration
	policy         store.CommitPolicy
}

func New(repo store.Repository, carts cart.Store, defaultStockID string, cartTTL time.Duration, policy store.CommitPolicy) *Service {
	if defaultStockID == "" {
		defaultStockID = "wh-main"
	}
	if cartTTL <= 0 {
		cartTTL = 2 * time.Hour
	}

	return &Service{
		repo:           repo,
		carts:          carts,
		defaultStockID: defaultStockID,
		cartTTL:        cartTTL,
		policy:         policy,
	}
}

func (s *Service) requireManager(ctx context.Context) (domain.Actor, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || (actor.Role != "admin" && actor.Role != "owner") {
		return domain.Actor{}, fmt.Errorf("admin or owner role required")
	}
	return actor, nil
}

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx)
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.Product, error) {
	if _, err := s.requireManager(ctx); err != nil {
		return domain.Product{}, err
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || req.PriceCents < 1 || req.Stock < 0 {
		return domain.Product{}, store.ErrInvalid
	}

	product := domain.Product{
		ID:         xid.New("prd"),
		Name:       req.Name,
		PriceCents: req.PriceCents,
		Stock:      req.Stock,
		Active:     true,
	}

	created, err := s.repo.CreateProduct(ctx, product)
	if err != nil {
		return domain.Product{}, err
	}

	s.logAudit(ctx, "product_create", "product", created.ID, fmt.Sprintf("name=%s,price=%d", created.Name, created.PriceCents))
	return *created, nil
}

func (s *Service) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Product{}, store.ErrInvalid
	}
	p, err := s.repo.GetProductByID(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}
	return *p, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id string, req domain.ProductUpdateRequest) (domain.Product, error) {
	if _, err := s.requireManager(ctx); err != nil {
		return domain.Product{}, err
	}

	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Product{}, store.ErrInvalid
	}

	existing, err := s.repo.GetProductByID(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}

	updated := *existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Product{}, store.ErrInvalid
		}
		updated.Name = name
	}
	if req.PriceCents != nil {
		if *req.PriceCents < 1 {
			return domain.Product{}, store.ErrInvalid
		}
		updated.PriceCents = *req.PriceCents
	}
	if req.Active != nil {
		updated.Active = *req.Active
	}

	saved, err := s.repo.UpdateProduct(ctx, updated)
	if err != nil {
		return domain.Product{}, err
	}

	s.logAudit(ctx, "product_update", "product", saved.ID, "")
	return *saved, nil
}

func (s *Service) CreateInventoryRecord(ctx context.Context, req domain.InventoryCreateRequest) (domain.InventoryRecord, error) {
	if _, err := s.requireManager(ctx); err != nil {
		return domain.InventoryRecord{}, err
	}

	rec, err := s.buildInventoryRecord(req)
	if err != nil {
		return domain.InventoryRecord{}, err
	}

	created, err := s.repo.CreateInventoryRecord(ctx, rec)
	if err != nil {
		return domain.InventoryRecord{}, err
	}

	s.logAudit(ctx, "inventory_create", "inventory", created.ID, fmt.Sprintf("product=%s,size=%s,stock=%s,qty=%d", created.ProductID, created.Size, created.StockID, created.Qty))
	return *created, nil
}

func (s *Service) CreateInventoryBulk(ctx context.Context, req domain.InventoryBulkCreateRequest) ([]domain.InventoryRecord, error) {
	if _, err := s.requireManager(ctx); err != nil {
		return nil, err
	}
	if len(req.Items) == 0 {
		return nil, store.ErrInvalid
	}

	// Validate the whole batch before creating anything.
	records := make([]domain.InventoryRecord, 0, len(req.Items))
	for _, item := range req.Items {
		rec, err := s.buildInventoryRecord(item)
		if err != nil {
			return nil, fmt.Errorf("item product=%s size=%s: %w", item.ProductID, item.Size, err)
		}
		records = append(records, rec)
	}

	created := make([]domain.InventoryRecord, 0, len(records))
	for _, rec := range records {
		saved, err := s.repo.CreateInventoryRecord(ctx, rec)
		if err != nil {
			return nil, err
		}
		created = append(created, *saved)
	}

	s.logAudit(ctx, "inventory_bulk_create", "inventory", "", fmt.Sprintf("count=%d", len(created)))
	return created, nil
}

func (s *Service) buildInventoryRecord(req domain.InventoryCreateRequest) (domain.InventoryRecord, error) {
	req.ProductID = strings.TrimSpace(req.ProductID)
	req.VariantID = strings.TrimSpace(req.VariantID)
	req.Size = strings.TrimSpace(req.Size)
	req.StockID = strings.TrimSpace(req.StockID)
	if req.StockID == "" {
		req.StockID = s.defaultStockID
	}
	if req.ProductID == "" || req.Size == "" || req.Qty < 0 {
		return domain.InventoryRecord{}, store.ErrInvalid
	}
	return domain.InventoryRecord{
		ProductID: req.ProductID,
		VariantID: req.VariantID,
		Size:      req.Size,
		StockID:   req.StockID,
		Qty:       req.Qty,
	}, nil
}

func (s *Service) ListInventory(ctx context.Context, filter domain.InventoryFilter) (domain.InventoryPage, error) {
	page, err := s.repo.ListInventoryRecords(ctx, filter)
	if err != nil {
		return domain.InventoryPage{}, err
	}
	return *page, nil
}

// PlaceOrder runs the order commit transaction and then hashes the
// stored order into the integrity ledger. The ledger write happens
// after commit because only the stored row is canonical; if it fails
// the order reads as unverified until the next legitimate update.
func (s *Service) PlaceOrder(ctx context.Context, req domain.OrderCreateRequest) (domain.Order, error) {
	req.Channel = strings.ToLower(strings.TrimSpace(req.Channel))
	if req.Channel != domain.ChannelWebsite && req.Channel != domain.ChannelStore {
		return domain.Order{}, fmt.Errorf("channel %q: %w", req.Channel, store.ErrInvalid)
	}
	req.StockID = strings.TrimSpace(req.StockID)
	if req.StockID == "" {
		req.StockID = s.defaultStockID
	}
	if len(req.Items) == 0 {
		return domain.Order{}, fmt.Errorf("order has no items: %w", store.ErrInvalid)
	}
	for _, item := range req.Items {
		if item.ProductID == "" || item.Size == "" || item.Qty < 1 {
			return domain.Order{}, fmt.Errorf("item product=%s size=%s qty=%d: %w", item.ProductID, item.Size, item.Qty, store.ErrInvalid)
		}
		if item.UnitPriceCents < 0 || item.UnitDiscountCents < 0 || item.UnitDiscountCents > item.UnitPriceCents {
			return domain.Order{}, fmt.Errorf("item product=%s pricing: %w", item.ProductID, store.ErrInvalid)
		}
	}
	if req.DiscountCents < 0 || req.FeeCents < 0 || req.ShippingFeeCents < 0 || req.TransactionFeeCents < 0 {
		return domain.Order{}, store.ErrInvalid
	}

	paymentStatus := strings.ToLower(strings.TrimSpace(req.PaymentStatus))
	if paymentStatus == "" {
		paymentStatus = domain.PaymentPending
	}
	if paymentStatus != domain.PaymentPending && paymentStatus != domain.PaymentPaid {
		return domain.Order{}, fmt.Errorf("payment status %q: %w", paymentStatus, store.ErrInvalid)
	}

	subtotal := int64(0)
	for _, item := range req.Items {
		subtotal += int64(item.Qty) * (item.UnitPriceCents - item.UnitDiscountCents)
	}
	if req.DiscountCents > subtotal {
		return domain.Order{}, fmt.Errorf("discount exceeds subtotal: %w", store.ErrInvalid)
	}
	grandTotal := subtotal - req.DiscountCents + req.FeeCents + req.ShippingFeeCents + req.TransactionFeeCents

	now := time.Now().UTC()
	order := domain.Order{
		ID:                  xid.New("ord"),
		Channel:             req.Channel,
		StockID:             req.StockID,
		TerminalID:          strings.TrimSpace(req.TerminalID),
		Items:               req.Items,
		PaymentStatus:       paymentStatus,
		FulfillmentStatus:   domain.FulfillmentUnfulfilled,
		DiscountCents:       req.DiscountCents,
		FeeCents:            req.FeeCents,
		ShippingFeeCents:    req.ShippingFeeCents,
		TransactionFeeCents: req.TransactionFeeCents,
		GrandTotalCents:     grandTotal,
		Customer:            req.Customer,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	created, err := s.repo.CommitOrder(ctx, order, s.policy)
	if err != nil {
		return domain.Order{}, err
	}

	// Hash the row as stored, not the in-memory copy, so the ledger always
	// matches what a later read hashes.
	stored, err := s.repo.GetOrderByID(ctx, created.ID)
	if err != nil {
		log.Printf("[service] WARN: ledger write failed order=%s: %v", created.ID, err)
	} else if err := s.writeLedger(ctx, *stored, ""); err != nil {
		log.Printf("[service] WARN: ledger write failed order=%s: %v", created.ID, err)
	} else {
		created = stored
		created.Integrity = true
	}

	if created.TerminalID != "" {
		if err := s.carts.Clear(ctx, created.StockID, created.TerminalID); err != nil {
			log.Printf("[service] WARN: failed to clear cart stock=%s terminal=%s: %v", created.StockID, created.TerminalID, err)
		}
	}

	s.logAudit(ctx, "order_commit", "order", created.ID, fmt.Sprintf("channel=%s,total=%d,skipped=%d", created.Channel, created.GrandTotalCents, created.SkippedLines))
	return *created, nil
}

// writeLedger hashes the order and upserts its ledger entry. A fresh
// order chains to the current ledger tip; a re-hash after an update
// keeps the entry's existing chain position.
func (s *Service) writeLedger(ctx context.Context, order domain.Order, keepPrevFor string) error {
	prevHash := ""
	if keepPrevFor != "" {
		existing, err := s.repo.GetLedgerEntry(ctx, keepPrevFor)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}
		if existing != nil {
			prevHash = existing.PrevHash
		}
	} else {
		tip, err := s.repo.LatestLedgerEntry(ctx)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}
		if tip != nil {
			prevHash = tip.Hash
		}
	}

	return s.repo.UpsertLedgerEntry(ctx, domain.LedgerEntry{
		OrderID:    order.ID,
		Hash:       ledger.Hash(order, prevHash),
		PrevHash:   prevHash,
		ComputedAt: time.Now().UTC(),
	})
}

func (s *Service) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Order{}, store.ErrInvalid
	}

	order, err := s.repo.GetOrderByID(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}
	order.Integrity = s.verifyOrder(ctx, *order)
	return *order, nil
}

func (s *Service) ListOrders(ctx context.Context, limit int) ([]domain.Order, error) {
	orders, err := s.repo.ListOrders(ctx, limit)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].Integrity = s.verifyOrder(ctx, orders[i])
	}
	return orders, nil
}

func (s *Service) verifyOrder(ctx context.Context, order domain.Order) bool {
	entry, err := s.repo.GetLedgerEntry(ctx, order.ID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			log.Printf("[service] WARN: ledger lookup failed order=%s: %v", order.ID, err)
		}
		return false
	}
	return ledger.Verify(order, entry)
}

func (s *Service) VerifyOrder(ctx context.Context, id string) (domain.OrderVerifyResponse, error) {
	order, err := s.repo.GetOrderByID(ctx, id)
	if err != nil {
		return domain.OrderVerifyResponse{}, err
	}

	resp := domain.OrderVerifyResponse{OrderID: order.ID}
	entry, err := s.repo.GetLedgerEntry(ctx, order.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return resp, nil
		}
		return domain.OrderVerifyResponse{}, err
	}
	resp.Hash = entry.Hash
	resp.Integrity = ledger.Verify(*order, entry)
	return resp, nil
}

// UpdateOrderStatus applies a legitimate order mutation: statuses and
// customer info only, line items stay fixed. Refunded orders are
// terminal. The ledger entry is recomputed so the order keeps verifying.
func (s *Service) UpdateOrderStatus(ctx context.Context, id string, req domain.OrderStatusUpdateRequest) (domain.Order, error) {
	if _, err := s.requireManager(ctx); err != nil {
		return domain.Order{}, err
	}

	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Order{}, store.ErrInvalid
	}

	existing, err := s.repo.GetOrderByID(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}
	if existing.PaymentStatus == domain.PaymentRefunded {
		return domain.Order{}, fmt.Errorf("order %s is refunded: %w", id, store.ErrStateConflict)
	}

	updated := *existing
	if req.PaymentStatus != nil {
		status := strings.ToLower(strings.TrimSpace(*req.PaymentStatus))
		switch status {
		case domain.PaymentPending, domain.PaymentPaid, domain.PaymentRefunded:
			updated.PaymentStatus = status
		default:
			return domain.Order{}, fmt.Errorf("payment status %q: %w", status, store.ErrInvalid)
		}
	}
	if req.FulfillmentStatus != nil {
		status := strings.ToLower(strings.TrimSpace(*req.FulfillmentStatus))
		switch status {
		case domain.FulfillmentUnfulfilled, domain.FulfillmentProcessing, domain.FulfillmentShipped, domain.FulfillmentDelivered:
			updated.FulfillmentStatus = status
		default:
			return domain.Order{}, fmt.Errorf("fulfillment status %q: %w", status, store.ErrInvalid)
		}
	}
	if req.Customer != nil {
		updated.Customer = req.Customer
	}
	updated.UpdatedAt = time.Now().UTC()

	saved, err := s.repo.UpdateOrder(ctx, updated)
	if err != nil {
		return domain.Order{}, err
	}

	if err := s.writeLedger(ctx, *saved, saved.ID); err != nil {
		log.Printf("[service] WARN: ledger rewrite failed order=%s: %v", saved.ID, err)
	} else {
		saved.Integrity = true
	}

	s.logAudit(ctx, "order_status_update", "order", saved.ID, fmt.Sprintf("payment=%s,fulfillment=%s", saved.PaymentStatus, saved.FulfillmentStatus))
	return *saved, nil
}

// CreateAdjustment allocates the next year-month sequence number and
// applies the whole batch in one store transaction.
func (s *Service) CreateAdjustment(ctx context.Context, req domain.AdjustmentCreateRequest) (domain.InventoryAdjustment, error) {
	actor, err := s.requireManager(ctx)
	if err != nil {
		return domain.InventoryAdjustment{}, err
	}

	kind := strings.ToLower(strings.TrimSpace(req.Kind))
	switch kind {
	case domain.AdjustmentAdd, domain.AdjustmentReturn, domain.AdjustmentRemove, domain.AdjustmentDamage, domain.AdjustmentTransfer:
	default:
		return domain.InventoryAdjustment{}, fmt.Errorf("kind %q: %w", kind, store.ErrInvalid)
	}
	req.Reason = strings.TrimSpace(req.Reason)
	if req.Reason == "" || len(req.Items) == 0 {
		return domain.InventoryAdjustment{}, store.ErrInvalid
	}
	for i := range req.Items {
		item := &req.Items[i]
		item.ProductID = strings.TrimSpace(item.ProductID)
		item.Size = strings.TrimSpace(item.Size)
		item.StockID = strings.TrimSpace(item.StockID)
		item.DestStockID = strings.TrimSpace(item.DestStockID)
		if item.StockID == "" {
			item.StockID = s.defaultStockID
		}
		if item.ProductID == "" || item.Size == "" || item.Qty < 1 {
			return domain.InventoryAdjustment{}, fmt.Errorf("item product=%s size=%s qty=%d: %w", item.ProductID, item.Size, item.Qty, store.ErrInvalid)
		}
		if kind == domain.AdjustmentTransfer {
			if item.DestStockID == "" {
				return domain.InventoryAdjustment{}, fmt.Errorf("transfer requires dest_stock_id: %w", store.ErrInvalid)
			}
			if item.DestStockID == item.StockID {
				return domain.InventoryAdjustment{}, fmt.Errorf("transfer source and destination are the same: %w", store.ErrInvalid)
			}
		}
	}

	now := time.Now().UTC()
	yearMonth := now.Format("200601")
	seq, err := s.repo.NextAdjustmentNumber(ctx, yearMonth)
	if err != nil {
		return domain.InventoryAdjustment{}, err
	}

	adj := domain.InventoryAdjustment{
		ID:        xid.New("adj"),
		Number:    fmt.Sprintf("ADJ-%s-%04d", yearMonth, seq),
		Kind:      kind,
		Reason:    req.Reason,
		Notes:     strings.TrimSpace(req.Notes),
		Items:     req.Items,
		CreatedBy: actor.Username,
		CreatedAt: now,
	}

	created, err := s.repo.ApplyAdjustment(ctx, adj)
	if err != nil {
		return domain.InventoryAdjustment{}, err
	}

	s.logAudit(ctx, "adjustment_apply", "adjustment", created.Number, fmt.Sprintf("kind=%s,items=%d", created.Kind, len(created.Items)))
	return *created, nil
}

func (s *Service) ListAdjustments(ctx context.Context, limit int) ([]domain.InventoryAdjustment, error) {
	return s.repo.ListAdjustments(ctx, limit)
}

func (s *Service) GetAdjustment(ctx context.Context, number string) (domain.InventoryAdjustment, error) {
	number = strings.TrimSpace(number)
	if number == "" {
		return domain.InventoryAdjustment{}, store.ErrInvalid
	}
	adj, err := s.repo.GetAdjustmentByNumber(ctx, number)
	if err != nil {
		return domain.InventoryAdjustment{}, err
	}
	return *adj, nil
}

func (s *Service) CreatePettyCash(ctx context.Context, req domain.PettyCashCreateRequest) (domain.PettyCashEntry, error) {
	actor, err := s.requireManager(ctx)
	if err != nil {
		return domain.PettyCashEntry{}, err
	}

	req.BankAccountID = strings.TrimSpace(req.BankAccountID)
	req.Purpose = strings.TrimSpace(req.Purpose)
	if req.BankAccountID == "" || req.Purpose == "" || req.AmountCents < 1 {
		return domain.PettyCashEntry{}, store.ErrInvalid
	}

	now := time.Now().UTC()
	entry := domain.PettyCashEntry{
		ID:            xid.New("pc"),
		BankAccountID: req.BankAccountID,
		AmountCents:   req.AmountCents,
		Purpose:       req.Purpose,
		Status:        domain.PettyCashPending,
		CreatedBy:     actor.Username,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	created, err := s.repo.CreatePettyCash(ctx, entry)
	if err != nil {
		return domain.PettyCashEntry{}, err
	}

	s.logAudit(ctx, "petty_cash_create", "petty_cash", created.ID, fmt.Sprintf("amount=%d,account=%s", created.AmountCents, created.BankAccountID))
	return *created, nil
}

func (s *Service) UpdatePettyCash(ctx context.Context, id string, req domain.PettyCashUpdateRequest) (domain.PettyCashEntry, error) {
	if _, err := s.requireManager(ctx); err != nil {
		return domain.PettyCashEntry{}, err
	}

	id = strings.TrimSpace(id)
	if id == "" {
		return domain.PettyCashEntry{}, store.ErrInvalid
	}

	existing, err := s.repo.GetPettyCashByID(ctx, id)
	if err != nil {
		return domain.PettyCashEntry{}, err
	}

	updated := *existing
	if req.AmountCents != nil {
		if *req.AmountCents < 1 {
			return domain.PettyCashEntry{}, store.ErrInvalid
		}
		updated.AmountCents = *req.AmountCents
	}
	if req.Purpose != nil {
		purpose := strings.TrimSpace(*req.Purpose)
		if purpose == "" {
			return domain.PettyCashEntry{}, store.ErrInvalid
		}
		updated.Purpose = purpose
	}
	updated.UpdatedAt = time.Now().UTC()

	saved, err := s.repo.UpdatePettyCash(ctx, updated)
	if err != nil {
		return domain.PettyCashEntry{}, err
	}

	s.logAudit(ctx, "petty_cash_update", "petty_cash", saved.ID, "")
	return *saved, nil
}

func (s *Service) ReviewPettyCash(ctx context.Context, id string, req domain.PettyCashReviewRequest) (domain.PettyCashEntry, error) {
	actor, err := s.requireManager(ctx)
	if err != nil {
		return domain.PettyCashEntry{}, err
	}

	id = strings.TrimSpace(id)
	status := strings.ToUpper(strings.TrimSpace(req.Status))
	if id == "" {
		return domain.PettyCashEntry{}, store.ErrInvalid
	}
	if status != domain.PettyCashApproved && status != domain.PettyCashRejected {
		return domain.PettyCashEntry{}, fmt.Errorf("status %q: %w", status, store.ErrInvalid)
	}

	reviewed, err := s.repo.ReviewPettyCash(ctx, id, status, actor.Username, time.Now().UTC())
	if err != nil {
		return domain.PettyCashEntry{}, err
	}

	s.logAudit(ctx, "petty_cash_review", "petty_cash", reviewed.ID, fmt.Sprintf("status=%s", reviewed.Status))
	return *reviewed, nil
}

func (s *Service) ListPettyCash(ctx context.Context, status string, limit int) ([]domain.PettyCashEntry, error) {
	status = strings.ToUpper(strings.TrimSpace(status))
	return s.repo.ListPettyCash(ctx, status, limit)
}

func (s *Service) CreateBankAccount(ctx context.Context, req domain.BankAccountCreateRequest) (domain.BankAccount, error) {
	if _, err := s.requireManager(ctx); err != nil {
		return domain.BankAccount{}, err
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || req.BalanceCents < 0 {
		return domain.BankAccount{}, store.ErrInvalid
	}

	account := domain.BankAccount{
		ID:           xid.New("ba"),
		Name:         req.Name,
		BalanceCents: req.BalanceCents,
		CreatedAt:    time.Now().UTC(),
	}

	created, err := s.repo.CreateBankAccount(ctx, account)
	if err != nil {
		return domain.BankAccount{}, err
	}

	s.logAudit(ctx, "bank_account_create", "bank_account", created.ID, fmt.Sprintf("name=%s", created.Name))
	return *created, nil
}

func (s *Service) GetBankAccount(ctx context.Context, id string) (domain.BankAccount, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.BankAccount{}, store.ErrInvalid
	}
	account, err := s.repo.GetBankAccountByID(ctx, id)
	if err != nil {
		return domain.BankAccount{}, err
	}
	return *account, nil
}

func (s *Service) ListBankAccounts(ctx context.Context) ([]domain.BankAccount, error) {
	return s.repo.ListBankAccounts(ctx)
}

func (s *Service) CreateExpenseCategory(ctx context.Context, req domain.ExpenseCategoryCreateRequest) (domain.ExpenseCategory, error) {
	if _, err := s.requireManager(ctx); err != nil {
		return domain.ExpenseCategory{}, err
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return domain.ExpenseCategory{}, store.ErrInvalid
	}

	category := domain.ExpenseCategory{
		ID:        xid.New("ec"),
		Name:      req.Name,
		CreatedAt: time.Now().UTC(),
	}

	created, err := s.repo.CreateExpenseCategory(ctx, category)
	if err != nil {
		return domain.ExpenseCategory{}, err
	}

	s.logAudit(ctx, "expense_category_create", "expense_category", created.ID, fmt.Sprintf("name=%s", created.Name))
	return *created, nil
}

func (s *Service) ListExpenseCategories(ctx context.Context) ([]domain.ExpenseCategory, error) {
	return s.repo.ListExpenseCategories(ctx)
}

func (s *Service) GetCart(ctx context.Context, stockID, terminalID string) (domain.Cart, error) {
	stockID = strings.TrimSpace(stockID)
	terminalID = strings.TrimSpace(terminalID)
	if stockID == "" {
		stockID = s.defaultStockID
	}
	if terminalID == "" {
		return domain.Cart{}, store.ErrInvalid
	}

	c, ok, err := s.carts.Get(ctx, stockID, terminalID)
	if err != nil {
		return domain.Cart{}, err
	}
	if !ok {
		return domain.Cart{StockID: stockID, TerminalID: terminalID, Items: []domain.CartItem{}}, nil
	}
	return *c, nil
}

func (s *Service) PutCart(ctx context.Context, c domain.Cart) (domain.Cart, error) {
	c.StockID = strings.TrimSpace(c.StockID)
	c.TerminalID = strings.TrimSpace(c.TerminalID)
	if c.StockID == "" {
		c.StockID = s.defaultStockID
	}
	if c.TerminalID == "" {
		return domain.Cart{}, store.ErrInvalid
	}
	for _, item := range c.Items {
		if item.ProductID == "" || item.Size == "" || item.Qty < 1 {
			return domain.Cart{}, fmt.Errorf("cart item product=%s size=%s qty=%d: %w", item.ProductID, item.Size, item.Qty, store.ErrInvalid)
		}
	}

	if err := s.carts.Put(ctx, c, s.cartTTL); err != nil {
		return domain.Cart{}, err
	}
	return c, nil
}

func (s *Service) ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	if _, err := s.requireManager(ctx); err != nil {
		return nil, err
	}
	return s.repo.ListAuditLogs(ctx, from, to, limit)
}

func (s *Service) logAudit(ctx context.Context, action string, entityType string, entityID string, detail string) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{Username: "system", Role: "system"}
	}

	if err := s.repo.CreateAuditLog(ctx, domain.AuditLog{
		ID:         xid.New("audit"),
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Actor:      actor.Username,
		Detail:     detail,
		CreatedAt:  time.Now().UTC(),
	}); err != nil {
		log.Printf("[service] WARN: failed to write audit log action=%s: %v", action, err)
	}
}
