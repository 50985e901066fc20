package store

import (
	"context"
	"errors"
	"time"

	"tokoerp/backend/internal/domain"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalid           = errors.New("invalid request")
	ErrStateConflict     = errors.New("state conflict")
)

// CommitPolicy carries the legacy-compat switches for the order commit
// transaction. Both default to false (hardened behavior).
type CommitPolicy struct {
	AllowNegativeStock bool
	SkipUnmatchedLines bool
}

// ApplyStockDelta is the single mutation point for stock quantities.
// Decrements reject oversell with ErrInsufficientStock unless
// allowNegative is set, in which case the quantity may go below zero.
func ApplyStockDelta(current, delta int, allowNegative bool) (int, error) {
	next := current + delta
	if next < 0 && !allowNegative {
		return current, ErrInsufficientStock
	}
	return next, nil
}

// ClampStockDelta applies a delta and floors the result at zero. Used by
// remove/damage adjustments and transfer sources, where physical counts
// below zero are meaningless.
func ClampStockDelta(current, delta int) int {
	next := current + delta
	if next < 0 {
		return 0
	}
	return next
}

type Repository interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	GetProductByID(ctx context.Context, id string) (*domain.Product, error)
	UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)

	CreateInventoryRecord(ctx context.Context, rec domain.InventoryRecord) (*domain.InventoryRecord, error)
	GetInventoryRecord(ctx context.Context, productID, variantID, size, stockID string) (*domain.InventoryRecord, error)
	ListInventoryRecords(ctx context.Context, filter domain.InventoryFilter) (*domain.InventoryPage, error)

	CommitOrder(ctx context.Context, order domain.Order, policy CommitPolicy) (*domain.Order, error)
	GetOrderByID(ctx context.Context, id string) (*domain.Order, error)
	ListOrders(ctx context.Context, limit int) ([]domain.Order, error)
	UpdateOrder(ctx context.Context, order domain.Order) (*domain.Order, error)

	NextAdjustmentNumber(ctx context.Context, yearMonth string) (int, error)
	ApplyAdjustment(ctx context.Context, adj domain.InventoryAdjustment) (*domain.InventoryAdjustment, error)
	ListAdjustments(ctx context.Context, limit int) ([]domain.InventoryAdjustment, error)
	GetAdjustmentByNumber(ctx context.Context, number string) (*domain.InventoryAdjustment, error)

	UpsertLedgerEntry(ctx context.Context, entry domain.LedgerEntry) error
	GetLedgerEntry(ctx context.Context, orderID string) (*domain.LedgerEntry, error)
	LatestLedgerEntry(ctx context.Context) (*domain.LedgerEntry, error)

	CreatePettyCash(ctx context.Context, entry domain.PettyCashEntry) (*domain.PettyCashEntry, error)
	GetPettyCashByID(ctx context.Context, id string) (*domain.PettyCashEntry, error)
	ListPettyCash(ctx context.Context, status string, limit int) ([]domain.PettyCashEntry, error)
	UpdatePettyCash(ctx context.Context, entry domain.PettyCashEntry) (*domain.PettyCashEntry, error)
	ReviewPettyCash(ctx context.Context, id, status, reviewer string, at time.Time) (*domain.PettyCashEntry, error)

	CreateBankAccount(ctx context.Context, account domain.BankAccount) (*domain.BankAccount, error)
	GetBankAccountByID(ctx context.Context, id string) (*domain.BankAccount, error)
	ListBankAccounts(ctx context.Context) ([]domain.BankAccount, error)

	CreateExpenseCategory(ctx context.Context, category domain.ExpenseCategory) (*domain.ExpenseCategory, error)
	ListExpenseCategories(ctx context.Context) ([]domain.ExpenseCategory, error)

	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error)

	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}
