package domain

import "time"

const (
	ChannelWebsite = "website"
	ChannelStore   = "store"
)

const (
	PaymentPending  = "pending"
	PaymentPaid     = "paid"
	PaymentRefunded = "refunded"
)

const (
	FulfillmentUnfulfilled = "unfulfilled"
	FulfillmentProcessing  = "processing"
	FulfillmentShipped     = "shipped"
	FulfillmentDelivered   = "delivered"
)

const (
	AdjustmentAdd      = "add"
	AdjustmentReturn   = "return"
	AdjustmentRemove   = "remove"
	AdjustmentDamage   = "damage"
	AdjustmentTransfer = "transfer"
)

const (
	PettyCashPending  = "PENDING"
	PettyCashApproved = "APPROVED"
	PettyCashRejected = "REJECTED"
)

type Product struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	PriceCents int64  `json:"price_cents"`
	Stock      int    `json:"stock"`
	InStock    bool   `json:"in_stock"`
	Active     bool   `json:"active"`
}

type ProductCreateRequest struct {
	Name       string `json:"name"`
	PriceCents int64  `json:"price_cents"`
	Stock      int    `json:"stock"`
}

type ProductUpdateRequest struct {
	Name       *string `json:"name,omitempty"`
	PriceCents *int64  `json:"price_cents,omitempty"`
	Active     *bool   `json:"active,omitempty"`
}

type InventoryRecord struct {
	ID        string    `json:"id"`
	ProductID string    `json:"product_id"`
	VariantID string    `json:"variant_id,omitempty"`
	Size      string    `json:"size"`
	StockID   string    `json:"stock_id"`
	Qty       int       `json:"qty"`
	UpdatedAt time.Time `json:"updated_at"`
}

type InventoryCreateRequest struct {
	ProductID string `json:"product_id"`
	VariantID string `json:"variant_id,omitempty"`
	Size      string `json:"size"`
	StockID   string `json:"stock_id"`
	Qty       int    `json:"qty"`
}

type InventoryBulkCreateRequest struct {
	Bulk  bool                     `json:"bulk"`
	Items []InventoryCreateRequest `json:"items"`
}

type InventoryFilter struct {
	ProductID string
	VariantID string
	Size      string
	StockID   string
	Page      int
	Limit     int
}

type InventoryPage struct {
	Records []InventoryRecord `json:"records"`
	Total   int               `json:"total"`
	Page    int               `json:"page"`
	Limit   int               `json:"limit"`
}

type OrderItem struct {
	ProductID         string `json:"product_id"`
	VariantID         string `json:"variant_id,omitempty"`
	Size              string `json:"size"`
	Qty               int    `json:"qty"`
	UnitPriceCents    int64  `json:"unit_price_cents"`
	UnitDiscountCents int64  `json:"unit_discount_cents"`
}

type Customer struct {
	Name    string `json:"name,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Email   string `json:"email,omitempty"`
	Address string `json:"address,omitempty"`
}

type Order struct {
	ID                    string      `json:"id"`
	Channel               string      `json:"channel"`
	StockID               string      `json:"stock_id"`
	TerminalID            string      `json:"terminal_id,omitempty"`
	Items                 []OrderItem `json:"items"`
	PaymentStatus         string      `json:"payment_status"`
	FulfillmentStatus     string      `json:"fulfillment_status"`
	DiscountCents         int64       `json:"discount_cents"`
	FeeCents              int64       `json:"fee_cents"`
	ShippingFeeCents      int64       `json:"shipping_fee_cents"`
	TransactionFeeCents   int64       `json:"transaction_fee_cents"`
	GrandTotalCents       int64       `json:"grand_total_cents"`
	Customer              *Customer   `json:"customer,omitempty"`
	SkippedLines          int         `json:"skipped_lines,omitempty"`
	Integrity             bool        `json:"integrity"`
	CreatedAt             time.Time   `json:"created_at"`
	UpdatedAt             time.Time   `json:"updated_at"`
}

type OrderCreateRequest struct {
	Channel             string      `json:"channel"`
	StockID             string      `json:"stock_id"`
	TerminalID          string      `json:"terminal_id,omitempty"`
	Items               []OrderItem `json:"items"`
	PaymentStatus       string      `json:"payment_status,omitempty"`
	DiscountCents       int64       `json:"discount_cents"`
	FeeCents            int64       `json:"fee_cents"`
	ShippingFeeCents    int64       `json:"shipping_fee_cents"`
	TransactionFeeCents int64       `json:"transaction_fee_cents"`
	Customer            *Customer   `json:"customer,omitempty"`
}

type OrderStatusUpdateRequest struct {
	PaymentStatus     *string   `json:"payment_status,omitempty"`
	FulfillmentStatus *string   `json:"fulfillment_status,omitempty"`
	Customer          *Customer `json:"customer,omitempty"`
}

type OrderVerifyResponse struct {
	OrderID   string `json:"order_id"`
	Integrity bool   `json:"integrity"`
	Hash      string `json:"hash,omitempty"`
}

type AdjustmentItem struct {
	ProductID   string `json:"product_id"`
	VariantID   string `json:"variant_id,omitempty"`
	Size        string `json:"size"`
	StockID     string `json:"stock_id"`
	DestStockID string `json:"dest_stock_id,omitempty"`
	Qty         int    `json:"qty"`
}

type InventoryAdjustment struct {
	ID        string           `json:"id"`
	Number    string           `json:"number"`
	Kind      string           `json:"kind"`
	Reason    string           `json:"reason"`
	Notes     string           `json:"notes,omitempty"`
	Items     []AdjustmentItem `json:"items"`
	CreatedBy string           `json:"created_by"`
	CreatedAt time.Time        `json:"created_at"`
}

type AdjustmentCreateRequest struct {
	Kind   string           `json:"kind"`
	Reason string           `json:"reason"`
	Notes  string           `json:"notes,omitempty"`
	Items  []AdjustmentItem `json:"items"`
}

type LedgerEntry struct {
	OrderID    string    `json:"order_id"`
	Hash       string    `json:"hash"`
	PrevHash   string    `json:"prev_hash,omitempty"`
	ComputedAt time.Time `json:"computed_at"`
}

type PettyCashEntry struct {
	ID            string     `json:"id"`
	BankAccountID string     `json:"bank_account_id"`
	AmountCents   int64      `json:"amount_cents"`
	Purpose       string     `json:"purpose"`
	Status        string     `json:"status"`
	ReviewedBy    string     `json:"reviewed_by,omitempty"`
	ReviewedAt    *time.Time `json:"reviewed_at,omitempty"`
	CreatedBy     string     `json:"created_by"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

type PettyCashCreateRequest struct {
	BankAccountID string `json:"bank_account_id"`
	AmountCents   int64  `json:"amount_cents"`
	Purpose       string `json:"purpose"`
}

type PettyCashUpdateRequest struct {
	AmountCents *int64  `json:"amount_cents,omitempty"`
	Purpose     *string `json:"purpose,omitempty"`
}

type PettyCashReviewRequest struct {
	Status     string `json:"status"`
	ManagerPIN string `json:"manager_pin,omitempty"`
}

type BankAccount struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	BalanceCents int64     `json:"balance_cents"`
	CreatedAt    time.Time `json:"created_at"`
}

type BankAccountCreateRequest struct {
	Name         string `json:"name"`
	BalanceCents int64  `json:"balance_cents"`
}

type ExpenseCategory struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type ExpenseCategoryCreateRequest struct {
	Name string `json:"name"`
}

type CartItem struct {
	ProductID string `json:"product_id"`
	VariantID string `json:"variant_id,omitempty"`
	Size      string `json:"size"`
	Qty       int    `json:"qty"`
}

type Cart struct {
	StockID    string     `json:"stock_id"`
	TerminalID string     `json:"terminal_id"`
	Items      []CartItem `json:"items"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string
	Role     string
}

type StaffCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type StaffUser struct {
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

type UserAccount struct {
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}

type AuditLog struct {
	ID         string    `json:"id"`
	Action     string    `json:"action"`
	EntityType string    `json:"entity_type"`
	EntityID   string    `json:"entity_id"`
	Actor      string    `json:"actor"`
	Detail     string    `json:"detail,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
