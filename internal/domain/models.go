package domain

import "time"

// All monetary amounts are integer cents.

type Product struct {
	ID           string    `json:"id"`
	SKU          string    `json:"sku"`
	Name         string    `json:"name"`
	CostCents    int64     `json:"cost_cents"`
	PriceCents   int64     `json:"price_cents"`
	MinimumStock int       `json:"minimum_stock"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
}

type ProductCreateRequest struct {
	SKU          string `json:"sku"`
	Name         string `json:"name"`
	CostCents    int64  `json:"cost_cents"`
	PriceCents   int64  `json:"price_cents"`
	MinimumStock int    `json:"minimum_stock"`
	InitialStock int    `json:"initial_stock"`
}

type Inventory struct {
	ProductID string    `json:"product_id"`
	Qty       int       `json:"qty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StockEntry is one append-only ledger row recording a single directional
// stock movement and what caused it. Rows are never updated or deleted;
// reversals append compensating rows.
type StockEntry struct {
	ID            string    `json:"id"`
	ProductID     string    `json:"product_id"`
	Direction     string    `json:"direction"`
	Qty           int       `json:"qty"`
	ReferenceKind string    `json:"reference_kind"`
	ReferenceID   string    `json:"reference_id,omitempty"`
	Actor         string    `json:"actor"`
	Note          string    `json:"note,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// StockAdjustment is the input to one ledger adjustment. Delta is signed:
// positive for stock-in, negative for stock-out.
type StockAdjustment struct {
	ProductID     string
	Delta         int
	ReferenceKind string
	ReferenceID   string
	Actor         string
	Note          string
}

type StockAdjustResult struct {
	NewStock int        `json:"new_stock"`
	Entry    StockEntry `json:"entry"`
}

type StockRequest struct {
	ProductID string `json:"product_id"`
	Qty       int    `json:"qty"`
	Notes     string `json:"notes,omitempty"`
}

// LedgerQuery enumerates the supported ledger-history predicates.
type LedgerQuery struct {
	ProductID     string `json:"product_id,omitempty"`
	ReferenceKind string `json:"reference_kind,omitempty"`
	ReferenceID   string `json:"reference_id,omitempty"`
	Limit         int    `json:"limit,omitempty"`
	Offset        int    `json:"offset,omitempty"`
}

type LowStockItem struct {
	ProductID    string `json:"product_id"`
	SKU          string `json:"sku"`
	Name         string `json:"name"`
	CurrentStock int    `json:"current_stock"`
	MinimumStock int    `json:"minimum_stock"`
}

type LowStockReport struct {
	GeneratedAt time.Time      `json:"generated_at"`
	Items       []LowStockItem `json:"items"`
}

type SaleItem struct {
	ProductID      string `json:"product_id,omitempty"`
	ProductName    string `json:"product_name"`
	Qty            int    `json:"qty"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	CostCents      int64  `json:"cost_cents"`
	TotalCents     int64  `json:"total_cents"`
}

type Sale struct {
	ID              string     `json:"id"`
	InvoiceNumber   string     `json:"invoice_number"`
	CustomerID      string     `json:"customer_id,omitempty"`
	CustomerName    string     `json:"customer_name"`
	Items           []SaleItem `json:"items"`
	SubtotalCents   int64      `json:"subtotal_cents"`
	DiscountCents   int64      `json:"discount_cents"`
	TaxCents        int64      `json:"tax_cents"`
	GrandTotalCents int64      `json:"grand_total_cents"`
	CostTotalCents  int64      `json:"cost_total_cents"`
	ProfitCents     int64      `json:"profit_cents"`
	PaymentMethod   string     `json:"payment_method"`
	CouponID        string     `json:"coupon_id,omitempty"`
	PointsEarned    int        `json:"points_earned"`
	CreatedBy       string     `json:"created_by"`
	CreatedAt       time.Time  `json:"created_at"`
	// Set by the store when this settlement issued a milestone coupon.
	MilestoneAwarded bool `json:"-"`
}

type SaleItemRequest struct {
	ProductID   string `json:"product_id,omitempty"`
	ProductName string `json:"product_name"`
	Qty         int    `json:"qty"`
	UnitPrice   int64  `json:"unit_price_cents"`
}

type SaleCreateRequest struct {
	CustomerID    string            `json:"customer_id,omitempty"`
	CustomerName  string            `json:"customer_name"`
	Items         []SaleItemRequest `json:"items"`
	PaymentMethod string            `json:"payment_method"`
	CouponCode    string            `json:"coupon_code,omitempty"`
}

type SaleUpdateRequest struct {
	Items         []SaleItemRequest `json:"items,omitempty"`
	CustomerName  *string           `json:"customer_name,omitempty"`
	PaymentMethod *string           `json:"payment_method,omitempty"`
}

type SaleQuery struct {
	CustomerID string `json:"customer_id,omitempty"`
	Limit      int    `json:"limit,omitempty"`
	Offset     int    `json:"offset,omitempty"`
}

type PurchaseItem struct {
	ProductID  string `json:"product_id"`
	Qty        int    `json:"qty"`
	CostCents  int64  `json:"cost_cents"`
	TotalCents int64  `json:"total_cents"`
}

type Purchase struct {
	ID           string         `json:"id"`
	PONumber     string         `json:"po_number"`
	SupplierID   string         `json:"supplier_id"`
	SupplierName string         `json:"supplier_name"`
	Items        []PurchaseItem `json:"items"`
	TotalCents   int64          `json:"total_cents"`
	Status       string         `json:"status"`
	Notes        string         `json:"notes,omitempty"`
	CreatedBy    string         `json:"created_by"`
	PurchaseDate time.Time      `json:"purchase_date"`
	CreatedAt    time.Time      `json:"created_at"`
}

type PurchaseItemRequest struct {
	ProductID string `json:"product_id"`
	Qty       int    `json:"qty"`
	CostPrice int64  `json:"cost_price_cents"`
}

type PurchaseCreateRequest struct {
	SupplierID   string                `json:"supplier_id"`
	Items        []PurchaseItemRequest `json:"items"`
	Notes        string                `json:"notes,omitempty"`
	PurchaseDate string                `json:"purchase_date,omitempty"`
}

type PurchaseQuery struct {
	SupplierID string `json:"supplier_id,omitempty"`
	Limit      int    `json:"limit,omitempty"`
	Offset     int    `json:"offset,omitempty"`
}

type Coupon struct {
	ID            string    `json:"id"`
	Code          string    `json:"code"`
	DiscountKind  string    `json:"discount_kind"`
	DiscountValue int64     `json:"discount_value"`
	ExpiresAt     time.Time `json:"expires_at"`
	Used          bool      `json:"used"`
	CustomerID    string    `json:"customer_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

type CouponCreateRequest struct {
	CustomerID    string `json:"customer_id,omitempty"`
	DiscountKind  string `json:"discount_kind"`
	DiscountValue int64  `json:"discount_value"`
	ExpiryDays    int    `json:"expiry_days"`
}

type CouponValidateResponse struct {
	Code          string `json:"code"`
	DiscountKind  string `json:"discount_kind"`
	DiscountValue int64  `json:"discount_value"`
	CustomerID    string `json:"customer_id,omitempty"`
}

type Customer struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Phone         string    `json:"phone,omitempty"`
	LoyaltyPoints int       `json:"loyalty_points"`
	PurchaseCount int       `json:"purchase_count"`
	CreatedAt     time.Time `json:"created_at"`
}

type CustomerCreateRequest struct {
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
}

type CustomerRegistration struct {
	Customer Customer `json:"customer"`
	// Welcome coupon issued at registration.
	Coupon *Coupon `json:"coupon,omitempty"`
}

type Supplier struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type SupplierCreateRequest struct {
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
}

type Actor struct {
	Username string
}

const (
	StockDirectionIn  = "stock-in"
	StockDirectionOut = "stock-out"
)

const (
	StockRefSale     = "sale"
	StockRefPurchase = "purchase"
	StockRefManual   = "manual"
)

const (
	CouponKindPercentage = "percentage"
	CouponKindFixed      = "fixed"
)

const (
	SeriesInvoice       = "invoice"
	SeriesPurchaseOrder = "purchase-order"
)

const PurchaseStatusReceived = "received"

// TaxRatePercent is the flat tax applied to the discounted subtotal.
const TaxRatePercent = 10

// Loyalty: one point per 100 cents of discounted subtotal. At 500 points a
// 5% milestone coupon is issued and exactly 500 points are deducted, at
// most once per settlement.
const (
	LoyaltyPointDivisorCents  = 100
	LoyaltyMilestonePoints    = 500
	MilestoneCouponPercent    = 5
	MilestoneCouponExpiryDays = 30
	WelcomeCouponPercent      = 5
	WelcomeCouponExpiryDays   = 30
)
