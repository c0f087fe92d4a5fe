package store

import (
	"context"
	"errors"
	"fmt"

	"gudangpos/backend/internal/domain"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrValidation        = errors.New("validation failed")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrConflict          = errors.New("conflict")
	ErrCouponExpired     = errors.New("coupon expired")
)

// FormatDocumentNumber renders an allocated sequence value for a series.
// Invoices are zero-padded to six digits, purchase orders to five.
func FormatDocumentNumber(series string, value int64) string {
	switch series {
	case domain.SeriesInvoice:
		return fmt.Sprintf("INV-%06d", value)
	case domain.SeriesPurchaseOrder:
		return fmt.Sprintf("PO-%05d", value)
	default:
		return fmt.Sprintf("%s-%06d", series, value)
	}
}

type Repository interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	CreateProduct(ctx context.Context, product domain.Product, initialStock int) (*domain.Product, error)
	GetProductByID(ctx context.Context, id string) (*domain.Product, error)
	GetProductsByIDs(ctx context.Context, ids []string) (map[string]domain.Product, error)

	AdjustStock(ctx context.Context, adj domain.StockAdjustment) (*domain.StockAdjustResult, error)
	GetStockLevels(ctx context.Context, productIDs []string) (map[string]int, error)
	ListStockEntries(ctx context.Context, q domain.LedgerQuery) ([]domain.StockEntry, error)
	ListLowStock(ctx context.Context) ([]domain.LowStockItem, error)

	CreateSale(ctx context.Context, sale domain.Sale, couponCode string) (*domain.Sale, error)
	GetSaleByID(ctx context.Context, id string) (*domain.Sale, error)
	ListSales(ctx context.Context, q domain.SaleQuery) ([]domain.Sale, error)
	UpdateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error)
	DeleteSale(ctx context.Context, id string, actor string) error

	CreatePurchase(ctx context.Context, purchase domain.Purchase) (*domain.Purchase, error)
	GetPurchaseByID(ctx context.Context, id string) (*domain.Purchase, error)
	ListPurchases(ctx context.Context, q domain.PurchaseQuery) ([]domain.Purchase, error)
	DeletePurchase(ctx context.Context, id string, actor string) error

	CreateCoupon(ctx context.Context, coupon domain.Coupon) (*domain.Coupon, error)
	GetCouponByCode(ctx context.Context, code string) (*domain.Coupon, error)

	CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error)
	GetCustomerByID(ctx context.Context, id string) (*domain.Customer, error)

	CreateSupplier(ctx context.Context, supplier domain.Supplier) (*domain.Supplier, error)
	GetSupplierByID(ctx context.Context, id string) (*domain.Supplier, error)
	ListSuppliers(ctx context.Context) ([]domain.Supplier, error)
}
