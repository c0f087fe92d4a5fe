package service

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"gudangpos/backend/internal/cache"
	"gudangpos/backend/internal/domain"
	"gudangpos/backend/internal/metrics"
	"gudangpos/backend/internal/store"
	"gudangpos/backend/internal/xid"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

const lowStockCacheKey = "lowstock:v1"

type Service struct {
	repo        store.Repository
	lowStock    cache.LowStockCache
	lowStockTTL time.Duration
}

func New(repo store.Repository, lowStock cache.LowStockCache, lowStockTTL time.Duration) *Service {
	if lowStock == nil {
		lowStock = cache.NoopLowStockCache{}
	}
	if lowStockTTL <= 0 {
		lowStockTTL = 60 * time.Second
	}

	return &Service{
		repo:        repo,
		lowStock:    lowStock,
		lowStockTTL: lowStockTTL,
	}
}

func (s *Service) actorName(ctx context.Context) string {
	if actor, ok := ActorFromContext(ctx); ok && actor.Username != "" {
		return actor.Username
	}
	return "system"
}

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx)
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.Product, error) {
	req.SKU = strings.ToUpper(strings.TrimSpace(req.SKU))
	req.Name = strings.TrimSpace(req.Name)

	if req.SKU == "" || req.Name == "" {
		return domain.Product{}, store.ErrValidation
	}
	if req.PriceCents < 1 || req.CostCents < 0 || req.MinimumStock < 0 || req.InitialStock < 0 {
		return domain.Product{}, store.ErrValidation
	}

	created, err := s.repo.CreateProduct(ctx, domain.Product{
		SKU:          req.SKU,
		Name:         req.Name,
		CostCents:    req.CostCents,
		PriceCents:   req.PriceCents,
		MinimumStock: req.MinimumStock,
	}, req.InitialStock)
	if err != nil {
		return domain.Product{}, err
	}

	s.invalidateLowStock(ctx)
	log.Printf("[service] product created id=%s sku=%s stock=%d", created.ID, created.SKU, req.InitialStock)
	return *created, nil
}

func (s *Service) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	product, err := s.repo.GetProductByID(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}
	return *product, nil
}

func (s *Service) StockIn(ctx context.Context, req domain.StockRequest) (domain.StockAdjustResult, error) {
	return s.adjustStock(ctx, req, 1)
}

func (s *Service) StockOut(ctx context.Context, req domain.StockRequest) (domain.StockAdjustResult, error) {
	return s.adjustStock(ctx, req, -1)
}

func (s *Service) adjustStock(ctx context.Context, req domain.StockRequest, sign int) (domain.StockAdjustResult, error) {
	if req.ProductID == "" || req.Qty < 1 {
		return domain.StockAdjustResult{}, store.ErrValidation
	}

	result, err := s.repo.AdjustStock(ctx, domain.StockAdjustment{
		ProductID:     req.ProductID,
		Delta:         sign * req.Qty,
		ReferenceKind: domain.StockRefManual,
		Actor:         s.actorName(ctx),
		Note:          strings.TrimSpace(req.Notes),
	})
	if err != nil {
		if errors.Is(err, store.ErrInsufficientStock) {
			metrics.InsufficientStockTotal.Inc()
		}
		return domain.StockAdjustResult{}, err
	}

	metrics.StockAdjustmentsTotal.WithLabelValues(result.Entry.Direction).Inc()
	s.invalidateLowStock(ctx)
	log.Printf("[service] stock adjusted product=%s direction=%s qty=%d new_stock=%d", req.ProductID, result.Entry.Direction, result.Entry.Qty, result.NewStock)
	return *result, nil
}

func (s *Service) StockLevels(ctx context.Context, productIDs []string) (map[string]int, error) {
	return s.repo.GetStockLevels(ctx, productIDs)
}

func (s *Service) StockHistory(ctx context.Context, q domain.LedgerQuery) ([]domain.StockEntry, error) {
	return s.repo.ListStockEntries(ctx, q)
}

func (s *Service) LowStockReport(ctx context.Context) (domain.LowStockReport, error) {
	if cached, ok, err := s.lowStock.Get(ctx, lowStockCacheKey); err == nil && ok {
		return *cached, nil
	} else if err != nil {
		log.Printf("[service] WARN: low stock cache read failed: %v", err)
	}

	items, err := s.repo.ListLowStock(ctx)
	if err != nil {
		return domain.LowStockReport{}, err
	}

	report := domain.LowStockReport{GeneratedAt: time.Now().UTC(), Items: items}
	if err := s.lowStock.Set(ctx, lowStockCacheKey, &report, s.lowStockTTL); err != nil {
		log.Printf("[service] WARN: low stock cache write failed: %v", err)
	}
	return report, nil
}

func (s *Service) invalidateLowStock(ctx context.Context) {
	if err := s.lowStock.Invalidate(ctx, lowStockCacheKey); err != nil {
		log.Printf("[service] WARN: low stock cache invalidate failed: %v", err)
	}
}

func (s *Service) CreateSale(ctx context.Context, req domain.SaleCreateRequest) (domain.Sale, error) {
	if len(req.Items) == 0 {
		return domain.Sale{}, store.ErrValidation
	}
	if req.PaymentMethod == "" {
		req.PaymentMethod = "cash"
	}
	req.CustomerName = strings.TrimSpace(req.CustomerName)

	items := make([]domain.SaleItem, 0, len(req.Items))
	productIDs := make([]string, 0, len(req.Items))
	for _, item := range req.Items {
		if item.Qty < 1 {
			return domain.Sale{}, store.ErrValidation
		}
		if item.ProductID == "" && strings.TrimSpace(item.ProductName) == "" {
			return domain.Sale{}, store.ErrValidation
		}
		items = append(items, domain.SaleItem{
			ProductID:      item.ProductID,
			ProductName:    strings.TrimSpace(item.ProductName),
			Qty:            item.Qty,
			UnitPriceCents: item.UnitPrice,
		})
		if item.ProductID != "" {
			productIDs = append(productIDs, item.ProductID)
		}
	}

	// Advisory checks; the store re-verifies everything inside its
	// transactional scope.
	if req.CustomerID != "" {
		customer, err := s.repo.GetCustomerByID(ctx, req.CustomerID)
		if err != nil {
			return domain.Sale{}, err
		}
		if req.CustomerName == "" {
			req.CustomerName = customer.Name
		}
	}
	if req.CustomerName == "" {
		req.CustomerName = "Umum"
	}
	if len(productIDs) > 0 {
		products, err := s.repo.GetProductsByIDs(ctx, productIDs)
		if err != nil {
			return domain.Sale{}, err
		}
		levels, err := s.repo.GetStockLevels(ctx, productIDs)
		if err != nil {
			return domain.Sale{}, err
		}
		needed := make(map[string]int, len(productIDs))
		for _, item := range items {
			if item.ProductID == "" {
				continue
			}
			if _, exists := products[item.ProductID]; !exists {
				return domain.Sale{}, store.ErrNotFound
			}
			needed[item.ProductID] += item.Qty
		}
		for productID, qty := range needed {
			if levels[productID] < qty {
				metrics.InsufficientStockTotal.Inc()
				return domain.Sale{}, store.ErrInsufficientStock
			}
		}
	}

	created, err := s.repo.CreateSale(ctx, domain.Sale{
		CustomerID:    req.CustomerID,
		CustomerName:  req.CustomerName,
		Items:         items,
		PaymentMethod: req.PaymentMethod,
		CreatedBy:     s.actorName(ctx),
		CreatedAt:     time.Now().UTC(),
	}, req.CouponCode)
	if err != nil {
		if errors.Is(err, store.ErrInsufficientStock) {
			metrics.InsufficientStockTotal.Inc()
		}
		return domain.Sale{}, err
	}

	metrics.SalesTotal.Inc()
	if created.CouponID != "" {
		metrics.CouponRedemptionsTotal.Inc()
	}
	if created.MilestoneAwarded {
		metrics.LoyaltyMilestonesTotal.Inc()
	}
	s.invalidateLowStock(ctx)
	log.Printf("[service] sale settled invoice=%s total=%d points=%d coupon=%q", created.InvoiceNumber, created.GrandTotalCents, created.PointsEarned, created.CouponID)
	return *created, nil
}

func (s *Service) GetSale(ctx context.Context, id string) (domain.Sale, error) {
	sale, err := s.repo.GetSaleByID(ctx, id)
	if err != nil {
		return domain.Sale{}, err
	}
	return *sale, nil
}

func (s *Service) ListSales(ctx context.Context, q domain.SaleQuery) ([]domain.Sale, error) {
	return s.repo.ListSales(ctx, q)
}

func (s *Service) UpdateSale(ctx context.Context, id string, req domain.SaleUpdateRequest) (domain.Sale, error) {
	if id == "" {
		return domain.Sale{}, store.ErrValidation
	}

	existing, err := s.repo.GetSaleByID(ctx, id)
	if err != nil {
		return domain.Sale{}, err
	}

	updated := *existing
	if req.CustomerName != nil {
		name := strings.TrimSpace(*req.CustomerName)
		if name == "" {
			return domain.Sale{}, store.ErrValidation
		}
		updated.CustomerName = name
	}
	if req.PaymentMethod != nil {
		method := strings.TrimSpace(*req.PaymentMethod)
		if method == "" {
			return domain.Sale{}, store.ErrValidation
		}
		updated.PaymentMethod = method
	}
	if len(req.Items) > 0 {
		items := make([]domain.SaleItem, 0, len(req.Items))
		for _, item := range req.Items {
			if item.Qty < 1 {
				return domain.Sale{}, store.ErrValidation
			}
			if item.ProductID == "" && strings.TrimSpace(item.ProductName) == "" {
				return domain.Sale{}, store.ErrValidation
			}
			items = append(items, domain.SaleItem{
				ProductID:      item.ProductID,
				ProductName:    strings.TrimSpace(item.ProductName),
				Qty:            item.Qty,
				UnitPriceCents: item.UnitPrice,
			})
		}
		updated.Items = items
	}

	saved, err := s.repo.UpdateSale(ctx, updated)
	if err != nil {
		return domain.Sale{}, err
	}

	log.Printf("[service] sale updated invoice=%s total=%d", saved.InvoiceNumber, saved.GrandTotalCents)
	return *saved, nil
}

func (s *Service) DeleteSale(ctx context.Context, id string) error {
	if id == "" {
		return store.ErrValidation
	}
	if err := s.repo.DeleteSale(ctx, id, s.actorName(ctx)); err != nil {
		return err
	}

	metrics.SaleReversalsTotal.Inc()
	s.invalidateLowStock(ctx)
	log.Printf("[service] sale deleted id=%s", id)
	return nil
}

func (s *Service) CreatePurchase(ctx context.Context, req domain.PurchaseCreateRequest) (domain.Purchase, error) {
	if req.SupplierID == "" || len(req.Items) == 0 {
		return domain.Purchase{}, store.ErrValidation
	}

	items := make([]domain.PurchaseItem, 0, len(req.Items))
	for _, item := range req.Items {
		if item.ProductID == "" || item.Qty < 1 || item.CostPrice < 1 {
			return domain.Purchase{}, store.ErrValidation
		}
		items = append(items, domain.PurchaseItem{
			ProductID: item.ProductID,
			Qty:       item.Qty,
			CostCents: item.CostPrice,
		})
	}

	purchaseDate := time.Now().UTC()
	if req.PurchaseDate != "" {
		parsed, err := time.Parse("2006-01-02", req.PurchaseDate)
		if err != nil {
			return domain.Purchase{}, store.ErrValidation
		}
		purchaseDate = parsed.UTC()
	}

	created, err := s.repo.CreatePurchase(ctx, domain.Purchase{
		SupplierID:   req.SupplierID,
		Items:        items,
		Notes:        strings.TrimSpace(req.Notes),
		CreatedBy:    s.actorName(ctx),
		PurchaseDate: purchaseDate,
	})
	if err != nil {
		return domain.Purchase{}, err
	}

	metrics.PurchasesTotal.Inc()
	s.invalidateLowStock(ctx)
	log.Printf("[service] purchase received po=%s supplier=%s total=%d", created.PONumber, created.SupplierID, created.TotalCents)
	return *created, nil
}

func (s *Service) GetPurchase(ctx context.Context, id string) (domain.Purchase, error) {
	purchase, err := s.repo.GetPurchaseByID(ctx, id)
	if err != nil {
		return domain.Purchase{}, err
	}
	return *purchase, nil
}

func (s *Service) ListPurchases(ctx context.Context, q domain.PurchaseQuery) ([]domain.Purchase, error) {
	return s.repo.ListPurchases(ctx, q)
}

func (s *Service) DeletePurchase(ctx context.Context, id string) error {
	if id == "" {
		return store.ErrValidation
	}
	if err := s.repo.DeletePurchase(ctx, id, s.actorName(ctx)); err != nil {
		return err
	}

	metrics.PurchaseReversalsTotal.Inc()
	s.invalidateLowStock(ctx)
	log.Printf("[service] purchase deleted id=%s", id)
	return nil
}

// ValidateCoupon reports whether the code is currently usable. A used or
// unknown code is indistinguishable to the caller.
func (s *Service) ValidateCoupon(ctx context.Context, code string) (domain.CouponValidateResponse, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return domain.CouponValidateResponse{}, store.ErrValidation
	}

	coupon, err := s.repo.GetCouponByCode(ctx, code)
	if err != nil {
		return domain.CouponValidateResponse{}, err
	}
	if coupon.Used {
		return domain.CouponValidateResponse{}, store.ErrNotFound
	}
	if !coupon.ExpiresAt.After(time.Now().UTC()) {
		return domain.CouponValidateResponse{}, store.ErrCouponExpired
	}

	return domain.CouponValidateResponse{
		Code:          coupon.Code,
		DiscountKind:  coupon.DiscountKind,
		DiscountValue: coupon.DiscountValue,
		CustomerID:    coupon.CustomerID,
	}, nil
}

func (s *Service) CreateCoupon(ctx context.Context, req domain.CouponCreateRequest) (domain.Coupon, error) {
	if req.DiscountKind == "" {
		req.DiscountKind = domain.CouponKindPercentage
	}
	if req.DiscountValue < 1 {
		return domain.Coupon{}, store.ErrValidation
	}
	if req.ExpiryDays < 1 {
		req.ExpiryDays = 30
	}

	created, err := s.repo.CreateCoupon(ctx, domain.Coupon{
		Code:          xid.Code("PROMO"),
		DiscountKind:  req.DiscountKind,
		DiscountValue: req.DiscountValue,
		ExpiresAt:     time.Now().UTC().AddDate(0, 0, req.ExpiryDays),
		CustomerID:    req.CustomerID,
	})
	if err != nil {
		return domain.Coupon{}, err
	}

	log.Printf("[service] coupon created code=%s kind=%s value=%d", created.Code, created.DiscountKind, created.DiscountValue)
	return *created, nil
}

// RegisterCustomer creates the customer and issues the welcome coupon.
func (s *Service) RegisterCustomer(ctx context.Context, req domain.CustomerCreateRequest) (domain.CustomerRegistration, error) {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return domain.CustomerRegistration{}, store.ErrValidation
	}

	customer, err := s.repo.CreateCustomer(ctx, domain.Customer{
		Name:  req.Name,
		Phone: strings.TrimSpace(req.Phone),
	})
	if err != nil {
		return domain.CustomerRegistration{}, err
	}

	registration := domain.CustomerRegistration{Customer: *customer}
	welcome, err := s.repo.CreateCoupon(ctx, domain.Coupon{
		Code:          xid.Code("WELCOME"),
		DiscountKind:  domain.CouponKindPercentage,
		DiscountValue: domain.WelcomeCouponPercent,
		ExpiresAt:     time.Now().UTC().AddDate(0, 0, domain.WelcomeCouponExpiryDays),
		CustomerID:    customer.ID,
	})
	if err != nil {
		log.Printf("[service] WARN: welcome coupon failed for customer=%s: %v", customer.ID, err)
	} else {
		registration.Coupon = welcome
	}

	log.Printf("[service] customer registered id=%s", customer.ID)
	return registration, nil
}

func (s *Service) GetCustomer(ctx context.Context, id string) (domain.Customer, error) {
	customer, err := s.repo.GetCustomerByID(ctx, id)
	if err != nil {
		return domain.Customer{}, err
	}
	return *customer, nil
}

func (s *Service) CreateSupplier(ctx context.Context, req domain.SupplierCreateRequest) (domain.Supplier, error) {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return domain.Supplier{}, store.ErrValidation
	}

	created, err := s.repo.CreateSupplier(ctx, domain.Supplier{
		Name:  req.Name,
		Phone: strings.TrimSpace(req.Phone),
	})
	if err != nil {
		return domain.Supplier{}, err
	}
	return *created, nil
}

func (s *Service) ListSuppliers(ctx context.Context) ([]domain.Supplier, error) {
	return s.repo.ListSuppliers(ctx)
}
