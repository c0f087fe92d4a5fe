package memory

import (
	"context"
	"math"
	"slices"
	"strings"
	"sync"
	"time"

	"gudangpos/backend/internal/domain"
	"gudangpos/backend/internal/store"
	"gudangpos/backend/internal/xid"
)

type Store struct {
	mu               sync.RWMutex
	products         map[string]domain.Product
	inventories      map[string]int
	entries          []domain.StockEntry
	sequences        map[string]int64
	salesByID        map[string]domain.Sale
	purchasesByID    map[string]domain.Purchase
	couponsByID      map[string]domain.Coupon
	couponIDByCode   map[string]string
	customersByID    map[string]domain.Customer
	suppliersByID    map[string]domain.Supplier
	productSuppliers map[string]map[string]struct{}
	seq              int64
}

func New() *Store {
	return &Store{
		products:         make(map[string]domain.Product),
		inventories:      make(map[string]int),
		entries:          make([]domain.StockEntry, 0, 256),
		sequences:        make(map[string]int64),
		salesByID:        make(map[string]domain.Sale),
		purchasesByID:    make(map[string]domain.Purchase),
		couponsByID:      make(map[string]domain.Coupon),
		couponIDByCode:   make(map[string]string),
		customersByID:    make(map[string]domain.Customer),
		suppliersByID:    make(map[string]domain.Supplier),
		productSuppliers: make(map[string]map[string]struct{}),
	}
}

// NewSeeded returns a store preloaded with demo data for dev mode.
func NewSeeded() *Store {
	s := New()
	now := time.Now().UTC()

	products := []struct {
		product domain.Product
		stock   int
	}{
		{domain.Product{ID: "prd-seed-mie", SKU: "SKU-MIE-01", Name: "Mie Goreng Instan", CostCents: 2700, PriceCents: 3500, MinimumStock: 20, Active: true, CreatedAt: now}, 120},
		{domain.Product{ID: "prd-seed-telur", SKU: "SKU-TELUR-01", Name: "Telur 10 Butir", CostCents: 23000, PriceCents: 26500, MinimumStock: 10, Active: true, CreatedAt: now}, 80},
		{domain.Product{ID: "prd-seed-susu", SKU: "SKU-SUSU-01", Name: "Susu UHT 1L", CostCents: 13600, PriceCents: 18900, MinimumStock: 12, Active: true, CreatedAt: now}, 60},
		{domain.Product{ID: "prd-seed-kopi", SKU: "SKU-KOPI-01", Name: "Kopi Sachet", CostCents: 1700, PriceCents: 2600, MinimumStock: 40, Active: true, CreatedAt: now}, 200},
		{domain.Product{ID: "prd-seed-gula", SKU: "SKU-GULA-01", Name: "Gula 1kg", CostCents: 15300, PriceCents: 17400, MinimumStock: 8, Active: true, CreatedAt: now}, 45},
		{domain.Product{ID: "prd-seed-sabun", SKU: "SKU-SABUN-01", Name: "Sabun Mandi", CostCents: 5000, PriceCents: 7400, MinimumStock: 15, Active: true, CreatedAt: now}, 5},
	}
	for _, seed := range products {
		s.products[seed.product.ID] = seed.product
		s.inventories[seed.product.ID] = seed.stock
		s.entries = append(s.entries, domain.StockEntry{
			ID:            xid.New("stk"),
			ProductID:     seed.product.ID,
			Direction:     domain.StockDirectionIn,
			Qty:           seed.stock,
			ReferenceKind: domain.StockRefManual,
			Actor:         "system",
			Note:          "initial stock",
			CreatedAt:     now,
		})
		s.seq++
	}

	s.customersByID["cst-seed-budi"] = domain.Customer{ID: "cst-seed-budi", Name: "Budi Santoso", Phone: "0812-0000-0001", LoyaltyPoints: 120, PurchaseCount: 4, CreatedAt: now}
	s.customersByID["cst-seed-sari"] = domain.Customer{ID: "cst-seed-sari", Name: "Sari Dewi", Phone: "0812-0000-0002", CreatedAt: now}

	s.suppliersByID["sup-seed-makmur"] = domain.Supplier{ID: "sup-seed-makmur", Name: "PT Sumber Makmur", Phone: "021-555-0101", CreatedAt: now}
	s.suppliersByID["sup-seed-jaya"] = domain.Supplier{ID: "sup-seed-jaya", Name: "CV Jaya Abadi", Phone: "021-555-0102", CreatedAt: now}

	welcome := domain.Coupon{
		ID:            "cpn-seed-welcome",
		Code:          "WELCOME10",
		DiscountKind:  domain.CouponKindPercentage,
		DiscountValue: 10,
		ExpiresAt:     now.AddDate(1, 0, 0),
		CustomerID:    "cst-seed-budi",
		CreatedAt:     now,
	}
	s.couponsByID[welcome.ID] = welcome
	s.couponIDByCode[welcome.Code] = welcome.ID

	return s
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

func (s *Store) CreateProduct(_ context.Context, product domain.Product, initialStock int) (*domain.Product, error) {
	if product.SKU == "" || product.Name == "" || product.PriceCents < 1 {
		return nil, store.ErrValidation
	}
	if product.CostCents < 0 || product.MinimumStock < 0 || initialStock < 0 {
		return nil, store.ErrValidation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	product.SKU = strings.ToUpper(strings.TrimSpace(product.SKU))
	for _, existing := range s.products {
		if existing.SKU == product.SKU {
			return nil, store.ErrConflict
		}
	}

	if product.ID == "" {
		product.ID = xid.New("prd")
	}
	product.Active = true
	if product.CreatedAt.IsZero() {
		product.CreatedAt = time.Now().UTC()
	}
	s.products[product.ID] = product

	if initialStock > 0 {
		s.inventories[product.ID] = initialStock
		s.appendEntry(domain.StockAdjustment{
			ProductID:     product.ID,
			Delta:         initialStock,
			ReferenceKind: domain.StockRefManual,
			Actor:         "system",
			Note:          "initial stock",
		})
	}

	created := product
	return &created, nil
}

func (s *Store) GetProductByID(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, exists := s.products[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyProduct := product
	return &copyProduct, nil
}

func (s *Store) GetProductsByIDs(_ context.Context, ids []string) (map[string]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]domain.Product, len(ids))
	for _, id := range ids {
		if p, ok := s.products[id]; ok && p.Active {
			result[id] = p
		}
	}
	return result, nil
}

// appendEntry records a ledger row and bumps the insertion counter. Caller
// must hold the write lock and have already mutated the inventory.
func (s *Store) appendEntry(adj domain.StockAdjustment) domain.StockEntry {
	direction := domain.StockDirectionIn
	qty := adj.Delta
	if adj.Delta < 0 {
		direction = domain.StockDirectionOut
		qty = -adj.Delta
	}
	if adj.Actor == "" {
		adj.Actor = "system"
	}
	s.seq++
	entry := domain.StockEntry{
		ID:            xid.New("stk"),
		ProductID:     adj.ProductID,
		Direction:     direction,
		Qty:           qty,
		ReferenceKind: adj.ReferenceKind,
		ReferenceID:   adj.ReferenceID,
		Actor:         adj.Actor,
		Note:          adj.Note,
		CreatedAt:     time.Now().UTC(),
	}
	s.entries = append(s.entries, entry)
	return entry
}

func (s *Store) AdjustStock(_ context.Context, adj domain.StockAdjustment) (*domain.StockAdjustResult, error) {
	if adj.ProductID == "" || adj.Delta == 0 {
		return nil, store.ErrValidation
	}
	if adj.ReferenceKind == "" {
		adj.ReferenceKind = domain.StockRefManual
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.products[adj.ProductID]; !exists {
		return nil, store.ErrNotFound
	}

	current := s.inventories[adj.ProductID]
	if current+adj.Delta < 0 {
		return nil, store.ErrInsufficientStock
	}
	s.inventories[adj.ProductID] = current + adj.Delta
	entry := s.appendEntry(adj)

	return &domain.StockAdjustResult{NewStock: current + adj.Delta, Entry: entry}, nil
}

func (s *Store) GetStockLevels(_ context.Context, productIDs []string) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stockMap := make(map[string]int, len(productIDs))
	for _, id := range productIDs {
		stockMap[id] = s.inventories[id]
	}
	return stockMap, nil
}

func (s *Store) ListStockEntries(_ context.Context, q domain.LedgerQuery) ([]domain.StockEntry, error) {
	if q.Limit < 1 {
		q.Limit = 50
	}
	if q.Offset < 0 {
		q.Offset = 0
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]domain.StockEntry, 0, len(s.entries))
	for _, entry := range s.entries {
		if q.ProductID != "" && entry.ProductID != q.ProductID {
			continue
		}
		if q.ReferenceKind != "" && entry.ReferenceKind != q.ReferenceKind {
			continue
		}
		if q.ReferenceID != "" && entry.ReferenceID != q.ReferenceID {
			continue
		}
		matched = append(matched, entry)
	}

	// Newest first; ties break on insertion order.
	slices.Reverse(matched)

	if q.Offset >= len(matched) {
		return []domain.StockEntry{}, nil
	}
	matched = matched[q.Offset:]
	if len(matched) > q.Limit {
		matched = matched[:q.Limit]
	}
	result := make([]domain.StockEntry, len(matched))
	copy(result, matched)
	return result, nil
}

func (s *Store) ListLowStock(_ context.Context) ([]domain.LowStockItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]domain.LowStockItem, 0, 16)
	for _, p := range s.products {
		if !p.Active {
			continue
		}
		qty := s.inventories[p.ID]
		if qty <= p.MinimumStock {
			items = append(items, domain.LowStockItem{
				ProductID:    p.ID,
				SKU:          p.SKU,
				Name:         p.Name,
				CurrentStock: qty,
				MinimumStock: p.MinimumStock,
			})
		}
	}

	slices.SortFunc(items, func(a, b domain.LowStockItem) int {
		if a.CurrentStock != b.CurrentStock {
			return a.CurrentStock - b.CurrentStock
		}
		return cmpString(a.Name, b.Name)
	})
	return items, nil
}

func (s *Store) CreateSale(_ context.Context, sale domain.Sale, couponCode string) (*domain.Sale, error) {
	if len(sale.Items) == 0 || sale.PaymentMethod == "" {
		return nil, store.ErrValidation
	}
	for _, item := range sale.Items {
		if item.Qty < 1 {
			return nil, store.ErrValidation
		}
		if item.ProductID == "" && (item.ProductName == "" || item.UnitPriceCents < 0) {
			return nil, store.ErrValidation
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	subtotalCents := int64(0)
	costTotalCents := int64(0)
	needed := make(map[string]int)
	pricedItems := make([]domain.SaleItem, 0, len(sale.Items))
	for _, item := range sale.Items {
		priced := domain.SaleItem{
			ProductID:      item.ProductID,
			ProductName:    item.ProductName,
			Qty:            item.Qty,
			UnitPriceCents: item.UnitPriceCents,
		}
		if item.ProductID != "" {
			product, exists := s.products[item.ProductID]
			if !exists || !product.Active {
				return nil, store.ErrNotFound
			}
			priced.ProductName = product.Name
			priced.UnitPriceCents = product.PriceCents
			priced.CostCents = product.CostCents
			needed[item.ProductID] += item.Qty
		}
		priced.TotalCents = priced.UnitPriceCents * int64(item.Qty)
		subtotalCents += priced.TotalCents
		costTotalCents += priced.CostCents * int64(item.Qty)
		pricedItems = append(pricedItems, priced)
	}

	for productID, qty := range needed {
		if s.inventories[productID] < qty {
			return nil, store.ErrInsufficientStock
		}
	}

	var customer *domain.Customer
	if sale.CustomerID != "" {
		c, exists := s.customersByID[sale.CustomerID]
		if !exists {
			return nil, store.ErrNotFound
		}
		customer = &c
	}

	discountCents := int64(0)
	couponID := ""
	if couponCode != "" {
		code := strings.ToUpper(strings.TrimSpace(couponCode))
		if id, ok := s.couponIDByCode[code]; ok {
			coupon := s.couponsByID[id]
			if !coupon.Used && coupon.ExpiresAt.After(time.Now().UTC()) {
				discountCents = couponDiscount(coupon, subtotalCents)
				couponID = coupon.ID
			}
		}
	}

	discountedCents := subtotalCents - discountCents
	taxCents := int64(math.Round(float64(discountedCents) * float64(domain.TaxRatePercent) / 100))

	// Points accrue only when the sale carries a customer reference.
	pointsEarned := 0
	if customer != nil {
		pointsEarned = int(discountedCents / domain.LoyaltyPointDivisorCents)
	}

	s.sequences[domain.SeriesInvoice]++
	sale.InvoiceNumber = store.FormatDocumentNumber(domain.SeriesInvoice, s.sequences[domain.SeriesInvoice])
	sale.Items = pricedItems
	sale.SubtotalCents = subtotalCents
	sale.DiscountCents = discountCents
	sale.TaxCents = taxCents
	sale.GrandTotalCents = discountedCents + taxCents
	sale.CostTotalCents = costTotalCents
	sale.ProfitCents = discountedCents - costTotalCents
	sale.CouponID = couponID
	sale.PointsEarned = pointsEarned
	if sale.ID == "" {
		sale.ID = xid.New("sale")
	}
	if sale.CreatedBy == "" {
		sale.CreatedBy = "system"
	}
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = time.Now().UTC()
	}

	for _, item := range pricedItems {
		if item.ProductID == "" {
			continue
		}
		s.inventories[item.ProductID] -= item.Qty
		s.appendEntry(domain.StockAdjustment{
			ProductID:     item.ProductID,
			Delta:         -item.Qty,
			ReferenceKind: domain.StockRefSale,
			ReferenceID:   sale.ID,
			Actor:         sale.CreatedBy,
		})
	}

	if couponID != "" {
		coupon := s.couponsByID[couponID]
		coupon.Used = true
		s.couponsByID[couponID] = coupon
	}

	if customer != nil {
		customer.LoyaltyPoints += pointsEarned
		customer.PurchaseCount++
		if customer.LoyaltyPoints >= domain.LoyaltyMilestonePoints {
			customer.LoyaltyPoints -= domain.LoyaltyMilestonePoints
			sale.MilestoneAwarded = true
			milestone := domain.Coupon{
				ID:            xid.New("cpn"),
				Code:          xid.Code("LOYAL"),
				DiscountKind:  domain.CouponKindPercentage,
				DiscountValue: domain.MilestoneCouponPercent,
				ExpiresAt:     time.Now().UTC().AddDate(0, 0, domain.MilestoneCouponExpiryDays),
				CustomerID:    customer.ID,
				CreatedAt:     time.Now().UTC(),
			}
			s.couponsByID[milestone.ID] = milestone
			s.couponIDByCode[milestone.Code] = milestone.ID
		}
		s.customersByID[customer.ID] = *customer
	}

	s.salesByID[sale.ID] = sale
	created := sale
	return &created, nil
}

func (s *Store) GetSaleByID(_ context.Context, id string) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, exists := s.salesByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copySale := sale
	copySale.Items = slices.Clone(sale.Items)
	return &copySale, nil
}

func (s *Store) ListSales(_ context.Context, q domain.SaleQuery) ([]domain.Sale, error) {
	if q.Limit < 1 {
		q.Limit = 50
	}
	if q.Offset < 0 {
		q.Offset = 0
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	sales := make([]domain.Sale, 0, len(s.salesByID))
	for _, sale := range s.salesByID {
		if q.CustomerID != "" && sale.CustomerID != q.CustomerID {
			continue
		}
		copySale := sale
		copySale.Items = slices.Clone(sale.Items)
		sales = append(sales, copySale)
	}

	slices.SortFunc(sales, func(a, b domain.Sale) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(b.ID, a.ID)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})

	if q.Offset >= len(sales) {
		return []domain.Sale{}, nil
	}
	sales = sales[q.Offset:]
	if len(sales) > q.Limit {
		sales = sales[:q.Limit]
	}
	return sales, nil
}

func (s *Store) UpdateSale(_ context.Context, sale domain.Sale) (*domain.Sale, error) {
	if sale.ID == "" || len(sale.Items) == 0 {
		return nil, store.ErrValidation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.salesByID[sale.ID]
	if !exists {
		return nil, store.ErrNotFound
	}

	subtotalCents := int64(0)
	costTotalCents := int64(0)
	pricedItems := make([]domain.SaleItem, 0, len(sale.Items))
	for _, item := range sale.Items {
		if item.Qty < 1 {
			return nil, store.ErrValidation
		}
		priced := domain.SaleItem{
			ProductID:      item.ProductID,
			ProductName:    item.ProductName,
			Qty:            item.Qty,
			UnitPriceCents: item.UnitPriceCents,
		}
		if item.ProductID != "" {
			product, exists := s.products[item.ProductID]
			if !exists {
				return nil, store.ErrNotFound
			}
			priced.ProductName = product.Name
			priced.UnitPriceCents = product.PriceCents
			priced.CostCents = product.CostCents
		}
		priced.TotalCents = priced.UnitPriceCents * int64(item.Qty)
		subtotalCents += priced.TotalCents
		costTotalCents += priced.CostCents * int64(item.Qty)
		pricedItems = append(pricedItems, priced)
	}

	discountCents := int64(0)
	if current.CouponID != "" {
		if coupon, ok := s.couponsByID[current.CouponID]; ok {
			discountCents = couponDiscount(coupon, subtotalCents)
		}
	}

	discountedCents := subtotalCents - discountCents
	taxCents := int64(math.Round(float64(discountedCents) * float64(domain.TaxRatePercent) / 100))

	current.CustomerName = sale.CustomerName
	current.PaymentMethod = sale.PaymentMethod
	current.Items = pricedItems
	current.SubtotalCents = subtotalCents
	current.DiscountCents = discountCents
	current.TaxCents = taxCents
	current.GrandTotalCents = discountedCents + taxCents
	current.CostTotalCents = costTotalCents
	current.ProfitCents = discountedCents - costTotalCents
	s.salesByID[current.ID] = current

	updated := current
	updated.Items = slices.Clone(current.Items)
	return &updated, nil
}

func (s *Store) DeleteSale(_ context.Context, id string, actor string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sale, exists := s.salesByID[id]
	if !exists {
		return store.ErrNotFound
	}

	for _, item := range sale.Items {
		if item.ProductID == "" {
			continue
		}
		s.inventories[item.ProductID] += item.Qty
		s.appendEntry(domain.StockAdjustment{
			ProductID:     item.ProductID,
			Delta:         item.Qty,
			ReferenceKind: domain.StockRefManual,
			ReferenceID:   id,
			Actor:         actor,
			Note:          "Sale deleted: " + sale.InvoiceNumber,
		})
	}

	delete(s.salesByID, id)
	return nil
}

func (s *Store) CreatePurchase(_ context.Context, purchase domain.Purchase) (*domain.Purchase, error) {
	if purchase.SupplierID == "" || len(purchase.Items) == 0 {
		return nil, store.ErrValidation
	}
	for _, item := range purchase.Items {
		if item.ProductID == "" || item.Qty < 1 || item.CostCents < 1 {
			return nil, store.ErrValidation
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	supplier, exists := s.suppliersByID[purchase.SupplierID]
	if !exists {
		return nil, store.ErrNotFound
	}
	for _, item := range purchase.Items {
		if _, ok := s.products[item.ProductID]; !ok {
			return nil, store.ErrNotFound
		}
	}

	totalCents := int64(0)
	items := make([]domain.PurchaseItem, 0, len(purchase.Items))
	for _, item := range purchase.Items {
		item.TotalCents = item.CostCents * int64(item.Qty)
		totalCents += item.TotalCents
		items = append(items, item)
	}

	s.sequences[domain.SeriesPurchaseOrder]++
	purchase.PONumber = store.FormatDocumentNumber(domain.SeriesPurchaseOrder, s.sequences[domain.SeriesPurchaseOrder])
	purchase.SupplierName = supplier.Name
	purchase.Items = items
	purchase.TotalCents = totalCents
	purchase.Status = domain.PurchaseStatusReceived
	if purchase.ID == "" {
		purchase.ID = xid.New("pur")
	}
	if purchase.CreatedBy == "" {
		purchase.CreatedBy = "system"
	}
	if purchase.PurchaseDate.IsZero() {
		purchase.PurchaseDate = time.Now().UTC()
	}
	if purchase.CreatedAt.IsZero() {
		purchase.CreatedAt = time.Now().UTC()
	}

	for _, item := range items {
		s.inventories[item.ProductID] += item.Qty
		s.appendEntry(domain.StockAdjustment{
			ProductID:     item.ProductID,
			Delta:         item.Qty,
			ReferenceKind: domain.StockRefPurchase,
			ReferenceID:   purchase.ID,
			Actor:         purchase.CreatedBy,
		})

		// Last purchase price wins.
		product := s.products[item.ProductID]
		product.CostCents = item.CostCents
		s.products[item.ProductID] = product

		if s.productSuppliers[item.ProductID] == nil {
			s.productSuppliers[item.ProductID] = make(map[string]struct{})
		}
		s.productSuppliers[item.ProductID][purchase.SupplierID] = struct{}{}
	}

	s.purchasesByID[purchase.ID] = purchase
	created := purchase
	created.Items = slices.Clone(purchase.Items)
	return &created, nil
}

func (s *Store) GetPurchaseByID(_ context.Context, id string) (*domain.Purchase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	purchase, exists := s.purchasesByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyPurchase := purchase
	copyPurchase.Items = slices.Clone(purchase.Items)
	return &copyPurchase, nil
}

func (s *Store) ListPurchases(_ context.Context, q domain.PurchaseQuery) ([]domain.Purchase, error) {
	if q.Limit < 1 {
		q.Limit = 50
	}
	if q.Offset < 0 {
		q.Offset = 0
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	purchases := make([]domain.Purchase, 0, len(s.purchasesByID))
	for _, purchase := range s.purchasesByID {
		if q.SupplierID != "" && purchase.SupplierID != q.SupplierID {
			continue
		}
		copyPurchase := purchase
		copyPurchase.Items = slices.Clone(purchase.Items)
		purchases = append(purchases, copyPurchase)
	}

	slices.SortFunc(purchases, func(a, b domain.Purchase) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(b.ID, a.ID)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})

	if q.Offset >= len(purchases) {
		return []domain.Purchase{}, nil
	}
	purchases = purchases[q.Offset:]
	if len(purchases) > q.Limit {
		purchases = purchases[:q.Limit]
	}
	return purchases, nil
}

func (s *Store) DeletePurchase(_ context.Context, id string, actor string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	purchase, exists := s.purchasesByID[id]
	if !exists {
		return store.ErrNotFound
	}

	for _, item := range purchase.Items {
		removed := item.Qty
		if current := s.inventories[item.ProductID]; removed > current {
			removed = current
		}
		if removed < 1 {
			continue
		}
		s.inventories[item.ProductID] -= removed
		s.appendEntry(domain.StockAdjustment{
			ProductID:     item.ProductID,
			Delta:         -removed,
			ReferenceKind: domain.StockRefManual,
			ReferenceID:   id,
			Actor:         actor,
			Note:          "Purchase deleted: " + purchase.PONumber,
		})
	}

	delete(s.purchasesByID, id)
	return nil
}

func (s *Store) CreateCoupon(_ context.Context, coupon domain.Coupon) (*domain.Coupon, error) {
	coupon.Code = strings.ToUpper(strings.TrimSpace(coupon.Code))
	if coupon.Code == "" || coupon.DiscountValue < 1 || coupon.ExpiresAt.IsZero() {
		return nil, store.ErrValidation
	}
	if coupon.DiscountKind != domain.CouponKindPercentage && coupon.DiscountKind != domain.CouponKindFixed {
		return nil, store.ErrValidation
	}
	if coupon.DiscountKind == domain.CouponKindPercentage && coupon.DiscountValue > 100 {
		return nil, store.ErrValidation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.couponIDByCode[coupon.Code]; exists {
		return nil, store.ErrConflict
	}
	if coupon.ID == "" {
		coupon.ID = xid.New("cpn")
	}
	if coupon.CreatedAt.IsZero() {
		coupon.CreatedAt = time.Now().UTC()
	}

	s.couponsByID[coupon.ID] = coupon
	s.couponIDByCode[coupon.Code] = coupon.ID
	created := coupon
	return &created, nil
}

func (s *Store) GetCouponByCode(_ context.Context, code string) (*domain.Coupon, error) {
	code = strings.ToUpper(strings.TrimSpace(code))

	s.mu.RLock()
	defer s.mu.RUnlock()

	id, exists := s.couponIDByCode[code]
	if !exists {
		return nil, store.ErrNotFound
	}
	coupon := s.couponsByID[id]
	copyCoupon := coupon
	return &copyCoupon, nil
}

func (s *Store) CreateCustomer(_ context.Context, customer domain.Customer) (*domain.Customer, error) {
	if strings.TrimSpace(customer.Name) == "" {
		return nil, store.ErrValidation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if customer.ID == "" {
		customer.ID = xid.New("cst")
	}
	if customer.CreatedAt.IsZero() {
		customer.CreatedAt = time.Now().UTC()
	}
	s.customersByID[customer.ID] = customer
	created := customer
	return &created, nil
}

func (s *Store) GetCustomerByID(_ context.Context, id string) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	customer, exists := s.customersByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyCustomer := customer
	return &copyCustomer, nil
}

func (s *Store) CreateSupplier(_ context.Context, supplier domain.Supplier) (*domain.Supplier, error) {
	if strings.TrimSpace(supplier.Name) == "" {
		return nil, store.ErrValidation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if supplier.ID == "" {
		supplier.ID = xid.New("sup")
	}
	if supplier.CreatedAt.IsZero() {
		supplier.CreatedAt = time.Now().UTC()
	}
	s.suppliersByID[supplier.ID] = supplier
	created := supplier
	return &created, nil
}

func (s *Store) GetSupplierByID(_ context.Context, id string) (*domain.Supplier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	supplier, exists := s.suppliersByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copySupplier := supplier
	return &copySupplier, nil
}

func (s *Store) ListSuppliers(_ context.Context) ([]domain.Supplier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	suppliers := make([]domain.Supplier, 0, len(s.suppliersByID))
	for _, supplier := range s.suppliersByID {
		suppliers = append(suppliers, supplier)
	}
	slices.SortFunc(suppliers, func(a, b domain.Supplier) int {
		return cmpString(a.Name, b.Name)
	})
	return suppliers, nil
}

// HasProductSupplier reports whether the supplier is recorded as a source
// for the product. Used by tests to observe the idempotent source set.
func (s *Store) HasProductSupplier(productID string, supplierID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	set, ok := s.productSuppliers[productID]
	if !ok {
		return false
	}
	_, ok = set[supplierID]
	return ok
}

// CouponCountForCustomer reports how many coupons are bound to the customer.
// Used by tests to observe milestone and welcome coupon issuance.
func (s *Store) CouponCountForCustomer(customerID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, coupon := range s.couponsByID {
		if coupon.CustomerID == customerID {
			count++
		}
	}
	return count
}

func couponDiscount(coupon domain.Coupon, subtotalCents int64) int64 {
	var discount int64
	switch coupon.DiscountKind {
	case domain.CouponKindPercentage:
		discount = int64(math.Round(float64(subtotalCents) * float64(coupon.DiscountValue) / 100))
	case domain.CouponKindFixed:
		discount = coupon.DiscountValue
	}
	if discount > subtotalCents {
		discount = subtotalCents
	}
	if discount < 0 {
		discount = 0
	}
	return discount
}

func cmpString(a string, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
