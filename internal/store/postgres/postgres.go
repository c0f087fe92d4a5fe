package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"gudangpos/backend/internal/domain"
	"gudangpos/backend/internal/store"
	"gudangpos/backend/internal/xid"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sku, name, cost_cents, price_cents, minimum_stock, active, created_at
		FROM products
		WHERE active = true
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 128)
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.SKU, &p.Name, &p.CostCents, &p.PriceCents, &p.MinimumStock, &p.Active, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.CreatedAt = p.CreatedAt.UTC()
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return products, nil
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product, initialStock int) (*domain.Product, error) {
	if product.SKU == "" || product.Name == "" || product.PriceCents < 1 {
		return nil, store.ErrValidation
	}
	if product.CostCents < 0 || product.MinimumStock < 0 || initialStock < 0 {
		return nil, store.ErrValidation
	}

	if product.ID == "" {
		product.ID = xid.New("prd")
	}
	product.SKU = strings.ToUpper(strings.TrimSpace(product.SKU))
	product.Active = true
	if product.CreatedAt.IsZero() {
		product.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO products (id, sku, name, cost_cents, price_cents, minimum_stock, active, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, product.ID, product.SKU, product.Name, product.CostCents, product.PriceCents, product.MinimumStock, product.Active, product.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}

	if initialStock > 0 {
		_, err = applyAdjustment(ctx, tx, domain.StockAdjustment{
			ProductID:     product.ID,
			Delta:         initialStock,
			ReferenceKind: domain.StockRefManual,
			Actor:         "system",
			Note:          "initial stock",
		})
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	created := product
	return &created, nil
}

func (s *Store) GetProductByID(ctx context.Context, id string) (*domain.Product, error) {
	var p domain.Product
	err := s.db.QueryRowContext(ctx, `
		SELECT id, sku, name, cost_cents, price_cents, minimum_stock, active, created_at
		FROM products
		WHERE id = $1
	`, id).Scan(&p.ID, &p.SKU, &p.Name, &p.CostCents, &p.PriceCents, &p.MinimumStock, &p.Active, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	p.CreatedAt = p.CreatedAt.UTC()
	return &p, nil
}

func (s *Store) GetProductsByIDs(ctx context.Context, ids []string) (map[string]domain.Product, error) {
	result := make(map[string]domain.Product, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sku, name, cost_cents, price_cents, minimum_stock, active, created_at
		FROM products
		WHERE active = true AND id = ANY($1)
	`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.SKU, &p.Name, &p.CostCents, &p.PriceCents, &p.MinimumStock, &p.Active, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.CreatedAt = p.CreatedAt.UTC()
		result[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// applyAdjustment performs one atomic stock mutation inside tx: lazy
// inventory row, conditional quantity update that refuses to go negative,
// and the append-only ledger entry. Returns the post-adjustment quantity.
func applyAdjustment(ctx context.Context, tx *sql.Tx, adj domain.StockAdjustment) (int, error) {
	if adj.ProductID == "" || adj.Delta == 0 {
		return 0, store.ErrValidation
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO inventories (product_id, qty, updated_at)
		VALUES ($1, 0, now())
		ON CONFLICT (product_id) DO NOTHING
	`, adj.ProductID)
	if err != nil {
		return 0, err
	}

	var newQty int
	err = tx.QueryRowContext(ctx, `
		UPDATE inventories
		SET qty = qty + $2, updated_at = now()
		WHERE product_id = $1 AND qty + $2 >= 0
		RETURNING qty
	`, adj.ProductID, adj.Delta).Scan(&newQty)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, store.ErrInsufficientStock
		}
		return 0, err
	}

	direction := domain.StockDirectionIn
	qty := adj.Delta
	if adj.Delta < 0 {
		direction = domain.StockDirectionOut
		qty = -adj.Delta
	}
	if adj.Actor == "" {
		adj.Actor = "system"
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO stock_entries (id, product_id, direction, qty, reference_kind, reference_id, actor, note, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,now())
	`, xid.New("stk"), adj.ProductID, direction, qty, adj.ReferenceKind, nullIfEmpty(adj.ReferenceID), adj.Actor, nullIfEmpty(adj.Note))
	if err != nil {
		return 0, err
	}

	return newQty, nil
}

func (s *Store) AdjustStock(ctx context.Context, adj domain.StockAdjustment) (*domain.StockAdjustResult, error) {
	if adj.ProductID == "" || adj.Delta == 0 {
		return nil, store.ErrValidation
	}
	if adj.ReferenceKind == "" {
		adj.ReferenceKind = domain.StockRefManual
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var productID string
	err = tx.QueryRowContext(ctx, `SELECT id FROM products WHERE id = $1`, adj.ProductID).Scan(&productID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	newQty, err := applyAdjustment(ctx, tx, adj)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	direction := domain.StockDirectionIn
	qty := adj.Delta
	if adj.Delta < 0 {
		direction = domain.StockDirectionOut
		qty = -adj.Delta
	}
	return &domain.StockAdjustResult{
		NewStock: newQty,
		Entry: domain.StockEntry{
			ProductID:     adj.ProductID,
			Direction:     direction,
			Qty:           qty,
			ReferenceKind: adj.ReferenceKind,
			ReferenceID:   adj.ReferenceID,
			Actor:         adj.Actor,
			Note:          adj.Note,
			CreatedAt:     time.Now().UTC(),
		},
	}, nil
}

func (s *Store) GetStockLevels(ctx context.Context, productIDs []string) (map[string]int, error) {
	stockMap := make(map[string]int, len(productIDs))
	if len(productIDs) == 0 {
		return stockMap, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT product_id, qty
		FROM inventories
		WHERE product_id = ANY($1)
	`, productIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var qty int
		if err := rows.Scan(&id, &qty); err != nil {
			return nil, err
		}
		stockMap[id] = qty
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, id := range productIDs {
		if _, ok := stockMap[id]; !ok {
			stockMap[id] = 0
		}
	}

	return stockMap, nil
}

func (s *Store) ListStockEntries(ctx context.Context, q domain.LedgerQuery) ([]domain.StockEntry, error) {
	if q.Limit < 1 {
		q.Limit = 50
	}
	if q.Offset < 0 {
		q.Offset = 0
	}

	conditions := make([]string, 0, 3)
	args := make([]any, 0, 5)
	if q.ProductID != "" {
		args = append(args, q.ProductID)
		conditions = append(conditions, fmt.Sprintf("product_id = $%d", len(args)))
	}
	if q.ReferenceKind != "" {
		args = append(args, q.ReferenceKind)
		conditions = append(conditions, fmt.Sprintf("reference_kind = $%d", len(args)))
	}
	if q.ReferenceID != "" {
		args = append(args, q.ReferenceID)
		conditions = append(conditions, fmt.Sprintf("reference_id = $%d", len(args)))
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}
	args = append(args, q.Limit)
	limitPos := len(args)
	args = append(args, q.Offset)
	offsetPos := len(args)

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, product_id, direction, qty, reference_kind, reference_id, actor, note, created_at
		FROM stock_entries
		%s
		ORDER BY created_at DESC, id DESC
		LIMIT $%d OFFSET $%d
	`, where, limitPos, offsetPos), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]domain.StockEntry, 0, q.Limit)
	for rows.Next() {
		var entry domain.StockEntry
		var refID, note sql.NullString
		if err := rows.Scan(&entry.ID, &entry.ProductID, &entry.Direction, &entry.Qty, &entry.ReferenceKind, &refID, &entry.Actor, &note, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.ReferenceID = refID.String
		entry.Note = note.String
		entry.CreatedAt = entry.CreatedAt.UTC()
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *Store) ListLowStock(ctx context.Context) ([]domain.LowStockItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.sku, p.name, COALESCE(i.qty, 0), p.minimum_stock
		FROM products p
		LEFT JOIN inventories i ON i.product_id = p.id
		WHERE p.active = true AND COALESCE(i.qty, 0) <= p.minimum_stock
		ORDER BY COALESCE(i.qty, 0) ASC, p.name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.LowStockItem, 0, 32)
	for rows.Next() {
		var item domain.LowStockItem
		if err := rows.Scan(&item.ProductID, &item.SKU, &item.Name, &item.CurrentStock, &item.MinimumStock); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CreateSale(ctx context.Context, sale domain.Sale, couponCode string) (*domain.Sale, error) {
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

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	productIDs := uniqueProductIDs(sale.Items)
	productMap := make(map[string]domain.Product, len(productIDs))
	if len(productIDs) > 0 {
		productRows, err := tx.QueryContext(ctx, `
			SELECT id, name, cost_cents, price_cents
			FROM products
			WHERE active = true AND id = ANY($1)
		`, productIDs)
		if err != nil {
			return nil, err
		}
		for productRows.Next() {
			var p domain.Product
			if err := productRows.Scan(&p.ID, &p.Name, &p.CostCents, &p.PriceCents); err != nil {
				_ = productRows.Close()
				return nil, err
			}
			productMap[p.ID] = p
		}
		if err := productRows.Err(); err != nil {
			_ = productRows.Close()
			return nil, err
		}
		_ = productRows.Close()
	}

	subtotalCents := int64(0)
	costTotalCents := int64(0)
	pricedItems := make([]domain.SaleItem, 0, len(sale.Items))
	for _, item := range sale.Items {
		priced := domain.SaleItem{
			ProductID:      item.ProductID,
			ProductName:    item.ProductName,
			Qty:            item.Qty,
			UnitPriceCents: item.UnitPriceCents,
		}
		if item.ProductID != "" {
			product, exists := productMap[item.ProductID]
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
	couponID := ""
	if couponCode != "" {
		code := strings.ToUpper(strings.TrimSpace(couponCode))
		var coupon domain.Coupon
		err := tx.QueryRowContext(ctx, `
			SELECT id, code, discount_kind, discount_value, expires_at, used
			FROM coupons
			WHERE code = $1
			FOR UPDATE
		`, code).Scan(&coupon.ID, &coupon.Code, &coupon.DiscountKind, &coupon.DiscountValue, &coupon.ExpiresAt, &coupon.Used)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			// Unusable coupon: the sale proceeds without a discount.
		case err != nil:
			return nil, err
		case coupon.Used || !coupon.ExpiresAt.After(time.Now().UTC()):
		default:
			discountCents = couponDiscount(coupon, subtotalCents)
			couponID = coupon.ID
			res, err := tx.ExecContext(ctx, `
				UPDATE coupons SET used = true WHERE id = $1 AND used = false
			`, coupon.ID)
			if err != nil {
				return nil, err
			}
			affected, err := res.RowsAffected()
			if err != nil {
				return nil, err
			}
			if affected == 0 {
				return nil, store.ErrConflict
			}
		}
	}

	discountedCents := subtotalCents - discountCents
	taxCents := int64(math.Round(float64(discountedCents) * float64(domain.TaxRatePercent) / 100))
	grandTotalCents := discountedCents + taxCents

	// Points accrue only when the sale carries a customer reference.
	pointsEarned := 0
	if sale.CustomerID != "" {
		pointsEarned = int(discountedCents / domain.LoyaltyPointDivisorCents)
	}

	var seq int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO document_sequences (series, value)
		VALUES ($1, 1)
		ON CONFLICT (series) DO UPDATE SET value = document_sequences.value + 1
		RETURNING value
	`, domain.SeriesInvoice).Scan(&seq)
	if err != nil {
		return nil, err
	}

	sale.InvoiceNumber = store.FormatDocumentNumber(domain.SeriesInvoice, seq)
	sale.Items = pricedItems
	sale.SubtotalCents = subtotalCents
	sale.DiscountCents = discountCents
	sale.TaxCents = taxCents
	sale.GrandTotalCents = grandTotalCents
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

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sales (
			id, invoice_number, customer_id, customer_name, subtotal_cents, discount_cents,
			tax_cents, grand_total_cents, cost_total_cents, profit_cents, payment_method,
			coupon_id, points_earned, created_by, created_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
	`, sale.ID, sale.InvoiceNumber, nullIfEmpty(sale.CustomerID), sale.CustomerName,
		sale.SubtotalCents, sale.DiscountCents, sale.TaxCents, sale.GrandTotalCents,
		sale.CostTotalCents, sale.ProfitCents, sale.PaymentMethod, nullIfEmpty(sale.CouponID),
		sale.PointsEarned, sale.CreatedBy, sale.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}

	for _, item := range sale.Items {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO sale_items (sale_id, product_id, product_name, qty, unit_price_cents, cost_cents, total_cents)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
		`, sale.ID, nullIfEmpty(item.ProductID), item.ProductName, item.Qty, item.UnitPriceCents, item.CostCents, item.TotalCents)
		if err != nil {
			return nil, err
		}
	}

	for _, item := range sale.Items {
		if item.ProductID == "" {
			continue
		}
		_, err := applyAdjustment(ctx, tx, domain.StockAdjustment{
			ProductID:     item.ProductID,
			Delta:         -item.Qty,
			ReferenceKind: domain.StockRefSale,
			ReferenceID:   sale.ID,
			Actor:         sale.CreatedBy,
		})
		if err != nil {
			return nil, err
		}
	}

	if sale.CustomerID != "" {
		var points, purchases int
		err := tx.QueryRowContext(ctx, `
			SELECT loyalty_points, purchase_count
			FROM customers
			WHERE id = $1
			FOR UPDATE
		`, sale.CustomerID).Scan(&points, &purchases)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, store.ErrNotFound
			}
			return nil, err
		}

		points += pointsEarned
		purchases++
		if points >= domain.LoyaltyMilestonePoints {
			points -= domain.LoyaltyMilestonePoints
			sale.MilestoneAwarded = true
			milestone := domain.Coupon{
				ID:            xid.New("cpn"),
				Code:          xid.Code("LOYAL"),
				DiscountKind:  domain.CouponKindPercentage,
				DiscountValue: domain.MilestoneCouponPercent,
				ExpiresAt:     time.Now().UTC().AddDate(0, 0, domain.MilestoneCouponExpiryDays),
				CustomerID:    sale.CustomerID,
				CreatedAt:     time.Now().UTC(),
			}
			_, err = tx.ExecContext(ctx, `
				INSERT INTO coupons (id, code, discount_kind, discount_value, expires_at, used, customer_id, created_at)
				VALUES ($1,$2,$3,$4,$5,false,$6,$7)
			`, milestone.ID, milestone.Code, milestone.DiscountKind, milestone.DiscountValue,
				milestone.ExpiresAt, milestone.CustomerID, milestone.CreatedAt)
			if err != nil {
				return nil, err
			}
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE customers
			SET loyalty_points = $2, purchase_count = $3
			WHERE id = $1
		`, sale.CustomerID, points, purchases)
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return &sale, nil
}

func (s *Store) GetSaleByID(ctx context.Context, id string) (*domain.Sale, error) {
	sale, err := scanSale(s.db.QueryRowContext(ctx, `
		SELECT id, invoice_number, customer_id, customer_name, subtotal_cents, discount_cents,
			tax_cents, grand_total_cents, cost_total_cents, profit_cents, payment_method,
			coupon_id, points_earned, created_by, created_at
		FROM sales
		WHERE id = $1
	`, id))
	if err != nil {
		return nil, err
	}

	items, err := s.loadSaleItems(ctx, sale.ID)
	if err != nil {
		return nil, err
	}
	sale.Items = items
	return sale, nil
}

func (s *Store) ListSales(ctx context.Context, q domain.SaleQuery) ([]domain.Sale, error) {
	if q.Limit < 1 {
		q.Limit = 50
	}
	if q.Offset < 0 {
		q.Offset = 0
	}

	args := make([]any, 0, 3)
	where := ""
	if q.CustomerID != "" {
		args = append(args, q.CustomerID)
		where = "WHERE customer_id = $1"
	}
	args = append(args, q.Limit)
	limitPos := len(args)
	args = append(args, q.Offset)
	offsetPos := len(args)

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, invoice_number, customer_id, customer_name, subtotal_cents, discount_cents,
			tax_cents, grand_total_cents, cost_total_cents, profit_cents, payment_method,
			coupon_id, points_earned, created_by, created_at
		FROM sales
		%s
		ORDER BY created_at DESC, id DESC
		LIMIT $%d OFFSET $%d
	`, where, limitPos, offsetPos), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sales := make([]domain.Sale, 0, q.Limit)
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		sales = append(sales, *sale)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for idx := range sales {
		items, err := s.loadSaleItems(ctx, sales[idx].ID)
		if err != nil {
			return nil, err
		}
		sales[idx].Items = items
	}
	return sales, nil
}

// UpdateSale replaces the item set, customer name, and payment method of an
// existing sale and recomputes the money columns. Stock, coupon state, and
// loyalty balances are left untouched.
func (s *Store) UpdateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error) {
	if sale.ID == "" || len(sale.Items) == 0 {
		return nil, store.ErrValidation
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var current domain.Sale
	var customerID, couponID sql.NullString
	err = tx.QueryRowContext(ctx, `
		SELECT id, invoice_number, customer_id, coupon_id, points_earned, created_by, created_at
		FROM sales
		WHERE id = $1
		FOR UPDATE
	`, sale.ID).Scan(&current.ID, &current.InvoiceNumber, &customerID, &couponID, &current.PointsEarned, &current.CreatedBy, &current.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	current.CustomerID = customerID.String
	current.CouponID = couponID.String
	current.CreatedAt = current.CreatedAt.UTC()

	productIDs := uniqueProductIDs(sale.Items)
	productMap := make(map[string]domain.Product, len(productIDs))
	if len(productIDs) > 0 {
		productRows, err := tx.QueryContext(ctx, `
			SELECT id, name, cost_cents, price_cents
			FROM products
			WHERE id = ANY($1)
		`, productIDs)
		if err != nil {
			return nil, err
		}
		for productRows.Next() {
			var p domain.Product
			if err := productRows.Scan(&p.ID, &p.Name, &p.CostCents, &p.PriceCents); err != nil {
				_ = productRows.Close()
				return nil, err
			}
			productMap[p.ID] = p
		}
		if err := productRows.Err(); err != nil {
			_ = productRows.Close()
			return nil, err
		}
		_ = productRows.Close()
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
			product, exists := productMap[item.ProductID]
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
		var coupon domain.Coupon
		err := tx.QueryRowContext(ctx, `
			SELECT discount_kind, discount_value FROM coupons WHERE id = $1
		`, current.CouponID).Scan(&coupon.DiscountKind, &coupon.DiscountValue)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		if err == nil {
			discountCents = couponDiscount(coupon, subtotalCents)
		}
	}

	discountedCents := subtotalCents - discountCents
	taxCents := int64(math.Round(float64(discountedCents) * float64(domain.TaxRatePercent) / 100))
	grandTotalCents := discountedCents + taxCents

	_, err = tx.ExecContext(ctx, `
		UPDATE sales
		SET customer_name = $2, payment_method = $3, subtotal_cents = $4, discount_cents = $5,
			tax_cents = $6, grand_total_cents = $7, cost_total_cents = $8, profit_cents = $9
		WHERE id = $1
	`, sale.ID, sale.CustomerName, sale.PaymentMethod, subtotalCents, discountCents,
		taxCents, grandTotalCents, costTotalCents, discountedCents-costTotalCents)
	if err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `DELETE FROM sale_items WHERE sale_id = $1`, sale.ID)
	if err != nil {
		return nil, err
	}
	for _, item := range pricedItems {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO sale_items (sale_id, product_id, product_name, qty, unit_price_cents, cost_cents, total_cents)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
		`, sale.ID, nullIfEmpty(item.ProductID), item.ProductName, item.Qty, item.UnitPriceCents, item.CostCents, item.TotalCents)
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	updated := current
	updated.CustomerName = sale.CustomerName
	updated.PaymentMethod = sale.PaymentMethod
	updated.Items = pricedItems
	updated.SubtotalCents = subtotalCents
	updated.DiscountCents = discountCents
	updated.TaxCents = taxCents
	updated.GrandTotalCents = grandTotalCents
	updated.CostTotalCents = costTotalCents
	updated.ProfitCents = discountedCents - costTotalCents
	return &updated, nil
}

// DeleteSale removes the sale after appending compensating stock-in rows.
// The original stock-out entries stay in the ledger.
func (s *Store) DeleteSale(ctx context.Context, id string, actor string) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var invoiceNumber string
	err = tx.QueryRowContext(ctx, `
		SELECT invoice_number FROM sales WHERE id = $1 FOR UPDATE
	`, id).Scan(&invoiceNumber)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.ErrNotFound
		}
		return err
	}

	itemRows, err := tx.QueryContext(ctx, `
		SELECT product_id, qty FROM sale_items WHERE sale_id = $1
	`, id)
	if err != nil {
		return err
	}
	type saleLine struct {
		productID string
		qty       int
	}
	lines := make([]saleLine, 0, 8)
	for itemRows.Next() {
		var productID sql.NullString
		var qty int
		if err := itemRows.Scan(&productID, &qty); err != nil {
			_ = itemRows.Close()
			return err
		}
		if productID.String != "" {
			lines = append(lines, saleLine{productID: productID.String, qty: qty})
		}
	}
	if err := itemRows.Err(); err != nil {
		_ = itemRows.Close()
		return err
	}
	_ = itemRows.Close()

	for _, line := range lines {
		_, err := applyAdjustment(ctx, tx, domain.StockAdjustment{
			ProductID:     line.productID,
			Delta:         line.qty,
			ReferenceKind: domain.StockRefManual,
			ReferenceID:   id,
			Actor:         actor,
			Note:          "Sale deleted: " + invoiceNumber,
		})
		if err != nil {
			return err
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM sale_items WHERE sale_id = $1`, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM sales WHERE id = $1`, id); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *Store) CreatePurchase(ctx context.Context, purchase domain.Purchase) (*domain.Purchase, error) {
	if purchase.SupplierID == "" || len(purchase.Items) == 0 {
		return nil, store.ErrValidation
	}
	for _, item := range purchase.Items {
		if item.ProductID == "" || item.Qty < 1 || item.CostCents < 1 {
			return nil, store.ErrValidation
		}
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var supplierName string
	err = tx.QueryRowContext(ctx, `
		SELECT name FROM suppliers WHERE id = $1
	`, purchase.SupplierID).Scan(&supplierName)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	productIDs := make([]string, 0, len(purchase.Items))
	for _, item := range purchase.Items {
		productIDs = append(productIDs, item.ProductID)
	}
	existing, err := tx.QueryContext(ctx, `
		SELECT id FROM products WHERE id = ANY($1)
	`, productIDs)
	if err != nil {
		return nil, err
	}
	known := make(map[string]struct{}, len(productIDs))
	for existing.Next() {
		var id string
		if err := existing.Scan(&id); err != nil {
			_ = existing.Close()
			return nil, err
		}
		known[id] = struct{}{}
	}
	if err := existing.Err(); err != nil {
		_ = existing.Close()
		return nil, err
	}
	_ = existing.Close()
	for _, item := range purchase.Items {
		if _, ok := known[item.ProductID]; !ok {
			return nil, store.ErrNotFound
		}
	}

	var seq int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO document_sequences (series, value)
		VALUES ($1, 1)
		ON CONFLICT (series) DO UPDATE SET value = document_sequences.value + 1
		RETURNING value
	`, domain.SeriesPurchaseOrder).Scan(&seq)
	if err != nil {
		return nil, err
	}

	totalCents := int64(0)
	items := make([]domain.PurchaseItem, 0, len(purchase.Items))
	for _, item := range purchase.Items {
		item.TotalCents = item.CostCents * int64(item.Qty)
		totalCents += item.TotalCents
		items = append(items, item)
	}

	purchase.PONumber = store.FormatDocumentNumber(domain.SeriesPurchaseOrder, seq)
	purchase.SupplierName = supplierName
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

	_, err = tx.ExecContext(ctx, `
		INSERT INTO purchases (id, po_number, supplier_id, total_cents, status, notes, created_by, purchase_date, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, purchase.ID, purchase.PONumber, purchase.SupplierID, purchase.TotalCents, purchase.Status,
		nullIfEmpty(purchase.Notes), purchase.CreatedBy, purchase.PurchaseDate, purchase.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}

	for _, item := range purchase.Items {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO purchase_items (purchase_id, product_id, qty, cost_cents, total_cents)
			VALUES ($1,$2,$3,$4,$5)
		`, purchase.ID, item.ProductID, item.Qty, item.CostCents, item.TotalCents)
		if err != nil {
			return nil, err
		}

		_, err = applyAdjustment(ctx, tx, domain.StockAdjustment{
			ProductID:     item.ProductID,
			Delta:         item.Qty,
			ReferenceKind: domain.StockRefPurchase,
			ReferenceID:   purchase.ID,
			Actor:         purchase.CreatedBy,
		})
		if err != nil {
			return nil, err
		}

		// Last purchase price wins.
		_, err = tx.ExecContext(ctx, `
			UPDATE products SET cost_cents = $2 WHERE id = $1
		`, item.ProductID, item.CostCents)
		if err != nil {
			return nil, err
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO product_suppliers (product_id, supplier_id, created_at)
			VALUES ($1,$2,now())
			ON CONFLICT (product_id, supplier_id) DO NOTHING
		`, item.ProductID, purchase.SupplierID)
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return &purchase, nil
}

func (s *Store) GetPurchaseByID(ctx context.Context, id string) (*domain.Purchase, error) {
	purchase, err := scanPurchase(s.db.QueryRowContext(ctx, `
		SELECT p.id, p.po_number, p.supplier_id, s.name, p.total_cents, p.status, p.notes,
			p.created_by, p.purchase_date, p.created_at
		FROM purchases p
		JOIN suppliers s ON s.id = p.supplier_id
		WHERE p.id = $1
	`, id))
	if err != nil {
		return nil, err
	}

	items, err := s.loadPurchaseItems(ctx, purchase.ID)
	if err != nil {
		return nil, err
	}
	purchase.Items = items
	return purchase, nil
}

func (s *Store) ListPurchases(ctx context.Context, q domain.PurchaseQuery) ([]domain.Purchase, error) {
	if q.Limit < 1 {
		q.Limit = 50
	}
	if q.Offset < 0 {
		q.Offset = 0
	}

	args := make([]any, 0, 3)
	where := ""
	if q.SupplierID != "" {
		args = append(args, q.SupplierID)
		where = "WHERE p.supplier_id = $1"
	}
	args = append(args, q.Limit)
	limitPos := len(args)
	args = append(args, q.Offset)
	offsetPos := len(args)

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT p.id, p.po_number, p.supplier_id, s.name, p.total_cents, p.status, p.notes,
			p.created_by, p.purchase_date, p.created_at
		FROM purchases p
		JOIN suppliers s ON s.id = p.supplier_id
		%s
		ORDER BY p.created_at DESC, p.id DESC
		LIMIT $%d OFFSET $%d
	`, where, limitPos, offsetPos), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	purchases := make([]domain.Purchase, 0, q.Limit)
	for rows.Next() {
		purchase, err := scanPurchase(rows)
		if err != nil {
			return nil, err
		}
		purchases = append(purchases, *purchase)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for idx := range purchases {
		items, err := s.loadPurchaseItems(ctx, purchases[idx].ID)
		if err != nil {
			return nil, err
		}
		purchases[idx].Items = items
	}
	return purchases, nil
}

// DeletePurchase removes the purchase after appending compensating
// stock-out rows. Removal is clamped so stock never drops below zero;
// the original stock-in entries stay in the ledger.
func (s *Store) DeletePurchase(ctx context.Context, id string, actor string) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var poNumber string
	err = tx.QueryRowContext(ctx, `
		SELECT po_number FROM purchases WHERE id = $1 FOR UPDATE
	`, id).Scan(&poNumber)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.ErrNotFound
		}
		return err
	}

	itemRows, err := tx.QueryContext(ctx, `
		SELECT product_id, qty FROM purchase_items WHERE purchase_id = $1
	`, id)
	if err != nil {
		return err
	}
	type purchaseLine struct {
		productID string
		qty       int
	}
	lines := make([]purchaseLine, 0, 8)
	for itemRows.Next() {
		var line purchaseLine
		if err := itemRows.Scan(&line.productID, &line.qty); err != nil {
			_ = itemRows.Close()
			return err
		}
		lines = append(lines, line)
	}
	if err := itemRows.Err(); err != nil {
		_ = itemRows.Close()
		return err
	}
	_ = itemRows.Close()

	for _, line := range lines {
		var currentQty int
		err := tx.QueryRowContext(ctx, `
			SELECT qty FROM inventories WHERE product_id = $1 FOR UPDATE
		`, line.productID).Scan(&currentQty)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				continue
			}
			return err
		}

		removed := line.qty
		if removed > currentQty {
			removed = currentQty
		}
		if removed < 1 {
			continue
		}

		_, err = applyAdjustment(ctx, tx, domain.StockAdjustment{
			ProductID:     line.productID,
			Delta:         -removed,
			ReferenceKind: domain.StockRefManual,
			ReferenceID:   id,
			Actor:         actor,
			Note:          "Purchase deleted: " + poNumber,
		})
		if err != nil {
			return err
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM purchase_items WHERE purchase_id = $1`, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM purchases WHERE id = $1`, id); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *Store) CreateCoupon(ctx context.Context, coupon domain.Coupon) (*domain.Coupon, error) {
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
	if coupon.ID == "" {
		coupon.ID = xid.New("cpn")
	}
	if coupon.CreatedAt.IsZero() {
		coupon.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO coupons (id, code, discount_kind, discount_value, expires_at, used, customer_id, created_at)
		VALUES ($1,$2,$3,$4,$5,false,$6,$7)
	`, coupon.ID, coupon.Code, coupon.DiscountKind, coupon.DiscountValue, coupon.ExpiresAt,
		nullIfEmpty(coupon.CustomerID), coupon.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}

	created := coupon
	return &created, nil
}

func (s *Store) GetCouponByCode(ctx context.Context, code string) (*domain.Coupon, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	var coupon domain.Coupon
	var customerID sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, code, discount_kind, discount_value, expires_at, used, customer_id, created_at
		FROM coupons
		WHERE code = $1
	`, code).Scan(&coupon.ID, &coupon.Code, &coupon.DiscountKind, &coupon.DiscountValue,
		&coupon.ExpiresAt, &coupon.Used, &customerID, &coupon.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	coupon.CustomerID = customerID.String
	coupon.ExpiresAt = coupon.ExpiresAt.UTC()
	coupon.CreatedAt = coupon.CreatedAt.UTC()
	return &coupon, nil
}

func (s *Store) CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	if strings.TrimSpace(customer.Name) == "" {
		return nil, store.ErrValidation
	}
	if customer.ID == "" {
		customer.ID = xid.New("cst")
	}
	if customer.CreatedAt.IsZero() {
		customer.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO customers (id, name, phone, loyalty_points, purchase_count, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, customer.ID, customer.Name, nullIfEmpty(customer.Phone), customer.LoyaltyPoints,
		customer.PurchaseCount, customer.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}

	created := customer
	return &created, nil
}

func (s *Store) GetCustomerByID(ctx context.Context, id string) (*domain.Customer, error) {
	var customer domain.Customer
	var phone sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, phone, loyalty_points, purchase_count, created_at
		FROM customers
		WHERE id = $1
	`, id).Scan(&customer.ID, &customer.Name, &phone, &customer.LoyaltyPoints, &customer.PurchaseCount, &customer.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	customer.Phone = phone.String
	customer.CreatedAt = customer.CreatedAt.UTC()
	return &customer, nil
}

func (s *Store) CreateSupplier(ctx context.Context, supplier domain.Supplier) (*domain.Supplier, error) {
	if strings.TrimSpace(supplier.Name) == "" {
		return nil, store.ErrValidation
	}
	if supplier.ID == "" {
		supplier.ID = xid.New("sup")
	}
	if supplier.CreatedAt.IsZero() {
		supplier.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO suppliers (id, name, phone, created_at)
		VALUES ($1,$2,$3,$4)
	`, supplier.ID, supplier.Name, nullIfEmpty(supplier.Phone), supplier.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}

	created := supplier
	return &created, nil
}

func (s *Store) GetSupplierByID(ctx context.Context, id string) (*domain.Supplier, error) {
	var supplier domain.Supplier
	var phone sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, phone, created_at
		FROM suppliers
		WHERE id = $1
	`, id).Scan(&supplier.ID, &supplier.Name, &phone, &supplier.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	supplier.Phone = phone.String
	supplier.CreatedAt = supplier.CreatedAt.UTC()
	return &supplier, nil
}

func (s *Store) ListSuppliers(ctx context.Context) ([]domain.Supplier, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, phone, created_at
		FROM suppliers
		ORDER BY name ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	suppliers := make([]domain.Supplier, 0, 32)
	for rows.Next() {
		var supplier domain.Supplier
		var phone sql.NullString
		if err := rows.Scan(&supplier.ID, &supplier.Name, &phone, &supplier.CreatedAt); err != nil {
			return nil, err
		}
		supplier.Phone = phone.String
		supplier.CreatedAt = supplier.CreatedAt.UTC()
		suppliers = append(suppliers, supplier)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return suppliers, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSale(row rowScanner) (*domain.Sale, error) {
	var sale domain.Sale
	var customerID, couponID sql.NullString
	err := row.Scan(&sale.ID, &sale.InvoiceNumber, &customerID, &sale.CustomerName,
		&sale.SubtotalCents, &sale.DiscountCents, &sale.TaxCents, &sale.GrandTotalCents,
		&sale.CostTotalCents, &sale.ProfitCents, &sale.PaymentMethod, &couponID,
		&sale.PointsEarned, &sale.CreatedBy, &sale.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	sale.CustomerID = customerID.String
	sale.CouponID = couponID.String
	sale.CreatedAt = sale.CreatedAt.UTC()
	return &sale, nil
}

func scanPurchase(row rowScanner) (*domain.Purchase, error) {
	var purchase domain.Purchase
	var notes sql.NullString
	err := row.Scan(&purchase.ID, &purchase.PONumber, &purchase.SupplierID, &purchase.SupplierName,
		&purchase.TotalCents, &purchase.Status, &notes, &purchase.CreatedBy,
		&purchase.PurchaseDate, &purchase.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	purchase.Notes = notes.String
	purchase.PurchaseDate = purchase.PurchaseDate.UTC()
	purchase.CreatedAt = purchase.CreatedAt.UTC()
	return &purchase, nil
}

func (s *Store) loadSaleItems(ctx context.Context, saleID string) ([]domain.SaleItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT product_id, product_name, qty, unit_price_cents, cost_cents, total_cents
		FROM sale_items
		WHERE sale_id = $1
		ORDER BY id ASC
	`, saleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.SaleItem, 0, 8)
	for rows.Next() {
		var item domain.SaleItem
		var productID sql.NullString
		if err := rows.Scan(&productID, &item.ProductName, &item.Qty, &item.UnitPriceCents, &item.CostCents, &item.TotalCents); err != nil {
			return nil, err
		}
		item.ProductID = productID.String
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) loadPurchaseItems(ctx context.Context, purchaseID string) ([]domain.PurchaseItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT product_id, qty, cost_cents, total_cents
		FROM purchase_items
		WHERE purchase_id = $1
		ORDER BY id ASC
	`, purchaseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.PurchaseItem, 0, 8)
	for rows.Next() {
		var item domain.PurchaseItem
		if err := rows.Scan(&item.ProductID, &item.Qty, &item.CostCents, &item.TotalCents); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
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

func uniqueProductIDs(items []domain.SaleItem) []string {
	if len(items) == 0 {
		return nil
	}

	set := make(map[string]struct{}, len(items))
	for _, item := range items {
		if item.ProductID == "" {
			continue
		}
		set[item.ProductID] = struct{}{}
	}

	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func nullIfEmpty(val string) any {
	if val == "" {
		return nil
	}
	return val
}
