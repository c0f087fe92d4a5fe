package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"gudangpos/backend/internal/cache"
	"gudangpos/backend/internal/domain"
	"gudangpos/backend/internal/service"
	"gudangpos/backend/internal/store/memory"
)

// newTestAPI builds a full API with an in-memory store and real Service so
// handler tests exercise the complete request path.
func newTestAPI(t *testing.T) *API {
	t.Helper()

	repo := memory.NewSeeded()
	svc := service.New(repo, cache.NoopLowStockCache{}, time.Minute)

	return New(svc, "*")
}

func doJSON(t *testing.T, handler http.Handler, method, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()

	var body *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, body)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHandleHealth(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	rec := doJSON(t, handler, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["status"] != "ok" {
		t.Fatalf("expected status ok, got %v", body["status"])
	}
}

func TestHandleProducts_ListAndCreate(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/products", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var listBody struct {
		Products []domain.Product `json:"products"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&listBody); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(listBody.Products) != 6 {
		t.Fatalf("expected 6 seeded products, got %d", len(listBody.Products))
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/products", domain.ProductCreateRequest{
		SKU:          "SKU-TEH-01",
		Name:         "Teh Celup",
		CostCents:    4200,
		PriceCents:   6500,
		MinimumStock: 10,
		InitialStock: 30,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var createBody struct {
		Product domain.Product `json:"product"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&createBody); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if createBody.Product.ID == "" || createBody.Product.SKU != "SKU-TEH-01" {
		t.Fatalf("unexpected created product: %+v", createBody.Product)
	}
}

func TestHandleProducts_CreateDuplicateSKU(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/products", domain.ProductCreateRequest{
		SKU:        "SKU-MIE-01",
		Name:       "Mie Duplikat",
		PriceCents: 3500,
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate sku, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestHandleStockInOut(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/stock/in", domain.StockRequest{
		ProductID: "prd-seed-mie",
		Qty:       10,
		Notes:     "restock pagi",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var result domain.StockAdjustResult
	if err := json.NewDecoder(rec.Body).Decode(&result); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if result.NewStock != 130 {
		t.Fatalf("expected stock 130 after stock-in, got %d", result.NewStock)
	}
	if result.Entry.Direction != domain.StockDirectionIn || result.Entry.Qty != 10 {
		t.Fatalf("unexpected ledger entry: %+v", result.Entry)
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/stock/out", domain.StockRequest{
		ProductID: "prd-seed-mie",
		Qty:       5,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	if err := json.NewDecoder(rec.Body).Decode(&result); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if result.NewStock != 125 {
		t.Fatalf("expected stock 125 after stock-out, got %d", result.NewStock)
	}
}

func TestHandleStockOut_InsufficientStock(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/stock/out", domain.StockRequest{
		ProductID: "prd-seed-sabun",
		Qty:       999,
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestHandleStockHistory_FilterByProduct(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/stock/history?product_id=prd-seed-kopi", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var body struct {
		Entries []domain.StockEntry `json:"entries"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body.Entries) != 1 {
		t.Fatalf("expected 1 seeded entry, got %d", len(body.Entries))
	}
	if body.Entries[0].ProductID != "prd-seed-kopi" {
		t.Fatalf("unexpected entry product: %s", body.Entries[0].ProductID)
	}
}

func TestHandleLowStock(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/stock/low", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var body struct {
		Report domain.LowStockReport `json:"report"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body.Report.Items) != 1 {
		t.Fatalf("expected 1 low stock item, got %d", len(body.Report.Items))
	}
	if body.Report.Items[0].SKU != "SKU-SABUN-01" {
		t.Fatalf("expected SKU-SABUN-01 low on stock, got %s", body.Report.Items[0].SKU)
	}
}

func TestHandleSales_CreateAndDelete(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/sales", domain.SaleCreateRequest{
		CustomerName:  "Walk-in",
		PaymentMethod: "cash",
		Items: []domain.SaleItemRequest{
			{ProductID: "prd-seed-mie", Qty: 2},
		},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var createBody struct {
		Sale domain.Sale `json:"sale"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&createBody); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	sale := createBody.Sale
	if !strings.HasPrefix(sale.InvoiceNumber, "INV-") {
		t.Fatalf("unexpected invoice number %q", sale.InvoiceNumber)
	}
	if sale.SubtotalCents != 7000 || sale.TaxCents != 700 || sale.GrandTotalCents != 7700 {
		t.Fatalf("unexpected totals: %+v", sale)
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/sales/"+sale.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodDelete, "/api/v1/sales/"+sale.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/sales/"+sale.ID, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", rec.Code)
	}
}

func TestHandleSales_CouponApplied(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/sales", domain.SaleCreateRequest{
		CustomerID: "cst-seed-budi",
		CouponCode: "WELCOME10",
		Items: []domain.SaleItemRequest{
			{ProductID: "prd-seed-mie", Qty: 2},
		},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var body struct {
		Sale domain.Sale `json:"sale"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Sale.DiscountCents != 700 {
		t.Fatalf("expected 10%% discount of 700, got %d", body.Sale.DiscountCents)
	}
	if body.Sale.GrandTotalCents != 6930 {
		t.Fatalf("expected grand total 6930, got %d", body.Sale.GrandTotalCents)
	}
	if body.Sale.PointsEarned != 63 {
		t.Fatalf("expected 63 points earned, got %d", body.Sale.PointsEarned)
	}
}

func TestHandleSaleActions_UpdateRecomputesTotals(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/sales", domain.SaleCreateRequest{
		Items: []domain.SaleItemRequest{
			{ProductID: "prd-seed-mie", Qty: 2},
		},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var createBody struct {
		Sale domain.Sale `json:"sale"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&createBody); err != nil {
		t.Fatalf("decode body: %v", err)
	}

	name := "Ibu Ani"
	rec = doJSON(t, handler, http.MethodPatch, "/api/v1/sales/"+createBody.Sale.ID, domain.SaleUpdateRequest{
		CustomerName: &name,
		Items: []domain.SaleItemRequest{
			{ProductID: "prd-seed-mie", Qty: 3},
		},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var updateBody struct {
		Sale domain.Sale `json:"sale"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&updateBody); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if updateBody.Sale.CustomerName != "Ibu Ani" {
		t.Fatalf("expected customer name updated, got %q", updateBody.Sale.CustomerName)
	}
	if updateBody.Sale.SubtotalCents != 10500 || updateBody.Sale.GrandTotalCents != 11550 {
		t.Fatalf("unexpected recomputed totals: %+v", updateBody.Sale)
	}

	// An amendment must not touch the ledger: stock stays at the
	// originally settled quantity.
	rec = doJSON(t, handler, http.MethodGet, "/api/v1/stock/levels?ids=prd-seed-mie", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var levels struct {
		Levels map[string]int `json:"levels"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&levels); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if levels.Levels["prd-seed-mie"] != 118 {
		t.Fatalf("expected stock 118 after update, got %d", levels.Levels["prd-seed-mie"])
	}
}

func TestHandleSaleActions_NotFound(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/sales/sale-missing", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestHandlePurchases_CreateAndDelete(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/purchases", domain.PurchaseCreateRequest{
		SupplierID: "sup-seed-makmur",
		Items: []domain.PurchaseItemRequest{
			{ProductID: "prd-seed-gula", Qty: 20, CostPrice: 14900},
		},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var createBody struct {
		Purchase domain.Purchase `json:"purchase"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&createBody); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if !strings.HasPrefix(createBody.Purchase.PONumber, "PO-") {
		t.Fatalf("unexpected purchase order number %q", createBody.Purchase.PONumber)
	}

	rec = doJSON(t, handler, http.MethodDelete, "/api/v1/purchases/"+createBody.Purchase.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestHandleCouponValidate(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/coupons/validate?code=WELCOME10", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var body struct {
		Coupon domain.CouponValidateResponse `json:"coupon"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Coupon.Code != "WELCOME10" || body.Coupon.DiscountValue != 10 {
		t.Fatalf("unexpected coupon: %+v", body.Coupon)
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/coupons/validate?code=NOPE", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown coupon, got %d", rec.Code)
	}
}

func TestHandleCustomers_RegisterIssuesWelcomeCoupon(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/customers", domain.CustomerCreateRequest{
		Name:  "Dewi Lestari",
		Phone: "0812-0000-0099",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var registration domain.CustomerRegistration
	if err := json.NewDecoder(rec.Body).Decode(&registration); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if registration.Customer.ID == "" {
		t.Fatalf("expected customer id, got %+v", registration.Customer)
	}
	if registration.Coupon == nil {
		t.Fatal("expected welcome coupon")
	}
	if !strings.HasPrefix(registration.Coupon.Code, "WELCOME") {
		t.Fatalf("unexpected coupon code %q", registration.Coupon.Code)
	}
}

func TestHandleSuppliers_Create(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/suppliers", domain.SupplierCreateRequest{
		Name:  "UD Berkah",
		Phone: "021-555-0909",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/suppliers", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body struct {
		Suppliers []domain.Supplier `json:"suppliers"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body.Suppliers) != 3 {
		t.Fatalf("expected 3 suppliers, got %d", len(body.Suppliers))
	}
}

func TestActorHeaderPropagation(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	payload, err := json.Marshal(domain.StockRequest{ProductID: "prd-seed-susu", Qty: 4})
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/stock/in", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Actor", "siti")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var result domain.StockAdjustResult
	if err := json.NewDecoder(rec.Body).Decode(&result); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if result.Entry.Actor != "siti" {
		t.Fatalf("expected actor siti on ledger entry, got %q", result.Entry.Actor)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	rec := doJSON(t, handler, http.MethodDelete, "/api/v1/products", nil)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestMiddleware_OptionsPreflight(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/products", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 for preflight, got %d", rec.Code)
	}
	if origin := rec.Header().Get("Access-Control-Allow-Origin"); origin != "*" {
		t.Fatalf("expected wildcard origin, got %q", origin)
	}
}

func TestSequenceNumbersAreContiguous(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	for i := 1; i <= 3; i++ {
		rec := doJSON(t, handler, http.MethodPost, "/api/v1/sales", domain.SaleCreateRequest{
			Items: []domain.SaleItemRequest{
				{ProductID: "prd-seed-kopi", Qty: 1},
			},
		})
		if rec.Code != http.StatusCreated {
			t.Fatalf("sale %d: expected 201, got %d (body: %s)", i, rec.Code, rec.Body.String())
		}

		var body struct {
			Sale domain.Sale `json:"sale"`
		}
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		want := fmt.Sprintf("INV-%06d", i)
		if body.Sale.InvoiceNumber != want {
			t.Fatalf("expected invoice %s, got %s", want, body.Sale.InvoiceNumber)
		}
	}
}
