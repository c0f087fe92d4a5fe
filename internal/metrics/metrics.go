package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SalesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gudangpos_sales_total",
		Help: "Total number of settled sales",
	})

	SaleReversalsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gudangpos_sale_reversals_total",
		Help: "Total number of deleted sales",
	})

	PurchasesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gudangpos_purchases_total",
		Help: "Total number of received purchases",
	})

	PurchaseReversalsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gudangpos_purchase_reversals_total",
		Help: "Total number of deleted purchases",
	})

	StockAdjustmentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gudangpos_stock_adjustments_total",
		Help: "Total number of manual stock adjustments",
	}, []string{"direction"})

	InsufficientStockTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gudangpos_insufficient_stock_total",
		Help: "Total number of operations rejected for insufficient stock",
	})

	CouponRedemptionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gudangpos_coupon_redemptions_total",
		Help: "Total number of coupons redeemed at settlement",
	})

	LoyaltyMilestonesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gudangpos_loyalty_milestones_total",
		Help: "Total number of loyalty milestone coupons issued",
	})
)
