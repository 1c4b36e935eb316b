package reports

import (
	"sort"

	"adisyon-backend/internal/database"
	"adisyon-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

var paymentMethodNames = map[models.PaymentMethod]string{
	models.PaymentMethodCash:       "Nakit",
	models.PaymentMethodCreditCard: "Kredi Kartı",
	models.PaymentMethodDebitCard:  "Banka Kartı",
	models.PaymentMethodOther:      "Diğer",
}

type topProduct struct {
	ProductName  string `json:"product_name"`
	CategoryName string `json:"category_name"`
	Quantity     int    `json:"quantity"`
	Revenue      string `json:"revenue"`

	revenue decimal.Decimal
}

// GET /api/reports/dashboard
// Günün özet kartları: brüt satış, tahsilat, en çok satanlar, kritik stok,
// iptal ve fire tutarları, saatlik satış dağılımı.
func DashboardHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		r := rangeFromPreset("today", "", "")

		var paidOrders []models.Order
		if err := database.DB.
			Where("status = ? AND closed_at >= ? AND closed_at < ?", models.OrderStatusPaid, r.From, r.To).
			Find(&paidOrders).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Rapor verisi getirilemedi")
		}

		grossSales := decimal.Zero
		orderIDs := make([]uint, 0, len(paidOrders))
		hourly := make(map[int]decimal.Decimal)
		totalMinutes, durationCount := 0.0, 0
		for _, o := range paidOrders {
			grossSales = grossSales.Add(o.Total)
			orderIDs = append(orderIDs, o.ID)
			if o.ClosedAt != nil {
				h := o.ClosedAt.Local().Hour()
				hourly[h] = hourly[h].Add(o.Total)
				totalMinutes += o.ClosedAt.Sub(o.OpenedAt).Minutes()
				durationCount++
			}
		}

		var payments []models.Payment
		database.DB.Where("paid_at >= ? AND paid_at < ?", r.From, r.To).Find(&payments)
		netCollected := decimal.Zero
		for _, p := range payments {
			netCollected = netCollected.Add(p.Amount)
		}

		top := topProductsFor(orderIDs, 5)

		// Bugün eklenen kalemlerden iptal ve fire kayıpları
		var todayItems []models.OrderItem
		database.DB.Where("added_at >= ? AND added_at < ?", r.From, r.To).Find(&todayItems)
		cancelledAmount, wasteAmount := decimal.Zero, decimal.Zero
		for _, oi := range todayItems {
			if oi.CancelledQuantity > 0 {
				cancelledAmount = cancelledAmount.Add(oi.UnitPrice.Mul(decimal.NewFromInt(int64(oi.CancelledQuantity))))
			}
			if oi.IsWasted != nil && *oi.IsWasted {
				wasteAmount = wasteAmount.Add(oi.LineTotal)
			}
		}

		var openCount int64
		database.DB.Model(&models.Order{}).Where("status = ?", models.OrderStatusOpen).Count(&openCount)

		var criticalItems []models.MenuItem
		database.DB.Where("is_deleted = ? AND track_stock = ?", false, true).Find(&criticalItems)
		type criticalRow struct {
			ProductName       string `json:"product_name"`
			CurrentStock      int    `json:"current_stock"`
			CriticalThreshold int    `json:"critical_threshold"`
		}
		critical := make([]criticalRow, 0)
		for i := range criticalItems {
			if criticalItems[i].IsCriticalStock() {
				critical = append(critical, criticalRow{
					ProductName:       criticalItems[i].Name,
					CurrentStock:      criticalItems[i].StockQuantity,
					CriticalThreshold: criticalItems[i].CriticalThreshold,
				})
			}
		}
		criticalCount := len(critical)
		if len(critical) > 5 {
			critical = critical[:5]
		}

		type hourlyRow struct {
			Hour   int    `json:"hour"`
			Amount string `json:"amount"`
		}
		hourlyOut := make([]hourlyRow, 0, len(hourly))
		for h, amount := range hourly {
			hourlyOut = append(hourlyOut, hourlyRow{Hour: h, Amount: amount.StringFixed(2)})
		}
		sort.Slice(hourlyOut, func(i, j int) bool { return hourlyOut[i].Hour < hourlyOut[j].Hour })

		topName := "—"
		if len(top) > 0 {
			topName = top[0].ProductName
		}
		avgDuration := 0.0
		if durationCount > 0 {
			avgDuration = totalMinutes / float64(durationCount)
		}

		return c.JSON(fiber.Map{
			"today_gross_sales":       grossSales.StringFixed(2),
			"today_net_collected":     netCollected.StringFixed(2),
			"open_order_count":        openCount,
			"top_selling_item_today":  topName,
			"top_products_today":      top,
			"critical_stock_count":    criticalCount,
			"critical_stock_items":    critical,
			"today_cancelled_amount":  cancelledAmount.StringFixed(2),
			"today_waste_amount":      wasteAmount.StringFixed(2),
			"avg_order_duration_mins": avgDuration,
			"hourly_sales":            hourlyOut,
		})
	}
}

// topProductsFor: verilen adisyonlardaki aktif kalemleri ürün bazında toplar.
func topProductsFor(orderIDs []uint, limit int) []topProduct {
	if len(orderIDs) == 0 {
		return []topProduct{}
	}

	var items []models.OrderItem
	database.DB.Preload("MenuItem").Preload("MenuItem.Category").
		Where("order_id IN ? AND status <> ?", orderIDs, models.OrderItemStatusCancelled).
		Find(&items)

	byProduct := make(map[uint]*topProduct)
	for i := range items {
		oi := &items[i]
		tp, ok := byProduct[oi.MenuItemID]
		if !ok {
			tp = &topProduct{
				ProductName:  oi.MenuItem.Name,
				CategoryName: oi.MenuItem.Category.Name,
			}
			byProduct[oi.MenuItemID] = tp
		}
		tp.Quantity += oi.ActiveQuantity()
		tp.revenue = tp.revenue.Add(oi.LineTotal)
	}

	out := make([]topProduct, 0, len(byProduct))
	for _, tp := range byProduct {
		tp.Revenue = tp.revenue.StringFixed(2)
		out = append(out, *tp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Quantity > out[j].Quantity })
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// GET /api/reports/sales?preset=today|yesterday|week|month|custom&from=&to=&include_cancelled=
func SalesReportHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		r := rangeFromPreset(c.Query("preset", "today"), c.Query("from"), c.Query("to"))
		includeCancelled := c.Query("include_cancelled") == "true"

		statuses := []models.OrderStatus{models.OrderStatusPaid}
		if includeCancelled {
			statuses = append(statuses, models.OrderStatusCancelled)
		}

		var orders []models.Order
		if err := database.DB.
			Where("status IN ? AND closed_at >= ? AND closed_at < ?", statuses, r.From, r.To).
			Find(&orders).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Rapor verisi getirilemedi")
		}

		grossSales := decimal.Zero
		cancelledCount := 0
		orderIDs := make([]uint, 0, len(orders))
		for _, o := range orders {
			grossSales = grossSales.Add(o.Total)
			orderIDs = append(orderIDs, o.ID)
			if o.Status == models.OrderStatusCancelled {
				cancelledCount++
			}
		}

		type methodAgg struct {
			total decimal.Decimal
			count int
		}
		byMethod := make(map[models.PaymentMethod]*methodAgg)
		netCollected := decimal.Zero
		if len(orderIDs) > 0 {
			var payments []models.Payment
			database.DB.Where("order_id IN ?", orderIDs).Find(&payments)
			for _, p := range payments {
				agg, ok := byMethod[p.Method]
				if !ok {
					agg = &methodAgg{}
					byMethod[p.Method] = agg
				}
				agg.total = agg.total.Add(p.Amount)
				agg.count++
				netCollected = netCollected.Add(p.Amount)
			}
		}

		type methodRow struct {
			MethodName       string  `json:"method_name"`
			TotalAmount      string  `json:"total_amount"`
			TransactionCount int     `json:"transaction_count"`
			Percentage       float64 `json:"percentage"`
		}
		breakdown := make([]methodRow, 0, len(byMethod))
		for method, agg := range byMethod {
			pct := 0.0
			if netCollected.IsPositive() {
				pct, _ = agg.total.Div(netCollected).Mul(decimal.NewFromInt(100)).Round(1).Float64()
			}
			breakdown = append(breakdown, methodRow{
				MethodName:       paymentMethodNames[method],
				TotalAmount:      agg.total.StringFixed(2),
				TransactionCount: agg.count,
				Percentage:       pct,
			})
		}
		sort.Slice(breakdown, func(i, j int) bool { return breakdown[i].MethodName < breakdown[j].MethodName })

		top := topProductsFor(orderIDs, 10)

		// Kategori bazlı ciro
		catRevenue := make(map[string]decimal.Decimal)
		catTotal := decimal.Zero
		if len(orderIDs) > 0 {
			var items []models.OrderItem
			database.DB.Preload("MenuItem").Preload("MenuItem.Category").
				Where("order_id IN ? AND status <> ?", orderIDs, models.OrderItemStatusCancelled).
				Find(&items)
			for i := range items {
				name := items[i].MenuItem.Category.Name
				if name == "" {
					name = "Kategorisiz"
				}
				catRevenue[name] = catRevenue[name].Add(items[i].LineTotal)
				catTotal = catTotal.Add(items[i].LineTotal)
			}
		}
		type categoryRow struct {
			CategoryName string  `json:"category_name"`
			Revenue      string  `json:"revenue"`
			Percentage   float64 `json:"percentage"`

			revenue decimal.Decimal
		}
		categories := make([]categoryRow, 0, len(catRevenue))
		for name, rev := range catRevenue {
			pct := 0.0
			if catTotal.IsPositive() {
				pct, _ = rev.Div(catTotal).Mul(decimal.NewFromInt(100)).Round(1).Float64()
			}
			categories = append(categories, categoryRow{CategoryName: name, Revenue: rev.StringFixed(2), Percentage: pct, revenue: rev})
		}
		sort.Slice(categories, func(i, j int) bool { return categories[i].revenue.GreaterThan(categories[j].revenue) })

		return c.JSON(fiber.Map{
			"filter":                r,
			"gross_sales":           grossSales.StringFixed(2),
			"net_collected":         netCollected.StringFixed(2),
			"total_order_count":     len(orders),
			"cancelled_order_count": cancelledCount,
			"payment_breakdown":     breakdown,
			"top_products":          top,
			"category_sales":        categories,
		})
	}
}
