package reports

import (
	"sort"
	"time"

	"adisyon-backend/internal/database"
	"adisyon-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

type wasteItem struct {
	ProductName string    `json:"product_name"`
	Quantity    int       `json:"quantity"`
	UnitPrice   string    `json:"unit_price"`
	CostPrice   string    `json:"cost_price,omitempty"`
	TotalLoss   string    `json:"total_loss"`
	Date        time.Time `json:"date"`
	Note        string    `json:"note,omitempty"`

	totalLoss decimal.Decimal
}

// GET /api/reports/waste
// İki kaynaktan fire toplar: adisyon kaynaklı zayi kalemleri (IsWasted=true)
// ve stok hareketlerinden Çıkış/Düzeltme satırları. Stoka iade edilen iptal
// tutarı ayrı raporlanır; kayıp değildir.
func WasteReportHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		r := rangeFromPreset(c.Query("preset", "today"), c.Query("from"), c.Query("to"))

		var wastedItems []models.OrderItem
		if err := database.DB.Preload("MenuItem").
			Where("is_wasted = ? AND added_at >= ? AND added_at < ?", true, r.From, r.To).
			Find(&wastedItems).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Rapor verisi getirilemedi")
		}

		orderWastes := make([]wasteItem, 0, len(wastedItems))
		orderWasteTotal := decimal.Zero
		for i := range wastedItems {
			oi := &wastedItems[i]
			w := wasteItem{
				ProductName: oi.MenuItem.Name,
				Quantity:    oi.ActiveQuantity(),
				UnitPrice:   oi.UnitPrice.StringFixed(2),
				TotalLoss:   oi.LineTotal.StringFixed(2),
				Date:        oi.AddedAt,
				totalLoss:   oi.LineTotal,
			}
			if oi.MenuItem.CostPrice != nil {
				w.CostPrice = oi.MenuItem.CostPrice.StringFixed(2)
			}
			if oi.CancelReason != nil {
				w.Note = *oi.CancelReason
			}
			orderWastes = append(orderWastes, w)
			orderWasteTotal = orderWasteTotal.Add(oi.LineTotal)
		}

		var logs []models.StockLog
		database.DB.Preload("MenuItem").
			Where("movement_type IN ? AND created_at >= ? AND created_at < ?",
				[]string{models.MovementOut, models.MovementCorrection}, r.From, r.To).
			Find(&logs)

		stockWastes := make([]wasteItem, 0, len(logs))
		stockWasteTotal := decimal.Zero
		for i := range logs {
			l := &logs[i]
			qty := l.QuantityChange
			if qty < 0 {
				qty = -qty
			}
			loss := l.MenuItem.Price.Mul(decimal.NewFromInt(int64(qty)))
			w := wasteItem{
				ProductName: l.MenuItem.Name,
				Quantity:    qty,
				UnitPrice:   l.MenuItem.Price.StringFixed(2),
				TotalLoss:   loss.StringFixed(2),
				Date:        l.CreatedAt,
				totalLoss:   loss,
			}
			if l.MenuItem.CostPrice != nil {
				w.CostPrice = l.MenuItem.CostPrice.StringFixed(2)
			}
			if l.Note != nil {
				w.Note = *l.Note
			}
			stockWastes = append(stockWastes, w)
			stockWasteTotal = stockWasteTotal.Add(loss)
		}

		sort.Slice(orderWastes, func(i, j int) bool { return orderWastes[i].Date.After(orderWastes[j].Date) })
		sort.Slice(stockWastes, func(i, j int) bool { return stockWastes[i].Date.After(stockWastes[j].Date) })

		// Stoka iade edilen iptal tutarı
		var refundedItems []models.OrderItem
		database.DB.
			Where("is_wasted = ? AND cancelled_quantity > 0 AND added_at >= ? AND added_at < ?", false, r.From, r.To).
			Find(&refundedItems)
		refunded := decimal.Zero
		for _, oi := range refundedItems {
			refunded = refunded.Add(oi.UnitPrice.Mul(decimal.NewFromInt(int64(oi.CancelledQuantity))))
		}

		type topWasteRow struct {
			ProductName   string `json:"product_name"`
			TotalQuantity int    `json:"total_quantity"`
			TotalLoss     string `json:"total_loss"`

			totalLoss decimal.Decimal
		}
		byProduct := make(map[string]*topWasteRow)
		totalCount := 0
		for _, w := range append(append([]wasteItem{}, orderWastes...), stockWastes...) {
			row, ok := byProduct[w.ProductName]
			if !ok {
				row = &topWasteRow{ProductName: w.ProductName}
				byProduct[w.ProductName] = row
			}
			row.TotalQuantity += w.Quantity
			row.totalLoss = row.totalLoss.Add(w.totalLoss)
			totalCount += w.Quantity
		}
		topWaste := make([]topWasteRow, 0, len(byProduct))
		for _, row := range byProduct {
			row.TotalLoss = row.totalLoss.StringFixed(2)
			topWaste = append(topWaste, *row)
		}
		sort.Slice(topWaste, func(i, j int) bool { return topWaste[i].totalLoss.GreaterThan(topWaste[j].totalLoss) })
		if len(topWaste) > 10 {
			topWaste = topWaste[:10]
		}

		return c.JSON(fiber.Map{
			"filter":                  r,
			"order_wastes":            orderWastes,
			"stock_log_wastes":        stockWastes,
			"order_waste_total":       orderWasteTotal.StringFixed(2),
			"stock_log_waste_total":   stockWasteTotal.StringFixed(2),
			"total_waste_loss":        orderWasteTotal.Add(stockWasteTotal).StringFixed(2),
			"total_waste_count":       totalCount,
			"top_waste_products":      topWaste,
			"total_refunded_to_stock": refunded.StringFixed(2),
		})
	}
}

// GET /api/reports/stock?preset=month&time_base=orderitem|stocklog&category=
// Stok takipli ürünlerin dönem tüketimi ve günlük ortalaması. time_base
// "stocklog" seçilirse tüketim stok hareketlerinden, aksi halde sipariş
// kalemlerinden hesaplanır.
func StockReportHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		r := rangeFromPreset(c.Query("preset", "month"), c.Query("from"), c.Query("to"))
		timeBase := c.Query("time_base", "orderitem")
		categoryFilter := c.Query("category")
		days := r.Days()

		var items []models.MenuItem
		if err := database.DB.Preload("Category").
			Where("is_deleted = ? AND track_stock = ?", false, true).
			Find(&items).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Rapor verisi getirilemedi")
		}

		consumed := make(map[uint]int)
		if timeBase == "stocklog" {
			var logs []models.StockLog
			database.DB.
				Where("movement_type IN ? AND created_at >= ? AND created_at < ?",
					[]string{models.MovementOut, models.MovementCorrection}, r.From, r.To).
				Find(&logs)
			for _, l := range logs {
				qty := l.QuantityChange
				if qty < 0 {
					qty = -qty
				}
				consumed[l.MenuItemID] += qty
			}
		} else {
			var orderItems []models.OrderItem
			database.DB.
				Where("added_at >= ? AND added_at < ? AND status <> ?", r.From, r.To, models.OrderItemStatusCancelled).
				Find(&orderItems)
			for _, oi := range orderItems {
				consumed[oi.MenuItemID] += oi.ActiveQuantity()
			}
		}

		type consumptionRow struct {
			MenuItemID          uint    `json:"menu_item_id"`
			ProductName         string  `json:"product_name"`
			CategoryName        string  `json:"category_name"`
			CurrentStock        int     `json:"current_stock"`
			ConsumedInPeriod    int     `json:"consumed_in_period"`
			DailyAvgConsumption float64 `json:"daily_avg_consumption"`
			CostPrice           string  `json:"cost_price,omitempty"`
		}
		out := make([]consumptionRow, 0, len(items))
		for i := range items {
			m := &items[i]
			catName := m.Category.Name
			if catName == "" {
				catName = "—"
			}
			if categoryFilter != "" && catName != categoryFilter {
				continue
			}
			row := consumptionRow{
				MenuItemID:          m.ID,
				ProductName:         m.Name,
				CategoryName:        catName,
				CurrentStock:        m.StockQuantity,
				ConsumedInPeriod:    consumed[m.ID],
				DailyAvgConsumption: float64(consumed[m.ID]) / float64(days),
			}
			if m.CostPrice != nil {
				row.CostPrice = m.CostPrice.StringFixed(2)
			}
			out = append(out, row)
		}
		sort.Slice(out, func(i, j int) bool { return out[i].ConsumedInPeriod > out[j].ConsumedInPeriod })

		return c.JSON(fiber.Map{
			"filter":    r,
			"time_base": timeBase,
			"products":  out,
		})
	}
}
