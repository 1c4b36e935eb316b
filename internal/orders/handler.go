package orders

import (
	"fmt"
	"strings"
	"time"

	"adisyon-backend/internal/audit"
	"adisyon-backend/internal/auth"
	"adisyon-backend/internal/database"
	"adisyon-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type OrderLineRequest struct {
	MenuItemID uint   `json:"menu_item_id"`
	Quantity   int    `json:"quantity"`
	Note       string `json:"note"`
}

type OrderCreateRequest struct {
	TableID uint               `json:"table_id"`
	Note    string             `json:"note"`
	Items   []OrderLineRequest `json:"items"`
}

type OrderItemResponse struct {
	ID                uint    `json:"id"`
	MenuItemID        uint    `json:"menu_item_id"`
	MenuItemName      string  `json:"menu_item_name"`
	Quantity          int     `json:"quantity"`
	PaidQuantity      int     `json:"paid_quantity"`
	CancelledQuantity int     `json:"cancelled_quantity"`
	UnitPrice         string  `json:"unit_price"`
	LineTotal         string  `json:"line_total"`
	Note              *string `json:"note"`
	Status            string  `json:"status"`
	CancelReason      *string `json:"cancel_reason"`
	IsWasted          *bool   `json:"is_wasted"`
	AddedAt           string  `json:"added_at"`
}

type PaymentResponse struct {
	ID          uint   `json:"id"`
	Method      int    `json:"method"`
	Amount      string `json:"amount"`
	ChangeGiven string `json:"change_given"`
	Note        string `json:"note"`
	PaidAt      string `json:"paid_at"`
}

type OrderResponse struct {
	ID        uint                `json:"id"`
	TableID   uint                `json:"table_id"`
	TableName string              `json:"table_name"`
	Status    string              `json:"status"`
	OpenedBy  string              `json:"opened_by"`
	Note      *string             `json:"note"`
	Total     string              `json:"total"`
	TotalPaid string              `json:"total_paid"`
	OpenedAt  string              `json:"opened_at"`
	ClosedAt  *string             `json:"closed_at"`
	Items     []OrderItemResponse `json:"items"`
	Payments  []PaymentResponse   `json:"payments"`
}

func toOrderResponse(o models.Order) OrderResponse {
	resp := OrderResponse{
		ID:       o.ID,
		TableID:  o.TableID,
		Status:   string(o.Status),
		OpenedBy: o.OpenedBy,
		Note:     o.Note,
		Total:    o.Total.StringFixed(2),
		OpenedAt: o.OpenedAt.Format("2006-01-02 15:04:05"),
	}
	resp.TableName = o.Table.Name
	if o.ClosedAt != nil {
		s := o.ClosedAt.Format("2006-01-02 15:04:05")
		resp.ClosedAt = &s
	}

	totalPaid := decimal.Zero
	for _, p := range o.Payments {
		totalPaid = totalPaid.Add(p.Amount)
		resp.Payments = append(resp.Payments, PaymentResponse{
			ID:          p.ID,
			Method:      int(p.Method),
			Amount:      p.Amount.StringFixed(2),
			ChangeGiven: p.ChangeGiven.StringFixed(2),
			Note:        p.Note,
			PaidAt:      p.PaidAt.Format("2006-01-02 15:04:05"),
		})
	}
	resp.TotalPaid = totalPaid.StringFixed(2)

	for _, oi := range o.Items {
		resp.Items = append(resp.Items, OrderItemResponse{
			ID:                oi.ID,
			MenuItemID:        oi.MenuItemID,
			MenuItemName:      oi.MenuItem.Name,
			Quantity:          oi.Quantity,
			PaidQuantity:      oi.PaidQuantity,
			CancelledQuantity: oi.CancelledQuantity,
			UnitPrice:         oi.UnitPrice.StringFixed(2),
			LineTotal:         oi.LineTotal.StringFixed(2),
			Note:              oi.Note,
			Status:            string(oi.Status),
			CancelReason:      oi.CancelReason,
			IsWasted:          oi.IsWasted,
			AddedAt:           oi.AddedAt.Format("2006-01-02 15:04:05"),
		})
	}

	return resp
}

func normalizeNote(s string) *string {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func noteEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// debitStock: stok takipli ürünün stoğunu düşer; 0'ın altına inmez,
// 0'a inince ürün satıştan kalkar.
func debitStock(mi *models.MenuItem, qty int) {
	if !mi.TrackStock {
		return
	}
	mi.StockQuantity -= qty
	if mi.StockQuantity <= 0 {
		mi.StockQuantity = 0
		mi.IsAvailable = false
	}
}

// POST /api/orders
// Masaya yeni adisyon açar. Stok yeterlilik kontrolü mutasyondan önce yapılır:
// reddedilen istek hiçbir stok düşümü bırakmaz.
func CreateOrderHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body OrderCreateRequest
		if err := c.BodyParser(&body); err != nil {
			return c.JSON(fiber.Map{"success": false, "message": "Geçersiz istek gövdesi."})
		}

		if len(body.Items) == 0 {
			return c.JSON(fiber.Map{"success": false, "message": "En az bir ürün eklemelisiniz."})
		}

		var table models.Table
		if err := database.DB.First(&table, body.TableID).Error; err != nil {
			return c.JSON(fiber.Map{"success": false, "message": "Masa bulunamadı."})
		}

		// Masada açık adisyon varsa yenisini açmak yerine ona yönlendir.
		var existing models.Order
		err := database.DB.
			Where("table_id = ? AND status = ?", body.TableID, models.OrderStatusOpen).
			First(&existing).Error
		if err == nil {
			return c.JSON(fiber.Map{
				"success":      false,
				"message":      "Bu masada zaten açık bir adisyon var.",
				"order_id":     existing.ID,
				"redirect_url": fmt.Sprintf("/api/orders/%d", existing.ID),
			})
		}

		// Satırları hazırla ve stok yeterliliğini mutasyondan önce doğrula.
		// Aynı ürün birden fazla satırda geçebilir; kontrol toplam adede bakar.
		menuItems := make(map[uint]*models.MenuItem)
		requested := make(map[uint]int)
		for i := range body.Items {
			line := &body.Items[i]
			if line.Quantity < 1 {
				line.Quantity = 1
			}
			if _, seen := menuItems[line.MenuItemID]; !seen {
				var mi models.MenuItem
				if err := database.DB.First(&mi, line.MenuItemID).Error; err != nil {
					continue // bilinmeyen ürün satırı atlanır
				}
				menuItems[line.MenuItemID] = &mi
			}
			requested[line.MenuItemID] += line.Quantity
		}

		for id, qty := range requested {
			mi := menuItems[id]
			if mi.TrackStock && qty > mi.StockQuantity {
				return c.JSON(fiber.Map{
					"success": false,
					"message": fmt.Sprintf("Yetersiz stok: %s (mevcut: %d adet).", mi.Name, mi.StockQuantity),
				})
			}
		}

		openedBy := auth.CurrentUserName(c)
		var order models.Order

		err = database.DB.Transaction(func(tx *gorm.DB) error {
			order = models.Order{
				TableID:  body.TableID,
				Status:   models.OrderStatusOpen,
				OpenedBy: openedBy,
				Note:     normalizeNote(body.Note),
				Total:    decimal.Zero,
				OpenedAt: time.Now().UTC(),
			}
			if err := tx.Create(&order).Error; err != nil {
				return err
			}

			total := decimal.Zero
			for _, line := range body.Items {
				mi, ok := menuItems[line.MenuItemID]
				if !ok {
					continue
				}

				lineTotal := mi.Price.Mul(decimal.NewFromInt(int64(line.Quantity)))
				item := models.OrderItem{
					OrderID:    order.ID,
					MenuItemID: mi.ID,
					Quantity:   line.Quantity,
					UnitPrice:  mi.Price,
					LineTotal:  lineTotal,
					Note:       normalizeNote(line.Note),
					Status:     models.OrderItemStatusPending,
					AddedAt:    time.Now().UTC(),
				}
				if err := tx.Create(&item).Error; err != nil {
					return err
				}
				total = total.Add(lineTotal)
			}

			for _, mi := range menuItems {
				if !mi.TrackStock {
					continue
				}
				debitStock(mi, requested[mi.ID])
				if err := tx.Model(&models.MenuItem{}).Where("id = ?", mi.ID).
					Updates(map[string]any{
						"stock_quantity": mi.StockQuantity,
						"is_available":   mi.IsAvailable,
					}).Error; err != nil {
					return err
				}
			}

			order.Total = total
			if err := tx.Model(&order).Update("total", total).Error; err != nil {
				return err
			}

			return tx.Model(&table).Update("status", models.TableStatusOccupied).Error
		})
		if err != nil {
			return c.JSON(fiber.Map{"success": false, "message": "Adisyon açılırken hata oluştu: " + err.Error()})
		}

		_ = audit.WriteLog(audit.LogOptions{
			UserID:      auth.CurrentUserID(c),
			UserName:    openedBy,
			EntityType:  "order",
			EntityID:    order.ID,
			Action:      models.AuditActionCreate,
			Description: fmt.Sprintf("Adisyon açıldı: %s — ₺%s", table.Name, order.Total.StringFixed(2)),
			After:       order,
		})

		return c.JSON(fiber.Map{
			"success":      true,
			"message":      "Adisyon açıldı.",
			"order_id":     order.ID,
			"redirect_url": "/api/tables",
		})
	}
}

// GET /api/orders?tab=active&search_table=Teras
// Açık adisyonlar + bugünün kapanmış adisyonları.
func ListOrdersHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		searchTable := strings.TrimSpace(c.Query("search_table"))

		localNow := time.Now()
		todayStart := time.Date(localNow.Year(), localNow.Month(), localNow.Day(), 0, 0, 0, 0, localNow.Location()).UTC()

		var activeOrders []models.Order
		if err := database.DB.
			Preload("Table").
			Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("added_at ASC, id ASC") }).
			Preload("Items.MenuItem").
			Preload("Payments").
			Where("status = ?", models.OrderStatusOpen).
			Order("opened_at ASC").
			Find(&activeOrders).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Adisyonlar listelenemedi")
		}

		var pastOrders []models.Order
		if err := database.DB.
			Preload("Table").
			Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("added_at ASC, id ASC") }).
			Preload("Items.MenuItem").
			Preload("Payments").
			Where("status IN ? AND opened_at >= ?", []models.OrderStatus{models.OrderStatusPaid, models.OrderStatusCancelled}, todayStart).
			Order("closed_at DESC").
			Find(&pastOrders).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Adisyonlar listelenemedi")
		}

		if searchTable != "" {
			activeOrders = filterByTableName(activeOrders, searchTable)
			pastOrders = filterByTableName(pastOrders, searchTable)
		}

		todayRevenue := decimal.Zero
		todayPaidCount := 0
		for _, o := range pastOrders {
			if o.Status == models.OrderStatusPaid {
				todayRevenue = todayRevenue.Add(o.Total)
				todayPaidCount++
			}
		}

		active := make([]OrderResponse, 0, len(activeOrders))
		for _, o := range activeOrders {
			active = append(active, toOrderResponse(o))
		}
		past := make([]OrderResponse, 0, len(pastOrders))
		for _, o := range pastOrders {
			past = append(past, toOrderResponse(o))
		}

		return c.JSON(fiber.Map{
			"active_orders":     active,
			"past_orders":       past,
			"today_revenue":     todayRevenue.StringFixed(2),
			"today_paid_count":  todayPaidCount,
			"active_order_count": len(active),
		})
	}
}

func filterByTableName(orders []models.Order, search string) []models.Order {
	out := orders[:0]
	for _, o := range orders {
		if strings.Contains(strings.ToLower(o.Table.Name), strings.ToLower(search)) {
			out = append(out, o)
		}
	}
	return out
}

// GET /api/orders/:id
func OrderDetailHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz adisyon ID")
		}

		var order models.Order
		if err := database.DB.
			Preload("Table").
			Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("added_at ASC, id ASC") }).
			Preload("Items.MenuItem").
			Preload("Payments").
			First(&order, id).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Adisyon bulunamadı")
		}

		return c.JSON(toOrderResponse(order))
	}
}

type ItemStatusUpdateRequest struct {
	OrderItemID uint   `json:"order_item_id"`
	NewStatus   string `json:"new_status"`
}

// POST /api/orders/items/status
func UpdateItemStatusHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body ItemStatusUpdateRequest
		if err := c.BodyParser(&body); err != nil {
			return c.JSON(fiber.Map{"success": false, "message": "Geçersiz istek gövdesi."})
		}

		switch models.OrderItemStatus(body.NewStatus) {
		case models.OrderItemStatusPending, models.OrderItemStatusPreparing,
			models.OrderItemStatusServed, models.OrderItemStatusCancelled:
		default:
			return c.JSON(fiber.Map{"success": false, "message": "Geçersiz durum."})
		}

		var item models.OrderItem
		if err := database.DB.First(&item, body.OrderItemID).Error; err != nil {
			return c.JSON(fiber.Map{"success": false, "message": "Kalem bulunamadı."})
		}

		if err := database.DB.Model(&item).Update("status", body.NewStatus).Error; err != nil {
			return c.JSON(fiber.Map{"success": false, "message": "Durum güncellenemedi."})
		}

		return c.JSON(fiber.Map{"success": true, "message": "Durum güncellendi."})
	}
}
