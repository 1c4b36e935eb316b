package orders

import (
	"fmt"
	"time"

	"adisyon-backend/internal/audit"
	"adisyon-backend/internal/auth"
	"adisyon-backend/internal/database"
	"adisyon-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type ItemAddRequest struct {
	OrderID    uint   `json:"order_id"`
	MenuItemID uint   `json:"menu_item_id"`
	Quantity   int    `json:"quantity"`
	Note       string `json:"note"`
}

type BulkAddRequest struct {
	OrderID uint               `json:"order_id"`
	Items   []OrderLineRequest `json:"items"`
}

type ItemCancelRequest struct {
	OrderID      uint   `json:"order_id"`
	OrderItemID  uint   `json:"order_item_id"`
	CancelQty    int    `json:"cancel_qty"`
	CancelReason string `json:"cancel_reason"`
	IsWasted     *bool  `json:"is_wasted"`
}

// mergeTarget: aynı ürün + aynı not ile eklenen kalem, iptal edilmemiş ve
// tamamı ödenmemişse yeni satır açmak yerine mevcut satıra eklenir.
func mergeTarget(items []models.OrderItem, menuItemID uint, note *string, requireNoCancel bool) *models.OrderItem {
	for i := range items {
		oi := &items[i]
		if oi.MenuItemID != menuItemID ||
			oi.Status == models.OrderItemStatusCancelled ||
			oi.PaidQuantity >= oi.Quantity ||
			!noteEqual(oi.Note, note) {
			continue
		}
		if requireNoCancel && oi.CancelledQuantity != 0 {
			continue
		}
		return oi
	}
	return nil
}

// POST /api/orders/items
func AddItemHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body ItemAddRequest
		if err := c.BodyParser(&body); err != nil {
			return c.JSON(fiber.Map{"success": false, "message": "Geçersiz istek gövdesi."})
		}
		if body.Quantity < 1 {
			body.Quantity = 1
		}

		var order models.Order
		if err := database.DB.Preload("Items").First(&order, body.OrderID).Error; err != nil {
			return c.JSON(fiber.Map{"success": false, "message": "Adisyon veya ürün bulunamadı."})
		}
		var mi models.MenuItem
		if err := database.DB.First(&mi, body.MenuItemID).Error; err != nil {
			return c.JSON(fiber.Map{"success": false, "message": "Adisyon veya ürün bulunamadı."})
		}
		if order.Status != models.OrderStatusOpen {
			return c.JSON(fiber.Map{"success": false, "message": "Kapalı adisyona ürün eklenemez."})
		}

		// Stok kontrolü mutasyondan önce
		if mi.TrackStock && body.Quantity > mi.StockQuantity {
			return c.JSON(fiber.Map{
				"success": false,
				"message": fmt.Sprintf("Yetersiz stok: %s (mevcut: %d adet).", mi.Name, mi.StockQuantity),
			})
		}

		note := normalizeNote(body.Note)

		err := database.DB.Transaction(func(tx *gorm.DB) error {
			var added decimal.Decimal

			if existing := mergeTarget(order.Items, body.MenuItemID, note, false); existing != nil {
				existing.Quantity += body.Quantity
				existing.LineTotal = existing.UnitPrice.Mul(decimal.NewFromInt(int64(existing.Quantity - existing.CancelledQuantity)))
				added = existing.UnitPrice.Mul(decimal.NewFromInt(int64(body.Quantity)))
				if err := tx.Model(existing).Updates(map[string]any{
					"quantity":   existing.Quantity,
					"line_total": existing.LineTotal,
				}).Error; err != nil {
					return err
				}
			} else {
				added = mi.Price.Mul(decimal.NewFromInt(int64(body.Quantity)))
				item := models.OrderItem{
					OrderID:    order.ID,
					MenuItemID: mi.ID,
					Quantity:   body.Quantity,
					UnitPrice:  mi.Price,
					LineTotal:  added,
					Note:       note,
					Status:     models.OrderItemStatusPending,
					AddedAt:    time.Now().UTC(),
				}
				if err := tx.Create(&item).Error; err != nil {
					return err
				}
			}

			if mi.TrackStock {
				debitStock(&mi, body.Quantity)
				if err := tx.Model(&models.MenuItem{}).Where("id = ?", mi.ID).
					Updates(map[string]any{
						"stock_quantity": mi.StockQuantity,
						"is_available":   mi.IsAvailable,
					}).Error; err != nil {
					return err
				}
			}

			order.Total = order.Total.Add(added)
			return tx.Model(&order).Update("total", order.Total).Error
		})
		if err != nil {
			return c.JSON(fiber.Map{"success": false, "message": "Ürün eklenirken hata oluştu: " + err.Error()})
		}

		return c.JSON(fiber.Map{"success": true, "message": fmt.Sprintf("%s eklendi.", mi.Name)})
	}
}

// POST /api/orders/items/bulk
// Tek seferde birden çok satır ekler. Stok kontrolü tüm satırlar için baştan
// yapılır; yetersiz stok tüm partiyi reddeder, hiçbir satır işlenmez.
func AddItemBulkHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body BulkAddRequest
		if err := c.BodyParser(&body); err != nil {
			return c.JSON(fiber.Map{"success": false, "message": "Geçersiz istek gövdesi."})
		}
		if len(body.Items) == 0 {
			return c.JSON(fiber.Map{"success": false, "message": "Eklenecek ürün bulunamadı."})
		}

		var order models.Order
		if err := database.DB.Preload("Items").First(&order, body.OrderID).Error; err != nil {
			return c.JSON(fiber.Map{"success": false, "message": "Adisyon bulunamadı."})
		}
		if order.Status != models.OrderStatusOpen {
			return c.JSON(fiber.Map{"success": false, "message": "Kapalı adisyona ürün eklenemez."})
		}

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
					continue
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

		addedCount := 0
		err := database.DB.Transaction(func(tx *gorm.DB) error {
			totalAdded := decimal.Zero

			for _, line := range body.Items {
				mi, ok := menuItems[line.MenuItemID]
				if !ok {
					continue
				}
				note := normalizeNote(line.Note)

				if existing := mergeTarget(order.Items, line.MenuItemID, note, true); existing != nil {
					existing.Quantity += line.Quantity
					existing.LineTotal = existing.UnitPrice.Mul(decimal.NewFromInt(int64(existing.Quantity - existing.CancelledQuantity)))
					totalAdded = totalAdded.Add(existing.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity))))
					if err := tx.Model(existing).Updates(map[string]any{
						"quantity":   existing.Quantity,
						"line_total": existing.LineTotal,
					}).Error; err != nil {
						return err
					}
				} else {
					lineTotal := mi.Price.Mul(decimal.NewFromInt(int64(line.Quantity)))
					item := models.OrderItem{
						OrderID:    order.ID,
						MenuItemID: mi.ID,
						Quantity:   line.Quantity,
						UnitPrice:  mi.Price,
						LineTotal:  lineTotal,
						Note:       note,
						Status:     models.OrderItemStatusPending,
						AddedAt:    time.Now().UTC(),
					}
					if err := tx.Create(&item).Error; err != nil {
						return err
					}
					order.Items = append(order.Items, item)
					totalAdded = totalAdded.Add(lineTotal)
				}
				addedCount++
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

			order.Total = order.Total.Add(totalAdded)
			return tx.Model(&order).Update("total", order.Total).Error
		})
		if err != nil {
			return c.JSON(fiber.Map{"success": false, "message": "Ürünler eklenirken hata oluştu: " + err.Error()})
		}

		return c.JSON(fiber.Map{"success": true, "message": fmt.Sprintf("%d ürün eklendi.", addedCount)})
	}
}

// POST /api/orders/items/cancel
// Kısmi veya tam iptal. Ödenmiş adetler iptal edilemez. Stok takipli ürünlerde
// iade stoku geri artırır, zayi stoku değiştirmeden fire kaydı düşer: fiziksel
// düşüm ekleme anında yapılmıştı, buradaki satır finansal kayıttır.
func CancelItemHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body ItemCancelRequest
		if err := c.BodyParser(&body); err != nil {
			return c.JSON(fiber.Map{"success": false, "message": "Geçersiz istek gövdesi."})
		}
		if body.CancelQty < 1 {
			return c.JSON(fiber.Map{"success": false, "message": "İptal miktarı en az 1 olmalıdır."})
		}

		var item models.OrderItem
		if err := database.DB.Preload("MenuItem").First(&item, body.OrderItemID).Error; err != nil {
			return c.JSON(fiber.Map{"success": false, "message": "Kalem veya adisyon bulunamadı."})
		}
		var order models.Order
		if err := database.DB.First(&order, body.OrderID).Error; err != nil {
			return c.JSON(fiber.Map{"success": false, "message": "Kalem veya adisyon bulunamadı."})
		}
		if item.OrderID != order.ID {
			return c.JSON(fiber.Map{"success": false, "message": "Kalem bu adisyona ait değil."})
		}
		if order.Status != models.OrderStatusOpen {
			return c.JSON(fiber.Map{"success": false, "message": "Kapalı adisyonda iptal yapılamaz."})
		}

		activeQty := item.Quantity - item.CancelledQuantity
		cancelable := activeQty - item.PaidQuantity
		if body.CancelQty > cancelable {
			return c.JSON(fiber.Map{
				"success": false,
				"message": fmt.Sprintf("En fazla %d adet iptal edilebilir (%d adet zaten ödendi).", cancelable, item.PaidQuantity),
			})
		}

		tracksStock := item.MenuItem.TrackStock
		wasted := body.IsWasted != nil && *body.IsWasted

		autoClosed := false
		err := database.DB.Transaction(func(tx *gorm.DB) error {
			refund := item.UnitPrice.Mul(decimal.NewFromInt(int64(body.CancelQty)))

			item.CancelledQuantity += body.CancelQty
			item.CancelReason = normalizeNote(body.CancelReason)
			item.LineTotal = item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity - item.CancelledQuantity)))
			if item.Quantity-item.CancelledQuantity <= 0 {
				item.Status = models.OrderItemStatusCancelled
			}

			order.Total = order.Total.Sub(refund)
			if order.Total.IsNegative() {
				order.Total = decimal.Zero
			}

			if tracksStock {
				// Aynı kaleme birden fazla iptal yapılabilir (önce zayi, sonra
				// iade gibi); IsWasted son işlemi gösterir, işlem bazında kayıt
				// StockLogs satırlarındadır.
				v := wasted
				item.IsWasted = &v

				mi := item.MenuItem
				prevStock := mi.StockQuantity

				movementType := models.MovementIn
				quantityChange := body.CancelQty
				newStock := prevStock + body.CancelQty
				var sourceType *string
				var logOrderID *uint
				note := fmt.Sprintf("İptal iadesi — Adisyon #%d, %d adet", body.OrderID, body.CancelQty)

				if wasted {
					// Zayi: stok zaten ekleme anında düşmüştü, fiziksel stok
					// değişmez; satır sipariş fiyatıyla fire kaydıdır.
					movementType = models.MovementOut
					quantityChange = -body.CancelQty
					newStock = prevStock
					src := models.SourceOrder
					sourceType = &src
					oid := body.OrderID
					logOrderID = &oid
					note = fmt.Sprintf("Zayi/Fire — Adisyon #%d, %d adet", body.OrderID, body.CancelQty)
				} else {
					mi.StockQuantity += body.CancelQty
					if !mi.IsAvailable && mi.StockQuantity > 0 {
						mi.IsAvailable = true
					}
					if err := tx.Model(&models.MenuItem{}).Where("id = ?", mi.ID).
						Updates(map[string]any{
							"stock_quantity": mi.StockQuantity,
							"is_available":   mi.IsAvailable,
						}).Error; err != nil {
						return err
					}
				}

				unitPrice := item.UnitPrice
				logRow := models.StockLog{
					MenuItemID:     mi.ID,
					MovementType:   movementType,
					QuantityChange: quantityChange,
					PreviousStock:  prevStock,
					NewStock:       newStock,
					Note:           &note,
					SourceType:     sourceType,
					OrderID:        logOrderID,
					UnitPrice:      &unitPrice,
				}
				if err := tx.Create(&logRow).Error; err != nil {
					return err
				}
			} else {
				item.IsWasted = nil
			}

			if err := tx.Model(&models.OrderItem{}).Where("id = ?", item.ID).
				Updates(map[string]any{
					"cancelled_quantity": item.CancelledQuantity,
					"cancel_reason":      item.CancelReason,
					"line_total":         item.LineTotal,
					"status":             item.Status,
					"is_wasted":          item.IsWasted,
				}).Error; err != nil {
				return err
			}
			if err := tx.Model(&order).Update("total", order.Total).Error; err != nil {
				return err
			}

			// İptal sonrası otomatik kapanış: ödenmiş tutar kalan toplamı
			// karşılıyorsa adisyon kapanır. Ödemeler bellek yerine tablodan
			// yeniden okunur.
			var payments []models.Payment
			if err := tx.Where("order_id = ?", order.ID).Find(&payments).Error; err != nil {
				return err
			}
			freshPaid := decimal.Zero
			for _, p := range payments {
				freshPaid = freshPaid.Add(p.Amount)
			}

			if freshPaid.IsPositive() && order.Total.Sub(freshPaid).Cmp(ZeroTolerance) <= 0 {
				now := time.Now().UTC()
				if err := tx.Model(&order).Updates(map[string]any{
					"status":    models.OrderStatusPaid,
					"closed_at": now,
				}).Error; err != nil {
					return err
				}
				if err := tx.Model(&models.Table{}).Where("id = ?", order.TableID).
					Update("status", models.TableStatusEmpty).Error; err != nil {
					return err
				}
				autoClosed = true
			}

			return nil
		})
		if err != nil {
			return c.JSON(fiber.Map{"success": false, "message": "İptal işlemi sırasında bir hata oluştu: " + err.Error()})
		}

		_ = audit.WriteLog(audit.LogOptions{
			UserID:      auth.CurrentUserID(c),
			UserName:    auth.CurrentUserName(c),
			EntityType:  "order_item",
			EntityID:    item.ID,
			Action:      models.AuditActionUpdate,
			Description: fmt.Sprintf("Kalem iptali: %s × %d (adisyon #%d)", item.MenuItem.Name, body.CancelQty, order.ID),
			After:       item,
		})

		stockNote := ""
		if tracksStock {
			if wasted {
				stockNote = " | Zayi/Fire olarak işaretlendi."
			} else {
				stockNote = " | Stoka iade edildi."
			}
		}

		if autoClosed {
			return c.JSON(fiber.Map{
				"success":      true,
				"message":      fmt.Sprintf("%d adet iptal edildi.%s Kalan tutar sıfırlandı, adisyon kapatıldı.", body.CancelQty, stockNote),
				"redirect_url": "/api/tables",
			})
		}

		return c.JSON(fiber.Map{
			"success": true,
			"message": fmt.Sprintf("%d adet iptal edildi.%s", body.CancelQty, stockNote),
		})
	}
}
