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

type PaidItemSelection struct {
	OrderItemID uint `json:"order_item_id"`
	Quantity    int  `json:"quantity"`
}

type PaymentRequest struct {
	OrderID        uint                `json:"order_id"`
	Amount         decimal.Decimal     `json:"amount"`
	Method         string              `json:"method"`
	PayerName      string              `json:"payer_name"`
	DiscountAmount decimal.Decimal     `json:"discount_amount"`
	PaidItems      []PaidItemSelection `json:"paid_items"`
}

type CloseRequest struct {
	OrderID uint            `json:"order_id"`
	Amount  decimal.Decimal `json:"amount"`
	Method  string          `json:"method"`
}

type CloseZeroRequest struct {
	OrderID uint `json:"order_id"`
}

// POST /api/orders/payments
// Kısmi ödeme. Ödenen adetler belirtilmişse kalemlere birebir işlenir;
// belirtilmemişse bütçe ekleme sırasına göre (FIFO) kalemlere dağıtılır.
func AddPaymentHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body PaymentRequest
		if err := c.BodyParser(&body); err != nil {
			return c.JSON(fiber.Map{"success": false, "message": "Geçersiz istek gövdesi."})
		}
		if !body.Amount.IsPositive() {
			return c.JSON(fiber.Map{"success": false, "message": "Geçerli bir ödeme tutarı giriniz."})
		}
		if body.DiscountAmount.IsNegative() {
			return c.JSON(fiber.Map{"success": false, "message": "İndirim tutarı negatif olamaz."})
		}

		var order models.Order
		if err := database.DB.Preload("Payments").Preload("Items").First(&order, body.OrderID).Error; err != nil {
			return c.JSON(fiber.Map{"success": false, "message": "Adisyon bulunamadı."})
		}
		if order.Status != models.OrderStatusOpen {
			return c.JSON(fiber.Map{"success": false, "message": "Bu adisyon zaten kapatılmış."})
		}

		netTotal := order.Total.Sub(body.DiscountAmount)
		alreadyPaid := decimal.Zero
		for _, p := range order.Payments {
			alreadyPaid = alreadyPaid.Add(p.Amount)
		}
		remaining := netTotal.Sub(alreadyPaid)

		if body.Amount.GreaterThan(remaining.Add(PaymentTolerance)) {
			return c.JSON(fiber.Map{
				"success": false,
				"message": fmt.Sprintf("Ödeme tutarı kalan tutarı (₺%s) aşamaz.", remaining.StringFixed(2)),
			})
		}

		// Kapanış eşiği: kalan tutar 0.01'in kesin altına inmelidir. Tam
		// 0.01 kalan adisyon açık kalır.
		newTotalPaid := alreadyPaid.Add(body.Amount)
		isClosed := newTotalPaid.GreaterThan(netTotal.Sub(PaymentTolerance))

		err := database.DB.Transaction(func(tx *gorm.DB) error {
			payment := models.Payment{
				OrderID:     order.ID,
				Method:      models.ParsePaymentMethod(body.Method),
				Amount:      body.Amount,
				ChangeGiven: decimal.Zero,
				Note:        strings.TrimSpace(body.PayerName),
				PaidAt:      time.Now().UTC(),
			}
			if err := tx.Create(&payment).Error; err != nil {
				return err
			}

			if len(body.PaidItems) > 0 {
				for _, sel := range body.PaidItems {
					if sel.Quantity <= 0 {
						continue
					}
					for i := range order.Items {
						oi := &order.Items[i]
						if oi.ID != sel.OrderItemID {
							continue
						}
						canPay := oi.UnpaidQuantity()
						payQty := sel.Quantity
						if payQty > canPay {
							payQty = canPay
						}
						oi.PaidQuantity += payQty
						break
					}
				}
			} else {
				allocatePaymentFIFO(order.Items, body.Amount)
			}

			if isClosed {
				for i := range order.Items {
					if order.Items[i].Status != models.OrderItemStatusCancelled {
						order.Items[i].PaidQuantity = order.Items[i].ActiveQuantity()
					}
				}
			}

			for i := range order.Items {
				oi := &order.Items[i]
				if err := tx.Model(&models.OrderItem{}).Where("id = ?", oi.ID).
					Update("paid_quantity", oi.PaidQuantity).Error; err != nil {
					return err
				}
			}

			if isClosed {
				now := time.Now().UTC()
				if err := tx.Model(&models.Order{}).Where("id = ?", order.ID).Updates(map[string]any{
					"status":    models.OrderStatusPaid,
					"closed_at": now,
				}).Error; err != nil {
					return err
				}
				if err := tx.Model(&models.Table{}).Where("id = ?", order.TableID).
					Update("status", models.TableStatusEmpty).Error; err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return c.JSON(fiber.Map{"success": false, "message": "Ödeme kaydedilirken hata oluştu: " + err.Error()})
		}

		_ = audit.WriteLog(audit.LogOptions{
			UserID:      auth.CurrentUserID(c),
			UserName:    auth.CurrentUserName(c),
			EntityType:  "order",
			EntityID:    order.ID,
			Action:      models.AuditActionUpdate,
			Description: fmt.Sprintf("₺%s ödeme alındı (adisyon #%d)", body.Amount.StringFixed(2), order.ID),
		})

		if isClosed {
			return c.JSON(fiber.Map{
				"success":      true,
				"message":      "Adisyon kapatıldı, ödeme tamamlandı.",
				"redirect_url": "/api/orders",
			})
		}

		return c.JSON(fiber.Map{
			"success": true,
			"message": fmt.Sprintf("₺%s ödeme alındı. Kalan: ₺%s", body.Amount.StringFixed(2), netTotal.Sub(newTotalPaid).StringFixed(2)),
		})
	}
}

// allocatePaymentFIFO: ödeme bütçesini ekleme zamanına göre sıralı ödenmemiş
// kalemlere dağıtır. Kalem bazında ödenebilecek adet, bütçenin birim fiyata
// bölümünün tabanıdır; tutar yalnızca tam adetlere bölünür.
func allocatePaymentFIFO(items []models.OrderItem, amount decimal.Decimal) {
	unpaid := make([]*models.OrderItem, 0, len(items))
	for i := range items {
		oi := &items[i]
		if oi.Status != models.OrderItemStatusCancelled && oi.PaidQuantity < oi.Quantity {
			unpaid = append(unpaid, oi)
		}
	}
	for i := 1; i < len(unpaid); i++ {
		for j := i; j > 0 && unpaid[j].AddedAt.Before(unpaid[j-1].AddedAt); j-- {
			unpaid[j], unpaid[j-1] = unpaid[j-1], unpaid[j]
		}
	}

	budget := amount
	for _, oi := range unpaid {
		if budget.Cmp(ZeroTolerance) <= 0 {
			break
		}
		if !oi.UnitPrice.IsPositive() {
			continue
		}
		canAfford := int(budget.Div(oi.UnitPrice).Floor().IntPart())
		payQty := oi.UnpaidQuantity()
		if canAfford < payQty {
			payQty = canAfford
		}
		if payQty > 0 {
			oi.PaidQuantity += payQty
			budget = budget.Sub(oi.UnitPrice.Mul(decimal.NewFromInt(int64(payQty))))
		}
	}
}

// POST /api/orders/close
// Tek seferde tam tahsilat. Tutar toplamın altında olamaz; üstü para üstüdür.
func CloseOrderHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CloseRequest
		if err := c.BodyParser(&body); err != nil {
			return c.JSON(fiber.Map{"success": false, "message": "Geçersiz istek gövdesi."})
		}
		if !body.Amount.IsPositive() {
			return c.JSON(fiber.Map{"success": false, "message": "Geçerli bir tutar giriniz."})
		}

		var order models.Order
		if err := database.DB.Preload("Items").First(&order, body.OrderID).Error; err != nil {
			return c.JSON(fiber.Map{"success": false, "message": "Adisyon bulunamadı."})
		}
		if order.Status != models.OrderStatusOpen {
			return c.JSON(fiber.Map{"success": false, "message": "Bu adisyon zaten kapatılmış."})
		}
		if body.Amount.LessThan(order.Total) {
			return c.JSON(fiber.Map{"success": false, "message": "Ödeme tutarı toplam tutardan az olamaz."})
		}

		err := database.DB.Transaction(func(tx *gorm.DB) error {
			payment := models.Payment{
				OrderID:     order.ID,
				Method:      models.ParsePaymentMethod(body.Method),
				Amount:      body.Amount,
				ChangeGiven: body.Amount.Sub(order.Total),
				PaidAt:      time.Now().UTC(),
			}
			if err := tx.Create(&payment).Error; err != nil {
				return err
			}

			for i := range order.Items {
				oi := &order.Items[i]
				if oi.Status == models.OrderItemStatusCancelled {
					continue
				}
				if err := tx.Model(&models.OrderItem{}).Where("id = ?", oi.ID).
					Update("paid_quantity", oi.ActiveQuantity()).Error; err != nil {
					return err
				}
			}

			now := time.Now().UTC()
			if err := tx.Model(&models.Order{}).Where("id = ?", order.ID).Updates(map[string]any{
				"status":    models.OrderStatusPaid,
				"closed_at": now,
			}).Error; err != nil {
				return err
			}
			return tx.Model(&models.Table{}).Where("id = ?", order.TableID).
				Update("status", models.TableStatusEmpty).Error
		})
		if err != nil {
			return c.JSON(fiber.Map{"success": false, "message": "Adisyon kapatılırken hata oluştu: " + err.Error()})
		}

		_ = audit.WriteLog(audit.LogOptions{
			UserID:      auth.CurrentUserID(c),
			UserName:    auth.CurrentUserName(c),
			EntityType:  "order",
			EntityID:    order.ID,
			Action:      models.AuditActionUpdate,
			Description: fmt.Sprintf("Adisyon #%d kapatıldı, ₺%s tahsil edildi", order.ID, body.Amount.StringFixed(2)),
		})

		return c.JSON(fiber.Map{
			"success":      true,
			"message":      "Adisyon kapatıldı, ödeme alındı.",
			"redirect_url": "/api/tables",
		})
	}
}

// POST /api/orders/close-zero
// Tutarı sıfırlanmış (tüm kalemleri iptal edilmiş) adisyonu ödeme almadan
// kapatır; adisyon iptal sayılır.
func CloseZeroHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CloseZeroRequest
		if err := c.BodyParser(&body); err != nil {
			return c.JSON(fiber.Map{"success": false, "message": "Geçersiz istek gövdesi."})
		}

		var order models.Order
		if err := database.DB.Preload("Items").First(&order, body.OrderID).Error; err != nil {
			return c.JSON(fiber.Map{"success": false, "message": "Adisyon bulunamadı."})
		}
		if order.Status != models.OrderStatusOpen {
			return c.JSON(fiber.Map{"success": false, "message": "Bu adisyon zaten kapatılmış."})
		}
		if order.Total.Cmp(ZeroTolerance) > 0 {
			return c.JSON(fiber.Map{"success": false, "message": "Adisyon tutarı sıfır olmadığı için bu yöntemle kapatılamaz."})
		}
		for i := range order.Items {
			oi := &order.Items[i]
			if oi.Status != models.OrderItemStatusCancelled && oi.ActiveQuantity() > 0 {
				return c.JSON(fiber.Map{"success": false, "message": "Adisyonda hâlâ aktif ürünler var. Önce tüm ürünleri iptal edin."})
			}
		}

		err := database.DB.Transaction(func(tx *gorm.DB) error {
			now := time.Now().UTC()
			if err := tx.Model(&models.Order{}).Where("id = ?", order.ID).Updates(map[string]any{
				"status":    models.OrderStatusCancelled,
				"closed_at": now,
			}).Error; err != nil {
				return err
			}
			return tx.Model(&models.Table{}).Where("id = ?", order.TableID).
				Update("status", models.TableStatusEmpty).Error
		})
		if err != nil {
			return c.JSON(fiber.Map{"success": false, "message": "Adisyon kapatılırken bir hata oluştu: " + err.Error()})
		}

		_ = audit.WriteLog(audit.LogOptions{
			UserID:      auth.CurrentUserID(c),
			UserName:    auth.CurrentUserName(c),
			EntityType:  "order",
			EntityID:    order.ID,
			Action:      models.AuditActionUpdate,
			Description: fmt.Sprintf("Sıfır tutarlı adisyon #%d kapatıldı", order.ID),
		})

		return c.JSON(fiber.Map{
			"success":      true,
			"message":      "Sıfır tutarlı adisyon kapatıldı, masa boşaltıldı.",
			"redirect_url": "/api/tables",
		})
	}
}
