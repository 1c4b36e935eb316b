package tables

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

type MergeOrderRequest struct {
	SourceTableID uint `json:"source_table_id"`
	TargetTableID uint `json:"target_table_id"`
}

func statusPriority(s models.OrderItemStatus) int {
	switch s {
	case models.OrderItemStatusPending:
		return 0
	case models.OrderItemStatusPreparing:
		return 1
	case models.OrderItemStatusServed:
		return 2
	default:
		return 3
	}
}

// POST /api/tables/merge
// Kaynak masanın açık adisyonunu hedef masaya taşır. Hedefte açık adisyon
// yoksa adisyon olduğu gibi taşınır; varsa kalemler birleştirilir, ödemeler
// hedefe aktarılır ve kaynak adisyon iptal olarak kapanır.
func MergeOrderHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body MergeOrderRequest
		if err := c.BodyParser(&body); err != nil {
			return c.JSON(fiber.Map{"success": false, "message": "Geçersiz istek gövdesi."})
		}
		if body.SourceTableID == body.TargetTableID {
			return c.JSON(fiber.Map{"success": false, "message": "Kaynak ve hedef masa aynı olamaz."})
		}

		var sourceOrder models.Order
		if err := database.DB.
			Preload("Items").Preload("Payments").Preload("Table").
			Where("table_id = ? AND status = ?", body.SourceTableID, models.OrderStatusOpen).
			First(&sourceOrder).Error; err != nil {
			return c.JSON(fiber.Map{"success": false, "message": "Kaynak masada açık adisyon bulunamadı."})
		}

		var targetTable models.Table
		if err := database.DB.First(&targetTable, body.TargetTableID).Error; err != nil {
			return c.JSON(fiber.Map{"success": false, "message": "Hedef masa bulunamadı."})
		}

		moved := false
		err := database.DB.Transaction(func(tx *gorm.DB) error {
			var targetOrder models.Order
			targetErr := tx.Preload("Items").
				Where("table_id = ? AND status = ?", body.TargetTableID, models.OrderStatusOpen).
				First(&targetOrder).Error

			if targetErr == gorm.ErrRecordNotFound {
				// Taşıma: adisyonun masası değişir. Güncelleme anahtar üzerinden
				// yapılır; preload edilen struct ile Model kullanılırsa GORM eski
				// ilişkileri de kaydedip table_id'yi geri ezer.
				moved = true
				if err := tx.Model(&models.Order{}).Where("id = ?", sourceOrder.ID).
					Update("table_id", body.TargetTableID).Error; err != nil {
					return err
				}
				if err := tx.Model(&models.Table{}).Where("id = ?", body.SourceTableID).
					Update("status", models.TableStatusEmpty).Error; err != nil {
					return err
				}
				return tx.Model(&models.Table{}).Where("id = ?", targetTable.ID).
					Update("status", models.TableStatusOccupied).Error
			}
			if targetErr != nil {
				return targetErr
			}

			// Birleştirme: aynı üründen hedefte satır varsa adet ve tutar
			// oraya eklenir, durum en geri hazırlık aşamasına çekilir.
			for i := range sourceOrder.Items {
				src := &sourceOrder.Items[i]

				var existing *models.OrderItem
				for j := range targetOrder.Items {
					if targetOrder.Items[j].MenuItemID == src.MenuItemID {
						existing = &targetOrder.Items[j]
						break
					}
				}

				if existing != nil {
					existing.Quantity += src.Quantity
					existing.LineTotal = existing.LineTotal.Add(src.LineTotal)
					if statusPriority(src.Status) < statusPriority(existing.Status) {
						existing.Status = src.Status
					}
					if err := tx.Model(existing).Updates(map[string]any{
						"quantity":   existing.Quantity,
						"line_total": existing.LineTotal,
						"status":     existing.Status,
					}).Error; err != nil {
						return err
					}
					if err := tx.Delete(&models.OrderItem{}, src.ID).Error; err != nil {
						return err
					}
				} else {
					if err := tx.Model(&models.OrderItem{}).Where("id = ?", src.ID).
						Update("order_id", targetOrder.ID).Error; err != nil {
						return err
					}
				}
			}

			if err := tx.Model(&models.Payment{}).Where("order_id = ?", sourceOrder.ID).
				Update("order_id", targetOrder.ID).Error; err != nil {
				return err
			}

			// Hedef toplamı aktif kalemlerden yeniden hesaplanır.
			var targetItems []models.OrderItem
			if err := tx.Where("order_id = ? AND status <> ?", targetOrder.ID, models.OrderItemStatusCancelled).
				Find(&targetItems).Error; err != nil {
				return err
			}
			total := decimal.Zero
			for _, oi := range targetItems {
				total = total.Add(oi.LineTotal)
			}
			if err := tx.Model(&models.Order{}).Where("id = ?", targetOrder.ID).
				Update("total", total).Error; err != nil {
				return err
			}

			now := time.Now().UTC()
			if err := tx.Model(&models.Order{}).Where("id = ?", sourceOrder.ID).Updates(map[string]any{
				"status":    models.OrderStatusCancelled,
				"closed_at": now,
				"total":     decimal.Zero,
			}).Error; err != nil {
				return err
			}
			if err := tx.Model(&models.Table{}).Where("id = ?", body.SourceTableID).
				Update("status", models.TableStatusEmpty).Error; err != nil {
				return err
			}
			return tx.Model(&models.Table{}).Where("id = ?", targetTable.ID).
				Update("status", models.TableStatusOccupied).Error
		})
		if err != nil {
			return c.JSON(fiber.Map{"success": false, "message": "Birleştirme sırasında hata oluştu: " + err.Error()})
		}

		_ = audit.WriteLog(audit.LogOptions{
			UserID:      auth.CurrentUserID(c),
			UserName:    auth.CurrentUserName(c),
			EntityType:  "order",
			EntityID:    sourceOrder.ID,
			Action:      models.AuditActionUpdate,
			Description: fmt.Sprintf("Adisyon #%d, '%s' masasına aktarıldı", sourceOrder.ID, targetTable.Name),
		})

		if moved {
			return c.JSON(fiber.Map{"success": true, "message": fmt.Sprintf("Adisyon '%s' masasına taşındı.", targetTable.Name)})
		}
		return c.JSON(fiber.Map{"success": true, "message": fmt.Sprintf("'%s' adisyonu '%s' masasına birleştirildi.", sourceOrder.Table.Name, targetTable.Name)})
	}
}
