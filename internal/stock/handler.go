package stock

import (
	"fmt"
	"strings"

	"adisyon-backend/internal/audit"
	"adisyon-backend/internal/auth"
	"adisyon-backend/internal/database"
	"adisyon-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type StockUpdateRequest struct {
	MenuItemID uint `json:"menu_item_id"`
	// "direct" → stok değeri yeniden yazılır (Düzeltme)
	// "movement" → giriş/çıkış miktarı işlenir
	// "fire" → depo kaynaklı zayi çıkışı
	UpdateMode        string `json:"update_mode"`
	NewStockValue     *int   `json:"new_stock_value"`
	MovementQuantity  *int   `json:"movement_quantity"`
	MovementDirection string `json:"movement_direction"` // "in" | "out"
	Note              string `json:"note"`
	AlertThreshold    *int   `json:"alert_threshold"`
	CriticalThreshold *int   `json:"critical_threshold"`
}

type ToggleTrackRequest struct {
	MenuItemID uint `json:"menu_item_id"`
	TrackStock bool `json:"track_stock"`
}

type stockItemResponse struct {
	ID                uint               `json:"id"`
	Name              string             `json:"name"`
	CategoryName      string             `json:"category_name"`
	StockQuantity     int                `json:"stock_quantity"`
	TrackStock        bool               `json:"track_stock"`
	AlertThreshold    int                `json:"alert_threshold"`
	CriticalThreshold int                `json:"critical_threshold"`
	Status            models.StockStatus `json:"status"`
	StatusLabel       string             `json:"status_label"`
}

func statusLabel(s models.StockStatus) string {
	switch s {
	case models.StockStatusCritical:
		return "Kritik"
	case models.StockStatusLow:
		return "Düşük"
	case models.StockStatusOK:
		return "Yeterli"
	default:
		return "Takip Dışı"
	}
}

// GET /api/stock
// Varsayılan olarak yalnızca stok takipli ürünler; ?show_all=true hepsi.
func ListStockHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var items []models.MenuItem
		if err := database.DB.Preload("Category").
			Where("is_deleted = ?", false).
			Order("category_id, name").
			Find(&items).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Stok listesi getirilemedi")
		}

		showAll := c.Query("show_all") == "true"
		tracked, lowCount, criticalCount := 0, 0, 0

		out := make([]stockItemResponse, 0, len(items))
		for i := range items {
			m := &items[i]
			if m.TrackStock {
				tracked++
			}
			if m.IsLowStock() {
				lowCount++
			}
			if m.IsCriticalStock() {
				criticalCount++
			}
			if !showAll && !m.TrackStock {
				continue
			}
			st := m.StockStatus()
			out = append(out, stockItemResponse{
				ID:                m.ID,
				Name:              m.Name,
				CategoryName:      m.Category.Name,
				StockQuantity:     m.StockQuantity,
				TrackStock:        m.TrackStock,
				AlertThreshold:    m.AlertThreshold,
				CriticalThreshold: m.CriticalThreshold,
				Status:            st,
				StatusLabel:       statusLabel(st),
			})
		}

		return c.JSON(fiber.Map{
			"items":            out,
			"total_products":   len(items),
			"tracked_products": tracked,
			"low_stock_count":  lowCount,
			"critical_count":   criticalCount,
			"has_alert":        lowCount > 0 || criticalCount > 0,
		})
	}
}

// POST /api/stock/update  (yalnızca admin)
// Üç mod vardır: "direct" sayımı yeniden yazar, "movement" giriş/çıkış işler,
// "fire" depo kaynaklı zayi çıkışıdır. Hareket ve fire için açıklama zorunludur;
// her mutasyon aynı transaction içinde bir StockLog satırı düşer.
func UpdateStockHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body StockUpdateRequest
		if err := c.BodyParser(&body); err != nil {
			return c.JSON(fiber.Map{"success": false, "message": "Geçersiz istek gövdesi."})
		}

		var item models.MenuItem
		if err := database.DB.First(&item, body.MenuItemID).Error; err != nil {
			return c.JSON(fiber.Map{"success": false, "message": "Ürün bulunamadı."})
		}

		previousStock := item.StockQuantity
		var newStock, quantityChange int
		var movementType string
		note := strings.TrimSpace(body.Note)

		switch body.UpdateMode {
		case "direct":
			if body.NewStockValue == nil || *body.NewStockValue < 0 {
				return c.JSON(fiber.Map{"success": false, "message": "Geçerli bir stok değeri giriniz."})
			}
			newStock = *body.NewStockValue
			quantityChange = newStock - previousStock
			movementType = models.MovementCorrection

		case "fire":
			if body.MovementQuantity == nil || *body.MovementQuantity <= 0 {
				return c.JSON(fiber.Map{"success": false, "message": "Fire miktarını giriniz."})
			}
			if note == "" {
				return c.JSON(fiber.Map{"success": false, "message": "Fire nedenini açıklamak zorunludur (örn: 'Fare kolaları delmiş')."})
			}
			quantityChange = -*body.MovementQuantity
			movementType = models.MovementOut
			newStock = previousStock + quantityChange
			if newStock < 0 {
				return c.JSON(fiber.Map{"success": false, "message": fmt.Sprintf("Stok sıfırın altına düşemez. Mevcut stok: %d", previousStock)})
			}

		default: // movement
			if body.MovementQuantity == nil || *body.MovementQuantity <= 0 {
				return c.JSON(fiber.Map{"success": false, "message": "Geçerli bir miktar giriniz."})
			}
			if note == "" {
				return c.JSON(fiber.Map{"success": false, "message": "Hareket bazlı işlem için açıklama zorunludur."})
			}
			if body.MovementDirection == "in" {
				quantityChange = *body.MovementQuantity
				movementType = models.MovementIn
			} else {
				quantityChange = -*body.MovementQuantity
				movementType = models.MovementOut
			}
			newStock = previousStock + quantityChange
			if newStock < 0 {
				return c.JSON(fiber.Map{"success": false, "message": "Stok miktarı sıfırın altına düşemez."})
			}
		}

		if body.AlertThreshold != nil && *body.AlertThreshold >= 0 {
			item.AlertThreshold = *body.AlertThreshold
		}
		if body.CriticalThreshold != nil && *body.CriticalThreshold >= 0 {
			item.CriticalThreshold = *body.CriticalThreshold
		}
		item.StockQuantity = newStock

		err := database.DB.Transaction(func(tx *gorm.DB) error {
			if err := tx.Model(&models.MenuItem{}).Where("id = ?", item.ID).
				Updates(map[string]any{
					"stock_quantity":     item.StockQuantity,
					"alert_threshold":    item.AlertThreshold,
					"critical_threshold": item.CriticalThreshold,
				}).Error; err != nil {
				return err
			}

			var sourceType *string
			if body.UpdateMode == "fire" {
				src := models.SourceStock
				sourceType = &src
			}
			var notePtr *string
			if note != "" {
				notePtr = &note
			}
			unitPrice := item.Price

			logRow := models.StockLog{
				MenuItemID:     item.ID,
				MovementType:   movementType,
				QuantityChange: quantityChange,
				PreviousStock:  previousStock,
				NewStock:       newStock,
				Note:           notePtr,
				SourceType:     sourceType,
				UnitPrice:      &unitPrice,
			}
			return tx.Create(&logRow).Error
		})
		if err != nil {
			return c.JSON(fiber.Map{"success": false, "message": "Stok güncellenirken hata oluştu: " + err.Error()})
		}

		_ = audit.WriteLog(audit.LogOptions{
			UserID:      auth.CurrentUserID(c),
			UserName:    auth.CurrentUserName(c),
			EntityType:  "menu_item",
			EntityID:    item.ID,
			Action:      models.AuditActionUpdate,
			Description: fmt.Sprintf("Stok güncellendi: %s (%d → %d)", item.Name, previousStock, newStock),
		})

		st := item.StockStatus()
		return c.JSON(fiber.Map{
			"success":            true,
			"new_stock":          newStock,
			"status":             st,
			"status_label":       statusLabel(st),
			"alert_threshold":    item.AlertThreshold,
			"critical_threshold": item.CriticalThreshold,
			"message":            fmt.Sprintf("Stok güncellendi. Yeni stok: %d", newStock),
		})
	}
}

// GET /api/stock/:id/history
func GetHistoryHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil {
			return c.JSON(fiber.Map{"success": false, "message": "Geçersiz ürün ID."})
		}

		var item models.MenuItem
		if err := database.DB.First(&item, id).Error; err != nil {
			return c.JSON(fiber.Map{"success": false, "message": "Ürün bulunamadı."})
		}

		var logs []models.StockLog
		if err := database.DB.
			Where("menu_item_id = ?", id).
			Order("created_at DESC").
			Limit(50).
			Find(&logs).Error; err != nil {
			return c.JSON(fiber.Map{"success": false, "message": "Stok geçmişi getirilemedi."})
		}

		type logRow struct {
			ID             uint   `json:"id"`
			CreatedAt      string `json:"created_at"`
			MovementType   string `json:"movement_type"`
			QuantityChange int    `json:"quantity_change"`
			PreviousStock  int    `json:"previous_stock"`
			NewStock       int    `json:"new_stock"`
			Note           string `json:"note"`
			SourceType     string `json:"source_type"`
			OrderID        *uint  `json:"order_id"`
		}
		out := make([]logRow, 0, len(logs))
		for _, l := range logs {
			row := logRow{
				ID:             l.ID,
				CreatedAt:      l.CreatedAt.Format("02.01.2006 15:04"),
				MovementType:   l.MovementType,
				QuantityChange: l.QuantityChange,
				PreviousStock:  l.PreviousStock,
				NewStock:       l.NewStock,
				Note:           "—",
				OrderID:        l.OrderID,
			}
			if l.Note != nil && *l.Note != "" {
				row.Note = *l.Note
			}
			if l.SourceType != nil {
				row.SourceType = *l.SourceType
			}
			out = append(out, row)
		}

		return c.JSON(fiber.Map{
			"success":   true,
			"item_name": item.Name,
			"sku":       fmt.Sprintf("SKU-%04d", item.ID),
			"logs":      out,
		})
	}
}

// POST /api/stock/toggle-track  (yalnızca admin)
func ToggleTrackHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body ToggleTrackRequest
		if err := c.BodyParser(&body); err != nil {
			return c.JSON(fiber.Map{"success": false, "message": "Geçersiz istek gövdesi."})
		}

		var item models.MenuItem
		if err := database.DB.First(&item, body.MenuItemID).Error; err != nil {
			return c.JSON(fiber.Map{"success": false, "message": "Ürün bulunamadı."})
		}

		item.TrackStock = body.TrackStock
		if err := database.DB.Model(&item).Update("track_stock", item.TrackStock).Error; err != nil {
			return c.JSON(fiber.Map{"success": false, "message": "Stok takibi güncellenirken hata oluştu: " + err.Error()})
		}

		msg := "Stok takibi kapatıldı."
		if item.TrackStock {
			msg = "Stok takibi aktif edildi."
		}
		st := item.StockStatus()
		return c.JSON(fiber.Map{
			"success":      true,
			"track_stock":  item.TrackStock,
			"status":       st,
			"status_label": statusLabel(st),
			"message":      msg,
		})
	}
}
