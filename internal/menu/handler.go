package menu

import (
	"fmt"
	"strings"

	"adisyon-backend/internal/audit"
	"adisyon-backend/internal/auth"
	"adisyon-backend/internal/database"
	"adisyon-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

type MenuItemRequest struct {
	Name              string `json:"name"`
	CategoryID        uint   `json:"category_id"`
	Price             string `json:"price"` // "12,50" veya "12.50"
	CostPrice         string `json:"cost_price"`
	Description       string `json:"description"`
	StockQuantity     int    `json:"stock_quantity"`
	TrackStock        bool   `json:"track_stock"`
	AlertThreshold    int    `json:"alert_threshold"`
	CriticalThreshold int    `json:"critical_threshold"`
	IsAvailable       bool   `json:"is_available"`
}

type menuItemResponse struct {
	ID                uint               `json:"id"`
	Name              string             `json:"name"`
	CategoryID        uint               `json:"category_id"`
	CategoryName      string             `json:"category_name"`
	Price             string             `json:"price"`
	Description       string             `json:"description"`
	StockQuantity     int                `json:"stock_quantity"`
	TrackStock        bool               `json:"track_stock"`
	AlertThreshold    int                `json:"alert_threshold"`
	CriticalThreshold int                `json:"critical_threshold"`
	IsAvailable       bool               `json:"is_available"`
	StockStatus       models.StockStatus `json:"stock_status"`
}

// parsePrice: Türkçe klavyeden virgüllü girilen fiyatları da kabul eder.
func parsePrice(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(s), ",", "."))
}

func toMenuItemResponse(m *models.MenuItem) menuItemResponse {
	return menuItemResponse{
		ID:                m.ID,
		Name:              m.Name,
		CategoryID:        m.CategoryID,
		CategoryName:      m.Category.Name,
		Price:             m.Price.StringFixed(2),
		Description:       m.Description,
		StockQuantity:     m.StockQuantity,
		TrackStock:        m.TrackStock,
		AlertThreshold:    m.AlertThreshold,
		CriticalThreshold: m.CriticalThreshold,
		IsAvailable:       m.IsAvailable,
		StockStatus:       m.StockStatus(),
	}
}

// GET /api/menu
// Silinmişler listelenmez; kategori ve ada göre sıralı döner.
func ListMenuItemsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		q := database.DB.Preload("Category").Where("is_deleted = ?", false)

		if catID, err := c.ParamsInt("category_id"); err == nil && catID > 0 {
			q = q.Where("category_id = ?", catID)
		} else if catStr := c.Query("category_id"); catStr != "" {
			q = q.Where("category_id = ?", catStr)
		}
		if search := strings.TrimSpace(c.Query("search")); search != "" {
			q = q.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(search)+"%")
		}

		var items []models.MenuItem
		if err := q.Order("category_id, name").Find(&items).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Menü getirilemedi")
		}

		lowStock := false
		out := make([]menuItemResponse, 0, len(items))
		for i := range items {
			if items[i].IsLowStock() || items[i].IsCriticalStock() {
				lowStock = true
			}
			out = append(out, toMenuItemResponse(&items[i]))
		}

		return c.JSON(fiber.Map{
			"items":         out,
			"has_low_stock": lowStock,
		})
	}
}

// POST /api/menu  (yalnızca admin)
func CreateMenuItemHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body MenuItemRequest
		if err := c.BodyParser(&body); err != nil {
			return c.JSON(fiber.Map{"success": false, "message": "Geçersiz istek gövdesi."})
		}

		name := strings.TrimSpace(body.Name)
		if name == "" {
			return c.JSON(fiber.Map{"success": false, "message": "Ürün adı boş olamaz."})
		}
		price, err := parsePrice(body.Price)
		if err != nil || price.IsNegative() {
			return c.JSON(fiber.Map{"success": false, "message": "Geçerli bir fiyat giriniz."})
		}

		var catCount int64
		database.DB.Model(&models.Category{}).Where("id = ?", body.CategoryID).Count(&catCount)
		if catCount == 0 {
			return c.JSON(fiber.Map{"success": false, "message": "Geçersiz kategori seçildi."})
		}

		item := models.MenuItem{
			Name:              name,
			CategoryID:        body.CategoryID,
			Price:             price,
			Description:       strings.TrimSpace(body.Description),
			StockQuantity:     body.StockQuantity,
			TrackStock:        body.TrackStock,
			AlertThreshold:    body.AlertThreshold,
			CriticalThreshold: body.CriticalThreshold,
			IsAvailable:       body.IsAvailable,
		}
		if cp, err := parsePrice(body.CostPrice); err == nil && body.CostPrice != "" {
			item.CostPrice = &cp
		}

		if err := database.DB.Create(&item).Error; err != nil {
			return c.JSON(fiber.Map{"success": false, "message": "Ürün eklenirken hata oluştu: " + err.Error()})
		}

		_ = audit.WriteLog(audit.LogOptions{
			UserID:      auth.CurrentUserID(c),
			UserName:    auth.CurrentUserName(c),
			EntityType:  "menu_item",
			EntityID:    item.ID,
			Action:      models.AuditActionCreate,
			Description: fmt.Sprintf("Ürün eklendi: %s (₺%s)", item.Name, item.Price.StringFixed(2)),
			After:       item,
		})

		return c.JSON(fiber.Map{"success": true, "message": "Ürün başarıyla eklendi."})
	}
}

// PUT /api/menu/:id  (yalnızca admin)
func UpdateMenuItemHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil {
			return c.JSON(fiber.Map{"success": false, "message": "Geçersiz ürün ID."})
		}

		var item models.MenuItem
		if err := database.DB.First(&item, id).Error; err != nil {
			return c.JSON(fiber.Map{"success": false, "message": "Ürün bulunamadı."})
		}

		var body MenuItemRequest
		if err := c.BodyParser(&body); err != nil {
			return c.JSON(fiber.Map{"success": false, "message": "Geçersiz istek gövdesi."})
		}

		name := strings.TrimSpace(body.Name)
		if name == "" {
			return c.JSON(fiber.Map{"success": false, "message": "Ürün adı boş olamaz."})
		}
		price, err := parsePrice(body.Price)
		if err != nil || price.IsNegative() {
			return c.JSON(fiber.Map{"success": false, "message": "Geçerli bir fiyat giriniz."})
		}

		var catCount int64
		database.DB.Model(&models.Category{}).Where("id = ?", body.CategoryID).Count(&catCount)
		if catCount == 0 {
			return c.JSON(fiber.Map{"success": false, "message": "Geçersiz kategori seçildi."})
		}

		before := item

		item.Name = name
		item.CategoryID = body.CategoryID
		item.Price = price
		item.Description = strings.TrimSpace(body.Description)
		item.StockQuantity = body.StockQuantity
		item.TrackStock = body.TrackStock
		item.AlertThreshold = body.AlertThreshold
		item.CriticalThreshold = body.CriticalThreshold
		item.IsAvailable = body.IsAvailable
		if cp, err := parsePrice(body.CostPrice); err == nil && body.CostPrice != "" {
			item.CostPrice = &cp
		}

		if err := database.DB.Save(&item).Error; err != nil {
			return c.JSON(fiber.Map{"success": false, "message": "Ürün güncellenirken hata oluştu: " + err.Error()})
		}

		_ = audit.WriteLog(audit.LogOptions{
			UserID:      auth.CurrentUserID(c),
			UserName:    auth.CurrentUserName(c),
			EntityType:  "menu_item",
			EntityID:    item.ID,
			Action:      models.AuditActionUpdate,
			Description: fmt.Sprintf("Ürün güncellendi: %s", item.Name),
			Before:      before,
			After:       item,
		})

		return c.JSON(fiber.Map{"success": true, "message": "Ürün güncellendi."})
	}
}

// DELETE /api/menu/:id  (yalnızca admin)
// Geçmiş siparişlerde geçen ürün fiziksel silinmez; pasife alınır ki eski
// adisyon kayıtları kopmasın. Hiç kullanılmamışsa kalıcı silinir.
func DeleteMenuItemHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil {
			return c.JSON(fiber.Map{"success": false, "message": "Geçersiz ürün ID."})
		}

		var item models.MenuItem
		if err := database.DB.First(&item, id).Error; err != nil {
			return c.JSON(fiber.Map{"success": false, "message": "Ürün bulunamadı."})
		}

		var usedCount int64
		database.DB.Model(&models.OrderItem{}).Where("menu_item_id = ?", id).Count(&usedCount)

		if usedCount > 0 {
			if err := database.DB.Model(&item).Updates(map[string]any{
				"is_deleted":   true,
				"is_available": false,
			}).Error; err != nil {
				return c.JSON(fiber.Map{"success": false, "message": "Ürün pasife alınırken hata oluştu: " + err.Error()})
			}
			_ = audit.WriteLog(audit.LogOptions{
				UserID:      auth.CurrentUserID(c),
				UserName:    auth.CurrentUserName(c),
				EntityType:  "menu_item",
				EntityID:    item.ID,
				Action:      models.AuditActionUpdate,
				Description: fmt.Sprintf("Ürün pasife alındı: %s", item.Name),
				Before:      item,
			})
			return c.JSON(fiber.Map{"success": true, "message": "Ürün pasife alındı (geçmiş siparişlerde kullanılmış)."})
		}

		if err := database.DB.Delete(&item).Error; err != nil {
			return c.JSON(fiber.Map{"success": false, "message": "Ürün silinirken hata oluştu: " + err.Error()})
		}

		_ = audit.WriteLog(audit.LogOptions{
			UserID:      auth.CurrentUserID(c),
			UserName:    auth.CurrentUserName(c),
			EntityType:  "menu_item",
			EntityID:    item.ID,
			Action:      models.AuditActionDelete,
			Description: fmt.Sprintf("Ürün silindi: %s", item.Name),
			Before:      item,
		})

		return c.JSON(fiber.Map{"success": true, "message": "Ürün silindi."})
	}
}

// GET /api/menu/:id
func GetMenuItemHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz ürün ID")
		}

		var item models.MenuItem
		if err := database.DB.Preload("Category").First(&item, id).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Ürün bulunamadı")
		}

		return c.JSON(toMenuItemResponse(&item))
	}
}
