package menu

import (
	"fmt"
	"strings"

	"adisyon-backend/internal/audit"
	"adisyon-backend/internal/auth"
	"adisyon-backend/internal/database"
	"adisyon-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

type CategoryRequest struct {
	Name      string `json:"name"`
	SortOrder int    `json:"sort_order"`
	IsActive  *bool  `json:"is_active"`
}

// GET /api/categories
func ListCategoriesHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		q := database.DB.Order("sort_order, name")
		if c.Query("all") != "true" {
			q = q.Where("is_active = ?", true)
		}

		var categories []models.Category
		if err := q.Find(&categories).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Kategoriler getirilemedi")
		}
		return c.JSON(categories)
	}
}

// POST /api/categories  (yalnızca admin)
func CreateCategoryHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CategoryRequest
		if err := c.BodyParser(&body); err != nil {
			return c.JSON(fiber.Map{"success": false, "message": "Geçersiz istek gövdesi."})
		}

		name := strings.TrimSpace(body.Name)
		if name == "" {
			return c.JSON(fiber.Map{"success": false, "message": "Kategori adı boş olamaz."})
		}

		var count int64
		database.DB.Model(&models.Category{}).Where("name = ?", name).Count(&count)
		if count > 0 {
			return c.JSON(fiber.Map{"success": false, "message": fmt.Sprintf("'%s' adında bir kategori zaten var.", name)})
		}

		cat := models.Category{Name: name, SortOrder: body.SortOrder, IsActive: true}
		if body.IsActive != nil {
			cat.IsActive = *body.IsActive
		}
		if err := database.DB.Create(&cat).Error; err != nil {
			return c.JSON(fiber.Map{"success": false, "message": "Kategori eklenirken hata oluştu: " + err.Error()})
		}

		_ = audit.WriteLog(audit.LogOptions{
			UserID:      auth.CurrentUserID(c),
			UserName:    auth.CurrentUserName(c),
			EntityType:  "category",
			EntityID:    cat.ID,
			Action:      models.AuditActionCreate,
			Description: fmt.Sprintf("Kategori eklendi: %s", cat.Name),
			After:       cat,
		})

		return c.JSON(fiber.Map{"success": true, "message": "Kategori eklendi."})
	}
}

// PUT /api/categories/:id  (yalnızca admin)
func UpdateCategoryHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil {
			return c.JSON(fiber.Map{"success": false, "message": "Geçersiz kategori ID."})
		}

		var cat models.Category
		if err := database.DB.First(&cat, id).Error; err != nil {
			return c.JSON(fiber.Map{"success": false, "message": "Kategori bulunamadı."})
		}

		var body CategoryRequest
		if err := c.BodyParser(&body); err != nil {
			return c.JSON(fiber.Map{"success": false, "message": "Geçersiz istek gövdesi."})
		}
		if name := strings.TrimSpace(body.Name); name != "" {
			cat.Name = name
		}
		cat.SortOrder = body.SortOrder
		if body.IsActive != nil {
			cat.IsActive = *body.IsActive
		}

		if err := database.DB.Save(&cat).Error; err != nil {
			return c.JSON(fiber.Map{"success": false, "message": "Kategori güncellenirken hata oluştu: " + err.Error()})
		}

		return c.JSON(fiber.Map{"success": true, "message": "Kategori güncellendi."})
	}
}

// DELETE /api/categories/:id  (yalnızca admin)
// Ürünü olan kategori silinmez; önce ürünler taşınmalı veya silinmelidir.
func DeleteCategoryHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil {
			return c.JSON(fiber.Map{"success": false, "message": "Geçersiz kategori ID."})
		}

		var cat models.Category
		if err := database.DB.First(&cat, id).Error; err != nil {
			return c.JSON(fiber.Map{"success": false, "message": "Kategori bulunamadı."})
		}

		var itemCount int64
		database.DB.Model(&models.MenuItem{}).
			Where("category_id = ? AND is_deleted = ?", id, false).Count(&itemCount)
		if itemCount > 0 {
			return c.JSON(fiber.Map{"success": false, "message": "Bu kategoride ürünler var; önce ürünleri taşıyın veya silin."})
		}

		if err := database.DB.Delete(&cat).Error; err != nil {
			return c.JSON(fiber.Map{"success": false, "message": "Kategori silinirken hata oluştu: " + err.Error()})
		}

		_ = audit.WriteLog(audit.LogOptions{
			UserID:      auth.CurrentUserID(c),
			UserName:    auth.CurrentUserName(c),
			EntityType:  "category",
			EntityID:    cat.ID,
			Action:      models.AuditActionDelete,
			Description: fmt.Sprintf("Kategori silindi: %s", cat.Name),
			Before:      cat,
		})

		return c.JSON(fiber.Map{"success": true, "message": "Kategori silindi."})
	}
}
