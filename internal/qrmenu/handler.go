// Package qrmenu, müşterilerin QR kod ile açtığı menü uçlarını içerir.
// Bu uçlar kimlik doğrulama gerektirmez.
package qrmenu

import (
	"net/url"
	"strings"

	"adisyon-backend/internal/database"
	"adisyon-backend/internal/models"
	"adisyon-backend/internal/ws"

	"github.com/gofiber/fiber/v2"
)

type CallWaiterRequest struct {
	TableName string `json:"table_name"`
}

type qrMenuItem struct {
	ID           uint   `json:"id"`
	Name         string `json:"name"`
	CategoryName string `json:"category_name"`
	Price        string `json:"price"`
	Description  string `json:"description"`
}

// GET /api/qr-menu/:table_name
// Boşluk içeren masa adları URL-encode ile gelir ("Teras%201").
func MenuHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		name, err := url.QueryUnescape(c.Params("table_name"))
		if err != nil || strings.TrimSpace(name) == "" {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz masa adı")
		}

		var table models.Table
		if err := database.DB.Where("name = ?", name).First(&table).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Masa bulunamadı")
		}

		var items []models.MenuItem
		if err := database.DB.Preload("Category").
			Where("is_deleted = ? AND is_available = ?", false, true).
			Order("category_id, name").
			Find(&items).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Menü getirilemedi")
		}

		out := make([]qrMenuItem, 0, len(items))
		for i := range items {
			m := &items[i]
			out = append(out, qrMenuItem{
				ID:           m.ID,
				Name:         m.Name,
				CategoryName: m.Category.Name,
				Price:        m.Price.StringFixed(2),
				Description:  m.Description,
			})
		}

		return c.JSON(fiber.Map{
			"table_name":       table.Name,
			"is_waiter_called": table.IsWaiterCalled,
			"items":            out,
		})
	}
}

// POST /api/qr-menu/call-waiter
// Tekrarlı basışlar yeni kayıt ya da yayın üretmez.
func CallWaiterHandler(hub *ws.Hub) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CallWaiterRequest
		if err := c.BodyParser(&body); err != nil || strings.TrimSpace(body.TableName) == "" {
			return c.Status(fiber.StatusBadRequest).
				JSON(fiber.Map{"success": false, "message": "Geçersiz masa adı."})
		}

		var table models.Table
		if err := database.DB.Where("name = ?", strings.TrimSpace(body.TableName)).First(&table).Error; err != nil {
			return c.Status(fiber.StatusNotFound).
				JSON(fiber.Map{"success": false, "message": "Masa bulunamadı."})
		}

		if table.IsWaiterCalled {
			return c.JSON(fiber.Map{"success": true, "already_called": true, "message": "Garson zaten çağrıldı."})
		}

		if err := database.DB.Model(&table).Update("is_waiter_called", true).Error; err != nil {
			return c.JSON(fiber.Map{"success": false, "message": "Çağrı kaydedilirken hata oluştu: " + err.Error()})
		}

		hub.Broadcast(ws.Event{Type: "waiter_called", TableName: table.Name})

		return c.JSON(fiber.Map{"success": true, "already_called": false, "message": "Garson çağrıldı."})
	}
}
