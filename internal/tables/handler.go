package tables

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"adisyon-backend/internal/audit"
	"adisyon-backend/internal/auth"
	"adisyon-backend/internal/database"
	"adisyon-backend/internal/models"
	"adisyon-backend/internal/ws"

	"github.com/gofiber/fiber/v2"
)

// Rezerve masalar, rezervasyon saatinden 30 dakika sonra hâlâ açılmamışsa
// otomatik boşa düşer.
const reservationGrace = 30 * time.Minute

type TableCreateRequest struct {
	Name     string `json:"name"`
	Capacity int    `json:"capacity"`
}

type TableReserveRequest struct {
	TableID    uint   `json:"table_id"`
	Name       string `json:"name"`
	Phone      string `json:"phone"`
	GuestCount int    `json:"guest_count"`
	Time       string `json:"time"` // "HH:MM", bugünün saati
}

type DismissWaiterRequest struct {
	TableName string `json:"table_name"`
}

type tableResponse struct {
	ID             uint               `json:"id"`
	Name           string             `json:"name"`
	Capacity       int                `json:"capacity"`
	Status         models.TableStatus `json:"status"`
	IsWaiterCalled bool               `json:"is_waiter_called"`

	ReservationName       *string    `json:"reservation_name,omitempty"`
	ReservationPhone      *string    `json:"reservation_phone,omitempty"`
	ReservationGuestCount *int       `json:"reservation_guest_count,omitempty"`
	ReservationTime       *time.Time `json:"reservation_time,omitempty"`

	OpenOrderID *uint  `json:"open_order_id,omitempty"`
	OpenTotal   string `json:"open_total,omitempty"`
	ItemCount   int    `json:"item_count"`
}

var tableNamePattern = regexp.MustCompile(`^(.*?)(\d+)(.*)$`)

// naturalSortKey: "Masa 10" sayısal kısmına göre "Masa 2"den sonra gelir.
func naturalSortKey(name string) (string, int, string) {
	if m := tableNamePattern.FindStringSubmatch(name); m != nil {
		n, _ := strconv.Atoi(m[2])
		return strings.ToLower(m[1]), n, strings.ToLower(m[3])
	}
	return strings.ToLower(name), 0, ""
}

func naturalLess(a, b string) bool {
	ap, an, as := naturalSortKey(a)
	bp, bn, bs := naturalSortKey(b)
	if ap != bp {
		return ap < bp
	}
	if an != bn {
		return an < bn
	}
	return as < bs
}

// sweepExpiredReservations: süresi geçen rezervasyonları boşa çeker.
// Listeleme öncesi çağrılır; ayrı bir zamanlayıcı yoktur.
func sweepExpiredReservations() {
	cutoff := time.Now().UTC().Add(-reservationGrace)

	var expired []models.Table
	if err := database.DB.
		Where("status = ? AND reservation_time IS NOT NULL AND reservation_time <= ?", models.TableStatusReserved, cutoff).
		Find(&expired).Error; err != nil {
		return
	}
	for i := range expired {
		database.DB.Model(&expired[i]).Updates(map[string]any{
			"status":                  models.TableStatusEmpty,
			"reservation_name":        nil,
			"reservation_phone":       nil,
			"reservation_guest_count": nil,
			"reservation_time":        nil,
		})
	}
}

// GET /api/tables
func ListTablesHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		sweepExpiredReservations()

		var tables []models.Table
		if err := database.DB.
			Preload("Orders", "status = ?", models.OrderStatusOpen).
			Preload("Orders.Items").
			Find(&tables).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Masalar getirilemedi")
		}

		for i := 1; i < len(tables); i++ {
			for j := i; j > 0 && naturalLess(tables[j].Name, tables[j-1].Name); j-- {
				tables[j], tables[j-1] = tables[j-1], tables[j]
			}
		}

		occupied := 0
		out := make([]tableResponse, 0, len(tables))
		for i := range tables {
			t := &tables[i]
			if t.Status == models.TableStatusOccupied {
				occupied++
			}
			resp := tableResponse{
				ID:                    t.ID,
				Name:                  t.Name,
				Capacity:              t.Capacity,
				Status:                t.Status,
				IsWaiterCalled:        t.IsWaiterCalled,
				ReservationName:       t.ReservationName,
				ReservationPhone:      t.ReservationPhone,
				ReservationGuestCount: t.ReservationGuestCount,
				ReservationTime:       t.ReservationTime,
			}
			if len(t.Orders) > 0 {
				o := &t.Orders[0]
				resp.OpenOrderID = &o.ID
				resp.OpenTotal = o.Total.StringFixed(2)
				for j := range o.Items {
					if o.Items[j].Status != models.OrderItemStatusCancelled {
						resp.ItemCount += o.Items[j].ActiveQuantity()
					}
				}
			}
			out = append(out, resp)
		}

		return c.JSON(fiber.Map{
			"tables":         out,
			"occupied_count": occupied,
		})
	}
}

// POST /api/tables  (yalnızca admin)
func CreateTableHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body TableCreateRequest
		if err := c.BodyParser(&body); err != nil {
			return c.JSON(fiber.Map{"success": false, "message": "Geçersiz istek gövdesi."})
		}

		name := strings.TrimSpace(body.Name)
		if name == "" {
			return c.JSON(fiber.Map{"success": false, "message": "Masa adı boş olamaz."})
		}
		if body.Capacity < 1 || body.Capacity > 20 {
			return c.JSON(fiber.Map{"success": false, "message": "Kapasite 1 ile 20 arasında olmalıdır."})
		}

		var count int64
		database.DB.Model(&models.Table{}).Where("name = ?", name).Count(&count)
		if count > 0 {
			return c.JSON(fiber.Map{"success": false, "message": fmt.Sprintf("'%s' adında bir masa zaten var.", name)})
		}

		table := models.Table{
			Name:     name,
			Capacity: body.Capacity,
			Status:   models.TableStatusEmpty,
		}
		if err := database.DB.Create(&table).Error; err != nil {
			return c.JSON(fiber.Map{"success": false, "message": "Masa eklenirken hata oluştu: " + err.Error()})
		}

		_ = audit.WriteLog(audit.LogOptions{
			UserID:      auth.CurrentUserID(c),
			UserName:    auth.CurrentUserName(c),
			EntityType:  "table",
			EntityID:    table.ID,
			Action:      models.AuditActionCreate,
			Description: fmt.Sprintf("Masa eklendi: %s (kapasite %d)", table.Name, table.Capacity),
			After:       table,
		})

		return c.JSON(fiber.Map{"success": true, "message": fmt.Sprintf("'%s' başarıyla eklendi.", name)})
	}
}

// DELETE /api/tables/:id  (yalnızca admin)
func DeleteTableHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil {
			return c.JSON(fiber.Map{"success": false, "message": "Geçersiz masa kimliği."})
		}

		var table models.Table
		if err := database.DB.First(&table, id).Error; err != nil {
			return c.JSON(fiber.Map{"success": false, "message": "Masa bulunamadı."})
		}
		if table.Status == models.TableStatusOccupied {
			return c.JSON(fiber.Map{"success": false, "message": "Açık adisyonu olan masa silinemez."})
		}

		if err := database.DB.Delete(&table).Error; err != nil {
			return c.JSON(fiber.Map{"success": false, "message": "Masa silinirken hata oluştu: " + err.Error()})
		}

		_ = audit.WriteLog(audit.LogOptions{
			UserID:      auth.CurrentUserID(c),
			UserName:    auth.CurrentUserName(c),
			EntityType:  "table",
			EntityID:    table.ID,
			Action:      models.AuditActionDelete,
			Description: fmt.Sprintf("Masa silindi: %s", table.Name),
			Before:      table,
		})

		return c.JSON(fiber.Map{"success": true, "message": fmt.Sprintf("'%s' silindi.", table.Name)})
	}
}

// POST /api/tables/reserve
func ReserveHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body TableReserveRequest
		if err := c.BodyParser(&body); err != nil {
			return c.JSON(fiber.Map{"success": false, "message": "Geçersiz istek gövdesi."})
		}

		var table models.Table
		if err := database.DB.First(&table, body.TableID).Error; err != nil {
			return c.JSON(fiber.Map{"success": false, "message": "Masa bulunamadı."})
		}
		if table.Status != models.TableStatusEmpty {
			return c.JSON(fiber.Map{"success": false, "message": "Yalnızca boş masalar rezerve edilebilir."})
		}
		if strings.TrimSpace(body.Name) == "" {
			return c.JSON(fiber.Map{"success": false, "message": "İsim soyisim boş olamaz."})
		}
		if strings.TrimSpace(body.Phone) == "" {
			return c.JSON(fiber.Map{"success": false, "message": "Telefon numarası boş olamaz."})
		}
		if body.GuestCount < 1 || body.GuestCount > table.Capacity {
			return c.JSON(fiber.Map{"success": false, "message": fmt.Sprintf("Kişi sayısı 1 ile %d arasında olmalıdır.", table.Capacity)})
		}

		parsed, err := time.Parse("15:04", strings.TrimSpace(body.Time))
		if err != nil {
			return c.JSON(fiber.Map{"success": false, "message": "Geçerli bir rezervasyon saati giriniz."})
		}

		// Saat bugünün tarihiyle birleştirilir; birkaç dakika öncesine tolerans tanınır.
		now := time.Now()
		resLocal := time.Date(now.Year(), now.Month(), now.Day(), parsed.Hour(), parsed.Minute(), 0, 0, now.Location())
		if resLocal.Before(now.Add(-5 * time.Minute)) {
			return c.JSON(fiber.Map{"success": false, "message": "Rezervasyon saati geçmiş bir saat olamaz."})
		}

		name := strings.TrimSpace(body.Name)
		phone := strings.TrimSpace(body.Phone)
		resUTC := resLocal.UTC()
		if err := database.DB.Model(&table).Updates(map[string]any{
			"status":                  models.TableStatusReserved,
			"reservation_name":        name,
			"reservation_phone":       phone,
			"reservation_guest_count": body.GuestCount,
			"reservation_time":        resUTC,
		}).Error; err != nil {
			return c.JSON(fiber.Map{"success": false, "message": "Rezervasyon kaydedilirken hata oluştu: " + err.Error()})
		}

		return c.JSON(fiber.Map{"success": true, "message": fmt.Sprintf("'%s' — %s adına rezerve edildi.", table.Name, name)})
	}
}

// POST /api/tables/cancel-reserve
func CancelReserveHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body TableReserveRequest
		if err := c.BodyParser(&body); err != nil {
			return c.JSON(fiber.Map{"success": false, "message": "Geçersiz istek gövdesi."})
		}

		var table models.Table
		if err := database.DB.First(&table, body.TableID).Error; err != nil {
			return c.JSON(fiber.Map{"success": false, "message": "Masa bulunamadı."})
		}
		if table.Status != models.TableStatusReserved {
			return c.JSON(fiber.Map{"success": false, "message": "Bu masa zaten rezerve değil."})
		}

		if err := database.DB.Model(&table).Updates(map[string]any{
			"status":                  models.TableStatusEmpty,
			"reservation_name":        nil,
			"reservation_phone":       nil,
			"reservation_guest_count": nil,
			"reservation_time":        nil,
		}).Error; err != nil {
			return c.JSON(fiber.Map{"success": false, "message": "Rezervasyon iptal edilirken hata oluştu: " + err.Error()})
		}

		return c.JSON(fiber.Map{"success": true, "message": fmt.Sprintf("'%s' rezervasyonu iptal edildi.", table.Name)})
	}
}

// POST /api/tables/dismiss-waiter
// Garson çağrısını kapatır ve tüm ekranlara bildirir.
func DismissWaiterHandler(hub *ws.Hub) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body DismissWaiterRequest
		if err := c.BodyParser(&body); err != nil {
			return c.JSON(fiber.Map{"success": false, "message": "Geçersiz istek gövdesi."})
		}
		if strings.TrimSpace(body.TableName) == "" {
			return c.JSON(fiber.Map{"success": false, "message": "Geçersiz masa adı."})
		}

		var table models.Table
		if err := database.DB.Where("name = ?", strings.TrimSpace(body.TableName)).First(&table).Error; err != nil {
			return c.JSON(fiber.Map{"success": false, "message": "Masa bulunamadı."})
		}

		if err := database.DB.Model(&table).Update("is_waiter_called", false).Error; err != nil {
			return c.JSON(fiber.Map{"success": false, "message": "Çağrı kapatılırken hata oluştu: " + err.Error()})
		}

		hub.Broadcast(ws.Event{Type: "waiter_dismissed", TableName: table.Name})

		return c.JSON(fiber.Map{"success": true})
	}
}
