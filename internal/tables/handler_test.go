package tables

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"adisyon-backend/internal/database"
	"adisyon-backend/internal/models"
	"adisyon-backend/internal/ws"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func setupTestApp(t *testing.T) *fiber.App {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("test veritabanı açılamadı: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrasyon başarısız: %v", err)
	}
	database.DB = db

	hub := ws.NewHub()
	app := fiber.New()
	app.Get("/api/tables", ListTablesHandler())
	app.Post("/api/tables", CreateTableHandler())
	app.Delete("/api/tables/:id", DeleteTableHandler())
	app.Post("/api/tables/reserve", ReserveHandler())
	app.Post("/api/tables/cancel-reserve", CancelReserveHandler())
	app.Post("/api/tables/dismiss-waiter", DismissWaiterHandler(hub))
	app.Post("/api/tables/merge", MergeOrderHandler())
	return app
}

func postJSON(t *testing.T, app *fiber.App, path string, payload any) map[string]any {
	t.Helper()
	body, _ := json.Marshal(payload)
	req, _ := http.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("istek başarısız: %v", err)
	}
	defer resp.Body.Close()

	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("yanıt çözümlenemedi: %v", err)
	}
	return out
}

func seedTable(t *testing.T, name string, status models.TableStatus) models.Table {
	t.Helper()
	table := models.Table{Name: name, Capacity: 4, Status: status}
	if err := database.DB.Create(&table).Error; err != nil {
		t.Fatalf("masa eklenemedi: %v", err)
	}
	return table
}

func seedOpenOrder(t *testing.T, tableID uint, lines ...models.OrderItem) models.Order {
	t.Helper()
	order := models.Order{
		TableID:  tableID,
		Status:   models.OrderStatusOpen,
		OpenedBy: "test",
		OpenedAt: time.Now().UTC(),
	}
	if err := database.DB.Create(&order).Error; err != nil {
		t.Fatalf("adisyon eklenemedi: %v", err)
	}
	total := decimal.Zero
	for i := range lines {
		lines[i].OrderID = order.ID
		if lines[i].Status == "" {
			lines[i].Status = models.OrderItemStatusPending
		}
		if lines[i].AddedAt.IsZero() {
			lines[i].AddedAt = time.Now().UTC()
		}
		if err := database.DB.Create(&lines[i]).Error; err != nil {
			t.Fatalf("kalem eklenemedi: %v", err)
		}
		total = total.Add(lines[i].LineTotal)
	}
	order.Total = total
	database.DB.Model(&order).Update("total", total)
	database.DB.Model(&models.Table{}).Where("id = ?", tableID).
		Update("status", models.TableStatusOccupied)
	return order
}

func seedMenuItem(t *testing.T, name, price string) models.MenuItem {
	t.Helper()
	cat := models.Category{Name: "Kat-" + name, IsActive: true}
	if err := database.DB.Create(&cat).Error; err != nil {
		t.Fatalf("kategori eklenemedi: %v", err)
	}
	mi := models.MenuItem{
		Name:        name,
		CategoryID:  cat.ID,
		Price:       decimal.RequireFromString(price),
		IsAvailable: true,
	}
	if err := database.DB.Create(&mi).Error; err != nil {
		t.Fatalf("ürün eklenemedi: %v", err)
	}
	return mi
}

func TestCreateTableValidation(t *testing.T) {
	app := setupTestApp(t)

	out := postJSON(t, app, "/api/tables", map[string]any{"name": "  ", "capacity": 4})
	if out["success"] != false {
		t.Error("boş ad reddedilmeli")
	}

	out = postJSON(t, app, "/api/tables", map[string]any{"name": "Masa 1", "capacity": 25})
	if out["success"] != false {
		t.Error("kapasite 20'yi aşmamalı")
	}

	out = postJSON(t, app, "/api/tables", map[string]any{"name": "Masa 1", "capacity": 4})
	if out["success"] != true {
		t.Fatalf("masa eklenemedi: %v", out["message"])
	}
	out = postJSON(t, app, "/api/tables", map[string]any{"name": "Masa 1", "capacity": 4})
	if out["success"] != false {
		t.Error("aynı adla ikinci masa eklenmemeli")
	}
}

func TestDeleteOccupiedTableRejected(t *testing.T) {
	app := setupTestApp(t)
	table := seedTable(t, "Masa 1", models.TableStatusOccupied)

	req, _ := http.NewRequest(http.MethodDelete, fmt.Sprintf("/api/tables/%d", table.ID), nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("istek başarısız: %v", err)
	}
	defer resp.Body.Close()
	var out map[string]any
	json.NewDecoder(resp.Body).Decode(&out)
	if out["success"] != false {
		t.Error("dolu masa silinememeli")
	}
}

func TestNaturalSortOrdersNumerically(t *testing.T) {
	if !naturalLess("Masa 2", "Masa 10") {
		t.Error("Masa 2, Masa 10'dan önce gelmeli")
	}
	if naturalLess("Masa 10", "Masa 2") {
		t.Error("Masa 10, Masa 2'den sonra gelmeli")
	}
	if !naturalLess("Bahçe 1", "Masa 1") {
		t.Error("önek alfabetik sıralanmalı")
	}
}

func TestReserveLifecycle(t *testing.T) {
	app := setupTestApp(t)
	table := seedTable(t, "Masa 1", models.TableStatusEmpty)

	// Saat bugüne sabitlenir; gece yarısını aşan saat ertesi güne sarkmaz,
	// günün son dakikasına çekilir.
	now := time.Now()
	future := now.Add(2 * time.Hour)
	if future.Day() != now.Day() {
		future = time.Date(now.Year(), now.Month(), now.Day(), 23, 59, 0, 0, now.Location())
	}
	futureTime := future.Format("15:04")
	out := postJSON(t, app, "/api/tables/reserve", map[string]any{
		"table_id": table.ID, "name": "Ayşe Yılmaz", "phone": "05551112233",
		"guest_count": 3, "time": futureTime,
	})
	if out["success"] != true {
		t.Fatalf("rezervasyon başarısız: %v", out["message"])
	}

	var fresh models.Table
	database.DB.First(&fresh, table.ID)
	if fresh.Status != models.TableStatusReserved {
		t.Errorf("masa rezerve olmalı, durum %d", fresh.Status)
	}
	if fresh.ReservationName == nil || *fresh.ReservationName != "Ayşe Yılmaz" {
		t.Error("rezervasyon adı kaydedilmeli")
	}

	// Kapasite üstü kişi sayısı reddedilir
	table2 := seedTable(t, "Masa 2", models.TableStatusEmpty)
	out = postJSON(t, app, "/api/tables/reserve", map[string]any{
		"table_id": table2.ID, "name": "Ali", "phone": "0555",
		"guest_count": 9, "time": futureTime,
	})
	if out["success"] != false {
		t.Error("kapasite üstü rezervasyon reddedilmeli")
	}

	out = postJSON(t, app, "/api/tables/cancel-reserve", map[string]any{"table_id": table.ID})
	if out["success"] != true {
		t.Fatalf("rezervasyon iptali başarısız: %v", out["message"])
	}
	database.DB.First(&fresh, table.ID)
	if fresh.Status != models.TableStatusEmpty || fresh.ReservationName != nil {
		t.Error("iptal sonrası rezervasyon alanları temizlenmeli")
	}
}

func TestExpiredReservationSweptOnListing(t *testing.T) {
	app := setupTestApp(t)
	table := seedTable(t, "Masa 1", models.TableStatusReserved)
	past := time.Now().UTC().Add(-time.Hour)
	name := "Geciken Misafir"
	database.DB.Model(&table).Updates(map[string]any{
		"reservation_name": name,
		"reservation_time": past,
	})

	req, _ := http.NewRequest(http.MethodGet, "/api/tables", nil)
	if _, err := app.Test(req); err != nil {
		t.Fatalf("listeleme başarısız: %v", err)
	}

	var fresh models.Table
	database.DB.First(&fresh, table.ID)
	if fresh.Status != models.TableStatusEmpty {
		t.Errorf("süresi geçen rezervasyon boşa düşmeli, durum %d", fresh.Status)
	}
	if fresh.ReservationName != nil {
		t.Error("rezervasyon alanları temizlenmeli")
	}
}

func TestMergeOrderMovesWhenTargetEmpty(t *testing.T) {
	app := setupTestApp(t)
	source := seedTable(t, "Masa 1", models.TableStatusEmpty)
	target := seedTable(t, "Masa 2", models.TableStatusEmpty)
	mi := seedMenuItem(t, "Çay", "10.00")

	order := seedOpenOrder(t, source.ID, models.OrderItem{
		MenuItemID: mi.ID, Quantity: 2,
		UnitPrice: mi.Price, LineTotal: decimal.RequireFromString("20.00"),
	})

	out := postJSON(t, app, "/api/tables/merge", map[string]any{
		"source_table_id": source.ID, "target_table_id": target.ID,
	})
	if out["success"] != true {
		t.Fatalf("taşıma başarısız: %v", out["message"])
	}

	var fresh models.Order
	database.DB.First(&fresh, order.ID)
	if fresh.TableID != target.ID {
		t.Errorf("adisyon hedef masaya taşınmalı, masa %d", fresh.TableID)
	}
	if fresh.Status != models.OrderStatusOpen {
		t.Errorf("taşınan adisyon açık kalmalı, %s bulundu", fresh.Status)
	}

	var src, dst models.Table
	database.DB.First(&src, source.ID)
	database.DB.First(&dst, target.ID)
	if src.Status != models.TableStatusEmpty || dst.Status != models.TableStatusOccupied {
		t.Errorf("masa durumları güncellenmeli: kaynak %d hedef %d", src.Status, dst.Status)
	}
}

func TestMergeOrderCombinesItemsAndPayments(t *testing.T) {
	app := setupTestApp(t)
	source := seedTable(t, "Masa 1", models.TableStatusEmpty)
	target := seedTable(t, "Masa 2", models.TableStatusEmpty)
	shared := seedMenuItem(t, "Kola", "20.00")
	only := seedMenuItem(t, "Tost", "40.00")

	sourceOrder := seedOpenOrder(t, source.ID,
		models.OrderItem{
			MenuItemID: shared.ID, Quantity: 1, Status: models.OrderItemStatusPending,
			UnitPrice: shared.Price, LineTotal: decimal.RequireFromString("20.00"),
		},
		models.OrderItem{
			MenuItemID: only.ID, Quantity: 1,
			UnitPrice: only.Price, LineTotal: decimal.RequireFromString("40.00"),
		},
	)
	targetOrder := seedOpenOrder(t, target.ID,
		models.OrderItem{
			MenuItemID: shared.ID, Quantity: 2, Status: models.OrderItemStatusServed,
			UnitPrice: shared.Price, LineTotal: decimal.RequireFromString("40.00"),
		},
	)

	payment := models.Payment{
		OrderID: sourceOrder.ID, Method: models.PaymentMethodCash,
		Amount: decimal.RequireFromString("20.00"), PaidAt: time.Now().UTC(),
	}
	database.DB.Create(&payment)

	out := postJSON(t, app, "/api/tables/merge", map[string]any{
		"source_table_id": source.ID, "target_table_id": target.ID,
	})
	if out["success"] != true {
		t.Fatalf("birleştirme başarısız: %v", out["message"])
	}

	var items []models.OrderItem
	database.DB.Where("order_id = ?", targetOrder.ID).Find(&items)
	if len(items) != 2 {
		t.Fatalf("hedefte 2 satır beklenir, %d bulundu", len(items))
	}
	for _, oi := range items {
		if oi.MenuItemID == shared.ID {
			if oi.Quantity != 3 {
				t.Errorf("ortak ürün adedi 3 olmalı, %d bulundu", oi.Quantity)
			}
			// pending < served: durum geriye çekilir
			if oi.Status != models.OrderItemStatusPending {
				t.Errorf("birleşen satır pending olmalı, %s bulundu", oi.Status)
			}
			if got := oi.LineTotal.StringFixed(2); got != "60.00" {
				t.Errorf("birleşen satır toplamı 60.00 olmalı, %s bulundu", got)
			}
		}
	}

	var freshTarget models.Order
	database.DB.First(&freshTarget, targetOrder.ID)
	if got := freshTarget.Total.StringFixed(2); got != "100.00" {
		t.Errorf("hedef toplam 100.00 olmalı, %s bulundu", got)
	}

	var freshSource models.Order
	database.DB.First(&freshSource, sourceOrder.ID)
	if freshSource.Status != models.OrderStatusCancelled || !freshSource.Total.IsZero() {
		t.Errorf("kaynak adisyon sıfırlanıp kapanmalı: %s %s", freshSource.Status, freshSource.Total)
	}

	var freshPayment models.Payment
	database.DB.First(&freshPayment, payment.ID)
	if freshPayment.OrderID != targetOrder.ID {
		t.Errorf("ödeme hedefe aktarılmalı, adisyon %d", freshPayment.OrderID)
	}
}

func TestMergeSameTableRejected(t *testing.T) {
	app := setupTestApp(t)
	table := seedTable(t, "Masa 1", models.TableStatusEmpty)

	out := postJSON(t, app, "/api/tables/merge", map[string]any{
		"source_table_id": table.ID, "target_table_id": table.ID,
	})
	if out["success"] != false {
		t.Error("aynı masaya birleştirme reddedilmeli")
	}
}

func TestDismissWaiterClearsFlag(t *testing.T) {
	app := setupTestApp(t)
	table := seedTable(t, "Masa 1", models.TableStatusOccupied)
	database.DB.Model(&table).Update("is_waiter_called", true)

	out := postJSON(t, app, "/api/tables/dismiss-waiter", map[string]any{"table_name": "Masa 1"})
	if out["success"] != true {
		t.Fatalf("çağrı kapatılamadı: %v", out["message"])
	}

	var fresh models.Table
	database.DB.First(&fresh, table.ID)
	if fresh.IsWaiterCalled {
		t.Error("garson çağrısı kapanmalı")
	}
}
