package orders

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"adisyon-backend/internal/database"
	"adisyon-backend/internal/models"

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

	app := fiber.New()
	app.Post("/api/orders", CreateOrderHandler())
	app.Get("/api/orders", ListOrdersHandler())
	app.Get("/api/orders/:id", OrderDetailHandler())
	app.Post("/api/orders/items", AddItemHandler())
	app.Post("/api/orders/items/bulk", AddItemBulkHandler())
	app.Post("/api/orders/items/cancel", CancelItemHandler())
	app.Post("/api/orders/items/status", UpdateItemStatusHandler())
	app.Post("/api/orders/payments", AddPaymentHandler())
	app.Post("/api/orders/close", CloseOrderHandler())
	app.Post("/api/orders/close-zero", CloseZeroHandler())
	return app
}

func seedTable(t *testing.T, name string) models.Table {
	t.Helper()
	table := models.Table{Name: name, Capacity: 4, Status: models.TableStatusEmpty}
	if err := database.DB.Create(&table).Error; err != nil {
		t.Fatalf("masa eklenemedi: %v", err)
	}
	return table
}

func seedMenuItem(t *testing.T, name string, price string, trackStock bool, stock int) models.MenuItem {
	t.Helper()
	cat := models.Category{Name: "Test-" + name, IsActive: true}
	if err := database.DB.Create(&cat).Error; err != nil {
		t.Fatalf("kategori eklenemedi: %v", err)
	}
	p, err := decimal.NewFromString(price)
	if err != nil {
		t.Fatalf("fiyat geçersiz: %v", err)
	}
	mi := models.MenuItem{
		Name:          name,
		CategoryID:    cat.ID,
		Price:         p,
		TrackStock:    trackStock,
		StockQuantity: stock,
		IsAvailable:   true,
	}
	if err := database.DB.Create(&mi).Error; err != nil {
		t.Fatalf("ürün eklenemedi: %v", err)
	}
	return mi
}

func postJSON(t *testing.T, app *fiber.App, path string, payload any) map[string]any {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("istek gövdesi oluşturulamadı: %v", err)
	}
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

func openOrder(t *testing.T, app *fiber.App, tableID uint, items []map[string]any) uint {
	t.Helper()
	out := postJSON(t, app, "/api/orders", map[string]any{
		"table_id": tableID,
		"items":    items,
	})
	if out["success"] != true {
		t.Fatalf("adisyon açılamadı: %v", out["message"])
	}
	return uint(out["order_id"].(float64))
}

func reloadOrder(t *testing.T, id uint) models.Order {
	t.Helper()
	var o models.Order
	if err := database.DB.Preload("Items").Preload("Payments").First(&o, id).Error; err != nil {
		t.Fatalf("adisyon okunamadı: %v", err)
	}
	return o
}

func TestCreateOrderDebitsStockAndOccupiesTable(t *testing.T) {
	app := setupTestApp(t)
	table := seedTable(t, "Masa 1")
	mi := seedMenuItem(t, "Ayran", "15.00", true, 10)

	orderID := openOrder(t, app, table.ID, []map[string]any{
		{"menu_item_id": mi.ID, "quantity": 3},
	})

	order := reloadOrder(t, orderID)
	if got := order.Total.StringFixed(2); got != "45.00" {
		t.Errorf("toplam 45.00 olmalı, %s bulundu", got)
	}

	var fresh models.MenuItem
	database.DB.First(&fresh, mi.ID)
	if fresh.StockQuantity != 7 {
		t.Errorf("stok 7 olmalı, %d bulundu", fresh.StockQuantity)
	}

	var freshTable models.Table
	database.DB.First(&freshTable, table.ID)
	if freshTable.Status != models.TableStatusOccupied {
		t.Errorf("masa dolu olmalı, durum %d", freshTable.Status)
	}
}

func TestCreateOrderInsufficientStockRejected(t *testing.T) {
	app := setupTestApp(t)
	table := seedTable(t, "Masa 1")
	mi := seedMenuItem(t, "Kola", "20.00", true, 2)

	out := postJSON(t, app, "/api/orders", map[string]any{
		"table_id": table.ID,
		"items":    []map[string]any{{"menu_item_id": mi.ID, "quantity": 5}},
	})
	if out["success"] != false {
		t.Fatal("yetersiz stokta adisyon açılmamalı")
	}
	msg := out["message"].(string)
	if !strings.Contains(msg, "Yetersiz stok") || !strings.Contains(msg, "Kola") {
		t.Errorf("hata mesajı ürün adını içermeli: %q", msg)
	}

	// Reddedilen istek hiçbir iz bırakmaz
	var orderCount int64
	database.DB.Model(&models.Order{}).Count(&orderCount)
	if orderCount != 0 {
		t.Errorf("adisyon oluşmamalı, %d bulundu", orderCount)
	}
	var fresh models.MenuItem
	database.DB.First(&fresh, mi.ID)
	if fresh.StockQuantity != 2 {
		t.Errorf("stok değişmemeli, %d bulundu", fresh.StockQuantity)
	}
}

func TestCreateOrderAggregatesDuplicateLines(t *testing.T) {
	app := setupTestApp(t)
	table := seedTable(t, "Masa 1")
	mi := seedMenuItem(t, "Çay", "10.00", true, 5)

	// 3+3 aynı ürün: toplam 6 > stok 5 → red
	out := postJSON(t, app, "/api/orders", map[string]any{
		"table_id": table.ID,
		"items": []map[string]any{
			{"menu_item_id": mi.ID, "quantity": 3},
			{"menu_item_id": mi.ID, "quantity": 3},
		},
	})
	if out["success"] != false {
		t.Fatal("satır toplamı stok kontrolünden geçmemeli")
	}
}

func TestCreateOrderExistingOpenOrderRedirects(t *testing.T) {
	app := setupTestApp(t)
	table := seedTable(t, "Masa 1")
	mi := seedMenuItem(t, "Su", "5.00", false, 0)

	first := openOrder(t, app, table.ID, []map[string]any{{"menu_item_id": mi.ID, "quantity": 1}})

	out := postJSON(t, app, "/api/orders", map[string]any{
		"table_id": table.ID,
		"items":    []map[string]any{{"menu_item_id": mi.ID, "quantity": 1}},
	})
	if out["success"] != false {
		t.Fatal("aynı masada ikinci adisyon açılmamalı")
	}
	if uint(out["order_id"].(float64)) != first {
		t.Errorf("mevcut adisyon kimliği dönmeli, %v bulundu", out["order_id"])
	}
}

func TestAddItemMergesByNoteIdentity(t *testing.T) {
	app := setupTestApp(t)
	table := seedTable(t, "Masa 1")
	mi := seedMenuItem(t, "Tost", "40.00", false, 0)

	orderID := openOrder(t, app, table.ID, []map[string]any{
		{"menu_item_id": mi.ID, "quantity": 1, "note": "acısız"},
	})

	// Aynı not → mevcut satıra eklenir
	out := postJSON(t, app, "/api/orders/items", map[string]any{
		"order_id": orderID, "menu_item_id": mi.ID, "quantity": 2, "note": "  acısız ",
	})
	if out["success"] != true {
		t.Fatalf("ekleme başarısız: %v", out["message"])
	}

	order := reloadOrder(t, orderID)
	if len(order.Items) != 1 {
		t.Fatalf("tek satır beklenir, %d bulundu", len(order.Items))
	}
	if order.Items[0].Quantity != 3 {
		t.Errorf("adet 3 olmalı, %d bulundu", order.Items[0].Quantity)
	}
	if got := order.Total.StringFixed(2); got != "120.00" {
		t.Errorf("toplam 120.00 olmalı, %s bulundu", got)
	}

	// Farklı not → yeni satır
	postJSON(t, app, "/api/orders/items", map[string]any{
		"order_id": orderID, "menu_item_id": mi.ID, "quantity": 1, "note": "çift kaşar",
	})
	order = reloadOrder(t, orderID)
	if len(order.Items) != 2 {
		t.Fatalf("iki satır beklenir, %d bulundu", len(order.Items))
	}
}

func TestAddItemMergeUsesExistingUnitPrice(t *testing.T) {
	app := setupTestApp(t)
	table := seedTable(t, "Masa 1")
	mi := seedMenuItem(t, "Pide", "100.00", false, 0)

	orderID := openOrder(t, app, table.ID, []map[string]any{
		{"menu_item_id": mi.ID, "quantity": 1},
	})

	// Menü fiyatı değişse de kalem ekleme anındaki fiyatından yürür
	database.DB.Model(&models.MenuItem{}).Where("id = ?", mi.ID).
		Update("price", decimal.RequireFromString("150.00"))

	postJSON(t, app, "/api/orders/items", map[string]any{
		"order_id": orderID, "menu_item_id": mi.ID, "quantity": 1,
	})

	order := reloadOrder(t, orderID)
	if got := order.Total.StringFixed(2); got != "200.00" {
		t.Errorf("toplam mevcut satır fiyatıyla 200.00 olmalı, %s bulundu", got)
	}
	if got := order.Items[0].LineTotal.StringFixed(2); got != "200.00" {
		t.Errorf("satır toplamı 200.00 olmalı, %s bulundu", got)
	}
}

func TestCancelItemRefundRestoresStock(t *testing.T) {
	app := setupTestApp(t)
	table := seedTable(t, "Masa 1")
	mi := seedMenuItem(t, "Köfte", "80.00", true, 10)

	orderID := openOrder(t, app, table.ID, []map[string]any{
		{"menu_item_id": mi.ID, "quantity": 3},
	})
	order := reloadOrder(t, orderID)

	out := postJSON(t, app, "/api/orders/items/cancel", map[string]any{
		"order_id":      orderID,
		"order_item_id": order.Items[0].ID,
		"cancel_qty":    2,
		"cancel_reason": "müşteri vazgeçti",
		"is_wasted":     false,
	})
	if out["success"] != true {
		t.Fatalf("iptal başarısız: %v", out["message"])
	}

	var fresh models.MenuItem
	database.DB.First(&fresh, mi.ID)
	if fresh.StockQuantity != 9 {
		t.Errorf("iade sonrası stok 9 olmalı, %d bulundu", fresh.StockQuantity)
	}

	order = reloadOrder(t, orderID)
	if got := order.Total.StringFixed(2); got != "80.00" {
		t.Errorf("toplam 80.00 olmalı, %s bulundu", got)
	}
	if order.Items[0].CancelledQuantity != 2 {
		t.Errorf("iptal adedi 2 olmalı, %d bulundu", order.Items[0].CancelledQuantity)
	}

	var logRow models.StockLog
	if err := database.DB.Where("menu_item_id = ?", mi.ID).First(&logRow).Error; err != nil {
		t.Fatalf("stok kaydı bulunamadı: %v", err)
	}
	if logRow.MovementType != models.MovementIn || logRow.QuantityChange != 2 {
		t.Errorf("Giriş +2 beklenir, %s %d bulundu", logRow.MovementType, logRow.QuantityChange)
	}
	if logRow.NewStock != logRow.PreviousStock+logRow.QuantityChange {
		t.Errorf("stok kaydı tutarsız: %d != %d + %d", logRow.NewStock, logRow.PreviousStock, logRow.QuantityChange)
	}
}

func TestCancelItemWasteKeepsStock(t *testing.T) {
	app := setupTestApp(t)
	table := seedTable(t, "Masa 1")
	mi := seedMenuItem(t, "Izgara", "120.00", true, 5)

	orderID := openOrder(t, app, table.ID, []map[string]any{
		{"menu_item_id": mi.ID, "quantity": 2},
	})
	order := reloadOrder(t, orderID)

	out := postJSON(t, app, "/api/orders/items/cancel", map[string]any{
		"order_id":      orderID,
		"order_item_id": order.Items[0].ID,
		"cancel_qty":    1,
		"cancel_reason": "yanlış pişti",
		"is_wasted":     true,
	})
	if out["success"] != true {
		t.Fatalf("iptal başarısız: %v", out["message"])
	}

	// Zayi: fiziksel stok düşümü ekleme anında yapılmıştı, değişmez
	var fresh models.MenuItem
	database.DB.First(&fresh, mi.ID)
	if fresh.StockQuantity != 3 {
		t.Errorf("zayi iptali stoka dokunmamalı, %d bulundu", fresh.StockQuantity)
	}

	var logRow models.StockLog
	if err := database.DB.Where("menu_item_id = ?", mi.ID).First(&logRow).Error; err != nil {
		t.Fatalf("stok kaydı bulunamadı: %v", err)
	}
	if logRow.MovementType != models.MovementOut || logRow.QuantityChange != -1 {
		t.Errorf("Çıkış -1 beklenir, %s %d bulundu", logRow.MovementType, logRow.QuantityChange)
	}
	if logRow.NewStock != logRow.PreviousStock {
		t.Errorf("zayi kaydında stok değişmemeli: %d != %d", logRow.NewStock, logRow.PreviousStock)
	}
	if logRow.SourceType == nil || *logRow.SourceType != models.SourceOrder {
		t.Errorf("zayi kaydı SiparişKaynaklı olmalı, %v bulundu", logRow.SourceType)
	}
	if logRow.UnitPrice == nil || logRow.UnitPrice.StringFixed(2) != "120.00" {
		t.Errorf("zayi kaydı sipariş fiyatını taşımalı, %v bulundu", logRow.UnitPrice)
	}
}

func TestCancelPaidQuantityNotCancelable(t *testing.T) {
	app := setupTestApp(t)
	table := seedTable(t, "Masa 1")
	mi := seedMenuItem(t, "Lahmacun", "50.00", false, 0)

	orderID := openOrder(t, app, table.ID, []map[string]any{
		{"menu_item_id": mi.ID, "quantity": 3},
	})
	order := reloadOrder(t, orderID)

	// 2 adet ödenir
	out := postJSON(t, app, "/api/orders/payments", map[string]any{
		"order_id": orderID, "amount": "100.00", "method": "cash",
	})
	if out["success"] != true {
		t.Fatalf("ödeme başarısız: %v", out["message"])
	}

	// 3 adet iptal denemesi: yalnızca 1 iptal edilebilir
	out = postJSON(t, app, "/api/orders/items/cancel", map[string]any{
		"order_id":      orderID,
		"order_item_id": order.Items[0].ID,
		"cancel_qty":    3,
		"cancel_reason": "vazgeçti",
	})
	if out["success"] != false {
		t.Fatal("ödenmiş adetler iptal edilememeli")
	}
	msg := out["message"].(string)
	if !strings.Contains(msg, "En fazla 1 adet iptal edilebilir") {
		t.Errorf("mesaj iptal edilebilir adedi söylemeli: %q", msg)
	}
}

func TestPartialPaymentAllocatesFIFO(t *testing.T) {
	app := setupTestApp(t)
	table := seedTable(t, "Masa 1")
	early := seedMenuItem(t, "Çorba", "30.00", false, 0)
	late := seedMenuItem(t, "Kebap", "90.00", false, 0)

	orderID := openOrder(t, app, table.ID, []map[string]any{
		{"menu_item_id": early.ID, "quantity": 2},
	})
	// İkinci ürün sonradan eklenir → daha geç AddedAt
	postJSON(t, app, "/api/orders/items", map[string]any{
		"order_id": orderID, "menu_item_id": late.ID, "quantity": 2,
	})

	// 100₺: önce 2 çorba (60), kalan 40 → 90'lık kebaptan 0 adet
	out := postJSON(t, app, "/api/orders/payments", map[string]any{
		"order_id": orderID, "amount": "100.00", "method": "cash",
	})
	if out["success"] != true {
		t.Fatalf("ödeme başarısız: %v", out["message"])
	}

	order := reloadOrder(t, orderID)
	if order.Status != models.OrderStatusOpen {
		t.Fatalf("adisyon açık kalmalı, %s bulundu", order.Status)
	}
	for _, oi := range order.Items {
		switch oi.MenuItemID {
		case early.ID:
			if oi.PaidQuantity != 2 {
				t.Errorf("önce eklenen satır tam ödenmeli, %d bulundu", oi.PaidQuantity)
			}
		case late.ID:
			if oi.PaidQuantity != 0 {
				t.Errorf("bütçe yetmeyen satıra ödeme yazılmamalı, %d bulundu", oi.PaidQuantity)
			}
		}
	}
}

func TestPaymentOverRemainingRejected(t *testing.T) {
	app := setupTestApp(t)
	table := seedTable(t, "Masa 1")
	mi := seedMenuItem(t, "Salata", "45.00", false, 0)

	orderID := openOrder(t, app, table.ID, []map[string]any{
		{"menu_item_id": mi.ID, "quantity": 1},
	})

	out := postJSON(t, app, "/api/orders/payments", map[string]any{
		"order_id": orderID, "amount": "45.02", "method": "cash",
	})
	if out["success"] != false {
		t.Fatal("kalanı aşan ödeme reddedilmeli")
	}
	if !strings.Contains(out["message"].(string), "aşamaz") {
		t.Errorf("beklenmeyen mesaj: %q", out["message"])
	}
}

func TestPaymentWithinToleranceClosesOrder(t *testing.T) {
	app := setupTestApp(t)
	table := seedTable(t, "Masa 1")
	mi := seedMenuItem(t, "Döner", "65.00", false, 0)

	orderID := openOrder(t, app, table.ID, []map[string]any{
		{"menu_item_id": mi.ID, "quantity": 2},
	})

	out := postJSON(t, app, "/api/orders/payments", map[string]any{
		"order_id": orderID, "amount": "130.00", "method": "credit_card",
	})
	if out["success"] != true {
		t.Fatalf("ödeme başarısız: %v", out["message"])
	}

	order := reloadOrder(t, orderID)
	if order.Status != models.OrderStatusPaid {
		t.Errorf("adisyon paid olmalı, %s bulundu", order.Status)
	}
	if order.ClosedAt == nil {
		t.Error("kapanış zamanı yazılmalı")
	}
	if order.Items[0].PaidQuantity != order.Items[0].Quantity {
		t.Error("kapanışta tüm aktif adetler ödenmiş sayılmalı")
	}
	if order.Payments[0].Method != models.PaymentMethodCreditCard {
		t.Errorf("ödeme yöntemi kredi kartı olmalı, %d bulundu", order.Payments[0].Method)
	}

	var freshTable models.Table
	database.DB.First(&freshTable, table.ID)
	if freshTable.Status != models.TableStatusEmpty {
		t.Errorf("masa boşalmalı, durum %d", freshTable.Status)
	}
}

func TestCloseOrderRecordsChange(t *testing.T) {
	app := setupTestApp(t)
	table := seedTable(t, "Masa 1")
	mi := seedMenuItem(t, "Menemen", "70.00", false, 0)

	orderID := openOrder(t, app, table.ID, []map[string]any{
		{"menu_item_id": mi.ID, "quantity": 1},
	})

	// Toplamın altında tutar reddedilir
	out := postJSON(t, app, "/api/orders/close", map[string]any{
		"order_id": orderID, "amount": "50.00", "method": "cash",
	})
	if out["success"] != false {
		t.Fatal("eksik tutarla kapanış reddedilmeli")
	}

	out = postJSON(t, app, "/api/orders/close", map[string]any{
		"order_id": orderID, "amount": "100.00", "method": "cash",
	})
	if out["success"] != true {
		t.Fatalf("kapanış başarısız: %v", out["message"])
	}

	order := reloadOrder(t, orderID)
	if order.Status != models.OrderStatusPaid {
		t.Errorf("adisyon paid olmalı, %s bulundu", order.Status)
	}
	if got := order.Payments[0].ChangeGiven.StringFixed(2); got != "30.00" {
		t.Errorf("para üstü 30.00 olmalı, %s bulundu", got)
	}
}

func TestCancelAllThenCloseZero(t *testing.T) {
	app := setupTestApp(t)
	table := seedTable(t, "Masa 1")
	mi := seedMenuItem(t, "Künefe", "95.00", false, 0)

	orderID := openOrder(t, app, table.ID, []map[string]any{
		{"menu_item_id": mi.ID, "quantity": 1},
	})
	order := reloadOrder(t, orderID)

	// Aktif ürün varken sıfır kapanış reddedilir
	out := postJSON(t, app, "/api/orders/close-zero", map[string]any{"order_id": orderID})
	if out["success"] != false {
		t.Fatal("aktif ürünlü adisyon sıfırdan kapanmamalı")
	}

	postJSON(t, app, "/api/orders/items/cancel", map[string]any{
		"order_id":      orderID,
		"order_item_id": order.Items[0].ID,
		"cancel_qty":    1,
		"cancel_reason": "vazgeçti",
	})

	out = postJSON(t, app, "/api/orders/close-zero", map[string]any{"order_id": orderID})
	if out["success"] != true {
		t.Fatalf("sıfır kapanış başarısız: %v", out["message"])
	}

	order = reloadOrder(t, orderID)
	if order.Status != models.OrderStatusCancelled {
		t.Errorf("adisyon cancelled olmalı, %s bulundu", order.Status)
	}
	var freshTable models.Table
	database.DB.First(&freshTable, table.ID)
	if freshTable.Status != models.TableStatusEmpty {
		t.Errorf("masa boşalmalı, durum %d", freshTable.Status)
	}
}

func TestCancelAfterPaymentAutoCloses(t *testing.T) {
	app := setupTestApp(t)
	table := seedTable(t, "Masa 1")
	mi := seedMenuItem(t, "Baklava", "60.00", false, 0)

	orderID := openOrder(t, app, table.ID, []map[string]any{
		{"menu_item_id": mi.ID, "quantity": 2},
	})
	order := reloadOrder(t, orderID)

	// 1 adet ödenir, kalan 1 adet iptal edilir → ödenen tutar kalan toplamı karşılar
	out := postJSON(t, app, "/api/orders/payments", map[string]any{
		"order_id": orderID, "amount": "60.00", "method": "cash",
	})
	if out["success"] != true {
		t.Fatalf("ödeme başarısız: %v", out["message"])
	}

	out = postJSON(t, app, "/api/orders/items/cancel", map[string]any{
		"order_id":      orderID,
		"order_item_id": order.Items[0].ID,
		"cancel_qty":    1,
		"cancel_reason": "vazgeçti",
	})
	if out["success"] != true {
		t.Fatalf("iptal başarısız: %v", out["message"])
	}
	if !strings.Contains(out["message"].(string), "adisyon kapatıldı") {
		t.Errorf("otomatik kapanış bildirilmeli: %q", out["message"])
	}

	order = reloadOrder(t, orderID)
	if order.Status != models.OrderStatusPaid {
		t.Errorf("adisyon paid olmalı, %s bulundu", order.Status)
	}
}

func TestPaymentsAreAppendOnly(t *testing.T) {
	app := setupTestApp(t)
	table := seedTable(t, "Masa 1")
	mi := seedMenuItem(t, "Sütlaç", "35.00", false, 0)

	orderID := openOrder(t, app, table.ID, []map[string]any{
		{"menu_item_id": mi.ID, "quantity": 2},
	})

	postJSON(t, app, "/api/orders/payments", map[string]any{
		"order_id": orderID, "amount": "35.00", "method": "cash",
	})
	postJSON(t, app, "/api/orders/payments", map[string]any{
		"order_id": orderID, "amount": "35.00", "method": "debit_card",
	})

	order := reloadOrder(t, orderID)
	if len(order.Payments) != 2 {
		t.Fatalf("iki ödeme satırı beklenir, %d bulundu", len(order.Payments))
	}
	total := decimal.Zero
	for _, p := range order.Payments {
		total = total.Add(p.Amount)
	}
	if got := total.StringFixed(2); got != "70.00" {
		t.Errorf("ödemeler toplamı 70.00 olmalı, %s bulundu", got)
	}
	if order.Status != models.OrderStatusPaid {
		t.Errorf("iki taksitte kapanmalı, %s bulundu", order.Status)
	}
}

func TestPaymentLeavingOneKurusStaysOpen(t *testing.T) {
	app := setupTestApp(t)
	table := seedTable(t, "Masa 1")
	mi := seedMenuItem(t, "Kuzu Tandır", "100.00", false, 0)

	orderID := openOrder(t, app, table.ID, []map[string]any{
		{"menu_item_id": mi.ID, "quantity": 1},
	})

	out := postJSON(t, app, "/api/orders/payments", map[string]any{
		"order_id": orderID, "amount": "99.99", "method": "cash",
	})
	if out["success"] != true {
		t.Fatalf("ödeme başarısız: %v", out["message"])
	}

	order := reloadOrder(t, orderID)
	if order.Status != models.OrderStatusOpen {
		t.Errorf("tam 1 kuruş kalan adisyon açık kalmalı, %s bulundu", order.Status)
	}

	out = postJSON(t, app, "/api/orders/payments", map[string]any{
		"order_id": orderID, "amount": "0.01", "method": "cash",
	})
	if out["success"] != true {
		t.Fatalf("kalan kuruş ödemesi başarısız: %v", out["message"])
	}
	order = reloadOrder(t, orderID)
	if order.Status != models.OrderStatusPaid {
		t.Errorf("tam ödeme sonrası adisyon paid olmalı, %s bulundu", order.Status)
	}

	// Kalan 0.01'in kesin altına inen ödeme ise kapatır
	table2 := seedTable(t, "Masa 2")
	orderID2 := openOrder(t, app, table2.ID, []map[string]any{
		{"menu_item_id": mi.ID, "quantity": 1},
	})
	out = postJSON(t, app, "/api/orders/payments", map[string]any{
		"order_id": orderID2, "amount": "99.995", "method": "cash",
	})
	if out["success"] != true {
		t.Fatalf("ödeme başarısız: %v", out["message"])
	}
	order = reloadOrder(t, orderID2)
	if order.Status != models.OrderStatusPaid {
		t.Errorf("kalan 0.005 olan adisyon kapanmalı, %s bulundu", order.Status)
	}
}

func TestCancelItemFromAnotherOrderRejected(t *testing.T) {
	app := setupTestApp(t)
	table1 := seedTable(t, "Masa 1")
	table2 := seedTable(t, "Masa 2")
	mi := seedMenuItem(t, "Ayran", "15.00", false, 0)

	orderID1 := openOrder(t, app, table1.ID, []map[string]any{
		{"menu_item_id": mi.ID, "quantity": 2},
	})
	orderID2 := openOrder(t, app, table2.ID, []map[string]any{
		{"menu_item_id": mi.ID, "quantity": 1},
	})

	order1 := reloadOrder(t, orderID1)
	out := postJSON(t, app, "/api/orders/items/cancel", map[string]any{
		"order_id": orderID2, "order_item_id": order1.Items[0].ID,
		"cancel_qty": 1, "cancel_reason": "yanlış masa",
	})
	if out["success"] != false {
		t.Fatal("başka adisyona ait kalemin iptali reddedilmeli")
	}

	order1 = reloadOrder(t, orderID1)
	if order1.Items[0].CancelledQuantity != 0 {
		t.Errorf("kalem değişmemeli, iptal adedi %d", order1.Items[0].CancelledQuantity)
	}
	order2 := reloadOrder(t, orderID2)
	if !order2.Total.Equal(decimal.RequireFromString("15.00")) {
		t.Errorf("hedef adisyon toplamı değişmemeli, ₺%s bulundu", order2.Total.StringFixed(2))
	}
}

func TestCloseAfterCancelMarksActiveQuantityPaid(t *testing.T) {
	app := setupTestApp(t)
	table := seedTable(t, "Masa 1")
	mi := seedMenuItem(t, "Lahmacun", "40.00", false, 0)

	orderID := openOrder(t, app, table.ID, []map[string]any{
		{"menu_item_id": mi.ID, "quantity": 2},
	})

	order := reloadOrder(t, orderID)
	out := postJSON(t, app, "/api/orders/items/cancel", map[string]any{
		"order_id": orderID, "order_item_id": order.Items[0].ID,
		"cancel_qty": 1, "cancel_reason": "vazgeçti",
	})
	if out["success"] != true {
		t.Fatalf("iptal başarısız: %v", out["message"])
	}

	out = postJSON(t, app, "/api/orders/close", map[string]any{
		"order_id": orderID, "amount": "40.00", "method": "cash",
	})
	if out["success"] != true {
		t.Fatalf("kapanış başarısız: %v", out["message"])
	}

	order = reloadOrder(t, orderID)
	if order.Items[0].PaidQuantity != 1 {
		t.Errorf("ödenen adet aktif adet kadar olmalı (1), %d bulundu", order.Items[0].PaidQuantity)
	}
}
