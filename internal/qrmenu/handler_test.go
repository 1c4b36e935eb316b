package qrmenu

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"testing"

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
	app.Get("/api/qr-menu/:table_name", MenuHandler())
	app.Post("/api/qr-menu/call-waiter", CallWaiterHandler(hub))
	return app
}

func TestMenuHidesDeletedAndUnavailable(t *testing.T) {
	app := setupTestApp(t)

	table := models.Table{Name: "Teras 1", Capacity: 4}
	database.DB.Create(&table)
	cat := models.Category{Name: "İçecekler", IsActive: true}
	database.DB.Create(&cat)

	visible := models.MenuItem{Name: "Çay", CategoryID: cat.ID, Price: decimal.RequireFromString("10.00"), IsAvailable: true}
	hidden := models.MenuItem{Name: "Kola", CategoryID: cat.ID, Price: decimal.RequireFromString("20.00"), IsAvailable: false}
	deleted := models.MenuItem{Name: "Eski Ürün", CategoryID: cat.ID, Price: decimal.RequireFromString("5.00"), IsAvailable: true, IsDeleted: true}
	database.DB.Create(&visible)
	database.DB.Create(&hidden)
	database.DB.Create(&deleted)

	// Boşluklu masa adı URL-encode ile gelir
	req, _ := http.NewRequest(http.MethodGet, "/api/qr-menu/Teras%201", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("istek başarısız: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("200 beklenir, %d bulundu", resp.StatusCode)
	}

	var out map[string]any
	json.NewDecoder(resp.Body).Decode(&out)
	if out["table_name"] != "Teras 1" {
		t.Errorf("masa adı çözümlenmeli, %v bulundu", out["table_name"])
	}
	items := out["items"].([]any)
	if len(items) != 1 {
		t.Fatalf("yalnızca satıştaki ürün listelenmeli, %d bulundu", len(items))
	}
}

func TestCallWaiterIsIdempotent(t *testing.T) {
	app := setupTestApp(t)
	table := models.Table{Name: "Masa 1", Capacity: 4}
	database.DB.Create(&table)

	call := func() map[string]any {
		body, _ := json.Marshal(map[string]any{"table_name": "Masa 1"})
		req, _ := http.NewRequest(http.MethodPost, "/api/qr-menu/call-waiter", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("istek başarısız: %v", err)
		}
		defer resp.Body.Close()
		var out map[string]any
		json.NewDecoder(resp.Body).Decode(&out)
		return out
	}

	out := call()
	if out["success"] != true || out["already_called"] != false {
		t.Fatalf("ilk çağrı kabul edilmeli: %v", out)
	}

	out = call()
	if out["already_called"] != true {
		t.Errorf("ikinci çağrı idempotent olmalı: %v", out)
	}

	var fresh models.Table
	database.DB.First(&fresh, table.ID)
	if !fresh.IsWaiterCalled {
		t.Error("çağrı bayrağı set edilmeli")
	}
}
