package main

import (
	"log"
	"strings"

	"adisyon-backend/internal/audit"
	"adisyon-backend/internal/auth"
	"adisyon-backend/internal/config"
	"adisyon-backend/internal/database"
	"adisyon-backend/internal/menu"
	"adisyon-backend/internal/models"
	"adisyon-backend/internal/orders"
	"adisyon-backend/internal/qrmenu"
	"adisyon-backend/internal/reports"
	"adisyon-backend/internal/stock"
	"adisyon-backend/internal/tables"
	"adisyon-backend/internal/ws"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

func main() {
	cfg := config.Load()
	database.Init(cfg)

	hub := ws.NewHub()

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if e, ok := err.(*fiber.Error); ok {
				return c.Status(e.Code).JSON(fiber.Map{
					"error": e.Message,
				})
			}
			log.Println("Unexpected error:", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Beklenmeyen sunucu hatası",
			})
		},
	})

	// CORS origins'i virgülle ayrılmış string'den array'e çevir
	corsOrigins := strings.Split(cfg.CORSOrigins, ",")
	for i := range corsOrigins {
		corsOrigins[i] = strings.TrimSpace(corsOrigins[i])
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(corsOrigins, ","),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
	}))

	api := app.Group("/api")

	// Public auth
	api.Post("/auth/register-admin", auth.RegisterAdminHandler(cfg))
	api.Post("/auth/login", auth.LoginHandler(cfg))

	// QR menü — müşteri tarafı, kimlik doğrulama yok
	api.Get("/qr-menu/:table_name", qrmenu.MenuHandler())
	api.Post("/qr-menu/call-waiter", qrmenu.CallWaiterHandler(hub))

	// Garson çağrı bildirimleri (personel ekranları)
	app.Use("/ws/notifications", ws.UpgradeMiddleware())
	app.Get("/ws/notifications", ws.Handler(hub))

	// Protected
	protected := api.Group("")
	protected.Use(auth.JWTMiddleware(cfg))

	protected.Get("/auth/me", auth.MeHandler())

	// Admin-only routes
	adminRoutes := protected.Group("")
	adminRoutes.Use(auth.RequireRole(models.RoleAdmin))

	// Kullanıcı yönetimi
	adminRoutes.Post("/users", auth.CreateUserHandler())
	adminRoutes.Get("/users", auth.ListUsersHandler())
	adminRoutes.Delete("/users/:id", auth.DeleteUserHandler())

	// Masa yönetimi
	adminRoutes.Post("/tables", tables.CreateTableHandler())
	adminRoutes.Delete("/tables/:id", tables.DeleteTableHandler())

	// Menü yönetimi
	adminRoutes.Post("/categories", menu.CreateCategoryHandler())
	adminRoutes.Put("/categories/:id", menu.UpdateCategoryHandler())
	adminRoutes.Delete("/categories/:id", menu.DeleteCategoryHandler())
	adminRoutes.Post("/menu", menu.CreateMenuItemHandler())
	adminRoutes.Put("/menu/:id", menu.UpdateMenuItemHandler())
	adminRoutes.Delete("/menu/:id", menu.DeleteMenuItemHandler())

	// Stok yönetimi
	adminRoutes.Get("/stock", stock.ListStockHandler())
	adminRoutes.Post("/stock/update", stock.UpdateStockHandler())
	adminRoutes.Get("/stock/:id/history", stock.GetHistoryHandler())
	adminRoutes.Post("/stock/toggle-track", stock.ToggleTrackHandler())

	// Raporlar
	adminRoutes.Get("/reports/dashboard", reports.DashboardHandler())
	adminRoutes.Get("/reports/sales", reports.SalesReportHandler())
	adminRoutes.Get("/reports/waste", reports.WasteReportHandler())
	adminRoutes.Get("/reports/stock", reports.StockReportHandler())

	// Audit logs
	adminRoutes.Get("/audit-logs", audit.ListAuditLogsHandler())

	// Ortak (tüm roller) route'lar

	// Masalar
	protected.Get("/tables", tables.ListTablesHandler())
	protected.Post("/tables/reserve", tables.ReserveHandler())
	protected.Post("/tables/cancel-reserve", tables.CancelReserveHandler())
	protected.Post("/tables/dismiss-waiter", tables.DismissWaiterHandler(hub))
	protected.Post("/tables/merge", tables.MergeOrderHandler())

	// Menü
	protected.Get("/categories", menu.ListCategoriesHandler())
	protected.Get("/menu", menu.ListMenuItemsHandler())
	protected.Get("/menu/:id", menu.GetMenuItemHandler())

	// Adisyonlar
	protected.Post("/orders", orders.CreateOrderHandler())
	protected.Get("/orders", orders.ListOrdersHandler())
	protected.Get("/orders/:id", orders.OrderDetailHandler())
	protected.Post("/orders/items", orders.AddItemHandler())
	protected.Post("/orders/items/bulk", orders.AddItemBulkHandler())
	protected.Post("/orders/items/cancel", orders.CancelItemHandler())
	protected.Post("/orders/items/status", orders.UpdateItemStatusHandler())
	protected.Post("/orders/payments", orders.AddPaymentHandler())
	protected.Post("/orders/close", orders.CloseOrderHandler())
	protected.Post("/orders/close-zero", orders.CloseZeroHandler())

	log.Println("Server çalışıyor port:", cfg.HTTPPort)
	if err := app.Listen(":" + cfg.HTTPPort); err != nil {
		log.Fatal(err)
	}
}
