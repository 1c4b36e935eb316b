package ws

import (
	"log"
	"sync"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

// Event: personel ekranlarına yayınlanan tek mesaj.
// "waiter_called" ve "waiter_dismissed" olayları masa adı taşır.
type Event struct {
	Type      string `json:"type"`
	TableName string `json:"table_name,omitempty"`
}

// Hub: bağlı tüm personel ekranlarını tutar ve olayları hepsine yayınlar.
// Oda ayrımı yoktur; garson çağrıları tüm ekranları ilgilendirir.
type Hub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]bool
}

func NewHub() *Hub {
	return &Hub{clients: make(map[*websocket.Conn]bool)}
}

// Broadcast: olayı bağlı tüm istemcilere yazar. Yazılamayan bağlantı
// kopmuş sayılır ve listeden düşülür.
func (h *Hub) Broadcast(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		if err := conn.WriteJSON(ev); err != nil {
			log.Printf("ws yazma hatası: %v", err)
			conn.Close()
			delete(h.clients, conn)
		}
	}
}

func (h *Hub) add(conn *websocket.Conn) {
	h.mu.Lock()
	h.clients[conn] = true
	h.mu.Unlock()
}

func (h *Hub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	if _, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		conn.Close()
	}
	h.mu.Unlock()
}

// UpgradeMiddleware: yalnızca websocket upgrade isteklerini geçirir.
func UpgradeMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}
}

// Handler: GET /ws/notifications
// İstemciler mesaj göndermez; okuma döngüsü yalnızca kopuşu yakalar.
func Handler(hub *Hub) fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		hub.add(conn)
		defer hub.remove(conn)

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	})
}
