package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusOpen      OrderStatus = "open"
	OrderStatusPaid      OrderStatus = "paid"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// Order: bir masaya bağlı adisyon. Aynı anda masa başına en fazla bir
// "open" adisyon bulunur; kapandıktan sonra kalem/ödeme kabul etmez.
type Order struct {
	ID       uint `gorm:"primaryKey"`
	TableID  uint `gorm:"index;not null"`
	Table    Table
	Status   OrderStatus     `gorm:"size:20;not null;index"`
	OpenedBy string          `gorm:"size:100;not null"`
	Note     *string         `gorm:"size:500"`
	Total    decimal.Decimal `gorm:"type:decimal(10,2);not null"` // aktif kalemlerin toplamı

	OpenedAt time.Time `gorm:"not null"`
	ClosedAt *time.Time

	Items    []OrderItem
	Payments []Payment
}
