package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderItemStatus string

const (
	OrderItemStatusPending   OrderItemStatus = "pending"
	OrderItemStatusPreparing OrderItemStatus = "preparing"
	OrderItemStatusServed    OrderItemStatus = "served"
	OrderItemStatusCancelled OrderItemStatus = "cancelled"
)

type OrderItem struct {
	ID         uint `gorm:"primaryKey"`
	OrderID    uint `gorm:"index;not null"`
	MenuItemID uint `gorm:"index;not null"`
	MenuItem   MenuItem

	Quantity          int `gorm:"not null"`           // sipariş edilen toplam adet
	PaidQuantity      int `gorm:"not null;default:0"` // ödenmiş adet
	CancelledQuantity int `gorm:"not null;default:0"` // iptal edilmiş adet

	// Ekleme anındaki birim fiyat; menü fiyatı sonradan değişse de sabit kalır.
	UnitPrice decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	// UnitPrice × (Quantity − CancelledQuantity)
	LineTotal decimal.Decimal `gorm:"type:decimal(10,2);not null"`

	Note         *string         `gorm:"size:255"`
	Status       OrderItemStatus `gorm:"size:20;not null"`
	CancelReason *string         `gorm:"size:255"`

	// Yalnızca stok takipli ürünlerde anlamlı:
	// true = zayi (stok iadesi yok), false = stoka iade, nil = takip dışı.
	// Aynı kaleme birden fazla iptal yapılabildiği için son işlemi gösterir;
	// işlem bazında kayıt StockLog satırlarındadır.
	IsWasted *bool

	AddedAt   time.Time `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ActiveQuantity: iptal edilmemiş adet.
func (oi *OrderItem) ActiveQuantity() int {
	return oi.Quantity - oi.CancelledQuantity
}

// UnpaidQuantity: henüz ödenmemiş adet.
func (oi *OrderItem) UnpaidQuantity() int {
	return oi.Quantity - oi.PaidQuantity
}
