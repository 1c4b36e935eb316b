package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Stok hareket tipleri
const (
	MovementIn         = "Giriş"
	MovementOut        = "Çıkış"
	MovementCorrection = "Düzeltme"
)

// Fire kaynak türleri
const (
	SourceOrder = "SiparişKaynaklı" // sipariş iptali / zayi
	SourceStock = "StokKaynaklı"    // depo fire / kırık / bozuk
)

// StockLog: stok hareket geçmişi. Her stok değişikliğinde bir satır düşülür;
// satırlar asla güncellenmez veya silinmez. NewStock = PreviousStock + QuantityChange.
type StockLog struct {
	ID         uint `gorm:"primaryKey"`
	MenuItemID uint `gorm:"index;not null"`
	MenuItem   MenuItem

	MovementType   string `gorm:"size:20;not null"` // Giriş | Çıkış | Düzeltme
	QuantityChange int    `gorm:"not null"`         // Giriş → pozitif, Çıkış → negatif
	PreviousStock  int    `gorm:"not null"`
	NewStock       int    `gorm:"not null"`

	Note *string `gorm:"size:255"`

	// SourceType: SiparişKaynaklı / StokKaynaklı / nil (normal giriş-iade-düzeltme).
	SourceType *string `gorm:"size:30;index"`
	// SourceType=SiparişKaynaklı ise ilgili adisyon.
	OrderID *uint
	// İşlem anındaki birim fiyat: sipariş kaynaklıysa kalemin sipariş fiyatı,
	// stok kaynaklıysa kayıt anındaki menü fiyatı.
	UnitPrice *decimal.Decimal `gorm:"type:decimal(10,2)"`

	CreatedAt time.Time
}
