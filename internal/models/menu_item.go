package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type MenuItem struct {
	ID          uint   `gorm:"primaryKey"`
	CategoryID  uint   `gorm:"index;not null"`
	Category    Category
	Name        string           `gorm:"size:100;not null"`
	Price       decimal.Decimal  `gorm:"type:decimal(10,2);not null"`
	CostPrice   *decimal.Decimal `gorm:"type:decimal(10,2)"`
	Description string           `gorm:"size:500"`

	// Stok alanları (TrackStock=false iken StockQuantity anlamsızdır)
	StockQuantity     int  `gorm:"not null;default:0"`
	TrackStock        bool `gorm:"not null;default:false"`
	AlertThreshold    int  `gorm:"not null;default:0"` // stok <= eşik → "Düşük"
	CriticalThreshold int  `gorm:"not null;default:0"` // stok <= eşik → "Kritik"

	IsAvailable bool `gorm:"not null;default:true"`
	IsDeleted   bool `gorm:"not null;default:false"` // soft delete: geçmiş siparişlerde kullanılmışsa

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Stok durumu etiketleri
type StockStatus string

const (
	StockStatusNotTracked StockStatus = "NotTracked"
	StockStatusOK         StockStatus = "OK"
	StockStatusLow        StockStatus = "Low"
	StockStatusCritical   StockStatus = "Critical"
)

func (m *MenuItem) IsCriticalStock() bool {
	return m.TrackStock && m.CriticalThreshold > 0 && m.StockQuantity <= m.CriticalThreshold
}

func (m *MenuItem) IsLowStock() bool {
	return m.TrackStock && m.AlertThreshold > 0 && m.StockQuantity <= m.AlertThreshold && !m.IsCriticalStock()
}

func (m *MenuItem) StockStatus() StockStatus {
	switch {
	case !m.TrackStock:
		return StockStatusNotTracked
	case m.IsCriticalStock():
		return StockStatusCritical
	case m.IsLowStock():
		return StockStatusLow
	default:
		return StockStatusOK
	}
}
