package models

import "time"

type TableStatus int

const (
	TableStatusEmpty    TableStatus = 0
	TableStatusOccupied TableStatus = 1
	TableStatusReserved TableStatus = 2
)

type Table struct {
	ID       uint        `gorm:"primaryKey"`
	Name     string      `gorm:"size:100;not null;unique"`
	Capacity int         `gorm:"not null"`
	Status   TableStatus `gorm:"not null;default:0"`

	// Rezervasyon alanları (Status = Reserved iken dolu)
	ReservationName       *string `gorm:"size:100"`
	ReservationPhone      *string `gorm:"size:50"`
	ReservationGuestCount *int
	ReservationTime       *time.Time

	// Müşteri "Garson Çağır"a bastığında true olur,
	// garson "İlgilenildi" dediğinde false'a döner.
	IsWaiterCalled bool `gorm:"not null;default:false"`

	CreatedAt time.Time
	UpdatedAt time.Time

	Orders []Order
}
