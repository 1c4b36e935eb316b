package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentMethod int

const (
	PaymentMethodCash       PaymentMethod = 0
	PaymentMethodCreditCard PaymentMethod = 1
	PaymentMethodDebitCard  PaymentMethod = 2
	PaymentMethodOther      PaymentMethod = 3
)

// ParsePaymentMethod: istekten gelen yöntem kodunu çözer; bilinmeyen değerler nakit sayılır.
func ParsePaymentMethod(s string) PaymentMethod {
	switch s {
	case "credit_card", "card":
		return PaymentMethodCreditCard
	case "debit_card":
		return PaymentMethodDebitCard
	case "other":
		return PaymentMethodOther
	default:
		return PaymentMethodCash
	}
}

// Payment: adisyona karşı tek tahsilat. Append-only; asla güncellenmez/silinmez.
type Payment struct {
	ID          uint            `gorm:"primaryKey"`
	OrderID     uint            `gorm:"index;not null"`
	Method      PaymentMethod   `gorm:"not null"`
	Amount      decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	ChangeGiven decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	Note        string          `gorm:"size:100"` // ödeyen kişi vb.
	PaidAt      time.Time       `gorm:"not null"`
}
