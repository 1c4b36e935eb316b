package orders

import "github.com/shopspring/decimal"

// Para karşılaştırma toleransları. Kuruş yuvarlamaları yüzünden birebir
// eşitlik aranmaz; ödeme üst sınırı ve kapanış eşiği bu sabitlerle ölçülür.
var (
	// PaymentTolerance: tahsilat kalan tutarı en fazla bu kadar aşabilir,
	// toplam ödeme net tutarın bu kadar altındaysa adisyon kapanmış sayılır.
	PaymentTolerance = decimal.New(1, -2) // 0.01

	// ZeroTolerance: "tutar sıfırlandı" kontrollerinde kullanılır.
	ZeroTolerance = decimal.New(1, -3) // 0.001
)
