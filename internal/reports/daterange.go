package reports

import "time"

// DateRange: rapor uçlarının ortak tarih filtresi. Preset değerleri:
// today, yesterday, week, month; "custom" için from/to verilir.
type DateRange struct {
	Preset string    `json:"preset"`
	From   time.Time `json:"from"`
	To     time.Time `json:"to"` // dışlayıcı üst sınır
}

func rangeFromPreset(preset string, fromStr, toStr string) DateRange {
	now := time.Now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	switch preset {
	case "yesterday":
		return DateRange{Preset: preset, From: today.AddDate(0, 0, -1).UTC(), To: today.UTC()}
	case "week":
		return DateRange{Preset: preset, From: today.AddDate(0, 0, -7).UTC(), To: today.AddDate(0, 0, 1).UTC()}
	case "month":
		return DateRange{Preset: preset, From: today.AddDate(0, -1, 0).UTC(), To: today.AddDate(0, 0, 1).UTC()}
	case "custom":
		from, errF := time.ParseInLocation("2006-01-02", fromStr, now.Location())
		to, errT := time.ParseInLocation("2006-01-02", toStr, now.Location())
		if errF == nil && errT == nil && !to.Before(from) {
			return DateRange{Preset: preset, From: from.UTC(), To: to.AddDate(0, 0, 1).UTC()}
		}
		fallthrough
	default:
		return DateRange{Preset: "today", From: today.UTC(), To: today.AddDate(0, 0, 1).UTC()}
	}
}

// Days: dönem uzunluğu, günlük ortalamalar için en az 1.
func (r DateRange) Days() int {
	d := int(r.To.Sub(r.From).Hours() / 24)
	if d < 1 {
		return 1
	}
	return d
}
