package medications

import "time"

// expiringSoonWindow is the horizon used to flag products close to expiry.
const expiringSoonWindow = 30 * 24 * time.Hour

// Medication is a sellable pharmacy product with its stock level.
type Medication struct {
	ID                   int64      `json:"id"`
	Name                 string     `json:"name"`
	DCI                  string     `json:"dci"`
	Barcode              string     `json:"barcode"`
	CategoryID           *int64     `json:"category_id"`
	CategoryName         string     `json:"category_name"`
	Form                 string     `json:"form"`
	Dosage               string     `json:"dosage"`
	PurchasePrice        float64    `json:"purchase_price"`
	SellingPrice         float64    `json:"selling_price"`
	Quantity             int64      `json:"quantity"`
	MinQuantity          int64      `json:"min_quantity"`
	ExpiryDate           time.Time  `json:"expiry_date"`
	Location             string     `json:"location"`
	RequiresPrescription bool       `json:"requires_prescription"`
	Image                string     `json:"image"`
	Description          string     `json:"description"`
	CreatedBy            *int64     `json:"created_by"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// IsLowStock reports whether the quantity on hand is at or below the
// reorder threshold.
func (m Medication) IsLowStock() bool {
	return m.Quantity <= m.MinQuantity
}

// IsExpired reports whether the expiry date is in the past.
func (m Medication) IsExpired() bool {
	return m.ExpiryDate.Before(today())
}

// IsExpiringSoon reports whether the medication expires within the next 30
// days. An already expired product is not "expiring soon".
func (m Medication) IsExpiringSoon() bool {
	until := m.ExpiryDate.Sub(today())
	return until > 0 && until <= expiringSoonWindow
}

// ProfitMargin is the absolute margin per unit.
func (m Medication) ProfitMargin() float64 {
	return m.SellingPrice - m.PurchasePrice
}

// ProfitPercentage is the margin relative to the purchase price.
func (m Medication) ProfitPercentage() float64 {
	if m.PurchasePrice > 0 {
		return (m.SellingPrice - m.PurchasePrice) / m.PurchasePrice * 100
	}
	return 0
}

// StockValue is the purchase value of the quantity on hand.
func (m Medication) StockValue() float64 {
	return float64(m.Quantity) * m.PurchasePrice
}

func today() time.Time {
	y, mo, d := time.Now().Date()
	return time.Date(y, mo, d, 0, 0, 0, 0, time.Local)
}
