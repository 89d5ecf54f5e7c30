package prescriptions

import "time"

// Prescription records a doctor's order attached to a customer. A
// prescription becomes "served" once a sale is linked to it.
type Prescription struct {
	ID                 int64      `json:"id"`
	CustomerID         int64      `json:"customer_id"`
	SaleID             *int64     `json:"sale_id"`
	PrescriptionNumber string     `json:"prescription_number"`
	DoctorName         string     `json:"doctor_name"`
	PrescriptionDate   time.Time  `json:"prescription_date"`
	ExpiryDate         time.Time  `json:"expiry_date"`
	Image              string     `json:"image"`
	Notes              string     `json:"notes"`
	CreatedAt          time.Time  `json:"created_at"`
}

// IsServed reports whether a sale has been recorded against the
// prescription.
func (p Prescription) IsServed() bool {
	return p.SaleID != nil
}

// IsExpired reports whether the prescription can no longer be served.
func (p Prescription) IsExpired() bool {
	if p.ExpiryDate.IsZero() {
		return false
	}
	y, m, d := time.Now().Date()
	return p.ExpiryDate.Before(time.Date(y, m, d, 0, 0, 0, 0, time.Local))
}
