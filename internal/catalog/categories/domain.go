package categories

import "time"

// Category groups medications for browsing and filtering.
type Category struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	// MedicationCount is populated by list queries only.
	MedicationCount int64     `json:"medication_count"`
	CreatedAt       time.Time `json:"created_at"`
}
