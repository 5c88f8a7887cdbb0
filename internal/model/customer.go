package model

// Customer is the denormalized buyer snapshot stamped onto plots and
// ledger entries.  It is copied at booking time so later edits to an
// account never rewrite historical records.
type Customer struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	NationalID string `json:"national_id,omitempty"`
}
