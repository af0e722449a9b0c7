package domain

// Lead is one property owner record drawn from a region lead table.
// Fields are explicit and optional-by-emptiness; validation aggregates
// every missing field into a single report.
type Lead struct {
	ID          int64
	SourceTable string

	ContactName  string
	ContactEmail string

	PropertyAddress string
	PropertyCity    string
	PropertyState   string
	PropertyPostal  string

	AssessedTotal float64
}
