package cart

// Line is one cart row: a priced (product, variant) pair plus display fields.
// At most one Line exists per distinct (ProductID, VariantID); adding the same
// pair again merges quantities.
type Line struct {
	ID        string `json:"id"`
	ProductID string `json:"product_id"`
	VariantID string `json:"variant_id,omitempty"`
	Name      string `json:"name"`
	Image     string `json:"image,omitempty"`
	Color     string `json:"color,omitempty"`
	Size      string `json:"size,omitempty"`
	// Price snapshot at add-time, NUMERIC -> string
	UnitPrice string `json:"unit_price"`
	Quantity  int    `json:"quantity"`
}

// LineInput is Line without an identity; the store assigns one on insert.
type LineInput struct {
	ProductID string `json:"product_id"`
	VariantID string `json:"variant_id,omitempty"`
	Name      string `json:"name"`
	Image     string `json:"image,omitempty"`
	Color     string `json:"color,omitempty"`
	Size      string `json:"size,omitempty"`
	UnitPrice string `json:"unit_price"`
	Quantity  int    `json:"quantity"`
}

// snapshot is the persisted layout: one JSON document under one key.
type snapshot struct {
	Items []Line `json:"items"`
}
