package domain

// ReferencePassage is one ranked passage returned by the reference index.
// Ephemeral, scoped to a single analysis call.
type ReferencePassage struct {
	Text   string  `json:"text"`
	Source string  `json:"source"`
	Score  float64 `json:"score"`
}
