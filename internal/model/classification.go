package model

// FailureClassification maps one free-text error message onto the failure
// taxonomy with a confidence score in [0,1].
type FailureClassification struct {
	Type          FailureType `json:"type"`
	Confidence    float64     `json:"confidence"`
	OriginalInput string      `json:"original_input"`
}
