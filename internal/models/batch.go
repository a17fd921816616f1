package models

// BatchFailure describes why one item of a batch was not applied.
type BatchFailure struct {
	ID      string `json:"id"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

// BatchResult is a partial-success report. Succeeded and Failed are
// disjoint and together cover every requested id.
type BatchResult struct {
	Succeeded []string       `json:"succeeded"`
	Failed    []BatchFailure `json:"failed"`
}
