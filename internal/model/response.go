package model

// ErrorResponse is the standard envelope for error responses.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains the structured error information returned by the API.
type ErrorDetail struct {
	Code    int                    `json:"code"`
	Message string                 `json:"message"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// TargetResult is the per-(tenant, physical table) outcome inside an
// execution summary.
type TargetResult struct {
	TenantID      string  `json:"tenant_id"`
	PhysicalTable string  `json:"physical_table"`
	Outcome       Outcome `json:"outcome"`
	Statements    int     `json:"statements"`
	Error         string  `json:"error,omitempty"`
}

// ExecutionSummary is what the executor returns after fanning one schema
// definition out across all tenants. The HTTP layer always answers 200 with
// this payload; per-target failures live inside it.
type ExecutionSummary struct {
	SchemaID      int64          `json:"schema_id"`
	TableName     string         `json:"table_name"`
	SchemaVersion string         `json:"schema_version"`
	Total         int            `json:"total"`
	Successes     int            `json:"successes"`
	Failures      int            `json:"failures"`
	Skips         int            `json:"skips"`
	Targets       []TargetResult `json:"targets"`
}

// Add merges one target outcome into the summary counters.
func (s *ExecutionSummary) Add(r TargetResult) {
	s.Total++
	switch r.Outcome {
	case OutcomeSuccess:
		s.Successes++
	case OutcomeSkipped:
		s.Skips++
	case OutcomeFailed:
		s.Failures++
	}
	s.Targets = append(s.Targets, r)
}
