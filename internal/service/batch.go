package service

// BatchItem is the per-item outcome of a batch operation.
type BatchItem struct {
	ID      string `json:"id"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// BatchResult aggregates per-item outcomes. One item's failure never
// aborts the rest of the batch.
type BatchResult struct {
	SuccessCount int         `json:"success_count"`
	ErrorCount   int         `json:"error_count"`
	Items        []BatchItem `json:"per_item"`
}

// Add records one item outcome. A nil error counts as success.
func (r *BatchResult) Add(id string, err error) {
	item := BatchItem{ID: id, Success: err == nil}
	if err != nil {
		item.Error = err.Error()
		r.ErrorCount++
	} else {
		r.SuccessCount++
	}
	r.Items = append(r.Items, item)
}

// AddFailure records a failed item with a preformatted message.
func (r *BatchResult) AddFailure(id, msg string) {
	r.Items = append(r.Items, BatchItem{ID: id, Error: msg})
	r.ErrorCount++
}

// AddSuccess records a successful item.
func (r *BatchResult) AddSuccess(id string) {
	r.Items = append(r.Items, BatchItem{ID: id, Success: true})
	r.SuccessCount++
}
