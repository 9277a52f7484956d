package benefit

// BatchError reports the failure of one item of a batch transition.
type BatchError struct {
	ID      ClaimID `json:"id"`
	Message string  `json:"message"`
}

// BatchResult is the outcome of approveMany / rejectMany. Items are applied
// independently: one failure never undoes another item's success.
type BatchResult struct {
	SuccessCount int          `json:"successCount"`
	Errors       []BatchError `json:"errors"`
}

func (r *BatchResult) record(id ClaimID, err error) {
	if err == nil {
		r.SuccessCount++
		return
	}
	r.Errors = append(r.Errors, BatchError{ID: id, Message: err.Error()})
}
