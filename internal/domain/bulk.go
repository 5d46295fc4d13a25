package domain

// BulkItem is the outcome of validating one bulk-create input: either a
// ValidItem ready for allocation or a RejectedItem carrying the reason.
type BulkItem interface {
	bulkItem()
}

// ValidItem is a bulk input that passed validation
type ValidItem struct {
	Shortcode string
	TargetURL string
	Options   CreateOptions
}

// RejectedItem is a bulk input that failed validation
type RejectedItem struct {
	Reason error
}

func (ValidItem) bulkItem()    {}
func (RejectedItem) bulkItem() {}

// BulkResult reports what happened to a single bulk input, in input order
type BulkResult struct {
	Index  int
	Record *ShortURL
	Err    error
}

// OK reports whether the item was created
func (r BulkResult) OK() bool {
	return r.Err == nil && r.Record != nil
}
