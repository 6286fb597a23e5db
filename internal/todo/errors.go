package todo

// ValidationError reports an input that failed a local constraint. It is
// raised before any network call and never reaches the data service.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Field + " " + e.Reason
}
