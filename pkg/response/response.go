package response

// ErrorBody is the error envelope returned by every endpoint.
// Details carries validation specifics when present.
type ErrorBody struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

// Err builds an error body with a message only.
func Err(msg string) ErrorBody {
	return ErrorBody{Error: msg}
}

// ErrDetails builds an error body with validation details attached.
func ErrDetails(msg string, details any) ErrorBody {
	return ErrorBody{Error: msg, Details: details}
}

// Received is the acknowledgement body for webhook deliveries.
type Received struct {
	Received bool `json:"received"`
}
