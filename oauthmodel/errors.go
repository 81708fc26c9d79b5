package oauthmodel

// ErrorResponse is the error body returned by the token endpoint. Elemo returns the
// RFC 6749 fields; some proxies answer with a bare message instead.
type ErrorResponse struct {
	Error            string `json:"error,omitempty"`
	ErrorDescription string `json:"error_description,omitempty"`
	Message          string `json:"message,omitempty"`
}

// Text returns the most descriptive message in the body, or fallback.
func (e ErrorResponse) Text(fallback string) string {
	switch {
	case e.ErrorDescription != "":
		return e.ErrorDescription
	case e.Message != "":
		return e.Message
	default:
		return fallback
	}
}
