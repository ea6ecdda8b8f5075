package models

// ScrapeResponse is the normalized success body returned by every fetch route.
// All fields are always populated; SelectedContent is null unless a CSS or
// XPath selector was requested.
type ScrapeResponse struct {
	URL     string            `json:"url"`
	Status  int               `json:"status"`
	Reason  string            `json:"reason"`
	Headers map[string]string `json:"headers"`
	Cookies map[string]string `json:"cookies"`
	Body    string            `json:"body"`

	SelectedContent []string `json:"selected_content"`
}

// HealthResponse is the response for GET /api/health.
type HealthResponse struct {
	Status string `json:"status"`
}

// ErrorResponse is the body of every non-2xx response. Detail is either a
// message string or, for validation failures, a list of FieldError.
type ErrorResponse struct {
	Detail any `json:"detail"`
}

// FieldError describes one invalid request field.
type FieldError struct {
	Loc  []string `json:"loc"`
	Msg  string   `json:"msg"`
	Type string   `json:"type"`
}
