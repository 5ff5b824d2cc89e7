package dto

// ErrorResponse is the structured error body of every failed request.
type ErrorResponse struct {
	Success bool   `json:"success"` // always false
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// PaginationInfo describes a paginated list response.
type PaginationInfo struct {
	Total      int `json:"total"`
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	TotalPages int `json:"total_pages"`
}
