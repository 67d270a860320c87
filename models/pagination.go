package models

// PaginatedEmails is one browsable page of a folder's emails.
type PaginatedEmails struct {
	Data           []Email `json:"data"`
	Page           int     `json:"page"`
	PerPage        int     `json:"per_page"`
	ElementsOnPage int     `json:"elements_on_page"`
	TotalElements  int     `json:"total_elements"`
	TotalPages     int     `json:"total_pages"`
}

// NewPaginatedEmails builds a page response; total pages round up.
func NewPaginatedEmails(emails []Email, page, perPage, totalElements int) *PaginatedEmails {
	totalPages := (totalElements + perPage - 1) / perPage
	return &PaginatedEmails{
		Data:           emails,
		Page:           page,
		PerPage:        perPage,
		ElementsOnPage: len(emails),
		TotalElements:  totalElements,
		TotalPages:     totalPages,
	}
}
