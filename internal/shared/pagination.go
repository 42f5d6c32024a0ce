package shared

// Pagination contains metadata for offset based listings.
type Pagination struct {
	Limit      int
	Offset     int
	Total      int
	Page       int
	TotalPages int
}

// NewPagination computes pagination metadata for a limit/offset window.
func NewPagination(limit, offset, total int) Pagination {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	totalPages := (total + limit - 1) / limit
	return Pagination{
		Limit:      limit,
		Offset:     offset,
		Total:      total,
		Page:       offset/limit + 1,
		TotalPages: totalPages,
	}
}

// HasNext reports whether another page follows.
func (p Pagination) HasNext() bool {
	return p.Offset+p.Limit < p.Total
}

// HasPrev reports whether a page precedes this one.
func (p Pagination) HasPrev() bool {
	return p.Offset > 0
}

// NextOffset returns the offset of the following page.
func (p Pagination) NextOffset() int {
	return p.Offset + p.Limit
}

// PrevOffset returns the offset of the preceding page.
func (p Pagination) PrevOffset() int {
	if p.Offset-p.Limit < 0 {
		return 0
	}
	return p.Offset - p.Limit
}
