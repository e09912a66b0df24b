package core

import (
	"net/url"
	"strconv"
	"strings"
)

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100

	SortAsc  = "asc"
	SortDesc = "desc"

	DefaultSortField = "date"
)

// SortFields are the columns the backend accepts for sortBy.
var SortFields = []string{"date", "amount", "description", "category", "type"}

// Filters are combined conjunctively by the backend.
type Filters struct {
	Search   string          `json:"search,omitempty"`
	Type     TransactionType `json:"type,omitempty"`
	Category string          `json:"category,omitempty"`
	DateFrom string          `json:"dateFrom,omitempty"`
	DateTo   string          `json:"dateTo,omitempty"`
}

// Merge overwrites only the fields that are set in partial.
func (f Filters) Merge(partial Filters) Filters {
	if partial.Search != "" {
		f.Search = partial.Search
	}
	if partial.Type != "" {
		f.Type = partial.Type
	}
	if partial.Category != "" {
		f.Category = partial.Category
	}
	if partial.DateFrom != "" {
		f.DateFrom = partial.DateFrom
	}
	if partial.DateTo != "" {
		f.DateTo = partial.DateTo
	}
	return f
}

func (f Filters) IsZero() bool {
	return f == Filters{}
}

// Encode writes the non-empty filters into v.
func (f Filters) Encode(v url.Values) {
	set := func(k, val string) {
		if val = strings.TrimSpace(val); val != "" {
			v.Set(k, val)
		}
	}
	set("search", f.Search)
	set("type", string(f.Type))
	set("category", f.Category)
	set("dateFrom", f.DateFrom)
	set("dateTo", f.DateTo)
}

// FiltersFromQuery reads filters from request query parameters.
// An unrecognized type is dropped rather than forwarded.
func FiltersFromQuery(q url.Values) Filters {
	f := Filters{
		Search:   strings.TrimSpace(q.Get("search")),
		Category: strings.TrimSpace(q.Get("category")),
	}
	if t, err := ParseTransactionType(q.Get("type")); err == nil {
		f.Type = t
	}
	if d, err := ParseDate(q.Get("dateFrom")); err == nil {
		f.DateFrom = d.String()
	}
	if d, err := ParseDate(q.Get("dateTo")); err == nil {
		f.DateTo = d.String()
	}
	return f
}

type Sort struct {
	By    string `json:"sortBy"`
	Order string `json:"sortOrder"`
}

// DefaultSort is newest first.
func DefaultSort() Sort {
	return Sort{By: DefaultSortField, Order: SortDesc}
}

// Toggle flips the order for the same field and starts a new field descending.
func (s Sort) Toggle(field string) Sort {
	if !validSortField(field) {
		return s
	}
	if s.By == field {
		if s.Order == SortDesc {
			return Sort{By: field, Order: SortAsc}
		}
		return Sort{By: field, Order: SortDesc}
	}
	return Sort{By: field, Order: SortDesc}
}

func validSortField(field string) bool {
	for _, f := range SortFields {
		if f == field {
			return true
		}
	}
	return false
}

// SortFromQuery falls back to DefaultSort for unknown fields or orders.
func SortFromQuery(q url.Values) Sort {
	s := DefaultSort()
	if by := q.Get("sortBy"); validSortField(by) {
		s.By = by
	}
	if o := q.Get("sortOrder"); o == SortAsc || o == SortDesc {
		s.Order = o
	}
	return s
}

type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// TotalPagesFor returns ceil(total/limit), 0 for an empty set.
func TotalPagesFor(total, limit int) int {
	if total <= 0 || limit <= 0 {
		return 0
	}
	return (total + limit - 1) / limit
}

// Decrement reflects one server-confirmed deletion.
func (p Pagination) Decrement() Pagination {
	if p.Total > 0 {
		p.Total--
	}
	p.TotalPages = TotalPagesFor(p.Total, p.Limit)
	return p
}

func (p Pagination) HasPrev() bool { return p.Page > 1 }
func (p Pagination) HasNext() bool { return p.Page < p.TotalPages }

// ListQuery is the full parameter set for GET /transactions.
type ListQuery struct {
	Page    int
	Limit   int
	Filters Filters
	Sort    Sort
}

// Values encodes the query, clamping page and limit to sane bounds.
func (q ListQuery) Values() url.Values {
	page := q.Page
	if page < 1 {
		page = DefaultPage
	}
	limit := q.Limit
	switch {
	case limit <= 0:
		limit = DefaultLimit
	case limit > MaxLimit:
		limit = MaxLimit
	}
	sort := q.Sort
	if sort.By == "" {
		sort = DefaultSort()
	}
	v := url.Values{}
	v.Set("page", strconv.Itoa(page))
	v.Set("limit", strconv.Itoa(limit))
	q.Filters.Encode(v)
	v.Set("sortBy", sort.By)
	v.Set("sortOrder", sort.Order)
	return v
}

// ListQueryFromValues parses page/limit/filters/sort from request parameters.
func ListQueryFromValues(q url.Values) ListQuery {
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	if page < 1 {
		page = DefaultPage
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return ListQuery{
		Page:    page,
		Limit:   limit,
		Filters: FiltersFromQuery(q),
		Sort:    SortFromQuery(q),
	}
}
