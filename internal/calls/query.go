package calls

import "fmt"

// SortField is a column the server can order the list by.
type SortField string

const (
	SortCreatedAt SortField = "created_at"
	SortDuration  SortField = "call_duration"
	SortFileName  SortField = "file_name"
)

// SortFields lists the fields in the order the UI cycles through them.
func SortFields() []SortField {
	return []SortField{SortCreatedAt, SortDuration, SortFileName}
}

// Label returns a short display name.
func (f SortField) Label() string {
	switch f {
	case SortDuration:
		return "duration"
	case SortFileName:
		return "name"
	default:
		return "date"
	}
}

// SortOrder is ascending or descending.
type SortOrder string

const (
	Ascending  SortOrder = "asc"
	Descending SortOrder = "desc"
)

// Toggle returns the opposite order.
func (o SortOrder) Toggle() SortOrder {
	if o == Ascending {
		return Descending
	}

	return Ascending
}

// Query holds the list filter and sort options sent to the server.
type Query struct {
	// Status filters by status when non-nil.
	Status     *Status
	Sentiment  string
	Resolution string
	SortBy     SortField
	Order      SortOrder
}

// DefaultQuery returns newest-first with no filters.
func DefaultQuery() Query {
	return Query{SortBy: SortCreatedAt, Order: Descending}
}

// WithStatus returns a copy filtered to status, or unfiltered when nil.
func (q Query) WithStatus(status *Status) Query {
	if status != nil {
		s := *status
		status = &s
	}
	q.Status = status

	return q
}

// Matches applies the status filter to a record locally.
func (q Query) Matches(r Record) bool {
	return q.Status == nil || r.Status == *q.Status
}

// String renders a compact description for headers and logs.
func (q Query) String() string {
	status := "all"
	if q.Status != nil {
		status = q.Status.String()
	}

	return fmt.Sprintf("status=%s sort=%s %s", status, q.SortBy.Label(), q.Order)
}
