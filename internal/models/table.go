package models

// Table is the untyped, header-first 2-D shape exchanged with the tabular
// store. Rows are positional and follow Header.
type Table struct {
	Header []string   `json:"header"`
	Rows   [][]string `json:"rows"`
}

// NewTable returns an empty table with the given header.
func NewTable(header ...string) Table {
	return Table{Header: append([]string(nil), header...), Rows: [][]string{}}
}

// Len returns the number of data rows.
func (t Table) Len() int {
	return len(t.Rows)
}

// Index maps each header name to its position. Duplicate names keep the
// first position.
func (t Table) Index() map[string]int {
	idx := make(map[string]int, len(t.Header))
	for i, name := range t.Header {
		if _, ok := idx[name]; !ok {
			idx[name] = i
		}
	}
	return idx
}

// Clone returns a deep copy.
func (t Table) Clone() Table {
	out := Table{Header: append([]string(nil), t.Header...), Rows: make([][]string, len(t.Rows))}
	for i, row := range t.Rows {
		out.Rows[i] = append([]string(nil), row...)
	}
	return out
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
