package repository

import "github.com/noah-isme/kumon-analytics/internal/models"

// alignRows maps incoming rows onto the stored header by column name.
// Columns unknown to the stored header are appended to it; stored columns
// absent from the incoming table are left blank.
func alignRows(stored []string, incoming models.Table) ([]string, [][]string) {
	header := append([]string(nil), stored...)
	pos := make(map[string]int, len(header))
	for i, name := range header {
		if _, ok := pos[name]; !ok {
			pos[name] = i
		}
	}
	for _, name := range incoming.Header {
		if _, ok := pos[name]; !ok {
			pos[name] = len(header)
			header = append(header, name)
		}
	}

	rows := make([][]string, len(incoming.Rows))
	for r, src := range incoming.Rows {
		dst := make([]string, len(header))
		for c, name := range incoming.Header {
			if c < len(src) {
				dst[pos[name]] = src[c]
			}
		}
		rows[r] = dst
	}
	return header, rows
}

func sameHeader(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
