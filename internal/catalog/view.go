package catalog

import "fmt"

// ViewMode is a rendering hint for channel listings.
type ViewMode string

const (
	ViewList ViewMode = "list"
	ViewGrid ViewMode = "grid"
)

// ParseViewMode validates a view mode name. Empty means list.
func ParseViewMode(s string) (ViewMode, error) {
	switch ViewMode(s) {
	case "", ViewList:
		return ViewList, nil
	case ViewGrid:
		return ViewGrid, nil
	default:
		return ViewList, fmt.Errorf("unknown view mode %q", s)
	}
}

func (v ViewMode) String() string { return string(v) }

// Columns is the number of channels per row when rendering as text.
func (v ViewMode) Columns() int {
	if v == ViewGrid {
		return 4
	}
	return 1
}
