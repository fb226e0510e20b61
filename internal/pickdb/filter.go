package pickdb

import (
	"strings"
)

// Filter selects picks. Values within one field are alternatives; fields
// that are set must all match. The zero Filter selects everything.
type Filter struct {
	Events    []string
	Branches  []int
	Sources   []int64
	Receivers []int64
}

// Empty reports whether the filter selects everything.
func (f Filter) Empty() bool {
	return len(f.Events) == 0 && len(f.Branches) == 0 && len(f.Sources) == 0 && len(f.Receivers) == 0
}

// where renders the filter as a WHERE clause over master_picks, with a
// leading space, and its bound arguments.
func (f Filter) where() (string, []any) {
	var clauses []string
	var args []any
	add := func(column string, n int, value func(i int) any) {
		if n == 0 {
			return
		}
		marks := make([]string, n)
		for i := range marks {
			marks[i] = "?"
			args = append(args, value(i))
		}
		clauses = append(clauses, column+" IN ("+strings.Join(marks, ", ")+")")
	}
	add("event", len(f.Events), func(i int) any { return f.Events[i] })
	add("branchid", len(f.Branches), func(i int) any { return f.Branches[i] })
	add("srcid", len(f.Sources), func(i int) any { return f.Sources[i] })
	add("recid", len(f.Receivers), func(i int) any { return f.Receivers[i] })

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}
