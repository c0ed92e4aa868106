package tablejoin

import (
	"fmt"
	"strconv"
	"strings"
)

// ColumnRef identifies a column either by name or by position.
type ColumnRef struct {
	name  string
	pos   int
	byPos bool
}

// Col references a column by name.
func Col(name string) ColumnRef {
	return ColumnRef{name: name}
}

// ColAt references a column by its 0-based position.
func ColAt(pos int) ColumnRef {
	return ColumnRef{pos: pos, byPos: true}
}

// ParseColumnRef turns "#N" into a positional reference and anything else
// into a name reference. A name whose backslashes lead up to '#' loses one
// backslash, so `\#3` names the column called "#3".
func ParseColumnRef(s string) ColumnRef {
	if escapedHash(s) {
		return Col(s[1:])
	}
	if strings.HasPrefix(s, "#") {
		if pos, err := strconv.Atoi(s[1:]); err == nil {
			return ColAt(pos)
		}
	}
	return Col(s)
}

// String returns the name, or #N for positional references. Names that
// ParseColumnRef would read differently come back escaped.
func (r ColumnRef) String() string {
	if r.byPos {
		return "#" + strconv.Itoa(r.pos)
	}
	if escapedHash(r.name) {
		return `\` + r.name
	}
	if strings.HasPrefix(r.name, "#") {
		if _, err := strconv.Atoi(r.name[1:]); err == nil {
			return `\` + r.name
		}
	}
	return r.name
}

func escapedHash(s string) bool {
	return strings.HasPrefix(s, `\`) && strings.HasPrefix(strings.TrimLeft(s, `\`), "#")
}

func (r ColumnRef) resolve(df *DataFrame) (int, bool) {
	if r.byPos {
		return r.pos, r.pos >= 0 && r.pos < df.Width()
	}
	return df.ColumnIndex(r.name)
}

// ColumnSelection is an ordered list of column references into one table.
type ColumnSelection []ColumnRef

// Names builds a selection of name references.
func Names(names ...string) ColumnSelection {
	sel := make(ColumnSelection, len(names))
	for i, n := range names {
		sel[i] = Col(n)
	}
	return sel
}

// Resolve maps the selection onto column positions of df. It fails when
// the selection is empty, a reference does not exist, or two references
// land on the same column.
func (sel ColumnSelection) Resolve(df *DataFrame, side string) ([]int, error) {
	field := side + " keys"
	if len(sel) == 0 {
		return nil, &ValidationError{Field: field, Reason: "no key columns selected"}
	}

	positions := make([]int, len(sel))
	seen := make(map[int]ColumnRef, len(sel))
	for i, ref := range sel {
		pos, ok := ref.resolve(df)
		if !ok {
			return nil, &ValidationError{Field: field, Reason: fmt.Sprintf("column %s not found", ref)}
		}
		if prev, dup := seen[pos]; dup {
			return nil, &ValidationError{
				Field:  field,
				Reason: fmt.Sprintf("column %q selected more than once (%s, %s)", df.Column(pos).Name(), prev, ref),
			}
		}
		seen[pos] = ref
		positions[i] = pos
	}
	return positions, nil
}

// String joins the references with commas.
func (sel ColumnSelection) String() string {
	parts := make([]string, len(sel))
	for i, r := range sel {
		parts[i] = r.String()
	}
	return strings.Join(parts, ",")
}
