package tablejoin

import (
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"strings"
)

// JoinType represents the type of join operation
type JoinType int

const (
	InnerJoin JoinType = iota
	LeftJoin
	OuterJoin
	SemiJoin
)

// String returns the canonical name of the join type.
func (t JoinType) String() string {
	switch t {
	case InnerJoin:
		return "inner"
	case LeftJoin:
		return "left"
	case OuterJoin:
		return "outer"
	case SemiJoin:
		return "semi"
	default:
		return fmt.Sprintf("JoinType(%d)", int(t))
	}
}

// ParseJoinType maps a user-facing join name to a JoinType.
func ParseJoinType(s string) (JoinType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "inner":
		return InnerJoin, nil
	case "left", "left_outer", "leftouter":
		return LeftJoin, nil
	case "outer", "full", "full_outer", "fullouter":
		return OuterJoin, nil
	case "semi", "left_semi", "leftsemi":
		return SemiJoin, nil
	default:
		return 0, &ValidationError{Field: "join type", Reason: fmt.Sprintf("unknown join type %q", s)}
	}
}

func (t JoinType) valid() bool {
	return t >= InnerJoin && t <= SemiJoin
}

// JoinOptions configures join behavior
type JoinOptions struct {
	leftOn        ColumnSelection
	rightOn       ColumnSelection
	how           JoinType
	caseSensitive bool
	keepRightKeys bool
}

// DefaultJoinOptions returns default join options
func DefaultJoinOptions() JoinOptions {
	return JoinOptions{
		how:           InnerJoin,
		caseSensitive: true,
	}
}

// On creates join options for joining on columns with the same name
func On(columns ...string) JoinOptions {
	o := DefaultJoinOptions()
	o.leftOn = Names(columns...)
	o.rightOn = Names(columns...)
	return o
}

// LeftOn creates join options with different column references for left and right
func LeftOn(refs ...ColumnRef) JoinOptions {
	o := DefaultJoinOptions()
	o.leftOn = ColumnSelection(refs)
	return o
}

// RightOn specifies right DataFrame columns for the join
func (o JoinOptions) RightOn(refs ...ColumnRef) JoinOptions {
	o.rightOn = ColumnSelection(refs)
	return o
}

// How sets the join type
func (o JoinOptions) How(how JoinType) JoinOptions {
	o.how = how
	return o
}

// CaseSensitive controls whether string keys must match letter case exactly
func (o JoinOptions) CaseSensitive(on bool) JoinOptions {
	o.caseSensitive = on
	return o
}

// KeepRightKeys keeps the right table's key columns in the output.
// Outer joins always keep them; semi joins never emit right columns.
func (o JoinOptions) KeepRightKeys(on bool) JoinOptions {
	o.keepRightKeys = on
	return o
}

// JoinType returns the configured join type.
func (o JoinOptions) JoinType() JoinType { return o.how }

// ============================================================================
// Joiner
// ============================================================================

// Joiner runs relational joins. A Joiner holds no per-call state and is safe
// for concurrent use.
type Joiner struct {
	logger   *slog.Logger
	parallel ParallelConfig
}

// JoinerOption configures a Joiner.
type JoinerOption func(*Joiner)

// WithLogger sets the logger used to report merge failures.
func WithLogger(l *slog.Logger) JoinerOption {
	return func(j *Joiner) {
		if l != nil {
			j.logger = l
		}
	}
}

// WithParallelConfig sets when result columns are materialised concurrently.
func WithParallelConfig(cfg ParallelConfig) JoinerOption {
	return func(j *Joiner) {
		j.parallel = cfg
	}
}

// NewJoiner creates a Joiner. Without options it logs nowhere and uses
// DefaultParallelConfig.
func NewJoiner(opts ...JoinerOption) *Joiner {
	j := &Joiner{
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		parallel: DefaultParallelConfig(),
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

var defaultJoiner = NewJoiner()

// Join joins left and right with the default Joiner.
func Join(left, right *DataFrame, opts JoinOptions) (*DataFrame, error) {
	return defaultJoiner.Join(left, right, opts)
}

// Join performs an inner join with another DataFrame
func (df *DataFrame) Join(other *DataFrame, opts JoinOptions) (*DataFrame, error) {
	return Join(df, other, opts.How(InnerJoin))
}

// LeftJoin performs a left outer join with another DataFrame
func (df *DataFrame) LeftJoin(other *DataFrame, opts JoinOptions) (*DataFrame, error) {
	return Join(df, other, opts.How(LeftJoin))
}

// OuterJoin performs a full outer join with another DataFrame
func (df *DataFrame) OuterJoin(other *DataFrame, opts JoinOptions) (*DataFrame, error) {
	return Join(df, other, opts.How(OuterJoin))
}

// SemiJoin keeps the rows of df that have at least one match in other
func (df *DataFrame) SemiJoin(other *DataFrame, opts JoinOptions) (*DataFrame, error) {
	return Join(df, other, opts.How(SemiJoin))
}

// joinPlan is the validated, resolved form of a join request.
type joinPlan struct {
	left, right   *DataFrame
	leftKeys      []int
	rightKeys     []int
	how           JoinType
	caseSensitive bool
	keepRightKeys bool
	leftTypes     []KeyType
	rightTypes    []KeyType
}

// Join validates the request, then merges left and right.
func (j *Joiner) Join(left, right *DataFrame, opts JoinOptions) (*DataFrame, error) {
	plan, err := planJoin(left, right, opts)
	if err != nil {
		return nil, err
	}

	leftCols, rightCols, err := plan.normalisedKeys()
	if err != nil {
		return nil, err
	}

	result, err := j.safeMerge(plan, leftCols, rightCols)
	if err != nil {
		j.logger.Error("join merge failed",
			slog.String("how", plan.how.String()),
			slog.String("left_keys", formatKeyTypes(plan.leftTypes)),
			slog.String("right_keys", formatKeyTypes(plan.rightTypes)),
			slog.Any("error", err),
		)
		return nil, &MergeError{Left: plan.leftTypes, Right: plan.rightTypes, Err: err}
	}
	return result, nil
}

func planJoin(left, right *DataFrame, opts JoinOptions) (*joinPlan, error) {
	if left == nil || left.Width() == 0 {
		return nil, &ValidationError{Field: "left table", Reason: "table has no columns"}
	}
	if right == nil || right.Width() == 0 {
		return nil, &ValidationError{Field: "right table", Reason: "table has no columns"}
	}
	if !opts.how.valid() {
		return nil, &ValidationError{Field: "join type", Reason: fmt.Sprintf("unknown join type %d", int(opts.how))}
	}

	leftKeys, err := opts.leftOn.Resolve(left, "left")
	if err != nil {
		return nil, err
	}
	rightKeys, err := opts.rightOn.Resolve(right, "right")
	if err != nil {
		return nil, err
	}
	if len(leftKeys) != len(rightKeys) {
		return nil, &ValidationError{
			Field:  "keys",
			Reason: fmt.Sprintf("left has %d key columns, right has %d", len(leftKeys), len(rightKeys)),
		}
	}

	plan := &joinPlan{
		left:          left,
		right:         right,
		leftKeys:      leftKeys,
		rightKeys:     rightKeys,
		how:           opts.how,
		caseSensitive: opts.caseSensitive,
		keepRightKeys: opts.keepRightKeys || opts.how == OuterJoin,
		leftTypes:     make([]KeyType, len(leftKeys)),
		rightTypes:    make([]KeyType, len(rightKeys)),
	}
	for i := range leftKeys {
		l, r := left.Column(leftKeys[i]), right.Column(rightKeys[i])
		plan.leftTypes[i] = KeyType{Name: l.Name(), DType: l.DType()}
		plan.rightTypes[i] = KeyType{Name: r.Name(), DType: r.DType()}
	}
	return plan, nil
}

// normalisedKeys returns the key series both sides are matched on: cast to
// a shared dtype and, for case-insensitive joins, uppercased shadows.
func (p *joinPlan) normalisedKeys() ([]*Series, []*Series, error) {
	leftCols := make([]*Series, len(p.leftKeys))
	rightCols := make([]*Series, len(p.rightKeys))
	for i := range p.leftKeys {
		l, r := p.left.Column(p.leftKeys[i]), p.right.Column(p.rightKeys[i])
		target, ok := compatibleKeyType(l.DType(), r.DType())
		if !ok {
			return nil, nil, &IncompatibleKeyTypesError{Left: p.leftTypes, Right: p.rightTypes, Pair: i}
		}
		leftCols[i], rightCols[i] = castKey(l, target), castKey(r, target)
		if !p.caseSensitive && target == String {
			leftCols[i], rightCols[i] = shadowUpper(leftCols[i]), shadowUpper(rightCols[i])
		}
	}
	return leftCols, rightCols, nil
}

// safeMerge turns a panic inside the merge (for example a malformed Series
// built outside the constructors) into an error.
func (j *Joiner) safeMerge(p *joinPlan, leftCols, rightCols []*Series) (df *DataFrame, err error) {
	defer func() {
		if r := recover(); r != nil {
			df, err = nil, fmt.Errorf("panic during merge: %v", r)
		}
	}()
	return j.merge(p, leftCols, rightCols)
}

func (j *Joiner) merge(p *joinPlan, leftCols, rightCols []*Series) (*DataFrame, error) {
	index, rightNullRows := buildKeyIndex(rightCols, p.right.Height())

	switch p.how {
	case InnerJoin:
		li, ri, _ := probe(index, leftCols, rightCols, p.left.Height(), false)
		return j.assemble(p, li, ri)
	case LeftJoin:
		li, ri, _ := probe(index, leftCols, rightCols, p.left.Height(), true)
		return j.assemble(p, li, ri)
	case OuterJoin:
		li, ri, matched := probe(index, leftCols, rightCols, p.left.Height(), true)
		isNull := make(map[int]bool, len(rightNullRows))
		for _, row := range rightNullRows {
			isNull[row] = true
		}
		for row := 0; row < p.right.Height(); row++ {
			if !matched[row] && !isNull[row] {
				li = append(li, -1)
				ri = append(ri, row)
			}
		}
		for _, row := range rightNullRows {
			li = append(li, -1)
			ri = append(ri, row)
		}
		return j.assemble(p, li, ri)
	case SemiJoin:
		li, _, _ := probe(index, leftCols, rightCols, p.left.Height(), false)
		return p.left.Take(distinctSorted(li)), nil
	default:
		return nil, fmt.Errorf("unhandled join type %s", p.how)
	}
}

// probe looks every left row up in the right index. It returns the paired
// row indices (-1 on the right for unmatched left rows when keepUnmatched is
// set) and which right rows matched at least once.
func probe(index *keyIndex, leftCols, rightCols []*Series, leftHeight int, keepUnmatched bool) ([]int, []int, map[int]bool) {
	var leftIndices, rightIndices []int
	matched := make(map[int]bool)
	h := newKeyHasher(leftCols)

	for leftRow := 0; leftRow < leftHeight; leftRow++ {
		found := false
		if !hasNullKey(leftCols, leftRow) {
			for _, rightRow := range index.buckets[h.hashRow(leftRow)] {
				if keysMatch(leftCols, leftRow, rightCols, rightRow) {
					leftIndices = append(leftIndices, leftRow)
					rightIndices = append(rightIndices, rightRow)
					matched[rightRow] = true
					found = true
				}
			}
		}
		if !found && keepUnmatched {
			leftIndices = append(leftIndices, leftRow)
			rightIndices = append(rightIndices, -1)
		}
	}
	return leftIndices, rightIndices, matched
}

func distinctSorted(rows []int) []int {
	seen := make(map[int]bool, len(rows))
	out := make([]int, 0, len(rows))
	for _, r := range rows {
		if !seen[r] {
			seen[r] = true
			out = append(out, r)
		}
	}
	sort.Ints(out)
	return out
}

// ============================================================================
// Output Columns
// ============================================================================

// colMapping tracks how to build output columns
type colMapping struct {
	name     string
	fromLeft bool
	srcCol   int
}

// RightSuffix returns the suffix appended to colliding right-table columns:
// "_R", then "_R1", "_R2", ... The first candidate s is chosen such that no
// column name of either table, with s appended, is already a column name of
// either table.
func RightSuffix(left, right *DataFrame) string {
	existing := make(map[string]bool, left.Width()+right.Width())
	for _, n := range left.Columns() {
		existing[n] = true
	}
	for _, n := range right.Columns() {
		existing[n] = true
	}

	for i := 0; ; i++ {
		suffix := "_R"
		if i > 0 {
			suffix += strconv.Itoa(i)
		}
		clash := false
		for n := range existing {
			if existing[n+suffix] {
				clash = true
				break
			}
		}
		if !clash {
			return suffix
		}
	}
}

// resolveOutputColumns lays out the result: every left column, then the
// right columns with collisions suffixed and, unless kept, the keys dropped.
func (p *joinPlan) resolveOutputColumns() []colMapping {
	suffix := RightSuffix(p.left, p.right)

	mapping := make([]colMapping, 0, p.left.Width()+p.right.Width())
	for i, name := range p.left.Columns() {
		mapping = append(mapping, colMapping{name: name, fromLeft: true, srcCol: i})
	}

	rightKeySet := make(map[int]bool, len(p.rightKeys))
	for _, k := range p.rightKeys {
		rightKeySet[k] = true
	}

	for i, name := range p.right.Columns() {
		if rightKeySet[i] && !p.keepRightKeys {
			continue
		}
		if p.left.HasColumn(name) {
			name += suffix
		}
		mapping = append(mapping, colMapping{name: name, fromLeft: false, srcCol: i})
	}
	return mapping
}

func (j *Joiner) assemble(p *joinPlan, leftIndices, rightIndices []int) (*DataFrame, error) {
	mapping := p.resolveOutputColumns()
	result := make([]*Series, len(mapping))

	err := j.parallel.forEach(len(mapping), len(leftIndices), func(i int) error {
		m := mapping[i]
		if m.fromLeft {
			result[i] = p.left.Column(m.srcCol).take(m.name, leftIndices)
		} else {
			result[i] = p.right.Column(m.srcCol).take(m.name, rightIndices)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return NewDataFrame(result...)
}
