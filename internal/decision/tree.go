package decision

// NodeKind enumerates decision tree nodes.
type NodeKind uint8

const (
	// Leaf selects Goal, binding the variables of Row.
	Leaf NodeKind = iota
	// Decide tests the value at Path against each edge in order.
	Decide
	// Guarded evaluates the guard of Row; on failure it continues with
	// Failure.
	Guarded
	// Fail is reached only when no row matches.
	Fail
)

// Edge is one test outcome.
type Edge struct {
	Test Test
	Node *Node
}

// Node is a decision tree node.
type Node struct {
	Kind NodeKind

	Path     Path
	Edges    []Edge
	Fallback *Node // nil when the edges cover every constructor

	Row  int
	Goal int

	Failure *Node
}

// Row is one alternative of a match. Or-patterns become several rows with
// the same Goal.
type Row struct {
	Pattern Pattern
	Guard   bool
	Goal    int
}

type check struct {
	path Path
	pat  Pattern
}

type branch struct {
	row    int
	goal   int
	guard  bool
	checks []check
}

// Compile builds a decision tree for rows, tried top to bottom.
func Compile(rows []Row) *Node {
	branches := make([]branch, len(rows))
	for i, r := range rows {
		branches[i] = branch{
			row:    i,
			goal:   r.Goal,
			guard:  r.Guard,
			checks: flatten(nil, []check{{path: Path{}, pat: r.Pattern}}),
		}
	}
	return compile(branches)
}

// flatten drops wildcards and opens single-constructor patterns, which
// match without a test.
func flatten(out, in []check) []check {
	for _, c := range in {
		switch {
		case c.pat.Kind == Any:
		case c.pat.Kind == Ctor && c.pat.Union.Single():
			out = flatten(out, fieldChecks(c.path, c.pat))
		default:
			out = append(out, c)
		}
	}
	return out
}

func fieldChecks(path Path, p Pattern) []check {
	out := make([]check, len(p.Fields))
	for i, f := range p.Fields {
		out[i] = check{path: path.Extend(Step{Index: f.Index, Variant: p.Variant}), pat: f.Pattern}
	}
	return out
}

func compile(branches []branch) *Node {
	if len(branches) == 0 {
		return &Node{Kind: Fail}
	}
	first := branches[0]
	if len(first.checks) == 0 {
		if first.guard {
			return &Node{Kind: Guarded, Row: first.row, Goal: first.goal, Failure: compile(branches[1:])}
		}
		return &Node{Kind: Leaf, Row: first.row, Goal: first.goal}
	}

	path := pickPath(branches)
	key := path.Key()
	var tests []Test
	for _, b := range branches {
		c, ok := find(b, key)
		if !ok {
			continue
		}
		t := testOf(c.pat)
		if !containsTest(tests, t) {
			tests = append(tests, t)
		}
	}

	n := &Node{Kind: Decide, Path: path}
	for _, t := range tests {
		n.Edges = append(n.Edges, Edge{Test: t, Node: compile(specialize(branches, key, t))})
	}
	if !complete(tests) {
		var rest []branch
		for _, b := range branches {
			if _, ok := find(b, key); !ok {
				rest = append(rest, b)
			}
		}
		n.Fallback = compile(rest)
	}
	return n
}

// pickPath chooses among the first branch's checks the path tested by the
// most branches, then the shortest, then the leftmost.
func pickPath(branches []branch) Path {
	best := -1
	bestScore := -1
	for i, c := range branches[0].checks {
		key := c.path.Key()
		score := 0
		for _, b := range branches {
			if _, ok := find(b, key); ok {
				score++
			}
		}
		if score > bestScore || (score == bestScore && len(c.path) < len(branches[0].checks[best].path)) {
			best, bestScore = i, score
		}
	}
	return branches[0].checks[best].path
}

func find(b branch, key string) (check, bool) {
	for _, c := range b.checks {
		if c.path.Key() == key {
			return c, true
		}
	}
	return check{}, false
}

func containsTest(tests []Test, t Test) bool {
	for _, x := range tests {
		if x.equal(t) {
			return true
		}
	}
	return false
}

func complete(tests []Test) bool {
	if len(tests) == 0 || tests[0].Kind != IsCtor {
		return false
	}
	return len(tests) == len(tests[0].Union.Alts)
}

// specialize keeps the branches compatible with t at key, replacing a
// matched check by the checks of its fields.
func specialize(branches []branch, key string, t Test) []branch {
	var out []branch
	for _, b := range branches {
		idx := -1
		for i, c := range b.checks {
			if c.path.Key() == key {
				idx = i
				break
			}
		}
		if idx < 0 {
			out = append(out, b)
			continue
		}
		c := b.checks[idx]
		if !testOf(c.pat).equal(t) {
			continue
		}
		checks := make([]check, 0, len(b.checks)+len(c.pat.Fields))
		checks = append(checks, b.checks[:idx]...)
		if c.pat.Kind == Ctor {
			checks = flatten(checks, fieldChecks(c.path, c.pat))
		}
		checks = append(checks, b.checks[idx+1:]...)
		b.checks = checks
		out = append(out, b)
	}
	return out
}

// Goals counts how many leaves and guards reach each goal.
func Goals(n *Node) map[int]int {
	out := make(map[int]int)
	var walk func(*Node)
	walk = func(n *Node) {
		if n == nil {
			return
		}
		switch n.Kind {
		case Leaf:
			out[n.Goal]++
		case Guarded:
			out[n.Goal]++
			walk(n.Failure)
		case Decide:
			for _, e := range n.Edges {
				walk(e.Node)
			}
			walk(n.Fallback)
		}
	}
	walk(n)
	return out
}
