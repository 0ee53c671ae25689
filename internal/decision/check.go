package decision

// Report is the outcome of Check.
type Report struct {
	// Missing holds witnesses of values no row matches.
	Missing []Pattern
	// Redundant lists goals none of whose rows can ever be selected.
	Redundant []int
}

// Exhaustive reports whether every value is matched.
func (r Report) Exhaustive() bool { return len(r.Missing) == 0 }

// Check runs the usefulness algorithm over rows. Guarded rows may fail, so
// they never count toward exhaustiveness, but they are still checked for
// redundancy.
func Check(rows []Row) Report {
	var matrix [][]Pattern
	useful := make(map[int]bool)
	goals := make([]int, 0, len(rows))
	seen := make(map[int]bool)
	for _, r := range rows {
		if !seen[r.Goal] {
			seen[r.Goal] = true
			goals = append(goals, r.Goal)
		}
		vec := []Pattern{r.Pattern}
		if isUseful(matrix, vec) {
			useful[r.Goal] = true
			if !r.Guard {
				matrix = append(matrix, vec)
			}
		}
	}
	var rep Report
	for _, g := range goals {
		if !useful[g] {
			rep.Redundant = append(rep.Redundant, g)
		}
	}
	for _, w := range missing(matrix, 1) {
		rep.Missing = append(rep.Missing, w[0])
	}
	return rep
}

func isUseful(matrix [][]Pattern, vec []Pattern) bool {
	if len(matrix) == 0 {
		return true
	}
	if len(vec) == 0 {
		return false
	}
	head := vec[0]
	switch head.Kind {
	case Ctor:
		return isUseful(specializeCtor(matrix, head.Union, head.Tag), append(fieldPatterns(head), vec[1:]...))
	case Any:
		if u, ok := completeUnion(matrix); ok {
			for tag, alt := range u.Alts {
				if isUseful(specializeCtor(matrix, u, tag), append(wildcards(alt.Arity), vec[1:]...)) {
					return true
				}
			}
			return false
		}
		return isUseful(defaultMatrix(matrix), vec[1:])
	default:
		return isUseful(specializeLiteral(matrix, head), vec[1:])
	}
}

// missing returns witness rows of n columns not covered by matrix.
func missing(matrix [][]Pattern, n int) [][]Pattern {
	if len(matrix) == 0 {
		return [][]Pattern{wildcards(n)}
	}
	if n == 0 {
		return nil
	}
	seen, u := headCtors(matrix)
	if u == nil {
		var out [][]Pattern
		for _, row := range missing(defaultMatrix(matrix), n-1) {
			out = append(out, append([]Pattern{Wildcard()}, row...))
		}
		return out
	}
	if len(seen) < len(u.Alts) {
		rest := missing(defaultMatrix(matrix), n-1)
		if len(rest) == 0 {
			return nil
		}
		var out [][]Pattern
		for tag, alt := range u.Alts {
			if seen[tag] {
				continue
			}
			ctor := Pattern{Kind: Ctor, Union: u, Tag: tag, Fields: wildFields(alt.Arity)}
			out = append(out, append([]Pattern{ctor}, rest[0]...))
		}
		return out
	}
	var out [][]Pattern
	for tag, alt := range u.Alts {
		for _, row := range missing(specializeCtor(matrix, u, tag), alt.Arity+n-1) {
			ctor := Pattern{Kind: Ctor, Union: u, Tag: tag, Fields: make([]Field, alt.Arity)}
			for i := 0; i < alt.Arity; i++ {
				ctor.Fields[i] = Field{Pattern: row[i]}
			}
			out = append(out, append([]Pattern{ctor}, row[alt.Arity:]...))
		}
	}
	return out
}

func headCtors(matrix [][]Pattern) (map[int]bool, *Union) {
	seen := make(map[int]bool)
	var u *Union
	for _, row := range matrix {
		if row[0].Kind == Ctor {
			seen[row[0].Tag] = true
			u = row[0].Union
		}
	}
	return seen, u
}

func completeUnion(matrix [][]Pattern) (*Union, bool) {
	seen, u := headCtors(matrix)
	if u == nil || len(seen) != len(u.Alts) {
		return nil, false
	}
	return u, true
}

func specializeCtor(matrix [][]Pattern, u *Union, tag int) [][]Pattern {
	var out [][]Pattern
	for _, row := range matrix {
		head := row[0]
		switch head.Kind {
		case Ctor:
			if head.Tag == tag {
				out = append(out, append(fieldPatterns(head), row[1:]...))
			}
		case Any:
			out = append(out, append(wildcards(u.Alts[tag].Arity), row[1:]...))
		}
	}
	return out
}

func specializeLiteral(matrix [][]Pattern, lit Pattern) [][]Pattern {
	want := testOf(lit)
	var out [][]Pattern
	for _, row := range matrix {
		head := row[0]
		switch {
		case head.Kind == Any:
			out = append(out, row[1:])
		case head.Kind != Ctor && testOf(head).equal(want):
			out = append(out, row[1:])
		}
	}
	return out
}

func defaultMatrix(matrix [][]Pattern) [][]Pattern {
	var out [][]Pattern
	for _, row := range matrix {
		if row[0].Kind == Any {
			out = append(out, row[1:])
		}
	}
	return out
}

func fieldPatterns(p Pattern) []Pattern {
	out := make([]Pattern, len(p.Fields))
	for i, f := range p.Fields {
		out[i] = f.Pattern
	}
	return out
}

func wildcards(n int) []Pattern {
	out := make([]Pattern, n)
	for i := range out {
		out[i] = Wildcard()
	}
	return out
}

func wildFields(n int) []Field {
	out := make([]Field, n)
	for i := range out {
		out[i] = Field{Pattern: Wildcard()}
	}
	return out
}
