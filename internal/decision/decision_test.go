package decision_test

import (
	"testing"

	"monoc/internal/decision"
)

var maybe = &decision.Union{Alts: []decision.Alt{{Name: "Just", Arity: 1}, {Name: "Nothing"}}}

var these = &decision.Union{Alts: []decision.Alt{{Name: "That", Arity: 1}, {Name: "These", Arity: 2}, {Name: "This", Arity: 1}}}

var pair = &decision.Union{Alts: []decision.Alt{{Name: "", Arity: 2, Labels: []string{"a", "b"}}}}

func just(p decision.Pattern) decision.Pattern {
	return decision.Pattern{Kind: decision.Ctor, Union: maybe, Tag: 0, Variant: 0,
		Fields: []decision.Field{{Index: 1, Pattern: p}}}
}

func nothing() decision.Pattern {
	return decision.Pattern{Kind: decision.Ctor, Union: maybe, Tag: 1, Variant: 1}
}

func intPat(v int64) decision.Pattern { return decision.Pattern{Kind: decision.Int, Int: v} }

func record(a, b decision.Pattern) decision.Pattern {
	return decision.Pattern{Kind: decision.Ctor, Union: pair, Variant: -1,
		Fields: []decision.Field{{Index: 0, Pattern: a}, {Index: 1, Pattern: b}}}
}

func TestCompileTestsScrutineeThenPayload(t *testing.T) {
	rows := []decision.Row{
		{Pattern: just(intPat(3)), Goal: 0},
		{Pattern: just(decision.Wildcard()), Goal: 1},
		{Pattern: nothing(), Goal: 2},
	}
	tree := decision.Compile(rows)
	if tree.Kind != decision.Decide || len(tree.Path) != 0 {
		t.Fatalf("root should test the scrutinee, got kind %d path %v", tree.Kind, tree.Path)
	}
	if len(tree.Edges) != 2 || tree.Fallback != nil {
		t.Fatalf("want 2 exhaustive edges, got %d (fallback %v)", len(tree.Edges), tree.Fallback != nil)
	}
	inner := tree.Edges[0].Node
	if inner.Kind != decision.Decide || len(inner.Path) != 1 || inner.Path[0].Index != 1 || inner.Path[0].Variant != 0 {
		t.Fatalf("Just edge should test payload at Index 1, got %+v", inner.Path)
	}
	if inner.Fallback == nil || inner.Fallback.Goal != 1 || inner.Edges[0].Node.Goal != 0 {
		t.Fatalf("payload test routes wrong: %+v", inner)
	}
	if got := tree.Edges[1].Node; got.Kind != decision.Leaf || got.Goal != 2 {
		t.Fatalf("Nothing edge = %+v", got)
	}
}

func TestCompileFlattensRecords(t *testing.T) {
	rows := []decision.Row{
		{Pattern: record(decision.Wildcard(), intPat(1)), Goal: 0},
		{Pattern: record(intPat(2), decision.Wildcard()), Goal: 1},
		{Pattern: decision.Wildcard(), Goal: 2},
	}
	tree := decision.Compile(rows)
	if tree.Kind != decision.Decide || len(tree.Path) != 1 || tree.Path[0].Index != 1 || tree.Path[0].Variant != -1 {
		t.Fatalf("first test should read field 1 of the record, got %+v", tree.Path)
	}
	if tree.Fallback == nil || tree.Fallback.Kind != decision.Decide || tree.Fallback.Path[0].Index != 0 {
		t.Fatalf("fallback should test field 0")
	}
}

func TestCompileGuardFallsThrough(t *testing.T) {
	rows := []decision.Row{
		{Pattern: decision.Wildcard(), Guard: true, Goal: 0},
		{Pattern: decision.Wildcard(), Goal: 1},
	}
	tree := decision.Compile(rows)
	if tree.Kind != decision.Guarded || tree.Goal != 0 {
		t.Fatalf("want guard node, got %+v", tree)
	}
	if tree.Failure == nil || tree.Failure.Kind != decision.Leaf || tree.Failure.Goal != 1 {
		t.Fatalf("guard failure should reach goal 1")
	}
}

func TestCompileOrPatternSharesGoal(t *testing.T) {
	this := func() decision.Pattern {
		return decision.Pattern{Kind: decision.Ctor, Union: these, Tag: 2, Variant: 2,
			Fields: []decision.Field{{Index: 1, Pattern: decision.Wildcard()}}}
	}
	that := func() decision.Pattern {
		return decision.Pattern{Kind: decision.Ctor, Union: these, Tag: 0, Variant: 0,
			Fields: []decision.Field{{Index: 1, Pattern: decision.Wildcard()}}}
	}
	both := decision.Pattern{Kind: decision.Ctor, Union: these, Tag: 1, Variant: 1,
		Fields: []decision.Field{{Index: 1, Pattern: decision.Wildcard()}, {Index: 2, Pattern: decision.Wildcard()}}}
	rows := []decision.Row{
		{Pattern: this(), Goal: 0},
		{Pattern: that(), Goal: 0},
		{Pattern: both, Goal: 1},
	}
	tree := decision.Compile(rows)
	if len(tree.Edges) != 3 || tree.Fallback != nil {
		t.Fatalf("want three exhaustive edges, got %d", len(tree.Edges))
	}
	if tree.Edges[0].Test.Tag != 2 || tree.Edges[1].Test.Tag != 0 {
		t.Fatalf("edges should follow first appearance")
	}
	if got := decision.Goals(tree); got[0] != 2 || got[1] != 1 {
		t.Fatalf("goal counts = %v", got)
	}
}

func TestCheckExhaustiveness(t *testing.T) {
	cases := []struct {
		name      string
		rows      []decision.Row
		missing   []string
		redundant []int
	}{
		{
			name:    "missing Nothing",
			rows:    []decision.Row{{Pattern: just(decision.Wildcard()), Goal: 0}},
			missing: []string{"Nothing"},
		},
		{
			name: "missing payload",
			rows: []decision.Row{
				{Pattern: just(intPat(1)), Goal: 0},
				{Pattern: nothing(), Goal: 1},
			},
			missing: []string{"Just _"},
		},
		{
			name: "redundant after wildcard",
			rows: []decision.Row{
				{Pattern: decision.Wildcard(), Goal: 0},
				{Pattern: nothing(), Goal: 1},
			},
			redundant: []int{1},
		},
		{
			name: "guard does not cover",
			rows: []decision.Row{
				{Pattern: decision.Wildcard(), Guard: true, Goal: 0},
			},
			missing: []string{"_"},
		},
		{
			name: "nested record",
			rows: []decision.Row{
				{Pattern: record(nothing(), decision.Wildcard()), Goal: 0},
			},
			missing: []string{"{ a: Just _, b: _ }"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rep := decision.Check(tc.rows)
			if len(rep.Missing) != len(tc.missing) {
				t.Fatalf("missing = %v, want %v", rep.Missing, tc.missing)
			}
			for i, w := range rep.Missing {
				if w.String() != tc.missing[i] {
					t.Fatalf("witness %d = %q, want %q", i, w.String(), tc.missing[i])
				}
			}
			if len(rep.Redundant) != len(tc.redundant) {
				t.Fatalf("redundant = %v, want %v", rep.Redundant, tc.redundant)
			}
			for i, g := range rep.Redundant {
				if g != tc.redundant[i] {
					t.Fatalf("redundant = %v, want %v", rep.Redundant, tc.redundant)
				}
			}
		})
	}
}
