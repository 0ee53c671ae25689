package ui

import (
	"strings"
	"testing"

	"monoc/internal/buildpipeline"
)

func TestProgressModelTracksModules(t *testing.T) {
	events := make(chan buildpipeline.Event)
	m := NewProgressModel("build", []string{"Alpha"}, events).(*progressModel)

	for _, ev := range []buildpipeline.Event{
		{Module: "Alpha", Stage: buildpipeline.StageSpecialize, Status: buildpipeline.StatusWorking},
		{Module: "Beta", Stage: buildpipeline.StageSpecialize, Status: buildpipeline.StatusCached},
		{Stage: buildpipeline.StageEmit, Status: buildpipeline.StatusWorking},
	} {
		m.Update(eventMsg(ev))
	}

	if len(m.items) != 2 || m.items[1].name != "Beta" {
		t.Fatalf("items = %+v", m.items)
	}
	if m.items[0].status != "specializing" || m.items[1].status != "cached" {
		t.Fatalf("statuses = %q, %q", m.items[0].status, m.items[1].status)
	}
	if got := m.percent(); got != (0.3+1.0)/2 {
		t.Fatalf("percent = %v", got)
	}
	view := m.View()
	for _, want := range []string{"build (emitting)", "Alpha", "Beta"} {
		if !strings.Contains(view, want) {
			t.Fatalf("view lacks %q:\n%s", want, view)
		}
	}

	m.Update(doneMsg{})
	if !strings.Contains(m.View(), "done: build") {
		t.Fatalf("view after done:\n%s", m.View())
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in    string
		width int
		want  string
	}{
		{"Module", 10, "Module"},
		{"VeryLongModuleName", 10, "Very..."},
		{"模块模块模块", 8, "模..."},
		{"abcdef", 3, "abc"},
		{"abc", 0, "abc"},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.width); got != tt.want {
			t.Fatalf("truncate(%q, %d) = %q, want %q", tt.in, tt.width, got, tt.want)
		}
	}
}
