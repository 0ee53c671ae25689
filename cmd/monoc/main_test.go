package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"monoc/internal/testkit"
)

func TestReadUIMode(t *testing.T) {
	tests := []struct {
		in   string
		want uiMode
		ok   bool
	}{
		{"", uiModeAuto, true},
		{"AUTO", uiModeAuto, true},
		{" on ", uiModeOn, true},
		{"off", uiModeOff, true},
		{"sometimes", "", false},
	}
	for _, tt := range tests {
		got, err := readUIMode(tt.in)
		if (err == nil) != tt.ok || got != tt.want {
			t.Fatalf("readUIMode(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestRenderVersionJSON(t *testing.T) {
	var buf bytes.Buffer
	info := versionInfo{Version: "1.2.3", GoVersion: "go1.25.1"}
	if err := renderVersionJSON(&buf, info, versionOptions{showHash: true}); err != nil {
		t.Fatal(err)
	}
	var payload versionPayload
	if err := json.Unmarshal(buf.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v\n%s", err, buf.String())
	}
	if payload.Tool != "monoc" || payload.Version != "1.2.3" || payload.GitCommit != "unknown" || payload.BuildDate != "" {
		t.Fatalf("payload = %+v", payload)
	}
}

func writeAddBundle(t *testing.T, dir string) string {
	t.Helper()
	return testkit.WriteBundle(t, dir, "demo.mpk", testkit.AddModule("Demo", 20, 22))
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(append(args, "--ui", "off", "--color", "off", "--no-cache"))
	err := rootCmd.Execute()
	return out.String(), err
}

func TestCommandsEndToEnd(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "monoc.toml"), []byte("[project]\nname = \"demo\"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	bundle := writeAddBundle(t, dir)

	out, err := execute(t, "build", bundle)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if !strings.Contains(out, "procedure Demo.") {
		t.Fatalf("build output:\n%s", out)
	}

	out, err = execute(t, "run", bundle)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out, "= 42") {
		t.Fatalf("run output:\n%s", out)
	}

	out, err = execute(t, "check", bundle)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !strings.Contains(out, "1 modules") || !strings.Contains(out, "0 errors") {
		t.Fatalf("check output:\n%s", out)
	}

	out, err = execute(t, "layouts", bundle)
	if err != nil {
		t.Fatalf("layouts: %v", err)
	}
	if !strings.Contains(out, "module Demo") || !strings.Contains(out, "(main): I64") {
		t.Fatalf("layouts output:\n%s", out)
	}
}

func TestBadConfigFailsCommand(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "monoc.toml"), []byte("[layout]\ndefault_int_width = 7\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	bundle := writeAddBundle(t, dir)
	if _, err := execute(t, "check", bundle); err == nil || !strings.Contains(err.Error(), "default_int_width") {
		t.Fatalf("err = %v", err)
	}
}

func TestCheckFormats(t *testing.T) {
	t.Cleanup(func() { _ = checkCmd.Flags().Set("format", "pretty") })
	dir := t.TempDir()
	bundle := writeAddBundle(t, dir)

	out, err := execute(t, "check", bundle, "--format", "json")
	if err != nil {
		t.Fatalf("check json: %v", err)
	}
	var doc struct {
		Count  int `json:"count"`
		Errors int `json:"errors"`
	}
	if err := json.Unmarshal([]byte(out), &doc); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if doc.Errors != 0 {
		t.Fatalf("doc = %+v", doc)
	}

	out, err = execute(t, "check", bundle, "--format", "sarif")
	if err != nil {
		t.Fatalf("check sarif: %v", err)
	}
	if !strings.Contains(out, `"version": "2.1.0"`) {
		t.Fatalf("sarif output:\n%s", out)
	}

	if _, err := execute(t, "check", bundle, "--format", "xml"); err == nil {
		t.Fatalf("expected invalid format error")
	}
}

func TestRingTraceDumpsOnExit(t *testing.T) {
	t.Cleanup(func() {
		flags := rootCmd.PersistentFlags()
		_ = flags.Set("trace", "")
		_ = flags.Set("trace-level", "")
		_ = flags.Set("trace-mode", "stream")
	})
	dir := t.TempDir()
	bundle := writeAddBundle(t, dir)
	tracePath := filepath.Join(dir, "trace.txt")

	if _, err := execute(t, "check", bundle, "--trace", tracePath, "--trace-level", "phase", "--trace-mode", "ring"); err != nil {
		t.Fatalf("check: %v", err)
	}
	data, err := os.ReadFile(tracePath)
	if err != nil {
		t.Fatalf("read trace: %v", err)
	}
	if len(data) == 0 {
		t.Fatalf("ring dump is empty")
	}
}
