package main

import (
	"bytes"
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/wippyai/wasm-bridge/errors"
	"github.com/wippyai/wasm-bridge/mirror"
)

const declFile = `framework: 6.2.4
mirrors:
  - name: Date
    by_value: true
    fields: [{name: jd, type: s64}]
  - name: Point
    by_value: true
    fields: [{name: x, type: s32}, {name: y, type: s32}]
  - name: Polygon
    layouts:
      - since: 5.0.0
        fields: [{name: d, type: ptr}]
      - since: 6.0.0
        fields: [{name: d, type: "ptr[3]"}]
`

func writeDecl(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "layouts.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRun_BuiltinMirrors(t *testing.T) {
	var out bytes.Buffer
	if err := run(&out, options{color: "never"}); err != nil {
		t.Fatalf("run: %v\n%s", err, out.String())
	}
	for _, want := range []string{"Mirror layouts (latest)", "ModelIndex", "abi.Variant", "all 6 mirrors ok"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("report missing %q:\n%s", want, out.String())
		}
	}
}

func TestRun_OldFramework(t *testing.T) {
	var out bytes.Buffer
	err := run(&out, options{framework: "5.15.2", color: "never"})
	if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseLayout, Kind: errors.KindInvalidData}) {
		t.Fatalf("run = %v", err)
	}
	report := out.String()
	if !strings.Contains(report, "1 of 6 mirrors FAILED") {
		t.Errorf("report:\n%s", report)
	}
	if !strings.Contains(report, "size_mismatch") {
		t.Errorf("report should list the size mismatch:\n%s", report)
	}
}

func TestRun_DeclarationFile(t *testing.T) {
	path := writeDecl(t, declFile)

	var out bytes.Buffer
	if err := run(&out, options{decl: path, color: "never"}); err != nil {
		t.Fatalf("run: %v\n%s", err, out.String())
	}
	if !strings.Contains(out.String(), "Mirror layouts (6.2.4)") || !strings.Contains(out.String(), "all 3 mirrors ok") {
		t.Errorf("report:\n%s", out.String())
	}

	// The flag overrides the file.
	out.Reset()
	if err := run(&out, options{decl: path, framework: "5.0.0", color: "never"}); err == nil {
		t.Errorf("expected failure against 5.0.0:\n%s", out.String())
	}
}

func TestRun_DeclarationErrors(t *testing.T) {
	tests := []struct {
		name string
		opts options
		kind errors.Kind
	}{
		{"missing file", options{decl: "/nonexistent/layouts.yaml"}, errors.KindNotFound},
		{"unknown type", options{decl: writeDecl(t, "mirrors:\n  - name: Nope\n    fields: [{name: a, type: u8}]\n")}, errors.KindNotFound},
		{"bad field type", options{decl: writeDecl(t, "mirrors:\n  - name: Date\n    fields: [{name: a, type: quux}]\n")}, errors.KindInvalidData},
		{"bad framework flag", options{framework: "six"}, errors.KindInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := run(&bytes.Buffer{}, tt.opts)
			if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseConfig, Kind: tt.kind}) {
				t.Errorf("run = %v, want config %s", err, tt.kind)
			}
		})
	}
}

func TestRun_Emit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "zz_layout_assert.go")

	var out bytes.Buffer
	if err := run(&out, options{pkg: "abi", emit: path, color: "never"}); err != nil {
		t.Fatalf("run: %v", err)
	}
	src, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"package abi", "unsafe.Sizeof(ModelIndex{})-16", "unsafe.Alignof(Variant{})-8"} {
		if !bytes.Contains(src, []byte(want)) {
			t.Errorf("generated source missing %q:\n%s", want, src)
		}
	}

	// Failing mirrors are not emitted.
	failPath := filepath.Join(dir, "fail.go")
	if err := run(&out, options{pkg: "abi", emit: failPath, framework: "5.0.0", color: "never"}); err == nil {
		t.Fatal("expected failure")
	}
	if _, err := os.Stat(failPath); !os.IsNotExist(err) {
		t.Error("assertions written for failing mirrors")
	}
}

func TestReport_Plain(t *testing.T) {
	var out bytes.Buffer
	r := newReport(&out, "never")
	text := r.render("", check(mustLoad(t, options{}), ""))
	if strings.Contains(text, "\x1b[") {
		t.Errorf("plain report contains escape codes: %q", text)
	}
	if colorize(&out, "auto") {
		t.Error("a buffer is not a terminal")
	}
	if !colorize(&out, "always") {
		t.Error("always should colorize")
	}
}

func mustLoad(t *testing.T, opts options) []mirror.Mirror {
	t.Helper()
	mirrors, _, err := load(opts)
	if err != nil {
		t.Fatal(err)
	}
	return mirrors
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestBrowser(t *testing.T) {
	b := newBrowser(options{})
	if b.err != nil {
		t.Fatal(b.err)
	}
	if failed(b.results) != 0 {
		t.Fatal("built-in mirrors should pass")
	}

	b.Update(key("down"))
	if b.selected != 1 {
		t.Errorf("selected = %d", b.selected)
	}
	b.Update(key("enter"))
	if b.state != stateDetail || !strings.Contains(b.View(), "reference: size") {
		t.Errorf("detail view:\n%s", b.View())
	}
	b.Update(key("esc"))

	b.Update(key("f"))
	if b.state != stateVersion {
		t.Fatal("f should open the framework prompt")
	}
	b.version.SetValue("5.0.0")
	b.Update(key("enter"))
	if b.framework != "5.0.0" || failed(b.results) != 1 {
		t.Errorf("framework %q, %d failures", b.framework, failed(b.results))
	}

	b.Update(key("f"))
	b.version.SetValue("nope")
	b.Update(key("enter"))
	if b.err == nil || b.framework != "5.0.0" {
		t.Error("invalid version should keep the previous results")
	}
	if !strings.Contains(b.View(), "invalid framework version") {
		t.Errorf("view:\n%s", b.View())
	}
}
