package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"

	"github.com/wippyai/wasm-bridge/layout"
	"github.com/wippyai/wasm-bridge/mirror"
)

type report struct {
	title   lipgloss.Style
	name    lipgloss.Style
	typ     lipgloss.Style
	ok      lipgloss.Style
	bad     lipgloss.Style
	problem lipgloss.Style
	help    lipgloss.Style
}

// newReport builds the report styles for w. mode is auto, always or never;
// auto colors only terminals.
func newReport(w io.Writer, mode string) *report {
	r := lipgloss.NewRenderer(w)
	if !colorize(w, mode) {
		r.SetColorProfile(termenv.Ascii)
	}
	return &report{
		title: r.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1),
		name:    r.NewStyle().Width(12),
		typ:     r.NewStyle().Foreground(lipgloss.Color("#87CEEB")),
		ok:      r.NewStyle().Foreground(lipgloss.Color("#90EE90")),
		bad:     r.NewStyle().Foreground(lipgloss.Color("#FF6B6B")),
		problem: r.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).PaddingLeft(4),
		help:    r.NewStyle().Foreground(lipgloss.Color("#666666")),
	}
}

func colorize(w io.Writer, mode string) bool {
	switch mode {
	case "always":
		return true
	case "never":
		return false
	}
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func (r *report) render(framework string, results []mirror.Result) string {
	var b strings.Builder

	profile := framework
	if profile == "" {
		profile = "latest"
	}
	b.WriteString(r.title.Render("Mirror layouts (" + profile + ")"))
	b.WriteString("\n\n")

	for _, res := range results {
		b.WriteString(r.line(res))
		b.WriteString("\n")
		for _, p := range res.Problems {
			b.WriteString(r.problem.Render(p.Error()))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	if bad := failed(results); bad > 0 {
		b.WriteString(r.bad.Render(fmt.Sprintf("%d of %d mirrors FAILED", bad, len(results))))
	} else {
		b.WriteString(r.ok.Render(fmt.Sprintf("all %d mirrors ok", len(results))))
	}
	b.WriteString("\n")
	return b.String()
}

// line renders one result: status, name, Go size/align, reference.
func (r *report) line(res mirror.Result) string {
	status := r.ok.Render("ok  ")
	if !res.OK() {
		status = r.bad.Render("FAIL")
	}
	ref := "none"
	if res.Info.Align > 0 {
		ref = fmt.Sprintf("%d/%d", res.Info.Size, res.Info.Align)
	}
	return fmt.Sprintf("%s %s %s size/align %d/%d, reference %s",
		status,
		r.name.Render(res.Mirror.Name),
		r.typ.Render(goName(res)),
		res.Size, res.Align, ref,
	)
}

func goName(res mirror.Result) string {
	if res.Mirror.GoType == nil {
		return "<none>"
	}
	return res.Mirror.GoType.String()
}

// describe renders the reference layout selected for framework.
func describe(m mirror.Mirror, framework string) string {
	ref, err := m.Select(framework)
	if err != nil {
		return err.Error()
	}
	return layout.Describe(ref)
}
