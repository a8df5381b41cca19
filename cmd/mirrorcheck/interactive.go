package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wippyai/wasm-bridge/layout"
	"github.com/wippyai/wasm-bridge/mirror"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	nameStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	typeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type browserState int

const (
	stateList browserState = iota
	stateDetail
	stateVersion
)

type browser struct {
	err       error
	mirrors   []mirror.Mirror
	results   []mirror.Result
	framework string
	version   textinput.Model
	selected  int
	state     browserState
}

func newBrowser(opts options) *browser {
	ti := textinput.New()
	ti.Placeholder = "6.5.0"
	ti.Prompt = "framework: "
	ti.Width = 20

	b := &browser{version: ti}
	b.mirrors, b.framework, b.err = load(opts)
	if b.err == nil {
		b.results = check(b.mirrors, b.framework)
	}
	return b
}

func (b *browser) Init() tea.Cmd {
	return nil
}

func (b *browser) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return b, nil
	}

	if b.state == stateVersion {
		switch key.String() {
		case "enter":
			b.reverify(strings.TrimSpace(b.version.Value()))
			b.version.Blur()
			b.state = stateList
			return b, nil
		case "esc":
			b.version.Blur()
			b.state = stateList
			return b, nil
		}
		var cmd tea.Cmd
		b.version, cmd = b.version.Update(msg)
		return b, cmd
	}

	switch key.String() {
	case "ctrl+c", "q":
		return b, tea.Quit
	case "up", "k":
		if b.state == stateList && b.selected > 0 {
			b.selected--
		}
	case "down", "j":
		if b.state == stateList && b.selected < len(b.results)-1 {
			b.selected++
		}
	case "enter":
		if b.state == stateList && len(b.results) > 0 {
			b.state = stateDetail
		} else {
			b.state = stateList
		}
	case "esc":
		b.state = stateList
	case "f":
		b.version.SetValue(b.framework)
		b.version.Focus()
		b.state = stateVersion
		return b, textinput.Blink
	}
	return b, nil
}

// reverify checks every mirror again against framework.
func (b *browser) reverify(framework string) {
	if framework != "" && mirror.Canonical(framework) == "" {
		b.err = fmt.Errorf("invalid framework version %q", framework)
		return
	}
	b.err = nil
	b.framework = framework
	b.results = check(b.mirrors, framework)
}

func (b *browser) View() string {
	var s strings.Builder

	profile := b.framework
	if profile == "" {
		profile = "latest"
	}
	s.WriteString(titleStyle.Render("Mirror layouts (" + profile + ")"))
	s.WriteString("\n\n")

	if b.err != nil {
		s.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", b.err)))
		s.WriteString("\n\n")
	}

	switch b.state {
	case stateList, stateVersion:
		for i, res := range b.results {
			line := fmt.Sprintf("%s %s", status(res), nameStyle.Render(res.Mirror.Name))
			if i == b.selected {
				line = selectedStyle.Render("> " + status(res) + " " + res.Mirror.Name)
			} else {
				line = "  " + line
			}
			s.WriteString(line)
			s.WriteString("\n")
		}
		s.WriteString("\n")
		if b.state == stateVersion {
			s.WriteString(b.version.View())
			s.WriteString("\n")
			s.WriteString(helpStyle.Render("enter verify • esc cancel"))
		} else {
			s.WriteString(helpStyle.Render("↑/↓ select • enter details • f framework • q quit"))
		}

	case stateDetail:
		res := b.results[b.selected]
		s.WriteString(fmt.Sprintf("%s  %s\n", nameStyle.Render(res.Mirror.Name), typeStyle.Render(goName(res))))
		s.WriteString(fmt.Sprintf("  Go:        size %d, align %d\n", res.Size, res.Align))
		s.WriteString(fmt.Sprintf("  reference: size %d, align %d\n", res.Info.Size, res.Info.Align))
		s.WriteString(fmt.Sprintf("  layout:    %s\n", typeStyle.Render(describe(res.Mirror, b.framework))))
		s.WriteString(fmt.Sprintf("  by value:  %v\n", res.Mirror.ByValue))
		for _, l := range res.Mirror.Layouts {
			s.WriteString(fmt.Sprintf("  since %-8s %s\n", l.Since, layout.Describe(l.Reference)))
		}
		if len(res.Problems) > 0 {
			s.WriteString("\n")
			for _, p := range res.Problems {
				s.WriteString(errorStyle.Render("  " + p.Error()))
				s.WriteString("\n")
			}
		}
		s.WriteString("\n")
		s.WriteString(helpStyle.Render("enter back • q quit"))
	}

	return s.String()
}

func status(res mirror.Result) string {
	if res.OK() {
		return "ok  "
	}
	return "FAIL"
}

func runInteractive(opts options) error {
	p := tea.NewProgram(newBrowser(opts), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
