package ui

import (
	"io"

	tea "github.com/charmbracelet/bubbletea"

	"monoc/internal/buildpipeline"
)

// RunProgress renders events to out until the channel is closed.
func RunProgress(title string, modules []string, events <-chan buildpipeline.Event, out io.Writer) error {
	p := tea.NewProgram(NewProgressModel(title, modules, events), tea.WithOutput(out), tea.WithInput(nil))
	_, err := p.Run()
	return err
}
