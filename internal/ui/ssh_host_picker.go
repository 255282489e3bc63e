package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/rileyhilliard/rackwatch/pkg/sshutil"
)

// sshHostItem adapts an ssh_config entry to list.Item.
type sshHostItem struct {
	entry sshutil.SSHHostEntry
}

func (i sshHostItem) Title() string       { return i.entry.Alias }
func (i sshHostItem) Description() string { return i.entry.Description() }

func (i sshHostItem) FilterValue() string {
	values := []string{i.entry.Alias}
	if i.entry.Hostname != "" {
		values = append(values, i.entry.Hostname)
	}
	if i.entry.User != "" {
		values = append(values, i.entry.User)
	}
	return strings.Join(values, " ")
}

// SSHHostPickerModel lets the user pick an alias from ~/.ssh/config or
// fall back to typing an address.
type SSHHostPickerModel struct {
	list     list.Model
	selected *sshutil.SSHHostEntry
	manual   bool
	quitting bool
}

var sshHostPickerKeys = struct {
	Enter  key.Binding
	Manual key.Binding
	Quit   key.Binding
}{
	Enter: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "select"),
	),
	Manual: key.NewBinding(
		key.WithKeys("m"),
		key.WithHelp("m", "manual entry"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "esc", "ctrl+c"),
		key.WithHelp("q/esc", "cancel"),
	),
}

// NewSSHHostPickerModel creates a picker over entries.
func NewSSHHostPickerModel(entries []sshutil.SSHHostEntry) SSHHostPickerModel {
	items := make([]list.Item, len(entries))
	for i, e := range entries {
		items[i] = sshHostItem{entry: e}
	}

	delegate := list.NewDefaultDelegate()
	delegate.Styles.SelectedTitle = delegate.Styles.SelectedTitle.
		Foreground(ColorPrimary).
		BorderForeground(ColorSecondary)
	delegate.Styles.SelectedDesc = delegate.Styles.SelectedDesc.
		Foreground(ColorMuted)

	l := list.New(items, delegate, 80, 15)
	l.Title = "Select a host from your SSH config"
	l.SetShowStatusBar(true)
	l.SetFilteringEnabled(true)
	l.Styles.Title = lipgloss.NewStyle().
		Foreground(ColorPrimary).
		Bold(true).
		Padding(0, 0, 1, 0)
	l.Styles.HelpStyle = MutedStyle
	l.AdditionalShortHelpKeys = func() []key.Binding {
		return []key.Binding{sshHostPickerKeys.Manual}
	}

	return SSHHostPickerModel{list: l}
}

// Init implements tea.Model.
func (m SSHHostPickerModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m SSHHostPickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.list.FilterState() == list.Filtering {
			break
		}
		switch {
		case key.Matches(msg, sshHostPickerKeys.Enter):
			if item, ok := m.list.SelectedItem().(sshHostItem); ok {
				m.selected = &item.entry
			}
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, sshHostPickerKeys.Manual):
			m.manual = true
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, sshHostPickerKeys.Quit):
			m.quitting = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.list.SetSize(msg.Width, msg.Height-2)
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// View implements tea.Model.
func (m SSHHostPickerModel) View() string {
	if m.quitting {
		return ""
	}
	return m.list.View() + MutedStyle.Render("\n  Press 'm' to type an address instead")
}

// Selected returns the chosen entry, or nil.
func (m SSHHostPickerModel) Selected() *sshutil.SSHHostEntry {
	return m.selected
}

// ManualEntry reports whether the user asked to type an address.
func (m SSHHostPickerModel) ManualEntry() bool {
	return m.manual
}

// PickSSHHost shows the picker on the given terminal streams. It returns
// the chosen entry, or nil with cancelled=false for manual entry, or nil
// with cancelled=true when the user backed out. No entries means manual
// entry straight away.
func PickSSHHost(entries []sshutil.SSHHostEntry, in io.Reader, out io.Writer) (selected *sshutil.SSHHostEntry, cancelled bool, err error) {
	if len(entries) == 0 {
		return nil, false, nil
	}

	p := tea.NewProgram(NewSSHHostPickerModel(entries), tea.WithInput(in), tea.WithOutput(out))
	final, err := p.Run()
	if err != nil {
		return nil, false, fmt.Errorf("SSH host picker error: %w", err)
	}

	m, ok := final.(SSHHostPickerModel)
	switch {
	case !ok:
		return nil, true, nil
	case m.ManualEntry():
		return nil, false, nil
	case m.Selected() == nil:
		return nil, true, nil
	default:
		return m.Selected(), false, nil
	}
}
