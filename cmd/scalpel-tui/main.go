// Command scalpel-tui is an interactive wizard front-end over the
// same internal/engine core cmd/scalpel drives headless: it walks an
// operator through picking a source (physical device or disk image),
// toggling the flag surface, and watching a live carve, then renders
// the audit summary. scalpel's primary invocation is the batch CLI;
// this is the second, optional entry point the teacher's only UI used
// to be (cmd/recover-tui).
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sirupsen/logrus"

	"github.com/gorichard/scalpel/internal/catalog"
	"github.com/gorichard/scalpel/internal/devicelist"
	"github.com/gorichard/scalpel/internal/engine"
	"github.com/gorichard/scalpel/internal/matcher"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	subtitleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#7D56F4")).Bold(true)
	helpStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#626262"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000")).Bold(true)
	successStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#00FF00")).Bold(true)
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#7D56F4")).Bold(true)
)

// wizardState is the current wizard screen.
type wizardState int

const (
	stateWelcome wizardState = iota
	stateSelectSource
	stateSelectDevice
	stateEnterPath
	stateSelectOptions
	stateSelectOutput
	stateConfirm
	stateRunning
	stateResults
)

type sourceType int

const (
	sourceDevice sourceType = iota
	sourceImage
)

// toggle is one flag-surface checkbox item in the options screen.
type toggle struct {
	label string
	help  string
	value *bool
}

type sourceItem struct{ name, desc string }

func (i sourceItem) Title() string       { return i.name }
func (i sourceItem) Description() string { return i.desc }
func (i sourceItem) FilterValue() string { return i.name }

type deviceItem struct{ dev devicelist.Device }

func (i deviceItem) Title() string { return fmt.Sprintf("%s — %s", i.dev.Path, i.dev.Name) }
func (i deviceItem) Description() string {
	return fmt.Sprintf("%s | %s", i.dev.SizeHuman, i.dev.Filesystem)
}
func (i deviceItem) FilterValue() string { return i.dev.Path }

type devicesLoadedMsg struct {
	devices []devicelist.Device
	err     error
}

type runCompleteMsg struct {
	result engine.ImageResult
	err    error
}

type model struct {
	state  wizardState
	width  int
	height int
	err    error

	source         sourceType
	sourceList     list.Model
	devices        []devicelist.Device
	deviceList     list.Model
	selectedDevice *devicelist.Device

	pathInput textinput.Model
	imagePath string

	preview             bool
	permitMissingFooter bool
	generateHFD         bool
	noOrganize          bool
	nonOverlapping      bool
	toggles             []toggle
	toggleCursor        int

	outputInput textinput.Model
	outputDir   string

	spinner   spinner.Model
	statusMsg string

	result engine.ImageResult
}

func initialModel() model {
	sourceItems := []list.Item{
		sourceItem{name: "Physical Device", desc: "Carve a connected drive (USB, HDD, SSD)"},
		sourceItem{name: "Disk Image", desc: "Carve a .img, .dd, or .raw file"},
	}
	sourceList := list.New(sourceItems, list.NewDefaultDelegate(), 0, 0)
	sourceList.Title = "Select Carving Source"
	sourceList.SetShowStatusBar(false)
	sourceList.SetFilteringEnabled(false)

	pathInput := textinput.New()
	pathInput.Placeholder = "/path/to/disk.img"
	pathInput.Focus()
	pathInput.Width = 50

	outputInput := textinput.New()
	outputInput.Placeholder = "./scalpel-output"
	outputInput.SetValue("./scalpel-output")
	outputInput.Width = 50

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#7D56F4"))

	m := model{
		state:       stateWelcome,
		sourceList:  sourceList,
		pathInput:   pathInput,
		outputInput: outputInput,
		spinner:     s,
		outputDir:   "./scalpel-output",
	}
	m.toggles = []toggle{
		{label: "Preview only (-p)", help: "plan and audit, write no carved files", value: &m.preview},
		{label: "Permit missing footer (-b)", help: "chop FORWARD carves at max length with no footer match", value: &m.permitMissingFooter},
		{label: "Generate header/footer database (-d)", help: "also emit the .hfd artifact", value: &m.generateHFD},
		{label: "Flat output (-O)", help: "do not organise carved files into per-type subdirectories", value: &m.noOrganize},
		{label: "Non-overlapping matches (-r)", help: "disable overlapping pattern matches", value: &m.nonOverlapping},
	}
	return m
}

func (m model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "q":
			if m.state != stateRunning && m.state != stateEnterPath && m.state != stateSelectOutput {
				return m, tea.Quit
			}
		case "esc":
			if m.state > stateWelcome && m.state != stateRunning {
				m.state--
				return m, nil
			}
		}

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.sourceList.SetSize(msg.Width-4, msg.Height-10)
		if m.deviceList.Items() != nil {
			m.deviceList.SetSize(msg.Width-4, msg.Height-10)
		}
		return m, nil

	case devicesLoadedMsg:
		if msg.err != nil {
			m.err = msg.err
			m.state = stateSelectSource
			return m, nil
		}
		m.devices = msg.devices
		items := make([]list.Item, len(msg.devices))
		for i, d := range msg.devices {
			items[i] = deviceItem{dev: d}
		}
		m.deviceList = list.New(items, list.NewDefaultDelegate(), m.width-4, m.height-10)
		m.deviceList.Title = "Select Device"
		m.deviceList.SetShowStatusBar(false)
		m.state = stateSelectDevice
		return m, nil

	case runCompleteMsg:
		m.state = stateResults
		m.result = msg.result
		m.err = msg.err
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	switch m.state {
	case stateWelcome:
		return m.updateWelcome(msg)
	case stateSelectSource:
		return m.updateSelectSource(msg)
	case stateSelectDevice:
		return m.updateSelectDevice(msg)
	case stateEnterPath:
		return m.updateEnterPath(msg)
	case stateSelectOptions:
		return m.updateSelectOptions(msg)
	case stateSelectOutput:
		return m.updateSelectOutput(msg)
	case stateConfirm:
		return m.updateConfirm(msg)
	case stateRunning:
		return m.updateRunning(msg)
	case stateResults:
		return m.updateResults(msg)
	}
	return m, nil
}

func (m model) updateWelcome(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok && key.String() == "enter" {
		m.state = stateSelectSource
	}
	return m, nil
}

func (m model) updateSelectSource(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok && key.String() == "enter" {
		selected := m.sourceList.SelectedItem()
		if selected != nil {
			if selected.(sourceItem).name == "Physical Device" {
				m.source = sourceDevice
				return m, m.loadDevices()
			}
			m.source = sourceImage
			m.state = stateEnterPath
			m.pathInput.Focus()
		}
		return m, nil
	}
	var cmd tea.Cmd
	m.sourceList, cmd = m.sourceList.Update(msg)
	return m, cmd
}

func (m model) updateSelectDevice(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok && key.String() == "enter" {
		selected := m.deviceList.SelectedItem()
		if selected != nil {
			dev := selected.(deviceItem).dev
			m.selectedDevice = &dev
			m.imagePath = dev.Path
			m.state = stateSelectOptions
		}
		return m, nil
	}
	var cmd tea.Cmd
	m.deviceList, cmd = m.deviceList.Update(msg)
	return m, cmd
}

func (m model) updateEnterPath(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok && key.String() == "enter" {
		path := expandHome(m.pathInput.Value())
		if path != "" {
			m.imagePath = path
			m.state = stateSelectOptions
		}
		return m, nil
	}
	var cmd tea.Cmd
	m.pathInput, cmd = m.pathInput.Update(msg)
	return m, cmd
}

func (m model) updateSelectOptions(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "up", "k":
			if m.toggleCursor > 0 {
				m.toggleCursor--
			}
		case "down", "j":
			if m.toggleCursor < len(m.toggles)-1 {
				m.toggleCursor++
			}
		case " ":
			t := m.toggles[m.toggleCursor]
			*t.value = !*t.value
		case "enter":
			m.state = stateSelectOutput
			m.outputInput.Focus()
		}
	}
	return m, nil
}

func (m model) updateSelectOutput(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok && key.String() == "enter" {
		path := expandHome(m.outputInput.Value())
		if path != "" {
			m.outputDir = path
			m.state = stateConfirm
		}
		return m, nil
	}
	var cmd tea.Cmd
	m.outputInput, cmd = m.outputInput.Update(msg)
	return m, cmd
}

func (m model) updateConfirm(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "y", "Y", "enter":
			m.state = stateRunning
			m.statusMsg = "Carving " + m.imagePath + " ..."
			return m, tea.Batch(m.spinner.Tick, m.runCarve())
		case "n", "N":
			m.state = stateSelectSource
		}
	}
	return m, nil
}

func (m model) updateRunning(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	m.spinner, cmd = m.spinner.Update(msg)
	return m, cmd
}

func (m model) updateResults(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "enter", "q":
			return m, tea.Quit
		case "r":
			return initialModel(), nil
		}
	}
	return m, nil
}

func (m model) loadDevices() tea.Cmd {
	return func() tea.Msg {
		devices, err := devicelist.List()
		return devicesLoadedMsg{devices: devices, err: err}
	}
}

func (m model) runCarve() tea.Cmd {
	imagePath, outputDir := m.imagePath, m.outputDir
	preview, permitMissing, hfd, noOrganize, nonOverlap := m.preview, m.permitMissingFooter, m.generateHFD, m.noOrganize, m.nonOverlapping

	return func() tea.Msg {
		if err := os.MkdirAll(outputDir, 0755); err != nil {
			return runCompleteMsg{err: err}
		}
		cat, err := catalog.DefaultCatalog()
		if err != nil {
			return runCompleteMsg{err: err}
		}

		overlap := matcher.Overlapping
		if nonOverlap {
			overlap = matcher.NonOverlapping
		}

		log := logrus.New()
		log.SetLevel(logrus.WarnLevel)

		eng := engine.New(&engine.Options{
			Catalog:                 cat,
			OutputDir:               outputDir,
			OrganizeSubdirectories:  !noOrganize,
			Preview:                 preview,
			Overlap:                 overlap,
			CarveWithMissingFooters: permitMissing,
			GenerateHFD:             hfd,
			Logger:                  log,
		})
		result, err := eng.RunImage(imagePath)
		return runCompleteMsg{result: result, err: err}
	}
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

func (m model) View() string {
	var s strings.Builder
	s.WriteString(titleStyle.Render(" scalpel — byte-signature file carver "))
	s.WriteString("\n\n")

	switch m.state {
	case stateWelcome:
		s.WriteString(m.viewWelcome())
	case stateSelectSource:
		s.WriteString(m.sourceList.View())
	case stateSelectDevice:
		s.WriteString(m.deviceList.View())
	case stateEnterPath:
		s.WriteString(m.viewEnterPath())
	case stateSelectOptions:
		s.WriteString(m.viewSelectOptions())
	case stateSelectOutput:
		s.WriteString(m.viewSelectOutput())
	case stateConfirm:
		s.WriteString(m.viewConfirm())
	case stateRunning:
		s.WriteString(m.viewRunning())
	case stateResults:
		s.WriteString(m.viewResults())
	}

	if m.err != nil {
		s.WriteString("\n\n")
		s.WriteString(errorStyle.Render("Error: " + m.err.Error()))
	}

	s.WriteString("\n\n")
	s.WriteString(helpStyle.Render("q to quit · esc to go back"))
	return s.String()
}

func (m model) viewWelcome() string {
	var s strings.Builder
	s.WriteString(subtitleStyle.Render("Welcome"))
	s.WriteString("\n\n")
	s.WriteString("scalpel recovers embedded files from a raw disk image or block\n")
	s.WriteString("device purely from byte-signature evidence, with no reference to\n")
	s.WriteString("filesystem metadata.\n\n")
	s.WriteString(lipgloss.NewStyle().Bold(true).Render("Read-only: "))
	s.WriteString("the source is opened for reading only and is never modified.\n\n")
	s.WriteString(selectedStyle.Render("Press Enter to continue..."))
	return s.String()
}

func (m model) viewEnterPath() string {
	var s strings.Builder
	s.WriteString(subtitleStyle.Render("Enter Disk Image Path"))
	s.WriteString("\n\n")
	s.WriteString(m.pathInput.View())
	s.WriteString("\n\n")
	s.WriteString(helpStyle.Render("Enter to continue"))
	return s.String()
}

func (m model) viewSelectOptions() string {
	var s strings.Builder
	s.WriteString(subtitleStyle.Render("Carving Options"))
	s.WriteString("\n\n")
	for i, t := range m.toggles {
		cursor := "  "
		if i == m.toggleCursor {
			cursor = "> "
		}
		checkbox := "[ ]"
		if *t.value {
			checkbox = "[x]"
		}
		line := fmt.Sprintf("%s%s %s", cursor, checkbox, t.label)
		if i == m.toggleCursor {
			s.WriteString(selectedStyle.Render(line))
		} else {
			s.WriteString(line)
		}
		s.WriteString("\n")
		if i == m.toggleCursor {
			s.WriteString(helpStyle.Render("      " + t.help))
			s.WriteString("\n")
		}
	}
	s.WriteString("\n")
	s.WriteString(helpStyle.Render("up/down to move · space to toggle · enter to continue"))
	return s.String()
}

func (m model) viewSelectOutput() string {
	var s strings.Builder
	s.WriteString(subtitleStyle.Render("Select Output Directory"))
	s.WriteString("\n\n")
	s.WriteString(m.outputInput.View())
	s.WriteString("\n\n")
	s.WriteString(helpStyle.Render("Enter to continue"))
	return s.String()
}

func (m model) viewConfirm() string {
	var s strings.Builder
	s.WriteString(subtitleStyle.Render("Confirm Carving Settings"))
	s.WriteString("\n\n")
	s.WriteString(fmt.Sprintf("  Source:  %s\n", m.imagePath))
	s.WriteString(fmt.Sprintf("  Output:  %s\n", m.outputDir))
	for _, t := range m.toggles {
		if *t.value {
			s.WriteString(fmt.Sprintf("  + %s\n", t.label))
		}
	}
	s.WriteString("\n")
	s.WriteString(selectedStyle.Render("Press Y to start, N to go back"))
	return s.String()
}

func (m model) viewRunning() string {
	var s strings.Builder
	s.WriteString(m.spinner.View())
	s.WriteString(" ")
	s.WriteString(m.statusMsg)
	s.WriteString("\n\n")
	s.WriteString(helpStyle.Render("This may take a while for large images..."))
	return s.String()
}

func (m model) viewResults() string {
	var s strings.Builder
	if m.err != nil {
		s.WriteString(errorStyle.Render("Carving Failed"))
		s.WriteString("\n\n")
		s.WriteString(fmt.Sprintf("Error: %v\n", m.err))
	} else {
		s.WriteString(successStyle.Render("Carving Complete"))
		s.WriteString("\n\n")
		s.WriteString(fmt.Sprintf("Files carved: %d\n", m.result.FilesCarved))
		s.WriteString(fmt.Sprintf("Output directory: %s\n", m.outputDir))
		if m.result.HFDPath != "" {
			s.WriteString(fmt.Sprintf("Header/footer database: %s\n", m.result.HFDPath))
		}
	}
	s.WriteString("\n")
	s.WriteString(helpStyle.Render("r to run again · q to quit"))
	return s.String()
}

func main() {
	p := tea.NewProgram(initialModel(), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
