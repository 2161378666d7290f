package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/fossensics/fossensics/pkg/stats"
)

// browseCommand creates the browse command, an interactive view of the
// packages of an inspection.
func (c *CLI) browseCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "browse <work-dir>",
		Short: "Explore the packages of an inspection interactively",
		Long: `Browse the packages found by "fossensics inspect", ordered by the number
of programs they install. Press enter on a package to list its programs.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBrowse(cmd.Context(), args[0])
		},
	}
}

func runBrowse(ctx context.Context, workDir string) error {
	pkgs, err := readPackages(workDir)
	if err != nil {
		return err
	}
	st, err := stats.Compute(workDir)
	if err != nil {
		return err
	}

	programs := make(map[string][]string)
	for _, p := range pkgs {
		programs[p.Name] = append(programs[p.Name], p.Program)
	}

	_, err = tea.NewProgram(NewPackageBrowserModel(st, programs), tea.WithContext(ctx)).Run()
	return err
}

// List styles
var (
	listSelectedStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	listNormalStyle   = lipgloss.NewStyle().Foreground(colorWhite)
	listDimStyle      = lipgloss.NewStyle().Foreground(colorDim)
)

// =============================================================================
// PackageBrowserModel - package list with program detail
// =============================================================================

// PackageBrowserModel is the bubbletea model of the browse command. It
// shows the package histogram; enter opens the program list of the
// package under the cursor.
type PackageBrowserModel struct {
	Stats    *stats.Statistics
	Programs map[string][]string // package -> programs, in record order
	Cursor   int
	Offset   int
	Height   int

	// Open is the package whose programs are shown, "" in the list view.
	Open      string
	DetailTop int
}

// NewPackageBrowserModel creates a browser over the given statistics.
func NewPackageBrowserModel(st *stats.Statistics, programs map[string][]string) PackageBrowserModel {
	return PackageBrowserModel{
		Stats:    st,
		Programs: programs,
		Height:   15,
	}
}

func (m PackageBrowserModel) Init() tea.Cmd {
	return nil
}

func (m PackageBrowserModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.Open != "" {
			return m.updateDetail(msg)
		}
		return m.updateList(msg)
	case tea.WindowSizeMsg:
		m.Height = max(msg.Height-8, 5)
	}
	return m, nil
}

func (m PackageBrowserModel) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	n := len(m.Stats.Histogram)
	switch msg.String() {
	case "q", "ctrl+c", "esc":
		return m, tea.Quit
	case "up", "k":
		if m.Cursor > 0 {
			m.Cursor--
			if m.Cursor < m.Offset {
				m.Offset = m.Cursor
			}
		}
	case "down", "j":
		if m.Cursor < n-1 {
			m.Cursor++
			if m.Cursor >= m.Offset+m.Height {
				m.Offset = m.Cursor - m.Height + 1
			}
		}
	case "home", "g":
		m.Cursor, m.Offset = 0, 0
	case "end", "G":
		if n > 0 {
			m.Cursor = n - 1
			m.Offset = max(n-m.Height, 0)
		}
	case "enter":
		if n > 0 {
			m.Open = m.Stats.Histogram[m.Cursor].Package
			m.DetailTop = 0
		}
	}
	return m, nil
}

func (m PackageBrowserModel) updateDetail(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	progs := m.Programs[m.Open]
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "esc", "backspace", "left", "h":
		m.Open = ""
	case "up", "k":
		if m.DetailTop > 0 {
			m.DetailTop--
		}
	case "down", "j":
		if m.DetailTop < len(progs)-m.Height {
			m.DetailTop++
		}
	}
	return m, nil
}

func (m PackageBrowserModel) View() string {
	if m.Open != "" {
		return m.detailView()
	}
	return m.listView()
}

func (m PackageBrowserModel) summary() string {
	st := m.Stats
	parts := []string{
		fmt.Sprintf("%d packages", st.Packages),
		fmt.Sprintf("%d programs", st.Programs),
		countStyle(st.Orphans).Render(fmt.Sprintf("%d orphans", st.Orphans)),
		countStyle(st.Undocumented).Render(fmt.Sprintf("%d undocumented", st.Undocumented)),
	}
	return strings.Join(parts, listDimStyle.Render(" · "))
}

func (m PackageBrowserModel) listView() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Packages"))
	b.WriteString("  ")
	b.WriteString(m.summary())
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("↑/↓ navigate  ⏎ programs  q quit"))
	b.WriteString("\n\n")

	hist := m.Stats.Histogram
	if len(hist) == 0 {
		b.WriteString(listDimStyle.Render("No program could be attributed to a package."))
		b.WriteString("\n")
		return b.String()
	}

	end := min(m.Offset+m.Height, len(hist))
	rows := [][]string{}
	for i := m.Offset; i < end; i++ {
		cursor := "  "
		if i == m.Cursor {
			cursor = "▸ "
		}
		rows = append(rows, []string{cursor, hist[i].Package, strconv.Itoa(hist[i].Programs)})
	}

	headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true)
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("", "Package", "Programs").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return headerStyle
			}
			base := listNormalStyle
			if m.Offset+row == m.Cursor {
				base = listSelectedStyle
			}
			if col == 2 {
				return base.Align(lipgloss.Right)
			}
			return base
		})

	b.WriteString(t.Render())
	b.WriteString("\n\n")
	b.WriteString(listDimStyle.Render(fmt.Sprintf("  [%d/%d]", m.Cursor+1, len(hist))))

	return b.String()
}

func (m PackageBrowserModel) detailView() string {
	var b strings.Builder
	progs := m.Programs[m.Open]

	b.WriteString(StyleTitle.Render(m.Open))
	b.WriteString("  ")
	b.WriteString(listDimStyle.Render(fmt.Sprintf("%d programs", len(progs))))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("↑/↓ scroll  esc back  q quit"))
	b.WriteString("\n\n")

	end := min(m.DetailTop+m.Height, len(progs))
	for _, p := range progs[m.DetailTop:end] {
		b.WriteString("  ")
		b.WriteString(listNormalStyle.Render(p))
		b.WriteString("\n")
	}
	if end < len(progs) {
		b.WriteString(listDimStyle.Render(fmt.Sprintf("  … %d more", len(progs)-end)))
		b.WriteString("\n")
	}

	return b.String()
}
