package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/metcalfc/folio/internal/library"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Padding(0, 1)

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			Padding(0, 1)

	controlsStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666")).
			Italic(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF0000")).
			Bold(true)

	completeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00FF00")).
			Bold(true)
)

// pager serves pages of a book. Reading an explicit page saves it as the
// user's position.
type pager interface {
	Read(ctx context.Context, userID, bookID string, page int) (*library.PageResponse, error)
}

type pageMsg struct {
	resp *library.PageResponse
	err  error
}

type model struct {
	ctx      context.Context
	pager    pager
	user     string
	book     string
	start    int
	page     *library.PageResponse
	err      error
	loading  bool
	quitting bool
	viewport viewport.Model
	width    int
	height   int
}

func newModel(ctx context.Context, p pager, user, book string, start int) model {
	m := model{
		ctx:     ctx,
		pager:   p,
		user:    user,
		book:    book,
		start:   start,
		loading: true,
		width:   80,
		height:  24,
	}
	m.viewport = viewport.New(m.width, m.bodyHeight())
	return m
}

func (m model) Init() tea.Cmd {
	return m.load(m.start)
}

func (m model) load(page int) tea.Cmd {
	return func() tea.Msg {
		resp, err := m.pager.Read(m.ctx, m.user, m.book, page)
		return pageMsg{resp: resp, err: err}
	}
}

// goTo requests page unless it is the one already shown or out of range.
func (m model) goTo(page int) (tea.Model, tea.Cmd) {
	if m.page == nil || m.loading {
		return m, nil
	}
	if page < 1 || page > m.page.TotalPages || page == m.page.CurrentPage {
		return m, nil
	}
	m.loading = true
	return m, m.load(page)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "Q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit

		case "n", "right", "pgdown", " ":
			if m.page != nil {
				return m.goTo(m.page.CurrentPage + 1)
			}
			return m, nil

		case "p", "left", "pgup":
			if m.page != nil {
				return m.goTo(m.page.CurrentPage - 1)
			}
			return m, nil

		case "g", "home":
			return m.goTo(1)

		case "G", "end":
			if m.page != nil {
				return m.goTo(m.page.TotalPages)
			}
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = msg.Width
		m.viewport.Height = m.bodyHeight()
		m.setContent()
		return m, nil

	case pageMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.page = msg.resp
		m.setContent()
		m.viewport.GotoTop()
		return m, nil
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// bodyHeight leaves a line for the header and one for the controls.
func (m model) bodyHeight() int {
	return max(1, m.height-2)
}

func (m *model) setContent() {
	if m.page == nil {
		return
	}
	wrap := lipgloss.NewStyle().Width(max(1, m.width-2)).Padding(0, 1)
	m.viewport.SetContent(wrap.Render(m.page.Content))
}

func (m model) View() string {
	if m.quitting {
		if m.page != nil && m.page.CurrentPage == m.page.TotalPages {
			return completeStyle.Render("\n  Reached the end.\n")
		}
		return ""
	}
	if m.page == nil {
		if m.err != nil {
			return errorStyle.Render(fmt.Sprintf("Error: %v", m.err))
		}
		return "Loading..."
	}

	var sb strings.Builder
	sb.WriteString(m.header())
	sb.WriteString("\n")
	sb.WriteString(m.viewport.View())
	sb.WriteString("\n")
	if m.err != nil {
		sb.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
	} else {
		sb.WriteString(controlsStyle.Render("n/→: next  p/←: prev  g/G: first/last  ↑/↓: scroll  Q: quit"))
	}
	return sb.String()
}

func (m model) header() string {
	title := m.page.BookTitle
	if m.page.BookAuthor != "" {
		title += " · " + m.page.BookAuthor
	}
	status := fmt.Sprintf("Page %d/%d | %d%%", m.page.CurrentPage, m.page.TotalPages, m.viewportPercent())
	return titleStyle.Render(title) + statusStyle.Render(status)
}

func (m model) viewportPercent() int {
	return int(m.viewport.ScrollPercent() * 100)
}

func runPager(ctx context.Context, p pager, user, book string, page int) error {
	prog := tea.NewProgram(newModel(ctx, p, user, book, page), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := prog.Run()
	return err
}
