// Package tui is the terminal front end: a browsable list of memories
// and projects with a sync status bar.
package tui

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/sahilm/fuzzy"

	"github.com/timestitch/timestitch/internal/domain"
	"github.com/timestitch/timestitch/internal/service"
	"github.com/timestitch/timestitch/internal/syncer"
	"github.com/timestitch/timestitch/internal/tui/styles"
)

// viewMode selects which collection the list shows.
type viewMode int

const (
	viewMemories viewMode = iota
	viewProjects
	viewTimeline
)

// syncStatusMsg carries a sync status update into the message loop.
type syncStatusMsg domain.SyncStatus

// mutationDoneMsg reports the outcome of an async mutation.
type mutationDoneMsg struct {
	result domain.MutationResult
	err    error
}

// Model is the root Bubble Tea model.
type Model struct {
	journal *service.JournalService
	engine  *syncer.Engine
	logger  *slog.Logger

	mode          viewMode
	cursor        int
	offset        int
	width         int
	height        int
	favoritesOnly bool

	filterActive bool
	filterInput  textinput.Model

	status  domain.SyncStatus
	statusC chan domain.SyncStatus
	unsub   func()

	notice string
}

// NewModel builds the root model and subscribes to sync status updates.
func NewModel(journal *service.JournalService, engine *syncer.Engine, logger *slog.Logger) *Model {
	if logger == nil {
		logger = slog.Default()
	}

	ti := textinput.New()
	ti.Placeholder = "type to filter..."
	ti.CharLimit = 64

	m := &Model{
		journal:     journal,
		engine:      engine,
		logger:      logger,
		filterInput: ti,
		status:      engine.Status(),
	}

	ch, notify := statusChannel()
	m.statusC = ch
	m.unsub = engine.OnStatusChange(notify)
	return m
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return m.waitForStatus()
}

func (m *Model) waitForStatus() tea.Cmd {
	return func() tea.Msg {
		return syncStatusMsg(<-m.statusC)
	}
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case syncStatusMsg:
		m.status = domain.SyncStatus(msg)
		return m, m.waitForStatus()

	case mutationDoneMsg:
		if msg.err != nil {
			m.notice = styles.ErrorStyle.Render(msg.err.Error())
		} else if msg.result.Outcome == domain.OutcomeQueued {
			m.notice = styles.PendingStyle.Render("saved locally, will sync")
		} else {
			m.notice = ""
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.filterActive {
		switch msg.String() {
		case "esc":
			m.filterActive = false
			m.filterInput.SetValue("")
			m.filterInput.Blur()
			m.cursor = 0
			return m, nil
		case "enter":
			m.filterActive = false
			m.filterInput.Blur()
			return m, nil
		default:
			var cmd tea.Cmd
			m.filterInput, cmd = m.filterInput.Update(msg)
			m.cursor = 0
			return m, cmd
		}
	}

	switch msg.String() {
	case "q", "ctrl+c":
		m.unsub()
		return m, tea.Quit

	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.entries())-1 {
			m.cursor++
		}

	case "tab":
		m.mode = (m.mode + 1) % 3
		m.cursor = 0

	case "/":
		m.filterActive = true
		m.filterInput.Focus()
		return m, textinput.Blink

	case "f":
		if m.mode == viewMemories {
			if entry := m.selectedEntry(); entry != nil {
				return m, m.toggleFavorite(entry.GetID())
			}
		}

	case "F":
		m.favoritesOnly = !m.favoritesOnly
		m.cursor = 0

	case "s":
		return m, m.syncNow()
	}
	return m, nil
}

func (m *Model) toggleFavorite(id string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		defer cancel()
		result, err := m.journal.ToggleFavorite(ctx, id)
		return mutationDoneMsg{result: result, err: err}
	}
}

func (m *Model) syncNow() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := m.engine.SyncNow(ctx); err != nil {
			m.logger.Debug("manual sync incomplete", "error", err)
		}
		return nil
	}
}

// entries returns the filtered list for the active view.
func (m *Model) entries() []domain.ListEntry {
	filter := service.Filter{FavoritesOnly: m.favoritesOnly}

	var out []domain.ListEntry
	switch m.mode {
	case viewProjects:
		projects := service.FilterProjects(m.journal.Projects(), filter)
		for i := range projects {
			out = append(out, &projects[i])
		}
	default:
		memories := service.FilterMemories(m.journal.Memories(), filter)
		for i := range memories {
			out = append(out, &memories[i])
		}
	}

	if query := m.filterInput.Value(); query != "" {
		out = fuzzyFilter(out, query)
	}
	return out
}

// entrySource adapts entries for sahilm/fuzzy matching on titles.
type entrySource []domain.ListEntry

func (s entrySource) String(i int) string { return strings.ToLower(s[i].GetTitle()) }
func (s entrySource) Len() int            { return len(s) }

func fuzzyFilter(entries []domain.ListEntry, query string) []domain.ListEntry {
	matches := fuzzy.FindFrom(strings.ToLower(query), entrySource(entries))
	out := make([]domain.ListEntry, 0, len(matches))
	for _, match := range matches {
		out = append(out, entries[match.Index])
	}
	return out
}

func (m *Model) selectedEntry() domain.ListEntry {
	entries := m.entries()
	if m.cursor < 0 || m.cursor >= len(entries) {
		return nil
	}
	return entries[m.cursor]
}

// View implements tea.Model.
func (m *Model) View() string {
	var b strings.Builder

	b.WriteString(styles.TitleStyle.Render("TimeStitch"))
	b.WriteString("  ")
	b.WriteString(styles.DimStyle.Render(m.modeLabel()))
	if m.favoritesOnly {
		b.WriteString("  " + styles.FavoriteStyle.Render("♥ favorites"))
	}
	b.WriteString("\n\n")

	if m.filterActive || m.filterInput.Value() != "" {
		b.WriteString(m.filterInput.View())
		b.WriteString("\n\n")
	}

	if m.mode == viewTimeline {
		b.WriteString(m.timelineView())
	} else {
		b.WriteString(m.listView())
	}

	if m.notice != "" {
		b.WriteString("\n" + m.notice + "\n")
	}

	b.WriteString("\n")
	b.WriteString(m.statusBar())
	b.WriteString("\n")
	b.WriteString(styles.DimStyle.Render("tab: view  /: filter  f: favorite  F: favorites only  s: sync  q: quit"))
	return b.String()
}

func (m *Model) modeLabel() string {
	switch m.mode {
	case viewProjects:
		return "projects"
	case viewTimeline:
		return "timeline"
	default:
		return "memories"
	}
}

func (m *Model) listView() string {
	entries := m.entries()
	if len(entries) == 0 {
		return styles.DimStyle.Render("  nothing here yet")
	}

	var b strings.Builder
	visible := m.visibleRows()
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+visible {
		m.offset = m.cursor - visible + 1
	}

	end := m.offset + visible
	if end > len(entries) {
		end = len(entries)
	}

	for i := m.offset; i < end; i++ {
		entry := entries[i]
		line := fmt.Sprintf("%s  %s", entry.GetTitle(), styles.SubtitleStyle.Render(entry.GetDescription()))
		if mem, ok := entry.(*domain.Memory); ok && mem.Favorite {
			line = styles.FavoriteStyle.Render("♥ ") + line
		} else {
			line = "  " + line
		}
		if i == m.cursor {
			line = styles.SelectedStyle.Render("> " + line)
		} else {
			line = "  " + line
		}
		b.WriteString(line + "\n")
	}
	return b.String()
}

func (m *Model) timelineView() string {
	groups := service.TimelineGroups(service.FilterMemories(m.journal.Memories(), service.Filter{FavoritesOnly: m.favoritesOnly}))
	if len(groups) == 0 {
		return styles.DimStyle.Render("  nothing here yet")
	}

	var b strings.Builder
	for _, group := range groups {
		b.WriteString(styles.AccentStyle.Render(group.Label()))
		b.WriteString(styles.DimStyle.Render(fmt.Sprintf("  (%d)", len(group.Memories))))
		b.WriteString("\n")
		for _, mem := range group.Memories {
			marker := "  "
			if mem.Favorite {
				marker = styles.FavoriteStyle.Render("♥ ")
			}
			b.WriteString(fmt.Sprintf("  %s%s\n", marker, mem.Title))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (m *Model) statusBar() string {
	var parts []string

	switch {
	case m.status.PendingCount > 0:
		parts = append(parts, styles.PendingStyle.Render(fmt.Sprintf("%d pending sync", m.status.PendingCount)))
	case m.status.IsActive:
		parts = append(parts, styles.SyncedStyle.Render("synced"))
	default:
		parts = append(parts, styles.DimStyle.Render("sync off"))
	}

	if !m.status.LastSyncAt.IsZero() {
		parts = append(parts, styles.DimStyle.Render("last sync "+m.status.LastSyncAt.Local().Format("15:04")))
	}
	if m.status.LastError != "" {
		parts = append(parts, styles.ErrorStyle.Render("last sync failed: "+m.status.LastError))
	}

	return styles.StatusBarStyle.Render(strings.Join(parts, "  "))
}

func (m *Model) visibleRows() int {
	rows := m.height - 8
	if rows < 5 {
		rows = 5
	}
	return rows
}
