// Package tui is the interactive review screen for tracked candidate
// works. It lists every candidate on a record with its score and lets a
// reviewer approve or reject each one; decisions are written straight
// back to the record store.
package tui

import (
	"context"
	"sort"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/dmphub/dmpsync/pkg/harvester"
	"github.com/dmphub/dmpsync/pkg/plan"
	"github.com/dmphub/dmpsync/pkg/storage"
)

type ViewState int

const (
	ViewStateList ViewState = iota
	ViewStateDetail
)

// candidateRow pins a map entry to a stable list position.
type candidateRow struct {
	WorkID    string
	Candidate plan.TrackedCandidate
}

type Model struct {
	// core components
	spinner   spinner.Model
	Harvester *harvester.Harvester
	Store     storage.RecordStore
	RecordID  string

	// state
	state    ViewState
	loading  bool
	quitting bool
	err      error
	width    int
	height   int

	// data
	record *plan.Record
	rows   []candidateRow

	// feedback
	statusMsg  string
	statusTime time.Time

	// navigation
	cursor        int
	detailsScroll int
}

type recordLoadedMsg struct {
	record *plan.Record
	err    error
}

type decisionMsg struct {
	workID string
	status plan.CandidateStatus
	err    error
}

func NewModel(h *harvester.Harvester, store storage.RecordStore, recordID string) Model {
	s := spinner.New()
	s.Spinner = spinner.Points
	s.Style = special

	return Model{
		spinner:   s,
		Harvester: h,
		Store:     store,
		RecordID:  recordID,
		loading:   true,
		state:     ViewStateList,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.loadRecord())
}

func (m Model) loadRecord() tea.Cmd {
	return func() tea.Msg {
		rec, err := m.Store.Get(context.Background(), m.RecordID, storage.VersionLatest)
		return recordLoadedMsg{record: rec, err: err}
	}
}

func (m Model) decide(workID string, status plan.CandidateStatus) tea.Cmd {
	return func() tea.Msg {
		err := m.Harvester.SetCandidateStatus(context.Background(), m.RecordID, workID, status)
		return decisionMsg{workID: workID, status: status, err: err}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "up", "k":
			if m.state == ViewStateDetail {
				if m.detailsScroll > 0 {
					m.detailsScroll--
				}
			} else if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.state == ViewStateDetail {
				m.detailsScroll++
			} else if m.cursor < len(m.rows)-1 {
				m.cursor++
			}
		case "enter", " ":
			if m.state == ViewStateList && len(m.rows) > 0 {
				m.state = ViewStateDetail
				m.detailsScroll = 0
			}
		case "b", "esc":
			m.state = ViewStateList
		case "a":
			if row, ok := m.selected(); ok {
				return m, m.decide(row.WorkID, plan.CandidateApproved)
			}
		case "r":
			if row, ok := m.selected(); ok {
				return m, m.decide(row.WorkID, plan.CandidateRejected)
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case recordLoadedMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.record = msg.record
		m.rows = sortedRows(msg.record)
		if m.cursor >= len(m.rows) && len(m.rows) > 0 {
			m.cursor = len(m.rows) - 1
		}

	case decisionMsg:
		if msg.err != nil {
			m.statusMsg = "save failed: " + msg.err.Error()
			m.statusTime = time.Now()
			return m, nil
		}
		m.statusMsg = string(msg.status) + ": " + msg.workID
		m.statusTime = time.Now()
		return m, m.loadRecord()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) selected() (candidateRow, bool) {
	if m.cursor < 0 || m.cursor >= len(m.rows) {
		return candidateRow{}, false
	}
	return m.rows[m.cursor], true
}

// sortedRows orders candidates by score descending, then work id, so
// the list stays stable across reloads.
func sortedRows(rec *plan.Record) []candidateRow {
	rows := make([]candidateRow, 0, len(rec.Candidates))
	for id, cand := range rec.Candidates {
		rows = append(rows, candidateRow{WorkID: id, Candidate: cand})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Candidate.Score != rows[j].Candidate.Score {
			return rows[i].Candidate.Score > rows[j].Candidate.Score
		}
		return rows[i].WorkID < rows[j].WorkID
	})
	return rows
}

func (m Model) View() string {
	if m.err != nil {
		return danger.Render("ERROR: ") + m.err.Error() + "\n"
	}
	if m.quitting {
		return ""
	}
	if m.loading {
		return "\n  " + m.spinner.View() + " Loading record " + m.RecordID + "...\n"
	}

	switch m.state {
	case ViewStateDetail:
		return m.header() + m.viewDetails() + m.footer()
	default:
		return m.header() + m.viewList() + m.footer()
	}
}

func (m Model) header() string {
	title := m.RecordID
	if m.record != nil && m.record.Title != "" {
		title = m.record.Title
	}
	return titleStyle.Render("CANDIDATE REVIEW") + "  " + subtle.Render(title) + "\n\n"
}

func (m Model) footer() string {
	help := "\n" + dimStyle.Render("  [a]pprove  [r]eject  [enter] details  [b]ack  [q]uit")
	if m.statusMsg != "" && time.Since(m.statusTime) < 5*time.Second {
		help += "\n" + warning.Render("  "+m.statusMsg)
	}
	return help + "\n"
}
