package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/dmphub/dmpsync/pkg/plan"
)

func (m Model) viewDetails() string {
	row, ok := m.selected()
	if !ok {
		return "No Candidate Selected"
	}
	cand := row.Candidate

	header := detailsHeaderStyle.Render(fmt.Sprintf("%s : %s", cand.WorkType, row.WorkID))

	var icon lipgloss.Style
	switch cand.Status {
	case plan.CandidateApproved:
		icon = iconApproved
	case plan.CandidateRejected:
		icon = iconRejected
	default:
		icon = iconPending
	}

	score := fmt.Sprintf("SCORE:       %d", cand.Score)
	conf := fmt.Sprintf("CONFIDENCE:  %s", strings.ToUpper(cand.Confidence))
	source := fmt.Sprintf("SOURCE:      %s", cand.Source)
	rel := fmt.Sprintf("RELATION:    %s", cand.Descriptor)

	intelBlock := lipgloss.JoinVertical(lipgloss.Left,
		icon.Render(),
		special.Render(score),
		highlight.Render(conf),
		subtle.Render(source),
		subtle.Render(rel),
	)

	var notes []string
	for _, n := range cand.Notes {
		notes = append(notes, "  - "+n)
	}
	if len(notes) == 0 {
		notes = append(notes, "  (no match notes)")
	}

	citation := cand.Citation
	if citation == "" {
		citation = "(no citation on file)"
	}

	actions := []string{
		"[A]pprove",
		"[R]eject",
		"[B]ack to List",
	}
	actionLine := strings.Join(actions, "  ")

	content := lipgloss.JoinVertical(lipgloss.Left,
		header,
		"",
		intelBlock,
		"",
		highlight.Render("MATCH EVIDENCE:"),
		dimStyle.Render(strings.Join(notes, "\n")),
		"",
		highlight.Render("CITATION:"),
		subtle.Render(wrap(citation, 70)),
		"",
		strings.Repeat("─", 50),
		highlight.Render("ACTIONS:"),
		actionLine,
	)

	return detailsBoxStyle.Render(content)
}

// wrap does a plain word wrap at the given width.
func wrap(s string, width int) string {
	words := strings.Fields(s)
	if len(words) == 0 {
		return s
	}

	var b strings.Builder
	lineLen := 0
	for i, w := range words {
		if i > 0 {
			if lineLen+1+len(w) > width {
				b.WriteString("\n")
				lineLen = 0
			} else {
				b.WriteString(" ")
				lineLen++
			}
		}
		b.WriteString(w)
		lineLen += len(w)
	}
	return b.String()
}
