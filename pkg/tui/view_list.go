package tui

import (
	"fmt"
	"strings"

	"github.com/dmphub/dmpsync/pkg/plan"
)

func (m Model) viewList() string {
	s := strings.Builder{}

	if len(m.rows) == 0 {
		return "\n   " + special.Render("[CLEAN]") + subtle.Render("  No tracked candidates on this record.") + "\n"
	}

	start, end := m.calculateWindow(len(m.rows))

	// State | ID | Score | Confidence | Citation
	headerTxt := fmt.Sprintf("  %-10s | %-28s | %-5s | %-10s | %s", "STATUS", "WORK ID", "SCORE", "CONF", "CITATION")
	s.WriteString(dimStyle.Render(headerTxt) + "\n")
	s.WriteString(dimStyle.Render("  "+strings.Repeat("─", 72)) + "\n")

	for i := start; i < end; i++ {
		row := m.rows[i]
		isSelected := i == m.cursor

		cursor := "  "
		if isSelected {
			cursor = "> "
		}

		dispID := row.WorkID
		if len(dispID) > 28 {
			dispID = dispID[:25] + "..."
		}

		citation := row.Candidate.Citation
		if len(citation) > 40 {
			citation = citation[:37] + "..."
		}

		baseLine := fmt.Sprintf("%-10s | %-28s | %-5d | %-10s | %s",
			statusLabel(row.Candidate.Status), dispID, row.Candidate.Score, row.Candidate.Confidence, citation)

		line := cursor + baseLine
		if isSelected {
			s.WriteString(listSelectedStyle.Render(line) + "\n")
		} else {
			s.WriteString(listNormalStyle.Render(line) + "\n")
		}
	}

	return s.String()
}

func statusLabel(status plan.CandidateStatus) string {
	switch status {
	case plan.CandidateApproved:
		return "APPROVED"
	case plan.CandidateRejected:
		return "REJECTED"
	default:
		return "PENDING"
	}
}

func (m Model) calculateWindow(total int) (int, int) {
	windowSize := m.height - 8 // approx header + footer
	if windowSize < 5 {
		windowSize = 5
	}

	start := m.cursor - (windowSize / 2)
	if start < 0 {
		start = 0
	}

	end := start + windowSize
	if end > total {
		end = total
		start = end - windowSize
		if start < 0 {
			start = 0
		}
	}
	return start, end
}
