// Package rollup aggregates workstream entries into per-vertical
// red/yellow/green counts for dashboard display.
package rollup

import (
	"sort"
	"strings"

	"bizhub-backend/pkg/models"
)

// Unassigned is the vertical used for entries that carry none.
const Unassigned = "Unassigned"

// ByVertical counts entries per vertical, sorted by vertical name.
// Entries with an unknown status count towards Total only.
func ByVertical(entries []models.WorkstreamEntry) []models.VerticalStatusRollup {
	byName := make(map[string]*models.VerticalStatusRollup)
	for _, e := range entries {
		name := strings.TrimSpace(e.Vertical)
		if name == "" {
			name = Unassigned
		}
		r, ok := byName[name]
		if !ok {
			r = &models.VerticalStatusRollup{Vertical: name}
			byName[name] = r
		}
		add(r, e.Status)
	}

	out := make([]models.VerticalStatusRollup, 0, len(byName))
	for _, r := range byName {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Vertical < out[j].Vertical })
	return out
}

// Total sums rollups into a single row labelled "All".
func Total(rollups []models.VerticalStatusRollup) models.VerticalStatusRollup {
	t := models.VerticalStatusRollup{Vertical: "All"}
	for _, r := range rollups {
		t.Red += r.Red
		t.Yellow += r.Yellow
		t.Green += r.Green
		t.Total += r.Total
	}
	return t
}

func add(r *models.VerticalStatusRollup, status models.StatusColor) {
	r.Total++
	switch status {
	case models.StatusRed:
		r.Red++
	case models.StatusYellow:
		r.Yellow++
	case models.StatusGreen:
		r.Green++
	}
}
