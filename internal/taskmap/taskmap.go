package taskmap

import (
	"strconv"
	"strings"
	"time"

	"callout_framework/internal/faults"
	"callout_framework/internal/tabular"
)

// Task ids that never trigger the assistance auto-alert on their own.
var assistExclude = map[int]bool{
	823: true, 3134: true, 7040: true, 6509: true, 3176: true,
	7035: true, 7036: true, 7037: true, 5474: true, 1268: true,
}

// Selection is the outcome of one task-id lookup for a unit list.
type Selection struct {
	TaskIDs         []int
	MissingUnits    []string
	AssistanceAdded bool
	AssistanceUnit  string
}

// Map translates response units to the dispatch service's task ids and
// applies the day/night assistance escalation. Read-only after Load.
type Map struct {
	byUnit    map[string][]int
	dayUnit   string
	nightUnit string
}

// Load reads the unit→task-id table. Duplicate units follow last-row-wins
// read order; units whose cell parses to no ids are excluded from the map.
func Load(path, dayUnit, nightUnit string) (*Map, error) {
	t, err := tabular.ReadFile(path)
	if err != nil {
		return nil, err
	}
	unitCol, okUnit := t.ColumnFold("unit")
	taskCol, okTask := t.ColumnFold("task_id")
	if !okUnit || !okTask {
		var missing []string
		if !okUnit {
			missing = append(missing, "unit")
		}
		if !okTask {
			missing = append(missing, "task_id")
		}
		return nil, &faults.DataSourceError{Source: path, Missing: missing, Found: t.Headers}
	}

	m := &Map{
		byUnit:    make(map[string][]int, t.Len()),
		dayUnit:   dayUnit,
		nightUnit: nightUnit,
	}
	for i := 0; i < t.Len(); i++ {
		unit := t.GetIdx(i, unitCol)
		if unit == "" {
			continue
		}
		ids := ParseTaskIDs(t.GetIdx(i, taskCol))
		if len(ids) == 0 {
			continue
		}
		m.byUnit[unit] = ids
	}
	return m, nil
}

// ParseTaskIDs decodes a task-id cell. Spreadsheet exports pack two ids into
// one numeric cell ("3134.1268" means 3134 and 1268), and plain integers may
// arrive as "823.0". Non-numeric or blank cells yield no ids.
func ParseTaskIDs(cell string) []int {
	s := strings.TrimSpace(cell)
	if s == "" {
		return nil
	}
	if left, right, found := strings.Cut(s, "."); found {
		left = strings.TrimSpace(left)
		right = strings.TrimRight(strings.TrimSpace(right), "0")

		var ids []int
		if n, ok := parseDigits(left); ok {
			ids = append(ids, n)
		}
		if n, ok := parseDigits(right); ok {
			ids = append(ids, n)
		}
		return dedupe(ids)
	}
	if n, ok := parseDigits(s); ok {
		return []int{n}
	}
	return nil
}

func parseDigits(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}

func dedupe(ids []int) []int {
	seen := make(map[int]bool, len(ids))
	out := ids[:0]
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

// TaskIDsForUnit returns the ids mapped to a trimmed unit name.
func (m *Map) TaskIDsForUnit(unit string) ([]int, bool) {
	ids, ok := m.byUnit[strings.TrimSpace(unit)]
	if !ok {
		return nil, false
	}
	return append([]int(nil), ids...), true
}

// SelectForUnits gathers the task ids for the requested units, deduplicated
// in unit order, and escalates to the day or night assistance unit unless
// every selected id is in the non-escalating exclusion set. The day unit
// covers Monday–Friday 07:00–17:00 local time; the night unit covers the
// rest. AssistanceUnit is only set when assistance ids were appended.
func (m *Map) SelectForUnits(units []string, now time.Time, autoAddAssistance bool) Selection {
	var sel Selection
	seen := make(map[int]bool)
	for _, u := range units {
		ids, ok := m.TaskIDsForUnit(u)
		if !ok {
			sel.MissingUnits = append(sel.MissingUnits, u)
			continue
		}
		for _, id := range ids {
			if !seen[id] {
				seen[id] = true
				sel.TaskIDs = append(sel.TaskIDs, id)
			}
		}
	}

	if !autoAddAssistance || len(sel.TaskIDs) == 0 {
		return sel
	}
	triggers := false
	for _, id := range sel.TaskIDs {
		if !assistExclude[id] {
			triggers = true
			break
		}
	}
	if !triggers {
		return sel
	}

	unit := m.nightUnit
	if isWeekdayDaytime(now) {
		unit = m.dayUnit
	}
	ids, ok := m.TaskIDsForUnit(unit)
	if !ok || len(ids) == 0 {
		return sel
	}
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			sel.TaskIDs = append(sel.TaskIDs, id)
		}
	}
	sel.AssistanceAdded = true
	sel.AssistanceUnit = unit
	return sel
}

func isWeekdayDaytime(now time.Time) bool {
	switch now.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	return now.Hour() >= 7 && now.Hour() < 17
}
