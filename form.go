package main

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

type filterField int

const (
	fieldSearch filterField = iota
	fieldDateFrom
	fieldDateTo
	filterFieldCount
)

// filterForm is the search and date-range editor opened with "/".
type filterForm struct {
	active bool
	inputs []textinput.Model
	focus  int
	err    string
}

func newFilterForm() filterForm {
	inputs := make([]textinput.Model, filterFieldCount)
	for i := range inputs {
		ti := textinput.New()
		switch filterField(i) {
		case fieldSearch:
			ti.Prompt = "Search:    "
			ti.Placeholder = "questions and answers"
			ti.CharLimit = 256
		case fieldDateFrom:
			ti.Prompt = "Date from: "
			ti.Placeholder = "YYYY-MM-DD"
			ti.CharLimit = len(filterDateLayout)
		case fieldDateTo:
			ti.Prompt = "Date to:   "
			ti.Placeholder = "YYYY-MM-DD"
			ti.CharLimit = len(filterDateLayout)
		}
		inputs[i] = ti
	}
	return filterForm{inputs: inputs}
}

func (f *filterForm) open(filters queryFilters) tea.Cmd {
	f.active = true
	f.err = ""
	f.inputs[fieldSearch].SetValue(filters.Search)
	f.inputs[fieldDateFrom].SetValue(filters.DateFrom)
	f.inputs[fieldDateTo].SetValue(filters.DateTo)
	f.focus = int(fieldSearch)
	return f.focusCurrent()
}

func (f *filterForm) close() {
	f.active = false
	f.err = ""
	for i := range f.inputs {
		f.inputs[i].Blur()
	}
}

func (f *filterForm) move(delta int) tea.Cmd {
	n := len(f.inputs)
	f.focus = ((f.focus+delta)%n + n) % n
	return f.focusCurrent()
}

func (f *filterForm) focusCurrent() tea.Cmd {
	var cmd tea.Cmd
	for i := range f.inputs {
		if i == f.focus {
			cmd = f.inputs[i].Focus()
			continue
		}
		f.inputs[i].Blur()
	}
	return cmd
}

// values overlays the form fields onto base, keeping its user filter.
func (f filterForm) values(base queryFilters) queryFilters {
	base.Search = strings.TrimSpace(f.inputs[fieldSearch].Value())
	base.DateFrom = strings.TrimSpace(f.inputs[fieldDateFrom].Value())
	base.DateTo = strings.TrimSpace(f.inputs[fieldDateTo].Value())
	return base
}

func (f filterForm) view() string {
	lines := make([]string, 0, len(f.inputs)+1)
	for _, input := range f.inputs {
		lines = append(lines, input.View())
	}
	if f.err != "" {
		lines = append(lines, errorStyle.Render(f.err))
	}
	return strings.Join(lines, "\n")
}

// userPicker chooses the user filter from the user directory. Entry zero is
// "All users".
type userPicker struct {
	active  bool
	loading bool
	users   []QAUser
	cursor  int
}

func (p *userPicker) open() {
	p.active = true
	p.loading = true
	p.cursor = 0
}

func (p *userPicker) close() {
	p.active = false
	p.loading = false
}

func (p *userPicker) setUsers(users []QAUser, current string) {
	p.users = users
	p.cursor = 0
	for i, user := range users {
		if user.ID.String() == current {
			p.cursor = i + 1
			break
		}
	}
}

func (p *userPicker) move(delta int) {
	p.cursor = clamp(p.cursor+delta, 0, len(p.users))
}

// chosen returns the selected user id, or "" for all users.
func (p userPicker) chosen() recordID {
	if p.cursor <= 0 || p.cursor > len(p.users) {
		return ""
	}
	return p.users[p.cursor-1].ID
}
