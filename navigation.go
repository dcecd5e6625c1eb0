package main

// defaultWideBreakpoint is the terminal width at which list and detail are
// shown side by side.
const defaultWideBreakpoint = 100

type pane int

const (
	paneList pane = iota
	paneDetail
)

func (p pane) String() string {
	if p == paneDetail {
		return "detail"
	}
	return "list"
}

// navigator is the list/detail state machine. It starts on the list with
// nothing selected and can move between the two panes indefinitely.
type navigator[T any] struct {
	pane     pane
	selected *T
}

// Select moves to the detail pane, replacing any prior selection.
func (n *navigator[T]) Select(item T) {
	n.selected = &item
	n.pane = paneDetail
}

// Back returns to the list and clears the selection.
func (n *navigator[T]) Back() {
	n.selected = nil
	n.pane = paneList
}

func (n *navigator[T]) Selected() (T, bool) {
	if n.selected == nil {
		var zero T
		return zero, false
	}
	return *n.selected, true
}

func (n *navigator[T]) Pane() pane {
	return n.pane
}

type layout struct {
	showList   bool
	showDetail bool
}

// layoutFor decides which panes are visible. Wide terminals show both;
// narrow ones show only the active pane.
func layoutFor(active pane, width, breakpoint int) layout {
	if breakpoint <= 0 {
		breakpoint = defaultWideBreakpoint
	}
	if width >= breakpoint {
		return layout{showList: true, showDetail: true}
	}
	if active == paneDetail {
		return layout{showDetail: true}
	}
	return layout{showList: true}
}
