package main

import (
	"time"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
)

const copiedMarkerDuration = 2 * time.Second

// writeClipboard is swapped out in tests.
var writeClipboard = clipboard.WriteAll

type copiedMsg struct {
	messageID recordID
	err       error
}

type copiedExpiredMsg struct {
	messageID recordID
}

func copyMessageCmd(msg Message) tea.Cmd {
	text := msg.Content
	if msg.IsHTML {
		text = htmlToText(text)
	}
	id := msg.ID
	return func() tea.Msg {
		return copiedMsg{messageID: id, err: writeClipboard(text)}
	}
}

func copiedExpiryCmd(id recordID) tea.Cmd {
	return tea.Tick(copiedMarkerDuration, func(time.Time) tea.Msg {
		return copiedExpiredMsg{messageID: id}
	})
}
