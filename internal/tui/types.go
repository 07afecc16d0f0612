package tui

import "github.com/fentz26/designboard/internal/models"

// boardUpdatedMsg is sent after the session applies a reload or records a
// failed one.
type boardUpdatedMsg struct{}

// actionResultMsg reports a side-channel write (accept, order number, send,
// create, change request).
type actionResultMsg struct {
	message string
	err     error
}

type historyLoadedMsg struct {
	taskID  string
	entries []models.PDREntry
}

type errMsg struct {
	err error
}
