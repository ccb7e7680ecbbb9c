package tui

import "github.com/timestitch/timestitch/internal/domain"

// statusChannel bridges sync status callbacks into Bubble Tea's message
// loop. Sends never block; a full channel drops the intermediate update
// since only the latest status matters for display.
func statusChannel() (chan domain.SyncStatus, func(domain.SyncStatus)) {
	ch := make(chan domain.SyncStatus, 8)
	return ch, func(s domain.SyncStatus) {
		select {
		case ch <- s:
		default:
		}
	}
}
