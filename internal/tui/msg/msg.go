// Package msg defines message types shared between TUI views.
package msg

import "github.com/alkime/callboard/internal/calls"

// OpenCallMsg asks the root model to show the detail view for a call.
type OpenCallMsg struct {
	Record calls.Record
}

// BackMsg asks the root model to return to the call list. The detail view
// has already released its player when it sends this.
type BackMsg struct{}

// NotifyMsg shows a dismissable notification on the call list.
type NotifyMsg struct {
	Text  string
	Error bool
}
