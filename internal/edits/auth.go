package edits

import "errors"

var (
	// ErrEditorForbidden is returned when the editor acts on their own notification.
	ErrEditorForbidden = errors.New("editor cannot act on own edit notification")
	// ErrNotAdmin is returned when a dismiss is attempted by a non-administrator.
	ErrNotAdmin = errors.New("only chat administrators can dismiss edit notifications")
)

// CanToggle checks whether actorID may reveal or hide the diff of an edit made
// by editorID.
func CanToggle(actorID, editorID int64) error {
	if actorID == editorID {
		return ErrEditorForbidden
	}
	return nil
}

// CanDismiss checks whether actorID may delete the notification of an edit
// made by editorID. The editor check wins over admin status.
func CanDismiss(actorID, editorID int64, isAdmin bool) error {
	if actorID == editorID {
		return ErrEditorForbidden
	}
	if !isAdmin {
		return ErrNotAdmin
	}
	return nil
}
