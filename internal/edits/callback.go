package edits

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mymmrac/telego"
)

// Callback data prefixes of the edit notification keyboard.
const (
	RevealPrefix  = "reveal_edit"
	DismissPrefix = "dismiss_edit"
)

// Toggle button glyphs.
const (
	GlyphCollapsed = "👀️"
	GlyphExpanded  = "✉️"
	GlyphDismiss   = "🗑️"
)

// RevealData builds the callback payload of the reveal/hide button.
func RevealData(messageID int, editorID int64) string {
	return fmt.Sprintf("%s:%d:%d", RevealPrefix, messageID, editorID)
}

// DismissData builds the callback payload of the dismiss button.
func DismissData(messageID int, editorID int64) string {
	return fmt.Sprintf("%s:%d:%d", DismissPrefix, messageID, editorID)
}

// Action is a parsed edit-notification callback.
type Action struct {
	Kind      string // RevealPrefix or DismissPrefix
	MessageID int
	EditorID  int64 // zero for dismiss buttons without an editor id
}

// ParseAction decodes callback data produced by RevealData or DismissData.
func ParseAction(data string) (Action, error) {
	parts := strings.Split(data, ":")
	switch {
	case parts[0] == RevealPrefix && len(parts) >= 3:
		messageID, err := strconv.Atoi(parts[1])
		if err != nil {
			return Action{}, fmt.Errorf("invalid message id in %q: %w", data, err)
		}
		editorID, err := strconv.ParseInt(parts[2], 10, 64)
		if err != nil {
			return Action{}, fmt.Errorf("invalid editor id in %q: %w", data, err)
		}
		return Action{Kind: RevealPrefix, MessageID: messageID, EditorID: editorID}, nil
	case parts[0] == DismissPrefix && len(parts) >= 2:
		messageID, err := strconv.Atoi(parts[1])
		if err != nil {
			return Action{}, fmt.Errorf("invalid message id in %q: %w", data, err)
		}
		action := Action{Kind: DismissPrefix, MessageID: messageID}
		if len(parts) >= 3 {
			if action.EditorID, err = strconv.ParseInt(parts[2], 10, 64); err != nil {
				return Action{}, fmt.Errorf("invalid editor id in %q: %w", data, err)
			}
		}
		return action, nil
	default:
		return Action{}, fmt.Errorf("not an edit action: %q", data)
	}
}

// EditorFromKeyboard extracts the editor id from the edit notification
// keyboard. It returns false when no edit button carries one.
func EditorFromKeyboard(markup *telego.InlineKeyboardMarkup) (int64, bool) {
	if markup == nil {
		return 0, false
	}
	for _, row := range markup.InlineKeyboard {
		for _, button := range row {
			action, err := ParseAction(button.CallbackData)
			if err == nil && action.EditorID != 0 {
				return action.EditorID, true
			}
		}
	}
	return 0, false
}

// ToggleGlyph returns the button label that matches the rendered state.
func ToggleGlyph(expanded bool) string {
	if expanded {
		return GlyphExpanded
	}
	return GlyphCollapsed
}
