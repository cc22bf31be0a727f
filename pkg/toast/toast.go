package toast

import (
	"encoding/json"
	"fmt"
)

// EventName is the event name dispatched for toasts.
// Client-side code should listen for this event.
const EventName = "tether:toast"

// Type represents the toast notification type.
type Type string

const (
	TypeSuccess Type = "success"
	TypeError   Type = "error"
	TypeWarning Type = "warning"
	TypeInfo    Type = "info"
)

// Emitter runs a script in every tab of a session. *server.Session
// implements it.
type Emitter interface {
	ExecuteJS(js string)
}

// Show displays a toast notification to the user.
//
// The client receives a CustomEvent with:
//   - event.type = "tether:toast"
//   - event.detail = { level: "success|error|warning|info", message: "..." }
func Show(e Emitter, level Type, message string) {
	Custom(e, map[string]any{
		"level":   string(level),
		"message": message,
	})
}

// Success shows a success toast.
//
//	toast.Success(s, "Changes saved!")
func Success(e Emitter, message string) {
	Show(e, TypeSuccess, message)
}

// Error shows an error toast.
func Error(e Emitter, message string) {
	Show(e, TypeError, message)
}

// Warning shows a warning toast.
func Warning(e Emitter, message string) {
	Show(e, TypeWarning, message)
}

// Info shows an info toast.
func Info(e Emitter, message string) {
	Show(e, TypeInfo, message)
}

// WithTitle shows a toast with a title and message.
//
//	toast.WithTitle(s, toast.TypeSuccess, "Settings", "Your changes have been saved.")
func WithTitle(e Emitter, level Type, title, message string) {
	Custom(e, map[string]any{
		"level":   string(level),
		"title":   title,
		"message": message,
	})
}

// WithAction shows a toast with an action button. actionNode and
// actionHandler name the callback the page should send when it is clicked.
func WithAction(e Emitter, level Type, message, actionLabel, actionNode, actionHandler string) {
	Custom(e, map[string]any{
		"level":         string(level),
		"message":       message,
		"actionLabel":   actionLabel,
		"actionNode":    actionNode,
		"actionHandler": actionHandler,
	})
}

// Custom shows a toast with custom data. data must be JSON-encodable;
// otherwise nothing is sent.
func Custom(e Emitter, data map[string]any) {
	js, err := Script(data)
	if err != nil {
		return
	}
	e.ExecuteJS(js)
}

// Script returns the statement that dispatches a toast event with detail.
func Script(detail map[string]any) (string, error) {
	b, err := json.Marshal(detail)
	if err != nil {
		return "", fmt.Errorf("toast: encode detail: %w", err)
	}
	return fmt.Sprintf("window.dispatchEvent(new CustomEvent(%q,{detail:%s}))", EventName, b), nil
}
