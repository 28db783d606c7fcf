package model

import "time"

// Item is a single to-do entry owned by one caller.
type Item struct {
	ID        uint64 `json:"id"`
	Text      string `json:"text"`
	Completed bool   `json:"completed"`
}

// Count is the live item count returned by add/remove.
type Count struct {
	Count uint64 `json:"count"`
}

// Toggled is the result of flipping an item's completion state.
type Toggled struct {
	Completed bool `json:"completed"`
}

type EventType string

const (
	EventTodosAdded      EventType = "todos.added"
	EventTodosRemoved    EventType = "todos.removed"
	EventTodoToggled     EventType = "todo.toggled"
	EventTodoTextUpdated EventType = "todo.text_updated"
)

// Event records one successful mutation of a caller's items.
type Event struct {
	ID      string    `json:"id"`
	TS      time.Time `json:"ts"`
	Caller  string    `json:"caller"`
	Type    EventType `json:"type"`
	Payload any       `json:"payload"`
}
