package hub

import (
	"encoding/json"
	"fmt"
)

// Event types sent on the realtime channel.
const (
	TodoCreated     = "todo.created"
	TodoUpdated     = "todo.updated"
	TodoDeleted     = "todo.deleted"
	TodosReordered  = "todos.reordered"
	CategoryCreated = "category.created"
	CategoryUpdated = "category.updated"
	CategoryDeleted = "category.deleted"
)

// Event is the JSON envelope of every realtime frame.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// IDPayload is the data of deletion events.
type IDPayload struct {
	ID string `json:"id"`
}

// Broadcast encodes an Event envelope and publishes it.
func (h *Hub) Broadcast(typ string, data any) error {
	b, err := json.Marshal(Event{Type: typ, Data: data})
	if err != nil {
		return fmt.Errorf("encode %s event: %w", typ, err)
	}
	h.Publish(b)
	return nil
}
