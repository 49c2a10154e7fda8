package cursor

import (
	"encoding/json"
	"fmt"
)

// State is a stream lifecycle state.
type State string

// Stream states. Any state may move to Closing on failure.
const (
	Opening    State = "opening"
	Fetching   State = "fetching"
	Continuing State = "continuing"
	Closing    State = "closing"
	Closed     State = "closed"
)

var transitions = map[State][]State{
	Opening:    {Fetching, Closing},
	Fetching:   {Continuing, Closing},
	Continuing: {Fetching, Closing},
	Closing:    {Closed},
}

// CanMove reports whether from -> to is a legal transition.
func CanMove(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Cursor is the serializable position of a stream: snapshot handle, last sort key, progress and cap.
type Cursor struct {
	snapshot string
	sortKey  []any
	emitted  int
	limit    int
}

// New creates a cursor positioned before the first record.
func New(snapshot string, limit int) (Cursor, error) {
	if snapshot == "" {
		return Cursor{}, fmt.Errorf("snapshot handle is required")
	}
	if limit <= 0 {
		return Cursor{}, fmt.Errorf("record cap must be positive, got %d", limit)
	}
	return Cursor{snapshot: snapshot, limit: limit}, nil
}

// Snapshot returns the handle to use for the next fetch.
func (c Cursor) Snapshot() string { return c.snapshot }

// SortKey returns the continuation after the last emitted record; nil before the first batch.
func (c Cursor) SortKey() []any { return c.sortKey }

// Emitted returns the number of records handed out so far.
func (c Cursor) Emitted() int { return c.emitted }

// Limit returns the record cap.
func (c Cursor) Limit() int { return c.limit }

// Remaining returns how many records may still be emitted.
func (c Cursor) Remaining() int { return max(c.limit-c.emitted, 0) }

// Exhausted reports whether the cap has been reached.
func (c Cursor) Exhausted() bool { return c.emitted >= c.limit }

// Advance returns the cursor after emitting n records ending at sortKey.
// A non-empty snapshot replaces the current handle.
func (c Cursor) Advance(snapshot string, sortKey []any, n int) Cursor {
	next := c
	if snapshot != "" {
		next.snapshot = snapshot
	}
	if sortKey != nil {
		next.sortKey = append([]any(nil), sortKey...)
	}
	next.emitted += n
	return next
}

type wire struct {
	Snapshot string `json:"snapshot"`
	SortKey  []any  `json:"sort_key,omitempty"`
	Emitted  int    `json:"emitted"`
	Limit    int    `json:"limit"`
}

// MarshalJSON encodes the cursor.
func (c Cursor) MarshalJSON() ([]byte, error) {
	return json.Marshal(wire{Snapshot: c.snapshot, SortKey: c.sortKey, Emitted: c.emitted, Limit: c.limit})
}

// UnmarshalJSON decodes and validates the cursor.
func (c *Cursor) UnmarshalJSON(b []byte) error {
	var w wire
	if err := json.Unmarshal(b, &w); err != nil {
		return fmt.Errorf("decode cursor: %w", err)
	}
	nc, err := New(w.Snapshot, w.Limit)
	if err != nil {
		return err
	}
	if w.Emitted < 0 {
		return fmt.Errorf("emitted must be non-negative, got %d", w.Emitted)
	}
	nc.sortKey = w.SortKey
	nc.emitted = w.Emitted
	*c = nc
	return nil
}
