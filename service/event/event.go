package event

import (
	"time"

	"github.com/viant/lodstream/internal/clock"
)

// Type names a streaming notification.
type Type string

const (
	TypeReady     Type = "ready"
	TypeLod       Type = "lod"
	TypeCompleted Type = "completed"
	TypeError     Type = "error"
	TypeActive    Type = "active"
	TypeInactive  Type = "inactive"
	TypeStalled   Type = "stalled"
)

// Context identifies the asset an event relates to.
type Context struct {
	AssetID   string `json:"assetID,omitempty"`
	Source    string `json:"source,omitempty"`
	EventType Type   `json:"eventType"`
	Lod       int    `json:"lod"`
}

type Event[T any] struct {
	Context   *Context               `json:"context"`
	CreatedAt time.Time              `json:"createdAt"`
	Metadata  map[string]interface{} `json:"metadata"`
	Data      T                      `json:"data"`
}

func NewEvent[T any](context *Context, data T) *Event[T] {
	return &Event[T]{
		Context:   context,
		CreatedAt: clock.Now(),
		Metadata:  make(map[string]interface{}),
		Data:      data,
	}
}
