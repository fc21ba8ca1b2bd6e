package mapper

import (
	"context"

	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/dmitrijs2005/ormpb/errs"
	"github.com/dmitrijs2005/ormpb/model"
)

type Stage int

const (
	Pre Stage = iota
	Post
)

func (s Stage) String() string {
	if s == Post {
		return "post"
	}
	return "pre"
}

// Event describes one entity conversion. Message and Entity may be modified
// by Pre hooks of the matching direction, but a hook cannot stop or
// redirect the conversion.
type Event struct {
	Direction errs.Direction
	Stage     Stage
	Meta      *model.Meta
	Message   protoreflect.Message
	Entity    any
}

type Hook func(ctx context.Context, ev Event)

func (m *Mapper) fire(ctx context.Context, ev Event) {
	for _, h := range m.hooks {
		m.call(ctx, h, ev)
	}
}

func (m *Mapper) call(ctx context.Context, h Hook, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Error(ctx, "conversion hook panicked",
				"entity", ev.Meta.Name, "direction", ev.Direction.String(), "stage", ev.Stage.String(), "panic", r)
		}
	}()
	h(ctx, ev)
}
