package selection

import (
	"encoding/json"
	"errors"
	"fmt"

	"sceneaoi/internal/geom"
)

var ErrUnknownEvent = errors.New("unknown event type")

// WireEvent is the JSON shape of an event:
//
//	{"type": "create.commit", "point": {"x": 1, "y": 2, "z": 0, "wkid": 3857}}
type WireEvent struct {
	Type     EventKind    `json:"type"`
	Point    *geom.Point  `json:"point,omitempty"`
	Origin   *geom.Point  `json:"origin,omitempty"`
	Terminal *geom.Point  `json:"terminal,omitempty"`
	Ring     []geom.Point `json:"ring,omitempty"`
	Scene    string       `json:"scene,omitempty"`
	ID       string       `json:"id,omitempty"`
}

// DecodeEvent parses a JSON event.
func DecodeEvent(data []byte) (Event, error) {
	var w WireEvent
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	return w.Event()
}

// Event converts the wire form into a typed event.
func (w WireEvent) Event() (Event, error) {
	point := func() (geom.Point, error) {
		if w.Point == nil {
			return geom.Point{}, fmt.Errorf("%s: point is required", w.Type)
		}
		return *w.Point, nil
	}
	ring := func() (geom.Rectangle, error) {
		var r geom.Rectangle
		if len(w.Ring) != len(r) {
			return r, fmt.Errorf("%s: ring must have %d vertices, got %d", w.Type, len(r), len(w.Ring))
		}
		copy(r[:], w.Ring)
		return r, nil
	}

	switch w.Type {
	case KindCreateStart:
		return CreateStart{}, nil
	case KindCreateActive:
		p, err := point()
		return CreateActive{Point: p}, err
	case KindCreateCommit:
		p, err := point()
		return CreateCommit{Point: p}, err
	case KindCreateCancel:
		return CreateCancel{}, nil
	case KindUpdate:
		if w.Origin == nil || w.Terminal == nil {
			return nil, fmt.Errorf("%s: origin and terminal are required", w.Type)
		}
		return Update{Origin: *w.Origin, Terminal: *w.Terminal}, nil
	case KindReshapeStart:
		return ReshapeStart{}, nil
	case KindReshapeActive:
		r, err := ring()
		return ReshapeActive{Ring: r}, err
	case KindReshapeComplete:
		r, err := ring()
		return ReshapeComplete{Ring: r}, err
	case KindReshapeCancel:
		return ReshapeCancel{}, nil
	case KindOriginStart:
		return OriginStart{}, nil
	case KindOriginActive:
		p, err := point()
		return OriginActive{Point: p}, err
	case KindOriginComplete:
		p, err := point()
		return OriginComplete{Point: p}, err
	case KindOriginCancel:
		return OriginCancel{}, nil
	case KindExportStart:
		return ExportStart{ID: w.ID}, nil
	case KindExportComplete:
		return ExportComplete{ID: w.ID}, nil
	case KindExportFail:
		return ExportFail{ID: w.ID}, nil
	case KindReset:
		return Reset{Scene: w.Scene}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, w.Type)
}

// WireGesture is the JSON shape of a raw gesture.
type WireGesture struct {
	Tool  string       `json:"tool"`
	Phase string       `json:"phase"`
	Point *geom.Point  `json:"point,omitempty"`
	Ring  []geom.Point `json:"ring,omitempty"`
	Edit  *struct {
		Op    string `json:"op"`
		Index int    `json:"index"`
	} `json:"edit,omitempty"`
}

// Gesture converts the wire form into a Gesture.
func (w WireGesture) Gesture() (Gesture, error) {
	g := Gesture{Point: w.Point, Ring: w.Ring}
	switch w.Tool {
	case "create":
		g.Tool = ToolCreate
	case "reshape":
		g.Tool = ToolReshape
	case "origin":
		g.Tool = ToolOrigin
	default:
		return g, fmt.Errorf("unknown tool %q", w.Tool)
	}
	switch w.Phase {
	case "start":
		g.Phase = PhaseStart
	case "active":
		g.Phase = PhaseActive
	case "complete":
		g.Phase = PhaseComplete
	case "cancel":
		g.Phase = PhaseCancel
	default:
		return g, fmt.Errorf("unknown phase %q", w.Phase)
	}
	if w.Edit != nil {
		info := &EditInfo{Index: w.Edit.Index}
		switch w.Edit.Op {
		case "", "move-vertex":
			info.Op = VertexMove
		case "add-vertex":
			info.Op = VertexAdd
		case "remove-vertex":
			info.Op = VertexRemove
		case "move":
			info.Op = ShapeMove
		default:
			return g, fmt.Errorf("unknown edit op %q", w.Edit.Op)
		}
		g.Edit = info
	}
	return g, nil
}
