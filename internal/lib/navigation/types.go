package navigation

import (
	"errors"
	"fmt"

	"github.com/odyssey-travel/odyssey/server/internal/lib/geo"
	"github.com/odyssey-travel/odyssey/server/internal/lib/mapview"
	"github.com/odyssey-travel/odyssey/server/internal/lib/routing"
)

var (
	// ErrDataMissing is returned when an operation needs an origin or destination that is absent
	ErrDataMissing = errors.New("missing location data for navigation")
	// ErrInitializationFailed is reported when the map surface could not be built within the retry budget
	ErrInitializationFailed = errors.New("navigation map initialization failed")
	// ErrDisposed is returned by every operation after Dispose
	ErrDisposed = errors.New("navigation session disposed")
	// ErrNotReady is returned by map commands before initialization completes
	ErrNotReady = errors.New("navigation map not ready")
	// ErrNotRetryable is returned by Retry outside the error state
	ErrNotRetryable = errors.New("navigation is not in the error state")
)

// State is the engine lifecycle state
type State int

const (
	Uninitialized State = iota
	Initializing
	Ready
	Updating
	Failed
	Disposed
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Initializing:
		return "initializing"
	case Ready:
		return "ready"
	case Updating:
		return "updating"
	case Failed:
		return "error"
	case Disposed:
		return "disposed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// MarshalText encodes the state by name
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name written by MarshalText
func (s *State) UnmarshalText(text []byte) error {
	for candidate := Uninitialized; candidate <= Disposed; candidate++ {
		if candidate.String() == string(text) {
			*s = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown navigation state %q", text)
}

// Level is the severity of a notification
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notification is a user-facing message
type Notification struct {
	Level  Level  `json:"level"`
	Title  string `json:"title"`
	Detail string `json:"detail,omitempty"`
	Code   string `json:"code,omitempty"`
}

// EventKind tags an Event
type EventKind string

const (
	EventState        EventKind = "state"
	EventRoute        EventKind = "route"
	EventGuidance     EventKind = "guidance"
	EventNotification EventKind = "notification"
)

// Event is emitted by the engine after each state change
type Event struct {
	Kind         EventKind       `json:"kind"`
	State        State           `json:"state"`
	Route        *RouteSummary   `json:"route,omitempty"`
	Result       *routing.Result `json:"-"`
	Guidance     *Guidance       `json:"guidance,omitempty"`
	Notification *Notification   `json:"notification,omitempty"`
}

// EventSink receives engine events. Emit is never called with the engine lock held.
type EventSink interface {
	Emit(Event)
}

// SinkFunc adapts a function to EventSink
type SinkFunc func(Event)

func (f SinkFunc) Emit(e Event) { f(e) }

type discardSink struct{}

func (discardSink) Emit(Event) {}

// RouteSummary is the client view of the active route
type RouteSummary struct {
	Coordinates          []geo.Point           `json:"coordinates"`
	Instructions         []routing.Instruction `json:"instructions"`
	TotalDistanceMeters  float64               `json:"total_distance_meters"`
	TotalDurationSeconds float64               `json:"total_duration_seconds"`
	TotalDistance        string                `json:"total_distance"`
	TotalDuration        string                `json:"total_duration"`
}

func summarize(r *routing.Route) *RouteSummary {
	if r == nil {
		return nil
	}
	return &RouteSummary{
		Coordinates:          append([]geo.Point(nil), r.Coordinates...),
		Instructions:         append([]routing.Instruction(nil), r.Instructions...),
		TotalDistanceMeters:  r.TotalDistanceMeters,
		TotalDurationSeconds: r.TotalDurationSeconds,
		TotalDistance:        routing.FormatDistance(r.TotalDistanceMeters),
		TotalDuration:        routing.FormatDuration(r.TotalDurationSeconds),
	}
}

// Guidance is the turn-by-turn panel content
type Guidance struct {
	TotalDistance        string  `json:"total_distance"`
	TotalDuration        string  `json:"total_duration"`
	TotalDistanceMeters  float64 `json:"total_distance_meters"`
	TotalDurationSeconds float64 `json:"total_duration_seconds"`
	HeadingDegrees       int     `json:"heading_degrees"`
	Compass              string  `json:"compass"`

	StepIndex           int                  `json:"step_index"`
	StepCount           int                  `json:"step_count"`
	Instruction         *routing.Instruction `json:"instruction,omitempty"`
	InstructionDistance string               `json:"instruction_distance,omitempty"`
	InstructionDuration string               `json:"instruction_duration,omitempty"`

	DistanceFromRoute float64 `json:"distance_from_route"`
	OffRoute          bool    `json:"off_route"`
	RemainingDistance string  `json:"remaining_distance,omitempty"`
}

// Snapshot is a point-in-time copy of a navigation session
type Snapshot struct {
	State         State            `json:"state"`
	Origin        *geo.Point       `json:"origin,omitempty"`
	Destination   *geo.Point       `json:"destination,omitempty"`
	Route         *RouteSummary    `json:"route,omitempty"`
	StepIndex     int              `json:"step_index"`
	AutoFollow    bool             `json:"auto_follow"`
	Heading       float64          `json:"heading_degrees"`
	Mode          mapview.TileMode `json:"map_mode"`
	UpdateCounter int              `json:"update_counter"`
	LastError     string           `json:"last_error,omitempty"`
}

// Metrics observes engine activity. All methods must be safe for concurrent use.
type Metrics interface {
	RouteRequested(reason string)
	RouteFailed(reason string)
	StaleReply(cause string)
	InitAttempt(success bool)
	PositionUpdated()
}

type nopMetrics struct{}

func (nopMetrics) RouteRequested(string) {}
func (nopMetrics) RouteFailed(string)    {}
func (nopMetrics) StaleReply(string)     {}
func (nopMetrics) InitAttempt(bool)      {}
func (nopMetrics) PositionUpdated()      {}
