// Package volume implements the volume controller: a small state
// machine tracking whether the current archive part's backing media
// (a DVD, a removable device, or a staging directory rolling over to a
// new file) is ready to receive the next write, plus the mechanism
// used to request that a human or external tool swap it in.
package volume

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// State is one state of the volume controller's state machine.
type State int

const (
	Unknown State = iota
	Unloaded
	Waiting
	Loaded
)

func (s State) String() string {
	switch s {
	case Unloaded:
		return "unloaded"
	case Waiting:
		return "waiting"
	case Loaded:
		return "loaded"
	default:
		return "unknown"
	}
}

// Event is one input to the state machine's transition table.
type Event int

const (
	// NeedNew is raised when the writer is about to exceed the current
	// volume's capacity and requires the next one.
	NeedNew Event = iota
	// LoadedEvent is raised once the requested volume has been confirmed
	// present (the request mechanism succeeded).
	LoadedEvent
	// Failed is raised when the request mechanism could not obtain the
	// next volume.
	Failed
	// Finalize is raised when the archive is done and no further
	// volume is needed.
	Finalize
)

// ErrInvalidTransition is returned by Fire when an event is not valid
// for the controller's current state.
var ErrInvalidTransition = errors.New("volume: invalid state transition")

// RequestFunc obtains the volume with the given number, returning an
// error if it could not be obtained.
type RequestFunc func(ctx context.Context, volumeNumber int) error

// Controller drives one archive's volume state machine. The zero value
// is not usable; construct with New.
type Controller struct {
	state        State
	volumeNumber int

	// callback, if set, is tried first to satisfy a request.
	callback RequestFunc
	// command, if set and callback is nil, is run with macro
	// substitution to satisfy a request.
	command string
	// prompt, if set and neither callback nor command is set, blocks
	// on an interactive "press ENTER" confirmation.
	prompt func(ctx context.Context, volumeNumber int) error

	onVolumeChange func(previous, next int)
}

// Option configures a Controller at construction time.
type Option func(*Controller)

// WithCallback installs a caller-supplied request mechanism, tried
// before any command or prompt.
func WithCallback(fn RequestFunc) Option {
	return func(c *Controller) { c.callback = fn }
}

// WithCommand installs an external command as the request mechanism,
// run via the shell with %number macro substitution.
func WithCommand(cmd string) Option {
	return func(c *Controller) { c.command = cmd }
}

// WithPrompt installs an interactive confirmation as the request
// mechanism, used only when no callback or command is configured.
func WithPrompt(fn func(ctx context.Context, volumeNumber int) error) Option {
	return func(c *Controller) { c.prompt = fn }
}

// WithOnVolumeChange registers a hook invoked after a successful
// transition to Loaded, receiving the previous and new volume numbers.
func WithOnVolumeChange(fn func(previous, next int)) Option {
	return func(c *Controller) { c.onVolumeChange = fn }
}

// New creates a controller in state Unknown at volume 0.
func New(opts ...Option) *Controller {
	c := &Controller{state: Unknown}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the controller's current state.
func (c *Controller) State() State { return c.state }

// VolumeNumber returns the number of the volume last successfully loaded.
func (c *Controller) VolumeNumber() int { return c.volumeNumber }

// transitions enumerates the valid (state, event) -> state moves.
var transitions = map[State]map[Event]State{
	Unknown:  {NeedNew: Waiting, Finalize: Unloaded},
	Unloaded: {NeedNew: Waiting, Finalize: Unloaded},
	Waiting:  {LoadedEvent: Loaded, Failed: Unloaded, Finalize: Unloaded},
	Loaded:   {NeedNew: Waiting, Finalize: Unloaded},
}

// fire applies event to the state machine, returning the resulting
// state or ErrInvalidTransition if the move isn't defined.
func (c *Controller) fire(event Event) (State, error) {
	next, ok := transitions[c.state][event]
	if !ok {
		return c.state, fmt.Errorf("%w: %s on %s", ErrInvalidTransition, event, c.state)
	}
	c.state = next
	return next, nil
}

func (e Event) String() string {
	switch e {
	case NeedNew:
		return "needNew"
	case LoadedEvent:
		return "loaded"
	case Failed:
		return "failed"
	case Finalize:
		return "finalize"
	default:
		return "unknown-event"
	}
}

// RequestNext drives the controller through NeedNew -> request -> Loaded
// (or Unloaded on failure), returning the assigned volume number.
func (c *Controller) RequestNext(ctx context.Context) (int, error) {
	if _, err := c.fire(NeedNew); err != nil {
		return 0, err
	}

	nextNumber := c.volumeNumber + 1
	if err := c.request(ctx, nextNumber); err != nil {
		c.fire(Failed)
		return 0, err
	}

	if _, err := c.fire(LoadedEvent); err != nil {
		return 0, err
	}
	previous := c.volumeNumber
	c.volumeNumber = nextNumber
	if c.onVolumeChange != nil {
		c.onVolumeChange(previous, nextNumber)
	}
	return nextNumber, nil
}

// Finalize transitions the controller to Unloaded once the archive is
// complete and no further volume will be requested.
func (c *Controller) Finalize() error {
	_, err := c.fire(Finalize)
	return err
}

// request selects the configured mechanism, in priority order:
// callback, then command, then interactive prompt.
func (c *Controller) request(ctx context.Context, volumeNumber int) error {
	switch {
	case c.callback != nil:
		return c.callback(ctx, volumeNumber)
	case c.command != "":
		return runRequestCommand(ctx, c.command, volumeNumber)
	case c.prompt != nil:
		return c.prompt(ctx, volumeNumber)
	default:
		return errors.New("volume: no request mechanism configured")
	}
}

// runRequestCommand runs cmd through the shell, substituting %number
// with the requested volume number.
func runRequestCommand(ctx context.Context, cmd string, volumeNumber int) error {
	substituted := strings.ReplaceAll(cmd, "%number", strconv.Itoa(volumeNumber))
	c := exec.CommandContext(ctx, "/bin/sh", "-c", substituted)
	out, err := c.CombinedOutput()
	if err != nil {
		return fmt.Errorf("volume: request command failed: %w (output: %s)", err, strings.TrimSpace(string(out)))
	}
	return nil
}
