package artwork

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"media-artwork/internal/embedded"
	"media-artwork/internal/render"
)

// ErrRaceLost is the cancellation cause of the slower source in a race.
var ErrRaceLost = errors.New("race-lost")

// Result is one piece of artwork. Sidecar results carry the sidecar URL
// itself; embedded results carry a data URI or a blob: URI that the caller
// must eventually revoke.
type Result struct {
	URI        string           `json:"uri"`
	Source     Source           `json:"source"`
	Container  string           `json:"container,omitempty"`
	Kind       embedded.Kind    `json:"kind"`
	InputMime  string           `json:"inputMime,omitempty"`
	OutputMime *render.MimeSpec `json:"outputMime,omitempty"`
	Width      int              `json:"width,omitempty"`
	Height     int              `json:"height,omitempty"`
}

// Timing aggregates where a call spent its time.
type Timing struct {
	Total       time.Duration
	FetchTotal  time.Duration
	DecodeTotal time.Duration
	EncodeTotal time.Duration
}

// Results is the outcome of a successful Thumbnail call.
type Results struct {
	Items  []Result
	Best   *Result
	Timing Timing
}

// pickBest returns the first front cover, else the first result.
func pickBest(items []Result) *Result {
	if len(items) == 0 {
		return nil
	}
	for i := range items {
		if items[i].Kind == embedded.KindFront {
			return &items[i]
		}
	}
	return &items[0]
}

// NotFoundError is returned when no source produced artwork.
type NotFoundError struct {
	Attempts []string
}

const maxSummarizedAttempts = 8

func (e *NotFoundError) Error() string {
	return strings.TrimSpace("no artwork found. " + summarizeAttempts(e.Attempts))
}

func summarizeAttempts(attempts []string) string {
	if len(attempts) == 0 {
		return ""
	}
	head := attempts[:min(len(attempts), maxSummarizedAttempts)]
	s := "Attempts: " + strings.Join(head, " | ")
	if extra := len(attempts) - len(head); extra > 0 {
		s += fmt.Sprintf(" | (+%d more)", extra)
	}
	return s
}

// call carries the per-request state shared by the strategy goroutines.
type call struct {
	url   string
	opts  Options
	start time.Time

	mu       sync.Mutex
	timing   Timing
	attempts []string
}

func (c *call) attempt(s string) {
	c.mu.Lock()
	c.attempts = append(c.attempts, s)
	c.mu.Unlock()
}

func (c *call) addFetch(d time.Duration) {
	c.mu.Lock()
	c.timing.FetchTotal += d
	c.mu.Unlock()
}

func (c *call) addRender(out *render.Output) {
	c.mu.Lock()
	c.timing.DecodeTotal += out.DecodeTime
	c.timing.EncodeTotal += out.EncodeTime
	c.mu.Unlock()
}

func (c *call) emit(ev Event) {
	if c.opts.OnTiming != nil {
		c.opts.OnTiming(ev)
	}
}

func (c *call) finish(items []Result) (*Results, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.timing.Total = time.Since(c.start)
	best := pickBest(items)
	if best == nil {
		return nil, &NotFoundError{Attempts: append([]string(nil), c.attempts...)}
	}
	return &Results{Items: items, Best: best, Timing: c.timing}, nil
}
