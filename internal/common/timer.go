// Package common holds small helpers shared by the processing packages.
package common

import (
	"fmt"
	"strings"
	"time"
)

// Lap is one named interval recorded by a Stopwatch.
type Lap struct {
	Name     string
	Duration time.Duration
}

// Stopwatch measures a run split into consecutive named laps.
// It is not safe for concurrent use.
type Stopwatch struct {
	name  string
	start time.Time
	mark  time.Time
	laps  []Lap
	total time.Duration
	now   func() time.Time
}

// NewStopwatch starts an unnamed stopwatch.
func NewStopwatch() *Stopwatch {
	return NewNamedStopwatch("")
}

// NewNamedStopwatch starts a stopwatch labelled name.
func NewNamedStopwatch(name string) *Stopwatch {
	return newStopwatch(name, time.Now)
}

func newStopwatch(name string, now func() time.Time) *Stopwatch {
	t := now()
	return &Stopwatch{name: name, start: t, mark: t, now: now}
}

// Lap closes the current interval under name and returns its length.
func (s *Stopwatch) Lap(name string) time.Duration {
	t := s.now()
	d := t.Sub(s.mark)
	s.mark = t
	s.laps = append(s.laps, Lap{Name: name, Duration: d})
	return d
}

// Stop records the time since start and returns it.
func (s *Stopwatch) Stop() time.Duration {
	s.total = s.now().Sub(s.start)
	return s.total
}

// Total is the value recorded by Stop.
func (s *Stopwatch) Total() time.Duration { return s.total }

// Name returns the label, empty if unnamed.
func (s *Stopwatch) Name() string { return s.name }

// Laps returns a copy of the recorded laps in order.
func (s *Stopwatch) Laps() []Lap {
	out := make([]Lap, len(s.laps))
	copy(out, s.laps)
	return out
}

// LapDuration returns the first lap called name.
func (s *Stopwatch) LapDuration(name string) (time.Duration, bool) {
	for _, l := range s.laps {
		if l.Name == name {
			return l.Duration, true
		}
	}
	return 0, false
}

// String renders "name: total (lap=d, ...)".
func (s *Stopwatch) String() string {
	var b strings.Builder
	if s.name != "" {
		b.WriteString(s.name)
		b.WriteString(": ")
	}
	fmt.Fprintf(&b, "%v", s.total)
	if len(s.laps) > 0 {
		parts := make([]string, len(s.laps))
		for i, l := range s.laps {
			parts[i] = fmt.Sprintf("%s=%v", l.Name, l.Duration)
		}
		fmt.Fprintf(&b, " (%s)", strings.Join(parts, ", "))
	}
	return b.String()
}
