// Package naming generates artifact file names of the form
// payload_YYYYMMDD_HHMMSS_ffffff.json. Names issued by one Namer strictly
// increase, so two payloads received in the same microsecond still get
// distinct names. An optional shared Sequence appends a cluster-wide suffix
// for replicas writing into one directory.
package naming

import (
	"context"
	"fmt"
	"regexp"
	"sync"
	"time"
)

const (
	Prefix    = "payload_"
	Extension = ".json"
)

// Pattern matches every name a Namer can produce.
var Pattern = regexp.MustCompile(`^payload_\d{8}_\d{6}_\d{6}(_\d{6,})?\.json$`)

// Sequence supplies a monotonically increasing number shared between
// processes.
type Sequence interface {
	Next(ctx context.Context) (int64, error)
}

// Namer issues unique artifact names.
type Namer struct {
	mu   sync.Mutex
	last time.Time
	now  func() time.Time
	seq  Sequence
}

// NewNamer returns a Namer reading the wall clock. seq may be nil.
func NewNamer(seq Sequence) *Namer {
	return &Namer{now: time.Now, seq: seq}
}

// NewNamerWithClock is NewNamer with an injectable clock.
func NewNamerWithClock(seq Sequence, now func() time.Time) *Namer {
	return &Namer{now: now, seq: seq}
}

// Next returns a fresh artifact name.
func (n *Namer) Next(ctx context.Context) (string, error) {
	stamp := format(n.tick())
	if n.seq == nil {
		return Prefix + stamp + Extension, nil
	}
	v, err := n.seq.Next(ctx)
	if err != nil {
		return "", fmt.Errorf("next sequence value: %w", err)
	}
	return fmt.Sprintf("%s%s_%06d%s", Prefix, stamp, v, Extension), nil
}

// tick returns the current time at microsecond granularity, bumped past the
// last issued value when the clock has not advanced.
func (n *Namer) tick() time.Time {
	n.mu.Lock()
	defer n.mu.Unlock()
	t := n.now().Round(0).Truncate(time.Microsecond)
	if !t.After(n.last) {
		t = n.last.Add(time.Microsecond)
	}
	n.last = t
	return t
}

func format(t time.Time) string {
	return fmt.Sprintf("%s_%06d", t.Format("20060102_150405"), t.Nanosecond()/int(time.Microsecond))
}
