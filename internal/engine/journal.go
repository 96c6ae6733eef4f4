package engine

import (
	"context"
	"sync/atomic"

	"github.com/roach88/defgeneric/internal/ir"
)

// Journal receives one record per dispatch frame, written when the frame
// exits. Implemented by store.Store.
type Journal interface {
	WriteDispatch(ctx context.Context, rec ir.DispatchRecord) error
}

// CallTokenGenerator generates tokens correlating the journal entries of
// one top-level call.
// Implemented by UUIDv7Generator (production) and FixedGenerator (tests).
type CallTokenGenerator interface {
	Generate() string
}

// Clock hands out the seq numbers frames are stamped with on entry, so a
// caller's frame always precedes the shadow calls and nested calls it
// makes, even though records are written on exit.
//
// A journal that already holds frames must be paired with NewClockAt of
// its last seq, or new records will collide with old ones.
//
// Thread-safety: Clock is safe for concurrent use.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a clock whose first frame gets seq 1.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock whose first frame gets seq last+1.
func NewClockAt(last int64) *Clock {
	c := &Clock{}
	c.seq.Store(last)
	return c
}

// Next stamps a new frame.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the seq of the most recently entered frame.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}

// record builds the journal entry of a frame that has returned.
func record(f *frame, result ir.IRValue, err error) ir.DispatchRecord {
	rec := ir.DispatchRecord{
		ID:      f.id,
		Token:   f.token,
		Kind:    f.kind,
		Generic: f.generic.Name,
		Args:    f.args,
		Outcome: ir.OutcomeOK,
		Seq:     f.seq,
		Depth:   f.depth,
	}
	if f.parent != nil {
		rec.ParentID = f.parent.id
	}
	if f.method != nil {
		rec.MethodID = f.method.ID
	}
	if err != nil {
		rec.Outcome = outcomeOf(err)
	} else {
		rec.Result = ir.Format(result)
	}
	return rec
}

// outcomeOf maps an error to the outcome stored in the journal.
func outcomeOf(err error) string {
	if code := CodeOf(err); code != "" {
		return string(code)
	}
	if IsStepsExceededError(err) {
		return "STEPS_EXCEEDED"
	}
	return "EVALUATION_ERROR"
}
