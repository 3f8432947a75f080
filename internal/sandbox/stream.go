package sandbox

import (
	"encoding/json"
	"fmt"
)

// Stream is a finite, immutable sequence of values. It stands in for a
// reactive stream: every operator returns a new Stream and the receiver can be
// replayed any number of times.
type Stream struct {
	values []any
}

// Of returns a Stream emitting values in order.
func Of(values ...any) *Stream {
	return FromSlice(values)
}

// FromSlice returns a Stream over a copy of values.
func FromSlice(values []any) *Stream {
	cp := make([]any, len(values))
	copy(cp, values)
	return &Stream{values: cp}
}

// Empty returns a Stream that emits nothing.
func Empty() *Stream {
	return &Stream{values: []any{}}
}

// Merge concatenates streams in argument order. Streams carry no timing, so
// interleaving reduces to concatenation.
func Merge(streams ...*Stream) *Stream {
	var out []any
	for _, s := range streams {
		if s == nil {
			continue
		}
		out = append(out, s.values...)
	}
	return FromSlice(out)
}

// Values returns a copy of the emitted values.
func (s *Stream) Values() []any {
	if s == nil {
		return nil
	}
	cp := make([]any, len(s.values))
	copy(cp, s.values)
	return cp
}

// Len returns the number of emitted values.
func (s *Stream) Len() int {
	if s == nil {
		return 0
	}
	return len(s.values)
}

// Map applies fn to every value.
func (s *Stream) Map(fn func(any) (any, error)) (*Stream, error) {
	out, err := mapValues(s.Values(), fn)
	if err != nil {
		return nil, err
	}
	return &Stream{values: out}, nil
}

// Filter keeps the values for which keep reports true.
func (s *Stream) Filter(keep func(any) (bool, error)) (*Stream, error) {
	out, err := filterValues(s.Values(), keep)
	if err != nil {
		return nil, err
	}
	return &Stream{values: out}, nil
}

// MapTo replaces every value with v.
func (s *Stream) MapTo(v any) *Stream {
	out := make([]any, s.Len())
	for i := range out {
		out[i] = v
	}
	return &Stream{values: out}
}

// StartWith prepends v.
func (s *Stream) StartWith(v any) *Stream {
	return &Stream{values: append([]any{v}, s.Values()...)}
}

// Take keeps the first n values.
func (s *Stream) Take(n int) *Stream {
	vals := s.Values()
	if n < 0 {
		n = 0
	}
	if n < len(vals) {
		vals = vals[:n]
	}
	return &Stream{values: vals}
}

// Last returns a Stream holding only the final value, or an empty Stream.
func (s *Stream) Last() *Stream {
	if s.Len() == 0 {
		return Empty()
	}
	return Of(s.values[len(s.values)-1])
}

// Fold emits seed followed by every intermediate accumulation.
func (s *Stream) Fold(fn func(acc, v any) (any, error), seed any) (*Stream, error) {
	out := []any{seed}
	acc := seed
	for _, v := range s.Values() {
		next, err := fn(acc, v)
		if err != nil {
			return nil, err
		}
		acc = next
		out = append(out, acc)
	}
	return &Stream{values: out}, nil
}

// String renders the stream for logs and diagnostics.
func (s *Stream) String() string {
	return fmt.Sprintf("stream%v", s.Values())
}

// MarshalJSON encodes the stream as {"stream": [...]}.
func (s *Stream) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{"stream": s.Values()})
}

func mapValues(values []any, fn func(any) (any, error)) ([]any, error) {
	out := make([]any, len(values))
	for i, v := range values {
		mapped, err := fn(v)
		if err != nil {
			return nil, err
		}
		out[i] = mapped
	}
	return out, nil
}

func filterValues(values []any, keep func(any) (bool, error)) ([]any, error) {
	out := make([]any, 0, len(values))
	for _, v := range values {
		ok, err := keep(v)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, v)
		}
	}
	return out, nil
}
