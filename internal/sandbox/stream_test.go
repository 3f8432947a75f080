package sandbox

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStream_Immutable(t *testing.T) {
	values := []any{1, 2}
	s := FromSlice(values)
	values[0] = 99

	assert.Equal(t, []any{1, 2}, s.Values())

	got := s.Values()
	got[1] = 42
	assert.Equal(t, []any{1, 2}, s.Values())

	_ = s.StartWith(0)
	assert.Equal(t, 2, s.Len())
}

func TestStream_Operators(t *testing.T) {
	s := Of(1, 2, 3)

	doubled, err := s.Map(func(v any) (any, error) { return v.(int) * 2, nil })
	require.NoError(t, err)
	assert.Equal(t, []any{2, 4, 6}, doubled.Values())

	odd, err := s.Filter(func(v any) (bool, error) { return v.(int)%2 == 1, nil })
	require.NoError(t, err)
	assert.Equal(t, []any{1, 3}, odd.Values())

	assert.Equal(t, []any{"x", "x", "x"}, s.MapTo("x").Values())
	assert.Equal(t, []any{}, s.Take(-1).Values())
	assert.Equal(t, []any{3}, s.Last().Values())

	sums, err := s.Fold(func(acc, v any) (any, error) { return acc.(int) + v.(int), nil }, 0)
	require.NoError(t, err)
	assert.Equal(t, []any{0, 1, 3, 6}, sums.Values())
}

func TestStream_OperatorErrors(t *testing.T) {
	boom := errors.New("boom")
	s := Of(1)

	_, err := s.Map(func(any) (any, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)

	_, err = s.Filter(func(any) (bool, error) { return false, boom })
	assert.ErrorIs(t, err, boom)

	_, err = s.Fold(func(any, any) (any, error) { return nil, boom }, 0)
	assert.ErrorIs(t, err, boom)
}

func TestMerge(t *testing.T) {
	assert.Equal(t, []any{1, 2, 3}, Merge(Of(1), nil, Of(2, 3)).Values())
	assert.Equal(t, 0, Merge().Len())
}

func TestStream_MarshalJSON(t *testing.T) {
	data, err := json.Marshal(Of("hello world"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"stream":["hello world"]}`, string(data))
}

func TestToPlain(t *testing.T) {
	out, err := toPlain(map[string]any{
		"s":  Of(int64(1), float32(0.5)),
		"el": NewElement("div", ".a", "b"),
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"s":  []any{1, 0.5},
		"el": map[string]any{"tag": "div", "sel": ".a", "children": []any{"b"}},
	}, out)

	_, err = toPlain(map[string]any{"fn": func() {}})
	assert.Error(t, err)
}

func TestWrapSources(t *testing.T) {
	wrapped := WrapSources(map[string]any{"DOM": map[string]any{"title": "x"}, "clock": nil})
	require.Len(t, wrapped, 2)

	dom := wrapped["DOM"].(Driver)
	assert.Equal(t, "DOM", dom.Name())
	assert.Equal(t, map[string]any{"title": "x"}, dom.Value())
	assert.NotNil(t, dom["of"])

	clock := wrapped["clock"].(Driver)
	assert.Nil(t, clock.Value())
	assert.Contains(t, clock, "value")
}

func TestDriver_MarshalJSON(t *testing.T) {
	drv := WrapSources(map[string]any{"DOM": "page"})["DOM"]

	data, err := json.Marshal(map[string]any{"DOM": drv, "bare": NewSource("bare")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"DOM":{"name":"DOM","value":"page"},"bare":{"name":"bare","value":null}}`, string(data))
}

func TestDriver_PlainForm(t *testing.T) {
	plain, err := toPlain(WrapSources(map[string]any{"DOM": []any{1, "a"}})["DOM"])
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"name": "DOM", "value": []any{1, "a"}}, plain)
}

func TestWrappedSourceDrivesFragment(t *testing.T) {
	sb := New()
	src := WrapSources(map[string]any{"DOM": "page"})["DOM"]

	out, err := sb.Evaluate(context.Background(), DialectExpr, `source.of("hello world")`, src, StandardLibrary())
	require.NoError(t, err)
	assert.Equal(t, Of("hello world"), out)

	val, err := sb.Evaluate(context.Background(), DialectExpr, `source.value`, src, StandardLibrary())
	require.NoError(t, err)
	assert.Equal(t, "page", val)
}
