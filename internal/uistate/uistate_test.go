package uistate

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type collector struct{ events []Event }

func (c *collector) Publish(evt Event) { c.events = append(c.events, evt) }

func TestState_SetGetWatch(t *testing.T) {
	pub := &collector{}
	s := NewState(pub)

	var seen []any
	s.Watch(SourceID, func(v any) { seen = append(seen, v) })

	s.Set(SourceID, 3)
	s.Set(ViewID, 1)

	assert.Equal(t, 3, s.Get(SourceID))
	assert.Nil(t, s.Get(RepresentationID))
	assert.Equal(t, []any{3}, seen)
	assert.Equal(t, map[string]any{SourceID: 3, ViewID: 1}, s.Snapshot())
	assert.Equal(t, []Event{
		{Kind: StateEvent, Name: SourceID, Value: 3},
		{Kind: StateEvent, Name: ViewID, Value: 1},
	}, pub.events)
}

func TestState_WatchDuringSet(t *testing.T) {
	s := NewState(nil)

	var calls []string
	s.Watch(UIAdvanced, func(v any) {
		calls = append(calls, "first")
		s.Watch(UIAdvanced, func(any) { calls = append(calls, "late") })
		s.Set(ReloadDomains, v)
	})

	s.Set(UIAdvanced, true)
	assert.Equal(t, []string{"first"}, calls)
	assert.Equal(t, true, s.Get(ReloadDomains))

	s.Set(UIAdvanced, false)
	assert.Equal(t, []string{"first", "first", "late"}, calls)
}

func TestController_TriggerOrderAndErrors(t *testing.T) {
	pub := &collector{}
	c := NewController(pub)

	var order []string
	c.On(DataChanged, "a", func() error { order = append(order, "a"); return nil })
	c.On(DataChanged, "b", func() error { order = append(order, "b"); return errors.New("boom") })
	c.On(DataChanged, "c", func() error { order = append(order, "c"); return nil })

	err := c.Trigger(DataChanged)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "data_changed handler b: boom")
	assert.Equal(t, []string{"a", "b", "c"}, order)
	assert.Equal(t, []Event{{Kind: NotifyEvent, Name: DataChanged}}, pub.events)

	assert.NoError(t, c.Trigger(ReloadData), "no handlers")
}

func TestController_Off(t *testing.T) {
	c := NewController(nil)
	calls := 0
	c.On(ReloadDomains, "bridge", func() error { calls++; return nil })
	c.On(ActiveProxyChanged, "bridge", func() error { calls++; return nil })

	c.Off("bridge")
	require.NoError(t, c.Trigger(ReloadDomains))
	require.NoError(t, c.Trigger(ActiveProxyChanged))
	assert.Equal(t, 0, calls)
}
