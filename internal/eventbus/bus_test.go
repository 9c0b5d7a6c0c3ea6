package eventbus

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"

	"github.com/matthewbaird/pvbridge/internal/uistate"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recorder struct {
	mu     sync.Mutex
	events []uistate.Event
}

func (r *recorder) HandleEvent(_ context.Context, evt uistate.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
	return nil
}

func (r *recorder) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.events {
		out = append(out, e.Name)
	}
	return out
}

func TestBus_DispatchInOrder(t *testing.T) {
	b := New(logr.Discard(), 16)
	a, c := &recorder{}, &recorder{}
	b.Subscribe("a", a)
	b.Subscribe("c", c)
	b.Subscribe("failing", HandlerFunc(func(context.Context, uistate.Event) error {
		return errors.New("ignored")
	}))
	b.Start(context.Background())

	b.Publish(uistate.Event{Kind: uistate.NotifyEvent, Name: "one"})
	b.Publish(uistate.Event{Kind: uistate.StateEvent, Name: "two", Value: 2})
	b.Stop()

	assert.Equal(t, []string{"one", "two"}, a.names())
	assert.Equal(t, []string{"one", "two"}, c.names())
}

func TestBus_Unsubscribe(t *testing.T) {
	b := New(logr.Discard(), 16)
	a := &recorder{}
	b.Subscribe("a", a)
	b.Unsubscribe("a")
	b.Start(context.Background())

	b.Publish(uistate.Event{Name: "one"})
	b.Stop()
	assert.Empty(t, a.names())
}

func TestBus_PublishAfterStop(t *testing.T) {
	b := New(logr.Discard(), 1)
	b.Start(context.Background())
	b.Stop()
	b.Stop()

	assert.NotPanics(t, func() { b.Publish(uistate.Event{Name: "late"}) })
}

func TestBus_DropsWhenFull(t *testing.T) {
	b := New(logr.Discard(), 1)
	a := &recorder{}
	b.Subscribe("a", a)

	b.Publish(uistate.Event{Name: "kept"})
	b.Publish(uistate.Event{Name: "dropped"})

	b.Start(context.Background())
	b.Stop()
	assert.Equal(t, []string{"kept"}, a.names())
}

func TestBus_StopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	b := New(logr.Discard(), 4)
	a := &recorder{}
	b.Subscribe("a", a)
	b.Publish(uistate.Event{Name: "queued"})
	b.Start(ctx)
	cancel()
	<-b.done

	assert.Equal(t, []string{"queued"}, a.names())
}
