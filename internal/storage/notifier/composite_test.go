package notifier

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type fakeNotifier struct {
	recv  bool
	send  bool
	ch    chan *ReloadEvent
	err   error
	sends int
}

func (f *fakeNotifier) Watch(ctx context.Context) (<-chan *ReloadEvent, error) {
	if !f.recv {
		return nil, errors.New("not receiver")
	}
	if f.ch == nil {
		f.ch = make(chan *ReloadEvent, 1)
	}
	out := f.ch
	go func() {
		<-ctx.Done()
		close(out)
	}()
	return out, nil
}

func (f *fakeNotifier) NotifyUpdate(_ context.Context, _ *ReloadEvent) error {
	if !f.send {
		return errors.New("not sender")
	}
	f.sends++
	return f.err
}

func (f *fakeNotifier) CanReceive() bool { return f.recv }
func (f *fakeNotifier) CanSend() bool    { return f.send }

func TestCompositeNotifier_CanSendReceive(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	comp := NewCompositeNotifier(ctx, zap.NewNop(), &fakeNotifier{recv: true}, &fakeNotifier{send: true})
	assert.True(t, comp.CanReceive())
	assert.True(t, comp.CanSend())

	none := NewCompositeNotifier(ctx, zap.NewNop(), &fakeNotifier{})
	assert.False(t, none.CanReceive())
	assert.False(t, none.CanSend())
}

func TestCompositeNotifier_WatchForwards(t *testing.T) {
	n1 := &fakeNotifier{recv: true, ch: make(chan *ReloadEvent, 1)}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	comp := NewCompositeNotifier(ctx, zap.NewNop(), n1)
	ch, err := comp.Watch(ctx)
	assert.NoError(t, err)

	n1.ch <- &ReloadEvent{Source: "fake"}
	select {
	case got := <-ch:
		if assert.NotNil(t, got) {
			assert.Equal(t, "fake", got.Source)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for forwarded notification")
	}
}

func TestCompositeNotifier_NotifyUpdate(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ok := &fakeNotifier{send: true}
	failing := &fakeNotifier{send: true, err: errors.New("boom")}
	receiver := &fakeNotifier{recv: true}
	comp := NewCompositeNotifier(ctx, zap.NewNop(), ok, failing, receiver)

	err := comp.NotifyUpdate(ctx, &ReloadEvent{})
	assert.EqualError(t, err, "boom")
	assert.Equal(t, 1, ok.sends)
	assert.Equal(t, 1, failing.sends)
	assert.Equal(t, 0, receiver.sends)
}
