package hooks

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPreBuildPriorityOrder(t *testing.T) {
	bus := NewBus()
	var order []string

	bus.OnPreBuild("late", 10, func(ctx context.Context, p *PreBuildPayload) error {
		order = append(order, "late")
		return nil
	})
	bus.OnPreBuild("early", 1, func(ctx context.Context, p *PreBuildPayload) error {
		order = append(order, "early")
		return nil
	})
	bus.OnPreBuild("also-early", 1, func(ctx context.Context, p *PreBuildPayload) error {
		order = append(order, "also-early")
		return nil
	})

	require.NoError(t, bus.FirePreBuild(context.Background(), &PreBuildPayload{}))
	assert.Equal(t, []string{"also-early", "early", "late"}, order)
}

func TestPreBuildErrorStopsChain(t *testing.T) {
	bus := NewBus()
	called := false
	bus.OnPreBuild("fail", 0, func(ctx context.Context, p *PreBuildPayload) error {
		return errors.New("boom")
	})
	bus.OnPreBuild("never", 1, func(ctx context.Context, p *PreBuildPayload) error {
		called = true
		return nil
	})

	err := bus.FirePreBuild(context.Background(), &PreBuildPayload{})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "fail")
	assert.False(t, called)
}

func TestPostRenderThreadsHTML(t *testing.T) {
	bus := NewBus()
	bus.OnPostRender("append-a", 1, func(ctx context.Context, p *PostRenderPayload) ([]byte, error) {
		return append(p.HTML, 'a'), nil
	})
	bus.OnPostRender("append-b", 2, func(ctx context.Context, p *PostRenderPayload) ([]byte, error) {
		return append(p.HTML, 'b'), nil
	})
	bus.OnPostRender("noop", 3, func(ctx context.Context, p *PostRenderPayload) ([]byte, error) {
		return nil, nil
	})

	out, err := bus.FirePostRender(context.Background(), &PostRenderPayload{HTML: []byte("x")})
	require.NoError(t, err)
	assert.Equal(t, "xab", string(out))
}

func TestPostBuildRunsAllDespiteError(t *testing.T) {
	bus := NewBus()
	var ran []string
	bus.OnPostBuild("first", 1, func(ctx context.Context, p *PostBuildPayload) error {
		ran = append(ran, "first")
		return errors.New("boom")
	})
	bus.OnPostBuild("second", 2, func(ctx context.Context, p *PostBuildPayload) error {
		ran = append(ran, "second")
		return nil
	})

	err := bus.FirePostBuild(context.Background(), &PostBuildPayload{})
	assert.Error(t, err)
	assert.Equal(t, []string{"first", "second"}, ran)
}

type lifecycleProbe struct {
	inited int
	closed int
	fail   bool
}

func (l *lifecycleProbe) Init() error {
	l.inited++
	if l.fail {
		return errors.New("init failed")
	}
	return nil
}

func (l *lifecycleProbe) Close() error {
	l.closed++
	return nil
}

func TestLifecycle(t *testing.T) {
	bus := NewBus()
	probe := &lifecycleProbe{}
	bus.AddLifecycle(probe)

	require.NoError(t, bus.Init())
	require.NoError(t, bus.Init()) // idempotent
	assert.Equal(t, 1, probe.inited)

	require.NoError(t, bus.Close())
	assert.Equal(t, 1, probe.closed)
}

func TestLifecycleInitFailure(t *testing.T) {
	bus := NewBus()
	bus.AddLifecycle(&lifecycleProbe{fail: true})
	assert.Error(t, bus.Init())
}
