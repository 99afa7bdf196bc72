package rpc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testMainNS = NewNamespace(SideMain)
	testExtNS  = NewNamespace(SideExtension)

	testGreeter = testMainNS.Declare("TestGreeter",
		Request("$greet"),
		Request("$fail"),
		Request("$block"),
		Request("$panic"),
		Request("$count"),
		Event("$record"),
	)
	testMissing = testMainNS.Declare("TestMissing", Request("$anything"))
	testEcho    = testExtNS.Declare("TestEcho", Request("$echo"))
)

type greeter struct {
	mu       sync.Mutex
	recorded []int
	blocked  chan struct{}
	canceled chan struct{}
}

func (g *greeter) methods() Methods {
	return Methods{
		"$greet": Func2(func(_ context.Context, name string, times int) (string, error) {
			return fmt.Sprintf("hello %s x%d", name, times), nil
		}),
		"$fail": Action0(func(context.Context) error {
			return fmt.Errorf("%w: no such thing", ErrNotFound)
		}),
		"$block": Action0(func(ctx context.Context) error {
			close(g.blocked)
			<-ctx.Done()
			close(g.canceled)
			return ctx.Err()
		}),
		"$panic": Action0(func(context.Context) error {
			panic("boom")
		}),
		"$count": Func0(func(context.Context) (int, error) {
			return len(g.snapshot()), nil
		}),
		"$record": Action1(func(_ context.Context, n int) error {
			g.mu.Lock()
			defer g.mu.Unlock()
			g.recorded = append(g.recorded, n)
			return nil
		}),
	}
}

func (g *greeter) snapshot() []int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]int(nil), g.recorded...)
}

func setupPair(t *testing.T) (*Protocol, *Protocol, *greeter, prometheus.Gatherer) {
	t.Helper()
	reg := prometheus.NewRegistry()
	a, b := net.Pipe()

	mainSide := New(SideMain, WithRegisterer(reg))
	extSide := New(SideExtension, WithRegisterer(reg))

	g := &greeter{blocked: make(chan struct{}), canceled: make(chan struct{})}
	Set(mainSide, testGreeter, g, g.methods())

	mainSide.Connect(NewStream(a))
	extSide.Connect(NewStream(b))
	t.Cleanup(func() {
		_ = extSide.Close()
		_ = mainSide.Close()
	})
	return mainSide, extSide, g, reg
}

func TestCallRoundTrip(t *testing.T) {
	_, ext, _, _ := setupPair(t)

	var got string
	err := ext.GetProxy(testGreeter).Call(context.Background(), "$greet", &got, "ext", 3)
	require.NoError(t, err)
	assert.Equal(t, "hello ext x3", got)
}

func TestCallMissingArgumentsDecodeAsZero(t *testing.T) {
	_, ext, _, _ := setupPair(t)

	var got string
	err := ext.GetProxy(testGreeter).Call(context.Background(), "$greet", &got, "ext")
	require.NoError(t, err)
	assert.Equal(t, "hello ext x0", got)
}

func TestCallInvalidArguments(t *testing.T) {
	_, ext, _, _ := setupPair(t)

	err := ext.GetProxy(testGreeter).Call(context.Background(), "$greet", nil, 42, "not a number")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidArguments))
}

func TestRemoteErrorKeepsCode(t *testing.T) {
	_, ext, _, _ := setupPair(t)

	err := ext.GetProxy(testGreeter).Call(context.Background(), "$fail", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))

	var remote *RemoteError
	require.True(t, errors.As(err, &remote))
	assert.Equal(t, "TestGreeter", remote.Identifier)
	assert.Equal(t, "$fail", remote.Method)
	assert.Contains(t, remote.Message, "no such thing")
}

func TestUnknownIdentifier(t *testing.T) {
	_, ext, _, _ := setupPair(t)

	err := ext.GetProxy(testMissing).Call(context.Background(), "$anything", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownIdentifier))
}

func TestUndeclaredMethodIsRejectedLocally(t *testing.T) {
	_, ext, _, _ := setupPair(t)

	err := ext.GetProxy(testGreeter).Call(context.Background(), "$nope", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownMethod))

	err = ext.GetProxy(testGreeter).Notify(context.Background(), "$nope")
	assert.True(t, errors.Is(err, ErrUnknownMethod))

	err = ext.GetProxy(testGreeter).Notify(context.Background(), "$greet", "x", 1)
	assert.ErrorIs(t, err, ErrNotEvent)
}

func TestHandlerPanicBecomesError(t *testing.T) {
	_, ext, _, _ := setupPair(t)

	err := ext.GetProxy(testGreeter).Call(context.Background(), "$panic", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrHandlerFailed))
	assert.Contains(t, err.Error(), "boom")

	// The connection survives the panic.
	var got string
	require.NoError(t, ext.GetProxy(testGreeter).Call(context.Background(), "$greet", &got, "again", 1))
	assert.Equal(t, "hello again x1", got)
}

func TestEventsRunInOrder(t *testing.T) {
	_, ext, g, _ := setupPair(t)

	proxy := ext.GetProxy(testGreeter)
	want := make([]int, 200)
	for i := range want {
		want[i] = i
		require.NoError(t, proxy.Notify(context.Background(), "$record", i))
	}

	require.Eventually(t, func() bool { return len(g.snapshot()) == len(want) }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, want, g.snapshot())
}

func TestRequestObservesEarlierEvents(t *testing.T) {
	_, ext, _, _ := setupPair(t)

	proxy := ext.GetProxy(testGreeter)
	for i := 0; i < 50; i++ {
		require.NoError(t, proxy.Notify(context.Background(), "$record", i))
	}

	var count int
	require.NoError(t, proxy.Call(context.Background(), "$count", &count))
	assert.Equal(t, 50, count)
}

func TestCancellationReachesHandler(t *testing.T) {
	_, ext, g, _ := setupPair(t)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		errc <- ext.GetProxy(testGreeter).Call(ctx, "$block", nil)
	}()

	<-g.blocked
	cancel()

	err := <-errc
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCanceled))
	assert.True(t, errors.Is(err, context.Canceled))

	select {
	case <-g.canceled:
	case <-time.After(2 * time.Second):
		t.Fatal("handler context was not canceled")
	}
}

func TestSetPanics(t *testing.T) {
	p := New(SideMain)
	g := &greeter{}

	t.Run("wrong side", func(t *testing.T) {
		assert.Panics(t, func() { Set(p, testEcho, g, Methods{}) })
	})

	t.Run("missing method", func(t *testing.T) {
		methods := g.methods()
		delete(methods, "$record")
		assert.Panics(t, func() { Set(p, testGreeter, g, methods) })
	})

	t.Run("undeclared method", func(t *testing.T) {
		methods := g.methods()
		methods["$extra"] = Action0(func(context.Context) error { return nil })
		assert.Panics(t, func() { Set(p, testGreeter, g, methods) })
	})

	t.Run("duplicate", func(t *testing.T) {
		assert.NotPanics(t, func() { Set(p, testGreeter, g, g.methods()) })
		assert.True(t, p.IsSet(testGreeter))
		assert.Panics(t, func() { Set(p, testGreeter, g, g.methods()) })
	})
}

func TestGetProxyOfLocalIdentifierPanics(t *testing.T) {
	p := New(SideMain)
	assert.Panics(t, func() { p.GetProxy(testGreeter) })
}

func TestProxyBeforeConnect(t *testing.T) {
	p := New(SideExtension)
	err := p.GetProxy(testGreeter).Call(context.Background(), "$greet", nil, "x", 1)
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestMetricsCountCalls(t *testing.T) {
	mainSide, ext, _, _ := setupPair(t)

	proxy := ext.GetProxy(testGreeter)
	require.NoError(t, proxy.Call(context.Background(), "$greet", nil, "a", 1))
	require.NoError(t, proxy.Call(context.Background(), "$greet", nil, "b", 2))
	require.Error(t, proxy.Call(context.Background(), "$fail", nil))

	assert.Equal(t, 2.0, testutil.ToFloat64(ext.metrics.calls.WithLabelValues("extension", directionOutbound, "TestGreeter", "$greet", outcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(ext.metrics.calls.WithLabelValues("extension", directionOutbound, "TestGreeter", "$fail", outcomeError)))

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(mainSide.metrics.calls.WithLabelValues("main", directionInbound, "TestGreeter", "$greet", outcomeOK)) == 2
	}, time.Second, 5*time.Millisecond)
}

func TestSplitWireMethod(t *testing.T) {
	tests := []struct {
		wire       string
		identifier string
		method     string
		ok         bool
	}{
		{"ExtHostCommands.$executeContributedCommand", "ExtHostCommands", "$executeContributedCommand", true},
		{"a.b.$c", "a.b", "$c", true},
		{"$c", "", "", false},
		{"NoMethod.plain", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.wire, func(t *testing.T) {
			identifier, method, ok := splitWireMethod(tt.wire)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.identifier, identifier)
			assert.Equal(t, tt.method, method)
		})
	}
}
