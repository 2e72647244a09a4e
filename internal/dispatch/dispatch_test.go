package dispatch

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gridswitch/internal/smartplug"
)

// behaviour describes how fakeSwitcher answers one call for an address.
type behaviour struct {
	delay time.Duration
	err   error
	hang  bool
}

// fakeSwitcher answers per address; successive calls for the same address
// take successive behaviours (the last one repeats).
type fakeSwitcher struct {
	mu      sync.Mutex
	plan    map[string][]behaviour
	calls   map[string]int
	gotOn   []bool
	release chan struct{}
}

func newFakeSwitcher(plan map[string][]behaviour) *fakeSwitcher {
	return &fakeSwitcher{
		plan:    plan,
		calls:   make(map[string]int),
		release: make(chan struct{}),
	}
}

func (f *fakeSwitcher) SetStatus(_ context.Context, on bool, address string) (smartplug.Response, error) {
	f.mu.Lock()
	steps := f.plan[address]
	n := f.calls[address]
	f.calls[address]++
	f.gotOn = append(f.gotOn, on)
	f.mu.Unlock()

	var b behaviour
	if len(steps) > 0 {
		b = steps[min(n, len(steps)-1)]
	}

	if b.hang {
		<-f.release
		return nil, errors.New("released")
	}
	if b.delay > 0 {
		time.Sleep(b.delay)
	}
	if b.err != nil {
		return nil, b.err
	}
	return smartplug.Response{"system": map[string]any{}}, nil
}

func (f *fakeSwitcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.calls {
		total += n
	}
	return total
}

func TestDispatch_AllSucceed(t *testing.T) {
	sw := newFakeSwitcher(nil)
	d := New(sw, time.Second)

	out := d.Dispatch(context.Background(), true, []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"})

	if len(out.Successful) != 3 || len(out.Failed) != 0 {
		t.Fatalf("Dispatch() = %d ok / %d failed, want 3 / 0", len(out.Successful), len(out.Failed))
	}
	want := []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"}
	if got := out.SuccessfulAddresses(); !reflect.DeepEqual(got, want) {
		t.Errorf("SuccessfulAddresses() = %v, want %v", got, want)
	}
	for _, on := range sw.gotOn {
		if !on {
			t.Error("SetStatus called with on = false, want true")
		}
	}
}

func TestDispatch_SharedDeadline(t *testing.T) {
	sw := newFakeSwitcher(map[string][]behaviour{
		"10.0.0.1": {{delay: 10 * time.Millisecond}},
		"10.0.0.2": {{delay: 20 * time.Millisecond}},
		"10.0.0.3": {{hang: true}},
	})
	defer close(sw.release)

	timeout := 150 * time.Millisecond
	d := New(sw, timeout)

	start := time.Now()
	out := d.Dispatch(context.Background(), false, []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"})
	elapsed := time.Since(start)

	if len(out.Successful) != 2 {
		t.Errorf("len(Successful) = %d, want 2", len(out.Successful))
	}
	if len(out.Failed) != 1 {
		t.Fatalf("len(Failed) = %d, want 1", len(out.Failed))
	}
	if got := out.Failed["10.0.0.3"]; got != TimeoutReason {
		t.Errorf("Failed[10.0.0.3] = %q, want %q", got, TimeoutReason)
	}
	if !reflect.DeepEqual(out.TimedOut(), []string{"10.0.0.3"}) {
		t.Errorf("TimedOut() = %v, want [10.0.0.3]", out.TimedOut())
	}

	if elapsed < timeout {
		t.Errorf("Dispatch() returned after %v, before the %v deadline", elapsed, timeout)
	}
	if elapsed > timeout+time.Second {
		t.Errorf("Dispatch() returned after %v, want shortly after %v", elapsed, timeout)
	}
}

func TestDispatch_DeadlineIsPerBatch(t *testing.T) {
	// Every target hangs; all of them settle at the one batch deadline.
	plan := map[string][]behaviour{}
	targets := []string{}
	for _, addr := range []string{"a", "b", "c", "d", "e"} {
		plan[addr] = []behaviour{{hang: true}}
		targets = append(targets, addr)
	}
	sw := newFakeSwitcher(plan)
	defer close(sw.release)

	timeout := 50 * time.Millisecond
	start := time.Now()
	out := New(sw, timeout).Dispatch(context.Background(), true, targets)

	if elapsed := time.Since(start); elapsed > timeout+time.Second {
		t.Errorf("Dispatch() took %v, want about %v", elapsed, timeout)
	}
	if len(out.Failed) != len(targets) {
		t.Errorf("len(Failed) = %d, want %d", len(out.Failed), len(targets))
	}
}

func TestDispatch_DeviceErrors(t *testing.T) {
	sw := newFakeSwitcher(map[string][]behaviour{
		"10.0.0.1": {{err: smartplug.ErrDeviceUnreachable}},
		"10.0.0.2": {{err: smartplug.ErrNoResponse}},
	})
	out := New(sw, time.Second).Dispatch(context.Background(), true, []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"})

	if got := out.Failed["10.0.0.1"]; got != smartplug.ErrDeviceUnreachable.Error() {
		t.Errorf("Failed[10.0.0.1] = %q, want %q", got, smartplug.ErrDeviceUnreachable.Error())
	}
	if got := out.Failed["10.0.0.2"]; got != smartplug.ErrNoResponse.Error() {
		t.Errorf("Failed[10.0.0.2] = %q, want %q", got, smartplug.ErrNoResponse.Error())
	}
	if !out.Successful["10.0.0.3"] {
		t.Error("Successful[10.0.0.3] = false, want true")
	}
	if len(out.TimedOut()) != 0 {
		t.Errorf("TimedOut() = %v, want none", out.TimedOut())
	}
}

func TestDispatch_DuplicateTargets(t *testing.T) {
	t.Run("dispatched once per occurrence", func(t *testing.T) {
		sw := newFakeSwitcher(nil)
		out := New(sw, time.Second).Dispatch(context.Background(), true, []string{"10.0.0.1", "10.0.0.1"})

		if sw.callCount() != 2 {
			t.Errorf("SetStatus calls = %d, want 2", sw.callCount())
		}
		if !reflect.DeepEqual(out.SuccessfulAddresses(), []string{"10.0.0.1"}) {
			t.Errorf("SuccessfulAddresses() = %v, want [10.0.0.1]", out.SuccessfulAddresses())
		}
	})

	t.Run("first outcome wins", func(t *testing.T) {
		sw := newFakeSwitcher(map[string][]behaviour{
			"10.0.0.1": {
				{err: errors.New("busy")},
				{delay: 30 * time.Millisecond},
			},
		})
		out := New(sw, time.Second).Dispatch(context.Background(), true, []string{"10.0.0.1", "10.0.0.1"})

		if out.Failed["10.0.0.1"] != "busy" {
			t.Errorf("Failed[10.0.0.1] = %q, want busy", out.Failed["10.0.0.1"])
		}
		if out.Successful["10.0.0.1"] {
			t.Error("address recorded as both failed and successful")
		}
	})
}

func TestDispatch_NoTargets(t *testing.T) {
	sw := newFakeSwitcher(nil)
	out := New(sw, time.Second).Dispatch(context.Background(), true, nil)

	if len(out.Successful) != 0 || len(out.Failed) != 0 {
		t.Errorf("Dispatch(nil) = %+v, want empty outcome", out)
	}
	if sw.callCount() != 0 {
		t.Errorf("SetStatus calls = %d, want 0", sw.callCount())
	}
	if out.SuccessfulAddresses() == nil {
		t.Error("SuccessfulAddresses() = nil, want empty slice")
	}
}

func TestDispatch_ParentCancelled(t *testing.T) {
	sw := newFakeSwitcher(map[string][]behaviour{"10.0.0.1": {{hang: true}}})
	defer close(sw.release)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	out := New(sw, 10*time.Second).Dispatch(ctx, true, []string{"10.0.0.1"})

	if time.Since(start) > 5*time.Second {
		t.Fatal("Dispatch() did not return on parent cancellation")
	}
	if got := out.Failed["10.0.0.1"]; got != context.Canceled.Error() {
		t.Errorf("Failed[10.0.0.1] = %q, want %q", got, context.Canceled.Error())
	}
}

// ctxSwitcher hands the context of every call to the test and holds the
// call until release is closed.
type ctxSwitcher struct {
	got     chan context.Context
	release chan struct{}
}

func (c *ctxSwitcher) SetStatus(ctx context.Context, _ bool, _ string) (smartplug.Response, error) {
	c.got <- ctx
	<-c.release
	return nil, errors.New("released")
}

func TestDispatch_AbandonsWithoutCancelling(t *testing.T) {
	sw := &ctxSwitcher{got: make(chan context.Context, 1), release: make(chan struct{})}
	defer close(sw.release)

	out := New(sw, 30*time.Millisecond).Dispatch(context.Background(), true, []string{"10.0.0.1"})
	if got := out.Failed["10.0.0.1"]; got != TimeoutReason {
		t.Fatalf("Failed[10.0.0.1] = %q, want %q", got, TimeoutReason)
	}

	workCtx := <-sw.got
	if err := workCtx.Err(); err != nil {
		t.Errorf("call context after deadline: err = %v, want still live", err)
	}
}

func TestDispatch_ConcurrentCalls(t *testing.T) {
	sw := newFakeSwitcher(nil)
	d := New(sw, time.Second)

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out := d.Dispatch(context.Background(), true, []string{"a", "b", "c"})
			if len(out.Successful) != 3 {
				t.Errorf("len(Successful) = %d, want 3", len(out.Successful))
			}
		}()
	}
	wg.Wait()
}
