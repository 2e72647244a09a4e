package dispatch

import (
	"context"
	"time"

	"github.com/nerrad567/gridswitch/internal/smartplug"
)

// TimeoutReason is the failure reason of a target that had no result when
// the batch deadline passed.
const TimeoutReason = "Timeout"

// Switcher switches one plug's relay. smartplug.Client satisfies it.
type Switcher interface {
	SetStatus(ctx context.Context, on bool, address string) (smartplug.Response, error)
}

// Logger defines the logging interface used by the Dispatcher.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Outcome is the aggregated result of one dispatch. Every dispatched
// address is in exactly one of Successful and Failed.
type Outcome struct {
	Targets    []string
	Successful map[string]bool
	Failed     map[string]string
	Elapsed    time.Duration
}

// SuccessfulAddresses returns the successful addresses in target order,
// each once.
func (o Outcome) SuccessfulAddresses() []string {
	out := make([]string, 0, len(o.Successful))
	seen := make(map[string]bool, len(o.Successful))
	for _, addr := range o.Targets {
		if o.Successful[addr] && !seen[addr] {
			seen[addr] = true
			out = append(out, addr)
		}
	}
	return out
}

// TimedOut returns the addresses that failed with TimeoutReason, in target
// order, each once.
func (o Outcome) TimedOut() []string {
	var out []string
	seen := make(map[string]bool)
	for _, addr := range o.Targets {
		if o.Failed[addr] == TimeoutReason && !seen[addr] {
			seen[addr] = true
			out = append(out, addr)
		}
	}
	return out
}

// Dispatcher sends relay commands to many plugs under one deadline.
// It is safe for concurrent use; each Dispatch call is independent.
type Dispatcher struct {
	switcher Switcher
	timeout  time.Duration
	logger   Logger
}

// New creates a dispatcher. timeout is the deadline shared by all targets
// of one Dispatch call.
func New(switcher Switcher, timeout time.Duration) *Dispatcher {
	return &Dispatcher{
		switcher: switcher,
		timeout:  timeout,
		logger:   noopLogger{},
	}
}

// SetLogger sets the logger for the dispatcher.
func (d *Dispatcher) SetLogger(logger Logger) {
	d.logger = logger
}

type result struct {
	address string
	err     error
}

// Dispatch switches every target on or off concurrently and waits until all
// have answered or the batch deadline passes, whichever comes first.
//
// When an address appears more than once it is dispatched once per
// occurrence and the first result to arrive is kept. If ctx is cancelled
// before the deadline, unfinished targets fail with the context error.
//
// Targets still outstanding at the deadline are abandoned, not cancelled:
// their calls run on under ctx until the device client's own dial and I/O
// timeouts end them, and their late results are discarded.
func (d *Dispatcher) Dispatch(ctx context.Context, on bool, targets []string) Outcome {
	start := time.Now()
	outcome := Outcome{
		Targets:    targets,
		Successful: make(map[string]bool),
		Failed:     make(map[string]string),
	}
	if len(targets) == 0 {
		return outcome
	}

	// Buffered so abandoned workers never block.
	results := make(chan result, len(targets))
	for _, addr := range targets {
		metricInflight.Inc()
		go func() {
			defer metricInflight.Dec()
			_, err := d.switcher.SetStatus(ctx, on, addr)
			results <- result{address: addr, err: err}
		}()
	}

	timer := time.NewTimer(d.timeout)
	defer timer.Stop()

	record := func(r result) {
		if outcome.Successful[r.address] {
			return
		}
		if _, done := outcome.Failed[r.address]; done {
			return
		}
		if r.err != nil {
			outcome.Failed[r.address] = r.err.Error()
			metricTargetsTotal.WithLabelValues("failure").Inc()
			d.logger.Debug("device command failed", "address", r.address, "error", r.err)
			return
		}
		outcome.Successful[r.address] = true
		metricTargetsTotal.WithLabelValues("success").Inc()
	}

	unresolved := ""
collect:
	for pending := len(targets); pending > 0; pending-- {
		select {
		case r := <-results:
			record(r)
		case <-timer.C:
			unresolved = TimeoutReason
			break collect
		case <-ctx.Done():
			unresolved = ctx.Err().Error()
			break collect
		}
	}

	if unresolved != "" {
		for _, addr := range targets {
			if _, ok := outcome.Failed[addr]; ok || outcome.Successful[addr] {
				continue
			}
			outcome.Failed[addr] = unresolved
			metricTargetsTotal.WithLabelValues("timeout").Inc()
		}
		d.logger.Warn("dispatch deadline reached with targets outstanding",
			"reason", unresolved,
			"targets", len(targets),
			"succeeded", len(outcome.Successful),
			"failed", len(outcome.Failed),
		)
	}

	outcome.Elapsed = time.Since(start)
	metricBatchDuration.Observe(outcome.Elapsed.Seconds())
	return outcome
}
