package command

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gridswitch/internal/directory"
	"github.com/nerrad567/gridswitch/internal/dispatch"
	"github.com/nerrad567/gridswitch/internal/grid"
)

// EventCompleted is the broadcast channel for finished commands.
const EventCompleted = "command.completed"

// Outcome result labels used for metrics and time-series tags.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
	ResultTimeout = "timeout"
)

// Snapshotter returns the current directory snapshot.
// directory.Directory satisfies it.
type Snapshotter interface {
	Snapshot() directory.Snapshot
}

// Dispatcher fans a command out to its targets.
// dispatch.Dispatcher satisfies it.
type Dispatcher interface {
	Dispatch(ctx context.Context, on bool, targets []string) dispatch.Outcome
}

// Publisher sends a response to the bus. mqtt.Client satisfies it.
type Publisher interface {
	PublishJSON(topic string, v any) error
}

// Recorder stores per-target outcomes. influxdb.Client satisfies it.
type Recorder interface {
	WriteTargetOutcome(commandID, address string, on bool, result, reason string, at time.Time)
}

// Broadcaster pushes completed commands to live watchers. The API hub
// satisfies it.
type Broadcaster interface {
	BroadcastCompleted(ev CompletedEvent)
}

// Logger defines the logging interface used by the Service.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Result describes one handled command.
type Result struct {
	CommandID string
	Topic     string
	On        bool
	Targets   []string
	Outcome   dispatch.Outcome
}

// CompletedEvent is broadcast on EventCompleted after every dispatch.
type CompletedEvent struct {
	CommandID  string            `json:"command_id"`
	Topic      string            `json:"topic"`
	Status     bool              `json:"status"`
	Targets    int               `json:"targets"`
	Successful []string          `json:"successful"`
	Failed     map[string]string `json:"failed"`
	ElapsedMS  int64             `json:"elapsed_ms"`
}

// Service handles command messages end to end.
//
// Thread Safety: HandleMessage may be called concurrently. The optional
// collaborators are set once during startup, before messages flow.
type Service struct {
	resolver   *grid.Resolver
	directory  Snapshotter
	dispatcher Dispatcher

	inflight sync.WaitGroup

	mu          sync.RWMutex
	publisher   Publisher
	recorder    Recorder
	broadcaster Broadcaster
	logger      Logger

	newID func() string
	now   func() time.Time
}

// NewService creates a Service from its three required collaborators.
func NewService(resolver *grid.Resolver, dir Snapshotter, dispatcher Dispatcher) *Service {
	return &Service{
		resolver:   resolver,
		directory:  dir,
		dispatcher: dispatcher,
		logger:     noopLogger{},
		newID:      uuid.NewString,
		now:        time.Now,
	}
}

// SetPublisher sets where responses are sent.
func (s *Service) SetPublisher(p Publisher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.publisher = p
}

// SetRecorder sets the outcome recorder. nil disables recording.
func (s *Service) SetRecorder(r Recorder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recorder = r
}

// SetBroadcaster sets the live event sink. nil disables broadcasting.
func (s *Service) SetBroadcaster(b Broadcaster) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.broadcaster = b
}

// SetLogger sets the logger for the service.
func (s *Service) SetLogger(logger Logger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logger = logger
}

func (s *Service) collaborators() (Publisher, Recorder, Broadcaster, Logger) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.publisher, s.recorder, s.broadcaster, s.logger
}

// HandleMessage resolves, dispatches and reports one bus message.
//
// Parameters:
//   - ctx: Parent context for the dispatch; cancelling it fails unfinished
//     targets early
//   - topic: The topic the message arrived on
//   - payload: The raw message body
//
// Returns:
//   - Result: The command ID, resolved targets and per-target outcome
//   - error: A grid parse error when the message did not resolve; nothing
//     was dispatched in that case
func (s *Service) HandleMessage(ctx context.Context, topic string, payload []byte) (Result, error) {
	publisher, recorder, broadcaster, logger := s.collaborators()

	env := grid.PeekEnvelope(payload)
	commandID := env.CommandID
	if commandID == "" {
		commandID = s.newID()
	}
	res := Result{CommandID: commandID, Topic: topic}

	logger.Info("command received", "command_id", commandID, "topic", topic)

	targets, on, err := s.resolver.Resolve(topic, payload, s.directory.Snapshot())
	if err != nil {
		metricMessagesTotal.WithLabelValues("rejected").Inc()
		logger.Warn("command rejected", "command_id", commandID, "topic", topic, "error", err)
		if env.ResponseTopic != "" {
			s.respond(publisher, logger, env.ResponseTopic, NewErrorResponse(commandID, err))
		}
		return res, err
	}
	res.On = on
	res.Targets = targets
	metricResolvedTargets.Observe(float64(len(targets)))

	logger.Debug("command resolved", "command_id", commandID, "targets", targets, "status", on)

	outcome := s.dispatcher.Dispatch(ctx, on, targets)
	res.Outcome = outcome
	metricMessagesTotal.WithLabelValues("dispatched").Inc()

	successful := outcome.SuccessfulAddresses()
	logger.Info("command completed",
		"command_id", commandID,
		"targets", len(targets),
		"successful", len(successful),
		"failed", len(outcome.Failed),
		"elapsed", outcome.Elapsed,
	)

	if recorder != nil {
		s.record(recorder, commandID, on, outcome)
	}
	if broadcaster != nil {
		broadcaster.BroadcastCompleted(CompletedEvent{
			CommandID:  commandID,
			Topic:      topic,
			Status:     on,
			Targets:    len(targets),
			Successful: successful,
			Failed:     outcome.Failed,
			ElapsedMS:  outcome.Elapsed.Milliseconds(),
		})
	}
	if env.ResponseTopic != "" {
		s.respond(publisher, logger, env.ResponseTopic, NewOutcomeResponse(commandID, outcome))
	}

	return res, nil
}

// Handler adapts HandleMessage to the bus subscription callback.
//
// Each message is handled on its own goroutine under ctx and the callback
// returns at once; a command's latency is its own batch deadline, not the
// sum of the ones queued ahead of it. Rejections are
// logged and answered by HandleMessage itself, so the callback always
// returns nil. Wait blocks until the accepted messages are done.
func (s *Service) Handler(ctx context.Context) func(topic string, payload []byte) error {
	return func(topic string, payload []byte) error {
		s.inflight.Go(func() {
			_, _ = s.HandleMessage(ctx, topic, payload)
		})
		return nil
	}
}

// Wait blocks until every message accepted by Handler has been handled.
func (s *Service) Wait() {
	s.inflight.Wait()
}

func (s *Service) respond(publisher Publisher, logger Logger, topic string, resp Response) {
	if publisher == nil {
		metricResponsesTotal.WithLabelValues("failure").Inc()
		logger.Error("response dropped", "command_id", resp.CommandID, "topic", topic, "error", ErrNoPublisher)
		return
	}
	if err := publisher.PublishJSON(topic, resp); err != nil {
		metricResponsesTotal.WithLabelValues("failure").Inc()
		logger.Error("publishing response failed", "command_id", resp.CommandID, "topic", topic, "error", err)
		return
	}
	metricResponsesTotal.WithLabelValues("success").Inc()
}

func (s *Service) record(recorder Recorder, commandID string, on bool, outcome dispatch.Outcome) {
	at := s.now()
	seen := make(map[string]bool, len(outcome.Targets))
	for _, addr := range outcome.Targets {
		if seen[addr] {
			continue
		}
		seen[addr] = true

		result, reason := ClassifyTarget(outcome, addr)
		recorder.WriteTargetOutcome(commandID, addr, on, result, reason, at)
	}
}

// ClassifyTarget returns the result label and failure reason of one
// address in outcome.
func ClassifyTarget(outcome dispatch.Outcome, address string) (result, reason string) {
	if outcome.Successful[address] {
		return ResultSuccess, ""
	}
	reason = outcome.Failed[address]
	if reason == dispatch.TimeoutReason {
		return ResultTimeout, reason
	}
	return ResultFailure, reason
}
