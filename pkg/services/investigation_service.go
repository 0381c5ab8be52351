// Package services implements the control plane's investigation lifecycle:
// creating worker jobs, watching them to a terminal state, multiplexing
// their event streams, and handling cancellation.
//
// The service holds no durable state. A crash-restart loses the in-memory
// registry and any live attachments, but orchestrator-hosted workers keep
// running and their event streams remain replayable from the
// orchestrator's log retention until the job TTL expires.
package services

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/4sgupta828/oats/pkg/config"
	"github.com/4sgupta828/oats/pkg/events"
	"github.com/4sgupta828/oats/pkg/models"
	"github.com/4sgupta828/oats/pkg/orchestrator"
)

// logDrainGrace is how long the watcher waits, after the job goes
// terminal, for the log follower to deliver trailing events (the finish
// event in particular) before deciding the terminal state.
const logDrainGrace = 5 * time.Second

// maxLogLineSize bounds one stdout event line when scanning worker logs.
const maxLogLineSize = 1 << 20

// MetricsHooks lets the API layer observe lifecycle transitions without
// the service importing the metrics registry. All fields are optional.
type MetricsHooks struct {
	InvestigationCreated  func()
	InvestigationTerminal func(state models.InvestigationState)
	TurnsUsed             func(turns int)
}

// InvestigationService owns every investigation this control-plane
// instance created. One watcher goroutine runs per live investigation;
// there is no shared mutable state between investigations beyond the
// registry map.
type InvestigationService struct {
	cfg   *config.ServerConfig
	orch  orchestrator.Orchestrator
	hub   *events.Hub
	hooks MetricsHooks

	mu             sync.RWMutex
	investigations map[string]*models.Investigation
	watchers       map[string]context.CancelFunc

	wg sync.WaitGroup
}

// NewInvestigationService wires the service.
func NewInvestigationService(cfg *config.ServerConfig, orch orchestrator.Orchestrator, hub *events.Hub, hooks MetricsHooks) *InvestigationService {
	return &InvestigationService{
		cfg:            cfg,
		orch:           orch,
		hub:            hub,
		hooks:          hooks,
		investigations: make(map[string]*models.Investigation),
		watchers:       make(map[string]context.CancelFunc),
	}
}

// Create allocates an investigation, schedules its worker job, and starts
// the lifecycle watcher. It returns the stored investigation in state
// running, or an error when the orchestrator rejected the job (the
// investigation is then recorded as failed).
func (s *InvestigationService) Create(ctx context.Context, goal, namespace string, turnBudget int) (*models.Investigation, error) {
	if goal == "" {
		return nil, ErrInvalidGoal
	}
	if namespace == "" {
		namespace = s.cfg.DefaultNamespace
	}
	if turnBudget <= 0 {
		turnBudget = config.DefaultTurnBudget
	}

	id := uuid.New().String()
	inv := &models.Investigation{
		ID:         id,
		Goal:       goal,
		Namespace:  namespace,
		TurnBudget: turnBudget,
		JobName:    "investigation-" + id[:8],
		State:      models.StatePending,
		CreatedAt:  time.Now().UTC(),
	}

	s.mu.Lock()
	s.investigations[id] = inv
	s.mu.Unlock()
	if s.hooks.InvestigationCreated != nil {
		s.hooks.InvestigationCreated()
	}

	spec := orchestrator.JobSpec{
		Name:           inv.JobName,
		Namespace:      namespace,
		Image:          s.cfg.WorkerImage,
		Env:            s.workerEnv(inv),
		SecretEnvFrom:  s.cfg.OracleSecretName,
		TTL:            s.cfg.JobTTL,
		ActiveDeadline: s.cfg.HardDeadline,
	}
	if err := s.orch.CreateJob(ctx, spec); err != nil {
		s.transition(id, models.StateFailed, fmt.Sprintf("orchestrator rejected job: %v", err))
		return nil, fmt.Errorf("failed to create worker job: %w", err)
	}

	s.transition(id, models.StateRunning, "")
	s.startWatcher(inv)

	slog.Info("investigation created",
		"investigation_id", id, "job_name", inv.JobName, "namespace", namespace)
	return s.snapshot(id), nil
}

// workerEnv assembles the worker's plain environment. Oracle credentials
// are NOT here — they come from the orchestrator-managed secret.
func (s *InvestigationService) workerEnv(inv *models.Investigation) map[string]string {
	env := map[string]string{
		"OATS_GOAL":      inv.Goal,
		"OATS_MAX_TURNS": strconv.Itoa(inv.TurnBudget),
	}
	llm := s.cfg.LLM
	if llm.Provider != "" {
		env["UFFLOW_LLM_PROVIDER"] = string(llm.Provider)
	}
	if llm.Model != "" {
		env["UFFLOW_LLM_MODEL"] = llm.Model
	}
	env["UFFLOW_TEMPERATURE"] = strconv.FormatFloat(float64(llm.Temperature), 'f', -1, 32)
	env["UFFLOW_MAX_TOKENS"] = strconv.Itoa(llm.MaxTokens)
	env["UFFLOW_PROMPT_VERSION"] = llm.PromptVersion
	if s.cfg.WorkerLogLevel != "" {
		env["UFFLOW_LOG_LEVEL"] = s.cfg.WorkerLogLevel
	}
	return env
}

// Get returns a snapshot of one investigation.
func (s *InvestigationService) Get(id string) (*models.Investigation, error) {
	inv := s.snapshot(id)
	if inv == nil {
		return nil, ErrInvestigationNotFound
	}
	return inv, nil
}

// List returns snapshots of all investigations, newest first.
func (s *InvestigationService) List() []*models.Investigation {
	s.mu.RLock()
	out := make([]*models.Investigation, 0, len(s.investigations))
	for _, inv := range s.investigations {
		cp := *inv
		out = append(out, &cp)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// Cancel requests cancellation. On a terminal investigation it is a
// no-op — the DELETE endpoint stays idempotent. Cancellation is
// best-effort: a tool execution in progress inside the worker may finish
// (and leave side effects) before process termination lands.
func (s *InvestigationService) Cancel(ctx context.Context, id string) error {
	s.mu.RLock()
	inv, ok := s.investigations[id]
	terminal := ok && inv.State.IsTerminal()
	namespace, jobName := "", ""
	if ok {
		namespace, jobName = inv.Namespace, inv.JobName
	}
	s.mu.RUnlock()

	if !ok {
		return ErrInvestigationNotFound
	}
	if terminal {
		return nil
	}

	if err := s.orch.DeleteJob(ctx, namespace, jobName); err != nil &&
		!errors.Is(err, orchestrator.ErrJobNotFound) {
		return fmt.Errorf("failed to delete worker job: %w", err)
	}

	s.transition(id, models.StateCancelled, "")
	s.stopWatcher(id)
	slog.Info("investigation cancelled", "investigation_id", id)
	return nil
}

// ReplayLogs returns the full parsed event sequence from the
// orchestrator's retained logs. Available until the job TTL reclaims the
// worker.
func (s *InvestigationService) ReplayLogs(ctx context.Context, id string) ([]events.Event, error) {
	s.mu.RLock()
	inv, ok := s.investigations[id]
	namespace, jobName := "", ""
	if ok {
		namespace, jobName = inv.Namespace, inv.JobName
	}
	s.mu.RUnlock()
	if !ok {
		return nil, ErrInvestigationNotFound
	}

	stream, err := s.orch.StreamLogs(ctx, namespace, jobName, false)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	var out []events.Event
	scanner := bufio.NewScanner(stream)
	scanner.Buffer(make([]byte, 64*1024), maxLogLineSize)
	for scanner.Scan() {
		if ev, ok := events.ParseLine(scanner.Bytes()); ok {
			out = append(out, ev)
		}
	}
	return out, scanner.Err()
}

// Hub exposes the event hub for the streaming endpoint.
func (s *InvestigationService) Hub() *events.Hub { return s.hub }

// Stop cancels all watchers and waits for them to exit. Workers are NOT
// stopped — they belong to the orchestrator, not this process.
func (s *InvestigationService) Stop() {
	s.mu.Lock()
	for id, cancel := range s.watchers {
		cancel()
		delete(s.watchers, id)
	}
	s.mu.Unlock()
	s.wg.Wait()
}

// snapshot returns a copy so callers never see concurrent mutation.
func (s *InvestigationService) snapshot(id string) *models.Investigation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inv, ok := s.investigations[id]
	if !ok {
		return nil
	}
	cp := *inv
	return &cp
}

// transition moves an investigation to a new state. Terminal states are
// immutable: a transition attempt on a terminal investigation is dropped.
func (s *InvestigationService) transition(id string, state models.InvestigationState, errMsg string) {
	s.mu.Lock()
	inv, ok := s.investigations[id]
	if !ok || inv.State.IsTerminal() {
		s.mu.Unlock()
		return
	}
	inv.State = state
	if errMsg != "" {
		inv.Error = errMsg
	}
	if state.IsTerminal() {
		now := time.Now().UTC()
		inv.TerminalAt = &now
	}
	s.mu.Unlock()

	s.hub.PublishLifecycle(id, string(state))
	if state.IsTerminal() && s.hooks.InvestigationTerminal != nil {
		s.hooks.InvestigationTerminal(state)
	}
	slog.Info("investigation state changed", "investigation_id", id, "state", state)
}

func (s *InvestigationService) markFinishObserved(id string) {
	s.mu.Lock()
	if inv, ok := s.investigations[id]; ok {
		inv.FinishObserved = true
	}
	s.mu.Unlock()
}

func (s *InvestigationService) finishObserved(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inv, ok := s.investigations[id]
	return ok && inv.FinishObserved
}

func (s *InvestigationService) startWatcher(inv *models.Investigation) {
	ctx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.watchers[inv.ID] = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.stopWatcher(inv.ID)
		s.watch(ctx, inv.ID, inv.Namespace, inv.JobName, inv.CreatedAt)
	}()
}

func (s *InvestigationService) stopWatcher(id string) {
	s.mu.Lock()
	if cancel, ok := s.watchers[id]; ok {
		cancel()
		delete(s.watchers, id)
	}
	s.mu.Unlock()
}

// watch is the per-investigation lifecycle handler: it follows the
// worker's log stream into the hub and polls job status until a terminal
// state or the hard deadline.
func (s *InvestigationService) watch(ctx context.Context, id, namespace, jobName string, createdAt time.Time) {
	log := slog.With("investigation_id", id, "job_name", jobName)

	logDone := make(chan struct{})
	go func() {
		defer close(logDone)
		s.followLogs(ctx, id, namespace, jobName)
	}()

	deadline := createdAt.Add(s.cfg.HardDeadline)
	ticker := time.NewTicker(s.cfg.StatusPollPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if time.Now().After(deadline) {
			log.Warn("investigation exceeded hard deadline")
			if err := s.orch.DeleteJob(ctx, namespace, jobName); err != nil &&
				!errors.Is(err, orchestrator.ErrJobNotFound) {
				log.Error("failed to delete timed-out job", "error", err)
			}
			s.transition(id, models.StateTimedOut,
				fmt.Sprintf("exceeded hard deadline of %s", s.cfg.HardDeadline))
			return
		}

		status, err := s.orch.GetJobStatus(ctx, namespace, jobName)
		if err != nil {
			if errors.Is(err, orchestrator.ErrJobNotFound) {
				// Cancelled via DeleteJob, or TTL-reclaimed under us.
				s.transition(id, models.StateFailed, "worker job disappeared")
				return
			}
			log.Warn("job status poll failed", "error", err)
			continue
		}

		switch status.Phase {
		case orchestrator.JobSucceeded:
			s.drainLogs(logDone)
			if s.finishObserved(id) {
				s.transition(id, models.StateSucceeded, "")
			} else {
				s.transition(id, models.StateFailed, "worker exited 0 without a finish event")
			}
			return
		case orchestrator.JobFailed:
			s.drainLogs(logDone)
			msg := status.Message
			if msg == "" {
				msg = "worker exited non-zero"
			}
			if status.ExitCode != nil {
				msg = fmt.Sprintf("%s (exit code %d)", msg, *status.ExitCode)
			}
			s.transition(id, models.StateFailed, msg)
			return
		}
	}
}

// drainLogs gives the log follower a bounded window to deliver trailing
// events after the job terminated.
func (s *InvestigationService) drainLogs(logDone <-chan struct{}) {
	select {
	case <-logDone:
	case <-time.After(logDrainGrace):
	}
}

// followLogs attaches to the worker's log stream and forwards each
// recognized event line to the hub. Non-event lines are dropped; the
// finish event is additionally recorded for the terminal-state decision.
// Stream errors end the follow silently — replay via the logs endpoint
// remains available.
func (s *InvestigationService) followLogs(ctx context.Context, id, namespace, jobName string) {
	// The worker pod is rarely attachable immediately after job creation;
	// wait one poll period before the first attempt, then retry a few
	// times.
	var stream io.ReadCloser
	err := orchestrator.ErrJobNotFound
	for attempt := 0; err != nil && attempt < 6; attempt++ {
		select {
		case <-ctx.Done():
			return
		case <-time.After(s.cfg.StatusPollPeriod):
		}
		stream, err = s.orch.StreamLogs(ctx, namespace, jobName, true)
	}
	if err != nil {
		slog.Warn("could not attach to worker logs",
			"investigation_id", id, "error", err)
		return
	}
	defer stream.Close()

	scanner := bufio.NewScanner(stream)
	scanner.Buffer(make([]byte, 64*1024), maxLogLineSize)
	for scanner.Scan() {
		ev, ok := events.ParseLine(scanner.Bytes())
		if !ok {
			continue
		}
		if ev.Type == events.TypeFinish {
			s.markFinishObserved(id)
			if s.hooks.TurnsUsed != nil {
				if turns, ok := ev.Payload["turns_used"].(float64); ok {
					s.hooks.TurnsUsed(int(turns))
				}
			}
		}
		s.hub.Publish(id, ev)
	}
}
