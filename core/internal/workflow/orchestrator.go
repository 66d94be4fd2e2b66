// Package workflow drives one report from ingestion to a single outbound
// notification.
package workflow

import (
	"context"
	"errors"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"demos-to-discord/core/internal/config"
	"demos-to-discord/delivery"
	"demos-to-discord/demos"
	"demos-to-discord/evidence"
	"demos-to-discord/host"
	"demos-to-discord/poller"
)

const (
	defaultTransitionInterval = 2 * time.Second
	defaultTransitionTicks    = 180
	defaultStabilityInterval  = 2 * time.Second
	defaultStabilityAttempts  = 60

	unknownMap = "UNKNOWN"
)

type ArtifactMatcher interface {
	Match(dir string, rc demos.ReportContext, kind demos.Kind) (demos.Candidate, bool, error)
}

type Stabilizer interface {
	AwaitStable(path string, attempts int, interval time.Duration) evidence.Stability
}

type Deliverer interface {
	Deliver(ctx context.Context, req delivery.Request) delivery.Outcome
}

type Options struct {
	DemoDirs map[host.GameFamily]string

	ArtifactInterval time.Duration
	ArtifactTimeout  time.Duration
	// SettleDelay is the pause after the session transition wait.
	SettleDelay time.Duration

	TransitionInterval time.Duration
	TransitionTicks    int

	StabilityInterval time.Duration
	StabilityAttempts int

	// WatchDirectory wakes the artifact wait on directory changes instead
	// of only on the interval.
	WatchDirectory bool
}

// OptionsFromConfig maps the user configuration onto workflow timings.
func OptionsFromConfig(cfg config.Config) Options {
	return Options{
		DemoDirs: map[host.GameFamily]string{
			host.GameT5: cfg.T5DemoPath,
			host.GameT6: cfg.T6DemoPath,
		},
		ArtifactInterval:   cfg.RetryInterval(),
		ArtifactTimeout:    cfg.MaxWait(),
		SettleDelay:        cfg.PostMatchDelay(),
		TransitionInterval: defaultTransitionInterval,
		TransitionTicks:    defaultTransitionTicks,
		StabilityInterval:  defaultStabilityInterval,
		StabilityAttempts:  defaultStabilityAttempts,
		WatchDirectory:     cfg.WatchDirectory,
	}
}

type Deps struct {
	Matcher    ArtifactMatcher
	Stabilizer Stabilizer
	Deliverer  Deliverer
	// Journal is optional.
	Journal *Journal
}

// Result describes how a workflow ended.
type Result struct {
	RunID     string
	State     State
	Candidate demos.Candidate
	Matched   bool
	Delivery  delivery.Outcome
}

type Orchestrator struct {
	logger *zap.Logger
	opts   Options
	deps   Deps

	now      func() time.Time
	newRunID func() string
	sleep    func(time.Duration)
}

func New(logger *zap.Logger, opts Options, deps Deps) *Orchestrator {
	if opts.TransitionInterval <= 0 {
		opts.TransitionInterval = defaultTransitionInterval
	}
	if opts.TransitionTicks <= 0 {
		opts.TransitionTicks = defaultTransitionTicks
	}
	if opts.StabilityInterval <= 0 {
		opts.StabilityInterval = defaultStabilityInterval
	}
	if opts.StabilityAttempts <= 0 {
		opts.StabilityAttempts = defaultStabilityAttempts
	}
	return &Orchestrator{
		logger:   logger.Named("workflow"),
		opts:     opts,
		deps:     deps,
		now:      time.Now,
		newRunID: uuid.NewString,
		sleep:    time.Sleep,
	}
}

// Handle runs the workflow for evt to completion and returns its terminal
// state. ctx cancellation is honoured only while waiting for the demo to
// appear; once a demo is found the workflow delivers regardless.
func (o *Orchestrator) Handle(ctx context.Context, evt host.ReportEvent) Result {
	runID := o.newRunID()
	rc := demos.NewReportContext(runID, evt, o.now())
	log := o.logger.With(zap.String("run_id", runID))
	m := newMachine(runID, o.deps.Journal)

	if reason, ok := o.supported(evt, rc); !ok {
		log.Debug("Report ignored", zap.String("reason", reason), zap.String("kind", string(evt.Kind)))
		RejectReport(reason)
		o.step(log, m, StateIgnored, reason)
		workflowsTotal.WithLabelValues(string(StateIgnored)).Inc()
		return Result{RunID: runID, State: StateIgnored}
	}

	log.Info("Report received",
		zap.String("game", string(rc.Game)),
		zap.String("map", rc.Map),
		zap.String("mode", rc.Mode),
		zap.String("target", rc.Target.Name),
		zap.String("reporter", rc.Reporter.Name),
	)

	kind, _ := demos.KindFor(rc.Game)
	dir := o.opts.DemoDirs[rc.Game]
	if !isDir(dir) {
		log.Warn("Demo directory missing, skipping search", zap.String("dir", dir))
		o.step(log, m, StateDelivering, "demo directory missing")
		return o.deliver(ctx, log, m, rc, demos.Candidate{}, false)
	}

	o.step(log, m, StateAwaitingArtifact, dir)
	cand, outcome := o.awaitArtifact(ctx, log, dir, rc, kind)
	if outcome != poller.Found {
		log.Warn("No demo found", zap.String("outcome", string(outcome)))
		o.step(log, m, StateDelivering, "artifact wait "+string(outcome))
		return o.deliver(ctx, log, m, rc, demos.Candidate{}, false)
	}

	// Past this point cancellation is ignored.
	ctx = context.WithoutCancel(ctx)

	o.step(log, m, StateAwaitingSessionTransition, cand.Path)
	o.awaitTransition(ctx, log, evt.Session, rc)
	o.sleep(o.opts.SettleDelay)

	o.step(log, m, StateAwaitingStability, "")
	o.awaitStable(log, cand.Path)
	if cand.SidecarPath != "" {
		o.awaitStable(log, cand.SidecarPath)
	}

	o.step(log, m, StateDelivering, "")
	return o.deliver(ctx, log, m, rc, cand, true)
}

func (o *Orchestrator) supported(evt host.ReportEvent, rc demos.ReportContext) (string, bool) {
	if evt.Kind != host.PenaltyReport {
		return "unsupported_kind", false
	}
	if evt.Session == nil {
		return "no_session", false
	}
	if _, ok := demos.KindFor(rc.Game); !ok {
		return "unsupported_game", false
	}
	return "", true
}

func (o *Orchestrator) awaitArtifact(ctx context.Context, log *zap.Logger, dir string, rc demos.ReportContext, kind demos.Kind) (demos.Candidate, poller.Outcome) {
	start := time.Now()
	defer func() { artifactWaitSeconds.Observe(time.Since(start).Seconds()) }()

	opts := poller.Options{
		Interval:  o.opts.ArtifactInterval,
		Timeout:   o.opts.ArtifactTimeout,
		Immediate: true,
	}
	if o.opts.WatchDirectory {
		watchCtx, stop := context.WithCancel(ctx)
		defer stop()
		wake, err := poller.WatchDir(watchCtx, dir, log)
		if err != nil {
			log.Warn("Directory watch unavailable, polling only", zap.Error(err))
		} else {
			opts.Wake = wake
		}
	}

	return poller.Until(ctx, opts, func(context.Context) (demos.Candidate, bool) {
		cand, ok, err := o.deps.Matcher.Match(dir, rc, kind)
		if err != nil {
			log.Warn("Listing demos failed", zap.Error(err))
			return demos.Candidate{}, false
		}
		return cand, ok
	})
}

// awaitTransition waits, best effort, for the session to leave the map it
// was on when the report arrived.
func (o *Orchestrator) awaitTransition(ctx context.Context, log *zap.Logger, session host.Session, rc demos.ReportContext) {
	baseline := mapKey(rc.Map)
	next, outcome := poller.Until(ctx, poller.Options{
		Interval: o.opts.TransitionInterval,
		MaxTicks: o.opts.TransitionTicks,
	}, func(context.Context) (string, bool) {
		current := mapKey(session.MapName())
		return current, current != baseline
	})
	if outcome == poller.Found {
		log.Info("Session moved on", zap.String("from", baseline), zap.String("to", next))
		return
	}
	log.Info("Session still on report map, continuing", zap.String("map", baseline))
}

func (o *Orchestrator) awaitStable(log *zap.Logger, path string) {
	if o.deps.Stabilizer.AwaitStable(path, o.opts.StabilityAttempts, o.opts.StabilityInterval) != evidence.StabilityReady {
		log.Warn("File not confirmed stable, sending best effort", zap.String("path", path))
	}
}

func (o *Orchestrator) deliver(ctx context.Context, log *zap.Logger, m *machine, rc demos.ReportContext, cand demos.Candidate, matched bool) Result {
	out := o.deps.Deliverer.Deliver(ctx, delivery.Request{
		Report:       rc,
		ArtifactPath: cand.Path,
		SidecarPath:  cand.SidecarPath,
		Matched:      matched,
	})

	state := StateDelivered
	detail := ""
	switch {
	case !matched:
		state = StateFailedNoArtifact
	case out.Err != nil:
		state = StateFailedDeliveryError
	}
	if out.Err != nil {
		detail = out.Err.Error()
		if errors.Is(out.Err, delivery.ErrNoWebhook) {
			log.Warn("Workflow finished without sending", zap.String("state", string(state)))
		}
	}
	o.step(log, m, state, detail)
	workflowsTotal.WithLabelValues(string(state)).Inc()

	log.Info("Workflow finished",
		zap.String("state", string(state)),
		zap.Bool("attached", out.Attached),
		zap.Int("status", out.StatusCode),
	)
	return Result{RunID: rc.RunID, State: state, Candidate: cand, Matched: matched, Delivery: out}
}

func (o *Orchestrator) step(log *zap.Logger, m *machine, next State, detail string) {
	if err := m.advance(next, detail); err != nil {
		if errors.Is(err, ErrInvalidTransition) {
			log.DPanic("Workflow transition rejected", zap.Error(err))
			return
		}
		log.Warn("Journal write failed", zap.Error(err))
	}
}

func mapKey(name string) string {
	if strings.TrimSpace(name) == "" {
		return unknownMap
	}
	return name
}

func isDir(path string) bool {
	if strings.TrimSpace(path) == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
