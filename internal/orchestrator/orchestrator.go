// Package orchestrator implements the C9 component: it composes C4 source
// runtimes, the C2/C3 parse+transform pipeline, and C5 sink dispatchers
// into one running engine, per §4.9.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/wp-labs/wp-motor/internal/config"
	"github.com/wp-labs/wp-motor/internal/metrics"
	"github.com/wp-labs/wp-motor/internal/ratelimit"
	"github.com/wp-labs/wp-motor/internal/sink"
	"github.com/wp-labs/wp-motor/internal/source"
	"github.com/wp-labs/wp-motor/internal/stats"
	"github.com/wp-labs/wp-motor/internal/value"
	"github.com/wp-labs/wp-motor/internal/wpl"
	"github.com/wp-labs/wp-motor/internal/xerrors"
)

// infra channel names, the five built-in fixed destinations every engine
// instance wires regardless of user-configured groups (§3.6, §4.9).
const (
	infraDefault  = "default"
	infraMiss     = "miss"
	infraResidue  = "residue"
	infraError    = "error"
	infraMonitor  = "monitor"
)

// Orchestrator owns every live component of one running engine instance and
// drives the source -> parse -> transform -> sink pipeline described in
// §4.9.
type Orchestrator struct {
	cfg *config.Config
	log *logrus.Logger

	sources  map[string]source.Source
	registry *source.ChannelRegistry

	rules  *RuleSet
	models *ModelSet

	flexi []*groupRoute
	fixed []*groupRoute
	infra map[string]*groupRoute

	limiter  *ratelimit.Limiter
	rateCtrl *ratelimit.Controller

	statSource    *stats.Collector
	statParse     *stats.Collector
	statTransform *stats.Collector
	statSink      *stats.Collector
	monitor       *stats.Monitor

	badSinks chan sink.BadSink

	shutdownOnce sync.Once
	shutdownCh   chan struct{}
	wg           sync.WaitGroup

	fatal   chan error
	fatalMu sync.Mutex
}

// forwardAdapter lets a *source.FieldProcessor satisfy wpl.FieldProcessor
// (Process) while binding the target channel name the Forward call needs.
type forwardAdapter struct {
	proc    *source.FieldProcessor
	channel string
}

func (a forwardAdapter) Process(payload []byte) error {
	return a.proc.Forward(a.channel, payload)
}

// Build wires every configured component together without starting any
// goroutines; call Run to start the pipeline.
func Build(cfg *config.Config, log *logrus.Logger) (*Orchestrator, error) {
	o := &Orchestrator{
		cfg:           cfg,
		log:           log,
		sources:       make(map[string]source.Source),
		registry:      source.NewChannelRegistry(),
		infra:         make(map[string]*groupRoute),
		statSource:    stats.NewCollector(stats.StageSource),
		statParse:     stats.NewCollector(stats.StageParse),
		statTransform: stats.NewCollector(stats.StageTransform),
		statSink:      stats.NewCollector(stats.StageSink),
		monitor:       stats.NewMonitor(log, 64),
		badSinks:      make(chan sink.BadSink, 64),
		shutdownCh:    make(chan struct{}),
		fatal:         make(chan error, 1),
	}

	warn := func(msg string) { log.Warn(msg) }
	proc := source.NewFieldProcessor(source.ExtendMemChannel, o.registry)
	lookup := func(category, name string) (wpl.FieldProcessor, bool) {
		if _, ok := o.registry.Lookup(name); !ok {
			return nil, false
		}
		return forwardAdapter{proc: proc, channel: name}, true
	}
	forward := func(channel string, payload []byte) error {
		return proc.Forward(channel, payload)
	}

	var err error
	if o.rules, err = LoadRuleSet(cfg.Models.WPL, warn, lookup); err != nil {
		return nil, fmt.Errorf("orchestrator: load rules: %w", err)
	}
	if o.models, err = LoadModelSet(cfg.Models.OML, warn, forward); err != nil {
		return nil, fmt.Errorf("orchestrator: load models: %w", err)
	}

	mode := cfg.RobustMode()
	for _, name := range []string{infraDefault, infraMiss, infraResidue, infraError, infraMonitor} {
		route, err := buildInfraRoute(name, mode, cfg.Rescue.Path, o.badSinks, o.statSink, log)
		if err != nil {
			return nil, fmt.Errorf("orchestrator: build infra sink %q: %w", name, err)
		}
		o.infra[name] = route
	}

	for _, g := range cfg.Groups {
		route, err := buildGroupRoute(g, sink.KindFlexi, mode, cfg.Rescue.Path, o.badSinks, o.statSink, log)
		if err != nil {
			return nil, fmt.Errorf("orchestrator: build group %q: %w", g.Name, err)
		}
		o.flexi = append(o.flexi, route)
	}
	for _, g := range cfg.Fixed {
		route, err := buildGroupRoute(g, sink.KindFixed, mode, cfg.Rescue.Path, o.badSinks, o.statSink, log)
		if err != nil {
			return nil, fmt.Errorf("orchestrator: build fixed group %q: %w", g.Name, err)
		}
		o.fixed = append(o.fixed, route)
	}

	for _, sc := range cfg.Topology.Sources {
		src, err := buildSource(sc, o.registry, log)
		if err != nil {
			return nil, fmt.Errorf("orchestrator: build source %q: %w", sc.Name, err)
		}
		o.sources[sc.Name] = src
	}

	if cfg.SpeedProfile.Type != "" {
		profile, err := cfg.SpeedProfile.Build()
		if err != nil {
			return nil, fmt.Errorf("orchestrator: build speed profile: %w", err)
		}
		ctrl := ratelimit.NewController(profile, time.Now().UnixNano())
		o.limiter = ratelimit.NewLimiter(ctrl, time.Second)
		o.rateCtrl = ctrl
	}

	return o, nil
}

// buildInfraRoute wraps one of the five built-in fixed channels as a
// single-replica KindFixed dispatcher writing to the rescue backend under
// <rescue root>/infra_<name>/ (§3.6 "five built-in destinations").
func buildInfraRoute(name string, mode xerrors.RobustMode, rescueRoot string,
	badSinks chan<- sink.BadSink, stat *stats.Collector, log *logrus.Logger) (*groupRoute, error) {

	backend, err := sink.NewRescueBackend(rescueRoot, "infra_"+name, value.FormatJSON)
	if err != nil {
		return nil, err
	}
	rt := sink.NewRuntime(backend, sink.Config{
		Name:       "infra_" + name,
		Mode:       mode,
		RescueRoot: rescueRoot,
		BadSinks:   badSinks,
		Stat:       stat,
		Log:        log,
	})
	replica := &sink.Replica{Name: "infra_" + name, Runtime: rt, Ready: true}
	return &groupRoute{
		name:       name,
		dispatcher: sink.NewDispatcher(name, sink.KindFixed, nil, []*sink.Replica{replica}),
	}, nil
}

func buildSource(sc config.SourceConfig, reg *source.ChannelRegistry, log *logrus.Logger) (source.Source, error) {
	switch sc.Kind {
	case "file":
		return source.NewFileSource(source.FileConfig{
			Path: sc.Params["path"],
			Seek: source.SeekStrategy(sc.Params["seek"]),
			Log:  log,
		})
	case "tcp":
		return source.NewTCPSource(source.TCPConfig{
			Addr:       sc.Params["addr"],
			HeaderMode: source.HeaderMode(sc.Params["header_mode"]),
			RFC:        sc.Params["rfc"],
			Log:        log,
		})
	case "udp":
		return source.NewUDPSource(source.UDPConfig{
			Addr:       sc.Params["addr"],
			HeaderMode: source.HeaderMode(sc.Params["header_mode"]),
			RFC:        sc.Params["rfc"],
			Log:        log,
		})
	case "channel":
		capacity := 1024
		cs := source.NewChannelSource(sc.Name, capacity)
		reg.Register(sc.Name, cs)
		return cs, nil
	default:
		return nil, fmt.Errorf("unknown source kind %q", sc.Kind)
	}
}

// Run starts every background actor (stat flush loops, the bad-sinks
// logger, one receive loop per source feeding a shared parse-worker pool)
// and blocks until ctx is cancelled or a fatal sink error (Throw/Terminate,
// §7) arrives, at which point it cancels those actors and waits for them to
// exit. It does not call Shutdown; the caller does that separately.
func (o *Orchestrator) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.monitor.Run(runCtx)
	}()

	flushInterval := time.Duration(o.cfg.Stat.FlushIntervalSeconds) * time.Second
	for _, c := range []*stats.Collector{o.statSource, o.statParse, o.statTransform, o.statSink} {
		o.wg.Add(1)
		go func(c *stats.Collector) {
			defer o.wg.Done()
			stats.FlushLoop(runCtx, c, o.monitor.Inbound(), flushInterval)
		}(c)
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.drainBadSinks(runCtx)
	}()

	if o.limiter != nil {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			o.reportRateGauge(runCtx)
		}()
	}

	events := make(chan source.Event, 1024)
	for name, src := range o.sources {
		o.wg.Add(1)
		go func(name string, src source.Source) {
			defer o.wg.Done()
			o.runSource(runCtx, name, src, events)
		}(name, src)
	}

	workers := o.cfg.Performance.ParseWorkers
	if workers < 1 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			o.runParseWorker(runCtx, events)
		}()
	}

	select {
	case <-ctx.Done():
	case err := <-o.fatal:
		o.log.WithError(err).Error("orchestrator: fatal sink error, shutting down")
		cancel()
		o.wg.Wait()
		return err
	}
	cancel()
	o.wg.Wait()
	return ctx.Err()
}

// Shutdown stops every source and sink runtime, bounding the drain by
// timeout (§4.9: "a shutdown timeout bounds total drain time before forced
// termination").
func (o *Orchestrator) Shutdown(timeout time.Duration) error {
	var shutdownErr error
	o.shutdownOnce.Do(func() {
		close(o.shutdownCh)
		done := make(chan struct{})
		go func() {
			defer close(done)
			for _, src := range o.sources {
				_ = src.Stop()
			}
			for _, route := range allRoutes(o) {
				for _, r := range route.dispatcher.Replicas {
					_ = r.Runtime.Stop()
				}
			}
		}()
		select {
		case <-done:
		case <-time.After(timeout):
			shutdownErr = fmt.Errorf("orchestrator: shutdown timed out after %s", timeout)
		}
	})
	return shutdownErr
}

func allRoutes(o *Orchestrator) []*groupRoute {
	all := make([]*groupRoute, 0, len(o.flexi)+len(o.fixed)+len(o.infra))
	all = append(all, o.flexi...)
	all = append(all, o.fixed...)
	for _, r := range o.infra {
		all = append(all, r)
	}
	return all
}

// reportRateGauge periodically publishes the speed profile's current
// target rate to Prometheus (§4.6 observability).
func (o *Orchestrator) reportRateGauge(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			metrics.RateLimiterCurrentRate.Set(o.rateCtrl.Rate())
		}
	}
}

func (o *Orchestrator) drainBadSinks(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case bs, ok := <-o.badSinks:
			if !ok {
				return
			}
			metrics.SinkRescueSwaps.WithLabelValues(bs.Name).Inc()
			o.log.WithError(bs.Err).WithField("sink", bs.Name).Warn("orchestrator: sink marked bad, rescued")
		}
	}
}

func (o *Orchestrator) runSource(ctx context.Context, name string, src source.Source, out chan<- source.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		batch, err := src.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			o.log.WithError(err).WithField("source", name).Warn("orchestrator: source receive error")
			continue
		}
		o.statSource.RecordTask("received", int64(len(batch)))
		metrics.SourceEventsReceived.WithLabelValues(name).Add(float64(len(batch)))
		for _, ev := range batch {
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (o *Orchestrator) runParseWorker(ctx context.Context, in <-chan source.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-in:
			if !ok {
				return
			}
			o.processEvent(ev)
		}
	}
}

func (o *Orchestrator) processEvent(ev source.Event) {
	if o.limiter != nil {
		time.Sleep(o.limiter.Consume(1))
	}

	line := string(ev.Payload)
	o.statParse.RecordBegin()
	rec, ruleName, ok := o.rules.MatchFirst(line)
	if !ok {
		o.statParse.RecordEnd("miss", 1)
		metrics.ParseResults.WithLabelValues("", "miss").Inc()
		o.routeToInfra(infraMiss, ev.ID, "", "", line)
		return
	}
	o.statParse.RecordEnd("ok", 1)
	metrics.ParseResults.WithLabelValues(ruleName, "ok").Inc()

	o.statTransform.RecordBegin()
	omlName := ""
	out := rec
	if cm := o.models.SelectForRule(ruleName); cm != nil {
		omlName = cm.model.Name
		out = cm.obj.EvalExp(rec)
	}
	if out == nil || out.Len() == 0 {
		o.statTransform.RecordEnd("residue", 1)
		metrics.TransformResults.WithLabelValues(omlName, "residue").Inc()
		o.routeToInfra(infraResidue, ev.ID, ruleName, omlName, line)
		return
	}
	o.statTransform.RecordEnd("ok", 1)
	metrics.TransformResults.WithLabelValues(omlName, "ok").Inc()

	unit := sink.RecUnit{ID: ev.ID, Meta: sink.ProcMeta{Rule: ruleName, OML: omlName}, Data: out}
	dispatched := false
	for _, route := range o.flexi {
		if !route.matches(ruleName, omlName) {
			continue
		}
		dispatched = true
		if err := route.dispatcher.Dispatch(unit); err != nil {
			o.reportFatal(err)
		}
	}
	for _, route := range o.fixed {
		if !route.matches(ruleName, omlName) {
			continue
		}
		dispatched = true
		if err := route.dispatcher.Dispatch(unit); err != nil {
			o.reportFatal(err)
		}
	}
	if !dispatched {
		if err := o.infra[infraDefault].dispatcher.Dispatch(unit); err != nil {
			o.reportFatal(err)
		}
	}
}

// routeToInfra wraps the raw input line in a bare single-field record (for
// every channel, including residue, whose line did parse) and sends it to
// one of the fixed infra channels.
func (o *Orchestrator) routeToInfra(channel string, id uint64, ruleName, omlName, line string) {
	route, ok := o.infra[channel]
	if !ok {
		return
	}
	unit := sink.RecUnit{ID: id, Meta: sink.ProcMeta{Rule: ruleName, OML: omlName}, Data: source.ToRecord([]byte(line))}
	if err := route.dispatcher.Dispatch(unit); err != nil {
		o.reportFatal(err)
	}
}

// reportFatal surfaces a Throw/Terminate-classified sink error to Run's
// select loop exactly once (§7: "propagates; orchestrator begins
// shutdown").
func (o *Orchestrator) reportFatal(err error) {
	if err == nil {
		return
	}
	o.fatalMu.Lock()
	defer o.fatalMu.Unlock()
	select {
	case o.fatal <- err:
	default:
	}
}
