package orchestrator

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/wp-labs/wp-motor/internal/config"
	"github.com/wp-labs/wp-motor/internal/sink"
	"github.com/wp-labs/wp-motor/internal/stats"
	"github.com/wp-labs/wp-motor/internal/value"
	"github.com/wp-labs/wp-motor/internal/xerrors"
)

// groupRoute pairs one compiled Dispatcher with the rule/oml wildcard
// globs (§6.5) that decide whether a unit is routed to it.
type groupRoute struct {
	name       string
	dispatcher *sink.Dispatcher
	ruleGlobs  []string
	omlGlobs   []string
}

// matches reports whether ruleName/omlName satisfy this group's rule/oml
// glob lists. An empty list matches everything (§6.5 lets either be
// omitted to mean "any").
func (g *groupRoute) matches(ruleName, omlName string) bool {
	return globListMatch(g.ruleGlobs, ruleName) && globListMatch(g.omlGlobs, omlName)
}

func globListMatch(globs []string, name string) bool {
	if len(globs) == 0 {
		return true
	}
	for _, g := range globs {
		if ok, err := filepath.Match(g, name); err == nil && ok {
			return true
		}
	}
	return false
}

// buildGroupRoute wires one [[group]]/[[fixed]] entry into a live
// Dispatcher over Runtime-wrapped backends.
func buildGroupRoute(g config.GroupConfig, kind sink.GroupKind, mode xerrors.RobustMode,
	rescueRoot string, badSinks chan<- sink.BadSink, stat *stats.Collector, log *logrus.Logger) (*groupRoute, error) {

	groupFilter, err := sink.ParseFilter(g.Filter)
	if err != nil {
		return nil, fmt.Errorf("group %s: filter: %w", g.Name, err)
	}

	parallel := g.Parallel
	if parallel < 1 {
		parallel = 1
	}

	replicas := make([]*sink.Replica, 0, len(g.Sinks)*parallel)
	for _, sc := range g.Sinks {
		sinkFilter, err := sink.ParseFilter(sc.Filter)
		if err != nil {
			return nil, fmt.Errorf("group %s sink %s: filter: %w", g.Name, sc.Name, err)
		}
		format, err := formatOrDefault(sc.Format)
		if err != nil {
			return nil, fmt.Errorf("group %s sink %s: %w", g.Name, sc.Name, err)
		}
		tags := make(map[string]string, len(g.Tags))
		for _, raw := range g.Tags {
			k, v := config.ParseTag(raw)
			tags[k] = v
		}

		// parallel (§3.6/§6.5) fans one SinkInstanceConf out into N runtime
		// replicas sharing a name; Dispatch consistent-hashes an event id
		// across replicas of the same sink name rather than broadcasting to
		// all of them (§5: "a given id always lands on the same replica").
		for i := 0; i < parallel; i++ {
			backend, err := buildBackend(sc, rescueRoot)
			if err != nil {
				return nil, fmt.Errorf("group %s sink %s: %w", g.Name, sc.Name, err)
			}
			rt := sink.NewRuntime(backend, sink.Config{
				Name:       sc.Name,
				BatchSize:  batchSizeOf(sc.Params),
				Mode:       mode,
				Tags:       tags,
				RescueRoot: rescueRoot,
				Format:     format,
				BadSinks:   badSinks,
				Stat:       stat,
				Log:        log,
			})
			replicas = append(replicas, &sink.Replica{Name: sc.Name, Runtime: rt, Filter: sinkFilter, Ready: true})
		}
	}

	return &groupRoute{
		name:       g.Name,
		dispatcher: sink.NewDispatcher(g.Name, kind, groupFilter, replicas),
		ruleGlobs:  g.Rule,
		omlGlobs:   g.OML,
	}, nil
}

func buildBackend(sc config.SinkConfig, rescueRoot string) (sink.Backend, error) {
	format, err := formatOrDefault(sc.Format)
	if err != nil {
		return nil, err
	}
	switch sc.Kind {
	case "file", "":
		return sink.NewFileBackend(sink.FileParams{
			Base:   sc.Params["base"],
			File:   sc.Params["file"],
			Format: format,
		})
	case "rescue":
		return sink.NewRescueBackend(rescueRoot, sc.Name, format)
	case "blackhole":
		return sink.NewBlackholeBackend(), nil
	case "network":
		brokers := strings.Split(sc.Params["brokers"], ",")
		for i := range brokers {
			brokers[i] = strings.TrimSpace(brokers[i])
		}
		return sink.NewNetworkBackend(sink.NetworkParams{
			Brokers: brokers,
			Topic:   sc.Params["topic"],
			Format:  format,
		})
	default:
		return nil, fmt.Errorf("unknown sink kind %q", sc.Kind)
	}
}

func formatOrDefault(name string) (value.Format, error) {
	if name == "" {
		return value.FormatJSON, nil
	}
	return value.ParseFormat(name)
}

func batchSizeOf(params map[string]string) int {
	raw, ok := params["batch_size"]
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0
	}
	return n
}
