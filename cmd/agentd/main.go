/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Command agentd is the monitoring agent's wiring entrypoint: it builds
// the local database, metric registry, provider supervisor, subagent
// bridges, notification processor, action registry, and client session
// listener described by §4, in the dependency order §2 prescribes, and
// runs them until a shutdown signal arrives.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/carverauto/serviceradar/pkg/action"
	"github.com/carverauto/serviceradar/pkg/config"
	"github.com/carverauto/serviceradar/pkg/lifecycle"
	"github.com/carverauto/serviceradar/pkg/localdb"
	"github.com/carverauto/serviceradar/pkg/logger"
	"github.com/carverauto/serviceradar/pkg/metriccatalog"
	"github.com/carverauto/serviceradar/pkg/notify"
	"github.com/carverauto/serviceradar/pkg/problems"
	"github.com/carverauto/serviceradar/pkg/provider"
	"github.com/carverauto/serviceradar/pkg/session"
	"github.com/carverauto/serviceradar/pkg/subagent"
	"github.com/carverauto/serviceradar/pkg/wire"
)

// Version is set at build time via ldflags.
//
//nolint:gochecknoglobals // Required for build-time ldflags injection
var Version = "dev"

var errShutdownTimeout = errors.New("shutdown timed out")

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	configPath := flag.String("config", "/etc/serviceradar/agentd.json", "Path to agentd config file")
	flag.Parse()

	cfg, err := config.LoadAgentConfig(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logConfig := cfg.Logging
	if logConfig == nil {
		logConfig = &logger.Config{Level: "info", Output: "stdout"}
	}

	agentLog, err := lifecycle.CreateComponentLogger("agentd", logConfig)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	defer func() {
		if shutdownErr := lifecycle.ShutdownLogger(); shutdownErr != nil {
			log.Printf("failed to shut down logger: %v", shutdownErr)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := newAgentd(ctx, cfg, agentLog)
	if err != nil {
		return fmt.Errorf("failed to build agentd: %w", err)
	}

	return a.runUntilSignal(ctx, cancel, *configPath)
}

// agentd holds every long-lived component built by newAgentd: local DB,
// problem registry, metric registry and its self-observability facts,
// provider supervisor, notification processor, action registry, session
// listener, and the subagent bridges keyed by name.
type agentd struct {
	log logger.Logger

	db        *localdb.DB
	probs     *problems.Registry
	registry  *metriccatalog.Registry
	obs       *metriccatalog.SelfObservability
	providers *provider.Supervisor
	notifier  *notify.Processor
	actions   *action.Registry
	sessions  *session.Listener

	mu                  sync.Mutex
	bridges             map[string]*subagent.Bridge
	listener            net.Listener
	configuredProviders map[string]struct{}
}

func newAgentd(ctx context.Context, cfg *config.AgentConfig, log logger.Logger) (*agentd, error) {
	probs := problems.NewRegistry()

	db, err := localdb.Open(ctx, cfg.LocalDBPath, probs, log)
	if err != nil {
		// Non-fatal per §4.6: the agent runs on without local-DB-backed
		// features (notification spooling/resync, registry, file
		// integrity baselines). The problem stays registered for
		// Agent.RegisteredProblems to surface.
		log.Warn().Err(err).Msg("local database unavailable, continuing without it")
	}

	registry := metriccatalog.NewRegistry()

	ciphers := uint32(wire.SupportedCiphers)
	obs := metriccatalog.NewSelfObservability(Version, cfg.HardwareID, ciphers)
	obs.Problems = probs
	metriccatalog.RegisterBuiltins(registry, obs)

	providers := provider.NewSupervisor(log)
	providers.SetProblems(probs)
	registry.SetProviderTier(providers)

	locator := &sessionLocator{}

	var store notify.Store = nopStore{}
	if db != nil {
		store = db.Notify()
	}

	notifier := notify.NewProcessor(notify.Config{
		OfflineExpiration: time.Duration(cfg.OfflineExpirationDays) * 24 * time.Hour,
	}, store, locator, log)

	if db != nil {
		if err := notifier.LoadKnownServers(ctx); err != nil {
			log.Warn().Err(err).Msg("failed to load known notification servers")
		}
	}

	actions := action.NewRegistry()

	priv, pub, err := loadServerKeyPair(cfg.ServerPrivateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load server key pair: %w", err)
	}

	sessionCfg := session.Config{
		SharedSecret:     cfg.SharedSecret,
		ServerPublicKey:  pub,
		ServerPrivateKey: priv,
		FileStoreRoot:    cfg.FileStoreRoot,
		MasterServer:     cfg.MasterServer,
	}

	ln, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to bind session listener: %w", err)
	}

	sessions := session.NewListener(ln, sessionCfg, registry, actions, log)
	locator.listener = sessions

	a := &agentd{
		log:                 log,
		db:                  db,
		probs:               probs,
		registry:            registry,
		obs:                 obs,
		providers:           providers,
		notifier:            notifier,
		actions:             actions,
		sessions:            sessions,
		bridges:             make(map[string]*subagent.Bridge),
		listener:            ln,
		configuredProviders: make(map[string]struct{}),
	}

	for _, p := range cfg.Providers {
		if err := a.addProvider(p); err != nil {
			return nil, err
		}
	}

	if err := a.wireSubagents(cfg.Subagents); err != nil {
		return nil, err
	}

	if err := a.wireActions(cfg.Actions); err != nil {
		return nil, err
	}

	return a, nil
}

// addProvider registers a configured provider, skipping names already
// scheduled: Supervisor.Add has no matching Remove, so re-adding an
// unchanged name on a SIGHUP reload would start a second, duplicate
// poller for the same command.
func (a *agentd) addProvider(p config.ExternalMetricProviderConfig) error {
	if _, ok := a.configuredProviders[p.Name]; ok {
		return nil
	}

	providerCfg, err := buildProviderConfig(p)
	if err != nil {
		return fmt.Errorf("provider %q: %w", p.Name, err)
	}

	a.providers.Add(providerCfg)
	a.configuredProviders[p.Name] = struct{}{}

	return nil
}

func buildProviderConfig(p config.ExternalMetricProviderConfig) (provider.Config, error) {
	shape, err := parseShape(p.Shape)
	if err != nil {
		return provider.Config{}, err
	}

	cfg := provider.Config{
		Name:        p.Name,
		Command:     p.Command,
		Interval:    time.Duration(p.Interval),
		Timeout:     time.Duration(p.Timeout),
		Description: p.Description,
		Shape:       shape,
	}

	if p.Table != nil {
		cfg.Table = provider.TableSpec{
			DecodeEscapes:   p.Table.DecodeEscapes,
			MergeSeparators: p.Table.MergeSeparators,
			InstanceColumns: p.Table.InstanceColumns,
			ColumnTypes:     p.Table.ColumnTypes,
			DefaultType:     p.Table.DefaultType,
		}

		if p.Table.Separator != "" {
			cfg.Table.Separator = p.Table.Separator[0]
		} else {
			cfg.Table.Separator = '\t'
		}
	}

	if p.Structured != nil {
		format, err := parseStructuredFormat(p.Structured.Format)
		if err != nil {
			return provider.Config{}, err
		}

		cfg.Structured = provider.StructuredSpec{
			Format:        format,
			Query:         p.Structured.Query,
			Parameterized: p.Structured.Parameterized,
		}
	}

	return cfg, nil
}

func parseShape(s string) (provider.Shape, error) {
	switch s {
	case "metric", "":
		return provider.ShapeMetric, nil
	case "list":
		return provider.ShapeList, nil
	case "table":
		return provider.ShapeTable, nil
	case "structured":
		return provider.ShapeStructured, nil
	default:
		return 0, fmt.Errorf("unknown provider shape %q", s)
	}
}

func parseStructuredFormat(s string) (provider.StructuredFormat, error) {
	switch s {
	case "xml":
		return provider.FormatXML, nil
	case "json":
		return provider.FormatJSON, nil
	case "regex":
		return provider.FormatRegex, nil
	default:
		return 0, fmt.Errorf("unknown structured provider format %q", s)
	}
}

// wireSubagents binds one Unix-domain listener per configured bridge
// (§4.3, §6 "nxagentd.subagent.<NAME>"), registers it into the metric
// registry's subagent tier, and points its trap/push/proxy sinks at the
// already-built notification processor and session listener.
func (a *agentd) wireSubagents(cfgs []config.ExternalSubagentConfig) error {
	for _, sc := range cfgs {
		_ = os.Remove(sc.SocketPath)

		ln, err := net.Listen("unix", sc.SocketPath)
		if err != nil {
			return fmt.Errorf("subagent %q: failed to bind socket: %w", sc.Name, err)
		}

		authz := subagent.PeerAuthorizer(func(subagent.PeerCredential) bool { return true })
		if sc.PeerUser != "" && sc.PeerUser != "*" {
			expected := sc.PeerUser
			authz = func(cred subagent.PeerCredential) bool { return cred.Name == expected }
		}

		bridge := subagent.NewBridge(sc.Name, ln, authz)
		bridge.SetSinks(trapSink{processor: a.notifier, log: a.log}, a.sessions, a.sessions)

		a.mu.Lock()
		a.bridges[sc.Name] = bridge
		a.mu.Unlock()

		a.registry.AddSubagentTier(bridge)
		a.actions.RegisterSubagent(sc.Name, bridge)
	}

	return nil
}

func (a *agentd) wireActions(cfgs []config.ActionConfig) error {
	for _, ac := range cfgs {
		spec, err := buildActionSpec(ac)
		if err != nil {
			return fmt.Errorf("action %q: %w", ac.Name, err)
		}

		a.actions.Register(spec)
	}

	return nil
}

func buildActionSpec(ac config.ActionConfig) (action.Spec, error) {
	spec := action.Spec{
		Name:     ac.Name,
		Command:  ac.Command,
		Args:     ac.Args,
		Shell:    ac.Shell,
		Subagent: ac.Subagent,
		Timeout:  time.Duration(ac.Timeout),
	}

	switch ac.Kind {
	case "external", "":
		spec.Kind = action.KindExternal
	case "shell":
		spec.Kind = action.KindShell
	case "subagent":
		spec.Kind = action.KindSubagent
	default:
		return action.Spec{}, fmt.Errorf("unknown action kind %q", ac.Kind)
	}

	return spec, nil
}

// runUntilSignal starts every background component and blocks until a
// shutdown signal or a SIGHUP config reload loop exits it.
func (a *agentd) runUntilSignal(ctx context.Context, cancel context.CancelFunc, configPath string) error {
	a.providers.Start(ctx)
	a.notifier.Run(ctx)

	a.mu.Lock()
	for _, b := range a.bridges {
		go b.Serve(ctx, a.log)
	}
	a.mu.Unlock()

	go a.sessions.Serve(ctx)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigChan)

	for {
		sig := <-sigChan

		if sig == syscall.SIGHUP {
			a.reload(configPath)
			continue
		}

		a.log.Info().Str("signal", sig.String()).Msg("received shutdown signal")

		return a.shutdown(cancel)
	}
}

// shutdown stops every component in reverse dependency order, bounded so
// the process can never hang forever.
func (a *agentd) shutdown(cancel context.CancelFunc) error {
	const shutdownTimeout = 10 * time.Second

	done := make(chan struct{})

	go func() {
		defer close(done)

		cancel()
		_ = a.listener.Close()

		a.mu.Lock()
		for _, b := range a.bridges {
			b.Stop()
		}
		a.mu.Unlock()

		a.notifier.Stop()
		a.providers.Stop()

		if a.db != nil {
			if err := a.db.Close(); err != nil {
				a.log.Warn().Err(err).Msg("error closing local database")
			}
		}
	}()

	timer := time.NewTimer(shutdownTimeout)
	defer timer.Stop()

	select {
	case <-done:
	case <-timer.C:
		return fmt.Errorf("%w after %s", errShutdownTimeout, shutdownTimeout)
	}

	a.log.Info().Msg("agentd shutdown complete")

	return nil
}

// reload re-reads the agent config and reapplies the provider and action
// sets without restarting the process (§6 signals paragraph, SUPPLEMENTED
// FEATURES). Subagent bridges and the session listener are left running:
// neither's configuration can change without rebinding a socket, which is
// out of scope for a live reload.
func (a *agentd) reload(configPath string) {
	cfg, err := config.LoadAgentConfig(configPath)
	if err != nil {
		a.log.Error().Err(err).Msg("SIGHUP config reload failed, keeping previous configuration")
		return
	}

	// Providers are additive: Supervisor has no Remove, so a reload that
	// drops an entry from config leaves its old poller running rather
	// than tearing it down (§4.2 has no dynamic-removal operation to
	// mirror here). addProvider skips names already scheduled.
	for _, pc := range cfg.Providers {
		if err := a.addProvider(pc); err != nil {
			a.log.Error().Err(err).Str("provider", pc.Name).Msg("SIGHUP reload: skipping invalid provider")
		}
	}

	for _, ac := range cfg.Actions {
		spec, err := buildActionSpec(ac)
		if err != nil {
			a.log.Error().Err(err).Str("action", ac.Name).Msg("SIGHUP reload: skipping invalid action")
			continue
		}

		a.actions.Register(spec)
	}

	a.log.Info().Msg("SIGHUP config reload applied")
}

