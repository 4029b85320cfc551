// Package supervisor starts one Acquisition Loop per configured PLC,
// collects their drain reports on a shared channel, and derives the
// process exit code from the aggregate outcome.
package supervisor

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/plantdata/finsbridge/internal/acquisition"
	"github.com/plantdata/finsbridge/internal/config"
	"github.com/plantdata/finsbridge/internal/errs"
	"github.com/plantdata/finsbridge/internal/fins"
	"github.com/plantdata/finsbridge/internal/logging"
	"github.com/plantdata/finsbridge/internal/metrics"
	"github.com/plantdata/finsbridge/internal/opcua"
)

// Exit codes returned by Run, per the process contract: 0 means every loop
// drained cleanly (operator cancel), 2 means at least one loop could never
// reach its PLC, 3 means at least one loop breached a failure threshold.
// A config error never reaches here; the caller exits 1 before Run starts.
const (
	ExitOK              = 0
	ExitFinsUnreachable = 2
	ExitThresholdBreach = 3
)

// ClientFactory builds the live collaborators for one PLC. The CLI wires a
// factory that returns real fins.UDPClient and an opcua.Client
// implementation; tests can substitute fakes.
type ClientFactory func(plc config.PLCConfig) (fins.Client, opcua.Client)

// Supervisor owns the set of Acquisition Loops for one bridge process.
type Supervisor struct {
	logger             zerolog.Logger
	collector          *metrics.Collector
	newClients         ClientFactory
	csvFlag            bool
	nodeDescriptorPath string

	mu    sync.Mutex
	state map[string]errs.DrainReport // PLCName -> terminal report, filled in as loops finish
}

// New builds a Supervisor for the given PLC configs. newClients is called
// once per PLC, from Run, to construct that loop's FINS and OPC UA
// collaborators.
func New(logger zerolog.Logger, collector *metrics.Collector, csvFlag bool, nodeDescriptorPath string, newClients ClientFactory) *Supervisor {
	return &Supervisor{
		logger:             logger.With().Str("component", "supervisor").Logger(),
		collector:          collector,
		newClients:         newClients,
		csvFlag:            csvFlag,
		nodeDescriptorPath: nodeDescriptorPath,
		state:              make(map[string]errs.DrainReport),
	}
}

// Run starts one Acquisition Loop per plc, blocks until every loop has
// drained, and returns the process exit code implied by the aggregate
// outcome. ctx cancellation is the only way to stop the loops early;
// Run itself never cancels ctx.
func (s *Supervisor) Run(ctx context.Context, plcs []config.PLCConfig) int {
	failureCh := make(chan errs.DrainReport, len(plcs))

	var wg sync.WaitGroup
	for _, plc := range plcs {
		plc := plc
		if s.collector != nil {
			s.collector.Register(plc.Name)
		}

		finsClient, opcuaClient := s.newClients(plc)
		plcLogger, closer, err := logging.ForPLC(plc.Name, s.logger, s.logger.GetLevel())
		if err != nil {
			s.logger.Error().Err(err).Str("plc", plc.Name).Msg("could not open per-plc log file, using console only")
			plcLogger = s.logger
			closer = nil
		}

		loop := acquisition.New(plc, s.csvFlag, acquisition.Deps{
			FinsClient:         finsClient,
			OpcuaClient:        opcuaClient,
			NodeDescriptorPath: s.nodeDescriptorPath,
		}, plcLogger, s.collector, failureCh)

		wg.Add(1)
		go func() {
			defer wg.Done()
			loop.Run(ctx)
			if closer != nil {
				_ = closer.Close()
			}
		}()
	}

	go func() {
		wg.Wait()
		close(failureCh)
	}()

	for report := range failureCh {
		s.record(report)
	}

	return s.exitCode()
}

func (s *Supervisor) record(report errs.DrainReport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state[report.PLCName] = report

	logEvent := s.logger.Info()
	if report.Abnormal() {
		logEvent = s.logger.Warn()
	}
	logEvent.Str("plc", report.PLCName).Str("reason", string(report.Reason)).Msg("loop drained")
}

// Reports returns a copy of every terminal DrainReport recorded so far,
// keyed by PLC name.
func (s *Supervisor) Reports() map[string]errs.DrainReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]errs.DrainReport, len(s.state))
	for k, v := range s.state {
		out[k] = v
	}
	return out
}

// exitCode derives the aggregate process exit code from every loop's
// terminal reason. A threshold breach outranks a fins_unreachable outcome,
// since it implies the operator saw a running system degrade rather than
// never come up in the first place.
func (s *Supervisor) exitCode() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	sawFinsUnreachable := false
	for _, report := range s.state {
		switch report.Reason {
		case errs.ReasonReadThreshold, errs.ReasonWriteThreshold:
			return ExitThresholdBreach
		case errs.ReasonFinsUnreachable:
			sawFinsUnreachable = true
		}
	}
	if sawFinsUnreachable {
		return ExitFinsUnreachable
	}
	return ExitOK
}
