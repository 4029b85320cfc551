// Package acquisition implements the per-PLC state machine: connect to
// FINS, connect to OPC UA with a CSV fallback, then repeatedly read,
// decode, dispatch, and degrade until cancelled or a failure threshold is
// breached.
package acquisition

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/plantdata/finsbridge/internal/coerce"
	"github.com/plantdata/finsbridge/internal/config"
	"github.com/plantdata/finsbridge/internal/errs"
	"github.com/plantdata/finsbridge/internal/fins"
	"github.com/plantdata/finsbridge/internal/metrics"
	"github.com/plantdata/finsbridge/internal/opcua"
	"github.com/plantdata/finsbridge/internal/planner"
	"github.com/plantdata/finsbridge/internal/sample"
	"github.com/plantdata/finsbridge/internal/sinks/csvsink"
	"github.com/plantdata/finsbridge/internal/sinks/opcuasink"
)

const (
	failureThreshold      = 3
	opcuaConnectTimeout   = 60 * time.Second
	nodeDescriptorTimeout = 60 * time.Second
	nodeDescriptorPoll    = 250 * time.Millisecond
)

// Deps bundles the external collaborators one loop needs. The real CLI
// wires a fins.UDPClient and the opcua.Client from cmd/finsbridge; loop
// tests supply fakes from internal/testutil instead.
type Deps struct {
	FinsClient         fins.Client
	OpcuaClient        opcua.Client
	NodeDescriptorPath string
}

// Loop owns one PLC's FINS connection, OPC UA client, CSV file handle,
// and all per-PLC runtime state. Nothing here is shared with any other
// Loop.
type Loop struct {
	plc     config.PLCConfig
	csvFlag bool
	deps    Deps

	logger    zerolog.Logger
	collector *metrics.Collector
	failureCh chan<- errs.DrainReport

	groups  []planner.Group
	columns []string       // declared tag order, HEARTBEAT last
	buf     *sample.Buffer // reused every cycle, cleared by Reset

	finsUp                   bool
	opcuaUp                  bool
	consecutiveReadFailures  int
	consecutiveWriteFailures int

	csv       *csvsink.Sink
	opcuaSink *opcuasink.Sink
}

// New builds a Loop for one configured PLC. The read plan is computed
// once here, not per cycle.
func New(plc config.PLCConfig, csvFlag bool, deps Deps, logger zerolog.Logger, collector *metrics.Collector, failureCh chan<- errs.DrainReport) *Loop {
	columns := make([]string, 0, len(plc.Tags)+1)
	for _, t := range plc.Tags {
		columns = append(columns, t.TagName)
	}
	columns = append(columns, config.HeartbeatTag)

	plcLogger := logger.With().Str("plc", plc.Name).Logger()
	if plc.HasHeartbeat {
		plcLogger.Warn().Msg("HEARTBEAT is mapped explicitly in configuration; it is already synthesized every cycle and does not need a mapping")
	}

	return &Loop{
		plc:       plc,
		csvFlag:   csvFlag,
		deps:      deps,
		logger:    plcLogger,
		collector: collector,
		failureCh: failureCh,
		groups:    planner.Build(plc.Tags),
		columns:   columns,
		buf:       sample.New(len(columns)),
		csv:       csvsink.New(plc.Name, columns),
	}
}

// Run executes the full state machine to completion. It always posts
// exactly one DrainReport to failureCh before returning, whether the loop
// ended in an error or a clean operator-requested shutdown.
func (l *Loop) Run(ctx context.Context) {
	l.setPhase(metrics.PhaseFinsConnecting)
	if err := l.connectFins(ctx); err != nil {
		l.logger.Error().Err(err).Msg("fins unreachable")
		l.drain(errs.ReasonFinsUnreachable, true)
		return
	}
	l.finsUp = true

	l.setPhase(metrics.PhaseOpcuaConnecting)
	l.connectOpcua(ctx)

	l.setPhase(metrics.PhaseRunning)
	reason := l.runCycles(ctx)
	l.drain(reason, reason == errs.ReasonFinsUnreachable)
}

func (l *Loop) connectFins(ctx context.Context) error {
	if err := l.deps.FinsClient.Connect(ctx); err != nil {
		return err
	}
	if _, err := l.deps.FinsClient.CPUUnitDetailsRead(ctx); err != nil {
		_ = l.deps.FinsClient.Disconnect()
		return err
	}
	return nil
}

// connectOpcua never fails the loop: a connect or node-descriptor
// failure simply leaves opcua_up false and the loop falls back to CSV,
// even when --csv was not requested, since otherwise the loop would be
// useless.
func (l *Loop) connectOpcua(ctx context.Context) {
	connectCtx, cancel := context.WithTimeout(ctx, opcuaConnectTimeout)
	defer cancel()
	if err := l.deps.OpcuaClient.Connect(connectCtx, l.plc.OpcuaURL); err != nil {
		l.logger.Warn().Err(err).Msg("opc ua connect failed, falling back to csv")
		return
	}

	mapperCtx, cancel2 := context.WithTimeout(ctx, nodeDescriptorTimeout)
	defer cancel2()
	mapper, err := opcua.LoadNodeMapper(mapperCtx, l.deps.NodeDescriptorPath, nodeDescriptorPoll)
	if err != nil {
		l.logger.Warn().Err(err).Msg("node descriptor unavailable, falling back to csv")
		_ = l.deps.OpcuaClient.Disconnect()
		return
	}

	l.opcuaSink = opcuasink.New(l.plc.Name, l.deps.OpcuaClient, mapper)
	l.opcuaUp = true
}

func (l *Loop) runCycles(ctx context.Context) errs.DrainReason {
	for {
		select {
		case <-ctx.Done():
			return errs.ReasonOperatorCancel
		default:
		}

		if reason, breached := l.runCycle(ctx); breached {
			return reason
		}

		select {
		case <-ctx.Done():
			return errs.ReasonOperatorCancel
		case <-time.After(l.plc.SleepInterval):
		}
	}
}

// runCycle performs one full read-decode-dispatch pass and reports
// whether a failure threshold was breached this cycle.
func (l *Loop) runCycle(ctx context.Context) (errs.DrainReason, bool) {
	buf := l.buf
	buf.Reset()
	cycleOK := true
	anyReadSuccess := false

	for _, group := range l.groups {
		if group.IsBatch() {
			start := group.Tags[0]
			words, err := l.deps.FinsClient.BatchRead(ctx, start.Area, start.Address, groupWordCount(group), start.Type)
			if err != nil {
				l.logger.Warn().Err(err).Msg("batch read failed, falling back to individual reads")
				anyOK, allOK := l.readIndividually(ctx, group, buf)
				if anyOK {
					anyReadSuccess = true
				}
				if !allOK {
					cycleOK = false
				}
				continue
			}
			anyReadSuccess = true
			l.decodeBatch(group, words, buf)
			continue
		}

		tag := group.Tags[0]
		words, err := l.deps.FinsClient.Read(ctx, tag.Area, tag.Address, tag.Type)
		if err != nil {
			cycleOK = false
			l.logger.Warn().Err(err).Str("tag", tag.TagName).Msg("read failed")
			buf.Set(tag.TagName, sample.Null)
			continue
		}
		anyReadSuccess = true
		l.decodeOne(tag, words, buf)
	}

	buf.Set(config.HeartbeatTag, sample.Bool(cycleOK))

	if l.opcuaUp {
		if err := l.opcuaSink.WriteCycle(ctx, buf); err != nil {
			l.logger.Warn().Err(err).Msg("opc ua write failed, demoting to csv-only")
		}
		l.opcuaUp = l.opcuaSink.Up()
		l.consecutiveWriteFailures = l.opcuaSink.ConsecutiveWriteFailures()
	}
	if l.csvFlag || !l.opcuaUp {
		if err := l.csv.WriteRow(time.Now(), buf); err != nil {
			l.logger.Error().Err(err).Msg("csv write failed")
		}
	}

	if len(l.groups) == 0 || anyReadSuccess {
		l.consecutiveReadFailures = 0
	} else {
		l.consecutiveReadFailures++
	}

	l.reportCycle(cycleOK)

	if l.consecutiveReadFailures >= failureThreshold {
		return errs.ReasonReadThreshold, true
	}
	if l.consecutiveWriteFailures >= failureThreshold {
		return errs.ReasonWriteThreshold, true
	}
	return "", false
}

func (l *Loop) readIndividually(ctx context.Context, g planner.Group, buf *sample.Buffer) (anySuccess, allSuccess bool) {
	allSuccess = true
	for _, t := range g.Tags {
		words, err := l.deps.FinsClient.Read(ctx, t.Area, t.Address, t.Type)
		if err != nil {
			l.logger.Warn().Err(err).Str("tag", t.TagName).Msg("individual fallback read failed")
			buf.Set(t.TagName, sample.Null)
			allSuccess = false
			continue
		}
		anySuccess = true
		l.decodeOne(t, words, buf)
	}
	return anySuccess, allSuccess
}

func (l *Loop) decodeBatch(g planner.Group, words []uint16, buf *sample.Buffer) {
	var offset uint32
	for _, t := range g.Tags {
		n := t.WordCount()
		l.decodeOne(t, words[offset:offset+n], buf)
		offset += n
	}
}

func (l *Loop) decodeOne(t config.TagMapping, words []uint16, buf *sample.Buffer) {
	v, malformed := coerce.Decode(t.Type, t.StringLen, words)
	if malformed {
		l.logger.Warn().Str("tag", t.TagName).Msg("malformed boolean word coerced to false")
	}
	buf.Set(t.TagName, v)
}

func (l *Loop) sinkMode() metrics.SinkMode {
	switch {
	case l.opcuaUp && l.csvFlag:
		return metrics.SinkDual
	case l.opcuaUp:
		return metrics.SinkOpcuaOnly
	default:
		return metrics.SinkCsvOnly
	}
}

func (l *Loop) reportCycle(heartbeat bool) {
	if l.collector == nil {
		return
	}
	csvPath := ""
	if l.csv.Opened() {
		csvPath = l.csv.Path()
	}
	l.collector.UpdateCycle(l.plc.Name, l.sinkMode(), l.finsUp, l.opcuaUp, l.consecutiveReadFailures, l.consecutiveWriteFailures, heartbeat, csvPath)
}

func (l *Loop) setPhase(phase metrics.LoopPhase) {
	if l.collector != nil {
		l.collector.UpdatePhase(l.plc.Name, phase)
	}
	l.logger.Info().Str("phase", string(phase)).Msg("state transition")
}

// drain closes sinks in reverse order (OPC UA, CSV, FINS), posts the exit
// report, and moves to TERMINATED. removeCSV deletes any CSV file created
// during this run, used only when the cause was a FINS-unreachable
// failure so no empty per-boot file is left behind.
func (l *Loop) drain(reason errs.DrainReason, removeCSV bool) {
	l.setPhase(metrics.PhaseDraining)
	if l.collector != nil {
		l.collector.UpdateDrainReason(l.plc.Name, string(reason))
	}

	if l.opcuaSink != nil {
		_ = l.opcuaSink.Close()
	}
	if removeCSV {
		_ = l.csv.Remove()
	} else {
		_ = l.csv.Close()
	}
	if l.finsUp {
		_ = l.deps.FinsClient.Disconnect()
	}

	report := errs.DrainReport{PLCName: l.plc.Name, Reason: reason}
	select {
	case l.failureCh <- report:
	case <-time.After(2 * time.Second):
		l.logger.Error().Msg("failure channel send timed out")
	}

	l.setPhase(metrics.PhaseTerminated)
}

func groupWordCount(g planner.Group) uint32 {
	var total uint32
	for _, t := range g.Tags {
		total += t.WordCount()
	}
	return total
}
