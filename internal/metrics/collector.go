// Package metrics aggregates per-PLC acquisition state for consumption by
// the status HTTP endpoint and the live dashboard. The core acquisition
// loop never blocks on it: every update is a single mutex-guarded map
// write, and the one piece of I/O (the periodic broadcast to subscribers)
// runs on its own goroutine.
package metrics

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// LoopPhase mirrors an Acquisition Loop's state machine state.
type LoopPhase string

const (
	PhaseInit            LoopPhase = "init"
	PhaseFinsConnecting  LoopPhase = "fins_connecting"
	PhaseOpcuaConnecting LoopPhase = "opcua_connecting"
	PhaseRunning         LoopPhase = "running"
	PhaseDraining        LoopPhase = "draining"
	PhaseTerminated      LoopPhase = "terminated"
)

// SinkMode mirrors the RUNNING-phase sink-mode substate.
type SinkMode string

const (
	SinkOpcuaOnly SinkMode = "opcua_only"
	SinkCsvOnly   SinkMode = "csv_only"
	SinkDual      SinkMode = "dual"
)

// PLCSnapshot is the observable state of one Acquisition Loop.
type PLCSnapshot struct {
	Name                     string    `json:"name"`
	Phase                    LoopPhase `json:"phase"`
	SinkMode                 SinkMode  `json:"sink_mode,omitempty"`
	FinsUp                   bool      `json:"fins_up"`
	OpcuaUp                  bool      `json:"opcua_up"`
	ConsecutiveReadFailures  int       `json:"consecutive_read_failures"`
	ConsecutiveWriteFailures int       `json:"consecutive_write_failures"`
	LastHeartbeat            bool      `json:"last_heartbeat"`
	LastCycleAt              time.Time `json:"last_cycle_at"`
	CyclesCompleted          int64     `json:"cycles_completed"`
	CSVPath                  string    `json:"csv_path,omitempty"`
	DrainReason              string    `json:"drain_reason,omitempty"`
}

// Snapshot is the complete metrics state at a point in time.
type Snapshot struct {
	Timestamp  time.Time     `json:"timestamp"`
	TotalCycles int64        `json:"total_cycles"`
	PLCs       []PLCSnapshot `json:"plcs"`
}

// LogEntry represents a log line captured for the dashboard.
type LogEntry struct {
	Time    time.Time         `json:"time"`
	Level   string            `json:"level"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// Collector aggregates per-PLC state and provides snapshots for
// consumption by the HTTP status endpoint and the dashboard.
type Collector struct {
	logger zerolog.Logger

	mu       sync.RWMutex
	plcs     map[string]*PLCSnapshot
	plcOrder []string // insertion-order keys, one per configured PLC

	totalCycles atomic.Int64

	subMu       sync.Mutex
	subscribers map[chan Snapshot]struct{}

	logMu  sync.Mutex
	logs   []LogEntry
	logCap int

	done chan struct{}
}

// NewCollector creates a new Collector.
func NewCollector(logger zerolog.Logger) *Collector {
	c := &Collector{
		logger:      logger.With().Str("component", "metrics").Logger(),
		plcs:        make(map[string]*PLCSnapshot),
		subscribers: make(map[chan Snapshot]struct{}),
		logs:        make([]LogEntry, 0, 500),
		logCap:      500,
		done:        make(chan struct{}),
	}
	go c.broadcastLoop()
	return c
}

// Register adds a PLC to the collector in PhaseInit. Call once per
// configured PLC before starting its loop, so the declared order of PLCs
// in the configuration file is preserved in every snapshot.
func (c *Collector) Register(plcName string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.plcs[plcName]; exists {
		return
	}
	c.plcs[plcName] = &PLCSnapshot{Name: plcName, Phase: PhaseInit}
	c.plcOrder = append(c.plcOrder, plcName)
}

// UpdatePhase records a state machine transition.
func (c *Collector) UpdatePhase(plcName string, phase LoopPhase) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.plcs[plcName]; ok {
		p.Phase = phase
	}
}

// UpdateDrainReason records why a loop entered DRAINING.
func (c *Collector) UpdateDrainReason(plcName, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.plcs[plcName]; ok {
		p.DrainReason = reason
	}
}

// UpdateCycle records the outcome of one completed acquisition cycle.
func (c *Collector) UpdateCycle(plcName string, sinkMode SinkMode, finsUp, opcuaUp bool, readFailures, writeFailures int, heartbeat bool, csvPath string) {
	c.mu.Lock()
	p, ok := c.plcs[plcName]
	if !ok {
		c.mu.Unlock()
		return
	}
	p.SinkMode = sinkMode
	p.FinsUp = finsUp
	p.OpcuaUp = opcuaUp
	p.ConsecutiveReadFailures = readFailures
	p.ConsecutiveWriteFailures = writeFailures
	p.LastHeartbeat = heartbeat
	p.LastCycleAt = time.Now()
	p.CyclesCompleted++
	if csvPath != "" {
		p.CSVPath = csvPath
	}
	c.mu.Unlock()

	c.totalCycles.Add(1)
}

// AddLog appends a log entry to the ring buffer.
func (c *Collector) AddLog(entry LogEntry) {
	c.logMu.Lock()
	defer c.logMu.Unlock()
	if len(c.logs) >= c.logCap {
		n := c.logCap / 4
		copy(c.logs, c.logs[n:])
		c.logs = c.logs[:len(c.logs)-n]
	}
	c.logs = append(c.logs, entry)
}

// Logs returns a copy of recent log entries.
func (c *Collector) Logs() []LogEntry {
	c.logMu.Lock()
	defer c.logMu.Unlock()
	out := make([]LogEntry, len(c.logs))
	copy(out, c.logs)
	return out
}

// Snapshot returns the current metrics state (thread-safe).
func (c *Collector) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	plcs := make([]PLCSnapshot, 0, len(c.plcOrder))
	for _, name := range c.plcOrder {
		plcs = append(plcs, *c.plcs[name])
	}

	return Snapshot{
		Timestamp:   time.Now(),
		TotalCycles: c.totalCycles.Load(),
		PLCs:        plcs,
	}
}

// Subscribe returns a channel that receives periodic Snapshot updates.
func (c *Collector) Subscribe() chan Snapshot {
	ch := make(chan Snapshot, 4)
	c.subMu.Lock()
	c.subscribers[ch] = struct{}{}
	c.subMu.Unlock()
	return ch
}

// Unsubscribe removes a subscription channel.
func (c *Collector) Unsubscribe(ch chan Snapshot) {
	c.subMu.Lock()
	delete(c.subscribers, ch)
	c.subMu.Unlock()
}

// Close stops the broadcast loop.
func (c *Collector) Close() {
	select {
	case <-c.done:
	default:
		close(c.done)
	}
}

func (c *Collector) broadcastLoop() {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			snap := c.Snapshot()
			c.subMu.Lock()
			for ch := range c.subscribers {
				select {
				case ch <- snap:
				default:
					// Subscriber too slow, skip.
				}
			}
			c.subMu.Unlock()
		}
	}
}
