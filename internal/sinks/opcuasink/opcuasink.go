// Package opcuasink wraps an opcua.Client with the liveness bookkeeping
// the acquisition loop needs: once a write fails the sink demotes itself
// and stays demoted for the rest of the loop's life. There is no
// reconnection path — see the note on opcua.Client.
package opcuasink

import (
	"context"
	"fmt"

	"github.com/plantdata/finsbridge/internal/opcua"
	"github.com/plantdata/finsbridge/internal/sample"
)

// Sink tracks opcua_up and consecutive_write_failures for one loop's OPC
// UA client, demoting itself permanently on the first write error.
type Sink struct {
	client  opcua.Client
	mapper  *opcua.NodeMapper
	plcName string

	up                      bool
	consecutiveWriteFailure int
}

// New wraps an already-connected client and its node mapper. up starts
// true: the caller only constructs a Sink after a successful Connect.
func New(plcName string, client opcua.Client, mapper *opcua.NodeMapper) *Sink {
	return &Sink{plcName: plcName, client: client, mapper: mapper, up: true}
}

// Up reports whether this sink is still eligible to receive writes. It is
// monotonically non-increasing after the first demotion.
func (s *Sink) Up() bool { return s.up }

// ConsecutiveWriteFailures returns the current streak of cycles whose
// writes failed, reset to zero by WriteCycle whenever every write in a
// cycle succeeds.
func (s *Sink) ConsecutiveWriteFailures() int { return s.consecutiveWriteFailure }

// WriteCycle writes every value in buf to its mapped node, in declared
// order. The first failure demotes the sink and aborts the remaining
// writes for this cycle — there is nothing to gain from continuing once
// the client is assumed dead.
func (s *Sink) WriteCycle(ctx context.Context, buf *sample.Buffer) error {
	if !s.up {
		return nil
	}

	var firstErr error
	buf.Each(func(tagName string, v sample.Value) {
		if firstErr != nil || !s.up {
			return
		}
		nodeID, ok := s.mapper.NodeID(tagName)
		if !ok {
			return
		}
		_ = nodeID // real client resolves the node ID internally from tagName
		if err := s.client.Write(ctx, tagName, v); err != nil {
			s.up = false
			firstErr = fmt.Errorf("opcuasink: write %s: %w", tagName, err)
		}
	})

	if firstErr != nil {
		s.consecutiveWriteFailure++
		return firstErr
	}
	s.consecutiveWriteFailure = 0
	return nil
}

// Close disconnects the underlying client. Safe to call even after
// demotion.
func (s *Sink) Close() error {
	return s.client.Disconnect()
}
