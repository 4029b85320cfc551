// Package fins defines the narrow interface the acquisition loop uses to
// talk to an OMRON PLC over the FINS protocol, and a real UDP
// implementation of it. The core only ever depends on the Client
// interface; acquisition loop tests drive a fake implementation instead.
package fins

import (
	"context"

	"github.com/plantdata/finsbridge/internal/config"
)

// CPUUnitDetails is the subset of the FINS "CPU Unit Data Read" response
// the bridge cares about. It exists purely as a reachability probe: a UDP
// socket can open against a dead peer, so the loop issues this read right
// after connect to confirm the PLC actually answers.
type CPUUnitDetails struct {
	ControllerModel   string
	ControllerVersion string
}

// Client is the collaborator the acquisition loop depends on for all FINS
// traffic. A real PLC is reached through UDPClient; loop tests substitute
// a fake that never touches the network.
type Client interface {
	// Connect opens the underlying transport. It does not by itself prove
	// the PLC is reachable — see CPUUnitDetailsRead.
	Connect(ctx context.Context) error

	// Disconnect releases the transport. Safe to call on an already-closed
	// or never-opened client.
	Disconnect() error

	// CPUUnitDetailsRead issues a controller data read. Its only purpose
	// in this bridge is to confirm the PLC actually answers FINS
	// requests; a UDP connect alone cannot detect a dead peer.
	CPUUnitDetailsRead(ctx context.Context) (CPUUnitDetails, error)

	// Read fetches the words backing a single tag mapping.
	Read(ctx context.Context, area config.MemoryArea, address uint32, dtype config.DataType) ([]uint16, error)

	// BatchRead fetches count contiguous words starting at start, for a
	// run of tags the planner grouped together. dtype is carried through
	// only so a real implementation can log it; the word count is already
	// resolved by the caller.
	BatchRead(ctx context.Context, area config.MemoryArea, start uint32, count uint32, dtype config.DataType) ([]uint16, error)
}
