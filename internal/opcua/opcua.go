// Package opcua defines the narrow interface the acquisition loop uses to
// push decoded samples to an OPC UA server, and the node-mapping helper
// that resolves tag names to node IDs. There is no write-back path: this
// bridge only reads from the PLC and only writes to OPC UA.
package opcua

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/plantdata/finsbridge/internal/sample"
)

// Client is the collaborator the acquisition loop writes samples through.
// The core never attempts to reconnect a Client once a write fails — see
// the sink's one-way demotion contract in internal/sinks/opcuasink.
type Client interface {
	Connect(ctx context.Context, url string) error
	Disconnect() error
	Write(ctx context.Context, tagName string, v sample.Value) error
}

// NodeMapper resolves a tag name to the OPC UA node ID it should be
// written to. It is loaded once, from a JSON descriptor file, before the
// loop enters RUNNING.
type NodeMapper struct {
	nodeIDs map[string]string
}

// NewNodeMapper wraps a pre-resolved tag-to-node map, mainly for tests.
func NewNodeMapper(nodeIDs map[string]string) *NodeMapper {
	return &NodeMapper{nodeIDs: nodeIDs}
}

// NodeID returns the node ID for tagName, or false if the descriptor does
// not declare one.
func (m *NodeMapper) NodeID(tagName string) (string, bool) {
	id, ok := m.nodeIDs[tagName]
	return id, ok
}

// LoadNodeMapper polls path on a short interval until the descriptor file
// appears or ctx's deadline elapses. The descriptor is a flat JSON object
// mapping tag name to node ID, produced by a provisioning step external to
// this bridge.
func LoadNodeMapper(ctx context.Context, path string, pollInterval time.Duration) (*NodeMapper, error) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		raw, err := os.ReadFile(path)
		if err == nil {
			var nodeIDs map[string]string
			if err := json.Unmarshal(raw, &nodeIDs); err != nil {
				return nil, fmt.Errorf("opcua: parse node descriptor %s: %w", path, err)
			}
			return &NodeMapper{nodeIDs: nodeIDs}, nil
		}
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("opcua: read node descriptor %s: %w", path, err)
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("opcua: node descriptor %s did not appear: %w", path, ctx.Err())
		case <-ticker.C:
		}
	}
}
