package main

import (
	"context"
	"errors"

	"github.com/plantdata/finsbridge/internal/config"
	"github.com/plantdata/finsbridge/internal/fins"
	"github.com/plantdata/finsbridge/internal/opcua"
	"github.com/plantdata/finsbridge/internal/sample"
)

// finsUDPPort is the standard port OMRON PLCs listen on for FINS/UDP.
const finsUDPPort = 9600

// newLiveClients builds the real FINS UDP client for plc and an OPC UA
// client for its configured URL. There is no production-grade OPC UA wire
// implementation wired into this binary (see DESIGN.md); unreachableOpcuaClient
// always fails Connect, which is exactly the degraded-to-CSV path the
// Acquisition Loop is built to handle.
func newLiveClients(plc config.PLCConfig) (fins.Client, opcua.Client) {
	return fins.NewUDPClient(plc.IP, finsUDPPort), &unreachableOpcuaClient{url: plc.OpcuaURL}
}

// unreachableOpcuaClient is the opcua.Client seam filled by a real OPC UA
// stack at deployment time. It exists so the binary links and runs
// end-to-end (degrading every PLC to CSV-only) without fabricating a wire
// protocol implementation this pack has no grounding for.
type unreachableOpcuaClient struct {
	url string
}

func (c *unreachableOpcuaClient) Connect(ctx context.Context, url string) error {
	return errors.New("opcua: no client implementation wired into this build, falling back to csv")
}

func (c *unreachableOpcuaClient) Disconnect() error { return nil }

func (c *unreachableOpcuaClient) Write(ctx context.Context, tagName string, v sample.Value) error {
	return errors.New("opcua: no client implementation wired into this build")
}
