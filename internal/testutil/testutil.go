// Package testutil provides fake collaborator implementations used to
// drive acquisition loop tests without a real PLC or OPC UA server.
package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/plantdata/finsbridge/internal/config"
	"github.com/plantdata/finsbridge/internal/fins"
	"github.com/plantdata/finsbridge/internal/sample"
)

// FakeFinsClient is a fins.Client whose behavior is entirely scripted by
// the test that constructs it.
type FakeFinsClient struct {
	mu sync.Mutex

	ConnectErr            error
	CPUUnitDetailsErr     error
	CPUUnitDetails        fins.CPUUnitDetails
	ReadErr               error
	BatchReadErr          error
	FailReadsAfterNCycles int // 0 disables; otherwise every read call after the first N fails

	// Words supplies the response for BatchRead/Read, keyed by
	// fmt.Sprintf("%d:%d", area, start).
	Words map[string][]uint16

	connected bool
	callCount int
}

func NewFakeFinsClient() *FakeFinsClient {
	return &FakeFinsClient{Words: make(map[string][]uint16)}
}

func (f *FakeFinsClient) Connect(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ConnectErr != nil {
		return f.ConnectErr
	}
	f.connected = true
	return nil
}

func (f *FakeFinsClient) Disconnect() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = false
	return nil
}

func (f *FakeFinsClient) CPUUnitDetailsRead(ctx context.Context) (fins.CPUUnitDetails, error) {
	if f.CPUUnitDetailsErr != nil {
		return fins.CPUUnitDetails{}, f.CPUUnitDetailsErr
	}
	return f.CPUUnitDetails, nil
}

func (f *FakeFinsClient) Read(ctx context.Context, area config.MemoryArea, address uint32, dtype config.DataType) ([]uint16, error) {
	return f.BatchRead(ctx, area, address, uint32(dtype.WordWidth(0)), dtype)
}

func (f *FakeFinsClient) BatchRead(ctx context.Context, area config.MemoryArea, start uint32, count uint32, dtype config.DataType) ([]uint16, error) {
	f.mu.Lock()
	f.callCount++
	calls := f.callCount
	f.mu.Unlock()

	if f.FailReadsAfterNCycles != 0 && calls > f.FailReadsAfterNCycles {
		return nil, fmt.Errorf("fake fins: simulated read failure")
	}
	if f.BatchReadErr != nil && count > 1 {
		return nil, f.BatchReadErr
	}
	if f.ReadErr != nil {
		return nil, f.ReadErr
	}

	key := fmt.Sprintf("%d:%d", area, start)
	if words, ok := f.Words[key]; ok {
		return words, nil
	}
	return make([]uint16, count), nil
}

// FakeOpcuaClient is an opcua.Client whose writes can be scripted to fail,
// used to exercise the sink's one-way demotion behavior.
type FakeOpcuaClient struct {
	mu sync.Mutex

	ConnectErr error
	WriteErr   error

	connected bool
	Written   []FakeWrite
}

type FakeWrite struct {
	TagName string
	Value   sample.Value
}

func NewFakeOpcuaClient() *FakeOpcuaClient {
	return &FakeOpcuaClient{}
}

func (c *FakeOpcuaClient) Connect(ctx context.Context, url string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ConnectErr != nil {
		return c.ConnectErr
	}
	c.connected = true
	return nil
}

func (c *FakeOpcuaClient) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
	return nil
}

func (c *FakeOpcuaClient) Write(ctx context.Context, tagName string, v sample.Value) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.WriteErr != nil {
		return c.WriteErr
	}
	c.Written = append(c.Written, FakeWrite{TagName: tagName, Value: v})
	return nil
}
