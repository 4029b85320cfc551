package opcuasink

import (
	"context"
	"testing"

	"github.com/plantdata/finsbridge/internal/opcua"
	"github.com/plantdata/finsbridge/internal/sample"
	"github.com/plantdata/finsbridge/internal/testutil"
)

func TestSink_SuccessfulCycleStaysUp(t *testing.T) {
	client := testutil.NewFakeOpcuaClient()
	mapper := opcua.NewNodeMapper(map[string]string{"t1": "ns=2;s=t1"})
	s := New("plc-a", client, mapper)

	buf := sample.New(1)
	buf.Set("t1", sample.Int64(5))

	if err := s.WriteCycle(context.Background(), buf); err != nil {
		t.Fatalf("WriteCycle: %v", err)
	}
	if !s.Up() {
		t.Fatal("sink should remain up after a successful cycle")
	}
	if len(client.Written) != 1 || client.Written[0].TagName != "t1" {
		t.Errorf("Written = %+v", client.Written)
	}
}

func TestSink_WriteFailureDemotesPermanently(t *testing.T) {
	client := testutil.NewFakeOpcuaClient()
	client.WriteErr = context.DeadlineExceeded
	mapper := opcua.NewNodeMapper(map[string]string{"t1": "ns=2;s=t1"})
	s := New("plc-a", client, mapper)

	buf := sample.New(1)
	buf.Set("t1", sample.Int64(5))

	if err := s.WriteCycle(context.Background(), buf); err == nil {
		t.Fatal("expected write failure")
	}
	if s.Up() {
		t.Fatal("sink should be demoted after a write failure")
	}

	client.WriteErr = nil
	if err := s.WriteCycle(context.Background(), buf); err != nil {
		t.Fatalf("WriteCycle after demotion should be a no-op, got %v", err)
	}
	if s.Up() {
		t.Fatal("sink must not un-demote even if the client would now succeed")
	}
}

func TestSink_UnmappedTagIsSkipped(t *testing.T) {
	client := testutil.NewFakeOpcuaClient()
	mapper := opcua.NewNodeMapper(map[string]string{})
	s := New("plc-a", client, mapper)

	buf := sample.New(1)
	buf.Set("unmapped", sample.Int64(1))

	if err := s.WriteCycle(context.Background(), buf); err != nil {
		t.Fatalf("WriteCycle: %v", err)
	}
	if len(client.Written) != 0 {
		t.Errorf("expected no writes for an unmapped tag, got %+v", client.Written)
	}
}
