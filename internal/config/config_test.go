package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "plc_data.json")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_SinglePLC(t *testing.T) {
	path := writeConfig(t, `[
		{
			"plc_name": "line1",
			"plc_ip": "10.0.0.5",
			"opcua_url": "opc.tcp://localhost:4840",
			"sleep_interval": 0.05,
			"address_mappings": [
				{"tag_name": "t1", "memory_area": "D", "address": 100, "data_type": "INT16"},
				{"tag_name": "t2", "memory_area": "D", "address": 101, "data_type": "INT16"},
				{"tag_name": "t3", "memory_area": "D", "address": 200, "data_type": "INT16"}
			]
		}
	]`)

	plcs, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(plcs) != 1 {
		t.Fatalf("len(plcs) = %d, want 1", len(plcs))
	}
	p := plcs[0]
	if p.Name != "line1" || p.IP != "10.0.0.5" {
		t.Errorf("unexpected PLC: %+v", p)
	}
	if p.SleepInterval.Seconds() != 0.05 {
		t.Errorf("SleepInterval = %v, want 50ms", p.SleepInterval)
	}
	if len(p.Tags) != 3 {
		t.Fatalf("len(Tags) = %d, want 3", len(p.Tags))
	}
	if p.Tags[0].TagName != "t1" || p.Tags[2].TagName != "t3" {
		t.Errorf("tag order not preserved: %+v", p.Tags)
	}
	if p.HasHeartbeat {
		t.Error("HasHeartbeat should be false when not declared")
	}
}

func TestLoad_DefaultSleepInterval(t *testing.T) {
	path := writeConfig(t, `[{"plc_name":"p","plc_ip":"10.0.0.1","opcua_url":"opc.tcp://x","address_mappings":[]}]`)
	plcs, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if plcs[0].SleepInterval.String() != "10ms" {
		t.Errorf("default SleepInterval = %v, want 10ms", plcs[0].SleepInterval)
	}
}

func TestLoad_DuplicatePLCName(t *testing.T) {
	path := writeConfig(t, `[
		{"plc_name":"dup","plc_ip":"10.0.0.1","opcua_url":"opc.tcp://x","address_mappings":[]},
		{"plc_name":"dup","plc_ip":"10.0.0.2","opcua_url":"opc.tcp://y","address_mappings":[]}
	]`)
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for duplicate plc_name")
	}
	if !strings.Contains(err.Error(), "duplicate plc_name") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestLoad_DuplicateTagName(t *testing.T) {
	path := writeConfig(t, `[{"plc_name":"p","plc_ip":"10.0.0.1","opcua_url":"opc.tcp://x","address_mappings":[
		{"tag_name":"t1","memory_area":"D","address":1,"data_type":"INT16"},
		{"tag_name":"t1","memory_area":"D","address":2,"data_type":"INT16"}
	]}]`)
	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "duplicate tag_name") {
		t.Fatalf("expected duplicate tag_name error, got %v", err)
	}
}

func TestLoad_HeartbeatDeclaredExplicitly(t *testing.T) {
	path := writeConfig(t, `[{"plc_name":"p","plc_ip":"10.0.0.1","opcua_url":"opc.tcp://x","address_mappings":[
		{"tag_name":"t1","memory_area":"D","address":1,"data_type":"INT16"},
		{"tag_name":"HEARTBEAT","memory_area":"D","address":999,"data_type":"BOOL"}
	]}]`)
	plcs, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if !plcs[0].HasHeartbeat {
		t.Error("HasHeartbeat should be true")
	}
	if len(plcs[0].Tags) != 1 {
		t.Errorf("HEARTBEAT must not appear in the read tag list, got %+v", plcs[0].Tags)
	}
}

func TestLoad_InvalidMemoryArea(t *testing.T) {
	path := writeConfig(t, `[{"plc_name":"p","plc_ip":"10.0.0.1","opcua_url":"opc.tcp://x","address_mappings":[
		{"tag_name":"t1","memory_area":"Z","address":1,"data_type":"INT16"}
	]}]`)
	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "unknown memory area") {
		t.Fatalf("expected unknown memory area error, got %v", err)
	}
}

func TestLoad_StringType(t *testing.T) {
	path := writeConfig(t, `[{"plc_name":"p","plc_ip":"10.0.0.1","opcua_url":"opc.tcp://x","address_mappings":[
		{"tag_name":"label","memory_area":"D","address":1,"data_type":"STRING[8]"}
	]}]`)
	plcs, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	tag := plcs[0].Tags[0]
	if tag.Type != TypeString || tag.StringLen != 8 {
		t.Errorf("unexpected tag: %+v", tag)
	}
	if tag.WordCount() != 4 {
		t.Errorf("WordCount() = %d, want 4 (ceil(8/2))", tag.WordCount())
	}
}

func TestLoad_InvalidIP(t *testing.T) {
	path := writeConfig(t, `[{"plc_name":"p","plc_ip":"not-an-ip","opcua_url":"opc.tcp://x","address_mappings":[]}]`)
	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "not a valid IPv4") {
		t.Fatalf("expected invalid IP error, got %v", err)
	}
}

func TestLoad_MalformedJSON(t *testing.T) {
	path := writeConfig(t, `not json at all`)
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected parse error")
	}
	if _, ok := err.(*ConfigError); !ok {
		t.Errorf("expected *ConfigError, got %T", err)
	}
}

func TestTagMapping_ContiguousWith(t *testing.T) {
	a := TagMapping{TagName: "a", Area: AreaD, Address: 100, Type: TypeInt16}
	b := TagMapping{TagName: "b", Area: AreaD, Address: 101, Type: TypeInt16}
	c := TagMapping{TagName: "c", Area: AreaD, Address: 102, Type: TypeInt32}

	if !a.ContiguousWith(b) {
		t.Error("a should be contiguous with b")
	}
	if a.ContiguousWith(c) {
		t.Error("a should not be contiguous with c (different type)")
	}

	d := TagMapping{TagName: "d", Area: AreaD, Address: 100, Type: TypeInt32}
	e := TagMapping{TagName: "e", Area: AreaD, Address: 102, Type: TypeInt32}
	if !d.ContiguousWith(e) {
		t.Error("32-bit mappings two words apart should be contiguous")
	}
}

func TestDataType_WordWidth(t *testing.T) {
	tests := []struct {
		dtype DataType
		n     int
		want  int
	}{
		{TypeBool, 0, 1},
		{TypeChannel, 0, 1},
		{TypeInt16, 0, 1},
		{TypeInt32, 0, 2},
		{TypeReal32, 0, 2},
		{TypeString, 7, 4},
		{TypeString, 8, 4},
	}
	for _, tt := range tests {
		if got := tt.dtype.WordWidth(tt.n); got != tt.want {
			t.Errorf("WordWidth(%v, %d) = %d, want %d", tt.dtype, tt.n, got, tt.want)
		}
	}
}
