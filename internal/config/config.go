package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"regexp"
	"strconv"
	"time"
)

// HeartbeatTag is the sentinel tag name. It is never read from the PLC; its
// value is synthesized once per cycle and always written as the last column.
const HeartbeatTag = "HEARTBEAT"

// TagMapping is one addressable PLC memory location, immutable once loaded.
type TagMapping struct {
	TagName   string
	Area      MemoryArea
	Address   uint32
	Type      DataType
	StringLen int // only meaningful when Type == TypeString
}

// WordCount returns how many 16-bit words this mapping occupies.
func (m TagMapping) WordCount() uint32 {
	return uint32(m.Type.WordWidth(m.StringLen))
}

// ContiguousWith reports whether b immediately follows m in the same memory
// area, sharing the same data type, such that a single batch read can cover
// both. Two mappings are contiguous iff they share MemoryArea and DataType
// and their address words are consecutive given the word-width of the type.
func (m TagMapping) ContiguousWith(b TagMapping) bool {
	if m.Area != b.Area || m.Type != b.Type || m.StringLen != b.StringLen {
		return false
	}
	return m.Address+m.WordCount() == b.Address
}

// PLCConfig is one immutable per-PLC record.
type PLCConfig struct {
	Name          string
	IP            string
	OpcuaURL      string
	SleepInterval time.Duration
	Tags          []TagMapping // declared order, HEARTBEAT excluded
	HasHeartbeat  bool         // whether the operator declared HEARTBEAT explicitly
}

// ConfigError wraps a structural problem in the PLC configuration file.
// It is fatal: the bridge must not start any Acquisition Loop.
type ConfigError struct {
	Err error
}

func (e *ConfigError) Error() string { return fmt.Sprintf("config error: %v", e.Err) }
func (e *ConfigError) Unwrap() error { return e.Err }

// rawTagMapping mirrors the JSON shape of one address_mappings entry.
type rawTagMapping struct {
	TagName    string `json:"tag_name"`
	MemoryArea string `json:"memory_area"`
	Address    int64  `json:"address"`
	DataType   string `json:"data_type"`
}

// rawPLC mirrors the JSON shape of one top-level array entry.
type rawPLC struct {
	Name          string          `json:"plc_name"`
	IP            string          `json:"plc_ip"`
	OpcuaURL      string          `json:"opcua_url"`
	SleepInterval *float64        `json:"sleep_interval"`
	Mappings      []rawTagMapping `json:"address_mappings"`
}

var stringTypePattern = regexp.MustCompile(`^STRING\[(\d+)\]$`)

func parseDataType(s string) (DataType, int, error) {
	switch s {
	case "BOOL":
		return TypeBool, 0, nil
	case "CHANNEL":
		return TypeChannel, 0, nil
	case "INT16":
		return TypeInt16, 0, nil
	case "UINT16":
		return TypeUint16, 0, nil
	case "INT32":
		return TypeInt32, 0, nil
	case "UINT32":
		return TypeUint32, 0, nil
	case "REAL32":
		return TypeReal32, 0, nil
	}
	if m := stringTypePattern.FindStringSubmatch(s); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil || n <= 0 {
			return 0, 0, fmt.Errorf("invalid STRING length in %q", s)
		}
		return TypeString, n, nil
	}
	return 0, 0, fmt.Errorf("unknown data_type %q", s)
}

// Load reads and validates the PLC configuration file at path, returning one
// PLCConfig per top-level array entry in file order.
func Load(path string) ([]PLCConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Err: fmt.Errorf("read %s: %w", path, err)}
	}

	var raws []rawPLC
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, &ConfigError{Err: fmt.Errorf("parse %s: %w", path, err)}
	}

	var errs []error
	seen := make(map[string]bool, len(raws))
	out := make([]PLCConfig, 0, len(raws))

	for i, r := range raws {
		if r.Name == "" {
			errs = append(errs, fmt.Errorf("plc[%d]: plc_name is required", i))
			continue
		}
		if seen[r.Name] {
			errs = append(errs, fmt.Errorf("plc[%d]: duplicate plc_name %q", i, r.Name))
			continue
		}
		seen[r.Name] = true

		plc, plcErrs := parsePLC(r)
		if len(plcErrs) > 0 {
			for _, e := range plcErrs {
				errs = append(errs, fmt.Errorf("plc %q: %w", r.Name, e))
			}
			continue
		}
		out = append(out, plc)
	}

	if len(errs) > 0 {
		return nil, &ConfigError{Err: errors.Join(errs...)}
	}
	return out, nil
}

func parsePLC(r rawPLC) (PLCConfig, []error) {
	var errs []error

	if r.IP == "" {
		errs = append(errs, errors.New("plc_ip is required"))
	} else if net.ParseIP(r.IP) == nil {
		errs = append(errs, fmt.Errorf("plc_ip %q is not a valid IPv4 address", r.IP))
	}
	if r.OpcuaURL == "" {
		errs = append(errs, errors.New("opcua_url is required"))
	}

	sleep := 10 * time.Millisecond
	if r.SleepInterval != nil {
		if *r.SleepInterval < 0 {
			errs = append(errs, errors.New("sleep_interval must be non-negative"))
		} else {
			sleep = time.Duration(*r.SleepInterval * float64(time.Second))
		}
	}

	tagSeen := make(map[string]bool, len(r.Mappings))
	tags := make([]TagMapping, 0, len(r.Mappings))
	hasHeartbeat := false

	for j, m := range r.Mappings {
		if m.TagName == "" {
			errs = append(errs, fmt.Errorf("mapping[%d]: tag_name is required", j))
			continue
		}
		if tagSeen[m.TagName] {
			errs = append(errs, fmt.Errorf("mapping[%d]: duplicate tag_name %q", j, m.TagName))
			continue
		}
		tagSeen[m.TagName] = true

		if m.TagName == HeartbeatTag {
			hasHeartbeat = true
			continue
		}

		area, err := ParseMemoryArea(m.MemoryArea)
		if err != nil {
			errs = append(errs, fmt.Errorf("mapping %q: %w", m.TagName, err))
			continue
		}
		if m.Address < 0 {
			errs = append(errs, fmt.Errorf("mapping %q: address must be non-negative", m.TagName))
			continue
		}
		dtype, strLen, err := parseDataType(m.DataType)
		if err != nil {
			errs = append(errs, fmt.Errorf("mapping %q: %w", m.TagName, err))
			continue
		}

		tags = append(tags, TagMapping{
			TagName:   m.TagName,
			Area:      area,
			Address:   uint32(m.Address),
			Type:      dtype,
			StringLen: strLen,
		})
	}

	return PLCConfig{
		Name:          r.Name,
		IP:            r.IP,
		OpcuaURL:      r.OpcuaURL,
		SleepInterval: sleep,
		Tags:          tags,
		HasHeartbeat:  hasHeartbeat,
	}, errs
}
