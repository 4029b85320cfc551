package fins

import (
	"context"
	"encoding/binary"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/plantdata/finsbridge/internal/config"
)

const (
	icfCommandResponseIsRequired = 0x80
	cmdCodeMemoryAreaReadHi      = 0x01
	cmdCodeMemoryAreaReadLo      = 0x01
	cmdCodeCPUUnitReadHi         = 0x05
	cmdCodeCPUUnitReadLo         = 0x01

	headerSize = 10
)

// UDPClient is the real Client implementation: it speaks the FINS/UDP
// command-response protocol over a net.UDPConn. Every call issues one
// request frame and blocks for the next response datagram, bounded by ctx;
// the response's SID is not checked against the request's.
type UDPClient struct {
	addr string

	mu      sync.Mutex
	conn    *net.UDPConn
	sid     byte
	localSA byte
	destDA  byte
}

// NewUDPClient creates a client targeting host:port, where host is the
// PLC's IP address. The FINS node addresses used in the header are derived
// from the low byte of each side's IP, which is the common convention for
// PLCs configured with default FINS node numbering.
func NewUDPClient(host string, port int) *UDPClient {
	return &UDPClient{addr: fmt.Sprintf("%s:%d", host, port)}
}

func (c *UDPClient) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	raddr, err := net.ResolveUDPAddr("udp", c.addr)
	if err != nil {
		return fmt.Errorf("fins: resolve %s: %w", c.addr, err)
	}

	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return fmt.Errorf("fins: dial %s: %w", c.addr, err)
	}

	c.conn = conn
	c.destDA = raddr.IP.To4()[3]
	if laddr, ok := conn.LocalAddr().(*net.UDPAddr); ok && laddr.IP.To4() != nil {
		c.localSA = laddr.IP.To4()[3]
	}
	return nil
}

func (c *UDPClient) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

func (c *UDPClient) CPUUnitDetailsRead(ctx context.Context) (CPUUnitDetails, error) {
	resp, err := c.roundTrip(ctx, []byte{cmdCodeCPUUnitReadHi, cmdCodeCPUUnitReadLo}, nil)
	if err != nil {
		return CPUUnitDetails{}, err
	}
	if len(resp) < 20 {
		return CPUUnitDetails{}, fmt.Errorf("fins: cpu unit data read response too short (%d bytes)", len(resp))
	}
	return CPUUnitDetails{
		ControllerModel:   trimPrintable(resp[0:20]),
		ControllerVersion: trimPrintable(resp[20:min(40, len(resp))]),
	}, nil
}

func (c *UDPClient) Read(ctx context.Context, area config.MemoryArea, address uint32, dtype config.DataType) ([]uint16, error) {
	return c.BatchRead(ctx, area, address, uint32(dtype.WordWidth(0)), dtype)
}

func (c *UDPClient) BatchRead(ctx context.Context, area config.MemoryArea, start uint32, count uint32, dtype config.DataType) ([]uint16, error) {
	data := make([]byte, 6)
	data[0] = areaCode(area)
	binary.BigEndian.PutUint16(data[1:3], uint16(start))
	data[3] = 0x00 // bit address, always word access
	binary.BigEndian.PutUint16(data[4:6], uint16(count))

	resp, err := c.roundTrip(ctx, []byte{cmdCodeMemoryAreaReadHi, cmdCodeMemoryAreaReadLo}, data)
	if err != nil {
		return nil, err
	}
	if len(resp)%2 != 0 {
		return nil, fmt.Errorf("fins: memory area read returned an odd byte count (%d)", len(resp))
	}

	words := make([]uint16, len(resp)/2)
	for i := range words {
		words[i] = binary.BigEndian.Uint16(resp[i*2 : i*2+2])
	}
	return words, nil
}

// roundTrip sends one FINS command frame and waits for its response,
// honoring ctx's deadline (5s when ctx has none) and ctx's cancellation,
// which unblocks a pending read at once. It returns the response's data payload (the
// bytes after the two-byte end code), having already checked that the end
// code signals normal completion.
func (c *UDPClient) roundTrip(ctx context.Context, cmdCode []byte, data []byte) ([]byte, error) {
	c.mu.Lock()
	conn := c.conn
	if conn == nil {
		c.mu.Unlock()
		return nil, fmt.Errorf("fins: not connected")
	}
	c.sid++
	sid := c.sid
	localSA, destDA := c.localSA, c.destDA
	c.mu.Unlock()

	frame := buildFrame(localSA, destDA, sid, cmdCode, data)

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	} else {
		_ = conn.SetDeadline(time.Now().Add(5 * time.Second))
	}
	defer conn.SetDeadline(time.Time{})
	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Now()) })
	defer stop()

	if _, err := conn.Write(frame); err != nil {
		return nil, fmt.Errorf("fins: write request: %w", err)
	}

	buf := make([]byte, 2048)
	n, err := conn.Read(buf)
	if err != nil {
		return nil, fmt.Errorf("fins: read response: %w", err)
	}
	resp := buf[:n]

	if len(resp) < headerSize+4 {
		return nil, fmt.Errorf("fins: response too short (%d bytes)", len(resp))
	}

	endCode := resp[headerSize+2 : headerSize+4]
	if endCode[0] != 0x00 || endCode[1] != 0x00 {
		return nil, fmt.Errorf("fins: end code %02x%02x", endCode[0], endCode[1])
	}

	return resp[headerSize+4:], nil
}

func buildFrame(localSA, destDA, sid byte, cmdCode []byte, data []byte) []byte {
	frame := make([]byte, 0, headerSize+len(cmdCode)+len(data))
	frame = append(frame,
		icfCommandResponseIsRequired, // ICF
		0x00,                         // RSV
		0x02,                         // GCT
		0x00, destDA, 0x00,           // DNA, DA1, DA2
		0x00, localSA, 0x00,          // SNA, SA1, SA2
		sid,                          // SID
	)
	frame = append(frame, cmdCode...)
	frame = append(frame, data...)
	return frame
}

func areaCode(a config.MemoryArea) byte {
	switch a {
	case config.AreaD:
		return 0x82
	case config.AreaH:
		return 0x32
	case config.AreaW:
		return 0x31
	case config.AreaC:
		return 0x30
	case config.AreaA:
		return 0x33
	default:
		return 0x82
	}
}

func trimPrintable(b []byte) string {
	end := len(b)
	for end > 0 && (b[end-1] == 0x00 || b[end-1] == ' ') {
		end--
	}
	return string(b[:end])
}
