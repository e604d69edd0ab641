package wire

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

var (
	ErrConnClosed  = errors.New("wire: connection closed")
	ErrInvalidResp = errors.New("wire: invalid response")
)

// MessageType identifies the frame types of the protocol.
type MessageType uint8

const (
	MsgRequest  MessageType = 0x01
	MsgResponse MessageType = 0x02
	MsgError    MessageType = 0x03
)

const maxFrameSize = 64 * 1024 * 1024

// Conn is a persistent two-party connection to one potential server.
// Responses are matched to requests by ID, so several calls may be in
// flight concurrently, though the dispatcher opens one Conn per task.
type Conn struct {
	conn     net.Conn
	writeMu  sync.Mutex
	pending  sync.Map // requestID -> chan *response
	nextID   atomic.Uint32
	closed   atomic.Bool
	readDone chan struct{}
}

type response struct {
	data []byte
	err  error
}

// Dial opens a single connection attempt to addr.
func Dial(ctx context.Context, addr string) (*Conn, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("wire dial: %w", err)
	}
	c := &Conn{
		conn:     conn,
		readDone: make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// DialRetry dials addr up to attempts times, sleeping delay between
// attempts. It tolerates a server that is still starting up; the reference
// behavior is 10 attempts spaced 500ms apart.
func DialRetry(ctx context.Context, addr string, attempts int, delay time.Duration) (*Conn, error) {
	if attempts < 1 {
		attempts = 1
	}
	var lastErr error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}
		c, err := Dial(ctx, addr)
		if err == nil {
			return c, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("wire: no connection to %s after %d attempts: %w", addr, attempts, lastErr)
}

// Call sends one request and waits for its response.
// Frame layout: [u32 len][u8 type][u32 reqID][u16 methodLen][method][payload].
func (c *Conn) Call(ctx context.Context, method string, payload []byte) ([]byte, error) {
	if c.closed.Load() {
		return nil, ErrConnClosed
	}

	requestID := c.nextID.Add(1)
	respCh := make(chan *response, 1)
	c.pending.Store(requestID, respCh)
	defer c.pending.Delete(requestID)

	methodBytes := []byte(method)
	msgLen := 1 + 4 + 2 + len(methodBytes) + len(payload)

	buf := make([]byte, 4+msgLen)
	binary.BigEndian.PutUint32(buf[0:4], uint32(msgLen))
	buf[4] = byte(MsgRequest)
	binary.BigEndian.PutUint32(buf[5:9], requestID)
	binary.BigEndian.PutUint16(buf[9:11], uint16(len(methodBytes)))
	copy(buf[11:], methodBytes)
	copy(buf[11+len(methodBytes):], payload)

	c.writeMu.Lock()
	_, err := c.conn.Write(buf)
	c.writeMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("wire write: %w", err)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case resp := <-respCh:
		if resp.err != nil {
			return nil, resp.err
		}
		return resp.data, nil
	case <-c.readDone:
		return nil, ErrConnClosed
	}
}

// Calculate performs one Potential.calculate round trip. It either fully
// succeeds or fails with no result value.
func (c *Conn) Calculate(ctx context.Context, in *ForceInput) (*Result, error) {
	payload, err := in.MarshalBinary()
	if err != nil {
		return nil, err
	}
	data, err := c.Call(ctx, MethodCalculate, payload)
	if err != nil {
		return nil, err
	}
	var res Result
	if err := res.UnmarshalBinary(data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResp, err)
	}
	if len(res.Forces) != len(in.Pos) {
		return nil, fmt.Errorf("%w: %d forces for %d atoms", ErrInvalidResp, len(res.Forces), in.Natm)
	}
	return &res, nil
}

func (c *Conn) readLoop() {
	defer close(c.readDone)

	header := make([]byte, 4)
	for {
		if _, err := io.ReadFull(c.conn, header); err != nil {
			return
		}
		msgLen := binary.BigEndian.Uint32(header)
		if msgLen == 0 || msgLen > maxFrameSize {
			return
		}
		msg := make([]byte, msgLen)
		if _, err := io.ReadFull(c.conn, msg); err != nil {
			return
		}
		if len(msg) < 5 {
			continue
		}

		msgType := MessageType(msg[0])
		requestID := binary.BigEndian.Uint32(msg[1:5])
		payload := msg[5:]

		if ch, ok := c.pending.Load(requestID); ok {
			respCh := ch.(chan *response)
			switch msgType {
			case MsgResponse:
				respCh <- &response{data: payload}
			case MsgError:
				respCh <- &response{err: fmt.Errorf("wire: remote fault: %s", payload)}
			}
		}
	}
}

// RemoteAddr reports the server address this connection is bound to.
func (c *Conn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

func (c *Conn) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	return c.conn.Close()
}
