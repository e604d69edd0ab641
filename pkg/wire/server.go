package wire

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// CalculateFunc evaluates one ForceInput. Implementations are supplied by
// the potential package; the server owns only framing and dispatch.
type CalculateFunc func(ctx context.Context, in *ForceInput) (*Result, error)

// Server accepts potential clients and answers Potential.calculate
// requests, one response per request, over persistent connections.
type Server struct {
	listener net.Listener
	handler  CalculateFunc
	logger   *zap.Logger
	conns    sync.Map
	closed   atomic.Bool
}

// Listen binds addr and returns a server ready to Serve.
func Listen(addr string, handler CalculateFunc, logger *zap.Logger) (*Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("wire listen: %w", err)
	}
	return &Server{
		listener: listener,
		handler:  handler,
		logger:   logger,
	}, nil
}

// Addr returns the bound listen address.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Serve accepts connections until Close or context cancellation.
func (s *Server) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.Close()
	}()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.closed.Load() {
				return nil
			}
			// Transient accept failures (fd exhaustion and the like)
			// must not spin the loop.
			s.logger.Warn("accept failed", zap.Error(err))
			time.Sleep(50 * time.Millisecond)
			continue
		}
		go s.handleConn(ctx, conn)
	}
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	s.conns.Store(conn, struct{}{})
	defer s.conns.Delete(conn)

	s.logger.Debug("client connected", zap.String("remote", conn.RemoteAddr().String()))

	// Responses for one connection may be produced concurrently; frames
	// must not interleave.
	var writeMu sync.Mutex

	header := make([]byte, 4)
	for {
		if _, err := io.ReadFull(conn, header); err != nil {
			return
		}
		msgLen := binary.BigEndian.Uint32(header)
		if msgLen == 0 || msgLen > maxFrameSize {
			return
		}
		msg := make([]byte, msgLen)
		if _, err := io.ReadFull(conn, msg); err != nil {
			return
		}
		if len(msg) < 7 || MessageType(msg[0]) != MsgRequest {
			continue
		}
		requestID := binary.BigEndian.Uint32(msg[1:5])
		methodLen := binary.BigEndian.Uint16(msg[5:7])
		if len(msg) < 7+int(methodLen) {
			continue
		}
		method := string(msg[7 : 7+methodLen])
		payload := msg[7+methodLen:]

		go func() {
			data, err := s.dispatch(ctx, method, payload)
			s.sendResponse(conn, &writeMu, requestID, data, err)
		}()
	}
}

func (s *Server) dispatch(ctx context.Context, method string, payload []byte) ([]byte, error) {
	if method != MethodCalculate {
		return nil, fmt.Errorf("unknown method: %s", method)
	}
	var in ForceInput
	if err := in.UnmarshalBinary(payload); err != nil {
		return nil, err
	}
	res, err := s.handler(ctx, &in)
	if err != nil {
		return nil, err
	}
	return res.MarshalBinary()
}

func (s *Server) sendResponse(conn net.Conn, writeMu *sync.Mutex, requestID uint32, data []byte, err error) {
	var msgType MessageType
	var payload []byte
	if err != nil {
		msgType = MsgError
		payload = []byte(err.Error())
		s.logger.Warn("request failed", zap.Uint32("request_id", requestID), zap.Error(err))
	} else {
		msgType = MsgResponse
		payload = data
	}

	msgLen := 1 + 4 + len(payload)
	buf := make([]byte, 4+msgLen)
	binary.BigEndian.PutUint32(buf[0:4], uint32(msgLen))
	buf[4] = byte(msgType)
	binary.BigEndian.PutUint32(buf[5:9], requestID)
	copy(buf[9:], payload)

	writeMu.Lock()
	defer writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(30 * time.Second))
	conn.Write(buf)
}

// Close stops the listener and drops every live connection.
func (s *Server) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.conns.Range(func(key, _ interface{}) bool {
		key.(net.Conn).Close()
		return true
	})
	return s.listener.Close()
}
