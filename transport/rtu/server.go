// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtu

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/grid-x/serial"

	"github.com/ffutop/modbus-master/internal/config"
	"github.com/ffutop/modbus-master/modbus"
	rtupacket "github.com/ffutop/modbus-master/modbus/rtu"
	"github.com/ffutop/modbus-master/transport"
)

// Server answers requests from an external master on a serial line.
type Server struct {
	Config config.SerialConfig

	mu   sync.Mutex
	port io.ReadWriteCloser
}

// NewServer creates a new RTU Server.
func NewServer(cfg config.SerialConfig) *Server {
	return &Server{
		Config: cfg,
	}
}

// Start opens the serial port and serves requests until ctx is done.
func (s *Server) Start(ctx context.Context, handler transport.Handler) error {
	sc := newSerialConfig(s.Config)
	port, err := serial.Open(&sc)
	if err != nil {
		return fmt.Errorf("failed to open serial port %s: %w", s.Config.Device, err)
	}
	s.mu.Lock()
	s.port = port
	s.mu.Unlock()
	defer s.Close()
	slog.Info("RTU Server listening", "device", s.Config.Device)

	go func() {
		<-ctx.Done()
		s.Close()
	}()

	return s.scanLoop(ctx, port, handler)
}

// scanLoop reads request frames one at a time and writes each reply before
// reading the next request.
func (s *Server) scanLoop(ctx context.Context, port io.ReadWriter, handler transport.Handler) error {
	buf := make([]byte, rtupacket.MaxSize)

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		n, err := rtupacket.ReadRequest(port, buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return nil
			}
			if n > 0 {
				slog.Debug("RTU Server dropping partial frame", "len", n, "err", err)
			}
			continue
		}

		adu, err := rtupacket.Decode(buf[:n])
		if err != nil {
			slog.Debug("RTU Server dropping frame", "err", err)
			continue
		}

		resp, err := handler(ctx, adu.SlaveID, adu.Pdu)
		if errors.Is(err, transport.ErrNoResponse) {
			continue
		}
		if err != nil {
			slog.Error("RTU Server handler failed", "slave_id", adu.SlaveID, "err", err)
			resp = modbus.ProtocolDataUnit{
				FunctionCode: adu.Pdu.FunctionCode | modbus.ExceptionFlag,
				Data:         []byte{modbus.ExceptionCodeServerDeviceFailure},
			}
		}

		reply := rtupacket.ApplicationDataUnit{SlaveID: adu.SlaveID, Pdu: resp}
		raw, err := reply.Encode()
		if err != nil {
			slog.Error("RTU Server failed to encode reply", "err", err)
			continue
		}
		if _, err := port.Write(raw); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			slog.Error("RTU Server failed to write reply", "err", err)
		}
	}
}

func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.port == nil {
		return nil
	}
	err := s.port.Close()
	s.port = nil
	return err
}
