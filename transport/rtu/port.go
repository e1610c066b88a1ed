// Copyright (c) 2014 Quoc-Viet Nguyen. All rights reserved.
// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtu

import (
	"context"
	"encoding/hex"
	"errors"
	"log/slog"
	"time"

	"github.com/ffutop/modbus-master/internal/config"
	rtupacket "github.com/ffutop/modbus-master/modbus/rtu"
)

// ErrTimeout is returned by ReadByte when the line stayed silent for the
// configured read timeout.
var ErrTimeout = errors.New("rtu: read timeout")

// Port is a byte transport over a serial line for the client facade.
//
// Written bytes are staged and sent as one frame on Flush, followed by the
// inter-frame silence for the configured baud rate. Reads are buffered per
// syscall. The port opens lazily and closes after IdleTimeout without use.
type Port struct {
	serialPort

	staged []byte
	rbuf   [rtupacket.MaxSize]byte
	rpos   int
	rlen   int
}

// NewPort allocates a Port for the configured serial line. Nothing is opened yet.
func NewPort(cfg config.SerialConfig) *Port {
	p := &Port{}
	p.serialPort.Config = newSerialConfig(cfg)
	p.IdleTimeout = cfg.IdleTimeout
	if p.IdleTimeout == 0 {
		p.IdleTimeout = serialIdleTimeout
	}
	p.staged = make([]byte, 0, rtupacket.MaxSize)
	return p
}

// WriteByte stages c for the next Flush.
func (p *Port) WriteByte(c byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.staged) >= rtupacket.MaxSize {
		return errors.New("rtu: request frame too long")
	}
	p.staged = append(p.staged, c)
	return nil
}

// Flush writes the staged frame and waits for it to leave the line.
// Unread bytes of a previous reply are discarded.
func (p *Port) Flush() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	frame := p.staged
	p.staged = p.staged[:0]
	p.rpos, p.rlen = 0, 0
	if len(frame) == 0 {
		return nil
	}

	if err := p.connect(context.Background()); err != nil {
		return err
	}
	p.touch()

	if debugEnabled() {
		slog.Debug("send to modbus slave", "device", p.Address, "request", hex.EncodeToString(frame))
	}
	if _, err := p.port.Write(frame); err != nil {
		p.close()
		return err
	}
	time.Sleep(p.calculateDelay(len(frame)))
	return nil
}

// ReadByte returns the next received byte, blocking up to the read timeout.
func (p *Port) ReadByte() (byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.rpos == p.rlen {
		if err := p.connect(context.Background()); err != nil {
			return 0, err
		}
		n, err := p.port.Read(p.rbuf[:])
		if n <= 0 {
			if err == nil {
				err = ErrTimeout
			}
			return 0, err
		}
		p.touch()
		if debugEnabled() {
			slog.Debug("recv from modbus slave", "device", p.Address, "chunk", hex.EncodeToString(p.rbuf[:n]))
		}
		p.rpos, p.rlen = 0, n
	}
	c := p.rbuf[p.rpos]
	p.rpos++
	return c, nil
}

func debugEnabled() bool {
	return slog.Default().Enabled(context.Background(), slog.LevelDebug)
}
