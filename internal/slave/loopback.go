// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package slave

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/ffutop/modbus-master/modbus"
	"github.com/ffutop/modbus-master/modbus/rtu"
	"github.com/ffutop/modbus-master/transport"
)

// ErrTimeout is returned by Loopback.ReadByte when the slave sent nothing,
// the in-process equivalent of a serial read timeout.
var ErrTimeout = errors.New("loopback: response timeout")

// Loopback is an in-process byte transport wired straight to a Handler.
//
// Written bytes are collected until Flush, or until the first ReadByte after
// a write, which marks the end of the request frame. The frame is checked,
// handed to the handler and the encoded reply queued for ReadByte. Frames
// with a bad checksum are dropped silently, as a real slave would.
type Loopback struct {
	mu      sync.Mutex
	handler transport.Handler
	request []byte
	reply   []byte
	logger  *slog.Logger

	// Tamper, if set, may rewrite each encoded reply before it is queued.
	Tamper func(frame []byte) []byte
}

func NewLoopback(handler transport.Handler) *Loopback {
	return &Loopback{
		handler: handler,
		logger:  slog.Default(),
	}
}

func (l *Loopback) WriteByte(c byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.request) >= rtu.MaxSize {
		return errors.New("loopback: request frame too long")
	}
	l.request = append(l.request, c)
	return nil
}

// Flush ends the pending request frame and runs it through the handler.
func (l *Loopback) Flush() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.dispatch()
	return nil
}

func (l *Loopback) ReadByte() (byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.request) > 0 {
		l.dispatch()
	}
	if len(l.reply) == 0 {
		return 0, ErrTimeout
	}
	c := l.reply[0]
	l.reply = l.reply[1:]
	return c, nil
}

// Pending returns the number of reply bytes not read yet.
func (l *Loopback) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.reply)
}

func (l *Loopback) dispatch() {
	frame := l.request
	l.request = nil
	if len(frame) == 0 {
		return
	}
	// A new request discards any unread reply.
	l.reply = nil

	adu, err := rtu.Decode(frame)
	if err != nil {
		l.logger.Debug("loopback: dropping request", "error", err)
		return
	}

	resp, err := l.handler(context.Background(), adu.SlaveID, adu.Pdu)
	if errors.Is(err, transport.ErrNoResponse) {
		return
	}
	if err != nil {
		l.logger.Warn("loopback: handler failed", "error", err)
		resp = modbus.ProtocolDataUnit{
			FunctionCode: adu.Pdu.FunctionCode | modbus.ExceptionFlag,
			Data:         []byte{modbus.ExceptionCodeServerDeviceFailure},
		}
	}

	out := rtu.ApplicationDataUnit{SlaveID: adu.SlaveID, Pdu: resp}
	raw, err := out.Encode()
	if err != nil {
		l.logger.Warn("loopback: encode reply failed", "error", err)
		return
	}
	if l.Tamper != nil {
		raw = l.Tamper(raw)
	}
	l.reply = raw
}
