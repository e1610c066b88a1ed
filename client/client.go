// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

/*
Package client is the Modbus RTU master facade.

A Client binds a slave address to one caller-supplied scratch buffer. Each
operation is a builder that holds the buffer lease from creation until it is
sent (or released), so at most one request is in flight per Client:

	c := client.New(0x11, make([]byte, 256))
	resp, err := c.ReadCoils(0x0013).Quantity(10).Send(port)

The returned Response aliases the scratch buffer and stays valid until the
next request is built.
*/
package client

import (
	"context"
	"encoding/hex"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"

	"github.com/ffutop/modbus-master/modbus"
	"github.com/ffutop/modbus-master/modbus/buffer"
	"github.com/ffutop/modbus-master/modbus/rtu"
)

var (
	ErrBufferInUse = errors.New("client: buffer is leased by another request")
	ErrRequestSent = errors.New("client: request already sent or released")
)

// Transport is a blocking byte sink and source. Each call moves one byte.
// A transport that stages writes may implement Flusher; it is flushed once
// the whole request has been written.
type Transport interface {
	io.ByteReader
	io.ByteWriter
}

type Flusher interface {
	Flush() error
}

// Client binds a slave address and the shared scratch buffer.
type Client struct {
	slaveID byte
	buf     *buffer.Buffer
	decoder *rtu.Decoder

	leased atomic.Bool
	limits bool
	logger *slog.Logger
	stats  Stats
}

type Option func(*Client)

// WithLogger sets the logger used for wire traces at debug level.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithProtocolLimits rejects quantities above the Modbus ceilings
// (2000/125 on read, 1968/123 on write) before anything is sent.
func WithProtocolLimits() Option {
	return func(c *Client) {
		c.limits = true
	}
}

// WithoutChecksumValidation stops the decoder from reading the CRC trailer of
// replies. Only useful for slaves that omit it.
func WithoutChecksumValidation() Option {
	return func(c *Client) {
		c.decoder.SkipChecksum = true
	}
}

// New creates a Client for slaveID. storage is used as the scratch buffer and
// is never resized; rtu.MaxSize bytes hold any Modbus RTU frame.
func New(slaveID byte, storage []byte, opts ...Option) *Client {
	buf := buffer.New(storage)
	c := &Client{
		slaveID: slaveID,
		buf:     buf,
		decoder: rtu.NewDecoder(buf),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) SlaveID() byte {
	return c.slaveID
}

// Stats returns the request counters of this client.
func (c *Client) Stats() *Stats {
	return &c.stats
}

// ReadCoils starts a Read Coils (0x01) request.
// The builder holds the client's buffer until Send or Release; a builder
// dropped without either leaves every later request failing with ErrBufferInUse.
func (c *Client) ReadCoils(address uint16) *ReadCoilsRequest {
	return &ReadCoilsRequest{request: c.newRequest(address)}
}

// ReadRegisters starts a register read with function code 0x04.
// The builder holds the client buffer until Send or Release.
func (c *Client) ReadRegisters(address uint16) *ReadRegistersRequest {
	return &ReadRegistersRequest{
		request:      c.newRequest(address),
		functionCode: modbus.FuncCodeReadRegisters,
	}
}

// ReadHoldingRegisters starts a register read with function code 0x03.
// The builder holds the client buffer until Send or Release.
func (c *Client) ReadHoldingRegisters(address uint16) *ReadRegistersRequest {
	return &ReadRegistersRequest{
		request:      c.newRequest(address),
		functionCode: modbus.FuncCodeReadHoldingRegisters,
	}
}

// WriteCoils starts a coil write: 0x05 for one value, 0x0F for several.
// The builder holds the client buffer until Send or Release.
func (c *Client) WriteCoils(address uint16) *WriteCoilsRequest {
	return &WriteCoilsRequest{request: c.newRequest(address)}
}

// WriteRegisters starts a register write: 0x06 for one value, 0x10 for several.
// The builder holds the client buffer until Send or Release.
func (c *Client) WriteRegisters(address uint16) *WriteRegistersRequest {
	return &WriteRegistersRequest{request: c.newRequest(address)}
}

func (c *Client) newRequest(address uint16) request {
	r := request{client: c, address: address}
	if c.leased.CompareAndSwap(false, true) {
		r.leased = true
	}
	return r
}

func (c *Client) release() {
	c.leased.Store(false)
}

func (c *Client) trace(msg, key string, frame []byte) {
	if !c.logger.Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	c.logger.Debug(msg, "slave", c.slaveID, key, hex.EncodeToString(frame))
}
