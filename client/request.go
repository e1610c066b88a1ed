// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package client

import (
	"errors"
	"fmt"

	"github.com/ffutop/modbus-master/modbus"
	"github.com/ffutop/modbus-master/modbus/buffer"
	"github.com/ffutop/modbus-master/modbus/rtu"
)

// request carries the state shared by every builder.
type request struct {
	client  *Client
	address uint16
	leased  bool
	done    bool
}

// Release gives the buffer lease back without sending. It is a no-op after Send.
func (r *request) Release() {
	if r.done {
		return
	}
	r.done = true
	if r.leased {
		r.client.release()
	}
}

func (r *request) send(t Transport, functionCode byte, quantity uint16, limit int, encode func(buf *buffer.Buffer) error) (Response, error) {
	if r.done {
		return Response{}, ErrRequestSent
	}
	if !r.leased {
		r.done = true
		return Response{}, ErrBufferInUse
	}
	defer r.Release()

	c := r.client
	resp, err := r.exchange(t, functionCode, quantity, limit, encode)
	c.stats.record(err)
	if err != nil {
		return Response{}, err
	}
	return resp, nil
}

func (r *request) exchange(t Transport, functionCode byte, quantity uint16, limit int, encode func(buf *buffer.Buffer) error) (Response, error) {
	c := r.client
	if quantity == 0 || (c.limits && int(quantity) > limit) {
		return Response{}, fmt.Errorf("%w: %d for function %#02x", modbus.ErrInvalidQuantity, quantity, functionCode)
	}
	if need := rtu.ExpectedResponseLength(functionCode, quantity); need > c.buf.Cap() {
		return Response{}, fmt.Errorf("modbus: response of %d bytes does not fit %d byte buffer: %w", need, c.buf.Cap(), buffer.ErrExhausted)
	}

	if err := encode(c.buf); err != nil {
		return Response{}, fmt.Errorf("failed to encode request: %w", err)
	}
	if err := rtu.AppendChecksum(c.buf); err != nil {
		return Response{}, fmt.Errorf("failed to encode request: %w", err)
	}

	c.trace("send to modbus slave", "request", c.buf.Written())
	for _, b := range c.buf.Written() {
		if err := t.WriteByte(b); err != nil {
			return Response{}, &modbus.TransportError{Op: modbus.OpWrite, Err: err}
		}
	}
	if f, ok := t.(Flusher); ok {
		if err := f.Flush(); err != nil {
			return Response{}, &modbus.TransportError{Op: modbus.OpWrite, Err: err}
		}
	}

	frame, err := c.decoder.ReadResponse(t, c.slaveID, functionCode, quantity)
	if err != nil {
		var ex *modbus.ExceptionError
		if errors.As(err, &ex) {
			c.trace("exception from modbus slave", "response", c.buf.Written())
		}
		return Response{}, err
	}
	c.trace("recv from modbus slave", "response", frame)

	trailer := rtu.ChecksumSize
	if c.decoder.SkipChecksum {
		trailer = 0
	}
	return Response{frame: frame, trailer: trailer}, nil
}

// ReadCoilsRequest builds a Read Coils request.
type ReadCoilsRequest struct {
	request
	quantity uint16
}

func (r *ReadCoilsRequest) Quantity(quantity uint16) *ReadCoilsRequest {
	r.quantity = quantity
	return r
}

// Send transmits the request over t and waits for the reply.
func (r *ReadCoilsRequest) Send(t Transport) (Response, error) {
	c := r.client
	return r.send(t, modbus.FuncCodeReadCoils, r.quantity, modbus.MaxReadCoils, func(buf *buffer.Buffer) error {
		return rtu.EncodeReadCoils(buf, c.slaveID, r.address, r.quantity)
	})
}

// ReadRegistersRequest builds a register read request.
type ReadRegistersRequest struct {
	request
	functionCode byte
	quantity     uint16
}

func (r *ReadRegistersRequest) Quantity(quantity uint16) *ReadRegistersRequest {
	r.quantity = quantity
	return r
}

func (r *ReadRegistersRequest) Send(t Transport) (Response, error) {
	c := r.client
	return r.send(t, r.functionCode, r.quantity, modbus.MaxReadRegisters, func(buf *buffer.Buffer) error {
		return rtu.EncodeReadRegisters(buf, c.slaveID, r.functionCode, r.address, r.quantity)
	})
}

// WriteCoilsRequest builds a single or multiple coil write.
type WriteCoilsRequest struct {
	request
	values []bool
}

// Values sets the coils to write starting at the request address.
// The slice is not copied and must stay unchanged until Send returns.
func (r *WriteCoilsRequest) Values(values ...bool) *WriteCoilsRequest {
	r.values = values
	return r
}

func (r *WriteCoilsRequest) Send(t Transport) (Response, error) {
	c := r.client
	if len(r.values) == 1 {
		return r.send(t, modbus.FuncCodeWriteSingleCoil, 1, 1, func(buf *buffer.Buffer) error {
			return rtu.EncodeWriteSingleCoil(buf, c.slaveID, r.address, r.values[0])
		})
	}
	return r.send(t, modbus.FuncCodeWriteMultipleCoils, quantityOf(len(r.values)), modbus.MaxWriteCoils, func(buf *buffer.Buffer) error {
		return rtu.EncodeWriteMultipleCoils(buf, c.slaveID, r.address, r.values)
	})
}

// WriteRegistersRequest builds a single or multiple register write.
type WriteRegistersRequest struct {
	request
	values []uint16
}

// Values sets the registers to write starting at the request address.
// The slice is not copied and must stay unchanged until Send returns.
func (r *WriteRegistersRequest) Values(values ...uint16) *WriteRegistersRequest {
	r.values = values
	return r
}

func (r *WriteRegistersRequest) Send(t Transport) (Response, error) {
	c := r.client
	if len(r.values) == 1 {
		return r.send(t, modbus.FuncCodeWriteSingleRegister, 1, 1, func(buf *buffer.Buffer) error {
			return rtu.EncodeWriteSingleRegister(buf, c.slaveID, r.address, r.values[0])
		})
	}
	return r.send(t, modbus.FuncCodeWriteMultipleRegisters, quantityOf(len(r.values)), modbus.MaxWriteRegisters, func(buf *buffer.Buffer) error {
		return rtu.EncodeWriteMultipleRegisters(buf, c.slaveID, r.address, r.values)
	})
}

// quantityOf maps lengths that do not fit 16 bits to 0, which send rejects.
func quantityOf(n int) uint16 {
	if n > 0xFFFF {
		return 0
	}
	return uint16(n)
}
