// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package client

import (
	"encoding/binary"

	"github.com/ffutop/modbus-master/modbus"
)

// Response is a view of a captured reply frame. It aliases the client's
// scratch buffer and is valid until the next request on the same client.
type Response struct {
	frame   []byte
	trailer int
}

// Frame returns the raw frame as read from the wire, checksum included.
func (r Response) Frame() []byte {
	return r.frame
}

func (r Response) SlaveID() byte {
	return r.frame[0]
}

func (r Response) FunctionCode() byte {
	return r.frame[1]
}

// Payload returns the bytes between the function code and the checksum.
func (r Response) Payload() []byte {
	return r.frame[2 : len(r.frame)-r.trailer]
}

// IsRead reports whether the reply carries a byte count and data.
func (r Response) IsRead() bool {
	switch r.FunctionCode() {
	case modbus.FuncCodeReadCoils,
		modbus.FuncCodeReadDiscreteInputs,
		modbus.FuncCodeReadHoldingRegisters,
		modbus.FuncCodeReadInputRegisters:
		return true
	}
	return false
}

// ByteCount returns the length prefix of a read reply, 0 for writes.
func (r Response) ByteCount() int {
	if !r.IsRead() {
		return 0
	}
	return int(r.Payload()[0])
}

// Data returns the data bytes of a read reply or the 4 byte echo of a write.
func (r Response) Data() []byte {
	if r.IsRead() {
		return r.Payload()[1:]
	}
	return r.Payload()
}

// Coil returns coil i (relative to the start address) of a Read Coils reply.
func (r Response) Coil(i int) bool {
	return r.Data()[i/8]&(1<<uint(i%8)) != 0
}

// Register returns register i (relative to the start address) of a register read.
func (r Response) Register(i int) uint16 {
	return binary.BigEndian.Uint16(r.Data()[2*i:])
}

// Address returns the echoed start address of a write reply.
func (r Response) Address() uint16 {
	return binary.BigEndian.Uint16(r.Payload()[0:2])
}

// Value returns the echoed value (0x05, 0x06) or quantity (0x0F, 0x10) of a write reply.
func (r Response) Value() uint16 {
	return binary.BigEndian.Uint16(r.Payload()[2:4])
}

// Coils appends the first n coils of a Read Coils reply to dst.
func (r Response) Coils(dst []bool, n int) []bool {
	for i := 0; i < n; i++ {
		dst = append(dst, r.Coil(i))
	}
	return dst
}

// Registers appends every register of a register read reply to dst.
func (r Response) Registers(dst []uint16) []uint16 {
	for i := 0; i < len(r.Data())/2; i++ {
		dst = append(dst, r.Register(i))
	}
	return dst
}
