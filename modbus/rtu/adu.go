// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtu

import (
	"fmt"

	"github.com/ffutop/modbus-master/modbus"
	"github.com/ffutop/modbus-master/modbus/buffer"
	"github.com/ffutop/modbus-master/modbus/crc"
)

// ApplicationDataUnit is a request or reply frame as handled by a slave.
type ApplicationDataUnit struct {
	SlaveID byte
	Pdu     modbus.ProtocolDataUnit
}

// Decode verifies the trailing CRC of a complete frame and splits off the
// slave id. The PDU data aliases frame.
func Decode(frame []byte) (*ApplicationDataUnit, error) {
	if len(frame) < MinSize {
		return nil, fmt.Errorf("modbus: frame of %d bytes is shorter than %d", len(frame), MinSize)
	}
	body := frame[:len(frame)-ChecksumSize]
	received := uint16(frame[len(frame)-2]) | uint16(frame[len(frame)-1])<<8
	if expected := crc.Checksum(body); received != expected {
		return nil, &modbus.ChecksumError{Expected: expected, Received: received}
	}
	return &ApplicationDataUnit{
		SlaveID: body[0],
		Pdu:     modbus.ProtocolDataUnit{FunctionCode: body[1], Data: body[HeaderSize:]},
	}, nil
}

// Encode returns the frame [SlaveID, Func, Data..., CRCLo, CRCHi] in a new slice.
func (adu *ApplicationDataUnit) Encode() ([]byte, error) {
	size := HeaderSize + len(adu.Pdu.Data) + ChecksumSize
	if size > MaxSize {
		return nil, fmt.Errorf("modbus: frame of %d bytes exceeds %d", size, MaxSize)
	}
	buf := buffer.New(make([]byte, size))
	if err := buf.PushByte(adu.SlaveID); err != nil {
		return nil, err
	}
	if err := buf.PushByte(adu.Pdu.FunctionCode); err != nil {
		return nil, err
	}
	if err := buf.PushBytes(adu.Pdu.Data); err != nil {
		return nil, err
	}
	if err := AppendChecksum(buf); err != nil {
		return nil, err
	}
	return buf.Written(), nil
}
