// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtu

import (
	"fmt"

	"github.com/ffutop/modbus-master/modbus"
	"github.com/ffutop/modbus-master/modbus/buffer"
	"github.com/ffutop/modbus-master/modbus/crc"
)

// CoilByteCount returns the number of bytes holding quantity packed coils.
func CoilByteCount(quantity uint16) int {
	count := int(quantity) / 8
	if quantity%8 != 0 {
		count++
	}
	return count
}

// RegisterByteCount returns the number of bytes holding quantity registers.
func RegisterByteCount(quantity uint16) int {
	return 2 * int(quantity)
}

// EncodeReadCoils replaces the buffer contents with a Read Coils request:
//
//	[SlaveID, 0x01, AddrHi, AddrLo, QtyHi, QtyLo]
func EncodeReadCoils(buf *buffer.Buffer, slaveID byte, address, quantity uint16) error {
	return encodeFixed(buf, slaveID, modbus.FuncCodeReadCoils, address, quantity)
}

// EncodeReadRegisters replaces the buffer contents with a register read request.
// functionCode selects holding (0x03) or input (0x04) registers.
func EncodeReadRegisters(buf *buffer.Buffer, slaveID, functionCode byte, address, quantity uint16) error {
	switch functionCode {
	case modbus.FuncCodeReadHoldingRegisters, modbus.FuncCodeReadInputRegisters:
	default:
		return fmt.Errorf("modbus: function code %#02x is not a register read", functionCode)
	}
	return encodeFixed(buf, slaveID, functionCode, address, quantity)
}

// EncodeWriteSingleCoil encodes ON as 0xFF00 and OFF as 0x0000.
func EncodeWriteSingleCoil(buf *buffer.Buffer, slaveID byte, address uint16, value bool) error {
	return encodeFixed(buf, slaveID, modbus.FuncCodeWriteSingleCoil, address, modbus.CoilValue(value))
}

func EncodeWriteSingleRegister(buf *buffer.Buffer, slaveID byte, address, value uint16) error {
	return encodeFixed(buf, slaveID, modbus.FuncCodeWriteSingleRegister, address, value)
}

// EncodeWriteMultipleCoils replaces the buffer contents with:
//
//	[SlaveID, 0x0F, AddrHi, AddrLo, QtyHi, QtyLo, ByteCount, PackedBits...]
func EncodeWriteMultipleCoils(buf *buffer.Buffer, slaveID byte, address uint16, values []bool) error {
	if len(values) == 0 || len(values) > 0xFFFF {
		return fmt.Errorf("%w: %d coils", modbus.ErrInvalidQuantity, len(values))
	}
	quantity := uint16(len(values))
	byteCount := CoilByteCount(quantity)
	if byteCount > 0xFF {
		return fmt.Errorf("%w: %d coils need %d data bytes", modbus.ErrInvalidQuantity, quantity, byteCount)
	}

	if err := encodeFixed(buf, slaveID, modbus.FuncCodeWriteMultipleCoils, address, quantity); err != nil {
		return err
	}
	if err := buf.PushByte(byte(byteCount)); err != nil {
		return err
	}
	return PackCoils(buf, values)
}

// EncodeWriteMultipleRegisters replaces the buffer contents with:
//
//	[SlaveID, 0x10, AddrHi, AddrLo, QtyHi, QtyLo, ByteCount, (RegHi, RegLo)...]
func EncodeWriteMultipleRegisters(buf *buffer.Buffer, slaveID byte, address uint16, values []uint16) error {
	if len(values) == 0 || len(values) > 0xFFFF {
		return fmt.Errorf("%w: %d registers", modbus.ErrInvalidQuantity, len(values))
	}
	quantity := uint16(len(values))
	byteCount := RegisterByteCount(quantity)
	if byteCount > 0xFF {
		return fmt.Errorf("%w: %d registers need %d data bytes", modbus.ErrInvalidQuantity, quantity, byteCount)
	}

	if err := encodeFixed(buf, slaveID, modbus.FuncCodeWriteMultipleRegisters, address, quantity); err != nil {
		return err
	}
	if err := buf.PushByte(byte(byteCount)); err != nil {
		return err
	}
	for _, v := range values {
		if err := buf.PushUint16(v); err != nil {
			return err
		}
	}
	return nil
}

// PackCoils appends values bit packed, LSB first within each byte, the last
// byte zero padded. At least one byte is emitted, even for no values.
func PackCoils(buf *buffer.Buffer, values []bool) error {
	var current byte
	for i, v := range values {
		if v {
			current |= 1 << uint(i%8)
		}
		if i%8 == 7 {
			if err := buf.PushByte(current); err != nil {
				return err
			}
			current = 0
		}
	}
	if len(values) == 0 || len(values)%8 != 0 {
		return buf.PushByte(current)
	}
	return nil
}

// AppendChecksum appends the CRC of the buffered frame, low byte first.
func AppendChecksum(buf *buffer.Buffer) error {
	if buf.Window() < ChecksumSize {
		return buffer.ErrExhausted
	}
	checksum := crc.Checksum(buf.Written())
	if err := buf.PushByte(byte(checksum)); err != nil {
		return err
	}
	return buf.PushByte(byte(checksum >> 8))
}

// encodeFixed clears buf and writes [SlaveID, Func, Hi(a), Lo(a), Hi(b), Lo(b)].
func encodeFixed(buf *buffer.Buffer, slaveID, functionCode byte, a, b uint16) error {
	buf.Clear()
	if buf.Window() < HeaderSize+4 {
		return buffer.ErrExhausted
	}
	if err := buf.PushByte(slaveID); err != nil {
		return err
	}
	if err := buf.PushByte(functionCode); err != nil {
		return err
	}
	if err := buf.PushUint16(a); err != nil {
		return err
	}
	return buf.PushUint16(b)
}
