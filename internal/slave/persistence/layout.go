// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package persistence

import (
	"unsafe"

	"github.com/ffutop/modbus-master/internal/slave/model"
)

// On-disk image shared by the file and mmap backends:
//
//	coils              65536 bytes   offset 0
//	discrete inputs    65536 bytes   offset 65536
//	holding registers  131072 bytes  offset 131072
//	input registers    131072 bytes  offset 262144
const (
	sizeBits  = model.MaxAddress + 1
	sizeWords = (model.MaxAddress + 1) * 2
	imageSize = 2*sizeBits + 2*sizeWords

	offsetCoils    = 0
	offsetDiscrete = offsetCoils + sizeBits
	offsetHolding  = offsetDiscrete + sizeBits
	offsetInput    = offsetHolding + sizeWords
)

// modelOver returns a DataModel whose tables alias image.
// Registers are stored in host byte order, so an image is not portable
// between machines of different endianness.
func modelOver(image []byte) *model.DataModel {
	holding := image[offsetHolding : offsetHolding+sizeWords]
	input := image[offsetInput : offsetInput+sizeWords]
	return &model.DataModel{
		Coils:            image[offsetCoils : offsetCoils+sizeBits],
		DiscreteInputs:   image[offsetDiscrete : offsetDiscrete+sizeBits],
		HoldingRegisters: unsafe.Slice((*uint16)(unsafe.Pointer(&holding[0])), sizeWords/2),
		InputRegisters:   unsafe.Slice((*uint16)(unsafe.Pointer(&input[0])), sizeWords/2),
	}
}

// span returns the byte range of the image touched by a write.
func span(table model.TableType, address, quantity uint16) (off, n int) {
	switch table {
	case model.TableCoils:
		return offsetCoils + int(address), int(quantity)
	case model.TableDiscreteInputs:
		return offsetDiscrete + int(address), int(quantity)
	case model.TableHoldingRegisters:
		return offsetHolding + 2*int(address), 2 * int(quantity)
	case model.TableInputRegisters:
		return offsetInput + 2*int(address), 2 * int(quantity)
	}
	return 0, 0
}
