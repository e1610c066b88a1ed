// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtu

const (
	// MinSize covers slave id, function code and CRC.
	MinSize = 4
	MaxSize = 256

	HeaderSize   = 2
	ChecksumSize = 2

	// MaxRequestHeader is the header length needed by CalculateRequestLength
	// to size any supported request: [SlaveID, Func, Addr(2), Quant(2), ByteCount].
	MaxRequestHeader = 7
)
