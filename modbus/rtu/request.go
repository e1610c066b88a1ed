// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtu

import (
	"fmt"
	"io"
)

// ReadRequest reads one request frame from r into buf and returns its length.
// It never reads past the end of the frame. Function codes without a known
// request layout are rejected after at most MaxRequestHeader bytes.
func ReadRequest(r io.Reader, buf []byte) (int, error) {
	current, err := readFull(r, buf, 0, HeaderSize)
	if err != nil {
		return current, err
	}

	need := MaxRequestHeader
	expected, err := CalculateRequestLength(buf[1], buf[:current])
	if err == nil {
		need = expected
	}
	if current, err = readFull(r, buf, current, need); err != nil {
		return current, err
	}
	if expected, err = CalculateRequestLength(buf[1], buf[:current]); err != nil {
		return current, err
	}
	if expected > len(buf) {
		return current, fmt.Errorf("modbus: request length %d exceeds %d", expected, len(buf))
	}
	if current, err = readFull(r, buf, current, expected); err != nil {
		return current, err
	}
	return expected, nil
}

// readFull fills buf[have:want] and returns the new fill level. A read
// returning no data and no error counts as a timeout.
func readFull(r io.Reader, buf []byte, have, want int) (int, error) {
	for have < want {
		n, err := r.Read(buf[have:want])
		have += n
		if err != nil {
			return have, err
		}
		if n == 0 {
			return have, io.ErrNoProgress
		}
	}
	return have, nil
}
