// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package buffer provides the fixed-capacity scratch storage used to stage an
// outgoing frame and capture the reply.
package buffer

import "errors"

// ErrExhausted is returned when a byte is pushed into a full buffer.
var ErrExhausted = errors.New("buffer: capacity exhausted")

// Buffer is a bounded append log over caller-supplied storage.
// It never allocates and never grows.
type Buffer struct {
	storage []byte
	length  int
}

// New wraps storage. The capacity is len(storage).
func New(storage []byte) *Buffer {
	return &Buffer{storage: storage}
}

// Clear empties the buffer.
func (b *Buffer) Clear() {
	b.length = 0
}

// PushByte appends v. A full buffer is left unchanged.
func (b *Buffer) PushByte(v byte) error {
	if b.IsFull() {
		return ErrExhausted
	}
	b.storage[b.length] = v
	b.length++
	return nil
}

// PushUint16 appends v big endian. Either both bytes are written or none.
func (b *Buffer) PushUint16(v uint16) error {
	if b.Window() < 2 {
		return ErrExhausted
	}
	b.storage[b.length] = byte(v >> 8)
	b.storage[b.length+1] = byte(v)
	b.length += 2
	return nil
}

// PushBytes appends bs. Either all bytes are written or none.
func (b *Buffer) PushBytes(bs []byte) error {
	if b.Window() < len(bs) {
		return ErrExhausted
	}
	b.length += copy(b.storage[b.length:], bs)
	return nil
}

// Written returns the bytes pushed since the last Clear.
// The slice aliases the storage and is valid until the next Clear or PushByte.
func (b *Buffer) Written() []byte {
	return b.storage[:b.length:b.length]
}

func (b *Buffer) Len() int {
	return b.length
}

func (b *Buffer) Cap() int {
	return len(b.storage)
}

// Window returns the number of bytes that can still be pushed.
func (b *Buffer) Window() int {
	return len(b.storage) - b.length
}

func (b *Buffer) IsEmpty() bool {
	return b.length == 0
}

func (b *Buffer) IsFull() bool {
	return b.Window() == 0
}
