// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtuovertcp

import (
	"bufio"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/ffutop/modbus-master/internal/config"
	rtupacket "github.com/ffutop/modbus-master/modbus/rtu"
)

const (
	tcpTimeout     = 10 * time.Second
	tcpIdleTimeout = 60 * time.Second
)

var errNotConnected = errors.New("rtuovertcp: not connected")

// Conn is a byte transport carrying RTU frames over a TCP stream, as served
// by serial device servers in transparent mode.
//
// Written bytes are staged and sent as one segment on Flush. Every exchange
// runs under a single deadline of Timeout. Any I/O error drops the
// connection, which is redialled on the next Flush.
type Conn struct {
	Address     string
	Timeout     time.Duration
	IdleTimeout time.Duration

	mu           sync.Mutex
	conn         net.Conn
	reader       *bufio.Reader
	staged       []byte
	lastActivity time.Time
	closeTimer   *time.Timer
}

// NewConn allocates a Conn for cfg. Nothing is dialled yet.
func NewConn(cfg config.TcpConfig) *Conn {
	c := &Conn{
		Address:     cfg.Address,
		Timeout:     cfg.Timeout,
		IdleTimeout: cfg.IdleTimeout,
		staged:      make([]byte, 0, rtupacket.MaxSize),
	}
	if c.Timeout <= 0 {
		c.Timeout = tcpTimeout
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = tcpIdleTimeout
	}
	return c
}

// Connect dials the server if not connected yet.
func (c *Conn) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connect(ctx)
}

// connect ensures there is an active connection. Caller must hold the mutex.
func (c *Conn) connect(ctx context.Context) error {
	if c.conn != nil {
		return nil
	}
	dialer := net.Dialer{Timeout: c.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", c.Address)
	if err != nil {
		return fmt.Errorf("modbus: failed to connect to %s: %w", c.Address, err)
	}
	c.conn = conn
	if c.reader == nil {
		c.reader = bufio.NewReaderSize(conn, rtupacket.MaxSize)
	} else {
		c.reader.Reset(conn)
	}
	return nil
}

func (c *Conn) WriteByte(b byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.staged) >= rtupacket.MaxSize {
		return errors.New("rtuovertcp: request frame too long")
	}
	c.staged = append(c.staged, b)
	return nil
}

// Flush sends the staged frame and arms the exchange deadline.
func (c *Conn) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	frame := c.staged
	c.staged = c.staged[:0]
	if len(frame) == 0 {
		return nil
	}

	if err := c.connect(context.Background()); err != nil {
		return err
	}
	// Stale bytes from an abandoned reply would shift the next frame.
	c.reader.Reset(c.conn)
	c.touch()

	if err := c.conn.SetDeadline(time.Now().Add(c.Timeout)); err != nil {
		c.close()
		return err
	}
	if slog.Default().Enabled(context.Background(), slog.LevelDebug) {
		slog.Debug("send to modbus slave", "addr", c.Address, "request", hex.EncodeToString(frame))
	}
	if _, err := c.conn.Write(frame); err != nil {
		c.close()
		return fmt.Errorf("failed to write to connection: %w", err)
	}
	return nil
}

func (c *Conn) ReadByte() (byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return 0, errNotConnected
	}
	b, err := c.reader.ReadByte()
	if err != nil {
		c.close()
		return 0, err
	}
	return b, nil
}

func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closeTimer != nil {
		c.closeTimer.Stop()
	}
	return c.close()
}

// close closes the connection and resets the state. Caller must hold the mutex.
func (c *Conn) close() (err error) {
	if c.conn != nil {
		err = c.conn.Close()
		c.conn = nil
	}
	return
}

// touch records activity and rearms the idle timer. Caller must hold the mutex.
func (c *Conn) touch() {
	c.lastActivity = time.Now()
	if c.IdleTimeout <= 0 {
		return
	}
	if c.closeTimer == nil {
		c.closeTimer = time.AfterFunc(c.IdleTimeout, c.closeIdle)
	} else {
		c.closeTimer.Reset(c.IdleTimeout)
	}
}

func (c *Conn) closeIdle() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return
	}
	if idle := time.Since(c.lastActivity); idle >= c.IdleTimeout {
		slog.Debug("modbus: closing connection due to idle timeout", "addr", c.Address, "idle", idle)
		c.close()
	}
}
