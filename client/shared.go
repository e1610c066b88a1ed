// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package client

import "sync"

// Shared serialises access to a Client and its transport for callers on
// several goroutines. The Client itself has no locking.
type Shared struct {
	mu        sync.Mutex
	client    *Client
	transport Transport
}

func NewShared(c *Client, t Transport) *Shared {
	return &Shared{client: c, transport: t}
}

// Do runs fn with exclusive use of the client and transport.
// Responses must not be retained after fn returns.
func (s *Shared) Do(fn func(c *Client, t Transport) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.client, s.transport)
}
