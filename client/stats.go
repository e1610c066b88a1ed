// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package client

import (
	"errors"
	"sync/atomic"

	"github.com/ffutop/modbus-master/modbus"
)

// Stats counts request outcomes. Counters are safe to read from any goroutine.
type Stats struct {
	Requests        atomic.Int64
	Successes       atomic.Int64
	Exceptions      atomic.Int64
	TransportErrors atomic.Int64
	ChecksumErrors  atomic.Int64
	OtherErrors     atomic.Int64
}

// StatsSnapshot is a point-in-time copy of Stats.
type StatsSnapshot struct {
	Requests        int64 `json:"requests" yaml:"requests"`
	Successes       int64 `json:"successes" yaml:"successes"`
	Exceptions      int64 `json:"exceptions" yaml:"exceptions"`
	TransportErrors int64 `json:"transport_errors" yaml:"transport_errors"`
	ChecksumErrors  int64 `json:"checksum_errors" yaml:"checksum_errors"`
	OtherErrors     int64 `json:"other_errors" yaml:"other_errors"`
}

func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		Requests:        s.Requests.Load(),
		Successes:       s.Successes.Load(),
		Exceptions:      s.Exceptions.Load(),
		TransportErrors: s.TransportErrors.Load(),
		ChecksumErrors:  s.ChecksumErrors.Load(),
		OtherErrors:     s.OtherErrors.Load(),
	}
}

func (s *Stats) Reset() {
	s.Requests.Store(0)
	s.Successes.Store(0)
	s.Exceptions.Store(0)
	s.TransportErrors.Store(0)
	s.ChecksumErrors.Store(0)
	s.OtherErrors.Store(0)
}

func (s *Stats) record(err error) {
	s.Requests.Add(1)

	var te *modbus.TransportError
	switch {
	case err == nil:
		s.Successes.Add(1)
	case errors.Is(err, modbus.ErrException):
		s.Exceptions.Add(1)
	case errors.As(err, &te):
		s.TransportErrors.Add(1)
	case errors.Is(err, modbus.ErrChecksumMismatch):
		s.ChecksumErrors.Add(1)
	default:
		s.OtherErrors.Add(1)
	}
}
