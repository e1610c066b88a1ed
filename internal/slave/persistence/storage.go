// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package persistence keeps the simulator's data model across restarts.
package persistence

import (
	"fmt"

	"github.com/ffutop/modbus-master/internal/slave/model"
)

// Backend names accepted by Open.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendMmap   = "mmap"
	BackendSQL    = "sql"
)

// Storage persists a simulator data model.
type Storage interface {
	// Load returns the stored model, or a zeroed one when nothing is stored yet.
	Load() (*model.DataModel, error)

	// Save writes the whole model.
	Save(m *model.DataModel) error

	// OnWrite is called after the slave changed quantity points of table
	// starting at address.
	OnWrite(table model.TableType, address, quantity uint16)

	Close() error
}

// Options selects and parameterises a backend.
type Options struct {
	Type   string
	Path   string // file and mmap
	Driver string // sql, defaults to sqlite3
	DSN    string // sql
}

// Open builds the backend named by opts.Type. The model is not loaded.
func Open(opts Options) (Storage, error) {
	switch opts.Type {
	case "", BackendMemory:
		return NewMemoryStorage(), nil
	case BackendFile:
		if opts.Path == "" {
			return nil, fmt.Errorf("persistence: %s backend requires a path", opts.Type)
		}
		return NewFileStorage(opts.Path), nil
	case BackendMmap:
		if opts.Path == "" {
			return nil, fmt.Errorf("persistence: %s backend requires a path", opts.Type)
		}
		return NewMmapStorage(opts.Path), nil
	case BackendSQL:
		driver := opts.Driver
		if driver == "" {
			driver = "sqlite3"
		}
		if opts.DSN == "" {
			return nil, fmt.Errorf("persistence: sql backend requires a dsn")
		}
		return NewSQLStorage(driver, opts.DSN), nil
	default:
		return nil, fmt.Errorf("persistence: unknown backend %q", opts.Type)
	}
}
