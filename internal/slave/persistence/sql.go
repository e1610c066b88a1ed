// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package persistence

import (
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/ffutop/modbus-master/internal/slave/model"
)

const (
	schemaPoints = `
	CREATE TABLE IF NOT EXISTS modbus_points (
		table_type INTEGER NOT NULL,
		address    INTEGER NOT NULL,
		value      INTEGER NOT NULL,
		PRIMARY KEY (table_type, address)
	)`
	selectPoints = `SELECT table_type, address, value FROM modbus_points`
	upsertPoint  = `INSERT INTO modbus_points (table_type, address, value) VALUES (?, ?, ?)
	ON CONFLICT(table_type, address) DO UPDATE SET value = excluded.value`
)

// SQLStorage stores one row per non-default point. The driver must be
// registered by the binary (the CLI imports sqlite3).
type SQLStorage struct {
	driver string
	dsn    string
	db     *sql.DB
	model  *model.DataModel
}

func NewSQLStorage(driver, dsn string) *SQLStorage {
	return &SQLStorage{driver: driver, dsn: dsn}
}

func (s *SQLStorage) Load() (*model.DataModel, error) {
	db, err := sql.Open(s.driver, s.dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	if _, err := db.Exec(schemaPoints); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init schema: %w", err)
	}

	rows, err := db.Query(selectPoints)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to query points: %w", err)
	}
	defer rows.Close()

	m := model.NewDataModel()
	for rows.Next() {
		var table, address, value int
		if err := rows.Scan(&table, &address, &value); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to scan point: %w", err)
		}
		if address < 0 || address > model.MaxAddress {
			continue
		}
		m.Set(model.TableType(table), uint16(address), uint16(value))
	}
	if err := rows.Err(); err != nil {
		db.Close()
		return nil, err
	}

	s.db = db
	s.model = m
	return m, nil
}

// Save upserts every non-zero point of m.
func (s *SQLStorage) Save(m *model.DataModel) error {
	if s.db == nil {
		return fmt.Errorf("sql storage not loaded")
	}
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(upsertPoint)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, table := range []model.TableType{
		model.TableCoils, model.TableDiscreteInputs,
		model.TableHoldingRegisters, model.TableInputRegisters,
	} {
		for addr := 0; addr <= model.MaxAddress; addr++ {
			v := m.Get(table, uint16(addr))
			if v == 0 {
				continue
			}
			if _, err := stmt.Exec(int(table), addr, int(v)); err != nil {
				return err
			}
		}
	}
	return tx.Commit()
}

// OnWrite upserts the changed points in one transaction.
func (s *SQLStorage) OnWrite(table model.TableType, address, quantity uint16) {
	if s.db == nil || s.model == nil {
		return
	}
	if err := s.persist(table, address, quantity); err != nil {
		slog.Error("Failed to persist write", "table", table, "address", address, "quantity", quantity, "err", err)
	}
}

func (s *SQLStorage) persist(table model.TableType, address, quantity uint16) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for i := 0; i < int(quantity); i++ {
		addr := int(address) + i
		if _, err := tx.Exec(upsertPoint, int(table), addr, int(s.model.Get(table, uint16(addr)))); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLStorage) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}
