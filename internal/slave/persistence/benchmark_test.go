// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package persistence

import (
	"path/filepath"
	"testing"

	"github.com/ffutop/modbus-master/internal/slave/model"
)

func benchmarkOnWrite(b *testing.B, st Storage) {
	m, err := st.Load()
	if err != nil {
		b.Fatalf("Load failed: %v", err)
	}
	defer st.Close()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = m.WriteSingleRegister(10, uint16(i))
		st.OnWrite(model.TableHoldingRegisters, 10, 1)
	}
}

func BenchmarkMemoryStorage_OnWrite(b *testing.B) {
	benchmarkOnWrite(b, NewMemoryStorage())
}

func BenchmarkFileStorage_OnWrite(b *testing.B) {
	benchmarkOnWrite(b, NewFileStorage(filepath.Join(b.TempDir(), "bench_file.bin")))
}

func BenchmarkMmapStorage_OnWrite(b *testing.B) {
	benchmarkOnWrite(b, NewMmapStorage(filepath.Join(b.TempDir(), "bench_mmap.bin")))
}

func BenchmarkSQLStorage_OnWrite(b *testing.B) {
	benchmarkOnWrite(b, NewSQLStorage("sqlite3", filepath.Join(b.TempDir(), "bench.db")))
}

func BenchmarkMmapStorage_Load(b *testing.B) {
	path := filepath.Join(b.TempDir(), "bench_mmap_load.bin")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ms := NewMmapStorage(path)
		if _, err := ms.Load(); err != nil {
			b.Fatalf("Load failed: %v", err)
		}
		ms.Close()
	}
}
