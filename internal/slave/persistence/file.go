// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package persistence

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/ffutop/modbus-master/internal/slave/model"
)

// FileStorage keeps the model image in memory and writes changed ranges
// back to a regular file, syncing after every write.
type FileStorage struct {
	path  string
	file  *os.File
	image []byte
}

func NewFileStorage(path string) *FileStorage {
	return &FileStorage{path: path}
}

// Load reads the image from disk, creating or resizing the file as needed.
func (fs *FileStorage) Load() (*model.DataModel, error) {
	f, err := openImage(fs.path)
	if err != nil {
		return nil, err
	}

	image := make([]byte, imageSize)
	if _, err := io.ReadFull(f, image); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to read image file: %w", err)
	}
	fs.file = f
	fs.image = image

	return modelOver(image), nil
}

// Save writes the whole image.
func (fs *FileStorage) Save(*model.DataModel) error {
	return fs.writeRange(0, imageSize)
}

// OnWrite writes back the bytes covering the changed points.
func (fs *FileStorage) OnWrite(table model.TableType, address, quantity uint16) {
	off, n := span(table, address, quantity)
	if err := fs.writeRange(off, n); err != nil {
		slog.Error("Failed to persist write", "table", table, "address", address, "err", err)
	}
}

func (fs *FileStorage) writeRange(off, n int) error {
	if fs.file == nil || n == 0 {
		return nil
	}
	if _, err := fs.file.WriteAt(fs.image[off:off+n], int64(off)); err != nil {
		return fmt.Errorf("failed to write image file: %w", err)
	}
	if err := fs.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync image file: %w", err)
	}
	return nil
}

func (fs *FileStorage) Close() error {
	if fs.file == nil {
		return nil
	}
	err := fs.file.Close()
	fs.file = nil
	return err
}

// openImage opens path read-write and makes sure it holds a full image.
func openImage(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open image file: %w", err)
	}

	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if fi.Size() != int64(imageSize) {
		if err := f.Truncate(int64(imageSize)); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to resize image file: %w", err)
		}
	}
	return f, nil
}
