// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Command modbus-master reads and writes Modbus RTU slaves over a serial line
// or a TCP device server, and can simulate slaves for testing.
package main

import (
	"fmt"
	"os"

	_ "github.com/mattn/go-sqlite3"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
