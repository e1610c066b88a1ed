// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package test

import (
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ffutop/modbus-master/client"
	"github.com/ffutop/modbus-master/internal/slave/model"
)

func TestPerformance_LocalSlave(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping performance test in short mode")
	}
	sim := startSimulator(t, model.NewDataModel())

	var (
		writeOps     int64
		writeErrs    int64
		readOps      int64
		readErrs     int64
		testDuration = 3 * time.Second
	)

	wg := sync.WaitGroup{}
	start := time.Now()
	deadline := start.Add(testDuration)

	// Write routine: bursts of 300 single register writes every second.
	writeConn := sim.dial(t, time.Second)
	wg.Add(1)
	go func() {
		defer wg.Done()
		conn := writeConn
		c := client.New(1, make([]byte, 256))
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()

		for time.Now().Before(deadline) {
			<-ticker.C
			for i := 0; i < 300; i++ {
				addr := uint16(rand.Intn(1000))
				val := uint16(rand.Intn(65535))
				if _, err := c.WriteRegisters(addr).Values(val).Send(conn); err != nil {
					if atomic.AddInt64(&writeErrs, 1) <= 5 {
						t.Logf("Write Error: %v", err)
					}
					continue
				}
				atomic.AddInt64(&writeOps, 1)
			}
		}
	}()

	// Read routines share one connection through a Shared client.
	conn := sim.dial(t, time.Second)
	shared := client.NewShared(client.New(1, make([]byte, 256)), conn)
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for time.Now().Before(deadline) {
				rStart := time.Now()
				err := shared.Do(func(c *client.Client, tr client.Transport) error {
					_, err := c.ReadHoldingRegisters(0).Quantity(100).Send(tr)
					return err
				})
				if err != nil {
					if atomic.AddInt64(&readErrs, 1) <= 5 {
						t.Logf("Read Error: %v", err)
					}
					continue
				}
				atomic.AddInt64(&readOps, 1)
				if elapsed := time.Since(rStart); elapsed > 100*time.Millisecond {
					t.Logf("ReadHoldingRegisters took %v", elapsed)
				}
			}
		}()
	}

	wg.Wait()
	duration := time.Since(start)

	t.Logf("Test Finished in %v", duration)
	t.Logf("Total Writes: %d (Errors: %d)", atomic.LoadInt64(&writeOps), atomic.LoadInt64(&writeErrs))
	t.Logf("Total Reads: %d (Errors: %d)", atomic.LoadInt64(&readOps), atomic.LoadInt64(&readErrs))
	t.Logf("Read throughput: %.0f req/s", float64(atomic.LoadInt64(&readOps))/duration.Seconds())

	if atomic.LoadInt64(&writeErrs) > 0 || atomic.LoadInt64(&readErrs) > 0 {
		t.Errorf("Performance test failed with errors.")
	}
}
