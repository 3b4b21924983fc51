//go:build integration

package integration

import (
	"context"
	"os"
	"testing"
	"time"

	rfmsync "github.com/oberon-rt/rfmsync"
	"github.com/oberon-rt/rfmsync/internal/rfmdrv"
)

// requireDevice skips the test unless RFM_DEVICE names a real character
// device this node can open, e.g. /dev/rfm2g0.
func requireDevice(t *testing.T) string {
	path := os.Getenv("RFM_DEVICE")
	if path == "" {
		t.Skip("set RFM_DEVICE to a real RFM character device to run this test")
	}
	return path
}

func TestIntegrationMasterInitAndRun(t *testing.T) {
	path := requireDevice(t)

	const regionSize = rfmsync.HeaderSize + 4096
	driver, err := rfmdrv.Open(path, regionSize)
	if err != nil {
		t.Fatalf("rfmdrv.Open(%s): %v", path, err)
	}
	defer driver.Close()

	cfg := rfmsync.DefaultConfig()
	cfg.NodeID = 0
	cfg.IsMaster = true
	cfg.NumberOfHosts = 1
	cfg.ReadOffset = rfmsync.HeaderSize
	cfg.WriteOffset = rfmsync.HeaderSize
	cfg.InputSize = 12
	cfg.OutputSize = 8
	cfg.ExecMode = rfmsync.ModeSpawned
	cfg.Period = 5 * time.Millisecond

	ds, err := rfmsync.New(driver, cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := ds.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	cb := &onceCallback{out: []byte{1, 2, 3, 4, 5, 6, 7, 8}}
	if err := ds.Run(ctx, cb); err != nil {
		t.Fatalf("Run: %v", err)
	}
	defer ds.Teardown()

	<-ctx.Done()

	snap := ds.Metrics().Snapshot()
	if snap.CycleCount == 0 {
		t.Errorf("expected at least one cycle against a real device, got 0")
	}
}

func TestIntegrationDeviceRejectsOutOfRangeOffset(t *testing.T) {
	path := requireDevice(t)

	driver, err := rfmdrv.Open(path, rfmsync.HeaderSize+64)
	if err != nil {
		t.Fatalf("rfmdrv.Open(%s): %v", path, err)
	}
	defer driver.Close()

	if err := driver.Read(rfmsync.HeaderSize+4096, make([]byte, 8)); err == nil {
		t.Error("expected an out-of-range read to fail")
	}
}

type onceCallback struct {
	out []byte
}

func (c *onceCallback) OnCycle(input, output []byte) {
	if output != nil {
		copy(output, c.out)
	}
}
