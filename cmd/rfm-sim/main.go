// Command rfm-sim spins up a simulated cluster of rfmsync hosts sharing one
// in-memory region (backend/simrfm), so the synchronisation protocol can be
// exercised and observed without real RFM hardware.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	rfmsync "github.com/oberon-rt/rfmsync"
	"github.com/oberon-rt/rfmsync/backend/simrfm"
	"github.com/oberon-rt/rfmsync/internal/constants"
	"github.com/oberon-rt/rfmsync/internal/logging"
	"github.com/oberon-rt/rfmsync/internal/wire"
)

func main() {
	var (
		hosts      = flag.Int("hosts", 3, "Number of simulated hosts (node 0 is master)")
		payloadStr = flag.String("payload", "8", "Per-host output payload size in bytes (e.g. 8, 1K)")
		period     = flag.Duration("period", 2*time.Millisecond, "Cycle period")
		runFor     = flag.Duration("for", 3*time.Second, "How long to run before shutting down")
		verbose    = flag.Bool("v", false, "Verbose output")
		dump       = flag.Bool("dump", false, "Dump the final shared header and per-host payloads on exit")
	)
	flag.Parse()

	if *hosts < 1 {
		log.Fatalf("-hosts must be >= 1")
	}

	payload, err := parseSize(*payloadStr)
	if err != nil {
		log.Fatalf("invalid -payload %q: %v", *payloadStr, err)
	}

	logConfig := logging.DefaultConfig()
	if *verbose {
		logConfig.Level = logging.LevelDebug
	}
	logger := logging.NewLogger(logConfig)
	logging.SetDefault(logger)

	cluster, err := newCluster(uint32(*hosts), uint32(payload), *period)
	if err != nil {
		logger.Error("failed to build cluster", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := cluster.start(ctx); err != nil {
		logger.Error("failed to start cluster", "error", err)
		os.Exit(1)
	}
	defer cluster.teardown()

	logger.Info("cluster running", "hosts", *hosts, "payload_bytes", payload, "period", *period)
	fmt.Printf("Simulated cluster: %d hosts, %d byte payload, %s period\n", *hosts, payload, *period)
	fmt.Printf("Press Ctrl+C to stop early, or wait %s...\n", *runFor)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		logger.Info("received shutdown signal")
	case <-time.After(*runFor):
		logger.Info("run duration elapsed")
	}
	cancel()

	time.Sleep(50 * time.Millisecond) // let in-flight cycles settle
	cluster.report(logger)
	if *dump {
		cluster.dump()
	}
}

// hostCallback counts the cycles a host has executed and fills its output
// payload with a repeating counter so a dump makes progress visible.
type hostCallback struct {
	nodeID uint32
	size   uint32
	cycles int
}

func (c *hostCallback) OnCycle(input, output []byte) {
	if output != nil {
		c.cycles++
		for i := range output {
			output[i] = byte(c.nodeID)<<4 | byte(c.cycles)
		}
	}
}

type simHost struct {
	cfg      rfmsync.Config
	driver   *simrfm.Card
	ds       *rfmsync.DataSource
	callback *hostCallback
}

type cluster struct {
	region *simrfm.Region
	size   uint32
	hosts  []*simHost
}

// newCluster lays out nHosts contiguous write windows starting at
// constants.HeaderSize, each outputSize bytes (each host's trailing 4-byte
// counter is placed by the nodeID*4 write shift, and the region is sized to
// hold it), and builds a rfmsync.Config per host whose ReadOffset/InputSize
// spans every host's window so every host scatters every peer's payload.
func newCluster(nHosts, outputSize uint32, period time.Duration) (*cluster, error) {
	perHost := outputSize + constants.CounterWordSize
	totalPayload := perHost * nHosts
	regionSize := constants.HeaderSize + totalPayload + constants.TailSlackConservative

	region := simrfm.NewRegion(regionSize)
	c := &cluster{region: region, size: regionSize}

	for i := uint32(0); i < nHosts; i++ {
		cfg := rfmsync.DefaultConfig()
		cfg.NodeID = i
		cfg.IsMaster = i == 0
		cfg.NumberOfHosts = nHosts
		cfg.ReadOffset = constants.HeaderSize
		cfg.WriteOffset = constants.HeaderSize + i*outputSize
		cfg.InputSize = outputSize * nHosts
		cfg.OutputSize = outputSize
		cfg.ExecMode = rfmsync.ModeSpawned
		cfg.Async = !cfg.IsMaster
		cfg.Period = period

		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("host %d: %w", i, err)
		}

		c.hosts = append(c.hosts, &simHost{
			cfg:      cfg,
			driver:   simrfm.Attach(region, i),
			callback: &hostCallback{nodeID: i, size: outputSize},
		})
	}
	return c, nil
}

func (c *cluster) start(ctx context.Context) error {
	for _, h := range c.hosts {
		ds, err := rfmsync.New(h.driver, h.cfg)
		if err != nil {
			return fmt.Errorf("node %d: New: %w", h.cfg.NodeID, err)
		}
		h.ds = ds
		if err := ds.Init(); err != nil {
			return fmt.Errorf("node %d: Init: %w", h.cfg.NodeID, err)
		}
	}
	for _, h := range c.hosts {
		if err := h.ds.Run(ctx, h.callback); err != nil {
			return fmt.Errorf("node %d: Run: %w", h.cfg.NodeID, err)
		}
	}
	return nil
}

func (c *cluster) teardown() {
	for _, h := range c.hosts {
		if h.ds != nil {
			_ = h.ds.Teardown()
		}
	}
}

func (c *cluster) report(logger *logging.Logger) {
	for _, h := range c.hosts {
		snap := h.ds.Metrics().Snapshot()
		logger.Info("host stats",
			"node_id", h.cfg.NodeID,
			"is_master", h.cfg.IsMaster,
			"cycles", snap.CycleCount,
			"sync_missed", snap.SyncMissedCount,
			"torn_reads", snap.TornReadCount)
	}
}

// dump decodes and prints the published PeerLayout table and each host's
// current output payload, for operator inspection of a frozen cluster.
func (c *cluster) dump() {
	fmt.Println("\n--- PeerLayout table ---")
	for _, h := range c.hosts {
		record := make([]byte, constants.PeerLayoutSize)
		if err := h.driver.Read(wire.OffsetOf(h.cfg.NodeID), record); err != nil {
			fmt.Printf("node %d: read error: %v\n", h.cfg.NodeID, err)
			continue
		}
		layout := wire.DecodePeerLayout(record)
		fmt.Printf("node %d: write_offset=%d output_size=%d downsample=%d\n",
			h.cfg.NodeID, layout.WriteOffset, layout.OutputSize, layout.DownsampleFactor)
	}

	fmt.Println("\n--- Per-host output payload ---")
	for _, h := range c.hosts {
		buf, err := h.ds.SignalBuffers()
		if err != nil {
			fmt.Printf("node %d: %v\n", h.cfg.NodeID, err)
			continue
		}
		fmt.Printf("node %d: cycle=%d output=% x\n", h.cfg.NodeID, buf.OwnCycleCounter, buf.Output)
	}
}

// parseSize parses a size string like "64M", "1G", "512K", or a bare byte count.
func parseSize(s string) (int64, error) {
	s = strings.ToUpper(strings.TrimSpace(s))

	var multiplier int64 = 1
	var numStr string

	switch {
	case strings.HasSuffix(s, "K"):
		multiplier = 1024
		numStr = strings.TrimSuffix(s, "K")
	case strings.HasSuffix(s, "M"):
		multiplier = 1024 * 1024
		numStr = strings.TrimSuffix(s, "M")
	case strings.HasSuffix(s, "G"):
		multiplier = 1024 * 1024 * 1024
		numStr = strings.TrimSuffix(s, "G")
	default:
		numStr = s
	}

	num, err := strconv.ParseInt(numStr, 10, 64)
	if err != nil {
		return 0, err
	}
	return num * multiplier, nil
}
