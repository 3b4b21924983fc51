package rfmsync

import "testing"

func validMasterConfig() Config {
	c := DefaultConfig()
	c.NodeID = 0
	c.IsMaster = true
	c.NumberOfHosts = 2
	c.ReadOffset = HeaderSize
	c.WriteOffset = HeaderSize
	c.InputSize = 16
	c.OutputSize = 8
	return c
}

func TestDefaultConfigValidates(t *testing.T) {
	c := validMasterConfig()
	if err := c.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}

func TestValidateRejectsOffsetBelowHeader(t *testing.T) {
	c := validMasterConfig()
	c.ReadOffset = 10
	if err := c.Validate(); !IsCode(err, ErrCodeConfiguration) {
		t.Fatalf("expected ErrCodeConfiguration, got %v", err)
	}
}

func TestValidateRejectsMasterWithNonZeroNodeID(t *testing.T) {
	c := validMasterConfig()
	c.NodeID = 1
	if err := c.Validate(); !IsCode(err, ErrCodeConfiguration) {
		t.Fatalf("expected ErrCodeConfiguration, got %v", err)
	}
}

func TestValidateRejectsSlaveNodeIDOutOfRange(t *testing.T) {
	c := validMasterConfig()
	c.IsMaster = false
	c.NodeID = 5
	if err := c.Validate(); !IsCode(err, ErrCodeConfiguration) {
		t.Fatalf("expected ErrCodeConfiguration, got %v", err)
	}
}

func TestValidateRejectsNonMasterSyncInline(t *testing.T) {
	c := validMasterConfig()
	c.IsMaster = false
	c.NodeID = 1
	c.Async = false
	c.ExecMode = ModeInline
	if err := c.Validate(); !IsCode(err, ErrCodeConfiguration) {
		t.Fatalf("expected ErrCodeConfiguration, got %v", err)
	}
}

func TestValidateAllowsNonMasterSpawnedSync(t *testing.T) {
	c := validMasterConfig()
	c.IsMaster = false
	c.NodeID = 1
	c.Async = false
	c.ExecMode = ModeSpawned
	if err := c.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}

func TestValidateRejectsDMASizesOverHalfBuffer(t *testing.T) {
	c := validMasterConfig()
	c.DMAEnabled = true
	c.DMABufferSize = 16
	c.InputSize = 9
	if err := c.Validate(); !IsCode(err, ErrCodeConfiguration) {
		t.Fatalf("expected ErrCodeConfiguration, got %v", err)
	}
}

func TestValidateAllowsDMASizesAtHalfBuffer(t *testing.T) {
	c := validMasterConfig()
	c.DMAEnabled = true
	c.DMABufferSize = 32
	c.InputSize = 16
	c.OutputSize = 8
	if err := c.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}
