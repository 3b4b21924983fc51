package rfmsync

import (
	"errors"
	"syscall"
	"testing"
)

func TestStructuredError(t *testing.T) {
	err := NewError("Validate", 2, ErrCodeConfiguration, "NodeID out of range")

	if err.Op != "Validate" {
		t.Errorf("Expected Op=Validate, got %s", err.Op)
	}
	if err.NodeID != 2 {
		t.Errorf("Expected NodeID=2, got %d", err.NodeID)
	}
	if err.Code != ErrCodeConfiguration {
		t.Errorf("Expected Code=ErrCodeConfiguration, got %s", err.Code)
	}

	expected := "rfmsync: NodeID out of range (op=Validate)"
	if err.Error() != expected {
		t.Errorf("Expected error message %q, got %q", expected, err.Error())
	}
}

func TestDeviceErrorFillsMsgFromErrno(t *testing.T) {
	err := NewDeviceError("Open", 0, syscall.EBUSY, "")
	if err.Errno != syscall.EBUSY {
		t.Errorf("Expected Errno=EBUSY, got %v", err.Errno)
	}
	if err.Msg != syscall.EBUSY.Error() {
		t.Errorf("Expected Msg to default to errno text, got %q", err.Msg)
	}
}

func TestWrapErrorPreservesStructuredContext(t *testing.T) {
	inner := NewLayoutError("CheckContiguity", 1, "gap between peers")
	wrapped := WrapError("Run", 1, ErrCodeLayout, inner)

	if wrapped.Code != ErrCodeLayout {
		t.Errorf("Expected Code=ErrCodeLayout, got %s", wrapped.Code)
	}
	if wrapped.Op != "Run" {
		t.Errorf("Expected Op=Run, got %s", wrapped.Op)
	}
}

func TestWrapErrorMapsSyscallErrno(t *testing.T) {
	wrapped := WrapError("Read", 0, ErrCodeDevice, syscall.ENOENT)
	if wrapped.Errno != syscall.ENOENT {
		t.Errorf("Expected Errno=ENOENT, got %v", wrapped.Errno)
	}
	if wrapped.Code != ErrCodeDevice {
		t.Errorf("Expected Code=ErrCodeDevice, got %s", wrapped.Code)
	}
}

func TestIsCode(t *testing.T) {
	err := NewError("Synchronise", 1, ErrCodeSyncMissed, "slave missed window")
	if !IsCode(err, ErrCodeSyncMissed) {
		t.Errorf("Expected IsCode to match ErrCodeSyncMissed")
	}
	if IsCode(err, ErrCodeLayout) {
		t.Errorf("Expected IsCode to not match ErrCodeLayout")
	}
}

func TestSentinelErrorsMatchByCode(t *testing.T) {
	specific := NewError("Synchronise", 1, ErrCodeSyncMissed, "slave missed window")
	if !errors.Is(specific, ErrSyncMissed) {
		t.Errorf("Expected errors.Is to match ErrSyncMissed regardless of node/op")
	}
}
