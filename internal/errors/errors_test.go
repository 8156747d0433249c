package errors

import (
	"errors"
	"fmt"
	"testing"
)

// -----------------------------------------------------------------------------
// Severity Tests
// -----------------------------------------------------------------------------

func TestSeverity_String(t *testing.T) {
	tests := []struct {
		severity Severity
		want     string
	}{
		{SeverityDebug, "debug"},
		{SeverityInfo, "info"},
		{SeverityWarning, "warning"},
		{SeverityError, "error"},
		{SeverityCritical, "critical"},
		{Severity(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.severity.String(); got != tt.want {
				t.Errorf("Severity.String() = %q, want %q", got, tt.want)
			}
		})
	}
}

// -----------------------------------------------------------------------------
// Domain Error Tests
// -----------------------------------------------------------------------------

func TestBridgeError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *BridgeError
		want string
	}{
		{
			name: "basic error",
			err:  NewBridgeError("construction failed", nil),
			want: "bridge error: construction failed",
		},
		{
			name: "with cause",
			err:  NewBridgeError("construction failed", ErrHandoffInterrupted),
			want: "bridge error: construction failed: handoff wait interrupted",
		},
		{
			name: "with phase and event",
			err:  NewBridgeError("forward failed", ErrRuntimeExited).WithPhase("started").WithEvent("resume"),
			want: "bridge error [phase=started, event=resume]: forward failed: runtime exited",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBridgeError_Classification(t *testing.T) {
	err := NewBridgeError("construction failed", ErrHandoffInterrupted)

	if err.Severity() != SeverityCritical {
		t.Errorf("Severity() = %v, want %v", err.Severity(), SeverityCritical)
	}
	if err.IsRetryable() {
		t.Error("IsRetryable() = true, want false")
	}
	if !Is(err, ErrHandoffInterrupted) {
		t.Error("Is(ErrHandoffInterrupted) = false, want true")
	}
}

func TestRegistrationError(t *testing.T) {
	err := NewRegistrationError("register observer", ErrNilObserver).WithSlot("batteryStatus")

	want := "registration error [slot=batteryStatus]: register observer: observer is nil"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	wrapped := fmt.Errorf("set callback: %w", err)
	var regErr *RegistrationError
	if !As(wrapped, &regErr) {
		t.Fatal("As(*RegistrationError) = false, want true")
	}
	if regErr.Slot != "batteryStatus" {
		t.Errorf("Slot = %q, want %q", regErr.Slot, "batteryStatus")
	}
	if !Is(wrapped, ErrNilObserver) {
		t.Error("Is(ErrNilObserver) = false, want true")
	}
}

func TestRuntimeError(t *testing.T) {
	err := NewRuntimeError("child exited", ErrRuntimeExited).WithKind("process").WithExitCode(3)

	want := "runtime error [runtime=process, exit=3]: child exited: runtime exited"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestPowerError(t *testing.T) {
	err := NewPowerError("read capacity", ErrNoBattery).WithSource("sysfs").WithPath("/sys/class/power_supply")

	if !err.IsRetryable() {
		t.Error("power errors should default to retryable")
	}
	if !IsRetryable(err) {
		t.Error("IsRetryable() = false, want true")
	}
	if GetSeverity(err) != SeverityWarning {
		t.Errorf("GetSeverity() = %v, want %v", GetSeverity(err), SeverityWarning)
	}

	err = err.WithRetryable(false)
	if IsRetryable(err) {
		t.Error("IsRetryable() = true after WithRetryable(false)")
	}
}

// -----------------------------------------------------------------------------
// ValidationError Tests
// -----------------------------------------------------------------------------

func TestValidationError(t *testing.T) {
	err := NewValidationError("unknown lifecycle event").WithField("steps[2].event").WithValue("suspend")

	want := "validation error [field=steps[2].event, value=suspend]: unknown lifecycle event"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !Is(err, ErrInvalidInput) {
		t.Error("Is(ErrInvalidInput) = false, want true")
	}

	cause := errors.New("boom")
	withCause := NewValidationError("bad script").WithCause(cause)
	if !Is(withCause, cause) {
		t.Error("Is(cause) = false, want true")
	}
}

// -----------------------------------------------------------------------------
// Helper Tests
// -----------------------------------------------------------------------------

func TestClassificationHelpers_PlainErrors(t *testing.T) {
	plain := errors.New("plain")

	if IsRetryable(nil) || IsRetryable(plain) {
		t.Error("plain and nil errors should not be retryable")
	}
	if IsUserFacing(nil) || IsUserFacing(plain) {
		t.Error("plain and nil errors should not be user facing")
	}
	if GetSeverity(nil) != SeverityDebug {
		t.Errorf("GetSeverity(nil) = %v, want %v", GetSeverity(nil), SeverityDebug)
	}
	if GetSeverity(plain) != SeverityError {
		t.Errorf("GetSeverity(plain) = %v, want %v", GetSeverity(plain), SeverityError)
	}
}

func TestWrap(t *testing.T) {
	if Wrap(nil, "ctx") != nil {
		t.Error("Wrap(nil) should be nil")
	}
	if Wrapf(nil, "ctx %d", 1) != nil {
		t.Error("Wrapf(nil) should be nil")
	}

	err := Wrapf(ErrNoBattery, "scan %s", "/sys")
	if err.Error() != "scan /sys: no battery found" {
		t.Errorf("Wrapf() = %q", err.Error())
	}
	if !Is(err, ErrNoBattery) {
		t.Error("wrapped error lost its sentinel")
	}
}
