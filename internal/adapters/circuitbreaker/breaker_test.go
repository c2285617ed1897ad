package circuitbreaker

import (
	"errors"
	"testing"
	"time"
)

var errBoom = errors.New("boom")

func TestBreakerOpensAfterThreshold(t *testing.T) {
	cb := New(3, time.Minute)

	for i := 0; i < 3; i++ {
		if err := cb.Execute(func() error { return errBoom }); err != errBoom {
			t.Fatalf("attempt %d: error = %v, want errBoom", i, err)
		}
	}
	if cb.State() != StateOpen {
		t.Fatalf("state = %s, want open", cb.State())
	}

	if err := cb.Execute(func() error { return nil }); err != ErrCircuitOpen {
		t.Errorf("error = %v, want ErrCircuitOpen", err)
	}
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	cb := New(2, time.Minute)

	cb.Execute(func() error { return errBoom })
	cb.Execute(func() error { return nil })
	cb.Execute(func() error { return errBoom })

	if cb.State() != StateClosed {
		t.Errorf("state = %s, want closed", cb.State())
	}
}

func TestBreakerHealsThroughHalfOpen(t *testing.T) {
	cb := New(1, time.Millisecond)

	cb.Execute(func() error { return errBoom })
	if cb.State() != StateOpen {
		t.Fatalf("state = %s, want open", cb.State())
	}

	time.Sleep(5 * time.Millisecond)

	for i := 0; i < 3; i++ {
		if err := cb.Execute(func() error { return nil }); err != nil {
			t.Fatalf("probe %d: unexpected error: %v", i, err)
		}
	}
	if cb.State() != StateClosed {
		t.Errorf("state = %s, want closed after probes", cb.State())
	}
}

func TestBreakerReopensOnFailedProbe(t *testing.T) {
	cb := New(1, time.Millisecond)

	cb.Execute(func() error { return errBoom })
	time.Sleep(5 * time.Millisecond)

	if err := cb.Execute(func() error { return errBoom }); err != errBoom {
		t.Fatalf("error = %v, want errBoom", err)
	}
	if cb.State() != StateOpen {
		t.Errorf("state = %s, want open again", cb.State())
	}
}
