package errors

import (
	"context"
	stdErrors "errors"
	"fmt"
	"testing"
	"time"
)

// fakeTimeoutErr simulates a net.Error with Timeout semantics (we don't need full net.Error here).
type fakeTimeoutErr struct{}

func (fakeTimeoutErr) Error() string { return "fake timeout" }
func (fakeTimeoutErr) Timeout() bool { return true }

func TestKindClassification(t *testing.T) {
	root := stdErrors.New("root")
	wrapped := fmt.Errorf("adding context: %w", root)
	nf := NewNotFound("registry.get", wrapped)
	if !Is(nf, NotFound) {
		t.Fatalf("expected Is(nf, NotFound)=true")
	}
	if !stdErrors.Is(nf, root) {
		t.Fatalf("expected errors.Is to find root cause")
	}
	var e *Error
	if !stdErrors.As(nf, &e) {
		t.Fatalf("expected errors.As to *Error")
	}
	if e.Op != "registry.get" {
		t.Fatalf("unexpected op: %s", e.Op)
	}

	perm := NewPermission("registry.unregister", nil)
	if !Is(perm, Permission) {
		t.Fatalf("expected permission error classified")
	}
	state := NewState("roster.connect", stdErrors.New("already connected"))
	if !Is(state, State) {
		t.Fatalf("expected state error classified")
	}
	if Is(state, Permission) {
		t.Fatalf("state error must not classify as permission")
	}
}

func TestIsTimeout(t *testing.T) {
	root := fakeTimeoutErr{}
	to := NewTimeout("port.read", 5*time.Second, root)
	if !IsTimeout(to) {
		t.Fatalf("expected Timeout kind recognized")
	}
	if Is(to, Permission) {
		t.Fatalf("timeout should not classify as permission")
	}
	if !IsTimeout(context.DeadlineExceeded) {
		t.Fatalf("expected context deadline recognized")
	}
	var ne error = root
	if !IsTimeout(ne) {
		t.Fatalf("expected net-like timeout recognized")
	}
}

func TestUnwrapChains(t *testing.T) {
	base := stdErrors.New("io EOF")
	l1 := fmt.Errorf("read: %w", base)
	l2 := NewTransport("port.send", l1)
	if !stdErrors.Is(l2, base) {
		t.Fatalf("errors.Is should reach base cause")
	}
	k, ok := KindOf(l2)
	if !ok || k != Transport {
		t.Fatalf("expected Transport kind, got %v ok=%v", k, ok)
	}
}

func TestNilSafety(t *testing.T) {
	if Is(nil, NotFound) {
		t.Fatalf("nil should not match any kind")
	}
	if IsTimeout(nil) {
		t.Fatalf("nil should not be timeout")
	}
	if _, ok := KindOf(nil); ok {
		t.Fatalf("KindOf(nil) should report ok=false")
	}
}

func TestConstructorWithoutCause(t *testing.T) {
	e := NewResource("buffer.register", nil)
	if e == nil {
		t.Fatalf("constructor returned nil")
	}
	if errStr := e.Error(); errStr == "" {
		t.Fatalf("expected non-empty error string")
	}
}

func TestNilErrBranchesAndStrings(t *testing.T) {
	a := NewArgument("op1", nil)
	if s := a.Error(); s == "" {
		t.Fatalf("unexpected argument error string: %q", s)
	}
	if !Is(a, Argument) {
		t.Fatalf("expected argument classification")
	}

	nf := NewNotFound("op2", nil)
	if s := nf.Error(); s == "" {
		t.Fatalf("bad not-found error string: %q", s)
	}

	rem := NewRemote("op3", nil)
	if s := rem.Error(); s == "" {
		t.Fatalf("empty remote error string")
	}

	to := NewTimeout("op4", 100*time.Millisecond, nil)
	if !IsTimeout(to) {
		t.Fatalf("timeout classification failed")
	}
	if Is(to, Remote) {
		t.Fatalf("timeout misclassified as remote")
	}
	if s := to.Error(); s == "" {
		t.Fatalf("empty timeout error string")
	}
}

func TestInvariantViolatedDoesNotPanic(t *testing.T) {
	err := NewInvariantViolated("registry.release", stdErrors.New("refcount underflow"))
	if !Is(err, InvariantViolated) {
		t.Fatalf("expected invariant-violated classification")
	}
	// Constructing and inspecting the error must never panic; callers log
	// it and keep serving.
	_ = err.Error()
}

func TestNegativePredicates(t *testing.T) {
	if Is(stdErrors.New("plain"), NotFound) {
		t.Fatalf("plain error shouldn't classify as any kind")
	}
	if IsTimeout(stdErrors.New("plain")) {
		t.Fatalf("plain error shouldn't be timeout")
	}
}
