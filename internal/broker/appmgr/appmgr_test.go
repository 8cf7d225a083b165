package appmgr

import (
	"sync"
	"testing"
	"time"
)

type fakeNodes struct {
	mu      sync.Mutex
	dropped []string
	owned   map[string][]int32
}

func (f *fakeNodes) DropProcess(process string) []int32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dropped = append(f.dropped, process)
	return f.owned[process]
}

type fakeBuffers struct {
	mu      sync.Mutex
	dropped []string
}

func (f *fakeBuffers) DropProcess(process string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dropped = append(f.dropped, process)
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []int32
}

func (f *fakeNotifier) Publish(kind string, nodeID int32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, nodeID)
}

func newTestManager(nodes NodeRegistry, buffers BufferRegistry, notifier Notifier) *Manager {
	m := New(nodes, buffers, notifier, nil)
	m.pollInterval = 10 * time.Millisecond
	return m
}

func TestRegisterAndHeartbeatKeepsProcessLive(t *testing.T) {
	m := newTestManager(&fakeNodes{}, &fakeBuffers{}, &fakeNotifier{})
	defer m.Close()

	m.RegisterProcess("procA")
	if !m.IsLive("procA") {
		t.Fatalf("expected procA to be live after registration")
	}
}

func TestTeamDeparturedCascadesCleanup(t *testing.T) {
	nodes := &fakeNodes{owned: map[string][]int32{"procA": {1, 2}}}
	buffers := &fakeBuffers{}
	notifier := &fakeNotifier{}

	m := New(nodes, buffers, notifier, nil)
	defer m.Close()
	m.RegisterProcess("procA")
	m.teamDeparted("procA")

	if len(nodes.dropped) != 1 || nodes.dropped[0] != "procA" {
		t.Fatalf("expected node registry cleanup for procA, got %v", nodes.dropped)
	}
	if len(buffers.dropped) != 1 || buffers.dropped[0] != "procA" {
		t.Fatalf("expected buffer registry cleanup for procA, got %v", buffers.dropped)
	}
	if len(notifier.events) != 2 {
		t.Fatalf("expected a node-deleted notification per owned node, got %v", notifier.events)
	}
}

func TestAddonHostRestartCappedAtFivePerMinute(t *testing.T) {
	var restarts int
	m := New(&fakeNodes{}, &fakeBuffers{}, &fakeNotifier{}, func() error {
		restarts++
		return nil
	})
	defer m.Close()

	for i := 0; i < 10; i++ {
		m.NotifyAddonHostDied()
	}
	if restarts != 5 {
		t.Fatalf("expected at most 5 restarts in the window, got %d", restarts)
	}
}

func TestRestartLimiterAllowsAgainAfterWindow(t *testing.T) {
	l := newRestartLimiter(1, 20*time.Millisecond)
	if !l.Allow() {
		t.Fatalf("expected first call to be allowed")
	}
	if l.Allow() {
		t.Fatalf("expected second call within the window to be denied")
	}
	time.Sleep(30 * time.Millisecond)
	if !l.Allow() {
		t.Fatalf("expected a call after the window elapses to be allowed")
	}
}
