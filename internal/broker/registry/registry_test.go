package registry

import (
	"testing"

	mberrors "github.com/alxayo/mediabroker/internal/errors"
)

type recordingNotifier struct {
	events []string
}

func (r *recordingNotifier) Publish(kind string, nodeID int32) {
	r.events = append(r.events, kind)
}

func TestRegisterAssignsMonotoneIDAndRefcounts(t *testing.T) {
	notif := &recordingNotifier{}
	r := New(notif)

	n1, err := r.Register(1, 1, "mixer", KindConsumer, "ctl-1", "procA")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	n2, err := r.Register(1, 2, "encoder", KindProducer|KindConsumer, "ctl-2", "procA")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if n2.ID <= n1.ID {
		t.Fatalf("expected monotone ids, got %d then %d", n1.ID, n2.ID)
	}
	if n1.GlobalRef() != 1 {
		t.Fatalf("expected initial global ref 1, got %d", n1.GlobalRef())
	}
	if len(notif.events) != 2 || notif.events[0] != "node-created" {
		t.Fatalf("expected two node-created events, got %v", notif.events)
	}
}

func TestRegisterRejectsEmptyOwner(t *testing.T) {
	r := New(nil)
	if _, err := r.Register(1, 1, "x", KindConsumer, "ctl", ""); !mberrors.Is(err, mberrors.Argument) {
		t.Fatalf("expected argument error, got %v", err)
	}
}

func TestProducerWithNoEndpointsWarnsNotRejects(t *testing.T) {
	r := New(nil)
	n, err := r.Register(1, 1, "silent-producer", KindProducer, "ctl", "procA")
	if err != nil {
		t.Fatalf("register should not fail for endpoint-less producer: %v", err)
	}
	if len(n.Outputs()) != 0 {
		t.Fatalf("expected no outputs yet")
	}
}

func TestGetCloneForIDAndReleaseBalanceRefcounts(t *testing.T) {
	r := New(nil)
	n, _ := r.Register(1, 1, "node", KindConsumer, "ctl", "procA")

	clone, err := r.GetCloneForID(n.ID, "procB")
	if err != nil {
		t.Fatalf("clone: %v", err)
	}
	if clone.GlobalRef() != 2 {
		t.Fatalf("expected global ref 2 after clone, got %d", clone.GlobalRef())
	}

	if err := r.Release(n.ID, "procB"); err != nil {
		t.Fatalf("release: %v", err)
	}
	if n.GlobalRef() != 1 {
		t.Fatalf("expected global ref 1 after release, got %d", n.GlobalRef())
	}

	if err := r.Release(n.ID, "procB"); !mberrors.Is(err, mberrors.State) {
		t.Fatalf("expected state error releasing a reference never held, got %v", err)
	}
}

func TestUnregisterRequiresOwnership(t *testing.T) {
	r := New(nil)
	n, _ := r.Register(1, 1, "node", KindConsumer, "ctl", "procA")

	if _, _, err := r.Unregister(n.ID, "procB"); !mberrors.Is(err, mberrors.Permission) {
		t.Fatalf("expected permission error, got %v", err)
	}

	addonID, flavorID, err := r.Unregister(n.ID, "procA")
	if err != nil {
		t.Fatalf("unregister: %v", err)
	}
	if addonID != 1 || flavorID != 1 {
		t.Fatalf("unexpected addon/flavor: %d/%d", addonID, flavorID)
	}
	if _, err := r.LiveNodeInfo(n.ID); !mberrors.Is(err, mberrors.NotFound) {
		t.Fatalf("expected node removed after unregister")
	}
}

func TestPublishAndFindNodeForPort(t *testing.T) {
	r := New(nil)
	n, _ := r.Register(1, 1, "producer", KindProducer, "ctl-producer", "procA")

	if err := r.PublishOutputs(n.ID, []Endpoint{{Port: "out-0", Name: "output 0"}}); err != nil {
		t.Fatalf("publish outputs: %v", err)
	}

	id, err := r.FindNodeForPort("out-0")
	if err != nil {
		t.Fatalf("find node for port: %v", err)
	}
	if id != n.ID {
		t.Fatalf("expected node %d, got %d", n.ID, id)
	}

	if _, err := r.FindNodeForPort("ctl-producer"); err != nil {
		t.Fatalf("expected control port to match too: %v", err)
	}

	if _, err := r.FindNodeForPort("nope"); !mberrors.Is(err, mberrors.NotFound) {
		t.Fatalf("expected not-found for unknown port")
	}
}

func TestGetLiveNodesFiltersByNamePatternAndKind(t *testing.T) {
	r := New(nil)
	r.Register(1, 1, "audio-mixer", KindConsumer, "c1", "procA")
	r.Register(1, 2, "audio-encoder", KindProducer, "c2", "procA")
	r.Register(1, 3, "video-encoder", KindProducer, "c3", "procA")

	matches := r.GetLiveNodes(Filter{NamePattern: "audio*"}, 0)
	if len(matches) != 2 {
		t.Fatalf("expected 2 audio* matches, got %d: %+v", len(matches), matches)
	}

	producers := r.GetLiveNodes(Filter{RequiredKinds: KindProducer}, 0)
	if len(producers) != 2 {
		t.Fatalf("expected 2 producer matches, got %d", len(producers))
	}

	limited := r.GetLiveNodes(Filter{}, 1)
	if len(limited) != 1 {
		t.Fatalf("expected limit to cap results at 1, got %d", len(limited))
	}
}

func TestGetInstancesFor(t *testing.T) {
	r := New(nil)
	n1, _ := r.Register(5, 2, "a", KindConsumer, "c1", "procA")
	n2, _ := r.Register(5, 2, "b", KindConsumer, "c2", "procA")
	r.Register(5, 3, "c", KindConsumer, "c3", "procA")

	ids := r.GetInstancesFor(5, 2)
	if len(ids) != 2 || ids[0] != n1.ID || ids[1] != n2.ID {
		t.Fatalf("unexpected instances: %v", ids)
	}
}

func TestDropProcessRemovesOwnedNodesAndClearsRefs(t *testing.T) {
	r := New(nil)
	n, _ := r.Register(1, 1, "node", KindConsumer, "ctl", "procA")
	r.GetCloneForID(n.ID, "procB")

	owned := r.DropProcess("procA")
	if len(owned) != 1 || owned[0] != n.ID {
		t.Fatalf("expected node %d to be dropped, got %v", n.ID, owned)
	}
	if _, err := r.LiveNodeInfo(n.ID); !mberrors.Is(err, mberrors.NotFound) {
		t.Fatalf("expected node removed once its owner departs")
	}
}

func TestDropProcessReleasesNonOwnerClones(t *testing.T) {
	r := New(nil)
	n, _ := r.Register(1, 1, "node", KindConsumer, "ctl", "procA")
	r.GetCloneForID(n.ID, "procB")
	if n.GlobalRef() != 2 {
		t.Fatalf("expected global ref 2 before drop, got %d", n.GlobalRef())
	}

	owned := r.DropProcess("procB")
	if len(owned) != 0 {
		t.Fatalf("procB does not own the node, expected no owned ids, got %v", owned)
	}
	if n.GlobalRef() != 1 {
		t.Fatalf("expected global ref 1 after procB's clone is dropped, got %d", n.GlobalRef())
	}
}

func TestDropProcessScrubsSurvivingPeerEndpoints(t *testing.T) {
	notif := &recordingNotifier{}
	r := New(notif)

	x, _ := r.Register(1, 1, "X", KindProducer, "ctl-x", "procA")
	_, _ = r.Register(1, 2, "Y", KindConsumer, "ctl-y", "procB")

	if err := r.PublishOutputs(x.ID, []Endpoint{{Port: "node-out", Name: "conn-1"}}); err != nil {
		t.Fatalf("publish outputs: %v", err)
	}
	y, err := r.GetCloneForID(x.ID+1, "procB")
	if err != nil {
		t.Fatalf("clone: %v", err)
	}
	if err := r.PublishInputs(y.ID, []Endpoint{{Port: "node-in", Name: "conn-1"}}); err != nil {
		t.Fatalf("publish inputs: %v", err)
	}
	notif.events = nil

	owned := r.DropProcess("procA")
	if len(owned) != 1 || owned[0] != x.ID {
		t.Fatalf("expected X to be dropped, got %v", owned)
	}
	if got := y.Inputs(); len(got) != 0 {
		t.Fatalf("expected Y's input referencing the dead connection to be scrubbed, got %v", got)
	}
	found := false
	for _, kind := range notif.events {
		if kind == "connection-broken" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a connection-broken event for surviving peer Y, got %v", notif.events)
	}
}
