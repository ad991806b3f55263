// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package coordinator

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/bureau-foundation/wikirc/lib/authorization"
	"github.com/bureau-foundation/wikirc/lib/clock"
	"github.com/bureau-foundation/wikirc/lib/testutil"
	"github.com/bureau-foundation/wikirc/permission"
	"github.com/bureau-foundation/wikirc/wiki"
)

const testTimeout = 5 * time.Second

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestCoordinator(t *testing.T, gateway *wiki.Fake) (*Coordinator, *clock.FakeClock) {
	t.Helper()
	store, err := permission.Open(filepath.Join(t.TempDir(), "permissions.json"), nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.AddUser("alice", "example.org", "admin"); err != nil {
		t.Fatal(err)
	}
	fakeClock := clock.Fake(epoch)
	coordinator, err := New(Config{
		Gateway:      gateway,
		Permissions:  store,
		Policy:       authorization.DefaultPolicy(),
		Clock:        fakeClock,
		PollInterval: time.Minute,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() {
		coordinator.Stop()
		coordinator.Wait()
	})
	return coordinator, fakeClock
}

func TestNewRequiresGateway(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatal("New without a gateway succeeded")
	}
}

func TestCommandAndNotificationsShareOutbound(t *testing.T) {
	gateway := wiki.NewFake()
	gateway.AddChanges(wiki.Change{Kind: wiki.ChangeNew, Actor: "Spammer", Title: "SpamPage", Comment: "buy now", Timestamp: epoch})
	coordinator, _ := newTestCoordinator(t, gateway)
	ctx := context.Background()

	if err := coordinator.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	notification := testutil.RequireReceive(t, coordinator.Outbound(), testTimeout, "waiting for the first poll")
	if notification != "Spammer made new page titled SpamPage with comment: buy now" {
		t.Errorf("notification = %q", notification)
	}

	if err := coordinator.Deliver(ctx, "alice", "example.org", ".delete SpamPage"); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	reply := testutil.RequireReceive(t, coordinator.Outbound(), testTimeout, "waiting for the delete reply")
	if reply != "Page SpamPage deleted" {
		t.Errorf("reply = %q", reply)
	}
	if calls := gateway.CallsTo(wiki.MethodDeletePage); len(calls) != 1 {
		t.Errorf("DeletePage calls = %v", calls)
	}
}

func TestDeliverIgnoresChatter(t *testing.T) {
	coordinator, _ := newTestCoordinator(t, wiki.NewFake())
	ctx := context.Background()
	if err := coordinator.Start(ctx); err != nil {
		t.Fatal(err)
	}

	for _, line := range []string{"hello", ".weather", "."} {
		if err := coordinator.Deliver(ctx, "alice", "example.org", line); err != nil {
			t.Errorf("Deliver(%q): %v", line, err)
		}
	}
	testutil.RequireNoReceive(t, coordinator.Outbound(), 50*time.Millisecond, "chatter must not produce replies")
}

func TestRemoteCallsNeverOverlap(t *testing.T) {
	gateway := wiki.NewFake()
	coordinator, fakeClock := newTestCoordinator(t, gateway)
	ctx := context.Background()
	if err := coordinator.Start(ctx); err != nil {
		t.Fatal(err)
	}

	titles := []string{"A", "B", "C", "D", "E", "F"}
	for _, title := range titles {
		if err := coordinator.Deliver(ctx, "alice", "example.org", ".delete "+title); err != nil {
			t.Fatal(err)
		}
		fakeClock.Advance(time.Minute)
	}
	for range titles {
		testutil.RequireReceive(t, coordinator.Outbound(), testTimeout, "waiting for delete replies")
	}
	if inFlight := gateway.MaxInFlight(); inFlight != 1 {
		t.Errorf("MaxInFlight = %d, want 1", inFlight)
	}
}

func TestPollFailureDoesNotStopCommands(t *testing.T) {
	gateway := wiki.NewFake()
	gateway.FailNext(wiki.MethodFetchChanges, errors.New("connection refused"))
	coordinator, _ := newTestCoordinator(t, gateway)
	ctx := context.Background()
	cursor := coordinator.Cursor()
	if err := coordinator.Start(ctx); err != nil {
		t.Fatal(err)
	}

	if err := coordinator.Deliver(ctx, "alice", "example.org", ".block Spammer"); err != nil {
		t.Fatal(err)
	}
	if reply := testutil.RequireReceive(t, coordinator.Outbound(), testTimeout, "waiting for block reply"); reply != "User Spammer blocked" {
		t.Errorf("reply = %q", reply)
	}
	if !coordinator.Cursor().Equal(cursor) {
		t.Errorf("cursor moved from %v to %v after a failed poll", cursor, coordinator.Cursor())
	}
}

func TestStopWaitsForInFlightCommand(t *testing.T) {
	gateway := wiki.NewFake()
	release := gateway.Gate(wiki.MethodBlockUser)
	defer release()
	coordinator, _ := newTestCoordinator(t, gateway)
	ctx := context.Background()
	if err := coordinator.Start(ctx); err != nil {
		t.Fatal(err)
	}

	if err := coordinator.Deliver(ctx, "alice", "example.org", ".block Spammer"); err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(testTimeout)
	for len(gateway.CallsTo(wiki.MethodBlockUser)) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("block never reached the gateway")
		}
		time.Sleep(time.Millisecond)
	}

	coordinator.Stop()
	select {
	case <-coordinator.Done():
		t.Fatal("coordinator finished with a command in flight")
	case <-time.After(50 * time.Millisecond):
	}

	if err := coordinator.Deliver(ctx, "alice", "example.org", ".block Other"); !errors.Is(err, ErrStopped) {
		t.Errorf("Deliver after Stop = %v, want ErrStopped", err)
	}

	release()
	testutil.RequireClosed(t, coordinator.Done(), testTimeout, "waiting for shutdown")
	if calls := gateway.CallsTo(wiki.MethodBlockUser); len(calls) != 1 {
		t.Errorf("BlockUser calls = %v, want only the first", calls)
	}
}

func TestStartTwice(t *testing.T) {
	coordinator, _ := newTestCoordinator(t, wiki.NewFake())
	ctx := context.Background()
	if err := coordinator.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if err := coordinator.Start(ctx); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("second Start = %v, want ErrAlreadyStarted", err)
	}
}

func TestStopWithoutStart(t *testing.T) {
	coordinator, _ := newTestCoordinator(t, wiki.NewFake())
	coordinator.Stop()
	testutil.RequireClosed(t, coordinator.Done(), testTimeout, "Wait must return for a never-started coordinator")
	if err := coordinator.Start(context.Background()); !errors.Is(err, ErrStopped) {
		t.Errorf("Start after Stop = %v, want ErrStopped", err)
	}
}

func TestParentCancelStopsDelivery(t *testing.T) {
	coordinator, _ := newTestCoordinator(t, wiki.NewFake())
	ctx, cancel := context.WithCancel(context.Background())
	if err := coordinator.Start(ctx); err != nil {
		t.Fatal(err)
	}

	cancel()
	testutil.RequireClosed(t, coordinator.Done(), testTimeout, "waiting for shutdown after parent cancel")

	for range 10 {
		if err := coordinator.Deliver(context.Background(), "alice", "example.org", ".block Spammer"); !errors.Is(err, ErrStopped) {
			t.Fatalf("Deliver after parent cancel = %v, want ErrStopped", err)
		}
	}
}
