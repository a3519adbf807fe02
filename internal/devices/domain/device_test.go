package devices

import (
	"errors"
	"testing"
	"time"
)

func TestTransitionForwardPath(t *testing.T) {
	now := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	device := &Device{ID: "dev-1", Status: StatusInventory}

	if err := device.Transition(StatusSold, now); err != nil {
		t.Fatalf("inventory→sold: %v", err)
	}
	device.OrderID = "ord-1"
	if err := device.Transition(StatusActive, now); err != nil {
		t.Fatalf("sold→active: %v", err)
	}
	if !device.ActivatedAt.Equal(now) {
		t.Fatalf("expected activatedAt stamped, got %v", device.ActivatedAt)
	}
	if err := device.Transition(StatusDepleted, now); err != nil {
		t.Fatalf("active→depleted: %v", err)
	}
}

func TestTransitionActivationConflicts(t *testing.T) {
	now := time.Now().UTC()
	cases := []struct {
		from Status
		want error
	}{
		{StatusInventory, ErrNotPurchased},
		{StatusActive, ErrAlreadyActive},
		{StatusDepleted, ErrDepleted},
	}
	for _, tc := range cases {
		device := &Device{ID: "dev-1", Status: tc.from}
		err := device.Transition(StatusActive, now)
		if !errors.Is(err, tc.want) {
			t.Fatalf("activation from %s: expected %v, got %v", tc.from, tc.want, err)
		}
	}
}

func TestTransitionActivatedAtSetOnce(t *testing.T) {
	first := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	later := first.Add(48 * time.Hour)
	device := &Device{ID: "dev-1", Status: StatusSold, ActivatedAt: first}

	if err := device.Transition(StatusActive, later); err != nil {
		t.Fatalf("activate: %v", err)
	}
	if !device.ActivatedAt.Equal(first) {
		t.Fatalf("expected activatedAt unchanged, got %v", device.ActivatedAt)
	}
}

func TestTransitionResetRequiresNoOwner(t *testing.T) {
	now := time.Now().UTC()
	owned := &Device{ID: "dev-1", Status: StatusDepleted, OrderID: "ord-1"}
	if err := owned.Transition(StatusInventory, now); !errors.Is(err, ErrStillOwned) {
		t.Fatalf("expected ErrStillOwned, got %v", err)
	}

	released := &Device{ID: "dev-2", Status: StatusDepleted}
	if err := released.Transition(StatusInventory, now); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if released.Status != StatusInventory {
		t.Fatalf("expected INVENTORY, got %s", released.Status)
	}
}

func TestTransitionRejectsSkips(t *testing.T) {
	now := time.Now().UTC()
	cases := []struct {
		from Status
		to   Status
	}{
		{StatusInventory, StatusDepleted},
		{StatusSold, StatusDepleted},
		{StatusActive, StatusSold},
		{StatusDepleted, StatusSold},
	}
	for _, tc := range cases {
		device := &Device{ID: "dev-1", Status: tc.from}
		if err := device.Transition(tc.to, now); !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("%s→%s: expected ErrInvalidTransition, got %v", tc.from, tc.to, err)
		}
	}
}
