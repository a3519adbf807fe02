package shipments

import (
	"errors"
	"testing"
	"time"
)

func coords(lat, lng float64) (*float64, *float64) {
	return &lat, &lng
}

func TestTransitionDeliveredStampsTime(t *testing.T) {
	now := time.Date(2026, 5, 2, 14, 0, 0, 0, time.UTC)
	lat, lng := coords(40.0, -3.7)
	shipment := &Shipment{ID: "shp-1", UserID: "u1", Status: StatusInTransit, DestinationLat: lat, DestinationLng: lng}

	if err := shipment.Transition(StatusDelivered, now); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if !shipment.DeliveredAt.Equal(now) {
		t.Fatalf("expected deliveredAt=%v, got %v", now, shipment.DeliveredAt)
	}

	// Terminal: nothing moves out of DELIVERED.
	if err := shipment.Transition(StatusCancelled, now); !errors.Is(err, ErrTerminalStatus) {
		t.Fatalf("expected ErrTerminalStatus, got %v", err)
	}
}

func TestTransitionDeliveredRequiresDestination(t *testing.T) {
	shipment := &Shipment{ID: "shp-1", UserID: "u1", Status: StatusInTransit}
	err := shipment.Transition(StatusDelivered, time.Now().UTC())
	if !errors.Is(err, ErrNoDestination) {
		t.Fatalf("expected ErrNoDestination, got %v", err)
	}
}

func TestTransitionCancelFromOpenStates(t *testing.T) {
	now := time.Now().UTC()
	for _, from := range []Status{StatusPending, StatusInTransit} {
		shipment := &Shipment{ID: "shp-1", UserID: "u1", Status: from}
		if err := shipment.Transition(StatusCancelled, now); err != nil {
			t.Fatalf("cancel from %s: %v", from, err)
		}
	}

	cancelled := &Shipment{ID: "shp-2", UserID: "u1", Status: StatusCancelled}
	if err := cancelled.Transition(StatusInTransit, now); !errors.Is(err, ErrTerminalStatus) {
		t.Fatalf("expected ErrTerminalStatus, got %v", err)
	}
}

func TestTransitionSameStatusNoop(t *testing.T) {
	shipment := &Shipment{ID: "shp-1", UserID: "u1", Status: StatusInTransit}
	before := shipment.UpdatedAt
	if err := shipment.Transition(StatusInTransit, time.Now().UTC()); err != nil {
		t.Fatalf("noop transition: %v", err)
	}
	if !shipment.UpdatedAt.Equal(before) {
		t.Fatal("noop transition must not touch the record")
	}
}

func TestTransitionRejectsBackward(t *testing.T) {
	now := time.Now().UTC()
	shipment := &Shipment{ID: "shp-1", UserID: "u1", Status: StatusInTransit}
	if err := shipment.Transition(StatusPending, now); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestDeliveredAtSetOnce(t *testing.T) {
	first := time.Date(2026, 5, 2, 14, 0, 0, 0, time.UTC)
	lat, lng := coords(40.0, -3.7)
	shipment := &Shipment{
		ID: "shp-1", UserID: "u1", Status: StatusInTransit,
		DestinationLat: lat, DestinationLng: lng,
		DeliveredAt: first,
	}
	if err := shipment.Transition(StatusDelivered, first.Add(time.Hour)); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if !shipment.DeliveredAt.Equal(first) {
		t.Fatalf("expected deliveredAt unchanged, got %v", shipment.DeliveredAt)
	}
}
