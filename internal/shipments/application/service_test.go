package application

import (
	"context"
	"errors"
	"log"
	"sync"
	"testing"
	"time"

	"cargotrack-cloud/internal/auth"
	devices "cargotrack-cloud/internal/devices/domain"
	devicememory "cargotrack-cloud/internal/devices/infrastructure/memory"
	shipments "cargotrack-cloud/internal/shipments/domain"
	shipmentmemory "cargotrack-cloud/internal/shipments/infrastructure/memory"
	telemetry "cargotrack-cloud/internal/telemetry/domain"
	eventmemory "cargotrack-cloud/internal/telemetry/infrastructure/memory"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func callerContext(userID, orgID string, role auth.Role) context.Context {
	return auth.WithIdentity(context.Background(), auth.Identity{UserID: userID, OrgID: orgID, Role: role})
}

func newTestService(t *testing.T, clock Clock) (*Service, *shipmentmemory.ShipmentRepository, *eventmemory.EventRepository) {
	t.Helper()
	shipmentRepo := shipmentmemory.NewShipmentRepository()
	deviceRepo := devicememory.NewDeviceRepository()
	eventRepo := eventmemory.NewEventRepository()
	if err := deviceRepo.Save(context.Background(), &devices.Device{ID: "dev-1", Status: devices.StatusActive}); err != nil {
		t.Fatalf("seed device: %v", err)
	}
	opts := []ServiceOption{}
	if clock != nil {
		opts = append(opts, WithClock(clock))
	}
	service, err := NewService(shipmentRepo, deviceRepo, eventRepo, log.Default(), opts...)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return service, shipmentRepo, eventRepo
}

func destination() (*float64, *float64) {
	lat := 51.5074
	lng := -0.1278
	return &lat, &lng
}

func TestCreateRequiresDestination(t *testing.T) {
	service, _, _ := newTestService(t, nil)
	ctx := callerContext("user-1", "org-1", auth.RoleMember)

	_, err := service.Create(ctx, CreateInput{DeviceID: "dev-1"})
	if !errors.Is(err, shipments.ErrNoDestination) {
		t.Fatalf("expected ErrNoDestination, got %v", err)
	}
}

func TestCreateStartsPendingWithShareCode(t *testing.T) {
	service, _, _ := newTestService(t, nil)
	ctx := callerContext("user-1", "org-1", auth.RoleMember)
	lat, lng := destination()

	shipment, err := service.Create(ctx, CreateInput{DeviceID: "dev-1", DestinationLat: lat, DestinationLng: lng})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if shipment.Status != shipments.StatusPending {
		t.Fatalf("expected PENDING, got %s", shipment.Status)
	}
	if shipment.ShareCode == "" {
		t.Fatal("expected share code generated")
	}
	if !shipment.ShareEnabled {
		t.Fatal("expected sharing enabled by default")
	}
	if shipment.UserID != "user-1" || shipment.OrgID != "org-1" {
		t.Fatalf("unexpected owner fields: %+v", shipment)
	}
}

func TestCreateRejectsUnknownDevice(t *testing.T) {
	service, _, _ := newTestService(t, nil)
	lat, lng := destination()

	_, err := service.Create(callerContext("user-1", "", auth.RoleMember), CreateInput{DeviceID: "dev-missing", DestinationLat: lat, DestinationLng: lng})
	if !errors.Is(err, devices.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetEnforcesScope(t *testing.T) {
	service, _, _ := newTestService(t, nil)
	lat, lng := destination()
	created, err := service.Create(callerContext("user-1", "org-1", auth.RoleMember), CreateInput{DeviceID: "dev-1", DestinationLat: lat, DestinationLng: lng})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Same-org member without elevated role is pinned to own records.
	if _, err := service.Get(callerContext("user-2", "org-1", auth.RoleMember), created.ID); !errors.Is(err, auth.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for colleague, got %v", err)
	}
	// Manager of the same org sees it.
	if _, err := service.Get(callerContext("user-2", "org-1", auth.RoleManager), created.ID); err != nil {
		t.Fatalf("manager get: %v", err)
	}
	// Manager of another org does not.
	if _, err := service.Get(callerContext("user-3", "org-2", auth.RoleManager), created.ID); !errors.Is(err, auth.ErrForbidden) {
		t.Fatalf("expected ErrForbidden cross-org, got %v", err)
	}
	// Admin sees everything.
	if _, err := service.Get(callerContext("user-4", "", auth.RoleAdmin), created.ID); err != nil {
		t.Fatalf("admin get: %v", err)
	}
}

func TestUpdateDeliveredStampsTime(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)}
	service, _, _ := newTestService(t, clock)
	ctx := callerContext("user-1", "", auth.RoleMember)
	lat, lng := destination()
	created, err := service.Create(ctx, CreateInput{DeviceID: "dev-1", DestinationLat: lat, DestinationLng: lng})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	inTransit := shipments.StatusInTransit
	if _, err := service.Update(ctx, created.ID, Patch{Status: &inTransit}); err != nil {
		t.Fatalf("mark in transit: %v", err)
	}

	clock.Advance(2 * time.Hour)
	delivered := shipments.StatusDelivered
	updated, err := service.Update(ctx, created.ID, Patch{Status: &delivered})
	if err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if !updated.DeliveredAt.Equal(clock.Now()) {
		t.Fatalf("expected deliveredAt %v, got %v", clock.Now(), updated.DeliveredAt)
	}

	// Terminal status blocks further changes.
	cancelled := shipments.StatusCancelled
	if _, err := service.Update(ctx, created.ID, Patch{Status: &cancelled}); !errors.Is(err, shipments.ErrTerminalStatus) {
		t.Fatalf("expected ErrTerminalStatus, got %v", err)
	}
}

func TestCancelKeepsRecord(t *testing.T) {
	service, shipmentRepo, _ := newTestService(t, nil)
	ctx := callerContext("user-1", "", auth.RoleMember)
	lat, lng := destination()
	created, err := service.Create(ctx, CreateInput{DeviceID: "dev-1", DestinationLat: lat, DestinationLng: lng})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	cancelled, err := service.Cancel(ctx, created.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != shipments.StatusCancelled {
		t.Fatalf("expected CANCELLED, got %s", cancelled.Status)
	}
	stored, err := shipmentRepo.Get(context.Background(), created.ID)
	if err != nil || stored == nil {
		t.Fatalf("expected record retained, got %v / %v", stored, err)
	}
}

func TestTrackPublicLookup(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)}
	service, _, eventRepo := newTestService(t, clock)
	ctx := callerContext("user-1", "", auth.RoleMember)
	lat, lng := destination()
	created, err := service.Create(ctx, CreateInput{DeviceID: "dev-1", DestinationLat: lat, DestinationLng: lng})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	recordedAt := clock.Now().Add(-time.Minute)
	if err := eventRepo.Insert(context.Background(), &telemetry.LocationEvent{
		ID: telemetry.NewEventID(), DeviceID: "dev-1", Latitude: 51.5, Longitude: -0.12, RecordedAt: recordedAt,
	}); err != nil {
		t.Fatalf("seed event: %v", err)
	}

	view, err := service.Track(context.Background(), created.ShareCode)
	if err != nil {
		t.Fatalf("track: %v", err)
	}
	if view.Status != shipments.StatusPending {
		t.Fatalf("expected PENDING, got %s", view.Status)
	}
	if len(view.Positions) != 1 || !view.Positions[0].RecordedAt.Equal(recordedAt) {
		t.Fatalf("unexpected positions: %+v", view.Positions)
	}

	if _, err := service.Track(context.Background(), "no-such-code"); !errors.Is(err, shipments.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestTrackDisabledLooksMissing(t *testing.T) {
	service, _, _ := newTestService(t, nil)
	ctx := callerContext("user-1", "", auth.RoleMember)
	lat, lng := destination()
	created, err := service.Create(ctx, CreateInput{DeviceID: "dev-1", DestinationLat: lat, DestinationLng: lng})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	disabled := false
	if _, err := service.Update(ctx, created.ID, Patch{ShareEnabled: &disabled}); err != nil {
		t.Fatalf("disable sharing: %v", err)
	}

	if _, err := service.Track(context.Background(), created.ShareCode); !errors.Is(err, shipments.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for disabled share, got %v", err)
	}
}

func TestTrackExpiresAfterDeliveryWindow(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)}
	service, _, _ := newTestService(t, clock)
	ctx := callerContext("user-1", "", auth.RoleMember)
	lat, lng := destination()
	created, err := service.Create(ctx, CreateInput{DeviceID: "dev-1", DestinationLat: lat, DestinationLng: lng})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	inTransit := shipments.StatusInTransit
	if _, err := service.Update(ctx, created.ID, Patch{Status: &inTransit}); err != nil {
		t.Fatalf("mark in transit: %v", err)
	}
	delivered := shipments.StatusDelivered
	if _, err := service.Update(ctx, created.ID, Patch{Status: &delivered}); err != nil {
		t.Fatalf("deliver: %v", err)
	}

	// 89 days after delivery the link still resolves.
	clock.Advance(89 * 24 * time.Hour)
	if _, err := service.Track(context.Background(), created.ShareCode); err != nil {
		t.Fatalf("track within window: %v", err)
	}

	// Past 90 days it reports expiry, not absence.
	clock.Advance(2 * 24 * time.Hour)
	if _, err := service.Track(context.Background(), created.ShareCode); !errors.Is(err, shipments.ErrShareExpired) {
		t.Fatalf("expected ErrShareExpired, got %v", err)
	}
}

func TestAttachDeviceRejectsTerminal(t *testing.T) {
	service, _, _ := newTestService(t, nil)
	ctx := callerContext("user-1", "", auth.RoleMember)
	lat, lng := destination()
	created, err := service.Create(ctx, CreateInput{DeviceID: "dev-1", DestinationLat: lat, DestinationLng: lng})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := service.Cancel(ctx, created.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	if err := service.AttachDevice(context.Background(), created.ID, "dev-2"); !errors.Is(err, shipments.ErrTerminalStatus) {
		t.Fatalf("expected ErrTerminalStatus, got %v", err)
	}
}

func TestListScopes(t *testing.T) {
	service, _, _ := newTestService(t, nil)
	lat, lng := destination()
	if _, err := service.Create(callerContext("user-1", "org-1", auth.RoleMember), CreateInput{DeviceID: "dev-1", DestinationLat: lat, DestinationLng: lng}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := service.Create(callerContext("user-2", "org-1", auth.RoleMember), CreateInput{DeviceID: "dev-1", DestinationLat: lat, DestinationLng: lng}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := service.Create(callerContext("user-3", "org-2", auth.RoleMember), CreateInput{DeviceID: "dev-1", DestinationLat: lat, DestinationLng: lng}); err != nil {
		t.Fatalf("create: %v", err)
	}

	own, err := service.List(callerContext("user-1", "org-1", auth.RoleMember))
	if err != nil {
		t.Fatalf("member list: %v", err)
	}
	if len(own) != 1 {
		t.Fatalf("expected member to see 1 shipment, got %d", len(own))
	}

	org, err := service.List(callerContext("user-9", "org-1", auth.RoleManager))
	if err != nil {
		t.Fatalf("manager list: %v", err)
	}
	if len(org) != 2 {
		t.Fatalf("expected manager to see 2 shipments, got %d", len(org))
	}

	all, err := service.List(callerContext("user-0", "", auth.RoleAdmin))
	if err != nil {
		t.Fatalf("admin list: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected admin to see 3 shipments, got %d", len(all))
	}
}
