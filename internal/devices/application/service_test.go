package application

import (
	"context"
	"errors"
	"log"
	"testing"
	"time"

	"cargotrack-cloud/internal/auth"
	devices "cargotrack-cloud/internal/devices/domain"
	devicememory "cargotrack-cloud/internal/devices/infrastructure/memory"
	orders "cargotrack-cloud/internal/orders/domain"
	ordermemory "cargotrack-cloud/internal/orders/infrastructure/memory"
)

type stubBinder struct {
	ownerUserID string
	ownerOrgID  string
	found       bool
	attached    []string
}

func (b *stubBinder) Owner(_ context.Context, _ string) (string, string, bool, error) {
	return b.ownerUserID, b.ownerOrgID, b.found, nil
}

func (b *stubBinder) AttachDevice(_ context.Context, shipmentID, deviceID string) error {
	b.attached = append(b.attached, shipmentID+"|"+deviceID)
	return nil
}

func callerContext(userID, orgID string, role auth.Role) context.Context {
	return auth.WithIdentity(context.Background(), auth.Identity{UserID: userID, OrgID: orgID, Role: role})
}

func newTestService(t *testing.T, binder ShipmentBinder) (*Service, *devicememory.DeviceRepository, *ordermemory.OrderRepository) {
	t.Helper()
	deviceRepo := devicememory.NewDeviceRepository()
	orderRepo := ordermemory.NewOrderRepository()
	opts := []ServiceOption{}
	if binder != nil {
		opts = append(opts, WithShipmentBinder(binder))
	}
	service, err := NewService(deviceRepo, orderRepo, log.Default(), opts...)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return service, deviceRepo, orderRepo
}

func seedSoldDevice(t *testing.T, deviceRepo *devicememory.DeviceRepository, orderRepo *ordermemory.OrderRepository, userID, orgID string) {
	t.Helper()
	ctx := context.Background()
	if err := orderRepo.Save(ctx, &orders.Order{ID: "ord-1", UserID: userID, OrgID: orgID, Status: orders.StatusShipped}); err != nil {
		t.Fatalf("seed order: %v", err)
	}
	if err := deviceRepo.Save(ctx, &devices.Device{ID: "dev-1", Status: devices.StatusSold, OrderID: "ord-1"}); err != nil {
		t.Fatalf("seed device: %v", err)
	}
}

func TestActivateFromSold(t *testing.T) {
	service, deviceRepo, orderRepo := newTestService(t, nil)
	seedSoldDevice(t, deviceRepo, orderRepo, "user-1", "org-1")

	result, err := service.Activate(callerContext("user-1", "org-1", auth.RoleMember), "dev-1", "")
	if err != nil {
		t.Fatalf("activate: %v", err)
	}
	if result.Device.Status != devices.StatusActive {
		t.Fatalf("expected ACTIVE, got %s", result.Device.Status)
	}
	if result.Device.ActivatedAt.IsZero() {
		t.Fatal("expected activatedAt stamped")
	}
}

func TestActivateConflictReasons(t *testing.T) {
	cases := []struct {
		status devices.Status
		want   error
	}{
		{devices.StatusInventory, devices.ErrNotPurchased},
		{devices.StatusActive, devices.ErrAlreadyActive},
		{devices.StatusDepleted, devices.ErrDepleted},
	}
	for _, tc := range cases {
		service, deviceRepo, orderRepo := newTestService(t, nil)
		ctx := context.Background()
		if err := orderRepo.Save(ctx, &orders.Order{ID: "ord-1", UserID: "user-1", Status: orders.StatusShipped}); err != nil {
			t.Fatalf("seed order: %v", err)
		}
		orderID := "ord-1"
		if tc.status == devices.StatusInventory {
			orderID = ""
		}
		if err := deviceRepo.Save(ctx, &devices.Device{ID: "dev-1", Status: tc.status, OrderID: orderID}); err != nil {
			t.Fatalf("seed device: %v", err)
		}

		_, err := service.Activate(callerContext("user-1", "", auth.RoleMember), "dev-1", "")
		if !errors.Is(err, tc.want) {
			t.Fatalf("activation from %s: expected %v, got %v", tc.status, tc.want, err)
		}
	}
}

func TestActivateForbiddenForNonOwner(t *testing.T) {
	service, deviceRepo, orderRepo := newTestService(t, nil)
	seedSoldDevice(t, deviceRepo, orderRepo, "user-1", "org-1")

	_, err := service.Activate(callerContext("user-2", "org-2", auth.RoleMember), "dev-1", "")
	if !errors.Is(err, auth.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestActivateBindsOwnedShipment(t *testing.T) {
	binder := &stubBinder{ownerUserID: "user-1", ownerOrgID: "org-1", found: true}
	service, deviceRepo, orderRepo := newTestService(t, binder)
	seedSoldDevice(t, deviceRepo, orderRepo, "user-1", "org-1")

	result, err := service.Activate(callerContext("user-1", "org-1", auth.RoleMember), "dev-1", "shp-1")
	if err != nil {
		t.Fatalf("activate: %v", err)
	}
	if !result.Binding.Bound {
		t.Fatalf("expected binding, got %+v", result.Binding)
	}
	if len(binder.attached) != 1 || binder.attached[0] != "shp-1|dev-1" {
		t.Fatalf("unexpected attach calls: %v", binder.attached)
	}
}

func TestActivateIgnoresMismatchedBinding(t *testing.T) {
	binder := &stubBinder{ownerUserID: "someone-else", found: true}
	service, deviceRepo, orderRepo := newTestService(t, binder)
	seedSoldDevice(t, deviceRepo, orderRepo, "user-1", "")

	result, err := service.Activate(callerContext("user-1", "", auth.RoleMember), "dev-1", "shp-1")
	if err != nil {
		t.Fatalf("expected activation to succeed despite binding mismatch: %v", err)
	}
	if result.Device.Status != devices.StatusActive {
		t.Fatalf("expected ACTIVE, got %s", result.Device.Status)
	}
	if result.Binding.Bound {
		t.Fatal("expected binding skipped")
	}
	if result.Binding.Reason != "owner mismatch" {
		t.Fatalf("expected owner mismatch reason, got %q", result.Binding.Reason)
	}
	if len(binder.attached) != 0 {
		t.Fatalf("expected no attach call, got %v", binder.attached)
	}
}

func TestAssignAndReset(t *testing.T) {
	service, deviceRepo, orderRepo := newTestService(t, nil)
	ctx := context.Background()
	if err := orderRepo.Save(ctx, &orders.Order{ID: "ord-1", UserID: "user-1", Status: orders.StatusPlaced}); err != nil {
		t.Fatalf("seed order: %v", err)
	}
	if err := deviceRepo.Save(ctx, &devices.Device{ID: "dev-1", Status: devices.StatusInventory}); err != nil {
		t.Fatalf("seed device: %v", err)
	}

	device, err := service.Assign(ctx, "dev-1", "ord-1")
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if device.Status != devices.StatusSold || device.OrderID != "ord-1" {
		t.Fatalf("unexpected device after assign: %+v", device)
	}

	// Reset blocked while the order link remains.
	if _, err := service.Reset(ctx, "dev-1"); !errors.Is(err, devices.ErrStillOwned) {
		t.Fatalf("expected ErrStillOwned, got %v", err)
	}

	device.OrderID = ""
	if err := deviceRepo.Save(ctx, device); err != nil {
		t.Fatalf("clear owner: %v", err)
	}
	reset, err := service.Reset(ctx, "dev-1")
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if reset.Status != devices.StatusInventory {
		t.Fatalf("expected INVENTORY, got %s", reset.Status)
	}
}

func TestActivatedAtNotRestamped(t *testing.T) {
	service, deviceRepo, orderRepo := newTestService(t, nil)
	seedSoldDevice(t, deviceRepo, orderRepo, "user-1", "")
	ctx := callerContext("user-1", "", auth.RoleMember)

	first, err := service.Activate(ctx, "dev-1", "")
	if err != nil {
		t.Fatalf("activate: %v", err)
	}
	activatedAt := first.Device.ActivatedAt

	time.Sleep(time.Millisecond)
	if _, err := service.Activate(ctx, "dev-1", ""); !errors.Is(err, devices.ErrAlreadyActive) {
		t.Fatalf("expected ErrAlreadyActive, got %v", err)
	}
	stored, err := deviceRepo.Get(ctx, "dev-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !stored.ActivatedAt.Equal(activatedAt) {
		t.Fatalf("expected activatedAt unchanged, got %v", stored.ActivatedAt)
	}
}
