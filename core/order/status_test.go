package order

import (
	"errors"
	"testing"
)

func TestPlan(t *testing.T) {
	tests := []struct {
		name   string
		from   Status
		action Action
		by     Role
		to     Status
		err    error
	}{
		{"seller delivers pending", StatusPending, ActionDeliver, RoleSeller, StatusDelivered, nil},
		{"buyer rejects delivered", StatusDelivered, ActionReject, RoleBuyer, StatusPending, nil},
		{"buyer accepts delivered", StatusDelivered, ActionAccept, RoleBuyer, StatusAccepted, nil},
		{"system completes accepted", StatusAccepted, ActionComplete, RoleSystem, StatusCompleted, nil},

		{"buyer cannot deliver", StatusPending, ActionDeliver, RoleBuyer, "", ErrUnauthorized},
		{"seller cannot accept", StatusDelivered, ActionAccept, RoleSeller, "", ErrUnauthorized},
		{"seller cannot reject", StatusDelivered, ActionReject, RoleSeller, "", ErrUnauthorized},
		{"stranger cannot deliver", StatusPending, ActionDeliver, RoleNone, "", ErrUnauthorized},
		{"buyer cannot complete", StatusAccepted, ActionComplete, RoleBuyer, "", ErrUnauthorized},

		{"cannot deliver twice", StatusDelivered, ActionDeliver, RoleSeller, "", ErrInvalidState},
		{"cannot deliver accepted", StatusAccepted, ActionDeliver, RoleSeller, "", ErrInvalidState},
		{"cannot deliver completed", StatusCompleted, ActionDeliver, RoleSeller, "", ErrInvalidState},
		{"cannot accept pending", StatusPending, ActionAccept, RoleBuyer, "", ErrInvalidState},
		{"cannot accept completed", StatusCompleted, ActionAccept, RoleBuyer, "", ErrInvalidState},
		{"cannot reject pending", StatusPending, ActionReject, RoleBuyer, "", ErrInvalidState},
		{"cannot reject accepted", StatusAccepted, ActionReject, RoleBuyer, "", ErrInvalidState},
		{"cannot complete pending", StatusPending, ActionComplete, RoleSystem, "", ErrInvalidState},
		{"cannot complete delivered", StatusDelivered, ActionComplete, RoleSystem, "", ErrInvalidState},
		{"cannot complete twice", StatusCompleted, ActionComplete, RoleSystem, "", ErrInvalidState},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			to, err := Plan(tt.from, tt.action, tt.by)

			if tt.err != nil {
				if !errors.Is(err, tt.err) {
					t.Fatalf("expected error %v, got %v", tt.err, err)
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if to != tt.to {
				t.Fatalf("expected target status %s, got %s", tt.to, to)
			}
		})
	}
}

func TestRejectIsNotTerminal(t *testing.T) {
	// A rejected delivery goes back to pending and can be delivered again.
	to, err := Plan(StatusDelivered, ActionReject, RoleBuyer)
	if err != nil {
		t.Fatalf("rejecting a delivered order: %v", err)
	}
	if to != StatusPending {
		t.Fatalf("expected reject to return the order to pending, got %s", to)
	}

	if _, err := Plan(to, ActionDeliver, RoleSeller); err != nil {
		t.Fatalf("redelivering a rejected order: %v", err)
	}
}

func TestRoleOf(t *testing.T) {
	ord := Order{BuyerID: "buyer-1", SellerID: "seller-1"}

	if got := RoleOf(ord, "buyer-1"); got != RoleBuyer {
		t.Fatalf("expected RoleBuyer, got %v", got)
	}
	if got := RoleOf(ord, "seller-1"); got != RoleSeller {
		t.Fatalf("expected RoleSeller, got %v", got)
	}
	if got := RoleOf(ord, "somebody-else"); got != RoleNone {
		t.Fatalf("expected RoleNone, got %v", got)
	}
}
