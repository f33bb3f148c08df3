package order

import "errors"

type Status string

const (
	StatusPending   Status = "pending"
	StatusDelivered Status = "delivered"
	StatusAccepted  Status = "accepted"
	StatusCompleted Status = "completed"
)

// Action is a requested move through the order lifecycle.
type Action string

const (
	ActionDeliver  Action = "deliver"
	ActionReject   Action = "reject"
	ActionAccept   Action = "accept"
	ActionComplete Action = "complete"
)

// Role is the actor's relation to a specific order, not an account role.
type Role int

const (
	RoleNone Role = iota
	RoleBuyer
	RoleSeller

	// RoleSystem performs transitions driven by payment reconciliation.
	RoleSystem
)

var (
	ErrUnauthorized = errors.New("actor not entitled to perform this action on this order")
	ErrInvalidState = errors.New("action not valid from the current order status")
)

// RoleOf derives the actor's role by identity comparison with the order's
// parties.
func RoleOf(ord Order, actorID string) Role {
	switch actorID {
	case ord.BuyerID:
		return RoleBuyer
	case ord.SellerID:
		return RoleSeller
	}
	return RoleNone
}

// actionRoles maps each action to the only role allowed to request it.
var actionRoles = map[Action]Role{
	ActionDeliver:  RoleSeller,
	ActionReject:   RoleBuyer,
	ActionAccept:   RoleBuyer,
	ActionComplete: RoleSystem,
}

type transitionKey struct {
	From   Status
	Action Action
}

// transitions is the full lifecycle: pending -> delivered -> accepted ->
// completed, with reject as the back-edge delivered -> pending. A rejected
// delivery is not terminal: the seller can deliver again.
var transitions = map[transitionKey]Status{
	{StatusPending, ActionDeliver}:   StatusDelivered,
	{StatusDelivered, ActionReject}:  StatusPending,
	{StatusDelivered, ActionAccept}:  StatusAccepted,
	{StatusAccepted, ActionComplete}: StatusCompleted,
}

// Plan validates a requested transition and returns the target status.
// The actor check comes first, matching the endpoint semantics: a seller
// asking to accept is unauthorized even if the state would not allow it
// either.
func Plan(from Status, action Action, by Role) (Status, error) {
	required, ok := actionRoles[action]
	if !ok || by != required {
		return "", ErrUnauthorized
	}

	to, ok := transitions[transitionKey{From: from, Action: action}]
	if !ok {
		return "", ErrInvalidState
	}

	return to, nil
}
