// Package lifecycle applies status and payment changes to existing appointments.
package lifecycle

import "github.com/md-rashed-zaman/slotkeeper/services/booking-service/internal/model"

type edge struct {
	from model.Status
	to   model.Status
}

var statusEdges = map[edge][]model.Role{
	{model.StatusPending, model.StatusConfirmed}:   {model.RoleProvider},
	{model.StatusPending, model.StatusExecuting}:   {model.RoleProvider},
	{model.StatusPending, model.StatusCanceled}:    {model.RoleClient, model.RoleProvider},
	{model.StatusPending, model.StatusNoShow}:      {model.RoleProvider},
	{model.StatusConfirmed, model.StatusExecuting}: {model.RoleProvider},
	{model.StatusConfirmed, model.StatusCanceled}:  {model.RoleClient, model.RoleProvider},
	{model.StatusConfirmed, model.StatusNoShow}:    {model.RoleProvider},
	{model.StatusExecuting, model.StatusCompleted}: {model.RoleProvider},
	{model.StatusExecuting, model.StatusConfirmed}: {model.RoleProvider},
	{model.StatusExecuting, model.StatusCanceled}:  {model.RoleProvider},
	{model.StatusExecuting, model.StatusNoShow}:    {model.RoleProvider},
}

// CanTransition reports whether role may move an appointment from one status to another.
// completed, canceled and no_show have no outgoing edges.
func CanTransition(from, to model.Status, role model.Role) bool {
	for _, r := range statusEdges[edge{from, to}] {
		if r == role {
			return true
		}
	}
	return false
}

// CanSetPayment reports whether role may move the payment channel from one value to
// another given the appointment status. The payment gateway drives pending -> paid|failed
// and paid -> refunded; the provider may mark paid_externally unless canceled.
func CanSetPayment(from, to model.PaymentStatus, status model.Status, role model.Role) bool {
	if !to.Valid() || from == to {
		return false
	}
	switch role {
	case model.RoleSystem:
		switch from {
		case model.PaymentPending:
			return to == model.PaymentPaid || to == model.PaymentFailed
		case model.PaymentPaid:
			return to == model.PaymentRefunded
		}
		return false
	case model.RoleProvider:
		return to == model.PaymentPaidExternally && status != model.StatusCanceled
	}
	return false
}
