package settlement

import (
	"encoding/json"
	"errors"

	"github.com/Domenick1991/airsettle/internal/apperr"
	"github.com/Domenick1991/airsettle/internal/domain"
	"github.com/Domenick1991/airsettle/internal/gateway"
	"github.com/Domenick1991/airsettle/internal/inventory"
)

// outcome is the settlement decision for one inventory call.
type outcome struct {
	status domain.SettlementStatus
	// operation is the gateway action that must follow the record write.
	operation   string
	order       *domain.Order
	failureBody json.RawMessage
	reason      string
}

// decide maps the inventory result to CONFIRMED with capture when an order
// came back, and to FAILED with release otherwise.
func decide(order *domain.Order, err error) outcome {
	if err == nil && order != nil {
		return outcome{
			status:    domain.SettlementConfirmed,
			operation: gateway.OperationCapture,
			order:     order,
		}
	}

	out := outcome{
		status:    domain.SettlementFailed,
		operation: gateway.OperationRelease,
		reason:    "empty order",
	}
	var invErr *inventory.Error
	switch {
	case errors.As(err, &invErr):
		out.failureBody = invErr.Body
		out.reason = string(invErr.Kind)
	case err != nil:
		out.reason = apperr.Kind(err)
	}
	return out
}
