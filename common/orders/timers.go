package orders

import (
	"context"
	"fmt"
	"time"

	"podmarket/common/app"
	"podmarket/common/db"
)

const escalateUnpaidSQL = `
WITH escalated AS (
	UPDATE orders
	SET status = 'escalated', escalated_at = $1, updated_at = $1
	WHERE status = 'pending_payment' AND payment_due_at <= $1
	RETURNING id, business_id
), notified AS (
	INSERT INTO notifications (business_id, order_id, kind, message, created_at)
	SELECT business_id, id, 'payment_overdue', 'Payment for this order is overdue', $1 FROM escalated
)
SELECT id::text, business_id::text FROM escalated`

const cancelEscalatedSQL = `
WITH cancelled AS (
	UPDATE orders
	SET status = 'cancelled', cancelled_at = $1, updated_at = $1
	WHERE status = 'escalated' AND escalated_at <= $2
	RETURNING id, business_id
), notified AS (
	INSERT INTO notifications (business_id, order_id, kind, message, created_at)
	SELECT business_id, id, 'order_cancelled', 'Order cancelled: payment was not received in time', $1 FROM cancelled
)
SELECT id::text, business_id::text FROM cancelled`

const autoDeliverSQL = `
UPDATE orders
SET status = 'delivered', delivered_at = $1, updated_at = $1,
	payout_status = CASE WHEN source = 'storefront' THEN 'held' ELSE payout_status END,
	payout_release_at = CASE WHEN source = 'storefront' THEN $3 ELSE payout_release_at END
WHERE status = 'shipped' AND shipped_at <= $2
RETURNING id::text, business_id::text`

const releasePayoutsSQL = `
UPDATE orders
SET payout_status = 'ready', updated_at = $1
WHERE payout_status = 'held' AND payout_release_at <= $1
RETURNING id::text, business_id::text`

type EscalationResult struct {
	Escalated []string `json:"escalated"`
	Cancelled []string `json:"cancelled"`
}

type PayoutTimerResult struct {
	Delivered []string `json:"delivered"`
	Ready     []string `json:"ready"`
}

func refIDs(refs []db.Ref) []string {
	ids := make([]string, 0, len(refs))
	for _, ref := range refs {
		ids = append(ids, ref.ID)
	}
	return ids
}

// RunEscalation escalates orders whose payment is overdue and cancels those escalated longer than grace.
// Orders escalated in this run are never cancelled in the same run.
func RunEscalation(ctx context.Context, now time.Time, grace time.Duration) (*EscalationResult, error) {
	var escalated, cancelled []db.Ref
	err := db.WithTx(ctx, func(q db.Querier) error {
		rows, err := q.Query(ctx, cancelEscalatedSQL, now, now.Add(-grace))
		if err != nil {
			return fmt.Errorf("error cancelling escalated orders:\n>>> %w", err)
		}
		if cancelled, err = db.CollectIDs(rows); err != nil {
			return err
		}

		rows, err = q.Query(ctx, escalateUnpaidSQL, now)
		if err != nil {
			return fmt.Errorf("error escalating unpaid orders:\n>>> %w", err)
		}
		if escalated, err = db.CollectIDs(rows); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, ref := range escalated {
		PublishEvent(ctx, Event{OrderID: ref.ID, BusinessID: ref.BusinessID, Status: StatusEscalated, At: now})
	}
	for _, ref := range cancelled {
		PublishEvent(ctx, Event{OrderID: ref.ID, BusinessID: ref.BusinessID, Status: StatusCancelled, At: now})
	}
	app.LoggerFromContext(ctx).Infow("escalation run finished", "escalated", len(escalated), "cancelled", len(cancelled))
	return &EscalationResult{Escalated: refIDs(escalated), Cancelled: refIDs(cancelled)}, nil
}

// RunPayoutTimer marks long-shipped orders as delivered and releases payouts whose hold has expired.
func RunPayoutTimer(ctx context.Context, now time.Time, autoDeliverAfter time.Duration, hold time.Duration) (*PayoutTimerResult, error) {
	var delivered, ready []db.Ref
	err := db.WithTx(ctx, func(q db.Querier) error {
		rows, err := q.Query(ctx, autoDeliverSQL, now, now.Add(-autoDeliverAfter), now.Add(hold))
		if err != nil {
			return fmt.Errorf("error auto-delivering shipped orders:\n>>> %w", err)
		}
		if delivered, err = db.CollectIDs(rows); err != nil {
			return err
		}

		rows, err = q.Query(ctx, releasePayoutsSQL, now)
		if err != nil {
			return fmt.Errorf("error releasing held payouts:\n>>> %w", err)
		}
		if ready, err = db.CollectIDs(rows); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, ref := range delivered {
		PublishEvent(ctx, Event{OrderID: ref.ID, BusinessID: ref.BusinessID, Status: StatusDelivered, At: now})
	}
	app.LoggerFromContext(ctx).Infow("payout timer run finished", "delivered", len(delivered), "ready", len(ready))
	return &PayoutTimerResult{Delivered: refIDs(delivered), Ready: refIDs(ready)}, nil
}
