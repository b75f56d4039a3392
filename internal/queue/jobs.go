package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"dinetab-order-services/internal/events"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ReceiptJob asks the notification side to hand a customer their
// receipt (printed ticket, SMS, whatever the deployment wires up).
type ReceiptJob struct {
	TransactionID int64    `json:"transactionId"`
	BillID        *int64   `json:"billId,omitempty"`
	TableNo       int      `json:"tableNo"`
	Customers     []string `json:"customers"`
	CustomerNames []string `json:"customerNames"`
	Total         float64  `json:"total"`
	PaymentMethod string   `json:"paymentMethod"`
}

type paidEventData struct {
	Transaction struct {
		ID            int64    `json:"id"`
		BillID        *int64   `json:"billId"`
		TableNo       int      `json:"tableNo"`
		CustomerKeys  []string `json:"customerKeys"`
		Total         float64  `json:"total"`
		PaymentMethod string   `json:"paymentMethod"`
	} `json:"transaction"`
}

// TranslateEventToJobs consumes mirrored events and fans the ones that
// need follow-up work into job queues. Anything it does not recognize is
// acked and dropped; the queue is a mirror, not the source of truth.
func TranslateEventToJobs(ctx context.Context, pool *pgxpool.Pool, c *Client, body []byte) error {
	var env events.Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		// Malformed payloads would fail every retry; drop them.
		return nil
	}

	switch env.Type {
	case events.BillPaid:
		raw, err := json.Marshal(env.Data)
		if err != nil {
			return nil
		}
		var data paidEventData
		if err := json.Unmarshal(raw, &data); err != nil {
			return nil
		}
		job := ReceiptJob{
			TransactionID: data.Transaction.ID,
			BillID:        data.Transaction.BillID,
			TableNo:       data.Transaction.TableNo,
			Customers:     data.Transaction.CustomerKeys,
			Total:         data.Transaction.Total,
			PaymentMethod: data.Transaction.PaymentMethod,
		}
		job.CustomerNames = lookupNames(ctx, pool, data.Transaction.CustomerKeys)
		if err := c.PublishJSON(ctx, "", ReceiptJobsQueue, job); err != nil {
			return fmt.Errorf("publish receipt job: %w", err)
		}
	}
	return nil
}

func lookupNames(ctx context.Context, pool *pgxpool.Pool, phones []string) []string {
	if len(phones) == 0 {
		return nil
	}
	rows, err := pool.Query(ctx, `select name from customers where phone = any($1) order by phone`, phones)
	if err != nil {
		return nil
	}
	defer rows.Close()

	names := make([]string, 0, len(phones))
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return names
		}
		names = append(names, name)
	}
	return names
}
