package shipping

import (
	"context"
	"fmt"
	"time"

	"github.com/jonwraymond/toolgate/envelope"
	"github.com/jonwraymond/toolgate/problem"
	"github.com/jonwraymond/toolgate/toolcall"
	"github.com/jonwraymond/toolgate/validate"
)

// Tool names.
const (
	ToolGetCarrierStatus = "get_carrier_status"
	ToolExpediteOrder    = "expedite_order"
	ToolListShipments    = "list_shipments"
)

// List paging bounds.
const (
	DefaultPageSize = 10
	MaxPageSize     = 50
)

// Register wires the shipping tools into a gate.
func Register(g *toolcall.Gate, store *Store) error {
	for _, t := range []toolcall.Tool{
		GetCarrierStatus(store),
		ExpediteOrder(store),
		ListShipments(store),
	} {
		if err := g.Register(t); err != nil {
			return err
		}
	}
	return nil
}

// orderID pulls the order_id parameter out of a request.
func orderID(req toolcall.Request) string {
	id, _ := req.Params["order_id"].(string)
	return id
}

// GetCarrierStatus is the read tool: where is this order right now.
func GetCarrierStatus(store *Store) toolcall.Tool {
	return toolcall.Tool{
		Name: ToolGetCarrierStatus,
		Mode: toolcall.ModeRead,
		Validate: func(req toolcall.Request) *problem.Error {
			id := orderID(req)
			if perr := validate.OrderID(ToolGetCarrierStatus, id); perr != nil {
				return perr
			}
			if _, ok := store.Get(id); !ok {
				return orderNotFound(ToolGetCarrierStatus, id)
			}
			return nil
		},
		Handler: func(ctx context.Context, req toolcall.Request) (*envelope.Envelope, error) {
			id := orderID(req)
			order, ok := store.Get(id)
			if !ok {
				return nil, orderNotFound(ToolGetCarrierStatus, id)
			}

			next := "Check again later for updated tracking."
			if order.Status == StatusDelivered {
				next = "The order is delivered; no further tracking is expected."
			}
			return envelope.New(map[string]any{
				"order_id":          order.ID,
				"carrier":           order.Carrier,
				"status":            order.Status,
				"location":          order.Location,
				"estimated_arrival": order.EstimatedArrival.Format(time.RFC3339),
			}, next)
		},
	}
}

// ExpediteOrder is the write tool: upgrade an order's shipping priority.
// Calls deduplicate by idempotency key, scoped to the order.
func ExpediteOrder(store *Store) toolcall.Tool {
	return toolcall.Tool{
		Name:     ToolExpediteOrder,
		Mode:     toolcall.ModeWrite,
		Resource: orderID,
		Validate: func(req toolcall.Request) *problem.Error {
			id := orderID(req)
			if perr := validate.OrderID(ToolExpediteOrder, id); perr != nil {
				return perr
			}
			priority, _ := req.Params["priority"].(string)
			if perr := validate.Enum(ToolExpediteOrder, "priority", priority, Priorities); perr != nil {
				return perr
			}
			if _, ok := store.Get(id); !ok {
				return orderNotFound(ToolExpediteOrder, id)
			}
			return nil
		},
		Handler: func(ctx context.Context, req toolcall.Request) (*envelope.Envelope, error) {
			id := orderID(req)
			priority, _ := req.Params["priority"].(string)

			if _, ok := store.Get(id); !ok {
				return nil, orderNotFound(ToolExpediteOrder, id)
			}

			order, err := store.Expedite(id, priority)
			if err != nil {
				return nil, problem.Conflict(ToolExpediteOrder, err.Error(),
					"Delivered orders cannot be expedited; verify the order status first.")
			}

			return envelope.New(map[string]any{
				"order_id":          order.ID,
				"status":            "expedited",
				"priority":          order.Priority,
				"carrier":           order.Carrier,
				"estimated_arrival": order.EstimatedArrival.Format(time.RFC3339),
			}, "Track the expedited order with get_carrier_status.")
		},
	}
}

// ListShipments is the list tool: a cursor-paged view over all orders.
func ListShipments(store *Store) toolcall.Tool {
	return toolcall.Tool{
		Name: ToolListShipments,
		Mode: toolcall.ModeRead,
		Handler: func(ctx context.Context, req toolcall.Request) (*envelope.Envelope, error) {
			offset := envelope.DecodeCursor(req.Meta.Cursor)

			limit := req.Meta.Limit
			if limit <= 0 {
				limit = DefaultPageSize
			}
			if limit > MaxPageSize {
				limit = MaxPageSize
			}

			page, hasMore := store.List(offset, limit)
			shipments := make([]map[string]any, 0, len(page))
			for _, o := range page {
				shipments = append(shipments, map[string]any{
					"order_id": o.ID,
					"carrier":  o.Carrier,
					"status":   o.Status,
					"location": o.Location,
				})
			}

			next := "No more shipments."
			if hasMore {
				next = "Pass meta.paging.next_cursor to fetch the next page."
			}
			env, err := envelope.New(map[string]any{
				"shipments": shipments,
				"count":     len(shipments),
			}, next)
			if err != nil {
				return nil, err
			}

			paging := &envelope.Paging{HasMore: hasMore}
			if hasMore {
				cursor := envelope.EncodeCursor(offset + len(page))
				paging.NextCursor = &cursor
			}
			env.Meta.Paging = paging
			return env, nil
		},
	}
}

func orderNotFound(tool, id string) *problem.Error {
	return problem.NotFound(tool,
		fmt.Sprintf("order %s does not exist", id),
		"Verify the order ID with list_shipments.")
}
