// Package shipping is the demo tool domain behind the gate: a seeded
// in-memory order store and three tools exercising the read, write, and list
// paths of the pipeline.
package shipping

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// Order is one tracked shipment.
type Order struct {
	ID               string
	Carrier          string
	Status           string
	Location         string
	EstimatedArrival time.Time
	Priority         string
	Expedited        bool
}

// Statuses an order moves through.
const (
	StatusProcessing     = "processing"
	StatusInTransit      = "in_transit"
	StatusOutForDelivery = "out_for_delivery"
	StatusDelivered      = "delivered"
)

// Priorities a caller may request when expediting.
var Priorities = []string{"overnight", "two_day"}

// Store is an in-memory order store. It stands in for the upstream order
// system; all latency and failure behavior the gate guards against would
// live behind it in a real deployment.
type Store struct {
	mu     sync.RWMutex
	orders map[string]Order
}

// NewStore creates a store seeded with demo orders.
func NewStore() *Store {
	now := time.Date(2026, 9, 2, 17, 0, 0, 0, time.UTC)
	seed := []Order{
		{ID: "B456", Carrier: "FastShip", Status: StatusInTransit, Location: "Memphis, TN", EstimatedArrival: now},
		{ID: "C789", Carrier: "QuickHaul", Status: StatusProcessing, Location: "Oakland, CA", EstimatedArrival: now.Add(72 * time.Hour)},
		{ID: "D123", Carrier: "FastShip", Status: StatusOutForDelivery, Location: "Austin, TX", EstimatedArrival: now.Add(-48 * time.Hour)},
		{ID: "A200", Carrier: "GroundWorks", Status: StatusInTransit, Location: "Columbus, OH", EstimatedArrival: now.Add(24 * time.Hour)},
		{ID: "E555", Carrier: "QuickHaul", Status: StatusDelivered, Location: "Seattle, WA", EstimatedArrival: now.Add(-96 * time.Hour)},
		{ID: "F831", Carrier: "GroundWorks", Status: StatusInTransit, Location: "Denver, CO", EstimatedArrival: now.Add(48 * time.Hour)},
		{ID: "G042", Carrier: "FastShip", Status: StatusProcessing, Location: "Newark, NJ", EstimatedArrival: now.Add(120 * time.Hour)},
	}

	orders := make(map[string]Order, len(seed))
	for _, o := range seed {
		o.Priority = "standard"
		orders[o.ID] = o
	}
	return &Store{orders: orders}
}

// Get returns the order with the given ID.
func (s *Store) Get(id string) (Order, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[id]
	return o, ok
}

// Expedite upgrades an order's priority and pulls in its arrival estimate.
// Delivered orders cannot be expedited.
func (s *Store) Expedite(id, priority string) (Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[id]
	if !ok {
		return Order{}, fmt.Errorf("shipping: order %s not found", id)
	}
	if o.Status == StatusDelivered {
		return Order{}, fmt.Errorf("shipping: order %s is already delivered", id)
	}

	o.Expedited = true
	o.Priority = priority
	switch priority {
	case "overnight":
		o.EstimatedArrival = o.EstimatedArrival.Add(-48 * time.Hour)
	case "two_day":
		o.EstimatedArrival = o.EstimatedArrival.Add(-24 * time.Hour)
	}
	s.orders[id] = o
	return o, nil
}

// List returns a stable page of orders sorted by ID.
func (s *Store) List(offset, limit int) (page []Order, hasMore bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.orders))
	for id := range s.orders {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	if offset >= len(ids) {
		return nil, false
	}
	end := offset + limit
	if end > len(ids) {
		end = len(ids)
	}

	page = make([]Order, 0, end-offset)
	for _, id := range ids[offset:end] {
		page = append(page, s.orders[id])
	}
	return page, end < len(ids)
}

// Len reports how many orders the store holds.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.orders)
}
