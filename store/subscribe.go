package store

import (
	"context"
	"sync"

	"food-order-api/models"

	"go.uber.org/zap"
)

type subscription struct {
	filter Filter
	fn     func([]models.Order)
	dirty  chan struct{}
	done   chan struct{}
	wg     sync.WaitGroup
}

// SubscribeOrders delivers the full set of orders matching f to fn, once
// immediately and again after every committed write. Bursts of writes are
// coalesced into a single delivery. fn is never called concurrently with
// itself. The returned function stops the subscription and waits for any
// delivery in flight.
func (s *Store) SubscribeOrders(f Filter, fn func([]models.Order)) (func(), error) {
	sub := &subscription{
		filter: f,
		fn:     fn,
		dirty:  make(chan struct{}, 1),
		done:   make(chan struct{}),
	}

	// Registered before the first read, so a write racing the initial
	// snapshot marks the subscription dirty instead of going unseen.
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = sub
	s.mu.Unlock()

	remove := func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}

	orders, err := s.ListOrders(context.Background(), f)
	if err != nil {
		remove()
		return nil, err
	}
	fn(orders)

	sub.wg.Add(1)
	go s.deliver(sub)

	var once sync.Once
	return func() {
		once.Do(func() {
			remove()
			close(sub.done)
			sub.wg.Wait()
		})
	}, nil
}

func (s *Store) deliver(sub *subscription) {
	defer sub.wg.Done()
	for {
		select {
		case <-sub.done:
			return
		case <-sub.dirty:
		}
		orders, err := s.ListOrders(context.Background(), sub.filter)
		if err != nil {
			s.logger.Warn("order subscription refresh failed", zap.Error(err))
			continue
		}
		select {
		case <-sub.done:
			return
		default:
		}
		sub.fn(orders)
	}
}

func (s *Store) notifySubscribers() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sub := range s.subs {
		select {
		case sub.dirty <- struct{}{}:
		default:
		}
	}
}

// Subscribers reports the number of live subscriptions.
func (s *Store) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}
