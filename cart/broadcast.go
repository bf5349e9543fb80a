package cart

import (
	"sync"

	"github.com/shopspring/decimal"
)

// Changed is published after every successful cart mutation.
type Changed struct {
	CustomerID uint            `json:"customer_id"`
	Action     string          `json:"action"`
	Units      int             `json:"units"`
	Total      decimal.Decimal `json:"total"`
	Cart       Cart            `json:"cart"`
}

// observer holds at most one undelivered event, always the newest.
type observer struct {
	mu     sync.Mutex
	ch     chan Changed
	closed bool
}

func (o *observer) offer(ev Changed) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return
	}
	select {
	case <-o.ch:
	default:
	}
	// Only senders hold mu, so the slot just emptied is still free.
	o.ch <- ev
}

func (o *observer) close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.closed {
		o.closed = true
		close(o.ch)
	}
}

// Broadcaster fans cart changes out to any number of independent observers
// of one customer's cart. Each observer receives its own copy of the cart.
// A slow observer never blocks the publisher: an event it has not read yet
// is replaced by the newer one, so the last thing it reads is always the
// current cart.
type Broadcaster struct {
	mu     sync.RWMutex
	subs   map[uint]map[int]*observer
	nextID int
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[uint]map[int]*observer)}
}

// Subscribe registers an observer of customerID's cart. The returned cancel
// func must be called to release it; the channel is closed afterwards.
func (b *Broadcaster) Subscribe(customerID uint) (<-chan Changed, func()) {
	o := &observer{ch: make(chan Changed, 1)}

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	if b.subs[customerID] == nil {
		b.subs[customerID] = make(map[int]*observer)
	}
	b.subs[customerID][id] = o
	b.mu.Unlock()

	var once sync.Once
	return o.ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs[customerID], id)
			if len(b.subs[customerID]) == 0 {
				delete(b.subs, customerID)
			}
			b.mu.Unlock()
			o.close()
		})
	}
}

// Publish hands ev to every observer of ev.CustomerID without blocking.
func (b *Broadcaster) Publish(ev Changed) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, o := range b.subs[ev.CustomerID] {
		copied := ev
		copied.Cart = ev.Cart.Clone()
		o.offer(copied)
	}
}

// Subscribers reports the number of registered observers.
func (b *Broadcaster) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	n := 0
	for _, obs := range b.subs {
		n += len(obs)
	}
	return n
}
