package client

import (
	"sync"
	"time"
)

// Notification is one received newReview event.
type Notification struct {
	Name       string    `json:"name"`
	Rating     int       `json:"rating"`
	Feedback   string    `json:"feedback"`
	Image      *string   `json:"image"`
	CreatedAt  time.Time `json:"createdAt"`
	ReceivedAt time.Time `json:"-"`
}

// Notifications is the in-memory inbox of review notifications.
type Notifications struct {
	mu    sync.Mutex
	items []Notification
}

// Add appends a notification.
func (n *Notifications) Add(item Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.items = append(n.items, item)
}

// List returns a copy of the inbox, newest first.
func (n *Notifications) List() []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]Notification, len(n.items))
	for i, item := range n.items {
		out[len(n.items)-1-i] = item
	}
	return out
}

// Len reports how many notifications are held.
func (n *Notifications) Len() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.items)
}

// Clear empties the inbox.
func (n *Notifications) Clear() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.items = nil
}
