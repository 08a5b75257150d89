package realtime

// Event names pushed to subscribers.
const (
	EventNewReview = "newReview"
)

// Message is the wire frame sent to subscribers.
type Message struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}
