package types

// Participant is one distinct user currently present in a room, independent
// of how many connections (tabs) they hold.
type Participant struct {
	UserId string `json:"userId"`
	Name   string `json:"name"`
	Color  string `json:"color,omitempty"`
}
