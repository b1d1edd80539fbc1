package wager

import (
	"github.com/park285/cheese-wager/internal/escrow"
	"github.com/park285/cheese-wager/internal/identity"
)

const (
	EventMatchCreated = "match_created"
	EventMatchAborted = "match_aborted"
	EventMatchStarted = "match_started"
	EventMoveExecuted = "move_executed"
	EventMatchWon     = "match_won"
	EventMatchDrawn   = "match_drawn"
)

// Attribute is an ordered key/value pair.
type Attribute struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Event is one audit record of a state transition.
type Event struct {
	Type       string      `json:"type"`
	Attributes []Attribute `json:"attributes"`
}

func newEvent(typ string) Event { return Event{Type: typ} }

func (e Event) add(key, value string) Event {
	e.Attributes = append(e.Attributes, Attribute{Key: key, Value: value})
	return e
}

// Attr returns the first value stored under key.
func (e Event) Attr(key string) (string, bool) {
	for _, a := range e.Attributes {
		if a.Key == key {
			return a.Value, true
		}
	}
	return "", false
}

// Outcome is how a finished match ended.
type Outcome string

const (
	OutcomeWon   Outcome = "won"
	OutcomeDrawn Outcome = "drawn"
)

// Finished describes a match that reached a terminal state in this operation.
type Finished struct {
	ID      identity.MatchID
	Match   Match
	Outcome Outcome
	Winner  identity.Address
}

// Response is what a successful operation hands back to the host.
type Response struct {
	Attributes []Attribute
	Events     []Event
	Transfers  []escrow.Transfer
	Finished   *Finished
}

func newResponse(action string, sender identity.Address) Response {
	return Response{Attributes: []Attribute{
		{Key: "action", Value: action},
		{Key: "sender", Value: sender.String()},
	}}
}

func (r Response) addAttribute(key, value string) Response {
	r.Attributes = append(r.Attributes, Attribute{Key: key, Value: value})
	return r
}

func (r Response) addEvent(e Event) Response {
	r.Events = append(r.Events, e)
	return r
}
