// Package models defines the core data structures for ChatAgent.
//
// It includes intent identifiers, conversation turns and the session state
// snapshot, which are shared across the intent engine, the session state
// machine and the hosts that render it.
package models

import (
	"errors"
	"time"
)

// IntentID identifies a category of user request.
type IntentID string

const (
	// IntentGreeting covers hellos and salutations.
	IntentGreeting IntentID = "greeting"
	// IntentOrderStatus covers order tracking questions.
	IntentOrderStatus IntentID = "orderStatus"
	// IntentShipping covers shipping cost and time questions.
	IntentShipping IntentID = "shipping"
	// IntentReturns covers returns, refunds and exchanges.
	IntentReturns IntentID = "returns"
	// IntentProductHelp covers product recommendations.
	IntentProductHelp IntentID = "productHelp"
	// IntentPayment covers payment methods and checkout problems.
	IntentPayment IntentID = "payment"
	// IntentHours covers support availability.
	IntentHours IntentID = "hours"
	// IntentContact covers how to reach a human.
	IntentContact IntentID = "contact"
	// IntentUnmatched is returned when no keyword matches. It is reserved and
	// always answered from the default reply pool.
	IntentUnmatched IntentID = "unmatched"
)

// Speaker identifies who produced a Turn.
type Speaker string

const (
	// SpeakerUser marks turns typed (or clicked) by the visitor.
	SpeakerUser Speaker = "user"
	// SpeakerAgent marks canned replies produced by the widget.
	SpeakerAgent Speaker = "agent"
)

// Catalog construction errors. They describe authoring mistakes and are
// fatal at startup; nothing at runtime returns them.
var (
	ErrEmptyReplyPool           = errors.New("intent has no replies")
	ErrEmptyDefaultPool         = errors.New("default reply pool is empty")
	ErrEmptyIntentID            = errors.New("intent id cannot be empty")
	ErrDuplicateIntent          = errors.New("duplicate intent id")
	ErrReservedIntent           = errors.New("intent id is reserved")
	ErrEmptyKeyword             = errors.New("keyword cannot be empty")
	ErrEmptyQuickActionID       = errors.New("quick action id cannot be empty")
	ErrDuplicateQuickAction     = errors.New("duplicate quick action id")
	ErrUnknownQuickActionIntent = errors.New("quick action references unknown intent")
)

// Turn is one message in the transcript. Turns are values; once appended they
// are never modified or removed.
type Turn struct {
	Speaker   Speaker   `json:"speaker"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// IsUser reports whether the turn was produced by the visitor.
func (t Turn) IsUser() bool {
	return t.Speaker == SpeakerUser
}

// ConversationState is a read-only snapshot of a chat session.
type ConversationState struct {
	SessionID   string `json:"session_id"`
	IsOpen      bool   `json:"is_open"`
	IsTyping    bool   `json:"is_typing"`
	UnreadCount int    `json:"unread_count"`
	// Pending is the number of replies scheduled but not yet delivered.
	Pending    int    `json:"pending"`
	Transcript []Turn `json:"transcript"`
}

// LastTurn returns the most recent turn, if any.
func (s ConversationState) LastTurn() (Turn, bool) {
	if len(s.Transcript) == 0 {
		return Turn{}, false
	}
	return s.Transcript[len(s.Transcript)-1], true
}

// AgentTurns returns how many agent turns the transcript holds.
func (s ConversationState) AgentTurns() int {
	n := 0
	for _, t := range s.Transcript {
		if t.Speaker == SpeakerAgent {
			n++
		}
	}
	return n
}

// TimerInfo describes a pending delayed callback.
type TimerInfo struct {
	ID          string    `json:"id"`
	ScheduledAt time.Time `json:"scheduled_at"`
	ExpiresAt   time.Time `json:"expires_at"`
	Remaining   string    `json:"remaining"`
	Description string    `json:"description,omitempty"`
}
