package session

import (
	"context"
	"sync"

	"github.com/tphakala/linewalk/internal/errors"
)

// ConfirmKind names what a confirmation guards
type ConfirmKind string

const (
	KindDeleteRow      ConfirmKind = "delete_row"
	KindResetRow       ConfirmKind = "reset_row"
	KindDeleteRecord   ConfirmKind = "delete_record"
	KindSaveIncomplete ConfirmKind = "save_incomplete"
	KindCommitTags     ConfirmKind = "commit_tags"
)

// ErrNoPendingConfirmation is returned when resolving with no matching pending action
var ErrNoPendingConfirmation = errors.NewStd("no pending confirmation")

// Action runs when a confirmation is resolved
type Action func(ctx context.Context) error

// Confirmation is a blocking question with one callback per answer. Either callback may be nil.
type Confirmation struct {
	Kind      ConfirmKind
	Title     string
	Body      string
	OnConfirm Action
	OnCancel  Action
}

// PendingConfirmation is what clients display
type PendingConfirmation struct {
	Ticket uint64      `json:"ticket"`
	Kind   ConfirmKind `json:"kind"`
	Title  string      `json:"title"`
	Body   string      `json:"body"`
}

// Gate holds at most one pending confirmation. Asking again replaces it.
type Gate struct {
	mu      sync.Mutex
	pending *Confirmation
	ticket  uint64
	next    uint64
}

// Ask installs c as the pending confirmation and returns its ticket
func (g *Gate) Ask(c Confirmation) uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.next++
	g.ticket = g.next
	g.pending = &c
	return g.ticket
}

// Pending returns the confirmation awaiting an answer
func (g *Gate) Pending() (PendingConfirmation, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.pending == nil {
		return PendingConfirmation{}, false
	}
	return PendingConfirmation{
		Ticket: g.ticket,
		Kind:   g.pending.Kind,
		Title:  g.pending.Title,
		Body:   g.pending.Body,
	}, true
}

// Resolve answers the pending confirmation. Exactly one callback fires and the
// gate is cleared before it runs, so a callback may Ask again.
func (g *Gate) Resolve(ctx context.Context, ticket uint64, confirmed bool) (ConfirmKind, error) {
	g.mu.Lock()
	if g.pending == nil || ticket != g.ticket {
		current := g.ticket
		hasPending := g.pending != nil
		g.mu.Unlock()
		return "", errors.New(ErrNoPendingConfirmation).
			Component("session").
			Category(errors.CategoryState).
			Context("ticket", ticket).
			Context("current_ticket", current).
			Context("has_pending", hasPending).
			Build()
	}
	c := g.pending
	g.pending = nil
	g.mu.Unlock()

	action := c.OnCancel
	if confirmed {
		action = c.OnConfirm
	}
	if action == nil {
		return c.Kind, nil
	}
	return c.Kind, action(ctx)
}

// ClearKind drops the pending confirmation if it is of the given kind
func (g *Gate) ClearKind(kind ConfirmKind) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.pending == nil || g.pending.Kind != kind {
		return false
	}
	g.pending = nil
	return true
}
