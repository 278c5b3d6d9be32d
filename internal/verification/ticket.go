package verification

import (
	"strings"
	"sync"
	"time"

	"github.com/disgoorg/snowflake/v2"
)

// TicketChannelPrefix prefixes every verification ticket channel name.
const TicketChannelPrefix = "verify-"

// Ticket is a private, single-member channel used to conduct the verification
// conversation. Tickets are keyed by owner so a member can hold at most one.
type Ticket struct {
	OwnerID     snowflake.ID
	OwnerHandle string
	ChannelID   snowflake.ID
	CreatedAt   time.Time
}

// TicketChannelName derives the deterministic channel name for a member's
// ticket from their handle.
func TicketChannelName(handle string) string {
	return TicketChannelPrefix + strings.ToLower(handle)
}

// TicketRegistry tracks open tickets by owner, enforcing the
// at-most-one-ticket-per-member invariant.
type TicketRegistry struct {
	mu        sync.RWMutex
	byOwner   map[snowflake.ID]*Ticket
	byChannel map[snowflake.ID]snowflake.ID
}

// NewTicketRegistry creates an empty ticket registry.
func NewTicketRegistry() *TicketRegistry {
	return &TicketRegistry{
		byOwner:   make(map[snowflake.ID]*Ticket),
		byChannel: make(map[snowflake.ID]snowflake.ID),
	}
}

// Find returns the open ticket owned by the given member.
func (r *TicketRegistry) Find(ownerID snowflake.ID) (*Ticket, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ticket, ok := r.byOwner[ownerID]

	return ticket, ok
}

// FindByChannel returns the open ticket backed by the given channel.
func (r *TicketRegistry) FindByChannel(channelID snowflake.ID) (*Ticket, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ownerID, ok := r.byChannel[channelID]
	if !ok {
		return nil, false
	}

	ticket, ok := r.byOwner[ownerID]

	return ticket, ok
}

// Add registers an open ticket, replacing any previous entry for the owner.
func (r *TicketRegistry) Add(ticket *Ticket) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if previous, ok := r.byOwner[ticket.OwnerID]; ok {
		delete(r.byChannel, previous.ChannelID)
	}

	r.byOwner[ticket.OwnerID] = ticket
	r.byChannel[ticket.ChannelID] = ticket.OwnerID
}

// Remove deletes the registry entry for a ticket.
func (r *TicketRegistry) Remove(ticket *Ticket) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if current, ok := r.byOwner[ticket.OwnerID]; ok && current.ChannelID == ticket.ChannelID {
		delete(r.byOwner, ticket.OwnerID)
	}

	delete(r.byChannel, ticket.ChannelID)
}

// Len reports the number of open tickets.
func (r *TicketRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.byOwner)
}
