package events

import (
	"context"
	"sync"

	log "github.com/sirupsen/logrus"

	"stakehouse/models"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventTypeBalanceChange       EventType = "balance_change"
	EventTypeBetPlaced           EventType = "bet_placed"
	EventTypeBetSettled          EventType = "bet_settled"
	EventTypeWithdrawalRequested EventType = "withdrawal_requested"
	EventTypeWithdrawalDecided   EventType = "withdrawal_decided"
	EventTypeCrashRoundCompleted EventType = "crash_round_completed"
)

// Event is the base interface for all events
type Event interface {
	Type() EventType
}

// BalanceChangeEvent represents a balance change that occurred
type BalanceChangeEvent struct {
	AccountID    int64
	NewBalance   int64
	ChangeAmount int64
	Kind         models.LedgerKind
}

func (e BalanceChangeEvent) Type() EventType {
	return EventTypeBalanceChange
}

// BetPlacedEvent represents a bet that was placed
type BetPlacedEvent struct {
	BetID      int64
	AccountID  int64
	MarketKind models.MarketKind
	Stake      int64
}

func (e BetPlacedEvent) Type() EventType {
	return EventTypeBetPlaced
}

// BetSettledEvent represents a bet that reached its terminal state
type BetSettledEvent struct {
	BetID     int64
	AccountID int64
	Result    models.BetResult
	Payout    int64
}

func (e BetSettledEvent) Type() EventType {
	return EventTypeBetSettled
}

// WithdrawalRequestedEvent represents a new withdrawal hold
type WithdrawalRequestedEvent struct {
	WithdrawalID int64
	AccountID    int64
	Amount       int64
}

func (e WithdrawalRequestedEvent) Type() EventType {
	return EventTypeWithdrawalRequested
}

// WithdrawalDecidedEvent represents a withdrawal reaching a terminal status
type WithdrawalDecidedEvent struct {
	WithdrawalID int64
	AccountID    int64
	Amount       int64
	Status       models.WithdrawalStatus
}

func (e WithdrawalDecidedEvent) Type() EventType {
	return EventTypeWithdrawalDecided
}

// CrashRoundCompletedEvent represents a crash round reaching its crash point
type CrashRoundCompletedEvent struct {
	RoundID     string
	SeriesIndex int
	CrashPoint  float64
	BetsSettled int
}

func (e CrashRoundCompletedEvent) Type() EventType {
	return EventTypeCrashRoundCompleted
}

// Handler is a function that handles events
type Handler func(ctx context.Context, event Event)

// Bus manages event subscriptions and dispatching
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
}

// NewBus creates a new event bus
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[EventType][]Handler),
	}
}

// Subscribe adds a handler for a specific event type
func (b *Bus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[eventType] = append(b.handlers[eventType], handler)

	log.WithFields(log.Fields{
		"eventType":    eventType,
		"handlerCount": len(b.handlers[eventType]),
	}).Debug("Subscribed handler to event type")
}

// Emit publishes an event to all registered handlers
func (b *Bus) Emit(ctx context.Context, event Event) {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers[event.Type()]))
	copy(handlers, b.handlers[event.Type()])
	b.mu.RUnlock()

	// Call handlers asynchronously to avoid blocking
	for i, handler := range handlers {
		go func(h Handler, handlerIndex int) {
			defer func() {
				if r := recover(); r != nil {
					log.WithFields(log.Fields{
						"eventType":    event.Type(),
						"handlerIndex": handlerIndex,
						"panic":        r,
					}).Error("Event handler panicked")
				}
			}()
			h(ctx, event)
		}(handler, i)
	}
}

// TransactionalBus holds pending events coupled to a unit of work and
// flushes them to the underlying bus only after the transaction commits.
type TransactionalBus struct {
	real    *Bus
	pending []Event
}

func NewTransactionalBus(real *Bus) *TransactionalBus {
	return &TransactionalBus{real: real}
}

func (b *TransactionalBus) Publish(e Event) {
	b.pending = append(b.pending, e)
}

// Flush emits buffered events; called after a successful commit.
func (b *TransactionalBus) Flush(ctx context.Context) error {
	// Events outlive the transaction context deliberately.
	eventCtx := context.Background()

	for _, ev := range b.pending {
		b.real.Emit(eventCtx, ev)
	}
	b.pending = nil
	return nil
}

// Discard drops buffered events; called after a rollback.
func (b *TransactionalBus) Discard() {
	b.pending = nil
}
