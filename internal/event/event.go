package event

import "sync"

// FinishReason classifies how a run ended.
type FinishReason string

const (
	FinishedOK      FinishReason = "ok"
	FinishedStopped FinishReason = "stopped"
	FinishedError   FinishReason = "error"
)

type Event interface{ Message() string }

type BaseEvent struct {
	Text string
}

func (b BaseEvent) Message() string { return b.Text }

type RunStartedEvent struct {
	BaseEvent
	Mode string
}

type RunFinishedEvent struct {
	BaseEvent
	Reason FinishReason
}

type PriceSeenEvent struct {
	BaseEvent
	ItemID   string
	ItemName string
	Price    int
}

type PurchaseDoneEvent struct {
	BaseEvent
	ItemID   string
	ItemName string
	Price    int
	Qty      int
}

type PenaltyDetectedEvent struct {
	BaseEvent
}

func Text(t string) BaseEvent { return BaseEvent{Text: t} }

func RunStarted(b BaseEvent, mode string) RunStartedEvent {
	return RunStartedEvent{BaseEvent: b, Mode: mode}
}

func RunFinished(b BaseEvent, reason FinishReason) RunFinishedEvent {
	return RunFinishedEvent{BaseEvent: b, Reason: reason}
}

func PriceSeen(b BaseEvent, itemID, itemName string, price int) PriceSeenEvent {
	return PriceSeenEvent{BaseEvent: b, ItemID: itemID, ItemName: itemName, Price: price}
}

func PurchaseDone(b BaseEvent, itemID, itemName string, price, qty int) PurchaseDoneEvent {
	return PurchaseDoneEvent{BaseEvent: b, ItemID: itemID, ItemName: itemName, Price: price, Qty: qty}
}

func PenaltyDetected(b BaseEvent) PenaltyDetectedEvent {
	return PenaltyDetectedEvent{BaseEvent: b}
}

type Handler func(Event)

// Bus dispatches events synchronously to every subscribed handler. Each
// runner owns its own bus, there is no process-wide instance.
type Bus struct {
	mu       sync.RWMutex
	handlers []Handler
}

func NewBus() *Bus { return &Bus{} }

func (b *Bus) Subscribe(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, h)
}

func (b *Bus) Send(ev Event) {
	b.mu.RLock()
	handlers := b.handlers
	b.mu.RUnlock()
	for _, h := range handlers {
		h(ev)
	}
}
