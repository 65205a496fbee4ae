package notify

import (
	"context"
	"fmt"

	"github.com/polytrack/polytrack/internal/domain"
)

// EventSignalBuy is the event type emitted for new buy-pressure signals.
const EventSignalBuy = "signal.buy"

// SignalAnnouncer formats smart-money signals for the notification channels.
type SignalAnnouncer struct {
	notifier *Notifier
}

// NewSignalAnnouncer wraps a Notifier for signal delivery.
func NewSignalAnnouncer(n *Notifier) *SignalAnnouncer {
	return &SignalAnnouncer{notifier: n}
}

// NotifySignal announces one new signal. Delivery honors the notifier's
// event filter.
func (a *SignalAnnouncer) NotifySignal(ctx context.Context, sig domain.Signal) error {
	title := fmt.Sprintf("Smart money: %s %s", sig.OutcomeSide, sig.MarketID)
	message := fmt.Sprintf(
		"%s accumulated %.0f USDC net into %s (%s) around block %d\nhttps://polygonscan.com/address/%s",
		sig.Address, sig.NetUSDC, sig.MarketID, sig.OutcomeSide, sig.Timestamp, sig.Address,
	)
	return a.notifier.Notify(ctx, EventSignalBuy, title, message)
}
