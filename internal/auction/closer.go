package auction

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/nishant/auction-app/backend/internal/models"
)

// SweepStore is the slice of the auction store the closing sweep needs.
// Close returns the closed document, or nil when the auction was already
// closed.
type SweepStore interface {
	ListExpired(ctx context.Context, now time.Time) ([]models.Auction, error)
	Close(ctx context.Context, id string) (*models.Auction, error)
}

// WinnerRecorder appends a closed auction to the winning bidder's won list.
type WinnerRecorder interface {
	AddAuctionRelation(ctx context.Context, userID, auctionID, relation string) error
}

// Closer periodically closes auctions whose closing time has passed and
// records the winner. The close itself is a conditional update, so when
// several instances sweep concurrently only one of them records the winner.
type Closer struct {
	auctions SweepStore
	users    WinnerRecorder
	interval time.Duration
}

func NewCloser(auctions SweepStore, users WinnerRecorder, interval time.Duration) *Closer {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Closer{auctions: auctions, users: users, interval: interval}
}

// Run sweeps on a ticker until the context is cancelled.
func (c *Closer) Run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Sweep(ctx)
		}
	}
}

// Sweep closes every expired auction once.
func (c *Closer) Sweep(ctx context.Context) {
	expired, err := c.auctions.ListExpired(ctx, time.Now())
	if err != nil {
		log.WithField("error", err.Error()).Error("closing sweep: list failed")
		return
	}

	for _, a := range expired {
		id := a.ID.Hex()
		// The winner comes from the document Close returns, not the listing
		// snapshot: a bid can still land between the two reads.
		closed, err := c.auctions.Close(ctx, id)
		if err != nil {
			log.WithFields(log.Fields{"auction_id": id, "error": err.Error()}).
				Error("closing sweep: close failed")
			continue
		}
		if closed == nil {
			continue // another instance closed it first
		}

		entry := log.WithFields(log.Fields{"auction_id": id, "item": closed.ItemName})
		if closed.HighestBidder == "" {
			entry.Info("auction closed with no bids")
			continue
		}

		if err := c.users.AddAuctionRelation(ctx, closed.HighestBidder, id, models.RelationWon); err != nil {
			log.WithFields(log.Fields{"auction_id": id, "winner": closed.HighestBidder, "error": err.Error()}).
				Error("closing sweep: failed to record winner")
			continue
		}
		entry.WithField("winner", closed.HighestBidder).Info("auction closed")
	}
}
