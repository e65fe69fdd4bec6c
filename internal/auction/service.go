// Package auction implements the marketplace business logic: posting
// listings, placing bids, and closing auctions whose deadline has passed.
package auction

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/nishant/auction-app/backend/internal/apperrors"
	"github.com/nishant/auction-app/backend/internal/models"
)

// bidAttempts bounds the compare-and-set retry loop in PlaceBid.
const bidAttempts = 3

// AuctionStore defines the interface for auction persistence.
type AuctionStore interface {
	Insert(ctx context.Context, a *models.Auction) (string, error)
	GetByID(ctx context.Context, id string) (*models.Auction, error)
	List(ctx context.Context) ([]models.Auction, error)
	ApplyPatch(ctx context.Context, id string, fields map[string]interface{}) (*models.Auction, error)
	CompareAndSetBid(ctx context.Context, id string, expected, amount float64, bidder string) (*models.Auction, error)
	Delete(ctx context.Context, id string) error
}

// UserDirectory is the slice of the user store the auction service needs:
// resolving seller identity and maintaining the per-user auction lists.
type UserDirectory interface {
	GetSellerInfo(ctx context.Context, id string) (*models.SellerInfo, error)
	AddAuctionRelation(ctx context.Context, userID, auctionID, relation string) error
	RemoveAuctionRelations(ctx context.Context, auctionID string) error
	AppendActivity(ctx context.Context, userID, description string) error
}

// FileRemover deletes stored media objects when their auction goes away.
type FileRemover interface {
	Remove(ctx context.Context, key string) error
}

// Service holds the auction business logic.
type Service struct {
	auctions AuctionStore
	users    UserDirectory
	files    FileRemover
}

func NewService(auctions AuctionStore, users UserDirectory, files FileRemover) *Service {
	return &Service{auctions: auctions, users: users, files: files}
}

// listing holds the parsed form of a new auction's text fields.
type listing struct {
	startingBid float64
	closingTime time.Time
	category    string
}

// parseListing validates the raw form fields of a new auction. The handler
// runs it before storing any uploaded media, so a bad field never leaves
// orphaned objects behind.
func parseListing(in models.CreateAuctionInput) (listing, error) {
	if in.ItemName == "" || in.Description == "" || in.StartingBid == "" || in.ClosingTime == "" || in.Category == "" {
		return listing{}, fmt.Errorf("%w: all required fields must be provided", apperrors.ErrValidation)
	}

	startingBid, err := strconv.ParseFloat(in.StartingBid, 64)
	if err != nil || math.IsNaN(startingBid) || math.IsInf(startingBid, 0) {
		return listing{}, fmt.Errorf("%w: invalid startingBid value", apperrors.ErrValidation)
	}

	closingTime, err := time.Parse(time.RFC3339, in.ClosingTime)
	if err != nil {
		return listing{}, fmt.Errorf("%w: invalid closingTime value", apperrors.ErrValidation)
	}

	category := strings.TrimSpace(in.Category)
	if category == "" {
		return listing{}, fmt.Errorf("%w: category must not be empty", apperrors.ErrValidation)
	}

	return listing{startingBid: startingBid, closingTime: closingTime, category: category}, nil
}

// Create validates the listing fields, persists the auction and records it
// under the seller's posted list. The current bid starts at the starting bid
// and there is no bidder yet.
func (s *Service) Create(ctx context.Context, sellerID string, in models.CreateAuctionInput) (*models.Auction, error) {
	parsed, err := parseListing(in)
	if err != nil {
		return nil, err
	}

	a := &models.Auction{
		ItemName:    in.ItemName,
		Description: in.Description,
		StartingBid: parsed.startingBid,
		CurrentBid:  parsed.startingBid,
		ClosingTime: parsed.closingTime,
		Category:    parsed.category,
		Seller:      sellerID,
	}
	// First image is the required slot, the next three fill the optional
	// slots in upload order.
	slots := []*string{&a.ImageRequired, &a.ImageOptional1, &a.ImageOptional2, &a.ImageOptional3}
	for i, img := range in.Images {
		if i >= len(slots) {
			break
		}
		*slots[i] = img
	}
	a.Model3D = in.Model3D

	id, err := s.auctions.Insert(ctx, a)
	if err != nil {
		return nil, fmt.Errorf("create auction: %w", err)
	}

	if err := s.users.AddAuctionRelation(ctx, sellerID, id, models.RelationPosted); err != nil {
		log.WithFields(log.Fields{"auction_id": id, "seller": sellerID, "error": err.Error()}).
			Warn("failed to record posted auction")
	}

	return a, nil
}

// Update applies a metadata patch to an auction owned by the requester. Bid
// state, media and ownership are never patchable.
func (s *Service) Update(ctx context.Context, requesterID, auctionID string, patch models.UpdateAuctionPatch) (*models.Auction, error) {
	a, err := s.auctions.GetByID(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	if a.Seller != requesterID {
		return nil, fmt.Errorf("%w: you are not the owner of this auction", apperrors.ErrForbidden)
	}

	fields := map[string]interface{}{}
	if patch.ItemName != nil {
		if *patch.ItemName == "" {
			return nil, fmt.Errorf("%w: itemName must not be empty", apperrors.ErrValidation)
		}
		fields["item_name"] = *patch.ItemName
	}
	if patch.Description != nil {
		if *patch.Description == "" {
			return nil, fmt.Errorf("%w: description must not be empty", apperrors.ErrValidation)
		}
		fields["description"] = *patch.Description
	}
	if patch.Category != nil {
		category := strings.TrimSpace(*patch.Category)
		if category == "" {
			return nil, fmt.Errorf("%w: category must not be empty", apperrors.ErrValidation)
		}
		fields["category"] = category
	}
	if patch.ClosingTime != nil {
		fields["closing_time"] = *patch.ClosingTime
	}
	if len(fields) == 0 {
		return a, nil
	}

	return s.auctions.ApplyPatch(ctx, auctionID, fields)
}

// Delete removes an auction owned by the requester, retracts it from every
// user's lists and drops its media objects.
func (s *Service) Delete(ctx context.Context, requesterID, auctionID string) error {
	a, err := s.auctions.GetByID(ctx, auctionID)
	if err != nil {
		return err
	}
	if a.Seller != requesterID {
		return fmt.Errorf("%w: you are not the owner of this auction", apperrors.ErrForbidden)
	}

	if err := s.auctions.Delete(ctx, auctionID); err != nil {
		return fmt.Errorf("delete auction %s: %w", auctionID, err)
	}

	if err := s.users.RemoveAuctionRelations(ctx, auctionID); err != nil {
		log.WithFields(log.Fields{"auction_id": auctionID, "error": err.Error()}).
			Warn("failed to retract auction from user lists")
	}

	for _, key := range mediaKeys(a) {
		if err := s.files.Remove(ctx, key); err != nil {
			log.WithFields(log.Fields{"auction_id": auctionID, "key": key, "error": err.Error()}).
				Warn("failed to remove media object")
		}
	}
	return nil
}

// PlaceBid records a strictly higher bid on an open auction.
//
// The write is a compare-and-set on the current bid: it only lands if the
// stored value still equals the one the bidder was shown. Losing the race
// triggers a re-read and re-validation, so a bid that has been overtaken
// fails validation instead of silently overwriting the higher bid.
func (s *Service) PlaceBid(ctx context.Context, bidderID, auctionID string, amount float64) (*models.Auction, error) {
	for attempt := 0; attempt < bidAttempts; attempt++ {
		a, err := s.auctions.GetByID(ctx, auctionID)
		if err != nil {
			return nil, err
		}
		if a.IsClosed {
			return nil, fmt.Errorf("%w: auction is closed", apperrors.ErrValidation)
		}
		if amount <= a.CurrentBid {
			return nil, fmt.Errorf("%w: bid must be higher than current bid", apperrors.ErrValidation)
		}

		updated, err := s.auctions.CompareAndSetBid(ctx, auctionID, a.CurrentBid, amount, bidderID)
		if err != nil {
			return nil, err
		}
		if updated == nil {
			// A concurrent bid or the closing sweep got there first.
			continue
		}

		if err := s.users.AddAuctionRelation(ctx, bidderID, auctionID, models.RelationParticipated); err != nil {
			log.WithFields(log.Fields{"auction_id": auctionID, "bidder": bidderID, "error": err.Error()}).
				Warn("failed to record participation")
		}
		if err := s.users.AppendActivity(ctx, bidderID, "Placed a bid on "+updated.ItemName); err != nil {
			log.WithFields(log.Fields{"bidder": bidderID, "error": err.Error()}).
				Warn("failed to record bid activity")
		}

		return updated, nil
	}

	return nil, fmt.Errorf("%w: bid superseded by a concurrent update", apperrors.ErrConflict)
}

// List returns every auction.
func (s *Service) List(ctx context.Context) ([]models.Auction, error) {
	return s.auctions.List(ctx)
}

// Get returns one auction with its seller identity resolved.
func (s *Service) Get(ctx context.Context, id string) (*models.AuctionDetail, error) {
	a, err := s.auctions.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	detail := &models.AuctionDetail{Auction: *a}
	seller, err := s.users.GetSellerInfo(ctx, a.Seller)
	if err != nil {
		log.WithFields(log.Fields{"auction_id": id, "seller": a.Seller, "error": err.Error()}).
			Warn("failed to resolve seller")
	} else {
		detail.SellerInfo = *seller
	}
	return detail, nil
}

// SellerProfile returns a user's public fields for GET /api/users/{id}.
func (s *Service) SellerProfile(ctx context.Context, id string) (*models.SellerInfo, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: invalid seller ID format", apperrors.ErrValidation)
	}
	return s.users.GetSellerInfo(ctx, id)
}

func mediaKeys(a *models.Auction) []string {
	var keys []string
	for _, k := range []string{a.ImageRequired, a.ImageOptional1, a.ImageOptional2, a.ImageOptional3, a.Model3D} {
		if k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}
