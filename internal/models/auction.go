package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Auction is a single listing stored in MongoDB.
//
// CurrentBid starts equal to StartingBid and only moves up: every accepted
// bid must strictly exceed the value it replaces. HighestBidder stays empty
// until the first accepted bid.
type Auction struct {
	ID             primitive.ObjectID `json:"id"             bson:"_id,omitempty"`
	ItemName       string             `json:"itemName"       bson:"item_name"`
	Description    string             `json:"description"    bson:"description"`
	StartingBid    float64            `json:"startingBid"    bson:"starting_bid"`
	CurrentBid     float64            `json:"currentBid"     bson:"current_bid"`
	HighestBidder  string             `json:"highestBidder"  bson:"highest_bidder"`
	ClosingTime    time.Time          `json:"closingTime"    bson:"closing_time"`
	Category       string             `json:"category"       bson:"category"`
	Seller         string             `json:"seller"         bson:"seller"`
	ImageRequired  string             `json:"imageRequired"  bson:"image_required"`
	ImageOptional1 string             `json:"imageOptional1" bson:"image_optional_1"`
	ImageOptional2 string             `json:"imageOptional2" bson:"image_optional_2"`
	ImageOptional3 string             `json:"imageOptional3" bson:"image_optional_3"`
	Model3D        string             `json:"model3D"        bson:"model3d"`
	IsClosed       bool               `json:"isClosed"       bson:"is_closed"`
	CreatedAt      time.Time          `json:"createdAt"      bson:"created_at"`
	UpdatedAt      time.Time          `json:"updatedAt"      bson:"updated_at"`
}

// AuctionSummary is the trimmed-down view used when populating a user's
// auction lists.
type AuctionSummary struct {
	ID         string  `json:"id"`
	ItemName   string  `json:"itemName"`
	CurrentBid float64 `json:"currentBid"`
}

// Summary converts an auction to its list view.
func (a Auction) Summary() AuctionSummary {
	return AuctionSummary{
		ID:         a.ID.Hex(),
		ItemName:   a.ItemName,
		CurrentBid: a.CurrentBid,
	}
}

// AuctionDetail is the response for GET /api/auctions/{id}: the auction with
// its seller identity resolved.
type AuctionDetail struct {
	Auction
	SellerInfo SellerInfo `json:"sellerInfo"`
}

// CreateAuctionInput carries the raw multipart form fields for a new
// auction. StartingBid and ClosingTime arrive as strings and are validated
// by the auction service. Images holds stored object keys in upload order.
type CreateAuctionInput struct {
	ItemName    string
	Description string
	StartingBid string
	ClosingTime string
	Category    string
	Images      []string
	Model3D     string
}

// UpdateAuctionPatch is the JSON body for PUT /api/auction/{id}. Only pre-bid
// metadata is patchable; bid state, media and ownership are not.
type UpdateAuctionPatch struct {
	ItemName    *string    `json:"itemName"`
	Description *string    `json:"description"`
	Category    *string    `json:"category"`
	ClosingTime *time.Time `json:"closingTime"`
}

// BidRequest is the JSON body for POST /api/bid/{auctionId}.
type BidRequest struct {
	Bid float64 `json:"bid"`
}
