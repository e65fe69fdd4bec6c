package models

import "time"

// Relation names for the user_auctions table.
const (
	RelationPosted       = "posted"
	RelationParticipated = "participated"
	RelationWon          = "won"
)

// User represents a row in the PostgreSQL users table.
type User struct {
	ID        string    `json:"id"`
	FullName  string    `json:"fullName"`
	Email     string    `json:"email"`
	Password  string    `json:"-"` // bcrypt hash, never serialize
	Phone     string    `json:"phone"`
	Location  string    `json:"location"`
	CreatedAt time.Time `json:"createdAt"`
}

// Activity is one entry in a user's append-only activity log.
type Activity struct {
	Description string    `json:"description"`
	Date        time.Time `json:"date"`
}

// SellerInfo is the public view of a user attached to auction detail
// responses and returned by GET /api/users/{id}.
type SellerInfo struct {
	ID        string    `json:"id"`
	FullName  string    `json:"fullName"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

// Profile is the response body for GET /api/profile: the user's public
// fields plus their auction lists and recent activity.
type Profile struct {
	ID                   string           `json:"id"`
	FullName             string           `json:"fullName"`
	Email                string           `json:"email"`
	Phone                string           `json:"phone"`
	Location             string           `json:"location"`
	CreatedAt            time.Time        `json:"createdAt"`
	PostedAuctions       []AuctionSummary `json:"postedAuctions"`
	ParticipatedAuctions []AuctionSummary `json:"participatedAuctions"`
	WonAuctions          []AuctionSummary `json:"wonAuctions"`
	RecentActivity       []Activity       `json:"recentActivity"`
}

// SignupRequest is the JSON body for POST /api/signup.
type SignupRequest struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Phone    string `json:"phone"`
	Location string `json:"location"`
}

// SigninRequest is the JSON body for POST /api/signin.
type SigninRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
