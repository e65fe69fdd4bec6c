package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/nishant/auction-app/backend/internal/apperrors"
	"github.com/nishant/auction-app/backend/internal/middleware"
	"github.com/nishant/auction-app/backend/internal/models"
)

// UserStore defines the interface for user persistence.
type UserStore interface {
	CreateUser(ctx context.Context, u *models.User) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	AuctionIDsByRelation(ctx context.Context, userID, relation string) ([]string, error)
	AppendActivity(ctx context.Context, userID, description string) error
	RecentActivity(ctx context.Context, userID string) ([]models.Activity, error)
}

// AuctionFinder resolves auction ids into documents when populating a user's
// auction lists.
type AuctionFinder interface {
	FindByIDs(ctx context.Context, ids []string) ([]models.Auction, error)
}

// TokenRevoker invalidates a token for the remainder of its lifetime.
type TokenRevoker interface {
	Add(ctx context.Context, token string, ttl time.Duration) error
}

// Handler holds the account-facing HTTP handlers.
type Handler struct {
	users     UserStore
	auctions  AuctionFinder
	tokens    *TokenService
	blacklist TokenRevoker
}

func NewHandler(users UserStore, auctions AuctionFinder, tokens *TokenService, blacklist TokenRevoker) *Handler {
	return &Handler{users: users, auctions: auctions, tokens: tokens, blacklist: blacklist}
}

// Signup registers a new user.
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var req models.SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperrors.WriteJSON(w, http.StatusBadRequest, map[string]string{"message": "Invalid request body"})
		return
	}
	if req.FullName == "" || req.Email == "" || req.Password == "" {
		apperrors.WriteJSON(w, http.StatusBadRequest, map[string]string{"message": "All required fields must be provided"})
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		apperrors.WriteError(w, err)
		return
	}

	user, err := h.users.CreateUser(r.Context(), &models.User{
		FullName: req.FullName,
		Email:    req.Email,
		Password: string(hashed),
		Phone:    req.Phone,
		Location: req.Location,
	})
	if err != nil {
		if errors.Is(err, apperrors.ErrConflict) {
			apperrors.WriteJSON(w, http.StatusConflict, map[string]string{"message": "Email already registered"})
			return
		}
		log.WithField("error", err.Error()).Error("signup failed")
		apperrors.WriteError(w, err)
		return
	}

	if err := h.users.AppendActivity(r.Context(), user.ID, "Joined the platform"); err != nil {
		log.WithFields(log.Fields{"user_id": user.ID, "error": err.Error()}).
			Warn("failed to record signup activity")
	}

	apperrors.WriteJSON(w, http.StatusCreated, map[string]string{"message": "User registered successfully"})
}

// Signin checks credentials and returns a bearer token.
func (h *Handler) Signin(w http.ResponseWriter, r *http.Request) {
	var req models.SigninRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperrors.WriteJSON(w, http.StatusBadRequest, map[string]string{"message": "Invalid request body"})
		return
	}
	if req.Email == "" || req.Password == "" {
		apperrors.WriteJSON(w, http.StatusBadRequest, map[string]string{"message": "All fields are required"})
		return
	}

	user, err := h.users.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		// An unknown email and a wrong password are indistinguishable to the
		// caller.
		apperrors.WriteJSON(w, http.StatusBadRequest, map[string]string{"message": "Invalid email or password"})
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		apperrors.WriteJSON(w, http.StatusBadRequest, map[string]string{"message": "Invalid email or password"})
		return
	}

	token, err := h.tokens.Issue(user.ID)
	if err != nil {
		log.WithField("error", err.Error()).Error("token issue failed")
		apperrors.WriteError(w, err)
		return
	}

	apperrors.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Signin successful",
		"token":   token,
	})
}

// Logout blacklists the presented token for the rest of its lifetime.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	token, ok := middleware.TokenFromContext(r.Context())
	if !ok {
		apperrors.WriteJSON(w, http.StatusUnauthorized, map[string]string{"message": "Unauthorized: No token provided"})
		return
	}

	ttl, err := h.tokens.Remaining(token)
	if err == nil {
		if err := h.blacklist.Add(r.Context(), token, ttl); err != nil {
			log.WithField("error", err.Error()).Warn("failed to blacklist token on logout")
		}
	}

	apperrors.WriteJSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}

// Profile returns the current user with auction lists and activity populated.
// Each list is fetched independently so one failing fetch does not block the
// others.
func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		apperrors.WriteJSON(w, http.StatusUnauthorized, map[string]string{"message": "Unauthorized: User not found"})
		return
	}

	user, err := h.users.GetUserByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			apperrors.WriteJSON(w, http.StatusNotFound, map[string]string{"message": "User not found"})
			return
		}
		apperrors.WriteError(w, err)
		return
	}

	profile := models.Profile{
		ID:        user.ID,
		FullName:  user.FullName,
		Email:     user.Email,
		Phone:     user.Phone,
		Location:  user.Location,
		CreatedAt: user.CreatedAt,
	}
	profile.PostedAuctions = h.summaries(r.Context(), userID, models.RelationPosted)
	profile.ParticipatedAuctions = h.summaries(r.Context(), userID, models.RelationParticipated)
	profile.WonAuctions = h.summaries(r.Context(), userID, models.RelationWon)

	activity, err := h.users.RecentActivity(r.Context(), userID)
	if err != nil {
		log.WithFields(log.Fields{"user_id": userID, "error": err.Error()}).
			Warn("failed to fetch recent activity")
	}
	if activity == nil {
		activity = []models.Activity{}
	}
	profile.RecentActivity = activity

	apperrors.WriteJSON(w, http.StatusOK, profile)
}

// summaries resolves one relation list to auction summaries, degrading to an
// empty list on error.
func (h *Handler) summaries(ctx context.Context, userID, relation string) []models.AuctionSummary {
	auctions, err := h.auctionsByRelation(ctx, userID, relation)
	if err != nil {
		log.WithFields(log.Fields{"user_id": userID, "relation": relation, "error": err.Error()}).
			Warn("failed to populate auction list")
		return []models.AuctionSummary{}
	}

	out := make([]models.AuctionSummary, 0, len(auctions))
	for _, a := range auctions {
		out = append(out, a.Summary())
	}
	return out
}

func (h *Handler) auctionsByRelation(ctx context.Context, userID, relation string) ([]models.Auction, error) {
	ids, err := h.users.AuctionIDsByRelation(ctx, userID, relation)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	return h.auctions.FindByIDs(ctx, ids)
}

// PostedAuctions handles GET /api/user/posted-auctions.
func (h *Handler) PostedAuctions(w http.ResponseWriter, r *http.Request) {
	h.relationList(w, r, models.RelationPosted, "postedAuctions")
}

// ParticipatedAuctions handles GET /api/user/participated-auctions.
func (h *Handler) ParticipatedAuctions(w http.ResponseWriter, r *http.Request) {
	h.relationList(w, r, models.RelationParticipated, "participatedAuctions")
}

// WonAuctions handles GET /api/user/won-auctions.
func (h *Handler) WonAuctions(w http.ResponseWriter, r *http.Request) {
	h.relationList(w, r, models.RelationWon, "wonAuctions")
}

func (h *Handler) relationList(w http.ResponseWriter, r *http.Request, relation, field string) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		apperrors.WriteJSON(w, http.StatusUnauthorized, map[string]string{"message": "Unauthorized: User not found"})
		return
	}

	if _, err := h.users.GetUserByID(r.Context(), userID); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			apperrors.WriteJSON(w, http.StatusNotFound, map[string]string{"message": "User not found"})
			return
		}
		apperrors.WriteError(w, err)
		return
	}

	auctions, err := h.auctionsByRelation(r.Context(), userID, relation)
	if err != nil {
		log.WithFields(log.Fields{"user_id": userID, "relation": relation, "error": err.Error()}).
			Error("failed to fetch auction list")
		apperrors.WriteError(w, err)
		return
	}
	if auctions == nil {
		auctions = []models.Auction{}
	}

	apperrors.WriteJSON(w, http.StatusOK, map[string][]models.Auction{field: auctions})
}
