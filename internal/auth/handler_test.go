package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/nishant/auction-app/backend/internal/apperrors"
	"github.com/nishant/auction-app/backend/internal/middleware"
	"github.com/nishant/auction-app/backend/internal/models"
)

// fakeUserStore is an in-memory UserStore.
type fakeUserStore struct {
	byEmail   map[string]*models.User
	byID      map[string]*models.User
	relations map[string][]string
	activity  map[string][]string
	nextID    int
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{
		byEmail:   make(map[string]*models.User),
		byID:      make(map[string]*models.User),
		relations: make(map[string][]string),
		activity:  make(map[string][]string),
	}
}

func (f *fakeUserStore) CreateUser(_ context.Context, u *models.User) (*models.User, error) {
	if _, ok := f.byEmail[u.Email]; ok {
		return nil, fmt.Errorf("email taken: %w", apperrors.ErrConflict)
	}
	f.nextID++
	stored := *u
	stored.ID = fmt.Sprintf("user-%d", f.nextID)
	stored.CreatedAt = time.Now()
	f.byEmail[stored.Email] = &stored
	f.byID[stored.ID] = &stored
	return &stored, nil
}

func (f *fakeUserStore) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	u, ok := f.byEmail[email]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return u, nil
}

func (f *fakeUserStore) GetUserByID(_ context.Context, id string) (*models.User, error) {
	u, ok := f.byID[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return u, nil
}

func (f *fakeUserStore) AuctionIDsByRelation(_ context.Context, userID, relation string) ([]string, error) {
	return f.relations[userID+"/"+relation], nil
}

func (f *fakeUserStore) AppendActivity(_ context.Context, userID, description string) error {
	f.activity[userID] = append(f.activity[userID], description)
	return nil
}

func (f *fakeUserStore) RecentActivity(_ context.Context, userID string) ([]models.Activity, error) {
	var out []models.Activity
	for _, d := range f.activity[userID] {
		out = append(out, models.Activity{Description: d})
	}
	return out, nil
}

// fakeAuctionFinder resolves ids against a fixed set of auctions.
type fakeAuctionFinder struct {
	auctions map[string]models.Auction
}

func (f *fakeAuctionFinder) FindByIDs(_ context.Context, ids []string) ([]models.Auction, error) {
	var out []models.Auction
	for _, id := range ids {
		if a, ok := f.auctions[id]; ok {
			out = append(out, a)
		}
	}
	return out, nil
}

// fakeBlacklist records revocations and answers membership checks.
type fakeBlacklist struct {
	revoked map[string]time.Duration
}

func newFakeBlacklist() *fakeBlacklist {
	return &fakeBlacklist{revoked: make(map[string]time.Duration)}
}

func (f *fakeBlacklist) Add(_ context.Context, token string, ttl time.Duration) error {
	f.revoked[token] = ttl
	return nil
}

func (f *fakeBlacklist) Contains(_ context.Context, token string) (bool, error) {
	_, ok := f.revoked[token]
	return ok, nil
}

type testEnv struct {
	handler   *Handler
	users     *fakeUserStore
	finder    *fakeAuctionFinder
	tokens    *TokenService
	blacklist *fakeBlacklist
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	tokens, err := NewTokenService(testSecret, time.Hour)
	require.NoError(t, err)

	users := newFakeUserStore()
	finder := &fakeAuctionFinder{auctions: make(map[string]models.Auction)}
	blacklist := newFakeBlacklist()
	return &testEnv{
		handler:   NewHandler(users, finder, tokens, blacklist),
		users:     users,
		finder:    finder,
		tokens:    tokens,
		blacklist: blacklist,
	}
}

func postJSON(t *testing.T, handler http.HandlerFunc, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

// protect wraps a handler with the real auth guard so context carries the
// user id and token the way it does in production.
func (e *testEnv) protect(h http.HandlerFunc) http.Handler {
	return middleware.RequireAuth(e.tokens, e.blacklist)(h)
}

func TestSignupSigninRoundTrip(t *testing.T) {
	env := newTestEnv(t)

	rec := postJSON(t, env.handler.Signup, "/api/signup",
		`{"fullName":"Asha Rao","email":"asha@example.com","password":"hunter22","phone":"555-0101"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	stored := env.users.byEmail["asha@example.com"]
	require.NotNil(t, stored)
	require.NotEqual(t, "hunter22", stored.Password, "password must be stored hashed")
	require.Equal(t, []string{"Joined the platform"}, env.users.activity[stored.ID])

	t.Run("correct_password_returns_token", func(t *testing.T) {
		rec := postJSON(t, env.handler.Signin, "/api/signin",
			`{"email":"asha@example.com","password":"hunter22"}`)
		require.Equal(t, http.StatusOK, rec.Code)

		var body struct {
			Token string `json:"token"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		require.NotEmpty(t, body.Token)

		userID, err := env.tokens.Verify(body.Token)
		require.NoError(t, err)
		require.Equal(t, stored.ID, userID)
	})

	t.Run("wrong_password_rejected", func(t *testing.T) {
		rec := postJSON(t, env.handler.Signin, "/api/signin",
			`{"email":"asha@example.com","password":"wrong"}`)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown_email_rejected", func(t *testing.T) {
		rec := postJSON(t, env.handler.Signin, "/api/signin",
			`{"email":"nobody@example.com","password":"hunter22"}`)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("duplicate_email_conflicts", func(t *testing.T) {
		rec := postJSON(t, env.handler.Signup, "/api/signup",
			`{"fullName":"Asha Again","email":"asha@example.com","password":"other"}`)
		require.Equal(t, http.StatusConflict, rec.Code)
	})
}

func TestSignup_MissingFields(t *testing.T) {
	env := newTestEnv(t)
	rec := postJSON(t, env.handler.Signup, "/api/signup",
		`{"email":"x@example.com"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLogout_BlacklistsToken(t *testing.T) {
	env := newTestEnv(t)
	u, err := env.users.CreateUser(context.Background(), &models.User{
		FullName: "Asha Rao", Email: "asha@example.com", Password: "irrelevant",
	})
	require.NoError(t, err)

	token, err := env.tokens.Issue(u.ID)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/logout", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	env.protect(env.handler.Logout).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	ttl, ok := env.blacklist.revoked[token]
	require.True(t, ok, "logout must blacklist the presented token")
	require.Greater(t, ttl, 55*time.Minute)

	// The same token is now rejected by the guard.
	req = httptest.NewRequest(http.MethodGet, "/api/profile", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	env.protect(env.handler.Profile).ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestProfile_PopulatesLists(t *testing.T) {
	env := newTestEnv(t)
	u, err := env.users.CreateUser(context.Background(), &models.User{
		FullName: "Asha Rao", Email: "asha@example.com", Password: "irrelevant",
	})
	require.NoError(t, err)

	aid := primitive.NewObjectID()
	env.finder.auctions[aid.Hex()] = models.Auction{ID: aid, ItemName: "Vintage Lamp", CurrentBid: 120}
	env.users.relations[u.ID+"/"+models.RelationPosted] = []string{aid.Hex()}
	env.users.activity[u.ID] = []string{"Joined the platform"}

	token, err := env.tokens.Issue(u.ID)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/profile", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	env.protect(env.handler.Profile).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var profile models.Profile
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &profile))
	require.Equal(t, "Asha Rao", profile.FullName)
	require.Len(t, profile.PostedAuctions, 1)
	require.Equal(t, "Vintage Lamp", profile.PostedAuctions[0].ItemName)
	require.Equal(t, 120.0, profile.PostedAuctions[0].CurrentBid)
	require.Empty(t, profile.ParticipatedAuctions)
	require.Empty(t, profile.WonAuctions)
	require.Len(t, profile.RecentActivity, 1)
}

func TestProfile_UserGone(t *testing.T) {
	env := newTestEnv(t)
	token, err := env.tokens.Issue("ghost-user")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/profile", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	env.protect(env.handler.Profile).ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRelationLists(t *testing.T) {
	env := newTestEnv(t)
	u, err := env.users.CreateUser(context.Background(), &models.User{
		FullName: "Asha Rao", Email: "asha@example.com", Password: "irrelevant",
	})
	require.NoError(t, err)

	aid := primitive.NewObjectID()
	env.finder.auctions[aid.Hex()] = models.Auction{ID: aid, ItemName: "Vintage Lamp", CurrentBid: 95}
	env.users.relations[u.ID+"/"+models.RelationWon] = []string{aid.Hex()}

	token, err := env.tokens.Issue(u.ID)
	require.NoError(t, err)

	get := func(h http.HandlerFunc) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/user/won-auctions", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		env.protect(h).ServeHTTP(rec, req)
		return rec
	}

	rec := get(env.handler.WonAuctions)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string][]models.Auction
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body["wonAuctions"], 1)
	require.Equal(t, "Vintage Lamp", body["wonAuctions"][0].ItemName)

	rec = get(env.handler.PostedAuctions)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotNil(t, body["postedAuctions"])
	require.Empty(t, body["postedAuctions"])
}
