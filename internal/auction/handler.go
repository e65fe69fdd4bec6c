package auction

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"

	"github.com/nishant/auction-app/backend/internal/apperrors"
	"github.com/nishant/auction-app/backend/internal/middleware"
	"github.com/nishant/auction-app/backend/internal/models"
)

// multipartMemory is the in-memory buffer for multipart parsing; larger
// parts spill to temp files.
const multipartMemory = 32 << 20

// Handler holds the auction HTTP handlers.
type Handler struct {
	service *Service
	intake  *Intake
	files   FileStore
}

func NewHandler(service *Service, intake *Intake, files FileStore) *Handler {
	return &Handler{service: service, intake: intake, files: files}
}

// Create handles POST /api/auction (multipart).
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		apperrors.WriteJSON(w, http.StatusUnauthorized, map[string]string{"message": "Unauthorized: User not found"})
		return
	}

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		apperrors.WriteJSON(w, http.StatusBadRequest, map[string]string{"message": "Invalid multipart form"})
		return
	}
	defer r.MultipartForm.RemoveAll()

	input := models.CreateAuctionInput{
		ItemName:    r.FormValue("itemName"),
		Description: r.FormValue("description"),
		StartingBid: r.FormValue("startingBid"),
		ClosingTime: r.FormValue("closingTime"),
		Category:    r.FormValue("category"),
	}
	// Check the text fields before touching storage so a rejected create
	// leaves no orphaned media objects.
	if _, err := parseListing(input); err != nil {
		apperrors.WriteError(w, err)
		return
	}

	images, model3D, err := h.intake.StoreUploads(r.Context(), r.MultipartForm)
	if err != nil {
		apperrors.WriteError(w, err)
		return
	}
	input.Images = images
	input.Model3D = model3D

	auction, err := h.service.Create(r.Context(), userID, input)
	if err != nil {
		apperrors.WriteError(w, err)
		return
	}

	log.WithFields(log.Fields{"auction_id": auction.ID.Hex(), "seller": userID}).Info("auction posted")
	apperrors.WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "Auction created successfully",
		"auction": auction,
	})
}

// Update handles PUT /api/auction/{id}.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		apperrors.WriteJSON(w, http.StatusUnauthorized, map[string]string{"message": "Unauthorized: User not found"})
		return
	}

	var patch models.UpdateAuctionPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		apperrors.WriteJSON(w, http.StatusBadRequest, map[string]string{"message": "Invalid request body"})
		return
	}

	auction, err := h.service.Update(r.Context(), userID, chi.URLParam(r, "id"), patch)
	if err != nil {
		h.writeDomainError(w, err, "Auction not found")
		return
	}

	apperrors.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Auction updated successfully",
		"auction": auction,
	})
}

// Delete handles DELETE /api/auction/{id}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		apperrors.WriteJSON(w, http.StatusUnauthorized, map[string]string{"message": "Unauthorized: User not found"})
		return
	}

	if err := h.service.Delete(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		h.writeDomainError(w, err, "Auction not found")
		return
	}

	apperrors.WriteJSON(w, http.StatusOK, map[string]string{"message": "Auction deleted successfully"})
}

// List handles GET /api/auctions.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	auctions, err := h.service.List(r.Context())
	if err != nil {
		log.WithField("error", err.Error()).Error("failed to list auctions")
		apperrors.WriteError(w, err)
		return
	}
	if auctions == nil {
		auctions = []models.Auction{}
	}
	apperrors.WriteJSON(w, http.StatusOK, auctions)
}

// Get handles GET /api/auctions/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	detail, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, err, "Auction not found")
		return
	}
	apperrors.WriteJSON(w, http.StatusOK, detail)
}

// SellerProfile handles GET /api/users/{id}.
func (h *Handler) SellerProfile(w http.ResponseWriter, r *http.Request) {
	info, err := h.service.SellerProfile(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, err, "Seller not found")
		return
	}
	apperrors.WriteJSON(w, http.StatusOK, info)
}

// PlaceBid handles POST /api/bid/{auctionId}.
func (h *Handler) PlaceBid(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		apperrors.WriteJSON(w, http.StatusUnauthorized, map[string]string{"message": "Unauthorized: User not found"})
		return
	}

	var req models.BidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperrors.WriteJSON(w, http.StatusBadRequest, map[string]string{"message": "Invalid request body"})
		return
	}

	auctionID := chi.URLParam(r, "auctionId")
	auction, err := h.service.PlaceBid(r.Context(), userID, auctionID, req.Bid)
	if err != nil {
		if errors.Is(err, apperrors.ErrConflict) {
			log.WithFields(log.Fields{"auction_id": auctionID, "bidder": userID}).
				Warn("bid lost compare-and-set race")
		}
		h.writeDomainError(w, err, "Auction not found")
		return
	}

	log.WithFields(log.Fields{"auction_id": auctionID, "bidder": userID, "amount": req.Bid}).
		Info("bid placed")
	apperrors.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Bid placed successfully",
		"auction": auction,
	})
}

// ServeUpload handles GET /uploads/{key}, streaming stored media. STL models
// get an explicit content type and inline disposition so browser viewers can
// render them directly.
func (h *Handler) ServeUpload(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	obj, contentType, err := h.files.Download(r.Context(), key)
	if err != nil {
		apperrors.WriteJSON(w, http.StatusNotFound, map[string]string{"message": "File not found"})
		return
	}
	defer obj.Close()

	if strings.HasSuffix(strings.ToLower(key), ".stl") {
		w.Header().Set("Content-Type", "model/stl")
		w.Header().Set("Content-Disposition", "inline")
	} else if contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}

	if _, err := io.Copy(w, obj); err != nil {
		log.WithFields(log.Fields{"key": key, "error": err.Error()}).Warn("upload stream interrupted")
	}
}

// writeDomainError keeps the NotFound message specific to the resource while
// deferring everything else to the shared mapping.
func (h *Handler) writeDomainError(w http.ResponseWriter, err error, notFoundMsg string) {
	if errors.Is(err, apperrors.ErrNotFound) {
		apperrors.WriteJSON(w, http.StatusNotFound, map[string]string{"message": notFoundMsg})
		return
	}
	apperrors.WriteError(w, err)
}
