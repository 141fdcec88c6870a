package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/micropantry/pantrymap/internal/models"
	"github.com/micropantry/pantrymap/internal/recency"
	"github.com/micropantry/pantrymap/internal/repository"
	"github.com/micropantry/pantrymap/internal/stock"
	"github.com/micropantry/pantrymap/internal/wishlist"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100

	// Community board limits: latest slice shown, anonymous-but-named
	// posting with anti-spam caps.
	messageListLimit = 50
	maxMessageLen    = 500
	maxUserNameLen   = 40
	maxMessagePhotos = 5
)

// Server provides the HTTP API.
type Server struct {
	wishlist       *wishlist.Service
	stock          *stock.Engine
	donations      repository.DonationRepository
	telemetry      repository.TelemetryRepository
	messages       repository.MessageRepository
	pantries       repository.PantryRepository
	health         func(ctx context.Context) error
	metricsHandler http.Handler
	logger         *logrus.Logger
	mux            *http.ServeMux
	now            func() time.Time
}

// NewServer creates a Server, registers all routes, and returns it.
// health may be nil (always healthy); metricsHandler may be nil (no
// /metrics route).
func NewServer(wl *wishlist.Service, eng *stock.Engine,
	donations repository.DonationRepository, telemetry repository.TelemetryRepository,
	messages repository.MessageRepository, pantries repository.PantryRepository,
	health func(ctx context.Context) error, metricsHandler http.Handler,
	logger *logrus.Logger) *Server {
	s := &Server{
		wishlist:       wl,
		stock:          eng,
		donations:      donations,
		telemetry:      telemetry,
		messages:       messages,
		pantries:       pantries,
		health:         health,
		metricsHandler: metricsHandler,
		logger:         logger,
		mux:            http.NewServeMux(),
		now:            time.Now,
	}
	s.routes()
	return s
}

// Handler returns the http.Handler that can be passed to http.Server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// SetClock overrides the server clock, for tests.
func (s *Server) SetClock(now func() time.Time) { s.now = now }

func (s *Server) routes() {
	// Wishlist
	s.mux.HandleFunc("GET /api/wishlist", s.handleGetWishlist)
	s.mux.HandleFunc("POST /api/wishlist", s.handleSubmitWishlist)

	// Donation reports
	s.mux.HandleFunc("GET /api/donations", s.handleGetDonations)
	s.mux.HandleFunc("POST /api/donations", s.handleCreateDonation)

	// Telemetry
	s.mux.HandleFunc("POST /api/telemetry", s.handleIngestTelemetry)
	s.mux.HandleFunc("GET /api/telemetry/latest", s.handleLatestTelemetry)

	// Community board
	s.mux.HandleFunc("GET /api/messages", s.handleGetMessages)
	s.mux.HandleFunc("POST /api/messages", s.handleCreateMessage)

	// Pantry directory
	s.mux.HandleFunc("GET /api/pantries", s.handleListPantries)
	s.mux.HandleFunc("GET /api/pantries/{id}", s.handleGetPantry)
	s.mux.HandleFunc("POST /api/pantries", s.handleCreatePantry)

	// Stock badge
	s.mux.HandleFunc("GET /api/stock", s.handleGetStock)

	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	if s.metricsHandler != nil {
		s.mux.Handle("GET /metrics", s.metricsHandler)
	}
}

// ---------------------------------------------------------------------------
// JSON helpers
// ---------------------------------------------------------------------------

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			s.logger.WithError(err).Error("failed to encode JSON response")
		}
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}

// decodeJSON reads the request body into dst and returns an error message on
// failure. The caller should return immediately when ok == false.
func (s *Server) decodeJSON(r *http.Request, dst any) (ok bool, errMsg string) {
	if r.Body == nil {
		return false, "request body is empty"
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return false, fmt.Sprintf("invalid JSON: %v", err)
	}
	return true, ""
}

// requirePantryID reads the pantryId query parameter. It writes an error
// response and returns "" when the parameter is absent.
func (s *Server) requirePantryID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := r.URL.Query().Get("pantryId")
	if id == "" {
		s.respondError(w, http.StatusBadRequest, "pantryId query parameter is required")
		return "", false
	}
	return id, true
}

// writeWishlistError maps the aggregator's error taxonomy onto status codes:
// invalid input is the caller's fault, anything storage-side is a transient
// "please try again".
func (s *Server) writeWishlistError(w http.ResponseWriter, err error) {
	var verr *wishlist.ValidationError
	if errors.As(err, &verr) {
		s.respondError(w, http.StatusBadRequest, verr.Error())
		return
	}
	s.logger.WithError(err).Error("wishlist request failed")
	s.respondError(w, http.StatusInternalServerError, "please try again")
}

// ---------------------------------------------------------------------------
// Wishlist
// ---------------------------------------------------------------------------

type submitWishlistRequest struct {
	PantryID string `json:"pantryId"`
	Item     string `json:"item"`
	Quantity *int   `json:"quantity"`
}

func (s *Server) handleSubmitWishlist(w http.ResponseWriter, r *http.Request) {
	var req submitWishlistRequest
	if ok, msg := s.decodeJSON(r, &req); !ok {
		s.respondError(w, http.StatusBadRequest, msg)
		return
	}

	quantity := 1
	if req.Quantity != nil {
		quantity = *req.Quantity
	}

	agg, err := s.wishlist.Submit(r.Context(), req.PantryID, req.Item, quantity)
	if err != nil {
		s.writeWishlistError(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, agg)
}

func (s *Server) handleGetWishlist(w http.ResponseWriter, r *http.Request) {
	pantryID, ok := s.requirePantryID(w, r)
	if !ok {
		return
	}

	aggs, err := s.wishlist.List(r.Context(), pantryID)
	if err != nil {
		s.writeWishlistError(w, err)
		return
	}

	// Display policy: only counters touched within the last 7 days.
	aggs = wishlist.FilterRecent(aggs, s.now(), recency.WishlistDisplay)
	if aggs == nil {
		aggs = []*models.WishlistAggregate{}
	}
	s.respondJSON(w, http.StatusOK, aggs)
}

// ---------------------------------------------------------------------------
// Donation reports
// ---------------------------------------------------------------------------

type createDonationRequest struct {
	PantryID      string   `json:"pantryId"`
	DonationSize  string   `json:"donationSize"`
	DonationItems []string `json:"donationItems"`
	Note          string   `json:"note"`
	PhotoURLs     []string `json:"photoUrls"`
}

func (s *Server) handleCreateDonation(w http.ResponseWriter, r *http.Request) {
	var req createDonationRequest
	if ok, msg := s.decodeJSON(r, &req); !ok {
		s.respondError(w, http.StatusBadRequest, msg)
		return
	}
	if req.PantryID == "" {
		s.respondError(w, http.StatusBadRequest, "pantryId is required")
		return
	}
	size := models.DonationSize(req.DonationSize)
	if !size.Valid() {
		s.respondError(w, http.StatusBadRequest, "donationSize must be low_donation, medium_donation or high_donation")
		return
	}

	report := &models.DonationReport{
		ID:            "don_" + uuid.NewString(),
		PantryID:      req.PantryID,
		DonationSize:  size,
		DonationItems: req.DonationItems,
		Note:          req.Note,
		PhotoURLs:     req.PhotoURLs,
		CreatedAt:     s.now().UTC(),
	}
	created, err := s.donations.Create(r.Context(), report)
	if err != nil {
		s.logger.WithError(err).Error("failed to store donation report")
		s.respondError(w, http.StatusInternalServerError, "please try again")
		return
	}
	s.respondJSON(w, http.StatusCreated, created)
}

type donationListResponse struct {
	Items    []*models.DonationReport `json:"items"`
	Page     int                      `json:"page"`
	PageSize int                      `json:"pageSize"`
	Total    int                      `json:"total"`
}

func (s *Server) handleGetDonations(w http.ResponseWriter, r *http.Request) {
	pantryID, ok := s.requirePantryID(w, r)
	if !ok {
		return
	}
	page := queryInt(r, "page", 1)
	if page < 1 {
		page = 1
	}
	pageSize := queryInt(r, "pageSize", defaultPageSize)
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	since := recency.Donations.Cutoff(s.now())
	reports, err := s.donations.ListRecent(r.Context(), pantryID, since)
	if err != nil {
		s.logger.WithError(err).Error("failed to list donation reports")
		s.respondError(w, http.StatusInternalServerError, "please try again")
		return
	}

	total := len(reports)
	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	items := reports[start:end]
	if items == nil {
		items = []*models.DonationReport{}
	}
	s.respondJSON(w, http.StatusOK, donationListResponse{
		Items:    items,
		Page:     page,
		PageSize: pageSize,
		Total:    total,
	})
}

// ---------------------------------------------------------------------------
// Telemetry
// ---------------------------------------------------------------------------

type ingestTelemetryRequest struct {
	PantryID      string     `json:"pantryId"`
	DeviceID      string     `json:"deviceId"`
	Timestamp     *time.Time `json:"timestamp"`
	WeightKg      *float64   `json:"weightKg"`
	Scale1        *float64   `json:"scale1"`
	Scale2        *float64   `json:"scale2"`
	Scale3        *float64   `json:"scale3"`
	Scale4        *float64   `json:"scale4"`
	DoorState     string     `json:"doorState"`
	SchemaVersion int        `json:"schemaVersion"`
}

// weight returns the reading's weight: an explicit weightKg wins, otherwise
// the raw scale channels are summed with missing ones as zero.
func (req *ingestTelemetryRequest) weight() (float64, bool) {
	if req.WeightKg != nil {
		return *req.WeightKg, true
	}
	sum, present := 0.0, false
	for _, ch := range []*float64{req.Scale1, req.Scale2, req.Scale3, req.Scale4} {
		if ch == nil {
			continue
		}
		sum += *ch
		present = true
	}
	return sum, present
}

func (s *Server) handleIngestTelemetry(w http.ResponseWriter, r *http.Request) {
	var req ingestTelemetryRequest
	if ok, msg := s.decodeJSON(r, &req); !ok {
		s.respondError(w, http.StatusBadRequest, msg)
		return
	}
	if req.PantryID == "" {
		s.respondError(w, http.StatusBadRequest, "pantryId is required")
		return
	}
	weight, ok := req.weight()
	if !ok {
		s.respondError(w, http.StatusBadRequest, "weightKg or at least one scale channel is required")
		return
	}

	ts := s.now().UTC()
	if req.Timestamp != nil {
		ts = req.Timestamp.UTC()
	}
	reading := &models.TelemetryReading{
		PantryID:      req.PantryID,
		DeviceID:      req.DeviceID,
		Timestamp:     ts,
		WeightKg:      weight,
		DoorState:     req.DoorState,
		SchemaVersion: req.SchemaVersion,
	}
	if err := s.telemetry.Insert(r.Context(), reading); err != nil {
		s.logger.WithError(err).Error("failed to insert telemetry reading")
		s.respondError(w, http.StatusInternalServerError, "please try again")
		return
	}
	s.respondJSON(w, http.StatusCreated, reading)
}

func (s *Server) handleLatestTelemetry(w http.ResponseWriter, r *http.Request) {
	pantryID, ok := s.requirePantryID(w, r)
	if !ok {
		return
	}
	reading, err := s.telemetry.GetLatest(r.Context(), pantryID)
	if err != nil {
		s.logger.WithError(err).Error("failed to fetch latest telemetry")
		s.respondError(w, http.StatusInternalServerError, "please try again")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]*models.TelemetryReading{"latest": reading})
}

// ---------------------------------------------------------------------------
// Community board
// ---------------------------------------------------------------------------

type createMessageRequest struct {
	PantryID   string   `json:"pantryId"`
	UserName   string   `json:"userName"`
	UserAvatar string   `json:"userAvatar"`
	Content    string   `json:"content"`
	Photos     []string `json:"photos"`
}

func (s *Server) handleCreateMessage(w http.ResponseWriter, r *http.Request) {
	var req createMessageRequest
	if ok, msg := s.decodeJSON(r, &req); !ok {
		s.respondError(w, http.StatusBadRequest, msg)
		return
	}
	if strings.TrimSpace(req.PantryID) == "" {
		s.respondError(w, http.StatusBadRequest, "pantryId is required")
		return
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		s.respondError(w, http.StatusBadRequest, "content is required")
		return
	}
	if utf8.RuneCountInString(content) > maxMessageLen {
		s.respondError(w, http.StatusBadRequest, fmt.Sprintf("content too long (max %d)", maxMessageLen))
		return
	}
	userName := strings.TrimSpace(req.UserName)
	if userName == "" {
		s.respondError(w, http.StatusBadRequest, "userName is required")
		return
	}
	if utf8.RuneCountInString(userName) > maxUserNameLen {
		s.respondError(w, http.StatusBadRequest, fmt.Sprintf("userName too long (max %d)", maxUserNameLen))
		return
	}

	var photos []string
	for _, p := range req.Photos {
		if strings.TrimSpace(p) == "" {
			continue
		}
		photos = append(photos, p)
		if len(photos) == maxMessagePhotos {
			break
		}
	}

	message := &models.Message{
		ID:         "msg_" + uuid.NewString(),
		PantryID:   strings.TrimSpace(req.PantryID),
		UserName:   userName,
		UserAvatar: req.UserAvatar,
		Content:    content,
		Photos:     photos,
		CreatedAt:  s.now().UTC(),
	}
	created, err := s.messages.Create(r.Context(), message)
	if err != nil {
		s.logger.WithError(err).Error("failed to store message")
		s.respondError(w, http.StatusInternalServerError, "please try again")
		return
	}
	s.respondJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGetMessages(w http.ResponseWriter, r *http.Request) {
	pantryID, ok := s.requirePantryID(w, r)
	if !ok {
		return
	}
	messages, err := s.messages.ListRecent(r.Context(), pantryID, messageListLimit)
	if err != nil {
		s.logger.WithError(err).Error("failed to list messages")
		s.respondError(w, http.StatusInternalServerError, "please try again")
		return
	}
	if messages == nil {
		messages = []*models.Message{}
	}
	s.respondJSON(w, http.StatusOK, messages)
}

// ---------------------------------------------------------------------------
// Pantry directory
// ---------------------------------------------------------------------------

type createPantryRequest struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Address     string          `json:"address"`
	Location    models.Location `json:"location"`
	Description string          `json:"description"`
	Status      string          `json:"status"`
}

func (s *Server) handleCreatePantry(w http.ResponseWriter, r *http.Request) {
	var req createPantryRequest
	if ok, msg := s.decodeJSON(r, &req); !ok {
		s.respondError(w, http.StatusBadRequest, msg)
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		s.respondError(w, http.StatusBadRequest, "name is required")
		return
	}

	id := strings.TrimSpace(req.ID)
	if id == "" {
		id = "pan_" + uuid.NewString()
	}
	status := req.Status
	if status == "" {
		status = "active"
	}

	now := s.now().UTC()
	pantry := &models.Pantry{
		ID:          id,
		Name:        strings.TrimSpace(req.Name),
		Address:     req.Address,
		Location:    req.Location,
		Description: req.Description,
		Status:      status,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	created, err := s.pantries.Create(r.Context(), pantry)
	if err != nil {
		s.logger.WithError(err).Error("failed to store pantry")
		s.respondError(w, http.StatusInternalServerError, "please try again")
		return
	}
	s.respondJSON(w, http.StatusCreated, created)
}

func (s *Server) handleListPantries(w http.ResponseWriter, r *http.Request) {
	pantries, err := s.pantries.List(r.Context())
	if err != nil {
		s.logger.WithError(err).Error("failed to list pantries")
		s.respondError(w, http.StatusInternalServerError, "please try again")
		return
	}
	if pantries == nil {
		pantries = []*models.Pantry{}
	}
	s.respondJSON(w, http.StatusOK, pantries)
}

func (s *Server) handleGetPantry(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	pantry, err := s.pantries.GetByID(r.Context(), id)
	if err != nil {
		s.logger.WithError(err).Error("failed to fetch pantry")
		s.respondError(w, http.StatusInternalServerError, "please try again")
		return
	}
	if pantry == nil {
		s.respondError(w, http.StatusNotFound, "pantry not found")
		return
	}
	s.respondJSON(w, http.StatusOK, pantry)
}

// ---------------------------------------------------------------------------
// Stock badge
// ---------------------------------------------------------------------------

func (s *Server) handleGetStock(w http.ResponseWriter, r *http.Request) {
	pantryID, ok := s.requirePantryID(w, r)
	if !ok {
		return
	}
	classification := s.stock.Classify(r.Context(), pantryID)
	s.respondJSON(w, http.StatusOK, classification)
}

// ---------------------------------------------------------------------------
// Health
// ---------------------------------------------------------------------------

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		if err := s.health(r.Context()); err != nil {
			s.respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
			return
		}
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}
