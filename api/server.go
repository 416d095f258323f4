package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"cardroom/application"
	"cardroom/domain/apperrors"
	"cardroom/domain/entities"
	"cardroom/domain/interfaces"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"
)

// Inspector is the read side of the table coordinator used by the debug API
type Inspector interface {
	GetTable(ctx context.Context, tableID int64) (*entities.Table, error)
	OccupiedSeats(ctx context.Context, tableID int64) ([]*entities.Seat, error)
	Balance(ctx context.Context, userID int64, currency entities.Currency) (int64, error)
	Reconcile(ctx context.Context, userID int64, currency entities.Currency) (*interfaces.ReconcileResult, error)
	WaitingBuckets(ctx context.Context) ([]entities.WaitlistBucket, error)
	TableCounts(ctx context.Context) (map[entities.TableStatus]int, error)
}

// Response is the envelope returned by every debug endpoint
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// TableView is a table together with its occupied seats
type TableView struct {
	Table *entities.Table  `json:"table"`
	Seats []*entities.Seat `json:"seats"`
}

// BalanceView is a single wallet balance
type BalanceView struct {
	UserID   int64             `json:"user_id"`
	Currency entities.Currency `json:"currency"`
	Balance  int64             `json:"balance"`
}

// WaitlistView summarizes waitlist and table occupancy
type WaitlistView struct {
	Buckets     []entities.WaitlistBucket    `json:"buckets"`
	TableCounts map[entities.TableStatus]int `json:"table_counts"`
}

// SweepView reports one manually triggered sweep
type SweepView struct {
	Expired        *application.SweepReport `json:"expired"`
	JoinWindows    *application.SweepReport `json:"join_windows"`
	InvitesExpired int                      `json:"invites_expired"`
}

// Server is the loopback debug and operations API
type Server struct {
	inspector Inspector
	router    application.PassRunner
	sweeper   application.TableSweeper
	invites   application.InviteExpirer
	http      *http.Server
}

// NewServer creates a debug API server listening on 127.0.0.1:port
func NewServer(port int, inspector Inspector, router application.PassRunner, sweeper application.TableSweeper, invites application.InviteExpirer) *Server {
	s := &Server{
		inspector: inspector,
		router:    router,
		sweeper:   sweeper,
		invites:   invites,
	}
	s.http = &http.Server{
		Addr:         fmt.Sprintf("127.0.0.1:%d", port),
		Handler:      s.Routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s
}

// Routes builds the chi router
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(WithRequestID)
	r.Use(NewStructuredLogger(log.StandardLogger()))
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	r.Route("/debug", func(r chi.Router) {
		r.Get("/tables/{id}", s.getTable)
		r.Get("/users/{id}/balance/{currency}", s.getBalance)
		r.Get("/users/{id}/reconcile/{currency}", s.getReconcile)
		r.Get("/waitlist", s.getWaitlist)
		r.Post("/sweep", s.postSweep)
		r.Post("/route", s.postRoute)
	})

	return r
}

// Start serves in the background until Shutdown
func (s *Server) Start() {
	go func() {
		log.Infof("Debug API listening on %s", s.http.Addr)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("Debug API server error")
		}
	}()
}

// Shutdown stops accepting requests and waits for in-flight ones
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) getTable(w http.ResponseWriter, r *http.Request) {
	tableID, ok := pathID(w, r)
	if !ok {
		return
	}

	table, err := s.inspector.GetTable(r.Context(), tableID)
	if err != nil {
		respondWithDomainError(w, err)
		return
	}
	seats, err := s.inspector.OccupiedSeats(r.Context(), tableID)
	if err != nil {
		respondWithDomainError(w, err)
		return
	}

	respondWithData(w, TableView{Table: table, Seats: seats})
}

func (s *Server) getBalance(w http.ResponseWriter, r *http.Request) {
	userID, currency, ok := userAndCurrency(w, r)
	if !ok {
		return
	}

	balance, err := s.inspector.Balance(r.Context(), userID, currency)
	if err != nil {
		respondWithDomainError(w, err)
		return
	}

	respondWithData(w, BalanceView{UserID: userID, Currency: currency, Balance: balance})
}

func (s *Server) getReconcile(w http.ResponseWriter, r *http.Request) {
	userID, currency, ok := userAndCurrency(w, r)
	if !ok {
		return
	}

	result, err := s.inspector.Reconcile(r.Context(), userID, currency)
	if err != nil {
		respondWithDomainError(w, err)
		return
	}

	respondWithData(w, result)
}

func (s *Server) getWaitlist(w http.ResponseWriter, r *http.Request) {
	buckets, err := s.inspector.WaitingBuckets(r.Context())
	if err != nil {
		respondWithDomainError(w, err)
		return
	}
	counts, err := s.inspector.TableCounts(r.Context())
	if err != nil {
		respondWithDomainError(w, err)
		return
	}

	respondWithData(w, WaitlistView{Buckets: buckets, TableCounts: counts})
}

func (s *Server) postSweep(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	expired, err := s.sweeper.SweepExpiredTables(ctx)
	if err != nil {
		respondWithDomainError(w, err)
		return
	}
	windows, err := s.sweeper.SweepJoinWindows(ctx)
	if err != nil {
		respondWithDomainError(w, err)
		return
	}
	invites, err := s.invites.ExpireOverdue(ctx)
	if err != nil {
		respondWithDomainError(w, err)
		return
	}

	log.WithFields(log.Fields{
		"request_id":      RequestIDFromContext(ctx),
		"tables_expired":  expired.Applied,
		"windows_closed":  windows.Applied,
		"invites_expired": invites,
	}).Info("Manual sweep completed")

	respondWithData(w, SweepView{Expired: expired, JoinWindows: windows, InvitesExpired: invites})
}

func (s *Server) postRoute(w http.ResponseWriter, r *http.Request) {
	report, err := s.router.RunPass(r.Context())
	if err != nil {
		respondWithDomainError(w, err)
		return
	}

	log.WithFields(log.Fields{
		"request_id": RequestIDFromContext(r.Context()),
		"routed":     report.Routed,
		"new_tables": report.NewTables,
	}).Info("Manual router pass completed")

	respondWithData(w, report)
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		respondWithError(w, fmt.Sprintf("invalid id %q", chi.URLParam(r, "id")), string(apperrors.CodeInvalidArgument), http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func userAndCurrency(w http.ResponseWriter, r *http.Request) (int64, entities.Currency, bool) {
	userID, ok := pathID(w, r)
	if !ok {
		return 0, "", false
	}
	currency, err := entities.ParseCurrency(chi.URLParam(r, "currency"))
	if err != nil {
		respondWithError(w, err.Error(), string(apperrors.CodeInvalidArgument), http.StatusBadRequest)
		return 0, "", false
	}
	return userID, currency, true
}

// StatusFor maps a domain error code onto an HTTP status
func StatusFor(err error) int {
	switch apperrors.CodeOf(err) {
	case apperrors.CodeNotFound:
		return http.StatusNotFound
	case apperrors.CodeInvalidArgument:
		return http.StatusBadRequest
	case apperrors.CodeInsufficientFunds:
		return http.StatusUnprocessableEntity
	case apperrors.CodeSeatUnavailable, apperrors.CodeSeatNotOccupied, apperrors.CodeInvalidTransition,
		apperrors.CodeAlreadyConsumed, apperrors.CodeAlreadyCancelled, apperrors.CodeDuplicateTableCreation,
		apperrors.CodeConflict:
		return http.StatusConflict
	case apperrors.CodeTokenExhausted, apperrors.CodeTokenExpired:
		return http.StatusGone
	case apperrors.CodeDispatcherClosed:
		return http.StatusServiceUnavailable
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func respondWithData(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(Response{
		Success: true,
		Data:    data,
	})
}

func respondWithDomainError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		log.WithError(err).Error("Debug API request failed")
	}
	respondWithError(w, err.Error(), string(apperrors.CodeOf(err)), status)
}

func respondWithError(w http.ResponseWriter, message, code string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(Response{
		Success: false,
		Error:   message,
		Code:    code,
	})
}
