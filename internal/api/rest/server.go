// Package rest serves a read-only admin view of the synchronized orders.
package rest

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"betsync/internal/exchange/common"
	"betsync/internal/ordersync"
)

// OrderView is the part of a session the admin API reads.
type OrderView interface {
	Exchange() common.ExchangeID
	State() ordersync.Phase
	SequenceNumber() int64
	Orders() map[common.OrderRef]common.Order
	Order(ref common.OrderRef) (common.Order, bool)
}

type Server struct {
	view   OrderView
	router *mux.Router
}

func New(view OrderView) *Server {
	s := &Server{view: view, router: mux.NewRouter()}
	s.router.HandleFunc("/api/status", s.handleStatus).Methods(http.MethodGet)
	s.router.HandleFunc("/api/orders", s.handleOrders).Methods(http.MethodGet)
	s.router.HandleFunc("/api/orders/{ref}", s.handleOrder).Methods(http.MethodGet)
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

type statusResponse struct {
	Exchange       string `json:"exchange"`
	State          string `json:"state"`
	SequenceNumber int64  `json:"sequence_number"`
	Orders         int    `json:"orders"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, statusResponse{
		Exchange:       string(s.view.Exchange()),
		State:          s.view.State().String(),
		SequenceNumber: s.view.SequenceNumber(),
		Orders:         len(s.view.Orders()),
	})
}

// handleOrders lists orders sorted by reference, optionally filtered by
// ?status=unmatched,matched.
func (s *Server) handleOrders(w http.ResponseWriter, r *http.Request) {
	orders := ordersync.Sorted(s.view.Orders())
	if q := r.URL.Query().Get("status"); q != "" {
		want := make(map[string]bool)
		for _, st := range strings.Split(q, ",") {
			want[strings.ToLower(strings.TrimSpace(st))] = true
		}
		filtered := orders[:0]
		for _, o := range orders {
			if want[o.Status.String()] {
				filtered = append(filtered, o)
			}
		}
		orders = filtered
	}
	respondJSON(w, http.StatusOK, orders)
}

func (s *Server) handleOrder(w http.ResponseWriter, r *http.Request) {
	ref := common.OrderRef(mux.Vars(r)["ref"])
	o, ok := s.view.Order(ref)
	if !ok {
		respondError(w, http.StatusNotFound, "order not found")
		return
	}
	respondJSON(w, http.StatusOK, o)
}

func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}
