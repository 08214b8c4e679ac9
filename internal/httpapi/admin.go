package httpapi

import (
	"net/http"

	"estore/api/internal/model"
	"estore/api/internal/repository"

	"github.com/go-chi/chi/v5"
)

func page(r *http.Request) (repository.Page, error) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		return repository.Page{}, err
	}
	offset, err := queryInt(r, "offset")
	if err != nil {
		return repository.Page{}, err
	}
	if limit == 0 {
		limit = 50
	}
	return repository.Page{Limit: limit, Offset: offset}, nil
}

// adminListTransactions handles GET /v1/admin/transactions
// ?status=&method=&order_id=&from=&to=&limit=&offset=
func (s *Server) adminListTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := repository.TransactionFilter{
		Status:  model.PaymentStatus(q.Get("status")),
		Method:  model.PaymentMethod(q.Get("method")),
		OrderID: q.Get("order_id"),
	}
	var err error
	if f.From, err = queryTime(r, "from"); err != nil {
		respondError(w, r, err)
		return
	}
	if f.To, err = queryTime(r, "to"); err != nil {
		respondError(w, r, err)
		return
	}
	if f.Page, err = page(r); err != nil {
		respondError(w, r, err)
		return
	}

	list, err := s.admin.ListTransactions(r.Context(), actor(r), f)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if list == nil {
		list = []model.Transaction{}
	}
	respondJSON(w, http.StatusOK, list)
}

type statusRequest struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

func (s *Server) adminSetTransactionStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := decode(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	t, err := s.admin.SetTransactionStatus(r.Context(), actor(r), chi.URLParam(r, "txid"), model.PaymentStatus(req.Status), req.Reason)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, t)
}

func (s *Server) adminResetTransaction(w http.ResponseWriter, r *http.Request) {
	t, err := s.admin.ResetTransaction(r.Context(), actor(r), chi.URLParam(r, "txid"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, t)
}

// adminListOrders handles GET /v1/admin/orders
// ?status=&payment_status=&user_id=&from=&to=&limit=&offset=
func (s *Server) adminListOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := repository.OrderFilter{
		Status:        model.OrderStatus(q.Get("status")),
		PaymentStatus: model.PaymentStatus(q.Get("payment_status")),
		UserID:        q.Get("user_id"),
	}
	var err error
	if f.From, err = queryTime(r, "from"); err != nil {
		respondError(w, r, err)
		return
	}
	if f.To, err = queryTime(r, "to"); err != nil {
		respondError(w, r, err)
		return
	}
	if f.Page, err = page(r); err != nil {
		respondError(w, r, err)
		return
	}

	list, err := s.admin.ListOrders(r.Context(), actor(r), f)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if list == nil {
		list = []model.Order{}
	}
	respondJSON(w, http.StatusOK, list)
}

func (s *Server) adminOrderDetails(w http.ResponseWriter, r *http.Request) {
	d, err := s.admin.OrderDetails(r.Context(), actor(r), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, d)
}

func (s *Server) adminAdvanceOrder(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := decode(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	order, err := s.checkout.AdvanceOrder(r.Context(), actor(r), chi.URLParam(r, "id"), model.OrderStatus(req.Status))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}

func (s *Server) adminGetInvoice(w http.ResponseWriter, r *http.Request) {
	inv, err := s.invoices.Get(r.Context(), actor(r), chi.URLParam(r, "number"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, inv)
}

func (s *Server) adminCancelInvoice(w http.ResponseWriter, r *http.Request) {
	inv, err := s.invoices.Cancel(r.Context(), actor(r), chi.URLParam(r, "number"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, inv)
}

// adminSalesReport handles GET /v1/admin/reports/sales?from=&to=.
// Datas simples (2006-01-02) em "to" incluem o dia inteiro.
func (s *Server) adminSalesReport(w http.ResponseWriter, r *http.Request) {
	from, err := queryTime(r, "from")
	if err != nil {
		respondError(w, r, err)
		return
	}
	to, err := queryTime(r, "to")
	if err != nil {
		respondError(w, r, err)
		return
	}
	if raw := r.URL.Query().Get("to"); len(raw) == len("2006-01-02") {
		to = to.AddDate(0, 0, 1)
	}
	rep, err := s.invoices.SalesReport(r.Context(), actor(r), from, to)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, rep)
}
