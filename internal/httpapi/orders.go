package httpapi

import (
	"net/http"

	"estore/api/internal/checkout"
	apperrors "estore/api/internal/errors"
	"estore/api/internal/model"
	"estore/api/internal/payment"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type cartRequest struct {
	Items []checkout.Line `json:"items"`
}

func (s *Server) validateCart(w http.ResponseWriter, r *http.Request) {
	var req cartRequest
	if err := decode(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	cart, err := s.checkout.ValidateCart(r.Context(), req.Items)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, cart)
}

func (s *Server) createOrder(w http.ResponseWriter, r *http.Request) {
	var req checkout.CreateOrderRequest
	if err := decode(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	order, err := s.checkout.CreateOrder(r.Context(), actor(r).UserID, req)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, order)
}

func (s *Server) getOrder(w http.ResponseWriter, r *http.Request) {
	order, err := s.checkout.GetOrder(r.Context(), actor(r), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) cancelOrder(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest
	if err := decode(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if req.Reason == "" {
		req.Reason = "cancelado pelo cliente"
	}
	order, err := s.checkout.CancelOrder(r.Context(), actor(r), chi.URLParam(r, "id"), req.Reason)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}

type paymentRequest struct {
	Method       model.PaymentMethod `json:"method"`
	Amount       *decimal.Decimal    `json:"amount"`
	Card         payment.Card        `json:"card"`
	Installments int                 `json:"installments"`
}

type declinedBody struct {
	errorBody
	Transaction *model.Transaction `json:"transaction"`
}

// processPayment handles POST /v1/orders/{id}/payments. Without an amount
// the order total is charged.
func (s *Server) processPayment(w http.ResponseWriter, r *http.Request) {
	var req paymentRequest
	if err := decode(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	in, err := payment.NewInstrument(req.Method, req.Card, req.Installments)
	if err != nil {
		respondError(w, r, err)
		return
	}

	orderID := chi.URLParam(r, "id")
	var amount decimal.Decimal
	if req.Amount != nil {
		amount = *req.Amount
	} else {
		order, err := s.checkout.GetOrder(r.Context(), actor(r), orderID)
		if err != nil {
			respondError(w, r, err)
			return
		}
		amount = order.TotalAmount
	}

	res, err := s.payments.Process(r.Context(), actor(r), payment.Request{OrderID: orderID, Amount: amount, Instrument: in})
	if err != nil {
		// recusa: a transação falhada volta junto com o erro
		if e, ok := apperrors.As(err); ok && e.Code == apperrors.CodePaymentDeclined && res != nil {
			respondJSON(w, e.Code.HTTPStatus(), declinedBody{
				errorBody:   errorBody{Error: e.Error(), Code: e.Code, Details: e.Metadata},
				Transaction: res.Transaction,
			})
			return
		}
		respondError(w, r, err)
		return
	}
	status := http.StatusCreated
	if res.Reused {
		status = http.StatusOK
	}
	respondJSON(w, status, res)
}

func (s *Server) getPayment(w http.ResponseWriter, r *http.Request) {
	d, err := s.payments.Lookup(r.Context(), actor(r), chi.URLParam(r, "txid"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, d)
}

func (s *Server) issueInvoice(w http.ResponseWriter, r *http.Request) {
	inv, err := s.invoices.Issue(r.Context(), actor(r), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, inv)
}

func (s *Server) orderInvoices(w http.ResponseWriter, r *http.Request) {
	list, err := s.invoices.ByOrder(r.Context(), actor(r), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	if list == nil {
		list = []model.Invoice{}
	}
	respondJSON(w, http.StatusOK, list)
}
