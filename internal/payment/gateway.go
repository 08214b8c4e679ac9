package payment

import (
	"context"
	"encoding/json"
	"math/rand/v2"
	"time"

	"estore/api/internal/model"

	"github.com/shopspring/decimal"
)

// ChargeRequest is what a card gateway needs to authorize a payment.
type ChargeRequest struct {
	TransactionID string
	Method        model.PaymentMethod
	Amount        decimal.Decimal
	Card          Card
	Installments  int
}

// GatewayResponse is a gateway's answer to a charge. It is stored as JSON
// on the transaction.
type GatewayResponse struct {
	Approved          bool      `json:"approved"`
	AuthorizationCode string    `json:"authorizationCode,omitempty"`
	ResponseCode      string    `json:"processorResponse"`
	ResponseMessage   string    `json:"processorMessage"`
	CardBrand         string    `json:"cardBrand,omitempty"`
	LastFour          string    `json:"lastFour,omitempty"`
	Installments      int       `json:"installments"`
	ProcessedAt       time.Time `json:"processedAt"`
}

func (r *GatewayResponse) JSON() string {
	b, err := json.Marshal(r)
	if err != nil {
		return ""
	}
	return string(b)
}

// Gateway authorizes card charges. Implementations must honor ctx
// cancellation; a returned error means the outcome is unknown.
type Gateway interface {
	Charge(ctx context.Context, req ChargeRequest) (*GatewayResponse, error)
}

// Processor response codes of the simulated gateway.
const (
	codeApproved          = "00"
	codeDoNotHonor        = "05"
	codeInsufficientFunds = "51"
)

// SimulatedGateway approves card charges at configured rates. Outcomes are
// driven by an injectable random source, so tests can force them.
type SimulatedGateway struct {
	creditRate float64
	debitRate  float64
	latency    time.Duration
	rng        *lockedRand
	now        func() time.Time
}

// NewSimulatedGateway builds a gateway with the given approval rates. A nil
// src seeds from the runtime; a nil now uses time.Now.
func NewSimulatedGateway(creditRate, debitRate float64, latency time.Duration, src rand.Source, now func() time.Time) *SimulatedGateway {
	if now == nil {
		now = time.Now
	}
	return &SimulatedGateway{
		creditRate: creditRate,
		debitRate:  debitRate,
		latency:    latency,
		rng:        newLockedRand(src),
		now:        now,
	}
}

func (g *SimulatedGateway) Charge(ctx context.Context, req ChargeRequest) (*GatewayResponse, error) {
	if g.latency > 0 {
		t := time.NewTimer(g.latency)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-t.C:
		}
	}

	rate := g.creditRate
	declineCode, declineMsg := codeDoNotHonor, "Do not honor"
	if req.Method == model.MethodDebitCard {
		rate = g.debitRate
		declineCode, declineMsg = codeInsufficientFunds, "Insufficient funds"
	}

	resp := &GatewayResponse{
		Installments: req.Installments,
		ProcessedAt:  g.now().UTC(),
	}
	if g.rng.Float64() < rate {
		resp.Approved = true
		resp.AuthorizationCode = authorizationCode(g.rng)
		resp.ResponseCode = codeApproved
		resp.ResponseMessage = "Approved"
	} else {
		resp.ResponseCode = declineCode
		resp.ResponseMessage = declineMsg
	}
	return resp, nil
}
