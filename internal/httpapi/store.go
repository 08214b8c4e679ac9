package httpapi

import (
	"errors"
	"net/http"

	"estore/api/internal/account"
	"estore/api/internal/admin"
	apperrors "estore/api/internal/errors"
	"estore/api/internal/middleware"
	"estore/api/internal/model"
	"estore/api/internal/repository"

	"github.com/go-chi/chi/v5"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// login handles POST /v1/auth/login.
func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decode(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	sess, err := s.accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, sess)
}

// register handles POST /v1/auth/register.
func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req account.RegisterInput
	if err := decode(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	sess, err := s.accounts.Register(r.Context(), req)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, sess)
}

func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	u, err := s.accounts.Me(r.Context(), actor(r))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, u)
}

func (s *Server) updateMe(w http.ResponseWriter, r *http.Request) {
	var req account.ProfileInput
	if err := decode(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	u, err := s.accounts.UpdateProfile(r.Context(), actor(r), req)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, u)
}

func (s *Server) listProducts(w http.ResponseWriter, r *http.Request) {
	list, err := repository.ListProducts(r.Context(), s.db, true)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if list == nil {
		list = []model.Product{}
	}
	respondJSON(w, http.StatusOK, list)
}

func (s *Server) getProduct(w http.ResponseWriter, r *http.Request) {
	p, err := repository.ProductByID(r.Context(), s.db, chi.URLParam(r, "id"))
	if errors.Is(err, repository.ErrNotFound) || (err == nil && !p.Active) {
		respondError(w, r, apperrors.New(apperrors.CodeNotFound, "produto não encontrado"))
		return
	}
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func (s *Server) adminCreateProduct(w http.ResponseWriter, r *http.Request) {
	var req admin.ProductInput
	if err := decode(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	p, err := s.admin.CreateProduct(r.Context(), actor(r), req)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, p)
}

func (s *Server) adminUpdateProduct(w http.ResponseWriter, r *http.Request) {
	var req admin.ProductPatch
	if err := decode(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	p, err := s.admin.UpdateProduct(r.Context(), actor(r), chi.URLParam(r, "id"), req)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func actor(r *http.Request) model.Actor {
	return middleware.ActorFrom(r.Context())
}
