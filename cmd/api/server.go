package main

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"signflow/agreement"
	"signflow/auth"
	"signflow/document"
	"signflow/esign"
	"signflow/httpx"
	"signflow/signature"
)

const binaryContentType = "application/x-signflow-document"

// DocumentService is the subset of *esign.Controller the handlers use.
type DocumentService interface {
	Create(ctx context.Context, agr agreement.Agreement) (esign.Created, error)
	Issue(ctx context.Context, id string) (string, error)
	AuthorizeRead(ctx context.Context, id, token string) (esign.View, error)
	Verify(ctx context.Context, id, token, claimed string) (esign.View, error)
	Sign(ctx context.Context, req esign.SignRequest) (esign.Signed, error)
}

// TokenVerifier checks agency bearer tokens.
type TokenVerifier interface {
	Verify(token string) (auth.Agent, error)
}

type Server struct {
	documents     DocumentService
	verifier      TokenVerifier
	publicBaseURL string
	maxBodyBytes  int64
	// health reports store reachability; nil means always healthy.
	health func(ctx context.Context) error
}

type ctxKey string

const ctxKeyAgent ctxKey = "agent"

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(httpx.WithRequestID)
	r.Use(func(next http.Handler) http.Handler { return httpx.WithRequestLog("signflow", next) })
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Route("/api/documents", func(r chi.Router) {
		r.With(s.requireAgent).Post("/", s.handleCreate)
		r.With(s.requireAgent).Post("/{id}/resend", s.handleResend)
		r.Get("/{id}/public", s.handlePublic)
		r.Get("/{id}/binary", s.handleBinary)
		r.Get("/{id}/pdf", s.handlePDF)
		r.Post("/{id}/verify", s.handleVerify)
		r.Post("/{id}/sign", s.handleSign)
	})
	return r
}

func (s *Server) requireAgent(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := auth.BearerToken(r.Header.Get("Authorization"))
		if !ok {
			httpx.WriteError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing bearer token", nil)
			return
		}
		agent, err := s.verifier.Verify(token)
		if err != nil {
			httpx.WriteError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "invalid bearer token", nil)
			return
		}
		ctx := context.WithValue(r.Context(), ctxKeyAgent, agent)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func agentFromContext(ctx context.Context) (auth.Agent, bool) {
	agent, ok := ctx.Value(ctxKeyAgent).(auth.Agent)
	return agent, ok
}

type createResponse struct {
	ID      string `json:"id"`
	Token   string `json:"token"`
	SignURL string `json:"signUrl"`
	Pages   int    `json:"pages"`
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var agr agreement.Agreement
	if !s.readJSON(w, r, &agr) {
		return
	}

	created, err := s.documents.Create(r.Context(), agr)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	if agent, ok := agentFromContext(r.Context()); ok {
		httpx.LoggerFromContext(r.Context()).Info("agreement submitted",
			slog.String("agent_id", agent.ID),
			slog.String("document_id", created.ID),
		)
	}
	httpx.WriteJSON(w, http.StatusCreated, createResponse{
		ID:      created.ID,
		Token:   created.Token,
		SignURL: s.signURL(created.ID, created.Token),
		Pages:   created.Pages,
	})
}

type resendResponse struct {
	Token   string `json:"token"`
	SignURL string `json:"signUrl"`
}

func (s *Server) handleResend(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	token, err := s.documents.Issue(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, resendResponse{Token: token, SignURL: s.signURL(id, token)})
}

type publicResponse struct {
	ID             string  `json:"id"`
	Title          string  `json:"title"`
	Status         string  `json:"status"`
	SignedAt       *string `json:"signedAt,omitempty"`
	Pages          int     `json:"pages"`
	ExpectedDomain string  `json:"expectedDomain"`
}

func toPublicResponse(v esign.View) publicResponse {
	resp := publicResponse{
		ID:             v.ID,
		Title:          v.Title,
		Status:         string(v.Status),
		Pages:          v.Pages,
		ExpectedDomain: v.ExpectedDomain(),
	}
	if v.SignedAt != nil {
		ts := v.SignedAt.UTC().Format(time.RFC3339)
		resp.SignedAt = &ts
	}
	return resp
}

func (s *Server) handlePublic(w http.ResponseWriter, r *http.Request) {
	view, err := s.documents.AuthorizeRead(r.Context(), chi.URLParam(r, "id"), r.URL.Query().Get("token"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toPublicResponse(view))
}

func (s *Server) handleBinary(w http.ResponseWriter, r *http.Request) {
	view, err := s.documents.AuthorizeRead(r.Context(), chi.URLParam(r, "id"), r.URL.Query().Get("token"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.Header().Set("content-type", binaryContentType)
	w.Header().Set("content-length", strconv.Itoa(len(view.Binary)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(view.Binary)
}

func (s *Server) handlePDF(w http.ResponseWriter, r *http.Request) {
	view, err := s.documents.AuthorizeRead(r.Context(), chi.URLParam(r, "id"), r.URL.Query().Get("token"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	doc, err := document.Unmarshal(view.Binary)
	if err != nil {
		s.writeServiceError(w, r, errors.Join(esign.ErrDecode, err))
		return
	}
	var buf bytes.Buffer
	if err := document.RenderPDF(doc, &buf); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.Header().Set("content-type", "application/pdf")
	w.Header().Set("content-disposition", `inline; filename="`+view.ID+`.pdf"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

type verifyRequest struct {
	Token string `json:"token"`
	Email string `json:"email"`
}

type verifyResponse struct {
	Verified bool `json:"verified"`
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if !s.readJSON(w, r, &req) {
		return
	}
	if _, err := s.documents.Verify(r.Context(), chi.URLParam(r, "id"), req.Token, req.Email); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, verifyResponse{Verified: true})
}

type signRequest struct {
	Token   string `json:"token"`
	Email   string `json:"email"`
	DataURL string `json:"dataUrl"`
}

type signResponse struct {
	ID       string `json:"id"`
	Status   string `json:"status"`
	SignedAt string `json:"signedAt"`
	Pages    int    `json:"pages"`
}

func (s *Server) handleSign(w http.ResponseWriter, r *http.Request) {
	var req signRequest
	if !s.readJSON(w, r, &req) {
		return
	}
	// An undecodable upload is reported by the controller after the token and
	// identity checks.
	img, imgErr := signature.DecodeDataURL(req.DataURL)

	signed, err := s.documents.Sign(r.Context(), esign.SignRequest{
		ID:           chi.URLParam(r, "id"),
		Token:        req.Token,
		ClaimedEmail: req.Email,
		Image:        img,
		ImageErr:     imgErr,
		SignerIP:     httpx.ClientIP(r),
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, signResponse{
		ID:       signed.ID,
		Status:   string(signed.Status),
		SignedAt: signed.SignedAt.UTC().Format(time.RFC3339),
		Pages:    signed.Pages,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.health(ctx); err != nil {
			httpx.WriteError(w, r, http.StatusServiceUnavailable, "UNAVAILABLE", "store unreachable", nil)
			return
		}
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if s.maxBodyBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxBodyBytes)
	}
	if err := httpx.ReadJSON(r, dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httpx.WriteError(w, r, http.StatusRequestEntityTooLarge, "VALIDATION_ERROR", "request body too large", nil)
			return false
		}
		httpx.WriteError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "invalid JSON body: "+err.Error(), nil)
		return false
	}
	return true
}

func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		verr     *agreement.ValidationError
		mismatch *esign.IdentityMismatchError
	)
	switch {
	case errors.As(err, &verr):
		httpx.WriteError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "agreement is invalid", verr.Fields)
	case errors.Is(err, esign.ErrNotFound):
		httpx.WriteError(w, r, http.StatusNotFound, "NOT_FOUND", "document not found", nil)
	case errors.Is(err, esign.ErrInvalidToken):
		httpx.WriteError(w, r, http.StatusForbidden, "INVALID_TOKEN", "signing link is invalid or has been replaced", nil)
	case errors.As(err, &mismatch):
		msg := "email does not match the invited signer"
		if mismatch.ExpectedDomain != "" {
			msg = "please use your @" + mismatch.ExpectedDomain + " address"
		}
		httpx.WriteError(w, r, http.StatusForbidden, "IDENTITY_MISMATCH", msg, nil)
	case errors.Is(err, esign.ErrAlreadySigned):
		httpx.WriteError(w, r, http.StatusConflict, "ALREADY_SIGNED", "document has already been signed", nil)
	case errors.Is(err, esign.ErrConflict):
		httpx.WriteError(w, r, http.StatusConflict, "CONFLICT", "document changed concurrently, retry", nil)
	case errors.Is(err, esign.ErrDecode):
		httpx.WriteError(w, r, http.StatusUnprocessableEntity, "DECODE_ERROR", "document or signature image could not be decoded", nil)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		httpx.WriteError(w, r, http.StatusServiceUnavailable, "UNAVAILABLE", "request cancelled", nil)
	default:
		httpx.LoggerFromContext(r.Context()).Error("request failed", slog.String("error", err.Error()))
		httpx.WriteError(w, r, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
	}
}

func (s *Server) signURL(id, token string) string {
	return s.publicBaseURL + "/sign/" + url.PathEscape(id) + "?token=" + url.QueryEscape(token)
}
