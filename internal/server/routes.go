package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/plugfox/foxy-entity-store/api"
	"github.com/plugfox/foxy-entity-store/internal/dao"
	storeErrors "github.com/plugfox/foxy-entity-store/internal/errors"
	"github.com/plugfox/foxy-entity-store/internal/model"
)

// MaxPayloadBytes is the largest request body accepted by PUT.
const MaxPayloadBytes = 32 << 20

// healthProbeUID is looked up by the health check, it is never written.
const healthProbeUID = ".health-probe"

type entityHandlers struct {
	repo   dao.Repository
	logger *slog.Logger
}

// PUT /entities/{uid}
// The body is the payload, or {"payload": "..."} with a JSON content type.
func (h *entityHandlers) save(w http.ResponseWriter, r *http.Request) {
	uid, ok := uidParam(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxPayloadBytes)

	var payload string
	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		var body api.SaveEntityRequest
		if err := render.DecodeJSON(r.Body, &body); err != nil {
			badBody(w, err)
			return
		}
		if body.Payload == nil {
			api.NewResponse().SetError("bad_request", "payload is required").BadRequest(w)
			return
		}
		payload = *body.Payload
	} else {
		raw, err := io.ReadAll(r.Body)
		if err != nil {
			badBody(w, err)
			return
		}
		payload = string(raw)
	}

	if !utf8.ValidString(payload) {
		api.NewResponse().SetError("bad_request", "payload must be UTF-8 text").BadRequest(w)
		return
	}

	if err := h.repo.Save(r.Context(), model.NewEntity(uid, payload)); err != nil {
		h.fail(w, r, uid, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GET /entities/{uid}
func (h *entityHandlers) get(w http.ResponseWriter, r *http.Request) {
	entity, ok := h.load(w, r)
	if !ok {
		return
	}

	w.Header().Set("ETag", `"`+entity.Digest()+`"`)
	api.NewResponse().SetData(api.Entity{
		UID:      entity.UID(),
		HashCode: entity.HashCode(),
		Payload:  entity.Payload(),
	}).Ok(w)
}

// GET /entities/{uid}/raw
func (h *entityHandlers) getRaw(w http.ResponseWriter, r *http.Request) {
	entity, ok := h.load(w, r)
	if !ok {
		return
	}

	w.Header().Set("ETag", `"`+entity.Digest()+`"`)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, entity.Payload())
}

func (h *entityHandlers) load(w http.ResponseWriter, r *http.Request) (*model.Entity, bool) {
	uid, ok := uidParam(w, r)
	if !ok {
		return nil, false
	}

	entity, err := h.repo.Get(r.Context(), uid)
	if err != nil {
		h.fail(w, r, uid, err)
		return nil, false
	}

	return entity, true
}

// fail maps repository errors to HTTP statuses.
func (h *entityHandlers) fail(w http.ResponseWriter, r *http.Request, uid string, err error) {
	switch {
	case errors.Is(err, storeErrors.ErrInvalidUID):
		api.NewResponse().SetError("invalid_uid", err.Error()).BadRequest(w)
	case errors.Is(err, storeErrors.ErrNotFound):
		api.NewResponse().SetError("not_found", "Entity not found").NotFound(w)
	case errors.Is(err, storeErrors.ErrDecode):
		api.NewResponse().SetError("undecodable_payload", err.Error()).UnprocessableEntity(w)
	default:
		h.logger.ErrorContext(r.Context(), "Entity storage failure", slog.String("uid", uid), slog.Any("error", err))
		api.NewResponse().SetError("storage_error", "Storage failure").InternalServerError(w)
	}
}

// badBody answers a request body that could not be read or decoded.
func badBody(w http.ResponseWriter, err error) {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		api.NewResponse().
			SetError("payload_too_large", fmt.Sprintf("Payload exceeds %d bytes", maxBytesErr.Limit)).
			RequestEntityTooLarge(w)
		return
	}

	api.NewResponse().SetError("bad_request", err.Error()).BadRequest(w)
}

// uidParam returns the decoded {uid} path segment. The API addresses one
// file per uid, so uids that could leave the storage root are rejected
// whatever the backend accepts.
// chi routes on the raw path when the request carries escaped characters,
// in that case the parameter is still escaped.
func uidParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	uid := chi.URLParam(r, "uid")
	if r.URL.RawPath != "" {
		decoded, err := url.PathUnescape(uid)
		if err != nil {
			api.NewResponse().SetError("invalid_uid", err.Error()).BadRequest(w)
			return "", false
		}
		uid = decoded
	}

	if err := model.ValidateUID(uid); err != nil {
		api.NewResponse().SetError("invalid_uid", err.Error()).BadRequest(w)
		return "", false
	}

	return uid, true
}

// StorageHealth reports the repository as healthy when its Check passes,
// if it has one, and a lookup of a probe uid completes, found or not.
func StorageHealth(repo dao.Repository, backend string) func() (bool, map[string]string) {
	return func() (bool, map[string]string) {
		ctx := context.Background()

		if checker, ok := repo.(dao.Checker); ok {
			if err := checker.Check(ctx); err != nil {
				return false, map[string]string{"storage": err.Error(), "backend": backend}
			}
		}

		_, err := repo.Get(ctx, healthProbeUID)
		if err == nil || errors.Is(err, storeErrors.ErrNotFound) {
			return true, map[string]string{"storage": "ok", "backend": backend}
		}

		return false, map[string]string{"storage": err.Error(), "backend": backend}
	}
}
