package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iho/ledgercore/internal/adapter/http/dto"
	"github.com/iho/ledgercore/internal/domain"
	"github.com/iho/ledgercore/internal/usecase"
)

// EntityService defines the behavior needed by EntityHandler.
type EntityService interface {
	Register(ctx context.Context, input usecase.RegisterEntityInput) (*domain.Entity, error)
	Get(ctx context.Context, ref string) (*domain.Entity, error)
	ChangeCode(ctx context.Context, ref string, code *string) (*domain.Entity, error)
	List(ctx context.Context, input usecase.ListEntitiesInput) ([]*domain.Entity, error)
}

// EntityHandler handles entity-related HTTP requests.
type EntityHandler struct {
	entityUC EntityService
}

// NewEntityHandler creates a new EntityHandler.
func NewEntityHandler(entityUC EntityService) *EntityHandler {
	return &EntityHandler{entityUC: entityUC}
}

// Register registers a new entity.
func (h *EntityHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req dto.RegisterEntityRequest
	if err := decodeBody(r, &req); err != nil {
		writeDomainError(w, r, "invalid request", err)
		return
	}

	entity, err := h.entityUC.Register(r.Context(), req.ToUseCaseInput())
	if err != nil {
		writeDomainError(w, r, "failed to register entity", err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.EntityFromDomain(entity))
}

// Get retrieves an entity by ID or code.
func (h *EntityHandler) Get(w http.ResponseWriter, r *http.Request) {
	entity, err := h.entityUC.Get(r.Context(), chi.URLParam(r, "ref"))
	if err != nil {
		writeDomainError(w, r, "failed to get entity", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.EntityFromDomain(entity))
}

// ChangeCode replaces or clears an entity's code.
func (h *EntityHandler) ChangeCode(w http.ResponseWriter, r *http.Request) {
	var req dto.ChangeCodeRequest
	if err := decodeBody(r, &req); err != nil {
		writeDomainError(w, r, "invalid request", err)
		return
	}

	entity, err := h.entityUC.ChangeCode(r.Context(), chi.URLParam(r, "ref"), req.Code)
	if err != nil {
		writeDomainError(w, r, "failed to change code", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.EntityFromDomain(entity))
}

// List lists entities.
func (h *EntityHandler) List(w http.ResponseWriter, r *http.Request) {
	entities, err := h.entityUC.List(r.Context(), usecase.ListEntitiesInput{
		Limit:  parseIntQuery(r, "limit", 20),
		Offset: parseIntQuery(r, "offset", 0),
	})
	if err != nil {
		writeDomainError(w, r, "failed to list entities", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.EntitiesFromDomain(entities))
}
