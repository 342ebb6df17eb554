package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"
	"github.com/vasiliy-maslov/shop-service/internal/member"
)

type CreateMemberRequest struct {
	Name    string `json:"name" validate:"required"`
	City    string `json:"city"`
	Street  string `json:"street"`
	Zipcode string `json:"zipcode"`
}

type IDResponse struct {
	ID uuid.UUID `json:"id"`
}

type UpdateMemberRequest struct {
	Name string `json:"name" validate:"required"`
}

type UpdateMemberResponse struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

type MemberDto struct {
	Name string `json:"name"`
}

// Result wraps list responses so fields can be added next to the data.
type Result[T any] struct {
	Count int `json:"count"`
	Data  []T `json:"data"`
}

type MemberHandler struct {
	service  member.Service
	validate *validator.Validate
}

func NewMemberHandler(service member.Service) *MemberHandler {
	return &MemberHandler{
		service:  service,
		validate: validator.New(),
	}
}

func (h *MemberHandler) RegisterRoutes(router chi.Router) {
	router.Get("/api/v2/members", h.handleListMembers)
	router.Post("/api/v2/members", h.handleCreateMember)
	router.Put("/api/v2/members/{id}", h.handleUpdateMember)
}

func (h *MemberHandler) handleListMembers(w http.ResponseWriter, r *http.Request) {
	members, err := h.service.FindMembers(r.Context())
	if err != nil {
		respondWithServiceError(w, err, "Failed to list members")
		return
	}

	data := make([]MemberDto, 0, len(members))
	for _, m := range members {
		data = append(data, MemberDto{Name: m.Name})
	}
	respondWithJSON(w, http.StatusOK, Result[MemberDto]{Count: len(data), Data: data})
}

func (h *MemberHandler) handleCreateMember(w http.ResponseWriter, r *http.Request) {
	var requestPayload CreateMemberRequest
	if !decodeRequest(w, r, h.validate, &requestPayload) {
		return
	}

	id, err := h.service.Join(r.Context(), &member.Member{
		Name: requestPayload.Name,
		Address: member.Address{
			City:    requestPayload.City,
			Street:  requestPayload.Street,
			Zipcode: requestPayload.Zipcode,
		},
	})
	if err != nil {
		respondWithServiceError(w, err, "Failed to create member")
		return
	}

	respondWithJSON(w, http.StatusCreated, IDResponse{ID: id})
}

func (h *MemberHandler) handleUpdateMember(w http.ResponseWriter, r *http.Request) {
	memberID, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	var requestPayload UpdateMemberRequest
	if !decodeRequest(w, r, h.validate, &requestPayload) {
		return
	}

	updated, err := h.service.Update(r.Context(), memberID, requestPayload.Name)
	if err != nil {
		respondWithServiceError(w, err, "Failed to update member")
		return
	}

	respondWithJSON(w, http.StatusOK, UpdateMemberResponse{ID: updated.ID, Name: updated.Name})
}
