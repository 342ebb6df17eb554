package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"
	"github.com/vasiliy-maslov/shop-service/internal/item"
)

// CreateItemRequest is flat; kind decides which detail fields are read.
type CreateItemRequest struct {
	Kind          string `json:"kind" validate:"required,oneof=BOOK ALBUM MOVIE"`
	Name          string `json:"name" validate:"required"`
	Price         int64  `json:"price" validate:"min=0"`
	StockQuantity int    `json:"stockQuantity" validate:"min=0"`

	Author   string `json:"author,omitempty" validate:"required_if=Kind BOOK"`
	ISBN     string `json:"isbn,omitempty"`
	Artist   string `json:"artist,omitempty" validate:"required_if=Kind ALBUM"`
	Etc      string `json:"etc,omitempty"`
	Director string `json:"director,omitempty" validate:"required_if=Kind MOVIE"`
	Actor    string `json:"actor,omitempty"`
}

type UpdateItemRequest struct {
	Name          string `json:"name" validate:"required"`
	Price         int64  `json:"price" validate:"min=0"`
	StockQuantity int    `json:"stockQuantity" validate:"min=0"`
}

type CreateCategoryRequest struct {
	Name string `json:"name" validate:"required"`
}

type AddCategoryRequest struct {
	CategoryID uuid.UUID `json:"categoryId" validate:"required"`
}

type CategoryResponse struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

type ItemResponse struct {
	ID            uuid.UUID `json:"id"`
	Kind          item.Kind `json:"kind"`
	Name          string    `json:"name"`
	Price         int64     `json:"price"`
	StockQuantity int       `json:"stockQuantity"`
	Author        string    `json:"author,omitempty"`
	ISBN          string    `json:"isbn,omitempty"`
	Artist        string    `json:"artist,omitempty"`
	Etc           string    `json:"etc,omitempty"`
	Director      string    `json:"director,omitempty"`
	Actor         string    `json:"actor,omitempty"`
}

func toItemResponse(it *item.Item) ItemResponse {
	resp := ItemResponse{
		ID:            it.ID,
		Kind:          it.Kind,
		Name:          it.Name,
		Price:         it.Price,
		StockQuantity: it.StockQuantity,
	}
	switch {
	case it.Book != nil:
		resp.Author, resp.ISBN = it.Book.Author, it.Book.ISBN
	case it.Album != nil:
		resp.Artist, resp.Etc = it.Album.Artist, it.Album.Etc
	case it.Movie != nil:
		resp.Director, resp.Actor = it.Movie.Director, it.Movie.Actor
	}
	return resp
}

func (req CreateItemRequest) toItem() *item.Item {
	it := &item.Item{
		Kind:          item.Kind(req.Kind),
		Name:          req.Name,
		Price:         req.Price,
		StockQuantity: req.StockQuantity,
	}
	switch it.Kind {
	case item.KindBook:
		it.Book = &item.Book{Author: req.Author, ISBN: req.ISBN}
	case item.KindAlbum:
		it.Album = &item.Album{Artist: req.Artist, Etc: req.Etc}
	case item.KindMovie:
		it.Movie = &item.Movie{Director: req.Director, Actor: req.Actor}
	}
	return it
}

type ItemHandler struct {
	service  item.Service
	validate *validator.Validate
}

func NewItemHandler(service item.Service) *ItemHandler {
	return &ItemHandler{
		service:  service,
		validate: validator.New(),
	}
}

func (h *ItemHandler) RegisterRoutes(router chi.Router) {
	router.Get("/api/items", h.handleListItems)
	router.Post("/api/items", h.handleCreateItem)
	router.Get("/api/items/{id}", h.handleGetItem)
	router.Put("/api/items/{id}", h.handleUpdateItem)
	router.Post("/api/items/{id}/categories", h.handleAddCategory)
	router.Post("/api/categories", h.handleCreateCategory)
}

func (h *ItemHandler) handleListItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.FindItems(r.Context())
	if err != nil {
		respondWithServiceError(w, err, "Failed to list items")
		return
	}

	data := make([]ItemResponse, 0, len(items))
	for _, it := range items {
		data = append(data, toItemResponse(it))
	}
	respondWithJSON(w, http.StatusOK, Result[ItemResponse]{Count: len(data), Data: data})
}

func (h *ItemHandler) handleCreateItem(w http.ResponseWriter, r *http.Request) {
	var requestPayload CreateItemRequest
	if !decodeRequest(w, r, h.validate, &requestPayload) {
		return
	}

	id, err := h.service.SaveItem(r.Context(), requestPayload.toItem())
	if err != nil {
		respondWithServiceError(w, err, "Failed to create item")
		return
	}

	respondWithJSON(w, http.StatusCreated, IDResponse{ID: id})
}

func (h *ItemHandler) handleGetItem(w http.ResponseWriter, r *http.Request) {
	itemID, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	found, err := h.service.FindOne(r.Context(), itemID)
	if err != nil {
		respondWithServiceError(w, err, "Failed to get item by id")
		return
	}

	respondWithJSON(w, http.StatusOK, toItemResponse(found))
}

func (h *ItemHandler) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	itemID, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	var requestPayload UpdateItemRequest
	if !decodeRequest(w, r, h.validate, &requestPayload) {
		return
	}

	updated, err := h.service.UpdateItem(r.Context(), itemID, item.UpdateParams{
		Name:          requestPayload.Name,
		Price:         requestPayload.Price,
		StockQuantity: requestPayload.StockQuantity,
	})
	if err != nil {
		respondWithServiceError(w, err, "Failed to update item")
		return
	}

	respondWithJSON(w, http.StatusOK, toItemResponse(updated))
}

func (h *ItemHandler) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var requestPayload CreateCategoryRequest
	if !decodeRequest(w, r, h.validate, &requestPayload) {
		return
	}

	c, err := h.service.CreateCategory(r.Context(), requestPayload.Name)
	if err != nil {
		respondWithServiceError(w, err, "Failed to create category")
		return
	}

	respondWithJSON(w, http.StatusCreated, CategoryResponse{ID: c.ID, Name: c.Name})
}

func (h *ItemHandler) handleAddCategory(w http.ResponseWriter, r *http.Request) {
	itemID, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	var requestPayload AddCategoryRequest
	if !decodeRequest(w, r, h.validate, &requestPayload) {
		return
	}

	if err := h.service.AddCategory(r.Context(), itemID, requestPayload.CategoryID); err != nil {
		respondWithServiceError(w, err, "Failed to add category")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
