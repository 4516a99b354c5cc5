package book

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"bookinventory/internal/httpx"
)

type HTTPHandler struct {
	service *Service
	logger  *zap.Logger
}

func NewHTTPHandler(service *Service, logger *zap.Logger) *HTTPHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPHandler{service: service, logger: logger.Named("book.http")}
}

// Register mounts the book routes. Reads are wrapped with reader and writes
// with writer, which carry the authentication and role checks.
func (h *HTTPHandler) Register(mux *http.ServeMux, reader, writer func(http.Handler) http.Handler) {
	mux.Handle("POST /api/v1/books", writer(http.HandlerFunc(h.Create)))
	mux.Handle("GET /api/v1/books", reader(http.HandlerFunc(h.List)))
	mux.Handle("GET /api/v1/books/search", reader(http.HandlerFunc(h.Search)))
	mux.Handle("GET /api/v1/books/isbn/{isbn}", reader(http.HandlerFunc(h.GetByISBN)))
	mux.Handle("GET /api/v1/books/{id}", reader(http.HandlerFunc(h.GetByID)))
	mux.Handle("PUT /api/v1/books/{id}", writer(http.HandlerFunc(h.Update)))
	mux.Handle("PATCH /api/v1/books/{id}/inventory", writer(http.HandlerFunc(h.UpdateInventory)))
	mux.Handle("DELETE /api/v1/books/{id}", writer(http.HandlerFunc(h.Delete)))
}

type CreateBookReq struct {
	Title    string   `json:"title" validate:"required,notblank,max=255"`
	Author   string   `json:"author" validate:"required,notblank,max=100"`
	Genre    string   `json:"genre" validate:"required,notblank,max=50"`
	ISBN     string   `json:"isbn" validate:"required,notblank,min=10,max=13"`
	Price    *float64 `json:"price" validate:"required,gte=0"`
	Quantity *int     `json:"quantity" validate:"required,gte=0,lte=2147483647"`
}

// UpdateBookReq is a partial update. Omitted fields are left unchanged.
type UpdateBookReq struct {
	Title    *string  `json:"title" validate:"omitempty,notblank,max=255"`
	Author   *string  `json:"author" validate:"omitempty,notblank,max=100"`
	Genre    *string  `json:"genre" validate:"omitempty,notblank,max=50"`
	Price    *float64 `json:"price"`
	Quantity *int     `json:"quantity" validate:"omitempty,lte=2147483647"`
}

// Create handles POST /api/v1/books
// @Summary Create a book
// @Tags books
// @Accept json
// @Produce json
// @Param request body CreateBookReq true "Book"
// @Success 201 {object} httpx.SuccessResponse
// @Failure 400 {object} httpx.ErrorResponse
// @Failure 409 {object} httpx.ErrorResponse
// @Router /books [post]
func (h *HTTPHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateBookReq
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.JSONError(w, r, http.StatusBadRequest, httpx.CodeBadRequest, "Invalid request body", nil)
		return
	}
	if validationErrors := httpx.ValidateStruct(req); len(validationErrors) > 0 {
		httpx.JSONError(w, r, http.StatusBadRequest, httpx.CodeValidation, "Invalid input", validationErrors)
		return
	}

	created, err := h.service.CreateBook(r.Context(), CreateInput{
		Title:    strings.TrimSpace(req.Title),
		Author:   strings.TrimSpace(req.Author),
		Genre:    strings.TrimSpace(req.Genre),
		ISBN:     strings.TrimSpace(req.ISBN),
		Price:    *req.Price,
		Quantity: *req.Quantity,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	httpx.JSONSuccessCreated(w, r, created)
}

// List handles GET /api/v1/books
// @Summary List all books
// @Tags books
// @Produce json
// @Success 200 {object} httpx.SuccessResponse
// @Router /books [get]
func (h *HTTPHandler) List(w http.ResponseWriter, r *http.Request) {
	books, err := h.service.GetAllBooks(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	httpx.JSONSuccess(w, r, books, map[string]any{"count": len(books)})
}

// Search handles GET /api/v1/books/search
// @Summary Search books
// @Description Title, author and genre match as case-insensitive substrings, isbn exactly.
// @Tags books
// @Produce json
// @Param title query string false "Title contains"
// @Param author query string false "Author contains"
// @Param genre query string false "Genre contains"
// @Param isbn query string false "Exact ISBN"
// @Success 200 {object} httpx.SuccessResponse
// @Router /books/search [get]
func (h *HTTPHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	books, err := h.service.SearchBooks(r.Context(), SearchCriteria{
		Title:  q.Get("title"),
		Author: q.Get("author"),
		Genre:  q.Get("genre"),
		ISBN:   q.Get("isbn"),
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	httpx.JSONSuccess(w, r, books, map[string]any{"count": len(books)})
}

// GetByID handles GET /api/v1/books/{id}
// @Summary Get a book by id
// @Tags books
// @Produce json
// @Param id path int true "Book ID"
// @Success 200 {object} httpx.SuccessResponse
// @Failure 404 {object} httpx.ErrorResponse
// @Router /books/{id} [get]
func (h *HTTPHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	b, err := h.service.GetBookByIDOrErr(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	httpx.JSONSuccess(w, r, b, nil)
}

// GetByISBN handles GET /api/v1/books/isbn/{isbn}
// @Summary Get a book by ISBN
// @Tags books
// @Produce json
// @Param isbn path string true "ISBN"
// @Success 200 {object} httpx.SuccessResponse
// @Failure 404 {object} httpx.ErrorResponse
// @Router /books/isbn/{isbn} [get]
func (h *HTTPHandler) GetByISBN(w http.ResponseWriter, r *http.Request) {
	isbn := strings.TrimSpace(r.PathValue("isbn"))
	b, err := h.service.FindByISBN(r.Context(), isbn)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if b == nil {
		httpx.JSONError(w, r, http.StatusNotFound, httpx.CodeNotFound, "book not found: isbn "+isbn, nil)
		return
	}
	httpx.JSONSuccess(w, r, b, nil)
}

// Update handles PUT /api/v1/books/{id}
// @Summary Update a book
// @Tags books
// @Accept json
// @Produce json
// @Param id path int true "Book ID"
// @Param request body UpdateBookReq true "Fields to change"
// @Success 200 {object} httpx.SuccessResponse
// @Failure 400 {object} httpx.ErrorResponse
// @Failure 404 {object} httpx.ErrorResponse
// @Failure 409 {object} httpx.ErrorResponse
// @Router /books/{id} [put]
func (h *HTTPHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req UpdateBookReq
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.JSONError(w, r, http.StatusBadRequest, httpx.CodeBadRequest, "Invalid request body", nil)
		return
	}
	if validationErrors := httpx.ValidateStruct(req); len(validationErrors) > 0 {
		httpx.JSONError(w, r, http.StatusBadRequest, httpx.CodeValidation, "Invalid input", validationErrors)
		return
	}

	updated, err := h.service.UpdateBook(r.Context(), id, Changes{
		Title:    trimmed(req.Title),
		Author:   trimmed(req.Author),
		Genre:    trimmed(req.Genre),
		Price:    req.Price,
		Quantity: req.Quantity,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	httpx.JSONSuccess(w, r, updated, nil)
}

// UpdateInventory handles PATCH /api/v1/books/{id}/inventory?quantityChange=N
// @Summary Adjust stock level
// @Tags books
// @Produce json
// @Param id path int true "Book ID"
// @Param quantityChange query int true "Signed delta"
// @Success 200 {object} httpx.SuccessResponse
// @Failure 400 {object} httpx.ErrorResponse
// @Failure 404 {object} httpx.ErrorResponse
// @Router /books/{id}/inventory [patch]
func (h *HTTPHandler) UpdateInventory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	raw := r.URL.Query().Get("quantityChange")
	// the stock column is a 32-bit integer
	delta, err := strconv.ParseInt(raw, 10, 32)
	if err != nil {
		httpx.JSONError(w, r, http.StatusBadRequest, httpx.CodeBadRequest, "quantityChange must be a 32-bit integer", []httpx.ErrorDetail{
			{Field: "quantityChange", Message: "quantityChange must be a 32-bit integer"},
		})
		return
	}

	updated, err := h.service.UpdateInventory(r.Context(), id, int(delta))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	httpx.JSONSuccess(w, r, updated, nil)
}

// Delete handles DELETE /api/v1/books/{id}
// @Summary Delete a book
// @Tags books
// @Param id path int true "Book ID"
// @Success 204
// @Failure 404 {object} httpx.ErrorResponse
// @Router /books/{id} [delete]
func (h *HTTPHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteBook(r.Context(), id); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	httpx.JSONSuccessNoContent(w)
}

func (h *HTTPHandler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.JSONError(w, r, http.StatusNotFound, httpx.CodeNotFound, err.Error(), nil)
	case errors.Is(err, ErrDuplicateISBN):
		httpx.JSONError(w, r, http.StatusConflict, httpx.CodeConflict, err.Error(), nil)
	case errors.Is(err, ErrInvalidArgument):
		httpx.JSONError(w, r, http.StatusBadRequest, httpx.CodeBadRequest, err.Error(), nil)
	default:
		h.logger.Error("unhandled service error",
			zap.String("request_id", httpx.RequestIDFrom(r)),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		httpx.JSONError(w, r, http.StatusInternalServerError, httpx.CodeInternalError, "Internal server error", nil)
	}
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.JSONError(w, r, http.StatusBadRequest, httpx.CodeBadRequest, "id must be a positive integer", nil)
		return 0, false
	}
	return id, true
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	return &t
}
