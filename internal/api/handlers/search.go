// search.go — обработчики GET /api/v1/search и GET /api/v1/admin/bad-files.
package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"unicode/utf8"

	apierrors "github.com/bigkaa/tgmedia-indexer/internal/api/errors"
	"github.com/bigkaa/tgmedia-indexer/internal/domain/model"
	"github.com/bigkaa/tgmedia-indexer/internal/service"
)

// Ограничения параметров поиска.
const (
	maxLimit       = 100
	maxQueryLength = 100
)

// searchResponse — ответ GET /api/v1/search.
type searchResponse struct {
	Files      []*model.MediaRecord `json:"files"`
	Total      int64                `json:"total"`
	Limit      int                  `json:"limit"`
	Offset     int                  `json:"offset"`
	NextOffset *int                 `json:"next_offset,omitempty"`
	HasNext    bool                 `json:"has_next"`
}

// badFilesResponse — ответ GET /api/v1/admin/bad-files.
type badFilesResponse struct {
	Files []*model.MediaRecord `json:"files"`
	Total int64                `json:"total"`
}

// SearchFiles — GET /api/v1/search?q=&type=&limit=&offset=.
// Пустой q возвращает все файлы, новые первыми.
func (h *APIHandler) SearchFiles(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	query := q.Get("q")
	if utf8.RuneCountInString(query) > maxQueryLength {
		apierrors.ValidationError(w, fmt.Sprintf("q длиннее %d символов", maxQueryLength))
		return
	}
	fileType, err := parseFileType(q.Get("type"))
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}
	limit, err := parseIntParam(q.Get("limit"), 0, maxLimit)
	if err != nil {
		apierrors.ValidationError(w, "limit: "+err.Error())
		return
	}
	offset, err := parseIntParam(q.Get("offset"), 0, -1)
	if err != nil {
		apierrors.ValidationError(w, "offset: "+err.Error())
		return
	}

	result, err := h.files.Search(r.Context(), service.SearchRequest{
		Query:      query,
		FileType:   fileType,
		MaxResults: limit,
		Offset:     offset,
	})
	if err != nil {
		h.writeServiceError(w, "search", err)
		return
	}

	resp := searchResponse{
		Files:   fileItems(result.Files),
		Total:   result.Total,
		Limit:   result.Limit,
		Offset:  result.Offset,
		HasNext: result.HasNext,
	}
	if result.HasNext {
		next := result.NextOffset
		resp.NextOffset = &next
	}
	writeJSON(w, http.StatusOK, resp)
}

// BadFiles — GET /api/v1/admin/bad-files?q=&type=.
// Возвращает все совпадения без пагинации; q обязателен.
func (h *APIHandler) BadFiles(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	query := q.Get("q")
	if query == "" {
		apierrors.ValidationError(w, "q обязателен")
		return
	}
	if utf8.RuneCountInString(query) > maxQueryLength {
		apierrors.ValidationError(w, fmt.Sprintf("q длиннее %d символов", maxQueryLength))
		return
	}
	fileType, err := parseFileType(q.Get("type"))
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	files, total, err := h.files.BadFiles(r.Context(), query, fileType)
	if err != nil {
		h.writeServiceError(w, "bad_files", err)
		return
	}
	writeJSON(w, http.StatusOK, badFilesResponse{Files: fileItems(files), Total: total})
}

// parseFileType проверяет параметр type.
func parseFileType(s string) (string, error) {
	if s != "" && !model.IsKnownFileType(s) {
		return "", fmt.Errorf("неизвестный type %q: ожидается document, video или audio", s)
	}
	return s, nil
}

// parseIntParam разбирает неотрицательное целое. Пустая строка — 0.
// upper < 0 — без верхней границы.
func parseIntParam(s string, lower, upper int) (int, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("не число: %q", s)
	}
	if n < lower || (upper >= 0 && n > upper) {
		if upper < 0 {
			return 0, fmt.Errorf("должно быть не меньше %d", lower)
		}
		return 0, fmt.Errorf("должно быть в диапазоне %d..%d", lower, upper)
	}
	return n, nil
}
