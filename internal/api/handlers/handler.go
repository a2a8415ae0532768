// handler.go — обработчик HTTP API индексатора.
// Делегирует запросы в сервис поиска, ошибки отдаёт в формате internal/api/errors.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	apierrors "github.com/bigkaa/tgmedia-indexer/internal/api/errors"
	"github.com/bigkaa/tgmedia-indexer/internal/domain/model"
	"github.com/bigkaa/tgmedia-indexer/internal/service"
)

// FileService — операции сервиса поиска, используемые HTTP API.
type FileService interface {
	Search(ctx context.Context, req service.SearchRequest) (*service.SearchResult, error)
	FileDetails(ctx context.Context, fileKey string) (*model.MediaRecord, error)
	DeleteFile(ctx context.Context, fileKey string) error
	BadFiles(ctx context.Context, query, fileType string) ([]*model.MediaRecord, int64, error)
}

// APIHandler — обработчик бизнес-endpoints /api/v1.
type APIHandler struct {
	files  FileService
	logger *slog.Logger
}

// NewAPIHandler создаёт обработчик API.
func NewAPIHandler(files FileService, logger *slog.Logger) *APIHandler {
	return &APIHandler{
		files:  files,
		logger: logger.With(slog.String("component", "api_handler")),
	}
}

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeServiceError переводит ошибку сервиса в HTTP-ответ.
func (h *APIHandler) writeServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		apierrors.NotFound(w, "Файл не найден")
	case errors.Is(err, service.ErrStoreUnavailable):
		apierrors.StoreUnavailable(w, "Хранилище медиафайлов недоступно")
	default:
		h.logger.Error("Ошибка обработки запроса",
			slog.String("operation", op),
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Внутренняя ошибка")
	}
}

// fileItems возвращает непустой срез для сериализации в [].
func fileItems(files []*model.MediaRecord) []*model.MediaRecord {
	if files == nil {
		return []*model.MediaRecord{}
	}
	return files
}
