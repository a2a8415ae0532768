// files.go — обработчики GET и DELETE /api/v1/files/{file_key}.
package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/bigkaa/tgmedia-indexer/internal/api/middleware"
)

// GetFile — метаданные файла по file_key.
func (h *APIHandler) GetFile(w http.ResponseWriter, r *http.Request) {
	rec, err := h.files.FileDetails(r.Context(), chi.URLParam(r, "file_key"))
	if err != nil {
		h.writeServiceError(w, "get_file", err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// DeleteFile — удаление файла из индекса. Ответ 204 без тела.
func (h *APIHandler) DeleteFile(w http.ResponseWriter, r *http.Request) {
	fileKey := chi.URLParam(r, "file_key")
	if err := h.files.DeleteFile(r.Context(), fileKey); err != nil {
		h.writeServiceError(w, "delete_file", err)
		return
	}

	h.logger.Info("Файл удалён через API",
		slog.String("file_key", fileKey),
		slog.String("subject", middleware.SubjectFromContext(r.Context())),
	)
	w.WriteHeader(http.StatusNoContent)
}
