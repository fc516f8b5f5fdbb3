// files.go — GET /files/*, раздача загруженных PDF из blob-хранилища.
// Поддерживает Range requests и If-Modified-Since (http.ServeContent).
package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"path"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/shivnayan54/studyvibe/internal/api/errors"
	"github.com/shivnayan54/studyvibe/internal/storage/blobstore"
)

// ServeFile — GET /files/*.
func (h *APIHandler) ServeFile(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "*")

	f, err := h.svc.Blobs.Open(key)
	if err != nil {
		switch {
		case errors.Is(err, blobstore.ErrNotFound):
			apierrors.NotFound(w, "Файл не найден")
		case errors.Is(err, blobstore.ErrInvalidKey):
			apierrors.ValidationError(w, "Недопустимый путь файла")
		default:
			h.logger.Error("Ошибка открытия файла",
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
			apierrors.InternalError(w, "Ошибка чтения файла")
		}
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		h.logger.Error("Ошибка stat файла",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Ошибка чтения файла")
		return
	}
	if info.IsDir() {
		apierrors.NotFound(w, "Файл не найден")
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `inline; filename="`+path.Base(key)+`"`)
	http.ServeContent(w, r, path.Base(key), info.ModTime(), f)
}
