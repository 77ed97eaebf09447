package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-chi/chi/v5"
	"github.com/ryshoes/storefront/internal/logging"
	"github.com/ryshoes/storefront/internal/storage"
)

const sniffBytes = 3072

// ObjectReader reads stored blobs by key.
type ObjectReader interface {
	Get(ctx context.Context, key string) (io.ReadCloser, error)
}

// MediaRouter serves stored images under the given router.
func MediaRouter(r chi.Router, objects ObjectReader) {
	r.Get("/*", func(w http.ResponseWriter, r *http.Request) {
		key, ok := storage.CleanKey(chi.URLParam(r, "*"))
		if !ok {
			writeError(w, http.StatusNotFound, "not found")
			return
		}

		rc, err := objects.Get(r.Context(), key)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				writeError(w, http.StatusNotFound, "not found")
				return
			}
			logging.FromContext(r.Context()).WithError(err).WithField("key", key).Error("failed to read blob")
			writeError(w, http.StatusInternalServerError, "failed to read file")
			return
		}
		defer rc.Close()

		head := make([]byte, sniffBytes)
		n, err := io.ReadFull(rc, head)
		if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
			writeError(w, http.StatusInternalServerError, "failed to read file")
			return
		}
		head = head[:n]

		w.Header().Set("Content-Type", mimetype.Detect(head).String())
		w.Header().Set("Cache-Control", storage.CacheControl)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(head)
		_, _ = io.Copy(w, rc)
	})
}
