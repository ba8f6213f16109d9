// Package media streams stored uploads back to clients.
package media

import (
	"context"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"collegovibe/internal/common"
	"collegovibe/internal/dbmongo"
)

// Downloader opens a stored file by id.
type Downloader interface {
	DownloadFile(ctx context.Context, fileID string) (io.ReadCloser, *dbmongo.MediaFile, error)
}

type Server struct {
	storage Downloader
	log     zerolog.Logger
}

func NewServer(storage Downloader, log zerolog.Logger) *Server {
	return &Server{storage: storage, log: log}
}

// RegisterRoutes mounts GET /media/{fileId}. The route is public.
func (s *Server) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/media/{fileId}", s.serveFile).Methods(http.MethodGet)
}

func (s *Server) serveFile(w http.ResponseWriter, r *http.Request) {
	fileID := mux.Vars(r)["fileId"]

	reader, file, err := s.storage.DownloadFile(r.Context(), fileID)
	if err != nil {
		common.WriteErr(w, err)
		return
	}
	defer reader.Close()

	w.Header().Set("Content-Type", contentType(file))
	if file.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(file.Size, 10))
	}
	w.Header().Set("Cache-Control", "public, max-age=86400")

	if _, err := io.Copy(w, reader); err != nil {
		s.log.Warn().Err(err).Str("file", fileID).Msg("error streaming file")
	}
}

func contentType(file *dbmongo.MediaFile) string {
	if file.MimeType != "" {
		return file.MimeType
	}
	switch strings.ToLower(filepath.Ext(file.Filename)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".mp4":
		return "video/mp4"
	case ".webm":
		return "video/webm"
	default:
		return "application/octet-stream"
	}
}
