package api

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"

	interf "github.com/glkeru/projxchange/internal/interfaces"
	models "github.com/glkeru/projxchange/internal/models"
	services "github.com/glkeru/projxchange/internal/services"
)

const (
	headerMessage   = "X-Download-Message"
	headerRemaining = "X-Credits-Remaining"
)

// responseSaver отдает файл в ответ на запрос, на диск BFF ничего не пишется
type responseSaver struct {
	w       http.ResponseWriter
	src     interf.FileSource
	started bool
}

func newResponseSaver(w http.ResponseWriter, src interf.FileSource) *responseSaver {
	return &responseSaver{w: w, src: src}
}

func (s *responseSaver) SaveURL(ctx context.Context, url string) (string, error) {
	file, err := s.src.FetchFile(ctx, url)
	if err != nil {
		return "", err
	}
	return s.write(file)
}

func (s *responseSaver) SaveProject(ctx context.Context, projectID string) (string, error) {
	file, err := s.src.DownloadProject(ctx, projectID)
	if err != nil {
		return "", err
	}
	return s.write(file)
}

// Итог скачивания известен после тела, поэтому он уходит в трейлерах
func (s *responseSaver) write(file *models.FilePayload) (string, error) {
	defer file.Body.Close()

	name := services.FileName(file.Name)
	contentType := file.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h := s.w.Header()
	h.Set("Content-Type", contentType)
	h.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	h.Set("Trailer", headerMessage+", "+headerRemaining)
	s.started = true
	s.w.WriteHeader(http.StatusOK)

	_, err := io.Copy(s.w, file.Body)
	if err != nil {
		return "", fmt.Errorf("stream file: %w", err)
	}
	return name, nil
}

// finish записывает итог в трейлеры
func (s *responseSaver) finish(outcome services.Outcome) {
	h := s.w.Header()
	h.Set(headerMessage, outcome.Message)
	if outcome.Remaining != nil {
		h.Set(headerRemaining, strconv.Itoa(*outcome.Remaining))
	}
}
