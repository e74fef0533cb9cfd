package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	interf "github.com/glkeru/projxchange/internal/interfaces"
	models "github.com/glkeru/projxchange/internal/models"
	"go.uber.org/zap"
)

const maxDuplicates = 1000

// DiskSaver сохраняет загрузки в каталог
type DiskSaver struct {
	src    interf.FileSource
	dir    string
	logger *zap.Logger
}

func NewDiskSaver(src interf.FileSource, dir string, logger *zap.Logger) *DiskSaver {
	return &DiskSaver{src, dir, logger}
}

func (s *DiskSaver) SaveURL(ctx context.Context, url string) (string, error) {
	file, err := s.src.FetchFile(ctx, url)
	if err != nil {
		return "", err
	}
	return s.write(file)
}

func (s *DiskSaver) SaveProject(ctx context.Context, projectID string) (string, error) {
	file, err := s.src.DownloadProject(ctx, projectID)
	if err != nil {
		return "", err
	}
	return s.write(file)
}

// Пишем во временный файл, затем переименовываем
func (s *DiskSaver) write(file *models.FilePayload) (string, error) {
	defer file.Body.Close()

	err := os.MkdirAll(s.dir, 0o755)
	if err != nil {
		return "", fmt.Errorf("create dir: %w", err)
	}
	tmp, err := os.CreateTemp(s.dir, ".download-*")
	if err != nil {
		return "", fmt.Errorf("create temp: %w", err)
	}
	_, err = io.Copy(tmp, file.Body)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("write file: %w", err)
	}

	dest, err := freePath(s.dir, FileName(file.Name))
	if err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	err = os.Rename(tmp.Name(), dest)
	if err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("rename file: %w", err)
	}
	s.logger.Info("File saved", zap.String("service", "DiskSaver"), zap.String("path", dest))
	return dest, nil
}

// FileName - имя файла без каталогов
func FileName(name string) string {
	name = filepath.Base(name)
	if name == "." || name == ".." || name == string(filepath.Separator) || name == "" {
		return "download.bin"
	}
	return name
}

// Первое свободное имя: p.zip, p (1).zip, p (2).zip...
func freePath(dir, name string) (string, error) {
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	for i := 0; i < maxDuplicates; i++ {
		candidate := name
		if i > 0 {
			candidate = fmt.Sprintf("%s (%d)%s", base, i, ext)
		}
		path := filepath.Join(dir, candidate)
		_, err := os.Lstat(path)
		if errors.Is(err, fs.ErrNotExist) {
			return path, nil
		}
		if err != nil {
			return "", fmt.Errorf("check file: %w", err)
		}
	}
	return "", fmt.Errorf("too many copies of %s", name)
}
