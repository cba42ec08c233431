package services

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"backend_kredicrm/config"

	"github.com/google/uuid"
)

// allowedUploadExt допустимые расширения загружаемых изображений
var allowedUploadExt = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
	".pdf":  true,
}

// StorageService хранение файлов на локальном диске
type StorageService struct {
	dir       string
	publicURL string
	maxSize   int64
}

// NewStorageService создает хранилище и каталог загрузок
func NewStorageService(cfg config.StorageConfig) (*StorageService, error) {
	if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("не удалось создать каталог загрузок %s: %w", cfg.UploadDir, err)
	}
	return &StorageService{
		dir:       cfg.UploadDir,
		publicURL: strings.TrimRight(cfg.PublicURL, "/"),
		maxSize:   cfg.MaxFileSize,
	}, nil
}

// Save сохраняет файл под случайным именем и возвращает публичную ссылку
func (s *StorageService) Save(originalName string, size int64, r io.Reader) (string, error) {
	ext := strings.ToLower(filepath.Ext(originalName))
	if !allowedUploadExt[ext] {
		return "", fmt.Errorf("%w: недопустимый тип файла %q", ErrValidation, ext)
	}
	if s.maxSize > 0 && size > s.maxSize {
		return "", fmt.Errorf("%w: файл больше %d байт", ErrValidation, s.maxSize)
	}

	name := uuid.NewString() + ext
	f, err := os.Create(filepath.Join(s.dir, name))
	if err != nil {
		return "", fmt.Errorf("ошибка создания файла: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		return "", fmt.Errorf("ошибка записи файла: %w", err)
	}
	return s.publicURL + "/" + name, nil
}

// Dir каталог загрузок
func (s *StorageService) Dir() string {
	return s.dir
}
