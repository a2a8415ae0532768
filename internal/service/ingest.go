// ingest.go — сохранение медиафайлов из каналов в хранилище.
// Дедупликация обеспечивается уникальностью file_key (_id) в MongoDB,
// без блокировок на уровне приложения.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/tgmedia-indexer/internal/domain/model"
	"github.com/bigkaa/tgmedia-indexer/internal/fileid"
	"github.com/bigkaa/tgmedia-indexer/internal/repository"
)

// Outcome — исход сохранения медиафайла.
type Outcome int

const (
	// OutcomeInserted — новая запись сохранена.
	OutcomeInserted Outcome = iota + 1
	// OutcomeDuplicate — файл уже есть в хранилище.
	OutcomeDuplicate
	// OutcomeValidationFailed — некорректные входные данные.
	OutcomeValidationFailed
	// OutcomeStoreError — ошибка хранилища.
	OutcomeStoreError
)

func (o Outcome) String() string {
	switch o {
	case OutcomeInserted:
		return "inserted"
	case OutcomeDuplicate:
		return "duplicate"
	case OutcomeValidationFailed:
		return "validation_failed"
	case OutcomeStoreError:
		return "store_error"
	default:
		return "unknown"
	}
}

// ingestTotal — количество попыток сохранения по исходам.
var ingestTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "mi_ingest_total",
	Help: "Количество попыток сохранения медиафайлов по исходам.",
}, []string{"outcome"})

// SaveResult — результат сохранения медиафайла.
type SaveResult struct {
	// Outcome — исход операции
	Outcome Outcome
	// FileKey — ключ файла (пустой, если file_id не разобран)
	FileKey string
	// Err — причина для OutcomeValidationFailed и OutcomeStoreError
	Err error
}

// Saved сообщает, была ли создана новая запись.
func (r SaveResult) Saved() bool {
	return r.Outcome == OutcomeInserted
}

// Code возвращает числовой код исхода: 1 — сохранено, 0 — дубликат, 2 — ошибка.
func (r SaveResult) Code() int {
	switch r.Outcome {
	case OutcomeInserted:
		return 1
	case OutcomeDuplicate:
		return 0
	default:
		return 2
	}
}

// IncomingMedia — медиафайл, полученный из канала.
type IncomingMedia struct {
	// FileID — file_id Bot API
	FileID string
	// FileName — исходное имя файла
	FileName string
	// FileSize — размер в байтах
	FileSize int64
	// FileType — document, video или audio
	FileType string
	// MimeType — MIME-тип
	MimeType string
	// Caption — подпись в HTML
	Caption string
}

// fileNameSeparators — символы, заменяемые пробелами в имени файла.
var fileNameSeparators = regexp.MustCompile(`[_\-.+]`)

// NormalizeFileName заменяет символы _ - . + пробелами.
func NormalizeFileName(name string) string {
	return fileNameSeparators.ReplaceAllString(name, " ")
}

// IngestService — сервис сохранения медиафайлов.
type IngestService struct {
	repo   repository.MediaRepository
	logger *slog.Logger
}

// NewIngestService создаёт сервис сохранения медиафайлов.
func NewIngestService(repo repository.MediaRepository, logger *slog.Logger) *IngestService {
	return &IngestService{
		repo:   repo,
		logger: logger.With(slog.String("component", "ingest_service")),
	}
}

// Save сохраняет медиафайл. Не повторяет попытки и не паникует:
// любой исход возвращается в SaveResult.
func (s *IngestService) Save(ctx context.Context, m IncomingMedia) SaveResult {
	rec, err := buildRecord(m)
	if err != nil {
		res := SaveResult{Outcome: OutcomeValidationFailed, Err: err}
		if rec != nil {
			res.FileKey = rec.FileKey
		}
		s.logger.Error("Медиафайл не прошёл валидацию",
			slog.String("file_name", m.FileName),
			slog.String("error", err.Error()),
		)
		return s.finish(res)
	}

	if err := s.repo.Insert(ctx, rec); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			s.logger.Warn("Файл уже сохранён",
				slog.String("file_key", rec.FileKey),
				slog.String("file_name", rec.FileName),
			)
			return s.finish(SaveResult{Outcome: OutcomeDuplicate, FileKey: rec.FileKey})
		}
		s.logger.Error("Ошибка сохранения файла",
			slog.String("file_key", rec.FileKey),
			slog.String("error", err.Error()),
		)
		return s.finish(SaveResult{Outcome: OutcomeStoreError, FileKey: rec.FileKey, Err: err})
	}

	s.logger.Info("Файл сохранён",
		slog.String("file_key", rec.FileKey),
		slog.String("file_name", rec.FileName),
		slog.String("file_type", rec.FileType),
		slog.Int64("file_size", rec.FileSize),
	)
	return s.finish(SaveResult{Outcome: OutcomeInserted, FileKey: rec.FileKey})
}

func (s *IngestService) finish(res SaveResult) SaveResult {
	ingestTotal.WithLabelValues(res.Outcome.String()).Inc()
	return res
}

// buildRecord разбирает file_id и строит запись для хранилища.
func buildRecord(m IncomingMedia) (*model.MediaRecord, error) {
	fileKey, fileRef, err := fileid.Unpack(m.FileID)
	if err != nil {
		return nil, fmt.Errorf("%w: file_id: %w", ErrValidation, err)
	}

	rec := &model.MediaRecord{
		FileKey:  fileKey,
		FileRef:  fileRef,
		FileName: NormalizeFileName(m.FileName),
		FileSize: m.FileSize,
		FileType: m.FileType,
		MimeType: m.MimeType,
		Caption:  m.Caption,
	}

	switch {
	case strings.TrimSpace(rec.FileName) == "":
		return rec, fmt.Errorf("%w: пустое имя файла", ErrValidation)
	case rec.FileSize < 0:
		return rec, fmt.Errorf("%w: отрицательный размер файла %d", ErrValidation, rec.FileSize)
	case rec.FileType != "" && !model.IsKnownFileType(rec.FileType):
		return rec, fmt.Errorf("%w: неизвестный тип файла %q", ErrValidation, rec.FileType)
	}
	return rec, nil
}
