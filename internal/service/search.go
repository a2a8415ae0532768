// search.go — сервис поиска медиафайлов.
// Координирует repository, настройки чатов, LRU cache и Prometheus-метрики.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/tgmedia-indexer/internal/domain/model"
	"github.com/bigkaa/tgmedia-indexer/internal/repository"
)

// compactPageSize — размер страницы в компактном режиме чата.
const compactPageSize = 10

// deleteBatchSize — максимум ключей в одном запросе массового удаления.
// Ограничивает размер фильтра $in относительно лимита BSON-документа.
const deleteBatchSize = 1000

// Prometheus-метрики поиска.
var (
	searchTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mi_search_total",
		Help: "Общее количество поисковых запросов.",
	})
	searchErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mi_search_errors_total",
		Help: "Количество поисковых запросов, завершившихся ошибкой хранилища.",
	})
	searchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "mi_search_duration_seconds",
		Help:    "Длительность поисковых запросов.",
		Buckets: prometheus.DefBuckets,
	})
)

// SearchRequest — параметры поиска.
type SearchRequest struct {
	// ChatID — чат, из которого пришёл запрос (nil — без настроек чата)
	ChatID *int64
	// Query — поисковый запрос
	Query string
	// FileType — фильтр по типу файла (пустой — без фильтра)
	FileType string
	// MaxResults — размер страницы (0 — значение по умолчанию)
	MaxResults int
	// Offset — смещение
	Offset int
}

// SearchResult — страница результатов поиска.
type SearchResult struct {
	// Files — найденные файлы, новые первыми
	Files []*model.MediaRecord
	// Total — общее количество совпадений
	Total int64
	// Limit — фактический размер страницы
	Limit int
	// Offset — текущее смещение
	Offset int
	// NextOffset — смещение следующей страницы (valid только при HasNext)
	NextOffset int
	// HasNext — есть ли следующая страница
	HasNext bool
}

// NextOffsetToken возвращает смещение следующей страницы строкой
// или пустую строку, если страниц больше нет.
func (r *SearchResult) NextOffsetToken() string {
	if !r.HasNext {
		return ""
	}
	return strconv.Itoa(r.NextOffset)
}

// ChatSettingsProvider — источник настроек чатов для поиска.
type ChatSettingsProvider interface {
	Get(ctx context.Context, chatID int64) (model.ChatSettings, error)
}

// SearchService — сервис поиска файлов и получения метаданных.
type SearchService struct {
	repo       repository.MediaRepository
	settings   ChatSettingsProvider
	cache      *CacheService[string, *model.MediaRecord]
	maxResults int
	useCaption bool
	logger     *slog.Logger
}

// NewSearchService создаёт сервис поиска.
// maxResults — размер страницы по умолчанию, useCaption — искать также по подписи.
func NewSearchService(
	repo repository.MediaRepository,
	settings ChatSettingsProvider,
	cache *CacheService[string, *model.MediaRecord],
	maxResults int,
	useCaption bool,
	logger *slog.Logger,
) *SearchService {
	return &SearchService{
		repo:       repo,
		settings:   settings,
		cache:      cache,
		maxResults: maxResults,
		useCaption: useCaption,
		logger:     logger.With(slog.String("component", "search_service")),
	}
}

// pageSize определяет размер страницы. Для запросов из чата учитывается
// компактный режим: 10 результатов, иначе — значение по умолчанию.
func (s *SearchService) pageSize(ctx context.Context, req SearchRequest) int {
	if req.ChatID != nil {
		st, err := s.settings.Get(ctx, *req.ChatID)
		if err != nil {
			s.logger.Warn("Настройки чата недоступны, используется размер по умолчанию",
				slog.Int64("chat_id", *req.ChatID),
				slog.String("error", err.Error()),
			)
			return s.maxResults
		}
		if st.MaxBtn {
			return compactPageSize
		}
		return s.maxResults
	}
	if req.MaxResults > 0 {
		return req.MaxResults
	}
	return s.maxResults
}

// Search выполняет поиск с пагинацией.
// При ошибке хранилища возвращает пустой результат и ошибку,
// оборачивающую ErrStoreUnavailable.
func (s *SearchService) Search(ctx context.Context, req SearchRequest) (*SearchResult, error) {
	start := time.Now()
	searchTotal.Inc()

	limit := s.pageSize(ctx, req)
	offset := max(req.Offset, 0)
	result := &SearchResult{Limit: limit, Offset: offset}

	filter := repository.MediaFilter{
		Query:      req.Query,
		FileType:   req.FileType,
		UseCaption: s.useCaption,
	}

	total, err := s.repo.Count(ctx, filter)
	if err != nil {
		return result, s.storeFailure("поиск файлов", err)
	}

	files, err := s.repo.Find(ctx, filter, offset, limit)
	if err != nil {
		return result, s.storeFailure("поиск файлов", err)
	}

	result.Files = files
	result.Total = total
	if next := offset + limit; int64(next) < total {
		result.NextOffset = next
		result.HasNext = true
	}

	duration := time.Since(start)
	searchDuration.Observe(duration.Seconds())

	s.logger.Debug("Поиск выполнен",
		slog.String("query", req.Query),
		slog.Int64("total", total),
		slog.Int("returned", len(files)),
		slog.Duration("duration", duration),
	)

	return result, nil
}

// BadFiles возвращает все файлы, подходящие под запрос, без пагинации.
// Используется для массового удаления администратором.
func (s *SearchService) BadFiles(ctx context.Context, query, fileType string) ([]*model.MediaRecord, int64, error) {
	filter := repository.MediaFilter{
		Query:      query,
		FileType:   fileType,
		UseCaption: s.useCaption,
	}

	total, err := s.repo.Count(ctx, filter)
	if err != nil {
		return nil, 0, s.storeFailure("поиск файлов для удаления", err)
	}
	files, err := s.repo.FindAll(ctx, filter)
	if err != nil {
		return nil, 0, s.storeFailure("поиск файлов для удаления", err)
	}
	return files, total, nil
}

// FileDetails возвращает файл по file_key.
// Сначала проверяет LRU-кэш, при промахе — запрос к MongoDB, результат кэшируется.
func (s *SearchService) FileDetails(ctx context.Context, fileKey string) (*model.MediaRecord, error) {
	if rec, ok := s.cache.Get(fileKey); ok {
		return rec, nil
	}

	rec, err := s.repo.GetByKey(ctx, fileKey)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, s.storeFailure("получение файла", err)
	}

	s.cache.Set(fileKey, rec)
	return rec, nil
}

// DeleteFile удаляет файл по file_key и инвалидирует кэш.
// Кэш сбрасывается после удаления из хранилища: параллельный FileDetails
// между сбросом и удалением иначе вернул бы запись обратно в кэш.
func (s *SearchService) DeleteFile(ctx context.Context, fileKey string) error {
	err := s.repo.Delete(ctx, fileKey)
	s.cache.Delete(fileKey)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return s.storeFailure("удаление файла", err)
	}
	s.logger.Info("Файл удалён", slog.String("file_key", fileKey))
	return nil
}

// DeleteFiles удаляет набор файлов пачками по deleteBatchSize ключей
// и возвращает количество удалённых.
func (s *SearchService) DeleteFiles(ctx context.Context, files []*model.MediaRecord) (int64, error) {
	keys := make([]string, 0, len(files))
	for _, f := range files {
		keys = append(keys, f.FileKey)
	}

	var deleted int64
	for start := 0; start < len(keys); start += deleteBatchSize {
		batch := keys[start:min(start+deleteBatchSize, len(keys))]
		n, err := s.repo.DeleteMany(ctx, batch)
		for _, k := range batch {
			s.cache.Delete(k)
		}
		deleted += n
		if err != nil {
			return deleted, s.storeFailure("удаление файлов", err)
		}
	}
	s.logger.Info("Файлы удалены", slog.Int64("deleted", deleted), slog.Int("requested", len(keys)))
	return deleted, nil
}

// Total возвращает общее количество сохранённых файлов.
func (s *SearchService) Total(ctx context.Context) (int64, error) {
	n, err := s.repo.Total(ctx)
	if err != nil {
		return 0, s.storeFailure("подсчёт файлов", err)
	}
	return n, nil
}

// storeFailure логирует ошибку хранилища и оборачивает её в ErrStoreUnavailable.
func (s *SearchService) storeFailure(op string, err error) error {
	searchErrorsTotal.Inc()
	s.logger.Error("Ошибка хранилища",
		slog.String("operation", op),
		slog.String("error", err.Error()),
	)
	return fmt.Errorf("%w: %s: %w", ErrStoreUnavailable, op, err)
}
