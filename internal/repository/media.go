package repository

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/bigkaa/tgmedia-indexer/internal/domain/model"
)

// matchAllPattern — шаблон для пустого запроса.
const matchAllPattern = "."

// MediaFilter — параметры фильтра поиска медиафайлов.
type MediaFilter struct {
	// Query — поисковый запрос (пустой — все записи)
	Query string
	// FileType — точное совпадение типа файла (пустой — без фильтра)
	FileType string
	// UseCaption — искать также по подписи
	UseCaption bool
}

// MediaRepository — интерфейс доступа к коллекции медиафайлов.
type MediaRepository interface {
	// Insert сохраняет новую запись. Дубликат file_key — ErrConflict.
	Insert(ctx context.Context, rec *model.MediaRecord) error
	// Count возвращает количество записей, подходящих под фильтр.
	Count(ctx context.Context, f MediaFilter) (int64, error)
	// Find возвращает страницу записей в порядке вставки, новые первыми.
	Find(ctx context.Context, f MediaFilter, offset, limit int) ([]*model.MediaRecord, error)
	// FindAll возвращает все подходящие записи без пагинации.
	FindAll(ctx context.Context, f MediaFilter) ([]*model.MediaRecord, error)
	// GetByKey возвращает запись по file_key или ErrNotFound.
	GetByKey(ctx context.Context, fileKey string) (*model.MediaRecord, error)
	// Delete удаляет запись по file_key. Отсутствующая запись — ErrNotFound.
	Delete(ctx context.Context, fileKey string) error
	// DeleteMany удаляет записи по списку file_key, возвращает количество удалённых.
	DeleteMany(ctx context.Context, fileKeys []string) (int64, error)
	// Total возвращает оценку общего количества записей.
	Total(ctx context.Context) (int64, error)
}

// mediaRepo — реализация MediaRepository через mongo-driver.
type mediaRepo struct {
	coll *mongo.Collection
}

// NewMediaRepository создаёт репозиторий медиафайлов.
func NewMediaRepository(coll *mongo.Collection) MediaRepository {
	return &mediaRepo{coll: coll}
}

func (r *mediaRepo) Insert(ctx context.Context, rec *model.MediaRecord) error {
	if _, err := r.coll.InsertOne(ctx, rec); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: файл %s уже сохранён", ErrConflict, rec.FileKey)
		}
		return fmt.Errorf("ошибка сохранения файла: %w", err)
	}
	return nil
}

func (r *mediaRepo) Count(ctx context.Context, f MediaFilter) (int64, error) {
	n, err := r.coll.CountDocuments(ctx, buildMediaFilter(f))
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчёта файлов: %w", err)
	}
	return n, nil
}

func (r *mediaRepo) Find(ctx context.Context, f MediaFilter, offset, limit int) ([]*model.MediaRecord, error) {
	opts := options.Find().
		SetSort(naturalDesc()).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))
	return r.find(ctx, f, opts)
}

func (r *mediaRepo) FindAll(ctx context.Context, f MediaFilter) ([]*model.MediaRecord, error) {
	return r.find(ctx, f, options.Find().SetSort(naturalDesc()))
}

func (r *mediaRepo) find(ctx context.Context, f MediaFilter, opts *options.FindOptionsBuilder) ([]*model.MediaRecord, error) {
	cur, err := r.coll.Find(ctx, buildMediaFilter(f), opts)
	if err != nil {
		return nil, fmt.Errorf("ошибка поиска файлов: %w", err)
	}

	var result []*model.MediaRecord
	if err := cur.All(ctx, &result); err != nil {
		return nil, fmt.Errorf("ошибка чтения результатов: %w", err)
	}
	return result, nil
}

func (r *mediaRepo) GetByKey(ctx context.Context, fileKey string) (*model.MediaRecord, error) {
	rec := &model.MediaRecord{}
	err := r.coll.FindOne(ctx, bson.D{{Key: "_id", Value: fileKey}}).Decode(rec)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения файла: %w", err)
	}
	return rec, nil
}

func (r *mediaRepo) Delete(ctx context.Context, fileKey string) error {
	res, err := r.coll.DeleteOne(ctx, bson.D{{Key: "_id", Value: fileKey}})
	if err != nil {
		return fmt.Errorf("ошибка удаления файла: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *mediaRepo) DeleteMany(ctx context.Context, fileKeys []string) (int64, error) {
	if len(fileKeys) == 0 {
		return 0, nil
	}
	res, err := r.coll.DeleteMany(ctx, bson.D{{Key: "_id", Value: bson.D{{Key: "$in", Value: fileKeys}}}})
	if err != nil {
		return 0, fmt.Errorf("ошибка удаления файлов: %w", err)
	}
	return res.DeletedCount, nil
}

func (r *mediaRepo) Total(ctx context.Context) (int64, error) {
	n, err := r.coll.EstimatedDocumentCount(ctx)
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчёта файлов: %w", err)
	}
	return n, nil
}

// naturalDesc — порядок вставки, новые записи первыми.
func naturalDesc() bson.D {
	return bson.D{{Key: "$natural", Value: -1}}
}

// BuildPattern строит регулярное выражение для поискового запроса.
// Пустой запрос совпадает со всем; иначе запрос экранируется
// и обрамляется границами слова с обеих сторон.
func BuildPattern(query string) string {
	q := strings.TrimSpace(query)
	if q == "" {
		return matchAllPattern
	}
	return `(\b|\W)` + regexp.QuoteMeta(q) + `(\b|\W)`
}

// buildMediaFilter строит фильтр MongoDB: регистронезависимый шаблон
// по file_name (или file_name/caption) и опционально равенство file_type.
func buildMediaFilter(f MediaFilter) bson.D {
	re := bson.Regex{Pattern: BuildPattern(f.Query), Options: "i"}

	var filter bson.D
	if f.UseCaption {
		filter = bson.D{{Key: "$or", Value: bson.A{
			bson.D{{Key: "file_name", Value: re}},
			bson.D{{Key: "caption", Value: re}},
		}}}
	} else {
		filter = bson.D{{Key: "file_name", Value: re}}
	}

	if f.FileType != "" {
		filter = append(filter, bson.E{Key: "file_type", Value: f.FileType})
	}
	return filter
}
