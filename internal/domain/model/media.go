// Пакет model — доменные модели медиа-индексатора.
// MediaRecord — документ коллекции медиафайлов в MongoDB.
package model

// Типы медиафайлов, индексируемых из каналов.
const (
	FileTypeDocument = "document"
	FileTypeVideo    = "video"
	FileTypeAudio    = "audio"
)

// MediaRecord — запись медиафайла в хранилище.
// Записи не обновляются на месте: создаются при индексации
// и удаляются только администратором.
type MediaRecord struct {
	// FileKey — первичный ключ, построенный кодеком fileid
	FileKey string `bson:"_id" json:"file_key"`
	// FileRef — ключ file reference (может отсутствовать)
	FileRef string `bson:"file_ref,omitempty" json:"file_ref,omitempty"`
	// FileName — нормализованное имя файла
	FileName string `bson:"file_name" json:"file_name"`
	// FileSize — размер файла в байтах
	FileSize int64 `bson:"file_size" json:"file_size"`
	// FileType — тип файла: document, video, audio
	FileType string `bson:"file_type,omitempty" json:"file_type,omitempty"`
	// MimeType — MIME-тип файла
	MimeType string `bson:"mime_type,omitempty" json:"mime_type,omitempty"`
	// Caption — подпись в HTML
	Caption string `bson:"caption,omitempty" json:"caption,omitempty"`
}

// IsKnownFileType сообщает, является ли строка допустимым типом файла.
func IsKnownFileType(t string) bool {
	switch t {
	case FileTypeDocument, FileTypeVideo, FileTypeAudio:
		return true
	}
	return false
}
