// decode.go — разбор file_id в формате Bot API.
// Bot API передаёт непрозрачную строку file_id; для построения file_key
// из неё извлекаются тип, DC, media id, access hash и file reference.
package fileid

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidFileID — строка не является корректным file_id.
	ErrInvalidFileID = errors.New("некорректный file_id")
	// ErrUnsupportedFileID — file_id корректен, но не содержит media id
	// (например, web location).
	ErrUnsupportedFileID = errors.New("неподдерживаемый file_id")
)

// FileType — тип файла в file_id.
type FileType int32

const (
	TypeThumbnail FileType = iota
	TypeChatPhoto
	TypePhoto
	TypeVoice
	TypeVideo
	TypeDocument
	TypeEncrypted
	TypeTemp
	TypeSticker
	TypeAudio
	TypeAnimation
	TypeEncryptedThumbnail
	TypeWallpaper
	TypeVideoNote
	TypeSecureRaw
	TypeSecure
	TypeBackground
	TypeDocumentAsFile
)

var fileTypeNames = [...]string{
	"thumbnail", "chat_photo", "photo", "voice", "video", "document",
	"encrypted", "temp", "sticker", "audio", "animation",
	"encrypted_thumbnail", "wallpaper", "video_note", "secure_raw",
	"secure", "background", "document_as_file",
}

func (t FileType) String() string {
	if t >= 0 && int(t) < len(fileTypeNames) {
		return fileTypeNames[t]
	}
	return fmt.Sprintf("unknown(%d)", int32(t))
}

// Флаги в старших битах поля type.
const (
	webLocationFlag   = 1 << 24
	fileReferenceFlag = 1 << 25
)

// FileID — разобранный file_id Bot API.
type FileID struct {
	Descriptor
	// FileReference — бинарная file reference (может быть пустой)
	FileReference []byte
	// Version — major-версия формата (последний байт)
	Version byte
	// SubVersion — minor-версия формата (для Version >= 4)
	SubVersion byte
}

// FileType возвращает тип файла.
func (f *FileID) FileType() FileType {
	return FileType(f.Type)
}

// DecodeFileID разбирает file_id Bot API.
//
// Формат после base64-URL и раскрытия серий нулей:
//
//	int32 type|flags | int32 dc_id | [bytes file_reference] | int64 media_id | int64 access_hash | ... | [sub_version] version
//
// Хвост после access_hash (источник миниатюры у фото) не разбирается.
func DecodeFileID(s string) (*FileID, error) {
	if s == "" {
		return nil, fmt.Errorf("%w: пустая строка", ErrInvalidFileID)
	}
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(s, "="))
	if err != nil {
		return nil, fmt.Errorf("%w: base64: %v", ErrInvalidFileID, err)
	}
	data := rleDecode(raw)
	if len(data) < 1 {
		return nil, fmt.Errorf("%w: пустые данные", ErrInvalidFileID)
	}

	id := &FileID{Version: data[len(data)-1]}
	data = data[:len(data)-1]
	if id.Version >= 4 {
		if len(data) < 1 {
			return nil, fmt.Errorf("%w: нет sub-version", ErrInvalidFileID)
		}
		id.SubVersion = data[len(data)-1]
		data = data[:len(data)-1]
	}

	r := &reader{buf: data}
	typ, err := r.int32()
	if err != nil {
		return nil, err
	}
	dc, err := r.int32()
	if err != nil {
		return nil, err
	}

	hasWebLocation := typ&webLocationFlag != 0
	hasFileReference := typ&fileReferenceFlag != 0
	typ &^= webLocationFlag | fileReferenceFlag

	if hasWebLocation {
		return nil, fmt.Errorf("%w: web location (type=%s)", ErrUnsupportedFileID, FileType(typ))
	}

	if hasFileReference {
		id.FileReference, err = r.tlBytes()
		if err != nil {
			return nil, err
		}
	}

	mediaID, err := r.int64()
	if err != nil {
		return nil, err
	}
	accessHash, err := r.int64()
	if err != nil {
		return nil, err
	}

	id.Descriptor = Descriptor{
		Type:       typ,
		DCID:       dc,
		MediaID:    mediaID,
		AccessHash: accessHash,
	}
	return id, nil
}

// reader — последовательное чтение little-endian значений.
type reader struct {
	buf []byte
	pos int
}

func (r *reader) next(n int) ([]byte, error) {
	if n < 0 || r.pos+n > len(r.buf) {
		return nil, fmt.Errorf("%w: неожиданный конец данных (нужно %d байт на позиции %d, всего %d)",
			ErrInvalidFileID, n, r.pos, len(r.buf))
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *reader) int32() (int32, error) {
	b, err := r.next(4)
	if err != nil {
		return 0, err
	}
	return int32(binary.LittleEndian.Uint32(b)), nil
}

func (r *reader) int64() (int64, error) {
	b, err := r.next(8)
	if err != nil {
		return 0, err
	}
	return int64(binary.LittleEndian.Uint64(b)), nil
}

// tlBytes читает TL-сериализованную строку байтов:
// длина 1 байт (<= 253) либо 254 + 3 байта длины, затем выравнивание до 4.
// Байт 255 в TL зарезервирован и отвергается.
func (r *reader) tlBytes() ([]byte, error) {
	head, err := r.next(1)
	if err != nil {
		return nil, err
	}
	length := int(head[0])
	headerLen := 1
	if length == 255 {
		return nil, fmt.Errorf("%w: недопустимый байт длины TL-строки 255", ErrInvalidFileID)
	}
	if length == 254 {
		ext, err := r.next(3)
		if err != nil {
			return nil, err
		}
		length = int(ext[0]) | int(ext[1])<<8 | int(ext[2])<<16
		headerLen = 4
	}

	data, err := r.next(length)
	if err != nil {
		return nil, err
	}
	out := make([]byte, length)
	copy(out, data)

	if pad := (4 - (length+headerLen)%4) % 4; pad > 0 {
		if _, err := r.next(pad); err != nil {
			return nil, err
		}
	}
	return out, nil
}
