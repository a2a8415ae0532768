// Пакет fileid — кодек идентификаторов файлов Telegram.
// Из структурного дескриптора файла (тип, DC, media id, access hash) строит
// короткий URL-safe ключ file_key, используемый как первичный ключ в MongoDB,
// и ключ file_ref для бинарной file reference.
//
// Бинарный формат ключа (26 байт до сжатия):
//
//	int32 type | int32 dc_id | int64 media_id | int64 access_hash | 0x16 | 0x04
//
// Все числа — little-endian. Два завершающих байта — sub-version и version
// формата Bot API; они читаются только декодером на стороне Telegram.
package fileid

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"strings"
)

// Завершающие байты ключа: sub-version и version формата file_id.
const (
	trailerSubVersion = 22
	trailerVersion    = 4
)

// packedSize — размер упакованного дескриптора без завершающих байтов.
const packedSize = 24

// maxZeroRun — максимальная длина серии нулей, кодируемая одной escape-парой.
const maxZeroRun = 255

// Descriptor — структурный дескриптор файла Telegram.
type Descriptor struct {
	// Type — тип файла (без флагов web location / file reference)
	Type int32
	// DCID — идентификатор датацентра
	DCID int32
	// MediaID — идентификатор документа/фото
	MediaID int64
	// AccessHash — access hash файла
	AccessHash int64
}

// Pack сериализует дескриптор в 24 байта little-endian.
func (d Descriptor) Pack() []byte {
	buf := make([]byte, packedSize)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(d.Type))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(d.DCID))
	binary.LittleEndian.PutUint64(buf[8:16], uint64(d.MediaID))
	binary.LittleEndian.PutUint64(buf[16:24], uint64(d.AccessHash))
	return buf
}

// EncodeFileKey строит file_key: упаковка дескриптора, завершающие байты,
// сжатие серий нулей и base64-URL без паддинга.
// Результат детерминирован: одинаковый дескриптор всегда даёт одинаковую строку.
func EncodeFileKey(d Descriptor) string {
	buf := append(d.Pack(), trailerSubVersion, trailerVersion)
	return base64.RawURLEncoding.EncodeToString(rleEncode(buf))
}

// EncodeFileRef кодирует бинарную file reference в base64-URL без паддинга.
func EncodeFileRef(ref []byte) string {
	return base64.RawURLEncoding.EncodeToString(ref)
}

// ExpandFileKey выполняет обратное преобразование file_key:
// base64-URL → раскрытие серий нулей. Возвращает исходные 26 байт.
func ExpandFileKey(key string) ([]byte, error) {
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(key, "="))
	if err != nil {
		return nil, fmt.Errorf("%w: base64: %v", ErrInvalidFileID, err)
	}
	return rleDecode(raw), nil
}

// Unpack разбирает file_id Bot API и возвращает пару (file_key, file_ref).
func Unpack(botFileID string) (fileKey, fileRef string, err error) {
	id, err := DecodeFileID(botFileID)
	if err != nil {
		return "", "", err
	}
	return EncodeFileKey(id.Descriptor), EncodeFileRef(id.FileReference), nil
}

// rleEncode сжимает серии нулевых байтов: каждая серия из n нулей
// записывается как пара (0x00, n). Серия длиннее 255 — ошибка вызывающего кода.
func rleEncode(src []byte) []byte {
	out := make([]byte, 0, len(src))
	run := 0

	flush := func() {
		if run == 0 {
			return
		}
		if run > maxZeroRun {
			panic(fmt.Sprintf("fileid: серия нулей длиной %d превышает %d", run, maxZeroRun))
		}
		out = append(out, 0, byte(run))
		run = 0
	}

	for _, b := range src {
		if b == 0 {
			run++
			continue
		}
		flush()
		out = append(out, b)
	}
	flush()

	return out
}

// rleDecode раскрывает пары (0x00, n) в n нулевых байтов.
func rleDecode(src []byte) []byte {
	out := make([]byte, 0, len(src)*2)
	zero := false
	for _, b := range src {
		if zero {
			for i := 0; i < int(b); i++ {
				out = append(out, 0)
			}
			zero = false
			continue
		}
		if b == 0 {
			zero = true
			continue
		}
		out = append(out, b)
	}
	return out
}
