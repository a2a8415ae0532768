// format.go — форматирование результатов поиска.
package bot

import (
	"fmt"
	"html"

	"github.com/bigkaa/tgmedia-indexer/internal/domain/model"
)

// HumanSize форматирует размер в байтах с двоичными множителями.
func HumanSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit && exp < 4; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.2f %cB", float64(size)/float64(div), "KMGTP"[exp])
}

// buttonText — подпись кнопки результата: размер и имя файла.
func buttonText(rec *model.MediaRecord) string {
	return fmt.Sprintf("[%s] %s", HumanSize(rec.FileSize), rec.FileName)
}

// fileCaption — подпись отправляемого файла.
func fileCaption(rec *model.MediaRecord) string {
	if rec.Caption != "" {
		return rec.Caption
	}
	return "<b>" + html.EscapeString(rec.FileName) + "</b>"
}
