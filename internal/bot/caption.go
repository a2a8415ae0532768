// caption.go — преобразование подписи с entities Telegram в HTML.
// Смещения entities заданы в UTF-16 code units.
package bot

import (
	"html"
	"sort"
	"strconv"
	"strings"
	"unicode/utf16"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// CaptionHTML рендерит текст с entities в HTML-разметку Bot API.
// Entities без HTML-представления (mention, hashtag, url…) выводятся как текст.
func CaptionHTML(text string, entities []tgbotapi.MessageEntity) string {
	if text == "" {
		return ""
	}
	units := utf16.Encode([]rune(text))
	if len(entities) == 0 {
		return html.EscapeString(text)
	}

	type span struct {
		start, end int
		open, cls  string
	}
	spans := make([]span, 0, len(entities))
	for _, e := range entities {
		open, cls := entityTags(e)
		if open == "" {
			continue
		}
		start := min(max(e.Offset, 0), len(units))
		end := min(start+max(e.Length, 0), len(units))
		if start == end {
			continue
		}
		spans = append(spans, span{start: start, end: end, open: open, cls: cls})
	}
	// Внешние entities открываются первыми: по смещению, затем по убыванию длины.
	sort.SliceStable(spans, func(i, j int) bool {
		if spans[i].start != spans[j].start {
			return spans[i].start < spans[j].start
		}
		return spans[i].end > spans[j].end
	})

	var sb strings.Builder
	var stack []span
	pos := 0
	flush := func(to int) {
		if to > pos {
			sb.WriteString(html.EscapeString(string(utf16.Decode(units[pos:to]))))
			pos = to
		}
	}
	closeUntil := func(at int) {
		for len(stack) > 0 && stack[len(stack)-1].end <= at {
			top := stack[len(stack)-1]
			flush(top.end)
			sb.WriteString(top.cls)
			stack = stack[:len(stack)-1]
		}
	}

	for _, s := range spans {
		closeUntil(s.start)
		// Пересекающиеся entities обрезаются границей внешней.
		if len(stack) > 0 && s.end > stack[len(stack)-1].end {
			s.end = stack[len(stack)-1].end
		}
		flush(s.start)
		sb.WriteString(s.open)
		stack = append(stack, s)
	}
	closeUntil(len(units))
	flush(len(units))

	return sb.String()
}

// entityTags возвращает открывающий и закрывающий HTML-теги entity.
func entityTags(e tgbotapi.MessageEntity) (open, cls string) {
	switch e.Type {
	case "bold":
		return "<b>", "</b>"
	case "italic":
		return "<i>", "</i>"
	case "underline":
		return "<u>", "</u>"
	case "strikethrough":
		return "<s>", "</s>"
	case "spoiler":
		return "<tg-spoiler>", "</tg-spoiler>"
	case "code":
		return "<code>", "</code>"
	case "pre":
		if e.Language != "" {
			return `<pre><code class="language-` + html.EscapeString(e.Language) + `">`, "</code></pre>"
		}
		return "<pre>", "</pre>"
	case "text_link":
		return `<a href="` + html.EscapeString(e.URL) + `">`, "</a>"
	case "text_mention":
		if e.User == nil {
			return "", ""
		}
		return `<a href="tg://user?id=` + strconv.FormatInt(e.User.ID, 10) + `">`, "</a>"
	case "blockquote":
		return "<blockquote>", "</blockquote>"
	case "expandable_blockquote":
		return "<blockquote expandable>", "</blockquote>"
	default:
		return "", ""
	}
}
