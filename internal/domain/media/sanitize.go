// sanitize.go — нормализация произвольных строк в безопасные фрагменты
// публичных идентификаторов.
//
// Алгоритм: строчный регистр; каждый символ вне допустимого набора
// заменяется дефисом; последовательные дефисы схлопываются в один;
// ведущие и замыкающие дефисы отбрасываются. Функции идемпотентны.
// Пустой результат — валидный выход, не ошибка.
package media

import "strings"

// strictAllowed — строгий набор: только латинские буквы и цифры.
func strictAllowed(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
}

// identifierAllowed — набор для ключей хранилища: грамматика ключей
// Cloudinary дополнительно разрешает подчёркивание, точку и дефис.
func identifierAllowed(r rune) bool {
	return strictAllowed(r) || r == '_' || r == '.' || r == '-'
}

// Sanitize нормализует строку по строгому набору (буквы и цифры).
// Используется для путей папок и тегов.
func Sanitize(text string) string {
	return sanitizeWith(text, strictAllowed)
}

// SanitizeIdentifier нормализует строку по набору для ключей хранилища
// (буквы, цифры, подчёркивание, точка, дефис). Используется для
// файловой части публичного идентификатора.
func SanitizeIdentifier(text string) string {
	return sanitizeWith(text, identifierAllowed)
}

// sanitizeWith — общий проход санитизации.
// Дефис обрабатывается отдельно от allowed: и замещающие, и литеральные
// дефисы попадают в одно схлопывание, поэтому "--" в выходе невозможно.
func sanitizeWith(text string, allowed func(rune) bool) string {
	var b strings.Builder
	b.Grow(len(text))

	prevHyphen := false
	for _, r := range strings.ToLower(text) {
		if r != '-' && allowed(r) {
			b.WriteRune(r)
			prevHyphen = false
			continue
		}
		if !prevHyphen {
			b.WriteByte('-')
			prevHyphen = true
		}
	}

	return strings.Trim(b.String(), "-")
}
