package engine

import (
	"regexp"
	"strings"
)

// placeholderRe находит плейсхолдеры {{Label}}.
var placeholderRe = regexp.MustCompile(`\{\{(.*?)\}\}`)

// Resolve подставляет значения в шаблон промпта.
//
// Каждый {{X}} (X без пробелов по краям) заменяется на values[X].
// Если ключа нет или значение пустое, вставляется [Missing: X], а ключ
// попадает в *MissingVariablesError. Подстановка выполняется за один проход:
// вставленный текст повторно не сканируется.
//
// Пустой результат без пропущенных ключей возвращает ErrEmptyPrompt.
func Resolve(template string, values map[string]string) (string, error) {
	var missing []string
	seen := make(map[string]bool)

	out := placeholderRe.ReplaceAllStringFunc(template, func(match string) string {
		key := strings.TrimSpace(match[2 : len(match)-2])
		if v, ok := values[key]; ok && strings.TrimSpace(v) != "" {
			return v
		}
		if !seen[key] {
			seen[key] = true
			missing = append(missing, key)
		}
		return "[Missing: " + key + "]"
	})

	if len(missing) > 0 {
		return "", &MissingVariablesError{Keys: missing, Partial: out}
	}
	if strings.TrimSpace(out) == "" {
		return "", ErrEmptyPrompt
	}
	return out, nil
}

// Placeholders возвращает ключи плейсхолдеров шаблона в порядке появления, без повторов.
func Placeholders(template string) []string {
	var keys []string
	seen := make(map[string]bool)
	for _, m := range placeholderRe.FindAllStringSubmatch(template, -1) {
		key := strings.TrimSpace(m[1])
		if !seen[key] {
			seen[key] = true
			keys = append(keys, key)
		}
	}
	return keys
}
