package models

import (
	"strings"
	"unicode"
)

const (
	MaxTagLength = 50
	MaxTags      = 30
)

// SanitizeTags приводит теги к виду [a-z0-9-]: обрезает пробелы, переводит
// в нижний регистр, заменяет пробелы и подчеркивания на дефис, удаляет
// остальные символы и дубликаты. Порядок первых вхождений сохраняется.
func SanitizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))

	for _, raw := range tags {
		tag := SanitizeTag(raw)
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)

		if len(out) == MaxTags {
			break
		}
	}

	return out
}

func SanitizeTag(raw string) string {
	raw = strings.ToLower(strings.TrimSpace(raw))

	var b strings.Builder
	b.Grow(len(raw))

	lastHyphen := false
	for _, r := range raw {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		case r == '-' || r == '_' || unicode.IsSpace(r):
			if !lastHyphen && b.Len() > 0 {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}

	tag := strings.Trim(b.String(), "-")
	if len(tag) > MaxTagLength {
		tag = strings.TrimRight(tag[:MaxTagLength], "-")
	}

	return tag
}

// CountUntagged считает записи без тегов.
func CountUntagged(files []DatabaseFile) int {
	n := 0
	for _, f := range files {
		if len(f.Tags) == 0 {
			n++
		}
	}
	return n
}
