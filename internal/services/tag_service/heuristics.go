package services

import (
	"path/filepath"
	"regexp"
	"strings"

	"design_vault/internal/domain/models"
)

type keywordRule struct {
	keywords []string
	tags     []string
}

// порядок правил определяет порядок тегов в ответе
var keywordRules = []keywordRule{
	{[]string{"login", "signin", "sign-in", "signup", "register", "auth", "password"}, []string{"authentication", "form"}},
	{[]string{"form", "input"}, []string{"form"}},
	{[]string{"button", "btn", "cta"}, []string{"button"}},
	{[]string{"card"}, []string{"card"}},
	{[]string{"nav", "navbar", "menu", "header", "footer", "sidebar"}, []string{"navigation"}},
	{[]string{"dashboard", "admin"}, []string{"dashboard"}},
	{[]string{"chart", "graph", "analytics"}, []string{"chart", "data-visualization"}},
	{[]string{"table", "grid"}, []string{"table"}},
	{[]string{"modal", "dialog", "popup"}, []string{"modal"}},
	{[]string{"icon"}, []string{"icon"}},
	{[]string{"logo", "brand"}, []string{"logo", "branding"}},
	{[]string{"mobile", "ios", "android", "app"}, []string{"mobile"}},
	{[]string{"landing", "hero"}, []string{"landing-page"}},
	{[]string{"checkout", "cart", "payment", "pricing"}, []string{"ecommerce"}},
	{[]string{"profile", "avatar", "account"}, []string{"profile"}},
	{[]string{"settings", "preferences"}, []string{"settings"}},
	{[]string{"search"}, []string{"search"}},
	{[]string{"onboarding", "welcome"}, []string{"onboarding"}},
	{[]string{"empty"}, []string{"empty-state"}},
	{[]string{"error", "404"}, []string{"error-state"}},
	{[]string{"dark"}, []string{"dark-mode"}},
	{[]string{"wireframe"}, []string{"wireframe"}},
	{[]string{"mockup"}, []string{"mockup"}},
}

var extensionTags = map[string]string{
	".gif":  "animation",
	".mp4":  "video",
	".webm": "video",
	".mov":  "video",
	".svg":  "vector",
}

var wordSplitRe = regexp.MustCompile(`[^a-z0-9]+`)

// короткие ключевые слова ищутся только целым словом ("app" не срабатывает на "happy")
const substringMinLen = 4

// HeuristicTags подбирает теги по имени файла без обращения к внешним
// сервисам. Никогда не возвращает пустой список.
func HeuristicTags(filename string) []string {
	base := strings.ToLower(filepath.Base(filename))
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)

	words := make(map[string]struct{})
	for _, w := range wordSplitRe.Split(stem, -1) {
		if w != "" {
			words[w] = struct{}{}
		}
	}

	var tags []string
	for _, rule := range keywordRules {
		if ruleMatches(rule, stem, words) {
			tags = append(tags, rule.tags...)
		}
	}

	if tag, ok := extensionTags[ext]; ok {
		tags = append(tags, tag)
	}

	tags = models.SanitizeTags(tags)
	if len(tags) == 0 {
		return []string{"design"}
	}

	return tags
}

func ruleMatches(rule keywordRule, stem string, words map[string]struct{}) bool {
	for _, kw := range rule.keywords {
		if _, ok := words[kw]; ok {
			return true
		}
		if len(kw) >= substringMinLen && strings.Contains(stem, kw) {
			return true
		}
	}
	return false
}
