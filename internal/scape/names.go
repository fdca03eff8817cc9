package scape

import "strings"

var nameAliases = map[string]string{
	"walker":            WalkerLiteName,
	"bipedal-walker":    WalkerLiteName,
	"bipedalwalker":     WalkerLiteName,
	"bipedalwalker-v3":  WalkerLiteName,
	"cart-pole":         CartPoleLiteName,
	"cartpole":          CartPoleLiteName,
	"cartpole-v1":       CartPoleLiteName,
	"pole-balancing":    CartPoleLiteName,
	"single-pole":       CartPoleLiteName,
	"cart-pole-lite-v1": CartPoleLiteName,
}

// NormalizeName canonicalizes environment names and known aliases.
func NormalizeName(name string) string {
	normalized := strings.TrimSpace(strings.ToLower(name))
	normalized = strings.ReplaceAll(normalized, "_", "-")
	normalized = strings.ReplaceAll(normalized, " ", "-")
	normalized = strings.Trim(normalized, "-")
	if normalized == "" {
		return ""
	}
	for _, candidate := range aliasCandidates(normalized) {
		if canonical, ok := nameAliases[candidate]; ok {
			return canonical
		}
	}
	return normalized
}

func aliasCandidates(normalized string) []string {
	candidates := []string{normalized}
	if trimmed := strings.Trim(strings.TrimPrefix(normalized, "scape-"), "-"); trimmed != "" && trimmed != normalized {
		candidates = append(candidates, trimmed)
	}
	if trimmed := strings.TrimSuffix(normalized, "-sim"); trimmed != normalized && trimmed != "" {
		candidates = append(candidates, trimmed)
	}
	return candidates
}
