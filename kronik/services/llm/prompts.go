package llm

import (
	_ "embed"
	"strings"
)

//go:embed prompts/analyze_tiktok.md
var analyzeTikTokPrompt string

// AnalyzeTikTokPrompt is the system instruction sent with every video.
func AnalyzeTikTokPrompt() string {
	return strings.TrimSpace(analyzeTikTokPrompt)
}

const analyzeTikTokRequest = "Please analyze this TikTok video from the persona's perspective."
