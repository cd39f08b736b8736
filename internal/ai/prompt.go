package ai

import (
	"fmt"
	"strings"
)

// PromptVars are the storefront values substituted into the system prompt
// template.
type PromptVars struct {
	SiteName string
	StoreURL string
	Currency string
}

// RenderSystemPrompt substitutes {site_name}, {store_url} and {currency} in
// the template. An empty template falls back to a generic customer service
// prompt.
func RenderSystemPrompt(template string, v PromptVars) string {
	if strings.TrimSpace(template) == "" {
		return fmt.Sprintf(
			"You are a helpful customer service assistant for %s. Answer questions about products, orders, and store policies.",
			v.SiteName,
		)
	}
	r := strings.NewReplacer(
		"{site_name}", v.SiteName,
		"{store_url}", v.StoreURL,
		"{currency}", v.Currency,
	)
	return r.Replace(template)
}
