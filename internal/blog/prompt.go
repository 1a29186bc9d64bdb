// Package blog turns a source article into a long-form blog draft.
package blog

import (
	"fmt"
	"strings"
)

// DefaultMaxSourceChars caps how much fetched page text goes into a prompt.
const DefaultMaxSourceChars = 6000

// PromptOptions shape the generated draft for one instance.
type PromptOptions struct {
	Display        string
	Language       string
	Tone           string
	MinWords       int
	MaxWords       int
	MaxSourceChars int
}

func (o PromptOptions) withDefaults() PromptOptions {
	if o.Language == "" {
		o.Language = "English"
	}
	if o.Tone == "" {
		o.Tone = "informative and neutral"
	}
	if o.MinWords <= 0 {
		o.MinWords = 600
	}
	if o.MaxWords < o.MinWords {
		o.MaxWords = o.MinWords * 2
	}
	if o.MaxSourceChars <= 0 {
		o.MaxSourceChars = DefaultMaxSourceChars
	}
	return o
}

// Source is the article a draft is written from.
type Source struct {
	Title   string
	URL     string
	Content string
}

// BuildPrompt renders the generation prompt. The model is asked for a single JSON object.
func BuildPrompt(opts PromptOptions, src Source) string {
	opts = opts.withDefaults()
	content := truncateRunes(strings.TrimSpace(src.Content), opts.MaxSourceChars)

	var b strings.Builder
	fmt.Fprintf(&b, "You are a professional blog writer for %q.\n", opts.Display)
	b.WriteString("Write an original blog post based on the source article below.\n\n")
	fmt.Fprintf(&b, "SOURCE TITLE: %s\n", src.Title)
	fmt.Fprintf(&b, "SOURCE URL: %s\n", src.URL)
	fmt.Fprintf(&b, "SOURCE CONTENT:\n%s\n\n", content)
	b.WriteString("Requirements:\n")
	fmt.Fprintf(&b, "- Language: %s\n", opts.Language)
	fmt.Fprintf(&b, "- Tone: %s\n", opts.Tone)
	fmt.Fprintf(&b, "- Length: %d to %d words\n", opts.MinWords, opts.MaxWords)
	b.WriteString("- Use HTML tags <h2>, <p>, <ul>, <li>, <strong> for structure\n")
	b.WriteString("- Do not copy sentences verbatim from the source\n")
	b.WriteString("- Mention the original source with a link at the end\n\n")
	b.WriteString("Respond with JSON only, no markdown, using exactly these keys:\n")
	b.WriteString(`{"title": "...", "body_html": "...", "meta_description": "...", "tags": ["..."], "category_hint": "...", "fb_summary": "..."}`)
	b.WriteString("\n")
	b.WriteString("fb_summary is two or three sentences for social media and must end with the source URL.\n")
	return b.String()
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
