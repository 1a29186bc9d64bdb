package blog

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"NewsRelay/internal/domain"
)

const (
	// MinBodyChars is the shortest body_html accepted as a real post.
	MinBodyChars = 200
	// MaxTags caps the tag list sent to the blog.
	MaxTags = 10
	// MaxMetaChars caps the meta description.
	MaxMetaChars = 155
)

// ErrInvalidDraft is returned when generated text is not a usable draft.
var ErrInvalidDraft = errors.New("invalid blog draft")

type rawDraft struct {
	Title           string   `json:"title"`
	BodyHTML        string   `json:"body_html"`
	MetaDescription string   `json:"meta_description"`
	Tags            []string `json:"tags"`
	CategoryHint    string   `json:"category_hint"`
	FBSummary       string   `json:"fb_summary"`
}

// ParseDraft extracts and validates the JSON draft from raw model output.
func ParseDraft(raw string) (domain.BlogPost, error) {
	text := stripFences(raw)

	var draft rawDraft
	if err := json.Unmarshal([]byte(text), &draft); err != nil {
		obj, ok := firstObject(text)
		if !ok {
			return domain.BlogPost{}, fmt.Errorf("%w: no json object", ErrInvalidDraft)
		}
		if err := json.Unmarshal([]byte(obj), &draft); err != nil {
			return domain.BlogPost{}, fmt.Errorf("%w: decode: %v", ErrInvalidDraft, err)
		}
	}

	if err := validate(draft); err != nil {
		return domain.BlogPost{}, err
	}

	tags := make([]string, 0, len(draft.Tags))
	for _, tag := range draft.Tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		tags = append(tags, tag)
		if len(tags) == MaxTags {
			break
		}
	}

	return domain.BlogPost{
		Title:           strings.TrimSpace(draft.Title),
		BodyHTML:        strings.TrimSpace(draft.BodyHTML),
		Tags:            tags,
		MetaDescription: truncateRunes(strings.TrimSpace(draft.MetaDescription), MaxMetaChars),
		CategoryHint:    strings.TrimSpace(draft.CategoryHint),
		FBSummary:       strings.TrimSpace(draft.FBSummary),
	}, nil
}

func validate(d rawDraft) error {
	var missing []string
	if strings.TrimSpace(d.Title) == "" {
		missing = append(missing, "title")
	}
	if strings.TrimSpace(d.BodyHTML) == "" {
		missing = append(missing, "body_html")
	}
	if len(d.Tags) == 0 {
		missing = append(missing, "tags")
	}
	if strings.TrimSpace(d.FBSummary) == "" {
		missing = append(missing, "fb_summary")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalidDraft, strings.Join(missing, ", "))
	}
	if n := len([]rune(strings.TrimSpace(d.BodyHTML))); n < MinBodyChars {
		return fmt.Errorf("%w: body_html too short (%d chars)", ErrInvalidDraft, n)
	}
	return nil
}

func stripFences(raw string) string {
	text := strings.TrimSpace(raw)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimPrefix(text, "json")
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}

// firstObject returns the span from the first '{' to the last '}'.
func firstObject(text string) (string, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return text[start : end+1], true
}
