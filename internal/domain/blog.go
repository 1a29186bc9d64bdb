package domain

// BlogPost is a generated draft ready for review and publishing.
type BlogPost struct {
	ArticleID       int64
	Title           string
	BodyHTML        string
	Tags            []string
	MetaDescription string
	CategoryHint    string
	FBSummary       string
	Provider        string
	SourceURL       string
}
