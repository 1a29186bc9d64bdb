package domain

import "time"

// RawArticle is a feed entry before classification and deduplication.
type RawArticle struct {
	Title       string
	Summary     string
	URL         string
	SourceFeed  string
	PublishedAt time.Time
}

// Article is the persisted, lifecycle-tracked entity owned by the lifecycle store.
type Article struct {
	ID          int64
	Instance    string
	ContentHash string
	Title       string
	Summary     string
	URL         string
	SourceFeed  string
	Category    Category
	Score       float64
	Method      string
	Embedding   []float32
	Status      Status
	CreatedAt   time.Time
	CreatedDay  string
	DecidedAt   time.Time
}

// Text returns the title and summary joined the way they are embedded and hashed.
func (a Article) Text() string {
	if a.Summary == "" {
		return a.Title
	}
	return a.Title + " " + a.Summary
}

// ArticleVector is the slice of an article the dedup window needs.
type ArticleVector struct {
	ID     int64
	Vector []float32
}

// CandidateQuery narrows pending articles for selection.
type CandidateQuery struct {
	Category Category
	MinScore float64
	Limit    int
}

// Stats is the read-only operator report for one instance.
type Stats struct {
	Instance   string
	Total      int
	ByStatus   map[Status]int
	ByCategory map[Category]int
	Rotation   RotationState
}

// RotationState mirrors the persisted rotation cursor row.
type RotationState struct {
	NextIndex int
	RunCount  int
	UpdatedAt time.Time
}

// PostContent is what a platform receives for one approved article.
type PostContent struct {
	ArticleID int64
	Title     string
	Text      string
	Link      string
}

// PostReceipt is returned by a platform after a successful post.
type PostReceipt struct {
	Platform string
	PostID   string
	URL      string
}

// PublishRecord is appended to the publish log after every platform attempt.
type PublishRecord struct {
	Instance  string
	ArticleID int64
	Platform  string
	PostID    string
	Status    Status
	Error     string
	CreatedAt time.Time
}

// ProviderBlock marks a provider rate-limited for one calendar day.
type ProviderBlock struct {
	Instance    string
	Provider    string
	BlockedDate string
	CreatedAt   time.Time
}
