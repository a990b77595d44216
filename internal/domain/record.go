package domain

import "time"

// RecordFields is the fixed column order shared by every sink.
var RecordFields = []string{
	"id",
	"timestamp",
	"author",
	"url",
	"content",
	"weight",
	"positive",
	"neutral",
	"negative",
}

// Post is a raw item yielded by a search source.
type Post struct {
	ID        string
	Timestamp time.Time
	Author    string
	URL       string
	Content   string
}

// Sentiment holds the three classifier scores for one text.
type Sentiment struct {
	Positive float64 `json:"positive"`
	Neutral  float64 `json:"neutral"`
	Negative float64 `json:"negative"`
}

// Record is a fully scored post, ready for a sink.
type Record struct {
	Post
	Weight   float64
	Positive float64
	Neutral  float64
	Negative float64
}

// NewRecord assembles a record once both scoring steps have succeeded.
func NewRecord(post Post, weight float64, s Sentiment) Record {
	return Record{
		Post:     post,
		Weight:   weight,
		Positive: s.Positive,
		Neutral:  s.Neutral,
		Negative: s.Negative,
	}
}

// Values returns the record fields in RecordFields order.
func (r Record) Values() []any {
	return []any{
		r.ID,
		r.Timestamp.UTC(),
		r.Author,
		r.URL,
		r.Content,
		r.Weight,
		r.Positive,
		r.Neutral,
		r.Negative,
	}
}
