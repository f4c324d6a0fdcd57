package extract

import "time"

// Record kinds as stored in documents and used as store collections.
const (
	KindPin     = "pin"
	KindBoard   = "board"
	KindProject = "project"
)

// PinRecord is a single pinned image with its description and source link.
type PinRecord struct {
	ItemKey     ItemKey
	URL         string
	Description string
	AltText     string
	Link        string
	BoardKey    ItemKey
	Images      []MediaReference
	SaveCount   int
	Complete    bool
	ExtractedAt time.Time
}

func (p *PinRecord) Key() ItemKey            { return p.ItemKey }
func (p *PinRecord) Kind() string            { return KindPin }
func (p *PinRecord) Title() string           { return p.Description }
func (p *PinRecord) Owner() string           { return string(p.BoardKey) }
func (p *PinRecord) Media() []MediaReference { return p.Images }

func (p *PinRecord) Document() map[string]any {
	return map[string]any{
		"key":          string(p.ItemKey),
		"kind":         KindPin,
		"url":          p.URL,
		"description":  p.Description,
		"alt_text":     p.AltText,
		"link":         p.Link,
		"board_key":    string(p.BoardKey),
		"images":       mediaURLs(p.Images),
		"save_count":   p.SaveCount,
		"complete":     p.Complete,
		"extracted_at": p.ExtractedAt,
	}
}

// BoardRecord is a collection of pins owned by a profile.
type BoardRecord struct {
	ItemKey     ItemKey
	URL         string
	Name        string
	OwnerKey    ItemKey
	PinCount    int
	Cover       []MediaReference
	Complete    bool
	ExtractedAt time.Time
}

func (b *BoardRecord) Key() ItemKey            { return b.ItemKey }
func (b *BoardRecord) Kind() string            { return KindBoard }
func (b *BoardRecord) Title() string           { return b.Name }
func (b *BoardRecord) Owner() string           { return string(b.OwnerKey) }
func (b *BoardRecord) Media() []MediaReference { return b.Cover }

func (b *BoardRecord) Document() map[string]any {
	return map[string]any{
		"key":          string(b.ItemKey),
		"kind":         KindBoard,
		"url":          b.URL,
		"name":         b.Name,
		"owner_key":    string(b.OwnerKey),
		"pin_count":    b.PinCount,
		"cover":        mediaURLs(b.Cover),
		"complete":     b.Complete,
		"extracted_at": b.ExtractedAt,
	}
}

// ProjectRecord is a gallery-style portfolio entry with multiple assets and
// engagement counters.
type ProjectRecord struct {
	ItemKey     ItemKey
	URL         string
	Name        string
	OwnerKey    ItemKey
	Assets      []MediaReference
	Likes       int
	Views       int
	Complete    bool
	ExtractedAt time.Time
}

func (p *ProjectRecord) Key() ItemKey            { return p.ItemKey }
func (p *ProjectRecord) Kind() string            { return KindProject }
func (p *ProjectRecord) Title() string           { return p.Name }
func (p *ProjectRecord) Owner() string           { return string(p.OwnerKey) }
func (p *ProjectRecord) Media() []MediaReference { return p.Assets }

func (p *ProjectRecord) Document() map[string]any {
	return map[string]any{
		"key":          string(p.ItemKey),
		"kind":         KindProject,
		"url":          p.URL,
		"name":         p.Name,
		"owner_key":    string(p.OwnerKey),
		"assets":       mediaURLs(p.Assets),
		"likes":        p.Likes,
		"views":        p.Views,
		"complete":     p.Complete,
		"extracted_at": p.ExtractedAt,
	}
}

func mediaURLs(refs []MediaReference) []string {
	urls := make([]string, len(refs))
	for i, r := range refs {
		urls[i] = r.SourceURL
	}
	return urls
}
