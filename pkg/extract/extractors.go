package extract

import (
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"pinharvest/pkg/errors"
)

// Selector fallback chains. Site markup changes frequently, so each field is
// resolved by the first selector that matches.
var (
	pinImageSelectors = []string{
		`img[srcset]`,
		`div[data-test-id="pin-closeup-image"] img`,
		`img[src]`,
	}
	pinDescriptionSelectors = []string{
		`[data-test-id="pin-description"]`,
		`h1`,
		`[data-test-id="pinTitle"]`,
	}
	pinLinkSelectors = []string{
		`a[data-test-id="pin-closeup-link"]`,
		`a[href]`,
	}
	pinSaveCountSelectors = []string{
		`[data-test-id="save-count"]`,
		`[data-test-id="socialCount"]`,
	}

	boardNameSelectors = []string{
		`[data-test-id="board-name"] h1`,
		`h1`,
		`a[title]`,
	}
	boardCountSelectors = []string{
		`[data-test-id="pin-count"]`,
		`[data-test-id="board-count"]`,
	}
	boardCoverSelectors = []string{
		`[data-test-id="board-cover"] img`,
		`img[src]`,
	}

	projectNameSelectors = []string{
		`.project-title`,
		`[data-id="project-title"]`,
		`h1`,
	}
	projectOwnerSelectors = []string{
		`.project-owner a[href]`,
		`a.owner-link`,
	}
	projectAssetSelectors = []string{
		`.project-module img[src]`,
		`.project-content img[src]`,
		`img[src]`,
	}
	projectLikeSelectors = []string{
		`.project-stats .likes`,
		`[data-id="appreciations"]`,
	}
	projectViewSelectors = []string{
		`.project-stats .views`,
		`[data-id="views"]`,
	}
)

// ParseCount converts a display counter like "1.2k", "3.4M" or "1,234" into
// an integer. Unparseable input yields zero.
func ParseCount(s string) int {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return 0
	}
	// Keep only the leading numeric token, e.g. "1.2k saves" -> "1.2k".
	if idx := strings.IndexByte(s, ' '); idx > 0 {
		s = s[:idx]
	}
	s = strings.ReplaceAll(s, ",", "")

	multiplier := 1.0
	switch {
	case strings.HasSuffix(s, "k"):
		multiplier = 1_000
		s = strings.TrimSuffix(s, "k")
	case strings.HasSuffix(s, "m"):
		multiplier = 1_000_000
		s = strings.TrimSuffix(s, "m")
	case strings.HasSuffix(s, "b"):
		multiplier = 1_000_000_000
		s = strings.TrimSuffix(s, "b")
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return int(v * multiplier)
}

// parseItem parses the snapshot HTML, rejecting empty snapshots outright.
func parseItem(item Item) (*goquery.Document, error) {
	if strings.TrimSpace(item.HTML) == "" {
		return nil, errors.NewExtractionError("empty snapshot for "+string(item.Key), nil)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(item.HTML))
	if err != nil {
		return nil, errors.NewExtractionError("unparseable snapshot for "+string(item.Key), err)
	}
	return doc, nil
}

// firstMatch returns the first selection matched by any selector in order.
func firstMatch(doc *goquery.Document, selectors []string) *goquery.Selection {
	for _, sel := range selectors {
		if s := doc.Find(sel).First(); s.Length() > 0 {
			return s
		}
	}
	return nil
}

func firstText(doc *goquery.Document, selectors []string) string {
	if s := firstMatch(doc, selectors); s != nil {
		return strings.TrimSpace(s.Text())
	}
	return ""
}

func firstAttr(doc *goquery.Document, selectors []string, attr string) string {
	if s := firstMatch(doc, selectors); s != nil {
		return strings.TrimSpace(s.AttrOr(attr, ""))
	}
	return ""
}

// largestFromSrcset picks the last (largest) candidate of a srcset value.
func largestFromSrcset(srcset string) string {
	candidates := strings.Split(srcset, ",")
	if len(candidates) == 0 {
		return ""
	}
	last := strings.TrimSpace(candidates[len(candidates)-1])
	if idx := strings.IndexByte(last, ' '); idx > 0 {
		last = last[:idx]
	}
	return last
}

// imageRef builds a media reference from an img selection, preferring the
// largest srcset candidate over the plain src.
func imageRef(s *goquery.Selection, owner ItemKey) (MediaReference, bool) {
	src := ""
	if srcset, ok := s.Attr("srcset"); ok {
		src = largestFromSrcset(srcset)
	}
	if src == "" {
		src = strings.TrimSpace(s.AttrOr("src", ""))
	}
	if src == "" {
		return MediaReference{}, false
	}

	ref := MediaReference{SourceURL: src, OwnerKey: owner}
	if w, err := strconv.Atoi(s.AttrOr("width", "")); err == nil {
		ref.Width = w
	}
	if h, err := strconv.Atoi(s.AttrOr("height", "")); err == nil {
		ref.Height = h
	}
	return ref, true
}

// PinExtractor extracts pin records from closeup or grid snapshots.
type PinExtractor struct{}

func (PinExtractor) Extract(item Item) (Record, error) {
	doc, err := parseItem(item)
	if err != nil {
		return nil, err
	}

	rec := &PinRecord{
		ItemKey:     item.Key,
		URL:         item.URL,
		Description: firstText(doc, pinDescriptionSelectors),
		Link:        firstAttr(doc, pinLinkSelectors, "href"),
		SaveCount:   ParseCount(firstText(doc, pinSaveCountSelectors)),
		ExtractedAt: time.Now().UTC(),
	}

	if s := firstMatch(doc, pinImageSelectors); s != nil {
		rec.AltText = strings.TrimSpace(s.AttrOr("alt", ""))
		if ref, ok := imageRef(s, item.Key); ok {
			rec.Images = append(rec.Images, ref)
		}
	}

	if len(rec.Images) == 0 {
		return nil, errors.NewExtractionError("no image found for pin "+string(item.Key), nil)
	}
	rec.Complete = rec.Description != "" && rec.Link != ""
	return rec, nil
}

// BoardExtractor extracts board records from board listing snapshots.
type BoardExtractor struct{}

func (BoardExtractor) Extract(item Item) (Record, error) {
	doc, err := parseItem(item)
	if err != nil {
		return nil, err
	}

	rec := &BoardRecord{
		ItemKey:     item.Key,
		URL:         item.URL,
		Name:        firstText(doc, boardNameSelectors),
		PinCount:    ParseCount(firstText(doc, boardCountSelectors)),
		ExtractedAt: time.Now().UTC(),
	}

	if s := firstMatch(doc, boardCoverSelectors); s != nil {
		if ref, ok := imageRef(s, item.Key); ok {
			rec.Cover = append(rec.Cover, ref)
		}
	}

	if rec.Name == "" {
		return nil, errors.NewExtractionError("no name found for board "+string(item.Key), nil)
	}
	rec.Complete = rec.PinCount > 0
	return rec, nil
}

// ProjectExtractor extracts gallery project records.
type ProjectExtractor struct{}

func (ProjectExtractor) Extract(item Item) (Record, error) {
	doc, err := parseItem(item)
	if err != nil {
		return nil, err
	}

	rec := &ProjectRecord{
		ItemKey:     item.Key,
		URL:         item.URL,
		Name:        firstText(doc, projectNameSelectors),
		Likes:       ParseCount(firstText(doc, projectLikeSelectors)),
		Views:       ParseCount(firstText(doc, projectViewSelectors)),
		ExtractedAt: time.Now().UTC(),
	}

	if owner := firstAttr(doc, projectOwnerSelectors, "href"); owner != "" {
		rec.OwnerKey = NormalizeKey(owner)
	}

	for _, sel := range projectAssetSelectors {
		doc.Find(sel).Each(func(_ int, s *goquery.Selection) {
			if ref, ok := imageRef(s, item.Key); ok {
				rec.Assets = append(rec.Assets, ref)
			}
		})
		if len(rec.Assets) > 0 {
			break
		}
	}

	if rec.Name == "" && len(rec.Assets) == 0 {
		return nil, errors.NewExtractionError("nothing extractable for project "+string(item.Key), nil)
	}
	rec.Complete = rec.Name != "" && len(rec.Assets) > 0 && rec.OwnerKey != ""
	return rec, nil
}

// ForKind returns the extractor matching a record kind.
func ForKind(kind string) Extractor {
	switch kind {
	case KindBoard:
		return BoardExtractor{}
	case KindProject:
		return ProjectExtractor{}
	default:
		return PinExtractor{}
	}
}
