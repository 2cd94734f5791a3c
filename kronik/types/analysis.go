package types

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// ErrSchemaViolation is returned when an analysis payload does not match the
// analysis schema exactly.
var ErrSchemaViolation = errors.New("analysis schema violation")

// Category is the closed set of content categories an analysis may assign.
type Category string

const (
	CategoryEntertainment   Category = "ENTERTAINMENT"
	CategoryEducation       Category = "EDUCATION"
	CategoryLifestyle       Category = "LIFESTYLE"
	CategoryFood            Category = "FOOD"
	CategoryCreativity      Category = "CREATIVITY"
	CategoryTravel          Category = "TRAVEL"
	CategoryBusinessFinance Category = "BUSINESS_FINANCE"
	CategoryTech            Category = "TECH"
	CategoryGaming          Category = "GAMING"
	CategorySports          Category = "SPORTS"
	CategoryCultureHistory  Category = "CULTURE_HISTORY"
	CategorySocialIssues    Category = "SOCIAL_ISSUES"
	CategoryMisc            Category = "MISC"
)

// Categories lists every category in prompt order.
func Categories() []Category {
	return []Category{
		CategoryEntertainment, CategoryEducation, CategoryLifestyle, CategoryFood,
		CategoryCreativity, CategoryTravel, CategoryBusinessFinance, CategoryTech,
		CategoryGaming, CategorySports, CategoryCultureHistory, CategorySocialIssues,
		CategoryMisc,
	}
}

func (c Category) Valid() bool {
	switch c {
	case CategoryEntertainment, CategoryEducation, CategoryLifestyle, CategoryFood,
		CategoryCreativity, CategoryTravel, CategoryBusinessFinance, CategoryTech,
		CategoryGaming, CategorySports, CategoryCultureHistory, CategorySocialIssues,
		CategoryMisc:
		return true
	default:
		return false
	}
}

// Analysis is the structured result of analysing one video.
type Analysis struct {
	Transcript string   `json:"transcript"`
	Analysis   string   `json:"analysis"`
	Tags       []string `json:"tags"`
	Category   Category `json:"category"`
	Rating     int      `json:"rating"`
	Like       bool     `json:"like"`
}

// JSON is the one serialization of an Analysis used for sidecar files,
// archives and events. Tags are always emitted as a list.
func (a Analysis) JSON() ([]byte, error) {
	if a.Tags == nil {
		a.Tags = []string{}
	}
	return json.MarshalIndent(a, "", "  ")
}

type analysisWire struct {
	Transcript *string   `json:"transcript"`
	Analysis   *string   `json:"analysis"`
	Tags       *[]string `json:"tags"`
	Category   *string   `json:"category"`
	Rating     *int      `json:"rating"`
	Like       *bool     `json:"like"`
}

// ParseAnalysis decodes data into an Analysis. All six fields are required,
// unknown fields are rejected and the category must belong to the closed set.
func ParseAnalysis(data []byte) (Analysis, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var w analysisWire
	if err := dec.Decode(&w); err != nil {
		return Analysis{}, fmt.Errorf("%w: %v", ErrSchemaViolation, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return Analysis{}, fmt.Errorf("%w: trailing data after object", ErrSchemaViolation)
	}

	var missing []string
	if w.Transcript == nil {
		missing = append(missing, "transcript")
	}
	if w.Analysis == nil {
		missing = append(missing, "analysis")
	}
	if w.Tags == nil {
		missing = append(missing, "tags")
	}
	if w.Category == nil {
		missing = append(missing, "category")
	}
	if w.Rating == nil {
		missing = append(missing, "rating")
	}
	if w.Like == nil {
		missing = append(missing, "like")
	}
	if len(missing) > 0 {
		return Analysis{}, fmt.Errorf("%w: missing fields %v", ErrSchemaViolation, missing)
	}

	category := Category(*w.Category)
	if !category.Valid() {
		return Analysis{}, fmt.Errorf("%w: unknown category %q", ErrSchemaViolation, *w.Category)
	}

	return Analysis{
		Transcript: *w.Transcript,
		Analysis:   *w.Analysis,
		Tags:       *w.Tags,
		Category:   category,
		Rating:     *w.Rating,
		Like:       *w.Like,
	}, nil
}
