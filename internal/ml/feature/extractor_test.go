package feature

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"ghar-khoj-ml-go/internal/config"
	"ghar-khoj-ml-go/internal/model"
)

func testBuckets() config.RentBucketsConfig {
	return config.RentBucketsConfig{
		VeryLow: 5000,
		Low:     10000,
		Medium:  20000,
		High:    30000,
	}
}

func newTestExtractor() *Extractor {
	return NewExtractor(NewSnowballStemmer(), testBuckets())
}

func TestExtractNilListing(t *testing.T) {
	e := newTestExtractor()
	assert.Nil(t, e.Extract(nil))
}

func TestExtractStructuredFeatures(t *testing.T) {
	e := newTestExtractor()
	listing := &model.Listing{
		Title:       "Spacious apartment",
		Description: "Near Patan Campus with parking",
		City:        "Kathmandu",
		CollegeName: "Patan Campus",
		Type:        "apartment",
		Furnished:   "semi furnished",
		Bedrooms:    2,
		Bathrooms:   1,
		RentAmount:  15000,
		Amenities:   model.StringList{"WiFi", "Hot Water"},
	}

	features := e.Extract(listing)

	assert.Contains(t, features, "city_kathmandu")
	assert.Contains(t, features, "college_patan_campus")
	assert.Contains(t, features, "bedrooms_2")
	assert.Contains(t, features, "bathrooms_1")
	assert.Contains(t, features, "type_apartment")
	assert.Contains(t, features, "furnished_semi_furnished")
	assert.Contains(t, features, "amenity_wifi")
	assert.Contains(t, features, "amenity_hot_water")
	assert.Contains(t, features, "rent_medium")
}

func TestExtractMissingFieldsProduceNoTags(t *testing.T) {
	e := newTestExtractor()
	features := e.Extract(&model.Listing{Title: "room"})

	for _, f := range features {
		assert.NotContains(t, f, "city_")
		assert.NotContains(t, f, "bedrooms_")
		assert.NotContains(t, f, "rent_")
	}
}

func TestExtractKeepsDuplicateTokens(t *testing.T) {
	e := newTestExtractor()
	listing := &model.Listing{
		Title:       "sunny sunny room",
		Description: "sunny",
	}

	features := e.Extract(listing)
	count := 0
	for _, f := range features {
		if f == "sunni" { // snowball 词干
			count++
		}
	}
	assert.Equal(t, 3, count, "重复词必须保留词频")
}

func TestTokenizeFiltersShortAndNumeric(t *testing.T) {
	e := newTestExtractor()
	tokens := e.tokenize("A 25 of in room near 12345 bus-stop")

	assert.NotContains(t, tokens, "a")
	assert.NotContains(t, tokens, "25")
	assert.NotContains(t, tokens, "12345")
	assert.NotContains(t, tokens, "of")
	assert.Contains(t, tokens, "room")
	assert.Contains(t, tokens, "bus")
	assert.Contains(t, tokens, "stop")
}

func TestRentBucketBoundaries(t *testing.T) {
	e := newTestExtractor()
	cases := []struct {
		rent float64
		want string
	}{
		{4999, "very_low"},
		{5000, "low"},
		{9999, "low"},
		{10000, "medium"},
		{19999, "medium"},
		{20000, "high"},
		{29999, "high"},
		{30000, "very_high"},
		{100000, "very_high"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, e.rentBucket(tc.rent), "rent=%v", tc.rent)
	}
}

func TestStemmerFallsBackOnUnstemmableToken(t *testing.T) {
	s := NewSnowballStemmer()
	assert.Equal(t, "apart", s.Stem("apartment"))
	assert.NotEmpty(t, s.Stem("xyzzy"))
}
