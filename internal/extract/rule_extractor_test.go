package extract

import (
	"testing"

	"github.com/DrunkOnJava/ingestor-service/internal/probe"
	"github.com/DrunkOnJava/ingestor-service/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRuleExtractor_Prose_FindsPersonAndDate(t *testing.T) {
	r := NewRuleExtractor()
	text := "Marie Curie won the Nobel Prize on December 10, 1903."
	result := r.Extract(text, probe.KindText, Options{})
	require.True(t, result.Success)

	var foundPerson, foundDate bool
	for _, e := range result.Entities {
		if e.Name == "Marie Curie" && e.Type == store.EntityTypePerson {
			foundPerson = true
		}
		if e.Type == store.EntityTypeDate {
			foundDate = true
		}
	}
	assert.True(t, foundPerson)
	assert.True(t, foundDate)
}

func TestRuleExtractor_Prose_RespectsEntityTypesFilter(t *testing.T) {
	r := NewRuleExtractor()
	text := "Marie Curie won the Nobel Prize on December 10, 1903."
	result := r.Extract(text, probe.KindText, Options{EntityTypes: []store.EntityType{store.EntityTypeDate}})
	for _, e := range result.Entities {
		assert.Equal(t, store.EntityTypeDate, e.Type)
	}
}

func TestRuleExtractor_Code_FindsFunctionAndClass(t *testing.T) {
	r := NewRuleExtractor()
	text := "class Widget:\n    def build(self):\n        pass\n"
	result := r.Extract(text, probe.KindCodePython, Options{})
	require.True(t, result.Success)

	var foundClass, foundFunc bool
	for _, e := range result.Entities {
		if e.Name == "Widget" {
			foundClass = true
		}
		if e.Name == "build" {
			foundFunc = true
		}
		assert.Equal(t, store.EntityTypeTechnology, e.Type)
	}
	assert.True(t, foundClass)
	assert.True(t, foundFunc)
}

func TestRuleExtractor_Prose_AcmeCorporationScenario(t *testing.T) {
	r := NewRuleExtractor()
	text := "John Smith is the CEO of Acme Corporation in New York. The company was founded on January 15, 2010."
	result := r.Extract(text, probe.KindText, Options{})
	require.True(t, result.Success)

	var foundPerson, foundOrg bool
	for _, e := range result.Entities {
		if e.Name == "John Smith" && e.Type == store.EntityTypePerson {
			foundPerson = true
		}
		if e.Name == "Acme Corporation" && e.Type == store.EntityTypeOrganization {
			foundOrg = true
		}
	}
	assert.True(t, foundPerson, "expected (John Smith, person)")
	assert.True(t, foundOrg, "expected (Acme Corporation, organization)")
}

func TestRuleExtractor_JSON_TechCorpScenario(t *testing.T) {
	r := NewRuleExtractor()
	text := `{"company":"TechCorp","founded":"2015-03-22","headquarters":"Seattle"}`
	result := r.Extract(text, probe.KindJSON, Options{})
	require.True(t, result.Success)

	var foundOrg, foundLocation, foundDate bool
	for _, e := range result.Entities {
		switch {
		case e.Name == "TechCorp" && e.Type == store.EntityTypeOrganization:
			foundOrg = true
		case e.Name == "Seattle" && e.Type == store.EntityTypeLocation:
			foundLocation = true
		case e.Name == "2015-03-22" && e.Type == store.EntityTypeDate:
			foundDate = true
		}
	}
	assert.True(t, foundOrg, "expected (TechCorp, organization)")
	assert.True(t, foundLocation, "expected (Seattle, location)")
	assert.True(t, foundDate, "expected (2015-03-22, date)")
}

func TestRuleExtractor_JSON_WalksKeysAndValues(t *testing.T) {
	r := NewRuleExtractor()
	text := `{"author": "Ada Lovelace", "city": "London"}`
	result := r.Extract(text, probe.KindJSON, Options{})
	require.True(t, result.Success)
	require.NotEmpty(t, result.Entities)
}

func TestRuleExtractor_JSON_InvalidReturnsFailure(t *testing.T) {
	r := NewRuleExtractor()
	result := r.Extract(`{not json`, probe.KindJSON, Options{})
	assert.False(t, result.Success)
	assert.NotEmpty(t, result.Error)
}

func TestRuleExtractor_XML_WalksElementText(t *testing.T) {
	r := NewRuleExtractor()
	text := `<root><author>Grace Hopper</author></root>`
	result := r.Extract(text, probe.KindXML, Options{})
	require.True(t, result.Success)
	require.NotEmpty(t, result.Entities)
	assert.Equal(t, "Grace Hopper", result.Entities[0].Name)
}

func TestRuleExtractor_ImageAndVideo_ReturnEmptySuccess(t *testing.T) {
	r := NewRuleExtractor()
	for _, k := range []probe.Kind{probe.KindImage, probe.KindVideo, probe.KindAudio} {
		result := r.Extract("irrelevant", k, Options{})
		assert.True(t, result.Success)
		assert.Empty(t, result.Entities)
	}
}
