package classifier

import (
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ajitpratap0/spatial-cortex/internal/models"
)

func newTestClassifier() *HeuristicClassifier {
	return NewClassifier(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})))
}

func TestClassifier_ClassifyByName(t *testing.T) {
	cls := newTestClassifier()

	tests := []struct {
		name     string
		entity   string
		expected models.EntityType
	}{
		{name: "container", entity: "red toolbox", expected: models.EntityTypeContainer},
		{name: "surface", entity: "oak desk", expected: models.EntityTypeSurface},
		{name: "space", entity: "Garage", expected: models.EntityTypeSpace},
		{name: "equipment", entity: "cordless drill", expected: models.EntityTypeEquipment},
		{name: "landmark", entity: "the front door", expected: models.EntityTypeLandmark},
		{name: "object", entity: "car keys", expected: models.EntityTypeObject},
		{name: "punctuation ignored", entity: "Coffee-Mug!", expected: models.EntityTypeObject},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, cls.Classify(tt.entity, ""))
		})
	}
}

func TestClassifier_DescriptionFallback(t *testing.T) {
	cls := newTestClassifier()

	assert.Equal(t, models.EntityTypeObject, cls.Classify("widget", "a spare part"))
	assert.Equal(t, models.EntityTypeContainer, cls.Classify("the blue one", "plastic crate with lid"))
}

func TestClassifier_NameOutweighsDescription(t *testing.T) {
	cls := newTestClassifier()

	// one name keyword beats two description keywords
	assert.Equal(t, models.EntityTypeEquipment, cls.Classify("printer", "sits on the desk by the shelf"))
}

func TestClassifier_TieGoesToEarlierRule(t *testing.T) {
	cls := newTestClassifier()

	// "kitchen" and "counter" score the same; surfaces rank before spaces
	assert.Equal(t, models.EntityTypeSurface, cls.Classify("kitchen counter", ""))
}

func TestClassifier_Unknown(t *testing.T) {
	cls := newTestClassifier()

	assert.Equal(t, models.EntityTypeUnknown, cls.Classify("thingamajig", "nobody knows"))
	assert.Equal(t, models.EntityTypeUnknown, cls.Classify("", ""))
	// substrings do not count as keywords
	assert.Equal(t, models.EntityTypeUnknown, cls.Classify("boxer", ""))
}

func TestClassifier_NilLogger(t *testing.T) {
	cls := NewClassifier(nil)
	assert.Equal(t, models.EntityTypeSpace, cls.Classify("bedroom", ""))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abc...", truncate("abcdef", 3))
	assert.Equal(t, "ßß...", truncate("ßßßß", 2))
}
