package classifier

import (
	"log/slog"

	"github.com/ajitpratap0/spatial-cortex/internal/models"
	"github.com/ajitpratap0/spatial-cortex/pkg/tokenizer"
)

// Classifier infers the type of an entity from how it is described.
type Classifier interface {
	Classify(name, description string) models.EntityType
}

// HeuristicClassifier uses keyword rules for classification.
type HeuristicClassifier struct {
	logger *slog.Logger
}

// NewClassifier creates a new heuristic-based classifier.
func NewClassifier(logger *slog.Logger) *HeuristicClassifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &HeuristicClassifier{logger: logger}
}

// containerPatterns name things other things are kept in.
var containerPatterns = []string{
	"box", "bin", "drawer", "cabinet", "cupboard", "bowl", "basket", "bag",
	"crate", "jar", "closet", "wardrobe", "fridge", "refrigerator", "toolbox",
	"chest", "case", "locker",
}

// surfacePatterns name things other things rest on.
var surfacePatterns = []string{
	"table", "desk", "counter", "countertop", "shelf", "nightstand", "bench",
	"workbench", "floor", "tray", "stand", "dresser", "windowsill", "mantel",
}

// spacePatterns name rooms and areas.
var spacePatterns = []string{
	"room", "kitchen", "bedroom", "bathroom", "garage", "hallway", "office",
	"attic", "basement", "workshop", "area", "zone", "yard", "porch", "corridor",
}

// equipmentPatterns name powered or operated machinery.
var equipmentPatterns = []string{
	"machine", "drill", "saw", "printer", "lathe", "oven", "microwave",
	"kettle", "compressor", "router", "washer", "dryer", "dishwasher",
	"computer", "monitor", "tv", "television", "vacuum", "press",
}

// landmarkPatterns name fixed reference points.
var landmarkPatterns = []string{
	"door", "doorway", "window", "stairs", "staircase", "entrance", "exit",
	"gate", "wall", "corner", "pillar", "column", "fireplace", "elevator",
}

// objectPatterns name small movable items.
var objectPatterns = []string{
	"tool", "part", "product", "keys", "key", "mug", "cup", "phone", "laptop",
	"book", "pen", "wallet", "glasses", "remote", "charger", "bottle", "hammer",
	"screwdriver", "wrench", "scissors",
}

var rules = []struct {
	t        models.EntityType
	patterns []string
}{
	{models.EntityTypeContainer, containerPatterns},
	{models.EntityTypeSurface, surfacePatterns},
	{models.EntityTypeSpace, spacePatterns},
	{models.EntityTypeEquipment, equipmentPatterns},
	{models.EntityTypeLandmark, landmarkPatterns},
	{models.EntityTypeObject, objectPatterns},
}

// nameWeight makes a keyword in the name outweigh the same keyword in the
// description.
const nameWeight = 3

// Classify scores name and description words against each rule list and
// returns the best type, or EntityTypeUnknown when nothing matches. Ties go
// to the earlier rule.
func (c *HeuristicClassifier) Classify(name, description string) models.EntityType {
	nameWords := wordSet(name)
	descWords := wordSet(description)

	bestType := models.EntityTypeUnknown
	bestScore := 0
	for _, rule := range rules {
		score := 0
		for _, p := range rule.patterns {
			if nameWords[p] {
				score += nameWeight
			}
			if descWords[p] {
				score++
			}
		}
		if score > bestScore {
			bestScore = score
			bestType = rule.t
		}
	}

	c.logger.Debug("classified entity", "type", bestType, "score", bestScore, "name", truncate(name, 60))
	return bestType
}

func wordSet(s string) map[string]bool {
	words := tokenizer.Tokens(s)
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
	}
	return set
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) > n {
		return string(runes[:n]) + "..."
	}
	return s
}
