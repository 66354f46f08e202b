package tokenizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Car Keys", "car keys"},
		{"  café   TABLE ", "cafe table"},
		{"Kitchen-Counter!", "kitchen counter"},
		{"", ""},
		{"...", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Normalize(tt.in), "Normalize(%q)", tt.in)
	}
}

func TestTokens_DropsStopWordsAndDuplicates(t *testing.T) {
	assert.Equal(t, []string{"car", "keys"}, Tokens("My car keys, the keys"))
	assert.Empty(t, Tokens("the"))
}

func TestEditSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, EditSimilarity("Laptop", "laptop"))
	assert.InDelta(t, 0.5, EditSimilarity("car keys", "keys"), 1e-9)
	assert.InDelta(t, 1-1.0/6, EditSimilarity("laptop", "laptap"), 1e-9)
	assert.Less(t, EditSimilarity("mug", "refrigerator"), 0.2)
	assert.Equal(t, 1.0, EditSimilarity("", ""))
}

func TestContainment(t *testing.T) {
	assert.Equal(t, 1.0, Containment("car keys", "keys"))
	assert.Equal(t, 1.0, Containment("keys", "my car keys"))
	assert.Equal(t, 0.5, Containment("red mug", "mug rack shelf"))
	assert.Equal(t, 0.0, Containment("desk", "nightstand"))
	assert.Equal(t, 0.0, Containment("", "desk"))
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, Similarity("Laptop", "laptop "))
	assert.InDelta(t, 0.9, Similarity("car keys", "keys"), 1e-9)
	assert.Equal(t, 0.0, Similarity("", "keys"))
	assert.Less(t, Similarity("desk", "nightstand"), 0.5)

	assert.Equal(t, 1.0, BestSimilarity([]string{"car keys", "keys"}, []string{"Keys"}))
	assert.Equal(t, 0.0, BestSimilarity(nil, []string{"keys"}))
}

func TestJaccard(t *testing.T) {
	assert.Equal(t, 1.0, Jaccard(nil, nil))
	assert.Equal(t, 0.0, Jaccard([]string{"tool"}, nil))
	assert.Equal(t, 1.0, Jaccard([]string{"Tool", "metal"}, []string{"metal", "tool"}))
	assert.InDelta(t, 1.0/3, Jaccard([]string{"a", "b"}, []string{"b", "c"}), 1e-9)
}

func TestMergeSet(t *testing.T) {
	out, added := MergeSet([]string{"car keys"}, []string{"Car Keys", "keys", " keys "})
	assert.Equal(t, []string{"car keys", "keys"}, out)
	assert.Equal(t, 1, added)
}
