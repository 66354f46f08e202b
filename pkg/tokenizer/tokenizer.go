// Package tokenizer normalizes free-text entity labels and scores how close
// two labels are.
package tokenizer

import (
	"strings"
	"unicode"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stopWords carry no identity: "the keys" and "my keys" name the same thing.
var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "my": {}, "our": {}, "your": {}, "his": {}, "her": {}, "their": {}, "of": {},
}

// Normalize folds case, strips diacritics and punctuation, and collapses
// whitespace. Two labels that normalize equal are an exact name match.
func Normalize(s string) string {
	// transformers carry state, so one chain per call
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, s)
	if err != nil {
		stripped = s
	}
	folded := cases.Fold().String(stripped)

	var b strings.Builder
	b.Grow(len(folded))
	space := true
	for _, r := range folded {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			space = false
			continue
		}
		if !space {
			b.WriteByte(' ')
			space = true
		}
	}
	return strings.TrimSpace(b.String())
}

// Tokens returns the distinct normalized words of s, minus stop words.
func Tokens(s string) []string {
	fields := strings.Fields(Normalize(s))
	seen := make(map[string]struct{}, len(fields))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if _, stop := stopWords[f]; stop {
			continue
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}

// EditSimilarity is 1 - levenshtein(a, b) / max(len(a), len(b)) over the
// normalized labels, in [0,1].
func EditSimilarity(a, b string) float64 {
	na, nb := Normalize(a), Normalize(b)
	if na == nb {
		return 1
	}
	longest := max(len([]rune(na)), len([]rune(nb)))
	if longest == 0 {
		return 1
	}
	d := fuzzy.LevenshteinDistance(na, nb)
	return 1 - float64(d)/float64(longest)
}

// Containment is the share of the smaller token set found in the larger one.
// "keys" is fully contained in "car keys".
func Containment(a, b string) float64 {
	ta, tb := Tokens(a), Tokens(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	if len(ta) > len(tb) {
		ta, tb = tb, ta
	}
	set := make(map[string]struct{}, len(tb))
	for _, t := range tb {
		set[t] = struct{}{}
	}
	hit := 0
	for _, t := range ta {
		if _, ok := set[t]; ok {
			hit++
		}
	}
	return float64(hit) / float64(len(ta))
}

// ContainmentDiscount keeps a token-containment match below an exact match.
const ContainmentDiscount = 0.9

// Similarity scores two labels in [0,1]: 1 on a normalized exact match,
// otherwise the better of edit similarity and discounted token containment.
func Similarity(a, b string) float64 {
	na, nb := Normalize(a), Normalize(b)
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 1
	}
	return max(EditSimilarity(na, nb), ContainmentDiscount*Containment(na, nb))
}

// BestSimilarity is the highest Similarity over every pair of labels.
func BestSimilarity(as, bs []string) float64 {
	best := 0.0
	for _, a := range as {
		for _, b := range bs {
			if s := Similarity(a, b); s > best {
				best = s
				if best == 1 {
					return best
				}
			}
		}
	}
	return best
}

// Jaccard returns |A∩B| / |A∪B| over normalized items. Two empty sets are
// identical and score 1.
func Jaccard(a, b []string) float64 {
	sa, sb := normSet(a), normSet(b)
	if len(sa) == 0 && len(sb) == 0 {
		return 1
	}
	inter := 0
	for k := range sa {
		if _, ok := sb[k]; ok {
			inter++
		}
	}
	union := len(sa) + len(sb) - inter
	return float64(inter) / float64(union)
}

// MergeSet appends the items of add missing from base, comparing normalized
// forms, and reports how many were added. Order of base is preserved.
func MergeSet(base, add []string) ([]string, int) {
	seen := normSet(base)
	added := 0
	for _, s := range add {
		k := Normalize(s)
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		base = append(base, strings.TrimSpace(s))
		added++
	}
	return base, added
}

func normSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, s := range items {
		if k := Normalize(s); k != "" {
			set[k] = struct{}{}
		}
	}
	return set
}
