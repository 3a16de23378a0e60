package classifier

import (
	"errors"
	"math"
	"regexp"
	"sort"
	"strings"
)

// tokenPattern selects runs of two or more letters, digits or underscores.
var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}_]{2,}`)

func tokenize(text string) []string {
	return tokenPattern.FindAllString(strings.ToLower(text), -1)
}

// errEmptyVocabulary is returned when the training texts contain no tokens.
var errEmptyVocabulary = errors.New("empty vocabulary: training texts contain no tokens")

// vectorizer turns text into L2-normalised TF-IDF term weights.
type vectorizer struct {
	vocab map[string]int
	idf   []float64
}

func fitVectorizer(docs [][]string) (*vectorizer, error) {
	df := make(map[string]int)
	for _, tokens := range docs {
		seen := make(map[string]bool, len(tokens))
		for _, t := range tokens {
			if !seen[t] {
				seen[t] = true
				df[t]++
			}
		}
	}
	if len(df) == 0 {
		return nil, errEmptyVocabulary
	}

	terms := make([]string, 0, len(df))
	for t := range df {
		terms = append(terms, t)
	}
	sort.Strings(terms)

	v := &vectorizer{
		vocab: make(map[string]int, len(terms)),
		idf:   make([]float64, len(terms)),
	}
	n := float64(len(docs))
	for i, t := range terms {
		v.vocab[t] = i
		// Smoothed idf: as if one extra document contained every term.
		v.idf[i] = math.Log((1+n)/(1+float64(df[t]))) + 1
	}
	return v, nil
}

// termWeight is one non-zero entry of a sparse document vector.
type termWeight struct {
	term   int
	weight float64
}

// transform returns the sparse TF-IDF vector of tokens ordered by term
// index. Terms outside the vocabulary are dropped.
func (v *vectorizer) transform(tokens []string) []termWeight {
	counts := make(map[int]float64)
	for _, t := range tokens {
		if i, ok := v.vocab[t]; ok {
			counts[i]++
		}
	}
	vec := make([]termWeight, 0, len(counts))
	for i, tf := range counts {
		vec = append(vec, termWeight{term: i, weight: tf * v.idf[i]})
	}
	sort.Slice(vec, func(a, b int) bool { return vec[a].term < vec[b].term })
	var norm float64
	for _, tw := range vec {
		norm += tw.weight * tw.weight
	}
	if norm > 0 {
		norm = math.Sqrt(norm)
		for i := range vec {
			vec[i].weight /= norm
		}
	}
	return vec
}
