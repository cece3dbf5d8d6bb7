// Package search ranks graph nodes against free-text queries with BM25 and
// falls back to edit distance on names for typos.
package search

import (
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/codeatlas-dev/codeatlas/internal/graph"
)

var tokenPattern = regexp.MustCompile(`[a-z0-9_]+`)

type Document struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Kind   string         `json:"kind"`
	Depth  graph.Depth    `json:"depth"`
	File   string         `json:"file,omitempty"`
	Line   int            `json:"line,omitempty"`
	Length int            `json:"length"`
	Terms  map[string]int `json:"terms"`
}

type Index struct {
	DocumentCount int            `json:"document_count"`
	AvgDocLength  float64        `json:"avg_doc_length"`
	DocFreq       map[string]int `json:"doc_freq"`
	Documents     []Document     `json:"documents"`
	byID          map[string]int
}

type Result struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}

// Build indexes every non-root node of g. Names weigh most, then paths and
// tags, then descriptions.
func Build(g *graph.CodeGraph) *Index {
	if g == nil {
		return &Index{DocFreq: map[string]int{}}
	}

	documents := make([]Document, 0, len(g.Nodes))
	docFreq := make(map[string]int)
	totalLength := 0

	for _, node := range g.Nodes {
		if node.Depth == graph.DepthSystem {
			continue
		}
		file, line := "", 0
		if node.SourceRef != nil {
			file, line = node.SourceRef.FilePath, node.SourceRef.LineStart
		}
		terms := buildTerms(node.Name, file, strings.Join(node.Tags, " "), node.Description)
		length := 0
		for _, count := range terms {
			length += count
		}
		if length == 0 {
			continue
		}

		documents = append(documents, Document{
			ID:     node.ID,
			Name:   node.Name,
			Kind:   string(node.Kind),
			Depth:  node.Depth,
			File:   file,
			Line:   line,
			Length: length,
			Terms:  terms,
		})
		totalLength += length

		for term := range terms {
			docFreq[term]++
		}
	}

	sort.Slice(documents, func(i, j int) bool {
		return documents[i].ID < documents[j].ID
	})

	avgDocLength := 0.0
	if len(documents) > 0 {
		avgDocLength = float64(totalLength) / float64(len(documents))
	}

	byID := make(map[string]int, len(documents))
	for i, doc := range documents {
		byID[doc.ID] = i
	}
	return &Index{
		DocumentCount: len(documents),
		AvgDocLength:  avgDocLength,
		DocFreq:       docFreq,
		Documents:     documents,
		byID:          byID,
	}
}

// Document returns the indexed document for id.
func (idx *Index) Document(id string) (Document, bool) {
	if idx == nil {
		return Document{}, false
	}
	if idx.byID == nil {
		for _, doc := range idx.Documents {
			if doc.ID == id {
				return doc, true
			}
		}
		return Document{}, false
	}
	i, ok := idx.byID[id]
	if !ok {
		return Document{}, false
	}
	return idx.Documents[i], true
}

func Search(index *Index, query string, limit int) []Result {
	if index == nil || len(index.Documents) == 0 {
		return nil
	}
	if limit <= 0 {
		limit = 10
	}

	queryTerms := tokenize(query)
	if len(queryTerms) == 0 {
		return nil
	}

	seenTerms := make(map[string]bool, len(queryTerms))
	uniqueTerms := make([]string, 0, len(queryTerms))
	for _, term := range queryTerms {
		if seenTerms[term] {
			continue
		}
		seenTerms[term] = true
		uniqueTerms = append(uniqueTerms, term)
	}

	k1 := 1.2
	b := 0.75
	n := float64(index.DocumentCount)
	avgLen := index.AvgDocLength
	if avgLen <= 0 {
		avgLen = 1
	}

	results := make([]Result, 0)
	for _, doc := range index.Documents {
		score := 0.0
		docLen := float64(doc.Length)
		for _, term := range uniqueTerms {
			tf := float64(doc.Terms[term])
			if tf <= 0 {
				continue
			}
			df := float64(index.DocFreq[term])
			if df <= 0 {
				continue
			}
			idf := math.Log(1.0 + ((n - df + 0.5) / (df + 0.5)))
			numerator := tf * (k1 + 1.0)
			denominator := tf + k1*(1.0-b+b*(docLen/avgLen))
			score += idf * (numerator / denominator)
		}
		if score > 0 {
			results = append(results, Result{ID: doc.ID, Score: score})
		}
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})

	if len(results) > limit {
		results = results[:limit]
	}
	if len(results) == 0 {
		fallback := fuzzyNameFallback(index.Documents, query, limit)
		if len(fallback) > 0 {
			return fallback
		}
	}
	return results
}

func buildTerms(name, filePath, tags, description string) map[string]int {
	terms := make(map[string]int)
	addWeighted(terms, name, 4)
	addWeighted(terms, filePath, 2)
	addWeighted(terms, tags, 2)
	addWeighted(terms, description, 1)
	return terms
}

func addWeighted(terms map[string]int, value string, weight int) {
	if weight <= 0 {
		return
	}
	for _, token := range tokenize(value) {
		terms[token] += weight
	}
}

func tokenize(value string) []string {
	value = strings.ToLower(splitCamel(value))
	if value == "" {
		return nil
	}
	return tokenPattern.FindAllString(value, -1)
}

// splitCamel inserts a space at lower-to-upper boundaries.
func splitCamel(value string) string {
	var b strings.Builder
	b.Grow(len(value) + 4)
	for i, r := range value {
		if i > 0 && r >= 'A' && r <= 'Z' {
			prev := value[i-1]
			if prev >= 'a' && prev <= 'z' || prev >= '0' && prev <= '9' {
				b.WriteByte(' ')
			}
		}
		b.WriteRune(r)
	}
	return b.String()
}

func fuzzyNameFallback(documents []Document, query string, limit int) []Result {
	needle := normalizeForFuzzy(query)
	if needle == "" {
		return nil
	}

	results := make([]Result, 0)
	for _, doc := range documents {
		candidate := normalizeForFuzzy(doc.Name)
		if candidate == "" {
			continue
		}
		distance := levenshteinDistance(needle, candidate)
		threshold := len(candidate) / 3
		if threshold < 2 {
			threshold = 2
		}
		if distance > threshold {
			continue
		}
		results = append(results, Result{ID: doc.ID, Score: 1.0 / float64(1+distance)})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results
}

func normalizeForFuzzy(value string) string {
	tokens := tokenize(value)
	if len(tokens) == 0 {
		return ""
	}
	return strings.Join(tokens, "")
}

func levenshteinDistance(a, b string) int {
	if a == b {
		return 0
	}
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	for j := 0; j <= len(b); j++ {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		current := make([]int, len(b)+1)
		current[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 0
			if a[i-1] != b[j-1] {
				cost = 1
			}
			ins := current[j-1] + 1
			del := prev[j] + 1
			sub := prev[j-1] + cost
			current[j] = minInt(ins, minInt(del, sub))
		}
		prev = current
	}

	return prev[len(b)]
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
