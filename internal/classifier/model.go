package classifier

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/sakhadib/CRIMENET-Global-Crime-Intelligence-Engine/internal/failure"
)

// Scorer returns the probability that a text belongs to the crime class.
type Scorer interface {
	Score(text string) float64
}

// reToken matches runs of two or more word characters, the default token
// pattern of the vectorizer the model is exported from.
var reToken = regexp.MustCompile(`[\p{L}\p{N}_]{2,}`)

// Model is a multinomial naive Bayes text model exported as JSON together
// with the bag-of-words vectorizer it was trained on.
type Model struct {
	Classes        []string       `json:"classes"`
	PositiveClass  int            `json:"positive_class"`
	Vocabulary     map[string]int `json:"vocabulary"`
	ClassLogPrior  []float64      `json:"class_log_prior"`
	FeatureLogProb [][]float64    `json:"feature_log_prob"`
	IDF            []float64      `json:"idf,omitempty"`
	Norm           string         `json:"norm,omitempty"`
	Lowercase      *bool          `json:"lowercase,omitempty"`
	NgramRange     [2]int         `json:"ngram_range"`
}

// LoadModel reads and validates a model file. Any failure is a model_load
// failure.
func LoadModel(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, failure.ModelLoad("read model", err)
	}
	return ParseModel(data)
}

func ParseModel(data []byte) (*Model, error) {
	var m Model
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, failure.ModelLoad("decode model", err)
	}
	if m.NgramRange == [2]int{} {
		m.NgramRange = [2]int{1, 1}
	}
	if err := m.validate(); err != nil {
		return nil, failure.ModelLoad("invalid model", err)
	}
	return &m, nil
}

func (m *Model) validate() error {
	nClasses := len(m.ClassLogPrior)
	if nClasses < 2 {
		return fmt.Errorf("need at least 2 classes, got %d", nClasses)
	}
	if len(m.FeatureLogProb) != nClasses {
		return fmt.Errorf("feature_log_prob has %d rows for %d classes", len(m.FeatureLogProb), nClasses)
	}
	if m.PositiveClass < 0 || m.PositiveClass >= nClasses {
		return fmt.Errorf("positive_class %d out of range", m.PositiveClass)
	}
	if len(m.Vocabulary) == 0 {
		return errors.New("empty vocabulary")
	}
	nFeatures := len(m.FeatureLogProb[0])
	for i, row := range m.FeatureLogProb {
		if len(row) != nFeatures {
			return fmt.Errorf("feature_log_prob row %d has %d features, want %d", i, len(row), nFeatures)
		}
	}
	if len(m.IDF) != 0 && len(m.IDF) != nFeatures {
		return fmt.Errorf("idf has %d weights for %d features", len(m.IDF), nFeatures)
	}
	for term, idx := range m.Vocabulary {
		if idx < 0 || idx >= nFeatures {
			return fmt.Errorf("vocabulary term %q index %d out of range", term, idx)
		}
	}
	if m.NgramRange[0] < 1 || m.NgramRange[1] < m.NgramRange[0] {
		return fmt.Errorf("bad ngram_range %v", m.NgramRange)
	}
	switch m.Norm {
	case "", "l1", "l2":
	default:
		return fmt.Errorf("unsupported norm %q", m.Norm)
	}
	return nil
}

func (m *Model) lowercase() bool {
	return m.Lowercase == nil || *m.Lowercase
}

// Terms returns the unigrams..n-grams of text in vectorizer order.
func (m *Model) Terms(text string) []string {
	if m.lowercase() {
		text = strings.ToLower(text)
	}
	tokens := reToken.FindAllString(text, -1)

	var terms []string
	for n := m.NgramRange[0]; n <= m.NgramRange[1]; n++ {
		for i := 0; i+n <= len(tokens); i++ {
			terms = append(terms, strings.Join(tokens[i:i+n], " "))
		}
	}
	return terms
}

// feature is one non-zero entry of a sparse term vector.
type feature struct {
	idx int
	val float64
}

// features returns the weighted non-zero entries of text's term vector,
// sorted by vocabulary index so every sum over them runs in one order.
func (m *Model) features(text string) []feature {
	counts := make(map[int]float64)
	for _, term := range m.Terms(text) {
		if idx, ok := m.Vocabulary[term]; ok {
			counts[idx]++
		}
	}

	x := make([]feature, 0, len(counts))
	for idx, v := range counts {
		if len(m.IDF) > 0 {
			v *= m.IDF[idx]
		}
		x = append(x, feature{idx: idx, val: v})
	}
	sort.Slice(x, func(i, j int) bool { return x[i].idx < x[j].idx })

	var norm float64
	switch m.Norm {
	case "l2":
		for _, f := range x {
			norm += f.val * f.val
		}
		norm = math.Sqrt(norm)
	case "l1":
		for _, f := range x {
			norm += math.Abs(f.val)
		}
	}
	if norm > 0 {
		for i := range x {
			x[i].val /= norm
		}
	}
	return x
}

// Score returns the posterior of the positive class.
func (m *Model) Score(text string) float64 {
	x := m.features(text)

	jll := make([]float64, len(m.ClassLogPrior))
	for c := range jll {
		jll[c] = m.ClassLogPrior[c]
		for _, f := range x {
			jll[c] += f.val * m.FeatureLogProb[c][f.idx]
		}
	}

	maxLL := math.Inf(-1)
	for _, v := range jll {
		maxLL = math.Max(maxLL, v)
	}
	var sum float64
	for _, v := range jll {
		sum += math.Exp(v - maxLL)
	}
	return math.Exp(jll[m.PositiveClass]-maxLL) / sum
}
