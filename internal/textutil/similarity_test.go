package textutil

import (
	"math"
	"testing"
)

func TestCosineSimilarity(t *testing.T) {
	post := NewFingerprint("Checkout page times out when paying with a saved card")
	tests := []struct {
		name    string
		a, b    *Fingerprint
		wantMin float64
		wantMax float64
	}{
		{"nil left", nil, post, 0, 0},
		{"nil right", post, nil, 0, 0},
		{"zero norm", &Fingerprint{tokens: map[string]float64{}}, post, 0, 0},
		{"identical", post, NewFingerprint("checkout page times out when paying with a saved card!"), 1 - 1e-9, 1 + 1e-9},
		{"disjoint", post, NewFingerprint("lovely weather for gardening today"), 0, 0},
		{"partial", post, NewFingerprint("saved card rejected on checkout"), 0.01, 0.99},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CosineSimilarity(tt.a, tt.b)
			if got < tt.wantMin || got > tt.wantMax {
				t.Fatalf("CosineSimilarity() = %v, want within [%v, %v]", got, tt.wantMin, tt.wantMax)
			}
			if back := CosineSimilarity(tt.b, tt.a); back != got {
				t.Fatalf("not symmetric: %v vs %v", got, back)
			}
		})
	}
}

func TestNewFingerprint(t *testing.T) {
	if fp := NewFingerprint(""); fp != nil {
		t.Fatalf("empty text: got %+v, want nil", fp)
	}
	if fp := NewFingerprint("ok so it is up"); fp != nil {
		t.Fatalf("short tokens only: got %+v, want nil", fp)
	}

	fp := NewFingerprint("refund refund delayed")
	if fp == nil {
		t.Fatal("expected fingerprint")
	}
	if want := math.Sqrt(5); math.Abs(fp.norm-want) > 1e-4 {
		t.Fatalf("norm = %v, want %v", fp.norm, want)
	}
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "simple words",
			input: "Hello World",
			want:  []string{"hello", "world"},
		},
		{
			name:  "filters short",
			input: "a to the quick fox",
			want:  []string{"the", "quick", "fox"},
		},
		{
			name:  "handles punctuation",
			input: "Hello, World! How are you?",
			want:  []string{"hello", "world", "how", "are", "you"},
		},
		{
			name:  "unicode letters",
			input: "Café naïve über",
			want:  []string{"café", "naïve", "über"},
		},
		{
			name:  "handles numbers",
			input: "test123 456test",
			want:  []string{"test123", "456test"},
		},
		{
			name:  "empty string",
			input: "",
			want:  []string{},
		},
		{
			name:  "only short tokens",
			input: "a b c",
			want:  []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Tokenize(tt.input)
			if len(got) != len(tt.want) {
				t.Fatalf("Tokenize() = %v (len %d), want %v (len %d)",
					got, len(got), tt.want, len(tt.want))
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("token[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestFingerprintTokenCount(t *testing.T) {
	tests := []struct {
		name string
		fp   *Fingerprint
		want int
	}{
		{
			name: "nil fingerprint",
			fp:   nil,
			want: 0,
		},
		{
			name: "unique tokens",
			fp:   NewFingerprint("hello world programming"),
			want: 3,
		},
		{
			name: "repeated tokens",
			fp:   NewFingerprint("hello hello world world world"),
			want: 2, // unique count
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.fp.TokenCount()
			if got != tt.want {
				t.Errorf("TokenCount() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestCosineSimilarityNearDuplicatePosts(t *testing.T) {
	original := `
		Breaking: city council approves the new riverside park budget after
		a long debate, construction expected to start next spring.
	`
	repost := `
		BREAKING city council approves new riverside park budget after a long
		debate!! construction expected to start next spring
	`
	unrelated := `
		Our bakery is running a weekend sale on sourdough loaves and
		cinnamon rolls, come early before they sell out.
	`

	originalFP := NewFingerprint(Clean(original))
	repostFP := NewFingerprint(Clean(repost))
	unrelatedFP := NewFingerprint(Clean(unrelated))

	if sim := CosineSimilarity(originalFP, repostFP); sim < 0.9 {
		t.Errorf("repost similarity = %v, want >= 0.9", sim)
	}
	if sim := CosineSimilarity(originalFP, unrelatedFP); sim >= 0.3 {
		t.Errorf("unrelated similarity = %v, should be < 0.3", sim)
	}
}

func TestFingerprintWeightsRoundTrip(t *testing.T) {
	fp := NewFingerprint("alpha beta beta gamma")
	rebuilt := FingerprintFromWeights(fp.Weights())
	if math.Abs(CosineSimilarity(fp, rebuilt)-1) > 1e-9 {
		t.Fatalf("rebuilt fingerprint differs: %v vs %v", fp.Weights(), rebuilt.Weights())
	}
	if FingerprintFromWeights(map[string]float64{"x": 0}) != nil {
		t.Fatal("expected nil for all-zero weights")
	}
}

func TestWithIDFDownweightsCommonTerms(t *testing.T) {
	corpus := NewCorpus()
	docs := []string{"shared alpha", "shared beta", "shared gamma"}
	for _, doc := range docs {
		corpus.Add(NewFingerprint(doc))
	}
	if corpus.Len() != 3 {
		t.Fatalf("Len = %d", corpus.Len())
	}
	idf := corpus.IDF()
	if idf["shared"] >= idf["alpha"] {
		t.Fatalf("expected common term weighted lower: %v", idf)
	}
	weighted := NewFingerprint("shared alpha").WithIDF(idf).Weights()
	if weighted["shared"] >= weighted["alpha"] {
		t.Fatalf("expected idf applied: %v", weighted)
	}
}
