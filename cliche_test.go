package safeswipe

import (
	"slices"
	"testing"
)

func TestMatchCliches(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		bio  string
		want []string
	}{
		{name: "empty bio", bio: "", want: nil},
		{name: "no cliches", bio: "Marine biologist, two cats, terrible at chess.", want: nil},
		{
			name: "phrase-list order not text order",
			bio:  "Spontaneous foodie who would love to travel",
			want: []string{"love to travel", "foodie", "spontaneous"},
		},
		{name: "case insensitive", bio: "DOWN TO EARTH", want: []string{"down to earth"}},
		{name: "substring without word boundary", bio: "Adventurer at heart", want: []string{"adventure"}},
		{
			name: "all six",
			bio:  "love to travel, adventure, foodie, spontaneous, work hard play hard, down to earth",
			want: DefaultCliches,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := MatchCliches(tc.bio, DefaultCliches)
			if !slices.Equal(got, tc.want) {
				t.Errorf("MatchCliches(%q) = %q, want %q", tc.bio, got, tc.want)
			}
		})
	}
}

func TestMatchCliches_CustomPhrases(t *testing.T) {
	t.Parallel()

	got := MatchCliches("Fluent in sarcasm. Partner in crime wanted.", []string{"partner in crime", "", "fluent in sarcasm"})
	want := []string{"partner in crime", "fluent in sarcasm"}
	if !slices.Equal(got, want) {
		t.Errorf("MatchCliches() = %q, want %q", got, want)
	}
}
