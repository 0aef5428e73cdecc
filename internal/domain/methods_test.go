package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeMethod(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "lowercase", input: "RT-qPCR", expected: "rt-qpcr"},
		{name: "trim", input: "  ELISA  ", expected: "elisa"},
		{name: "collapse inner whitespace", input: "plaque \t reduction\nassay", expected: "plaque reduction assay"},
		{name: "empty", input: "   ", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeMethod(tt.input))
		})
	}
}

func TestParseMethodsTag(t *testing.T) {
	tests := []struct {
		name     string
		tag      string
		expected []string
	}{
		{
			name:     "concepts and methods",
			tag:      "Concepts: A;B;C Methods: D;E",
			expected: []string{"d", "e"},
		},
		{
			name:     "trims and lowercases",
			tag:      "Concepts: Virology Methods:  RT-PCR ; Western Blot ",
			expected: []string{"rt-pcr", "western blot"},
		},
		{
			name:     "drops empty items",
			tag:      "Methods: ;ELISA;; ;",
			expected: []string{"elisa"},
		},
		{
			name:     "case-insensitive delimiter",
			tag:      "concepts: x METHODS: Flow cytometry",
			expected: []string{"flow cytometry"},
		},
		{
			name:     "duplicates collapse",
			tag:      "Methods: ELISA; elisa",
			expected: []string{"elisa"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseMethodsTag(tt.tag).Items())
		})
	}

	t.Run("missing delimiter yields empty set", func(t *testing.T) {
		s := ParseMethodsTag("Concepts: A;B")
		assert.True(t, s.IsEmpty())
		assert.Equal(t, 0, s.Len())
	})
}

func TestParseConceptsTag(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, ParseConceptsTag("Concepts: A;B;C Methods: D;E").Items())
	assert.Equal(t, []string{"arbovirus"}, ParseConceptsTag("Concepts: Arbovirus").Items())
	assert.True(t, ParseConceptsTag("Methods: D").IsEmpty())
}

func TestMethodSet(t *testing.T) {
	t.Run("zero value is usable", func(t *testing.T) {
		var s MethodSet
		assert.False(t, s.Has("x"))
		assert.True(t, s.Add("X"))
		assert.False(t, s.Add(" x "))
		assert.True(t, s.Has("X"))
		assert.Equal(t, 1, s.Len())
	})

	t.Run("intersection is case-insensitive", func(t *testing.T) {
		preprint := NewMethodSet("RT-qPCR", "Plaque Assay")
		ref := NewMethodSet("plaque assay", "sequencing")

		assert.True(t, preprint.Intersects(ref))
		assert.True(t, ref.Intersects(preprint))
		assert.Equal(t, []string{"plaque assay"}, preprint.Intersection(ref))
	})

	t.Run("disjoint sets do not intersect", func(t *testing.T) {
		assert.False(t, NewMethodSet("a").Intersects(NewMethodSet("b")))
		assert.False(t, NewMethodSet().Intersects(NewMethodSet("b")))
	})

	t.Run("items returns a copy", func(t *testing.T) {
		s := NewMethodSet("a", "b")
		items := s.Items()
		items[0] = "z"
		assert.Equal(t, []string{"a", "b"}, s.Items())
	})

	t.Run("string joins items", func(t *testing.T) {
		assert.Equal(t, "a; b", NewMethodSet("A", "B").String())
	})
}

func TestMethodSet_JSON(t *testing.T) {
	data, err := json.Marshal(NewMethodSet("ELISA", "RT-PCR"))
	require.NoError(t, err)
	assert.JSONEq(t, `["elisa","rt-pcr"]`, string(data))

	empty, err := json.Marshal(MethodSet{})
	require.NoError(t, err)
	assert.Equal(t, "[]", string(empty))

	var decoded MethodSet
	require.NoError(t, json.Unmarshal([]byte(`[" Flow Cytometry ","elisa"]`), &decoded))
	assert.Equal(t, []string{"flow cytometry", "elisa"}, decoded.Items())
}
