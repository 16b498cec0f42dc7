package semcache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeQuery(t *testing.T) {
	cases := map[string]string{
		"  Hello   World  ":       "hello world",
		"What is Go?":             "what is go?",
		"already normal":          "already normal",
		"multiple\n\twhitespace":  "multiple whitespace",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeQuery(in))
	}
}

func TestNormalizeQuery_IsIdempotent(t *testing.T) {
	in := "  Some Query With Caps  "
	once := NormalizeQuery(in)
	twice := NormalizeQuery(once)
	assert.Equal(t, once, twice)
}
