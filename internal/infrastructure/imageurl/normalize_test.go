package imageurl

import (
	"encoding/json"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const origin = "https://www.diy.com"

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  string
	}{
		{"nil", nil, ""},
		{"empty string", "  ", ""},
		{"plain absolute", "https://cdn.screwfix.com/img/123.jpg", "https://cdn.screwfix.com/img/123.jpg"},
		{"protocol relative", "//cdn.example.com/a.png", "https://cdn.example.com/a.png"},
		{"relative path", "/images/a.png", "https://www.diy.com/images/a.png"},
		{
			"scene7 macros replaced",
			"https://media.diy.com/is/image/Kingfisher/123?$MOB_PREV$&$width=768&$height=512",
			"https://media.diy.com/is/image/Kingfisher/123?fmt=jpg&hei=512&qlt=80&wid=768",
		},
		{
			"entity artifacts decoded",
			"https://media.diy.com/is/image/Kingfisher/1?wid=100&amp;hei=50&amp;fmt=png",
			"https://media.diy.com/is/image/Kingfisher/1?fmt=png&hei=50&qlt=80&wid=100",
		},
		{
			"relative image service path",
			"/is/image/Kingfisher/9",
			"https://www.diy.com/is/image/Kingfisher/9?fmt=jpg&hei=300&qlt=80&wid=300",
		},
		{
			"other retailer scene7 presets kept",
			"https://media.screwfix.com/is/image/ae235/123AB_P?$fxSharpen$&wid=257&hei=257",
			"https://media.screwfix.com/is/image/ae235/123AB_P?$fxSharpen$&wid=257&hei=257",
		},
		{
			"protocol relative scene7 host",
			"//s7g10.scene7.com/is/image/x?qlt=60",
			"https://s7g10.scene7.com/is/image/x?fmt=jpg&hei=300&qlt=60&wid=300",
		},
		{"array picks first string", []any{map[string]any{"x": 1}, "https://a.com/b.jpg"}, "https://a.com/b.jpg"},
		{"array of objects", []any{map[string]any{"src": "https://a.com/c.jpg"}}, "https://a.com/c.jpg"},
		{"object src", map[string]any{"src": "https://a.com/d.webp"}, "https://a.com/d.webp"},
		{"object url wins over image", map[string]any{"image": "/x.jpg", "url": "/y.jpg"}, "https://www.diy.com/y.jpg"},
		{"object without url fields", map[string]any{"alt": "drill"}, ""},
		{"number", 42.0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.input, origin))
		})
	}
}

func TestSanitize_KeepsExplicitValues(t *testing.T) {
	u, err := url.Parse("https://media.diy.com/is/image/K/1?wid=640&hei=480&fmt=webp&qlt=90&$preset$")
	require.NoError(t, err)

	Sanitize(u)

	q := u.Query()
	assert.Equal(t, "640", q.Get("wid"))
	assert.Equal(t, "480", q.Get("hei"))
	assert.Equal(t, "webp", q.Get("fmt"))
	assert.Equal(t, "90", q.Get("qlt"))
	assert.False(t, q.Has("$preset$"))
}

func TestIsImageService(t *testing.T) {
	for raw, want := range map[string]bool{
		"https://media.diy.com/is/image/K/1":          true,
		"https://s7g10.scene7.com/anything.jpg":       true,
		"https://www.diy.com/departments/drill":       false,
		"https://cdn.toolstation.com/p/1.jpg":         false,
		"https://media.screwfix.com/is/image/ae235/9": false,
	} {
		u, err := url.Parse(raw)
		require.NoError(t, err)
		assert.Equal(t, want, IsImageService(u), raw)
	}
}

func TestFindAny(t *testing.T) {
	decode := func(raw string) any {
		var v any
		require.NoError(t, json.Unmarshal([]byte(raw), &v))
		return v
	}

	t.Run("preferred key first", func(t *testing.T) {
		node := decode(`{"aaa":"https://x.com/other.png","imageUrl":"https://x.com/main.jpg"}`)
		assert.Equal(t, "https://x.com/main.jpg", FindAny(node))
	})

	t.Run("any string field", func(t *testing.T) {
		node := decode(`{"name":"Drill","hero":" https://media.diy.com/is/image/K/5 "}`)
		assert.Equal(t, "https://media.diy.com/is/image/K/5", FindAny(node))
	})

	t.Run("nested within depth", func(t *testing.T) {
		node := decode(`{"media":{"gallery":[{"uri":"/assets/p.webp?v=2"}]}}`)
		assert.Equal(t, "/assets/p.webp?v=2", FindAny(node))
	})

	t.Run("too deep", func(t *testing.T) {
		node := decode(`{"a":{"b":{"c":{"d":{"image":"/x.jpg"}}}}}`)
		assert.Equal(t, "", FindAny(node))
	})

	t.Run("ignores non image strings", func(t *testing.T) {
		node := decode(`{"url":"/departments/drill","image":"placeholder"}`)
		assert.Equal(t, "", FindAny(node))
	})
}
