package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestURL(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		want   string
		wantOK bool
	}{
		{"plain https", "https://cdn.example.com/a.jpg", "https://cdn.example.com/a.jpg", true},
		{"trims", "  https://a.com/x.jpg\n", "https://a.com/x.jpg", true},
		{"escaped slashes", `https:\/\/a.com\/x.jpg`, "https://a.com/x.jpg", true},
		{"html entity", "https://a.com/x.jpg?a=1&amp;b=2", "https://a.com/x.jpg?a=1&b=2", true},
		{"numeric entity", "https://a.com/x.jpg?a=1&#38;b=2", "https://a.com/x.jpg?a=1&b=2", true},
		{"unicode escape", "https://a.com/x.jpg?a=1\\u0026b=2", "https://a.com/x.jpg?a=1&b=2", true},
		{"double encoded entity", "https://a.com/?a=1&amp;amp;b=2", "https://a.com/?a=1&b=2", true},
		{"protocol relative", "//cdn.com/x.jpg", "https://cdn.com/x.jpg", true},
		{"upper case scheme", "HTTPS://a.com/x.jpg", "HTTPS://a.com/x.jpg", true},
		{"http", "http://a.com/x.jpg", "http://a.com/x.jpg", true},
		{"data uri", "data:image/png;base64,iVBORw0KGgo=", "data:image/png;base64,iVBORw0KGgo=", true},
		{"empty", "", "", false},
		{"relative path", "/img/a.jpg", "", false},
		{"no host", "https:///a.jpg", "", false},
		{"ftp", "ftp://a.com/x.jpg", "", false},
		{"javascript", "javascript:alert(1)", "", false},
		{"data uri without base64", "data:image/png,rawbytes", "", false},
		{"data uri without payload", "data:image/png;base64,", "", false},
		{"data uri without mime", "data:;base64,AAAA", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := URL(tt.raw)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestURLIdempotent(t *testing.T) {
	inputs := []string{
		"https://a.com/x.jpg",
		`https:\/\/a.com\/x.jpg?x=1&amp;y=2`,
		"//cdn.com/p.png",
		"https://a.com/?a=1\\\\/b",
		"data:image/gif;base64,R0lGODlhAQABAAAAACw=",
	}
	for _, in := range inputs {
		once, ok := URL(in)
		require.True(t, ok, in)
		twice, ok := URL(once)
		require.True(t, ok, once)
		assert.Equal(t, once, twice)
		assert.True(t, Valid(once))
	}
}

func TestDecodeDataURI(t *testing.T) {
	mediaType, data, err := DecodeDataURI("data:Image/PNG;base64,aGVsbG8=")
	require.NoError(t, err)
	assert.Equal(t, "image/png", mediaType)
	assert.Equal(t, []byte("hello"), data)

	_, _, err = DecodeDataURI("data:image/png;base64,!!!")
	assert.Error(t, err)

	_, _, err = DecodeDataURI("https://a.com/x.jpg")
	assert.Error(t, err)
}

func TestIsDataURI(t *testing.T) {
	assert.True(t, IsDataURI("data:image/png;base64,AA=="))
	assert.True(t, IsDataURI("DATA:image/png;base64,AA=="))
	assert.False(t, IsDataURI("https://data:80"))
	assert.False(t, IsDataURI("dat"))
}

func TestDeduper(t *testing.T) {
	d := NewDeduper()

	assert.True(t, d.Add("https://a.jpg"))
	assert.True(t, d.Add("https://b.jpg"))
	assert.False(t, d.Add(`https:\/\/a.jpg`), "same URL after normalization")
	assert.False(t, d.Add("not a url"))
	assert.False(t, d.Add(""))
	assert.True(t, d.Add("//c.jpg"))
	assert.False(t, d.Add("https://c.jpg"))

	assert.Equal(t, []string{"https://a.jpg", "https://b.jpg", "https://c.jpg"}, d.URLs())
	assert.Equal(t, 3, d.Len())

	out := d.URLs()
	out[0] = "mutated"
	assert.Equal(t, "https://a.jpg", d.URLs()[0])
}
