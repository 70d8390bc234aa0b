package classifier

import (
	"testing"

	"eci-results-crawler/internal/models"
)

const resultPage = `<html><head><title>Election Commission of India</title></head>
<body><main><div><div><h2><span>Varanasi - 77</span></h2></div></div></main></body></html>`

const fallbackPage = `<html><head><title>Page not found</title></head><body><p>Results</p></body></html>`

func TestValid(t *testing.T) {
	cl := New("")
	if !cl.Valid(models.RawDocument(resultPage)) {
		t.Fatal("want result page to be valid")
	}
	if cl.Valid(models.RawDocument(fallbackPage)) {
		t.Fatal("want fallback page to be invalid")
	}
	if cl.Valid("") {
		t.Fatal("want empty document to be invalid")
	}
}

func TestValidIsExact(t *testing.T) {
	cl := New("Election Commission of India")
	cases := []string{
		"election commission of india",
		"Election Commission of Indi",
		"Election  Commission of India",
	}
	for _, c := range cases {
		if cl.Valid(models.RawDocument(c)) {
			t.Errorf("near-miss %q classified valid", c)
		}
	}
	if !cl.Valid("prefix Election Commission of India suffix") {
		t.Error("embedded marker not found")
	}
}

func TestCustomMarker(t *testing.T) {
	cl := New("RESULT-OK")
	if cl.Marker() != "RESULT-OK" {
		t.Fatalf("marker = %q", cl.Marker())
	}
	if cl.Valid(models.RawDocument(resultPage)) {
		t.Fatal("default marker should not satisfy a custom marker")
	}
}
