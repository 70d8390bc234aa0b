package classifier

import (
	"strings"

	"eci-results-crawler/internal/models"
)

// DefaultMarker appears on genuine result pages and not on the site's
// generic fallback page.
const DefaultMarker = "Election Commission of India"

type Classifier struct {
	marker string
}

func New(marker string) *Classifier {
	if marker == "" {
		marker = DefaultMarker
	}
	return &Classifier{marker: marker}
}

func (c *Classifier) Marker() string { return c.marker }

// Valid reports whether doc contains the marker verbatim. The site answers
// 200 for out-of-range keys too, so the status code carries no signal.
func (c *Classifier) Valid(doc models.RawDocument) bool {
	return strings.Contains(string(doc), c.marker)
}
