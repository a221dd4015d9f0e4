package catalog

import "github.com/pauljones0/smart-shopper/internal/models"

// Collection is the ordered, append-only list of offers for one search.
// Entries with the same identity from different fetch cycles are kept as
// distinct entries.
type Collection struct {
	offers []models.Offer
}

// Reset clears the collection for a new search.
func (c *Collection) Reset() {
	c.offers = nil
}

// Append pushes offers to the end in the order given.
func (c *Collection) Append(offers []models.Offer) {
	c.offers = append(c.offers, offers...)
}

func (c *Collection) Len() int {
	return len(c.offers)
}

// Offers returns a copy of the collection. Sentiment pointers are cloned so
// the caller can never mutate stored state.
func (c *Collection) Offers() []models.Offer {
	return cloneOffers(c.offers)
}

// ApplySentiment sets the verdict of the entry at pos. It is a no-op when pos
// is out of range, the entry carries a different identity, or the entry already
// has a verdict.
func (c *Collection) ApplySentiment(pos int, id models.Identity, s models.Sentiment) bool {
	if pos < 0 || pos >= len(c.offers) {
		return false
	}
	o := &c.offers[pos]
	if o.Sentiment != nil || o.Identity() != id {
		return false
	}
	o.Sentiment = &s
	return true
}

func cloneOffers(in []models.Offer) []models.Offer {
	if in == nil {
		return []models.Offer{}
	}
	out := make([]models.Offer, len(in))
	copy(out, in)
	for i := range out {
		if out[i].Sentiment != nil {
			s := *out[i].Sentiment
			out[i].Sentiment = &s
		}
	}
	return out
}
