package propertydata

import (
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/ajharbinger/rei-deal-drop/internal/ingest"
)

// Listing holds the deal-relevant fields found on a listing page
type Listing struct {
	Address    string   `json:"address"`
	Price      float64  `json:"price"`
	SquareFeet float64  `json:"square_feet"`
	Bedrooms   float64  `json:"bedrooms"`
	Bathrooms  float64  `json:"bathrooms"`
	HasPool    bool     `json:"has_pool"`
	Amenities  []string `json:"amenities,omitempty"`
}

// Form converts the listing into a deal form; ARV, rehab and rent stay empty
func (l *Listing) Form() ingest.DealForm {
	return ingest.DealForm{
		Address:    l.Address,
		Price:      ingest.Number(l.Price),
		SquareFeet: ingest.Number(l.SquareFeet),
		Bedrooms:   ingest.Number(l.Bedrooms),
		Bathrooms:  ingest.Number(l.Bathrooms),
		HasPool:    ingest.Flag(l.HasPool),
	}
}

var leadingNumber = regexp.MustCompile(`[-$]?[\d,_]*\.?\d+`)

// ParseListing reads a listing page and extracts schema.org microdata
func ParseListing(r io.Reader) (*Listing, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return ParseListingDocument(doc), nil
}

// ParseListingDocument extracts schema.org microdata from a parsed page.
// Missing properties are left at zero.
func ParseListingDocument(doc *goquery.Document) *Listing {
	listing := &Listing{
		Address:    itemText(doc, "address"),
		Price:      itemNumber(doc, "price"),
		SquareFeet: itemNumber(doc, "floorSize"),
		Bedrooms:   itemNumber(doc, "numberOfRooms"),
		Bathrooms:  itemNumber(doc, "numberOfBathroomsTotal"),
	}
	if listing.Bathrooms == 0 {
		listing.Bathrooms = itemNumber(doc, "bathrooms")
	}

	doc.Find(`[itemprop="amenityFeature"]`).Each(func(i int, s *goquery.Selection) {
		name := itemValue(s.Find(`[itemprop="name"]`).First())
		if name == "" {
			name = itemValue(s)
		}
		name = strings.Join(strings.Fields(name), " ")
		if name == "" {
			return
		}
		listing.Amenities = append(listing.Amenities, name)
		if strings.Contains(strings.ToLower(name), "pool") {
			listing.HasPool = true
		}
	})

	return listing
}

// itemValue prefers the content attribute, which microdata uses for
// machine-readable values, over the visible text
func itemValue(s *goquery.Selection) string {
	if v, ok := s.Attr("content"); ok {
		return strings.TrimSpace(v)
	}
	return strings.TrimSpace(s.Text())
}

func itemText(doc *goquery.Document, prop string) string {
	s := doc.Find(fmt.Sprintf(`[itemprop=%q]`, prop)).First()
	if s.Length() == 0 {
		return ""
	}
	return strings.Join(strings.Fields(itemValue(s)), " ")
}

func itemNumber(doc *goquery.Document, prop string) float64 {
	s := doc.Find(fmt.Sprintf(`[itemprop=%q]`, prop)).First()
	if s.Length() == 0 {
		return 0
	}
	// QuantitativeValue wraps the figure in a nested value property
	if nested := s.Find(`[itemprop="value"]`).First(); nested.Length() > 0 {
		s = nested
	}
	match := leadingNumber.FindString(itemValue(s))
	if match == "" {
		return 0
	}
	v := ingest.ParseAmount(match)
	if v < 0 {
		return 0
	}
	return v
}
