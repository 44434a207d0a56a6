package series

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kobimpw/Economic-terminal/internal/models"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const fredSeriesURL = "https://fred.stlouisfed.org/series/"

var defaultIndicators = []models.Indicator{
	{ID: "UMCSENT", Name: "Consumer Sentiment", DisplayName: "Consumer Sentiment", Category: "Consumer"},
	{ID: "HSN1F", Name: "New Home Sales", DisplayName: "New Home Sales", Category: "Housing"},
	{ID: "RRSFS", Name: "Real Retail Sales", DisplayName: "Real Retail Sales", Category: "Consumer"},
	{ID: "TOTALSA", Name: "Vehicle Sales", DisplayName: "Vehicle Sales", Category: "Consumer"},
	{ID: "PERMIT", Name: "Building Permits", DisplayName: "Building Permits", Category: "Housing"},
	{ID: "TCU", Name: "Capacity Utilization", DisplayName: "Capacity Utilization", Category: "Production"},
	{ID: "INDPRO", Name: "Industrial Production", DisplayName: "Industrial Production", Category: "Production"},
	{ID: "USALOLITOAASTSAM", Name: "OECD Leading Indicator", DisplayName: "OECD Composite Leading Indicator", Category: "Leading"},
	{ID: "CFNAI", Name: "Chicago Fed Activity", DisplayName: "Chicago Fed National Activity Index", Category: "Production"},
	{ID: "JTSHIL", Name: "JOLTS Hires", DisplayName: "Nonfarm Job Hires", Category: "Labor"},
	{ID: "JTSJOL", Name: "JOLTS Job Openings", DisplayName: "Job Openings (JOLTS)", Category: "Labor"},
	{ID: "CCSA", Name: "Continued Claims", DisplayName: "Continued Unemployment Claims", Category: "Labor"},
	{ID: "TEMPHELPS", Name: "Temp Help Services", DisplayName: "Temporary Help Services", Category: "Labor"},
	{ID: "CCLACBW027SBOG", Name: "Consumer Credit", DisplayName: "Consumer Credit", Category: "Credit"},
	{ID: "WLCFLPCL", Name: "Bank Credit", DisplayName: "Commercial Bank Credit", Category: "Credit"},
	{ID: "STLFSI4", Name: "Financial Stress Index", DisplayName: "St. Louis Fed Financial Stress Index", Category: "Financial"},
	{ID: "T10Y2Y", Name: "Yield Curve (10Y-2Y)", DisplayName: "10Y-2Y Treasury Yield Spread", Category: "Rates"},
	{ID: "UNRATE", Name: "Unemployment Rate", DisplayName: "Unemployment Rate", Category: "Labor"},
}

// Catalog is the ordered, immutable set of known indicators.
type Catalog struct {
	indicators []models.Indicator
	byID       map[string]int
}

// DefaultCatalog returns the dashboard's built-in indicators.
func DefaultCatalog() *Catalog {
	return NewCatalog(defaultIndicators)
}

// NewCatalog builds a catalog in the given order. IDs are upper-cased and
// categories title-cased; a repeated id keeps its first definition.
func NewCatalog(indicators []models.Indicator) *Catalog {
	title := cases.Title(language.English)
	c := &Catalog{byID: make(map[string]int, len(indicators))}
	for _, ind := range indicators {
		ind.ID = strings.ToUpper(strings.TrimSpace(ind.ID))
		if _, dup := c.byID[ind.ID]; dup || ind.ID == "" {
			continue
		}
		ind.Category = title.String(strings.TrimSpace(ind.Category))
		if ind.Name == "" {
			ind.Name = ind.ID
		}
		if ind.DisplayName == "" {
			ind.DisplayName = ind.Name
		}
		c.byID[ind.ID] = len(c.indicators)
		c.indicators = append(c.indicators, ind)
	}
	return c
}

// Restrict returns a catalog holding only ids, in catalog order. An empty
// list returns c itself.
func (c *Catalog) Restrict(ids []string) (*Catalog, error) {
	if len(ids) == 0 {
		return c, nil
	}
	keep := make(map[string]bool, len(ids))
	for _, id := range ids {
		id = strings.ToUpper(strings.TrimSpace(id))
		if _, ok := c.byID[id]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownSeries, id)
		}
		keep[id] = true
	}
	var subset []models.Indicator
	for _, ind := range c.indicators {
		if keep[ind.ID] {
			subset = append(subset, ind)
		}
	}
	return NewCatalog(subset), nil
}

func (c *Catalog) Lookup(seriesID string) (models.Indicator, bool) {
	i, ok := c.byID[seriesID]
	if !ok {
		return models.Indicator{}, false
	}
	return c.indicators[i], true
}

func (c *Catalog) Contains(seriesID string) bool {
	_, ok := c.byID[seriesID]
	return ok
}

func (c *Catalog) Len() int { return len(c.indicators) }

// IDs returns the series ids in catalog order.
func (c *Catalog) IDs() []string {
	ids := make([]string, len(c.indicators))
	for i, ind := range c.indicators {
		ids[i] = ind.ID
	}
	return ids
}

// All returns a copy of the indicators in catalog order.
func (c *Catalog) All() []models.Indicator {
	out := make([]models.Indicator, len(c.indicators))
	copy(out, c.indicators)
	return out
}

// Categories returns the distinct categories, sorted.
func (c *Catalog) Categories() []string {
	seen := map[string]bool{}
	var out []string
	for _, ind := range c.indicators {
		if !seen[ind.Category] {
			seen[ind.Category] = true
			out = append(out, ind.Category)
		}
	}
	sort.Strings(out)
	return out
}

// FredLink returns the public FRED page of a series.
func FredLink(seriesID string) string {
	return fredSeriesURL + seriesID
}
