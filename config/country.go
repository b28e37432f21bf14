package config

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// listingsPerPage is the marketplace's search page size, used by the
// _Desde_ offset in paginated search URLs.
const listingsPerPage = 50

// Country describes one marketplace site.
type Country struct {
	Name           string
	Code           string
	SiteID         string
	Domain         string
	Currency       string
	CurrencySymbol string
}

var countries = []Country{
	{Name: "argentina", Code: "ar", SiteID: "MLA", Domain: "mercadolibre.com.ar", Currency: "ARS", CurrencySymbol: "$"},
	{Name: "mexico", Code: "mx", SiteID: "MLM", Domain: "mercadolibre.com.mx", Currency: "MXN", CurrencySymbol: "$"},
	{Name: "brasil", Code: "br", SiteID: "MLB", Domain: "mercadolivre.com.br", Currency: "BRL", CurrencySymbol: "R$"},
	{Name: "colombia", Code: "co", SiteID: "MCO", Domain: "mercadolibre.com.co", Currency: "COP", CurrencySymbol: "$"},
	{Name: "chile", Code: "cl", SiteID: "MLC", Domain: "mercadolibre.cl", Currency: "CLP", CurrencySymbol: "$"},
	{Name: "peru", Code: "pe", SiteID: "MPE", Domain: "mercadolibre.com.pe", Currency: "PEN", CurrencySymbol: "S/"},
	{Name: "uruguay", Code: "uy", SiteID: "MLU", Domain: "mercadolibre.com.uy", Currency: "UYU", CurrencySymbol: "$"},
}

var countryAliases = map[string]string{
	"brazil": "brasil",
	"méxico": "mexico",
	"perú":   "peru",
}

// LookupCountry resolves a country by name, ISO code or site id.
func LookupCountry(key string) (Country, bool) {
	key = strings.ToLower(strings.TrimSpace(key))
	if alias, ok := countryAliases[key]; ok {
		key = alias
	}
	for _, c := range countries {
		if key == c.Name || key == c.Code || key == strings.ToLower(c.SiteID) {
			return c, true
		}
	}
	return Country{}, false
}

// Countries returns the supported countries sorted by name.
func Countries() []Country {
	out := make([]Country, len(countries))
	copy(out, countries)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// BaseURL returns the site's storefront root, used for product pages.
func (c Country) BaseURL() string {
	return "https://www." + c.Domain
}

// SearchURL builds the listing URL for a term and a 1-based page number.
func (c Country) SearchURL(term string, page int) string {
	slug := strings.Join(strings.Fields(strings.ToLower(term)), "-")
	u := fmt.Sprintf("https://listado.%s/%s", c.Domain, url.PathEscape(slug))
	if page > 1 {
		u += fmt.Sprintf("_Desde_%d", 1+listingsPerPage*(page-1))
	}
	return u
}
