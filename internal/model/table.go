package model

import "sort"

// Table describes a canonical table and its ordered composite key
type Table struct {
	Name      string
	KeyFields []string
	// Optional lists key fields that may hold the empty string
	Optional []string
}

// IsOptional reports whether the key field may be empty in this table
func (t Table) IsOptional(field string) bool {
	for _, f := range t.Optional {
		if f == field {
			return true
		}
	}
	return false
}

// HasKeyField reports whether field is part of the table's key
func (t Table) HasKeyField(field string) bool {
	for _, f := range t.KeyFields {
		if f == field {
			return true
		}
	}
	return false
}

// Canonical table names
const (
	TableCompany            = "company"
	TableBrand              = "brand"
	TableCategory           = "category"
	TableClaim              = "claim"
	TableRating             = "rating"
	TableScraper            = "scraper"
	TableScraperBrandMap    = "scraper_brand_map"
	TableScraperCategoryMap = "scraper_category_map"
	TableScraperCompanyMap  = "scraper_company_map"
	TableSubcategory        = "subcategory"
	TableURL                = "url"
)

// TablePrefix is tried when a scraper names a table without its prefix
// (e.g. "brand_map" for "scraper_brand_map")
const TablePrefix = "scraper_"

// Tables maps every canonical table name to its schema
var Tables = map[string]Table{
	// factual information about a company (url, email, etc.)
	TableCompany: {Name: TableCompany, KeyFields: []string{"company"}},
	// factual information about a brand
	TableBrand: {Name: TableBrand, KeyFields: []string{"company", "brand"}},
	// category membership; empty brand is company-level, empty company is a bare node
	TableCategory: {
		Name:      TableCategory,
		KeyFields: []string{"company", "brand", "category"},
		Optional:  []string{"company", "brand"},
	},
	TableClaim: {
		Name:      TableClaim,
		KeyFields: []string{"campaign", "company", "brand", "scope", "claim"},
		Optional:  []string{"brand", "scope"},
	},
	// should you buy from this company/brand?
	TableRating: {
		Name:      TableRating,
		KeyFields: []string{"campaign", "company", "brand", "scope"},
		Optional:  []string{"brand", "scope"},
	},
	// used to track when a scraper last ran
	TableScraper:            {Name: TableScraper, KeyFields: []string{"scraper_id"}},
	TableScraperBrandMap:    {Name: TableScraperBrandMap, KeyFields: []string{"scraper_id", "scraper_company", "scraper_brand"}},
	TableScraperCategoryMap: {Name: TableScraperCategoryMap, KeyFields: []string{"scraper_id", "scraper_category"}},
	TableScraperCompanyMap:  {Name: TableScraperCompanyMap, KeyFields: []string{"scraper_id", "scraper_company"}},
	TableSubcategory:        {Name: TableSubcategory, KeyFields: []string{"category", "subcategory"}},
	TableURL:                {Name: TableURL, KeyFields: []string{"url"}},
}

// RunIDFields are key fields that always carry the run (scraper) identifier
var RunIDFields = []string{"campaign", "scraper_id"}

// IsRunIDField reports whether the field is filled from the run identifier
func IsRunIDField(field string) bool {
	for _, f := range RunIDFields {
		if f == field {
			return true
		}
	}
	return false
}

// LookupTable returns the schema for a canonical table name
func LookupTable(name string) (Table, bool) {
	t, ok := Tables[name]
	return t, ok
}

// TableNames returns all canonical table names in sorted order
func TableNames() []string {
	names := make([]string, 0, len(Tables))
	for name := range Tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
