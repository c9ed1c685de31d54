package query

// Type selects which endpoint a query targets.
type Type string

const (
	KeywordsRecommendation Type = "keywordsRecommendation"
	Reports                Type = "reports"
)

var types = map[Type]bool{
	KeywordsRecommendation: true,
	Reports:                true,
}

// Measure is the kind of object a report is about.
type Measure string

const (
	Campaigns   Measure = "campaigns"
	AdGroups    Measure = "adgroups"
	Keywords    Measure = "keywords"
	SearchTerms Measure = "searchterms"
)

var measures = map[Measure]bool{
	Campaigns:   true,
	AdGroups:    true,
	Keywords:    true,
	SearchTerms: true,
}

// GroupKey is a dimension report rows can be split by.
type GroupKey string

const (
	CountryOrRegion GroupKey = "countryOrRegion"
	DeviceClass     GroupKey = "deviceClass"
	AgeRange        GroupKey = "ageRange"
	Gender          GroupKey = "gender"
	AdminArea       GroupKey = "adminArea"
	Locality        GroupKey = "locality"
)

var groupKeys = map[GroupKey]bool{
	CountryOrRegion: true,
	DeviceClass:     true,
	AgeRange:        true,
	Gender:          true,
	AdminArea:       true,
	Locality:        true,
}

type Granularity string

const (
	Hourly  Granularity = "HOURLY"
	Daily   Granularity = "DAILY"
	Weekly  Granularity = "WEEKLY"
	Monthly Granularity = "MONTHLY"
)

var granularities = map[Granularity]bool{
	Hourly:  true,
	Daily:   true,
	Weekly:  true,
	Monthly: true,
}

type SortOrder string

const (
	Ascending  SortOrder = "ASCENDING"
	Descending SortOrder = "DESCENDING"
)

// Time zones accepted by the reporting API, ORTZ is the organization's own zone.
const (
	TimezoneUTC          = "UTC"
	TimezoneOrganization = "ORTZ"
)

type orderBy struct {
	Field     string    `json:"field"`
	SortOrder SortOrder `json:"sortOrder"`
}

type pagination struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

type reportSelector struct {
	OrderBy    []orderBy  `json:"orderBy"`
	Pagination pagination `json:"pagination"`
}

type reportsBody struct {
	StartTime                  string         `json:"startTime"`
	EndTime                    string         `json:"endTime"`
	TimeZone                   string         `json:"timeZone"`
	Granularity                Granularity    `json:"granularity,omitempty"`
	GroupBy                    []GroupKey     `json:"groupBy,omitempty"`
	ReturnRowTotals            bool           `json:"returnRowTotals"`
	ReturnRecordsWithNoMetrics bool           `json:"returnRecordsWithNoMetrics"`
	Selector                   reportSelector `json:"selector"`
}

type keywordsBody struct {
	Storefronts []string `json:"storefronts"`
}
