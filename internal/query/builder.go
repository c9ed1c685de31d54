package query

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"searchads-client/internal/components/chrono"
)

var (
	ErrInvalidQueryType  = errors.New("query: invalid query type")
	ErrNoQueryType       = errors.New("query: no query type selected")
	ErrInvalidFieldValue = errors.New("query: invalid field value")
	ErrInvalidDateFormat = errors.New("query: invalid date format")
)

const (
	DefaultLimit  = 50
	DefaultOffset = 0
	MaxLimit      = 1000

	// DateLayout is the YYYY-MM-DD form the api expects.
	DateLayout = "2006-01-02"
)

var storefrontRegex = regexp.MustCompile(`^[A-Z]{2}$`)

// TimeValue is implemented by date types from other libraries that can
// convert themselves to a time.Time.
type TimeValue interface {
	Time() time.Time
}

type config struct {
	typ         Type
	appID       int64
	keywordText string
	storefronts []string

	measure                    Measure
	timezone                   string
	startTime                  string
	endTime                    string
	groupBy                    []GroupKey
	limit                      int
	offset                     int
	hasLimit                   bool
	hasOffset                  bool
	granularity                Granularity
	orderBy                    []orderBy
	returnRowTotals            bool
	returnRecordsWithNoMetrics bool
}

// Builder accumulates validated query settings. Every setter checks its
// argument right away and leaves the builder untouched when it fails.
type Builder struct {
	cfg   config
	clock chrono.API
}

type Option func(b *Builder)

// WithClock sets the clock used to fill in a missing date range.
func WithClock(clock chrono.API) Option {
	return func(b *Builder) {
		b.clock = clock
	}
}

func NewBuilder(opts ...Option) *Builder {
	b := &Builder{
		clock: chrono.StandardImpl{},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// New is NewBuilder followed by Type.
func New(typ Type, opts ...Option) (*Builder, error) {
	b := NewBuilder(opts...)
	err := b.Type(typ)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func invalid(field string, value any) error {
	return fmt.Errorf("%w: %s %v", ErrInvalidFieldValue, field, value)
}

func (b *Builder) Type(typ Type) error {
	if !types[typ] {
		return fmt.Errorf("%w: %q", ErrInvalidQueryType, typ)
	}
	b.cfg.typ = typ
	return nil
}

// AppID sets the app (adam id) the query is about.
func (b *Builder) AppID(id int64) error {
	if id <= 0 {
		return invalid("appId", id)
	}
	b.cfg.appID = id
	return nil
}

func (b *Builder) KeywordText(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return invalid("keywordText", strconv.Quote(text))
	}
	b.cfg.keywordText = text
	return nil
}

// Storefronts sets the two letter country codes to recommend keywords for.
func (b *Builder) Storefronts(codes ...string) error {
	if len(codes) == 0 {
		return invalid("storefronts", "[]")
	}
	normalized := make([]string, len(codes))
	for i, code := range codes {
		upper := strings.ToUpper(strings.TrimSpace(code))
		if !storefrontRegex.MatchString(upper) {
			return invalid("storefront", strconv.Quote(code))
		}
		normalized[i] = upper
	}
	b.cfg.storefronts = normalized
	return nil
}

func (b *Builder) Measure(m Measure) error {
	if !measures[m] {
		return invalid("measure", strconv.Quote(string(m)))
	}
	b.cfg.measure = m
	return nil
}

func (b *Builder) Timezone(tz string) error {
	if tz != TimezoneUTC && tz != TimezoneOrganization {
		return invalid("timezone", strconv.Quote(tz))
	}
	b.cfg.timezone = tz
	return nil
}

func formatDate(value any) (string, error) {
	switch v := value.(type) {
	case time.Time:
		return v.Format(DateLayout), nil
	case *time.Time:
		if v == nil {
			return "", fmt.Errorf("%w: nil time", ErrInvalidDateFormat)
		}
		return v.Format(DateLayout), nil
	case TimeValue:
		return v.Time().Format(DateLayout), nil
	case string:
		parsed, err := time.Parse(DateLayout, v)
		if err != nil || len(v) != len(DateLayout) {
			return "", fmt.Errorf("%w: %q", ErrInvalidDateFormat, v)
		}
		return parsed.Format(DateLayout), nil
	default:
		return "", fmt.Errorf("%w: %v (%T)", ErrInvalidDateFormat, value, value)
	}
}

// Date sets the report date range, a single argument makes a one day range.
// Values may be a time.Time, *time.Time, TimeValue or "YYYY-MM-DD" string.
func (b *Builder) Date(start any, end ...any) error {
	if len(end) > 1 {
		return invalid("date", fmt.Sprintf("%d end dates", len(end)))
	}
	startTime, err := formatDate(start)
	if err != nil {
		return err
	}
	endTime := startTime
	if len(end) == 1 {
		endTime, err = formatDate(end[0])
		if err != nil {
			return err
		}
	}
	// YYYY-MM-DD sorts lexically in date order
	if startTime > endTime {
		return invalid("date", fmt.Sprintf("%s after %s", startTime, endTime))
	}
	b.cfg.startTime = startTime
	b.cfg.endTime = endTime
	return nil
}

// GroupBy appends group keys, order is kept and repeats are allowed.
func (b *Builder) GroupBy(keys ...GroupKey) error {
	for _, key := range keys {
		if !groupKeys[key] {
			return invalid("groupBy", strconv.Quote(string(key)))
		}
	}
	b.cfg.groupBy = append(b.cfg.groupBy, keys...)
	return nil
}

func (b *Builder) Limit(n int) error {
	if n <= 0 || n > MaxLimit {
		return invalid("limit", n)
	}
	b.cfg.limit = n
	b.cfg.hasLimit = true
	return nil
}

func (b *Builder) Offset(n int) error {
	if n < 0 {
		return invalid("offset", n)
	}
	b.cfg.offset = n
	b.cfg.hasOffset = true
	return nil
}

func (b *Builder) Granularity(g Granularity) error {
	if !granularities[g] {
		return invalid("granularity", strconv.Quote(string(g)))
	}
	b.cfg.granularity = g
	return nil
}

func (b *Builder) OrderBy(field string, order SortOrder) error {
	if strings.TrimSpace(field) == "" {
		return invalid("orderBy field", strconv.Quote(field))
	}
	if order != Ascending && order != Descending {
		return invalid("sortOrder", strconv.Quote(string(order)))
	}
	b.cfg.orderBy = append(b.cfg.orderBy, orderBy{Field: field, SortOrder: order})
	return nil
}

func (b *Builder) ReturnRowTotals(v bool) {
	b.cfg.returnRowTotals = v
}

func (b *Builder) ReturnRecordsWithNoMetrics(v bool) {
	b.cfg.returnRecordsWithNoMetrics = v
}

func (b *Builder) resourceID() string {
	if b.cfg.appID == 0 {
		return ""
	}
	return strconv.FormatInt(b.cfg.appID, 10)
}

// Build assembles the query, the only thing it can fail on is a missing type.
func (b *Builder) Build() (Query, error) {
	if b.cfg.typ == "" {
		return Query{}, ErrNoQueryType
	}

	q := Query{
		typ:        b.cfg.typ,
		apiURL:     DefaultAPIURL,
		resourceID: b.resourceID(),
		params:     url.Values{},
	}

	var body any
	switch b.cfg.typ {
	case KeywordsRecommendation:
		q.endpoint = "/keywords/recommendation"
		if b.cfg.keywordText != "" {
			q.params.Set("text", b.cfg.keywordText)
		}
		storefronts := append([]string{}, b.cfg.storefronts...)
		body = keywordsBody{Storefronts: storefronts}
	case Reports:
		measure := b.cfg.measure
		if measure == "" {
			measure = Campaigns
		}
		q.endpoint = "/reports/" + string(measure)
		body = b.reportsBody()
	}
	q.params.Set(ResourceParam, q.resourceID)

	encoded, err := json.Marshal(body)
	if err != nil {
		// every field is a plain string, number or slice of those
		panic(fmt.Sprintf("query: marshal body: %s", err))
	}
	q.body = encoded

	return q, nil
}

func (b *Builder) reportsBody() reportsBody {
	cfg := b.cfg

	timezone := cfg.timezone
	if timezone == "" {
		timezone = TimezoneUTC
	}
	startTime, endTime := cfg.startTime, cfg.endTime
	if startTime == "" {
		today := b.clock.Now().In(time.UTC).Format(DateLayout)
		startTime, endTime = today, today
	}
	limit := DefaultLimit
	if cfg.hasLimit {
		limit = cfg.limit
	}
	offset := DefaultOffset
	if cfg.hasOffset {
		offset = cfg.offset
	}

	return reportsBody{
		StartTime:                  startTime,
		EndTime:                    endTime,
		TimeZone:                   timezone,
		Granularity:                cfg.granularity,
		GroupBy:                    append([]GroupKey(nil), cfg.groupBy...),
		ReturnRowTotals:            cfg.returnRowTotals,
		ReturnRecordsWithNoMetrics: cfg.returnRecordsWithNoMetrics,
		Selector: reportSelector{
			OrderBy: append([]orderBy{}, cfg.orderBy...),
			Pagination: pagination{
				Limit:  limit,
				Offset: offset,
			},
		},
	}
}
