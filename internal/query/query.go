// Package query builds validated requests for the Search Ads reporting and
// keyword recommendation endpoints.
package query

import (
	"bytes"
	"net/url"
)

const DefaultAPIURL = "https://app.searchads.apple.com/cm/api/v2"

// ResourceParam is the query string parameter carrying the target app id.
const ResourceParam = "adamId"

// Query is an assembled request, it is never modified after Build returns it.
type Query struct {
	typ        Type
	apiURL     string
	endpoint   string
	body       []byte
	params     url.Values
	resourceID string
}

func (q Query) Type() Type {
	return q.typ
}

func (q Query) APIURL() string {
	return q.apiURL
}

func (q Query) Endpoint() string {
	return q.endpoint
}

// Body returns a copy of the json body.
func (q Query) Body() []byte {
	return bytes.Clone(q.body)
}

// Params returns a copy of the query string parameters.
func (q Query) Params() url.Values {
	out := make(url.Values, len(q.params))
	for k, v := range q.params {
		out[k] = append([]string(nil), v...)
	}
	return out
}

func (q Query) ResourceID() string {
	return q.resourceID
}

// URL is the full address the query is posted to.
func (q Query) URL() string {
	return q.apiURL + q.endpoint + "?" + q.params.Encode()
}

// WithAPIURL returns a copy of the query pointed at a different api root.
func (q Query) WithAPIURL(apiURL string) Query {
	q.apiURL = apiURL
	return q
}
