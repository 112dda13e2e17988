// Package query builds backend query strings.
//
// DESIGN: Each backend has its own dialect:
//   - Content:   filters[k]=v, pagination[page]=n, sort=f, populate=a,b (bracketed, populate last)
//   - Analytics: flat snake_case parameters from typed structs
//
// Builders return the query without a leading "?". An empty result means the
// caller must not append "?" at all.
package query

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/doublev/bff-gateway/internal/targets"
)

var (
	// ErrUnknownFilter is returned when a caller filters on an undeclared key.
	ErrUnknownFilter = errors.New("unknown filter")
	// ErrUnknownParam is returned for analytics parameters the endpoint does not take.
	ErrUnknownParam = errors.New("unknown parameter")
	// ErrInvalidParam is returned when a parameter value does not parse.
	ErrInvalidParam = errors.New("invalid parameter")
)

// ContentParams are the typed inputs of a content-service list query.
type ContentParams struct {
	// Filters maps a field name to one or more accepted values.
	Filters  map[string][]string
	Page     int
	PageSize int
	Sort     []string
}

// Content renders params in the content-service dialect for target.
func Content(target targets.Target, p ContentParams) string {
	var q builder

	keys := make([]string, 0, len(p.Filters))
	for k, vs := range p.Filters {
		if len(vs) > 0 {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	for _, k := range keys {
		vs := p.Filters[k]
		name := "filters[" + url.QueryEscape(k) + "]"
		if len(vs) == 1 {
			q.add(name, vs[0])
			continue
		}
		for i, v := range vs {
			q.add(name+"[$in]["+strconv.Itoa(i)+"]", v)
		}
	}

	if p.Page > 0 {
		q.add("pagination[page]", strconv.Itoa(p.Page))
	}
	if p.PageSize > 0 {
		q.add("pagination[pageSize]", strconv.Itoa(p.PageSize))
	}
	for _, s := range p.Sort {
		q.add("sort", s)
	}

	if len(target.Populate) > 0 {
		escaped := make([]string, len(target.Populate))
		for i, rel := range target.Populate {
			escaped[i] = url.QueryEscape(rel)
		}
		q.addRaw("populate", strings.Join(escaped, ","))
	}
	return q.String()
}

// reserved inbound keys that are not filters.
var reserved = map[string]bool{
	"page":                 true,
	"pageSize":             true,
	"pagination[page]":     true,
	"pagination[pageSize]": true,
	"sort":                 true,
	"populate":             true,
}

// ParseContentParams reads list parameters from an inbound query.
//
// Filters may be given as k=v or filters[k]=v; the operator suffixes [$eq]
// and [$in][n] are also accepted. Keys the target does not declare are
// rejected with ErrUnknownFilter. Inbound populate is ignored.
func ParseContentParams(target targets.Target, values url.Values) (ContentParams, error) {
	p := ContentParams{Filters: make(map[string][]string)}

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		vs := values[key]
		if reserved[key] {
			if err := p.setReserved(key, vs); err != nil {
				return ContentParams{}, err
			}
			continue
		}

		field := filterField(key)
		if field == "" || !target.AllowsFilter(field) {
			return ContentParams{}, fmt.Errorf("%w %q for %s", ErrUnknownFilter, key, target.Name)
		}
		p.Filters[field] = append(p.Filters[field], vs...)
	}
	return p, nil
}

func (p *ContentParams) setReserved(key string, vs []string) error {
	switch key {
	case "page", "pagination[page]":
		n, err := positiveInt(key, vs)
		if err != nil {
			return err
		}
		p.Page = n
	case "pageSize", "pagination[pageSize]":
		n, err := positiveInt(key, vs)
		if err != nil {
			return err
		}
		p.PageSize = n
	case "sort":
		for _, v := range vs {
			if v != "" {
				p.Sort = append(p.Sort, v)
			}
		}
	}
	return nil
}

// filterField extracts the field name from k, filters[k], filters[k][$eq]
// or filters[k][$in][n]. It returns "" for anything else.
func filterField(key string) string {
	if !strings.HasPrefix(key, "filters[") {
		if strings.ContainsAny(key, "[]") {
			return ""
		}
		return key
	}
	rest := strings.TrimPrefix(key, "filters[")
	end := strings.IndexByte(rest, ']')
	if end <= 0 {
		return ""
	}
	field, suffix := rest[:end], rest[end+1:]
	switch {
	case suffix == "", suffix == "[$eq]":
		return field
	case strings.HasPrefix(suffix, "[$in]["):
		idx := strings.TrimSuffix(strings.TrimPrefix(suffix, "[$in]["), "]")
		if _, err := strconv.Atoi(idx); err != nil || !strings.HasSuffix(suffix, "]") {
			return ""
		}
		return field
	}
	return ""
}

func positiveInt(key string, vs []string) (int, error) {
	if len(vs) == 0 {
		return 0, nil
	}
	v := vs[len(vs)-1]
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w %s=%q: must be a positive integer", ErrInvalidParam, key, v)
	}
	return n, nil
}

// builder joins name=value segments with "&". Names are written as given;
// values are escaped unless added with addRaw.
type builder struct {
	b strings.Builder
}

func (q *builder) add(name, value string) {
	q.addRaw(name, url.QueryEscape(value))
}

func (q *builder) addRaw(name, value string) {
	if q.b.Len() > 0 {
		q.b.WriteByte('&')
	}
	q.b.WriteString(name)
	q.b.WriteByte('=')
	q.b.WriteString(value)
}

func (q *builder) String() string {
	return q.b.String()
}

// Join appends query to rawURL with "?" only when query is non-empty.
func Join(rawURL, query string) string {
	if query == "" {
		return rawURL
	}
	return rawURL + "?" + query
}
