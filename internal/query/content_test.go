package query

import (
	"errors"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doublev/bff-gateway/internal/targets"
)

var billings = targets.Target{
	Name:     "billings",
	Service:  targets.ServiceContent,
	Path:     "billings",
	Populate: []string{"deal", "milestone"},
	Filters:  []string{"customer", "status", "billing_month"},
}

func TestContent_OneSegmentPerFilterAndOnePopulate(t *testing.T) {
	tests := []struct {
		name     string
		filters  map[string][]string
		expected string
	}{
		{
			name:     "no filters",
			filters:  nil,
			expected: "populate=deal,milestone",
		},
		{
			name:     "one filter",
			filters:  map[string][]string{"customer": {"ACME"}},
			expected: "filters[customer]=ACME&populate=deal,milestone",
		},
		{
			name: "several filters sorted by key",
			filters: map[string][]string{
				"status":        {"paid"},
				"billing_month": {"2024-05"},
				"customer":      {"ACME"},
			},
			expected: "filters[billing_month]=2024-05&filters[customer]=ACME&filters[status]=paid&populate=deal,milestone",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := Content(billings, ContentParams{Filters: tt.filters})

			assert.Equal(t, tt.expected, q)
			assert.Equal(t, 1, strings.Count(q, "populate="))
			assert.True(t, strings.HasSuffix(q, "populate=deal,milestone"))
			assert.Equal(t, len(tt.filters), strings.Count(q, "filters["))
		})
	}
}

func TestContent_EscapesNamesAndValues(t *testing.T) {
	q := Content(targets.Target{Name: "clients"}, ContentParams{
		Filters: map[string][]string{"name": {"A&B Co = 1"}},
	})

	assert.Equal(t, "filters[name]=A%26B+Co+%3D+1", q)

	parsed, err := url.ParseQuery(q)
	require.NoError(t, err)
	assert.Equal(t, "A&B Co = 1", parsed.Get("filters[name]"))
}

func TestContent_MultiValuedFilter(t *testing.T) {
	q := Content(targets.Target{Name: "risk-flags"}, ContentParams{
		Filters: map[string][]string{"severity": {"high", "critical"}},
	})

	assert.Equal(t, "filters[severity][$in][0]=high&filters[severity][$in][1]=critical", q)
}

func TestContent_PaginationAndSort(t *testing.T) {
	q := Content(billings, ContentParams{
		Page:     2,
		PageSize: 50,
		Sort:     []string{"billing_month:desc"},
	})

	assert.Equal(t, "pagination[page]=2&pagination[pageSize]=50&sort=billing_month%3Adesc&populate=deal,milestone", q)
}

func TestContent_EmptyNeverDangles(t *testing.T) {
	target := targets.Target{Name: "clients"}

	q := Content(target, ContentParams{})

	assert.Equal(t, "", q)
	assert.Equal(t, "http://cms/api/clients", Join("http://cms/api/clients", q))
	assert.Equal(t, "http://cms/api/billings?populate=deal", Join("http://cms/api/billings", "populate=deal"))
}

func TestParseContentParams(t *testing.T) {
	values := url.Values{
		"customer":               {"ACME"},
		"filters[status][$eq]":   {"paid"},
		"filters[billing_month]": {"2024-05"},
		"page":                   {"3"},
		"pagination[pageSize]":   {"25"},
		"sort":                   {"billing_month:asc"},
		"populate":               {"*"},
	}

	p, err := ParseContentParams(billings, values)
	require.NoError(t, err)

	assert.Equal(t, map[string][]string{
		"customer":      {"ACME"},
		"status":        {"paid"},
		"billing_month": {"2024-05"},
	}, p.Filters)
	assert.Equal(t, 3, p.Page)
	assert.Equal(t, 25, p.PageSize)
	assert.Equal(t, []string{"billing_month:asc"}, p.Sort)
}

func TestParseContentParams_InSyntaxMerges(t *testing.T) {
	values := url.Values{
		"filters[status][$in][0]": {"draft"},
		"filters[status][$in][1]": {"sent"},
	}

	p, err := ParseContentParams(billings, values)
	require.NoError(t, err)
	assert.Equal(t, []string{"draft", "sent"}, p.Filters["status"])
}

func TestParseContentParams_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		values url.Values
		target error
	}{
		{"undeclared key", url.Values{"amount": {"10"}}, ErrUnknownFilter},
		{"undeclared bracket key", url.Values{"filters[amount]": {"10"}}, ErrUnknownFilter},
		{"unsupported operator", url.Values{"filters[customer][$gt]": {"A"}}, ErrUnknownFilter},
		{"nested unknown", url.Values{"foo[bar]": {"1"}}, ErrUnknownFilter},
		{"zero page", url.Values{"page": {"0"}}, ErrInvalidParam},
		{"text page size", url.Values{"pageSize": {"all"}}, ErrInvalidParam},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseContentParams(billings, tt.values)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.target), err.Error())
		})
	}
}

func TestParseThenRender_RoundTripsFilters(t *testing.T) {
	p, err := ParseContentParams(billings, url.Values{"customer": {"Déjà Vu"}})
	require.NoError(t, err)

	q := Content(billings, p)

	parsed, err := url.ParseQuery(q)
	require.NoError(t, err)
	assert.Equal(t, "Déjà Vu", parsed.Get("filters[customer]"))
	assert.Equal(t, "deal,milestone", parsed.Get("populate"))
}
