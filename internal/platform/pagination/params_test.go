package pagination

import (
	"errors"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"
)

func TestParseDefaults(t *testing.T) {
	params, err := Parse(url.Values{}, Options{})
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if params.PageSize != DefaultPageSize {
		t.Fatalf("expected default page size %d got %d", DefaultPageSize, params.PageSize)
	}
	if params.PageToken != "" || !params.Cursor.IsZero() {
		t.Fatalf("expected first page, got %#v", params)
	}
	if params.Filters != nil {
		t.Fatalf("expected nil filters, got %#v", params.Filters)
	}
}

func TestParsePageSizeClamped(t *testing.T) {
	opts := Options{DefaultPageSize: 25, MaxPageSize: 40}
	values := url.Values{"pageSize": {"30"}}

	params, err := Parse(values, opts)
	if err != nil || params.PageSize != 30 {
		t.Fatalf("expected page size 30, got %d err=%v", params.PageSize, err)
	}

	values.Set("pageSize", "400")
	params, err = Parse(values, opts)
	if err != nil || params.PageSize != 40 {
		t.Fatalf("expected page size clamped to 40, got %d err=%v", params.PageSize, err)
	}
}

func TestParseInvalidPageSize(t *testing.T) {
	for _, raw := range []string{"abc", "0", "-3"} {
		_, err := Parse(url.Values{"pageSize": {raw}}, Options{})
		if !errors.Is(err, ErrInvalidPageSize) {
			t.Fatalf("pageSize %q: expected ErrInvalidPageSize, got %v", raw, err)
		}
	}
}

func TestPageTokenRoundTrip(t *testing.T) {
	cursor := Cursor{CreatedAt: time.Date(2025, 3, 1, 18, 30, 0, 0, time.UTC), ID: "01HQ"}
	token, err := EncodeToken(cursor)
	if err != nil {
		t.Fatalf("EncodeToken: %v", err)
	}

	params, err := Parse(url.Values{"pageToken": {token}}, Options{})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !params.Cursor.CreatedAt.Equal(cursor.CreatedAt) || params.Cursor.ID != cursor.ID {
		t.Fatalf("unexpected cursor %#v", params.Cursor)
	}
}

func TestEncodeZeroCursorIsEmpty(t *testing.T) {
	token, err := EncodeToken(Cursor{})
	if err != nil || token != "" {
		t.Fatalf("expected empty token, got %q err=%v", token, err)
	}
}

func TestParseInvalidPageToken(t *testing.T) {
	for _, token := range []string{"!!!", "bnVsbA"} {
		_, err := Parse(url.Values{"pageToken": {token}}, Options{})
		if !errors.Is(err, ErrInvalidPageToken) {
			t.Fatalf("token %q: expected ErrInvalidPageToken, got %v", token, err)
		}
	}
}

func TestParseFilters(t *testing.T) {
	req := httptest.NewRequest("GET", "/shops/s1/payments?filter=status==%22succeeded%22", nil)
	params, err := FromRequest(req, Options{AllowedFilters: []string{"status"}})
	if err != nil {
		t.Fatalf("FromRequest: %v", err)
	}
	value, ok := params.Filter("status")
	if !ok || value != "succeeded" {
		t.Fatalf("expected status filter, got %q ok=%v", value, ok)
	}
}

func TestParseFiltersInvalid(t *testing.T) {
	cases := []struct {
		name    string
		filter  string
		allowed []string
	}{
		{name: "not supported", filter: "status==paid"},
		{name: "unknown field", filter: "amount==10", allowed: []string{"status"}},
		{name: "missing operator", filter: "status", allowed: []string{"status"}},
		{name: "empty value", filter: "status==", allowed: []string{"status"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(url.Values{"filter": {tc.filter}}, Options{AllowedFilters: tc.allowed})
			if !errors.Is(err, ErrInvalidFilter) {
				t.Fatalf("expected ErrInvalidFilter, got %v", err)
			}
		})
	}
}
