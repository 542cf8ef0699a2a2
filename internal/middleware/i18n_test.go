package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func request(headers map[string]string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/credits/packages", nil)
	req.RemoteAddr = "203.0.113.4:80"
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return req
}

func TestDetectLocale(t *testing.T) {
	cases := map[string]struct {
		headers  map[string]string
		fallback string
		country  string
		want     string
	}{
		"explicit locale wins over country":  {headers: map[string]string{"X-Locale": "ID"}, country: "US", want: "id"},
		"english browser":                    {headers: map[string]string{"Accept-Language": "en-US,en;q=0.9"}, want: "en"},
		"indonesian browser":                 {headers: map[string]string{"Accept-Language": "id-ID,en;q=0.8"}, want: "id"},
		"weights beat order":                 {headers: map[string]string{"Accept-Language": "fr;q=1.0, en;q=0.5, id;q=0.9"}, want: "id"},
		"unsupported locale maps to english": {headers: map[string]string{"X-Locale": "ja-JP"}, want: "en"},
		"buyer in indonesia":                 {country: "ID", want: "id"},
		"buyer elsewhere":                    {country: "SG", want: "en"},
		"configured fallback":                {fallback: "id", want: "id"},
		"nothing known":                      {want: "en"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, detectLocale(request(tc.headers), tc.fallback, tc.country))
		})
	}
}

func TestResolveCountry(t *testing.T) {
	failing := func(string) (string, error) { return "", errors.New("lookup failed") }
	cases := map[string]struct {
		headers map[string]string
		lookup  CountryLookup
		want    string
	}{
		"proxy header first":         {headers: map[string]string{"X-Country-Code": "us", "CF-IPCountry": "id"}, want: "US"},
		"cloudflare header":          {headers: map[string]string{"CF-IPCountry": "id"}, want: "ID"},
		"region from locale":         {headers: map[string]string{"X-Locale": "en_AU"}, want: "AU"},
		"region from browser":        {headers: map[string]string{"Accept-Language": "en-GB,en;q=0.9"}, want: "GB"},
		"bare indonesian language":   {headers: map[string]string{"Accept-Language": "id;q=0.8"}, want: "ID"},
		"ip lookup":                  {lookup: func(ip string) (string, error) { return map[string]string{"203.0.113.4": "my"}[ip], nil }, want: "MY"},
		"ip lookup failure is empty": {lookup: failing, want: ""},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, ResolveCountry(request(tc.headers), tc.lookup))
		})
	}
}

func TestI18NStoresLocaleAndCountry(t *testing.T) {
	var locale, country string
	h := I18N("en", nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		locale = LocaleFromContext(r.Context())
		country = CountryFromContext(r.Context())
	}))
	h.ServeHTTP(httptest.NewRecorder(), request(map[string]string{"CF-IPCountry": "id"}))
	assert.Equal(t, "id", locale)
	assert.Equal(t, "ID", country)

	assert.Equal(t, "en", LocaleFromContext(context.Background()))
	assert.Empty(t, CountryFromContext(context.Background()))
}

func TestClientIPPrefersForwardedFor(t *testing.T) {
	assert.Equal(t, "198.51.100.7", ClientIP(request(map[string]string{"X-Forwarded-For": "198.51.100.7, 10.0.0.1"})))
	assert.Equal(t, "203.0.113.4", ClientIP(request(nil)))
}
