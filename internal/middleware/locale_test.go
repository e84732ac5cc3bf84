package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestDetectLocale(t *testing.T) {
	tests := []struct {
		name           string
		xLocale        string
		acceptLanguage string
		country        string
		want           string
	}{
		{name: "x-locale header wins", xLocale: "es-MX", acceptLanguage: "fr", want: "es"},
		{name: "accept-language parsed", acceptLanguage: "fr-CA,fr;q=0.9,en;q=0.5", want: "fr"},
		{name: "country fallback", country: "BR", want: "pt"},
		{name: "unknown country uses default", country: "XX", want: "en"},
		{name: "garbage headers use default", xLocale: "???", acceptLanguage: ";;;", want: "en"},
		{name: "nothing set uses default", want: "en"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.xLocale != "" {
				req.Header.Set("X-Locale", tc.xLocale)
			}
			if tc.acceptLanguage != "" {
				req.Header.Set("Accept-Language", tc.acceptLanguage)
			}
			if got := detectLocale(req, "en", tc.country); got != tc.want {
				t.Fatalf("detectLocale() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestLocaleMiddlewareStoresContextValues(t *testing.T) {
	var gotLocale, gotCountry string
	handler := Locale("en", nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotLocale = LocaleFromContext(r.Context())
		gotCountry = CountryFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Language", "ar")
	req.Header.Set("X-Country-Code", "eg")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if gotLocale != "ar" {
		t.Fatalf("locale = %q, want ar", gotLocale)
	}
	if gotCountry != "EG" {
		t.Fatalf("country = %q, want EG", gotCountry)
	}
}

func TestLocaleMiddlewareUsesCountryLookup(t *testing.T) {
	lookup := func(ip string) (string, error) { return "ke", nil }
	var gotLocale string
	handler := Locale("en", lookup)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotLocale = LocaleFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.9:1234"
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if gotLocale != "sw" {
		t.Fatalf("locale = %q, want sw", gotLocale)
	}
}
