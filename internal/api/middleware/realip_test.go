package middleware

import (
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"
)

func TestClientIP(t *testing.T) {
	tests := []struct {
		name   string
		remote string
		xff    string
		want   string
	}{
		{name: "remote addr", remote: "192.0.2.1:1234", want: "192.0.2.1"},
		{name: "ipv6", remote: "[2001:db8::1]:443", want: "2001:db8::1"},
		{name: "без порта", remote: "192.0.2.1", want: "192.0.2.1"},
		{name: "x-forwarded-for игнорируется", remote: "10.0.0.1:80", xff: "203.0.113.7", want: "10.0.0.1"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tc.remote
			if tc.xff != "" {
				req.Header.Set("X-Forwarded-For", tc.xff)
			}
			if got := ClientIP(req); got != tc.want {
				t.Errorf("ClientIP = %q, ожидался %q", got, tc.want)
			}
		})
	}
}

func TestRealIP(t *testing.T) {
	trusted, err := ParseTrustedProxies([]string{"10.0.0.0/8", "192.0.2.10"})
	if err != nil {
		t.Fatalf("ParseTrustedProxies: %v", err)
	}

	tests := []struct {
		name    string
		trusted []netip.Prefix
		remote  string
		xff     []string
		want    string
	}{
		{name: "без доверенных прокси", remote: "10.0.0.1:80", xff: []string{"203.0.113.7"}, want: "10.0.0.1"},
		{name: "недоверенный собеседник", trusted: trusted, remote: "198.51.100.3:80", xff: []string{"203.0.113.7"}, want: "198.51.100.3"},
		{name: "доверенный прокси", trusted: trusted, remote: "10.0.0.1:80", xff: []string{"203.0.113.7"}, want: "203.0.113.7"},
		{name: "одиночный адрес прокси", trusted: trusted, remote: "192.0.2.10:80", xff: []string{"203.0.113.7"}, want: "203.0.113.7"},
		{
			name: "подделанный левый адрес", trusted: trusted, remote: "10.0.0.1:80",
			xff: []string{"1.1.1.1, 203.0.113.7, 10.0.0.2"}, want: "203.0.113.7",
		},
		{
			name: "несколько заголовков", trusted: trusted, remote: "10.0.0.1:80",
			xff: []string{"1.1.1.1", "203.0.113.8"}, want: "203.0.113.8",
		},
		{name: "мусор в цепочке", trusted: trusted, remote: "10.0.0.1:80", xff: []string{"203.0.113.7, bogus"}, want: "10.0.0.1"},
		{name: "только прокси в цепочке", trusted: trusted, remote: "10.0.0.1:80", xff: []string{"10.0.0.5"}, want: "10.0.0.1"},
		{name: "без заголовка", trusted: trusted, remote: "10.0.0.1:80", want: "10.0.0.1"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var got string
			h := RealIP(tc.trusted)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
				got = ClientIP(r)
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tc.remote
			for _, v := range tc.xff {
				req.Header.Add("X-Forwarded-For", v)
			}
			h.ServeHTTP(httptest.NewRecorder(), req)

			if got != tc.want {
				t.Errorf("клиент = %q, ожидался %q", got, tc.want)
			}
		})
	}
}

func TestParseTrustedProxies(t *testing.T) {
	got, err := ParseTrustedProxies([]string{" 10.1.2.3/8 ", "", "::ffff:192.0.2.1", "2001:db8::/32"})
	if err != nil {
		t.Fatalf("ParseTrustedProxies: %v", err)
	}
	want := []string{"10.0.0.0/8", "192.0.2.1/32", "2001:db8::/32"}
	if len(got) != len(want) {
		t.Fatalf("получено %v, ожидалось %v", got, want)
	}
	for i := range want {
		if got[i].String() != want[i] {
			t.Errorf("[%d] = %s, ожидалось %s", i, got[i], want[i])
		}
	}

	for _, bad := range []string{"10.0.0.0/33", "proxy.local"} {
		if _, err := ParseTrustedProxies([]string{bad}); err == nil {
			t.Errorf("%q: ожидалась ошибка", bad)
		}
	}
}
