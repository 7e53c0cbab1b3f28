package obs

import "testing"

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"/healthz":                            "/healthz",
		"/v1/elections":                       "/v1/elections",
		"/v1/elections/01J5XYZ":               "/v1/elections/:id",
		"/v1/elections/01J5XYZ/credentials":   "/v1/elections/:id/credentials",
		"/v1/credentials/abc123":              "/v1/credentials/:id",
		"/v1/admin/elections":                 "/v1/admin/elections",
		"/v1/admin/elections/01J5XYZ":         "/v1/admin/elections/:id",
		"/v1/admin/elections/01J5XYZ/publish": "/v1/admin/elections/:id/publish",
		"/v1/admin/elections/01J5XYZ/results": "/v1/admin/elections/:id/results",
		"/s2s/v1/elections/01J5XYZ":           "/s2s/v1/elections/:id",
		"/s2s/v1/elections/01J5XYZ/results":   "/s2s/v1/elections/:id/results",
		"/s2s/v1/credentials":                 "/s2s/v1/credentials",
		"/v1/elections/01J5XYZ?x=1":           "/v1/elections/:id",
		"":                                    "/",
	}
	for in, want := range cases {
		if got := CanonicalPath(in); got != want {
			t.Errorf("CanonicalPath(%q) = %q, want %q", in, got, want)
		}
	}
}
