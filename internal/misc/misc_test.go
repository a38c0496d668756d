package misc

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseOAuthCallback(t *testing.T) {
	cases := map[string]struct {
		input string
		want  OAuthCallback
	}{
		"full url": {
			input: "https://shop.example.com/oauth?code=abc&state=s1&timestamp=1700000000",
			want:  OAuthCallback{Code: "abc", State: "s1", Timestamp: "1700000000"},
		},
		"bare query": {
			input: "?code=abc&state=s1",
			want:  OAuthCallback{Code: "abc", State: "s1"},
		},
		"pairs only": {
			input: "code=abc&timestamp=12",
			want:  OAuthCallback{Code: "abc", Timestamp: "12"},
		},
		"no scheme": {
			input: "localhost:8317/oauth?code=abc",
			want:  OAuthCallback{Code: "abc"},
		},
		"fragment": {
			input: "http://localhost/oauth#code=abc&state=s1",
			want:  OAuthCallback{Code: "abc", State: "s1"},
		},
		"error": {
			input: "http://localhost/oauth?error=access_denied&error_description=denied",
			want:  OAuthCallback{Error: "access_denied", ErrorDescription: "denied"},
		},
		"description only": {
			input: "http://localhost/oauth?error_description=denied",
			want:  OAuthCallback{Error: "denied"},
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			got, err := ParseOAuthCallback(tc.input)
			if err != nil {
				t.Fatalf("ParseOAuthCallback: %v", err)
			}
			if *got != tc.want {
				t.Fatalf("got %+v, want %+v", *got, tc.want)
			}
		})
	}
}

func TestParseOAuthCallback_Errors(t *testing.T) {
	if cb, err := ParseOAuthCallback("   "); cb != nil || err != nil {
		t.Fatalf("empty input should yield nil, nil; got %v %v", cb, err)
	}
	if _, err := ParseOAuthCallback("garbage"); err == nil {
		t.Fatal("expected error for garbage input")
	}
	if _, err := ParseOAuthCallback("http://localhost/oauth?state=s1"); err == nil {
		t.Fatal("expected error when code is missing")
	}
}

func TestOAuthCallback_Query(t *testing.T) {
	cb := &OAuthCallback{Code: "abc", State: "s1", Timestamp: "12"}
	q := cb.Query()
	if q.Get("code") != "abc" || q.Get("state") != "s1" || q.Get("timestamp") != "12" {
		t.Fatalf("unexpected query %v", q)
	}
	if _, ok := q["error"]; ok {
		t.Fatal("empty fields should be omitted")
	}
}

func TestWriteCredentials(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "token.json")
	if err := WriteCredentials(path, []byte(`{"access_token":"abc"}`)); err != nil {
		t.Fatalf("WriteCredentials: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != `{"access_token":"abc"}` {
		t.Fatalf("unexpected content %q", data)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Fatalf("unexpected permissions %v", perm)
	}
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("temporary file left behind: %v", entries)
	}
}
