package capture

import (
	"bytes"
	"testing"
)

func TestRewriteCountry_DoubleQuotes(t *testing.T) {
	body := []byte(`<script>var country = "US";</script>`)
	got := RewriteCountry(body, "FR")
	want := []byte(`<script>var country = "FR";</script>`)
	if !bytes.Equal(got, want) {
		t.Errorf("RewriteCountry = %s, want %s", got, want)
	}
}

func TestRewriteCountry_SingleQuotes(t *testing.T) {
	body := []byte(`<script>var country = 'DE';</script>`)
	got := RewriteCountry(body, "JP")
	want := []byte(`<script>var country = "JP";</script>`)
	if !bytes.Equal(got, want) {
		t.Errorf("RewriteCountry = %s, want %s", got, want)
	}
}

func TestRewriteCountry_AllOccurrences(t *testing.T) {
	body := []byte(`var country = "US"; var other = 1; var country = 'GB';`)
	got := RewriteCountry(body, "SE")
	want := []byte(`var country = "SE"; var other = 1; var country = "SE";`)
	if !bytes.Equal(got, want) {
		t.Errorf("RewriteCountry = %s, want %s", got, want)
	}
}

func TestRewriteCountry_PatternAbsentPassesThrough(t *testing.T) {
	body := []byte(`<html><body>no country here</body></html>`)
	got := RewriteCountry(body, "FR")
	if !bytes.Equal(got, body) {
		t.Errorf("RewriteCountry modified a body without the pattern: %s", got)
	}
}

func TestRewriteCountry_LowercaseNotMatched(t *testing.T) {
	// The site embeds uppercase codes; lowercase assignments are someone
	// else's variable.
	body := []byte(`var country = "us";`)
	got := RewriteCountry(body, "FR")
	if !bytes.Equal(got, body) {
		t.Errorf("RewriteCountry matched lowercase code: %s", got)
	}
}

func TestRewriteCountry_ReplacementIsLiteral(t *testing.T) {
	// Caller-supplied codes are not validated, so regex template syntax in
	// the code must not expand.
	body := []byte(`var country = "US";`)
	got := RewriteCountry(body, "$1")
	want := []byte(`var country = "$1";`)
	if !bytes.Equal(got, want) {
		t.Errorf("RewriteCountry = %s, want %s", got, want)
	}
}

func TestRewriteCountry_ThreeLetterNotMatched(t *testing.T) {
	body := []byte(`var country = "USA";`)
	got := RewriteCountry(body, "FR")
	if !bytes.Equal(got, body) {
		t.Errorf("RewriteCountry matched three-letter code: %s", got)
	}
}
