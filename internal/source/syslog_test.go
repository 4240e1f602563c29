package source

import "testing"

func TestFastStripRFC5424ValidFrame(t *testing.T) {
	line := `<34>1 2003-10-11T22:14:15.003Z mymachine.example.com su 1234 ID47 - BOM'su root' failed`
	got, ok := fastStripRFC5424(line)
	if !ok {
		t.Fatalf("expected valid RFC5424 frame to parse")
	}
	if got.PRI != 34 {
		t.Fatalf("pri = %d, want 34", got.PRI)
	}
	if got.Facility != 4 || got.Severity != 2 {
		t.Fatalf("facility/severity = %d/%d, want 4/2", got.Facility, got.Severity)
	}
	if got.Body == "" {
		t.Fatalf("expected a non-empty body")
	}
}

func TestFastStripRFC5424RejectsNonConforming(t *testing.T) {
	if _, ok := fastStripRFC5424("not a syslog line at all"); ok {
		t.Fatalf("expected non-conforming input to fail fast-strip")
	}
}

func TestFastStripRFC3164ValidFrame(t *testing.T) {
	line := `<13>Oct 11 22:14:15 mymachine su: 'su root' failed for lonvick`
	got, ok := fastStripRFC3164(line)
	if !ok {
		t.Fatalf("expected valid RFC3164 frame to parse")
	}
	if got.PRI != 13 {
		t.Fatalf("pri = %d, want 13", got.PRI)
	}
	if got.Body != "'su root' failed for lonvick" {
		t.Fatalf("body = %q", got.Body)
	}
}

func TestFastStripRFC3164RejectsBadMonth(t *testing.T) {
	line := `<13>Xxx 11 22:14:15 mymachine su: msg`
	if _, ok := fastStripRFC3164(line); ok {
		t.Fatalf("expected bad month abbreviation to reject")
	}
}

func TestFastStripRFC3164RejectsMalformedTime(t *testing.T) {
	line := `<13>Oct 11 22:14 mymachine su: msg`
	if _, ok := fastStripRFC3164(line); ok {
		t.Fatalf("expected malformed HH:MM:SS to reject")
	}
}

func TestFullParseSyslogNeverErrors(t *testing.T) {
	got := fullParseSyslog("garbage that is not syslog shaped")
	if got.PRI != -1 {
		t.Fatalf("expected PRI -1 sentinel for unframed input, got %d", got.PRI)
	}
	if got.Body == "" {
		t.Fatalf("expected body to fall back to the raw line")
	}
}
