package source

import (
	"strconv"
	"strings"
)

// fullParseSyslog is the non-fast-path fallback: a tolerant parser that
// accepts either RFC5424 or RFC3164-shaped input and degrades gracefully
// (best-effort PRI decode, body = remainder) rather than erroring, matching
// §7's "programmer errors... logged as warnings... a single bad record
// cannot crash the pipeline".
func fullParseSyslog(line string) StrippedSyslog {
	pri, rest, ok := readPRI(line)
	if !ok {
		return StrippedSyslog{PRI: -1, Body: line}
	}
	fac, sev := decodePRI(pri)
	// Best-effort: drop the first run of non-space "structural" tokens up
	// to a recognizable message boundary. If nothing recognizable is
	// found, the remainder after PRI is treated as the body.
	if strip, ok := fastStripRFC5424(line); ok {
		return strip
	}
	if strip, ok := fastStripRFC3164(line); ok {
		return strip
	}
	return StrippedSyslog{PRI: pri, Facility: fac, Severity: sev, Body: strings.TrimSpace(rest)}
}



// newSyslogPreproc builds the per-event preprocessing hook selected by
// header_mode (§4.4): raw attaches no hook; skip strips the header (via the
// fast-strip validator when fastStrip is set, falling back to the full
// parser on non-conforming input); tag does the same but also attaches
// syslog.pri/facility/severity into the event's tag set.
func newSyslogPreproc(mode HeaderMode, fastStrip bool, rfc string) PreprocFunc {
	if mode == HeaderRaw {
		return nil
	}
	return func(ev *Event) error {
		line := string(ev.Payload)
		var stripped StrippedSyslog
		var ok bool
		if fastStrip {
			switch rfc {
			case "3164":
				stripped, ok = fastStripRFC3164(line)
			default:
				stripped, ok = fastStripRFC5424(line)
			}
		}
		if !ok {
			stripped = fullParseSyslog(line)
		}
		ev.Payload = []byte(stripped.Body)
		if mode == HeaderTag {
			ev.Tags["syslog.pri"] = strconv.Itoa(stripped.PRI)
			ev.Tags["syslog.facility"] = strconv.Itoa(stripped.Facility)
			ev.Tags["syslog.severity"] = strconv.Itoa(stripped.Severity)
		}
		return nil
	}
}
