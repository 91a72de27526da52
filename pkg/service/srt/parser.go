package srt

import (
	"strconv"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/vidqa/pkg/domain/model"
)

// Parse reads SubRip text into transcript fragments. Each cue becomes one fragment
// whose lines are joined with a single space; cues without text are dropped.
//
//	1
//	00:00:00,000 --> 00:00:01,830
//	I'm happy to
//	have you here today.
func Parse(text string) ([]model.TranscriptFragment, error) {
	text = strings.TrimPrefix(text, "\ufeff")
	text = strings.ReplaceAll(text, "\r\n", "\n")

	var fragments []model.TranscriptFragment
	var (
		start, end time.Duration
		timed      bool
		lines      []string
	)

	flush := func() {
		if timed && len(lines) > 0 {
			fragments = append(fragments, model.TranscriptFragment{
				Text:     strings.Join(lines, " "),
				Start:    start,
				Duration: max(end-start, 0),
			})
		}
		timed = false
		lines = lines[:0]
	}

	for n, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)

		switch {
		case line == "":
			flush()

		case strings.Contains(line, "-->"):
			// a timing line always opens a new cue, even without a blank separator
			flush()
			s, e, err := parseTiming(line)
			if err != nil {
				return nil, goerr.Wrap(err, "invalid cue timing", goerr.V("line", n+1))
			}
			start, end, timed = s, e, true

		case !timed && isDigitOnly(line):
			// sequence number

		case timed:
			lines = append(lines, line)
		}
	}
	flush()

	return fragments, nil
}

func parseTiming(line string) (time.Duration, time.Duration, error) {
	parts := strings.SplitN(line, "-->", 2)
	start, err := parseTimestamp(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, err
	}
	// position settings may follow the end timestamp
	endField := strings.Fields(parts[1])
	if len(endField) == 0 {
		return 0, 0, goerr.New("missing end timestamp")
	}
	end, err := parseTimestamp(endField[0])
	if err != nil {
		return 0, 0, err
	}
	return start, end, nil
}

// parseTimestamp parses HH:MM:SS,mmm. A dot is accepted as the millisecond separator.
func parseTimestamp(s string) (time.Duration, error) {
	s = strings.Replace(s, ".", ",", 1)
	hms, msPart, ok := strings.Cut(s, ",")
	if !ok {
		return 0, goerr.New("timestamp has no milliseconds", goerr.V("timestamp", s))
	}

	fields := strings.Split(hms, ":")
	if len(fields) != 3 {
		return 0, goerr.New("timestamp must be HH:MM:SS,mmm", goerr.V("timestamp", s))
	}

	var total time.Duration
	units := []time.Duration{time.Hour, time.Minute, time.Second}
	for i, f := range fields {
		v, err := strconv.Atoi(f)
		if err != nil || v < 0 {
			return 0, goerr.New("invalid timestamp field", goerr.V("timestamp", s))
		}
		total += time.Duration(v) * units[i]
	}

	ms, err := strconv.Atoi(msPart)
	if err != nil || ms < 0 || ms > 999 {
		return 0, goerr.New("invalid milliseconds", goerr.V("timestamp", s))
	}
	return total + time.Duration(ms)*time.Millisecond, nil
}

func isDigitOnly(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
