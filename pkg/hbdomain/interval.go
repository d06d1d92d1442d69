package hbdomain

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	rawSecondsRe  = regexp.MustCompile(`^[0-9]+$`)
	leadingDaysRe = regexp.MustCompile(`^([0-9]+)d(.*)$`)

	errIntervalOverflow = errors.New("interval overflow")
)

// ParseInterval accepts Go durations ("30s", "1h30m"), durations with a leading day
// component ("7d", "1d12h") or raw seconds ("300"). The result must be within
// [MinInterval, MaxInterval].
func ParseInterval(spec string) (time.Duration, error) {
	interval, err := parseIntervalSpec(strings.TrimSpace(spec))
	if err == errIntervalOverflow {
		return 0, fmt.Errorf(
			"%w: interval too long: maximum is %s, got %s",
			ErrInvalidInterval,
			FormatDuration(MaxInterval),
			spec)
	}
	if err != nil {
		return 0, fmt.Errorf("%w: cannot parse interval: %s", ErrInvalidInterval, spec)
	}

	if interval < MinInterval {
		return 0, fmt.Errorf(
			"%w: interval too short: minimum is %s, got %s",
			ErrInvalidInterval,
			FormatDuration(MinInterval),
			FormatDuration(interval))
	}

	if interval > MaxInterval {
		return 0, fmt.Errorf(
			"%w: interval too long: maximum is %s, got %s",
			ErrInvalidInterval,
			FormatDuration(MaxInterval),
			FormatDuration(interval))
	}

	return interval, nil
}

func parseIntervalSpec(spec string) (time.Duration, error) {
	// anything this large is out of range anyway. guards against overflowing int64 nanos.
	const ceilingSeconds = int64(2 * MaxInterval / time.Second)

	if rawSecondsRe.MatchString(spec) {
		secs, err := strconv.ParseInt(spec, 10, 64)
		if err != nil || secs > ceilingSeconds {
			return 0, errIntervalOverflow
		}

		return time.Duration(secs) * time.Second, nil
	}

	// 7d, 1d12h
	if match := leadingDaysRe.FindStringSubmatch(spec); match != nil {
		days, err := strconv.ParseInt(match[1], 10, 64)
		if err != nil || days > ceilingSeconds/(24*60*60) {
			return 0, errIntervalOverflow
		}

		total := time.Duration(days) * 24 * time.Hour

		if match[2] != "" {
			rest, err := parseUnsignedDuration(match[2])
			if err != nil {
				return 0, err
			}

			total += rest
		}

		return total, nil
	}

	return parseUnsignedDuration(spec)
}

// time.ParseDuration() accepts "-5h" and "+5h", which would let "1d-5h" mean 19h
func parseUnsignedDuration(spec string) (time.Duration, error) {
	if strings.HasPrefix(spec, "-") || strings.HasPrefix(spec, "+") {
		return 0, fmt.Errorf("signed duration: %s", spec)
	}

	return time.ParseDuration(spec)
}

// human-readable form used in messages and summaries, e.g. "1d 2h 3m"
func FormatDuration(d time.Duration) string {
	d = d.Truncate(time.Second)
	if d <= 0 {
		return "0s"
	}

	components := []struct {
		unit   time.Duration
		suffix string
	}{
		{24 * time.Hour, "d"},
		{time.Hour, "h"},
		{time.Minute, "m"},
		{time.Second, "s"},
	}

	parts := []string{}
	for _, component := range components {
		if d >= component.unit {
			parts = append(parts, fmt.Sprintf("%d%s", d/component.unit, component.suffix))
			d = d % component.unit
		}
	}

	return strings.Join(parts, " ")
}
