package device

import (
	"bufio"
	"regexp"
	"strconv"
	"strings"
)

// saneOption is one option line from `scanimage --all-options`.
type saneOption struct {
	Name     string
	Values   []string // enumerated values, empty for ranges
	Min, Max float64  // range bounds when Ranged
	Ranged   bool
	Current  string
	Inactive bool
}

// Accepts reports the first candidate the option allows, comparing
// enumerated values case-insensitively.
func (o saneOption) Accepts(candidates ...string) (string, bool) {
	for _, c := range candidates {
		if o.Ranged {
			v, err := strconv.ParseFloat(strings.TrimRight(c, "dpimm%"), 64)
			if err == nil && v >= o.Min && v <= o.Max {
				return c, true
			}
			continue
		}
		for _, allowed := range o.Values {
			if strings.EqualFold(allowed, c) {
				return allowed, true
			}
		}
	}
	return "", false
}

// FeederValue returns the allowed value that feeds single-sided from the
// document feeder. Some backends only name their feeder by side, as in
// "Flatbed|ADF Front|ADF Back|ADF Duplex"; back-only and duplex values are
// skipped.
func (o saneOption) FeederValue() (string, bool) {
	for _, v := range o.Values {
		if isFeederName(v) {
			return v, true
		}
	}
	return "", false
}

func isFeederName(v string) bool {
	l := strings.ToLower(v)
	if !strings.HasPrefix(l, "adf") && !strings.Contains(l, "feeder") {
		return false
	}
	return !strings.Contains(l, "back") && !strings.Contains(l, "duplex")
}

// Lines look like
//
//	--mode Lineart|Gray|Color [Gray]
//	--resolution 75|150|300|600dpi [300]
//	-x 0..215.9mm (in steps of 0.0999908) [215.9]
//	--source Flatbed|ADF Front|ADF Duplex [inactive]
var optionLine = regexp.MustCompile(`^\s+(--?[a-zA-Z][\w-]*)\s+(.*?)\s*\[([^\]]*)\]\s*$`)

var rangeValue = regexp.MustCompile(`^(-?[\d.]+)\.\.(-?[\d.]+)`)

// parseOptions parses the output of `scanimage -d <dev> -A`.
func parseOptions(out string) map[string]saneOption {
	opts := make(map[string]saneOption)
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		m := optionLine.FindStringSubmatch(sc.Text())
		if m == nil {
			continue
		}
		name := strings.TrimLeft(m[1], "-")
		spec := m[2]
		opt := saneOption{Name: name, Current: m[3], Inactive: m[3] == "inactive"}

		if r := rangeValue.FindStringSubmatch(spec); r != nil {
			lo, err1 := strconv.ParseFloat(r[1], 64)
			hi, err2 := strconv.ParseFloat(strings.TrimSuffix(r[2], "."), 64)
			if err1 == nil && err2 == nil {
				opt.Ranged, opt.Min, opt.Max = true, lo, hi
			}
		} else {
			// Unit suffixes sit on the last value only: 75|150|300dpi.
			for _, v := range strings.Split(spec, "|") {
				v = strings.TrimSpace(v)
				if i := strings.IndexAny(v, "("); i >= 0 {
					v = strings.TrimSpace(v[:i])
				}
				for _, unit := range []string{"dpi", "mm", "%", "us", "bit"} {
					if strings.HasSuffix(v, unit) && len(v) > len(unit) && isNumeric(strings.TrimSuffix(v, unit)) {
						v = strings.TrimSuffix(v, unit)
					}
				}
				if v != "" {
					opt.Values = append(opt.Values, v)
				}
			}
		}
		opts[name] = opt
	}
	return opts
}

func isNumeric(s string) bool {
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}
