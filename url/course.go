package url

import (
	"strings"
)

// Positions of the course components after /cisapp/explorer/schedule/.
const (
	yearIndex = iota
	termIndex
	subjectIndex
	numberIndex
	courseSegments
)

const courseURLPrefix = "https://" + Host + ExplorerPrefix + "/" + scheduleSegment + "/"

var terms = map[string]bool{
	"spring": true,
	"summer": true,
	"fall":   true,
	"winter": true,
}

// Course identifies a single course offering in the CIS schedule.
type Course struct {
	Year    string `json:"year"`
	Term    string `json:"term"`
	Subject string `json:"subject"`
	Number  string `json:"number"`
}

// SearchURL returns the public search page for the course.
func (c *Course) SearchURL() string {
	return "https://" + Host + SearchPrefix + "/" + scheduleSegment + "/" +
		strings.Join([]string{c.Year, c.Term, c.Subject, c.Number}, "/")
}

// ConvertCourseURL converts a CIS explorer course URL into its public search page URL
// without any network access. The input may use any letter case; the result is lower
// case except for the subject code.
//
// https://courses.illinois.edu/cisapp/explorer/schedule/2012/spring/AAS/120.xml →
// https://courses.illinois.edu/search/schedule/2012/spring/AAS/120
func ConvertCourseURL(rawURL string) (string, error) {
	course, err := ParseCourseURL(rawURL)
	if err != nil {
		return "", err
	}
	return course.SearchURL(), nil
}

// ParseCourseURL validates a CIS explorer course URL and returns its components.
// The subject is upper case, all other components lower case.
func ParseCourseURL(rawURL string) (*Course, error) {
	u, err := Parse(rawURL)
	if err != nil {
		return nil, err
	}

	forceHTTPS(u)

	if !isWebScheme(u.Scheme) || u.User != nil || !strings.EqualFold(u.Host, Host) ||
		!strings.HasPrefix(u.EscapedPath(), ExplorerPrefix+"/"+scheduleSegment) {
		return nil, NewError(KindNotExplorerScheduleURL, nil)
	}

	u.RawQuery = ""
	u.ForceQuery = false
	u.Fragment = ""
	u.RawFragment = ""

	lowered := strings.ToLower(u.String())

	rest, ok := strings.CutPrefix(lowered, courseURLPrefix)
	if !ok {
		return nil, NewError(KindInvalidCourseURLShape, nil)
	}

	segments := strings.Split(rest, "/")
	if len(segments) != courseSegments {
		return nil, NewError(KindInvalidCourseURLShape, nil)
	}

	number, ok := strings.CutSuffix(segments[numberIndex], xmlSuffix)
	if !ok ||
		!isDigits(segments[yearIndex], 4) ||
		!terms[segments[termIndex]] ||
		!isLetters(segments[subjectIndex], 2, 5) ||
		!isDigits(number, 3) {
		return nil, NewError(KindInvalidCourseURLShape, nil)
	}

	return &Course{
		Year:    segments[yearIndex],
		Term:    segments[termIndex],
		Subject: strings.ToUpper(segments[subjectIndex]),
		Number:  number,
	}, nil
}

// ToSearchURL rewrites an explorer URL into a search URL by relocating the path and
// dropping the .xml suffix. Case, query and fragment are preserved.
func ToSearchURL(rawURL string) (string, error) {
	u, err := Parse(rawURL)
	if err != nil {
		return "", err
	}

	relocate(u, ExplorerPrefix, SearchPrefix)
	setEscapedPath(u, strings.TrimSuffix(u.EscapedPath(), xmlSuffix))

	return stringWithRawFragment(u, rawURL), nil
}

// IsExplorerURL reports whether rawURL points anywhere below /cisapp/explorer/ on the
// catalog host.
func IsExplorerURL(rawURL string) bool {
	u, err := Parse(rawURL)
	if err != nil {
		return false
	}
	return isWebScheme(u.Scheme) && u.User == nil && u.Host == Host &&
		strings.HasPrefix(u.EscapedPath(), ExplorerPrefix+"/")
}

func isDigits(s string, n int) bool {
	if len(s) != n {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func isLetters(s string, minLen, maxLen int) bool {
	if len(s) < minLen || len(s) > maxLen {
		return false
	}
	for _, r := range s {
		if r < 'a' || r > 'z' {
			return false
		}
	}
	return true
}
