package url

import (
	"strings"
)

const (
	sectionSign       = "§"
	sectionSignFix    = "&sect"
	cascadeParam      = "mode"
	cascadeValue      = "cascade"
	coursesListingURI = ExplorerPrefix + "/schedule/courses"
)

// FixDocumentationURL converts a CIS API URL (as printed in the CIS documentation) into
// the equivalent CIS explorer URL. When addCascade is set the explorer's mode parameter
// is forced to "cascade".
//
// https://courses.illinois.edu/cisapi/schedule/2012/spring/AAS/120 →
// https://courses.illinois.edu/cisapp/explorer/schedule/2012/spring/AAS/120.xml
//
// Explorer URLs are accepted as input and come back unchanged apart from the .xml and
// cascade fix-ups, so applying the function twice gives the same result as once.
func FixDocumentationURL(rawURL string, addCascade bool) (string, error) {
	u, err := Parse(rawURL)
	if err != nil {
		return "", err
	}

	forceHTTPS(u)

	path := u.EscapedPath()
	if !isWebScheme(u.Scheme) || u.User != nil || u.Host != Host {
		return "", NewError(KindNotAPIURL, nil)
	}

	switch {
	case strings.HasPrefix(path, APIPrefix+"/"):
		path = ExplorerPrefix + strings.TrimPrefix(path, APIPrefix)
	case strings.HasPrefix(path, ExplorerPrefix+"/"):
	default:
		return "", NewError(KindNotAPIURL, nil)
	}

	// The CIS documentation renders "&sect" as a section sign on the courses listing.
	if isCoursesListing(path) && u.RawQuery != "" {
		u.RawQuery = strings.ReplaceAll(u.RawQuery, sectionSign, sectionSignFix)
	}

	if !isScheduleEndpoint(path) {
		return "", NewError(KindNotScheduleEndpoint, nil)
	}

	if !strings.HasSuffix(path, xmlSuffix) {
		path += xmlSuffix
	}
	setEscapedPath(u, path)

	if addCascade {
		u.RawQuery = withCascade(u.RawQuery)
	}
	if u.RawQuery == "" {
		u.ForceQuery = false
	}

	return stringWithRawFragment(u, rawURL), nil
}

// isCoursesListing reports whether an explorer path is the schedule courses listing as
// printed in the documentation, without the .xml suffix.
func isCoursesListing(path string) bool {
	return path == coursesListingURI
}

// isScheduleEndpoint reports whether an explorer path belongs to the schedule endpoint family.
func isScheduleEndpoint(path string) bool {
	first := pathSegments(path, ExplorerPrefix)[0]
	return first == scheduleSegment || first == scheduleSegment+xmlSuffix
}

// withCascade sets mode=cascade on a raw query, replacing the first existing mode value.
func withCascade(rawQuery string) string {
	if rawQuery == "" {
		return cascadeParam + "=" + cascadeValue
	}

	params := strings.Split(rawQuery, "&")
	for i, param := range params {
		key, _, found := strings.Cut(param, "=")
		if found && key == cascadeParam {
			params[i] = cascadeParam + "=" + cascadeValue
			return strings.Join(params, "&")
		}
	}

	return rawQuery + "&" + cascadeParam + "=" + cascadeValue
}
