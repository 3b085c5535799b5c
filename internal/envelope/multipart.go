package envelope

import (
	"bytes"
	"errors"
	"fmt"
	"mime"
	"strings"
)

var (
	crlf       = []byte("\r\n")
	headerEnd  = []byte("\r\n\r\n")
	closeMark  = []byte("--")
	errNoStart = errors.New("opening boundary not found")
)

// findPart scans a multipart body for the part with the given form name and
// returns its body. A delimiter only counts when it starts a line and is
// followed by CRLF (optionally after transport padding) or by the closing
// "--", so boundary text embedded inside a part's bytes is never taken for
// a delimiter.
func findPart(body []byte, boundary, name string) ([]byte, bool, error) {
	dashBoundary := []byte("--" + boundary)

	pos, err := firstDelimiter(body, dashBoundary)
	if err != nil {
		return nil, false, err
	}
	for {
		afterDelim := pos + len(dashBoundary)
		if bytes.HasPrefix(body[afterDelim:], closeMark) {
			return nil, false, nil
		}
		start, ok := lineEnd(body, afterDelim)
		if !ok {
			return nil, false, fmt.Errorf("delimiter at offset %d is not followed by CRLF", pos)
		}
		end, ok := nextDelimiter(body, start, dashBoundary)
		if !ok {
			return nil, false, errors.New("closing boundary not found")
		}
		part := body[start:end]
		partName, content, err := splitPart(part, name)
		if err != nil {
			return nil, false, err
		}
		if partName == name {
			return content, true, nil
		}
		// The CRLF preceding a delimiter belongs to the delimiter.
		pos = end + len(crlf)
	}
}

func firstDelimiter(body, dashBoundary []byte) (int, error) {
	if isDelimiterAt(body, 0, dashBoundary) {
		return 0, nil
	}
	end, ok := nextDelimiter(body, 0, dashBoundary)
	if !ok {
		return 0, errNoStart
	}
	return end + len(crlf), nil
}

// nextDelimiter returns the offset of the CRLF that precedes the next valid
// delimiter at or after from.
func nextDelimiter(body []byte, from int, dashBoundary []byte) (int, bool) {
	marker := append(append([]byte{}, crlf...), dashBoundary...)
	for offset := from; offset <= len(body); {
		idx := bytes.Index(body[offset:], marker)
		if idx < 0 {
			return 0, false
		}
		at := offset + idx
		if isDelimiterAt(body, at+len(crlf), dashBoundary) {
			return at, true
		}
		offset = at + 1
	}
	return 0, false
}

// isDelimiterAt reports whether a complete delimiter line starts at pos.
func isDelimiterAt(body []byte, pos int, dashBoundary []byte) bool {
	if !bytes.HasPrefix(body[pos:], dashBoundary) {
		return false
	}
	rest := body[pos+len(dashBoundary):]
	if bytes.HasPrefix(rest, closeMark) {
		return true
	}
	rest = bytes.TrimLeft(rest, " \t")
	return bytes.HasPrefix(rest, crlf)
}

// lineEnd returns the offset just past the CRLF ending the delimiter line
// that continues at pos.
func lineEnd(body []byte, pos int) (int, bool) {
	idx := bytes.Index(body[pos:], crlf)
	if idx < 0 {
		return 0, false
	}
	if len(bytes.Trim(body[pos:pos+idx], " \t")) != 0 {
		return 0, false
	}
	return pos + idx + len(crlf), true
}

// splitPart separates a part into its form name and its body. A part whose
// Content-Disposition does not parse is treated as unnamed unless it loosely
// names want, in which case the parse error is returned.
func splitPart(part []byte, want string) (string, []byte, error) {
	var headers, content []byte
	if bytes.HasPrefix(part, crlf) {
		content = part[len(crlf):]
	} else {
		idx := bytes.Index(part, headerEnd)
		if idx < 0 {
			return "", nil, errors.New("part header block is not terminated")
		}
		headers = part[:idx]
		content = part[idx+len(headerEnd):]
	}
	for _, line := range bytes.Split(headers, crlf) {
		key, value, ok := strings.Cut(string(line), ":")
		if !ok || !strings.EqualFold(strings.TrimSpace(key), "Content-Disposition") {
			continue
		}
		_, params, err := mime.ParseMediaType(strings.TrimSpace(value))
		if err != nil {
			if namesPart(value, want) {
				return "", nil, fmt.Errorf("parse content-disposition of part %q: %w", want, err)
			}
			return "", content, nil
		}
		return params["name"], content, nil
	}
	return "", content, nil
}

// namesPart reports whether a raw disposition value carries name=want,
// quoted or not, without requiring the rest of the value to be well formed.
func namesPart(value, want string) bool {
	for _, param := range strings.Split(value, ";") {
		key, val, ok := strings.Cut(param, "=")
		if !ok || !strings.EqualFold(strings.TrimSpace(key), "name") {
			continue
		}
		if strings.Trim(strings.TrimSpace(val), `"`) == want {
			return true
		}
	}
	return false
}
