package httplink

import (
	"regexp"
	"strings"
)

// Segment forms, as registered by express, fastify, gin, chi and spring:
// literal, parameter (:id, {id}, :id(\d+)), optional (:id?), wildcard (*),
// catch-all (**, (.*), :path*) and one-or-more (:path+).
const (
	segLiteral = iota
	segParam
	segOptional
	segWildcard
	segCatchAll
	segCatchAllPlus
)

func segmentKind(seg string) int {
	switch {
	case seg == "*":
		return segWildcard
	case seg == "**" || seg == "(.*)":
		return segCatchAll
	case strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}"):
		return segParam
	case !strings.HasPrefix(seg, ":") || len(seg) < 2:
		return segLiteral
	case strings.HasSuffix(seg, "?"):
		return segOptional
	case strings.HasSuffix(seg, "*"):
		return segCatchAll
	case strings.HasSuffix(seg, "+"):
		return segCatchAllPlus
	default:
		return segParam
	}
}

// splitSegments splits a normalized path into non-empty segments.
func splitSegments(path string) []string {
	var segs []string
	for _, s := range strings.Split(path, "/") {
		if s != "" {
			segs = append(segs, s)
		}
	}
	return segs
}

// PathsMatch reports whether callPath is served by endpointPath.
//
// Endpoint segments match as follows: literals exactly (case-sensitive),
// parameters and '*' one segment, catch-alls the rest of the call. An
// optional ':name?' may be omitted only when every remaining endpoint segment
// is optional too; elsewhere it behaves like a required parameter.
func PathsMatch(endpointPath, callPath string) bool {
	if endpointPath == callPath {
		return true
	}
	ep := splitSegments(endpointPath)
	cp := splitSegments(callPath)

	for i, seg := range ep {
		kind := segmentKind(seg)
		switch kind {
		case segCatchAll:
			return true
		case segCatchAllPlus:
			return i < len(cp)
		case segOptional:
			if allOptional(ep[i:]) {
				return len(cp) <= len(ep)
			}
		}
		if i >= len(cp) {
			return false
		}
		if !segmentMatches(seg, kind, cp[i]) {
			return false
		}
	}
	return len(cp) == len(ep)
}

func allOptional(segs []string) bool {
	for _, s := range segs {
		if segmentKind(s) != segOptional {
			return false
		}
	}
	return true
}

func segmentMatches(seg string, kind int, call string) bool {
	switch kind {
	case segLiteral:
		return seg == call
	case segWildcard, segOptional:
		return true
	case segParam:
		re := paramPattern(seg)
		// A call-side parameter stands for any value.
		return re == nil || strings.HasPrefix(call, ":") || re.MatchString(call)
	}
	return false
}

// paramPattern returns the inline constraint of ':id(\d+)', or nil when the
// parameter has none or it does not compile.
func paramPattern(seg string) *regexp.Regexp {
	open := strings.IndexByte(seg, '(')
	if !strings.HasPrefix(seg, ":") || open < 0 || !strings.HasSuffix(seg, ")") {
		return nil
	}
	re, err := regexp.Compile(`^(?:` + seg[open+1:len(seg)-1] + `)$`)
	if err != nil {
		return nil
	}
	return re
}

// Specificity counts the parameter and wildcard segments of an endpoint path.
// Lower is more specific.
func Specificity(path string) int {
	n := 0
	for _, seg := range splitSegments(path) {
		if segmentKind(seg) != segLiteral {
			n++
		}
	}
	return n
}
