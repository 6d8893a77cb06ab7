package state

import (
	"strconv"
	"strings"
)

// parsePath splits a path into segments. Segments are separated by dots
// or enclosed in brackets; bracket segments may be quoted to contain
// dots. A leading "$" or "$." is stripped; "$" and "" address the root.
func parsePath(path string) []string {
	if path == "" || path == "$" {
		return nil
	}
	if strings.HasPrefix(path, "$.") {
		path = path[2:]
	} else if strings.HasPrefix(path, "$[") {
		path = path[1:]
	}

	var segs []string
	i := 0
	for i < len(path) {
		switch path[i] {
		case '.':
			i++
		case '[':
			i++
			if i < len(path) && (path[i] == '\'' || path[i] == '"') {
				quote := path[i]
				i++
				start := i
				for i < len(path) && path[i] != quote {
					i++
				}
				segs = append(segs, path[start:i])
				i++ // closing quote
				if i < len(path) && path[i] == ']' {
					i++
				}
			} else {
				start := i
				for i < len(path) && path[i] != ']' {
					i++
				}
				segs = append(segs, path[start:i])
				if i < len(path) {
					i++
				}
			}
		default:
			start := i
			for i < len(path) && path[i] != '.' && path[i] != '[' {
				i++
			}
			segs = append(segs, path[start:i])
		}
	}
	return segs
}

// isIndex reports whether a segment addresses a sequence position.
func isIndex(seg string) bool {
	if seg == "" {
		return false
	}
	for i := 0; i < len(seg); i++ {
		if seg[i] < '0' || seg[i] > '9' {
			return false
		}
	}
	return true
}

// getIn walks container along segs without copying.
func getIn(container interface{}, segs []string) (interface{}, bool) {
	cur := container
	for _, seg := range segs {
		switch c := cur.(type) {
		case map[string]interface{}:
			v, ok := c[seg]
			if !ok {
				return nil, false
			}
			cur = v
		case []interface{}:
			if !isIndex(seg) {
				return nil, false
			}
			idx, _ := strconv.Atoi(seg)
			if idx >= len(c) {
				return nil, false
			}
			cur = c[idx]
		default:
			return nil, false
		}
	}
	return cur, true
}

// setIn writes value at segs, creating intermediate containers as
// needed. A missing container becomes a sequence when its segment is
// all digits, otherwise a map. Returns the possibly replaced container.
func setIn(container interface{}, segs []string, value interface{}) interface{} {
	if len(segs) == 0 {
		return value
	}
	seg := segs[0]
	if isIndex(seg) {
		idx, _ := strconv.Atoi(seg)
		seq, _ := container.([]interface{})
		for len(seq) <= idx {
			seq = append(seq, nil)
		}
		seq[idx] = setIn(seq[idx], segs[1:], value)
		return seq
	}
	m, ok := container.(map[string]interface{})
	if !ok {
		m = make(map[string]interface{})
	}
	m[seg] = setIn(m[seg], segs[1:], value)
	return m
}

// deleteIn removes the value at segs. Map deletion removes the key;
// sequence deletion shifts later elements down. Returns the possibly
// replaced container and whether anything was removed.
func deleteIn(container interface{}, segs []string) (interface{}, bool) {
	if len(segs) == 0 {
		return container, false
	}
	seg := segs[0]
	switch c := container.(type) {
	case map[string]interface{}:
		if len(segs) == 1 {
			if _, ok := c[seg]; !ok {
				return c, false
			}
			delete(c, seg)
			return c, true
		}
		child, ok := c[seg]
		if !ok {
			return c, false
		}
		newChild, deleted := deleteIn(child, segs[1:])
		if deleted {
			c[seg] = newChild
		}
		return c, deleted
	case []interface{}:
		if !isIndex(seg) {
			return c, false
		}
		idx, _ := strconv.Atoi(seg)
		if idx >= len(c) {
			return c, false
		}
		if len(segs) == 1 {
			return append(c[:idx], c[idx+1:]...), true
		}
		newChild, deleted := deleteIn(c[idx], segs[1:])
		if deleted {
			c[idx] = newChild
		}
		return c, deleted
	default:
		return container, false
	}
}
