package scrape

import (
	"sort"
	"strings"
)

// Node is a decoded JSON object
type Node = map[string]any

// Unlimited disables the depth bound in Walk and friends
const Unlimited = -1

// Walk visits every value under root depth-first in pre-order. Object keys are
// visited in sorted order so traversal is deterministic. Containers deeper than
// maxDepth are not entered. visit returns false to end the walk.
func Walk(root any, maxDepth int, visit func(value any, depth int) bool) {
	walk(root, 0, maxDepth, visit)
}

func walk(v any, depth, maxDepth int, visit func(any, int) bool) bool {
	if maxDepth >= 0 && depth > maxDepth {
		return true
	}
	if !visit(v, depth) {
		return false
	}
	switch t := v.(type) {
	case map[string]any:
		for _, k := range sortedKeys(t) {
			if !walk(t[k], depth+1, maxDepth, visit) {
				return false
			}
		}
	case []any:
		for _, item := range t {
			if !walk(item, depth+1, maxDepth, visit) {
				return false
			}
		}
	}
	return true
}

// FindFirst returns the first object under root that satisfies match
func FindFirst(root any, maxDepth int, match func(Node) bool) (Node, bool) {
	var found Node
	Walk(root, maxDepth, func(v any, _ int) bool {
		if n, ok := v.(map[string]any); ok && match(n) {
			found = n
			return false
		}
		return true
	})
	return found, found != nil
}

// CollectAll returns every object under root that satisfies match, in walk order
func CollectAll(root any, maxDepth int, match func(Node) bool) []Node {
	var out []Node
	Walk(root, maxDepth, func(v any, _ int) bool {
		if n, ok := v.(map[string]any); ok && match(n) {
			out = append(out, n)
		}
		return true
	})
	return out
}

// CollectArrays returns every array under root, in walk order
func CollectArrays(root any, maxDepth int) [][]any {
	var out [][]any
	Walk(root, maxDepth, func(v any, _ int) bool {
		if a, ok := v.([]any); ok {
			out = append(out, a)
		}
		return true
	})
	return out
}

// FindBestEffortCandidate looks for the first object that reads like a product:
// a name together with a link or a price.
func FindBestEffortCandidate(root any) (Node, bool) {
	return FindFirst(root, Unlimited, func(n Node) bool {
		if !Has(n, "name", "title", "alt") {
			return false
		}
		return Has(n, "url", "productUrl", "href", "price", "priceInformation")
	})
}

// Path follows object keys from root and returns the value found, or nil
func Path(root any, keys ...string) any {
	cur := root
	for _, k := range keys {
		n, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = n[k]
	}
	return cur
}

// Has reports whether n has a non-empty value under any of keys
func Has(n Node, keys ...string) bool {
	for _, k := range keys {
		switch v := n[k].(type) {
		case nil:
			continue
		case string:
			if strings.TrimSpace(v) != "" {
				return true
			}
		default:
			return true
		}
	}
	return false
}

// String returns the first non-empty string stored under keys
func String(n Node, keys ...string) string {
	for _, k := range keys {
		if s, ok := n[k].(string); ok {
			if s = strings.TrimSpace(s); s != "" {
				return s
			}
		}
	}
	return ""
}

// Array returns v as a slice of objects, skipping non-object entries
func Array(v any) []Node {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]Node, 0, len(items))
	for _, item := range items {
		if n, ok := item.(map[string]any); ok {
			out = append(out, n)
		}
	}
	return out
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
