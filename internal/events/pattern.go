package events

import "strings"

// Binding associates a queue with a routing-key pattern on an exchange.
type Binding struct {
	Queue    string
	Exchange string
	Pattern  string
}

// Matches reports whether a message published with routingKey is routed to the binding.
func (b Binding) Matches(routingKey string) bool {
	return MatchPattern(b.Pattern, routingKey)
}

// MatchPattern applies topic-exchange matching: literal segments match exactly,
// "*" matches exactly one segment and "#" matches zero or more segments.
func MatchPattern(pattern, routingKey string) bool {
	return matchSegments(strings.Split(pattern, "."), strings.Split(routingKey, "."))
}

func matchSegments(pattern, key []string) bool {
	for len(pattern) > 0 {
		switch pattern[0] {
		case "#":
			// collapse consecutive hashes
			rest := pattern[1:]
			for len(rest) > 0 && rest[0] == "#" {
				rest = rest[1:]
			}
			if len(rest) == 0 {
				return true
			}
			for i := 0; i <= len(key); i++ {
				if matchSegments(rest, key[i:]) {
					return true
				}
			}
			return false
		case "*":
			if len(key) == 0 {
				return false
			}
		default:
			if len(key) == 0 || key[0] != pattern[0] {
				return false
			}
		}
		pattern = pattern[1:]
		key = key[1:]
	}
	return len(key) == 0
}
