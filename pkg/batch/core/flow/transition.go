package flow

import (
	"fmt"
	"sort"
	"strings"
)

// Transition routes the flow from the state named From to the state named To
// when the status returned by From matches On.
//
// On is a pattern over the status string: '*' matches any run of characters,
// '?' matches exactly one, everything else matches itself.
type Transition struct {
	From string
	On   string
	To   string
}

func (t Transition) String() string {
	return fmt.Sprintf("Transition{from=%s, on=%s, to=%s}", t.From, t.On, t.To)
}

// Matches reports whether status satisfies the pattern of t.
func (t Transition) Matches(status string) bool {
	return matchPattern(t.On, status)
}

// matchPattern matches s against pattern, where '*' matches any run of
// characters and '?' exactly one.
func matchPattern(pattern, s string) bool {
	p, i := 0, 0
	star, mark := -1, 0
	for i < len(s) {
		switch {
		case p < len(pattern) && (pattern[p] == '?' || pattern[p] == s[i]):
			p++
			i++
		case p < len(pattern) && pattern[p] == '*':
			star, mark = p, i
			p++
		case star >= 0:
			p = star + 1
			mark++
			i = mark
		default:
			return false
		}
	}
	for p < len(pattern) && pattern[p] == '*' {
		p++
	}
	return p == len(pattern)
}

type patternWeight struct {
	literal   int
	stars     int
	questions int
}

func weigh(pattern string) patternWeight {
	w := patternWeight{
		stars:     strings.Count(pattern, "*"),
		questions: strings.Count(pattern, "?"),
	}
	w.literal = len(pattern) - w.stars - w.questions
	return w
}

// morePrecise orders transitions so the first match is the most specific one:
// exact literals first, then patterns with more literal characters, then fewer
// wildcards ('*' before '?'), and finally the pattern string itself.
func morePrecise(a, b string) bool {
	wa, wb := weigh(a), weigh(b)
	exactA, exactB := wa.stars+wa.questions == 0, wb.stars+wb.questions == 0
	if exactA != exactB {
		return exactA
	}
	if wa.literal != wb.literal {
		return wa.literal > wb.literal
	}
	if wa.stars != wb.stars {
		return wa.stars < wb.stars
	}
	if wa.questions != wb.questions {
		return wa.questions < wb.questions
	}
	return a < b
}

func sortTransitions(ts []Transition) {
	sort.SliceStable(ts, func(i, j int) bool {
		return morePrecise(ts[i].On, ts[j].On)
	})
}
