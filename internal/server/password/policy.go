package password

import (
	"bufio"
	_ "embed"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

//go:embed common.txt
var commonList string

var commonPasswords = func() map[string]struct{} {
	m := make(map[string]struct{})
	sc := bufio.NewScanner(strings.NewReader(commonList))
	for sc.Scan() {
		w := strings.TrimSpace(sc.Text())
		if w == "" || strings.HasPrefix(w, "#") {
			continue
		}
		m[strings.ToLower(w)] = struct{}{}
	}
	return m
}()

// Policy is the registration password rule set.
type Policy struct {
	MinLength int
	// MaxSimilarity is the similarity ratio to a user attribute at or above
	// which a password is rejected.
	MaxSimilarity float64
}

// DefaultPolicy mirrors the usual web framework defaults.
var DefaultPolicy = Policy{MinLength: 8, MaxSimilarity: 0.7}

// Attribute is a named user value the password must not resemble.
type Attribute struct {
	Name  string
	Value string
}

// Validate returns every rule the password breaks, or nil.
func (p Policy) Validate(password string, attrs ...Attribute) []string {
	var problems []string

	if utf8.RuneCountInString(password) < p.MinLength {
		problems = append(problems, "This password is too short. It must contain at least 8 characters.")
	}
	if len(password) > MaxBytes {
		problems = append(problems, "This password is too long.")
	}
	if password != "" && isNumeric(password) {
		problems = append(problems, "This password is entirely numeric.")
	}
	if IsCommon(password) {
		problems = append(problems, "This password is too common.")
	}
	for _, a := range attrs {
		if p.similar(password, a.Value) {
			problems = append(problems, "The password is too similar to the "+a.Name+".")
		}
	}

	return problems
}

// IsCommon reports whether password is on the embedded common list.
func IsCommon(password string) bool {
	_, ok := commonPasswords[strings.ToLower(strings.TrimSpace(password))]
	return ok
}

func isNumeric(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

var nonWord = regexp.MustCompile(`\W+`)

// similar compares the password with the attribute and with each of its
// word parts, e.g. "john", "doe" and "example" for "john.doe@example.com".
func (p Policy) similar(password, value string) bool {
	if password == "" || value == "" {
		return false
	}
	pw := strings.ToLower(password)
	v := strings.ToLower(value)

	parts := append([]string{v}, nonWord.Split(v, -1)...)
	for _, part := range parts {
		n := utf8.RuneCountInString(part)
		if n < 3 {
			continue
		}
		if n >= 4 && strings.Contains(pw, part) {
			return true
		}
		if ratio(pw, part) >= p.MaxSimilarity {
			return true
		}
	}
	return false
}

// ratio is the normalised Levenshtein similarity of a and b in [0, 1].
func ratio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	longest := max(len(ra), len(rb))
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein(ra, rb))/float64(longest)
}

func levenshtein(a, b []rune) int {
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		cur[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}
