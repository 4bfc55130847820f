// Package guardrails detects credentials and personal data in clipboard
// content. Items it flags are treated as sensitive: they are only routed to
// local providers, never embedded by cloud drivers, and never persisted.
package guardrails

import (
	"regexp"
	"sort"
)

// Kind names a detector.
type Kind string

const (
	KindEmail      Kind = "email"
	KindPhone      Kind = "phone"
	KindSSN        Kind = "ssn"
	KindCreditCard Kind = "credit_card"
	KindPrivateKey Kind = "private_key"
	KindAWSKey     Kind = "aws_access_key"
	KindAPIKey     Kind = "api_key"
	KindGitHub     Kind = "github_token"
	KindJWT        Kind = "jwt"
	KindPassword   Kind = "password"
)

// Finding is one detector match.
type Finding struct {
	Kind  Kind `json:"kind"`
	Count int  `json:"count"`
}

var patterns = map[Kind]*regexp.Regexp{
	KindEmail:      regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`),
	KindPhone:      regexp.MustCompile(`(\+?1[-.\s]?)?\(?\b\d{3}\)?[-.\s]\d{3}[-.\s]\d{4}\b`),
	KindSSN:        regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`),
	KindCreditCard: regexp.MustCompile(`\b(?:\d{4}[-\s]?){3}\d{4}\b`),
	KindPrivateKey: regexp.MustCompile(`-----BEGIN (?:[A-Z]+ )?PRIVATE KEY-----`),
	KindAWSKey:     regexp.MustCompile(`\b(?:AKIA|ASIA)[0-9A-Z]{16}\b`),
	KindAPIKey:     regexp.MustCompile(`\bsk-(?:ant-|proj-)?[A-Za-z0-9_\-]{20,}`),
	KindGitHub:     regexp.MustCompile(`\bgh[pousr]_[A-Za-z0-9]{36,}\b`),
	KindJWT:        regexp.MustCompile(`\beyJ[A-Za-z0-9_\-]{8,}\.eyJ[A-Za-z0-9_\-]{8,}\.[A-Za-z0-9_\-]{8,}`),
	KindPassword:   regexp.MustCompile(`(?i)\b(?:password|passwd|pwd|secret|token)\s*[:=]\s*\S{4,}`),
}

// secretKinds flag content as sensitive on their own. Personal data kinds
// only count from two distinct kinds up, so a pasted email address alone
// stays searchable through cloud features.
var secretKinds = map[Kind]bool{
	KindPrivateKey: true,
	KindAWSKey:     true,
	KindAPIKey:     true,
	KindGitHub:     true,
	KindJWT:        true,
	KindPassword:   true,
	KindSSN:        true,
	KindCreditCard: true,
}

// Scan returns the detectors matching content, sorted by kind.
func Scan(content string) []Finding {
	var out []Finding
	for kind, re := range patterns {
		if n := len(re.FindAllStringIndex(content, -1)); n > 0 {
			out = append(out, Finding{Kind: kind, Count: n})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Kind < out[j].Kind })
	return out
}

// IsSensitive reports whether content should be treated as sensitive.
func IsSensitive(content string) bool {
	return Classify(Scan(content))
}

// Classify applies the sensitivity rule to findings from Scan.
func Classify(findings []Finding) bool {
	personal := 0
	for _, f := range findings {
		if secretKinds[f.Kind] {
			return true
		}
		personal++
	}
	return personal >= 2
}
