package agent

import "strings"

// Deterministic helpers that keep Step 1 content at mission level. The
// validator reuses these scanners for its abstraction category.

// implementationKeywords are technology and product terms that do not belong
// in mission-level statements. Matching is case-insensitive on word-ish
// boundaries.
var implementationKeywords = []string{
	"sql", "database", "tls", "ssl", "https", "tcp", "udp", "http",
	"kubernetes", "docker", "container", "microservice",
	"firewall", "vpn", "waf", "ids", "siem",
	"aes", "rsa", "sha-256", "encryption algorithm",
	"oauth", "saml", "jwt", "mfa", "2fa",
	"api gateway", "load balancer", "cdn", "dns",
	"linux", "windows", "aws", "azure", "gcp",
	"python", "java", "javascript",
}

// preventionLanguage marks defensive phrasing; Step 1 framing states what
// the system achieves, not what it defends against.
var preventionLanguage = []string{
	"prevent", "protect against", "protect from", "defend", "block",
	"must not", "shall not", "mitigate", "stop attackers", "guard against",
	"secure against", "avoid attack",
}

// FindImplementationKeywords returns the implementation terms found in text.
func FindImplementationKeywords(text string) []string {
	return scan(text, implementationKeywords)
}

// FindPreventionLanguage returns the prevention phrases found in text.
func FindPreventionLanguage(text string) []string {
	return scan(text, preventionLanguage)
}

func scan(text string, terms []string) []string {
	lower := strings.ToLower(text)
	var found []string
	for _, term := range terms {
		idx := strings.Index(lower, term)
		for idx >= 0 {
			if wordBounded(lower, idx, len(term)) {
				found = append(found, term)
				break
			}
			next := strings.Index(lower[idx+1:], term)
			if next < 0 {
				break
			}
			idx += 1 + next
		}
	}
	return found
}

// wordBounded keeps "ids" from matching inside "considers" and the like.
// Multi-word phrases are inherently bounded by their spaces.
func wordBounded(text string, idx, length int) bool {
	before := idx == 0 || !isWordChar(text[idx-1])
	after := idx+length >= len(text) || !isWordChar(text[idx+length])
	return before && after
}

func isWordChar(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= '0' && c <= '9'
}
