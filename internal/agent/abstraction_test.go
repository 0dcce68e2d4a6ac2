package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFindImplementationKeywords(t *testing.T) {
	found := FindImplementationKeywords(
		"The system stores records in a SQL database behind an API gateway with TLS.")
	assert.ElementsMatch(t, []string{"sql", "database", "api gateway", "tls"}, found)

	assert.Empty(t, FindImplementationKeywords(
		"The system maintains accurate account balances for all customers."))
}

func TestKeywordsRequireWordBoundaries(t *testing.T) {
	// "ids" must not match inside "considers"; "dns" not inside "kidnaps".
	assert.Empty(t, FindImplementationKeywords("The board considers all options."))
	assert.Equal(t, []string{"ids"}, FindImplementationKeywords("An IDS monitors traffic."))
	assert.Empty(t, FindImplementationKeywords("something kidnapsdns-free"))
}

func TestFindPreventionLanguage(t *testing.T) {
	found := FindPreventionLanguage(
		"The system must not expose records and shall defend its perimeter.")
	assert.ElementsMatch(t, []string{"must not", "defend"}, found)

	assert.Empty(t, FindPreventionLanguage(
		"The system delivers timely settlement of payment instructions."))
}

func TestValidateAbstractionLevel(t *testing.T) {
	b := newBase("test", Deps{})
	assert.True(t, b.ValidateAbstractionLevel("Maintain continuous mission capability."))
	assert.False(t, b.ValidateAbstractionLevel("Use kubernetes to prevent outages."))
}
