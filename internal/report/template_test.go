package report

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExpand(t *testing.T) {
	vars := map[string]string{
		"session": "campaign",
		"runHash": "ab12cd34",
	}

	tests := []struct {
		name     string
		template string
		expected string
	}{
		{
			name:     "all variables known",
			template: "reports/${session}/${runHash}/",
			expected: "reports/campaign/ab12cd34/",
		},
		{
			name:     "unknown variable left as-is",
			template: "reports/${session}/${mystery}/",
			expected: "reports/campaign/${mystery}/",
		},
		{
			name:     "no variables",
			template: "reports/static/",
			expected: "reports/static/",
		},
		{
			name:     "malformed reference untouched",
			template: "reports/$session/${}/",
			expected: "reports/$session/${}/",
		},
		{
			name:     "repeated variable",
			template: "${runHash}/${runHash}",
			expected: "ab12cd34/ab12cd34",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Expand(tt.template, vars))
		})
	}
}

func TestIdentifiers(t *testing.T) {
	names := Identifiers("reports/${session}/${startTime}_${runHash}/${session}/")
	assert.Equal(t, []string{"session", "startTime", "runHash"}, names)

	assert.Empty(t, Identifiers("reports/static/"))
}
