package project

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNextCode_FirstProject(t *testing.T) {
	assert.Equal(t, "ACM-001", NextCode("Acme Inc", ""))
	assert.Equal(t, "GLO-001", NextCode("globex", ""))
}

func TestNextCode_ContinuesSequence(t *testing.T) {
	assert.Equal(t, "ACM-002", NextCode("Acme Inc", "ACM-001"))
	assert.Equal(t, "ACM-008", NextCode("Acme Inc", "ACM-007"))
	assert.Equal(t, "ACM-100", NextCode("Acme Inc", "ACM-099"))
}

func TestNextCode_ShortNames(t *testing.T) {
	assert.Equal(t, "AB-001", NextCode("ab", ""))
	assert.Equal(t, "X-001", NextCode("x", ""))
	assert.Equal(t, "PRJ-001", NextCode("!!!", ""))
	assert.Equal(t, "PRJ-001", NextCode("", ""))
}

func TestNextCode_SkipsNonAlphanumerics(t *testing.T) {
	assert.Equal(t, "ABC-001", NextCode("a.b.c. holdings", ""))
	assert.Equal(t, "42N-001", NextCode("42nd Street", ""))
}

func TestNextCode_MalformedLastCode(t *testing.T) {
	// Unparseable suffixes restart the sequence rather than failing.
	assert.Equal(t, "ACM-001", NextCode("Acme Inc", "ACM-xyz"))
}
