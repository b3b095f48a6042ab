package organization

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlugify(t *testing.T) {
	assert.Equal(t, "acme-inc", Slugify("Acme Inc"))
	assert.Equal(t, "acme-inc", Slugify("  Acme   Inc!  "))
	assert.Equal(t, "acme-s-lab-2", Slugify("Acme's Lab #2"))
	assert.Equal(t, "a-b-c", Slugify("a---b___c"))
	assert.Equal(t, "", Slugify("!!!"))
	assert.Equal(t, "", Slugify(""))
}
