package roster

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/salzamar/openclaw-mission-control/pkg/models"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"", ""},
		{"Nova", "nova"},
		{"Nova Sterling", "novasterling"},
		{"UI/UX Expert", "uiuxexpert"},
		{"  spaced  out  ", "spacedout"},
		{"Tab\tSeparated", "tabseparated"},
		{"MiXeD CaSe", "mixedcase"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, Normalize(c.in), "Normalize(%q)", c.in)
	}
}

func TestFind(t *testing.T) {
	agents := []models.Agent{
		{Name: "Nova Sterling", Role: "engineer"},
		{Name: "Pixel Hart", Role: "ui/ux"},
		{Name: "Sage Monroe", Role: "qa"},
	}

	t.Run("by full name", func(t *testing.T) {
		a, amb := Find(agents, "nova sterling")
		assert.False(t, amb)
		if assert.NotNil(t, a) {
			assert.Equal(t, "Nova Sterling", a.Name)
		}
	})

	t.Run("by role with punctuation stripped", func(t *testing.T) {
		a, amb := Find(agents, "uiux")
		assert.False(t, amb)
		if assert.NotNil(t, a) {
			assert.Equal(t, "Pixel Hart", a.Name)
		}
	})

	t.Run("unknown token", func(t *testing.T) {
		a, amb := Find(agents, "nobody")
		assert.Nil(t, a)
		assert.False(t, amb)
	})

	t.Run("empty token never matches", func(t *testing.T) {
		a, amb := Find(agents, "  / ")
		assert.Nil(t, a)
		assert.False(t, amb)
	})

	t.Run("ambiguous role", func(t *testing.T) {
		two := append(agents, models.Agent{Name: "Echo Reyes", Role: "engineer"})
		a, amb := Find(two, "engineer")
		assert.Nil(t, a)
		assert.True(t, amb)
	})
}

func TestContains(t *testing.T) {
	names := []string{"Nova Sterling", "Pixel Hart"}
	assert.True(t, Contains(names, "nova sterling"))
	assert.True(t, Contains(names, "PIXELHART"))
	assert.False(t, Contains(names, "Sage Monroe"))
	assert.False(t, Contains(nil, "Nova Sterling"))
}
