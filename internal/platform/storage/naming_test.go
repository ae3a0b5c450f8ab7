package storage

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestObjectNameKeepsOwnerAndExtension(t *testing.T) {
	name := ObjectName("user-1", "photo.final.PNG", func() float64 { return 0.25 })
	require.Equal(t, "user-1-0.25.PNG", name)
}

func TestObjectNameWithoutDotUsesWholeName(t *testing.T) {
	name := ObjectName("p1", "README", func() float64 { return 0.5 })
	require.Equal(t, "p1-0.5.README", name)
}

func TestObjectNameDefaultsToRandom(t *testing.T) {
	a := ObjectName("", "a.jpg", nil)
	b := ObjectName("", "a.jpg", nil)
	require.True(t, strings.HasPrefix(a, "-0."))
	require.True(t, strings.HasSuffix(a, ".jpg"))
	require.NotEqual(t, a, b)
}
