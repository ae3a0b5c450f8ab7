package migrations

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScriptsDefineProcedures(t *testing.T) {
	scripts, err := Scripts()
	require.NoError(t, err)
	require.NotEmpty(t, scripts)
	require.Equal(t, "0001_init.sql", scripts[0].Name)

	for _, fn := range []string{"product_document", "create_product_with_price", "update_product_with_price"} {
		require.True(t, strings.Contains(scripts[0].SQL, "FUNCTION "+fn+"("), fn)
	}
}
