package credentials

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func TestEnv_Resolve(t *testing.T) {
	t.Setenv("APISYNC_TEST_TOKEN", "sekret")

	assert.Equal(t, "sekret", Env{}.Resolve("APISYNC_TEST_TOKEN"))
	assert.Equal(t, "", Env{}.Resolve("APISYNC_TEST_MISSING"))
	assert.Equal(t, "", Env{}.Resolve(""))
}

func TestStatic_Resolve(t *testing.T) {
	s := Static{"KEY": "value"}
	assert.Equal(t, "value", s.Resolve("KEY"))
	assert.Equal(t, "", s.Resolve("OTHER"))
}
