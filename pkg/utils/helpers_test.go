package utils_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/smartcity/signalctl/pkg/utils"
)

func TestClamp(t *testing.T) {
	assert.Equal(t, 1, utils.Clamp(-4, 1, 720))
	assert.Equal(t, 720, utils.Clamp(5000, 1, 720))
	assert.Equal(t, 24, utils.Clamp(24, 1, 720))
	assert.Equal(t, 0.5, utils.Clamp(0.5, 0.0, 1.0))
	assert.Equal(t, "m", utils.Clamp("z", "a", "m"))
}
