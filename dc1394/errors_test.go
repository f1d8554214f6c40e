package dc1394

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestErrorNames(t *testing.T) {
	assert.Equal(t, "DC1394_FAILURE", Failure.Error())
	assert.Equal(t, "DC1394_REQ_VALUE_OUTSIDE_RANGE", Error(-16).Error())
	assert.Equal(t, "DC1394 unknown error code -99", Error(-99).Error())
}

func TestEnrichSuccessIsNil(t *testing.T) {
	assert.NoError(t, enrich(0, "dc1394_camera_reset"))
}

func TestEnrichKeepsCode(t *testing.T) {
	err := enrich(Error(-8), "dc1394_video_set_transmission")
	assert.EqualError(t, err, "dc1394_video_set_transmission: DC1394_NO_BANDWIDTH")
	assert.Equal(t, Error(-8), errors.Cause(err))
}
