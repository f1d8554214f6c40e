package dc1394

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrNotCompiled is returned by New when the package was built without
	// the dc1394 build tag
	ErrNotCompiled = errors.New("dc1394: built without libdc1394 support, rebuild with -tags dc1394 or use the mock")

	// ErrNoCameras is returned when enumeration succeeds but finds nothing
	ErrNoCameras = errors.New("dc1394: no cameras found")

	// ErrClosed is returned by calls on a camera that has been closed
	ErrClosed = errors.New("dc1394: camera is closed")

	// ErrCodes maps libdc1394 status codes to their names
	ErrCodes = map[Error]string{
		0:   "DC1394_SUCCESS",
		-1:  "DC1394_FAILURE",
		-2:  "DC1394_NOT_A_CAMERA",
		-3:  "DC1394_FUNCTION_NOT_SUPPORTED",
		-4:  "DC1394_CAMERA_NOT_INITIALIZED",
		-5:  "DC1394_MEMORY_ALLOCATION_FAILURE",
		-6:  "DC1394_TAGGED_REGISTER_NOT_FOUND",
		-7:  "DC1394_NO_ISO_CHANNEL",
		-8:  "DC1394_NO_BANDWIDTH",
		-9:  "DC1394_IOCTL_FAILURE",
		-10: "DC1394_CAPTURE_IS_NOT_SET",
		-11: "DC1394_CAPTURE_IS_RUNNING",
		-12: "DC1394_RAW1394_FAILURE",
		-13: "DC1394_FORMAT7_ERROR_FLAG_1",
		-14: "DC1394_FORMAT7_ERROR_FLAG_2",
		-15: "DC1394_INVALID_ARGUMENT_VALUE",
		-16: "DC1394_REQ_VALUE_OUTSIDE_RANGE",
		-17: "DC1394_INVALID_FEATURE",
		-18: "DC1394_INVALID_VIDEO_FORMAT",
		-19: "DC1394_INVALID_VIDEO_MODE",
		-20: "DC1394_INVALID_FRAMERATE",
		-21: "DC1394_INVALID_TRIGGER_MODE",
		-22: "DC1394_INVALID_TRIGGER_SOURCE",
		-23: "DC1394_INVALID_ISO_SPEED",
		-24: "DC1394_INVALID_IIDC_VERSION",
		-25: "DC1394_INVALID_COLOR_CODING",
		-26: "DC1394_INVALID_COLOR_FILTER",
		-27: "DC1394_INVALID_CAPTURE_POLICY",
		-28: "DC1394_INVALID_ERROR_CODE",
		-29: "DC1394_INVALID_BAYER_METHOD",
		-30: "DC1394_INVALID_VIDEO1394_DEVICE",
		-31: "DC1394_INVALID_OPERATION_MODE",
		-32: "DC1394_INVALID_TRIGGER_POLARITY",
		-33: "DC1394_INVALID_FEATURE_MODE",
		-34: "DC1394_INVALID_LOG_TYPE",
		-35: "DC1394_INVALID_BYTE_ORDER",
		-36: "DC1394_INVALID_STEREO_METHOD",
		-37: "DC1394_BASLER_NO_MORE_SFF_CHUNKS",
		-38: "DC1394_BASLER_CORRUPTED_SFF_CHUNK",
		-39: "DC1394_BASLER_UNKNOWN_SFF_CHUNK",
	}
)

// Error is a libdc1394 status code
type Error int

// Error satisfies the error interface
func (e Error) Error() string {
	if s, ok := ErrCodes[e]; ok {
		return s
	}
	return fmt.Sprintf("DC1394 unknown error code %d", int(e))
}

// Failure is the generic DC1394_FAILURE code
const Failure Error = -1

// enrich converts a status code to nil on success and otherwise wraps it with
// the name of the library call that produced it
func enrich(code Error, call string) error {
	if code == 0 {
		return nil
	}
	return errors.Wrap(code, call)
}
