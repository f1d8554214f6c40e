//go:build dc1394
// +build dc1394

package dc1394

/*
#cgo LDFLAGS: -ldc1394
#include <stdlib.h>
#include <dc1394/dc1394.h>

static dc1394camera_id_t camera_id_at(dc1394camera_list_t *list, uint32_t i) {
	return list->ids[i];
}
*/
import "C"
import (
	"sync"
	"unsafe"

	"github.com/pkg/errors"
)

func status(err C.dc1394error_t) Error {
	return Error(int(err))
}

func sw(on bool) C.dc1394switch_t {
	if on {
		return C.DC1394_ON
	}
	return C.DC1394_OFF
}

// library is a libdc1394 context
type library struct {
	ptr *C.dc1394_t
}

// New creates a libdc1394 context
func New() (Context, error) {
	ptr := C.dc1394_new()
	if ptr == nil {
		return nil, errors.New("dc1394_new: unable to create library context")
	}
	return &library{ptr: ptr}, nil
}

// Enumerate lists the cameras on the bus
func (l *library) Enumerate() ([]CameraID, error) {
	var list *C.dc1394camera_list_t
	err := enrich(status(C.dc1394_camera_enumerate(l.ptr, &list)), "dc1394_camera_enumerate")
	if err != nil {
		return nil, err
	}
	defer C.dc1394_camera_free_list(list)
	n := int(list.num)
	out := make([]CameraID, n)
	for i := 0; i < n; i++ {
		id := C.camera_id_at(list, C.uint32_t(i))
		out[i] = CameraID{GUID: uint64(id.guid), Unit: int(id.unit)}
	}
	return out, nil
}

// Open opens the camera with the given GUID
func (l *library) Open(guid uint64) (Camera, error) {
	ptr := C.dc1394_camera_new(l.ptr, C.uint64_t(guid))
	if ptr == nil {
		return nil, errors.Errorf("dc1394_camera_new: unable to open camera %016x", guid)
	}
	return &camera{ptr: ptr, guid: guid}, nil
}

// Close releases the context
func (l *library) Close() error {
	if l.ptr != nil {
		C.dc1394_free(l.ptr)
		l.ptr = nil
	}
	return nil
}

// camera is a camera opened through libdc1394
type camera struct {
	sync.Mutex
	ptr  *C.dc1394camera_t
	guid uint64
}

func (c *camera) GUID() uint64 {
	return c.guid
}

func (c *camera) Reset() error {
	return enrich(status(C.dc1394_camera_reset(c.ptr)), "dc1394_camera_reset")
}

func (c *camera) SupportedModes() ([]VideoMode, error) {
	var modes C.dc1394video_modes_t
	err := enrich(status(C.dc1394_video_get_supported_modes(c.ptr, &modes)), "dc1394_video_get_supported_modes")
	if err != nil {
		return nil, err
	}
	n := int(modes.num)
	out := make([]VideoMode, n)
	for i := 0; i < n; i++ {
		out[i] = VideoMode(modes.modes[i])
	}
	return out, nil
}

func (c *camera) SetImagePosition(mode VideoMode, left, top int) error {
	return enrich(status(C.dc1394_format7_set_image_position(c.ptr, C.dc1394video_mode_t(mode), C.uint32_t(left), C.uint32_t(top))), "dc1394_format7_set_image_position")
}

func (c *camera) SetImageSize(mode VideoMode, width, height int) error {
	return enrich(status(C.dc1394_format7_set_image_size(c.ptr, C.dc1394video_mode_t(mode), C.uint32_t(width), C.uint32_t(height))), "dc1394_format7_set_image_size")
}

func (c *camera) SetColorCoding(mode VideoMode, coding ColorCoding) error {
	return enrich(status(C.dc1394_format7_set_color_coding(c.ptr, C.dc1394video_mode_t(mode), C.dc1394color_coding_t(coding))), "dc1394_format7_set_color_coding")
}

func (c *camera) SetVideoMode(mode VideoMode) error {
	return enrich(status(C.dc1394_video_set_mode(c.ptr, C.dc1394video_mode_t(mode))), "dc1394_video_set_mode")
}

func (c *camera) ImageSize(mode VideoMode) (int, int, error) {
	var w, h C.uint32_t
	err := enrich(status(C.dc1394_get_image_size_from_video_mode(c.ptr, C.dc1394video_mode_t(mode), &w, &h)), "dc1394_get_image_size_from_video_mode")
	return int(w), int(h), err
}

func (c *camera) SetPower(f Feature, on bool) error {
	return enrich(status(C.dc1394_feature_set_power(c.ptr, C.dc1394feature_t(f), sw(on))), "dc1394_feature_set_power "+f.String())
}

func (c *camera) SetMode(f Feature, m FeatureMode) error {
	return enrich(status(C.dc1394_feature_set_mode(c.ptr, C.dc1394feature_t(f), C.dc1394feature_mode_t(m))), "dc1394_feature_set_mode "+f.String())
}

func (c *camera) SetAbsoluteControl(f Feature, on bool) error {
	return enrich(status(C.dc1394_feature_set_absolute_control(c.ptr, C.dc1394feature_t(f), sw(on))), "dc1394_feature_set_absolute_control "+f.String())
}

func (c *camera) AbsoluteBoundaries(f Feature) (float64, float64, error) {
	var min, max C.float
	err := enrich(status(C.dc1394_feature_get_absolute_boundaries(c.ptr, C.dc1394feature_t(f), &min, &max)), "dc1394_feature_get_absolute_boundaries "+f.String())
	return float64(min), float64(max), err
}

func (c *camera) AbsoluteValue(f Feature) (float64, error) {
	var v C.float
	err := enrich(status(C.dc1394_feature_get_absolute_value(c.ptr, C.dc1394feature_t(f), &v)), "dc1394_feature_get_absolute_value "+f.String())
	return float64(v), err
}

func (c *camera) SetAbsoluteValue(f Feature, v float64) error {
	return enrich(status(C.dc1394_feature_set_absolute_value(c.ptr, C.dc1394feature_t(f), C.float(v))), "dc1394_feature_set_absolute_value "+f.String())
}

func (c *camera) SetupCapture(buffers int) error {
	return enrich(status(C.dc1394_capture_setup(c.ptr, C.uint32_t(buffers), C.DC1394_CAPTURE_FLAGS_DEFAULT)), "dc1394_capture_setup")
}

func (c *camera) StopCapture() error {
	return enrich(status(C.dc1394_capture_stop(c.ptr)), "dc1394_capture_stop")
}

func (c *camera) SetTransmission(on bool) error {
	return enrich(status(C.dc1394_video_set_transmission(c.ptr, sw(on))), "dc1394_video_set_transmission")
}

func (c *camera) Dequeue(p Policy) (*Frame, error) {
	var frame *C.dc1394video_frame_t
	err := enrich(status(C.dc1394_capture_dequeue(c.ptr, C.dc1394capture_policy_t(p), &frame)), "dc1394_capture_dequeue")
	if err != nil {
		return nil, err
	}
	if frame == nil {
		return nil, nil
	}
	n := int(frame.image_bytes)
	out := &Frame{
		Image:   unsafe.Slice((*byte)(unsafe.Pointer(frame.image)), n),
		Width:   int(frame.size[0]),
		Height:  int(frame.size[1]),
		Coding:  ColorCoding(frame.color_coding),
		Corrupt: C.dc1394_capture_is_frame_corrupt(c.ptr, frame) == C.DC1394_TRUE,
		ref:     frame,
	}
	return out, nil
}

func (c *camera) Enqueue(f *Frame) error {
	frame, ok := f.ref.(*C.dc1394video_frame_t)
	if !ok || frame == nil {
		return errors.Wrap(Error(-15), "dc1394_capture_enqueue: frame was not dequeued from this camera")
	}
	f.Image = nil
	return enrich(status(C.dc1394_capture_enqueue(c.ptr, frame)), "dc1394_capture_enqueue")
}

func (c *camera) ControlRegister(offset uint64) (uint32, error) {
	var v C.uint32_t
	err := enrich(status(C.dc1394_get_control_register(c.ptr, C.uint64_t(offset), &v)), "dc1394_get_control_register")
	return uint32(v), err
}

func (c *camera) Close() error {
	c.Lock()
	defer c.Unlock()
	if c.ptr != nil {
		C.dc1394_camera_free(c.ptr)
		c.ptr = nil
	}
	return nil
}
