package dc1394

import (
	"fmt"

	"github.com/google/gousb"
)

// USBInfo describes a Point Grey device found on the USB bus
type USBInfo struct {
	Bus     int    `json:"bus"`
	Address int    `json:"address"`
	Vendor  uint16 `json:"vendor"`
	Product uint16 `json:"product"`
	Speed   string `json:"speed"`
}

func (u USBInfo) String() string {
	return fmt.Sprintf("bus %03d device %03d: ID %04x:%04x (%s)", u.Bus, u.Address, u.Vendor, u.Product, u.Speed)
}

// ListUSB lists the Point Grey devices attached over USB without opening them.
// It needs no permissions on the device nodes, so it is safe to call before
// libdc1394 claims the camera.
func ListUSB() ([]USBInfo, error) {
	ctx := gousb.NewContext()
	defer ctx.Close()
	var out []USBInfo
	devs, err := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		if desc.Vendor == gousb.ID(PointGreyVID) {
			out = append(out, USBInfo{
				Bus:     desc.Bus,
				Address: desc.Address,
				Vendor:  uint16(desc.Vendor),
				Product: uint16(desc.Product),
				Speed:   desc.Speed.String(),
			})
		}
		return false
	})
	for _, d := range devs {
		d.Close()
	}
	return out, err
}
