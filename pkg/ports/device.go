package ports

import "context"

// DeviceProbe reports whether a training accelerator is available.
type DeviceProbe interface {
	AcceleratorAvailable(ctx context.Context) (available bool, name string)
}
