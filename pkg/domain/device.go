package domain

// DeviceKind is the class of compute device training runs on.
type DeviceKind string

const (
	DeviceCPU  DeviceKind = "cpu"
	DeviceCUDA DeviceKind = "cuda"
)

// Device is the compute device handed to the model collaborator.
type Device struct {
	Kind DeviceKind
	// Name is informational (GPU model or CPU brand).
	Name string
}

// SelectDevice prefers the accelerator when one is available.
func SelectDevice(acceleratorAvailable bool) Device {
	if acceleratorAvailable {
		return Device{Kind: DeviceCUDA}
	}
	return Device{Kind: DeviceCPU}
}

// Arg is the device argument understood by the trainer.
func (d Device) Arg() string {
	if d.Kind == DeviceCUDA {
		return "cuda:0"
	}
	return "cpu"
}

func (d Device) String() string {
	if d.Name == "" {
		return string(d.Kind)
	}
	return string(d.Kind) + " (" + d.Name + ")"
}
