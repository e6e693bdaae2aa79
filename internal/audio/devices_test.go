package audio

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/gordonklaus/portaudio"
)

func setupPortAudio(t *testing.T) {
	t.Helper()
	if err := Initialize(); err != nil {
		t.Skipf("PortAudio unavailable: %v", err)
	}
	t.Cleanup(func() {
		if err := Terminate(); err != nil {
			t.Fatalf("Failed to terminate PortAudio: %v", err)
		}
	})
}

// stubDevices replaces the PortAudio device seams for the duration of a test.
func stubDevices(t *testing.T, infos []*portaudio.DeviceInfo, def *portaudio.DeviceInfo) {
	t.Helper()
	origDevices, origDefault := paLibDevicesFunc, paLibDefaultInputDeviceFunc
	t.Cleanup(func() {
		paLibDevicesFunc, paLibDefaultInputDeviceFunc = origDevices, origDefault
	})
	paLibDevicesFunc = func() ([]*portaudio.DeviceInfo, error) { return infos, nil }
	paLibDefaultInputDeviceFunc = func() (*portaudio.DeviceInfo, error) {
		if def == nil {
			return nil, fmt.Errorf("no default device")
		}
		return def, nil
	}
}

func fakeInfos() []*portaudio.DeviceInfo {
	return []*portaudio.DeviceInfo{
		{Name: "Built-in Microphone", MaxInputChannels: 2, DefaultSampleRate: 48000, HostApi: &portaudio.HostApiInfo{Name: "Core Audio"}},
		{Name: "Built-in Output", MaxOutputChannels: 2, DefaultSampleRate: 48000},
		{Name: "USB Headset", MaxInputChannels: 1, MaxOutputChannels: 2, DefaultSampleRate: 44100},
	}
}

func TestHostDevices(t *testing.T) {
	infos := fakeInfos()
	stubDevices(t, infos, infos[0])

	devices, err := HostDevices()
	if err != nil {
		t.Fatalf("HostDevices error: %v", err)
	}
	if len(devices) != 3 {
		t.Fatalf("got %d devices, want 3", len(devices))
	}
	for i, d := range devices {
		if d.ID != i {
			t.Errorf("Device ID mismatch: got %d, want %d", d.ID, i)
		}
	}
	if !devices[0].IsDefaultInput || devices[2].IsDefaultInput {
		t.Errorf("default input flags wrong: %+v", devices)
	}
	if devices[0].HostAPI != "Core Audio" {
		t.Errorf("HostAPI = %q, want Core Audio", devices[0].HostAPI)
	}
}

func TestHostDevices_paDevicesError(t *testing.T) {
	orig := paDevicesFunc
	defer func() { paDevicesFunc = orig }()
	paDevicesFunc = func() ([]*portaudio.DeviceInfo, error) {
		return nil, fmt.Errorf("mock error")
	}

	_, err := HostDevices()
	if err == nil || !strings.Contains(err.Error(), "mock error") {
		t.Errorf("expected mock error, got %v", err)
	}
}

func TestInputDevice(t *testing.T) {
	infos := fakeInfos()
	stubDevices(t, infos, infos[0])

	if dev, err := InputDevice(-1); err != nil || dev.Name != "Built-in Microphone" {
		t.Errorf("InputDevice(-1) = (%v, %v), want the default microphone", dev, err)
	}
	if dev, err := InputDevice(2); err != nil || dev.Name != "USB Headset" {
		t.Errorf("InputDevice(2) = (%v, %v), want the headset", dev, err)
	}

	tests := []struct {
		name   string
		id     int
		substr string
	}{
		{"Negative ID", -2, "invalid device ID"},
		{"Too high ID", len(infos) + 10, "invalid device ID"},
		{"Non-input device", 1, "does not support input"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := InputDevice(tt.id)
			if err == nil {
				t.Errorf("Expected error for ID %d", tt.id)
			} else if !strings.Contains(err.Error(), tt.substr) {
				t.Errorf("Error = %q, want substring %q", err.Error(), tt.substr)
			}
		})
	}
}

func TestInputDevice_paDefaultInputDeviceError(t *testing.T) {
	stubDevices(t, fakeInfos(), nil)

	_, err := InputDevice(-1)
	if err == nil || !strings.Contains(err.Error(), "no default") {
		t.Errorf("expected default device error, got %v", err)
	}
}

func TestListDevices(t *testing.T) {
	infos := fakeInfos()
	stubDevices(t, infos, infos[0])

	var buf bytes.Buffer
	if err := ListDevices(&buf); err != nil {
		t.Fatalf("ListDevices error: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"[0] Built-in Microphone (Input) [default input]",
		"[1] Built-in Output (Output)",
		"[2] USB Headset (Input/Output)",
		"Host API: Core Audio",
		"Default sample rate: 44100 Hz",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("ListDevices output missing %q:\n%s", want, out)
		}
	}
}

func TestErrorInitialize(t *testing.T) {
	orig := paLibInitialize
	defer func() { paLibInitialize = orig }()

	paLibInitialize = func() error { return nil }
	if err := Initialize(); err != nil {
		t.Errorf("expected nil, got %v", err)
	}

	paLibInitialize = func() error { return fmt.Errorf("mock init error") }
	if err := Initialize(); err == nil || !strings.Contains(err.Error(), "mock init error") {
		t.Errorf("expected mock init error, got %v", err)
	}
}

func TestErrorTerminate(t *testing.T) {
	orig := paLibTerminate
	defer func() { paLibTerminate = orig }()

	paLibTerminate = func() error { return nil }
	if err := Terminate(); err != nil {
		t.Errorf("expected nil, got %v", err)
	}

	paLibTerminate = func() error { return fmt.Errorf("mock term error") }
	if err := Terminate(); err == nil || !strings.Contains(err.Error(), "mock term error") {
		t.Errorf("expected mock term error, got %v", err)
	}
}

func TestNilDevices(t *testing.T) {
	stubDevices(t, nil, nil)

	devices, err := paDevices()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if devices == nil || len(devices) != 0 {
		t.Errorf("expected empty non-nil slice, got %v", devices)
	}
}

func TestRealHostDevices(t *testing.T) {
	setupPortAudio(t)

	devices, err := HostDevices()
	if err != nil {
		t.Fatalf("HostDevices error: %v", err)
	}
	if len(devices) == 0 {
		t.Skip("No audio devices found on system")
	}
	for i, d := range devices {
		if d.Name == "" {
			t.Errorf("Device %d has empty name", i)
		}
		if d.DefaultSampleRate <= 0 {
			t.Errorf("Device %d has invalid sample rate: %f", i, d.DefaultSampleRate)
		}
	}
}

func TestDeviceKind(t *testing.T) {
	tests := []struct {
		in, out int
		want    string
	}{
		{2, 0, "Input"},
		{0, 2, "Output"},
		{1, 1, "Input/Output"},
		{0, 0, "Unavailable"},
	}
	for _, tt := range tests {
		d := Device{MaxInputChannels: tt.in, MaxOutputChannels: tt.out}
		if got := d.Kind(); got != tt.want {
			t.Errorf("Kind(%d in, %d out) = %q, want %q", tt.in, tt.out, got, tt.want)
		}
	}
}

func TestClassifyOpenError(t *testing.T) {
	if classifyOpenError(nil) != nil {
		t.Error("nil should stay nil")
	}
	denied := classifyOpenError(fmt.Errorf("Unanticipated host error: access denied"))
	if !strings.Contains(denied.Error(), ErrPermissionDenied.Error()) {
		t.Errorf("denied error not classified: %v", denied)
	}
	other := fmt.Errorf("Invalid sample rate")
	if classifyOpenError(other) != other {
		t.Error("unrelated errors should pass through")
	}
}
