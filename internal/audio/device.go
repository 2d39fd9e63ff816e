package audio

import (
	"fmt"
	"io"

	"github.com/gordonklaus/portaudio"
)

// DeviceInfo holds audio device information.
type DeviceInfo struct {
	Name              string  `json:"name"`
	MaxOutputChannels int     `json:"maxOutputChannels"`
	DefaultSampleRate float64 `json:"defaultSampleRate"`
	IsDefault         bool    `json:"isDefault"`
}

// ListDevices returns the devices that can play audio.
func ListDevices() ([]DeviceInfo, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}

	var defaultOutName string
	if d, err := portaudio.DefaultOutputDevice(); err == nil {
		defaultOutName = d.Name
	}

	result := []DeviceInfo{}
	for _, d := range devices {
		if d.MaxOutputChannels < NumChannels {
			continue
		}
		result = append(result, DeviceInfo{
			Name:              d.Name,
			MaxOutputChannels: d.MaxOutputChannels,
			DefaultSampleRate: d.DefaultSampleRate,
			IsDefault:         d.Name == defaultOutName,
		})
	}
	return result, nil
}

// HasOutputDevice returns true if a default output device is available.
func HasOutputDevice() bool {
	_, err := portaudio.DefaultOutputDevice()
	return err == nil
}

// PrintDevices writes the output devices to w.
func PrintDevices(w io.Writer) error {
	devices, err := ListDevices()
	if err != nil {
		return err
	}
	FormatDevices(w, devices)
	if !HasOutputDevice() {
		fmt.Fprintln(w, "\n  WARNING: No default output device. Playback unavailable.")
	}
	return nil
}

// FormatDevices writes a device listing to w.
func FormatDevices(w io.Writer, devices []DeviceInfo) {
	fmt.Fprintln(w, "Audio Devices:")
	if len(devices) == 0 {
		fmt.Fprintln(w, "  (no devices found)")
		return
	}
	for i, d := range devices {
		defaultStr := ""
		if d.IsDefault {
			defaultStr = " [DEFAULT]"
		}
		fmt.Fprintf(w, "  %d: %s (out:%d rate:%.0f)%s\n",
			i, d.Name, d.MaxOutputChannels, d.DefaultSampleRate, defaultStr)
	}
}
