package service

import (
	"strings"

	"github.com/mssola/useragent"
)

const unknownDevice = "Unknown"

// DeviceDescriptor is the human-readable classification of a user agent.
type DeviceDescriptor struct {
	Name    string
	Browser string
	OS      string
}

// DescribeDevice classifies a user-agent string into browser and OS
// families. Best-effort: anything unrecognized comes back as "Unknown".
func DescribeDevice(userAgent string) DeviceDescriptor {
	if strings.TrimSpace(userAgent) == "" {
		return DeviceDescriptor{Name: unknownDevice, Browser: unknownDevice, OS: unknownDevice}
	}

	parsed := useragent.New(userAgent)

	browser, _ := parsed.Browser()
	if browser == "" {
		browser = unknownDevice
	}
	os := parsed.OSInfo().Name
	if os == "" {
		os = unknownDevice
	}

	name := browser + " on " + os
	if browser == unknownDevice && os == unknownDevice {
		name = unknownDevice
	}
	return DeviceDescriptor{Name: name, Browser: browser, OS: os}
}
