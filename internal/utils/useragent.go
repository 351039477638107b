package utils

import (
	"strings"

	"github.com/gin-gonic/gin"
	ua "github.com/mssola/user_agent"
	"github.com/sirupsen/logrus"
)

// DeviceInfo is a summary of the kiosk or browser that issued a request
type DeviceInfo struct {
	DeviceType string // mobile, tablet, desktop, unknown
	OS         string
	Browser    string
	IsBot      bool
}

var tabletIndicators = []string{"ipad", "tablet", "kindle", "nexus 7", "nexus 9", "nexus 10", "sm-t"}

// ParseUserAgent parses a User-Agent string into a DeviceInfo
func ParseUserAgent(userAgent string) DeviceInfo {
	if userAgent == "" || userAgent == "Unknown" {
		return DeviceInfo{DeviceType: "unknown", OS: "Unknown", Browser: "Unknown"}
	}

	parser := ua.New(userAgent)

	info := DeviceInfo{
		IsBot:      parser.Bot(),
		DeviceType: "desktop",
		OS:         "Unknown",
		Browser:    "Unknown",
	}

	if parser.Mobile() {
		info.DeviceType = "mobile"
		lower := strings.ToLower(userAgent)
		for _, indicator := range tabletIndicators {
			if strings.Contains(lower, indicator) {
				info.DeviceType = "tablet"
				break
			}
		}
	}

	if osInfo := parser.OSInfo(); osInfo.Name != "" {
		info.OS = strings.TrimSpace(osInfo.Name + " " + osInfo.Version)
	}

	if name, version := parser.Browser(); name != "" {
		info.Browser = strings.TrimSpace(name + " " + version)
	}

	return info
}

// ClientFields returns log fields identifying the requesting device
func ClientFields(c *gin.Context) logrus.Fields {
	device := ParseUserAgent(GetUserAgent(c))
	return logrus.Fields{
		"client_ip":   GetRealIP(c),
		"device_type": device.DeviceType,
		"os":          device.OS,
		"browser":     device.Browser,
		"is_bot":      device.IsBot,
	}
}
