package tools

import (
	"regexp"
	"strings"
)

var ansiRe = regexp.MustCompile(`\x1b\[[0-9;?]*[A-Za-z]`)

// StripANSI removes terminal escape sequences from tool output.
func StripANSI(s string) string {
	return ansiRe.ReplaceAllString(s, "")
}

// ServiceInfo is what a banner reveals about the service behind a port.
type ServiceInfo struct {
	Service string
	Version string
}

var (
	sshBannerRe  = regexp.MustCompile(`^SSH-[0-9.]+-(\S+)`)
	httpServerRe = regexp.MustCompile(`(?i)server:\s*([^\r\n\\]+)`)
	ftpBannerRe  = regexp.MustCompile(`^220[ -](.*)`)
	smtpBannerRe = regexp.MustCompile(`(?i)^220[ -]\S+\s+(?:E?SMTP)\s*(.*)`)
)

// ParseServiceBanner interprets common SSH, HTTP, SMTP and FTP banners.
// Unknown banners yield an empty ServiceInfo.
func ParseServiceBanner(banner string) ServiceInfo {
	banner = strings.TrimSpace(banner)
	switch {
	case banner == "":
		return ServiceInfo{}
	case strings.HasPrefix(banner, "SSH-"):
		info := ServiceInfo{Service: "ssh"}
		if m := sshBannerRe.FindStringSubmatch(banner); m != nil {
			info.Version = strings.ReplaceAll(m[1], "_", " ")
		}
		return info
	case strings.HasPrefix(banner, "HTTP/"):
		info := ServiceInfo{Service: "http"}
		if m := httpServerRe.FindStringSubmatch(banner); m != nil {
			info.Version = strings.TrimSpace(m[1])
		}
		return info
	case smtpBannerRe.MatchString(banner):
		m := smtpBannerRe.FindStringSubmatch(banner)
		return ServiceInfo{Service: "smtp", Version: strings.TrimSpace(m[1])}
	case ftpBannerRe.MatchString(banner):
		m := ftpBannerRe.FindStringSubmatch(banner)
		return ServiceInfo{Service: "ftp", Version: strings.TrimSpace(m[1])}
	}
	return ServiceInfo{}
}
