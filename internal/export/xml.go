package export

import (
	"encoding/xml"
	"fmt"
	"io"
	"time"

	"github.com/NubleX/LEGION2/internal/db"
)

type xmlInventory struct {
	XMLName     xml.Name  `xml:"inventory"`
	GeneratedAt time.Time `xml:"generated_at,attr"`
	Hosts       []xmlHost `xml:"host"`
}

type xmlHost struct {
	ID              string             `xml:"id,attr"`
	IP              string             `xml:"ip,attr"`
	Status          string             `xml:"status,attr"`
	Hostname        string             `xml:"hostname,omitempty"`
	MACAddress      string             `xml:"mac_address,omitempty"`
	Vendor          string             `xml:"vendor,omitempty"`
	OS              *xmlOS             `xml:"os,omitempty"`
	LastSeen        time.Time          `xml:"last_seen"`
	Tags            []string           `xml:"tags>tag,omitempty"`
	Ports           []xmlPort          `xml:"ports>port"`
	Vulnerabilities []xmlVulnerability `xml:"vulnerabilities>vulnerability"`
}

type xmlOS struct {
	Name     string `xml:"name,attr"`
	Family   string `xml:"family,attr,omitempty"`
	Accuracy int    `xml:"accuracy,attr,omitempty"`
}

type xmlPort struct {
	Number   int    `xml:"number,attr"`
	Protocol string `xml:"protocol,attr"`
	State    string `xml:"state,attr"`
	Service  string `xml:"service,omitempty"`
	Version  string `xml:"version,omitempty"`
	Banner   string `xml:"banner,omitempty"`
}

type xmlVulnerability struct {
	Name        string   `xml:"name,attr"`
	Severity    string   `xml:"severity,attr"`
	Port        int      `xml:"port,attr,omitempty"`
	CVEID       string   `xml:"cve,attr,omitempty"`
	CVSSScore   *float64 `xml:"cvss,attr,omitempty"`
	Exploitable bool     `xml:"exploitable,attr"`
	Description string   `xml:"description"`
	References  []string `xml:"references>reference,omitempty"`
}

func writeXML(w io.Writer, doc Document) error {
	inv := xmlInventory{GeneratedAt: doc.GeneratedAt, Hosts: make([]xmlHost, 0, len(doc.Hosts))}
	for i := range doc.Hosts {
		inv.Hosts = append(inv.Hosts, toXMLHost(&doc.Hosts[i]))
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return fmt.Errorf("write xml header: %w", err)
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(inv); err != nil {
		return fmt.Errorf("encode xml: %w", err)
	}
	if _, err := io.WriteString(w, "\n"); err != nil {
		return fmt.Errorf("write xml: %w", err)
	}
	return nil
}

func toXMLHost(d *db.HostDetails) xmlHost {
	h := d.Host
	out := xmlHost{
		ID:         h.ID,
		IP:         h.IP,
		Status:     h.Status,
		Hostname:   deref(h.Hostname),
		MACAddress: deref(h.MACAddress),
		Vendor:     deref(h.Vendor),
		LastSeen:   h.LastSeen,
		Tags:       d.Tags,
	}
	if h.OSName != nil {
		out.OS = &xmlOS{Name: *h.OSName, Family: deref(h.OSFamily)}
		if h.OSAccuracy != nil {
			out.OS.Accuracy = *h.OSAccuracy
		}
	}

	numbers := make(map[string]int, len(d.Ports))
	for _, p := range d.Ports {
		numbers[p.ID] = p.Number
		out.Ports = append(out.Ports, xmlPort{
			Number:   p.Number,
			Protocol: p.Protocol,
			State:    p.State,
			Service:  deref(p.Service),
			Version:  deref(p.Version),
			Banner:   deref(p.Banner),
		})
	}
	for _, v := range d.Vulnerabilities {
		xv := xmlVulnerability{
			Name:        v.Name,
			Severity:    v.Severity,
			CVEID:       deref(v.CVEID),
			CVSSScore:   v.CVSSScore,
			Exploitable: v.Exploitable,
			Description: v.Description,
			References:  v.References,
		}
		if v.PortID != nil {
			xv.Port = numbers[*v.PortID]
		}
		out.Vulnerabilities = append(out.Vulnerabilities, xv)
	}
	return out
}
