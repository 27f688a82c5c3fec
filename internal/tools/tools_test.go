package tools

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NubleX/LEGION2/internal/errors"
	"github.com/NubleX/LEGION2/internal/results"
)

const nmapXML = `<?xml version="1.0" encoding="UTF-8"?>
<nmaprun scanner="nmap" args="nmap -oX - -sV 10.0.0.5" start="1700000000" version="7.94" xmloutputversion="1.05">
<taskprogress task="Service scan" time="1700000002" percent="42.50" remaining="3" etc="1700000005"/>
<host starttime="1700000000" endtime="1700000010"><status state="up" reason="syn-ack" reason_ttl="0"/>
<address addr="10.0.0.5" addrtype="ipv4"/>
<address addr="00:11:22:aa:bb:cc" addrtype="mac" vendor="Acme"/>
<hostnames><hostname name="web01.lab" type="PTR"/></hostnames>
<ports>
<port protocol="tcp" portid="22"><state state="open" reason="syn-ack" reason_ttl="64"/><service name="ssh" product="OpenSSH" version="8.9p1" method="probed" conf="10"/></port>
<port protocol="tcp" portid="80"><state state="open" reason="syn-ack" reason_ttl="64"/><service name="http" product="Apache httpd" version="2.4.49" method="probed" conf="10"/>
<script id="vulners" output="&#xa;  cpe:/a:apache:http_server:2.4.49: &#xa;    &#9;CVE-2021-41773&#9;7.5&#9;https://vulners.com/cve/CVE-2021-41773&#9;*EXPLOIT*&#xa;    &#9;CVE-2021-42013&#9;9.8&#9;https://vulners.com/cve/CVE-2021-42013"/>
</port>
<port protocol="udp" portid="161"><state state="open|filtered" reason="no-response" reason_ttl="0"/><service name="snmp" method="table" conf="3"/></port>
</ports>
<os><osmatch name="Linux 4.15" accuracy="90" line="2"><osclass type="general purpose" vendor="Linux" osfamily="Linux" osgen="4.X" accuracy="90"/></osmatch><osmatch name="Linux 5.0 - 5.14" accuracy="98" line="1"><osclass type="general purpose" vendor="Linux" osfamily="Linux" osgen="5.X" accuracy="98"/></osmatch></os>
<hostscript><script id="smb-vuln-ms17-010" output="&#xa;  VULNERABLE:&#xa;  Remote Code Execution vulnerability in Microsoft SMBv1 servers (ms17-010)&#xa;    State: VULNERABLE&#xa;    IDs:  CVE:CVE-2017-0143&#xa;    References:&#xa;      https://technet.microsoft.com/en-us/library/security/ms17-010.aspx"/></hostscript>
</host>
<runstats><finished time="1700000010" timestr="Tue Nov 14 22:13:30 2023" elapsed="10.00" summary="done" exit="success"/><hosts up="1" down="0" total="1"/></runstats>
</nmaprun>
`

const discoveryXML = `<?xml version="1.0" encoding="UTF-8"?>
<nmaprun scanner="nmap" args="nmap -sn 10.0.0.0/29" start="1700000000" version="7.94" xmloutputversion="1.05">
<host><status state="up" reason="arp-response" reason_ttl="0"/><address addr="10.0.0.1" addrtype="ipv4"/></host>
<host><status state="up" reason="echo-reply" reason_ttl="64"/><address addr="10.0.0.5" addrtype="ipv4"/><hostnames><hostname name="web01.lab" type="PTR"/></hostnames></host>
<runstats><finished time="1700000003" timestr="" elapsed="3.00" summary="" exit="success"/><hosts up="2" down="4" total="6"/></runstats>
</nmaprun>
`

func newTestRegistry() *Registry {
	return NewRegistry(RegistryConfig{Paths: Paths{Nmap: "/usr/bin/nmap"}})
}

func mustTool(t *testing.T, r *Registry, name string) Tool {
	t.Helper()
	tool, err := r.Get(name)
	require.NoError(t, err)
	return tool
}

func TestRegistry(t *testing.T) {
	r := newTestRegistry()
	assert.Equal(t, []string{
		ScanDirb, ScanDiscovery, ScanMasscan, ScanNikto, ScanNmap,
		ScanNmapComprehensive, ScanNmapCustom, ScanNmapQuick, ScanNmapStealth,
	}, r.Types())

	_, err := r.Get("openvas")
	assert.Equal(t, errors.CodeToolNotFound, errors.GetCode(err))
}

func TestNmapInvocation(t *testing.T) {
	r := newTestRegistry()
	three := 3

	tests := []struct {
		name string
		tool string
		opts Options
		want []string
	}{
		{"default", ScanNmap, Options{}, []string{"-oX", "-", "--stats-every", "2s", "-sV", "-T4", "10.0.0.5"}},
		{"quick", ScanNmapQuick, Options{}, []string{"-oX", "-", "--stats-every", "2s", "-sS", "--top-ports", "1000", "-T4", "10.0.0.5"}},
		{"quick with ports", ScanNmapQuick, Options{PortRange: "22,80"}, []string{"-oX", "-", "--stats-every", "2s", "-sS", "-p", "22,80", "-T4", "10.0.0.5"}},
		{"comprehensive", ScanNmapComprehensive, Options{}, []string{"-oX", "-", "--stats-every", "2s", "-sS", "-sV", "-A", "-O", "-p", "1-65535", "-T4", "10.0.0.5"}},
		{"stealth", ScanNmapStealth, Options{}, []string{"-oX", "-", "--stats-every", "2s", "-sS", "-f", "-T2", "10.0.0.5"}},
		{"custom", ScanNmapCustom, Options{CustomArgs: "-sU  --top-ports 20"}, []string{"-oX", "-", "--stats-every", "2s", "-sU", "--top-ports", "20", "10.0.0.5"}},
		{"timing and scripts", ScanNmap, Options{Timing: &three, Scripts: []string{"vulners", "banner"}, Excludes: []string{"10.0.0.9"}},
			[]string{"-oX", "-", "--stats-every", "2s", "-sV", "-T3", "--script", "vulners,banner", "--exclude", "10.0.0.9", "10.0.0.5"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv, err := mustTool(t, r, tt.tool).BuildInvocation("10.0.0.5", tt.opts)
			require.NoError(t, err)
			assert.Equal(t, "/usr/bin/nmap", inv.Path)
			assert.Equal(t, tt.want, inv.Args)
		})
	}
}

func TestNmapUnprivileged(t *testing.T) {
	r := NewRegistry(RegistryConfig{Unprivileged: true})
	inv, err := mustTool(t, r, ScanNmapComprehensive).BuildInvocation("10.0.0.5", Options{OSDetection: true})
	require.NoError(t, err)
	assert.Contains(t, inv.Args, "-sT")
	assert.NotContains(t, inv.Args, "-sS")
	assert.NotContains(t, inv.Args, "-O")
}

func TestNmapValidate(t *testing.T) {
	r := newTestRegistry()
	custom := mustTool(t, r, ScanNmapCustom)

	err := custom.Validate("10.0.0.5", Options{CustomArgs: "-sV -oN /tmp/out"})
	assert.Equal(t, errors.CodeValidation, errors.GetCode(err))

	err = custom.Validate("10.0.0.5", Options{})
	assert.Equal(t, errors.CodeValidation, errors.GetCode(err))

	err = mustTool(t, r, ScanNmap).Validate("10.0.0.5;reboot", Options{})
	assert.Equal(t, errors.CodeInvalidTarget, errors.GetCode(err))

	err = mustTool(t, r, ScanNmap).Validate("10.0.0.5", Options{PortRange: "99999"})
	assert.Error(t, err)
}

func TestNmapParseOutput(t *testing.T) {
	set, err := mustTool(t, newTestRegistry(), ScanNmap).ParseOutput("10.0.0.5", []byte(nmapXML))
	require.NoError(t, err)

	require.Len(t, set.Hosts, 1)
	h := set.Hosts[0]
	assert.Equal(t, "10.0.0.5", h.IP)
	assert.Equal(t, "web01.lab", h.Hostname)
	assert.Equal(t, "00:11:22:AA:BB:CC", h.MACAddress)
	assert.Equal(t, "Acme", h.Vendor)
	assert.Equal(t, "Linux 5.0 - 5.14", h.OSName)
	assert.Equal(t, 98, h.OSAccuracy)
	assert.Equal(t, "linux", h.OSFamily)
	assert.Equal(t, results.StatusUp, h.Status)

	require.Len(t, set.Ports, 3)
	assert.Equal(t, results.Port{HostIP: "10.0.0.5", Number: 22, Protocol: "tcp", State: "open", Service: "ssh", Version: "OpenSSH 8.9p1", Confidence: 10}, set.Ports[0])
	assert.Equal(t, "udp", set.Ports[2].Protocol)
	assert.Equal(t, "open|filtered", set.Ports[2].State)
	assert.Equal(t, 2, set.OpenPorts())

	require.Len(t, set.Scripts, 2)
	assert.Equal(t, "vulners", set.Scripts[0].Name)
	assert.Equal(t, 80, set.Scripts[0].PortNumber)
	assert.Equal(t, "smb-vuln-ms17-010", set.Scripts[1].Name)
	assert.Zero(t, set.Scripts[1].PortNumber)

	require.Len(t, set.Vulnerabilities, 3)
	v := set.Vulnerabilities[0]
	assert.Equal(t, "CVE-2021-41773", v.Name)
	assert.Equal(t, "CVE-2021-41773", v.CVEID)
	assert.Equal(t, results.SeverityHigh, v.Severity)
	assert.True(t, v.Exploitable)
	require.NotNil(t, v.CVSSScore)
	assert.InDelta(t, 7.5, *v.CVSSScore, 0.001)
	assert.Equal(t, results.SeverityCritical, set.Vulnerabilities[1].Severity)
	assert.False(t, set.Vulnerabilities[1].Exploitable)

	smb := set.Vulnerabilities[2]
	assert.Equal(t, "smb-vuln-ms17-010", smb.Name)
	assert.Equal(t, "CVE-2017-0143", smb.CVEID)
	assert.Equal(t, results.SeverityHigh, smb.Severity)
	assert.Contains(t, smb.Description, "Remote Code Execution")
	assert.Len(t, smb.References, 1)
}

func TestNmapParseOutputErrors(t *testing.T) {
	tool := mustTool(t, newTestRegistry(), ScanNmap)
	for _, out := range []string{"", "Starting Nmap 7.94\nQUITTING!", "<nmaprun><host>"} {
		_, err := tool.ParseOutput("10.0.0.5", []byte(out))
		assert.Equal(t, errors.CodeParseError, errors.GetCode(err), "output %q", out)
	}
}

func TestDiscovery(t *testing.T) {
	tool := mustTool(t, newTestRegistry(), ScanDiscovery)

	inv, err := tool.BuildInvocation("10.0.0.0/29", Options{Excludes: []string{"10.0.0.2"}})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"-oX", "-", "--stats-every", "2s", "-sn", "-PE", "-PS22,80,443", "-PA80", "-T4",
		"--exclude", "10.0.0.2", "10.0.0.0/29",
	}, inv.Args)

	_, err = tool.BuildInvocation("example.com", Options{})
	assert.Equal(t, errors.CodeInvalidTarget, errors.GetCode(err))

	set, err := tool.ParseOutput("10.0.0.0/29", []byte(discoveryXML))
	require.NoError(t, err)
	assert.Equal(t, []string{"10.0.0.1", "10.0.0.5"}, set.LiveHosts())
	assert.Empty(t, set.Ports)
	assert.Equal(t, "web01.lab", set.Hosts[1].Hostname)
}

func TestMasscan(t *testing.T) {
	tool := mustTool(t, NewRegistry(RegistryConfig{MasscanRate: 5000}), ScanMasscan)

	inv, err := tool.BuildInvocation("10.0.0.0/24", Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"10.0.0.0/24", "-p", "1-65535", "--rate", "5000", "--banners", "-oL", "-"}, inv.Args)

	inv, err = tool.BuildInvocation("10.0.0.5", Options{PortRange: "80,443", Rate: 100, Excludes: []string{"10.0.0.1"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"10.0.0.5", "-p", "80,443", "--rate", "100", "--banners", "-oL", "-", "--exclude", "10.0.0.1"}, inv.Args)

	_, err = tool.BuildInvocation("scanme.example.com", Options{})
	assert.Equal(t, errors.CodeInvalidTarget, errors.GetCode(err))

	out := "#masscan\n" +
		"open tcp 22 10.0.0.5 1700000000\n" +
		"open tcp 80 10.0.0.5 1700000000\n" +
		"banner tcp 22 10.0.0.5 1700000001 ssh SSH-2.0-OpenSSH_8.9p1 Ubuntu-3\n" +
		"open tcp 443 10.0.0.6 1700000000\n" +
		"# end\n"
	set, err := tool.ParseOutput("10.0.0.0/24", []byte(out))
	require.NoError(t, err)
	assert.Len(t, set.Hosts, 2)
	require.Len(t, set.Ports, 3)
	assert.Equal(t, "ssh", set.Ports[0].Service)
	assert.Equal(t, "OpenSSH 8.9p1", set.Ports[0].Version)
	assert.Equal(t, "SSH-2.0-OpenSSH_8.9p1 Ubuntu-3", set.Ports[0].Banner)

	_, err = tool.ParseOutput("10.0.0.0/24", []byte("open tcp x 10.0.0.5 1\n"))
	assert.Equal(t, errors.CodeParseError, errors.GetCode(err))

	pct, ok := tool.EstimateProgress("rate:  0.00-kpps, 45.23% done,   0:00:05 remaining, found=0")
	assert.True(t, ok)
	assert.InDelta(t, 45.23, pct, 0.001)

	assert.False(t, tool.RecoverableExit(1))
	assert.True(t, tool.RecoverableExit(2))
}

func TestNikto(t *testing.T) {
	tool := mustTool(t, newTestRegistry(), ScanNikto)

	inv, err := tool.BuildInvocation("web01.lab", Options{PortRange: "8080"})
	require.NoError(t, err)
	assert.Equal(t, []string{"-h", "web01.lab", "-Format", "csv", "-output", "-", "-ask", "no", "-nointeractive", "-p", "8080"}, inv.Args)

	_, err = tool.BuildInvocation("10.0.0.0/24", Options{})
	assert.Equal(t, errors.CodeInvalidTarget, errors.GetCode(err))

	out := `"Nikto - v2.5.0/"
"web01","10.0.0.5","80","","GET","/","The anti-clickjacking X-Frame-Options header is not present."
"web01","10.0.0.5","80","OSVDB-3092","GET","/admin/","This might be interesting... possible remote access."
`
	set, err := tool.ParseOutput("web01", []byte(out))
	require.NoError(t, err)
	require.Len(t, set.Hosts, 1)
	assert.Equal(t, "web01", set.Hosts[0].Hostname)
	require.Len(t, set.Ports, 1)
	require.Len(t, set.Vulnerabilities, 2)
	assert.Equal(t, "nikto:/", set.Vulnerabilities[0].Name)
	assert.Equal(t, results.SeverityLow, set.Vulnerabilities[0].Severity)
	assert.Equal(t, "nikto:OSVDB-3092:/admin/", set.Vulnerabilities[1].Name)
	assert.Equal(t, results.SeverityMedium, set.Vulnerabilities[1].Severity)

	accepter, ok := tool.(ExitAccepter)
	require.True(t, ok)
	assert.True(t, accepter.AcceptsExit(1))
	assert.False(t, accepter.AcceptsExit(2))
}

func TestDirb(t *testing.T) {
	tool := mustTool(t, NewRegistry(RegistryConfig{DirbWordlist: "/opt/words.txt"}), ScanDirb)

	inv, err := tool.BuildInvocation("10.0.0.5", Options{PortRange: "8443"})
	require.NoError(t, err)
	assert.Equal(t, []string{"https://10.0.0.5:8443/", "/opt/words.txt", "-S", "-r", "-w"}, inv.Args)

	inv, err = tool.BuildInvocation("10.0.0.5", Options{Wordlist: "/tmp/w.txt"})
	require.NoError(t, err)
	assert.Equal(t, "http://10.0.0.5/", inv.Args[0])
	assert.Equal(t, "/tmp/w.txt", inv.Args[1])

	_, err = tool.BuildInvocation("10.0.0.5", Options{PortRange: "80,443"})
	assert.Equal(t, errors.CodeValidation, errors.GetCode(err))

	out := "-----------------\nDIRB v2.22\n-----------------\n" +
		"URL_BASE: http://10.0.0.5:8080/\n" +
		"---- Scanning URL: http://10.0.0.5:8080/ ----\n" +
		"+ http://10.0.0.5:8080/index.html (CODE:200|SIZE:10918)\n" +
		"==> DIRECTORY: http://10.0.0.5:8080/images/\n"
	set, err := tool.ParseOutput("10.0.0.5", []byte(out))
	require.NoError(t, err)
	require.Len(t, set.Ports, 1)
	assert.Equal(t, 8080, set.Ports[0].Number)
	require.Len(t, set.Scripts, 1)
	assert.Equal(t, "http://10.0.0.5:8080/index.html (status 200, 10918 bytes)\nhttp://10.0.0.5:8080/images/ (directory)", set.Scripts[0].Output)
}

func TestEstimateProgress(t *testing.T) {
	tool := mustTool(t, newTestRegistry(), ScanNmap)
	tests := []struct {
		line string
		want float64
		ok   bool
	}{
		{`<taskprogress task="SYN Stealth Scan" time="1" percent="12.34" remaining="5" etc="6"/>`, 12.34, true},
		{"SYN Stealth Scan Timing: About 55.10% done; ETC: 12:00 (0:00:10 remaining)", 55.10, true},
		{`<host><status state="up"/>`, 0, false},
	}
	for _, tt := range tests {
		got, ok := tool.EstimateProgress(tt.line)
		assert.Equal(t, tt.ok, ok, tt.line)
		assert.InDelta(t, tt.want, got, 0.001, tt.line)
	}
}

func TestParseServiceBanner(t *testing.T) {
	tests := []struct {
		banner string
		want   ServiceInfo
	}{
		{"SSH-2.0-OpenSSH_8.9p1 Ubuntu-3ubuntu0.1", ServiceInfo{"ssh", "OpenSSH 8.9p1"}},
		{"HTTP/1.1 200 OK\\r\\nServer: nginx/1.18.0\\r\\n", ServiceInfo{"http", "nginx/1.18.0"}},
		{"220 mail.example.com ESMTP Postfix", ServiceInfo{"smtp", "Postfix"}},
		{"220 (vsFTPd 3.0.3)", ServiceInfo{"ftp", "(vsFTPd 3.0.3)"}},
		{"garbage", ServiceInfo{}},
		{"", ServiceInfo{}},
	}
	for _, tt := range tests {
		t.Run(tt.banner, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseServiceBanner(tt.banner))
		})
	}
}

func TestStripANSI(t *testing.T) {
	assert.Equal(t, "+ found", StripANSI("\x1b[32m+ found\x1b[0m"))
}
