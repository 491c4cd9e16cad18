//go:build linux

package procfs

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmaynor/agent-watch/apperr"
	"github.com/dmaynor/agent-watch/util"
)

// tcpStateNames maps the single-byte state code from /proc/net/{tcp,tcp6}
// to its human name, exactly the 0x01..0x0B table from spec.md §4.2 and
// the teacher's collector/socket.go comment block.
var tcpStateNames = map[int]string{
	0x01: "ESTABLISHED",
	0x02: "SYN_SENT",
	0x03: "SYN_RECV",
	0x04: "FIN_WAIT1",
	0x05: "FIN_WAIT2",
	0x06: "TIME_WAIT",
	0x07: "CLOSE",
	0x08: "CLOSE_WAIT",
	0x09: "LAST_ACK",
	0x0A: "LISTEN",
	0x0B: "CLOSING",
}

type kernelSocket struct {
	protocol   string
	localAddr  string
	localPort  int32
	remoteAddr string
	remotePort int32
	state      string
}

// ReadNetConnections builds inode -> socket from /proc/net/{tcp,tcp6,udp,
// udp6}, then intersects with the set of "socket:[inode]" fd symlinks under
// this PID's fd directory — the attribution rule from spec.md §3.
func (s *linuxSource) ReadNetConnections(pid int32) ([]NetConnInfo, error) {
	byInode, err := readKernelSocketTables()
	if err != nil {
		return nil, err
	}
	if len(byInode) == 0 {
		return nil, nil
	}

	fdDir := fmt.Sprintf("/proc/%d/fd", pid)
	entries, err := os.ReadDir(fdDir)
	if err != nil {
		return nil, apperr.New(apperr.ProcRead, err)
	}

	var out []NetConnInfo
	for _, e := range entries {
		target, err := os.Readlink(filepath.Join(fdDir, e.Name()))
		if err != nil {
			continue
		}
		inode, ok := socketInode(target)
		if !ok {
			continue
		}
		ks, ok := byInode[inode]
		if !ok {
			continue
		}
		out = append(out, NetConnInfo{
			Protocol:   ks.protocol,
			LocalAddr:  ks.localAddr,
			LocalPort:  ks.localPort,
			RemoteAddr: ks.remoteAddr,
			RemotePort: ks.remotePort,
			State:      ks.state,
		})
	}
	return out, nil
}

// socketInode extracts the inode number from an fd symlink target of the
// form "socket:[12345]".
func socketInode(target string) (uint64, bool) {
	if !strings.HasPrefix(target, "socket:[") || !strings.HasSuffix(target, "]") {
		return 0, false
	}
	n := util.ParseUint64(target[len("socket:[") : len(target)-1])
	return n, n > 0
}

// readKernelSocketTables parses all four /proc/net tables into a single
// inode -> kernelSocket map. UDP sockets have no meaningful "state" in the
// TCP sense; the teacher's table only classifies TCP states, so UDP rows
// are reported with their raw hex state mapped through the same table
// where applicable, else "UNKNOWN".
func readKernelSocketTables() (map[uint64]kernelSocket, error) {
	out := make(map[uint64]kernelSocket)
	tables := []struct {
		path     string
		protocol string
	}{
		{"/proc/net/tcp", "tcp"},
		{"/proc/net/tcp6", "tcp6"},
		{"/proc/net/udp", "udp"},
		{"/proc/net/udp6", "udp6"},
	}
	for _, t := range tables {
		lines, err := util.ReadFileLines(t.path)
		if err != nil {
			continue // table may not exist (e.g. IPv6 disabled); not fatal
		}
		if len(lines) < 2 {
			continue
		}
		for _, line := range lines[1:] {
			fields := strings.Fields(line)
			if len(fields) < 10 {
				continue
			}
			localAddr, localPort := splitHexAddr(fields[1])
			remoteAddr, remotePort := splitHexAddr(fields[2])
			stateBytes, err := hex.DecodeString(fields[3])
			if err != nil || len(stateBytes) == 0 {
				continue
			}
			state := tcpStateNames[int(stateBytes[0])]
			if state == "" {
				state = "UNKNOWN"
			}
			inode := util.ParseUint64(fields[9])
			if inode == 0 {
				continue
			}
			out[inode] = kernelSocket{
				protocol:   t.protocol,
				localAddr:  localAddr,
				localPort:  localPort,
				remoteAddr: remoteAddr,
				remotePort: remotePort,
				state:      state,
			}
		}
	}
	return out, nil
}

// splitHexAddr decodes a /proc/net/{tcp,udp} address field of the form
// "ADDR:PORT" where ADDR is hex-encoded and little-endian for IPv4.
func splitHexAddr(field string) (addr string, port int32) {
	parts := strings.SplitN(field, ":", 2)
	if len(parts) != 2 {
		return "", 0
	}
	portBytes, err := hex.DecodeString(parts[1])
	if err == nil && len(portBytes) >= 2 {
		port = int32(portBytes[0])<<8 | int32(portBytes[1])
	}
	addrBytes, err := hex.DecodeString(parts[0])
	if err != nil {
		return "", port
	}
	switch len(addrBytes) {
	case 4:
		addr = fmt.Sprintf("%d.%d.%d.%d", addrBytes[3], addrBytes[2], addrBytes[1], addrBytes[0])
	case 16:
		// IPv6 stored as four little-endian 32-bit words; reverse each
		// word's byte order before formatting.
		b := make([]byte, 16)
		for w := 0; w < 4; w++ {
			for i := 0; i < 4; i++ {
				b[w*4+i] = addrBytes[w*4+3-i]
			}
		}
		addr = formatIPv6(b)
	}
	return addr, port
}

func formatIPv6(b []byte) string {
	parts := make([]string, 8)
	for i := 0; i < 8; i++ {
		parts[i] = fmt.Sprintf("%x", uint16(b[i*2])<<8|uint16(b[i*2+1]))
	}
	return strings.Join(parts, ":")
}
