// Package security holds the pure audit functions the collector calls on
// each tick's FD and connection inventory, grounded on the teacher's
// collector/security.go fixed-pattern-matching idiom (reverseShellWhitelist,
// credential-path checks) narrowed to the two rules this spec names: a
// fixed credential-path pattern set and LISTEN/ESTABLISHED connection
// classification. The teacher's broader auth-log/SUID/brute-force auditing
// is out of scope here and is not reimplemented.
package security

import (
	"fmt"
	"strings"

	"github.com/dmaynor/agent-watch/model"
)

// credentialPatterns is the fixed set of path substrings that mark an open
// FD as a credential-access finding.
var credentialPatterns = []string{
	".ssh/", ".aws/", ".env", "keyring", ".gnupg/", ".config/gcloud/",
	"credentials", ".npmrc", ".pypirc", "id_rsa", "id_ed25519", ".kube/config",
}

// wellKnownPorts are remote ports an ESTABLISHED connection to which is not
// considered unexpected.
var wellKnownPorts = map[int32]bool{
	0: true, 53: true, 80: true, 443: true, 8080: true, 8443: true,
}

// Finding is one audit result, shaped to become a model.Alert with zero
// value/threshold once the collector stores it.
type Finding struct {
	PID      int32
	Severity model.Severity
	Category string
	Message  string
}

// AuditFDs emits at most one finding per FD row whose path matches a
// credential pattern.
func AuditFDs(fds []model.FdRecord) []Finding {
	var out []Finding
	for _, fd := range fds {
		if pattern, ok := matchCredentialPattern(fd.Path); ok {
			out = append(out, Finding{
				PID:      fd.PID,
				Severity: model.SeverityWarning,
				Category: "security:credential_access",
				Message:  fmt.Sprintf("fd %d path %q matches credential pattern %q", fd.FdNum, fd.Path, pattern),
			})
		}
	}
	return out
}

func matchCredentialPattern(path string) (string, bool) {
	for _, p := range credentialPatterns {
		if strings.Contains(path, p) {
			return p, true
		}
	}
	return "", false
}

// AuditConnections classifies LISTEN and ESTABLISHED connections per
// spec.md §4.6: a LISTEN on a privileged port (<1024) is a warning, any
// other LISTEN is informational; an ESTABLISHED connection to a port
// outside the well-known set is informational.
func AuditConnections(conns []model.NetConnection) []Finding {
	var out []Finding
	for _, c := range conns {
		switch c.State {
		case "LISTEN":
			sev := model.SeverityInfo
			if c.LocalPort < 1024 {
				sev = model.SeverityWarning
			}
			out = append(out, Finding{
				PID:      c.PID,
				Severity: sev,
				Category: "security:listening_port",
				Message:  fmt.Sprintf("%s listening on %s:%d", c.Protocol, c.LocalAddr, c.LocalPort),
			})
		case "ESTABLISHED":
			if !wellKnownPorts[c.RemotePort] {
				out = append(out, Finding{
					PID:      c.PID,
					Severity: model.SeverityInfo,
					Category: "security:unexpected_network",
					Message:  fmt.Sprintf("%s established to %s:%d", c.Protocol, c.RemoteAddr, c.RemotePort),
				})
			}
		}
	}
	return out
}
