package provider

import (
	"context"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/storesense/internal/model"
)

// NMCLIRadio scans WiFi by shelling out to NetworkManager's nmcli, the
// common scan capability on Linux. Output is the terse (-t) format:
//
//	SSID:BSSID:SIGNAL
//
// where colons inside the BSSID are backslash-escaped and SIGNAL is a 0-100
// quality percentage that we map back to dBm.
type NMCLIRadio struct {
	// Path to the nmcli binary. Defaults to "nmcli" on PATH.
	Path string

	// Timeout bounds the scan. Defaults to 5s.
	Timeout time.Duration
}

func (n NMCLIRadio) CurrentSnapshot(ctx context.Context) (model.RadioSnapshot, error) {
	path := n.Path
	if path == "" {
		path = "nmcli"
	}
	timeout := n.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, path, "-t", "-f", "SSID,BSSID,SIGNAL", "dev", "wifi", "list")
	out, err := cmd.Output()
	if err != nil {
		if eris.Is(err, exec.ErrNotFound) {
			return nil, ErrRadioUnavailable
		}
		return nil, eris.Wrap(err, "provider: nmcli scan")
	}
	return parseNmcliOutput(string(out), time.Now().UTC()), nil
}

// parseNmcliOutput converts terse nmcli lines into a snapshot. Unparseable
// lines are logged and skipped rather than failing the scan.
func parseNmcliOutput(out string, observedAt time.Time) model.RadioSnapshot {
	var snapshot model.RadioSnapshot
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		obs, ok := parseNmcliLine(line, observedAt)
		if !ok {
			zap.L().Warn("unparseable nmcli line", zap.String("line", line))
			continue
		}
		snapshot = append(snapshot, obs)
	}
	return snapshot
}

func parseNmcliLine(line string, observedAt time.Time) (model.RadioObservation, bool) {
	fields := splitUnescaped(line, ':')
	if len(fields) != 3 {
		return model.RadioObservation{}, false
	}
	ssid := fields[0]
	bssid := fields[1]
	quality, err := strconv.Atoi(fields[2])
	if err != nil {
		return model.RadioObservation{}, false
	}
	return model.RadioObservation{
		Signature:  model.NetworkSignature{SSID: ssid, BSSID: bssid},
		SignalDbm:  qualityToDbm(quality),
		ObservedAt: observedAt,
	}, true
}

// splitUnescaped splits on sep, honoring backslash escapes (nmcli escapes
// the colons inside BSSIDs).
func splitUnescaped(s string, sep byte) []string {
	var fields []string
	var cur strings.Builder
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			cur.WriteByte(c)
			escaped = false
		case c == '\\':
			escaped = true
		case c == sep:
			fields = append(fields, cur.String())
			cur.Reset()
		default:
			cur.WriteByte(c)
		}
	}
	fields = append(fields, cur.String())
	return fields
}

// qualityToDbm inverts NetworkManager's own dBm-to-percent mapping, which
// is linear between -100 dBm (0%) and -50 dBm (100%).
func qualityToDbm(quality int) float64 {
	if quality < 0 {
		quality = 0
	}
	if quality > 100 {
		quality = 100
	}
	return -100.0 + float64(quality)/2.0
}
