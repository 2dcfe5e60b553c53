package ui

import (
	"fmt"
	"strings"

	"github.com/gangulaabhinav/ARWalking/internal/app"
)

// Summary renders a one-line, unstyled view of s for headless output.
func Summary(s app.Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s peers=%d", s.DeviceName, len(s.Devices))
	if !s.Available {
		b.WriteString(" radio=unavailable")
	}
	if s.Position != nil {
		fmt.Fprintf(&b, " position=%s rms=%.0fmm anchors=%d",
			s.Position.Position, s.Position.RMSErrorMm, s.Position.Anchors)
	} else {
		b.WriteString(" position=unknown")
	}
	fmt.Fprintf(&b, " sent=%d received=%d malformed=%d",
		s.Counters.Sent, s.Counters.Received, s.Counters.Malformed)
	return b.String()
}
