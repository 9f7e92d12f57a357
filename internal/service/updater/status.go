package updater

import "fmt"

// Kind names an update lifecycle state.
type Kind int

// Update lifecycle states.
const (
	KindNotAvailable Kind = iota
	KindChecking
	KindAvailable
	KindDownloading
	KindDownloaded
	KindError
)

//nolint:gochecknoglobals // Immutable lookup table.
var kindNames = map[Kind]string{
	KindNotAvailable: "not-available",
	KindChecking:     "checking",
	KindAvailable:    "available",
	KindDownloading:  "downloading",
	KindDownloaded:   "downloaded",
	KindError:        "error",
}

// String returns the wire name of the state.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}

	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind is the inverse of Kind.String.
func ParseKind(name string) (Kind, bool) {
	for kind, n := range kindNames {
		if n == name {
			return kind, true
		}
	}

	return KindNotAvailable, false
}

// Status is a snapshot of the update lifecycle.
// Only the fields relevant to Kind are set.
type Status struct {
	Kind Kind
	// Version is set for available and downloaded.
	Version string
	// Percent is set for downloading, in the range 0..100.
	Percent float64
	// Message is set for error.
	Message string
}

// Checking is the status while the feed is queried.
func Checking() Status {
	return Status{Kind: KindChecking}
}

// Available reports a newer version that has not been downloaded.
func Available(version string) Status {
	return Status{Kind: KindAvailable, Version: version}
}

// NotAvailable reports that the running version is current.
func NotAvailable() Status {
	return Status{Kind: KindNotAvailable}
}

// Downloading reports download progress.
func Downloading(percent float64) Status {
	return Status{Kind: KindDownloading, Percent: clampPercent(percent)}
}

// Downloaded reports a staged update ready to install.
func Downloaded(version string) Status {
	return Status{Kind: KindDownloaded, Version: version}
}

// Failed reports a failed check or download.
func Failed(message string) Status {
	return Status{Kind: KindError, Message: message}
}

// String renders the status for logs and CLI output.
func (s Status) String() string {
	switch s.Kind {
	case KindAvailable, KindDownloaded:
		return s.Kind.String() + " " + s.Version
	case KindDownloading:
		return fmt.Sprintf("%s %.1f%%", s.Kind, s.Percent)
	case KindError:
		return s.Kind.String() + ": " + s.Message
	default:
		return s.Kind.String()
	}
}

func clampPercent(percent float64) float64 {
	switch {
	case percent < 0:
		return 0
	case percent > 100: //nolint:mnd // Percent upper bound.
		return 100
	default:
		return percent
	}
}
