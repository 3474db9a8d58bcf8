package capture

// CapabilityProvider reports whether the local encoder supports a MIME type.
type CapabilityProvider interface {
	IsTypeSupported(mimeType string) bool
}

// FallbackMimeType is used when nothing on the priority list is supported.
const FallbackMimeType = "video/webm"

// mimePriority is ordered best-first; negotiation is first-supported-wins.
var mimePriority = []string{
	"video/webm;codecs=vp9,opus",
	"video/webm;codecs=vp8,opus",
	"video/webm",
	"video/mp4",
}

// NegotiateMimeType picks the first supported type from the priority list,
// falling back to FallbackMimeType. Never returns empty.
func NegotiateMimeType(caps CapabilityProvider) string {
	if caps != nil {
		for _, mt := range mimePriority {
			if caps.IsTypeSupported(mt) {
				return mt
			}
		}
	}
	return FallbackMimeType
}

// CapabilityFunc adapts a function to the CapabilityProvider interface.
type CapabilityFunc func(mimeType string) bool

func (f CapabilityFunc) IsTypeSupported(mimeType string) bool { return f(mimeType) }
