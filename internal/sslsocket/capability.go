package sslsocket

import (
	"fmt"
	"sync"

	"github.com/ooni/sslsocket/internal/model"
	"github.com/ooni/sslsocket/internal/netxlite"
)

// CapabilityProbe tells whether a TLS engine supports non-blocking
// operation. The answer only depends on the engine, so we compute it
// once, on first use, and never change it afterwards.
type CapabilityProbe struct {
	engine           string
	supportsNonblock func() bool
}

// NewCapabilityProbe creates a probe for the given engine.
func NewCapabilityProbe(engine model.TLSEngine) *CapabilityProbe {
	return &CapabilityProbe{
		engine:           engine.Name(),
		supportsNonblock: sync.OnceValue(engine.SupportsNonblock),
	}
}

var (
	stdlibCapabilityProbe = sync.OnceValue(func() *CapabilityProbe {
		return NewCapabilityProbe(&netxlite.TLSEngineStdlib{})
	})

	utlsCapabilityProbe = sync.OnceValue(func() *CapabilityProbe {
		return NewCapabilityProbe(netxlite.NewTLSEngineUTLS(nil))
	})
)

// capabilityProbeFor returns the process-wide probe of the built-in
// engines and a fresh probe for any other engine.
func capabilityProbeFor(engine model.TLSEngine) *CapabilityProbe {
	switch engine.(type) {
	case *netxlite.TLSEngineStdlib:
		return stdlibCapabilityProbe()
	case *netxlite.TLSEngineUTLS:
		return utlsCapabilityProbe()
	default:
		return NewCapabilityProbe(engine)
	}
}

// SupportsNonblock returns whether the engine supports non-blocking operation.
func (p *CapabilityProbe) SupportsNonblock() bool {
	return p.supportsNonblock()
}

// Resolve returns the effective mode for the requested one. When
// non-blocking operation is requested but not supported, it returns
// false and a warning. Otherwise, it returns requested and no warning.
func (p *CapabilityProbe) Resolve(requested bool) (effective bool, warning string) {
	if requested && !p.SupportsNonblock() {
		return false, fmt.Sprintf("sslsocket: nonblock is not supported by the %s TLS engine", p.engine)
	}
	return requested, ""
}
