package migrate

import (
	"github.com/notargets/goparticles/integrator"
	"github.com/notargets/goparticles/mesh"
	"github.com/notargets/goparticles/particle"
)

// sizeTag and payloadTag separate the two phases of the migration wire
// protocol (spec.md §4.6: each side first learns how many bytes the
// other is about to send, then the payload itself). spec.md fixes these
// at tag 0 for size exchange and tag 1 for payload exchange.
const (
	sizeTag    = 0
	payloadTag = 1
)

// SendRecv moves outgoing particles to their destination ranks and
// returns the particles that arrived from every other rank, keyed by
// sender. Every rank in neighbors is given a (possibly empty) send and
// receive so nobody blocks waiting on a partner who has nothing to
// say.
//
// Each particle occupies particle.RecordSize(dim, propLen) bytes
// followed immediately by integ.DataLength() bytes of the
// integrator's per-particle scratch state, so a particle migrating
// mid-integration arrives with its stage state intact (the wire-size
// resolution in SPEC_FULL.md §3). integ may be nil, in which case no
// scratch bytes are framed.
func SendRecv(comm Comm, neighbors []mesh.SubdomainID, outgoing map[mesh.SubdomainID][]particle.Particle, dim, propLen int, integ integrator.Integrator) map[mesh.SubdomainID][]particle.Particle {
	integLen := 0
	if integ != nil {
		integLen = integ.DataLength()
	}
	recSize := particle.RecordSize(dim, propLen) + integLen

	outBufs := make(map[mesh.SubdomainID][]byte, len(neighbors))
	for _, n := range neighbors {
		ps := outgoing[n]
		buf := make([]byte, len(ps)*recSize)
		offset := 0
		for _, p := range ps {
			start := offset
			p.WriteTo(buf, start)
			offset = start + particle.RecordSize(dim, propLen)
			if integ != nil {
				integ.WriteData(buf[offset:offset+integLen], p.ID)
				offset += integLen
			}
		}
		outBufs[n] = buf
	}

	recvSizes := make(map[mesh.SubdomainID]*int, len(neighbors))
	func() {
		var ex Exchange
		defer ex.Wait()
		for _, n := range neighbors {
			ex.IsendInt(comm, len(outBufs[n]), int(n), sizeTag)
			recvSizes[n] = ex.IrecvInt(comm, int(n), sizeTag)
		}
	}()

	recvBufs := make(map[mesh.SubdomainID][]byte, len(neighbors))
	func() {
		var ex Exchange
		defer ex.Wait()
		for _, n := range neighbors {
			recvBufs[n] = make([]byte, *recvSizes[n])
			if len(outBufs[n]) > 0 {
				ex.Isend(comm, outBufs[n], int(n), payloadTag)
			}
			if *recvSizes[n] > 0 {
				ex.Irecv(comm, recvBufs[n], int(n), payloadTag)
			}
		}
	}()

	incoming := make(map[mesh.SubdomainID][]particle.Particle, len(neighbors))
	for _, n := range neighbors {
		buf := recvBufs[n]
		var ps []particle.Particle
		offset := 0
		for offset < len(buf) {
			var p particle.Particle
			p, offset = particle.ReadFrom(buf, offset, dim, propLen)
			if integ != nil {
				integ.ReadData(buf[offset:offset+integLen], p.ID)
				offset += integLen
			}
			ps = append(ps, p)
		}
		if ps != nil {
			incoming[n] = ps
		}
	}
	return incoming
}
