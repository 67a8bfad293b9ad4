//go:build mpi

// Real MPI backend for Comm, grounded on the same import "C" /
// MPI_Isend / MPI_Irecv / MPI_Wait / MPI_Allreduce shape used for
// integer collectives elsewhere in the retrieved pack, adapted here to
// the Comm/Request interface and extended to byte payloads for
// particle migration.
package migrate

/*
#include <mpi.h>
*/
import "C"
import "unsafe"

func init() {
	var argc C.int
	C.MPI_Init(&argc, nil)
}

// NewComm returns the MPI_COMM_WORLD transport. MPI is initialized the
// first time this package is imported into an `mpi`-tagged build.
func NewComm() Comm { return mpiComm{} }

type mpiComm struct{}

func (mpiComm) Rank() int {
	var r C.int
	C.MPI_Comm_rank(C.MPI_COMM_WORLD, &r)
	return int(r)
}

func (mpiComm) Size() int {
	var sz C.int
	C.MPI_Comm_size(C.MPI_COMM_WORLD, &sz)
	return int(sz)
}

// mpiRequest pins the buffer backing an in-flight nonblocking call so
// it survives until MPI_Wait completes, and optionally runs a copy-out
// step (for the int-receive case, where the caller sees a Go *int
// rather than the raw C buffer).
type mpiRequest struct {
	req    C.MPI_Request
	keep   interface{}
	onWait func()
}

func (r *mpiRequest) Wait() {
	var status C.MPI_Status
	C.MPI_Wait(&r.req, &status)
	if r.onWait != nil {
		r.onWait()
	}
}

func (mpiComm) IsendInt(v, dest, tag int) Request {
	buf := []C.long{C.long(v)}
	r := &mpiRequest{keep: buf}
	C.MPI_Isend(unsafe.Pointer(&buf[0]), 1, C.MPI_LONG, C.int(dest), C.int(tag), C.MPI_COMM_WORLD, &r.req)
	return r
}

func (mpiComm) IrecvInt(src, tag int) (Request, *int) {
	buf := []C.long{0}
	out := new(int)
	r := &mpiRequest{keep: buf, onWait: func() { *out = int(buf[0]) }}
	C.MPI_Irecv(unsafe.Pointer(&buf[0]), 1, C.MPI_LONG, C.int(src), C.int(tag), C.MPI_COMM_WORLD, &r.req)
	return r, out
}

func (mpiComm) IsendBytes(b []byte, dest, tag int) Request {
	r := &mpiRequest{keep: b}
	var ptr unsafe.Pointer
	if len(b) > 0 {
		ptr = unsafe.Pointer(&b[0])
	}
	C.MPI_Isend(ptr, C.int(len(b)), C.MPI_BYTE, C.int(dest), C.int(tag), C.MPI_COMM_WORLD, &r.req)
	return r
}

func (mpiComm) IrecvBytes(buf []byte, src, tag int) Request {
	r := &mpiRequest{keep: buf}
	var ptr unsafe.Pointer
	if len(buf) > 0 {
		ptr = unsafe.Pointer(&buf[0])
	}
	C.MPI_Irecv(ptr, C.int(len(buf)), C.MPI_BYTE, C.int(src), C.int(tag), C.MPI_COMM_WORLD, &r.req)
	return r
}

func (mpiComm) AllreduceMaxInt(v int) int {
	in, out := C.long(v), C.long(0)
	C.MPI_Allreduce(unsafe.Pointer(&in), unsafe.Pointer(&out), 1, C.MPI_LONG, C.MPI_MAX, C.MPI_COMM_WORLD)
	return int(out)
}

func (mpiComm) ReduceSumInt(v int) int {
	in, out := C.long(v), C.long(0)
	C.MPI_Reduce(unsafe.Pointer(&in), unsafe.Pointer(&out), 1, C.MPI_LONG, C.MPI_SUM, 0, C.MPI_COMM_WORLD)
	return int(out)
}
