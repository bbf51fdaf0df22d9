package debug

import (
	"encoding/binary"
	"fmt"
	"syscall"
)

// IoctlRecord is a compact trace of one ioctl. It is encoded without fmt
// so tracing KVM_RUN stays cheap.
type IoctlRecord struct {
	Fd      int32
	Errno   syscall.Errno
	Request uint64
	Result  uint64
	Name    string
}

const ioctlFixedSize = 24

func (r IoctlRecord) append(b []byte) []byte {
	b = binary.LittleEndian.AppendUint32(b, uint32(r.Fd))
	b = binary.LittleEndian.AppendUint32(b, uint32(r.Errno))
	b = binary.LittleEndian.AppendUint64(b, r.Request)
	b = binary.LittleEndian.AppendUint64(b, r.Result)
	return append(b, r.Name...)
}

func DecodeIoctl(data []byte) (IoctlRecord, error) {
	if len(data) < ioctlFixedSize {
		return IoctlRecord{}, fmt.Errorf("debug: ioctl record is %d bytes, want at least %d", len(data), ioctlFixedSize)
	}
	return IoctlRecord{
		Fd:      int32(binary.LittleEndian.Uint32(data[0:4])),
		Errno:   syscall.Errno(binary.LittleEndian.Uint32(data[4:8])),
		Request: binary.LittleEndian.Uint64(data[8:16]),
		Result:  binary.LittleEndian.Uint64(data[16:24]),
		Name:    string(data[24:]),
	}, nil
}

func (r IoctlRecord) String() string {
	name := r.Name
	if name == "" {
		name = fmt.Sprintf("ioctl(%#x)", r.Request)
	}
	if r.Errno != 0 {
		return fmt.Sprintf("fd=%d %s err=%v", r.Fd, name, r.Errno)
	}
	return fmt.Sprintf("fd=%d %s ret=%d", r.Fd, name, r.Result)
}

func WriteIoctl(source string, rec IoctlRecord) {
	if !Enabled() {
		return
	}
	var buf [64]byte
	writeRecord(KindIoctl, source, rec.append(buf[:0]))
}

// Format renders a record's payload as text.
func Format(kind Kind, data []byte) string {
	switch kind {
	case KindString:
		return string(data)
	case KindIoctl:
		rec, err := DecodeIoctl(data)
		if err != nil {
			return err.Error()
		}
		return rec.String()
	default:
		return fmt.Sprintf("% x", data)
	}
}
