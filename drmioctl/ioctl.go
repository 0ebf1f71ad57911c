// Package drmioctl wraps the raw DRM/KMS ioctl surface: numbering,
// kernel ABI struct layouts, and the syscall used to issue them. No other
// package in this module touches syscall.Syscall directly.
package drmioctl

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

const drmIoctlBase = 'd'

const (
	iocNone  = 0
	iocWrite = 1
	iocRead  = 2

	iocNRBits   = 8
	iocTypeBits = 8
	iocSizeBits = 14

	iocNRShift   = 0
	iocTypeShift = iocNRShift + iocNRBits
	iocSizeShift = iocTypeShift + iocTypeBits
	iocDirShift  = iocSizeShift + iocSizeBits
)

// ioc mirrors Linux's _IOC macro from asm-generic/ioctl.h.
func ioc(dir, typ, nr uintptr, size uintptr) uintptr {
	return (dir << iocDirShift) | (typ << iocTypeShift) | (nr << iocNRShift) | (size << iocSizeShift)
}

func iow(nr uintptr, size uintptr) uintptr {
	return ioc(iocWrite, drmIoctlBase, nr, size)
}

func ior(nr uintptr, size uintptr) uintptr {
	return ioc(iocRead, drmIoctlBase, nr, size)
}

func iowr(nr uintptr, size uintptr) uintptr {
	return ioc(iocWrite|iocRead, drmIoctlBase, nr, size)
}

func io(nr uintptr) uintptr {
	return ioc(iocNone, drmIoctlBase, nr, 0)
}

// Ioctl issues a single ioctl(2) against fd.
func Ioctl(fd uintptr, op uintptr, arg uintptr) (uintptr, error) {
	res, _, errno := unix.Syscall(unix.SYS_IOCTL, fd, op, arg)
	if errno != 0 {
		return res, errno
	}

	return res, nil
}

func ioctlPtr(fd uintptr, op uintptr, p unsafe.Pointer) (uintptr, error) {
	return Ioctl(fd, op, uintptr(p))
}
