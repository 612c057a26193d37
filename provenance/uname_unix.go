//go:build unix

package provenance

import (
	"golang.org/x/sys/unix"
)

func systemUname() Uname {
	var u unix.Utsname
	if err := unix.Uname(&u); err != nil {
		return fallbackUname()
	}
	return Uname{
		Sysname:  unix.ByteSliceToString(u.Sysname[:]),
		Nodename: unix.ByteSliceToString(u.Nodename[:]),
		Release:  unix.ByteSliceToString(u.Release[:]),
		Version:  unix.ByteSliceToString(u.Version[:]),
		Machine:  unix.ByteSliceToString(u.Machine[:]),
	}
}
