//go:build !unix

package provenance

func systemUname() Uname {
	return fallbackUname()
}
