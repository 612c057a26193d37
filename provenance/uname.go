package provenance

// Uname is the OS identity recorded in a Snapshot.
type Uname struct {
	Sysname  string
	Nodename string
	Release  string
	Version  string
	Machine  string
}
